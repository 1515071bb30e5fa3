package handler // HTTP handlers served next to the bot: probes, webhook, report downloads

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
)

// HealthHandler answers liveness and readiness probes.  Redis is optional:
// the bot degrades to in-memory approvals without it, so a missing client
// is reported but never fails readiness.
type HealthHandler struct {
	DB    *sql.DB
	Redis *redis.Client
}

// Live always returns 200 "ok" while the process serves HTTP.
func (h *HealthHandler) Live(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

// Ready pings the database (and Redis when configured) with a short timeout.
func (h *HealthHandler) Ready(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	body := echo.Map{"db": "ok", "redis": "disabled"}
	if err := h.DB.PingContext(ctx); err != nil {
		status = http.StatusServiceUnavailable
		body["db"] = err.Error()
	}
	if h.Redis != nil {
		body["redis"] = "ok"
		if err := h.Redis.Ping(ctx).Err(); err != nil {
			body["redis"] = err.Error()
		}
	}
	return c.JSON(status, body)
}
