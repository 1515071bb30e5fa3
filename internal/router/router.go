package router // package router wires HTTP routes onto the Echo instance

import (
	"net/http"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/iliyamo/event-ticket-bot/internal/handler"
	"github.com/iliyamo/event-ticket-bot/internal/middleware"
	"github.com/iliyamo/event-ticket-bot/internal/ratelimit"
)

// WebhookPath is where Telegram posts updates in webhook mode.
const WebhookPath = "/telegram/webhook"

// Routes bundles everything the HTTP surface needs.  Webhook is nil in
// polling mode; Gatherer defaults to the global prometheus registry.
type Routes struct {
	Health       *handler.HealthHandler
	Webhook      *handler.WebhookHandler
	Reports      *handler.ReportHandler
	ReportSecret string
	Limiter      *ratelimit.Limiter
	Gatherer     prometheus.Gatherer
	Log          *zap.Logger
}

// New returns an Echo instance with every route registered.
func New(r Routes) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(echomw.Recover())
	e.Use(middleware.RequestLog(r.Log))
	Register(e, r)
	return e
}

// Register maps the probes, the metrics endpoint, the webhook and report
// downloads.  Only report downloads are limited per IP: webhook traffic all
// comes from Telegram and is throttled per chat by the dispatcher.
func Register(e *echo.Echo, r Routes) {
	e.GET("/healthz", r.Health.Live)
	e.GET("/readyz", r.Health.Ready)

	gatherer := r.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	if r.Webhook != nil {
		e.POST(WebhookPath, r.Webhook.Receive)
	}
	reports := e.Group("/v1/reports", middleware.RateLimit(r.Limiter, r.Log))
	reports.GET("/:token", r.Reports.Download, middleware.ReportToken(r.ReportSecret))

	e.RouteNotFound("/*", func(c echo.Context) error {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
	})
}
