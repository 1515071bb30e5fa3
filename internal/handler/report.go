package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/event-ticket-bot/internal/middleware"
	"github.com/iliyamo/event-ticket-bot/internal/repository"
	"github.com/iliyamo/event-ticket-bot/internal/service"
)

const xlsxMIME = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ReportHandler serves event reports behind signed download links.  The
// link is verified by middleware.ReportToken; the requester's standing in
// the event's organization is checked again here, so a link stops working
// once its holder loses the role.
type ReportHandler struct {
	Events  *repository.EventRepo
	Reports *service.Reports
	Access  *service.Access
	Log     *zap.Logger
}

// Download streams the workbook of the event named by the link.
func (h *ReportHandler) Download(c echo.Context) error {
	claims, ok := middleware.ReportClaimsFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid or expired link"})
	}
	ctx := c.Request().Context()

	ev, err := h.Events.Get(ctx, claims.EventID)
	if errors.Is(err, repository.ErrNotFound) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "event not found"})
	}
	if err != nil {
		h.Log.Error("report lookup failed", zap.Error(err), zap.Int64("event_id", claims.EventID))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
	if err := h.Access.Authorize(ctx, claims.RequesterID, ev.OrgID, service.ActionReportsExport); err != nil {
		if errors.Is(err, repository.ErrForbidden) {
			return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
		}
		h.Log.Error("report authorization failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}

	rep, err := h.Reports.Export(ctx, ev.ID)
	if err != nil {
		h.Log.Error("report export failed", zap.Error(err), zap.Int64("event_id", ev.ID))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", rep.Filename))
	return c.Blob(http.StatusOK, xlsxMIME, rep.Data)
}
