package handler

import (
	"crypto/subtle"
	"net/http"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/event-ticket-bot/internal/bot"
)

// SecretTokenHeader carries the secret registered with setWebhook.
const SecretTokenHeader = "X-Telegram-Bot-Api-Secret-Token"

// Submitter queues an interaction for dispatch.  *bot.Pool implements it.
type Submitter interface {
	Submit(in bot.Inbound) bool
}

// WebhookHandler receives Telegram updates in webhook mode.
type WebhookHandler struct {
	Secret string
	Queue  Submitter
	Log    *zap.Logger
}

// Receive validates the secret header, decodes the update and hands it to
// the dispatch pool.  Updates that carry no interaction, and updates dropped
// because the queue is full, are still acknowledged with 200 so Telegram
// does not redeliver them in a loop.
func (h *WebhookHandler) Receive(c echo.Context) error {
	if h.Secret != "" {
		got := c.Request().Header.Get(SecretTokenHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(h.Secret)) != 1 {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid secret token"})
		}
	}

	var u tgbotapi.Update
	if err := c.Bind(&u); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid update"})
	}
	in, ok := bot.InboundFromUpdate(u)
	if !ok {
		return c.NoContent(http.StatusOK)
	}
	if !h.Queue.Submit(in) {
		h.Log.Warn("update dropped, dispatch queue full",
			zap.Int("update_id", u.UpdateID), zap.Int64("chat_id", in.ChatID))
	}
	return c.NoContent(http.StatusOK)
}
