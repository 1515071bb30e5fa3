package bot

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

const maxDownload = 10 << 20

// Telegram adapts tgbotapi to Messenger.  All text is sent as HTML.
type Telegram struct {
	api    *tgbotapi.BotAPI
	client *http.Client
}

// NewTelegram wraps an authenticated bot API client.
func NewTelegram(api *tgbotapi.BotAPI) *Telegram {
	return &Telegram{api: api, client: &http.Client{Timeout: 30 * time.Second}}
}

// API exposes the underlying client for webhook registration.
func (t *Telegram) API() *tgbotapi.BotAPI { return t.api }

func markup(kb Keyboard) *tgbotapi.InlineKeyboardMarkup {
	if len(kb) == 0 {
		return nil
	}
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(kb))
	for _, r := range kb {
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(r))
		for _, b := range r {
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(b.Text, b.Data))
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(buttons...))
	}
	m := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return &m
}

func (t *Telegram) Send(_ context.Context, chatID int64, m Message) (int, error) {
	msg := tgbotapi.NewMessage(chatID, m.Text)
	msg.ParseMode = tgbotapi.ModeHTML
	if kb := markup(m.Keyboard); kb != nil {
		msg.ReplyMarkup = *kb
	}
	sent, err := t.api.Send(msg)
	if err != nil {
		return 0, err
	}
	return sent.MessageID, nil
}

func (t *Telegram) Edit(_ context.Context, chatID int64, messageID int, m Message) error {
	edit := tgbotapi.NewEditMessageText(chatID, messageID, m.Text)
	edit.ParseMode = tgbotapi.ModeHTML
	edit.ReplyMarkup = markup(m.Keyboard)
	_, err := t.api.Send(edit)
	return err
}

func (t *Telegram) SendPhoto(_ context.Context, chatID int64, f File, m Message) error {
	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileBytes{Name: f.Name, Bytes: f.Data})
	photo.Caption = m.Text
	photo.ParseMode = tgbotapi.ModeHTML
	if kb := markup(m.Keyboard); kb != nil {
		photo.ReplyMarkup = *kb
	}
	_, err := t.api.Send(photo)
	return err
}

func (t *Telegram) SendDocument(_ context.Context, chatID int64, f File, caption string) error {
	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{Name: f.Name, Bytes: f.Data})
	doc.Caption = caption
	doc.ParseMode = tgbotapi.ModeHTML
	_, err := t.api.Send(doc)
	return err
}

func (t *Telegram) AnswerCallback(_ context.Context, callbackID, text string) error {
	_, err := t.api.Request(tgbotapi.NewCallback(callbackID, text))
	return err
}

// DownloadFile fetches an uploaded file (a QR photo) through the bot file
// endpoint.
func (t *Telegram) DownloadFile(ctx context.Context, fileID string) ([]byte, error) {
	url, err := t.api.GetFileDirectURL(fileID)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download file: status %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxDownload))
}

// InboundFromUpdate converts a Telegram update.  Updates the bot does not
// handle (edits, channel posts, inline queries) report false.
func InboundFromUpdate(u tgbotapi.Update) (Inbound, bool) {
	switch {
	case u.CallbackQuery != nil:
		cb := u.CallbackQuery
		if cb.From == nil || cb.Message == nil || cb.Message.Chat == nil {
			return Inbound{}, false
		}
		return Inbound{
			ChatID:     cb.Message.Chat.ID,
			UserID:     cb.From.ID,
			Username:   cb.From.UserName,
			FirstName:  cb.From.FirstName,
			MessageID:  cb.Message.MessageID,
			CallbackID: cb.ID,
			Intent:     DecodeCallback(cb.Data),
		}, true
	case u.Message != nil:
		msg := u.Message
		if msg.From == nil || msg.Chat == nil || !msg.Chat.IsPrivate() {
			return Inbound{}, false
		}
		var photo string
		if n := len(msg.Photo); n > 0 {
			photo = msg.Photo[n-1].FileID
		}
		text := msg.Text
		if photo != "" {
			text = msg.Caption
		}
		return Inbound{
			ChatID:    msg.Chat.ID,
			UserID:    msg.From.ID,
			Username:  msg.From.UserName,
			FirstName: msg.From.FirstName,
			Intent:    DecodeMessage(text, photo),
		}, true
	}
	return Inbound{}, false
}

// Poll feeds long-polling updates into pool until ctx is cancelled.
func Poll(ctx context.Context, api *tgbotapi.BotAPI, pool *Pool, log *zap.Logger) {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = 30
	updates := api.GetUpdatesChan(cfg)
	defer api.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return
		case u, ok := <-updates:
			if !ok {
				return
			}
			in, ok := InboundFromUpdate(u)
			if !ok {
				continue
			}
			if !pool.Submit(in) {
				log.Warn("update dropped, dispatch queue full", zap.Int64("chat_id", in.ChatID))
			}
		}
	}
}
