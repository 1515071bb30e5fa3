// Package bot holds the conversation state machines of the ticket bot: a
// buyer flow (auth, catalog, purchase, my tickets) and an admin flow
// (organizations, events, tiers, promos, checks, broadcasts).  Each flow
// is a table from state to the intents it accepts; the dispatcher resolves
// the handler, runs it to completion and stores the state it returns.
package bot

import (
	"context"
	"errors"
	"html"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/event-ticket-bot/internal/metrics"
	"github.com/iliyamo/event-ticket-bot/internal/ratelimit"
	"github.com/iliyamo/event-ticket-bot/internal/repository"
	"github.com/iliyamo/event-ticket-bot/internal/service"
	"github.com/iliyamo/event-ticket-bot/internal/session"
)

// Deps are the collaborators of Bot.  Limiter, Metrics and Publisher-side
// services may be nil.
type Deps struct {
	Messenger   Messenger
	Sessions    *session.Store
	Users       *repository.UserRepo
	Orgs        *repository.OrgRepo
	Events      *repository.EventRepo
	Products    *repository.ProductRepo
	Promos      *repository.PromoRepo
	Blacklist   *repository.BlacklistRepo
	Access      *service.Access
	Auth        *service.Auth
	Tickets     *service.Tickets
	Pending     service.PendingStore
	Reports     *service.Reports
	Maintenance *service.Maintenance
	Limiter     *ratelimit.Limiter
	Metrics     *metrics.Metrics
	Log         *zap.Logger

	OrgQuota       int           // organization-creation quota granted by the super admin
	BroadcastDelay time.Duration // pause between broadcast messages
	ReportSecret   string        // signs report download links; empty disables links
	ReportLinkTTL  time.Duration
	PublicBaseURL  string
}

// Bot dispatches interactions to the buyer and admin state machines.
type Bot struct {
	Deps
	broadcaster *service.Broadcaster
}

// New wires a Bot.
func New(d Deps) *Bot {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	if d.OrgQuota < 1 {
		d.OrgQuota = 2
	}
	b := &Bot{Deps: d}
	b.broadcaster = &service.Broadcaster{
		Send: func(ctx context.Context, chatID int64, text string) error {
			_, err := d.Messenger.Send(ctx, chatID, Message{Text: text})
			return err
		},
		Delay: d.BroadcastDelay,
		Log:   d.Log.Named("broadcast"),
	}
	return b
}

// turn is one handler invocation: the interaction, the locked session and
// the callback notice to answer with.
type turn struct {
	in     Inbound
	sess   *session.Session
	notice string
}

type handlerFunc func(b *Bot, ctx context.Context, t *turn) (session.State, error)

// table maps a state to the handlers of the intents it accepts.
type table map[session.State]map[IntentKind]handlerFunc

// stateEnd ends the conversation and discards the session scratch space.
const stateEnd session.State = ""

// Handle runs one interaction to completion.
func (b *Bot) Handle(ctx context.Context, in Inbound) {
	start := time.Now()
	log := b.Log.With(zap.Int64("chat_id", in.ChatID))

	if b.Limiter != nil {
		dec, err := b.Limiter.Allow(ctx, b.Limiter.ChatKey(in.ChatID))
		if err != nil {
			log.Debug("rate limit check failed", zap.Error(err))
		}
		if !dec.Allowed {
			b.throttled(ctx, in)
			return
		}
	}

	if b.Users != nil {
		if err := b.Users.Touch(ctx, in.UserID, in.Username, in.FirstName); err != nil {
			log.Warn("touch user failed", zap.Error(err))
		}
	}

	sess, release := b.Sessions.Acquire(in.ChatID)
	t := &turn{in: in, sess: sess}
	flow := string(sess.Flow)

	next, err := b.dispatch(ctx, t)
	switch {
	case err != nil:
		b.fail(ctx, t, err)
	case next == stateEnd:
		sess.Reset()
	default:
		sess.State = next
	}
	if sess.Flow != "" {
		flow = string(sess.Flow)
	}
	release()

	if in.IsCallback() {
		if err := b.Messenger.AnswerCallback(ctx, in.CallbackID, t.notice); err != nil {
			log.Debug("answer callback failed", zap.Error(err))
		}
	}
	if flow == "" {
		flow = "none"
	}
	b.Metrics.TrackInteraction(flow, intentLabel(in), time.Since(start))
}

func (b *Bot) dispatch(ctx context.Context, t *turn) (session.State, error) {
	switch t.in.Intent.Kind {
	case IntentStart:
		return b.buyerStart(ctx, t)
	case IntentAdmin:
		return b.adminStart(ctx, t)
	case IntentCancel:
		return b.cancel(ctx, t)
	case IntentApprove, IntentReject:
		return b.approval(ctx, t)
	case IntentResetToMenu:
		return b.buyerResetToMenu(ctx, t)
	case IntentIgnore:
		return t.sess.State, nil
	case IntentUnknownCommand:
		b.reply(ctx, t, Message{Text: "❓ Неизвестная команда. Доступно: /start, /admin, /cancel."})
		return t.sess.State, nil
	}

	var tbl table
	switch t.sess.Flow {
	case session.FlowBuyer:
		tbl = buyerTable
	case session.FlowAdmin:
		tbl = adminTable
	default:
		return b.noConversation(ctx, t)
	}
	if h, ok := tbl[t.sess.State][t.in.Intent.Kind]; ok {
		return h(b, ctx, t)
	}
	return b.unmatched(ctx, t)
}

// unmatched keeps the state.  Stale buttons only get a callback notice so
// the screen the user is looking at is not replaced.
func (b *Bot) unmatched(ctx context.Context, t *turn) (session.State, error) {
	if t.in.IsCallback() {
		t.notice = "Кнопка устарела, используйте актуальное меню."
		return t.sess.State, nil
	}
	b.send(ctx, t.in.ChatID, Message{Text: "⚠️ Не понимаю. Используйте кнопки меню или /cancel для выхода."})
	return t.sess.State, nil
}

func (b *Bot) noConversation(ctx context.Context, t *turn) (session.State, error) {
	if t.in.IsCallback() {
		t.notice = "Сессия завершена."
	}
	b.send(ctx, t.in.ChatID, Message{Text: textNoSession})
	return stateEnd, nil
}

func (b *Bot) cancel(ctx context.Context, t *turn) (session.State, error) {
	b.send(ctx, t.in.ChatID, Message{Text: textCancelled})
	return stateEnd, nil
}

func (b *Bot) throttled(ctx context.Context, in Inbound) {
	if in.IsCallback() {
		_ = b.Messenger.AnswerCallback(ctx, in.CallbackID, "⏳ Слишком часто, подождите немного.")
		return
	}
	b.send(ctx, in.ChatID, Message{Text: "⏳ Слишком много запросов. Подождите немного."})
}

// fail reports an error the handler did not recover from.  The state is
// left unchanged so the user can retry.
func (b *Bot) fail(ctx context.Context, t *turn, err error) {
	text := textGenericError
	switch {
	case errors.Is(err, repository.ErrForbidden):
		text = textForbidden
	case errors.Is(err, repository.ErrNotFound):
		text = "❌ Запись не найдена. Возможно, она уже удалена."
	default:
		b.Log.Error("handler failed",
			zap.Error(err),
			zap.Int64("chat_id", t.in.ChatID),
			zap.String("state", string(t.sess.State)),
			zap.String("intent", intentLabel(t.in)),
		)
	}
	b.send(ctx, t.in.ChatID, Message{Text: text, Keyboard: keyboard(row(btn("✖️ Выйти", IntentCancel)))})
}

// reply edits the message whose button was pressed, or sends a new message
// for text input.  A failed edit (e.g. a photo message) falls back to send.
func (b *Bot) reply(ctx context.Context, t *turn, m Message) {
	if t.in.IsCallback() && t.in.MessageID != 0 {
		if err := b.Messenger.Edit(ctx, t.in.ChatID, t.in.MessageID, m); err == nil {
			return
		}
	}
	b.send(ctx, t.in.ChatID, m)
}

// send delivers m and logs delivery failures.  It reports whether the
// message went out.
func (b *Bot) send(ctx context.Context, chatID int64, m Message) bool {
	if _, err := b.Messenger.Send(ctx, chatID, m); err != nil {
		b.Metrics.TrackDeliveryError()
		b.Log.Warn("send failed", zap.Int64("chat_id", chatID), zap.Error(err))
		return false
	}
	return true
}

func intentLabel(in Inbound) string {
	switch in.Intent.Kind {
	case IntentText:
		return "text"
	case IntentPhoto:
		return "photo"
	case IntentStart, IntentAdmin, IntentCancel, IntentUnknownCommand:
		if !in.IsCallback() {
			return "command"
		}
	}
	if in.IsCallback() {
		return "callback"
	}
	return "other"
}

func esc(s string) string { return html.EscapeString(s) }
