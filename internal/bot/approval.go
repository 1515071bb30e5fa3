package bot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/event-ticket-bot/internal/model"
	"github.com/iliyamo/event-ticket-bot/internal/qrcode"
	"github.com/iliyamo/event-ticket-bot/internal/repository"
	"github.com/iliyamo/event-ticket-bot/internal/service"
	"github.com/iliyamo/event-ticket-bot/internal/session"
)

// approval handles the approve/reject buttons of a payment notification.
// It works in any flow and leaves the approver's own conversation alone.
// The pending record is taken atomically, so of two approvers pressing at
// once only one proceeds; the other sees the stale notice.
func (b *Bot) approval(ctx context.Context, t *turn) (session.State, error) {
	ref := t.in.Intent.Arg
	p, err := b.Pending.Peek(ctx, ref)
	if errors.Is(err, service.ErrPendingNotFound) {
		t.notice = textStale
		b.reply(ctx, t, Message{Text: textStale + " Заявка уже обработана или истекла."})
		return t.sess.State, nil
	}
	if err != nil {
		return t.sess.State, err
	}
	if err := b.Access.Authorize(ctx, t.in.UserID, p.OrgID, service.ActionTicketsApprove); err != nil {
		t.notice = textForbidden
		return t.sess.State, nil
	}
	if p, err = b.Pending.Take(ctx, ref); errors.Is(err, service.ErrPendingNotFound) {
		t.notice = textStale
		return t.sess.State, nil
	} else if err != nil {
		return t.sess.State, err
	}

	var d model.TicketDetails
	if t.in.Intent.Kind == IntentApprove {
		d, err = b.Tickets.Approve(ctx, p.TicketID, t.in.UserID)
	} else {
		d, err = b.Tickets.Reject(ctx, p.TicketID, t.in.UserID)
	}
	if errors.Is(err, repository.ErrNotFound) {
		// Expired while the record was taken; nothing left to approve.
		t.notice = textStale
		return t.sess.State, nil
	}
	if err != nil {
		if perr := b.Pending.Put(ctx, p); perr != nil {
			b.Log.Error("restore pending approval failed", zap.Error(perr), zap.String("ref", ref))
		}
		return t.sess.State, err
	}

	if t.in.Intent.Kind == IntentReject {
		b.send(ctx, p.BuyerID, Message{Text: fmt.Sprintf(
			"❌ Ваша оплата по заявке <code>%s</code> отклонена. Свяжитесь с организатором.", p.Ref)})
		t.notice = "Отклонено"
		b.reply(ctx, t, Message{Text: fmt.Sprintf("❌ Заявка <code>%s</code> отклонена.\nПокупатель: %s",
			p.Ref, esc(p.BuyerName))})
		return t.sess.State, nil
	}

	t.notice = "Подтверждено"
	status := fmt.Sprintf("✅ Заявка <code>%s</code> подтверждена.\nБилет: <code>%s</code>\nПокупатель: %s",
		p.Ref, d.ID, esc(d.BuyerName))
	if !b.deliverTicket(ctx, d) {
		b.Metrics.TrackDeliveryError()
		status = fmt.Sprintf("⚠️ Билет активирован, но не отправлен покупателю (ID <code>%d</code>).\nБилет: <code>%s</code>",
			d.BuyerChatID, d.ID)
	}
	b.reply(ctx, t, Message{Text: status})
	return t.sess.State, nil
}

// deliverTicket sends the QR image of an activated ticket to its buyer.
func (b *Bot) deliverTicket(ctx context.Context, d model.TicketDetails) bool {
	png, err := qrcode.Encode(d.ID)
	if err != nil {
		b.Log.Error("render ticket qr failed", zap.Error(err), zap.String("ticket_id", d.ID))
		return false
	}
	caption := Message{Text: fmt.Sprintf(
		"🎉 <b>Оплата подтверждена!</b>\n\nМероприятие: %s\nДата: %s\nБилет: %s\nКод: <code>%s</code>\n\nПокажите QR-код на входе.",
		esc(d.EventName), esc(d.EventDate), esc(d.ProductName), d.ID)}
	if err := b.Messenger.SendPhoto(ctx, d.BuyerChatID, File{Name: d.ID + ".png", Data: png}, caption); err != nil {
		b.Log.Warn("deliver ticket failed", zap.Error(err), zap.Int64("chat_id", d.BuyerChatID), zap.String("ticket_id", d.ID))
		return false
	}
	b.send(ctx, d.BuyerChatID, Message{
		Text:     "Ваш билет выше. Приятного мероприятия!",
		Keyboard: keyboard(row(btn("🏠 В главное меню", IntentResetToMenu))),
	})
	return true
}

// RunPendingSweeper expires stale pending tickets every interval until ctx
// is cancelled.  See sweepPending.
func (b *Bot) RunPendingSweeper(ctx context.Context, interval, olderThan time.Duration) {
	if interval <= 0 {
		return
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			b.sweepPending(ctx, olderThan)
		}
	}
}

// sweepPending discards pending tickets older than olderThan whose approval
// record no longer exists (it expired or was lost with an in-memory store).
// Such tickets can never be approved, so their unit goes back on sale and
// the buyer is told.  It returns the number of tickets expired.
func (b *Bot) sweepPending(ctx context.Context, olderThan time.Duration) int {
	stale, err := b.Tickets.StalePending(ctx, olderThan)
	if err != nil {
		b.Log.Error("list stale pending tickets failed", zap.Error(err))
		return 0
	}
	n := 0
	for _, d := range stale {
		if d.PaymentRef != "" {
			_, err := b.Pending.Peek(ctx, d.PaymentRef)
			if err == nil {
				continue
			}
			if !errors.Is(err, service.ErrPendingNotFound) {
				b.Log.Warn("peek pending approval failed", zap.Error(err), zap.String("ref", d.PaymentRef))
				continue
			}
		}
		err := b.Tickets.Expire(ctx, d)
		if errors.Is(err, repository.ErrNotFound) || errors.Is(err, repository.ErrTicketNotValid) {
			continue
		}
		if err != nil {
			b.Log.Error("expire pending ticket failed", zap.Error(err), zap.String("ticket_id", d.ID))
			continue
		}
		n++
		b.Log.Info("pending ticket expired", zap.String("ticket_id", d.ID), zap.String("ref", d.PaymentRef))
		b.send(ctx, d.BuyerChatID, Message{Text: fmt.Sprintf(
			"⌛ Заявка на оплату билета «%s» (%s) истекла, бронь снята. Если вы уже оплатили, свяжитесь с организатором.",
			esc(d.ProductName), esc(d.EventName))})
	}
	return n
}
