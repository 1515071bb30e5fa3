package bot

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/iliyamo/event-ticket-bot/internal/model"
	"github.com/iliyamo/event-ticket-bot/internal/qrcode"
	"github.com/iliyamo/event-ticket-bot/internal/repository"
	"github.com/iliyamo/event-ticket-bot/internal/service"
	"github.com/iliyamo/event-ticket-bot/internal/session"
	"github.com/iliyamo/event-ticket-bot/internal/utils"
)

const (
	maxEventNameLen = 200
	maxEventDateLen = 64
	maxProductName  = 100
)

var promoCodeRe = regexp.MustCompile(`^[A-Z0-9_-]{3,32}$`)

var statusTitles = map[model.TicketStatus]string{
	model.TicketPending:  "⏳ ОЖИДАЕТ ОПЛАТЫ",
	model.TicketActive:   "✅ АКТИВЕН",
	model.TicketUsed:     "❌ ИСПОЛЬЗОВАН",
	model.TicketRefunded: "↩️ ВОЗВРАЩЁН",
}

// Events.

func (b *Bot) adminEvents(ctx context.Context, t *turn) (session.State, error) {
	if err := b.authorizeOrg(ctx, t, service.ActionEventsManage); err != nil {
		return t.sess.State, err
	}
	a := &t.sess.Admin
	a.EventID, a.EventName = 0, ""
	events, err := b.Events.ListByOrg(ctx, a.OrgID, false)
	if err != nil {
		return t.sess.State, err
	}
	kb := make(Keyboard, 0, len(events)+3)
	for _, e := range events {
		label := fmt.Sprintf("📅 %s (%s)", e.Name, e.DateStr)
		if !e.IsActive {
			label += " [скрыто]"
		}
		kb = append(kb, row(btn(label, IntentSelectEvent, e.ID)))
	}
	kb = append(kb, row(btn("➕ Создать мероприятие", IntentCreateEvent)))
	if len(events) > 0 {
		kb = append(kb, row(btn("🗑️ Удалить мероприятие", IntentDeleteEvent)))
	}
	kb = append(kb, row(btn("🔙 Назад", IntentBackOrgMenu)))
	b.reply(ctx, t, Message{Text: "📅 <b>Мероприятия</b>", Keyboard: kb})
	return stAdminEvents, nil
}

func (b *Bot) adminAskEventName(ctx context.Context, t *turn) (session.State, error) {
	if err := b.authorizeOrg(ctx, t, service.ActionEventsManage); err != nil {
		return t.sess.State, err
	}
	b.reply(ctx, t, Message{
		Text:     "Введите <b>название</b> мероприятия:",
		Keyboard: keyboard(row(btn("🔙 Отмена", IntentEvents))),
	})
	return stAdminEventName, nil
}

func (b *Bot) adminEventNameInput(ctx context.Context, t *turn) (session.State, error) {
	name := strings.TrimSpace(t.in.Intent.Text)
	if name == "" || len([]rune(name)) > maxEventNameLen {
		b.reply(ctx, t, Message{Text: "❌ Название должно быть от 1 до 200 символов. Повторите ввод:"})
		return stAdminEventName, nil
	}
	t.sess.Admin.EventName = name
	b.reply(ctx, t, Message{
		Text:     "Введите <b>дату</b> мероприятия (например, 25.12.2026 19:00):",
		Keyboard: keyboard(row(btn("🔙 Отмена", IntentEvents))),
	})
	return stAdminEventDate, nil
}

// adminEventDateInput stores the date as typed; it is display text only.
func (b *Bot) adminEventDateInput(ctx context.Context, t *turn) (session.State, error) {
	if err := b.authorizeOrg(ctx, t, service.ActionEventsManage); err != nil {
		return t.sess.State, err
	}
	date := strings.TrimSpace(t.in.Intent.Text)
	if date == "" || len([]rune(date)) > maxEventDateLen {
		b.reply(ctx, t, Message{Text: "❌ Введите дату (до 64 символов):"})
		return stAdminEventDate, nil
	}
	a := &t.sess.Admin
	ev, err := b.Events.Create(ctx, model.Event{OrgID: a.OrgID, Name: a.EventName, DateStr: date})
	if err != nil {
		return t.sess.State, err
	}
	b.Log.Info("event created", zap.Int64("event_id", ev.ID), zap.Int64("org_id", ev.OrgID))
	b.reply(ctx, t, Message{Text: fmt.Sprintf("✅ Мероприятие <b>%s</b> создано!", esc(ev.Name))})
	a.EventName = ""
	a.EventID = ev.ID
	return b.showEventMenu(ctx, t)
}

func (b *Bot) adminDeleteEventPick(ctx context.Context, t *turn) (session.State, error) {
	if err := b.authorizeOrg(ctx, t, service.ActionEventsManage); err != nil {
		return t.sess.State, err
	}
	events, err := b.Events.ListByOrg(ctx, t.sess.Admin.OrgID, false)
	if err != nil {
		return t.sess.State, err
	}
	kb := make(Keyboard, 0, len(events)+1)
	for _, e := range events {
		kb = append(kb, row(btn("🗑️ "+e.Name, IntentDeleteEventPick, e.ID)))
	}
	kb = append(kb, row(btn("🔙 Отмена", IntentEvents)))
	b.reply(ctx, t, Message{
		Text:     "Выберите мероприятие для удаления.\n⚠️ Все билеты, тарифы и промокоды мероприятия будут удалены.",
		Keyboard: kb,
	})
	return stAdminEventDelete, nil
}

func (b *Bot) adminDeleteEvent(ctx context.Context, t *turn) (session.State, error) {
	if err := b.authorizeOrg(ctx, t, service.ActionEventsManage); err != nil {
		return t.sess.State, err
	}
	ev, err := b.orgEvent(ctx, t, t.in.Intent.ID)
	if err != nil {
		return t.sess.State, err
	}
	if err := b.Events.Delete(ctx, ev.ID); err != nil {
		return t.sess.State, err
	}
	b.Log.Info("event deleted", zap.Int64("event_id", ev.ID), zap.Int64("user_id", t.in.UserID))
	t.notice = "Удалено"
	return b.adminEvents(ctx, t)
}

// orgEvent loads an event of the organization being managed.
func (b *Bot) orgEvent(ctx context.Context, t *turn, id int64) (model.Event, error) {
	ev, err := b.Events.Get(ctx, id)
	if err != nil {
		return ev, err
	}
	if ev.OrgID != t.sess.Admin.OrgID {
		return model.Event{}, repository.ErrForbidden
	}
	return ev, nil
}

func (b *Bot) adminEventSelected(ctx context.Context, t *turn) (session.State, error) {
	if err := b.authorizeOrg(ctx, t, service.ActionEventsManage); err != nil {
		return t.sess.State, err
	}
	ev, err := b.orgEvent(ctx, t, t.in.Intent.ID)
	if err != nil {
		return t.sess.State, err
	}
	t.sess.Admin.EventID = ev.ID
	return b.showEventMenu(ctx, t)
}

func (b *Bot) adminEventMenu(ctx context.Context, t *turn) (session.State, error) {
	return b.showEventMenu(ctx, t)
}

func (b *Bot) showEventMenu(ctx context.Context, t *turn) (session.State, error) {
	a := &t.sess.Admin
	a.TicketID = ""
	ev, err := b.orgEvent(ctx, t, a.EventID)
	if err != nil {
		return t.sess.State, err
	}
	b.reply(ctx, t, Message{
		Text: fmt.Sprintf("🎫 <b>%s</b>\nДата: %s", esc(ev.Name), esc(ev.DateStr)),
		Keyboard: keyboard(
			row(btn("🎟 Тарифы", IntentListProducts), btn("➕ Добавить тариф", IntentAddProduct)),
			row(btn("🏷 Промокоды", IntentListPromos)),
			row(btn("✅ Проверить билет", IntentCheckEvent)),
			row(btn("📊 Отчет Excel", IntentReport)),
			row(btn("🔙 К мероприятиям", IntentEvents)),
		),
	})
	return stAdminEventMenu, nil
}

// Products.

func (b *Bot) adminProducts(ctx context.Context, t *turn) (session.State, error) {
	if err := b.authorizeOrg(ctx, t, service.ActionProductsManage); err != nil {
		return t.sess.State, err
	}
	products, err := b.Products.ListByEvent(ctx, t.sess.Admin.EventID)
	if err != nil {
		return t.sess.State, err
	}
	var sb strings.Builder
	sb.WriteString("🎟 <b>Тарифы</b>\n\n")
	if len(products) == 0 {
		sb.WriteString("Тарифов пока нет.")
	}
	for _, p := range products {
		limit := "∞"
		if p.QuantityLimit > 0 {
			limit = fmt.Sprintf("%d", p.QuantityLimit)
		}
		refund := "невозвратный"
		if p.IsRefundable {
			refund = "возвратный"
		}
		fmt.Fprintf(&sb, "• <b>%s</b>: %d руб., продано %d/%s, %s\n",
			esc(p.Name), p.Price, p.QuantitySold, limit, refund)
	}
	b.reply(ctx, t, Message{
		Text: sb.String(),
		Keyboard: keyboard(
			row(btn("➕ Добавить тариф", IntentAddProduct)),
			row(btn("🔙 Назад", IntentBackEventMenu)),
		),
	})
	return stAdminEventMenu, nil
}

func (b *Bot) adminAskProductName(ctx context.Context, t *turn) (session.State, error) {
	if err := b.authorizeOrg(ctx, t, service.ActionProductsManage); err != nil {
		return t.sess.State, err
	}
	a := &t.sess.Admin
	a.ProductName, a.ProductPrice, a.ProductLimit = "", 0, 0
	b.reply(ctx, t, Message{
		Text:     "Введите <b>название</b> тарифа (например, «Стандарт»):",
		Keyboard: keyboard(row(btn("🔙 Отмена", IntentBackEventMenu))),
	})
	return stAdminProductName, nil
}

func (b *Bot) adminProductNameInput(ctx context.Context, t *turn) (session.State, error) {
	name := strings.TrimSpace(t.in.Intent.Text)
	if name == "" || len([]rune(name)) > maxProductName {
		b.reply(ctx, t, Message{Text: "❌ Название должно быть от 1 до 100 символов. Повторите ввод:"})
		return stAdminProductName, nil
	}
	t.sess.Admin.ProductName = name
	b.reply(ctx, t, Message{
		Text:     "Введите <b>цену</b> в рублях (целое число):",
		Keyboard: keyboard(row(btn("🔙 Отмена", IntentBackEventMenu))),
	})
	return stAdminProductPrice, nil
}

func (b *Bot) adminProductPriceInput(ctx context.Context, t *turn) (session.State, error) {
	price, ok := parseInt(t.in.Intent.Text)
	if !ok || price < 0 || price > 10_000_000 {
		b.reply(ctx, t, Message{Text: textNotNumber})
		return stAdminProductPrice, nil
	}
	t.sess.Admin.ProductPrice = int(price)
	b.reply(ctx, t, Message{
		Text:     "Введите <b>количество</b> билетов (0 = без ограничений):",
		Keyboard: keyboard(row(btn("🔙 Отмена", IntentBackEventMenu))),
	})
	return stAdminProductLimit, nil
}

func (b *Bot) adminProductLimitInput(ctx context.Context, t *turn) (session.State, error) {
	limit, ok := parseInt(t.in.Intent.Text)
	if !ok || limit < 0 || limit > 1_000_000 {
		b.reply(ctx, t, Message{Text: "❌ Количество должно быть целым числом (0 или больше). Повторите ввод:"})
		return stAdminProductLimit, nil
	}
	t.sess.Admin.ProductLimit = int(limit)
	b.reply(ctx, t, Message{
		Text: "Билет <b>возвратный</b>?",
		Keyboard: keyboard(
			row(btn("✅ Да", IntentRefundableYes), btn("❌ Нет", IntentRefundableNo)),
			row(btn("🔙 Отмена", IntentBackEventMenu)),
		),
	})
	return stAdminProductRefund, nil
}

func (b *Bot) adminProductSave(ctx context.Context, t *turn) (session.State, error) {
	if err := b.authorizeOrg(ctx, t, service.ActionProductsManage); err != nil {
		return t.sess.State, err
	}
	a := &t.sess.Admin
	if a.ProductName == "" {
		return b.showEventMenu(ctx, t)
	}
	p, err := b.Products.Create(ctx, model.Product{
		EventID:       a.EventID,
		Name:          a.ProductName,
		Price:         a.ProductPrice,
		QuantityLimit: a.ProductLimit,
		IsRefundable:  t.in.Intent.Kind == IntentRefundableYes,
	})
	if err != nil {
		return t.sess.State, err
	}
	a.ProductName, a.ProductPrice, a.ProductLimit = "", 0, 0
	b.send(ctx, t.in.ChatID, Message{Text: fmt.Sprintf("✅ Тариф <b>%s</b> (%d руб.) добавлен.", esc(p.Name), p.Price)})
	return b.showEventMenu(ctx, t)
}

// Promo codes.

func (b *Bot) adminPromos(ctx context.Context, t *turn) (session.State, error) {
	if err := b.authorizeOrg(ctx, t, service.ActionPromosManage); err != nil {
		return t.sess.State, err
	}
	promos, err := b.Promos.ListByEvent(ctx, t.sess.Admin.EventID)
	if err != nil {
		return t.sess.State, err
	}
	var sb strings.Builder
	sb.WriteString("🏷 <b>Промокоды</b>\n\n")
	if len(promos) == 0 {
		sb.WriteString("Промокодов пока нет.")
	}
	kb := make(Keyboard, 0, len(promos)+2)
	for _, p := range promos {
		limit := "∞"
		if p.UsageLimit > 0 {
			limit = fmt.Sprintf("%d", p.UsageLimit)
		}
		fmt.Fprintf(&sb, "• <code>%s</code>: -%d%%, использовано %d/%s\n", esc(p.Code), p.DiscountPercent, p.UsedCount, limit)
		kb = append(kb, row(btn("🗑 "+p.Code, IntentDeletePromo, p.Code)))
	}
	kb = append(kb,
		row(btn("➕ Создать промокод", IntentCreatePromo)),
		row(btn("🔙 Назад", IntentBackEventMenu)),
	)
	b.reply(ctx, t, Message{Text: sb.String(), Keyboard: kb})
	return stAdminPromos, nil
}

func (b *Bot) adminAskPromoCode(ctx context.Context, t *turn) (session.State, error) {
	if err := b.authorizeOrg(ctx, t, service.ActionPromosManage); err != nil {
		return t.sess.State, err
	}
	a := &t.sess.Admin
	a.PromoCode, a.PromoPercent = "", 0
	b.reply(ctx, t, Message{
		Text:     "Введите <b>код</b> промокода (латиница и цифры, 3–32 символа):",
		Keyboard: keyboard(row(btn("🔙 Отмена", IntentListPromos))),
	})
	return stAdminPromoCode, nil
}

func (b *Bot) adminPromoCodeInput(ctx context.Context, t *turn) (session.State, error) {
	code := repository.NormalizeCode(t.in.Intent.Text)
	if !promoCodeRe.MatchString(code) {
		b.reply(ctx, t, Message{Text: "❌ Код может содержать только латинские буквы, цифры, «-» и «_» (3–32 символа). Повторите ввод:"})
		return stAdminPromoCode, nil
	}
	t.sess.Admin.PromoCode = code
	b.reply(ctx, t, Message{
		Text:     "Введите <b>Процент скидки</b> (1-100):",
		Keyboard: keyboard(row(btn("🔙 Отмена", IntentListPromos))),
	})
	return stAdminPromoPercent, nil
}

func (b *Bot) adminPromoPercentInput(ctx context.Context, t *turn) (session.State, error) {
	v, ok := parseInt(t.in.Intent.Text)
	if !ok || v < 1 || v > 100 {
		b.reply(ctx, t, Message{Text: "❌ Введите число от 1 до 100."})
		return stAdminPromoPercent, nil
	}
	t.sess.Admin.PromoPercent = int(v)
	b.reply(ctx, t, Message{
		Text:     "Введите <b>Лимит использования</b> (0 = безлимит):",
		Keyboard: keyboard(row(btn("🔙 Отмена", IntentListPromos))),
	})
	return stAdminPromoLimit, nil
}

func (b *Bot) adminPromoLimitInput(ctx context.Context, t *turn) (session.State, error) {
	if err := b.authorizeOrg(ctx, t, service.ActionPromosManage); err != nil {
		return t.sess.State, err
	}
	limit, ok := parseInt(t.in.Intent.Text)
	if !ok || limit < 0 || limit > 1_000_000 {
		b.reply(ctx, t, Message{Text: "❌ Введите целое число (0 или больше)."})
		return stAdminPromoLimit, nil
	}
	a := &t.sess.Admin
	p, err := b.Promos.Create(ctx, model.PromoCode{
		Code:            a.PromoCode,
		EventID:         a.EventID,
		DiscountPercent: a.PromoPercent,
		UsageLimit:      int(limit),
	})
	if errors.Is(err, repository.ErrConflict) {
		b.reply(ctx, t, Message{Text: "❌ Такой код уже существует. Введите другой код:"})
		return stAdminPromoCode, nil
	}
	if err != nil {
		return t.sess.State, err
	}
	a.PromoCode, a.PromoPercent = "", 0
	b.send(ctx, t.in.ChatID, Message{Text: fmt.Sprintf("✅ Промокод <b>%s</b> создан!", esc(p.Code))})
	return b.adminPromos(ctx, t)
}

func (b *Bot) adminDeletePromo(ctx context.Context, t *turn) (session.State, error) {
	if err := b.authorizeOrg(ctx, t, service.ActionPromosManage); err != nil {
		return t.sess.State, err
	}
	err := b.Promos.Delete(ctx, t.in.Intent.Arg, t.sess.Admin.EventID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return t.sess.State, err
	}
	t.notice = "Удалено"
	return b.adminPromos(ctx, t)
}

// Reports.

// adminReport sends the workbook of the current event.  When link signing
// is configured a time-limited download link is added.
func (b *Bot) adminReport(ctx context.Context, t *turn) (session.State, error) {
	if err := b.authorizeOrg(ctx, t, service.ActionReportsExport); err != nil {
		return t.sess.State, err
	}
	if _, err := b.orgEvent(ctx, t, t.sess.Admin.EventID); err != nil {
		return t.sess.State, err
	}
	rep, err := b.Reports.Export(ctx, t.sess.Admin.EventID)
	if err != nil {
		return t.sess.State, err
	}
	t.notice = "Генерирую отчет..."
	caption := fmt.Sprintf("📊 %s: %d билетов", rep.Event.Name, rep.Rows)
	if err := b.Messenger.SendDocument(ctx, t.in.ChatID, File{Name: rep.Filename, Data: rep.Data}, caption); err != nil {
		b.Metrics.TrackDeliveryError()
		b.Log.Warn("send report failed", zap.Error(err), zap.Int64("event_id", rep.Event.ID))
		b.send(ctx, t.in.ChatID, Message{Text: "⚠️ Не удалось отправить отчет."})
	}
	if b.ReportSecret != "" && b.PublicBaseURL != "" {
		tok, err := utils.NewReportToken(b.ReportSecret, rep.Event.ID, t.in.UserID, b.ReportLinkTTL)
		if err != nil {
			b.Log.Warn("sign report link failed", zap.Error(err))
		} else {
			b.send(ctx, t.in.ChatID, Message{Text: fmt.Sprintf(
				"🔗 Ссылка на отчет (до %s UTC):\n%s/v1/reports/%s",
				tok.Exp.Format("02.01.2006 15:04"), strings.TrimRight(b.PublicBaseURL, "/"), tok.Token)})
		}
	}
	return stAdminEventMenu, nil
}

// Ticket checks.

func (b *Bot) checkBack() Button {
	return btn("🔙 Закончить проверку", IntentBackOrgMenu)
}

func (b *Bot) checkBackFor(t *turn) Button {
	if t.sess.Admin.EventID != 0 {
		return btn("🔙 Закончить проверку", IntentBackEventMenu)
	}
	return b.checkBack()
}

func (b *Bot) adminCheckStart(ctx context.Context, t *turn) (session.State, error) {
	if err := b.authorizeOrg(ctx, t, service.ActionTicketsCheck); err != nil {
		return t.sess.State, err
	}
	if t.in.Intent.Kind == IntentCheckOrg {
		t.sess.Admin.EventID = 0
	}
	t.sess.Admin.TicketID = ""
	b.reply(ctx, t, Message{
		Text:     "📸 Отправьте фото QR-кода или введите ID билета:",
		Keyboard: keyboard(row(b.checkBackFor(t))),
	})
	return stAdminCheck, nil
}

// ticketCode extracts the code from a typed message or a QR photo.
func (b *Bot) ticketCode(ctx context.Context, t *turn) (string, error) {
	if t.in.Intent.Kind != IntentPhoto {
		return service.NormalizeTicketCode(t.in.Intent.Text), nil
	}
	data, err := b.Messenger.DownloadFile(ctx, t.in.Intent.FileID)
	if err != nil {
		return "", err
	}
	code, err := qrcode.Decode(data)
	if err != nil {
		return "", err
	}
	return service.NormalizeTicketCode(code), nil
}

func (b *Bot) adminCheckInput(ctx context.Context, t *turn) (session.State, error) {
	back := keyboard(row(b.checkBackFor(t)))
	code, err := b.ticketCode(ctx, t)
	if errors.Is(err, qrcode.ErrNoCode) || (err == nil && code == "") {
		b.reply(ctx, t, Message{Text: "❌ Код не распознан. Попробуйте четче или введите ID вручную:", Keyboard: back})
		return stAdminCheck, nil
	}
	if err != nil {
		return t.sess.State, err
	}
	d, err := b.Tickets.Check(ctx, code, t.in.UserID, t.sess.Admin.OrgID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		b.reply(ctx, t, Message{Text: "❌ Билет не найден.", Keyboard: back})
		return stAdminCheck, nil
	case errors.Is(err, repository.ErrForbidden):
		b.reply(ctx, t, Message{Text: "❌ Билет от другой организации!", Keyboard: back})
		return stAdminCheck, nil
	case err != nil:
		return t.sess.State, err
	}
	t.sess.Admin.TicketID = d.ID
	b.reply(ctx, t, b.ticketCard(t, d))
	return stAdminCheck, nil
}

func (b *Bot) ticketCard(t *turn, d model.TicketDetails) Message {
	kb := make(Keyboard, 0, 3)
	if d.Redeemable() {
		kb = append(kb, row(btn("✅ ПРОПУСТИТЬ", IntentUseTicket, d.ID)))
		if d.IsRefundable {
			kb = append(kb, row(btn("↩️ Оформить возврат", IntentAdminRefund, d.ID)))
		}
	}
	kb = append(kb, row(b.checkBackFor(t)))
	return Message{
		Text: fmt.Sprintf("🔎 <b>Билет:</b> <code>%s</code>\nИвент: %s (%s)\nТариф: %s\nПокупатель: %s\nСтатус: %s",
			d.ID, esc(d.EventName), esc(d.EventDate), esc(d.ProductName), esc(d.BuyerName), statusTitles[d.Status()]),
		Keyboard: kb,
	}
}

func (b *Bot) adminUseTicket(ctx context.Context, t *turn) (session.State, error) {
	back := keyboard(row(b.checkBackFor(t)))
	d, err := b.Tickets.Redeem(ctx, t.in.Intent.Arg, t.in.UserID, t.sess.Admin.OrgID)
	switch {
	case errors.Is(err, repository.ErrTicketNotValid):
		t.notice = "Билет недействителен"
		b.reply(ctx, t, Message{Text: "❌ Билет уже использован или не активен.", Keyboard: back})
		return stAdminCheck, nil
	case errors.Is(err, repository.ErrForbidden):
		b.reply(ctx, t, Message{Text: "❌ Билет от другой организации!", Keyboard: back})
		return stAdminCheck, nil
	case err != nil:
		return t.sess.State, err
	}
	t.notice = "Пропущен"
	b.reply(ctx, t, Message{
		Text:     fmt.Sprintf("✅ Билет <code>%s</code> погашен. Жду следующий...", d.ID),
		Keyboard: back,
	})
	return stAdminCheck, nil
}

func (b *Bot) adminRefundTicket(ctx context.Context, t *turn) (session.State, error) {
	back := keyboard(row(b.checkBackFor(t)))
	d, err := b.Tickets.RefundByAdmin(ctx, t.in.Intent.Arg, t.in.UserID, t.sess.Admin.OrgID)
	switch {
	case errors.Is(err, repository.ErrNotRefundable):
		b.reply(ctx, t, Message{Text: "❌ Этот билет невозвратный.", Keyboard: back})
		return stAdminCheck, nil
	case errors.Is(err, repository.ErrTicketNotValid):
		b.reply(ctx, t, Message{Text: "❌ Билет уже использован или возвращён.", Keyboard: back})
		return stAdminCheck, nil
	case errors.Is(err, repository.ErrForbidden):
		b.reply(ctx, t, Message{Text: "❌ Билет от другой организации!", Keyboard: back})
		return stAdminCheck, nil
	case err != nil:
		return t.sess.State, err
	}
	b.reply(ctx, t, Message{
		Text:     fmt.Sprintf("↩️ Билет <code>%s</code> возвращён, место освобождено. Верните покупателю %d руб.", d.ID, d.FinalPrice),
		Keyboard: back,
	})
	b.send(ctx, d.BuyerChatID, Message{Text: fmt.Sprintf(
		"↩️ Ваш билет <code>%s</code> на «%s» возвращён организатором.", d.ID, esc(d.EventName))})
	return stAdminCheck, nil
}
