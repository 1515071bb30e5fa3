package bot

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"go.uber.org/zap"

	"github.com/iliyamo/event-ticket-bot/internal/model"
	"github.com/iliyamo/event-ticket-bot/internal/repository"
	"github.com/iliyamo/event-ticket-bot/internal/service"
	"github.com/iliyamo/event-ticket-bot/internal/session"
	"github.com/iliyamo/event-ticket-bot/internal/utils"
)

const maxNameLen = 120

// buyerStart is the /start entry: authenticated users land on the main
// menu, everyone else on the login/register greeting.
func (b *Bot) buyerStart(ctx context.Context, t *turn) (session.State, error) {
	t.sess.Enter(session.FlowBuyer, stBuyerAuth)
	u, err := b.Users.Get(ctx, t.in.UserID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return stateEnd, err
	}
	if u.IsAuthenticated {
		return b.showMainMenu(ctx, t, false)
	}
	return b.buyerGreeting(ctx, t)
}

// buyerResetToMenu handles the "back to menu" button sent with an issued
// ticket, whatever the session currently holds.
func (b *Bot) buyerResetToMenu(ctx context.Context, t *turn) (session.State, error) {
	t.sess.Enter(session.FlowBuyer, stBuyerAuth)
	u, err := b.Users.Get(ctx, t.in.UserID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return stateEnd, err
	}
	if u.IsAuthenticated {
		return b.showMainMenu(ctx, t, false)
	}
	return b.buyerGreeting(ctx, t)
}

func (b *Bot) buyerGreeting(ctx context.Context, t *turn) (session.State, error) {
	t.sess.Buyer = session.BuyerDraft{}
	b.reply(ctx, t, Message{
		Text: "👋 Добро пожаловать!\nДля продолжения работы необходимо войти или зарегистрироваться.",
		Keyboard: keyboard(
			row(btn("🔑 Войти", IntentAuthLogin)),
			row(btn("📝 Регистрация", IntentAuthRegister)),
		),
	})
	return stBuyerAuth, nil
}

func (b *Bot) buyerAskLogin(ctx context.Context, t *turn) (session.State, error) {
	b.reply(ctx, t, Message{
		Text:     "Введите ваш <b>Логин</b>:",
		Keyboard: keyboard(row(btn("🔙 Назад", IntentAuthExit))),
	})
	return stBuyerLogin, nil
}

func (b *Bot) buyerLoginInput(ctx context.Context, t *turn) (session.State, error) {
	login := service.NormalizeLogin(t.in.Intent.Text)
	taken, err := b.Auth.LoginTaken(ctx, login)
	if err != nil {
		return t.sess.State, err
	}
	if !taken {
		b.reply(ctx, t, Message{Text: "❌ Пользователь с таким логином не найден. Попробуйте снова или нажмите /cancel:"})
		return stBuyerLogin, nil
	}
	t.sess.Buyer.TempLogin = login
	b.reply(ctx, t, Message{
		Text:     "Введите <b>Пароль</b>:",
		Keyboard: keyboard(row(btn("🔙 Назад", IntentAuthExit))),
	})
	return stBuyerPassword, nil
}

func (b *Bot) buyerPasswordInput(ctx context.Context, t *turn) (session.State, error) {
	err := b.Auth.Login(ctx, t.in.UserID, t.sess.Buyer.TempLogin, t.in.Intent.Text)
	if errors.Is(err, service.ErrBadCredentials) {
		b.reply(ctx, t, Message{Text: "❌ Неверный пароль. Попробуйте снова или нажмите /cancel:"})
		return stBuyerPassword, nil
	}
	if err != nil {
		return t.sess.State, err
	}
	t.sess.Buyer.TempLogin = ""
	b.reply(ctx, t, Message{Text: "✅ Авторизация успешна!"})
	return b.showMainMenu(ctx, t, false)
}

func (b *Bot) buyerAskRegister(ctx context.Context, t *turn) (session.State, error) {
	b.reply(ctx, t, Message{
		Text: "📝 <b>Регистрация</b>\n\nВведите желаемый <b>Логин</b>.\n" +
			"<i>Критерии: 3–20 символов, только латинские буквы и цифры.</i>",
		Keyboard: keyboard(row(btn("🔙 Назад", IntentAuthExit))),
	})
	return stBuyerRegLogin, nil
}

func (b *Bot) buyerRegisterLoginInput(ctx context.Context, t *turn) (session.State, error) {
	login := service.NormalizeLogin(t.in.Intent.Text)
	if service.ValidateLogin(login) != nil {
		b.reply(ctx, t, Message{Text: "❌ Логин не соответствует критериям. Попробуйте снова:"})
		return stBuyerRegLogin, nil
	}
	taken, err := b.Auth.LoginTaken(ctx, login)
	if err != nil {
		return t.sess.State, err
	}
	if taken {
		b.reply(ctx, t, Message{Text: "❌ Логин уже занят. Попробуйте другой:"})
		return stBuyerRegLogin, nil
	}
	t.sess.Buyer.TempLogin = login
	b.reply(ctx, t, Message{
		Text: "✅ Логин принят. Введите <b>Пароль</b>.\n" +
			"<i>Критерии: от 6 символов, должен содержать хотя бы одну заглавную букву, одну строчную букву и одну цифру.</i>",
		Keyboard: keyboard(row(btn("🔙 Назад", IntentAuthExit))),
	})
	return stBuyerRegPassword, nil
}

func (b *Bot) buyerRegisterPasswordInput(ctx context.Context, t *turn) (session.State, error) {
	err := b.Auth.Register(ctx, t.in.UserID, t.sess.Buyer.TempLogin, strings.TrimSpace(t.in.Intent.Text))
	switch {
	case errors.Is(err, service.ErrWeakPassword):
		b.reply(ctx, t, Message{Text: "❌ Пароль не соответствует критериям. Попробуйте снова:"})
		return stBuyerRegPassword, nil
	case errors.Is(err, repository.ErrConflict), errors.Is(err, service.ErrInvalidLogin):
		b.reply(ctx, t, Message{Text: "❌ Логин уже занят. Введите другой логин:"})
		return stBuyerRegLogin, nil
	case err != nil:
		return t.sess.State, err
	}
	t.sess.Buyer.TempLogin = ""
	b.reply(ctx, t, Message{Text: "🎉 Регистрация успешна! Выполнен вход."})
	return b.showMainMenu(ctx, t, false)
}

func (b *Bot) buyerMainMenu(ctx context.Context, t *turn) (session.State, error) {
	return b.showMainMenu(ctx, t, true)
}

// showMainMenu renders the main menu, editing the current message when
// edit is set.  The buyer draft is discarded.
func (b *Bot) showMainMenu(ctx context.Context, t *turn, edit bool) (session.State, error) {
	t.sess.Buyer = session.BuyerDraft{}
	m := Message{
		Text: "🚀 <b>Главное меню</b>\nВыберите действие:",
		Keyboard: keyboard(
			row(btn("🎫 Купить билет", IntentBuyStart)),
			row(btn("🎟 Мои билеты", IntentMyTickets)),
			row(btn("🚪 Выход", IntentAuthExit)),
		),
	}
	if edit {
		b.reply(ctx, t, m)
	} else {
		b.send(ctx, t.in.ChatID, m)
	}
	return stBuyerMenu, nil
}

func (b *Bot) buyerLogout(ctx context.Context, t *turn) (session.State, error) {
	if err := b.Auth.Logout(ctx, t.in.UserID); err != nil {
		return t.sess.State, err
	}
	return b.buyerGreeting(ctx, t)
}

func (b *Bot) backToMenuKeyboard() Keyboard {
	return keyboard(row(btn("🏠 В главное меню", IntentMainMenu)))
}

func (b *Bot) buyerBuyStart(ctx context.Context, t *turn) (session.State, error) {
	t.sess.Buyer = session.BuyerDraft{}
	orgs, err := b.Orgs.List(ctx)
	if err != nil {
		return t.sess.State, err
	}
	switch len(orgs) {
	case 0:
		b.reply(ctx, t, Message{Text: "Нет доступных мероприятий.", Keyboard: b.backToMenuKeyboard()})
		return stBuyerMenu, nil
	case 1:
		return b.selectOrg(ctx, t, orgs[0].ID)
	}
	kb := make(Keyboard, 0, len(orgs)+1)
	for _, o := range orgs {
		kb = append(kb, row(btn(o.Name, IntentBuyOrg, o.ID)))
	}
	kb = append(kb, row(btn("🔙 Назад", IntentMainMenu)))
	b.reply(ctx, t, Message{Text: "Выберите организатора:", Keyboard: kb})
	return stBuyerOrgs, nil
}

func (b *Bot) buyerOrgSelected(ctx context.Context, t *turn) (session.State, error) {
	return b.selectOrg(ctx, t, t.in.Intent.ID)
}

// blocked reports whether the buyer is on the organization's or the global
// blacklist and tells them so.
func (b *Bot) blocked(ctx context.Context, t *turn, orgID int64) (bool, error) {
	blocked, err := b.Blacklist.IsBlocked(ctx, orgID, t.in.UserID)
	if err != nil || !blocked {
		return false, err
	}
	b.reply(ctx, t, Message{Text: textBlacklisted, Keyboard: b.backToMenuKeyboard()})
	return true, nil
}

func (b *Bot) selectOrg(ctx context.Context, t *turn, orgID int64) (session.State, error) {
	if _, err := b.Orgs.Get(ctx, orgID); err != nil {
		return t.sess.State, err
	}
	if blocked, err := b.blocked(ctx, t, orgID); err != nil || blocked {
		return stBuyerMenu, err
	}
	t.sess.Buyer.OrgID = orgID
	return b.showEvents(ctx, t)
}

func (b *Bot) buyerEventsList(ctx context.Context, t *turn) (session.State, error) {
	return b.showEvents(ctx, t)
}

func (b *Bot) showEvents(ctx context.Context, t *turn) (session.State, error) {
	events, err := b.Events.ListByOrg(ctx, t.sess.Buyer.OrgID, true)
	if err != nil {
		return t.sess.State, err
	}
	text := "Выберите мероприятие:"
	if len(events) == 0 {
		text = "Нет активных мероприятий."
	}
	kb := make(Keyboard, 0, len(events)+1)
	for _, e := range events {
		kb = append(kb, row(btn(fmt.Sprintf("%s (%s)", e.Name, e.DateStr), IntentBuyEvent, e.ID)))
	}
	kb = append(kb, row(btn("🔙 Назад", IntentBuyStart)))
	b.reply(ctx, t, Message{Text: text, Keyboard: kb})
	return stBuyerEvents, nil
}

func (b *Bot) buyerEventSelected(ctx context.Context, t *turn) (session.State, error) {
	ev, err := b.Events.Get(ctx, t.in.Intent.ID)
	if err != nil {
		return t.sess.State, err
	}
	if ev.OrgID != t.sess.Buyer.OrgID {
		return t.sess.State, repository.ErrNotFound
	}
	if blocked, err := b.blocked(ctx, t, ev.OrgID); err != nil || blocked {
		return stBuyerMenu, err
	}
	t.sess.Buyer.EventID = ev.ID
	t.sess.Buyer.ProductID = 0
	return b.showProducts(ctx, t, "")
}

func (b *Bot) showProducts(ctx context.Context, t *turn, prefix string) (session.State, error) {
	products, err := b.Products.ListByEvent(ctx, t.sess.Buyer.EventID)
	if err != nil {
		return t.sess.State, err
	}
	text := prefix + "Выберите билет:"
	if len(products) == 0 {
		text = prefix + "Билетов нет в продаже."
	}
	kb := make(Keyboard, 0, len(products)+1)
	for _, p := range products {
		label := fmt.Sprintf("%s - %d руб.", p.Name, p.Price)
		if p.QuantityLimit > 0 && p.Remaining() == 0 {
			label += " (нет в наличии)"
		}
		kb = append(kb, row(btn(label, IntentBuyProduct, p.ID)))
	}
	kb = append(kb, row(btn("🔙 Назад", IntentEventsList)))
	b.reply(ctx, t, Message{Text: text, Keyboard: kb})
	return stBuyerProducts, nil
}

// buyerProductSelected runs the advisory availability check.  Only the
// check inside the purchase transaction is binding; this one may be stale.
func (b *Bot) buyerProductSelected(ctx context.Context, t *turn) (session.State, error) {
	info, err := b.Products.GetInfo(ctx, t.in.Intent.ID)
	if err != nil {
		return t.sess.State, err
	}
	if info.EventID != t.sess.Buyer.EventID {
		return t.sess.State, repository.ErrNotFound
	}
	available, remaining, err := b.Products.Availability(ctx, info.ID)
	if err != nil {
		return t.sess.State, err
	}
	if !available {
		return b.showProducts(ctx, t, textSoldOut+"\n\n")
	}
	t.sess.Buyer.ProductID = info.ID

	remText := ""
	if remaining != model.UnlimitedRemaining {
		remText = fmt.Sprintf(" (Осталось: %d)", remaining)
	}
	b.reply(ctx, t, Message{
		Text: fmt.Sprintf("Выбрано: <b>%s</b>\nЦена: %d руб.%s\n\nВведите ваше <b>ФИО</b>:",
			esc(info.Name), info.Price, remText),
		Keyboard: keyboard(row(btn("🔙 К выбору билетов", IntentBuyEvent, info.EventID))),
	})
	return stBuyerName, nil
}

func (b *Bot) buyerNameInput(ctx context.Context, t *turn) (session.State, error) {
	name := strings.TrimSpace(t.in.Intent.Text)
	if name == "" || len([]rune(name)) > maxNameLen {
		b.reply(ctx, t, Message{Text: "❌ Введите ФИО (до 120 символов):"})
		return stBuyerName, nil
	}
	t.sess.Buyer.Name = name
	return b.askEmail(ctx, t)
}

func (b *Bot) askEmail(ctx context.Context, t *turn) (session.State, error) {
	b.reply(ctx, t, Message{
		Text:     "Введите <b>Email</b>:",
		Keyboard: keyboard(row(btn("❌ Отмена", IntentBuyStart))),
	})
	return stBuyerEmail, nil
}

func (b *Bot) buyerBackToEmail(ctx context.Context, t *turn) (session.State, error) {
	t.sess.Buyer.PromoCode = ""
	t.sess.Buyer.PayRef = ""
	return b.askEmail(ctx, t)
}

func (b *Bot) buyerEmailInput(ctx context.Context, t *turn) (session.State, error) {
	raw := strings.TrimSpace(t.in.Intent.Text)
	addr, err := mail.ParseAddress(raw)
	if err != nil || addr.Address != raw {
		b.reply(ctx, t, Message{Text: "❌ Некорректный Email. Повторите ввод:"})
		return stBuyerEmail, nil
	}
	t.sess.Buyer.Email = addr.Address
	b.reply(ctx, t, Message{
		Text: "У вас есть <b>Промокод</b>? Введите его сообщением или нажмите кнопку:",
		Keyboard: keyboard(
			row(btn("Нет промокода", IntentSkipPromo)),
			row(btn("❌ Отмена", IntentBuyStart)),
		),
	})
	return stBuyerPromo, nil
}

func (b *Bot) buyerPromoInput(ctx context.Context, t *turn) (session.State, error) {
	q, err := b.Tickets.Quote(ctx, t.sess.Buyer.ProductID, t.in.Intent.Text)
	switch {
	case errors.Is(err, repository.ErrPromoExhausted),
		errors.Is(err, repository.ErrNotFound) && q.Product.ID != 0:
		t.sess.Buyer.PromoCode = ""
		b.reply(ctx, t, Message{Text: "❌ Промокод не найден или истек лимит. Продолжаем без него."})
	case err != nil:
		return t.sess.State, err
	case q.Promo != nil:
		t.sess.Buyer.PromoCode = q.Promo.Code
		b.reply(ctx, t, Message{Text: fmt.Sprintf("✅ Промокод <b>%s</b> применен! Скидка %d%%.",
			esc(q.Promo.Code), q.Promo.DiscountPercent)})
	}
	return b.showConfirm(ctx, t)
}

func (b *Bot) buyerSkipPromo(ctx context.Context, t *turn) (session.State, error) {
	t.sess.Buyer.PromoCode = ""
	return b.showConfirm(ctx, t)
}

// showConfirm re-quotes the order so the buyer sees the current price.  A
// promo exhausted in the meantime is dropped.
func (b *Bot) showConfirm(ctx context.Context, t *turn) (session.State, error) {
	d := &t.sess.Buyer
	q, err := b.Tickets.Quote(ctx, d.ProductID, d.PromoCode)
	if d.PromoCode != "" && (errors.Is(err, repository.ErrPromoExhausted) || errors.Is(err, repository.ErrNotFound)) {
		d.PromoCode = ""
		q, err = b.Tickets.Quote(ctx, d.ProductID, "")
	}
	if err != nil {
		return t.sess.State, err
	}
	d.FinalPrice = q.FinalPrice

	promoText := "Нет"
	if q.Promo != nil {
		promoText = fmt.Sprintf("%s (-%d%%)", esc(q.Promo.Code), q.Promo.DiscountPercent)
	}
	b.reply(ctx, t, Message{
		Text: fmt.Sprintf("<b>Подтверждение заказа:</b>\nИвент: %s\nБилет: %s\nПокупатель: %s\nEmail: %s\nПромокод: %s\n"+
			"-------------------\n<b>К оплате: %d руб.</b>",
			esc(q.Product.EventName), esc(q.Product.Name), esc(d.Name), esc(d.Email), promoText, q.FinalPrice),
		Keyboard: keyboard(
			row(btn(fmt.Sprintf("💳 Оплатить %d руб.", q.FinalPrice), IntentPay)),
			row(btn("🔙 Назад", IntentBackToEmail)),
		),
	})
	return stBuyerConfirm, nil
}

func (b *Bot) buyerPay(ctx context.Context, t *turn) (session.State, error) {
	d := &t.sess.Buyer
	org, err := b.Orgs.Get(ctx, d.OrgID)
	if err != nil {
		return t.sess.State, err
	}
	card := org.BankCard
	if card == "" {
		card = textNoCard
	}
	d.PayRef = utils.NewPaymentRef()
	b.reply(ctx, t, Message{
		Text: fmt.Sprintf("💳 <b>ОПЛАТА</b>\n\n<b>Сумма:</b> %d руб.\n<b>Получатель (номер карты):</b> <code>%s</code>\n"+
			"<b>Номер заявки:</b> <code>%s</code>\n\n"+
			"❗ <b>НЕ УКАЗЫВАЙТЕ НИКАКИХ КОММЕНТАРИЕВ К ПЛАТЕЖУ!</b>\n"+
			"Просто переведите сумму на указанную карту и нажмите кнопку <b>«Я оплатил»</b>.",
			d.FinalPrice, esc(card), d.PayRef),
		Keyboard: keyboard(
			row(btn("✅ Я оплатил", IntentPaid)),
			row(btn("🔙 Назад к вводу email", IntentBackToEmail)),
		),
	})
	return stBuyerPayment, nil
}

// buyerPaid creates the pending ticket through the ledger, stores the
// approval record and notifies the approvers.
func (b *Bot) buyerPaid(ctx context.Context, t *turn) (session.State, error) {
	d := &t.sess.Buyer
	if blocked, err := b.blocked(ctx, t, d.OrgID); err != nil || blocked {
		return stBuyerMenu, err
	}
	if d.PayRef == "" {
		d.PayRef = utils.NewPaymentRef()
	}
	tk, q, err := b.Tickets.Purchase(ctx, service.PurchaseRequest{
		ProductID:  d.ProductID,
		BuyerID:    t.in.UserID,
		BuyerName:  d.Name,
		BuyerEmail: d.Email,
		PromoCode:  d.PromoCode,
		PaymentRef: d.PayRef,
	})
	switch {
	case errors.Is(err, repository.ErrSoldOut):
		return b.showProducts(ctx, t,
			"❌ Не удалось создать заявку. Билеты этой категории закончились. Попробуйте другую категорию.\n\n")
	case errors.Is(err, repository.ErrPromoExhausted):
		d.PromoCode = ""
		b.reply(ctx, t, Message{Text: "❌ Лимит промокода исчерпан, пока вы оформляли заказ."})
		return b.showConfirm(ctx, t)
	case err != nil:
		return t.sess.State, err
	}

	p := service.PendingApproval{
		Ref:       d.PayRef,
		TicketID:  tk.ID,
		BuyerID:   t.in.UserID,
		BuyerName: tk.BuyerName,
		ProductID: tk.ProductID,
		EventID:   q.Product.EventID,
		OrgID:     q.Product.OrgID,
		Amount:    tk.FinalPrice,
		CreatedAt: tk.PurchaseDate,
	}
	if err := b.Pending.Put(ctx, p); err != nil {
		if aerr := b.Tickets.Abandon(ctx, tk.ID); aerr != nil {
			b.Log.Error("abandon ticket failed", zap.Error(aerr), zap.String("ticket_id", tk.ID))
		}
		return t.sess.State, fmt.Errorf("store pending approval: %w", err)
	}

	delivered := b.notifyApprovers(ctx, p, q)
	text := "✅ Заявка отправлена! Ожидайте билет после проверки платежа."
	if delivered == 0 {
		text += "\n⚠️ Не удалось уведомить организатора, свяжитесь с ним и назовите номер заявки <code>" + p.Ref + "</code>."
	}
	t.sess.Buyer = session.BuyerDraft{}
	b.reply(ctx, t, Message{Text: text, Keyboard: b.backToMenuKeyboard()})
	return stBuyerMenu, nil
}

// approvers returns the super admin and the organization owner, without
// duplicates and unset ids.
func (b *Bot) approvers(ctx context.Context, orgID int64) []int64 {
	var ids []int64
	if id := b.Access.SuperAdminID(); id != 0 {
		ids = append(ids, id)
	}
	org, err := b.Orgs.Get(ctx, orgID)
	if err != nil {
		b.Log.Warn("load organization for approvers", zap.Error(err), zap.Int64("org_id", orgID))
		return ids
	}
	if org.OwnerID != 0 && (len(ids) == 0 || ids[0] != org.OwnerID) {
		ids = append(ids, org.OwnerID)
	}
	return ids
}

func (b *Bot) notifyApprovers(ctx context.Context, p service.PendingApproval, q service.Quote) int {
	m := Message{
		Text: fmt.Sprintf("💰 <b>Новая оплата</b>\nОрганизация: %s\nМероприятие: %s\nБилет: %s\nСумма: %d руб.\n"+
			"Ref: <code>%s</code>\nПокупатель: %s",
			esc(q.Product.OrgName), esc(q.Product.EventName), esc(q.Product.Name), p.Amount, p.Ref, esc(p.BuyerName)),
		Keyboard: keyboard(
			row(btn("✅ Подтвердить", IntentApprove, p.Ref)),
			row(btn("❌ Отклонить", IntentReject, p.Ref)),
		),
	}
	n := 0
	for _, id := range b.approvers(ctx, p.OrgID) {
		if b.send(ctx, id, m) {
			n++
		} else {
			b.Log.Error("approval notification not delivered", zap.Int64("chat_id", id), zap.String("ref", p.Ref))
		}
	}
	return n
}

func (b *Bot) buyerMyTickets(ctx context.Context, t *turn) (session.State, error) {
	list, err := b.Tickets.ListMine(ctx, t.in.UserID)
	if err != nil {
		return t.sess.State, err
	}
	var sb strings.Builder
	sb.WriteString("🎟 <b>Мои билеты</b>\n\n")
	if len(list) == 0 {
		sb.WriteString("У вас пока нет активных билетов.")
	}
	kb := make(Keyboard, 0, len(list)+1)
	for _, d := range list {
		fmt.Fprintf(&sb, "• <code>%s</code> — %s, %s (%s)\n", d.ID, esc(d.EventName), esc(d.ProductName), esc(d.EventDate))
		if d.IsRefundable {
			kb = append(kb, row(btn("↩️ Вернуть "+d.ID, IntentTicketRefund, d.ID)))
		}
	}
	kb = append(kb, row(btn("🔙 Назад", IntentMainMenu)))
	b.reply(ctx, t, Message{Text: sb.String(), Keyboard: kb})
	return stBuyerTickets, nil
}

func (b *Bot) buyerRefundAsk(ctx context.Context, t *turn) (session.State, error) {
	code := service.NormalizeTicketCode(t.in.Intent.Arg)
	b.reply(ctx, t, Message{
		Text: fmt.Sprintf("Вернуть билет <code>%s</code>? Билет станет недействительным.", esc(code)),
		Keyboard: keyboard(
			row(btn("✅ Да, вернуть", IntentTicketRefundConfirm, code)),
			row(btn("🔙 Назад", IntentMyTickets)),
		),
	})
	return stBuyerRefundConfirm, nil
}

func (b *Bot) buyerRefundConfirm(ctx context.Context, t *turn) (session.State, error) {
	d, err := b.Tickets.RefundByBuyer(ctx, t.in.Intent.Arg, t.in.UserID)
	back := keyboard(row(btn("🎟 Мои билеты", IntentMyTickets)))
	switch {
	case errors.Is(err, repository.ErrNotRefundable):
		b.reply(ctx, t, Message{Text: "❌ Этот билет невозвратный.", Keyboard: back})
		return stBuyerRefundConfirm, nil
	case errors.Is(err, repository.ErrTicketNotValid):
		b.reply(ctx, t, Message{Text: "❌ Билет уже использован или возвращён.", Keyboard: back})
		return stBuyerRefundConfirm, nil
	case err != nil:
		return t.sess.State, err
	}
	b.reply(ctx, t, Message{
		Text:     fmt.Sprintf("✅ Билет <code>%s</code> возвращён. Организатор свяжется с вами для возврата средств.", d.ID),
		Keyboard: back,
	})
	if d.OrgOwnerID != 0 {
		b.send(ctx, d.OrgOwnerID, Message{Text: fmt.Sprintf(
			"↩️ <b>Возврат билета</b>\nБилет: <code>%s</code>\nМероприятие: %s\nТариф: %s\nСумма: %d руб.\nПокупатель: %s (ID <code>%d</code>)",
			d.ID, esc(d.EventName), esc(d.ProductName), d.FinalPrice, esc(d.BuyerName), d.BuyerChatID)})
	}
	return stBuyerRefundConfirm, nil
}
