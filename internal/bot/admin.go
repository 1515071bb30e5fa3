package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/iliyamo/event-ticket-bot/internal/model"
	"github.com/iliyamo/event-ticket-bot/internal/repository"
	"github.com/iliyamo/event-ticket-bot/internal/service"
	"github.com/iliyamo/event-ticket-bot/internal/session"
)

const (
	audienceAll    = "all"
	audienceBuyers = "buyers"

	maxOrgNameLen = 100
	maxCardLen    = 64
)

// parseInt reads a whole number typed by the user.
func parseInt(s string) (int64, bool) {
	v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	return v, err == nil
}

// adminStart is the /admin gate.  The super admin lands on the main menu;
// owners, admins and users holding creation quota land on their
// organizations.
func (b *Bot) adminStart(ctx context.Context, t *turn) (session.State, error) {
	uid := t.in.UserID
	if b.Access.IsSuperAdmin(uid) {
		t.sess.Enter(session.FlowAdmin, stAdminMain)
		return b.adminMainMenu(ctx, t)
	}
	hasRole, err := b.Orgs.HasAnyRole(ctx, uid)
	if err != nil {
		return stateEnd, err
	}
	quota := 0
	if !hasRole {
		u, err := b.Users.Get(ctx, uid)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return stateEnd, err
		}
		quota = u.OrgQuota
	}
	if !hasRole && quota <= 0 {
		b.reply(ctx, t, Message{Text: textNoAdmin})
		return stateEnd, nil
	}
	t.sess.Enter(session.FlowAdmin, stAdminOrgs)
	return b.showOrgList(ctx, t, true)
}

func (b *Bot) adminMainMenu(ctx context.Context, t *turn) (session.State, error) {
	if !b.Access.IsSuperAdmin(t.in.UserID) {
		return b.showOrgList(ctx, t, false)
	}
	t.sess.Admin = session.AdminDraft{}
	b.reply(ctx, t, Message{
		Text: "👑 <b>Панель Супер-Администратора</b>\nВыберите действие:",
		Keyboard: keyboard(
			row(btn("👥 Назначить Владельца", IntentAddOwner)),
			row(btn("🏢 Управление организациями", IntentAllOrgs)),
			row(btn("🚫 Общий Черный Список", IntentGlobalBlacklist)),
			row(btn("📢 Общая рассылка", IntentGlobalBroadcast)),
			row(btn("🧨 Сброс базы данных", IntentResetStart)),
			row(btn("🚪 Выход", IntentAdminExit)),
		),
	})
	return stAdminMain, nil
}

func (b *Bot) adminAskOwner(ctx context.Context, t *turn) (session.State, error) {
	if err := b.Access.Authorize(ctx, t.in.UserID, 0, service.ActionCreatorGrant); err != nil {
		return t.sess.State, err
	}
	b.reply(ctx, t, Message{
		Text: fmt.Sprintf("Введите <b>Telegram ID</b> пользователя, которому нужно выдать право создавать организации (лимит: %d).\n"+
			"<i>Пользователь должен хотя бы раз запустить бота.</i>", b.OrgQuota),
		Keyboard: keyboard(row(btn("🔙 Назад", IntentBackMain))),
	})
	return stAdminOwnerInput, nil
}

func (b *Bot) adminOwnerInput(ctx context.Context, t *turn) (session.State, error) {
	if err := b.Access.Authorize(ctx, t.in.UserID, 0, service.ActionCreatorGrant); err != nil {
		return t.sess.State, err
	}
	id, ok := parseInt(t.in.Intent.Text)
	if !ok {
		b.reply(ctx, t, Message{Text: "❌ ID должен быть числом."})
		return stAdminOwnerInput, nil
	}
	err := b.Users.SetOrgQuota(ctx, id, b.OrgQuota)
	if errors.Is(err, repository.ErrNotFound) {
		b.reply(ctx, t, Message{Text: "❌ Пользователь не найден. Он должен сначала запустить бота (/start)."})
		return stAdminOwnerInput, nil
	}
	if err != nil {
		return t.sess.State, err
	}
	b.reply(ctx, t, Message{
		Text:     fmt.Sprintf("✅ Пользователь <code>%d</code> может создать до %d организаций.", id, b.OrgQuota),
		Keyboard: keyboard(row(btn("🔙 В меню", IntentBackMain))),
	})
	b.send(ctx, id, Message{Text: "🎉 Вам выдано право создавать организации. Введите /admin."})
	return stAdminMain, nil
}

func (b *Bot) adminResetAsk(ctx context.Context, t *turn) (session.State, error) {
	if err := b.Access.Authorize(ctx, t.in.UserID, 0, service.ActionDatabaseReset); err != nil {
		return t.sess.State, err
	}
	b.reply(ctx, t, Message{
		Text: "🧨 <b>ВНИМАНИЕ!</b>\nВсе данные (пользователи, организации, мероприятия, билеты) будут удалены без возможности восстановления. " +
			"После сброса бот перезапустится.\n\nПродолжить?",
		Keyboard: keyboard(
			row(btn("🔥 Да, удалить всё", IntentResetConfirm)),
			row(btn("🔙 Отмена", IntentBackMain)),
		),
	})
	return stAdminResetConfirm, nil
}

func (b *Bot) adminResetConfirm(ctx context.Context, t *turn) (session.State, error) {
	if err := b.Access.Authorize(ctx, t.in.UserID, 0, service.ActionDatabaseReset); err != nil {
		return t.sess.State, err
	}
	if b.Maintenance == nil {
		return t.sess.State, errors.New("maintenance is not configured")
	}
	b.Log.Warn("database reset requested", zap.Int64("user_id", t.in.UserID))
	if err := b.Maintenance.ResetDatabase(ctx); err != nil {
		return t.sess.State, err
	}
	b.reply(ctx, t, Message{Text: "✅ База данных сброшена. Бот перезапускается..."})
	return stateEnd, nil
}

// Organizations.

func (b *Bot) adminAllOrgs(ctx context.Context, t *turn) (session.State, error) {
	if err := b.Access.Authorize(ctx, t.in.UserID, 0, service.ActionOrgsListAll); err != nil {
		return t.sess.State, err
	}
	t.sess.Admin.ViewAll = true
	return b.showOrgList(ctx, t, false)
}

func (b *Bot) adminOrgList(ctx context.Context, t *turn) (session.State, error) {
	return b.showOrgList(ctx, t, false)
}

// showOrgList lists the organizations the caller can manage.  On entry
// (auto) a single organization is opened directly.
func (b *Bot) showOrgList(ctx context.Context, t *turn, auto bool) (session.State, error) {
	uid := t.in.UserID
	a := &t.sess.Admin
	a.OrgID, a.EventID = 0, 0

	type item struct {
		org  model.Organization
		note string
	}
	var items []item
	if a.ViewAll && b.Access.IsSuperAdmin(uid) {
		orgs, err := b.Orgs.List(ctx)
		if err != nil {
			return t.sess.State, err
		}
		for _, o := range orgs {
			note := ""
			if o.OwnerID != 0 {
				note = fmt.Sprintf(" (Владелец: %d)", o.OwnerID)
			}
			items = append(items, item{o, note})
		}
	} else {
		ms, err := b.Orgs.ListForUser(ctx, uid)
		if err != nil {
			return t.sess.State, err
		}
		for _, m := range ms {
			items = append(items, item{org: m.Organization})
		}
	}

	canCreate := b.Access.IsSuperAdmin(uid)
	if !canCreate {
		u, err := b.Users.Get(ctx, uid)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return t.sess.State, err
		}
		canCreate = u.OrgQuota > 0
	}

	if auto && len(items) == 1 && !canCreate {
		a.OrgID = items[0].org.ID
		return b.showOrgMenu(ctx, t)
	}

	kb := make(Keyboard, 0, len(items)+2)
	for _, it := range items {
		kb = append(kb, row(btn("🏢 "+it.org.Name+it.note, IntentSelectOrg, it.org.ID)))
	}
	if canCreate {
		kb = append(kb, row(btn("➕ Создать Организацию", IntentCreateOrg)))
	}
	if b.Access.IsSuperAdmin(uid) {
		kb = append(kb, row(btn("🔙 Назад", IntentBackMain)))
	} else {
		kb = append(kb, row(btn("🚪 Выход", IntentAdminExit)))
	}
	text := "🏢 <b>Выбор Организации</b>\nВыберите организацию для управления:"
	if len(items) == 0 {
		text = "🏢 У вас пока нет организаций."
	}
	b.reply(ctx, t, Message{Text: text, Keyboard: kb})
	return stAdminOrgs, nil
}

func (b *Bot) adminOrgSelected(ctx context.Context, t *turn) (session.State, error) {
	orgID := t.in.Intent.ID
	role, err := b.Access.ResolveRole(ctx, t.in.UserID, orgID)
	if err != nil {
		return t.sess.State, err
	}
	if role == "" {
		return t.sess.State, repository.ErrForbidden
	}
	t.sess.Admin.OrgID = orgID
	return b.showOrgMenu(ctx, t)
}

func (b *Bot) adminOrgMenu(ctx context.Context, t *turn) (session.State, error) {
	return b.showOrgMenu(ctx, t)
}

var roleTitles = map[string]string{
	model.RoleSuperAdmin: "Супер-админ",
	model.RoleOrgOwner:   "Владелец",
	model.RoleOrgAdmin:   "Администратор",
}

// showOrgMenu renders the menu of the current organization with the
// actions the caller's role permits.
func (b *Bot) showOrgMenu(ctx context.Context, t *turn) (session.State, error) {
	a := &t.sess.Admin
	a.EventID, a.TicketID, a.TargetUserID = 0, "", 0
	org, err := b.Orgs.Get(ctx, a.OrgID)
	if err != nil {
		return t.sess.State, err
	}
	role, err := b.Access.ResolveRole(ctx, t.in.UserID, org.ID)
	if err != nil {
		return t.sess.State, err
	}
	if role == "" {
		return t.sess.State, repository.ErrForbidden
	}

	kb := keyboard(
		row(btn("📅 Управление мероприятиями", IntentEvents)),
		row(btn("✅ Проверить билет", IntentCheckOrg)),
	)
	if ok, _ := b.Access.Can(ctx, t.in.UserID, org.ID, service.ActionAdminsManage); ok {
		kb = append(kb,
			row(btn("👥 Управление админами", IntentManageAdmins)),
			row(btn("📢 Рассылка", IntentOrgBroadcast)),
			row(btn("💳 Настроить Карту", IntentSetCard)),
			row(btn("🚫 Черный список", IntentOrgBlacklist)),
			row(btn("🗑️ Удалить организацию", IntentDeleteOrg)),
		)
	}
	kb = append(kb, row(btn("🔙 Назад к списку", IntentBackOrgList)))

	card := org.BankCard
	if card == "" {
		card = "не указана"
	}
	b.reply(ctx, t, Message{
		Text: fmt.Sprintf("⚙️ <b>Управление организацией:</b> <code>%s</code>\nВаша роль: <b>%s</b>\nКарта: <code>%s</code>",
			esc(org.Name), roleTitles[role], esc(card)),
		Keyboard: kb,
	})
	return stAdminOrgMenu, nil
}

func (b *Bot) adminAskOrgName(ctx context.Context, t *turn) (session.State, error) {
	b.reply(ctx, t, Message{
		Text:     "Введите <b>название</b> новой организации:",
		Keyboard: keyboard(row(btn("🔙 Назад", IntentBackOrgList))),
	})
	return stAdminOrgName, nil
}

func (b *Bot) adminOrgNameInput(ctx context.Context, t *turn) (session.State, error) {
	name := strings.TrimSpace(t.in.Intent.Text)
	if name == "" || len([]rune(name)) > maxOrgNameLen {
		b.reply(ctx, t, Message{Text: "❌ Название должно быть от 1 до 100 символов. Повторите ввод:"})
		return stAdminOrgName, nil
	}
	super := b.Access.IsSuperAdmin(t.in.UserID)
	org, err := b.Orgs.Create(ctx, t.in.UserID, name, !super)
	if errors.Is(err, repository.ErrQuotaExceeded) || errors.Is(err, repository.ErrNotFound) {
		b.reply(ctx, t, Message{
			Text:     "❌ Лимит на создание организаций исчерпан. Обратитесь к супер-администратору.",
			Keyboard: keyboard(row(btn("🔙 Назад", IntentBackOrgList))),
		})
		return stAdminOrgs, nil
	}
	if err != nil {
		return t.sess.State, err
	}
	b.Log.Info("organization created", zap.Int64("org_id", org.ID), zap.Int64("owner_id", t.in.UserID))
	b.reply(ctx, t, Message{Text: fmt.Sprintf("✅ Организация <b>%s</b> создана!", esc(org.Name))})
	t.sess.Admin.OrgID = org.ID
	return b.showOrgMenu(ctx, t)
}

// authorizeOrg checks action in the organization being managed.
func (b *Bot) authorizeOrg(ctx context.Context, t *turn, action string) error {
	if t.sess.Admin.OrgID == 0 {
		return repository.ErrNotFound
	}
	return b.Access.Authorize(ctx, t.in.UserID, t.sess.Admin.OrgID, action)
}

func (b *Bot) adminAskCard(ctx context.Context, t *turn) (session.State, error) {
	if err := b.authorizeOrg(ctx, t, service.ActionOrgCard); err != nil {
		return t.sess.State, err
	}
	b.reply(ctx, t, Message{
		Text:     "Введите номер карты или телефона для приёма оплаты:",
		Keyboard: keyboard(row(btn("🔙 Назад", IntentBackOrgMenu))),
	})
	return stAdminCard, nil
}

func (b *Bot) adminCardInput(ctx context.Context, t *turn) (session.State, error) {
	if err := b.authorizeOrg(ctx, t, service.ActionOrgCard); err != nil {
		return t.sess.State, err
	}
	card := strings.TrimSpace(t.in.Intent.Text)
	if card == "" || len([]rune(card)) > maxCardLen {
		b.reply(ctx, t, Message{Text: "❌ Введите номер карты (до 64 символов):"})
		return stAdminCard, nil
	}
	if err := b.Orgs.SetBankCard(ctx, t.sess.Admin.OrgID, card); err != nil {
		return t.sess.State, err
	}
	b.reply(ctx, t, Message{Text: fmt.Sprintf("✅ Карта обновлена: <code>%s</code>", esc(card))})
	return b.showOrgMenu(ctx, t)
}

func (b *Bot) adminDeleteOrgAsk(ctx context.Context, t *turn) (session.State, error) {
	if err := b.authorizeOrg(ctx, t, service.ActionOrgDelete); err != nil {
		return t.sess.State, err
	}
	org, err := b.Orgs.Get(ctx, t.sess.Admin.OrgID)
	if err != nil {
		return t.sess.State, err
	}
	b.reply(ctx, t, Message{
		Text: fmt.Sprintf("🗑️ Удалить организацию <b>%s</b>?\nВсе мероприятия, билеты и промокоды будут удалены.", esc(org.Name)),
		Keyboard: keyboard(
			row(btn("✅ Да, удалить", IntentDeleteOrgConfirm)),
			row(btn("🔙 Отмена", IntentBackOrgMenu)),
		),
	})
	return stAdminOrgDelete, nil
}

func (b *Bot) adminDeleteOrgConfirm(ctx context.Context, t *turn) (session.State, error) {
	if err := b.authorizeOrg(ctx, t, service.ActionOrgDelete); err != nil {
		return t.sess.State, err
	}
	orgID := t.sess.Admin.OrgID
	if err := b.Orgs.Delete(ctx, orgID); err != nil {
		return t.sess.State, err
	}
	b.Log.Info("organization deleted", zap.Int64("org_id", orgID), zap.Int64("user_id", t.in.UserID))
	t.sess.Admin.OrgID = 0
	b.send(ctx, t.in.ChatID, Message{Text: "✅ Организация удалена."})
	return b.showOrgList(ctx, t, false)
}

// Admins and ownership.

func (b *Bot) adminAdmins(ctx context.Context, t *turn) (session.State, error) {
	if err := b.authorizeOrg(ctx, t, service.ActionAdminsManage); err != nil {
		return t.sess.State, err
	}
	t.sess.Admin.TargetUserID = 0
	admins, err := b.Orgs.ListAdmins(ctx, t.sess.Admin.OrgID)
	if err != nil {
		return t.sess.State, err
	}
	var sb strings.Builder
	sb.WriteString("⚙️ <b>Администраторы организации</b>\n\n")
	kb := make(Keyboard, 0, len(admins)+2)
	for _, a := range admins {
		label := "👤 Админ"
		if a.Role == model.RoleOrgOwner {
			label = "👑 Владелец"
		}
		name := a.Login
		if a.Username != "" {
			name = "@" + a.Username
		}
		fmt.Fprintf(&sb, "%s: %s (<code>%d</code>)\n", label, esc(name), a.UserID)
		if a.UserID == t.in.UserID {
			continue
		}
		actions := []Button{btn("👑 Передать права", IntentTransfer, a.UserID)}
		if a.Role != model.RoleOrgOwner {
			actions = append([]Button{btn(fmt.Sprintf("❌ Удалить %d", a.UserID), IntentRemoveAdmin, a.UserID)}, actions...)
		}
		kb = append(kb, actions)
	}
	kb = append(kb,
		row(btn("➕ Добавить админа", IntentAddAdmin)),
		row(btn("⬅️ Назад в меню", IntentBackOrgMenu)),
	)
	b.reply(ctx, t, Message{Text: sb.String(), Keyboard: kb})
	return stAdminAdmins, nil
}

func (b *Bot) adminAskAddAdmin(ctx context.Context, t *turn) (session.State, error) {
	if err := b.authorizeOrg(ctx, t, service.ActionAdminsManage); err != nil {
		return t.sess.State, err
	}
	b.reply(ctx, t, Message{
		Text:     "Введите <b>логин</b> или <b>Telegram ID</b> пользователя:",
		Keyboard: keyboard(row(btn("🔙 Назад", IntentBackAdmins))),
	})
	return stAdminAddAdmin, nil
}

// lookupUser resolves a login or a numeric chat id typed by an admin.
func (b *Bot) lookupUser(ctx context.Context, input string) (int64, error) {
	if id, ok := parseInt(input); ok {
		u, err := b.Users.Get(ctx, id)
		return u.ChatID, err
	}
	u, err := b.Users.GetByLogin(ctx, service.NormalizeLogin(input))
	return u.ChatID, err
}

func (b *Bot) adminAddAdminInput(ctx context.Context, t *turn) (session.State, error) {
	if err := b.authorizeOrg(ctx, t, service.ActionAdminsManage); err != nil {
		return t.sess.State, err
	}
	back := keyboard(row(btn("🔙 Назад", IntentBackAdmins)))
	id, err := b.lookupUser(ctx, t.in.Intent.Text)
	if errors.Is(err, repository.ErrNotFound) {
		b.reply(ctx, t, Message{Text: "❌ Пользователь с таким логином/ID не найден. Попробуйте снова.", Keyboard: back})
		return stAdminAddAdmin, nil
	}
	if err != nil {
		return t.sess.State, err
	}
	if id == t.in.UserID {
		b.reply(ctx, t, Message{Text: "❌ Вы не можете добавить самого себя.", Keyboard: back})
		return stAdminAddAdmin, nil
	}
	err = b.Orgs.AddAdmin(ctx, t.sess.Admin.OrgID, id)
	if errors.Is(err, repository.ErrConflict) {
		b.reply(ctx, t, Message{Text: "❌ Пользователь уже является администратором этой организации.", Keyboard: back})
		return stAdminAddAdmin, nil
	}
	if err != nil {
		return t.sess.State, err
	}
	b.reply(ctx, t, Message{Text: fmt.Sprintf("✅ Пользователь <code>%d</code> назначен администратором.", id)})
	return b.adminAdmins(ctx, t)
}

func (b *Bot) adminRemoveAdmin(ctx context.Context, t *turn) (session.State, error) {
	if err := b.authorizeOrg(ctx, t, service.ActionAdminsManage); err != nil {
		return t.sess.State, err
	}
	target := t.in.Intent.ID
	back := keyboard(row(btn("⬅️ Назад", IntentBackAdmins)))
	if target == t.in.UserID {
		b.reply(ctx, t, Message{Text: "❌ Нельзя удалить самого себя. Используйте передачу прав.", Keyboard: back})
		return stAdminAdmins, nil
	}
	err := b.Orgs.RemoveAdmin(ctx, t.sess.Admin.OrgID, target)
	if errors.Is(err, repository.ErrForbidden) {
		b.reply(ctx, t, Message{Text: "❌ Владельца нельзя удалить. Сначала передайте права.", Keyboard: back})
		return stAdminAdmins, nil
	}
	if err != nil {
		return t.sess.State, err
	}
	b.reply(ctx, t, Message{Text: fmt.Sprintf("✅ Администратор <code>%d</code> удален.", target), Keyboard: back})
	return stAdminAdmins, nil
}

func (b *Bot) adminTransferAsk(ctx context.Context, t *turn) (session.State, error) {
	if err := b.authorizeOrg(ctx, t, service.ActionOwnershipTransfer); err != nil {
		return t.sess.State, err
	}
	target, err := b.Users.Get(ctx, t.in.Intent.ID)
	if err != nil {
		return t.sess.State, err
	}
	t.sess.Admin.TargetUserID = target.ChatID
	b.reply(ctx, t, Message{
		Text: fmt.Sprintf("⚠️ <b>Подтверждение передачи прав</b>\n\nПередать права владельца пользователю %s (<code>%d</code>)?\n\n"+
			"Ваша роль будет понижена до администратора.", esc(target.DisplayName()), target.ChatID),
		Keyboard: keyboard(
			row(btn("✅ Подтвердить передачу прав", IntentTransferConfirm)),
			row(btn("⬅️ Отмена", IntentBackAdmins)),
		),
	})
	return stAdminTransfer, nil
}

// adminTransferConfirm hands the organization over.  The current owner is
// read from the organization so the super admin can transfer on the
// owner's behalf.
func (b *Bot) adminTransferConfirm(ctx context.Context, t *turn) (session.State, error) {
	if err := b.authorizeOrg(ctx, t, service.ActionOwnershipTransfer); err != nil {
		return t.sess.State, err
	}
	a := &t.sess.Admin
	if a.TargetUserID == 0 {
		return b.adminAdmins(ctx, t)
	}
	org, err := b.Orgs.Get(ctx, a.OrgID)
	if err != nil {
		return t.sess.State, err
	}
	current := t.in.UserID
	if b.Access.IsSuperAdmin(current) {
		current = org.OwnerID
	}
	back := keyboard(row(btn("⬅️ Назад в меню", IntentBackOrgMenu)))
	err = b.Orgs.TransferOwnership(ctx, a.OrgID, current, a.TargetUserID)
	switch {
	case errors.Is(err, repository.ErrNotOwner), errors.Is(err, repository.ErrConflict):
		b.reply(ctx, t, Message{Text: "❌ Передать права может только текущий владелец.", Keyboard: back})
		return stAdminOrgMenu, nil
	case err != nil:
		return t.sess.State, err
	}
	b.Log.Info("ownership transferred",
		zap.Int64("org_id", a.OrgID), zap.Int64("from", current), zap.Int64("to", a.TargetUserID))
	b.send(ctx, a.TargetUserID, Message{Text: fmt.Sprintf("👑 Вы стали владельцем организации <b>%s</b>.", esc(org.Name))})
	b.reply(ctx, t, Message{Text: "✅ <b>Права владельца успешно переданы!</b>", Keyboard: back})
	a.TargetUserID = 0
	return stAdminOrgMenu, nil
}

// Blacklists.  Admin.BlacklistOrgID selects the list: 0 is global.

func (b *Bot) authorizeBlacklist(ctx context.Context, t *turn) error {
	if id := t.sess.Admin.BlacklistOrgID; id != 0 {
		return b.Access.Authorize(ctx, t.in.UserID, id, service.ActionOrgBlacklist)
	}
	return b.Access.Authorize(ctx, t.in.UserID, 0, service.ActionGlobalBlacklist)
}

func (b *Bot) adminGlobalBlacklist(ctx context.Context, t *turn) (session.State, error) {
	t.sess.Admin.BlacklistOrgID = 0
	return b.adminBlacklistShow(ctx, t)
}

func (b *Bot) adminOrgBlacklist(ctx context.Context, t *turn) (session.State, error) {
	t.sess.Admin.BlacklistOrgID = t.sess.Admin.OrgID
	if t.sess.Admin.OrgID == 0 {
		return t.sess.State, repository.ErrNotFound
	}
	return b.adminBlacklistShow(ctx, t)
}

func (b *Bot) adminBlacklistShow(ctx context.Context, t *turn) (session.State, error) {
	if err := b.authorizeBlacklist(ctx, t); err != nil {
		return t.sess.State, err
	}
	a := &t.sess.Admin
	a.BlacklistUser = 0
	entries, err := b.Blacklist.List(ctx, a.BlacklistOrgID)
	if err != nil {
		return t.sess.State, err
	}
	var sb strings.Builder
	if a.BlacklistOrgID == 0 {
		sb.WriteString("🚫 <b>Общий Черный Список</b>\n\n")
	} else {
		sb.WriteString("🚫 <b>Черный список организации</b>\n\n")
	}
	if len(entries) == 0 {
		sb.WriteString("Список пуст.")
	}
	kb := make(Keyboard, 0, len(entries)+2)
	for _, e := range entries {
		reason := e.Reason
		if reason == "" {
			reason = "—"
		}
		fmt.Fprintf(&sb, "• <code>%d</code>: %s\n", e.UserID, esc(reason))
		kb = append(kb, row(btn(fmt.Sprintf("✅ Разблокировать %d", e.UserID), IntentBlacklistRemove, e.UserID)))
	}
	kb = append(kb, row(btn("➕ Добавить", IntentBlacklistAdd)))
	if a.BlacklistOrgID == 0 {
		kb = append(kb, row(btn("🔙 Назад", IntentBackMain)))
	} else {
		kb = append(kb, row(btn("🔙 Назад", IntentBackOrgMenu)))
	}
	b.reply(ctx, t, Message{Text: sb.String(), Keyboard: kb})
	return stAdminBlacklist, nil
}

func (b *Bot) adminBlacklistAsk(ctx context.Context, t *turn) (session.State, error) {
	if err := b.authorizeBlacklist(ctx, t); err != nil {
		return t.sess.State, err
	}
	b.reply(ctx, t, Message{
		Text:     "Введите <b>Telegram ID</b> пользователя для блокировки:",
		Keyboard: keyboard(row(btn("🔙 Назад", IntentBlacklistBack))),
	})
	return stAdminBlacklistID, nil
}

func (b *Bot) adminBlacklistIDInput(ctx context.Context, t *turn) (session.State, error) {
	id, ok := parseInt(t.in.Intent.Text)
	if !ok || id == 0 {
		b.reply(ctx, t, Message{Text: "❌ ID должен быть числом. Повторите ввод:"})
		return stAdminBlacklistID, nil
	}
	if b.Access.IsSuperAdmin(id) {
		b.reply(ctx, t, Message{Text: "❌ Нельзя заблокировать супер-администратора."})
		return stAdminBlacklistID, nil
	}
	t.sess.Admin.BlacklistUser = id
	b.reply(ctx, t, Message{
		Text:     fmt.Sprintf("Введите <b>причину</b> блокировки пользователя <code>%d</code>:", id),
		Keyboard: keyboard(row(btn("🔙 Назад", IntentBlacklistBack))),
	})
	return stAdminBlacklistNote, nil
}

func (b *Bot) adminBlacklistReasonInput(ctx context.Context, t *turn) (session.State, error) {
	if err := b.authorizeBlacklist(ctx, t); err != nil {
		return t.sess.State, err
	}
	a := &t.sess.Admin
	err := b.Blacklist.Add(ctx, model.BlacklistEntry{
		OrgID:     a.BlacklistOrgID,
		UserID:    a.BlacklistUser,
		Reason:    strings.TrimSpace(t.in.Intent.Text),
		BlockedBy: t.in.UserID,
	})
	switch {
	case errors.Is(err, repository.ErrConflict):
		b.send(ctx, t.in.ChatID, Message{Text: fmt.Sprintf("❌ Пользователь <code>%d</code> уже в списке.", a.BlacklistUser)})
	case err != nil:
		return t.sess.State, err
	default:
		b.send(ctx, t.in.ChatID, Message{Text: fmt.Sprintf("✅ Пользователь <code>%d</code> заблокирован.", a.BlacklistUser)})
	}
	return b.adminBlacklistShow(ctx, t)
}

func (b *Bot) adminBlacklistRemove(ctx context.Context, t *turn) (session.State, error) {
	if err := b.authorizeBlacklist(ctx, t); err != nil {
		return t.sess.State, err
	}
	if err := b.Blacklist.Remove(ctx, t.sess.Admin.BlacklistOrgID, t.in.Intent.ID); err != nil &&
		!errors.Is(err, repository.ErrNotFound) {
		return t.sess.State, err
	}
	t.notice = "Разблокирован"
	return b.adminBlacklistShow(ctx, t)
}

// Broadcasts.  Admin.BroadcastOrgID selects the scope: 0 is global.

func (b *Bot) authorizeBroadcast(ctx context.Context, t *turn) error {
	if id := t.sess.Admin.BroadcastOrgID; id != 0 {
		return b.Access.Authorize(ctx, t.in.UserID, id, service.ActionOrgBroadcast)
	}
	return b.Access.Authorize(ctx, t.in.UserID, 0, service.ActionGlobalBroadcast)
}

func (b *Bot) adminGlobalBroadcast(ctx context.Context, t *turn) (session.State, error) {
	t.sess.Admin.BroadcastOrgID = 0
	return b.showAudience(ctx, t)
}

func (b *Bot) adminOrgBroadcast(ctx context.Context, t *turn) (session.State, error) {
	if t.sess.Admin.OrgID == 0 {
		return t.sess.State, repository.ErrNotFound
	}
	t.sess.Admin.BroadcastOrgID = t.sess.Admin.OrgID
	return b.showAudience(ctx, t)
}

func (b *Bot) showAudience(ctx context.Context, t *turn) (session.State, error) {
	if err := b.authorizeBroadcast(ctx, t); err != nil {
		return t.sess.State, err
	}
	a := &t.sess.Admin
	a.Audience = ""
	kb := keyboard(row(btn("👥 Всем пользователям бота", IntentAudienceAll)))
	back := IntentBackMain
	if a.BroadcastOrgID != 0 {
		kb = append(kb, row(btn("💳 Покупателям организации", IntentAudienceBuyers)))
		back = IntentBackOrgMenu
	}
	kb = append(kb, row(btn("🔙 Назад", back)))
	b.reply(ctx, t, Message{Text: "📢 Выберите аудиторию для рассылки:", Keyboard: kb})
	return stAdminAudience, nil
}

func (b *Bot) adminAudience(ctx context.Context, t *turn) (session.State, error) {
	if err := b.authorizeBroadcast(ctx, t); err != nil {
		return t.sess.State, err
	}
	a := &t.sess.Admin
	back := IntentBackMain
	if a.BroadcastOrgID != 0 {
		back = IntentBackOrgMenu
	}
	switch {
	case t.in.Intent.Kind == IntentAudienceBuyers && a.BroadcastOrgID != 0:
		a.Audience = audienceBuyers
	case t.in.Intent.Kind == IntentAudienceAll:
		a.Audience = audienceAll
	default:
		t.notice = "Неверная аудитория"
		return stAdminAudience, nil
	}
	b.reply(ctx, t, Message{
		Text:     "Введите текст сообщения для рассылки (можно с HTML-разметкой):",
		Keyboard: keyboard(row(btn("❌ Отмена", back))),
	})
	return stAdminBroadcastText, nil
}

func (b *Bot) adminBroadcastInput(ctx context.Context, t *turn) (session.State, error) {
	if err := b.authorizeBroadcast(ctx, t); err != nil {
		return t.sess.State, err
	}
	a := &t.sess.Admin
	text := strings.TrimSpace(t.in.Intent.Text)
	if text == "" {
		b.reply(ctx, t, Message{Text: "❌ Пустое сообщение. Введите текст:"})
		return stAdminBroadcastText, nil
	}

	var (
		ids    []int64
		err    error
		target string
	)
	switch a.Audience {
	case audienceAll:
		ids, err = b.Users.AuthenticatedIDs(ctx)
		target = "всем пользователям"
	case audienceBuyers:
		ids, err = b.Tickets.BuyerIDs(ctx, a.BroadcastOrgID)
		target = "покупателям организации"
	default:
		return b.showAudience(ctx, t)
	}
	if err != nil {
		return t.sess.State, err
	}

	b.send(ctx, t.in.ChatID, Message{Text: fmt.Sprintf("🚀 Начинаю рассылку %s (%d получателей)...", target, len(ids))})
	sent := b.broadcaster.Broadcast(ctx, ids, text)
	b.Log.Info("broadcast finished",
		zap.Int64("org_id", a.BroadcastOrgID), zap.String("audience", a.Audience),
		zap.Int("total", len(ids)), zap.Int("sent", sent))

	back := IntentBackMain
	if a.BroadcastOrgID != 0 {
		back = IntentBackOrgMenu
	}
	b.send(ctx, t.in.ChatID, Message{
		Text:     fmt.Sprintf("✅ Рассылка завершена! Отправлено %d из %d сообщений.", sent, len(ids)),
		Keyboard: keyboard(row(btn("🔙 Назад", back))),
	})
	a.Audience = ""
	return stAdminAudience, nil
}
