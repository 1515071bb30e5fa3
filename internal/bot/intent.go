package bot

import (
	"sort"
	"strconv"
	"strings"
)

// IntentKind identifies what an inbound interaction asks for.  Interactions
// are decoded into an Intent once, at the transport boundary; the state
// machines only ever match on kinds.
type IntentKind uint8

const (
	IntentUnknown IntentKind = iota

	// Message intents.
	IntentText
	IntentPhoto
	IntentStart
	IntentAdmin
	IntentCancel
	IntentUnknownCommand

	// Noop buttons (list captions, dividers).
	IntentIgnore

	// Buyer: auth and main menu.
	IntentAuthLogin
	IntentAuthRegister
	IntentAuthExit
	IntentMainMenu
	IntentResetToMenu
	IntentMyTickets
	IntentTicketRefund
	IntentTicketRefundConfirm

	// Buyer: purchase.
	IntentBuyStart
	IntentBuyOrg
	IntentBuyEvent
	IntentBuyProduct
	IntentEventsList
	IntentSkipPromo
	IntentPay
	IntentBackToEmail
	IntentPaid

	// Payment approval, valid in any state.
	IntentApprove
	IntentReject

	// Admin: super admin menu.
	IntentAddOwner
	IntentAllOrgs
	IntentGlobalBlacklist
	IntentGlobalBroadcast
	IntentResetStart
	IntentResetConfirm
	IntentAdminExit
	IntentBackMain

	// Admin: organizations.
	IntentSelectOrg
	IntentCreateOrg
	IntentBackOrgList
	IntentBackOrgMenu
	IntentManageAdmins
	IntentBackAdmins
	IntentAddAdmin
	IntentRemoveAdmin
	IntentTransfer
	IntentTransferConfirm
	IntentSetCard
	IntentOrgBlacklist
	IntentOrgBroadcast
	IntentDeleteOrg
	IntentDeleteOrgConfirm

	// Admin: blacklists.
	IntentBlacklistAdd
	IntentBlacklistRemove
	IntentBlacklistBack

	// Admin: broadcasts.
	IntentAudienceAll
	IntentAudienceBuyers

	// Admin: events.
	IntentEvents
	IntentSelectEvent
	IntentCreateEvent
	IntentDeleteEvent
	IntentDeleteEventPick
	IntentBackEventMenu
	IntentListProducts
	IntentAddProduct
	IntentRefundableYes
	IntentRefundableNo
	IntentListPromos
	IntentCreatePromo
	IntentDeletePromo
	IntentReport

	// Admin: ticket checks.
	IntentCheckOrg
	IntentCheckEvent
	IntentUseTicket
	IntentAdminRefund

	intentCount
)

// argKind says what follows the prefix of a parameterised callback.
type argKind uint8

const (
	argNone argKind = iota
	argInt
	argString
)

type callbackDef struct {
	token string
	arg   argKind
}

// callbacks is the single source of truth for callback data: keyboards
// encode with Callback and the transport decodes with DecodeCallback.
// Parameterised tokens end with "_" and carry their argument after it.
var callbacks = map[IntentKind]callbackDef{
	IntentCancel: {token: "cancel_global"},
	IntentIgnore: {token: "ignore"},

	IntentAuthLogin:           {token: "auth_login"},
	IntentAuthRegister:        {token: "auth_register"},
	IntentAuthExit:            {token: "auth_exit"},
	IntentMainMenu:            {token: "goto_main_menu"},
	IntentResetToMenu:         {token: "user_reset_to_menu"},
	IntentMyTickets:           {token: "my_tickets"},
	IntentTicketRefund:        {token: "my_refund_", arg: argString},
	IntentTicketRefundConfirm: {token: "my_refund_ok_", arg: argString},

	IntentBuyStart:    {token: "buy_start"},
	IntentBuyOrg:      {token: "buy_org_", arg: argInt},
	IntentBuyEvent:    {token: "buy_ev_", arg: argInt},
	IntentBuyProduct:  {token: "buy_prod_", arg: argInt},
	IntentEventsList:  {token: "goto_events_list"},
	IntentSkipPromo:   {token: "skip_promo"},
	IntentPay:         {token: "do_pay"},
	IntentBackToEmail: {token: "back_to_email"},
	IntentPaid:        {token: "paid_ok"},

	IntentApprove: {token: "adm_approve_", arg: argString},
	IntentReject:  {token: "adm_reject_", arg: argString},

	IntentAddOwner:        {token: "add_org_owner"},
	IntentAllOrgs:         {token: "goto_lvl2_all"},
	IntentGlobalBlacklist: {token: "goto_global_bl"},
	IntentGlobalBroadcast: {token: "start_global_broadcast"},
	IntentResetStart:      {token: "db_reset_start"},
	IntentResetConfirm:    {token: "db_reset_confirm"},
	IntentAdminExit:       {token: "admin_exit"},
	IntentBackMain:        {token: "back_lvl1"},

	IntentSelectOrg:        {token: "sel_org_", arg: argInt},
	IntentCreateOrg:        {token: "create_org"},
	IntentBackOrgList:      {token: "back_lvl2"},
	IntentBackOrgMenu:      {token: "back_menu_org"},
	IntentManageAdmins:     {token: "manage_admins"},
	IntentBackAdmins:       {token: "back_to_admin_menu"},
	IntentAddAdmin:         {token: "ask_add_admin_login"},
	IntentRemoveAdmin:      {token: "rm_admin_", arg: argInt},
	IntentTransfer:         {token: "transfer_", arg: argInt},
	IntentTransferConfirm:  {token: "confirm_transfer_ownership"},
	IntentSetCard:          {token: "set_org_card"},
	IntentOrgBlacklist:     {token: "org_bl"},
	IntentOrgBroadcast:     {token: "start_org_broadcast"},
	IntentDeleteOrg:        {token: "start_delete_org"},
	IntentDeleteOrgConfirm: {token: "confirm_del_org"},

	IntentBlacklistAdd:    {token: "bl_add"},
	IntentBlacklistRemove: {token: "bl_rm_", arg: argInt},
	IntentBlacklistBack:   {token: "bl_list"},

	IntentAudienceAll:    {token: "audience_all"},
	IntentAudienceBuyers: {token: "audience_buyers"},

	IntentEvents:          {token: "goto_events"},
	IntentSelectEvent:     {token: "sel_ev_", arg: argInt},
	IntentCreateEvent:     {token: "create_event"},
	IntentDeleteEvent:     {token: "start_delete_event"},
	IntentDeleteEventPick: {token: "del_ev_select_", arg: argInt},
	IntentBackEventMenu:   {token: "back_menu_ev"},
	IntentListProducts:    {token: "list_products"},
	IntentAddProduct:      {token: "add_product"},
	IntentRefundableYes:   {token: "refund_yes"},
	IntentRefundableNo:    {token: "refund_no"},
	IntentListPromos:      {token: "list_promos"},
	IntentCreatePromo:     {token: "create_promo"},
	IntentDeletePromo:     {token: "del_promo_", arg: argString},
	IntentReport:          {token: "report_excel"},

	IntentCheckOrg:    {token: "check_ticket_org"},
	IntentCheckEvent:  {token: "check_ticket_ev"},
	IntentUseTicket:   {token: "use_", arg: argString},
	IntentAdminRefund: {token: "adm_refund_", arg: argString},
}

// exact and prefixed are the decode indexes built from callbacks.  Prefixes
// are ordered longest first so "my_refund_ok_" wins over "my_refund_".
var (
	exact    = map[string]IntentKind{}
	prefixed []IntentKind
)

func init() {
	for k, def := range callbacks {
		if def.arg == argNone {
			exact[def.token] = k
			continue
		}
		prefixed = append(prefixed, k)
	}
	sort.Slice(prefixed, func(i, j int) bool {
		ti, tj := callbacks[prefixed[i]].token, callbacks[prefixed[j]].token
		if len(ti) != len(tj) {
			return len(ti) > len(tj)
		}
		return ti < tj
	})
}

// Intent is a decoded interaction.  ID carries numeric callback arguments,
// Arg string ones; Text holds message text and FileID the largest photo.
type Intent struct {
	Kind   IntentKind
	ID     int64
	Arg    string
	Text   string
	FileID string
}

// Callback encodes kind and its optional argument as callback data.
func Callback(kind IntentKind, arg ...any) string {
	def, ok := callbacks[kind]
	if !ok {
		return callbacks[IntentIgnore].token
	}
	if def.arg == argNone || len(arg) == 0 {
		return def.token
	}
	switch v := arg[0].(type) {
	case int64:
		return def.token + strconv.FormatInt(v, 10)
	case int:
		return def.token + strconv.Itoa(v)
	case string:
		return def.token + v
	}
	return def.token
}

// DecodeCallback maps button data to an Intent.  Malformed arguments and
// unknown tokens decode to IntentUnknown.
func DecodeCallback(data string) Intent {
	if k, ok := exact[data]; ok {
		return Intent{Kind: k}
	}
	for _, k := range prefixed {
		def := callbacks[k]
		if !strings.HasPrefix(data, def.token) {
			continue
		}
		raw := data[len(def.token):]
		if raw == "" {
			return Intent{Kind: IntentUnknown}
		}
		if def.arg == argInt {
			id, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				return Intent{Kind: IntentUnknown}
			}
			return Intent{Kind: k, ID: id}
		}
		return Intent{Kind: k, Arg: raw}
	}
	return Intent{Kind: IntentUnknown}
}

// DecodeMessage maps a chat message to an Intent.  Commands win over text;
// a photo wins over its caption.
func DecodeMessage(text, photoFileID string) Intent {
	if photoFileID != "" {
		return Intent{Kind: IntentPhoto, FileID: photoFileID, Text: text}
	}
	if strings.HasPrefix(text, "/") {
		cmd := strings.TrimPrefix(strings.Fields(text)[0], "/")
		if at := strings.IndexByte(cmd, '@'); at >= 0 {
			cmd = cmd[:at]
		}
		switch strings.ToLower(cmd) {
		case "start":
			return Intent{Kind: IntentStart}
		case "admin":
			return Intent{Kind: IntentAdmin}
		case "cancel":
			return Intent{Kind: IntentCancel}
		}
		return Intent{Kind: IntentUnknownCommand, Text: text}
	}
	return Intent{Kind: IntentText, Text: text}
}
