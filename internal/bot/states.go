package bot

import "github.com/iliyamo/event-ticket-bot/internal/session"

// Buyer flow states.
const (
	stBuyerAuth          session.State = "buyer.auth"
	stBuyerLogin         session.State = "buyer.login"
	stBuyerPassword      session.State = "buyer.password"
	stBuyerRegLogin      session.State = "buyer.register_login"
	stBuyerRegPassword   session.State = "buyer.register_password"
	stBuyerMenu          session.State = "buyer.menu"
	stBuyerOrgs          session.State = "buyer.orgs"
	stBuyerEvents        session.State = "buyer.events"
	stBuyerProducts      session.State = "buyer.products"
	stBuyerName          session.State = "buyer.name"
	stBuyerEmail         session.State = "buyer.email"
	stBuyerPromo         session.State = "buyer.promo"
	stBuyerConfirm       session.State = "buyer.confirm"
	stBuyerPayment       session.State = "buyer.payment"
	stBuyerTickets       session.State = "buyer.tickets"
	stBuyerRefundConfirm session.State = "buyer.refund_confirm"
)

// Admin flow states.
const (
	stAdminMain          session.State = "admin.main"
	stAdminOwnerInput    session.State = "admin.owner_input"
	stAdminOrgs          session.State = "admin.orgs"
	stAdminOrgName       session.State = "admin.org_name"
	stAdminOrgMenu       session.State = "admin.org_menu"
	stAdminAdmins        session.State = "admin.admins"
	stAdminAddAdmin      session.State = "admin.add_admin"
	stAdminTransfer      session.State = "admin.transfer_confirm"
	stAdminCard          session.State = "admin.card"
	stAdminOrgDelete     session.State = "admin.org_delete_confirm"
	stAdminBlacklist     session.State = "admin.blacklist"
	stAdminBlacklistID   session.State = "admin.blacklist_id"
	stAdminBlacklistNote session.State = "admin.blacklist_reason"
	stAdminAudience      session.State = "admin.broadcast_audience"
	stAdminBroadcastText session.State = "admin.broadcast_text"
	stAdminResetConfirm  session.State = "admin.reset_confirm"
	stAdminEvents        session.State = "admin.events"
	stAdminEventName     session.State = "admin.event_name"
	stAdminEventDate     session.State = "admin.event_date"
	stAdminEventDelete   session.State = "admin.event_delete"
	stAdminEventMenu     session.State = "admin.event_menu"
	stAdminProductName   session.State = "admin.product_name"
	stAdminProductPrice  session.State = "admin.product_price"
	stAdminProductLimit  session.State = "admin.product_limit"
	stAdminProductRefund session.State = "admin.product_refundable"
	stAdminPromos        session.State = "admin.promos"
	stAdminPromoCode     session.State = "admin.promo_code"
	stAdminPromoPercent  session.State = "admin.promo_percent"
	stAdminPromoLimit    session.State = "admin.promo_limit"
	stAdminCheck         session.State = "admin.check"
)

var buyerTable = table{
	stBuyerAuth: {
		IntentAuthLogin:    (*Bot).buyerAskLogin,
		IntentAuthRegister: (*Bot).buyerAskRegister,
	},
	stBuyerLogin: {
		IntentText:     (*Bot).buyerLoginInput,
		IntentAuthExit: (*Bot).buyerGreeting,
	},
	stBuyerPassword: {
		IntentText:     (*Bot).buyerPasswordInput,
		IntentAuthExit: (*Bot).buyerGreeting,
	},
	stBuyerRegLogin: {
		IntentText:     (*Bot).buyerRegisterLoginInput,
		IntentAuthExit: (*Bot).buyerGreeting,
	},
	stBuyerRegPassword: {
		IntentText:     (*Bot).buyerRegisterPasswordInput,
		IntentAuthExit: (*Bot).buyerGreeting,
	},
	stBuyerMenu: {
		IntentBuyStart:  (*Bot).buyerBuyStart,
		IntentMyTickets: (*Bot).buyerMyTickets,
		IntentMainMenu:  (*Bot).buyerMainMenu,
		IntentAuthExit:  (*Bot).buyerLogout,
	},
	stBuyerOrgs: {
		IntentBuyOrg:   (*Bot).buyerOrgSelected,
		IntentBuyStart: (*Bot).buyerBuyStart,
		IntentMainMenu: (*Bot).buyerMainMenu,
	},
	stBuyerEvents: {
		IntentBuyEvent: (*Bot).buyerEventSelected,
		IntentBuyStart: (*Bot).buyerBuyStart,
		IntentMainMenu: (*Bot).buyerMainMenu,
	},
	stBuyerProducts: {
		IntentBuyProduct: (*Bot).buyerProductSelected,
		IntentEventsList: (*Bot).buyerEventsList,
	},
	stBuyerName: {
		IntentText:     (*Bot).buyerNameInput,
		IntentBuyEvent: (*Bot).buyerEventSelected,
	},
	stBuyerEmail: {
		IntentText:     (*Bot).buyerEmailInput,
		IntentBuyStart: (*Bot).buyerBuyStart,
	},
	stBuyerPromo: {
		IntentText:      (*Bot).buyerPromoInput,
		IntentSkipPromo: (*Bot).buyerSkipPromo,
		IntentBuyStart:  (*Bot).buyerBuyStart,
	},
	stBuyerConfirm: {
		IntentPay:         (*Bot).buyerPay,
		IntentBackToEmail: (*Bot).buyerBackToEmail,
	},
	stBuyerPayment: {
		IntentPaid:        (*Bot).buyerPaid,
		IntentBackToEmail: (*Bot).buyerBackToEmail,
	},
	stBuyerTickets: {
		IntentTicketRefund: (*Bot).buyerRefundAsk,
		IntentMainMenu:     (*Bot).buyerMainMenu,
	},
	stBuyerRefundConfirm: {
		IntentTicketRefundConfirm: (*Bot).buyerRefundConfirm,
		IntentMyTickets:           (*Bot).buyerMyTickets,
	},
}

var adminTable = table{
	stAdminMain: {
		IntentAddOwner:        (*Bot).adminAskOwner,
		IntentAllOrgs:         (*Bot).adminAllOrgs,
		IntentGlobalBlacklist: (*Bot).adminGlobalBlacklist,
		IntentGlobalBroadcast: (*Bot).adminGlobalBroadcast,
		IntentResetStart:      (*Bot).adminResetAsk,
		IntentAdminExit:       (*Bot).cancel,
		IntentBackMain:        (*Bot).adminMainMenu,
	},
	stAdminOwnerInput: {
		IntentText:     (*Bot).adminOwnerInput,
		IntentBackMain: (*Bot).adminMainMenu,
	},
	stAdminResetConfirm: {
		IntentResetConfirm: (*Bot).adminResetConfirm,
		IntentBackMain:     (*Bot).adminMainMenu,
	},
	stAdminOrgs: {
		IntentSelectOrg:   (*Bot).adminOrgSelected,
		IntentCreateOrg:   (*Bot).adminAskOrgName,
		IntentBackOrgList: (*Bot).adminOrgList,
		IntentBackMain:    (*Bot).adminMainMenu,
		IntentAdminExit:   (*Bot).cancel,
	},
	stAdminOrgName: {
		IntentText:        (*Bot).adminOrgNameInput,
		IntentBackOrgList: (*Bot).adminOrgList,
	},
	stAdminOrgMenu: {
		IntentEvents:       (*Bot).adminEvents,
		IntentCheckOrg:     (*Bot).adminCheckStart,
		IntentManageAdmins: (*Bot).adminAdmins,
		IntentOrgBroadcast: (*Bot).adminOrgBroadcast,
		IntentSetCard:      (*Bot).adminAskCard,
		IntentOrgBlacklist: (*Bot).adminOrgBlacklist,
		IntentDeleteOrg:    (*Bot).adminDeleteOrgAsk,
		IntentBackOrgList:  (*Bot).adminOrgList,
		IntentBackOrgMenu:  (*Bot).adminOrgMenu,
	},
	stAdminAdmins: {
		IntentAddAdmin:    (*Bot).adminAskAddAdmin,
		IntentRemoveAdmin: (*Bot).adminRemoveAdmin,
		IntentTransfer:    (*Bot).adminTransferAsk,
		IntentBackAdmins:  (*Bot).adminAdmins,
		IntentBackOrgMenu: (*Bot).adminOrgMenu,
	},
	stAdminAddAdmin: {
		IntentText:       (*Bot).adminAddAdminInput,
		IntentBackAdmins: (*Bot).adminAdmins,
	},
	stAdminTransfer: {
		IntentTransferConfirm: (*Bot).adminTransferConfirm,
		IntentBackAdmins:      (*Bot).adminAdmins,
	},
	stAdminCard: {
		IntentText:        (*Bot).adminCardInput,
		IntentBackOrgMenu: (*Bot).adminOrgMenu,
	},
	stAdminOrgDelete: {
		IntentDeleteOrgConfirm: (*Bot).adminDeleteOrgConfirm,
		IntentBackOrgMenu:      (*Bot).adminOrgMenu,
	},
	stAdminBlacklist: {
		IntentBlacklistAdd:    (*Bot).adminBlacklistAsk,
		IntentBlacklistRemove: (*Bot).adminBlacklistRemove,
		IntentBlacklistBack:   (*Bot).adminBlacklistShow,
		IntentBackMain:        (*Bot).adminMainMenu,
		IntentBackOrgMenu:     (*Bot).adminOrgMenu,
	},
	stAdminBlacklistID: {
		IntentText:          (*Bot).adminBlacklistIDInput,
		IntentBlacklistBack: (*Bot).adminBlacklistShow,
	},
	stAdminBlacklistNote: {
		IntentText:          (*Bot).adminBlacklistReasonInput,
		IntentBlacklistBack: (*Bot).adminBlacklistShow,
	},
	stAdminAudience: {
		IntentAudienceAll:    (*Bot).adminAudience,
		IntentAudienceBuyers: (*Bot).adminAudience,
		IntentBackMain:       (*Bot).adminMainMenu,
		IntentBackOrgMenu:    (*Bot).adminOrgMenu,
	},
	stAdminBroadcastText: {
		IntentText:        (*Bot).adminBroadcastInput,
		IntentBackMain:    (*Bot).adminMainMenu,
		IntentBackOrgMenu: (*Bot).adminOrgMenu,
	},
	stAdminEvents: {
		IntentSelectEvent: (*Bot).adminEventSelected,
		IntentCreateEvent: (*Bot).adminAskEventName,
		IntentDeleteEvent: (*Bot).adminDeleteEventPick,
		IntentBackOrgMenu: (*Bot).adminOrgMenu,
	},
	stAdminEventName: {
		IntentText:   (*Bot).adminEventNameInput,
		IntentEvents: (*Bot).adminEvents,
	},
	stAdminEventDate: {
		IntentText:   (*Bot).adminEventDateInput,
		IntentEvents: (*Bot).adminEvents,
	},
	stAdminEventDelete: {
		IntentDeleteEventPick: (*Bot).adminDeleteEvent,
		IntentEvents:          (*Bot).adminEvents,
	},
	stAdminEventMenu: {
		IntentListProducts:  (*Bot).adminProducts,
		IntentAddProduct:    (*Bot).adminAskProductName,
		IntentListPromos:    (*Bot).adminPromos,
		IntentCheckEvent:    (*Bot).adminCheckStart,
		IntentReport:        (*Bot).adminReport,
		IntentEvents:        (*Bot).adminEvents,
		IntentBackEventMenu: (*Bot).adminEventMenu,
	},
	stAdminProductName: {
		IntentText:          (*Bot).adminProductNameInput,
		IntentBackEventMenu: (*Bot).adminEventMenu,
	},
	stAdminProductPrice: {
		IntentText:          (*Bot).adminProductPriceInput,
		IntentBackEventMenu: (*Bot).adminEventMenu,
	},
	stAdminProductLimit: {
		IntentText:          (*Bot).adminProductLimitInput,
		IntentBackEventMenu: (*Bot).adminEventMenu,
	},
	stAdminProductRefund: {
		IntentRefundableYes: (*Bot).adminProductSave,
		IntentRefundableNo:  (*Bot).adminProductSave,
		IntentBackEventMenu: (*Bot).adminEventMenu,
	},
	stAdminPromos: {
		IntentCreatePromo:   (*Bot).adminAskPromoCode,
		IntentDeletePromo:   (*Bot).adminDeletePromo,
		IntentListPromos:    (*Bot).adminPromos,
		IntentBackEventMenu: (*Bot).adminEventMenu,
	},
	stAdminPromoCode: {
		IntentText:       (*Bot).adminPromoCodeInput,
		IntentListPromos: (*Bot).adminPromos,
	},
	stAdminPromoPercent: {
		IntentText:       (*Bot).adminPromoPercentInput,
		IntentListPromos: (*Bot).adminPromos,
	},
	stAdminPromoLimit: {
		IntentText:       (*Bot).adminPromoLimitInput,
		IntentListPromos: (*Bot).adminPromos,
	},
	stAdminCheck: {
		IntentText:          (*Bot).adminCheckInput,
		IntentPhoto:         (*Bot).adminCheckInput,
		IntentUseTicket:     (*Bot).adminUseTicket,
		IntentAdminRefund:   (*Bot).adminRefundTicket,
		IntentBackOrgMenu:   (*Bot).adminOrgMenu,
		IntentBackEventMenu: (*Bot).adminEventMenu,
	},
}
