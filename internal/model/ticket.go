package model

import "time"

// TicketStatus is the lifecycle position derived from the ticket flags.
type TicketStatus string

const (
	TicketPending  TicketStatus = "pending"  // created, awaiting payment approval
	TicketActive   TicketStatus = "active"   // approved, redeemable
	TicketUsed     TicketStatus = "used"     // redeemed at entry (terminal)
	TicketRefunded TicketStatus = "refunded" // cancelled, unit released (terminal)
)

// Ticket is a single admission.  It is created inactive and only moves
// forward: pending -> active -> used | refunded.
type Ticket struct {
	ID           string    // tickets.ticket_id ("T-" + 8 hex chars)
	ProductID    int64     // tickets.product_id
	BuyerChatID  int64     // tickets.buyer_chat_id
	BuyerName    string    // tickets.buyer_name
	BuyerEmail   string    // tickets.buyer_email
	FinalPrice   int       // tickets.final_price
	PromoCode    string    // tickets.promo_code (nullable)
	IsActive     bool      // tickets.is_active
	IsUsed       bool      // tickets.is_used
	IsRefunded   bool      // tickets.is_refunded
	PurchaseDate time.Time // tickets.purchase_date
	PaymentRef   string    // tickets.payment_ref (nullable), key of the pending approval
}

// Status maps the stored flags onto the lifecycle.
func (t Ticket) Status() TicketStatus {
	switch {
	case t.IsRefunded:
		return TicketRefunded
	case t.IsUsed:
		return TicketUsed
	case t.IsActive:
		return TicketActive
	default:
		return TicketPending
	}
}

// Redeemable reports whether the ticket may be let in.
func (t Ticket) Redeemable() bool { return t.IsActive && !t.IsUsed && !t.IsRefunded }

// TicketDetails is a ticket resolved up to its organization, used by ticket
// checks, refunds and the buyer's ticket list.
type TicketDetails struct {
	Ticket
	ProductName  string
	IsRefundable bool
	EventID      int64
	EventName    string
	EventDate    string
	OrgID        int64
	OrgOwnerID   int64
}
