// Package queue defines message payloads exchanged over the message broker.
package queue

// TicketQueueName is the durable queue carrying ticket lifecycle events.
const TicketQueueName = "ticket.events"

// Ticket event kinds.
const (
	KindIssued   = "issued"   // buyer paid, ticket pending approval
	KindApproved = "approved" // payment approved, ticket active
	KindRejected = "rejected" // payment rejected, ticket discarded
	KindRedeemed = "redeemed" // ticket used at entry
	KindRefunded = "refunded" // ticket refunded, unit released
	KindExpired  = "expired"  // approval record lost, ticket discarded
)

// TicketEvent is published on every ticket lifecycle transition.  It carries
// enough information for downstream consumers to log or run analytics
// without querying the primary database.
type TicketEvent struct {
	Kind       string `json:"kind"`
	TicketID   string `json:"ticket_id"`
	ProductID  int64  `json:"product_id"`
	EventID    int64  `json:"event_id,omitempty"`
	OrgID      int64  `json:"org_id,omitempty"`
	BuyerID    int64  `json:"buyer_id"`
	ActorID    int64  `json:"actor_id,omitempty"`
	FinalPrice int    `json:"final_price"`
	PromoCode  string `json:"promo_code,omitempty"`
	OccurredAt string `json:"occurred_at"`
}
