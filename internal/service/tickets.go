package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/event-ticket-bot/internal/metrics"
	"github.com/iliyamo/event-ticket-bot/internal/model"
	"github.com/iliyamo/event-ticket-bot/internal/queue"
	"github.com/iliyamo/event-ticket-bot/internal/repository"
	"github.com/iliyamo/event-ticket-bot/internal/utils"
)

// Tickets runs the ticket lifecycle.  Every transition that touches the
// inventory ledger or a promo counter runs in one database transaction.
type Tickets struct {
	db       *sql.DB
	products *repository.ProductRepo
	tickets  *repository.TicketRepo
	promos   *repository.PromoRepo
	access   *Access
	events   EventPublisher
	metrics  *metrics.Metrics
	log      *zap.Logger
}

// TicketsDeps bundles the collaborators of Tickets.
type TicketsDeps struct {
	DB        *sql.DB
	Products  *repository.ProductRepo
	Tickets   *repository.TicketRepo
	Promos    *repository.PromoRepo
	Access    *Access
	Publisher EventPublisher
	Metrics   *metrics.Metrics
	Log       *zap.Logger
}

// NewTickets wires a Tickets service.
func NewTickets(d TicketsDeps) *Tickets {
	if d.Publisher == nil {
		d.Publisher = NopPublisher{}
	}
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	return &Tickets{
		db: d.DB, products: d.Products, tickets: d.Tickets, promos: d.Promos,
		access: d.Access, events: d.Publisher, metrics: d.Metrics, log: d.Log.Named("tickets"),
	}
}

// NormalizeTicketCode trims and upper-cases a code typed by staff.
func NormalizeTicketCode(s string) string { return strings.ToUpper(strings.TrimSpace(s)) }

// Quote is the price a buyer is asked to pay.
type Quote struct {
	Product    model.ProductInfo
	Promo      *model.PromoCode
	FinalPrice int
}

// Quote validates an optional promo code for the tier's event and returns
// the discounted price.  An unknown code yields repository.ErrNotFound, an
// exhausted one repository.ErrPromoExhausted.
func (s *Tickets) Quote(ctx context.Context, productID int64, promoCode string) (Quote, error) {
	info, err := s.products.GetInfo(ctx, productID)
	if err != nil {
		return Quote{}, err
	}
	q := Quote{Product: info, FinalPrice: info.Price}
	if code := repository.NormalizeCode(promoCode); code != "" {
		p, err := s.promos.Find(ctx, code, info.EventID)
		if err != nil {
			return q, err
		}
		q.Promo = &p
		q.FinalPrice = ApplyDiscount(info.Price, p.DiscountPercent)
	}
	return q, nil
}

// PurchaseRequest describes a buyer's confirmed order.
type PurchaseRequest struct {
	ProductID  int64
	BuyerID    int64
	BuyerName  string
	BuyerEmail string
	PromoCode  string
	PaymentRef string // key the approval record is stored under
}

// Purchase creates a pending ticket.  Promo redemption, the ledger sale and
// the ticket insert share one transaction: a sold-out tier or an exhausted
// promo aborts the whole purchase without side effects.
func (s *Tickets) Purchase(ctx context.Context, req PurchaseRequest) (model.Ticket, Quote, error) {
	q, err := s.Quote(ctx, req.ProductID, req.PromoCode)
	if err != nil {
		return model.Ticket{}, q, err
	}
	t := model.Ticket{
		ID:           utils.NewTicketCode(),
		ProductID:    req.ProductID,
		BuyerChatID:  req.BuyerID,
		BuyerName:    strings.TrimSpace(req.BuyerName),
		BuyerEmail:   strings.TrimSpace(req.BuyerEmail),
		FinalPrice:   q.FinalPrice,
		PurchaseDate: time.Now().UTC(),
		PaymentRef:   req.PaymentRef,
	}
	if q.Promo != nil {
		t.PromoCode = q.Promo.Code
	}
	err = repository.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		if t.PromoCode != "" {
			if err := s.promos.RedeemTx(ctx, tx, t.PromoCode, q.Product.EventID); err != nil {
				return err
			}
		}
		if err := s.products.SellTx(ctx, tx, t.ProductID); err != nil {
			return err
		}
		return s.tickets.CreateTx(ctx, tx, &t)
	})
	if err != nil {
		if errors.Is(err, repository.ErrSoldOut) {
			s.metrics.TrackTicket(metrics.OpSoldOut)
		}
		return model.Ticket{}, q, err
	}
	s.metrics.TrackTicket(metrics.OpSold)
	s.publish(ctx, queue.KindIssued, t, q.Product.EventID, q.Product.OrgID, req.BuyerID)
	return t, q, nil
}

// Approve activates a pending ticket on behalf of actorID, who must be the
// super admin or hold a role in the ticket's organization.
func (s *Tickets) Approve(ctx context.Context, ticketID string, actorID int64) (model.TicketDetails, error) {
	d, err := s.tickets.GetDetails(ctx, ticketID)
	if err != nil {
		return d, err
	}
	if err := s.access.Authorize(ctx, actorID, d.OrgID, ActionTicketsApprove); err != nil {
		return d, err
	}
	if err := s.tickets.Activate(ctx, ticketID); err != nil {
		return d, err
	}
	d.IsActive = true
	s.metrics.TrackTicket(metrics.OpApproved)
	s.publish(ctx, queue.KindApproved, d.Ticket, d.EventID, d.OrgID, actorID)
	return d, nil
}

// Reject discards a pending ticket and gives back its unit and promo use.
func (s *Tickets) Reject(ctx context.Context, ticketID string, actorID int64) (model.TicketDetails, error) {
	d, err := s.tickets.GetDetails(ctx, ticketID)
	if err != nil {
		return d, err
	}
	if err := s.access.Authorize(ctx, actorID, d.OrgID, ActionTicketsApprove); err != nil {
		return d, err
	}
	if err := s.discard(ctx, ticketID); err != nil {
		return d, err
	}
	s.metrics.TrackTicket(metrics.OpRejected)
	s.publish(ctx, queue.KindRejected, d.Ticket, d.EventID, d.OrgID, actorID)
	return d, nil
}

// Abandon discards a pending ticket whose purchase could not be completed,
// e.g. because its approval record was not stored.  No actor is involved.
func (s *Tickets) Abandon(ctx context.Context, ticketID string) error {
	return s.discard(ctx, ticketID)
}

// StalePending lists tickets that have been waiting for approval longer
// than age.
func (s *Tickets) StalePending(ctx context.Context, age time.Duration) ([]model.TicketDetails, error) {
	return s.tickets.ListPendingBefore(ctx, time.Now().Add(-age))
}

// Expire discards a pending ticket whose approval record is gone, so no
// admin can act on it any more.  Its unit and promo use are released.
func (s *Tickets) Expire(ctx context.Context, d model.TicketDetails) error {
	if err := s.discard(ctx, d.ID); err != nil {
		return err
	}
	s.metrics.TrackTicket(metrics.OpExpired)
	s.publish(ctx, queue.KindExpired, d.Ticket, d.EventID, d.OrgID, 0)
	return nil
}

func (s *Tickets) discard(ctx context.Context, ticketID string) error {
	return repository.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		t, err := s.tickets.DeletePendingTx(ctx, tx, ticketID)
		if err != nil {
			return err
		}
		if err := s.products.ReleaseTx(ctx, tx, t.ProductID); err != nil {
			return err
		}
		return s.promos.ReleaseTx(ctx, tx, t.PromoCode)
	})
}

// Check resolves a ticket for staff at the door of orgID.  Tickets of other
// organizations are rejected with repository.ErrForbidden unless checkerID
// is the super admin.
func (s *Tickets) Check(ctx context.Context, code string, checkerID, orgID int64) (model.TicketDetails, error) {
	d, err := s.tickets.GetDetails(ctx, NormalizeTicketCode(code))
	if err != nil {
		return d, err
	}
	if err := s.authorizeAt(ctx, d, checkerID, orgID, ActionTicketsCheck); err != nil {
		return model.TicketDetails{}, err
	}
	return d, nil
}

// Redeem lets a ticket in.  Only active, unused tickets pass; anything else
// yields repository.ErrTicketNotValid and leaves the ticket unchanged.
func (s *Tickets) Redeem(ctx context.Context, code string, checkerID, orgID int64) (model.TicketDetails, error) {
	d, err := s.Check(ctx, code, checkerID, orgID)
	if err != nil {
		return d, err
	}
	if err := s.tickets.Redeem(ctx, d.ID); err != nil {
		return d, err
	}
	d.IsUsed = true
	s.metrics.TrackTicket(metrics.OpRedeemed)
	s.publish(ctx, queue.KindRedeemed, d.Ticket, d.EventID, d.OrgID, checkerID)
	return d, nil
}

// RefundByBuyer refunds one of the buyer's own tickets.
func (s *Tickets) RefundByBuyer(ctx context.Context, code string, buyerID int64) (model.TicketDetails, error) {
	return s.refund(ctx, NormalizeTicketCode(code), buyerID, func(d model.TicketDetails) error {
		if d.BuyerChatID != buyerID {
			return repository.ErrForbidden
		}
		return nil
	})
}

// RefundByAdmin refunds a ticket at the door of orgID.
func (s *Tickets) RefundByAdmin(ctx context.Context, code string, adminID, orgID int64) (model.TicketDetails, error) {
	return s.refund(ctx, NormalizeTicketCode(code), adminID, func(d model.TicketDetails) error {
		return s.authorizeAt(ctx, d, adminID, orgID, ActionTicketsRefund)
	})
}

func (s *Tickets) refund(ctx context.Context, code string, actorID int64, allow func(model.TicketDetails) error) (model.TicketDetails, error) {
	pre, err := s.tickets.GetDetails(ctx, code)
	if err != nil {
		return pre, err
	}
	if err := allow(pre); err != nil {
		return pre, err
	}
	var d model.TicketDetails
	err = repository.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		var err error
		if d, err = s.tickets.MarkRefundedTx(ctx, tx, code); err != nil {
			return err
		}
		return s.products.ReleaseTx(ctx, tx, d.ProductID)
	})
	if err != nil {
		return pre, err
	}
	s.metrics.TrackTicket(metrics.OpRefunded)
	s.publish(ctx, queue.KindRefunded, d.Ticket, d.EventID, d.OrgID, actorID)
	return d, nil
}

// ListMine returns the buyer's redeemable tickets.
func (s *Tickets) ListMine(ctx context.Context, buyerID int64) ([]model.TicketDetails, error) {
	return s.tickets.ListRedeemableByBuyer(ctx, buyerID)
}

// BuyerIDs returns the distinct buyers of an organization, the audience of
// an organization broadcast.
func (s *Tickets) BuyerIDs(ctx context.Context, orgID int64) ([]int64, error) {
	return s.tickets.BuyerIDsByOrg(ctx, orgID)
}

func (s *Tickets) authorizeAt(ctx context.Context, d model.TicketDetails, actorID, orgID int64, action string) error {
	if s.access.IsSuperAdmin(actorID) {
		return nil
	}
	if orgID != 0 && d.OrgID != orgID {
		return repository.ErrForbidden
	}
	return s.access.Authorize(ctx, actorID, d.OrgID, action)
}

func (s *Tickets) publish(ctx context.Context, kind string, t model.Ticket, eventID, orgID, actorID int64) {
	ev := queue.TicketEvent{
		Kind: kind, TicketID: t.ID, ProductID: t.ProductID, EventID: eventID, OrgID: orgID,
		BuyerID: t.BuyerChatID, ActorID: actorID, FinalPrice: t.FinalPrice, PromoCode: t.PromoCode,
		OccurredAt: time.Now().UTC().Format(time.RFC3339),
	}
	if err := s.events.Publish(ctx, ev); err != nil {
		s.log.Warn("publish ticket event failed", zap.Error(err), zap.String("ticket_id", t.ID), zap.String("kind", kind))
	}
}
