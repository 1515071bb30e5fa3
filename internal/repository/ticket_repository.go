package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/event-ticket-bot/internal/model"
)

// TicketRepo provides the ticket lifecycle transitions.  Transitions are
// guarded UPDATEs on the status flags so a ticket only moves forward:
// pending -> active -> used | refunded.  Rows whose guard does not match are
// reported as ErrTicketNotValid and left untouched.
type TicketRepo struct {
	db     *sql.DB
	driver string
}

// NewTicketRepo returns a TicketRepo bound to the given database.
func NewTicketRepo(db *sql.DB, driver string) *TicketRepo { return &TicketRepo{db: db, driver: driver} }

const ticketColumns = `t.ticket_id, t.product_id, t.buyer_chat_id, t.buyer_name, t.buyer_email, t.final_price, t.promo_code, t.is_active, t.is_used, t.is_refunded, t.purchase_date, t.payment_ref`

const detailsFrom = ` FROM tickets t
	JOIN products p ON p.id = t.product_id
	JOIN events e ON e.id = p.event_id
	JOIN organizations o ON o.id = e.org_id`

const detailsColumns = ticketColumns + `, p.name, p.is_refundable, e.id, e.name, e.date_str, o.id, o.owner_id`

func scanTicket(row interface{ Scan(...any) error }, extra ...any) (model.Ticket, error) {
	var (
		t     model.Ticket
		promo sql.NullString
		ref   sql.NullString
	)
	dest := append([]any{&t.ID, &t.ProductID, &t.BuyerChatID, &t.BuyerName, &t.BuyerEmail, &t.FinalPrice,
		&promo, &t.IsActive, &t.IsUsed, &t.IsRefunded, &t.PurchaseDate, &ref}, extra...)
	err := row.Scan(dest...)
	if errors.Is(err, sql.ErrNoRows) {
		return t, ErrNotFound
	}
	t.PromoCode, t.PaymentRef = promo.String, ref.String
	return t, err
}

func scanDetails(row interface{ Scan(...any) error }) (model.TicketDetails, error) {
	var (
		d     model.TicketDetails
		owner sql.NullInt64
	)
	t, err := scanTicket(row, &d.ProductName, &d.IsRefundable, &d.EventID, &d.EventName, &d.EventDate, &d.OrgID, &owner)
	d.Ticket, d.OrgOwnerID = t, owner.Int64
	return d, err
}

// CreateTx inserts a pending (inactive) ticket inside tx.  It must be paired
// with ProductRepo.SellTx in the same transaction.
func (r *TicketRepo) CreateTx(ctx context.Context, tx *sql.Tx, t *model.Ticket) error {
	if t.PurchaseDate.IsZero() {
		t.PurchaseDate = time.Now().UTC()
	}
	t.IsActive, t.IsUsed, t.IsRefunded = false, false, false
	_, err := tx.ExecContext(ctx,
		`INSERT INTO tickets (ticket_id, product_id, buyer_chat_id, buyer_name, buyer_email, final_price, promo_code, is_active, is_used, is_refunded, purchase_date, payment_ref)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.ProductID, t.BuyerChatID, t.BuyerName, t.BuyerEmail, t.FinalPrice, nullString(t.PromoCode),
		false, false, false, t.PurchaseDate, nullString(t.PaymentRef))
	if isDuplicate(err) {
		return ErrConflict
	}
	return err
}

// Get fetches a ticket by code.
func (r *TicketRepo) Get(ctx context.Context, id string) (model.Ticket, error) {
	return scanTicket(r.db.QueryRowContext(ctx,
		`SELECT `+ticketColumns+` FROM tickets t WHERE t.ticket_id = ?`, id))
}

// GetDetails fetches a ticket resolved to its tier, event and organization.
func (r *TicketRepo) GetDetails(ctx context.Context, id string) (model.TicketDetails, error) {
	return scanDetails(r.db.QueryRowContext(ctx,
		`SELECT `+detailsColumns+detailsFrom+` WHERE t.ticket_id = ?`, id))
}

// Activate moves a pending ticket to active.
func (r *TicketRepo) Activate(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE tickets SET is_active = ? WHERE ticket_id = ? AND is_active = ? AND is_used = ? AND is_refunded = ?`,
		true, id, false, false, false)
	if err != nil {
		return err
	}
	return r.guarded(ctx, r.db, res, id)
}

// Redeem marks an active ticket as used.  Redeeming a used, pending or
// refunded ticket yields ErrTicketNotValid and changes nothing.
func (r *TicketRepo) Redeem(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE tickets SET is_used = ? WHERE ticket_id = ? AND is_active = ? AND is_used = ? AND is_refunded = ?`,
		true, id, true, false, false)
	if err != nil {
		return err
	}
	return r.guarded(ctx, r.db, res, id)
}

// DeletePendingTx removes a pending ticket inside tx and returns it so the
// caller can release its unit and promo use in the same transaction.
func (r *TicketRepo) DeletePendingTx(ctx context.Context, tx *sql.Tx, id string) (model.Ticket, error) {
	t, err := scanTicket(tx.QueryRowContext(ctx,
		`SELECT `+ticketColumns+` FROM tickets t WHERE t.ticket_id = ?`+lockSuffix(r.driver), id))
	if err != nil {
		return t, err
	}
	if t.Status() != model.TicketPending {
		return t, ErrTicketNotValid
	}
	res, err := tx.ExecContext(ctx,
		`DELETE FROM tickets WHERE ticket_id = ? AND is_active = ? AND is_used = ? AND is_refunded = ?`,
		id, false, false, false)
	if err != nil {
		return t, err
	}
	if err := expectOne(res); err != nil {
		return t, ErrTicketNotValid
	}
	return t, nil
}

// MarkRefundedTx refunds an active, unused ticket of a refundable tier
// inside tx and returns its details.  The caller releases the unit with
// ProductRepo.ReleaseTx in the same transaction.
func (r *TicketRepo) MarkRefundedTx(ctx context.Context, tx *sql.Tx, id string) (model.TicketDetails, error) {
	d, err := scanDetails(tx.QueryRowContext(ctx,
		`SELECT `+detailsColumns+detailsFrom+` WHERE t.ticket_id = ?`, id))
	if err != nil {
		return d, err
	}
	if !d.IsRefundable {
		return d, ErrNotRefundable
	}
	res, err := tx.ExecContext(ctx,
		`UPDATE tickets SET is_refunded = ? WHERE ticket_id = ? AND is_active = ? AND is_used = ? AND is_refunded = ?`,
		true, id, true, false, false)
	if err != nil {
		return d, err
	}
	if err := r.guarded(ctx, tx, res, id); err != nil {
		return d, err
	}
	d.IsRefunded = true
	return d, nil
}

// ListRedeemableByBuyer returns the buyer's active, unused, unrefunded
// tickets, newest first.
func (r *TicketRepo) ListRedeemableByBuyer(ctx context.Context, buyerID int64) ([]model.TicketDetails, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+detailsColumns+detailsFrom+`
		 WHERE t.buyer_chat_id = ? AND t.is_active = ? AND t.is_used = ? AND t.is_refunded = ?
		 ORDER BY t.purchase_date DESC, t.ticket_id`, buyerID, true, false, false)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.TicketDetails
	for rows.Next() {
		d, err := scanDetails(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// ListActiveByEvent returns every activated, unrefunded ticket of an event
// with its tier name, in purchase order.  Used tickets are included.
func (r *TicketRepo) ListActiveByEvent(ctx context.Context, eventID int64) ([]model.TicketDetails, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+detailsColumns+detailsFrom+`
		 WHERE e.id = ? AND t.is_active = ? AND t.is_refunded = ?
		 ORDER BY t.purchase_date, t.ticket_id`, eventID, true, false)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.TicketDetails
	for rows.Next() {
		d, err := scanDetails(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// ListPendingBefore returns the tickets still awaiting approval that were
// bought before cutoff, oldest first.
func (r *TicketRepo) ListPendingBefore(ctx context.Context, cutoff time.Time) ([]model.TicketDetails, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+detailsColumns+detailsFrom+`
		 WHERE t.is_active = ? AND t.is_used = ? AND t.is_refunded = ? AND t.purchase_date < ?
		 ORDER BY t.purchase_date, t.ticket_id`, false, false, false, cutoff.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.TicketDetails
	for rows.Next() {
		d, err := scanDetails(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// BuyerIDsByOrg returns the distinct buyers holding an active, unrefunded
// ticket for any event of the organization.
func (r *TicketRepo) BuyerIDsByOrg(ctx context.Context, orgID int64) ([]int64, error) {
	return queryIDs(ctx, r.db,
		`SELECT DISTINCT t.buyer_chat_id`+detailsFrom+`
		 WHERE o.id = ? AND t.is_active = ? AND t.is_refunded = ?
		 ORDER BY t.buyer_chat_id`, orgID, true, false)
}

// guarded distinguishes a missing ticket from a failed state guard after a
// conditional UPDATE.
func (r *TicketRepo) guarded(ctx context.Context, q querier, res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	if err := ticketExists(ctx, q, id); err != nil {
		return err
	}
	return ErrTicketNotValid
}

func ticketExists(ctx context.Context, q querier, id string) error {
	var one int
	err := q.QueryRowContext(ctx, `SELECT 1 FROM tickets WHERE ticket_id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
