package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/event-ticket-bot/internal/model"
)

// ProductRepo owns the ticket tiers and the inventory ledger: the
// quantity_sold counter is changed only by SellTx and ReleaseTx, each a
// single guarded UPDATE inside the caller's transaction.
type ProductRepo struct {
	db     *sql.DB
	driver string
}

// NewProductRepo returns a ProductRepo bound to the given database.  driver
// selects the row-locking dialect used by SellTx.
func NewProductRepo(db *sql.DB, driver string) *ProductRepo {
	return &ProductRepo{db: db, driver: driver}
}

const productColumns = `p.id, p.event_id, p.name, p.description, p.price, p.quantity_limit, p.quantity_sold, p.is_refundable, p.created_at`

func scanProduct(row interface{ Scan(...any) error }, extra ...any) (model.Product, error) {
	var (
		p    model.Product
		desc sql.NullString
	)
	dest := append([]any{&p.ID, &p.EventID, &p.Name, &desc, &p.Price, &p.QuantityLimit, &p.QuantitySold, &p.IsRefundable, &p.CreatedAt}, extra...)
	err := row.Scan(dest...)
	if errors.Is(err, sql.ErrNoRows) {
		return p, ErrNotFound
	}
	p.Description = desc.String
	return p, err
}

// Create inserts a tier with quantity_sold = 0.
func (r *ProductRepo) Create(ctx context.Context, p model.Product) (model.Product, error) {
	if p.QuantityLimit < 0 {
		p.QuantityLimit = 0
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO products (event_id, name, description, price, quantity_limit, quantity_sold, is_refundable, created_at)
		 VALUES (?, ?, ?, ?, ?, 0, ?, ?)`,
		p.EventID, p.Name, nullString(p.Description), p.Price, p.QuantityLimit, p.IsRefundable, time.Now().UTC())
	if err != nil {
		return model.Product{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.Product{}, err
	}
	return r.Get(ctx, id)
}

// Get fetches a tier by id.
func (r *ProductRepo) Get(ctx context.Context, id int64) (model.Product, error) {
	return scanProduct(r.db.QueryRowContext(ctx,
		`SELECT `+productColumns+` FROM products p WHERE p.id = ?`, id))
}

// GetInfo fetches a tier together with its event and organization.
func (r *ProductRepo) GetInfo(ctx context.Context, id int64) (model.ProductInfo, error) {
	var info model.ProductInfo
	p, err := scanProduct(r.db.QueryRowContext(ctx,
		`SELECT `+productColumns+`, e.name, o.id, o.name
		 FROM products p
		 JOIN events e ON e.id = p.event_id
		 JOIN organizations o ON o.id = e.org_id
		 WHERE p.id = ?`, id), &info.EventName, &info.OrgID, &info.OrgName)
	info.Product = p
	return info, err
}

// ListByEvent returns the tiers of an event ordered by id.
func (r *ProductRepo) ListByEvent(ctx context.Context, eventID int64) ([]model.Product, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+productColumns+` FROM products p WHERE p.event_id = ? ORDER BY p.id`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Availability reports whether a unit can currently be sold and how many
// remain (model.UnlimitedRemaining for uncapped tiers).  The answer is
// advisory only: it is shown in menus and may be stale by the time the
// buyer confirms.  SellTx is the binding check.
func (r *ProductRepo) Availability(ctx context.Context, id int64) (bool, int, error) {
	p, err := r.Get(ctx, id)
	if err != nil {
		return false, 0, err
	}
	remaining := p.Remaining()
	return remaining > 0, remaining, nil
}

// SellTx consumes one unit of the tier inside tx.  It re-reads the counters
// under a row lock, refuses with ErrSoldOut when a limited tier is full and
// otherwise increments quantity_sold with a guarded UPDATE, so concurrent
// sellers of the last unit cannot both succeed.  The caller inserts the
// ticket in the same transaction.
func (r *ProductRepo) SellTx(ctx context.Context, tx *sql.Tx, id int64) error {
	var limit, sold int
	err := tx.QueryRowContext(ctx,
		`SELECT quantity_limit, quantity_sold FROM products WHERE id = ?`+lockSuffix(r.driver), id).
		Scan(&limit, &sold)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if limit > 0 && sold >= limit {
		return ErrSoldOut
	}
	res, err := tx.ExecContext(ctx,
		`UPDATE products SET quantity_sold = quantity_sold + 1
		 WHERE id = ? AND (quantity_limit = 0 OR quantity_sold < quantity_limit)`, id)
	if err != nil {
		return err
	}
	if err := expectOne(res); err != nil {
		return ErrSoldOut
	}
	return nil
}

// ReleaseTx returns one unit to the tier inside tx.  The counter never
// drops below zero.
func (r *ProductRepo) ReleaseTx(ctx context.Context, tx *sql.Tx, id int64) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE products SET quantity_sold = quantity_sold - 1 WHERE id = ? AND quantity_sold > 0`, id)
	return err
}
