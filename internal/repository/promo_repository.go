package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/iliyamo/event-ticket-bot/internal/model"
)

// PromoRepo stores promo codes.  Codes are unique system wide and stored
// upper-case; each is bound to exactly one event.
type PromoRepo struct {
	db *sql.DB
}

// NewPromoRepo returns a new PromoRepo bound to the given database.
func NewPromoRepo(db *sql.DB) *PromoRepo { return &PromoRepo{db: db} }

// NormalizeCode trims and upper-cases a promo code as typed by a user.
func NormalizeCode(code string) string { return strings.ToUpper(strings.TrimSpace(code)) }

const promoColumns = `code, event_id, discount_percent, usage_limit, used_count, is_active`

func scanPromo(row interface{ Scan(...any) error }) (model.PromoCode, error) {
	var p model.PromoCode
	err := row.Scan(&p.Code, &p.EventID, &p.DiscountPercent, &p.UsageLimit, &p.UsedCount, &p.IsActive)
	if errors.Is(err, sql.ErrNoRows) {
		return p, ErrNotFound
	}
	return p, err
}

// Create inserts an active promo code.  A code that already exists, for any
// event, yields ErrConflict.
func (r *PromoRepo) Create(ctx context.Context, p model.PromoCode) (model.PromoCode, error) {
	p.Code = NormalizeCode(p.Code)
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO promocodes (code, event_id, discount_percent, usage_limit, used_count, is_active) VALUES (?, ?, ?, ?, 0, ?)`,
		p.Code, p.EventID, p.DiscountPercent, p.UsageLimit, true)
	if err != nil {
		if isDuplicate(err) {
			return model.PromoCode{}, ErrConflict
		}
		return model.PromoCode{}, err
	}
	p.UsedCount, p.IsActive = 0, true
	return p, nil
}

// Find returns the code if it exists for eventID.  A code belonging to a
// different event is reported as ErrNotFound; an exhausted or inactive one
// as ErrPromoExhausted.
func (r *PromoRepo) Find(ctx context.Context, code string, eventID int64) (model.PromoCode, error) {
	p, err := scanPromo(r.db.QueryRowContext(ctx,
		`SELECT `+promoColumns+` FROM promocodes WHERE code = ? AND event_id = ?`, NormalizeCode(code), eventID))
	if err != nil {
		return p, err
	}
	if !p.Available() {
		return p, ErrPromoExhausted
	}
	return p, nil
}

// ListByEvent returns the codes of an event.
func (r *PromoRepo) ListByEvent(ctx context.Context, eventID int64) ([]model.PromoCode, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+promoColumns+` FROM promocodes WHERE event_id = ? ORDER BY code`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.PromoCode
	for rows.Next() {
		p, err := scanPromo(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Delete removes a code outright.
func (r *PromoRepo) Delete(ctx context.Context, code string, eventID int64) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM promocodes WHERE code = ? AND event_id = ?`, NormalizeCode(code), eventID)
	if err != nil {
		return err
	}
	return expectOne(res)
}

// RedeemTx records one use of the code inside tx.  The guarded UPDATE keeps
// used_count within usage_limit under concurrent purchases; a code that
// cannot be used any more yields ErrPromoExhausted.
func (r *PromoRepo) RedeemTx(ctx context.Context, tx *sql.Tx, code string, eventID int64) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE promocodes SET used_count = used_count + 1
		 WHERE code = ? AND event_id = ? AND is_active = ? AND (usage_limit = 0 OR used_count < usage_limit)`,
		NormalizeCode(code), eventID, true)
	if err != nil {
		return err
	}
	if err := expectOne(res); err != nil {
		return ErrPromoExhausted
	}
	return nil
}

// ReleaseTx gives back one use of the code, e.g. when the payment for a
// ticket bought with it is rejected.  A deleted code is ignored.
func (r *PromoRepo) ReleaseTx(ctx context.Context, tx *sql.Tx, code string) error {
	if code == "" {
		return nil
	}
	_, err := tx.ExecContext(ctx,
		`UPDATE promocodes SET used_count = used_count - 1 WHERE code = ? AND used_count > 0`, NormalizeCode(code))
	return err
}
