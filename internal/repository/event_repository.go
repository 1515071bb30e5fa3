package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/event-ticket-bot/internal/model"
)

// EventRepo provides CRUD operations for events.  Deleting an event cascades
// to its products, tickets and promo codes.
type EventRepo struct {
	db *sql.DB
}

// NewEventRepo returns a new EventRepo bound to the given database.
func NewEventRepo(db *sql.DB) *EventRepo { return &EventRepo{db: db} }

const eventColumns = `id, org_id, name, description, location, date_str, is_active, created_at`

func scanEvent(row interface{ Scan(...any) error }) (model.Event, error) {
	var (
		e             model.Event
		desc, locText sql.NullString
	)
	err := row.Scan(&e.ID, &e.OrgID, &e.Name, &desc, &locText, &e.DateStr, &e.IsActive, &e.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return e, ErrNotFound
	}
	e.Description, e.Location = desc.String, locText.String
	return e, err
}

// Create inserts an active event and returns the stored row.
func (r *EventRepo) Create(ctx context.Context, e model.Event) (model.Event, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO events (org_id, name, description, location, date_str, is_active, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.OrgID, e.Name, nullString(e.Description), nullString(e.Location), e.DateStr, true, time.Now().UTC())
	if err != nil {
		return model.Event{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.Event{}, err
	}
	return r.Get(ctx, id)
}

// Get fetches an event by id.
func (r *EventRepo) Get(ctx context.Context, id int64) (model.Event, error) {
	return scanEvent(r.db.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM events WHERE id = ?`, id))
}

// ListByOrg returns the events of an organization; activeOnly hides
// deactivated events from buyers.
func (r *EventRepo) ListByOrg(ctx context.Context, orgID int64, activeOnly bool) ([]model.Event, error) {
	q := `SELECT ` + eventColumns + ` FROM events WHERE org_id = ?`
	args := []any{orgID}
	if activeOnly {
		q += ` AND is_active = ?`
		args = append(args, true)
	}
	rows, err := r.db.QueryContext(ctx, q+` ORDER BY id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Delete removes an event and, through the schema cascade, everything
// below it.
func (r *EventRepo) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM events WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return expectOne(res)
}
