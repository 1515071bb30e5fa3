package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/event-ticket-bot/internal/model"
)

// BlacklistRepo stores the global blacklist and the per-organization ones.
// Everywhere in this repo an orgID of 0 addresses the global list.
type BlacklistRepo struct {
	db *sql.DB
}

// NewBlacklistRepo returns a new BlacklistRepo bound to the given database.
func NewBlacklistRepo(db *sql.DB) *BlacklistRepo { return &BlacklistRepo{db: db} }

// Add blocks userID.  Blocking the same user twice yields ErrConflict.
func (r *BlacklistRepo) Add(ctx context.Context, e model.BlacklistEntry) error {
	var err error
	now := time.Now().UTC()
	if e.OrgID == 0 {
		_, err = r.db.ExecContext(ctx,
			`INSERT INTO global_blacklist (user_id, reason, blocked_by, created_at) VALUES (?, ?, ?, ?)`,
			e.UserID, nullString(e.Reason), nullInt64(e.BlockedBy), now)
	} else {
		_, err = r.db.ExecContext(ctx,
			`INSERT INTO org_blacklist (org_id, user_id, reason, blocked_by, created_at) VALUES (?, ?, ?, ?, ?)`,
			e.OrgID, e.UserID, nullString(e.Reason), nullInt64(e.BlockedBy), now)
	}
	if isDuplicate(err) {
		return ErrConflict
	}
	return err
}

// Remove unblocks userID.
func (r *BlacklistRepo) Remove(ctx context.Context, orgID, userID int64) error {
	var (
		res sql.Result
		err error
	)
	if orgID == 0 {
		res, err = r.db.ExecContext(ctx, `DELETE FROM global_blacklist WHERE user_id = ?`, userID)
	} else {
		res, err = r.db.ExecContext(ctx, `DELETE FROM org_blacklist WHERE org_id = ? AND user_id = ?`, orgID, userID)
	}
	if err != nil {
		return err
	}
	return expectOne(res)
}

// List returns the entries of one list, newest first.
func (r *BlacklistRepo) List(ctx context.Context, orgID int64) ([]model.BlacklistEntry, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if orgID == 0 {
		rows, err = r.db.QueryContext(ctx,
			`SELECT 0, user_id, reason, blocked_by, created_at FROM global_blacklist ORDER BY created_at DESC, user_id`)
	} else {
		rows, err = r.db.QueryContext(ctx,
			`SELECT org_id, user_id, reason, blocked_by, created_at FROM org_blacklist WHERE org_id = ? ORDER BY created_at DESC, user_id`, orgID)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.BlacklistEntry
	for rows.Next() {
		var (
			e      model.BlacklistEntry
			reason sql.NullString
			by     sql.NullInt64
		)
		if err := rows.Scan(&e.OrgID, &e.UserID, &reason, &by, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Reason, e.BlockedBy = reason.String, by.Int64
		out = append(out, e)
	}
	return out, rows.Err()
}

// IsBlocked reports whether userID is on the global list or on the list of
// orgID.
func (r *BlacklistRepo) IsBlocked(ctx context.Context, orgID, userID int64) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT (SELECT COUNT(*) FROM global_blacklist WHERE user_id = ?)
		      + (SELECT COUNT(*) FROM org_blacklist WHERE org_id = ? AND user_id = ?)`,
		userID, orgID, userID).Scan(&n)
	return n > 0, err
}
