package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/iliyamo/event-ticket-bot/internal/model"
)

// UserRepo provides access to the users table.  Users are keyed by their
// chat identifier and are created lazily on the first interaction.
type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

const userColumns = `chat_id, username, first_name, login, password_hash, is_authenticated, org_quota, joined_at`

func scanUser(row interface{ Scan(...any) error }) (model.User, error) {
	var (
		u                          model.User
		username, first, login, pw sql.NullString
	)
	err := row.Scan(&u.ChatID, &username, &first, &login, &pw, &u.IsAuthenticated, &u.OrgQuota, &u.JoinedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return u, ErrNotFound
	}
	if err != nil {
		return u, err
	}
	u.Username, u.FirstName, u.Login, u.PasswordHash = username.String, first.String, login.String, pw.String
	return u, nil
}

// Touch records the latest username and first name reported by the
// transport, creating the row on the first call.  The UPDATE-then-INSERT
// pair avoids driver specific upsert syntax; calls for one chat are
// serialised by the session layer.
func (r *UserRepo) Touch(ctx context.Context, chatID int64, username, firstName string) error {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE users SET username = ?, first_name = ? WHERE chat_id = ?`,
		nullString(username), nullString(firstName), chatID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil || n > 0 {
		return err
	}
	_, err = r.DB.ExecContext(ctx,
		`INSERT INTO users (chat_id, username, first_name, joined_at) VALUES (?, ?, ?, ?)`,
		chatID, nullString(username), nullString(firstName), time.Now().UTC())
	if err != nil && isDuplicate(err) {
		return nil
	}
	return err
}

// Get fetches a user by chat id.
func (r *UserRepo) Get(ctx context.Context, chatID int64) (model.User, error) {
	return scanUser(r.DB.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE chat_id = ? LIMIT 1`, chatID))
}

// GetByLogin fetches a user by normalised login.
func (r *UserRepo) GetByLogin(ctx context.Context, login string) (model.User, error) {
	login = strings.ToLower(strings.TrimSpace(login))
	return scanUser(r.DB.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE login = ? LIMIT 1`, login))
}

// SetCredentials stores a login and password hash and marks the user
// authenticated.  A login taken by another user yields ErrConflict.
func (r *UserRepo) SetCredentials(ctx context.Context, chatID int64, login, passwordHash string) error {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE users SET login = ?, password_hash = ?, is_authenticated = ? WHERE chat_id = ?`,
		strings.ToLower(strings.TrimSpace(login)), passwordHash, true, chatID)
	if err != nil {
		if isDuplicate(err) {
			return ErrConflict
		}
		return err
	}
	return expectOne(res)
}

// SetAuthenticated toggles the login flag.
func (r *UserRepo) SetAuthenticated(ctx context.Context, chatID int64, v bool) error {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE users SET is_authenticated = ? WHERE chat_id = ?`, v, chatID)
	if err != nil {
		return err
	}
	return expectOne(res)
}

// SetOrgQuota overwrites the number of organizations the user may still
// create.  Unknown users yield ErrNotFound.
func (r *UserRepo) SetOrgQuota(ctx context.Context, chatID int64, quota int) error {
	if quota < 0 {
		quota = 0
	}
	res, err := r.DB.ExecContext(ctx,
		`UPDATE users SET org_quota = ? WHERE chat_id = ?`, quota, chatID)
	if err != nil {
		return err
	}
	return expectOne(res)
}

// AuthenticatedIDs lists the chat ids of every logged-in user, the global
// broadcast audience.
func (r *UserRepo) AuthenticatedIDs(ctx context.Context) ([]int64, error) {
	return queryIDs(ctx, r.DB, `SELECT chat_id FROM users WHERE is_authenticated = ? ORDER BY chat_id`, true)
}

func queryIDs(ctx context.Context, q querier, query string, args ...any) ([]int64, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
