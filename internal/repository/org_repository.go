package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/event-ticket-bot/internal/model"
)

// OrgRepo manages organizations and their role bindings (org_admins).  All
// operations that touch the owner binding run in a single transaction so
// an organization never has zero or two owners.
type OrgRepo struct {
	db     *sql.DB
	driver string
}

// NewOrgRepo returns an OrgRepo bound to the given database.  driver selects
// the row-locking dialect.
func NewOrgRepo(db *sql.DB, driver string) *OrgRepo { return &OrgRepo{db: db, driver: driver} }

func scanOrg(row interface{ Scan(...any) error }) (model.Organization, error) {
	var (
		o     model.Organization
		card  sql.NullString
		owner sql.NullInt64
	)
	err := row.Scan(&o.ID, &o.Name, &card, &owner, &o.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return o, ErrNotFound
	}
	o.BankCard, o.OwnerID = card.String, owner.Int64
	return o, err
}

const orgColumns = `o.id, o.name, o.bank_card, o.owner_id, o.created_at`

// Create inserts an organization owned by ownerID together with its owner
// binding.  When consumeQuota is set one unit of the owner's org_quota is
// spent in the same transaction and ErrQuotaExceeded is returned if none is
// left; the super admin creates organizations without spending quota.  The
// spender is recorded in quota_user_id so the unit goes back to them, not
// to a later owner, when the organization is deleted.
func (r *OrgRepo) Create(ctx context.Context, ownerID int64, name string, consumeQuota bool) (model.Organization, error) {
	var org model.Organization
	err := WithTx(ctx, r.db, func(tx *sql.Tx) error {
		if consumeQuota {
			var quota int
			err := tx.QueryRowContext(ctx,
				`SELECT org_quota FROM users WHERE chat_id = ?`+lockSuffix(r.driver), ownerID).Scan(&quota)
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			if err != nil {
				return err
			}
			if quota <= 0 {
				return ErrQuotaExceeded
			}
			res, err := tx.ExecContext(ctx,
				`UPDATE users SET org_quota = org_quota - 1 WHERE chat_id = ? AND org_quota > 0`, ownerID)
			if err != nil {
				return err
			}
			if err := expectOne(res); err != nil {
				return ErrQuotaExceeded
			}
		}
		var spender sql.NullInt64
		if consumeQuota {
			spender = sql.NullInt64{Int64: ownerID, Valid: true}
		}
		res, err := tx.ExecContext(ctx,
			`INSERT INTO organizations (name, owner_id, quota_user_id, created_at) VALUES (?, ?, ?, ?)`,
			name, ownerID, spender, time.Now().UTC())
		if err != nil {
			return err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO org_admins (org_id, user_id, role) VALUES (?, ?, ?)`,
			id, ownerID, model.RoleOrgOwner); err != nil {
			return err
		}
		org, err = scanOrg(tx.QueryRowContext(ctx,
			`SELECT `+orgColumns+` FROM organizations o WHERE o.id = ?`, id))
		return err
	})
	return org, err
}

// Get fetches an organization by id.
func (r *OrgRepo) Get(ctx context.Context, id int64) (model.Organization, error) {
	return scanOrg(r.db.QueryRowContext(ctx,
		`SELECT `+orgColumns+` FROM organizations o WHERE o.id = ?`, id))
}

// List returns every organization ordered by id.
func (r *OrgRepo) List(ctx context.Context) ([]model.Organization, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+orgColumns+` FROM organizations o ORDER BY o.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Organization
	for rows.Next() {
		o, err := scanOrg(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// ListForUser returns the organizations where userID holds a binding,
// together with the stored role.
func (r *OrgRepo) ListForUser(ctx context.Context, userID int64) ([]model.Membership, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+orgColumns+`, a.role FROM organizations o
		 JOIN org_admins a ON a.org_id = o.id
		 WHERE a.user_id = ? ORDER BY o.id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Membership
	for rows.Next() {
		var (
			m     model.Membership
			card  sql.NullString
			owner sql.NullInt64
		)
		if err := rows.Scan(&m.ID, &m.Name, &card, &owner, &m.CreatedAt, &m.Role); err != nil {
			return nil, err
		}
		m.BankCard, m.OwnerID = card.String, owner.Int64
		out = append(out, m)
	}
	return out, rows.Err()
}

// Delete removes an organization; the schema cascades to its events,
// products, tickets, promo codes, bindings and org blacklist.  The user who
// spent quota on creating it gets that unit back; ownership transfers do
// not move it.
func (r *OrgRepo) Delete(ctx context.Context, id int64) error {
	return WithTx(ctx, r.db, func(tx *sql.Tx) error {
		var spender sql.NullInt64
		err := tx.QueryRowContext(ctx,
			`SELECT quota_user_id FROM organizations WHERE id = ?`+lockSuffix(r.driver), id).Scan(&spender)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM organizations WHERE id = ?`, id); err != nil {
			return err
		}
		if spender.Valid {
			_, err = tx.ExecContext(ctx,
				`UPDATE users SET org_quota = org_quota + 1 WHERE chat_id = ?`, spender.Int64)
		}
		return err
	})
}

// SetBankCard stores the payout card (or phone) shown to buyers.
func (r *OrgRepo) SetBankCard(ctx context.Context, id int64, card string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE organizations SET bank_card = ? WHERE id = ?`, nullString(card), id)
	if err != nil {
		return err
	}
	return expectOne(res)
}

// RoleOf returns the stored role of userID in orgID, or ErrNotFound.
func (r *OrgRepo) RoleOf(ctx context.Context, orgID, userID int64) (string, error) {
	var role string
	err := r.db.QueryRowContext(ctx,
		`SELECT role FROM org_admins WHERE org_id = ? AND user_id = ?`, orgID, userID).Scan(&role)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	return role, err
}

// HasAnyRole reports whether userID holds a binding in any organization.
func (r *OrgRepo) HasAnyRole(ctx context.Context, userID int64) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM org_admins WHERE user_id = ?`, userID).Scan(&n)
	return n > 0, err
}

// ListAdmins returns the bindings of an organization, owner first.
func (r *OrgRepo) ListAdmins(ctx context.Context, orgID int64) ([]model.OrgAdmin, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT a.org_id, a.user_id, a.role, u.username, u.login
		 FROM org_admins a JOIN users u ON u.chat_id = a.user_id
		 WHERE a.org_id = ?
		 ORDER BY CASE WHEN a.role = ? THEN 0 ELSE 1 END, a.user_id`, orgID, model.RoleOrgOwner)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.OrgAdmin
	for rows.Next() {
		var (
			a               model.OrgAdmin
			username, login sql.NullString
		)
		if err := rows.Scan(&a.OrgID, &a.UserID, &a.Role, &username, &login); err != nil {
			return nil, err
		}
		a.Username, a.Login = username.String, login.String
		out = append(out, a)
	}
	return out, rows.Err()
}

// AddAdmin binds userID to orgID as org_admin.  The user must already be
// known (ErrNotFound) and must not hold a binding yet (ErrConflict).
func (r *OrgRepo) AddAdmin(ctx context.Context, orgID, userID int64) error {
	return WithTx(ctx, r.db, func(tx *sql.Tx) error {
		if err := userExists(ctx, tx, userID); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO org_admins (org_id, user_id, role) VALUES (?, ?, ?)`,
			orgID, userID, model.RoleOrgAdmin)
		if isDuplicate(err) {
			return ErrConflict
		}
		return err
	})
}

// RemoveAdmin deletes an org_admin binding.  The owner binding cannot be
// removed (ErrForbidden); transfer ownership first.
func (r *OrgRepo) RemoveAdmin(ctx context.Context, orgID, userID int64) error {
	role, err := r.RoleOf(ctx, orgID, userID)
	if err != nil {
		return err
	}
	if role == model.RoleOrgOwner {
		return ErrForbidden
	}
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM org_admins WHERE org_id = ? AND user_id = ? AND role = ?`,
		orgID, userID, model.RoleOrgAdmin)
	if err != nil {
		return err
	}
	return expectOne(res)
}

// TransferOwnership hands orgID from currentID to targetID in one
// transaction: the current owner is downgraded to org_admin, the target's
// binding is created or upgraded to org_owner and organizations.owner_id is
// updated.  Organization quotas are not touched.  It fails with ErrNotOwner
// when currentID is not the recorded owner and with ErrNotFound when the
// target is not a known user.
func (r *OrgRepo) TransferOwnership(ctx context.Context, orgID, currentID, targetID int64) error {
	if currentID == targetID {
		return ErrConflict
	}
	return WithTx(ctx, r.db, func(tx *sql.Tx) error {
		var owner sql.NullInt64
		err := tx.QueryRowContext(ctx,
			`SELECT owner_id FROM organizations WHERE id = ?`+lockSuffix(r.driver), orgID).Scan(&owner)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if !owner.Valid || owner.Int64 != currentID {
			return ErrNotOwner
		}
		if err := userExists(ctx, tx, targetID); err != nil {
			return err
		}
		// Downgrade first: the owner binding is unique per organization.
		if _, err := tx.ExecContext(ctx,
			`UPDATE org_admins SET role = ? WHERE org_id = ? AND user_id = ?`,
			model.RoleOrgAdmin, orgID, currentID); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx,
			`UPDATE org_admins SET role = ? WHERE org_id = ? AND user_id = ?`,
			model.RoleOrgOwner, orgID, targetID)
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err != nil {
			return err
		} else if n == 0 {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO org_admins (org_id, user_id, role) VALUES (?, ?, ?)`,
				orgID, targetID, model.RoleOrgOwner); err != nil {
				return err
			}
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE organizations SET owner_id = ? WHERE id = ?`, targetID, orgID)
		return err
	})
}

func userExists(ctx context.Context, q querier, chatID int64) error {
	var one int
	err := q.QueryRowContext(ctx, `SELECT 1 FROM users WHERE chat_id = ?`, chatID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
