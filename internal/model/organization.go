package model

import "time"

// Role names stored in org_admins.role.  RoleSuperAdmin is never stored: it
// is derived from configuration.
const (
	RoleSuperAdmin = "super_admin"
	RoleOrgOwner   = "org_owner"
	RoleOrgAdmin   = "org_admin"
)

// Organization is a ticket seller.  Deleting it cascades to its events and
// everything below them.
type Organization struct {
	ID        int64     // organizations.id
	Name      string    // organizations.name
	BankCard  string    // organizations.bank_card (nullable payout card or phone)
	OwnerID   int64     // organizations.owner_id (0 when unset)
	CreatedAt time.Time // organizations.created_at
}

// OrgAdmin is a role binding between an organization and a user.  Exactly
// one binding per organization carries RoleOrgOwner.
type OrgAdmin struct {
	OrgID    int64  // org_admins.org_id
	UserID   int64  // org_admins.user_id
	Role     string // org_admins.role
	Username string // joined from users for display
	Login    string // joined from users for display
}

// Membership pairs an organization with the caller's stored role in it.
type Membership struct {
	Organization
	Role string
}
