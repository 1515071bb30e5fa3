package service

import (
	"context"
	_ "embed"
	"errors"

	"github.com/casbin/casbin/v2"
	casbinmodel "github.com/casbin/casbin/v2/model"

	"github.com/iliyamo/event-ticket-bot/internal/model"
	"github.com/iliyamo/event-ticket-bot/internal/repository"
)

//go:embed model.conf
var accessModel string

// Actions gated by Access.  Organization-scoped actions are checked against
// the caller's role in that organization; global ones only pass for the
// super admin.
const (
	ActionEventsManage   = "events.manage"
	ActionProductsManage = "products.manage"
	ActionPromosManage   = "promos.manage"
	ActionTicketsCheck   = "tickets.check"
	ActionTicketsApprove = "tickets.approve"
	ActionTicketsRefund  = "tickets.refund"
	ActionReportsExport  = "reports.export"

	ActionAdminsManage      = "admins.manage"
	ActionOwnershipTransfer = "ownership.transfer"
	ActionOrgBroadcast      = "org.broadcast"
	ActionOrgCard           = "org.card"
	ActionOrgBlacklist      = "org.blacklist"
	ActionOrgDelete         = "org.delete"

	ActionOrgsListAll     = "orgs.list_all"
	ActionCreatorGrant    = "creator.grant"
	ActionGlobalBlacklist = "blacklist.global"
	ActionGlobalBroadcast = "broadcast.global"
	ActionDatabaseReset   = "database.reset"
)

var rolePolicies = map[string][]string{
	model.RoleOrgAdmin: {
		ActionEventsManage, ActionProductsManage, ActionPromosManage,
		ActionTicketsCheck, ActionTicketsApprove, ActionTicketsRefund, ActionReportsExport,
	},
	model.RoleOrgOwner: {
		ActionAdminsManage, ActionOwnershipTransfer, ActionOrgBroadcast,
		ActionOrgCard, ActionOrgBlacklist, ActionOrgDelete,
	},
	model.RoleSuperAdmin: {
		ActionOrgsListAll, ActionCreatorGrant, ActionGlobalBlacklist,
		ActionGlobalBroadcast, ActionDatabaseReset,
	},
}

// RoleLookup returns the stored role of a user in an organization, or
// repository.ErrNotFound.
type RoleLookup interface {
	RoleOf(ctx context.Context, orgID, userID int64) (string, error)
}

// Access resolves effective roles and checks actions against a casbin
// policy where super_admin inherits org_owner, which inherits org_admin.
type Access struct {
	superAdminID int64
	roles        RoleLookup
	enforcer     *casbin.SyncedEnforcer
}

// NewAccess builds the in-memory enforcer and seeds the role policies.
func NewAccess(superAdminID int64, roles RoleLookup) (*Access, error) {
	m, err := casbinmodel.NewModelFromString(accessModel)
	if err != nil {
		return nil, err
	}
	e, err := casbin.NewSyncedEnforcer(m)
	if err != nil {
		return nil, err
	}
	for role, actions := range rolePolicies {
		for _, act := range actions {
			if _, err := e.AddPolicy(role, act); err != nil {
				return nil, err
			}
		}
	}
	if _, err := e.AddGroupingPolicy(model.RoleSuperAdmin, model.RoleOrgOwner); err != nil {
		return nil, err
	}
	if _, err := e.AddGroupingPolicy(model.RoleOrgOwner, model.RoleOrgAdmin); err != nil {
		return nil, err
	}
	return &Access{superAdminID: superAdminID, roles: roles, enforcer: e}, nil
}

// IsSuperAdmin reports whether userID is the configured super admin.
func (a *Access) IsSuperAdmin(userID int64) bool {
	return a.superAdminID != 0 && userID == a.superAdminID
}

// SuperAdminID returns the configured super admin chat id (0 if unset).
func (a *Access) SuperAdminID() int64 { return a.superAdminID }

// ResolveRole returns the effective role of userID in orgID: super_admin
// for the configured identity, else the stored binding, else "".  An orgID
// of 0 asks for the global role only.
func (a *Access) ResolveRole(ctx context.Context, userID, orgID int64) (string, error) {
	if a.IsSuperAdmin(userID) {
		return model.RoleSuperAdmin, nil
	}
	if orgID == 0 {
		return "", nil
	}
	role, err := a.roles.RoleOf(ctx, orgID, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return "", nil
	}
	return role, err
}

// Can reports whether userID may perform action in orgID.
func (a *Access) Can(ctx context.Context, userID, orgID int64, action string) (bool, error) {
	role, err := a.ResolveRole(ctx, userID, orgID)
	if err != nil || role == "" {
		return false, err
	}
	return a.enforcer.Enforce(role, action)
}

// Authorize is Can returning repository.ErrForbidden on deny.
func (a *Access) Authorize(ctx context.Context, userID, orgID int64, action string) error {
	ok, err := a.Can(ctx, userID, orgID, action)
	if err != nil {
		return err
	}
	if !ok {
		return repository.ErrForbidden
	}
	return nil
}
