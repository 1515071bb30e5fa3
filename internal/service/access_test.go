package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/event-ticket-bot/internal/model"
	"github.com/iliyamo/event-ticket-bot/internal/repository"
)

type stubRoles map[[2]int64]string

func (s stubRoles) RoleOf(_ context.Context, orgID, userID int64) (string, error) {
	if r, ok := s[[2]int64{orgID, userID}]; ok {
		return r, nil
	}
	return "", repository.ErrNotFound
}

func TestAccessHierarchy(t *testing.T) {
	ctx := context.Background()
	roles := stubRoles{
		{1, 10}: model.RoleOrgOwner,
		{1, 11}: model.RoleOrgAdmin,
	}
	a, err := NewAccess(99, roles)
	require.NoError(t, err)

	cases := []struct {
		name   string
		user   int64
		org    int64
		action string
		want   bool
	}{
		{"admin checks tickets", 11, 1, ActionTicketsCheck, true},
		{"admin cannot manage admins", 11, 1, ActionAdminsManage, false},
		{"owner inherits admin actions", 10, 1, ActionEventsManage, true},
		{"owner manages admins", 10, 1, ActionAdminsManage, true},
		{"owner cannot reset", 10, 1, ActionDatabaseReset, false},
		{"admin of other org", 11, 2, ActionTicketsCheck, false},
		{"stranger", 12, 1, ActionTicketsCheck, false},
		{"super admin anywhere", 99, 2, ActionOrgDelete, true},
		{"super admin global", 99, 0, ActionDatabaseReset, true},
		{"owner has no global role", 10, 0, ActionGlobalBroadcast, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := a.Can(ctx, tc.user, tc.org, tc.action)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}

	assert.ErrorIs(t, a.Authorize(ctx, 12, 1, ActionTicketsCheck), repository.ErrForbidden)
}

func TestResolveRole(t *testing.T) {
	ctx := context.Background()
	a, err := NewAccess(99, stubRoles{{1, 10}: model.RoleOrgOwner})
	require.NoError(t, err)

	r, err := a.ResolveRole(ctx, 99, 1)
	require.NoError(t, err)
	assert.Equal(t, model.RoleSuperAdmin, r)

	r, err = a.ResolveRole(ctx, 10, 1)
	require.NoError(t, err)
	assert.Equal(t, model.RoleOrgOwner, r)

	r, err = a.ResolveRole(ctx, 10, 2)
	require.NoError(t, err)
	assert.Empty(t, r)
}
