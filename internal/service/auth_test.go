package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/event-ticket-bot/internal/database/dbtest"
	"github.com/iliyamo/event-ticket-bot/internal/repository"
)

func TestValidateLogin(t *testing.T) {
	assert.NoError(t, ValidateLogin("alice42"))
	assert.ErrorIs(t, ValidateLogin("al"), ErrInvalidLogin)
	assert.ErrorIs(t, ValidateLogin("Alice"), ErrInvalidLogin)
	assert.ErrorIs(t, ValidateLogin("alice_42"), ErrInvalidLogin)
	assert.Equal(t, "alice", NormalizeLogin("  ALICE "))
}

func TestValidatePassword(t *testing.T) {
	assert.NoError(t, ValidatePassword("Secret1"))
	assert.ErrorIs(t, ValidatePassword("Sec1"), ErrWeakPassword)
	assert.ErrorIs(t, ValidatePassword("secret1"), ErrWeakPassword)
	assert.ErrorIs(t, ValidatePassword("SECRET1"), ErrWeakPassword)
	assert.ErrorIs(t, ValidatePassword("Secrets"), ErrWeakPassword)
}

func TestRegisterAndLogin(t *testing.T) {
	ctx := context.Background()
	users := repository.NewUserRepo(dbtest.Open(t))
	auth := NewAuth(users, 4)
	require.NoError(t, users.Touch(ctx, 1, "alice", "Alice"))
	require.NoError(t, users.Touch(ctx, 2, "bob", "Bob"))

	require.NoError(t, auth.Register(ctx, 1, "Alice", "Secret1"))
	assert.ErrorIs(t, auth.Register(ctx, 2, "alice", "Secret1"), repository.ErrConflict)

	taken, err := auth.LoginTaken(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, taken)

	require.NoError(t, auth.Logout(ctx, 1))
	assert.ErrorIs(t, auth.Login(ctx, 1, "alice", "wrong1A"), ErrBadCredentials)
	assert.ErrorIs(t, auth.Login(ctx, 2, "alice", "Secret1"), ErrBadCredentials, "other chat")
	assert.ErrorIs(t, auth.Login(ctx, 1, "nobody", "Secret1"), ErrBadCredentials)
	require.NoError(t, auth.Login(ctx, 1, "ALICE", "Secret1"))

	u, err := users.Get(ctx, 1)
	require.NoError(t, err)
	assert.True(t, u.IsAuthenticated)
}

func TestApplyDiscount(t *testing.T) {
	assert.Equal(t, 900, ApplyDiscount(1000, 10))
	assert.Equal(t, 669, ApplyDiscount(999, 33))
	assert.Equal(t, 0, ApplyDiscount(500, 100))
	assert.Equal(t, 500, ApplyDiscount(500, 0))
}
