package repository

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/event-ticket-bot/internal/database"
	"github.com/iliyamo/event-ticket-bot/internal/database/dbtest"
	"github.com/iliyamo/event-ticket-bot/internal/model"
)

type fixture struct {
	db       *sql.DB
	users    *UserRepo
	orgs     *OrgRepo
	events   *EventRepo
	products *ProductRepo
	tickets  *TicketRepo
	promos   *PromoRepo
	black    *BlacklistRepo
}

func newFixture(t *testing.T) *fixture {
	db := dbtest.Open(t)
	return &fixture{
		db:       db,
		users:    NewUserRepo(db),
		orgs:     NewOrgRepo(db, database.DriverSQLite),
		events:   NewEventRepo(db),
		products: NewProductRepo(db, database.DriverSQLite),
		tickets:  NewTicketRepo(db, database.DriverSQLite),
		promos:   NewPromoRepo(db),
		black:    NewBlacklistRepo(db),
	}
}

// seedTier creates an owner, an organization, an event and one tier.
func (f *fixture) seedTier(t *testing.T, limit int, refundable bool) (model.Organization, model.Event, model.Product) {
	ctx := context.Background()
	require.NoError(t, f.users.Touch(ctx, 100, "owner", "Owner"))
	org, err := f.orgs.Create(ctx, 100, "Club", false)
	require.NoError(t, err)
	ev, err := f.events.Create(ctx, model.Event{OrgID: org.ID, Name: "Concert", DateStr: "25.12 19:00"})
	require.NoError(t, err)
	p, err := f.products.Create(ctx, model.Product{EventID: ev.ID, Name: "Standard", Price: 1000, QuantityLimit: limit, IsRefundable: refundable})
	require.NoError(t, err)
	return org, ev, p
}

func (f *fixture) sell(ctx context.Context, productID, buyer int64, id, promo string, eventID int64) error {
	return WithTx(ctx, f.db, func(tx *sql.Tx) error {
		if promo != "" {
			if err := f.promos.RedeemTx(ctx, tx, promo, eventID); err != nil {
				return err
			}
		}
		if err := f.products.SellTx(ctx, tx, productID); err != nil {
			return err
		}
		return f.tickets.CreateTx(ctx, tx, &model.Ticket{
			ID: id, ProductID: productID, BuyerChatID: buyer,
			BuyerName: "Buyer", BuyerEmail: "b@example.com", FinalPrice: 1000, PromoCode: promo,
		})
	})
}

func TestSaleThenRefund(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, ev, p := f.seedTier(t, 5, true)
	require.NoError(t, f.users.Touch(ctx, 200, "buyer", "Buyer"))

	for i := 0; i < 5; i++ {
		require.NoError(t, f.sell(ctx, p.ID, 200, fmt.Sprintf("T-%08d", i), "", ev.ID))
	}
	assert.ErrorIs(t, f.sell(ctx, p.ID, 200, "T-SIXTH000", "", ev.ID), ErrSoldOut)

	got, err := f.products.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, got.QuantitySold)
	_, err = f.tickets.Get(ctx, "T-SIXTH000")
	assert.ErrorIs(t, err, ErrNotFound, "failed sale must not leave a ticket")

	require.NoError(t, f.tickets.Activate(ctx, "T-00000000"))
	require.NoError(t, WithTx(ctx, f.db, func(tx *sql.Tx) error {
		d, err := f.tickets.MarkRefundedTx(ctx, tx, "T-00000000")
		if err != nil {
			return err
		}
		return f.products.ReleaseTx(ctx, tx, d.ProductID)
	}))

	got, err = f.products.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, got.QuantitySold)
	require.NoError(t, f.sell(ctx, p.ID, 200, "T-AGAIN000", "", ev.ID))
}

func TestSellLastUnitConcurrently(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, ev, p := f.seedTier(t, 1, false)
	require.NoError(t, f.users.Touch(ctx, 200, "buyer", "Buyer"))

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = f.sell(ctx, p.ID, 200, fmt.Sprintf("T-RACE000%d", i), "", ev.ID)
		}(i)
	}
	wg.Wait()

	var ok, soldOut int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case assert.ErrorIs(t, err, ErrSoldOut):
			soldOut++
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, soldOut)

	got, err := f.products.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.QuantitySold)
}

func TestAvailability(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, ev, limited := f.seedTier(t, 2, false)
	unlimited, err := f.products.Create(ctx, model.Product{EventID: ev.ID, Name: "Free", Price: 0})
	require.NoError(t, err)

	ok, remaining, err := f.products.Availability(ctx, unlimited.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, model.UnlimitedRemaining, remaining)

	ok, remaining, err = f.products.Availability(ctx, limited.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 2, remaining)
}

func TestRedeemTwiceIsRejected(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, ev, p := f.seedTier(t, 0, false)
	require.NoError(t, f.users.Touch(ctx, 200, "buyer", "Buyer"))
	require.NoError(t, f.sell(ctx, p.ID, 200, "T-AAAA0001", "", ev.ID))

	assert.ErrorIs(t, f.tickets.Redeem(ctx, "T-AAAA0001"), ErrTicketNotValid, "pending ticket")
	require.NoError(t, f.tickets.Activate(ctx, "T-AAAA0001"))
	assert.ErrorIs(t, f.tickets.Activate(ctx, "T-AAAA0001"), ErrTicketNotValid, "double approval")
	require.NoError(t, f.tickets.Redeem(ctx, "T-AAAA0001"))
	assert.ErrorIs(t, f.tickets.Redeem(ctx, "T-AAAA0001"), ErrTicketNotValid)
	assert.ErrorIs(t, f.tickets.Redeem(ctx, "T-MISSING1"), ErrNotFound)

	got, err := f.tickets.Get(ctx, "T-AAAA0001")
	require.NoError(t, err)
	assert.Equal(t, model.TicketUsed, got.Status())
}

func TestRefundRules(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, ev, p := f.seedTier(t, 3, false)
	require.NoError(t, f.users.Touch(ctx, 200, "buyer", "Buyer"))
	require.NoError(t, f.sell(ctx, p.ID, 200, "T-NOREF001", "", ev.ID))
	require.NoError(t, f.tickets.Activate(ctx, "T-NOREF001"))

	err := WithTx(ctx, f.db, func(tx *sql.Tx) error {
		_, err := f.tickets.MarkRefundedTx(ctx, tx, "T-NOREF001")
		return err
	})
	assert.ErrorIs(t, err, ErrNotRefundable)

	refundable, err := f.products.Create(ctx, model.Product{EventID: ev.ID, Name: "Flex", Price: 10, QuantityLimit: 3, IsRefundable: true})
	require.NoError(t, err)
	require.NoError(t, f.sell(ctx, refundable.ID, 200, "T-PEND0001", "", ev.ID))
	err = WithTx(ctx, f.db, func(tx *sql.Tx) error {
		_, err := f.tickets.MarkRefundedTx(ctx, tx, "T-PEND0001")
		return err
	})
	assert.ErrorIs(t, err, ErrTicketNotValid, "pending tickets are rejected, not refunded")
}

func TestRejectReleasesUnitAndPromo(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, ev, p := f.seedTier(t, 1, false)
	require.NoError(t, f.users.Touch(ctx, 200, "buyer", "Buyer"))
	_, err := f.promos.Create(ctx, model.PromoCode{Code: "vip", EventID: ev.ID, DiscountPercent: 10, UsageLimit: 1})
	require.NoError(t, err)

	require.NoError(t, f.sell(ctx, p.ID, 200, "T-REJECT01", "VIP", ev.ID))
	require.NoError(t, WithTx(ctx, f.db, func(tx *sql.Tx) error {
		tk, err := f.tickets.DeletePendingTx(ctx, tx, "T-REJECT01")
		if err != nil {
			return err
		}
		if err := f.products.ReleaseTx(ctx, tx, tk.ProductID); err != nil {
			return err
		}
		return f.promos.ReleaseTx(ctx, tx, tk.PromoCode)
	}))

	got, err := f.products.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.QuantitySold)
	promo, err := f.promos.Find(ctx, "vip", ev.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, promo.UsedCount)
	require.NoError(t, f.sell(ctx, p.ID, 200, "T-REJECT02", "VIP", ev.ID))
}

func TestPromoUsageLimit(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, ev, p := f.seedTier(t, 0, false)
	require.NoError(t, f.users.Touch(ctx, 200, "buyer", "Buyer"))
	_, err := f.promos.Create(ctx, model.PromoCode{Code: " once ", EventID: ev.ID, DiscountPercent: 50, UsageLimit: 1})
	require.NoError(t, err)
	_, err = f.promos.Create(ctx, model.PromoCode{Code: "ONCE", EventID: ev.ID, DiscountPercent: 5})
	assert.ErrorIs(t, err, ErrConflict)

	_, err = f.promos.Find(ctx, "ONCE", ev.ID+1)
	assert.ErrorIs(t, err, ErrNotFound, "code scoped to another event")

	require.NoError(t, f.sell(ctx, p.ID, 200, "T-PROMO001", "ONCE", ev.ID))
	assert.ErrorIs(t, f.sell(ctx, p.ID, 200, "T-PROMO002", "ONCE", ev.ID), ErrPromoExhausted)
	_, err = f.promos.Find(ctx, "once", ev.ID)
	assert.ErrorIs(t, err, ErrPromoExhausted)

	got, err := f.products.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.QuantitySold, "exhausted promo aborts the whole purchase")

	require.NoError(t, f.promos.Delete(ctx, "once", ev.ID))
	assert.ErrorIs(t, f.promos.Delete(ctx, "once", ev.ID), ErrNotFound)
}

func TestTransferOwnership(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	org, _, _ := f.seedTier(t, 0, false)
	require.NoError(t, f.users.Touch(ctx, 300, "next", "Next"))

	assert.ErrorIs(t, f.orgs.TransferOwnership(ctx, org.ID, 300, 100), ErrNotOwner)
	assert.ErrorIs(t, f.orgs.TransferOwnership(ctx, org.ID, 100, 999), ErrNotFound)
	require.NoError(t, f.orgs.TransferOwnership(ctx, org.ID, 100, 300))

	got, err := f.orgs.Get(ctx, org.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(300), got.OwnerID)

	role, err := f.orgs.RoleOf(ctx, org.ID, 100)
	require.NoError(t, err)
	assert.Equal(t, model.RoleOrgAdmin, role)

	admins, err := f.orgs.ListAdmins(ctx, org.ID)
	require.NoError(t, err)
	owners := 0
	for _, a := range admins {
		if a.Role == model.RoleOrgOwner {
			owners++
			assert.Equal(t, int64(300), a.UserID)
		}
	}
	assert.Equal(t, 1, owners)

	// Back to an existing admin binding.
	require.NoError(t, f.orgs.TransferOwnership(ctx, org.ID, 300, 100))
	role, err = f.orgs.RoleOf(ctx, org.ID, 300)
	require.NoError(t, err)
	assert.Equal(t, model.RoleOrgAdmin, role)
}

func TestOrgQuotaAndAdmins(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.users.Touch(ctx, 100, "owner", "Owner"))
	require.NoError(t, f.users.Touch(ctx, 101, "helper", "Helper"))

	_, err := f.orgs.Create(ctx, 100, "No quota", true)
	assert.ErrorIs(t, err, ErrQuotaExceeded)

	require.NoError(t, f.users.SetOrgQuota(ctx, 100, 1))
	org, err := f.orgs.Create(ctx, 100, "First", true)
	require.NoError(t, err)
	_, err = f.orgs.Create(ctx, 100, "Second", true)
	assert.ErrorIs(t, err, ErrQuotaExceeded)

	require.NoError(t, f.orgs.AddAdmin(ctx, org.ID, 101))
	assert.ErrorIs(t, f.orgs.AddAdmin(ctx, org.ID, 101), ErrConflict)
	assert.ErrorIs(t, f.orgs.AddAdmin(ctx, org.ID, 555), ErrNotFound)
	assert.ErrorIs(t, f.orgs.RemoveAdmin(ctx, org.ID, 100), ErrForbidden)

	ms, err := f.orgs.ListForUser(ctx, 101)
	require.NoError(t, err)
	require.Len(t, ms, 1)
	assert.Equal(t, model.RoleOrgAdmin, ms[0].Role)
	require.NoError(t, f.orgs.RemoveAdmin(ctx, org.ID, 101))

	require.NoError(t, f.orgs.Delete(ctx, org.ID))
	u, err := f.users.Get(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, 1, u.OrgQuota, "deleting an organization returns the unit")
}

func TestDeleteAfterTransferCreditsCreator(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.users.Touch(ctx, 100, "creator", "Creator"))
	require.NoError(t, f.users.Touch(ctx, 300, "next", "Next"))
	require.NoError(t, f.users.SetOrgQuota(ctx, 100, 1))

	org, err := f.orgs.Create(ctx, 100, "Handed over", true)
	require.NoError(t, err)
	require.NoError(t, f.orgs.TransferOwnership(ctx, org.ID, 100, 300))
	require.NoError(t, f.orgs.Delete(ctx, org.ID))

	creator, err := f.users.Get(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, 1, creator.OrgQuota)
	next, err := f.users.Get(ctx, 300)
	require.NoError(t, err)
	assert.Equal(t, 0, next.OrgQuota, "new owner never spent quota")

	// Created by the super admin path: nobody spent a unit.
	free, err := f.orgs.Create(ctx, 300, "Free", false)
	require.NoError(t, err)
	require.NoError(t, f.orgs.Delete(ctx, free.ID))
	next, err = f.users.Get(ctx, 300)
	require.NoError(t, err)
	assert.Equal(t, 0, next.OrgQuota)
}

func TestBlacklist(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	org, _, _ := f.seedTier(t, 0, false)

	blocked, err := f.black.IsBlocked(ctx, org.ID, 42)
	require.NoError(t, err)
	assert.False(t, blocked)

	require.NoError(t, f.black.Add(ctx, model.BlacklistEntry{OrgID: org.ID, UserID: 42, Reason: "spam", BlockedBy: 100}))
	assert.ErrorIs(t, f.black.Add(ctx, model.BlacklistEntry{OrgID: org.ID, UserID: 42}), ErrConflict)
	blocked, err = f.black.IsBlocked(ctx, org.ID, 42)
	require.NoError(t, err)
	assert.True(t, blocked)
	blocked, err = f.black.IsBlocked(ctx, org.ID+1, 42)
	require.NoError(t, err)
	assert.False(t, blocked, "org list does not leak to other organizations")

	require.NoError(t, f.black.Add(ctx, model.BlacklistEntry{UserID: 43}))
	blocked, err = f.black.IsBlocked(ctx, org.ID+1, 43)
	require.NoError(t, err)
	assert.True(t, blocked, "global list applies everywhere")

	list, err := f.black.List(ctx, org.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "spam", list[0].Reason)

	require.NoError(t, f.black.Remove(ctx, org.ID, 42))
	assert.ErrorIs(t, f.black.Remove(ctx, org.ID, 42), ErrNotFound)
}

func TestUserCredentials(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.users.Touch(ctx, 1, "a", "A"))
	require.NoError(t, f.users.Touch(ctx, 1, "a2", "A"))
	require.NoError(t, f.users.Touch(ctx, 2, "b", "B"))

	require.NoError(t, f.users.SetCredentials(ctx, 1, "Alice", "hash"))
	assert.ErrorIs(t, f.users.SetCredentials(ctx, 2, "alice", "hash"), ErrConflict)

	u, err := f.users.GetByLogin(ctx, "ALICE")
	require.NoError(t, err)
	assert.Equal(t, int64(1), u.ChatID)
	assert.Equal(t, "a2", u.Username)
	assert.True(t, u.IsAuthenticated)

	ids, err := f.users.AuthenticatedIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, ids)
}
