package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/event-ticket-bot/internal/database"
	"github.com/iliyamo/event-ticket-bot/internal/database/dbtest"
	"github.com/iliyamo/event-ticket-bot/internal/model"
	"github.com/iliyamo/event-ticket-bot/internal/queue"
	"github.com/iliyamo/event-ticket-bot/internal/repository"
)

const testSuperAdmin = 1

type recordingPublisher struct {
	mu     sync.Mutex
	events []queue.TicketEvent
}

func (r *recordingPublisher) Publish(_ context.Context, ev queue.TicketEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recordingPublisher) kinds() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, ev := range r.events {
		out = append(out, ev.Kind)
	}
	return out
}

type ticketsFixture struct {
	svc      *Tickets
	pub      *recordingPublisher
	users    *repository.UserRepo
	orgs     *repository.OrgRepo
	events   *repository.EventRepo
	products *repository.ProductRepo
	promos   *repository.PromoRepo
}

func newTicketsFixture(t *testing.T) *ticketsFixture {
	db := dbtest.Open(t)
	f := &ticketsFixture{
		pub:      &recordingPublisher{},
		users:    repository.NewUserRepo(db),
		orgs:     repository.NewOrgRepo(db, database.DriverSQLite),
		events:   repository.NewEventRepo(db),
		products: repository.NewProductRepo(db, database.DriverSQLite),
		promos:   repository.NewPromoRepo(db),
	}
	access, err := NewAccess(testSuperAdmin, f.orgs)
	require.NoError(t, err)
	f.svc = NewTickets(TicketsDeps{
		DB: db, Products: f.products, Tickets: repository.NewTicketRepo(db, database.DriverSQLite),
		Promos: f.promos, Access: access, Publisher: f.pub,
	})
	return f
}

// seedOrg creates an organization owned by owner with one event and tier.
func (f *ticketsFixture) seedOrg(t *testing.T, owner int64, limit int, refundable bool) (model.Organization, model.Event, model.Product) {
	ctx := context.Background()
	require.NoError(t, f.users.Touch(ctx, owner, "", ""))
	org, err := f.orgs.Create(ctx, owner, "Org", false)
	require.NoError(t, err)
	ev, err := f.events.Create(ctx, model.Event{OrgID: org.ID, Name: "Show", DateStr: "01.01"})
	require.NoError(t, err)
	p, err := f.products.Create(ctx, model.Product{EventID: ev.ID, Name: "Std", Price: 999, QuantityLimit: limit, IsRefundable: refundable})
	require.NoError(t, err)
	return org, ev, p
}

func TestPurchaseWithPromo(t *testing.T) {
	ctx := context.Background()
	f := newTicketsFixture(t)
	_, ev, p := f.seedOrg(t, 10, 0, false)
	require.NoError(t, f.users.Touch(ctx, 50, "buyer", ""))
	_, err := f.promos.Create(ctx, model.PromoCode{Code: "SAVE33", EventID: ev.ID, DiscountPercent: 33})
	require.NoError(t, err)

	q, err := f.svc.Quote(ctx, p.ID, "save33")
	require.NoError(t, err)
	assert.Equal(t, 669, q.FinalPrice)

	_, err = f.svc.Quote(ctx, p.ID, "NOPE")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	tk, _, err := f.svc.Purchase(ctx, PurchaseRequest{ProductID: p.ID, BuyerID: 50, BuyerName: " Ann ", BuyerEmail: "a@b.c", PromoCode: "save33"})
	require.NoError(t, err)
	assert.Equal(t, 669, tk.FinalPrice)
	assert.Equal(t, "SAVE33", tk.PromoCode)
	assert.Equal(t, "Ann", tk.BuyerName)
	assert.Equal(t, model.TicketPending, tk.Status())
	assert.Equal(t, []string{queue.KindIssued}, f.pub.kinds())
}

func TestApproveRejectAuthorization(t *testing.T) {
	ctx := context.Background()
	f := newTicketsFixture(t)
	_, _, p := f.seedOrg(t, 10, 1, false)
	f.seedOrg(t, 20, 0, false)
	require.NoError(t, f.users.Touch(ctx, 50, "buyer", ""))

	tk, _, err := f.svc.Purchase(ctx, PurchaseRequest{ProductID: p.ID, BuyerID: 50, BuyerName: "A", BuyerEmail: "e"})
	require.NoError(t, err)

	_, err = f.svc.Approve(ctx, tk.ID, 20)
	assert.ErrorIs(t, err, repository.ErrForbidden, "owner of another organization")

	_, err = f.svc.Reject(ctx, tk.ID, 10)
	require.NoError(t, err)
	got, err := f.products.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.QuantitySold, "reject releases the unit")

	_, err = f.svc.Approve(ctx, tk.ID, testSuperAdmin)
	assert.ErrorIs(t, err, repository.ErrNotFound, "rejected ticket is gone")
}

func TestCrossOrgCheckRejected(t *testing.T) {
	ctx := context.Background()
	f := newTicketsFixture(t)
	orgX, _, _ := f.seedOrg(t, 10, 0, false)
	_, _, py := f.seedOrg(t, 20, 0, false)
	require.NoError(t, f.users.Touch(ctx, 50, "buyer", ""))

	tk, _, err := f.svc.Purchase(ctx, PurchaseRequest{ProductID: py.ID, BuyerID: 50, BuyerName: "A", BuyerEmail: "e"})
	require.NoError(t, err)
	_, err = f.svc.Approve(ctx, tk.ID, 20)
	require.NoError(t, err)

	_, err = f.svc.Redeem(ctx, tk.ID, 10, orgX.ID)
	assert.ErrorIs(t, err, repository.ErrForbidden)

	d, err := f.svc.Redeem(ctx, tk.ID, testSuperAdmin, orgX.ID)
	require.NoError(t, err)
	assert.True(t, d.IsUsed)

	_, err = f.svc.Redeem(ctx, tk.ID, testSuperAdmin, orgX.ID)
	assert.ErrorIs(t, err, repository.ErrTicketNotValid)
}

func TestRefunds(t *testing.T) {
	ctx := context.Background()
	f := newTicketsFixture(t)
	org, _, p := f.seedOrg(t, 10, 2, true)
	require.NoError(t, f.users.Touch(ctx, 50, "buyer", ""))
	require.NoError(t, f.users.Touch(ctx, 51, "other", ""))

	tk, _, err := f.svc.Purchase(ctx, PurchaseRequest{ProductID: p.ID, BuyerID: 50, BuyerName: "A", BuyerEmail: "e"})
	require.NoError(t, err)
	_, err = f.svc.RefundByBuyer(ctx, tk.ID, 50)
	assert.ErrorIs(t, err, repository.ErrTicketNotValid, "pending tickets cannot be refunded")

	_, err = f.svc.Approve(ctx, tk.ID, 10)
	require.NoError(t, err)
	_, err = f.svc.RefundByBuyer(ctx, tk.ID, 51)
	assert.ErrorIs(t, err, repository.ErrForbidden)

	d, err := f.svc.RefundByBuyer(ctx, tk.ID, 50)
	require.NoError(t, err)
	assert.Equal(t, int64(10), d.OrgOwnerID)
	got, err := f.products.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.QuantitySold)

	tk2, _, err := f.svc.Purchase(ctx, PurchaseRequest{ProductID: p.ID, BuyerID: 50, BuyerName: "A", BuyerEmail: "e"})
	require.NoError(t, err)
	_, err = f.svc.Approve(ctx, tk2.ID, 10)
	require.NoError(t, err)
	_, err = f.svc.RefundByAdmin(ctx, tk2.ID, 10, org.ID)
	require.NoError(t, err)

	mine, err := f.svc.ListMine(ctx, 50)
	require.NoError(t, err)
	assert.Empty(t, mine)
	assert.Equal(t, []string{
		queue.KindIssued, queue.KindApproved, queue.KindRefunded,
		queue.KindIssued, queue.KindApproved, queue.KindRefunded,
	}, f.pub.kinds())
}

func TestPurchaseSoldOut(t *testing.T) {
	ctx := context.Background()
	f := newTicketsFixture(t)
	_, _, p := f.seedOrg(t, 10, 1, false)
	require.NoError(t, f.users.Touch(ctx, 50, "buyer", ""))

	_, _, err := f.svc.Purchase(ctx, PurchaseRequest{ProductID: p.ID, BuyerID: 50, BuyerName: "A", BuyerEmail: "e"})
	require.NoError(t, err)
	_, _, err = f.svc.Purchase(ctx, PurchaseRequest{ProductID: p.ID, BuyerID: 50, BuyerName: "A", BuyerEmail: "e"})
	assert.ErrorIs(t, err, repository.ErrSoldOut)
}

func TestExpireStalePendingReleasesUnitAndPromo(t *testing.T) {
	ctx := context.Background()
	f := newTicketsFixture(t)
	_, ev, p := f.seedOrg(t, 10, 1, false)
	require.NoError(t, f.users.Touch(ctx, 50, "buyer", ""))
	_, err := f.promos.Create(ctx, model.PromoCode{Code: "ONE", EventID: ev.ID, DiscountPercent: 10, UsageLimit: 1})
	require.NoError(t, err)

	tk, _, err := f.svc.Purchase(ctx, PurchaseRequest{ProductID: p.ID, BuyerID: 50, BuyerName: "B", PromoCode: "one", PaymentRef: "AB12CD34"})
	require.NoError(t, err)

	stale, err := f.svc.StalePending(ctx, time.Hour)
	require.NoError(t, err)
	assert.Empty(t, stale, "bought just now")
	stale, err = f.svc.StalePending(ctx, -time.Minute)
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, tk.ID, stale[0].ID)
	assert.Equal(t, "AB12CD34", stale[0].PaymentRef)

	require.NoError(t, f.svc.Expire(ctx, stale[0]))
	assert.ErrorIs(t, f.svc.Expire(ctx, stale[0]), repository.ErrNotFound)
	assert.Contains(t, f.pub.kinds(), queue.KindExpired)

	got, err := f.products.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.QuantitySold)
	promo, err := f.promos.Find(ctx, "ONE", ev.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, promo.UsedCount)
}
