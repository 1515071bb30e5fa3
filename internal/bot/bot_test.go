package bot

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/event-ticket-bot/internal/database"
	"github.com/iliyamo/event-ticket-bot/internal/database/dbtest"
	"github.com/iliyamo/event-ticket-bot/internal/model"
	"github.com/iliyamo/event-ticket-bot/internal/repository"
	"github.com/iliyamo/event-ticket-bot/internal/service"
	"github.com/iliyamo/event-ticket-bot/internal/session"
)

const (
	superAdmin = 1
	ownerX     = 10
	ownerY     = 20
	buyer      = 100
)

type outbound struct {
	chatID int64
	msg    Message
	edit   bool
}

type fakeMessenger struct {
	mu       sync.Mutex
	out      []outbound
	photos   map[int64]int
	docs     map[int64][]File
	answers  []string
	download []byte
	failTo   map[int64]bool
}

func newFakeMessenger() *fakeMessenger {
	return &fakeMessenger{photos: map[int64]int{}, docs: map[int64][]File{}, failTo: map[int64]bool{}}
}

func (f *fakeMessenger) Send(_ context.Context, chatID int64, m Message) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failTo[chatID] {
		return 0, errors.New("bot was blocked by the user")
	}
	f.out = append(f.out, outbound{chatID: chatID, msg: m})
	return len(f.out), nil
}

func (f *fakeMessenger) Edit(_ context.Context, chatID int64, _ int, m Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.out = append(f.out, outbound{chatID: chatID, msg: m, edit: true})
	return nil
}

func (f *fakeMessenger) SendPhoto(_ context.Context, chatID int64, _ File, m Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failTo[chatID] {
		return errors.New("bot was blocked by the user")
	}
	f.photos[chatID]++
	f.out = append(f.out, outbound{chatID: chatID, msg: m})
	return nil
}

func (f *fakeMessenger) SendDocument(_ context.Context, chatID int64, file File, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.docs[chatID] = append(f.docs[chatID], file)
	return nil
}

func (f *fakeMessenger) AnswerCallback(_ context.Context, _ string, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answers = append(f.answers, text)
	return nil
}

func (f *fakeMessenger) DownloadFile(context.Context, string) ([]byte, error) {
	return f.download, nil
}

// last returns the latest message shown in chatID.
func (f *fakeMessenger) last(chatID int64) Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.out) - 1; i >= 0; i-- {
		if f.out[i].chatID == chatID {
			return f.out[i].msg
		}
	}
	return Message{}
}

func (f *fakeMessenger) all(chatID int64) []Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Message
	for _, o := range f.out {
		if o.chatID == chatID {
			out = append(out, o.msg)
		}
	}
	return out
}

// button finds a button of chatID's messages whose data starts with prefix.
func (f *fakeMessenger) button(chatID int64, prefix string) (string, bool) {
	msgs := f.all(chatID)
	for i := len(msgs) - 1; i >= 0; i-- {
		for _, r := range msgs[i].Keyboard {
			for _, b := range r {
				if strings.HasPrefix(b.Data, prefix) {
					return b.Data, true
				}
			}
		}
	}
	return "", false
}

func (f *fakeMessenger) lastAnswer() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.answers) == 0 {
		return ""
	}
	return f.answers[len(f.answers)-1]
}

type fixture struct {
	bot       *Bot
	msg       *fakeMessenger
	users     *repository.UserRepo
	orgs      *repository.OrgRepo
	events    *repository.EventRepo
	products  *repository.ProductRepo
	promos    *repository.PromoRepo
	blacklist *repository.BlacklistRepo
	tickets   *repository.TicketRepo
	svc       *service.Tickets
	auth      *service.Auth
}

func newFixture(t *testing.T) *fixture {
	db := dbtest.Open(t)
	f := &fixture{
		msg:       newFakeMessenger(),
		users:     repository.NewUserRepo(db),
		orgs:      repository.NewOrgRepo(db, database.DriverSQLite),
		events:    repository.NewEventRepo(db),
		products:  repository.NewProductRepo(db, database.DriverSQLite),
		promos:    repository.NewPromoRepo(db),
		blacklist: repository.NewBlacklistRepo(db),
		tickets:   repository.NewTicketRepo(db, database.DriverSQLite),
	}
	access, err := service.NewAccess(superAdmin, f.orgs)
	require.NoError(t, err)
	f.svc = service.NewTickets(service.TicketsDeps{
		DB: db, Products: f.products, Tickets: f.tickets, Promos: f.promos, Access: access,
	})
	f.auth = service.NewAuth(f.users, bcrypt.MinCost)
	f.bot = New(Deps{
		Messenger: f.msg,
		Sessions:  session.NewStore(time.Hour),
		Users:     f.users,
		Orgs:      f.orgs,
		Events:    f.events,
		Products:  f.products,
		Promos:    f.promos,
		Blacklist: f.blacklist,
		Access:    access,
		Auth:      f.auth,
		Tickets:   f.svc,
		Pending:   service.NewMemoryPending(time.Hour),
		Reports:   service.NewReports(f.events, f.tickets),
	})
	return f
}

func (f *fixture) text(chatID int64, s string) {
	f.bot.Handle(context.Background(), Inbound{ChatID: chatID, UserID: chatID, Intent: DecodeMessage(s, "")})
}

func (f *fixture) press(chatID int64, data string) {
	f.bot.Handle(context.Background(), Inbound{
		ChatID: chatID, UserID: chatID, MessageID: 7, CallbackID: "cb",
		Intent: DecodeCallback(data),
	})
}

func (f *fixture) session(chatID int64) session.Session {
	s, release := f.bot.Sessions.Acquire(chatID)
	defer release()
	return *s
}

// seedOrg creates an organization with one event and one tier.
func (f *fixture) seedOrg(t *testing.T, owner int64, name string, limit int) (model.Organization, model.Event, model.Product) {
	ctx := context.Background()
	require.NoError(t, f.users.Touch(ctx, owner, "", ""))
	org, err := f.orgs.Create(ctx, owner, name, false)
	require.NoError(t, err)
	ev, err := f.events.Create(ctx, model.Event{OrgID: org.ID, Name: name + " Fest", DateStr: "01.06.2026"})
	require.NoError(t, err)
	p, err := f.products.Create(ctx, model.Product{EventID: ev.ID, Name: "Std", Price: 1000, QuantityLimit: limit, IsRefundable: true})
	require.NoError(t, err)
	return org, ev, p
}

func (f *fixture) registerBuyer(t *testing.T, chatID int64) {
	ctx := context.Background()
	require.NoError(t, f.users.Touch(ctx, chatID, "buyer", "Buyer"))
	require.NoError(t, f.auth.Register(ctx, chatID, "buyer1", "Passw0rd"))
}

func TestTablesHaveHandlers(t *testing.T) {
	for name, tbl := range map[string]table{"buyer": buyerTable, "admin": adminTable} {
		for st, row := range tbl {
			assert.NotEmpty(t, row, "%s %s", name, st)
			for kind, h := range row {
				assert.NotNil(t, h, "%s %s %d", name, st, kind)
			}
		}
	}
}

func TestCancelResetsSession(t *testing.T) {
	f := newFixture(t)
	f.text(buyer, "/start")
	s := f.session(buyer)
	assert.Equal(t, session.FlowBuyer, s.Flow)
	assert.Equal(t, stBuyerAuth, s.State)

	f.text(buyer, "/cancel")
	s = f.session(buyer)
	assert.Equal(t, session.FlowNone, s.Flow)
	assert.Equal(t, session.State(""), s.State)
	assert.Equal(t, textCancelled, f.msg.last(buyer).Text)
}

func TestTextWithoutConversation(t *testing.T) {
	f := newFixture(t)
	f.text(buyer, "hello")
	assert.Equal(t, textNoSession, f.msg.last(buyer).Text)
}

func TestInvalidInputKeepsState(t *testing.T) {
	f := newFixture(t)
	f.text(buyer, "/start")
	f.press(buyer, Callback(IntentAuthRegister))
	f.text(buyer, "a!")
	assert.Equal(t, stBuyerRegLogin, f.session(buyer).State)

	f.text(buyer, "newbuyer")
	assert.Equal(t, stBuyerRegPassword, f.session(buyer).State)
	f.text(buyer, "weak")
	assert.Equal(t, stBuyerRegPassword, f.session(buyer).State)
	f.text(buyer, "Passw0rd")
	assert.Equal(t, stBuyerMenu, f.session(buyer).State)

	u, err := f.users.Get(context.Background(), buyer)
	require.NoError(t, err)
	assert.True(t, u.IsAuthenticated)
}

func TestBlacklistedBuyerNeverSeesProducts(t *testing.T) {
	f := newFixture(t)
	org, ev, _ := f.seedOrg(t, ownerX, "X", 0)
	f.registerBuyer(t, buyer)

	f.text(buyer, "/start")
	f.press(buyer, Callback(IntentBuyStart))
	require.Equal(t, stBuyerEvents, f.session(buyer).State, "single organization opens directly")

	require.NoError(t, f.blacklist.Add(context.Background(), model.BlacklistEntry{OrgID: org.ID, UserID: buyer, BlockedBy: ownerX}))
	f.press(buyer, Callback(IntentBuyEvent, ev.ID))

	assert.Equal(t, textBlacklisted, f.msg.last(buyer).Text)
	assert.Equal(t, stBuyerMenu, f.session(buyer).State)
	for _, m := range f.msg.all(buyer) {
		assert.NotContains(t, m.Text, "Выберите билет")
	}
}

func TestGloballyBlacklistedBuyerCannotOpenOrganization(t *testing.T) {
	f := newFixture(t)
	f.seedOrg(t, ownerX, "X", 0)
	f.registerBuyer(t, buyer)
	require.NoError(t, f.blacklist.Add(context.Background(), model.BlacklistEntry{UserID: buyer, BlockedBy: superAdmin}))

	f.text(buyer, "/start")
	f.press(buyer, Callback(IntentBuyStart))
	assert.Equal(t, textBlacklisted, f.msg.last(buyer).Text)
	assert.Equal(t, stBuyerMenu, f.session(buyer).State)
}

// buyTicket walks the buyer flow up to "I paid" and returns the approve
// button data sent to the super admin.
func buyTicket(t *testing.T, f *fixture, ev model.Event, p model.Product) string {
	f.text(buyer, "/start")
	f.press(buyer, Callback(IntentBuyStart))
	f.press(buyer, Callback(IntentBuyEvent, ev.ID))
	require.Equal(t, stBuyerProducts, f.session(buyer).State)
	f.press(buyer, Callback(IntentBuyProduct, p.ID))
	require.Equal(t, stBuyerName, f.session(buyer).State)
	f.text(buyer, "Ivan Petrov")
	f.text(buyer, "not-an-email")
	require.Equal(t, stBuyerEmail, f.session(buyer).State)
	f.text(buyer, "ivan@example.com")
	require.Equal(t, stBuyerPromo, f.session(buyer).State)
	f.press(buyer, Callback(IntentSkipPromo))
	require.Equal(t, stBuyerConfirm, f.session(buyer).State)
	f.press(buyer, Callback(IntentPay))
	require.Equal(t, stBuyerPayment, f.session(buyer).State)
	f.press(buyer, Callback(IntentPaid))
	require.Equal(t, stBuyerMenu, f.session(buyer).State)

	data, ok := f.msg.button(superAdmin, "adm_approve_")
	require.True(t, ok, "super admin is notified")
	return data
}

func TestPurchaseAndApprovalIssuesTicket(t *testing.T) {
	f := newFixture(t)
	_, ev, p := f.seedOrg(t, ownerX, "X", 5)
	f.registerBuyer(t, buyer)

	approve := buyTicket(t, f, ev, p)
	_, ok := f.msg.button(ownerX, "adm_approve_")
	assert.True(t, ok, "owner is notified")

	f.press(superAdmin, approve)
	assert.Equal(t, 1, f.msg.photos[buyer])

	mine, err := f.svc.ListMine(context.Background(), buyer)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.True(t, mine[0].IsActive)
	assert.Equal(t, 1000, mine[0].FinalPrice)

	// The record is consumed: a second approver gets the stale notice.
	f.press(ownerX, strings.Replace(approve, "adm_approve_", "adm_reject_", 1))
	assert.Equal(t, textStale, f.msg.lastAnswer())
	mine, err = f.svc.ListMine(context.Background(), buyer)
	require.NoError(t, err)
	assert.Len(t, mine, 1)
}

func TestApprovalReportsUndeliveredTicket(t *testing.T) {
	f := newFixture(t)
	_, ev, p := f.seedOrg(t, ownerX, "X", 0)
	f.registerBuyer(t, buyer)
	approve := buyTicket(t, f, ev, p)

	f.msg.mu.Lock()
	f.msg.failTo[buyer] = true
	f.msg.mu.Unlock()
	f.press(ownerX, approve)

	assert.Contains(t, f.msg.last(ownerX).Text, "не отправлен")
	mine, err := f.svc.ListMine(context.Background(), buyer)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.True(t, mine[0].IsActive)
}

func TestRejectReleasesUnit(t *testing.T) {
	f := newFixture(t)
	_, ev, p := f.seedOrg(t, ownerX, "X", 1)
	f.registerBuyer(t, buyer)
	approve := buyTicket(t, f, ev, p)

	got, err := f.products.Get(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.QuantitySold)

	f.press(ownerX, strings.Replace(approve, "adm_approve_", "adm_reject_", 1))
	got, err = f.products.Get(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.QuantitySold)
	assert.Contains(t, f.msg.last(buyer).Text, "отклонена")
}

func TestSweepExpiresTicketWithoutApprovalRecord(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, ev, p := f.seedOrg(t, ownerX, "X", 1)
	f.registerBuyer(t, buyer)
	approve := buyTicket(t, f, ev, p)

	// A record that is still stored keeps its ticket.
	assert.Zero(t, f.bot.sweepPending(ctx, 0))
	got, err := f.products.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.QuantitySold)

	// The record expires (or the process restarts with the memory store).
	_, err = f.bot.Pending.Take(ctx, strings.TrimPrefix(approve, "adm_approve_"))
	require.NoError(t, err)
	assert.Equal(t, 0, f.bot.sweepPending(ctx, time.Hour), "younger than the cutoff")
	assert.Equal(t, 1, f.bot.sweepPending(ctx, 0))

	got, err = f.products.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.QuantitySold)
	stale, err := f.tickets.ListPendingBefore(ctx, time.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.Empty(t, stale)
	assert.Contains(t, f.msg.last(buyer).Text, "истекла")
	assert.Zero(t, f.bot.sweepPending(ctx, 0))

	// The unit is back on sale.
	buyTicket(t, f, ev, p)
	got, err = f.products.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.QuantitySold)

	// A late press on the old notification is stale.
	f.press(ownerX, approve)
	assert.Equal(t, textStale, f.msg.lastAnswer())
}

func TestPendingRecordExpiryThenSweep(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.bot.Pending = service.NewMemoryPending(time.Millisecond)
	_, ev, p := f.seedOrg(t, ownerX, "X", 1)
	f.registerBuyer(t, buyer)
	buyTicket(t, f, ev, p)

	time.Sleep(5 * time.Millisecond)
	assert.Equal(t, 1, f.bot.sweepPending(ctx, 0))
	got, err := f.products.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.QuantitySold)
}

func TestApprovalByOutsiderIsRejected(t *testing.T) {
	f := newFixture(t)
	_, ev, p := f.seedOrg(t, ownerX, "X", 0)
	f.seedOrg(t, ownerY, "Y", 0)
	f.registerBuyer(t, buyer)

	f.text(buyer, "/start")
	f.press(buyer, Callback(IntentBuyStart))
	f.press(buyer, Callback(IntentBuyOrg, ev.OrgID))
	f.press(buyer, Callback(IntentBuyEvent, ev.ID))
	f.press(buyer, Callback(IntentBuyProduct, p.ID))
	f.text(buyer, "Ivan")
	f.text(buyer, "ivan@example.com")
	f.press(buyer, Callback(IntentSkipPromo))
	f.press(buyer, Callback(IntentPay))
	f.press(buyer, Callback(IntentPaid))
	approve, ok := f.msg.button(superAdmin, "adm_approve_")
	require.True(t, ok)

	f.press(ownerY, approve)
	assert.Equal(t, textForbidden, f.msg.lastAnswer())
	assert.Zero(t, f.msg.photos[buyer])
}

func TestSoldOutTierRoutesBackToSelection(t *testing.T) {
	f := newFixture(t)
	_, ev, p := f.seedOrg(t, ownerX, "X", 1)
	f.registerBuyer(t, buyer)
	require.NoError(t, f.users.Touch(context.Background(), 200, "", ""))
	_, _, err := f.svc.Purchase(context.Background(), service.PurchaseRequest{ProductID: p.ID, BuyerID: 200, BuyerName: "Other"})
	require.NoError(t, err)

	f.text(buyer, "/start")
	f.press(buyer, Callback(IntentBuyStart))
	f.press(buyer, Callback(IntentBuyEvent, ev.ID))
	f.press(buyer, Callback(IntentBuyProduct, p.ID))

	assert.Equal(t, stBuyerProducts, f.session(buyer).State)
	assert.Contains(t, f.msg.last(buyer).Text, textSoldOut)
}

func TestPromoAppliedToQuote(t *testing.T) {
	f := newFixture(t)
	_, ev, p := f.seedOrg(t, ownerX, "X", 0)
	f.registerBuyer(t, buyer)
	_, err := f.promos.Create(context.Background(), model.PromoCode{Code: "SALE10", EventID: ev.ID, DiscountPercent: 10})
	require.NoError(t, err)

	f.text(buyer, "/start")
	f.press(buyer, Callback(IntentBuyStart))
	f.press(buyer, Callback(IntentBuyEvent, ev.ID))
	f.press(buyer, Callback(IntentBuyProduct, p.ID))
	f.text(buyer, "Ivan")
	f.text(buyer, "ivan@example.com")
	f.text(buyer, "sale10")

	s := f.session(buyer)
	assert.Equal(t, stBuyerConfirm, s.State)
	assert.Equal(t, "SALE10", s.Buyer.PromoCode)
	assert.Equal(t, 900, s.Buyer.FinalPrice)
}

func TestUnknownPromoContinuesWithoutDiscount(t *testing.T) {
	f := newFixture(t)
	_, ev, p := f.seedOrg(t, ownerX, "X", 0)
	f.registerBuyer(t, buyer)

	f.text(buyer, "/start")
	f.press(buyer, Callback(IntentBuyStart))
	f.press(buyer, Callback(IntentBuyEvent, ev.ID))
	f.press(buyer, Callback(IntentBuyProduct, p.ID))
	f.text(buyer, "Ivan")
	f.text(buyer, "ivan@example.com")
	f.text(buyer, "NOPE")

	s := f.session(buyer)
	assert.Equal(t, stBuyerConfirm, s.State)
	assert.Empty(t, s.Buyer.PromoCode)
	assert.Equal(t, 1000, s.Buyer.FinalPrice)
}

func TestCrossOrgTicketCheckRejected(t *testing.T) {
	f := newFixture(t)
	orgX, _, _ := f.seedOrg(t, ownerX, "X", 0)
	_, _, pY := f.seedOrg(t, ownerY, "Y", 0)
	ctx := context.Background()
	require.NoError(t, f.users.Touch(ctx, buyer, "", ""))
	tk, _, err := f.svc.Purchase(ctx, service.PurchaseRequest{ProductID: pY.ID, BuyerID: buyer, BuyerName: "Ivan"})
	require.NoError(t, err)
	_, err = f.svc.Approve(ctx, tk.ID, superAdmin)
	require.NoError(t, err)

	f.text(ownerX, "/admin")
	s := f.session(ownerX)
	require.Equal(t, stAdminOrgMenu, s.State)
	require.Equal(t, orgX.ID, s.Admin.OrgID)
	f.press(ownerX, Callback(IntentCheckOrg))
	f.text(ownerX, strings.ToLower(tk.ID))

	assert.Equal(t, "❌ Билет от другой организации!", f.msg.last(ownerX).Text)
	assert.Equal(t, stAdminCheck, f.session(ownerX).State)

	// A forged redeem button is rejected the same way.
	f.press(ownerX, Callback(IntentUseTicket, tk.ID))
	got, err := f.tickets.Get(ctx, tk.ID)
	require.NoError(t, err)
	assert.False(t, got.IsUsed)
}

func TestTicketCheckRedeemsOnce(t *testing.T) {
	f := newFixture(t)
	_, _, p := f.seedOrg(t, ownerX, "X", 0)
	ctx := context.Background()
	require.NoError(t, f.users.Touch(ctx, buyer, "", ""))
	tk, _, err := f.svc.Purchase(ctx, service.PurchaseRequest{ProductID: p.ID, BuyerID: buyer, BuyerName: "Ivan"})
	require.NoError(t, err)
	_, err = f.svc.Approve(ctx, tk.ID, ownerX)
	require.NoError(t, err)

	f.text(ownerX, "/admin")
	f.press(ownerX, Callback(IntentCheckOrg))
	f.text(ownerX, tk.ID)
	data, ok := f.msg.button(ownerX, "use_")
	require.True(t, ok)

	f.press(ownerX, data)
	assert.Contains(t, f.msg.last(ownerX).Text, "погашен")
	f.press(ownerX, data)
	assert.Contains(t, f.msg.last(ownerX).Text, "уже использован")
}

func TestAdminGateRejectsStrangers(t *testing.T) {
	f := newFixture(t)
	f.text(buyer, "/admin")
	assert.Equal(t, textNoAdmin, f.msg.last(buyer).Text)
	assert.Equal(t, session.FlowNone, f.session(buyer).Flow)
}

func TestAdminProductAndPromoWizards(t *testing.T) {
	f := newFixture(t)
	_, ev, _ := f.seedOrg(t, ownerX, "X", 0)

	f.text(ownerX, "/admin")
	f.press(ownerX, Callback(IntentEvents))
	f.press(ownerX, Callback(IntentSelectEvent, ev.ID))
	require.Equal(t, stAdminEventMenu, f.session(ownerX).State)

	f.press(ownerX, Callback(IntentAddProduct))
	f.text(ownerX, "VIP")
	f.text(ownerX, "abc")
	assert.Equal(t, stAdminProductPrice, f.session(ownerX).State)
	f.text(ownerX, "5000")
	f.text(ownerX, "10")
	f.press(ownerX, Callback(IntentRefundableNo))
	assert.Equal(t, stAdminEventMenu, f.session(ownerX).State)

	products, err := f.products.ListByEvent(context.Background(), ev.ID)
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, "VIP", products[1].Name)
	assert.Equal(t, 10, products[1].QuantityLimit)
	assert.False(t, products[1].IsRefundable)

	f.press(ownerX, Callback(IntentListPromos))
	f.press(ownerX, Callback(IntentCreatePromo))
	f.text(ownerX, "summer")
	f.text(ownerX, "150")
	assert.Equal(t, stAdminPromoPercent, f.session(ownerX).State)
	f.text(ownerX, "20")
	f.text(ownerX, "0")
	assert.Equal(t, stAdminPromos, f.session(ownerX).State)

	promos, err := f.promos.ListByEvent(context.Background(), ev.ID)
	require.NoError(t, err)
	require.Len(t, promos, 1)
	assert.Equal(t, "SUMMER", promos[0].Code)
	assert.Equal(t, 20, promos[0].DiscountPercent)
}

func TestOrgAdminCannotManageAdmins(t *testing.T) {
	f := newFixture(t)
	org, _, _ := f.seedOrg(t, ownerX, "X", 0)
	ctx := context.Background()
	require.NoError(t, f.users.Touch(ctx, 30, "staff", ""))
	require.NoError(t, f.orgs.AddAdmin(ctx, org.ID, 30))

	f.text(30, "/admin")
	require.Equal(t, stAdminOrgMenu, f.session(30).State)
	_, ok := f.msg.button(30, Callback(IntentManageAdmins))
	assert.False(t, ok, "admins see no owner actions")

	f.press(30, Callback(IntentManageAdmins))
	assert.Equal(t, textForbidden, f.msg.last(30).Text)
	assert.Equal(t, stAdminOrgMenu, f.session(30).State)
}

func TestOwnershipTransferThroughMenu(t *testing.T) {
	f := newFixture(t)
	org, _, _ := f.seedOrg(t, ownerX, "X", 0)
	ctx := context.Background()
	require.NoError(t, f.users.Touch(ctx, 30, "staff", ""))

	f.text(ownerX, "/admin")
	f.press(ownerX, Callback(IntentManageAdmins))
	f.press(ownerX, Callback(IntentAddAdmin))
	f.text(ownerX, "30")
	require.Equal(t, stAdminAdmins, f.session(ownerX).State)

	f.press(ownerX, Callback(IntentTransfer, int64(30)))
	f.press(ownerX, Callback(IntentTransferConfirm))

	got, err := f.orgs.Get(ctx, org.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(30), got.OwnerID)
	role, err := f.orgs.RoleOf(ctx, org.ID, ownerX)
	require.NoError(t, err)
	assert.Equal(t, model.RoleOrgAdmin, role)
}

func TestStaleButtonKeepsState(t *testing.T) {
	f := newFixture(t)
	f.registerBuyer(t, buyer)
	f.text(buyer, "/start")
	require.Equal(t, stBuyerMenu, f.session(buyer).State)

	f.press(buyer, Callback(IntentPay))
	assert.Equal(t, stBuyerMenu, f.session(buyer).State)
	assert.NotEmpty(t, f.msg.lastAnswer())
}
