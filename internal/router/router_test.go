package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iliyamo/event-ticket-bot/internal/bot"
	"github.com/iliyamo/event-ticket-bot/internal/database"
	"github.com/iliyamo/event-ticket-bot/internal/database/dbtest"
	"github.com/iliyamo/event-ticket-bot/internal/handler"
	"github.com/iliyamo/event-ticket-bot/internal/metrics"
	"github.com/iliyamo/event-ticket-bot/internal/model"
	"github.com/iliyamo/event-ticket-bot/internal/repository"
	"github.com/iliyamo/event-ticket-bot/internal/service"
	"github.com/iliyamo/event-ticket-bot/internal/utils"
)

const (
	secret  = "report-secret"
	owner   = int64(10)
	outside = int64(30)
)

type queueStub struct {
	mu   sync.Mutex
	got  []bot.Inbound
	full bool
}

func (q *queueStub) Submit(in bot.Inbound) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.full {
		return false
	}
	q.got = append(q.got, in)
	return true
}

type env struct {
	e     http.Handler
	queue *queueStub
	event model.Event
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db := dbtest.Open(t)
	ctx := context.Background()
	users := repository.NewUserRepo(db)
	orgs := repository.NewOrgRepo(db, database.DriverSQLite)
	events := repository.NewEventRepo(db)
	tickets := repository.NewTicketRepo(db, database.DriverSQLite)

	require.NoError(t, users.Touch(ctx, owner, "", ""))
	org, err := orgs.Create(ctx, owner, "Club", false)
	require.NoError(t, err)
	ev, err := events.Create(ctx, model.Event{OrgID: org.ID, Name: "Club Night", DateStr: "01.06.2026"})
	require.NoError(t, err)

	access, err := service.NewAccess(1, orgs)
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	metrics.New(reg)
	q := &queueStub{}
	e := New(Routes{
		Health:  &handler.HealthHandler{DB: db},
		Webhook: &handler.WebhookHandler{Secret: "hook", Queue: q, Log: zap.NewNop()},
		Reports: &handler.ReportHandler{
			Events: events, Reports: service.NewReports(events, tickets), Access: access, Log: zap.NewNop(),
		},
		ReportSecret: secret,
		Gatherer:     reg,
		Log:          zap.NewNop(),
	})
	return &env{e: e, queue: q, event: ev}
}

func (v *env) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	v.e.ServeHTTP(rec, req)
	return rec
}

func TestProbes(t *testing.T) {
	v := newEnv(t)

	rec := v.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	rec = v.do(httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"redis":"disabled"`)
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

func TestMetricsEndpoint(t *testing.T) {
	v := newEnv(t)
	rec := v.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ticketbot_delivery_errors_total")
}

const startUpdate = `{"update_id":1,"message":{"message_id":5,"date":0,"text":"/start",
	"from":{"id":42,"is_bot":false,"first_name":"Ann"},"chat":{"id":42,"type":"private"}}}`

func webhookRequest(body, token string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, WebhookPath, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set(handler.SecretTokenHeader, token)
	}
	return req
}

func TestWebhookRejectsWrongSecret(t *testing.T) {
	v := newEnv(t)
	rec := v.do(webhookRequest(startUpdate, "nope"))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, v.queue.got)
}

func TestWebhookQueuesInteraction(t *testing.T) {
	v := newEnv(t)
	rec := v.do(webhookRequest(startUpdate, "hook"))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, v.queue.got, 1)
	assert.Equal(t, int64(42), v.queue.got[0].ChatID)
	assert.Equal(t, bot.IntentStart, v.queue.got[0].Intent.Kind)
}

func TestWebhookAcknowledgesIgnoredAndDroppedUpdates(t *testing.T) {
	v := newEnv(t)
	rec := v.do(webhookRequest(`{"update_id":2}`, "hook"))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, v.queue.got)

	v.queue.full = true
	rec = v.do(webhookRequest(startUpdate, "hook"))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestWebhookRejectsMalformedBody(t *testing.T) {
	v := newEnv(t)
	rec := v.do(webhookRequest(`{"update_id":`, "hook"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func reportRequest(t *testing.T, eventID, requester int64, ttl time.Duration) *http.Request {
	tok, err := utils.NewReportToken(secret, eventID, requester, ttl)
	require.NoError(t, err)
	return httptest.NewRequest(http.MethodGet, "/v1/reports/"+tok.Token, nil)
}

func TestReportDownload(t *testing.T) {
	v := newEnv(t)
	rec := v.do(reportRequest(t, v.event.ID, owner, time.Minute))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "report_event_")
	assert.True(t, strings.HasPrefix(rec.Body.String(), "PK"), "xlsx is a zip archive")
}

func TestReportDownloadRejects(t *testing.T) {
	v := newEnv(t)

	rec := v.do(httptest.NewRequest(http.MethodGet, "/v1/reports/garbage", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = v.do(reportRequest(t, v.event.ID, owner, -time.Minute))
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "expired")

	rec = v.do(reportRequest(t, v.event.ID, outside, time.Minute))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = v.do(reportRequest(t, v.event.ID+100, owner, time.Minute))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
