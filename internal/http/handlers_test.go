package http

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/open-builders/premium-backend/internal/common/middleware"
	"github.com/open-builders/premium-backend/internal/config"
	"github.com/open-builders/premium-backend/internal/domain/user"
	"github.com/open-builders/premium-backend/internal/platform/db/dbtest"
	rplatform "github.com/open-builders/premium-backend/internal/platform/redis"
	"github.com/open-builders/premium-backend/internal/repository/sqldb"
	auditsvc "github.com/open-builders/premium-backend/internal/service/audit"
	"github.com/open-builders/premium-backend/internal/service/entitlement"
	"github.com/open-builders/premium-backend/internal/service/notifications"
	queuesvc "github.com/open-builders/premium-backend/internal/service/queue"
	"github.com/open-builders/premium-backend/internal/service/telegram"
	usersvc "github.com/open-builders/premium-backend/internal/service/user"
	verifsvc "github.com/open-builders/premium-backend/internal/service/verification"
)

const (
	adminKey = "s3cret"
	botToken = "123456:TEST-TOKEN"
)

type outbox struct {
	mu   sync.Mutex
	sent map[int64][]string
	fail bool
}

func (o *outbox) SendMessage(_ context.Context, chatID int64, text, _ string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.fail {
		return assert.AnError
	}
	if o.sent == nil {
		o.sent = map[int64][]string{}
	}
	o.sent[chatID] = append(o.sent[chatID], text)
	return nil
}

func (o *outbox) count(chatID int64) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.sent[chatID])
}

type updateRecorder struct {
	mu  sync.Mutex
	ids []int64
}

func (r *updateRecorder) HandleUpdate(_ context.Context, u telegram.Update) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids = append(r.ids, u.UpdateID)
	return nil
}

type apiHarness struct {
	router *gin.Engine
	users  *usersvc.Service
	outbox *outbox
	bot    *updateRecorder
}

func newAPI(t *testing.T) *apiHarness {
	t.Helper()
	return newAPIWithStore(t, nil)
}

// newAPIWithStore lets a test wrap the entitlement store the manager writes through.
func newAPIWithStore(t *testing.T, wrap func(user.EntitlementStore) user.EntitlementStore) *apiHarness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	client := dbtest.Open(t)
	mr := miniredis.RunT(t)
	rdb := rplatform.Wrap(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := &config.Config{ServiceName: "premium-backend-test"}
	cfg.Admin.APIKey = adminKey
	cfg.Telegram.BotToken = botToken
	cfg.Telegram.WebhookSecret = "hook"
	cfg.Telegram.InitDataTTL = time.Hour
	cfg.Premium.DefaultGrantDays = 30
	cfg.Premium.MaxGrantDays = 3650
	cfg.Premium.BroadcastRPS = 1000
	cfg.Server.RateLimitRPS = 1000
	cfg.Server.RateLimitBurst = 1000
	cfg.Redis.StatsCacheTTL = time.Minute

	ob := &outbox{}
	notifier := notifications.NewService(ob)
	auditor := auditsvc.NewService(sqldb.NewAdminActionRepository(client.DB), time.Second)
	userRepo := sqldb.NewUserRepository(client.DB)
	users := usersvc.NewService(userRepo, nil, time.Second)
	var store user.EntitlementStore = userRepo
	if wrap != nil {
		store = wrap(store)
	}

	h := &apiHarness{users: users, outbox: ob, bot: &updateRecorder{}}
	h.router = NewRouter(Deps{
		Config:       cfg,
		DB:           client,
		Redis:        rdb,
		Users:        users,
		Entitlements: entitlement.NewManager(store, auditor, notifier, entitlement.Options{StoreTimeout: time.Second, MaxGrantDays: 3650}),
		Claims:       verifsvc.NewService(sqldb.NewClaimRepository(client.DB), auditor, notifier, time.Second),
		Queue:        queuesvc.NewService(sqldb.NewQueueRepository(client.DB), auditor, time.Second),
		Audit:        auditor,
		Notifier:     notifier,
		Bot:          h.bot,
	})
	return h
}

func (h *apiHarness) register(t *testing.T, id int64, username string) {
	t.Helper()
	_, err := h.users.Register(context.Background(), id, username, "User "+username)
	require.NoError(t, err)
}

func (h *apiHarness) do(method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	return rec
}

func (h *apiHarness) admin(method, path string, body any) *httptest.ResponseRecorder {
	return h.do(method, path, body, map[string]string{
		middleware.AdminKeyHeader: adminKey,
		middleware.AdminIDHeader:  "dash:alice",
	})
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body.Error.Code
}

// signInitData produces Mini App init data the way Telegram signs it.
func signInitData(id int64, username string, authDate time.Time) string {
	userJSON, _ := json.Marshal(map[string]any{"id": id, "first_name": "Test", "username": username})
	fields := map[string]string{
		"auth_date": strconv.FormatInt(authDate.Unix(), 10),
		"query_id":  "AAH",
		"user":      string(userJSON),
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+fields[k])
	}

	secret := hmac.New(sha256.New, []byte("WebAppData"))
	secret.Write([]byte(botToken))
	mac := hmac.New(sha256.New, secret.Sum(nil))
	mac.Write([]byte(strings.Join(pairs, "\n")))

	q := url.Values{}
	for k, v := range fields {
		q.Set(k, v)
	}
	q.Set("hash", hex.EncodeToString(mac.Sum(nil)))
	return q.Encode()
}

func TestAdminRoutesRequireKey(t *testing.T) {
	h := newAPI(t)

	rec := h.do(http.MethodPost, "/api/grant", GrantRequest{Ident: "1"}, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "UNAUTHORIZED", errorCode(t, rec))

	rec = h.do(http.MethodGet, "/api/users", nil, map[string]string{middleware.AdminKeyHeader: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// The query-string key is only honoured on the cron route.
	rec = h.do(http.MethodGet, "/api/users?key="+adminKey, nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGrantStatusRevokeFlow(t *testing.T) {
	h := newAPI(t)
	h.register(t, 42, "alice")

	days := 10
	rec := h.admin(http.MethodPost, "/api/grant", GrantRequest{Ident: "@Alice", Days: &days})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	granted := decode[GrantResponse](t, rec)
	assert.True(t, granted.OK)
	require.NotNil(t, granted.Status.ExpiresAt)
	assert.Equal(t, user.DateOf(time.Now()).AddDays(10), *granted.Status.ExpiresAt)
	assert.Equal(t, 1, h.outbox.count(42))

	rec = h.admin(http.MethodGet, "/api/users/42/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	st := decode[user.Status](t, rec)
	assert.True(t, st.Active)

	rec = h.admin(http.MethodPost, "/api/revoke", RevokeRequest{Ident: "tg:42"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[RevokeResponse](t, rec).Changed)

	rec = h.admin(http.MethodPost, "/api/revoke", RevokeRequest{Ident: "42"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[RevokeResponse](t, rec).Changed)

	rec = h.admin(http.MethodGet, "/api/logs?target=42", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	logs := decode[LogsResponse](t, rec)
	require.Len(t, logs.Actions, 2)
	assert.Equal(t, "dash:alice", logs.Actions[0].AdminID)
}

func TestGrantDefaultsAndValidation(t *testing.T) {
	h := newAPI(t)
	h.register(t, 7, "bob")

	rec := h.admin(http.MethodPost, "/api/grant", GrantRequest{Ident: "7"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, user.DateOf(time.Now()).AddDays(30), *decode[GrantResponse](t, rec).Status.ExpiresAt)

	zero := 0
	rec = h.admin(http.MethodPost, "/api/grant", GrantRequest{Ident: "7", Days: &zero})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_INPUT", errorCode(t, rec))

	rec = h.admin(http.MethodPost, "/api/grant", GrantRequest{Ident: "999"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "UNKNOWN_USER", errorCode(t, rec))

	rec = h.admin(http.MethodPost, "/api/grant", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestClaimLifecycleOverHTTP(t *testing.T) {
	h := newAPI(t)
	initData := signInitData(55, "carol", time.Now())
	me := map[string]string{middleware.InitDataHeader: initData}

	rec := h.do(http.MethodPost, "/api/me/claims", ClaimRequest{Kind: "USDT", Payload: " 0xfeed "}, me)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	// The caller was registered by the init-data middleware.
	u, err := h.users.Get(context.Background(), 55)
	require.NoError(t, err)
	assert.Equal(t, "carol", u.Username)

	rec = h.admin(http.MethodGet, "/api/claims?status=pending", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	claims := decode[ClaimsResponse](t, rec).Claims
	require.Len(t, claims, 1)
	assert.Equal(t, "0xfeed", claims[0].Payload)

	approve := true
	path := "/api/claims/" + strconv.FormatInt(claims[0].ID, 10) + "/decision"
	rec = h.admin(http.MethodPost, path, DecisionRequest{Approve: &approve})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decided := decode[DecisionResponse](t, rec)
	assert.Equal(t, "approved", string(decided.Claim.Status))
	require.NotNil(t, decided.Status)
	assert.True(t, decided.Status.Active)

	rec = h.admin(http.MethodPost, path, DecisionRequest{Approve: &approve})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "CLAIM_NOT_PENDING", errorCode(t, rec))

	rec = h.admin(http.MethodPost, "/api/claims/9999/decision", DecisionRequest{Approve: &approve})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = h.admin(http.MethodGet, "/api/claims?status=bogus", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.do(http.MethodGet, "/api/me/status", nil, me)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[user.Status](t, rec).Active)
}

func TestMeRoutesRejectBadInitData(t *testing.T) {
	h := newAPI(t)

	rec := h.do(http.MethodGet, "/api/me/status", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	forged := signInitData(55, "carol", time.Now()) + "0"
	rec = h.do(http.MethodGet, "/api/me/status", nil, map[string]string{middleware.InitDataHeader: forged})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	stale := signInitData(55, "carol", time.Now().Add(-2*time.Hour))
	rec = h.do(http.MethodGet, "/api/me/status", nil, map[string]string{middleware.InitDataHeader: stale})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestQueueEnqueueAndMatch(t *testing.T) {
	h := newAPI(t)
	me := map[string]string{middleware.InitDataHeader: signInitData(77, "dave", time.Now())}

	rec := h.do(http.MethodPost, "/api/me/queue", nil, me)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, decode[EnqueueResponse](t, rec).Created)

	rec = h.do(http.MethodPost, "/api/me/queue", nil, me)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[EnqueueResponse](t, rec).Created)

	rec = h.admin(http.MethodGet, "/api/queue", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, decode[QueueResponse](t, rec).Entries, 1)

	rec = h.admin(http.MethodPost, "/api/queue/match", MatchRequest{Ident: "@dave", Reference: "UTR123"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	matched := decode[MatchResponse](t, rec)
	assert.Equal(t, "UTR123", matched.Entry.MatchedReference)
	assert.True(t, matched.Status.Active)

	rec = h.admin(http.MethodPost, "/api/queue/match", MatchRequest{Ident: "@dave", Reference: "UTR124"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_QUEUED", errorCode(t, rec))

	rec = h.admin(http.MethodGet, "/api/queue", nil)
	assert.Empty(t, decode[QueueResponse](t, rec).Entries)
}

func TestMessageAndBroadcast(t *testing.T) {
	h := newAPI(t)
	h.register(t, 1, "one")
	h.register(t, 2, "two")
	h.register(t, 3, "three")
	for _, id := range []string{"1", "2"} {
		require.Equal(t, http.StatusOK, h.admin(http.MethodPost, "/api/grant", GrantRequest{Ident: id}).Code)
	}

	rec := h.admin(http.MethodPost, "/api/message", MessageRequest{Ident: "@three", Text: "hello"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 1, h.outbox.count(3))

	rec = h.admin(http.MethodPost, "/api/broadcast", BroadcastRequest{Text: "news"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decode[BroadcastResponse](t, rec)
	assert.Equal(t, 2, res.Sent)
	assert.Equal(t, 2, res.Total)
	assert.Equal(t, 1, h.outbox.count(3))

	h.outbox.mu.Lock()
	h.outbox.fail = true
	h.outbox.mu.Unlock()
	rec = h.admin(http.MethodPost, "/api/message", MessageRequest{Ident: "3", Text: "again"})
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "TELEGRAM_API_ERROR", errorCode(t, rec))
}

func TestCronAcceptsQueryKey(t *testing.T) {
	h := newAPI(t)

	rec := h.do(http.MethodPost, "/api/cron?key="+adminKey, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode[CronResponse](t, rec)
	assert.True(t, body.OK)
	assert.Zero(t, body.ExpiredCount)

	rec = h.do(http.MethodPost, "/api/cron?key=nope", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

type lapsedUnavailableStore struct {
	user.EntitlementStore
}

func (lapsedUnavailableStore) ListLapsed(context.Context, user.Date, int) ([]user.User, error) {
	return nil, errors.New("database is locked")
}

func TestCronReportsSweepFailureAs500(t *testing.T) {
	h := newAPIWithStore(t, func(s user.EntitlementStore) user.EntitlementStore {
		return lapsedUnavailableStore{s}
	})

	rec := h.admin(http.MethodPost, "/api/cron", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code, rec.Body.String())
	assert.Equal(t, "STORE_UNAVAILABLE", errorCode(t, rec))
}

func TestCronRejectsGet(t *testing.T) {
	h := newAPI(t)

	rec := h.do(http.MethodGet, "/api/cron?key="+adminKey, nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStatsAreCached(t *testing.T) {
	h := newAPI(t)
	h.register(t, 1, "one")

	rec := h.admin(http.MethodGet, "/api/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
	assert.Equal(t, 1, decode[user.Stats](t, rec).TotalUsers)

	h.register(t, 2, "two")
	rec = h.admin(http.MethodGet, "/api/stats", nil)
	assert.Equal(t, "HIT", rec.Header().Get("X-Cache"))
	assert.Equal(t, 1, decode[user.Stats](t, rec).TotalUsers)
}

func TestWebhook(t *testing.T) {
	h := newAPI(t)

	rec := h.do(http.MethodPost, "/webhook/telegram", telegram.Update{UpdateID: 5}, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	secret := map[string]string{WebhookSecretHeader: "hook"}
	rec = h.do(http.MethodPost, "/webhook/telegram", telegram.Update{UpdateID: 5}, secret)
	assert.Equal(t, http.StatusOK, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/webhook/telegram", strings.NewReader("{not json"))
	req.Header.Set(WebhookSecretHeader, "hook")
	rec = httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	h.bot.mu.Lock()
	defer h.bot.mu.Unlock()
	assert.Equal(t, []int64{5}, h.bot.ids)
}

func TestHealthAndReady(t *testing.T) {
	h := newAPI(t)

	assert.Equal(t, http.StatusOK, h.do(http.MethodGet, "/health", nil, nil).Code)
	rec := h.do(http.MethodGet, "/ready", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ready", decode[map[string]any](t, rec)["status"])
	assert.Equal(t, http.StatusOK, h.do(http.MethodGet, "/metrics", nil, nil).Code)
}
