package entitlement

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/open-builders/premium-backend/internal/common/errors"
	"github.com/open-builders/premium-backend/internal/domain/audit"
	"github.com/open-builders/premium-backend/internal/domain/user"
	"github.com/open-builders/premium-backend/internal/platform/db/dbtest"
	"github.com/open-builders/premium-backend/internal/repository/sqldb"
	auditsvc "github.com/open-builders/premium-backend/internal/service/audit"
)

var fixedNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

type fakeNotifier struct {
	mu        sync.Mutex
	granted   []int64
	revoked   []int64
	expired   []int64
	reminders []int64
	err       error
}

func (f *fakeNotifier) NotifyGranted(_ context.Context, id int64, _ *user.Date) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.granted = append(f.granted, id)
	return f.err
}

func (f *fakeNotifier) NotifyRevoked(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.revoked = append(f.revoked, id)
	return f.err
}

func (f *fakeNotifier) NotifyExpired(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.expired = append(f.expired, id)
	return f.err
}

func (f *fakeNotifier) NotifyReminder(_ context.Context, id int64, _ int, _ user.Date) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reminders = append(f.reminders, id)
	return f.err
}

type memLedger struct {
	mu   sync.Mutex
	keys map[string]bool
}

func (l *memLedger) MarkOnce(_ context.Context, key string, _ time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.keys == nil {
		l.keys = map[string]bool{}
	}
	if l.keys[key] {
		return false, nil
	}
	l.keys[key] = true
	return true, nil
}

type fixture struct {
	users    *sqldb.UserRepository
	actions  *sqldb.AdminActionRepository
	auditor  *auditsvc.Service
	notifier *fakeNotifier
	manager  *Manager
	now      time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	client := dbtest.Open(t)
	f := &fixture{
		users:    sqldb.NewUserRepository(client.DB),
		actions:  sqldb.NewAdminActionRepository(client.DB),
		notifier: &fakeNotifier{},
		now:      fixedNow,
	}
	f.auditor = auditsvc.NewService(f.actions, time.Second).WithClock(f.clock)
	f.useStore(f.users)
	return f
}

func (f *fixture) clock() time.Time { return f.now }

// useStore rebuilds the manager over store, which usually wraps f.users.
func (f *fixture) useStore(store user.EntitlementStore) {
	f.manager = NewManager(store, f.auditor, f.notifier, Options{
		StoreTimeout: time.Second,
		MaxGrantDays: 3650,
		ReminderDays: []int{3, 1},
	}).WithClock(f.clock).WithLedger(&memLedger{})
}

func (f *fixture) register(t *testing.T, ids ...int64) {
	t.Helper()
	for _, id := range ids {
		require.NoError(t, f.users.Upsert(context.Background(), &user.User{TelegramID: id, UpdatedAt: f.now}))
	}
}

func (f *fixture) actionsFor(t *testing.T, target string) []audit.Action {
	t.Helper()
	actions, err := f.actions.Recent(context.Background(), target, 100)
	require.NoError(t, err)
	return actions
}

func TestGrantFresh(t *testing.T) {
	f := newFixture(t)
	f.register(t, 42)
	ctx := context.Background()

	st, err := f.manager.Grant(ctx, "admin", 42, 30)
	require.NoError(t, err)
	assert.True(t, st.Premium)
	assert.True(t, st.Active)
	assert.Equal(t, "2024-07-01", st.ExpiresAt.String())

	got, err := f.manager.Status(ctx, 42)
	require.NoError(t, err)
	assert.True(t, got.Premium)
	assert.Equal(t, "2024-07-01", got.ExpiresAt.String())

	actions := f.actionsFor(t, "42")
	require.Len(t, actions, 1)
	assert.Equal(t, audit.KindGrant, actions[0].Kind)
	assert.Equal(t, "admin", actions[0].AdminID)
	assert.Equal(t, []int64{42}, f.notifier.granted)
}

func TestGrantExtendsUnexpired(t *testing.T) {
	f := newFixture(t)
	f.register(t, 1)
	ctx := context.Background()

	_, err := f.manager.Grant(ctx, "admin", 1, 10)
	require.NoError(t, err)

	st, err := f.manager.Grant(ctx, "admin", 1, 30)
	require.NoError(t, err)
	assert.Equal(t, user.DateOf(fixedNow).AddDays(40).String(), st.ExpiresAt.String())
}

func TestGrantAfterLapseStartsFromToday(t *testing.T) {
	f := newFixture(t)
	f.register(t, 1)
	ctx := context.Background()

	_, err := f.manager.Grant(ctx, "admin", 1, 5)
	require.NoError(t, err)

	f.now = fixedNow.AddDate(0, 0, 10)
	st, err := f.manager.Grant(ctx, "admin", 1, 30)
	require.NoError(t, err)
	assert.Equal(t, user.DateOf(f.now).AddDays(30).String(), st.ExpiresAt.String())
}

func TestGrantKeepsLifetime(t *testing.T) {
	f := newFixture(t)
	f.register(t, 1)
	ctx := context.Background()

	ok, err := f.users.CompareAndSetEntitlement(ctx, 1, 0, true, nil, fixedNow)
	require.NoError(t, err)
	require.True(t, ok)

	st, err := f.manager.Grant(ctx, "admin", 1, 30)
	require.NoError(t, err)
	assert.Nil(t, st.ExpiresAt)
}

func TestGrantValidation(t *testing.T) {
	f := newFixture(t)
	f.register(t, 1)
	ctx := context.Background()

	_, err := f.manager.Grant(ctx, "admin", 1, 0)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	_, err = f.manager.Grant(ctx, "admin", 1, -3)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	_, err = f.manager.Grant(ctx, "admin", 1, 5000)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	_, err = f.manager.Grant(ctx, "admin", 999, 30)
	assert.ErrorIs(t, err, apperrors.ErrUnknownUser)

	assert.Empty(t, f.actionsFor(t, ""))
}

func TestGrantNotificationFailureDoesNotFail(t *testing.T) {
	f := newFixture(t)
	f.register(t, 1)
	f.notifier.err = errors.New("bot blocked")

	st, err := f.manager.Grant(context.Background(), "admin", 1, 30)
	require.NoError(t, err)
	assert.True(t, st.Premium)
}

func TestConcurrentGrantsDoNotLoseUpdates(t *testing.T) {
	f := newFixture(t)
	f.register(t, 1)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.manager.Grant(ctx, "admin", 1, 10)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	st, err := f.manager.Status(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, user.DateOf(fixedNow).AddDays(30).String(), st.ExpiresAt.String())
}

func TestRevoke(t *testing.T) {
	f := newFixture(t)
	f.register(t, 1, 2)
	ctx := context.Background()

	_, err := f.manager.Grant(ctx, "admin", 1, 30)
	require.NoError(t, err)

	changed, err := f.manager.Revoke(ctx, "admin", 1)
	require.NoError(t, err)
	assert.True(t, changed)

	st, err := f.manager.Status(ctx, 1)
	require.NoError(t, err)
	assert.False(t, st.Premium)
	assert.Nil(t, st.ExpiresAt)
	assert.Equal(t, []int64{1}, f.notifier.revoked)

	changed, err = f.manager.Revoke(ctx, "admin", 2)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Empty(t, f.actionsFor(t, "2"), "no-op revoke must not be audited")

	changed, err = f.manager.Revoke(ctx, "admin", 1)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Len(t, f.actionsFor(t, "1"), 2)

	_, err = f.manager.Revoke(ctx, "admin", 404)
	assert.ErrorIs(t, err, apperrors.ErrUnknownUser)
}

func TestExpireSweepIsIdempotent(t *testing.T) {
	f := newFixture(t)
	f.register(t, 1, 2, 3)
	ctx := context.Background()

	for id, days := range map[int64]int{1: 1, 2: 2, 3: 10} {
		_, err := f.manager.Grant(ctx, "admin", id, days)
		require.NoError(t, err)
	}

	// Day +2: user 1 (expired yesterday) lapses, user 2 expires today and stays.
	later := fixedNow.AddDate(0, 0, 2)
	n, err := f.manager.ExpireSweep(ctx, later)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = f.manager.ExpireSweep(ctx, later)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	expires := 0
	for _, a := range f.actionsFor(t, "") {
		if a.Kind == audit.KindExpire {
			expires++
			assert.Equal(t, audit.SystemActor, a.AdminID)
			assert.Equal(t, "1", a.Target)
		}
	}
	assert.Equal(t, 1, expires)
	assert.Equal(t, []int64{1}, f.notifier.expired)

	st, err := f.manager.Status(ctx, 2)
	require.NoError(t, err)
	assert.True(t, st.Active)
}

func TestConcurrentSweepsExpireOnce(t *testing.T) {
	f := newFixture(t)
	f.register(t, 1, 2, 3, 4)
	ctx := context.Background()
	for _, id := range []int64{1, 2, 3, 4} {
		_, err := f.manager.Grant(ctx, "admin", id, 1)
		require.NoError(t, err)
	}

	later := fixedNow.AddDate(0, 0, 5)
	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		total int
	)
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, err := f.manager.ExpireSweep(ctx, later)
			assert.NoError(t, err)
			mu.Lock()
			total += n
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, 4, total)
}

// regrantingStore grants premium to a user just before the sweep's
// conditional expiry reaches the row.
type regrantingStore struct {
	user.EntitlementStore
	before func(id int64)
}

func (s *regrantingStore) ExpireIfLapsed(ctx context.Context, id int64, today user.Date, now time.Time) (bool, error) {
	if s.before != nil {
		s.before(id)
	}
	return s.EntitlementStore.ExpireIfLapsed(ctx, id, today, now)
}

func TestSweepKeepsGrantIssuedAfterListing(t *testing.T) {
	f := newFixture(t)
	f.register(t, 1)
	ctx := context.Background()
	_, err := f.manager.Grant(ctx, "admin", 1, 1)
	require.NoError(t, err)

	f.now = fixedNow.AddDate(0, 0, 5)
	store := &regrantingStore{EntitlementStore: f.users}
	f.useStore(store)
	store.before = func(id int64) {
		store.before = nil
		_, err := f.manager.Grant(ctx, "admin", id, 30)
		require.NoError(t, err)
	}

	n, err := f.manager.ExpireSweep(ctx, f.now)
	require.NoError(t, err)
	assert.Zero(t, n)

	st, err := f.manager.Status(ctx, 1)
	require.NoError(t, err)
	assert.True(t, st.Active)
	assert.Equal(t, user.DateOf(f.now).AddDays(30).String(), st.ExpiresAt.String())
	assert.Empty(t, f.notifier.expired)
	for _, a := range f.actionsFor(t, "1") {
		assert.NotEqual(t, audit.KindExpire, a.Kind)
	}
}

type casUnavailableStore struct {
	user.EntitlementStore
}

func (casUnavailableStore) CompareAndSetEntitlement(context.Context, int64, int64, bool, *user.Date, time.Time) (bool, error) {
	return false, errors.New("database is locked")
}

func TestGrantStoreFailureIsStoreUnavailable(t *testing.T) {
	f := newFixture(t)
	f.register(t, 5)
	f.useStore(casUnavailableStore{f.users})

	_, err := f.manager.Grant(context.Background(), "admin", 5, 30)
	require.Error(t, err)
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrCodeStoreUnavailable, appErr.Code)

	assert.Empty(t, f.actionsFor(t, "5"))
	assert.Empty(t, f.notifier.granted)

	st, err := f.manager.Status(context.Background(), 5)
	require.NoError(t, err)
	assert.False(t, st.Premium)
}

func TestStatusDerivesActive(t *testing.T) {
	f := newFixture(t)
	f.register(t, 1)
	ctx := context.Background()

	_, err := f.manager.Grant(ctx, "admin", 1, 1)
	require.NoError(t, err)

	f.now = fixedNow.AddDate(0, 0, 3)
	st, err := f.manager.Status(ctx, 1)
	require.NoError(t, err)
	assert.True(t, st.Premium, "flag is stale until a sweep runs")
	assert.False(t, st.Active)

	_, err = f.manager.Status(ctx, 77)
	assert.ErrorIs(t, err, apperrors.ErrUnknownUser)
}

func TestRunCycleRemindsOncePerDay(t *testing.T) {
	f := newFixture(t)
	f.register(t, 1, 2, 3)
	ctx := context.Background()

	_, err := f.manager.Grant(ctx, "admin", 1, 3)
	require.NoError(t, err)
	_, err = f.manager.Grant(ctx, "admin", 2, 1)
	require.NoError(t, err)
	_, err = f.manager.Grant(ctx, "admin", 3, 7)
	require.NoError(t, err)

	res, err := f.manager.RunCycle(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Notices)
	assert.Equal(t, 0, res.Expired)

	res, err = f.manager.RunCycle(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Notices)
	assert.ElementsMatch(t, []int64{1, 2}, f.notifier.reminders)
}
