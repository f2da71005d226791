package user

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	rcache "github.com/open-builders/premium-backend/internal/cache/redis"
	apperrors "github.com/open-builders/premium-backend/internal/common/errors"
	"github.com/open-builders/premium-backend/internal/platform/db/dbtest"
	rplatform "github.com/open-builders/premium-backend/internal/platform/redis"
	"github.com/open-builders/premium-backend/internal/repository/sqldb"
)

var now = time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

func newTestService(t *testing.T) (*Service, *miniredis.Miniredis) {
	t.Helper()
	client := dbtest.Open(t)
	mr := miniredis.RunT(t)
	rc := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rc.Close() })

	cache := rcache.NewIdentCache(rplatform.Wrap(rc), time.Hour)
	svc := NewService(sqldb.NewUserRepository(client.DB), cache, time.Second).
		WithClock(func() time.Time { return now })
	return svc, mr
}

func TestRegister(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	u, err := svc.Register(ctx, 42, "Alice", "Alice A")
	require.NoError(t, err)
	assert.Equal(t, int64(42), u.TelegramID)
	assert.Equal(t, "alice", u.Username)
	assert.True(t, u.LoggedIn)
	assert.False(t, u.IsPremium)

	// A later contact without a username keeps the stored one.
	u, err = svc.Register(ctx, 42, "", "")
	require.NoError(t, err)
	assert.Equal(t, "alice", u.Username)
	assert.Equal(t, "Alice A", u.Name)

	require.NoError(t, svc.Logout(ctx, 42))
	u, err = svc.Get(ctx, 42)
	require.NoError(t, err)
	assert.False(t, u.LoggedIn)

	_, err = svc.Register(ctx, 0, "x", "y")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestResolve(t *testing.T) {
	svc, mr := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, 42, "alice", "Alice")
	require.NoError(t, err)
	require.NoError(t, svc.SetContact(ctx, 42, "", "alice@example.com"))

	for _, raw := range []string{"42", "tg:42", "@alice", "ALICE", "Alice@Example.com"} {
		id, err := svc.Resolve(ctx, raw)
		require.NoError(t, err, raw)
		assert.Equal(t, int64(42), id, raw)
	}
	assert.True(t, mr.Exists("ident:username:alice"))
	assert.True(t, mr.Exists("ident:email:alice@example.com"))

	_, err = svc.Resolve(ctx, "99")
	assert.ErrorIs(t, err, apperrors.ErrUnknownUser)
	_, err = svc.Resolve(ctx, "@nobody")
	assert.ErrorIs(t, err, apperrors.ErrUnknownUser)
	_, err = svc.Resolve(ctx, "  ")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	_, err = svc.Resolve(ctx, "tg:-1")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestResolveSurvivesCacheOutage(t *testing.T) {
	svc, mr := newTestService(t)
	ctx := context.Background()
	_, err := svc.Register(ctx, 7, "bob", "Bob")
	require.NoError(t, err)

	mr.Close()
	id, err := svc.Resolve(ctx, "@bob")
	require.NoError(t, err)
	assert.Equal(t, int64(7), id)
}

func TestSetContactRejectsBadEmail(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	_, err := svc.Register(ctx, 1, "", "One")
	require.NoError(t, err)

	assert.ErrorIs(t, svc.SetContact(ctx, 1, "", "not-an-email"), apperrors.ErrInvalidInput)
	assert.ErrorIs(t, svc.SetContact(ctx, 2, "", "two@example.com"), apperrors.ErrUnknownUser)
}

func TestSearchAndStats(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	for i, name := range []string{"alice", "bob", "carol"} {
		_, err := svc.Register(ctx, int64(i+1), name, name)
		require.NoError(t, err)
	}

	found, err := svc.Search(ctx, "bo", 10)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, int64(2), found[0].TelegramID)

	none, err := svc.Search(ctx, "zzz", 10)
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)

	st, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, st.TotalUsers)
	assert.Equal(t, 3, st.LoggedIn)
	assert.Equal(t, 3, st.SignupsToday)
	assert.Equal(t, 0, st.ActivePremium)
}
