package sqldb_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/open-builders/premium-backend/internal/domain/audit"
	"github.com/open-builders/premium-backend/internal/domain/payment"
	"github.com/open-builders/premium-backend/internal/domain/user"
	"github.com/open-builders/premium-backend/internal/domain/verification"
	"github.com/open-builders/premium-backend/internal/platform/db/dbtest"
	"github.com/open-builders/premium-backend/internal/repository/sqldb"
)

var now = time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

func TestUserUpsertAndLookup(t *testing.T) {
	ctx := context.Background()
	repo := sqldb.NewUserRepository(dbtest.Open(t).DB)

	require.NoError(t, repo.Upsert(ctx, &user.User{TelegramID: 42, Username: "@Alice", Name: "Alice", UpdatedAt: now}))
	require.NoError(t, repo.Upsert(ctx, &user.User{TelegramID: 42, UpdatedAt: now.Add(time.Hour)}))

	u, err := repo.GetByID(ctx, 42)
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, "alice", u.Username)
	assert.Equal(t, "Alice", u.Name, "empty name keeps the stored one")
	assert.False(t, u.IsPremium)
	assert.Nil(t, u.PremiumExpiresAt)

	byName, err := repo.GetByUsername(ctx, "ALICE")
	require.NoError(t, err)
	require.NotNil(t, byName)
	assert.Equal(t, int64(42), byName.TelegramID)

	require.NoError(t, repo.SetEmail(ctx, 42, "", "Alice@Example.com", now))
	byEmail, err := repo.GetByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	require.NotNil(t, byEmail)

	missing, err := repo.GetByID(ctx, 7)
	require.NoError(t, err)
	assert.Nil(t, missing)

	found, err := repo.Search(ctx, "lic", 10)
	require.NoError(t, err)
	assert.Len(t, found, 1)
	found, err = repo.Search(ctx, "42", 10)
	require.NoError(t, err)
	assert.Len(t, found, 1)

	require.NoError(t, repo.SetSession(ctx, 42, true, now))
	u, err = repo.GetByID(ctx, 42)
	require.NoError(t, err)
	assert.True(t, u.LoggedIn)
	require.NotNil(t, u.LastLogin)
	assert.True(t, now.Equal(*u.LastLogin))
}

func TestEntitlementCompareAndSet(t *testing.T) {
	ctx := context.Background()
	repo := sqldb.NewUserRepository(dbtest.Open(t).DB)
	require.NoError(t, repo.Upsert(ctx, &user.User{TelegramID: 1, UpdatedAt: now}))

	u, err := repo.GetByID(ctx, 1)
	require.NoError(t, err)
	expiry := user.DateOf(now).AddDays(30)

	ok, err := repo.CompareAndSetEntitlement(ctx, 1, u.Version, true, &expiry, now)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.CompareAndSetEntitlement(ctx, 1, u.Version, true, &expiry, now)
	require.NoError(t, err)
	assert.False(t, ok, "stale version must not write")

	u, err = repo.GetByID(ctx, 1)
	require.NoError(t, err)
	assert.True(t, u.IsPremium)
	require.NotNil(t, u.PremiumExpiresAt)
	assert.Equal(t, expiry.String(), u.PremiumExpiresAt.String())

	changed, err := repo.ClearEntitlement(ctx, 1, now)
	require.NoError(t, err)
	assert.True(t, changed)
	changed, err = repo.ClearEntitlement(ctx, 1, now)
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestLapseQueries(t *testing.T) {
	ctx := context.Background()
	repo := sqldb.NewUserRepository(dbtest.Open(t).DB)
	today := user.DateOf(now)

	grant := func(id int64, expiry *user.Date) {
		require.NoError(t, repo.Upsert(ctx, &user.User{TelegramID: id, UpdatedAt: now}))
		ok, err := repo.CompareAndSetEntitlement(ctx, id, 0, true, expiry, now)
		require.NoError(t, err)
		require.True(t, ok)
	}
	grant(1, today.AddDays(-1).Ptr())
	grant(2, today.Ptr())
	grant(3, today.AddDays(3).Ptr())
	grant(4, nil)

	lapsed, err := repo.ListLapsed(ctx, today, 0)
	require.NoError(t, err)
	require.Len(t, lapsed, 1)
	assert.Equal(t, int64(1), lapsed[0].TelegramID)

	expiring, err := repo.ListExpiringOn(ctx, today.AddDays(3))
	require.NoError(t, err)
	require.Len(t, expiring, 1)
	assert.Equal(t, int64(3), expiring[0].TelegramID)

	ok, err := repo.ExpireIfLapsed(ctx, 2, today, now)
	require.NoError(t, err)
	assert.False(t, ok, "expiring today is not lapsed")
	ok, err = repo.ExpireIfLapsed(ctx, 1, today, now)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = repo.ExpireIfLapsed(ctx, 1, today, now)
	require.NoError(t, err)
	assert.False(t, ok)

	var active []int64
	for u, err := range repo.ActivePremium(ctx, today) {
		require.NoError(t, err)
		active = append(active, u.TelegramID)
	}
	assert.Equal(t, []int64{2, 3, 4}, active)

	stats, err := repo.Stats(ctx, today, today.Time())
	require.NoError(t, err)
	assert.Equal(t, 4, stats.TotalUsers)
	assert.Equal(t, 3, stats.ActivePremium)
	assert.Equal(t, 4, stats.SignupsToday)
}

func TestClaimDecideOnce(t *testing.T) {
	ctx := context.Background()
	repo := sqldb.NewClaimRepository(dbtest.Open(t).DB)

	c := &verification.Claim{TelegramID: 42, Kind: verification.KindUSDT, Payload: "0xabc", SubmittedAt: now}
	require.NoError(t, repo.Create(ctx, c))
	require.NotZero(t, c.ID)
	assert.Equal(t, verification.StatusPending, c.Status)

	decided, err := repo.Decide(ctx, c.ID, verification.StatusApproved, "admin", now.Add(time.Minute))
	require.NoError(t, err)
	require.NotNil(t, decided)
	assert.Equal(t, verification.StatusApproved, decided.Status)
	assert.Equal(t, "admin", decided.DecidedBy)
	require.NotNil(t, decided.DecidedAt)

	again, err := repo.Decide(ctx, c.ID, verification.StatusRejected, "admin", now)
	require.NoError(t, err)
	assert.Nil(t, again)

	stored, err := repo.GetByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, verification.StatusApproved, stored.Status)
	assert.Equal(t, "0xabc", stored.Payload)
}

func TestClaimListPageFilters(t *testing.T) {
	ctx := context.Background()
	repo := sqldb.NewClaimRepository(dbtest.Open(t).DB)

	for i, kind := range []verification.Kind{verification.KindUPI, verification.KindUSDT, verification.KindUPI} {
		require.NoError(t, repo.Create(ctx, &verification.Claim{TelegramID: int64(i + 1), Kind: kind, Payload: "ref", SubmittedAt: now}))
	}

	all, err := repo.ListPage(ctx, verification.Filter{}, 0, 10)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Less(t, all[0].ID, all[1].ID)

	upi, err := repo.ListPage(ctx, verification.Filter{Kind: verification.KindUPI, Status: verification.StatusPending}, 0, 10)
	require.NoError(t, err)
	assert.Len(t, upi, 2)

	rest, err := repo.ListPage(ctx, verification.Filter{}, all[0].ID, 10)
	require.NoError(t, err)
	assert.Len(t, rest, 2)
}

func TestQueueInsertMatch(t *testing.T) {
	ctx := context.Background()
	repo := sqldb.NewQueueRepository(dbtest.Open(t).DB)

	first, created, err := repo.Insert(ctx, 7, now)
	require.NoError(t, err)
	assert.True(t, created)

	second, created, err := repo.Insert(ctx, 7, now.Add(time.Minute))
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)

	_, _, err = repo.Insert(ctx, 9, now)
	require.NoError(t, err)

	oldest, err := repo.Oldest(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(7), oldest.TelegramID)

	matched, err := repo.Match(ctx, 7, "tx1", now)
	require.NoError(t, err)
	require.NotNil(t, matched)
	assert.Equal(t, "tx1", matched.MatchedReference)
	assert.False(t, matched.Outstanding())

	none, err := repo.Match(ctx, 7, "tx2", now)
	require.NoError(t, err)
	assert.Nil(t, none)

	page, err := repo.ListOutstandingPage(ctx, 0, 10)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, int64(9), page[0].TelegramID)
}

func TestQueueInsertRetriesWhenConflictingRowIsMatched(t *testing.T) {
	ctx := context.Background()
	repo := sqldb.NewQueueRepository(dbtest.Open(t).DB)

	first, created, err := repo.Insert(ctx, 7, now)
	require.NoError(t, err)
	require.True(t, created)

	matches := 0
	sqldb.SetAfterConflict(repo, func() {
		if matches > 0 {
			return
		}
		matches++
		m, err := repo.Match(ctx, 7, "tx-race", now)
		require.NoError(t, err)
		require.NotNil(t, m)
	})

	second, created, err := repo.Insert(ctx, 7, now.Add(time.Minute))
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, first.ID, second.ID)
	assert.True(t, second.Outstanding())
	assert.Equal(t, 1, matches)
}

func TestAdminActionsAppendOnly(t *testing.T) {
	ctx := context.Background()
	repo := sqldb.NewAdminActionRepository(dbtest.Open(t).DB)

	require.NoError(t, repo.Insert(ctx, &audit.Action{AdminID: "api", Kind: audit.KindGrant, Target: "42", Detail: "days=30", CreatedAt: now}))
	require.NoError(t, repo.Insert(ctx, &audit.Action{AdminID: "system", Kind: audit.KindExpire, Target: "7", CreatedAt: now}))

	all, err := repo.Recent(ctx, "", 10)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, audit.KindExpire, all[0].Kind)

	forUser, err := repo.Recent(ctx, "42", 10)
	require.NoError(t, err)
	require.Len(t, forUser, 1)
	assert.Equal(t, "days=30", forUser[0].Detail)
	assert.True(t, now.Equal(forUser[0].CreatedAt))
}

func TestPaymentRecordDedup(t *testing.T) {
	ctx := context.Background()
	repo := sqldb.NewPaymentRepository(dbtest.Open(t).DB)

	o := &payment.Observation{Network: "trc20", TxHash: "abc", Amount: 6, ObservedAt: now}
	created, err := repo.Record(ctx, o)
	require.NoError(t, err)
	assert.True(t, created)

	again := &payment.Observation{Network: "trc20", TxHash: "abc", ObservedAt: now}
	created, err = repo.Record(ctx, again)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, o.ID, again.ID)
	assert.Equal(t, payment.StatusUnmatched, again.Status)

	require.NoError(t, repo.SetStatus(ctx, "abc", payment.StatusMatched, 42))

	again = &payment.Observation{Network: "trc20", TxHash: "abc", Status: payment.StatusUnmatched, ObservedAt: now}
	created, err = repo.Record(ctx, again)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, payment.StatusMatched, again.Status)
}
