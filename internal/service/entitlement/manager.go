package entitlement

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	apperrors "github.com/open-builders/premium-backend/internal/common/errors"
	"github.com/open-builders/premium-backend/internal/common/logger"
	"github.com/open-builders/premium-backend/internal/domain/audit"
	"github.com/open-builders/premium-backend/internal/domain/user"
	"github.com/open-builders/premium-backend/internal/metrics"
)

const (
	maxGrantAttempts = 5
	sweepBatchSize   = 500
	notifyTimeout    = 10 * time.Second
	reminderTTL      = 48 * time.Hour
)

// Auditor appends to the admin action log without failing the caller.
type Auditor interface {
	Record(ctx context.Context, adminID string, kind audit.Kind, target, detail string)
}

// Notifier sends entitlement notices to users.
type Notifier interface {
	NotifyGranted(ctx context.Context, userID int64, expiresAt *user.Date) error
	NotifyRevoked(ctx context.Context, userID int64) error
	NotifyExpired(ctx context.Context, userID int64) error
	NotifyReminder(ctx context.Context, userID int64, daysLeft int, expiresAt user.Date) error
}

// NoticeLedger remembers which one-off notices were already sent.
type NoticeLedger interface {
	// MarkOnce returns true the first time key is marked within ttl.
	MarkOnce(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

type Options struct {
	StoreTimeout time.Duration
	MaxGrantDays int
	ReminderDays []int
}

// Manager owns the premium state machine: grant, revoke, expire.
type Manager struct {
	store    user.EntitlementStore
	audit    Auditor
	notifier Notifier
	ledger   NoticeLedger
	opts     Options
	now      func() time.Time
	logger   zerolog.Logger
}

func NewManager(store user.EntitlementStore, auditor Auditor, notifier Notifier, opts Options) *Manager {
	if opts.StoreTimeout <= 0 {
		opts.StoreTimeout = 5 * time.Second
	}
	return &Manager{
		store:    store,
		audit:    auditor,
		notifier: notifier,
		opts:     opts,
		now:      time.Now,
		logger:   logger.Component("entitlement"),
	}
}

// WithClock overrides the time source.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

// WithLedger enables expiry reminders, deduplicated through l.
func (m *Manager) WithLedger(l NoticeLedger) *Manager {
	m.ledger = l
	return m
}

// Today is the current UTC calendar day.
func (m *Manager) Today() user.Date { return user.DateOf(m.now()) }

// Grant makes the user premium for days more days. An unexpired grant is
// extended from its current expiry; anything else starts from today.
func (m *Manager) Grant(ctx context.Context, actor string, userID int64, days int) (*user.Status, error) {
	if days <= 0 {
		return nil, apperrors.NewInvalidInputError("days", "must be a positive number of days")
	}
	if m.opts.MaxGrantDays > 0 && days > m.opts.MaxGrantDays {
		return nil, apperrors.NewInvalidInputError("days", fmt.Sprintf("must not exceed %d", m.opts.MaxGrantDays))
	}

	now := m.now().UTC()
	today := user.DateOf(now)

	var expiry *user.Date
	for attempt := 1; ; attempt++ {
		u, err := m.getUser(ctx, userID)
		if err != nil {
			return nil, err
		}
		expiry = nextExpiry(u, today, days)

		sctx, cancel := context.WithTimeout(ctx, m.opts.StoreTimeout)
		ok, err := m.store.CompareAndSetEntitlement(sctx, userID, u.Version, true, expiry, now)
		cancel()
		if err != nil {
			return nil, apperrors.NewStoreError("users.grant", err)
		}
		if ok {
			break
		}
		metrics.GrantConflicts.Inc()
		if attempt >= maxGrantAttempts {
			return nil, apperrors.NewStoreError("users.grant", errors.New("entitlement kept changing concurrently"))
		}
	}

	metrics.EntitlementChanges.WithLabelValues("grant").Inc()
	m.record(ctx, actor, audit.KindGrant, strconv.FormatInt(userID, 10), grantDetail(days, expiry))
	m.logger.Info().Str("actor", actor).Int64("telegram_id", userID).Int("days", days).Str("expires_at", dateString(expiry)).Msg("Premium granted")

	m.notify(ctx, "grant", userID, func(nctx context.Context) error {
		return m.notifier.NotifyGranted(nctx, userID, expiry)
	})

	return &user.Status{TelegramID: userID, Premium: true, ExpiresAt: expiry, Active: true}, nil
}

// nextExpiry keeps a lifetime grant (premium with no expiry) lifetime.
func nextExpiry(u *user.User, today user.Date, days int) *user.Date {
	if u.IsPremium && u.PremiumExpiresAt == nil {
		return nil
	}
	base := today
	if u.IsPremium && !u.PremiumExpiresAt.Before(today) {
		base = *u.PremiumExpiresAt
	}
	return base.AddDays(days).Ptr()
}

// Revoke clears premium. Revoking a non-premium user succeeds without
// touching the store or the audit log; changed reports which case applied.
func (m *Manager) Revoke(ctx context.Context, actor string, userID int64) (changed bool, err error) {
	if _, err := m.getUser(ctx, userID); err != nil {
		return false, err
	}

	sctx, cancel := context.WithTimeout(ctx, m.opts.StoreTimeout)
	changed, err = m.store.ClearEntitlement(sctx, userID, m.now().UTC())
	cancel()
	if err != nil {
		return false, apperrors.NewStoreError("users.revoke", err)
	}
	if !changed {
		return false, nil
	}

	metrics.EntitlementChanges.WithLabelValues("revoke").Inc()
	m.record(ctx, actor, audit.KindRevoke, strconv.FormatInt(userID, 10), "")
	m.logger.Info().Str("actor", actor).Int64("telegram_id", userID).Msg("Premium revoked")

	m.notify(ctx, "revoke", userID, func(nctx context.Context) error {
		return m.notifier.NotifyRevoked(nctx, userID)
	})
	return true, nil
}

// ExpireSweep lapses every premium user whose expiry is before the day of
// now and returns how many it lapsed. Each lapse is a conditional update, so
// overlapping sweeps never double-expire and never undo a concurrent grant.
func (m *Manager) ExpireSweep(ctx context.Context, now time.Time) (int, error) {
	started := time.Now()
	defer func() { metrics.SweepDuration.Observe(time.Since(started).Seconds()) }()

	now = now.UTC()
	today := user.DateOf(now)
	expired := 0

	for {
		sctx, cancel := context.WithTimeout(ctx, m.opts.StoreTimeout)
		candidates, err := m.store.ListLapsed(sctx, today, sweepBatchSize)
		cancel()
		if err != nil {
			return expired, apperrors.NewStoreError("users.list_lapsed", err)
		}

		var firstErr error
		for _, u := range candidates {
			sctx, cancel := context.WithTimeout(ctx, m.opts.StoreTimeout)
			ok, err := m.store.ExpireIfLapsed(sctx, u.TelegramID, today, now)
			cancel()
			if err != nil {
				m.logger.Error().Err(err).Int64("telegram_id", u.TelegramID).Msg("Failed to expire premium")
				if firstErr == nil {
					firstErr = err
				}
				continue
			}
			if !ok {
				continue
			}
			expired++
			metrics.EntitlementChanges.WithLabelValues("expire").Inc()
			m.record(ctx, audit.SystemActor, audit.KindExpire, strconv.FormatInt(u.TelegramID, 10), "expired="+dateString(u.PremiumExpiresAt))

			userID := u.TelegramID
			m.notify(ctx, "expire", userID, func(nctx context.Context) error {
				return m.notifier.NotifyExpired(nctx, userID)
			})
		}
		if firstErr != nil {
			return expired, apperrors.NewStoreError("users.expire", firstErr)
		}
		if len(candidates) < sweepBatchSize {
			break
		}
	}

	if expired > 0 {
		m.logger.Info().Int("expired", expired).Str("today", today.String()).Msg("Expiry sweep completed")
	}
	return expired, nil
}

// Status reports the stored entitlement and whether it is effectively active today.
func (m *Manager) Status(ctx context.Context, userID int64) (*user.Status, error) {
	u, err := m.getUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	st := u.StatusAt(m.Today())
	return &st, nil
}

// RemindExpiring sends one reminder per user, offset and day to users whose
// grant ends the configured number of days from now.
func (m *Manager) RemindExpiring(ctx context.Context, now time.Time) (int, error) {
	if m.ledger == nil || len(m.opts.ReminderDays) == 0 {
		return 0, nil
	}
	today := user.DateOf(now)
	sent := 0
	for _, offset := range m.opts.ReminderDays {
		day := today.AddDays(offset)

		sctx, cancel := context.WithTimeout(ctx, m.opts.StoreTimeout)
		users, err := m.store.ListExpiringOn(sctx, day)
		cancel()
		if err != nil {
			return sent, apperrors.NewStoreError("users.list_expiring", err)
		}

		for _, u := range users {
			key := fmt.Sprintf("reminder:%d:%d:%s", u.TelegramID, offset, today.String())
			first, err := m.ledger.MarkOnce(ctx, key, reminderTTL)
			if err != nil {
				m.logger.Warn().Err(err).Int64("telegram_id", u.TelegramID).Msg("Notice ledger unavailable, skipping reminder")
				continue
			}
			if !first {
				continue
			}
			userID, daysLeft := u.TelegramID, offset
			m.notify(ctx, "reminder", userID, func(nctx context.Context) error {
				return m.notifier.NotifyReminder(nctx, userID, daysLeft, day)
			})
			sent++
		}
	}
	return sent, nil
}

// CycleResult is the outcome of one maintenance cycle.
type CycleResult struct {
	Notices int `json:"notices"`
	Expired int `json:"expired_count"`
}

// RunCycle sends due reminders and then sweeps lapsed grants. Reminder
// failures are logged; only the sweep decides the returned error.
func (m *Manager) RunCycle(ctx context.Context) (CycleResult, error) {
	now := m.now()
	var res CycleResult

	notices, err := m.RemindExpiring(ctx, now)
	if err != nil {
		m.logger.Warn().Err(err).Msg("Reminder pass failed")
	}
	res.Notices = notices

	res.Expired, err = m.ExpireSweep(ctx, now)
	return res, err
}

func (m *Manager) getUser(ctx context.Context, userID int64) (*user.User, error) {
	sctx, cancel := context.WithTimeout(ctx, m.opts.StoreTimeout)
	defer cancel()
	u, err := m.store.GetByID(sctx, userID)
	if err != nil {
		return nil, apperrors.NewStoreError("users.get", err)
	}
	if u == nil {
		return nil, apperrors.NewUnknownUserError(userID)
	}
	return u, nil
}

func (m *Manager) notify(ctx context.Context, op string, userID int64, send func(context.Context) error) {
	if m.notifier == nil {
		return
	}
	nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()
	if err := send(nctx); err != nil {
		m.logger.Warn().Err(err).Str("op", op).Int64("telegram_id", userID).Msg("User notification failed")
	}
}

func (m *Manager) record(ctx context.Context, adminID string, kind audit.Kind, target, detail string) {
	if m.audit != nil {
		m.audit.Record(ctx, adminID, kind, target, detail)
	}
}

func grantDetail(days int, expiry *user.Date) string {
	return fmt.Sprintf("days=%d expires=%s", days, dateString(expiry))
}

func dateString(d *user.Date) string {
	if d == nil {
		return "never"
	}
	return d.String()
}
