package audit

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/open-builders/premium-backend/internal/common/logger"
	domain "github.com/open-builders/premium-backend/internal/domain/audit"
	"github.com/open-builders/premium-backend/internal/metrics"
)

// Service is the best-effort admin action log. A failed write is retried
// once and then dropped; callers never see an error.
type Service struct {
	repo    domain.Repository
	timeout time.Duration
	now     func() time.Time
	logger  zerolog.Logger
}

func NewService(repo domain.Repository, timeout time.Duration) *Service {
	return &Service{
		repo:    repo,
		timeout: timeout,
		now:     time.Now,
		logger:  logger.Component("audit"),
	}
}

// WithClock overrides the time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Record appends an action. It survives caller cancellation so an aborted
// request does not lose the audit entry of a mutation that already committed.
func (s *Service) Record(ctx context.Context, adminID string, kind domain.Kind, target, detail string) {
	if s == nil || s.repo == nil {
		return
	}
	if adminID == "" {
		adminID = domain.SystemActor
	}
	base := context.WithoutCancel(ctx)

	var err error
	for attempt := 1; attempt <= 2; attempt++ {
		a := &domain.Action{CreatedAt: s.now().UTC(), AdminID: adminID, Kind: kind, Target: target, Detail: detail}
		attemptCtx, cancel := context.WithTimeout(base, s.timeout)
		err = s.repo.Insert(attemptCtx, a)
		cancel()
		if err == nil {
			return
		}
	}

	metrics.AuditDropped.Inc()
	s.logger.Warn().Err(err).
		Str("admin_id", adminID).
		Str("action", string(kind)).
		Str("target", target).
		Msg("Admin action dropped after retry")
}

// Recent returns the newest actions, optionally filtered by target.
func (s *Service) Recent(ctx context.Context, target string, limit int) ([]domain.Action, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.repo.Recent(ctx, target, limit)
}
