package queue

import (
	"context"
	"iter"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	apperrors "github.com/open-builders/premium-backend/internal/common/errors"
	"github.com/open-builders/premium-backend/internal/common/logger"
	"github.com/open-builders/premium-backend/internal/common/validation"
	"github.com/open-builders/premium-backend/internal/domain/audit"
	domain "github.com/open-builders/premium-backend/internal/domain/queue"
	"github.com/open-builders/premium-backend/internal/metrics"
)

const peekPageSize = 100

// Auditor appends to the admin action log.
type Auditor interface {
	Record(ctx context.Context, adminID string, kind audit.Kind, target, detail string)
}

// Service is the FIFO of users who announced they are about to pay.
type Service struct {
	repo    domain.Repository
	audit   Auditor
	timeout time.Duration
	now     func() time.Time
	logger  zerolog.Logger
}

func NewService(repo domain.Repository, auditor Auditor, timeout time.Duration) *Service {
	return &Service{
		repo:    repo,
		audit:   auditor,
		timeout: timeout,
		now:     time.Now,
		logger:  logger.Component("queue"),
	}
}

// WithClock overrides the time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Enqueue adds the user to the tail of the queue. A user already waiting
// keeps their place; the existing entry is returned with created=false.
func (s *Service) Enqueue(ctx context.Context, userID int64) (*domain.Entry, bool, error) {
	if userID <= 0 {
		return nil, false, apperrors.NewInvalidInputError("user_id", "must be a positive telegram id")
	}
	sctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	entry, created, err := s.repo.Insert(sctx, userID, s.now().UTC())
	if err != nil {
		return nil, false, apperrors.NewStoreError("queue.insert", err)
	}
	if created {
		metrics.QueueEvents.WithLabelValues("enqueued").Inc()
		s.logger.Info().Int64("telegram_id", userID).Int64("entry_id", entry.ID).Msg("User queued for premium")
	} else {
		metrics.QueueEvents.WithLabelValues("duplicate").Inc()
	}
	return entry, created, nil
}

// MatchAndDequeue attaches a payment reference to the user's outstanding
// entry, which removes it from the queue.
func (s *Service) MatchAndDequeue(ctx context.Context, actor string, userID int64, reference string) (*domain.Entry, error) {
	reference = strings.TrimSpace(reference)
	if err := validation.ValidateReference(reference); err != nil {
		return nil, apperrors.NewInvalidInputError("reference", err.Error())
	}

	sctx, cancel := context.WithTimeout(ctx, s.timeout)
	entry, err := s.repo.Match(sctx, userID, reference, s.now().UTC())
	cancel()
	if err != nil {
		return nil, apperrors.NewStoreError("queue.match", err)
	}
	if entry == nil {
		return nil, apperrors.NewNotQueuedError(userID)
	}

	metrics.QueueEvents.WithLabelValues("matched").Inc()
	if s.audit != nil {
		s.audit.Record(ctx, actor, audit.KindQueueMatch, strconv.FormatInt(userID, 10), "ref="+reference)
	}
	s.logger.Info().Str("actor", actor).Int64("telegram_id", userID).Str("reference", reference).Msg("Queue entry matched")
	return entry, nil
}

// PeekAll yields outstanding entries in enqueue order.
func (s *Service) PeekAll(ctx context.Context) iter.Seq2[domain.Entry, error] {
	return func(yield func(domain.Entry, error) bool) {
		var after int64
		for {
			sctx, cancel := context.WithTimeout(ctx, s.timeout)
			page, err := s.repo.ListOutstandingPage(sctx, after, peekPageSize)
			cancel()
			if err != nil {
				yield(domain.Entry{}, apperrors.NewStoreError("queue.list", err))
				return
			}
			for _, e := range page {
				if !yield(e, nil) {
					return
				}
				after = e.ID
			}
			if len(page) < peekPageSize {
				return
			}
		}
	}
}

// Oldest returns the head of the queue, or nil when it is empty.
func (s *Service) Oldest(ctx context.Context) (*domain.Entry, error) {
	sctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	e, err := s.repo.Oldest(sctx)
	if err != nil {
		return nil, apperrors.NewStoreError("queue.oldest", err)
	}
	return e, nil
}

// Position returns the user's outstanding entry, or nil when not queued.
func (s *Service) Position(ctx context.Context, userID int64) (*domain.Entry, error) {
	sctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	e, err := s.repo.GetOutstanding(sctx, userID)
	if err != nil {
		return nil, apperrors.NewStoreError("queue.get", err)
	}
	return e, nil
}
