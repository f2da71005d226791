package verification

import (
	"context"
	"iter"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	apperrors "github.com/open-builders/premium-backend/internal/common/errors"
	"github.com/open-builders/premium-backend/internal/common/logger"
	"github.com/open-builders/premium-backend/internal/domain/audit"
	domain "github.com/open-builders/premium-backend/internal/domain/verification"
	"github.com/open-builders/premium-backend/internal/metrics"
)

const (
	MaxPayloadLength = 256
	listPageSize     = 100
)

// Auditor appends to the admin action log.
type Auditor interface {
	Record(ctx context.Context, adminID string, kind audit.Kind, target, detail string)
}

// Notifier tells a user their claim was rejected.
type Notifier interface {
	NotifyClaimRejected(ctx context.Context, userID, claimID int64, kind string) error
}

type submission struct {
	UserID  int64  `validate:"gt=0"`
	Kind    string `validate:"oneof=upi usdt"`
	Payload string `validate:"required,max=256"`
}

// Service is the intake for manual payment proofs.
type Service struct {
	repo     domain.Repository
	audit    Auditor
	notifier Notifier
	validate *validator.Validate
	timeout  time.Duration
	now      func() time.Time
	logger   zerolog.Logger
}

func NewService(repo domain.Repository, auditor Auditor, notifier Notifier, timeout time.Duration) *Service {
	return &Service{
		repo:     repo,
		audit:    auditor,
		notifier: notifier,
		validate: validator.New(),
		timeout:  timeout,
		now:      time.Now,
		logger:   logger.Component("verification"),
	}
}

// WithClock overrides the time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Submit creates a pending claim. Repeated submissions are allowed.
func (s *Service) Submit(ctx context.Context, userID int64, kind domain.Kind, payload string) (*domain.Claim, error) {
	in := submission{UserID: userID, Kind: string(kind), Payload: strings.TrimSpace(payload)}
	if err := s.validate.Struct(in); err != nil {
		return nil, invalidSubmission(err)
	}

	c := &domain.Claim{
		TelegramID:  userID,
		Kind:        kind,
		Payload:     in.Payload,
		Status:      domain.StatusPending,
		SubmittedAt: s.now().UTC(),
	}
	sctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.repo.Create(sctx, c); err != nil {
		return nil, apperrors.NewStoreError("claims.create", err)
	}

	metrics.Claims.WithLabelValues("submitted", string(kind)).Inc()
	s.logger.Info().Int64("claim_id", c.ID).Int64("telegram_id", userID).Str("kind", string(kind)).Msg("Verification claim submitted")
	return c, nil
}

func invalidSubmission(err error) error {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok || len(verrs) == 0 {
		return apperrors.NewInvalidInputError("claim", err.Error())
	}
	fe := verrs[0]
	switch fe.Field() {
	case "Kind":
		return apperrors.NewInvalidInputError("kind", "must be upi or usdt")
	case "Payload":
		if fe.Tag() == "max" {
			return apperrors.NewInvalidInputError("payload", "must be at most "+strconv.Itoa(MaxPayloadLength)+" characters")
		}
		return apperrors.NewInvalidInputError("payload", "must not be empty")
	default:
		return apperrors.NewInvalidInputError("user_id", "must be a positive telegram id")
	}
}

// List yields claims matching f, oldest first. Pages are fetched lazily; a
// store failure is yielded once and ends the sequence.
func (s *Service) List(ctx context.Context, f domain.Filter) iter.Seq2[domain.Claim, error] {
	return func(yield func(domain.Claim, error) bool) {
		if f.Status != "" && !f.Status.Valid() {
			yield(domain.Claim{}, apperrors.NewInvalidInputError("status", "must be pending, approved or rejected"))
			return
		}
		if f.Kind != "" && !f.Kind.Valid() {
			yield(domain.Claim{}, apperrors.NewInvalidInputError("kind", "must be upi or usdt"))
			return
		}

		var after int64
		for {
			sctx, cancel := context.WithTimeout(ctx, s.timeout)
			page, err := s.repo.ListPage(sctx, f, after, listPageSize)
			cancel()
			if err != nil {
				yield(domain.Claim{}, apperrors.NewStoreError("claims.list", err))
				return
			}
			for _, c := range page {
				if !yield(c, nil) {
					return
				}
				after = c.ID
			}
			if len(page) < listPageSize {
				return
			}
		}
	}
}

// Get returns one claim.
func (s *Service) Get(ctx context.Context, claimID int64) (*domain.Claim, error) {
	sctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	c, err := s.repo.GetByID(sctx, claimID)
	if err != nil {
		return nil, apperrors.NewStoreError("claims.get", err)
	}
	if c == nil {
		return nil, apperrors.NewClaimNotFoundError(claimID)
	}
	return c, nil
}

// Decide approves or rejects a pending claim exactly once. Approval does not
// grant premium; the caller follows up with a grant of its chosen duration.
func (s *Service) Decide(ctx context.Context, actor string, claimID int64, approve bool) (*domain.Claim, error) {
	status, kind := domain.StatusRejected, audit.KindClaimReject
	if approve {
		status, kind = domain.StatusApproved, audit.KindClaimApprove
	}

	sctx, cancel := context.WithTimeout(ctx, s.timeout)
	c, err := s.repo.Decide(sctx, claimID, status, actor, s.now().UTC())
	cancel()
	if err != nil {
		return nil, apperrors.NewStoreError("claims.decide", err)
	}
	if c == nil {
		existing, err := s.Get(ctx, claimID)
		if err != nil {
			return nil, err
		}
		return nil, apperrors.NewClaimNotPendingError(claimID, string(existing.Status))
	}

	metrics.Claims.WithLabelValues(string(status), string(c.Kind)).Inc()
	if s.audit != nil {
		s.audit.Record(ctx, actor, kind, strconv.FormatInt(c.TelegramID, 10), "claim="+strconv.FormatInt(c.ID, 10))
	}
	s.logger.Info().Str("actor", actor).Int64("claim_id", c.ID).Str("status", string(status)).Msg("Verification claim decided")

	if !approve && s.notifier != nil {
		nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if err := s.notifier.NotifyClaimRejected(nctx, c.TelegramID, c.ID, string(c.Kind)); err != nil {
			s.logger.Warn().Err(err).Int64("claim_id", c.ID).Msg("Rejection notice failed")
		}
	}
	return c, nil
}
