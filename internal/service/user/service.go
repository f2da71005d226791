package user

import (
	"context"
	"errors"
	"iter"
	"strings"
	"time"

	"github.com/rs/zerolog"

	apperrors "github.com/open-builders/premium-backend/internal/common/errors"
	"github.com/open-builders/premium-backend/internal/common/logger"
	"github.com/open-builders/premium-backend/internal/common/validation"
	domain "github.com/open-builders/premium-backend/internal/domain/user"
)

// IdentCache caches handle to Telegram id mappings.
type IdentCache interface {
	SetUsername(ctx context.Context, username string, id int64) error
	SetEmail(ctx context.Context, email string, id int64) error
	LookupUsername(ctx context.Context, username string) (int64, bool, error)
	LookupEmail(ctx context.Context, email string) (int64, bool, error)
	Invalidate(ctx context.Context, username, email string) error
}

// Service orchestrates user access with repository and cache.
type Service struct {
	repo    domain.Repository
	cache   IdentCache
	timeout time.Duration
	now     func() time.Time
	logger  zerolog.Logger
}

func NewService(repo domain.Repository, cache IdentCache, timeout time.Duration) *Service {
	return &Service{
		repo:    repo,
		cache:   cache,
		timeout: timeout,
		now:     time.Now,
		logger:  logger.Component("users"),
	}
}

// WithClock overrides the time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Register creates the user on first contact, refreshes the profile on later
// contacts and marks the bot session logged in.
func (s *Service) Register(ctx context.Context, id int64, username, name string) (*domain.User, error) {
	if id <= 0 {
		return nil, apperrors.NewInvalidInputError("telegram_id", "must be positive")
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	now := s.now().UTC()
	prev, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, apperrors.NewStoreError("users.get", err)
	}
	if err := s.repo.Upsert(ctx, &domain.User{TelegramID: id, Username: username, Name: name, UpdatedAt: now}); err != nil {
		return nil, apperrors.NewStoreError("users.upsert", err)
	}
	if err := s.repo.SetSession(ctx, id, true, now); err != nil {
		return nil, apperrors.NewStoreError("users.session", err)
	}
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, apperrors.NewStoreError("users.get", err)
	}
	if u == nil {
		return nil, apperrors.NewStoreError("users.get", errors.New("user vanished after upsert"))
	}

	if s.cache != nil {
		if prev != nil && prev.Username != "" && prev.Username != u.Username {
			_ = s.cache.Invalidate(ctx, prev.Username, "")
		}
		_ = s.cache.SetUsername(ctx, u.Username, u.TelegramID)
	}
	if prev == nil {
		s.logger.Info().Int64("telegram_id", id).Str("username", u.Username).Msg("User registered")
	}
	return u, nil
}

// Logout clears the bot session flag.
func (s *Service) Logout(ctx context.Context, id int64) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.repo.SetSession(ctx, id, false, s.now().UTC()); err != nil {
		return apperrors.NewStoreError("users.session", err)
	}
	return nil
}

// SetContact stores the name and email collected at signup.
func (s *Service) SetContact(ctx context.Context, id int64, name, email string) error {
	email = strings.TrimSpace(email)
	if err := validation.ValidateEmail(email); err != nil {
		return apperrors.NewInvalidInputError("email", err.Error())
	}
	if err := validation.ValidateName(name); err != nil {
		return apperrors.NewInvalidInputError("name", err.Error())
	}
	u, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.repo.SetEmail(ctx, id, name, email, s.now().UTC()); err != nil {
		return apperrors.NewStoreError("users.set_email", err)
	}
	if s.cache != nil && u.Email != "" {
		_ = s.cache.Invalidate(ctx, "", u.Email)
	}
	return nil
}

// Get returns a registered user or UNKNOWN_USER.
func (s *Service) Get(ctx context.Context, id int64) (*domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, apperrors.NewStoreError("users.get", err)
	}
	if u == nil {
		return nil, apperrors.NewUnknownUserError(id)
	}
	return u, nil
}

// Resolve turns an admin-supplied identifier into a registered Telegram id.
func (s *Service) Resolve(ctx context.Context, raw string) (int64, error) {
	ident, err := domain.ParseIdent(raw)
	if err != nil {
		return 0, apperrors.NewInvalidInputError("ident", err.Error())
	}
	if ident.Kind == domain.IdentNumericID {
		u, err := s.Get(ctx, ident.ID)
		if err != nil {
			return 0, err
		}
		return u.TelegramID, nil
	}

	isEmail := ident.IsEmail()
	if s.cache != nil {
		var (
			id  int64
			hit bool
			err error
		)
		if isEmail {
			id, hit, err = s.cache.LookupEmail(ctx, ident.Handle)
		} else {
			id, hit, err = s.cache.LookupUsername(ctx, ident.Handle)
		}
		if err == nil && hit {
			return id, nil
		}
	}

	sctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	var u *domain.User
	if isEmail {
		u, err = s.repo.GetByEmail(sctx, ident.Handle)
	} else {
		u, err = s.repo.GetByUsername(sctx, ident.Handle)
	}
	if err != nil {
		return 0, apperrors.NewStoreError("users.resolve", err)
	}
	if u == nil {
		return 0, apperrors.New(apperrors.ErrCodeUnknownUser, "no user matches "+ident.String()).
			WithDetail("ident", ident.String())
	}

	if s.cache != nil {
		if isEmail {
			_ = s.cache.SetEmail(ctx, ident.Handle, u.TelegramID)
		} else {
			_ = s.cache.SetUsername(ctx, ident.Handle, u.TelegramID)
		}
	}
	return u.TelegramID, nil
}

func (s *Service) Search(ctx context.Context, q string, limit int) ([]domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	users, err := s.repo.Search(ctx, q, limit)
	if err != nil {
		return nil, apperrors.NewStoreError("users.search", err)
	}
	if users == nil {
		users = []domain.User{}
	}
	return users, nil
}

// Stats counts users as of the current UTC day.
func (s *Service) Stats(ctx context.Context) (*domain.Stats, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	now := s.now().UTC()
	today := domain.DateOf(now)
	st, err := s.repo.Stats(ctx, today, today.Time())
	if err != nil {
		return nil, apperrors.NewStoreError("users.stats", err)
	}
	return st, nil
}

// ActivePremium yields users whose premium is active today, page by page.
func (s *Service) ActivePremium(ctx context.Context) iter.Seq2[domain.User, error] {
	return s.repo.ActivePremium(ctx, domain.DateOf(s.now()))
}
