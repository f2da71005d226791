package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"iter"
	"strings"
	"time"

	domain "github.com/open-builders/premium-backend/internal/domain/user"
)

// UserRepository provides user and entitlement persistence.
type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository { return &UserRepository{db: db} }

var _ domain.Repository = (*UserRepository)(nil)

const userColumns = `telegram_id, COALESCE(username, ''), name, COALESCE(email, ''), is_premium, premium_expires_at,
	entitlement_version, logged_in, last_login, created_at, updated_at`

func scanUser(row rowScanner) (*domain.User, error) {
	var (
		u                    domain.User
		expiry               sql.Null[domain.Date]
		lastLogin            dbTime
		createdAt, updatedAt dbTime
	)
	if err := row.Scan(&u.TelegramID, &u.Username, &u.Name, &u.Email, &u.IsPremium, &expiry,
		&u.Version, &u.LoggedIn, &lastLogin, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	if expiry.Valid {
		u.PremiumExpiresAt = expiry.V.Ptr()
	}
	u.LastLogin = lastLogin.Ptr()
	u.CreatedAt = createdAt.Time
	u.UpdatedAt = updatedAt.Time
	return &u, nil
}

func (r *UserRepository) getOne(ctx context.Context, q string, arg any) (*domain.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx, q, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return u, nil
}

// Upsert registers a user or refreshes their profile fields. Entitlement and
// session columns are never touched here.
func (r *UserRepository) Upsert(ctx context.Context, u *domain.User) error {
	const q = `
INSERT INTO users (telegram_id, username, name, created_at, updated_at)
VALUES ($1, lower(NULLIF($2, '')), $3, $4, $4)
ON CONFLICT (telegram_id) DO UPDATE SET
	username = COALESCE(EXCLUDED.username, users.username),
	name = CASE WHEN EXCLUDED.name <> '' THEN EXCLUDED.name ELSE users.name END,
	updated_at = EXCLUDED.updated_at`
	now := u.UpdatedAt
	if now.IsZero() {
		now = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, q, u.TelegramID, strings.TrimPrefix(u.Username, "@"), u.Name, now.UTC())
	return err
}

// GetByID returns a user by Telegram ID, or nil when absent.
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE telegram_id = $1`, id)
}

// GetByUsername matches case-insensitively, with or without a leading @.
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE lower(username) = lower($1)`, strings.TrimPrefix(username, "@"))
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, strings.TrimSpace(email))
}

// Search matches id, username, name or email; an empty query lists newest users.
func (r *UserRepository) Search(ctx context.Context, q string, limit int) ([]domain.User, error) {
	limit = clampLimit(limit, 100, 1000)
	q = strings.TrimPrefix(strings.TrimSpace(q), "@")

	var (
		rows *sql.Rows
		err  error
	)
	if q == "" {
		rows, err = r.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at DESC, telegram_id DESC LIMIT $1`, limit)
	} else {
		const where = `
WHERE CAST(telegram_id AS TEXT) = $1
	OR lower(COALESCE(username, '')) LIKE $2
	OR lower(name) LIKE $2
	OR lower(COALESCE(email, '')) LIKE $2
ORDER BY created_at DESC, telegram_id DESC
LIMIT $3`
		pattern := "%" + strings.ToLower(q) + "%"
		rows, err = r.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users`+where, q, pattern, limit)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

// Stats counts users for the dashboard.
func (r *UserRepository) Stats(ctx context.Context, today domain.Date, dayStart time.Time) (*domain.Stats, error) {
	const q = `
SELECT
	COUNT(*),
	COALESCE(SUM(CASE WHEN is_premium AND (premium_expires_at IS NULL OR premium_expires_at >= $1) THEN 1 ELSE 0 END), 0),
	COALESCE(SUM(CASE WHEN logged_in THEN 1 ELSE 0 END), 0),
	COALESCE(SUM(CASE WHEN created_at >= $2 THEN 1 ELSE 0 END), 0)
FROM users`
	var s domain.Stats
	if err := r.db.QueryRowContext(ctx, q, today.String(), dayStart.UTC()).Scan(&s.TotalUsers, &s.ActivePremium, &s.LoggedIn, &s.SignupsToday); err != nil {
		return nil, err
	}
	return &s, nil
}

// SetSession records a bot login or logout.
func (r *UserRepository) SetSession(ctx context.Context, id int64, loggedIn bool, now time.Time) error {
	const q = `UPDATE users SET logged_in = $2, last_login = CASE WHEN $2 THEN $3 ELSE last_login END, updated_at = $3 WHERE telegram_id = $1`
	_, err := r.db.ExecContext(ctx, q, id, loggedIn, now.UTC())
	return err
}

// SetEmail stores the contact details collected at signup.
func (r *UserRepository) SetEmail(ctx context.Context, id int64, name, email string, now time.Time) error {
	const q = `UPDATE users SET name = CASE WHEN $2 <> '' THEN $2 ELSE name END, email = lower(NULLIF($3, '')), updated_at = $4 WHERE telegram_id = $1`
	_, err := r.db.ExecContext(ctx, q, id, name, strings.TrimSpace(email), now.UTC())
	return err
}

// CompareAndSetEntitlement writes premium state only if entitlement_version
// still matches, bumping it on success.
func (r *UserRepository) CompareAndSetEntitlement(ctx context.Context, id, version int64, premium bool, expiresAt *domain.Date, now time.Time) (bool, error) {
	const q = `
UPDATE users
SET is_premium = $3, premium_expires_at = $4, entitlement_version = entitlement_version + 1, updated_at = $5
WHERE telegram_id = $1 AND entitlement_version = $2`
	res, err := r.db.ExecContext(ctx, q, id, version, premium, nullDate(expiresAt), now.UTC())
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// ClearEntitlement revokes premium in one conditional statement.
func (r *UserRepository) ClearEntitlement(ctx context.Context, id int64, now time.Time) (bool, error) {
	const q = `
UPDATE users
SET is_premium = FALSE, premium_expires_at = NULL, entitlement_version = entitlement_version + 1, updated_at = $2
WHERE telegram_id = $1 AND (is_premium OR premium_expires_at IS NOT NULL)`
	res, err := r.db.ExecContext(ctx, q, id, now.UTC())
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// ListLapsed returns premium users whose expiry is strictly before today.
func (r *UserRepository) ListLapsed(ctx context.Context, today domain.Date, limit int) ([]domain.User, error) {
	limit = clampLimit(limit, 500, 5000)
	const q = `SELECT ` + userColumns + ` FROM users
WHERE is_premium AND premium_expires_at IS NOT NULL AND premium_expires_at < $1
ORDER BY telegram_id
LIMIT $2`
	return r.list(ctx, q, today.String(), limit)
}

// ExpireIfLapsed repeats the lapse condition in the UPDATE so a grant issued
// after ListLapsed read its snapshot is never clobbered.
func (r *UserRepository) ExpireIfLapsed(ctx context.Context, id int64, today domain.Date, now time.Time) (bool, error) {
	const q = `
UPDATE users
SET is_premium = FALSE, premium_expires_at = NULL, entitlement_version = entitlement_version + 1, updated_at = $3
WHERE telegram_id = $1 AND is_premium AND premium_expires_at IS NOT NULL AND premium_expires_at < $2`
	res, err := r.db.ExecContext(ctx, q, id, today.String(), now.UTC())
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// ListExpiringOn returns premium users whose grant ends exactly on day.
func (r *UserRepository) ListExpiringOn(ctx context.Context, day domain.Date) ([]domain.User, error) {
	const q = `SELECT ` + userColumns + ` FROM users
WHERE is_premium AND premium_expires_at = $1
ORDER BY telegram_id`
	return r.list(ctx, q, day.String())
}

// ActivePremium lazily yields effectively active premium users, a page at a time.
func (r *UserRepository) ActivePremium(ctx context.Context, today domain.Date) iter.Seq2[domain.User, error] {
	const q = `SELECT ` + userColumns + ` FROM users
WHERE is_premium AND (premium_expires_at IS NULL OR premium_expires_at >= $1) AND telegram_id > $2
ORDER BY telegram_id
LIMIT $3`
	return func(yield func(domain.User, error) bool) {
		var after int64
		for {
			page, err := r.list(ctx, q, today.String(), after, defaultPageSize)
			if err != nil {
				yield(domain.User{}, err)
				return
			}
			for _, u := range page {
				if !yield(u, nil) {
					return
				}
			}
			if len(page) < defaultPageSize {
				return
			}
			after = page[len(page)-1].TelegramID
		}
	}
}

func (r *UserRepository) list(ctx context.Context, q string, args ...any) ([]domain.User, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}
