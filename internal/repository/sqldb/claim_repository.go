package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	domain "github.com/open-builders/premium-backend/internal/domain/verification"
)

// ClaimRepository persists verification claims.
type ClaimRepository struct {
	db *sql.DB
}

func NewClaimRepository(db *sql.DB) *ClaimRepository { return &ClaimRepository{db: db} }

var _ domain.Repository = (*ClaimRepository)(nil)

const claimColumns = `id, telegram_id, kind, payload, status, submitted_at, decided_at, COALESCE(decided_by, '')`

func scanClaim(row rowScanner) (*domain.Claim, error) {
	var (
		c                      domain.Claim
		submittedAt, decidedAt dbTime
	)
	if err := row.Scan(&c.ID, &c.TelegramID, &c.Kind, &c.Payload, &c.Status, &submittedAt, &decidedAt, &c.DecidedBy); err != nil {
		return nil, err
	}
	c.SubmittedAt = submittedAt.Time
	c.DecidedAt = decidedAt.Ptr()
	return &c, nil
}

// Create inserts a pending claim and fills in its ID.
func (r *ClaimRepository) Create(ctx context.Context, c *domain.Claim) error {
	const q = `
INSERT INTO verification_claims (telegram_id, kind, payload, status, submitted_at)
VALUES ($1, $2, $3, $4, $5)
RETURNING id`
	if c.Status == "" {
		c.Status = domain.StatusPending
	}
	c.SubmittedAt = c.SubmittedAt.UTC()
	return r.db.QueryRowContext(ctx, q, c.TelegramID, string(c.Kind), c.Payload, string(c.Status), c.SubmittedAt).Scan(&c.ID)
}

func (r *ClaimRepository) GetByID(ctx context.Context, id int64) (*domain.Claim, error) {
	c, err := scanClaim(r.db.QueryRowContext(ctx, `SELECT `+claimColumns+` FROM verification_claims WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return c, nil
}

// Decide transitions a pending claim. The status guard in the WHERE clause
// makes the decision happen exactly once under concurrency.
func (r *ClaimRepository) Decide(ctx context.Context, id int64, status domain.Status, actor string, now time.Time) (*domain.Claim, error) {
	const q = `
UPDATE verification_claims
SET status = $2, decided_at = $3, decided_by = $4
WHERE id = $1 AND status = 'pending'
RETURNING ` + claimColumns
	c, err := scanClaim(r.db.QueryRowContext(ctx, q, id, string(status), now.UTC(), actor))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return c, nil
}

// ListPage returns claims with id > afterID, oldest first.
func (r *ClaimRepository) ListPage(ctx context.Context, f domain.Filter, afterID int64, limit int) ([]domain.Claim, error) {
	limit = clampLimit(limit, defaultPageSize, 1000)

	var (
		b    strings.Builder
		args = []any{afterID}
	)
	b.WriteString(`SELECT ` + claimColumns + ` FROM verification_claims WHERE id > $1`)
	if f.Status != "" {
		args = append(args, string(f.Status))
		b.WriteString(` AND status = $` + itoa(len(args)))
	}
	if f.Kind != "" {
		args = append(args, string(f.Kind))
		b.WriteString(` AND kind = $` + itoa(len(args)))
	}
	if f.UserID != 0 {
		args = append(args, f.UserID)
		b.WriteString(` AND telegram_id = $` + itoa(len(args)))
	}
	args = append(args, limit)
	b.WriteString(` ORDER BY id LIMIT $` + itoa(len(args)))

	rows, err := r.db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var claims []domain.Claim
	for rows.Next() {
		c, err := scanClaim(rows)
		if err != nil {
			return nil, err
		}
		claims = append(claims, *c)
	}
	return claims, rows.Err()
}
