package sqldb

import (
	"context"
	"database/sql"
	"time"

	domain "github.com/open-builders/premium-backend/internal/domain/audit"
)

// AdminActionRepository appends to and reads the admin action log.
type AdminActionRepository struct {
	db *sql.DB
}

func NewAdminActionRepository(db *sql.DB) *AdminActionRepository {
	return &AdminActionRepository{db: db}
}

var _ domain.Repository = (*AdminActionRepository)(nil)

func (r *AdminActionRepository) Insert(ctx context.Context, a *domain.Action) error {
	const q = `
INSERT INTO admin_actions (created_at, admin_id, action, target, detail)
VALUES ($1, $2, $3, $4, $5)
RETURNING id`
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	a.CreatedAt = a.CreatedAt.UTC()
	return r.db.QueryRowContext(ctx, q, a.CreatedAt, a.AdminID, string(a.Kind), a.Target, a.Detail).Scan(&a.ID)
}

// Recent returns the newest actions first, optionally for a single target.
func (r *AdminActionRepository) Recent(ctx context.Context, target string, limit int) ([]domain.Action, error) {
	limit = clampLimit(limit, 50, 500)
	const q = `
SELECT id, created_at, admin_id, action, target, detail
FROM admin_actions
WHERE ($1 = '' OR target = $1)
ORDER BY id DESC
LIMIT $2`
	rows, err := r.db.QueryContext(ctx, q, target, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var actions []domain.Action
	for rows.Next() {
		var (
			a         domain.Action
			createdAt dbTime
		)
		if err := rows.Scan(&a.ID, &createdAt, &a.AdminID, &a.Kind, &a.Target, &a.Detail); err != nil {
			return nil, err
		}
		a.CreatedAt = createdAt.Time
		actions = append(actions, a)
	}
	return actions, rows.Err()
}
