package verification

import (
	"context"
	"time"
)

// Repository defines persistence operations for claims.
type Repository interface {
	Create(ctx context.Context, c *Claim) error
	GetByID(ctx context.Context, id int64) (*Claim, error)
	// Decide moves a pending claim to status; returns nil when the claim is not pending.
	Decide(ctx context.Context, id int64, status Status, actor string, now time.Time) (*Claim, error)
	// ListPage returns up to limit claims with id > afterID in id order.
	ListPage(ctx context.Context, f Filter, afterID int64, limit int) ([]Claim, error)
}
