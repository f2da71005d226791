package queue

import (
	"context"
	"time"
)

// Repository defines persistence operations for the premium queue.
type Repository interface {
	// Insert adds an outstanding entry; created is false when one already exists.
	Insert(ctx context.Context, userID int64, now time.Time) (entry *Entry, created bool, err error)
	GetOutstanding(ctx context.Context, userID int64) (*Entry, error)
	// Match records the reference on the user's outstanding entry; nil when none.
	Match(ctx context.Context, userID int64, reference string, now time.Time) (*Entry, error)
	ListOutstandingPage(ctx context.Context, afterID int64, limit int) ([]Entry, error)
	Oldest(ctx context.Context) (*Entry, error)
}
