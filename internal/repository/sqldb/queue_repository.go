package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"time"

	domain "github.com/open-builders/premium-backend/internal/domain/queue"
)

// QueueRepository persists the premium FIFO queue. Uniqueness of the
// outstanding entry per user is enforced by queue_entries_outstanding_uq.
type QueueRepository struct {
	db *sql.DB

	// afterConflict runs between a conflicting insert and the lookup of the
	// outstanding row. Tests use it to interleave a concurrent match.
	afterConflict func()
}

func NewQueueRepository(db *sql.DB) *QueueRepository { return &QueueRepository{db: db} }

var _ domain.Repository = (*QueueRepository)(nil)

const queueColumns = `id, telegram_id, enqueued_at, COALESCE(matched_reference, ''), matched_at`

func scanEntry(row rowScanner) (*domain.Entry, error) {
	var (
		e                     domain.Entry
		enqueuedAt, matchedAt dbTime
	)
	if err := row.Scan(&e.ID, &e.TelegramID, &enqueuedAt, &e.MatchedReference, &matchedAt); err != nil {
		return nil, err
	}
	e.EnqueuedAt = enqueuedAt.Time
	e.MatchedAt = matchedAt.Ptr()
	return &e, nil
}

func (r *QueueRepository) getOne(ctx context.Context, q string, args ...any) (*domain.Entry, error) {
	e, err := scanEntry(r.db.QueryRowContext(ctx, q, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return e, nil
}

// Insert adds an outstanding entry. A conflicting concurrent insert falls
// through to the existing row. When that row is matched before it can be
// read, the insert is tried once more.
func (r *QueueRepository) Insert(ctx context.Context, userID int64, now time.Time) (*domain.Entry, bool, error) {
	const q = `
INSERT INTO queue_entries (telegram_id, enqueued_at)
VALUES ($1, $2)
ON CONFLICT (telegram_id) WHERE matched_reference IS NULL DO NOTHING
RETURNING ` + queueColumns
	for attempt := 0; attempt < 2; attempt++ {
		e, err := r.getOne(ctx, q, userID, now.UTC())
		if err != nil {
			return nil, false, err
		}
		if e != nil {
			return e, true, nil
		}
		if r.afterConflict != nil {
			r.afterConflict()
		}
		existing, err := r.GetOutstanding(ctx, userID)
		if err != nil {
			return nil, false, err
		}
		if existing != nil {
			return existing, false, nil
		}
	}
	return nil, false, errors.New("queue entry conflict without outstanding row")
}

func (r *QueueRepository) GetOutstanding(ctx context.Context, userID int64) (*domain.Entry, error) {
	return r.getOne(ctx, `SELECT `+queueColumns+` FROM queue_entries WHERE telegram_id = $1 AND matched_reference IS NULL`, userID)
}

// Match closes the user's outstanding entry with a payment reference.
func (r *QueueRepository) Match(ctx context.Context, userID int64, reference string, now time.Time) (*domain.Entry, error) {
	const q = `
UPDATE queue_entries
SET matched_reference = $2, matched_at = $3
WHERE telegram_id = $1 AND matched_reference IS NULL
RETURNING ` + queueColumns
	return r.getOne(ctx, q, userID, reference, now.UTC())
}

// ListOutstandingPage returns outstanding entries with id > afterID in enqueue order.
func (r *QueueRepository) ListOutstandingPage(ctx context.Context, afterID int64, limit int) ([]domain.Entry, error) {
	limit = clampLimit(limit, defaultPageSize, 1000)
	const q = `SELECT ` + queueColumns + ` FROM queue_entries
WHERE matched_reference IS NULL AND id > $1
ORDER BY id
LIMIT $2`
	rows, err := r.db.QueryContext(ctx, q, afterID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

// Oldest returns the head of the queue, or nil when it is empty.
func (r *QueueRepository) Oldest(ctx context.Context) (*domain.Entry, error) {
	return r.getOne(ctx, `SELECT `+queueColumns+` FROM queue_entries WHERE matched_reference IS NULL ORDER BY id LIMIT 1`)
}
