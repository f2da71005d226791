package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	domain "github.com/open-builders/premium-backend/internal/domain/payment"
)

// PaymentRepository records externally observed payments, keyed by tx hash.
type PaymentRepository struct {
	db *sql.DB
}

func NewPaymentRepository(db *sql.DB) *PaymentRepository { return &PaymentRepository{db: db} }

var _ domain.Repository = (*PaymentRepository)(nil)

func (r *PaymentRepository) Record(ctx context.Context, o *domain.Observation) (bool, error) {
	const q = `
INSERT INTO payment_observations (network, tx_hash, from_address, to_address, amount, status, observed_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (tx_hash) DO NOTHING
RETURNING id`
	if o.Status == "" {
		o.Status = domain.StatusUnmatched
	}
	o.TxHash = strings.TrimSpace(o.TxHash)
	err := r.db.QueryRowContext(ctx, q, o.Network, o.TxHash, o.FromAddress, o.ToAddress, o.Amount, string(o.Status), o.ObservedAt.UTC()).Scan(&o.ID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, r.loadExisting(ctx, o)
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *PaymentRepository) loadExisting(ctx context.Context, o *domain.Observation) error {
	const q = `SELECT id, status FROM payment_observations WHERE tx_hash = $1`
	var status string
	if err := r.db.QueryRowContext(ctx, q, o.TxHash).Scan(&o.ID, &status); err != nil {
		return err
	}
	o.Status = domain.Status(status)
	return nil
}

func (r *PaymentRepository) SetStatus(ctx context.Context, txHash string, status domain.Status, telegramID int64) error {
	const q = `UPDATE payment_observations SET status = $2, matched_telegram_id = $3 WHERE tx_hash = $1`
	var matched any
	if telegramID != 0 {
		matched = telegramID
	}
	_, err := r.db.ExecContext(ctx, q, txHash, string(status), matched)
	return err
}
