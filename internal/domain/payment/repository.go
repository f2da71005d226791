package payment

import "context"

type Repository interface {
	// Record stores the observation; created is false when the tx hash was seen
	// before, in which case o carries the stored id and status.
	Record(ctx context.Context, o *Observation) (created bool, err error)
	SetStatus(ctx context.Context, txHash string, status Status, telegramID int64) error
}
