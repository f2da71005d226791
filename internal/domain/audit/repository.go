package audit

import "context"

// Repository appends and reads audit records. There is no update or delete.
type Repository interface {
	Insert(ctx context.Context, a *Action) error
	Recent(ctx context.Context, target string, limit int) ([]Action, error)
}
