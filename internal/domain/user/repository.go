package user

import (
	"context"
	"iter"
	"time"
)

// Repository defines persistence operations for the User aggregate.
type Repository interface {
	Upsert(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id int64) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	Search(ctx context.Context, q string, limit int) ([]User, error)
	Stats(ctx context.Context, today Date, dayStart time.Time) (*Stats, error)
	SetSession(ctx context.Context, id int64, loggedIn bool, now time.Time) error
	SetEmail(ctx context.Context, id int64, name, email string, now time.Time) error

	EntitlementStore
}

// EntitlementStore is the slice of the user store the entitlement manager mutates.
// Every write is conditional so concurrent writers never lose updates.
type EntitlementStore interface {
	GetByID(ctx context.Context, id int64) (*User, error)
	// CompareAndSetEntitlement writes the entitlement when the stored version still equals version.
	CompareAndSetEntitlement(ctx context.Context, id, version int64, premium bool, expiresAt *Date, now time.Time) (bool, error)
	// ClearEntitlement revokes premium when anything is set; false means it was already clear.
	ClearEntitlement(ctx context.Context, id int64, now time.Time) (bool, error)
	// ListLapsed returns premium users whose expiry is strictly before today.
	ListLapsed(ctx context.Context, today Date, limit int) ([]User, error)
	// ExpireIfLapsed clears premium only when the row is still premium and lapsed.
	ExpireIfLapsed(ctx context.Context, id int64, today Date, now time.Time) (bool, error)
	ListExpiringOn(ctx context.Context, day Date) ([]User, error)
	ActivePremium(ctx context.Context, today Date) iter.Seq2[User, error]
}
