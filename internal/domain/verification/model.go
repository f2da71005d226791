package verification

import "time"

// Kind is the payment rail a claim refers to.
type Kind string

const (
	KindUPI  Kind = "upi"
	KindUSDT Kind = "usdt"
)

func (k Kind) Valid() bool { return k == KindUPI || k == KindUSDT }

// Status of a claim; it moves out of pending exactly once.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

func (s Status) Valid() bool {
	return s == StatusPending || s == StatusApproved || s == StatusRejected
}

// Claim is a user-submitted payment proof awaiting admin triage.
type Claim struct {
	ID          int64      `json:"id"`
	TelegramID  int64      `json:"telegram_id"`
	Kind        Kind       `json:"kind"`
	Payload     string     `json:"payload"`
	Status      Status     `json:"status"`
	SubmittedAt time.Time  `json:"submitted_at"`
	DecidedAt   *time.Time `json:"decided_at,omitempty"`
	DecidedBy   string     `json:"decided_by,omitempty"`
}

// Filter narrows a claim listing; zero values match everything.
type Filter struct {
	Status Status
	Kind   Kind
	UserID int64
}
