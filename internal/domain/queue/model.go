package queue

import "time"

// Entry marks a user's intent to pay. An entry is outstanding until
// MatchedReference is set; at most one outstanding entry exists per user.
type Entry struct {
	ID               int64      `json:"id"`
	TelegramID       int64      `json:"telegram_id"`
	EnqueuedAt       time.Time  `json:"enqueued_at"`
	MatchedReference string     `json:"matched_reference,omitempty"`
	MatchedAt        *time.Time `json:"matched_at,omitempty"`
}

func (e *Entry) Outstanding() bool { return e.MatchedReference == "" }
