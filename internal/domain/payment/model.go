package payment

import "time"

type Status string

const (
	StatusUnmatched Status = "unmatched"
	StatusMatched   Status = "matched"
	StatusIgnored   Status = "ignored"
)

// Observation is an externally detected transfer to one of our addresses.
type Observation struct {
	ID                int64     `json:"id"`
	Network           string    `json:"network"`
	TxHash            string    `json:"tx_hash"`
	FromAddress       string    `json:"from_address"`
	ToAddress         string    `json:"to_address"`
	Amount            float64   `json:"amount"`
	Status            Status    `json:"status"`
	MatchedTelegramID int64     `json:"matched_telegram_id,omitempty"`
	ObservedAt        time.Time `json:"observed_at"`
}
