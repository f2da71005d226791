package audit

import "time"

// Kind names an audited administrative action.
type Kind string

const (
	KindGrant        Kind = "grant"
	KindRevoke       Kind = "revoke"
	KindExpire       Kind = "expire"
	KindClaimApprove Kind = "claim_approve"
	KindClaimReject  Kind = "claim_reject"
	KindQueueMatch   Kind = "queue_match"
	KindSendMessage  Kind = "send_message"
	KindBroadcast    Kind = "broadcast"
)

// SystemActor is the admin id used for scheduled and automated actions.
const SystemActor = "system"

// Action is an append-only audit record.
type Action struct {
	ID        int64     `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	AdminID   string    `json:"admin_id"`
	Kind      Kind      `json:"action"`
	Target    string    `json:"target"`
	Detail    string    `json:"detail,omitempty"`
}
