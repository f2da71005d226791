package http

import (
	"github.com/open-builders/premium-backend/internal/domain/audit"
	"github.com/open-builders/premium-backend/internal/domain/queue"
	"github.com/open-builders/premium-backend/internal/domain/user"
	"github.com/open-builders/premium-backend/internal/domain/verification"
	"github.com/open-builders/premium-backend/internal/service/notifications"
)

// GrantRequest grants premium. Days defaults to the configured grant length.
type GrantRequest struct {
	Ident string `json:"ident" binding:"required" example:"@alice"`
	Days  *int   `json:"days,omitempty" example:"30"`
}

type RevokeRequest struct {
	Ident string `json:"ident" binding:"required" example:"123456789"`
}

type GrantResponse struct {
	OK     bool         `json:"ok"`
	Status *user.Status `json:"status"`
}

type RevokeResponse struct {
	OK      bool `json:"ok"`
	Changed bool `json:"changed"`
}

type UsersResponse struct {
	Users []user.User `json:"users"`
}

// DecisionRequest decides a claim. On approval, Days (or the default) is granted.
type DecisionRequest struct {
	Approve *bool `json:"approve" binding:"required"`
	Days    *int  `json:"days,omitempty"`
}

type DecisionResponse struct {
	OK     bool                `json:"ok"`
	Claim  *verification.Claim `json:"claim"`
	Status *user.Status        `json:"status,omitempty"`
}

type ClaimsResponse struct {
	Claims []verification.Claim `json:"claims"`
}

type QueueResponse struct {
	Entries []queue.Entry `json:"entries"`
}

// MatchRequest closes a queue entry with a payment reference and grants Days.
type MatchRequest struct {
	Ident     string `json:"ident" binding:"required"`
	Reference string `json:"reference" binding:"required,max=256"`
	Days      *int   `json:"days,omitempty"`
}

type MatchResponse struct {
	OK     bool         `json:"ok"`
	Entry  *queue.Entry `json:"entry"`
	Status *user.Status `json:"status"`
}

type MessageRequest struct {
	Ident string `json:"ident" binding:"required"`
	Text  string `json:"text" binding:"required"`
}

type BroadcastRequest struct {
	Text string `json:"text" binding:"required"`
}

type BroadcastResponse struct {
	OK bool `json:"ok"`
	notifications.BroadcastResult
}

type LogsResponse struct {
	Actions []audit.Action `json:"actions"`
}

type CronResponse struct {
	OK           bool `json:"ok"`
	ExpiredCount int  `json:"expired_count"`
	Notices      int  `json:"notices"`
}

type ClaimRequest struct {
	Kind    string `json:"kind" binding:"required" example:"usdt"`
	Payload string `json:"payload" binding:"required" example:"0xabc"`
}

type EnqueueResponse struct {
	Entry   *queue.Entry `json:"entry"`
	Created bool         `json:"created"`
}

type OKResponse struct {
	OK bool `json:"ok"`
}
