package notifications

import (
	"context"
	"fmt"
	"strings"

	"github.com/open-builders/premium-backend/internal/domain/user"
	"github.com/open-builders/premium-backend/internal/metrics"
)

// Sender delivers a chat message. Implemented by the Telegram client.
type Sender interface {
	SendMessage(ctx context.Context, chatID int64, text, parseMode string) error
}

// Service formats and sends user-facing notices. A nil *Service or nil
// Sender turns every notice into a no-op. Delivery errors are returned for
// the caller to log; they are counted here.
type Service struct {
	tg Sender
}

func NewService(tg Sender) *Service {
	return &Service{tg: tg}
}

// NotifyGranted tells the user their premium is active.
func (s *Service) NotifyGranted(ctx context.Context, userID int64, expiresAt *user.Date) error {
	var b strings.Builder
	b.WriteString("✅ <b>Premium activated</b>\n")
	if expiresAt != nil {
		fmt.Fprintf(&b, "Your access is valid until <b>%s</b>.", expiresAt.String())
	} else {
		b.WriteString("Your access does not expire.")
	}
	return s.send(ctx, "granted", userID, b.String())
}

func (s *Service) NotifyRevoked(ctx context.Context, userID int64) error {
	return s.send(ctx, "revoked", userID, "Your premium access has been revoked. Contact support if you think this is a mistake.")
}

func (s *Service) NotifyExpired(ctx context.Context, userID int64) error {
	return s.send(ctx, "expired", userID, "❗ Your premium has expired. Use /premium to renew.")
}

func (s *Service) NotifyReminder(ctx context.Context, userID int64, daysLeft int, expiresAt user.Date) error {
	text := fmt.Sprintf("⏰ Reminder: your premium expires in %d day(s), on <b>%s</b>. Renew with /premium to keep access.", daysLeft, expiresAt.String())
	return s.send(ctx, "reminder", userID, text)
}

// NotifyClaimRejected tells the user a payment proof was not accepted.
func (s *Service) NotifyClaimRejected(ctx context.Context, userID, claimID int64, kind string) error {
	text := fmt.Sprintf("❌ Your %s verification #%d could not be confirmed. Double-check the reference and submit again, or contact support.",
		strings.ToUpper(escapeHTML(kind)), claimID)
	return s.send(ctx, "claim_rejected", userID, text)
}

// SendText delivers an admin-written message verbatim.
func (s *Service) SendText(ctx context.Context, userID int64, text string) error {
	if s == nil || s.tg == nil {
		return fmt.Errorf("notifications disabled")
	}
	err := s.tg.SendMessage(ctx, userID, text, "")
	s.observe("admin_text", err)
	return err
}

func (s *Service) send(ctx context.Context, template string, userID int64, html string) error {
	if s == nil || s.tg == nil {
		return nil
	}
	err := s.tg.SendMessage(ctx, userID, html, "HTML")
	s.observe(template, err)
	return err
}

func (s *Service) observe(template string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	metrics.Notifications.WithLabelValues(template, result).Inc()
}

func escapeHTML(s string) string {
	r := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	return r.Replace(s)
}
