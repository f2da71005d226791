package notifications

import (
	"context"
	"fmt"
	"iter"

	"golang.org/x/time/rate"

	"github.com/open-builders/premium-backend/internal/domain/user"
)

// BroadcastResult counts a broadcast run.
type BroadcastResult struct {
	Sent   int `json:"sent"`
	Failed int `json:"failed"`
	Total  int `json:"total"`
}

// Broadcast sends text to every recipient, paced by limiter. Per-recipient
// delivery failures are counted, not returned; a recipient stream error or
// cancellation stops the run and is returned with the partial result.
func (s *Service) Broadcast(ctx context.Context, recipients iter.Seq2[user.User, error], text string, limiter *rate.Limiter) (BroadcastResult, error) {
	var res BroadcastResult
	if s == nil || s.tg == nil {
		return res, fmt.Errorf("notifications disabled")
	}
	for u, err := range recipients {
		if err != nil {
			return res, err
		}
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return res, err
			}
		}
		res.Total++
		err := s.tg.SendMessage(ctx, u.TelegramID, text, "")
		s.observe("broadcast", err)
		if err != nil {
			res.Failed++
			continue
		}
		res.Sent++
	}
	return res, nil
}
