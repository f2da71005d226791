package workers

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/open-builders/premium-backend/internal/common/logger"
	"github.com/open-builders/premium-backend/internal/service/telegram"
)

// UpdateSource is the long-polling side of the Bot API.
type UpdateSource interface {
	DeleteWebhook(ctx context.Context) error
	GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]telegram.Update, error)
}

type UpdateHandler interface {
	HandleUpdate(ctx context.Context, u telegram.Update) error
}

// BotPoller feeds long-polled updates to the bot when no webhook is used.
type BotPoller struct {
	source  UpdateSource
	handler UpdateHandler
	timeout time.Duration
	logger  zerolog.Logger
}

func NewBotPoller(source UpdateSource, handler UpdateHandler, timeout time.Duration) *BotPoller {
	return &BotPoller{
		source:  source,
		handler: handler,
		timeout: timeout,
		logger:  logger.Component("bot_poller"),
	}
}

func (p *BotPoller) Start(ctx context.Context) error {
	if err := p.source.DeleteWebhook(ctx); err != nil {
		p.logger.Warn().Err(err).Msg("Failed to delete webhook before polling")
	}
	p.logger.Info().Dur("timeout", p.timeout).Msg("Starting bot long polling")

	var offset int64
	backoff := time.Second
	for ctx.Err() == nil {
		updates, err := p.source.GetUpdates(ctx, offset, p.timeout)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			p.logger.Error().Err(err).Dur("retry_in", backoff).Msg("getUpdates failed")
			sleep(ctx, backoff)
			backoff = min(backoff*2, 30*time.Second)
			continue
		}
		backoff = time.Second

		for _, u := range updates {
			if u.UpdateID >= offset {
				offset = u.UpdateID + 1
			}
			if err := p.handler.HandleUpdate(ctx, u); err != nil {
				p.logger.Warn().Err(err).Int64("update_id", u.UpdateID).Msg("Update handling failed")
			}
		}
	}
	p.logger.Info().Msg("Bot polling stopped")
	return nil
}
