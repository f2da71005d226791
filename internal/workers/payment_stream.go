package workers

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	go_redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	apperrors "github.com/open-builders/premium-backend/internal/common/errors"
	"github.com/open-builders/premium-backend/internal/common/logger"
	"github.com/open-builders/premium-backend/internal/domain/payment"
	"github.com/open-builders/premium-backend/internal/domain/queue"
	"github.com/open-builders/premium-backend/internal/domain/user"
	"github.com/open-builders/premium-backend/internal/metrics"
	"github.com/open-builders/premium-backend/internal/platform/redis"
)

// MatcherActor is the admin id recorded for automatic matches.
const MatcherActor = "auto-matcher"

const maxMatchAttempts = 3

// Queue is the part of the premium queue the matcher drives.
type Queue interface {
	Oldest(ctx context.Context) (*queue.Entry, error)
	MatchAndDequeue(ctx context.Context, actor string, userID int64, reference string) (*queue.Entry, error)
}

// Granter grants premium after a match.
type Granter interface {
	Grant(ctx context.Context, actor string, userID int64, days int) (*user.Status, error)
}

type PaymentStreamConfig struct {
	Stream       string
	Group        string
	GrantDays    int
	MinAmount    float64
	StoreTimeout time.Duration
	BlockTimeout time.Duration
	// RetryInterval is how long a failed message stays pending before the
	// backlog is read again.
	RetryInterval time.Duration
}

// PaymentStreamWorker consumes payment observations published by an external
// chain watcher and matches each one to the head of the premium queue.
type PaymentStreamWorker struct {
	rdb      *redis.Client
	payments payment.Repository
	queue    Queue
	granter  Granter
	cfg      PaymentStreamConfig
	consumer string
	now      func() time.Time
	logger   zerolog.Logger
}

func NewPaymentStreamWorker(rdb *redis.Client, payments payment.Repository, q Queue, granter Granter, cfg PaymentStreamConfig) *PaymentStreamWorker {
	if cfg.BlockTimeout <= 0 {
		cfg.BlockTimeout = 5 * time.Second
	}
	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = 5 * time.Second
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = 30 * time.Second
	}
	return &PaymentStreamWorker{
		rdb:      rdb,
		payments: payments,
		queue:    q,
		granter:  granter,
		cfg:      cfg,
		consumer: "matcher-" + uuid.NewString()[:8],
		now:      time.Now,
		logger:   logger.Component("payment_stream"),
	}
}

// Start listens to the stream until ctx is cancelled. Messages that failed
// on a transient error stay pending and are retried from the backlog.
func (w *PaymentStreamWorker) Start(ctx context.Context) error {
	err := w.rdb.XGroupCreateMkStream(ctx, w.cfg.Stream, w.cfg.Group, "$").Err()
	if err != nil && !redis.IsBusyGroup(err) {
		return fmt.Errorf("create consumer group: %w", err)
	}

	w.logger.Info().Str("stream", w.cfg.Stream).Str("consumer", w.consumer).Msg("Starting payment stream worker")

	// cursor is a stream id while draining this consumer's pending backlog
	// and ">" once the backlog is empty.
	cursor := "0"
	var rescanAt time.Time
	for {
		select {
		case <-ctx.Done():
			w.logger.Info().Msg("Stopping payment stream worker")
			return nil
		default:
		}

		if cursor == ">" && !rescanAt.IsZero() && !time.Now().Before(rescanAt) {
			cursor = "0"
			rescanAt = time.Time{}
		}

		entries, err := w.rdb.XReadGroup(ctx, &go_redis.XReadGroupArgs{
			Group:    w.cfg.Group,
			Consumer: w.consumer,
			Streams:  []string{w.cfg.Stream, cursor},
			Count:    10,
			Block:    w.cfg.BlockTimeout,
		}).Result()
		if err != nil {
			if redis.IsNil(err) || ctx.Err() != nil {
				cursor = ">"
				continue
			}
			w.logger.Error().Err(err).Msg("Error reading from payment stream")
			sleep(ctx, time.Second)
			continue
		}

		read, last := 0, ""
		for _, stream := range entries {
			for _, msg := range stream.Messages {
				read++
				last = msg.ID
				if err := w.processMessage(ctx, msg.Values); err != nil {
					w.logger.Error().Err(err).Str("msg_id", msg.ID).Msg("Payment observation left pending")
					if rescanAt.IsZero() {
						rescanAt = time.Now().Add(w.cfg.RetryInterval)
					}
					continue
				}
				if err := w.rdb.XAck(ctx, w.cfg.Stream, w.cfg.Group, msg.ID).Err(); err != nil {
					w.logger.Warn().Err(err).Str("msg_id", msg.ID).Msg("Failed to ack payment observation")
				}
			}
		}
		if cursor != ">" {
			if read == 0 {
				cursor = ">"
			} else {
				cursor = last
			}
		}
	}
}

// processMessage returns an error only for failures worth retrying.
func (w *PaymentStreamWorker) processMessage(ctx context.Context, values map[string]interface{}) error {
	obs, err := parseObservation(values)
	if err != nil {
		metrics.PaymentsObserved.WithLabelValues("malformed").Inc()
		w.logger.Warn().Err(err).Interface("values", values).Msg("Dropping malformed payment observation")
		return nil
	}
	obs.ObservedAt = w.now().UTC()
	obs.Status = payment.StatusUnmatched

	sctx, cancel := context.WithTimeout(ctx, w.cfg.StoreTimeout)
	created, err := w.payments.Record(sctx, obs)
	cancel()
	if err != nil {
		return apperrors.NewStoreError("payments.record", err)
	}
	if !created && obs.Status != payment.StatusUnmatched {
		metrics.PaymentsObserved.WithLabelValues("duplicate").Inc()
		return nil
	}
	if !created {
		w.logger.Info().Str("tx_hash", obs.TxHash).Msg("Retrying unmatched payment observation")
	}

	if obs.Amount < w.cfg.MinAmount {
		metrics.PaymentsObserved.WithLabelValues("ignored").Inc()
		w.logger.Info().Str("tx_hash", obs.TxHash).Float64("amount", obs.Amount).Msg("Payment below minimum, ignored")
		w.setStatus(ctx, obs.TxHash, payment.StatusIgnored, 0)
		return nil
	}

	for attempt := 1; attempt <= maxMatchAttempts; attempt++ {
		head, err := w.queue.Oldest(ctx)
		if err != nil {
			return err
		}
		if head == nil {
			metrics.PaymentsObserved.WithLabelValues("unmatched").Inc()
			w.logger.Info().Str("tx_hash", obs.TxHash).Msg("Payment observed with empty queue")
			return nil
		}

		if _, err := w.queue.MatchAndDequeue(ctx, MatcherActor, head.TelegramID, obs.TxHash); err != nil {
			if errors.Is(err, apperrors.ErrNotQueued) {
				// Someone else matched the head first; take the next one.
				continue
			}
			return err
		}

		if _, err := w.granter.Grant(ctx, MatcherActor, head.TelegramID, w.cfg.GrantDays); err != nil {
			// The entry is already matched; an admin finishes the grant by hand.
			w.logger.Error().Err(err).Int64("telegram_id", head.TelegramID).Str("tx_hash", obs.TxHash).Msg("Auto-match grant failed")
		}
		metrics.PaymentsObserved.WithLabelValues("matched").Inc()
		w.logger.Info().Int64("telegram_id", head.TelegramID).Str("tx_hash", obs.TxHash).Msg("Payment matched to queue head")
		w.setStatus(ctx, obs.TxHash, payment.StatusMatched, head.TelegramID)
		return nil
	}

	metrics.PaymentsObserved.WithLabelValues("unmatched").Inc()
	return nil
}

func (w *PaymentStreamWorker) setStatus(ctx context.Context, txHash string, status payment.Status, telegramID int64) {
	sctx, cancel := context.WithTimeout(ctx, w.cfg.StoreTimeout)
	defer cancel()
	if err := w.payments.SetStatus(sctx, txHash, status, telegramID); err != nil {
		w.logger.Warn().Err(err).Str("tx_hash", txHash).Str("status", string(status)).Msg("Failed to update payment observation")
	}
}

func parseObservation(values map[string]interface{}) (*payment.Observation, error) {
	str := func(k string) string {
		v, _ := values[k].(string)
		return strings.TrimSpace(v)
	}
	o := &payment.Observation{
		Network:     strings.ToLower(str("network")),
		TxHash:      str("tx_hash"),
		FromAddress: str("from"),
		ToAddress:   str("to"),
	}
	if o.TxHash == "" {
		return nil, errors.New("missing tx_hash")
	}
	if o.Network == "" {
		return nil, errors.New("missing network")
	}
	amount, err := strconv.ParseFloat(str("amount"), 64)
	if err != nil || amount < 0 {
		return nil, fmt.Errorf("invalid amount %q", str("amount"))
	}
	o.Amount = amount
	return o, nil
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
