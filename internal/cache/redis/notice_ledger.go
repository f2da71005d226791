package redis

import (
	"context"
	"time"

	rplatform "github.com/open-builders/premium-backend/internal/platform/redis"
)

// NoticeLedger records one-off notices so replicas and repeated cron runs
// send each of them once.
type NoticeLedger struct {
	client *rplatform.Client
	prefix string
}

func NewNoticeLedger(client *rplatform.Client) *NoticeLedger {
	return &NoticeLedger{client: client, prefix: "notice:"}
}

// MarkOnce sets key if absent and reports whether this call set it.
func (l *NoticeLedger) MarkOnce(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return l.client.SetNX(ctx, l.prefix+key, time.Now().UTC().Unix(), ttl).Result()
}
