package redis

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	rplatform "github.com/open-builders/premium-backend/internal/platform/redis"
)

// IdentCache maps usernames and emails to Telegram ids. Only the identity
// mapping is cached; entitlement state is always read from the store.
type IdentCache struct {
	client *rplatform.Client
	ttl    time.Duration
}

func NewIdentCache(client *rplatform.Client, ttl time.Duration) *IdentCache {
	return &IdentCache{client: client, ttl: ttl}
}

func (c *IdentCache) keyByUsername(username string) string {
	return fmt.Sprintf("ident:username:%s", strings.ToLower(strings.TrimPrefix(username, "@")))
}

func (c *IdentCache) keyByEmail(email string) string {
	return fmt.Sprintf("ident:email:%s", strings.ToLower(email))
}

// SetUsername remembers which Telegram id owns username.
func (c *IdentCache) SetUsername(ctx context.Context, username string, id int64) error {
	if username == "" {
		return nil
	}
	return c.client.Set(ctx, c.keyByUsername(username), id, c.ttl).Err()
}

func (c *IdentCache) SetEmail(ctx context.Context, email string, id int64) error {
	if email == "" {
		return nil
	}
	return c.client.Set(ctx, c.keyByEmail(email), id, c.ttl).Err()
}

// LookupUsername returns the cached id; ok is false on a miss.
func (c *IdentCache) LookupUsername(ctx context.Context, username string) (int64, bool, error) {
	return c.lookup(ctx, c.keyByUsername(username))
}

func (c *IdentCache) LookupEmail(ctx context.Context, email string) (int64, bool, error) {
	return c.lookup(ctx, c.keyByEmail(email))
}

// Invalidate drops the mappings for a handle and email.
func (c *IdentCache) Invalidate(ctx context.Context, username, email string) error {
	var keys []string
	if username != "" {
		keys = append(keys, c.keyByUsername(username))
	}
	if email != "" {
		keys = append(keys, c.keyByEmail(email))
	}
	if len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}

func (c *IdentCache) lookup(ctx context.Context, key string) (int64, bool, error) {
	v, err := c.client.Get(ctx, key).Result()
	if rplatform.IsNil(err) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("corrupt ident cache entry %s: %w", key, err)
	}
	return id, true, nil
}
