package redis

import (
	"context"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

// IssuanceCounter keeps a rolling per-day count of issued coupons for the ops
// stats endpoint. Best effort: losing the counter never affects correctness.
type IssuanceCounter struct {
	client RedisClient
}

func NewIssuanceCounter(client RedisClient) *IssuanceCounter {
	return &IssuanceCounter{client: client}
}

func (c *IssuanceCounter) Inc(ctx context.Context, now time.Time) error {
	key := issuedKey(now)
	if _, err := c.client.Incr(ctx, key); err != nil {
		return err
	}
	// keep a few days of history around
	return c.client.Expire(ctx, key, 7*24*time.Hour)
}

func (c *IssuanceCounter) Today(ctx context.Context, now time.Time) (int64, error) {
	v, err := c.client.Get(ctx, issuedKey(now))
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(v, 10, 64)
}

func issuedKey(t time.Time) string {
	return "coupons_issued:" + t.UTC().Format("2006-01-02")
}
