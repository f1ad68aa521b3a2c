package redis

import (
	"context"
	"fmt"
	"time"
)

// RateLimiter throttles redemption attempts per client. A stolen or guessed
// link is only as good as the number of tries an attacker gets.
type RateLimiter struct {
	client RedisClient
}

func NewRateLimiter(client RedisClient) *RateLimiter {
	return &RateLimiter{client: client}
}

func (r *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	count, err := r.client.Incr(ctx, key)
	if err != nil {
		return false, err
	}

	if count == 1 {
		if err := r.client.Expire(ctx, key, window); err != nil {
			return false, err
		}
	}

	return count <= int64(limit), nil
}

func RedeemAttemptKey(clientIP string) string {
	return fmt.Sprintf("rate_limit:redeem:%s", clientIP)
}
