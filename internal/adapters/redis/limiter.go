package redis

import (
	"context"
	"fmt"
	"time"

	"chirp/internal/ports/ratelimit"

	"github.com/go-redis/redis/v8"
)

// FixedWindowLimiter counts actions per key in fixed windows shared by every
// app instance.
type FixedWindowLimiter struct {
	Client *redis.Client
	Quota  int
	Window time.Duration
	Prefix string

	now func() time.Time
}

func NewFixedWindowLimiter(client *redis.Client, quota int, window time.Duration) *FixedWindowLimiter {
	if quota < 1 {
		quota = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &FixedWindowLimiter{
		Client: client,
		Quota:  quota,
		Window: window,
		Prefix: "ratelimit:",
		now:    time.Now,
	}
}

func (l *FixedWindowLimiter) Allow(ctx context.Context, key string) (ratelimit.Decision, error) {
	now := l.now()
	windowStart := now.Truncate(l.Window)
	redisKey := fmt.Sprintf("%s%s:%d", l.Prefix, key, windowStart.UnixMilli())

	var incr *redis.IntCmd
	_, err := l.Client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, redisKey)
		pipe.PExpire(ctx, redisKey, l.Window)
		return nil
	})
	if err != nil {
		return ratelimit.Decision{}, fmt.Errorf("rate limit %s: %w", key, err)
	}

	count := int(incr.Val())
	if count > l.Quota {
		return ratelimit.Decision{
			Allowed:    false,
			RetryAfter: windowStart.Add(l.Window).Sub(now),
		}, nil
	}
	return ratelimit.Decision{Allowed: true, Remaining: l.Quota - count}, nil
}
