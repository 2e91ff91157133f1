package ratelimit

import (
	"context"
	"time"
)

type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// Limiter enforces a fixed quota of actions per key and window.
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}
