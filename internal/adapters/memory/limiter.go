package memory

import (
	"context"
	"sync"
	"time"

	"chirp/internal/ports/ratelimit"
)

const limiterIdleTTL = 5 * time.Minute

// window is one key's counter for the window starting at start.
type window struct {
	start   time.Time
	count   int
	expires time.Time
}

// Limiter counts actions per key in fixed windows aligned the same way as
// redis.FixedWindowLimiter, for single instance deployments.
type Limiter struct {
	quota  int
	window time.Duration
	now    func() time.Time

	mu      sync.Mutex
	windows map[string]*window
}

func NewLimiter(quota int, windowLen time.Duration) *Limiter {
	if quota < 1 {
		quota = 1
	}
	if windowLen <= 0 {
		windowLen = time.Minute
	}
	return &Limiter{
		quota:   quota,
		window:  windowLen,
		now:     time.Now,
		windows: make(map[string]*window),
	}
}

func (l *Limiter) Allow(ctx context.Context, key string) (ratelimit.Decision, error) {
	now := l.now()
	start := now.Truncate(l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	l.sweepLocked(now)
	w, ok := l.windows[key]
	if !ok || !w.start.Equal(start) {
		w = &window{start: start}
		l.windows[key] = w
	}
	w.expires = now.Add(max(limiterIdleTTL, l.window))

	if w.count >= l.quota {
		return ratelimit.Decision{Allowed: false, RetryAfter: start.Add(l.window).Sub(now)}, nil
	}
	w.count++
	return ratelimit.Decision{Allowed: true, Remaining: l.quota - w.count}, nil
}

func (l *Limiter) sweepLocked(now time.Time) {
	for key, w := range l.windows {
		if now.After(w.expires) {
			delete(l.windows, key)
		}
	}
}
