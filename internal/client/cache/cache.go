package cache

import (
	"context"
	"fmt"
	"sync"

	"chirp/internal/query"

	"go.uber.org/zap"
)

// Fetcher runs one query against the server. Feeds come back as
// []feed.Item, a single post as feed.Item, a profile as
// profile.AuthorProfile.
type Fetcher interface {
	Fetch(ctx context.Context, key query.Key) (any, error)
}

type fetch struct {
	seq    uint64
	done   chan struct{}
	cancel context.CancelFunc
}

type entry struct {
	state   State // nil until the first fetch or seed
	hasData bool
	stale   bool
	seq     uint64
	flight  *fetch
	subs    map[int]chan State
}

// fresh reports whether the entry can be served without fetching.
func (e *entry) fresh() bool {
	if e.stale || e.state == nil {
		return false
	}
	_, isLoading := e.state.(Loading)
	return !isLoading
}

type Cache struct {
	fetcher Fetcher
	logger  *zap.Logger
	base    context.Context
	stop    context.CancelFunc

	mu      sync.Mutex
	entries map[query.Key]*entry
	nextSub int
}

func New(fetcher Fetcher, logger *zap.Logger) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	base, stop := context.WithCancel(context.Background())
	return &Cache{
		fetcher: fetcher,
		logger:  logger,
		base:    base,
		stop:    stop,
		entries: make(map[query.Key]*entry),
	}
}

// Close cancels every in-flight fetch.
func (c *Cache) Close() { c.stop() }

func (c *Cache) entry(key query.Key) *entry {
	e, ok := c.entries[key]
	if !ok {
		e = &entry{subs: make(map[int]chan State)}
		c.entries[key] = e
	}
	return e
}

// Peek returns the current state without fetching.
func (c *Cache) Peek(key query.Key) State {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok || e.state == nil {
		return Loading{}
	}
	return e.state
}

// Query returns the current state for key and starts a fetch in the
// background when there is nothing usable cached. Failed entries are not
// refetched here; use Load or Invalidate.
func (c *Cache) Query(ctx context.Context, key query.Key) State {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := c.entry(key)
	if !e.fresh() && e.flight == nil {
		c.start(ctx, key, e)
	}
	if e.state == nil {
		return Loading{}
	}
	return e.state
}

// Load fetches key unless fresh data is cached and waits for the result.
func (c *Cache) Load(ctx context.Context, key query.Key) (State, error) {
	c.mu.Lock()
	e := c.entry(key)
	if e.fresh() {
		if _, isFailed := e.state.(Failed); !isFailed {
			s := e.state
			c.mu.Unlock()
			return s, nil
		}
	}
	f := e.flight
	if f == nil {
		f = c.start(ctx, key, e)
	}
	c.mu.Unlock()

	for {
		select {
		case <-f.done:
		case <-ctx.Done():
			return c.Peek(key), ctx.Err()
		}
		c.mu.Lock()
		next := e.flight
		s := e.state
		c.mu.Unlock()
		// superseded by Invalidate or Seed while waiting
		if next != nil && next != f {
			f = next
			continue
		}
		if s == nil {
			s = Loading{}
		}
		return s, nil
	}
}

// start supersedes any in-flight fetch for e. Caller holds c.mu.
func (c *Cache) start(ctx context.Context, key query.Key, e *entry) *fetch {
	if e.flight != nil {
		e.flight.cancel()
	}
	e.seq++
	fctx, cancel := context.WithCancel(ctx)
	f := &fetch{seq: e.seq, done: make(chan struct{}), cancel: cancel}
	e.flight = f
	if !e.hasData {
		c.set(e, Loading{})
	}

	go func() {
		defer close(f.done)
		defer cancel()
		data, err := c.fetcher.Fetch(fctx, key)
		c.apply(fctx, key, f, data, err)
	}()
	return f
}

func (c *Cache) apply(ctx context.Context, key query.Key, f *fetch, data any, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := c.entries[key]
	if e == nil || e.seq != f.seq {
		c.logger.Debug("discarding stale response", zap.String("key", key.String()), zap.Uint64("seq", f.seq))
		return
	}
	e.flight = nil
	if ctx.Err() != nil {
		// caller went away; the entry is left as it was
		return
	}
	if err != nil {
		c.logger.Debug("query failed", zap.String("key", key.String()), zap.Error(err))
		if !e.hasData {
			c.set(e, failed(err))
		}
		return
	}
	e.hasData = true
	e.stale = false
	c.set(e, settled(data))
}

// Seed stores externally resolved data for key, superseding any fetch in
// flight.
func (c *Cache) Seed(key query.Key, data any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := c.entry(key)
	if e.flight != nil {
		e.flight.cancel()
		e.flight = nil
	}
	e.seq++
	e.hasData = true
	e.stale = false
	c.set(e, settled(data))
}

// Hydrate seeds every entry of a dehydrated page state.
func (c *Cache) Hydrate(state query.Dehydrated) error {
	for s, raw := range state {
		key, err := query.ParseKey(s)
		if err != nil {
			return fmt.Errorf("hydrate: %w", err)
		}
		data, err := decode(key, raw)
		if err != nil {
			return fmt.Errorf("hydrate: %w", err)
		}
		c.Seed(key, data)
	}
	return nil
}

// Invalidate marks keys stale. Keys that are subscribed to or already
// fetching are refetched right away, the rest on their next Query.
func (c *Cache) Invalidate(keys ...query.Key) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, key := range keys {
		e, ok := c.entries[key]
		if !ok {
			continue
		}
		e.stale = true
		if len(e.subs) > 0 || e.flight != nil {
			c.start(c.base, key, e)
		}
	}
}

// Cancel discards the in-flight fetch for key, if any. A late response for
// it will not touch the entry.
func (c *Cache) Cancel(key query.Key) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok || e.flight == nil {
		return
	}
	e.flight.cancel()
	e.flight = nil
	e.seq++
}

// Subscribe delivers the current state and every later change for key. Only
// the latest state is buffered; a slow reader skips intermediate states.
func (c *Cache) Subscribe(key query.Key) (<-chan State, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := c.entry(key)
	id := c.nextSub
	c.nextSub++
	ch := make(chan State, 1)
	e.subs[id] = ch
	if e.state != nil {
		ch <- e.state
	}

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			delete(e.subs, id)
			close(ch)
		})
	}
}

// update rewrites cached data for key in place. fn is not called when the
// entry holds no data.
func (c *Cache) update(key query.Key, fn func(data any) any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok || !e.hasData {
		return
	}
	var cur any
	if r, isReady := e.state.(Ready); isReady {
		cur = r.Data
	}
	c.set(e, settled(fn(cur)))
}

func (c *Cache) set(e *entry, s State) {
	e.state = s
	for _, ch := range e.subs {
		select {
		case <-ch:
		default:
		}
		ch <- s
	}
}
