package profileapp

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"chirp/internal/core/apperr"
	"chirp/internal/core/profile"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type stubDirectory struct {
	mu       sync.Mutex
	profiles map[string]profile.AuthorProfile
	calls    [][]string
	err      error
}

func newStubDirectory(profiles ...profile.AuthorProfile) *stubDirectory {
	d := &stubDirectory{profiles: map[string]profile.AuthorProfile{}}
	for _, p := range profiles {
		d.profiles[p.ID] = p
	}
	return d
}

func (d *stubDirectory) GetUsers(ctx context.Context, ids []string) ([]profile.AuthorProfile, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, append([]string(nil), ids...))
	if d.err != nil {
		return nil, d.err
	}
	var out []profile.AuthorProfile
	for _, id := range ids {
		if p, ok := d.profiles[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (d *stubDirectory) GetUserByUsername(ctx context.Context, username string) (*profile.AuthorProfile, error) {
	if d.err != nil {
		return nil, d.err
	}
	for _, p := range d.profiles {
		if p.Username == username {
			cp := p
			return &cp, nil
		}
	}
	return nil, nil
}

func (d *stubDirectory) requested() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	var all []string
	for _, c := range d.calls {
		all = append(all, c...)
	}
	sort.Strings(all)
	return all
}

type mockCache struct {
	mock.Mock
}

func (m *mockCache) GetMany(ctx context.Context, ids []string) (map[string]profile.AuthorProfile, error) {
	args := m.Called(ctx, ids)
	return args.Get(0).(map[string]profile.AuthorProfile), args.Error(1)
}

func (m *mockCache) SetMany(ctx context.Context, profiles []profile.AuthorProfile, ttl time.Duration) error {
	args := m.Called(ctx, profiles, ttl)
	return args.Error(0)
}

var (
	alice = profile.AuthorProfile{ID: "user_alice", Username: "alice", ProfileImageURL: "https://img.example/alice.png"}
	bob   = profile.AuthorProfile{ID: "user_bob", Username: "bob", ProfileImageURL: "https://img.example/bob.png"}
)

func TestResolveMany(t *testing.T) {
	ctx := context.Background()

	t.Run("dedupes and drops malformed ids", func(t *testing.T) {
		dir := newStubDirectory(alice, bob)
		r := NewProfileResolver(dir, nil, ResolverOptions{}, nil)

		got, err := r.ResolveMany(ctx, []string{"user_alice", "user_bob", "user_alice", "", "bad id!", "user_bob"})
		require.NoError(t, err)
		assert.Equal(t, map[string]profile.AuthorProfile{"user_alice": alice, "user_bob": bob}, got)
		assert.Equal(t, []string{"user_alice", "user_bob"}, dir.requested())
	})

	t.Run("missing profiles are omitted", func(t *testing.T) {
		dir := newStubDirectory(alice)
		r := NewProfileResolver(dir, nil, ResolverOptions{}, nil)

		got, err := r.ResolveMany(ctx, []string{"user_alice", "user_ghost"})
		require.NoError(t, err)
		assert.Len(t, got, 1)
		assert.Contains(t, got, "user_alice")
	})

	t.Run("empty input makes no calls", func(t *testing.T) {
		dir := newStubDirectory(alice)
		r := NewProfileResolver(dir, nil, ResolverOptions{}, nil)

		got, err := r.ResolveMany(ctx, nil)
		require.NoError(t, err)
		assert.Empty(t, got)
		assert.Empty(t, dir.requested())
	})

	t.Run("batches by capacity", func(t *testing.T) {
		dir := newStubDirectory(alice, bob)
		r := NewProfileResolver(dir, nil, ResolverOptions{BatchSize: 1}, nil)

		got, err := r.ResolveMany(ctx, []string{"user_alice", "user_bob"})
		require.NoError(t, err)
		assert.Len(t, got, 2)
		dir.mu.Lock()
		defer dir.mu.Unlock()
		for _, c := range dir.calls {
			assert.Len(t, c, 1)
		}
	})

	t.Run("upstream failure fails the call", func(t *testing.T) {
		dir := newStubDirectory(alice)
		dir.err = errors.New("connection refused")
		r := NewProfileResolver(dir, nil, ResolverOptions{}, nil)

		got, err := r.ResolveMany(ctx, []string{"user_alice"})
		assert.Nil(t, got)
		assert.Equal(t, apperr.KindUpstream, apperr.KindOf(err))
	})

	t.Run("serves cache hits and stores misses", func(t *testing.T) {
		dir := newStubDirectory(alice, bob)
		cache := &mockCache{}
		cache.On("GetMany", mock.Anything, []string{"user_alice", "user_bob"}).
			Return(map[string]profile.AuthorProfile{"user_alice": alice}, nil)
		cache.On("SetMany", mock.Anything, []profile.AuthorProfile{bob}, time.Minute).Return(nil)

		r := NewProfileResolver(dir, cache, ResolverOptions{CacheTTL: time.Minute}, nil)
		got, err := r.ResolveMany(ctx, []string{"user_alice", "user_bob"})
		require.NoError(t, err)
		assert.Len(t, got, 2)
		assert.Equal(t, []string{"user_bob"}, dir.requested())
		cache.AssertExpectations(t)
	})

	t.Run("cache errors are not fatal", func(t *testing.T) {
		dir := newStubDirectory(alice)
		cache := &mockCache{}
		cache.On("GetMany", mock.Anything, mock.Anything).
			Return(map[string]profile.AuthorProfile(nil), errors.New("redis down"))
		cache.On("SetMany", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("redis down"))

		r := NewProfileResolver(dir, cache, ResolverOptions{}, nil)
		got, err := r.ResolveMany(ctx, []string{"user_alice"})
		require.NoError(t, err)
		assert.Contains(t, got, "user_alice")
	})

	t.Run("canceled caller does not poison the batch", func(t *testing.T) {
		dir := newStubDirectory(alice)
		r := NewProfileResolver(dir, nil, ResolverOptions{}, nil)

		cctx, cancel := context.WithCancel(ctx)
		cancel()
		got, err := r.ResolveMany(cctx, []string{"user_alice"})
		require.NoError(t, err)
		assert.Contains(t, got, "user_alice")
	})
}

func TestResolveUsername(t *testing.T) {
	ctx := context.Background()
	dir := newStubDirectory(alice)
	r := NewProfileResolver(dir, nil, ResolverOptions{}, nil)

	p, err := r.ResolveUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, alice, *p)

	_, err = r.ResolveUsername(ctx, "nobody")
	assert.True(t, apperr.IsNotFound(err))

	svc := NewProfileService(r)
	p, err = svc.GetUserByUsername(ctx, "@alice")
	require.NoError(t, err)
	assert.Equal(t, "user_alice", p.ID)
}
