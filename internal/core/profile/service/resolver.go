package profileapp

import (
	"context"
	"errors"
	"time"

	"chirp/internal/core/apperr"
	"chirp/internal/core/profile"
	profilePort "chirp/internal/ports/profile"

	"github.com/graph-gophers/dataloader/v7"
	"go.uber.org/zap"
)

var errProfileMissing = errors.New("profile missing")

type ResolverOptions struct {
	// BatchSize is the largest id list sent in one directory call.
	BatchSize int
	// Wait is how long the loader collects keys before dispatching a batch.
	Wait     time.Duration
	Timeout  time.Duration
	CacheTTL time.Duration
}

func (o ResolverOptions) withDefaults() ResolverOptions {
	if o.BatchSize <= 0 {
		o.BatchSize = 100
	}
	if o.Wait <= 0 {
		o.Wait = 2 * time.Millisecond
	}
	if o.Timeout <= 0 {
		o.Timeout = 5 * time.Second
	}
	if o.CacheTTL <= 0 {
		o.CacheTTL = 5 * time.Minute
	}
	return o
}

// ProfileResolver resolves author ids through a batching loader in front of
// the identity directory, with an optional profile cache.
type ProfileResolver struct {
	Directory profilePort.Directory
	Cache     profilePort.Cache
	Logger    *zap.Logger

	opts   ResolverOptions
	loader *dataloader.Loader[string, profile.AuthorProfile]
}

func NewProfileResolver(dir profilePort.Directory, cache profilePort.Cache, opts ResolverOptions, logger *zap.Logger) *ProfileResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &ProfileResolver{
		Directory: dir,
		Cache:     cache,
		Logger:    logger,
		opts:      opts.withDefaults(),
	}
	r.loader = dataloader.NewBatchedLoader(r.batch,
		dataloader.WithBatchCapacity[string, profile.AuthorProfile](r.opts.BatchSize),
		dataloader.WithWait[string, profile.AuthorProfile](r.opts.Wait),
		// profiles are external and mutable; freshness is the profile cache's job
		dataloader.WithCache[string, profile.AuthorProfile](&dataloader.NoCache[string, profile.AuthorProfile]{}),
	)
	return r
}

func (r *ProfileResolver) ResolveMany(ctx context.Context, ids []string) (map[string]profile.AuthorProfile, error) {
	wanted := distinctValid(ids)
	result := make(map[string]profile.AuthorProfile, len(wanted))
	if len(wanted) == 0 {
		return result, nil
	}

	misses := wanted
	if r.Cache != nil {
		cached, err := r.Cache.GetMany(ctx, wanted)
		if err != nil {
			r.Logger.Warn("profile cache read failed", zap.Error(err))
		} else {
			misses = misses[:0:0]
			for _, id := range wanted {
				if p, ok := cached[id]; ok {
					result[id] = p
				} else {
					misses = append(misses, id)
				}
			}
		}
	}
	if len(misses) == 0 {
		return result, nil
	}

	// enqueue every key before waiting so they share batches
	thunks := make([]dataloader.Thunk[profile.AuthorProfile], len(misses))
	for i, id := range misses {
		thunks[i] = r.loader.Load(ctx, id)
	}

	fetched := make([]profile.AuthorProfile, 0, len(misses))
	var upstreamErr error
	for i, thunk := range thunks {
		p, err := thunk()
		switch {
		case err == nil:
			result[misses[i]] = p
			fetched = append(fetched, p)
		case errors.Is(err, errProfileMissing):
			r.Logger.Debug("profile not found", zap.String("userID", misses[i]))
		case upstreamErr == nil:
			upstreamErr = err
		}
	}
	if upstreamErr != nil {
		return nil, upstreamErr
	}

	r.store(ctx, fetched)
	return result, nil
}

func (r *ProfileResolver) ResolveUsername(ctx context.Context, username string) (*profile.AuthorProfile, error) {
	if username == "" {
		return nil, apperr.NotFound("profile", username)
	}
	p, err := r.Directory.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, asUpstream(err)
	}
	if p == nil {
		return nil, apperr.NotFound("profile", username)
	}
	r.store(ctx, []profile.AuthorProfile{*p})
	return p, nil
}

func (r *ProfileResolver) batch(ctx context.Context, ids []string) []*dataloader.Result[profile.AuthorProfile] {
	// the batch outlives whichever caller opened it
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.opts.Timeout)
	defer cancel()

	results := make([]*dataloader.Result[profile.AuthorProfile], len(ids))
	found, err := r.Directory.GetUsers(ctx, ids)
	if err != nil {
		err = asUpstream(err)
		r.Logger.Error("identity lookup failed", zap.Int("count", len(ids)), zap.Error(err))
		for i := range results {
			results[i] = &dataloader.Result[profile.AuthorProfile]{Error: err}
		}
		return results
	}

	byID := make(map[string]profile.AuthorProfile, len(found))
	for _, p := range found {
		byID[p.ID] = p
	}
	for i, id := range ids {
		if p, ok := byID[id]; ok {
			results[i] = &dataloader.Result[profile.AuthorProfile]{Data: p}
		} else {
			results[i] = &dataloader.Result[profile.AuthorProfile]{Error: errProfileMissing}
		}
	}
	return results
}

func (r *ProfileResolver) store(ctx context.Context, profiles []profile.AuthorProfile) {
	if r.Cache == nil || len(profiles) == 0 {
		return
	}
	if err := r.Cache.SetMany(ctx, profiles, r.opts.CacheTTL); err != nil {
		r.Logger.Warn("profile cache write failed", zap.Error(err))
	}
}

func distinctValid(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if !profile.ValidID(id) {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func asUpstream(err error) error {
	var ue *apperr.UpstreamError
	if errors.As(err, &ue) {
		return err
	}
	return apperr.Upstream("identity", err)
}
