package postapp

import (
	"context"
	"fmt"
	"sync"

	"chirp/internal/core/apperr"
	"chirp/internal/core/feed"
	postEntity "chirp/internal/core/post"
	postPort "chirp/internal/ports/post"
	profilePort "chirp/internal/ports/profile"
	"chirp/internal/ports/ratelimit"

	"go.uber.org/zap"
)

type PostService struct {
	PostRepository postPort.PostRepository
	Resolver       profilePort.Resolver
	Limiter        ratelimit.Limiter // nil disables submission limits
	Logger         *zap.Logger

	mu        sync.RWMutex
	listeners []postPort.CreatedListener
}

func NewPostService(
	postRepo postPort.PostRepository,
	resolver profilePort.Resolver,
	limiter ratelimit.Limiter,
	logger *zap.Logger,
) *PostService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PostService{
		PostRepository: postRepo,
		Resolver:       resolver,
		Limiter:        limiter,
		Logger:         logger,
	}
}

// OnCreated registers l for every successful CreatePost.
func (s *PostService) OnCreated(l postPort.CreatedListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, l)
}

// CreatePost validates, rate limits and stores a post for the authenticated
// authorID. The returned post is the stored record.
func (s *PostService) CreatePost(ctx context.Context, authorID, content string) (*postEntity.Post, error) {
	if authorID == "" {
		return nil, &apperr.UnauthenticatedError{}
	}
	if err := postEntity.ValidateContent(content); err != nil {
		return nil, err
	}

	if s.Limiter != nil {
		d, err := s.Limiter.Allow(ctx, "posts:"+authorID)
		switch {
		case err != nil:
			s.Logger.Error("rate limiter unavailable, allowing post", zap.String("userID", authorID), zap.Error(err))
		case !d.Allowed:
			s.Logger.Info("post rate limited", zap.String("userID", authorID), zap.Duration("retryAfter", d.RetryAfter))
			return nil, &apperr.RateLimitError{RetryAfter: d.RetryAfter}
		}
	}

	created, err := s.PostRepository.Create(ctx, authorID, content)
	if err != nil {
		return nil, fmt.Errorf("failed to create post: %w", err)
	}
	s.Logger.Info("post created", zap.String("postID", created.ID.String()), zap.String("userID", authorID))

	s.mu.RLock()
	listeners := s.listeners
	s.mu.RUnlock()
	for _, l := range listeners {
		l.PostCreated(ctx, created)
	}
	return created, nil
}

// GetAll returns the global feed, newest first.
func (s *PostService) GetAll(ctx context.Context) ([]feed.Item, error) {
	posts, err := s.PostRepository.ListRecent(ctx, postPort.DefaultLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}
	return feed.Assemble(ctx, s.Resolver, posts, s.Logger)
}

// GetByUserID returns one author's feed, newest first.
func (s *PostService) GetByUserID(ctx context.Context, userID string) ([]feed.Item, error) {
	posts, err := s.PostRepository.ListByAuthor(ctx, userID, postPort.DefaultLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to list posts of %s: %w", userID, err)
	}
	return feed.Assemble(ctx, s.Resolver, posts, s.Logger)
}

// GetByID returns a single post with its author. A post whose author cannot
// be resolved is reported as not found.
func (s *PostService) GetByID(ctx context.Context, id string) (*feed.Item, error) {
	p, err := s.PostRepository.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get post: %w", err)
	}
	items, err := feed.Assemble(ctx, s.Resolver, []*postEntity.Post{p}, s.Logger)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, apperr.NotFound("post", id)
	}
	return &items[0], nil
}
