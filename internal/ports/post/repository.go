package post

import (
	"context"

	"chirp/internal/core/post"
)

const (
	// DefaultLimit caps every list query.
	DefaultLimit = 100
)

// PostRepository پورت برای ذخیره‌سازی و بازیابی پست‌ها
type PostRepository interface {
	Create(ctx context.Context, authorID, content string) (*post.Post, error)
	FindByID(ctx context.Context, id string) (*post.Post, error)
	ListRecent(ctx context.Context, limit int) ([]*post.Post, error)
	ListByAuthor(ctx context.Context, authorID string, limit int) ([]*post.Post, error)
}

// ClampLimit maps a requested limit onto (0, DefaultLimit].
func ClampLimit(limit int) int {
	if limit <= 0 || limit > DefaultLimit {
		return DefaultLimit
	}
	return limit
}

// CreatedListener is notified after a post has been stored.
type CreatedListener interface {
	PostCreated(ctx context.Context, p *post.Post)
}
