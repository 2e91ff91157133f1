package cache

import (
	"context"

	"chirp/internal/core/feed"
	"chirp/internal/core/post"
	"chirp/internal/core/profile"
	"chirp/internal/query"
)

// Mutation is a write whose success makes a known set of queries stale.
// Optimistic, when set, patches cached data with the result before the
// invalidated queries are refetched.
type Mutation[T any] struct {
	Run         func(ctx context.Context) (T, error)
	Invalidates func(result T) []query.Key
	Optimistic  func(c *Cache, result T)
}

// Do runs m and, on success, walks its invalidation set. A failed mutation
// leaves the cache untouched.
func Do[T any](ctx context.Context, c *Cache, m Mutation[T]) (T, error) {
	res, err := m.Run(ctx)
	if err != nil {
		return res, err
	}
	if m.Optimistic != nil {
		m.Optimistic(c, res)
	}
	if m.Invalidates != nil {
		c.Invalidate(m.Invalidates(res)...)
	}
	return res, nil
}

type Poster interface {
	CreatePost(ctx context.Context, content string) (*post.Post, error)
}

// SubmitPostMutation creates a post as author. The global feed and the
// author's feed are invalidated; cached copies of both get the new post
// prepended right away.
func SubmitPostMutation(api Poster, author profile.AuthorProfile, content string) Mutation[*post.Post] {
	return Mutation[*post.Post]{
		Run: func(ctx context.Context) (*post.Post, error) {
			return api.CreatePost(ctx, content)
		},
		Invalidates: func(p *post.Post) []query.Key {
			return []query.Key{query.FeedAll(), query.FeedByAuthor(p.AuthorID)}
		},
		Optimistic: func(c *Cache, p *post.Post) {
			// without the author's profile there is no valid feed item
			if author.ID == "" || author.ID != p.AuthorID {
				return
			}
			item := feed.Item{Post: *p, Author: author}
			prepend := func(data any) any {
				items, _ := data.([]feed.Item)
				out := make([]feed.Item, 0, len(items)+1)
				out = append(out, item)
				for _, it := range items {
					if it.Post.ID != p.ID {
						out = append(out, it)
					}
				}
				return out
			}
			c.update(query.FeedAll(), prepend)
			c.update(query.FeedByAuthor(p.AuthorID), prepend)
		},
	}
}

func (c *Cache) SubmitPost(ctx context.Context, api Poster, author profile.AuthorProfile, content string) (*post.Post, error) {
	return Do(ctx, c, SubmitPostMutation(api, author, content))
}
