// Package feed joins posts with their authors' display profiles.
package feed

import (
	"context"

	"chirp/internal/core/post"
	"chirp/internal/core/profile"
	profilePort "chirp/internal/ports/profile"

	"go.uber.org/zap"
)

// Item is a post with its resolved author. Author.ID always equals
// Post.AuthorID.
type Item struct {
	Post   post.Post             `json:"post"`
	Author profile.AuthorProfile `json:"author"`
}

// Assemble resolves the distinct authors of posts in one call and returns the
// items in input order. Posts whose author does not resolve are dropped; a
// resolver error fails the whole feed.
func Assemble(ctx context.Context, resolver profilePort.Resolver, posts []*post.Post, logger *zap.Logger) ([]Item, error) {
	if len(posts) == 0 {
		return []Item{}, nil
	}

	seen := make(map[string]struct{}, len(posts))
	ids := make([]string, 0, len(posts))
	for _, p := range posts {
		if _, ok := seen[p.AuthorID]; ok {
			continue
		}
		seen[p.AuthorID] = struct{}{}
		ids = append(ids, p.AuthorID)
	}

	authors, err := resolver.ResolveMany(ctx, ids)
	if err != nil {
		return nil, err
	}

	items := make([]Item, 0, len(posts))
	for _, p := range posts {
		author, ok := authors[p.AuthorID]
		if !ok || author.ID != p.AuthorID {
			if logger != nil {
				logger.Debug("dropping post with unresolved author",
					zap.String("postID", p.ID.String()), zap.String("authorID", p.AuthorID))
			}
			continue
		}
		items = append(items, Item{Post: *p, Author: author})
	}
	return items, nil
}
