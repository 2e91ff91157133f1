package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"chirp/internal/core/apperr"
	"chirp/internal/core/post"
	postPort "chirp/internal/ports/post"

	"github.com/gofrs/uuid"
)

// PostRepositoryMemory keeps posts in process; used for local runs and tests.
type PostRepositoryMemory struct {
	mu    sync.RWMutex
	posts map[uuid.UUID]*post.Post
	now   func() time.Time
}

func NewPostRepositoryMemory() *PostRepositoryMemory {
	return &PostRepositoryMemory{
		posts: make(map[uuid.UUID]*post.Post),
		now:   time.Now,
	}
}

// WithClock replaces the timestamp source.
func (repo *PostRepositoryMemory) WithClock(now func() time.Time) *PostRepositoryMemory {
	repo.now = now
	return repo
}

func (repo *PostRepositoryMemory) Create(ctx context.Context, authorID, content string) (*post.Post, error) {
	if err := post.ValidateContent(content); err != nil {
		return nil, err
	}
	p := &post.Post{
		ID:        uuid.Must(uuid.NewV4()),
		AuthorID:  authorID,
		Content:   content,
		CreatedAt: repo.now().UTC(),
	}

	repo.mu.Lock()
	defer repo.mu.Unlock()
	repo.posts[p.ID] = p

	cp := *p
	return &cp, nil
}

func (repo *PostRepositoryMemory) FindByID(ctx context.Context, id string) (*post.Post, error) {
	uid, err := uuid.FromString(id)
	if err != nil {
		return nil, apperr.NotFound("post", id)
	}

	repo.mu.RLock()
	defer repo.mu.RUnlock()
	p, ok := repo.posts[uid]
	if !ok {
		return nil, apperr.NotFound("post", id)
	}
	cp := *p
	return &cp, nil
}

func (repo *PostRepositoryMemory) ListRecent(ctx context.Context, limit int) ([]*post.Post, error) {
	return repo.list(func(*post.Post) bool { return true }, limit), nil
}

func (repo *PostRepositoryMemory) ListByAuthor(ctx context.Context, authorID string, limit int) ([]*post.Post, error) {
	return repo.list(func(p *post.Post) bool { return p.AuthorID == authorID }, limit), nil
}

// Count returns the number of stored posts.
func (repo *PostRepositoryMemory) Count() int {
	repo.mu.RLock()
	defer repo.mu.RUnlock()
	return len(repo.posts)
}

func (repo *PostRepositoryMemory) list(keep func(*post.Post) bool, limit int) []*post.Post {
	repo.mu.RLock()
	posts := make([]*post.Post, 0, len(repo.posts))
	for _, p := range repo.posts {
		if keep(p) {
			cp := *p
			posts = append(posts, &cp)
		}
	}
	repo.mu.RUnlock()

	sort.Slice(posts, func(i, j int) bool { return post.Newer(posts[i], posts[j]) })

	if limit = postPort.ClampLimit(limit); len(posts) > limit {
		posts = posts[:limit]
	}
	return posts
}
