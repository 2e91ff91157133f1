package database

import (
	"context"
	"errors"
	"time"

	"chirp/internal/core/apperr"
	"chirp/internal/core/post"
	postPort "chirp/internal/ports/post"

	"github.com/gofrs/uuid"
	"gorm.io/gorm"
)

// PostRepositoryDatabase پیاده‌سازی PostRepository برای دیتابیس
type PostRepositoryDatabase struct {
	db  *gorm.DB
	now func() time.Time
}

// NewPostRepositoryDatabase سازنده PostRepositoryDatabase
func NewPostRepositoryDatabase(db *gorm.DB) *PostRepositoryDatabase {
	return &PostRepositoryDatabase{db: db, now: time.Now}
}

// WithClock replaces the timestamp source.
func (repo *PostRepositoryDatabase) WithClock(now func() time.Time) *PostRepositoryDatabase {
	repo.now = now
	return repo
}

// Migrate creates or updates the posts table.
func (repo *PostRepositoryDatabase) Migrate(ctx context.Context) error {
	return repo.db.WithContext(ctx).AutoMigrate(&post.Post{})
}

func (repo *PostRepositoryDatabase) Create(ctx context.Context, authorID, content string) (*post.Post, error) {
	if err := post.ValidateContent(content); err != nil {
		return nil, err
	}
	p := &post.Post{
		ID:       uuid.Must(uuid.NewV4()),
		AuthorID: authorID,
		Content:  content,
		// truncated so the returned record matches what the store keeps
		CreatedAt: repo.now().UTC().Truncate(time.Microsecond),
	}
	if err := repo.db.WithContext(ctx).Create(p).Error; err != nil {
		return nil, apperr.Upstream("store", err)
	}
	return p, nil
}

func (repo *PostRepositoryDatabase) FindByID(ctx context.Context, id string) (*post.Post, error) {
	if _, err := uuid.FromString(id); err != nil {
		return nil, apperr.NotFound("post", id)
	}
	var p post.Post
	if err := repo.db.WithContext(ctx).Where("id = ?", id).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("post", id)
		}
		return nil, apperr.Upstream("store", err)
	}
	return &p, nil
}

func (repo *PostRepositoryDatabase) ListRecent(ctx context.Context, limit int) ([]*post.Post, error) {
	return repo.list(repo.db.WithContext(ctx), limit)
}

func (repo *PostRepositoryDatabase) ListByAuthor(ctx context.Context, authorID string, limit int) ([]*post.Post, error) {
	return repo.list(repo.db.WithContext(ctx).Where("author_id = ?", authorID), limit)
}

func (repo *PostRepositoryDatabase) list(q *gorm.DB, limit int) ([]*post.Post, error) {
	var posts []*post.Post
	err := q.Order("created_at DESC").
		Order("id DESC").
		Limit(postPort.ClampLimit(limit)).
		Find(&posts).Error
	if err != nil {
		return nil, apperr.Upstream("store", err)
	}
	return posts, nil
}
