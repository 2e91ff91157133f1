package post

import (
	"strings"
	"time"
	"unicode/utf8"

	"chirp/internal/core/apperr"

	"github.com/gofrs/uuid"
)

// MaxContentLength is counted in Unicode code points.
const MaxContentLength = 280

type Post struct {
	ID        uuid.UUID `gorm:"primary_key;type:char(36)" json:"id"`
	AuthorID  string    `gorm:"type:varchar(128);not null;index:idx_posts_author_created,priority:1" json:"authorId"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	CreatedAt time.Time `gorm:"not null;index;index:idx_posts_author_created,priority:2" json:"createdAt"`
}

// ValidateContent checks the content constraints without altering the text:
// non-empty after trimming and at most MaxContentLength characters.
func ValidateContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return &apperr.ValidationError{Field: "content", Reason: apperr.ReasonEmpty, Limit: MaxContentLength}
	}
	if utf8.RuneCountInString(content) > MaxContentLength {
		return &apperr.ValidationError{Field: "content", Reason: apperr.ReasonTooLong, Limit: MaxContentLength}
	}
	return nil
}

// Newer reports whether a sorts before b in a feed: newest first, ties broken
// by id descending.
func Newer(a, b *Post) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID.String() > b.ID.String()
}
