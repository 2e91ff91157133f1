// Package view renders client cache states as plain text.
package view

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"chirp/internal/client/cache"
	"chirp/internal/core/apperr"
	"chirp/internal/core/feed"
	"chirp/internal/core/profile"
	"chirp/internal/query"

	"github.com/dustin/go-humanize"
)

const (
	LoadingText    = "Loading..."
	ErrorText      = "Something went wrong"
	NotFoundText   = "404"
	EmptyFeedText  = "No posts yet"
	EmptyUserText  = "User has not posted yet"
	ComposeFailure = "Failed to post, please try again later!"
)

// Renderer writes states to Out. Now is the reference time for relative
// timestamps and defaults to time.Now.
type Renderer struct {
	Out io.Writer
	Now func() time.Time
}

func New(out io.Writer) *Renderer {
	return &Renderer{Out: out, Now: time.Now}
}

// Ago formats t relative to now, e.g. "3 minutes ago".
func Ago(t, now time.Time) string {
	return humanize.RelTime(t, now, "ago", "from now")
}

func (r *Renderer) Render(key query.Key, s cache.State) error {
	var b strings.Builder
	switch s := s.(type) {
	case cache.Loading:
		b.WriteString(LoadingText + "\n")
	case cache.Failed:
		if s.Kind == apperr.KindNotFound {
			b.WriteString(NotFoundText + "\n")
		} else {
			b.WriteString(ErrorText + "\n")
		}
	case cache.Empty:
		if key.Kind == query.PostsGetPostByUserID {
			b.WriteString(EmptyUserText + "\n")
		} else {
			b.WriteString(EmptyFeedText + "\n")
		}
	case cache.Ready:
		r.ready(&b, s.Data)
	default:
		return fmt.Errorf("unknown state %T", s)
	}
	_, err := io.WriteString(r.Out, b.String())
	return err
}

func (r *Renderer) ready(b *strings.Builder, data any) {
	switch v := data.(type) {
	case []feed.Item:
		for _, it := range v {
			r.row(b, it)
		}
	case feed.Item:
		r.row(b, v)
	case profile.AuthorProfile:
		fmt.Fprintf(b, "@%s\n", v.Username)
		if v.ProfileImageURL != "" {
			fmt.Fprintf(b, "  %s\n", v.ProfileImageURL)
		}
	default:
		fmt.Fprintf(b, "%v\n", v)
	}
}

func (r *Renderer) row(b *strings.Builder, it feed.Item) {
	fmt.Fprintf(b, "@%s · %s\n", it.Author.Username, Ago(it.Post.CreatedAt, r.Now()))
	fmt.Fprintf(b, "  %s\n", it.Post.Content)
	fmt.Fprintf(b, "  /post/%s\n", it.Post.ID)
}

// SubmitError is the message shown when composing a post fails: the content
// field's own message if there is one, otherwise a generic one.
func SubmitError(err error) string {
	if err == nil {
		return ""
	}
	var (
		ve *apperr.ValidationError
		re *apperr.RateLimitError
	)
	switch {
	case errors.As(err, &ve) && ve.Field == "content":
		return ve.Error()
	case errors.As(err, &re):
		return re.Error()
	}
	return ComposeFailure
}
