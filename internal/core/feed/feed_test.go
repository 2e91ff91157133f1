package feed

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"chirp/internal/core/apperr"
	"chirp/internal/core/post"
	"chirp/internal/core/profile"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeResolver struct {
	known map[string]profile.AuthorProfile
	calls [][]string
	err   error
}

func (f *fakeResolver) ResolveMany(ctx context.Context, ids []string) (map[string]profile.AuthorProfile, error) {
	f.calls = append(f.calls, ids)
	if f.err != nil {
		return nil, f.err
	}
	out := map[string]profile.AuthorProfile{}
	for _, id := range ids {
		if p, ok := f.known[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (f *fakeResolver) ResolveUsername(ctx context.Context, username string) (*profile.AuthorProfile, error) {
	return nil, apperr.NotFound("profile", username)
}

func makePosts(authors ...string) []*post.Post {
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	posts := make([]*post.Post, len(authors))
	for i, a := range authors {
		posts[i] = &post.Post{
			ID:        uuid.Must(uuid.NewV4()),
			AuthorID:  a,
			Content:   fmt.Sprintf("post %d", i),
			CreatedAt: base.Add(-time.Duration(i) * time.Minute),
		}
	}
	return posts
}

func resolverFor(ids ...string) *fakeResolver {
	r := &fakeResolver{known: map[string]profile.AuthorProfile{}}
	for _, id := range ids {
		r.known[id] = profile.AuthorProfile{ID: id, Username: "name_" + id}
	}
	return r
}

func TestAssemble(t *testing.T) {
	ctx := context.Background()

	t.Run("all authors resolve", func(t *testing.T) {
		posts := makePosts("a", "b", "a", "c")
		r := resolverFor("a", "b", "c")

		items, err := Assemble(ctx, r, posts, nil)
		require.NoError(t, err)
		require.Len(t, items, len(posts))
		for i, item := range items {
			assert.Equal(t, posts[i].ID, item.Post.ID)
			assert.Equal(t, item.Post.AuthorID, item.Author.ID)
		}
	})

	t.Run("resolves distinct authors once", func(t *testing.T) {
		posts := makePosts("a", "b", "a", "b", "a")
		r := resolverFor("a", "b")

		_, err := Assemble(ctx, r, posts, nil)
		require.NoError(t, err)
		require.Len(t, r.calls, 1)
		assert.Equal(t, []string{"a", "b"}, r.calls[0])
	})

	t.Run("drops unresolved authors and keeps order", func(t *testing.T) {
		posts := makePosts("a", "ghost", "b", "ghost", "a")
		r := resolverFor("a", "b")

		items, err := Assemble(ctx, r, posts, nil)
		require.NoError(t, err)
		require.Len(t, items, 3)
		assert.Equal(t, posts[0].ID, items[0].Post.ID)
		assert.Equal(t, posts[2].ID, items[1].Post.ID)
		assert.Equal(t, posts[4].ID, items[2].Post.ID)
	})

	t.Run("no authors resolve", func(t *testing.T) {
		items, err := Assemble(ctx, resolverFor(), makePosts("a", "b"), nil)
		require.NoError(t, err)
		assert.NotNil(t, items)
		assert.Empty(t, items)
	})

	t.Run("empty input", func(t *testing.T) {
		r := resolverFor("a")
		items, err := Assemble(ctx, r, nil, nil)
		require.NoError(t, err)
		assert.Empty(t, items)
		assert.Empty(t, r.calls)
	})

	t.Run("resolver failure propagates", func(t *testing.T) {
		r := resolverFor("a")
		r.err = apperr.Upstream("identity", errors.New("timeout"))

		items, err := Assemble(ctx, r, makePosts("a"), nil)
		assert.Nil(t, items)
		assert.Equal(t, apperr.KindUpstream, apperr.KindOf(err))
	})

	t.Run("output is an ordered subsequence of the input", func(t *testing.T) {
		rng := rand.New(rand.NewSource(7))
		pool := []string{"a", "b", "c", "d", "e"}
		for round := 0; round < 50; round++ {
			authors := make([]string, rng.Intn(30))
			for i := range authors {
				authors[i] = pool[rng.Intn(len(pool))]
			}
			var known []string
			for _, id := range pool {
				if rng.Intn(2) == 0 {
					known = append(known, id)
				}
			}
			posts := makePosts(authors...)

			items, err := Assemble(ctx, resolverFor(known...), posts, nil)
			require.NoError(t, err)
			assert.LessOrEqual(t, len(items), len(posts))

			j := 0
			for _, item := range items {
				for j < len(posts) && posts[j].ID != item.Post.ID {
					j++
				}
				require.Less(t, j, len(posts), "item out of order in round %d", round)
				j++
			}
		}
	})
}
