package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"chirp/internal/adapters/httpapi"
	"chirp/internal/adapters/httpapi/middleware"
	"chirp/internal/adapters/identity"
	"chirp/internal/adapters/memory"
	"chirp/internal/client/cache"
	"chirp/internal/core/apperr"
	"chirp/internal/core/feed"
	postapp "chirp/internal/core/post/service"
	"chirp/internal/core/profile"
	profileapp "chirp/internal/core/profile/service"
	"chirp/internal/query"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	secret = []byte("test-secret")
	alice  = profile.AuthorProfile{ID: "user_alice", Username: "alice"}
)

func newServer(t *testing.T) (*httptest.Server, *memory.PostRepositoryMemory) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	resolver := profileapp.NewProfileResolver(identity.NewFixtures(alice), nil, profileapp.ResolverOptions{}, nil)
	repo := memory.NewPostRepositoryMemory()
	posts := postapp.NewPostService(repo, resolver, memory.NewLimiter(3, time.Minute), nil)
	r := httpapi.SetupRoutes(posts, profileapp.NewProfileService(resolver), httpapi.RouterOptions{JWTSecret: secret})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, repo
}

func session(t *testing.T, userID string) string {
	t.Helper()
	tok, err := middleware.IssueToken(secret, userID, time.Hour)
	require.NoError(t, err)
	return tok
}

func TestClient_RoundTrip(t *testing.T) {
	srv, _ := newServer(t)
	c := New(srv.URL, session(t, alice.ID))

	items, err := c.GetAll(t.Context())
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.NotNil(t, items)

	p, err := c.CreatePost(t.Context(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "hello", p.Content)

	items, err = c.GetByUserID(t.Context(), alice.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, alice, items[0].Author)

	item, err := c.GetByID(t.Context(), p.ID.String())
	require.NoError(t, err)
	assert.Equal(t, p.ID, item.Post.ID)

	prof, err := c.GetUserByUsername(t.Context(), "alice")
	require.NoError(t, err)
	assert.Equal(t, alice, prof)
}

func TestClient_Errors(t *testing.T) {
	srv, _ := newServer(t)

	_, err := New(srv.URL, "").CreatePost(t.Context(), "hi")
	assert.Equal(t, apperr.KindUnauthenticated, apperr.KindOf(err))

	c := New(srv.URL, session(t, alice.ID))
	_, err = c.CreatePost(t.Context(), strings.Repeat("x", 281))
	var ve *apperr.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "content", ve.Field)
	assert.Equal(t, apperr.ReasonTooLong, ve.Reason)
	assert.Equal(t, 280, ve.Limit)

	for range 3 {
		_, err = c.CreatePost(t.Context(), "spam")
		require.NoError(t, err)
	}
	_, err = c.CreatePost(t.Context(), "spam")
	var re *apperr.RateLimitError
	require.ErrorAs(t, err, &re)
	assert.Positive(t, re.RetryAfter)

	_, err = c.GetUserByUsername(t.Context(), "nobody")
	assert.True(t, apperr.IsNotFound(err))

	_, err = New("http://127.0.0.1:1", "").GetAll(t.Context())
	assert.Equal(t, apperr.KindUpstream, apperr.KindOf(err))
}

func TestClient_DecodeUnknownBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := New(srv.URL, "").GetAll(t.Context())
	assert.Equal(t, apperr.KindUpstream, apperr.KindOf(err))
}

func TestClient_BacksCache(t *testing.T) {
	srv, repo := newServer(t)
	c := New(srv.URL, session(t, alice.ID))
	for _, content := range []string{"first", "second"} {
		_, err := repo.Create(t.Context(), alice.ID, content)
		require.NoError(t, err)
		time.Sleep(time.Millisecond)
	}

	qc := cache.New(c, nil)
	defer qc.Close()

	s, err := qc.Load(t.Context(), query.FeedAll())
	require.NoError(t, err)
	require.Len(t, s.(cache.Ready).Data.([]feed.Item), 2)

	_, err = qc.SubmitPost(t.Context(), c, alice, "new post")
	require.NoError(t, err)

	s, err = qc.Load(t.Context(), query.FeedAll())
	require.NoError(t, err)
	items := s.(cache.Ready).Data.([]feed.Item)
	require.Len(t, items, 3)
	assert.Equal(t, "new post", items[0].Post.Content)

	s, err = qc.Load(t.Context(), query.PostByID("00000000-0000-0000-0000-000000000000"))
	require.NoError(t, err)
	assert.Equal(t, apperr.KindNotFound, s.(cache.Failed).Kind)
}

func TestExtractState(t *testing.T) {
	page := `<!doctype html><html><head><title>@alice</title></head><body>
<div id="app">hi</div>
<script id="` + query.StateScriptID + `" type="application/json">{"profile.getUserByUserName?alice":{"id":"user_alice","username":"alice","profileImageUrl":"<x>"}}</script>
</body></html>`

	state, err := ExtractState(strings.NewReader(page))
	require.NoError(t, err)
	require.Contains(t, state, "profile.getUserByUserName?alice")

	qc := cache.New(nil, nil)
	defer qc.Close()
	require.NoError(t, qc.Hydrate(state))
	got := qc.Peek(query.ProfileByUsername("alice")).(cache.Ready).Data.(profile.AuthorProfile)
	assert.Equal(t, "<x>", got.ProfileImageURL)

	state, err = ExtractState(strings.NewReader(`<html><script>var x = 1;</script></html>`))
	require.NoError(t, err)
	assert.Empty(t, state)
}

func TestPageState(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/@alice" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<script id="__CHIRP_STATE__" type="application/json">{"posts.getAll":[]}</script>`))
	}))
	defer srv.Close()
	c := New(srv.URL, "")

	state, err := c.PageState(t.Context(), "/@alice")
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(state["posts.getAll"]))

	_, err = c.PageState(t.Context(), "/@ghost")
	assert.True(t, apperr.IsNotFound(err))
}
