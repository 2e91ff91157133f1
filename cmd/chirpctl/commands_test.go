package main

import (
	"bytes"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"chirp/internal/adapters/httpapi"
	"chirp/internal/adapters/httpapi/middleware"
	"chirp/internal/adapters/identity"
	"chirp/internal/adapters/memory"
	"chirp/internal/adapters/web"
	postapp "chirp/internal/core/post/service"
	"chirp/internal/core/profile"
	profileapp "chirp/internal/core/profile/service"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "cli-secret"

func newServer(t *testing.T) (*httptest.Server, *memory.PostRepositoryMemory) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	dir := identity.NewFixtures(profile.AuthorProfile{ID: "user_alice", Username: "alice"})
	resolver := profileapp.NewProfileResolver(dir, nil, profileapp.ResolverOptions{}, nil)
	repo := memory.NewPostRepositoryMemory()
	posts := postapp.NewPostService(repo, resolver, memory.NewLimiter(3, time.Minute), nil)
	profiles := profileapp.NewProfileService(resolver)
	r := httpapi.SetupRoutes(posts, profiles, httpapi.RouterOptions{JWTSecret: []byte(secret)})
	pages, err := web.NewPages(posts, profiles, web.Options{JWTSecret: []byte(secret)})
	require.NoError(t, err)
	pages.Register(r)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, repo
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestToken(t *testing.T) {
	out, err := run(t, "token", "user_alice", "--secret", secret)
	require.NoError(t, err)
	sub, err := middleware.ParseToken([]byte(secret), strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, "user_alice", sub)

	_, err = run(t, "token", "bad id!", "--secret", secret)
	assert.Error(t, err)
}

func TestFeedAndSubmit(t *testing.T) {
	srv, repo := newServer(t)

	out, err := run(t, "feed", "--server", srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "No posts yet\n", out)

	tok, err := middleware.IssueToken([]byte(secret), "user_alice", time.Hour)
	require.NoError(t, err)
	out, err = run(t, "submit", "hello from the cli", "--server", srv.URL, "--token", tok, "--as", "@alice")
	require.NoError(t, err)
	assert.Contains(t, out, "posted ")
	assert.Contains(t, out, "@alice · now")
	assert.Contains(t, out, "hello from the cli")
	assert.Equal(t, 1, repo.Count())

	_, err = run(t, "submit", "   ", "--server", srv.URL, "--token", tok)
	require.Error(t, err)
	assert.Equal(t, "content must not be empty", err.Error())

	out, err = run(t, "user", "user_alice", "--server", srv.URL)
	require.NoError(t, err)
	assert.Contains(t, out, "hello from the cli")

	out, err = run(t, "profile", "@nobody", "--server", srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "404\n", out)

	out, err = run(t, "page", "/@alice", "--server", srv.URL)
	require.NoError(t, err)
	assert.Contains(t, out, "@alice")
	assert.Contains(t, out, "hello from the cli")
}

func TestSubmitRequiresToken(t *testing.T) {
	_, err := run(t, "submit", "hi", "--server", "http://127.0.0.1:1", "--token", "")
	assert.Error(t, err)
}
