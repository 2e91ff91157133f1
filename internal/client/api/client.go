// Package api is the HTTP client for the chirp RPC surface.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"chirp/internal/core/apperr"
	"chirp/internal/core/feed"
	"chirp/internal/core/post"
	"chirp/internal/core/profile"
	"chirp/internal/query"
)

type Client struct {
	BaseURL string
	// Token is sent as a bearer session token when set.
	Token string
	HTTP  *http.Client
}

func New(baseURL, token string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		HTTP:    &http.Client{Timeout: 10 * time.Second},
	}
}

type feedResponse struct {
	Posts []feed.Item `json:"posts"`
}

func (c *Client) GetAll(ctx context.Context) ([]feed.Item, error) {
	var res feedResponse
	if err := c.do(ctx, http.MethodGet, "/api/posts", nil, &res); err != nil {
		return nil, err
	}
	return nonNil(res.Posts), nil
}

func (c *Client) GetByUserID(ctx context.Context, userID string) ([]feed.Item, error) {
	var res feedResponse
	if err := c.do(ctx, http.MethodGet, "/api/users/"+url.PathEscape(userID)+"/posts", nil, &res); err != nil {
		return nil, err
	}
	return nonNil(res.Posts), nil
}

func (c *Client) GetByID(ctx context.Context, id string) (feed.Item, error) {
	var item feed.Item
	err := c.do(ctx, http.MethodGet, "/api/posts/"+url.PathEscape(id), nil, &item)
	return item, err
}

func (c *Client) GetUserByUsername(ctx context.Context, username string) (profile.AuthorProfile, error) {
	var p profile.AuthorProfile
	err := c.do(ctx, http.MethodGet, "/api/profiles/"+url.PathEscape(username), nil, &p)
	return p, err
}

func (c *Client) CreatePost(ctx context.Context, content string) (*post.Post, error) {
	body, err := json.Marshal(map[string]string{"content": content})
	if err != nil {
		return nil, err
	}
	var p post.Post
	if err := c.do(ctx, http.MethodPost, "/api/posts", body, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Fetch runs the query named by key; it backs the client cache.
func (c *Client) Fetch(ctx context.Context, key query.Key) (any, error) {
	switch key.Kind {
	case query.PostsGetAll:
		return c.GetAll(ctx)
	case query.PostsGetPostByUserID:
		return c.GetByUserID(ctx, key.Param)
	case query.PostsGetByID:
		return c.GetByID(ctx, key.Param)
	case query.ProfileGetByUsername:
		return c.GetUserByUsername(ctx, key.Param)
	}
	return nil, fmt.Errorf("unsupported query %s", key)
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, out any) error {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, rd)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return apperr.Upstream("api", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return decodeError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperr.Upstream("api", fmt.Errorf("decode %s: %w", path, err))
	}
	return nil
}

type errorEnvelope struct {
	Error struct {
		Kind              apperr.Kind   `json:"kind"`
		Message           string        `json:"message"`
		Field             string        `json:"field"`
		Reason            apperr.Reason `json:"reason"`
		Limit             int           `json:"limit"`
		RetryAfterSeconds int           `json:"retryAfterSeconds"`
	} `json:"error"`
}

// decodeError turns an error response back into the apperr type the server
// started from.
func decodeError(resp *http.Response) error {
	var env errorEnvelope
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err := json.Unmarshal(b, &env); err != nil || env.Error.Kind == "" {
		return apperr.Upstream("api", fmt.Errorf("status %d", resp.StatusCode))
	}

	e := env.Error
	switch e.Kind {
	case apperr.KindValidation:
		return &apperr.ValidationError{Field: e.Field, Reason: e.Reason, Limit: e.Limit}
	case apperr.KindRateLimited:
		return &apperr.RateLimitError{RetryAfter: time.Duration(e.RetryAfterSeconds) * time.Second}
	case apperr.KindNotFound:
		return &apperr.NotFoundError{Resource: strings.TrimSuffix(e.Message, " not found")}
	case apperr.KindUnauthenticated:
		return &apperr.UnauthenticatedError{}
	case apperr.KindUpstream:
		return apperr.Upstream("server", errors.New(e.Message))
	default:
		return fmt.Errorf("server error: %s", e.Message)
	}
}

func nonNil(items []feed.Item) []feed.Item {
	if items == nil {
		return []feed.Item{}
	}
	return items
}
