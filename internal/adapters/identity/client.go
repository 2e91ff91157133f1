// Package identity talks to the external user identity service.
package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"chirp/internal/core/apperr"
	"chirp/internal/core/profile"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

type ClientConfig struct {
	BaseURL   string
	SecretKey string
	// Batch enables ?user_id=a&user_id=b lookups; otherwise each id is a
	// separate request.
	Batch       bool
	Concurrency int
	// RequestsPerSecond throttles outbound requests; 0 disables throttling.
	RequestsPerSecond float64
	Timeout           time.Duration
}

// user is the wire shape of the identity API.
type user struct {
	ID              string `json:"id"`
	Username        string `json:"username"`
	ProfileImageURL string `json:"profile_image_url"`
	ImageURL        string `json:"image_url"`
}

func (u user) toProfile() profile.AuthorProfile {
	img := u.ProfileImageURL
	if img == "" {
		img = u.ImageURL
	}
	return profile.AuthorProfile{ID: u.ID, Username: u.Username, ProfileImageURL: img}
}

type Client struct {
	cfg     ClientConfig
	base    *url.URL
	http    *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

func NewClient(cfg ClientConfig, logger *zap.Logger) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid identity base url %q", cfg.BaseURL)
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	httpClient := &http.Client{Timeout: cfg.Timeout}
	if cfg.SecretKey != "" {
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, httpClient)
		httpClient = oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
			AccessToken: cfg.SecretKey,
			TokenType:   "Bearer",
		}))
		httpClient.Timeout = cfg.Timeout
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), max(1, int(cfg.RequestsPerSecond)))
	}

	return &Client{cfg: cfg, base: base, http: httpClient, limiter: limiter, logger: logger}, nil
}

func (c *Client) GetUsers(ctx context.Context, ids []string) ([]profile.AuthorProfile, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	if c.cfg.Batch {
		q := url.Values{}
		for _, id := range ids {
			q.Add("user_id", id)
		}
		q.Set("limit", fmt.Sprint(len(ids)))
		var users []user
		if _, err := c.get(ctx, "/v1/users", q, &users); err != nil {
			return nil, err
		}
		return toProfiles(users), nil
	}

	found := make([]*profile.AuthorProfile, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.Concurrency)
	for i, id := range ids {
		g.Go(func() error {
			var u user
			ok, err := c.get(gctx, "/v1/users/"+url.PathEscape(id), nil, &u)
			if err != nil || !ok {
				return err
			}
			p := u.toProfile()
			found[i] = &p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]profile.AuthorProfile, 0, len(ids))
	for _, p := range found {
		if p != nil {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (c *Client) GetUserByUsername(ctx context.Context, username string) (*profile.AuthorProfile, error) {
	q := url.Values{}
	q.Add("username", username)
	var users []user
	if _, err := c.get(ctx, "/v1/users", q, &users); err != nil {
		return nil, err
	}
	for _, u := range users {
		if u.Username == username {
			p := u.toProfile()
			return &p, nil
		}
	}
	return nil, nil
}

// get decodes a 200 response into out. A 404 reports ok=false with no error.
func (c *Client) get(ctx context.Context, path string, q url.Values, out any) (bool, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return false, apperr.Upstream("identity", err)
	}

	u := *c.base
	u.Path += path
	u.RawQuery = q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return false, apperr.Upstream("identity", err)
	}
	defer resp.Body.Close()
	c.logger.Debug("identity request",
		zap.String("path", path), zap.Int("status", resp.StatusCode), zap.Duration("latency", time.Since(start)))

	switch {
	case resp.StatusCode == http.StatusNotFound:
		io.Copy(io.Discard, resp.Body)
		return false, nil
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return false, apperr.Upstream("identity", fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return false, apperr.Upstream("identity", fmt.Errorf("decode %s: %w", path, err))
	}
	return true, nil
}

func toProfiles(users []user) []profile.AuthorProfile {
	out := make([]profile.AuthorProfile, 0, len(users))
	for _, u := range users {
		out = append(out, u.toProfile())
	}
	return out
}
