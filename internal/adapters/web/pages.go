// Package web serves the HTML pages. Profile and post pages are pre-rendered
// into an expiring cache and rendered on demand on a miss.
package web

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"sync"
	"time"

	"chirp/internal/adapters/httpapi"
	"chirp/internal/client/view"
	"chirp/internal/core/apperr"
	"chirp/internal/core/feed"
	"chirp/internal/core/post"
	"chirp/internal/core/profile"
	"chirp/internal/query"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

//go:embed templates/*.html
var templateFS embed.FS

type PostUseCase interface {
	CreatePost(ctx context.Context, authorID, content string) (*post.Post, error)
	GetAll(ctx context.Context) ([]feed.Item, error)
	GetByID(ctx context.Context, id string) (*feed.Item, error)
	GetByUserID(ctx context.Context, userID string) ([]feed.Item, error)
}

type ProfileUseCase interface {
	GetUserByUsername(ctx context.Context, username string) (*profile.AuthorProfile, error)
}

type Options struct {
	JWTSecret     []byte
	CacheSize     int
	Revalidate    time.Duration
	RenderTimeout time.Duration
	Logger        *zap.Logger
}

type Pages struct {
	posts    PostUseCase
	profiles ProfileUseCase
	secret   []byte
	logger   *zap.Logger
	tmpl     *template.Template
	rendered *expirable.LRU[string, []byte]
	group    singleflight.Group
	timeout  time.Duration
	now      func() time.Time

	// gens is bumped by Purge; a render only stores its page if the
	// generation it started under is still current.
	mu   sync.Mutex
	gens map[string]uint64
}

func NewPages(posts PostUseCase, profiles ProfileUseCase, opts Options) (*Pages, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse page templates: %w", err)
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = 512
	}
	if opts.Revalidate <= 0 {
		opts.Revalidate = time.Minute
	}
	if opts.RenderTimeout <= 0 {
		opts.RenderTimeout = 10 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Pages{
		posts:    posts,
		profiles: profiles,
		secret:   opts.JWTSecret,
		logger:   opts.Logger,
		tmpl:     tmpl,
		rendered: expirable.NewLRU[string, []byte](opts.CacheSize, nil, opts.Revalidate),
		timeout:  opts.RenderTimeout,
		now:      time.Now,
		gens:     make(map[string]uint64),
	}, nil
}

type rowView struct {
	Author  profile.AuthorProfile
	PostID  string
	Content string
	Ago     string
}

type pageData struct {
	Kind  string
	Title string
	State template.JS

	Profile   *profile.AuthorProfile
	Items     []rowView
	EmptyText string
	Failed    bool

	SignedIn     bool
	Draft        string
	ComposeError string
}

// page is a rendered document with its status.
type page struct {
	status int
	body   []byte
}

func (p *Pages) rows(items []feed.Item) []rowView {
	now := p.now()
	out := make([]rowView, 0, len(items))
	for _, it := range items {
		out = append(out, rowView{
			Author:  it.Author,
			PostID:  it.Post.ID.String(),
			Content: it.Post.Content,
			Ago:     view.Ago(it.Post.CreatedAt, now),
		})
	}
	return out
}

func (p *Pages) execute(status int, data pageData, state query.Dehydrated) (page, error) {
	if state == nil {
		state = query.Dehydrated{}
	}
	// json.Marshal escapes <, > and &, so the state cannot close the script
	b, err := json.Marshal(state)
	if err != nil {
		return page{}, fmt.Errorf("encode page state: %w", err)
	}
	data.State = template.JS(b)

	var buf bytes.Buffer
	if err := p.tmpl.ExecuteTemplate(&buf, "layout", data); err != nil {
		return page{}, fmt.Errorf("render %s page: %w", data.Kind, err)
	}
	return page{status: status, body: buf.Bytes()}, nil
}

// failure renders the 404 or error page for err.
func (p *Pages) failure(err error) (page, error) {
	status := httpapi.StatusFor(err)
	if apperr.IsNotFound(err) {
		return p.execute(status, pageData{Kind: "notfound", Title: "404"}, nil)
	}
	p.logger.Error("page render failed", zap.Error(err))
	return p.execute(status, pageData{Kind: "error", Title: "Something went wrong"}, nil)
}

func (p *Pages) renderHome(ctx context.Context, signedIn bool, draft, composeErr string, status int) (page, error) {
	data := pageData{
		Kind:         "home",
		Title:        "chirp",
		SignedIn:     signedIn,
		Draft:        draft,
		ComposeError: composeErr,
		EmptyText:    view.EmptyFeedText,
	}
	items, err := p.posts.GetAll(ctx)
	if err != nil {
		p.logger.Error("home feed failed", zap.Error(err))
		data.Failed = true
		return p.execute(httpapi.StatusFor(err), data, nil)
	}
	data.Items = p.rows(items)

	state := query.Dehydrated{}
	if err := state.Put(query.FeedAll(), items); err != nil {
		return page{}, err
	}
	return p.execute(status, data, state)
}

func (p *Pages) renderProfile(ctx context.Context, username string) (page, error) {
	prof, err := p.profiles.GetUserByUsername(ctx, username)
	if err != nil {
		return p.failure(err)
	}
	items, err := p.posts.GetByUserID(ctx, prof.ID)
	if err != nil {
		return p.failure(err)
	}

	state := query.Dehydrated{}
	if err := state.Put(query.ProfileByUsername(username), prof); err != nil {
		return page{}, err
	}
	if err := state.Put(query.FeedByAuthor(prof.ID), items); err != nil {
		return page{}, err
	}
	return p.execute(http.StatusOK, pageData{
		Kind:      "profile",
		Title:     prof.Username,
		Profile:   prof,
		Items:     p.rows(items),
		EmptyText: view.EmptyUserText,
	}, state)
}

func (p *Pages) renderPost(ctx context.Context, id string) (page, error) {
	item, err := p.posts.GetByID(ctx, id)
	if err != nil {
		return p.failure(err)
	}
	state := query.Dehydrated{}
	if err := state.Put(query.PostByID(id), item); err != nil {
		return page{}, err
	}
	return p.execute(http.StatusOK, pageData{
		Kind:  "post",
		Title: item.Post.Content + " - " + item.Author.Username,
		Items: p.rows([]feed.Item{*item}),
	}, state)
}

// ProfilePath and PostPath are the canonical pre-render cache keys.
func ProfilePath(username string) string { return "/@" + username }
func PostPath(id string) string { return "/post/" + id }

// render dispatches a canonical pre-renderable path.
func (p *Pages) render(ctx context.Context, path string) (page, error) {
	switch {
	case strings.HasPrefix(path, "/@") && len(path) > 2:
		return p.renderProfile(ctx, path[2:])
	case strings.HasPrefix(path, "/post/") && len(path) > len("/post/"):
		return p.renderPost(ctx, path[len("/post/"):])
	}
	return p.failure(apperr.NotFound("page", path))
}

func (p *Pages) generation(path string) uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.gens[path]
}

// store adds body under path unless path was purged after gen was read.
func (p *Pages) store(path string, gen uint64, body []byte) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.gens[path] != gen {
		return false
	}
	p.rendered.Add(path, body)
	return true
}

// cached serves path from the pre-render cache, rendering and storing it
// on a miss. Only successful pages are kept. Concurrent misses share one
// render, which is detached from the first caller's cancellation.
func (p *Pages) cached(ctx context.Context, path string) (page, bool, error) {
	if body, ok := p.rendered.Get(path); ok {
		return page{status: http.StatusOK, body: body}, true, nil
	}
	v, err, _ := p.group.Do(path, func() (any, error) {
		gen := p.generation(path)
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
		defer cancel()
		pg, err := p.render(rctx, path)
		if err == nil && pg.status == http.StatusOK {
			p.store(path, gen, pg.body)
		}
		return pg, err
	})
	if err != nil {
		return page{}, false, err
	}
	return v.(page), false, nil
}

// Prerender renders paths ahead of the first request.
func (p *Pages) Prerender(ctx context.Context, paths ...string) error {
	var errs []error
	for _, path := range paths {
		gen := p.generation(path)
		pg, err := p.render(ctx, path)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if pg.status != http.StatusOK {
			errs = append(errs, fmt.Errorf("prerender %s: status %d", path, pg.status))
			continue
		}
		p.store(path, gen, pg.body)
	}
	return errors.Join(errs...)
}

// Purge drops paths from the pre-render cache. Renders already in flight
// for them are not stored.
func (p *Pages) Purge(paths ...string) {
	p.mu.Lock()
	for _, path := range paths {
		p.gens[path]++
		p.rendered.Remove(path)
	}
	p.mu.Unlock()
	for _, path := range paths {
		p.group.Forget(path)
	}
}

// Cached reports whether path is currently pre-rendered.
func (p *Pages) Cached(path string) bool {
	return p.rendered.Contains(path)
}
