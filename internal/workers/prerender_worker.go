package workers

import (
	"context"
	"time"

	"chirp/internal/adapters/web"
	"chirp/internal/core/post"
	profilePort "chirp/internal/ports/profile"

	"go.uber.org/zap"
)

// PageCache is the part of the page renderer the worker drives.
type PageCache interface {
	Purge(paths ...string)
	Prerender(ctx context.Context, paths ...string) error
}

// PrerenderWorker refreshes pre-rendered pages after a post is created: the
// author's profile page is purged and re-rendered, the new post's page is
// rendered ahead of its first request.
type PrerenderWorker struct {
	Pages    PageCache
	Resolver profilePort.Resolver
	Timeout  time.Duration
	Logger   *zap.Logger

	queue chan post.Post
}

func NewPrerenderWorker(pages PageCache, resolver profilePort.Resolver, queueSize int, logger *zap.Logger) *PrerenderWorker {
	if queueSize <= 0 {
		queueSize = 256
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PrerenderWorker{
		Pages:    pages,
		Resolver: resolver,
		Timeout:  10 * time.Second,
		Logger:   logger,
		queue:    make(chan post.Post, queueSize),
	}
}

// PostCreated queues p without blocking the submitting request. A full
// queue drops the event; the pages then refresh on revalidation.
func (w *PrerenderWorker) PostCreated(ctx context.Context, p *post.Post) {
	select {
	case w.queue <- *p:
	default:
		w.Logger.Warn("prerender queue full, dropping event", zap.String("postID", p.ID.String()))
	}
}

// Run گوش دادن به صف و بازسازی صفحات
func (w *PrerenderWorker) Run(ctx context.Context) {
	w.Logger.Info("prerender worker started")
	for {
		select {
		case <-ctx.Done():
			w.Logger.Info("prerender worker stopped")
			return
		case p := <-w.queue:
			w.process(ctx, p)
		}
	}
}

func (w *PrerenderWorker) process(ctx context.Context, p post.Post) {
	ctx, cancel := context.WithTimeout(ctx, w.Timeout)
	defer cancel()

	paths := []string{web.PostPath(p.ID.String())}
	authors, err := w.Resolver.ResolveMany(ctx, []string{p.AuthorID})
	if err != nil {
		w.Logger.Error("could not resolve author for prerender", zap.String("authorID", p.AuthorID), zap.Error(err))
	}
	if author, ok := authors[p.AuthorID]; ok {
		profilePath := web.ProfilePath(author.Username)
		w.Pages.Purge(profilePath)
		paths = append(paths, profilePath)
	}

	if err := w.Pages.Prerender(ctx, paths...); err != nil {
		w.Logger.Warn("prerender failed", zap.String("postID", p.ID.String()), zap.Error(err))
		return
	}
	w.Logger.Debug("pages prerendered", zap.Strings("paths", paths))
}
