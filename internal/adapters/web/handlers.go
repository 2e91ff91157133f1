package web

import (
	"net/http"
	"net/url"
	"strings"

	"chirp/internal/adapters/httpapi"
	"chirp/internal/adapters/httpapi/middleware"
	"chirp/internal/client/view"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Register mounts the page routes on r.
func (p *Pages) Register(r *gin.Engine) {
	r.GET("/", middleware.OptionalJWTMiddleware(p.secret), p.Home)
	r.POST("/compose", middleware.OptionalJWTMiddleware(p.secret), p.Compose)
	r.GET("/post/:id", p.Post)
	r.GET("/:slug", p.Profile)
}

func (p *Pages) write(c *gin.Context, pg page) {
	c.Data(pg.status, "text/html; charset=utf-8", pg.body)
}

func (p *Pages) serveCached(c *gin.Context, path string) {
	pg, hit, err := p.cached(c.Request.Context(), path)
	if err != nil {
		p.logger.Error("page failed", zap.String("path", path), zap.Error(err))
		c.String(http.StatusInternalServerError, view.ErrorText)
		return
	}
	if hit {
		c.Header("X-Prerender", "hit")
	} else {
		c.Header("X-Prerender", "miss")
	}
	p.write(c, pg)
}

func (p *Pages) Home(c *gin.Context) {
	pg, err := p.renderHome(c.Request.Context(), c.GetString("userID") != "", "", "", http.StatusOK)
	if err != nil {
		p.logger.Error("home page failed", zap.Error(err))
		c.String(http.StatusInternalServerError, view.ErrorText)
		return
	}
	p.write(c, pg)
}

// Profile serves /@username; the @ is optional.
func (p *Pages) Profile(c *gin.Context) {
	username := strings.TrimPrefix(c.Param("slug"), "@")
	if username == "" {
		c.Redirect(http.StatusFound, "/")
		return
	}
	p.serveCached(c, ProfilePath(username))
}

func (p *Pages) Post(c *gin.Context) {
	p.serveCached(c, PostPath(c.Param("id")))
}

// Compose handles the home page form. Success redirects back to the feed;
// a failure re-renders it with the draft and a message next to the input.
func (p *Pages) Compose(c *gin.Context) {
	if !sameOrigin(c.Request) {
		p.logger.Warn("cross-site compose rejected",
			zap.String("origin", c.GetHeader("Origin")), zap.String("referer", c.GetHeader("Referer")))
		c.String(http.StatusForbidden, view.ErrorText)
		return
	}
	userID := c.GetString("userID")
	content := c.PostForm("content")

	_, err := p.posts.CreatePost(c.Request.Context(), userID, content)
	if err == nil {
		c.Redirect(http.StatusSeeOther, "/")
		return
	}

	pg, rerr := p.renderHome(c.Request.Context(), userID != "", content, view.SubmitError(err), httpapi.StatusFor(err))
	if rerr != nil {
		p.logger.Error("home page failed", zap.Error(rerr))
		c.String(http.StatusInternalServerError, view.ErrorText)
		return
	}
	p.write(c, pg)
}

// sameOrigin reports whether a form post came from this host. Browsers send
// Origin (or at least Referer) on cross-site posts; requests carrying
// neither are not from a browser form.
func sameOrigin(r *http.Request) bool {
	source := r.Header.Get("Origin")
	if source == "" || source == "null" {
		source = r.Header.Get("Referer")
	}
	if source == "" {
		return r.Header.Get("Origin") != "null"
	}
	u, err := url.Parse(source)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Host, r.Host)
}
