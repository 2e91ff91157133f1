package httpapi

import (
	"context"
	"time"

	"chirp/internal/adapters/httpapi/middleware"
	"chirp/internal/core/feed"
	"chirp/internal/core/post"
	"chirp/internal/core/profile"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// PostUseCase: اینترفیسِ لازم برای کنترلر/روتر (Inbound Port)
type PostUseCase interface {
	CreatePost(ctx context.Context, authorID, content string) (*post.Post, error)
	GetAll(ctx context.Context) ([]feed.Item, error)
	GetByID(ctx context.Context, id string) (*feed.Item, error)
	GetByUserID(ctx context.Context, userID string) ([]feed.Item, error)
}

type ProfileUseCase interface {
	GetUserByUsername(ctx context.Context, username string) (*profile.AuthorProfile, error)
}

type RouterOptions struct {
	JWTSecret   []byte
	CORSOrigins []string
	Logger      *zap.Logger
}

// فقط روتینگ: UseCase از بیرون تزریق می‌شود
func SetupRoutes(postUC PostUseCase, profileUC ProfileUseCase, opts RouterOptions) *gin.Engine {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(logger), cors.New(corsConfig(opts.CORSOrigins)))

	pc := NewPostController(postUC, logger)
	prc := NewProfileController(profileUC, logger)

	api := r.Group("/api")
	api.GET("/posts", pc.GetAll)
	api.GET("/posts/:id", pc.GetByID)
	api.GET("/users/:userId/posts", pc.GetByUserID)
	api.GET("/profiles/:username", prc.GetUserByUsername)

	// مسیر ایجاد پست با JWT Middleware
	api.POST("/posts", middleware.JWTAuthMiddleware(opts.JWTSecret), pc.CreatePost)
	return r
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Retry-After"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
		cfg.AllowCredentials = false
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}
