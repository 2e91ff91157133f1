package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	dbadapter "chirp/internal/adapters/database"
	"chirp/internal/adapters/httpapi"
	"chirp/internal/adapters/identity"
	"chirp/internal/adapters/memory"
	redisadapter "chirp/internal/adapters/redis"
	"chirp/internal/adapters/web"
	"chirp/internal/config"
	postapp "chirp/internal/core/post/service"
	profileapp "chirp/internal/core/profile/service"
	postPort "chirp/internal/ports/post"
	profilePort "chirp/internal/ports/profile"
	"chirp/internal/ports/ratelimit"
	"chirp/internal/workers"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func main() {
	cfg, err := config.Load() // بارگذاری تنظیمات از .env
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger, err := config.NewLogger(cfg)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// اتصال به دیتابیس و اجرای مایگریشن‌ها
	var postRepo postPort.PostRepository
	var db *gorm.DB
	if cfg.DBDriver == "memory" {
		postRepo = memory.NewPostRepositoryMemory()
		logger.Warn("using in-memory post store, posts are lost on restart")
	} else {
		var err error
		db, err = config.InitDB(cfg, logger)
		if err != nil {
			return err
		}
		repo := dbadapter.NewPostRepositoryDatabase(db)
		if err := repo.Migrate(ctx); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		logger.Info("Database migrations completed")
		postRepo = repo
	}

	// اتصال به Redis
	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		var err error
		redisClient, err = config.InitRedis(ctx, cfg, logger)
		if err != nil {
			return err
		}
	}

	// بستن منابع بعد از اتمام کار سرور
	defer closeResources(logger, db, redisClient)

	directory, err := newDirectory(cfg, logger)
	if err != nil {
		return err
	}

	var profileCache profilePort.Cache
	var limiter ratelimit.Limiter
	if redisClient != nil {
		profileCache = redisadapter.NewProfileCacheRedis(redisClient, logger)
		limiter = redisadapter.NewFixedWindowLimiter(redisClient, cfg.PostRateLimit, cfg.PostRateWindow)
	} else {
		limiter = memory.NewLimiter(cfg.PostRateLimit, cfg.PostRateWindow)
	}

	resolver := profileapp.NewProfileResolver(directory, profileCache, profileapp.ResolverOptions{
		BatchSize: 100,
		CacheTTL:  cfg.ProfileCacheTTL,
	}, logger)
	postSvc := postapp.NewPostService(postRepo, resolver, limiter, logger) // یوزکیس/سرویس
	profileSvc := profileapp.NewProfileService(resolver)                   // یوزکیس/سرویس

	gin.SetMode(cfg.GinMode)
	r := httpapi.SetupRoutes(postSvc, profileSvc, httpapi.RouterOptions{ // تزریق یوزکیس به آداپتر ورودی
		JWTSecret:   cfg.JWTSecret,
		CORSOrigins: cfg.CORSOrigins,
		Logger:      logger,
	})
	pages, err := web.NewPages(postSvc, profileSvc, web.Options{
		JWTSecret:  cfg.JWTSecret,
		CacheSize:  cfg.PageCacheSize,
		Revalidate: cfg.PageRevalidate,
		Logger:     logger,
	})
	if err != nil {
		return err
	}
	pages.Register(r)

	prerender := workers.NewPrerenderWorker(pages, resolver, 256, logger)
	postSvc.OnCreated(prerender)
	go prerender.Run(ctx)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("App is running...", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func newDirectory(cfg *config.Config, logger *zap.Logger) (profilePort.Directory, error) {
	if cfg.IdentityBaseURL == "" {
		logger.Info("using identity fixtures", zap.String("path", cfg.IdentityFixtures))
		return identity.LoadFixtures(cfg.IdentityFixtures)
	}
	return identity.NewClient(identity.ClientConfig{
		BaseURL:           cfg.IdentityBaseURL,
		SecretKey:         cfg.IdentitySecretKey,
		Batch:             cfg.IdentityBatch,
		Concurrency:       cfg.IdentityConcurrency,
		RequestsPerSecond: cfg.IdentityRPS,
	}, logger)
}

// closeResources بستن اتصالات به Redis و دیتابیس
func closeResources(logger *zap.Logger, db *gorm.DB, redisClient *redis.Client) {
	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			logger.Error("Error closing Redis connection", zap.Error(err))
		}
	}
	if db == nil {
		return
	}
	sqlDB, err := db.DB() // گرفتن *sql.DB از *gorm.DB
	if err != nil {
		logger.Error("Error getting raw DB", zap.Error(err))
		return
	}
	if err := sqlDB.Close(); err != nil {
		logger.Error("Error closing database connection", zap.Error(err))
	}
}
