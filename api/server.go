package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"portwarden/config"
	_ "portwarden/docs"
	"portwarden/scanner"
)

const shutdownTimeout = 10 * time.Second

// NewRouter wires middleware, the versioned scan routes, health and swagger.
func NewRouter(store TaskStore, limiter redis.Cmdable, cfg *config.Config, logger *slog.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), RequestLoggingMiddleware(logger), SecurityHeadersMiddleware())

	srv := NewServer(store, logger)
	router.GET("/healthz", srv.healthHandler)
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	v1 := router.Group("/api/v1")
	v1.Use(AuthMiddleware(cfg.APIKey, logger))
	if limiter != nil {
		v1.Use(RateLimitMiddleware(limiter, cfg.RateLimit, cfg.RateWindow, logger))
	}
	srv.RegisterRoutes(v1)
	return router
}

// Run connects to Redis, starts the task workers and serves HTTP until ctx
// is cancelled, then drains in-flight requests and workers.
func Run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	if err := cfg.ValidateServe(); err != nil {
		return err
	}

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to redis at %s: %w", cfg.RedisAddr, err)
	}
	store := NewRedisStore(redisClient)

	var probes *scanner.ProbeCache
	if cfg.ProbesFile != "" {
		cache, stats, err := scanner.LoadProbesFile(cfg.ProbesFile)
		if err != nil {
			return fmt.Errorf("failed to load probes: %w", err)
		}
		if len(stats.ErrorLines) > 0 {
			logger.Warn("probe loader skipped malformed lines", "count", len(stats.ErrorLines))
		}
		logger.Info("service probes loaded", "probes", stats.Probes, "matches", stats.Matches)
		probes = cache
	}

	gin.SetMode(gin.ReleaseMode)
	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           NewRouter(store, redisClient, cfg, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	workerCtx, stopWorkers := context.WithCancel(ctx)
	defer stopWorkers()
	waitWorkers := StartWorkers(workerCtx, store, WorkerConfig{
		Concurrency:    cfg.ScanConcurrency,
		ConnectTimeout: cfg.ScanTimeout,
		Probes:         probes,
		Logger:         logger,
	}, cfg.Workers)

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("starting API server", "addr", cfg.ListenAddr, "workers", cfg.Workers)
		serveErr <- httpServer.ListenAndServe()
	}()

	var err error
	select {
	case err = <-serveErr:
	case <-ctx.Done():
		logger.Info("shutting down API server")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		err = httpServer.Shutdown(shutdownCtx)
		cancel()
	}

	stopWorkers()
	waitWorkers()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
