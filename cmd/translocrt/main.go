package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"translocrt/internal/cache"
	"translocrt/internal/config"
	"translocrt/internal/feed"
	"translocrt/internal/handler"
	"translocrt/internal/httpcache"
	"translocrt/internal/middleware"
	"translocrt/internal/schedule"
	"translocrt/pkg/transloc"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("starting translocrt server",
		"log_level", cfg.LogLevel.String(),
		"http_addr", cfg.HTTPAddr,
		"feeds_base_url", cfg.FeedsBaseURL,
		"gtfs_base_url", cfg.GTFSBaseURL,
		"agency_timezone", cfg.AgencyTimezone,
		"redis_enabled", cfg.RedisEnabled,
	)

	var redisCache *cache.RedisCache
	if cfg.RedisEnabled {
		var err error
		redisCache, err = cache.NewRedisCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, logger)
		if err != nil {
			logger.Error("failed to connect to Redis", "error", err)
			logger.Warn("continuing without Redis cache")
			redisCache = nil
		} else {
			logger.Info("connected to Redis", "addr", cfg.RedisAddr)
		}
	}

	zipCache := httpcache.New(cfg.ZipCacheEntries, cfg.ZipCacheMaxAge, cfg.RedisTTL, cfg.UpstreamTimeout, redisCache, logger)
	client := transloc.New(cfg.FeedsBaseURL, cfg.GTFSBaseURL, zipCache, cfg.UpstreamTimeout, logger)
	loader := schedule.NewLoader(client, cfg.Location, logger)
	builder := feed.NewBuilder(client, loader, logger)

	rateLimiter := middleware.NewRateLimiter(cfg.RateLimitPerWindow, cfg.RateLimitWindow, cfg.RateLimitWhitelist, logger)

	feedHandler := handler.NewFeedHandler(builder, logger)
	healthHandler := handler.NewHealthHandler()
	statsHandler := handler.NewStatsHandler(zipCache, rateLimiter)

	mux := http.NewServeMux()

	mux.HandleFunc("GET /rt/{agency_id}/{agency_code}", feedHandler.GetFeed)

	mux.HandleFunc("GET /healthz", healthHandler.Healthz)
	mux.HandleFunc("GET /readyz", healthHandler.Readyz)
	mux.HandleFunc("GET /stats", statsHandler.GetStats)

	// Middleware chain: CORS -> Gzip -> RateLimit -> Handler
	finalHandler := handler.CORSMiddleware(
		handler.GzipMiddleware(
			rateLimiter.Middleware(mux),
		),
	)

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      finalHandler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	go func() {
		logger.Info("starting HTTP server", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}

	if redisCache != nil {
		if err := redisCache.Close(); err != nil {
			logger.Error("Redis close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
