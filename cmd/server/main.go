// ============================================================================
// MAIN.GO - APPLICATION ENTRY POINT
// ============================================================================
// Startup flow:
// config → logger → error reporting → link store → cache → services → router
// → HTTP server → graceful shutdown
//
// Every dependency is built here and handed down through constructors.
// ============================================================================

package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"shortlinks/internal/config"
	"shortlinks/internal/device"
	"shortlinks/internal/geo"
	httpHandler "shortlinks/internal/handler/http"
	"shortlinks/internal/ratelimit"
	"shortlinks/internal/repository"
	"shortlinks/internal/repository/local"
	"shortlinks/internal/repository/memory"
	"shortlinks/internal/repository/postgres"
	redisCache "shortlinks/internal/repository/redis"
	"shortlinks/internal/service"
	"shortlinks/internal/shortcode"
	"shortlinks/pkg/logger"

	"github.com/getsentry/sentry-go"
	sentryhttp "github.com/getsentry/sentry-go/http"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

func main() {
	// ========================================================================
	// STEP 1: LOAD CONFIGURATION
	// ========================================================================
	// Environment variables, optionally preloaded from .env
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// ========================================================================
	// STEP 2: INITIALIZE STRUCTURED LOGGER
	// ========================================================================
	appLogger := logger.New(cfg.App.LogLevel, logger.WithFile(logger.FileConfig{
		Path:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	}))
	defer appLogger.Close()

	appLogger.Info("Starting link shortener",
		"environment", cfg.App.Environment,
		"port", cfg.Server.Port,
		"store", cfg.Store.Driver,
	)

	// ========================================================================
	// STEP 3: ERROR REPORTING (optional)
	// ========================================================================
	var wrap func(http.Handler) http.Handler
	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			Environment:      cfg.App.Environment,
			TracesSampleRate: 0.1,
		}); err != nil {
			appLogger.Error("Sentry initialization failed", "error", err)
		} else {
			defer sentry.Flush(2 * time.Second)
			// sentryhttp only attaches a hub to each request; handler panics
			// are recovered and reported by the router's recovery middleware
			wrap = sentryhttp.New(sentryhttp.Options{Repanic: true}).Handle
			appLogger.Info("Error reporting enabled")
		}
	}

	ctx := context.Background()

	// ========================================================================
	// STEP 4: LINK STORE
	// ========================================================================
	// Postgres in production; the in-memory store for local runs and demos
	repo, closeStore, err := openStore(ctx, cfg, appLogger)
	if err != nil {
		appLogger.Error("Failed to open link store", "error", err)
		log.Fatalf("Link store unavailable: %v", err)
	}
	defer closeStore()

	// ========================================================================
	// STEP 5: CACHE AND RATE LIMITER
	// ========================================================================
	// Redis serves both; when it is disabled or down we fall back to an
	// in-process cache and run without rate limiting
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = redisCache.InitRedis(ctx, cfg.Redis.RedisAddr(), cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			appLogger.Warn("Redis unavailable, using in-process cache", "error", err)
			redisClient = nil
		} else {
			defer redisClient.Close()
			appLogger.Info("Redis connection established", "addr", cfg.Redis.RedisAddr())
		}
	}

	cache, err := openCache(redisClient, cfg.Redis.CacheTTL)
	if err != nil {
		log.Fatalf("Cache initialization failed: %v", err)
	}

	var limiter httpHandler.RateLimiter
	if redisClient != nil && cfg.App.RateLimitEnabled {
		limiter = ratelimit.NewFixedWindowLimiter(redisClient, cfg.App.RateLimitPerMinute, time.Minute)
		appLogger.Info("Rate limiting enabled", "requests_per_minute", cfg.App.RateLimitPerMinute)
	}

	// ========================================================================
	// STEP 6: GEOLOCATION
	// ========================================================================
	var locator geo.Locator = geo.Nop{}
	if cfg.GeoIPPath != "" {
		mm, err := geo.OpenMaxMind(cfg.GeoIPPath)
		if err != nil {
			appLogger.Warn("GeoIP database unavailable, locations will not be recorded", "path", cfg.GeoIPPath, "error", err)
		} else {
			defer mm.Close()
			locator = mm
		}
	}

	// ========================================================================
	// STEP 7: DEPENDENCY INJECTION - BUILD THE DEPENDENCY GRAPH
	// ========================================================================
	// Store → Allocator → Services → Handler
	allocator := shortcode.NewAllocator(repo, cfg.App.ShortCodeLength, cfg.App.AllocationMaxAttempts)
	linkService := service.NewLinkService(repo, cache, allocator, cfg.App.InsertMaxAttempts, appLogger)
	clickRecorder := service.NewClickRecorder(repo, cache, locator, device.NewClassifier(), appLogger)

	handler := httpHandler.NewHandler(linkService, clickRecorder, repo, appLogger, cfg.Server.BaseURL)
	auth := httpHandler.NewAuthenticator(cfg.Auth.JWTSecret)

	// ========================================================================
	// STEP 8: ROUTES AND MIDDLEWARE
	// ========================================================================
	opts := httpHandler.RouterOptions{
		Logger:     appLogger,
		Limiter:    limiter,
		CORSOrigin: cfg.Server.CORSOrigin,
		StaticDir:  cfg.Server.StaticDir,
		Wrap:       wrap,

		TrustedProxies: cfg.Server.TrustedProxies,
	}
	if cfg.App.EnableMetrics {
		opts.Metrics = promhttp.Handler()
	}

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      httpHandler.NewRouter(handler, auth, opts),
		ReadTimeout:  cfg.Server.ReadTimeout,  // Default: 10s
		WriteTimeout: cfg.Server.WriteTimeout, // Default: 10s
		IdleTimeout:  cfg.Server.IdleTimeout,  // Default: 120s
	}

	// ========================================================================
	// STEP 9: START SERVER IN BACKGROUND (GOROUTINE)
	// ========================================================================
	serverErr := make(chan error, 1)
	go func() {
		appLogger.Info("Server starting", "address", server.Addr, "base_url", cfg.Server.BaseURL)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// ========================================================================
	// STEP 10: GRACEFUL SHUTDOWN
	// ========================================================================
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		appLogger.Info("Shutting down server...", "signal", sig.String())
	case err := <-serverErr:
		appLogger.Error("Server failed", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("Server forced to shutdown", "error", err)
		return
	}

	appLogger.Info("Server exited gracefully")
}

// openStore builds the configured link store and returns its cleanup func
func openStore(ctx context.Context, cfg *config.Config, log *logger.Logger) (repository.LinkRepository, func(), error) {
	if cfg.Store.Driver == config.DriverMemory {
		log.Warn("Using in-memory link store, data is lost on restart")
		return memory.NewLinkRepository(), func() {}, nil
	}

	db, err := postgres.InitDB(ctx,
		cfg.Database.DatabaseDSN(),
		cfg.Database.MaxConns,
		cfg.Database.MinConns,
		cfg.Database.ConnMaxLifetime,
	)
	if err != nil {
		return nil, nil, err
	}

	if err := postgres.Migrate(ctx, db); err != nil {
		db.Close()
		return nil, nil, err
	}
	log.Info("Database connection established")

	return postgres.NewLinkRepository(db), db.Close, nil
}

// openCache prefers Redis and falls back to bigcache
func openCache(client *redis.Client, ttl time.Duration) (service.Cache, error) {
	if client != nil {
		return redisCache.NewCache(client, ttl), nil
	}

	cache, err := local.NewCache(ttl)
	if err != nil {
		return nil, err
	}
	return cache, nil
}
