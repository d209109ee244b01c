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

	"github.com/joho/godotenv"

	"github.com/TopThisHat/storytopia-api/internal/auth"
	"github.com/TopThisHat/storytopia-api/internal/blob"
	"github.com/TopThisHat/storytopia-api/internal/config"
	"github.com/TopThisHat/storytopia-api/internal/generation"
	"github.com/TopThisHat/storytopia-api/internal/logger"
	"github.com/TopThisHat/storytopia-api/internal/mail"
	"github.com/TopThisHat/storytopia-api/internal/postgres"
	"github.com/TopThisHat/storytopia-api/internal/redis"
	"github.com/TopThisHat/storytopia-api/internal/repository"
	transporthttp "github.com/TopThisHat/storytopia-api/internal/transport/http"
	"github.com/TopThisHat/storytopia-api/internal/usecase"
	"github.com/TopThisHat/storytopia-api/internal/wiki"
)

func main() {
	// Cancelled on SIGINT/SIGTERM; background workers stop with it
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ═══════════════════════════════════════════════
	// Phase 1: Load Configuration
	// ═══════════════════════════════════════════════
	// A .env file is optional; real environment variables win
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Fatalf("💥 failed to read .env: %v", err)
	}

	cfg, err := config.Load(ctx)
	if err != nil {
		log.Fatalf("💥 %v", err)
	}

	// ═══════════════════════════════════════════════
	// Phase 2: Setup Observability
	// ═══════════════════════════════════════════════
	logg := logger.New(cfg.LogLevel, cfg.Environment)
	logg.Info("starting application", "version", cfg.Version, "env", cfg.Environment)

	// The response contract is checked before anything can serve a request
	errorTable, err := transporthttp.NewErrorTable(transporthttp.DefaultErrorMappings())
	if err != nil {
		logg.Fatal("error table is incomplete", "error", err)
	}

	// ═══════════════════════════════════════════════
	// Phase 3: Initialize Infrastructure (Databases, Caches, External Services)
	// ═══════════════════════════════════════════════

	if cfg.AutoMigrate {
		if err := postgres.Migrate(cfg.PostgresDSN, logg); err != nil {
			logg.Fatal("failed to migrate database", "error", err)
		}
	}

	// PostgreSQL connection pool (pgx v5)
	pgPool, err := postgres.NewPgxPool(ctx, cfg, logg)
	if err != nil {
		logg.Fatal("failed to connect to postgres", "error", err)
	}
	defer pgPool.Close()
	logg.Info("✓ postgres connection pool established")

	// Redis for caching and generation slots
	redisClient, err := redis.NewRedisClient(ctx, cfg)
	if err != nil {
		logg.Fatal("failed to connect to redis", "error", err)
	}
	defer redisClient.Close()
	logg.Info("✓ redis client initialized", "addr", cfg.RedisAddr)

	// Image storage
	var (
		images blob.Store
		assets *transporthttp.AssetHandler
	)
	switch cfg.BlobBackend {
	case "s3":
		s3Store, err := blob.NewS3Store(ctx, cfg, logg)
		if err != nil {
			logg.Fatal("failed to initialize s3 store", "error", err)
		}
		images = s3Store
	default:
		baseURL := cfg.PublicAssetURL
		if baseURL == "" {
			baseURL = "http://localhost:" + cfg.Port
		}
		fsStore, err := blob.NewFileSystemStore(cfg.BlobPath, baseURL+"/assets", logg)
		if err != nil {
			logg.Fatal("failed to initialize file system store", "error", err)
		}
		images = fsStore
		assets = transporthttp.NewAssetHandler(fsStore)
	}
	logg.Info("✓ image storage ready", "backend", cfg.BlobBackend)

	// Outbound mail
	var notifier usecase.Notifier = mail.NewLogNotifier(logg)
	if cfg.MailEnabled() {
		smtpNotifier, err := mail.NewSMTPNotifier(cfg, logg)
		if err != nil {
			logg.Fatal("failed to configure mail", "error", err)
		}
		notifier = smtpNotifier
	} else {
		logg.Warn("SMTP_HOST not set, story notifications are only logged")
	}

	// ═══════════════════════════════════════════════
	// Phase 4: Build Dependency Graph (Repositories → Caches → Services → Handlers)
	// ═══════════════════════════════════════════════

	// Repositories (adapters implementing our interfaces)
	userRepo := repository.NewUserRepo(pgPool, logg)
	storyRepo := repository.NewStoryRepo(pgPool, logg)

	// Caches (Redis-backed cache implementations)
	cache := redis.NewCache(redisClient)
	userCache := redis.NewUserCache(cache)
	storyCache := redis.NewStoryCache(cache)

	storyOpts := []usecase.StoryOption{
		usecase.WithNotifier(notifier),
		usecase.WithReferences(wiki.NewClient(cfg.WikipediaURL, cfg.MaxRetries, logg)),
	}
	if cfg.GenerationEnabled() {
		writer := generation.New(cfg, logg)
		storyOpts = append(storyOpts, usecase.WithGeneration(writer, writer, images))
		if cfg.NarrationEnabled() {
			storyOpts = append(storyOpts, usecase.WithNarration(writer, images))
		}
	} else {
		logg.Warn("OPENAI_API_KEY not set, story generation is disabled")
	}

	// Use-cases (business logic orchestrators with cache integration)
	userSvc := usecase.NewUserService(userRepo, storyRepo, userCache, logg)
	storySvc := usecase.NewStoryService(storyRepo, userRepo, storyCache, logg, storyOpts...)

	handlers := transporthttp.Handlers{
		Users:   transporthttp.NewUserHandler(userSvc),
		Stories: transporthttp.NewStoryHandler(storySvc),
		Health: transporthttp.NewHealthHandler(cfg.Version,
			transporthttp.HealthCheck{Name: "postgres", Check: pgPool.Ping},
			transporthttp.HealthCheck{Name: "redis", Check: func(ctx context.Context) error {
				return redisClient.Ping(ctx).Err()
			}},
		),
		Assets: assets,
	}

	logg.Info("✓ services initialized",
		"generation", cfg.GenerationEnabled(),
		"narration", cfg.NarrationEnabled(),
		"mail", cfg.MailEnabled())

	// ═══════════════════════════════════════════════
	// Phase 5: Setup HTTP Transport with Middleware
	// ═══════════════════════════════════════════════

	routerConfig := transporthttp.RouterConfig{
		Logger:             logg,
		Errors:             errorTable,
		Verifier:           auth.NewVerifier(cfg.JWTSecret, cfg.JWTIssuer),
		EnableCORS:         cfg.EnableCORS,
		AllowedOrigins:     cfg.AllowedOrigins,
		RateLimitPerSecond: cfg.RateLimitPerSecond,
		RateLimitBurst:     cfg.RateLimitBurst,
		MaxBodySize:        1 << 20, // 1 MB
		GenerationTimeout:  cfg.GenerationTimeout,
		EnableMetrics:      cfg.EnableMetrics,
	}

	router := transporthttp.NewRouter(ctx, routerConfig, handlers)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	logg.Info("✓ middleware stack configured",
		"cors", cfg.EnableCORS,
		"rate_limit_rps", cfg.RateLimitPerSecond,
		"metrics", cfg.EnableMetrics,
	)

	// ═══════════════════════════════════════════════
	// Phase 6: Start Server with Graceful Shutdown
	// ═══════════════════════════════════════════════

	serveErr := make(chan error, 1)
	go func() {
		logg.Info("🚀 server starting", "addr", srv.Addr, "env", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case err := <-serveErr:
		logg.Fatal("server failed to start", "error", err)
	case <-ctx.Done():
	}
	logg.Info("🛑 shutdown signal received, draining connections...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Gracefully shutdown: finish in-flight requests, then stop
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logg.Error("server shutdown failed", "error", err)
		return
	}

	// Narration started by finished requests still writes to postgres
	logg.Info("waiting for background narration")
	storySvc.Wait()

	logg.Info("✓ server stopped gracefully")
}
