package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/vtchat-platform/quotagate/internal/api"
	"github.com/vtchat-platform/quotagate/internal/audit"
	"github.com/vtchat-platform/quotagate/internal/auth"
	"github.com/vtchat-platform/quotagate/internal/config"
	"github.com/vtchat-platform/quotagate/internal/database"
	"github.com/vtchat-platform/quotagate/internal/middleware"
	inats "github.com/vtchat-platform/quotagate/internal/nats"
	"github.com/vtchat-platform/quotagate/internal/ratelimit"
	iredis "github.com/vtchat-platform/quotagate/internal/redis"
	"github.com/vtchat-platform/quotagate/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("loading config", "error", err)
		os.Exit(1)
	}

	setupLogger(cfg.Log)

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// PostgreSQL
	pool, err := database.NewPostgresPool(ctx, cfg.DB)
	if err != nil {
		slog.Error("connecting to postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if cfg.DB.MigrationsPath != "" {
		if err := database.RunMigrations(cfg.DB.DSN(), cfg.DB.MigrationsPath); err != nil {
			slog.Error("running migrations", "error", err)
			os.Exit(1)
		}
	}

	// Redis (edge limiter only; account quotas live in postgres)
	redisClient, err := iredis.NewClient(ctx, cfg.Redis)
	if err != nil {
		slog.Error("connecting to redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()

	// NATS event plane (optional)
	var natsClient *inats.Client
	var publisher *inats.Publisher
	if cfg.NATS.URL != "" {
		natsClient, err = inats.NewClient(ctx, cfg.NATS)
		if err != nil {
			slog.Error("connecting to NATS", "error", err)
			os.Exit(1)
		}
		defer natsClient.Close()
		publisher = inats.NewPublisher(natsClient.JetStream())
	} else {
		slog.Warn("NATS_URL not set, audit events disabled")
	}

	// Auth
	verifier := auth.NewVerifier(cfg.JWT.AccessSecret, cfg.JWT.AccessExpiry)

	// Rate limiting
	rlStore := ratelimit.NewRepository(pool)
	rlTable := ratelimit.TableFromConfig(cfg.RateLimit)
	rlService := ratelimit.NewService(rlStore, rlTable, publisher)
	rlHandler := ratelimit.NewHandler(rlService, cfg.RateLimit.UpgradeURL)

	// Audit trail
	auditRepo := audit.NewRepository(pool)
	auditHandler := audit.NewHandler(auditRepo)

	if natsClient != nil {
		consumerMgr := inats.NewConsumerManager(natsClient.JetStream())
		auditConsumer := audit.NewConsumer(auditRepo, consumerMgr)
		go func() {
			if err := auditConsumer.Start(ctx); err != nil {
				slog.Error("audit consumer stopped", "error", err)
			}
		}()
	}

	edgeLimiter := middleware.NewEdgeLimiter(redisClient, cfg.RateLimit.EdgeMaxRequests, cfg.RateLimit.EdgeWindowSec)

	// Router
	router := api.NewRouter(pool, natsClient, api.RouterConfig{
		CORSAllowedOrigins: cfg.Server.CORSAllowedOrigins,
		EdgeLimiter:        edgeLimiter.Middleware,
	}, api.HandlerSet{
		CheckRateLimit:  rlHandler.Check,
		RecordRequest:   rlHandler.Record,
		RateLimitStatus: rlHandler.Status,

		ListAuditLogs: auditHandler.List,

		AuthMiddleware: auth.Middleware(verifier),
	})

	// Start server
	srv := server.New(cfg.Server, router)
	if err := srv.Start(); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func setupLogger(cfg config.LogConfig) {
	var handler slog.Handler

	opts := &slog.HandlerOptions{}
	switch cfg.Level {
	case "debug":
		opts.Level = slog.LevelDebug
	case "info":
		opts.Level = slog.LevelInfo
	case "warn":
		opts.Level = slog.LevelWarn
	case "error":
		opts.Level = slog.LevelError
	default:
		opts.Level = slog.LevelInfo
	}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}
