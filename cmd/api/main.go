// Package main is the entrypoint for the keyvend API server.
package main

import (
	"context"
	"log/slog"
	"net/url"
	"os"
	"strings"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/keyvend/keyvend/internal/cache"
	"github.com/keyvend/keyvend/internal/config"
	"github.com/keyvend/keyvend/internal/entitlement"
	"github.com/keyvend/keyvend/internal/handler"
	"github.com/keyvend/keyvend/internal/metrics"
	"github.com/keyvend/keyvend/internal/middleware"
	"github.com/keyvend/keyvend/internal/model"
	"github.com/keyvend/keyvend/internal/server"
	"github.com/keyvend/keyvend/internal/service"
	"github.com/keyvend/keyvend/internal/store"
	"github.com/keyvend/keyvend/internal/telegram"
	"github.com/keyvend/keyvend/internal/ton"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := initLogger(cfg)

	// Snapshot storage: Postgres when configured, JSON file otherwise.
	var backend store.Backend
	if cfg.DatabaseURL != "" {
		pg, err := store.NewPostgresBackend(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to connect to database",
				slog.String("error", sanitizeError(err, cfg.DatabaseURL)),
				slog.String("database_url", redactURL(cfg.DatabaseURL)),
			)
			os.Exit(1)
		}
		defer pg.Close()
		logger.Info("snapshot store backed by Postgres")
		backend = pg
	} else {
		backend = store.NewFileBackend(cfg.SnapshotPath)
		logger.Info("snapshot store backed by file", "path", cfg.SnapshotPath)
	}
	st := store.New(backend, logger)

	// Redis is optional: without it auth and membership lookups just
	// skip their caches.
	var cacheClient *cache.Cache
	if cfg.RedisURL != "" {
		cacheClient, err = cache.New(ctx, cfg.RedisURL)
		if err != nil {
			logger.Error("failed to connect to Redis",
				slog.String("error", sanitizeError(err, cfg.RedisURL)),
				slog.String("redis_url", redactURL(cfg.RedisURL)),
			)
			os.Exit(1)
		}
		defer cacheClient.Close()
		logger.Info("connected to Redis")
	}

	communities, err := cfg.GetCommunityIDs()
	if err != nil {
		logger.Error("invalid community configuration", "error", err)
		os.Exit(1)
	}
	tokens, err := cfg.GetServiceTokens()
	if err != nil {
		logger.Error("invalid service token configuration", "error", err)
		os.Exit(1)
	}
	if len(tokens) == 0 {
		logger.Warn("no service tokens configured, all API requests will be rejected")
	}

	metricsRecorder := metrics.NewInMemory()

	tg := telegram.NewClient(cfg.BotToken, logger)
	var oracle entitlement.MembershipOracle = tg
	if cacheClient != nil {
		oracle = cache.NewCachedOracle(tg, cacheClient, cfg.MembershipCacheTTL, logger, metricsRecorder)
	}
	calc := entitlement.NewCalculator(oracle, communities, cfg.KeysPerCommunity, logger, metricsRecorder)

	keyService := service.NewKeyService(st, calc, cfg.KeyValidity, logger, metricsRecorder)
	adminService := service.NewAdminService(st, tg, logger)

	tonClient := ton.NewClient(cfg.WalletAddress, logger,
		ton.WithBaseURL(cfg.TonAPIBaseURL),
		ton.WithAPIKey(cfg.TonAPIKey),
	)
	paymentService := service.NewPaymentService(st, calc, tg, service.PaymentConfig{
		Checker: tonClient,
		Target:  ton.NewWallet(cfg.WalletAddress),
		Amount:  cfg.PaymentAmountTON,
	}, logger, metricsRecorder)

	r := setupRouter(st, cacheClient, keyService, adminService, paymentService, metricsRecorder, tokens, logger)

	srv := server.New(
		r,
		cfg.AppPort,
		cfg.ReadTimeout,
		cfg.WriteTimeout,
		cfg.ShutdownTimeout,
		logger,
	)

	// Background payment sweeps run until shutdown.
	pollCtx, stopPoller := context.WithCancel(ctx)
	poller := service.NewPoller(paymentService, cfg.PaymentPoll, logger)
	go poller.Run(pollCtx)
	srv.OnShutdown("payment-poller", func(ctx context.Context) error {
		stopPoller()
		return nil
	})

	logger.Info("starting server",
		"port", cfg.AppPort,
		"env", cfg.AppEnv,
		"communities", len(communities),
	)

	if err := srv.Run(); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

// initLogger initializes the slog logger based on configuration.
func initLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}

	var h slog.Handler
	if cfg.LogFormat == "json" {
		h = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		h = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(h)
	slog.SetDefault(logger)
	return logger
}

// parseLogLevel converts string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// setupRouter configures the chi router with all routes and middleware.
func setupRouter(
	st *store.Store,
	cacheClient *cache.Cache,
	keyService *service.KeyService,
	adminService *service.AdminService,
	paymentService *service.PaymentService,
	metricsRecorder metrics.Snapshotter,
	tokens []model.ServiceToken,
	logger *slog.Logger,
) *chi.Mux {
	healthHandler := newHealthHandler(st, cacheClient)
	keyHandler := handler.NewKeyHandler(logger, st, keyService)
	adminHandler := handler.NewAdminHandler(logger, adminService)
	paymentHandler := handler.NewPaymentHandler(logger, paymentService)
	metricsHandler := handler.NewMetricsHandler(metricsRecorder)

	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recoverer(logger))

	// Unauthenticated operational endpoints
	r.Get("/healthz", healthHandler.Healthz)
	r.Get("/readyz", healthHandler.Readyz)
	r.Get("/metrics", metricsHandler.Metrics)

	authCfg := middleware.AuthConfig{
		Logger: logger,
		Tokens: tokens,
		Cache:  cacheClient,
	}

	// API v1 routes (require a service token)
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(authCfg))

		r.With(middleware.RequireWrite()).Post("/users", keyHandler.RegisterUser)
		r.Route("/users/{user_id}", func(r chi.Router) {
			r.With(middleware.RequireWrite()).Post("/keys", keyHandler.IssueKey)
			r.With(middleware.RequireRead()).Get("/keys", keyHandler.ListKeys)
			r.With(middleware.RequireRead()).Get("/limit", keyHandler.Limit)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireAdmin())
			r.Post("/users/find", adminHandler.FindUser)
			r.Put("/users/{user_id}/limit", adminHandler.SetManualLimit)
		})

		r.Route("/payments", func(r chi.Router) {
			r.With(middleware.RequireWrite()).Post("/", paymentHandler.CreatePayment)
			r.With(middleware.RequireWrite()).Post("/{reference}/check", paymentHandler.CheckPayment)
		})
	})

	r.NotFound(handler.NotFound)
	r.MethodNotAllowed(handler.MethodNotAllowed)

	return r
}

// newHealthHandler avoids handing a typed-nil cache to the handler.
func newHealthHandler(st *store.Store, cacheClient *cache.Cache) *handler.HealthHandler {
	if cacheClient == nil {
		return handler.NewHealthHandler(st, nil)
	}
	return handler.NewHealthHandler(st, cacheClient)
}

func redactURL(raw string) string {
	if raw == "" {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "[redacted]"
	}

	if parsed.User != nil {
		username := parsed.User.Username()
		if username == "" {
			parsed.User = url.User("redacted")
		} else {
			parsed.User = url.User(username)
		}
	}

	return parsed.String()
}

func sanitizeError(err error, secrets ...string) string {
	if err == nil {
		return ""
	}

	msg := err.Error()
	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		redacted := redactURL(secret)
		if redacted == "" {
			redacted = "[redacted]"
		}
		msg = strings.ReplaceAll(msg, secret, redacted)
	}
	return msg
}
