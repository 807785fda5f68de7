package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ericfisherdev/leadenrich/internal/adapter/driven/clearbit"
	githubadapter "github.com/ericfisherdev/leadenrich/internal/adapter/driven/github"
	"github.com/ericfisherdev/leadenrich/internal/adapter/driven/hunter"
	"github.com/ericfisherdev/leadenrich/internal/adapter/driven/ratelimit"
	"github.com/ericfisherdev/leadenrich/internal/adapter/driven/synthetic"
	"github.com/ericfisherdev/leadenrich/internal/adapter/driven/telemetry"
	httphandler "github.com/ericfisherdev/leadenrich/internal/adapter/driving/http"
	"github.com/ericfisherdev/leadenrich/internal/application"
	"github.com/ericfisherdev/leadenrich/internal/config"
	"github.com/ericfisherdev/leadenrich/internal/domain/port/driven"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(parent context.Context) error {
	// 1. Load configuration (fail fast on invalid env vars).
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	logger.Info("config loaded",
		"listen_addr", cfg.ListenAddr,
		"env", cfg.Env,
		"db_driver", cfg.DBDriver,
		"provider_order", cfg.ProviderOrder,
		"rate_limit_max", cfg.RateLimitMax,
		"rate_limit_window", cfg.RateLimitWindow,
	)

	// 2. Setup signal-based context (SIGINT, SIGTERM).
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 3. Open database and run migrations.
	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := st.close(); closeErr != nil {
			logger.Error("error closing database", "error", closeErr)
		}
	}()

	// 4. Metrics.
	tel, err := telemetry.Setup(cfg.MetricsExporter)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			logger.Error("error shutting down telemetry", "error", err)
		}
	}()

	// 5. Rate limiter (shared through Redis when configured).
	limiter, closeLimiter, err := newLimiter(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeLimiter()

	// 6. Wire services.
	enrichSvc := application.NewEnrichService(
		st.cache,
		buildProviders(cfg, logger),
		synthetic.New(),
		application.EnrichConfig{CacheTTL: cfg.CacheTTL, ProviderTimeout: cfg.ProviderTimeout},
		tel.Metrics,
		logger,
	)
	gate := application.NewAccessGate(st.accounts, limiter, logger)
	keySvc := application.NewKeyService(st.accounts, st.usage)
	recorder := application.NewUsageRecorder(st.usage, application.DefaultUsageBuffer, logger)

	recorderCtx, stopRecorder := context.WithCancel(context.WithoutCancel(ctx))
	recorderDone := make(chan struct{})
	go func() {
		recorder.Run(recorderCtx)
		close(recorderDone)
	}()

	// 7. HTTP server.
	handler := httphandler.NewHandler(enrichSvc, gate, keySvc, recorder, httphandler.Options{
		AdminToken:      cfg.AdminToken,
		Development:     cfg.IsDevelopment(),
		RateLimitMax:    cfg.RateLimitMax,
		RateLimitWindow: cfg.RateLimitWindow,
		Ping:            st.ping,
		Metrics:         tel.Handler,
	}, logger)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           httphandler.NewServeMux(handler, logger),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      cfg.ProviderTimeout*time.Duration(len(cfg.ProviderOrder)+1) + 10*time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("http server starting", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	if cfg.AdminToken == "" {
		logger.Warn("LEADENRICH_ADMIN_TOKEN not set, admin API disabled")
	}
	logger.Info("leadenrich started", "listen_addr", cfg.ListenAddr, "sources", enrichSvc.Sources())

	// 8. Wait for shutdown signal or a listener failure.
	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-serveErr:
	}
	logger.Info("shutting down")

	// 9. Graceful shutdown: drain HTTP, then flush usage and last-used stamps.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}

	stopRecorder()
	<-recorderDone
	gate.Wait()

	logger.Info("shutdown complete")
	return runErr
}

// buildProviders creates the provider chain in configured order. Each
// provider is wrapped in a circuit breaker.
func buildProviders(cfg *config.Config, logger *slog.Logger) []driven.Provider {
	httpClient := &http.Client{Timeout: cfg.ProviderTimeout}

	byName := map[string]driven.Provider{
		hunter.Name:        hunter.NewClient(cfg.HunterAPIKey, httpClient),
		clearbit.Name:      clearbit.NewClient(cfg.ClearbitAPIKey, httpClient),
		githubadapter.Name: githubadapter.NewClient(cfg.GitHubToken, logger),
	}

	providers := make([]driven.Provider, 0, len(cfg.ProviderOrder))
	for _, name := range cfg.ProviderOrder {
		p, ok := byName[name]
		if !ok {
			continue
		}
		logger.Info("provider registered", "provider", name, "configured", p.Configured())
		providers = append(providers, application.NewBreakerProvider(p, application.BreakerConfig{}, logger))
	}
	return providers
}

// newLimiter returns the Redis limiter when configured, else the in-process one.
func newLimiter(ctx context.Context, cfg *config.Config, logger *slog.Logger) (driven.RateLimiter, func(), error) {
	if !cfg.UseRedis() {
		mem := ratelimit.NewMemory(cfg.RateLimitMax, cfg.RateLimitWindow)
		logger.Info("rate limiter ready", "backend", "memory")
		return mem, mem.Close, nil
	}

	rl, err := ratelimit.NewRedis(ctx, ratelimit.RedisConfig{
		Address:  cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}, cfg.RateLimitMax, cfg.RateLimitWindow, logger)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("rate limiter ready", "backend", "redis", "addr", cfg.RedisAddr)

	return rl, func() {
		if err := rl.Close(); err != nil {
			logger.Error("error closing redis", "error", err)
		}
	}, nil
}
