package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"studyfocus/internal/amqp"
	"studyfocus/internal/auth"
	"studyfocus/internal/backend"
	"studyfocus/internal/cli"
	"studyfocus/internal/config"
	apphttp "studyfocus/internal/http"
	"studyfocus/internal/log"
	"studyfocus/internal/metrics"
	"studyfocus/internal/middleware/ratelimit"
	"studyfocus/internal/services"
	"studyfocus/internal/stats"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg.LogLevel, cfg.LogFormat)

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		cli.Fatal(logger, "Invalid backend configuration", err)
	}
	startupCtx, startupCancel := context.WithTimeout(ctx, 30*time.Second)
	be, err := backend.NewFactory(logger).CreateBackend(startupCtx, backendCfg)
	startupCancel()
	if err != nil {
		cli.Fatal(logger, "Failed to initialize backend", err, "backend", cfg.DataBackend)
	}
	if be.Cleanup != nil {
		defer func() {
			if err := be.Cleanup(); err != nil {
				logger.Error("Backend cleanup failed", log.FieldError, err)
			}
		}()
	}

	verifier, err := newVerifier(ctx, cfg)
	if err != nil {
		cli.Fatal(logger, "Failed to initialize token verifier", err, "auth_mode", cfg.AuthMode)
	}

	var publisher services.EventPublisher
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(ctx, cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPRoutingKey)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, continuing without change events", log.FieldError, err)
		} else {
			logger.Info("Initialized AMQP client", "exchange", cfg.AMQPExchange)
			publisher = client
		}
	}
	records := services.NewRecordService(be.Backend, publisher, logger)
	defer records.Close()

	var m *metrics.Metrics
	statsOpts := []stats.Option{}
	if cfg.MetricsEnabled {
		m = metrics.New()
		statsOpts = append(statsOpts, stats.WithObserver(m))
	}

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Records:  records,
		Stats:    stats.New(be.Backend, statsOpts...),
		Verifier: verifier,
		Pinger:   be.Backend,
		Metrics:  m,
		Logger:   logger,
	}, apphttp.Options{
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		StoreTimeout:       cfg.StoreTimeout,
		EnforceOwner:       cfg.EnforceOwner,
		RateLimit: ratelimit.Config{
			RequestsPerSecond: cfg.RateLimitRPS,
			Burst:             cfg.RateLimitBurst,
		},
	})

	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = cfg.StoreTimeout + 5*time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	if !cfg.EnforceOwner {
		logger.Warn("Owner enforcement disabled, stats and records are scoped by the caller-supplied email")
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting studyfocus server",
			"port", cfg.Port,
			"backend", cfg.DataBackend,
			"auth_mode", cfg.AuthMode)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		}
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", log.FieldError, err)
	}
	logger.Info("Server stopped gracefully")
}

// newVerifier builds the identity verifier once at startup.
func newVerifier(ctx context.Context, cfg *config.Config) (auth.Verifier, error) {
	switch cfg.AuthMode {
	case "jwt":
		return auth.NewHMACVerifier(cfg.JWTSecret), nil
	default:
		return auth.NewFirebaseVerifier(ctx, cfg.FBServiceKey)
	}
}
