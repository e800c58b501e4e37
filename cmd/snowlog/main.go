package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"snowlog/internal/backend"
	"snowlog/internal/cli"
	apphttp "snowlog/internal/http"
	applog "snowlog/internal/log"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cli.LoadEnvFile()
	cfg, logger := cli.LoadAndValidateConfig()

	ctx, stop := cli.SignalContext(logger)
	defer stop()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", applog.FieldError, err)
		os.Exit(1)
	}

	result, err := backend.NewFactory(logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		logger.Error("Failed to initialize backend", applog.FieldError, err, "backend", backendCfg.Type)
		os.Exit(1)
	}
	defer func() {
		if err := result.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", applog.FieldError, err)
		}
	}()

	srv := apphttp.NewServer(":"+cfg.Port, result.Service, apphttp.Options{
		AuthToken:          cfg.AuthToken,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		Ready:              readiness(result),
		Logger:             logger,
	})
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting snowlog server",
			applog.FieldOperation, applog.OpStartup,
			"port", cfg.Port,
			"backend", backendCfg.Type,
			"auth", cfg.AuthToken != "",
			"sync", cfg.AMQPURL != "")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server error", applog.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}

// readiness pings the storage medium when it supports it.
func readiness(result *backend.BackendResult) func(context.Context) error {
	pinger, ok := result.KV.(interface{ Ping(context.Context) error })
	if !ok {
		return nil
	}
	return pinger.Ping
}
