package main

import (
	"context"
	"errors"
	"os"

	"golang.org/x/sync/errgroup"

	"snowlog/internal/amqp"
	"snowlog/internal/backend"
	"snowlog/internal/cli"
	"snowlog/internal/core"
	applog "snowlog/internal/log"
	"snowlog/internal/records"
	"snowlog/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	cfg, logger := cli.LoadAndValidateConfig()
	logger = logger.WithComponent(applog.ComponentWorker)

	logger.Info("Starting snowlog-worker", applog.FieldOperation, applog.OpStartup)

	ctx, stop := cli.SignalContext(logger)
	defer stop()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", applog.FieldError, err)
		os.Exit(1)
	}
	// The worker reads snapshots written by the server process; a private
	// in-memory medium would always look empty and wipe the sheet.
	if backendCfg.Type == backend.MemoryBackend {
		logger.Error("The worker needs a shared storage medium", "backend", backendCfg.Type)
		os.Exit(1)
	}

	kv, kvCloser, err := backend.OpenKV(backendCfg)
	if err != nil {
		logger.Error("Failed to open storage", applog.FieldError, err, "backend", backendCfg.Type)
		os.Exit(1)
	}
	if kvCloser != nil {
		defer kvCloser.Close()
	}

	mirror, err := backend.NewMirror(ctx, cfg)
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", applog.FieldError, err)
		os.Exit(1)
	}
	if cfg.SheetsEnabled() {
		logger.Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	}

	syncWorker := worker.NewSyncWorker(mirror)
	snapshot := func(ctx context.Context) ([]core.ShiftRecord, error) {
		return records.Load(ctx, kv, backendCfg.StorageKey)
	}

	g, gctx := errgroup.WithContext(ctx)

	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", applog.FieldError, err)
			os.Exit(1)
		}
		defer amqpClient.Close()

		g.Go(func() error {
			return amqpClient.ConsumeRecordSync(gctx, syncWorker.HandleMessage)
		})
	} else {
		logger.Info("AMQP disabled - relying on periodic resync only")
	}

	g.Go(func() error {
		return syncWorker.RunResync(gctx, cfg.ResyncInterval, snapshot)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker stopped with error", applog.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Worker shutdown complete")
}
