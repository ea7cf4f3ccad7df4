package main

import (
	"context"
	"errors"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"caseledger/internal/amqp"
	"caseledger/internal/cli"
	"caseledger/internal/worker"
	"caseledger/internal/workbook"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger()

	logger.Info("Starting caseledger-worker")

	cfg := cli.LoadAndValidateConfig(logger)
	if cfg.DataBackend != "sqlite" {
		logger.Error("Worker requires the sqlite backend", "backend", cfg.DataBackend)
		os.Exit(1)
	}

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	wb, err := workbook.New(cfg.ExportDir)
	if err != nil {
		logger.Error("Failed to initialize export workbook", "error", err, "dir", cfg.ExportDir)
		os.Exit(1)
	}

	syncWorker := worker.NewSyncWorker(repo, wb, cfg.SyncBatchSize)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)

	// On startup, mirror any transactions missed while the worker was down.
	logger.Info("Performing startup sync check...")
	if err := syncWorker.StartupSyncCheck(ctx); err != nil {
		logger.Error("Failed startup sync check", "error", err)
		// Don't exit - continue with normal operation
	}

	g, gctx := errgroup.WithContext(ctx)

	// AMQP is optional; without it the periodic sweep alone keeps the
	// workbook in step.
	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", "error", err)
			os.Exit(1)
		}
		defer amqpClient.Close()

		g.Go(func() error {
			return amqpClient.ConsumeTxSync(gctx, syncWorker.HandleSyncMessage)
		})
	} else {
		logger.Info("AMQP disabled, relying on periodic sweep only")
	}

	g.Go(func() error {
		ticker := time.NewTicker(cfg.SyncInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return gctx.Err()
			case <-ticker.C:
				if err := syncWorker.ProcessPending(gctx); err != nil {
					logger.Error("Periodic sync failed", "error", err)
				}
			}
		}
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker stopped with error", "error", err)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped gracefully")
}
