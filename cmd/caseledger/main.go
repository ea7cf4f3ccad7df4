package main

import (
	"context"
	"errors"
	"os"
	"time"

	"caseledger/internal/amqp"
	"caseledger/internal/bot"
	"caseledger/internal/cli"
	"caseledger/internal/ledger"
	"caseledger/internal/ledger/memory"
	"caseledger/internal/service"
	"caseledger/internal/workbook"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger()

	logger.Info("Starting caseledger bot")

	cfg := cli.LoadAndValidateConfig(logger)

	// Choose data backend (default: sqlite).
	var store ledger.Store
	switch cfg.DataBackend {
	case "sqlite":
		repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
		defer repo.Close()
		store = repo
		logger.Info("Initialized SQLite backend", "path", cfg.SQLiteDBPath)
	default:
		store = memory.New()
		logger.Info("Initialized memory backend")
	}

	// AMQP is optional; without it the worker's pending sweep still
	// mirrors sqlite transactions eventually.
	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" && cfg.DataBackend == "sqlite" {
		var err error
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", "error", err)
			os.Exit(1)
		}
		logger.Info("AMQP client initialized", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	} else {
		logger.Info("AMQP disabled")
	}

	wb, err := workbook.New(cfg.ExportDir)
	if err != nil {
		logger.Error("Failed to initialize export workbook", "error", err, "dir", cfg.ExportDir)
		os.Exit(1)
	}

	svc := service.New(store, amqpClient, wb)
	defer svc.Close()

	tgBot, err := bot.New(cfg.BotToken, svc, cfg.HistoryLimit)
	if err != nil {
		logger.Error("Failed to initialize Telegram bot", "error", err)
		os.Exit(1)
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)

	logger.Info("Bot started", "backend", cfg.DataBackend)
	if err := tgBot.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Bot stopped with error", "error", err)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Bot stopped gracefully")
}
