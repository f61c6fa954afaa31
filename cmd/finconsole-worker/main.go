package main

import (
	"context"
	"errors"
	"os"
	"time"

	"finconsole/internal/amqp"
	"finconsole/internal/backend"
	"finconsole/internal/cli"
	applog "finconsole/internal/log"
	"finconsole/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig(cli.BootstrapLogger())
	logger := cli.SetupLogger(cfg, applog.ComponentWorker)
	logger.Info("Starting finconsole-worker", "ledger", cfg.LedgerBackend)

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)

	ledger, err := backend.NewFactory(logger).Ledger(ctx, cfg)
	if err != nil {
		logger.Error("Failed to initialize ledger", applog.FieldError, err, "ledger", cfg.LedgerBackend)
		os.Exit(1)
	}

	ledgerWorker := worker.NewLedgerWorker(repo, ledger, cfg.LedgerBatchSize)

	logger.Info("Performing startup ledger sweep")
	if n, err := ledgerWorker.ProcessPending(ctx); err != nil {
		logger.Error("Startup ledger sweep failed", applog.FieldError, err)
	} else {
		logger.Info("Startup ledger sweep completed", "synced", n)
	}

	scheduler, err := worker.NewScheduler(ctx, cfg.LedgerSweepSchedule, ledgerWorker, repo.PurgeExpiredSessions)
	if err != nil {
		logger.Error("Invalid sweep schedule", applog.FieldError, err)
		os.Exit(1)
	}
	scheduler.Start()

	if cfg.AMQPEnabled() {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("AMQP unavailable, relying on the scheduled sweep", applog.FieldError, err)
		} else {
			defer amqpClient.Close()
			go func() {
				if err := amqpClient.ConsumeAuditEvents(ctx, ledgerWorker.HandleAuditMessage); err != nil && !errors.Is(err, context.Canceled) {
					logger.Error("Message consumption failed", applog.FieldError, err)
				}
			}()
			logger.Info("Consuming audit events", "queue", cfg.AMQPQueue)
		}
	} else {
		logger.Info("AMQP disabled, relying on the scheduled sweep", "schedule", cfg.LedgerSweepSchedule)
	}

	cli.WaitForShutdown(ctx, done)

	stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	scheduler.Stop(stopCtx)
	logger.Info("Worker stopped gracefully")
}
