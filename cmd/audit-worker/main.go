package main

import (
	"context"
	"errors"
	"os"
	"time"

	"cuentas/internal/amqp"
	"cuentas/internal/cli"
	applog "cuentas/internal/log"
	"cuentas/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(applog.ComponentWorker)

	logger.Info("Starting audit-worker")

	cfg := cli.LoadAndValidateConfig(logger)
	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the audit worker")
		os.Exit(1)
	}

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	auditWorker := worker.NewAuditWorker(repo, repo)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	consumeDone := make(chan error, 1)
	go func() {
		consumeDone <- amqpClient.ConsumeRecordEvents(ctx, func(event *amqp.RecordEvent) error {
			return auditWorker.HandleEvent(ctx, event)
		})
	}()

	shutdownCtx, done := cli.GracefulShutdown(logger, 30*time.Second, func() {
		cancel()
		if err := amqpClient.Close(); err != nil {
			logger.Error("AMQP close error", "error", err)
		}
	})

	select {
	case err := <-consumeDone:
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Event consumption failed", "error", err)
			os.Exit(1)
		}
		logger.Info("Event consumption stopped")
	case <-shutdownCtx.Done():
		cli.WaitForShutdown(shutdownCtx, done)
	}

	logger.Info("Audit worker shutdown complete")
}
