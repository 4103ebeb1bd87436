package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"payment-settlement/internal/config"
	"payment-settlement/internal/gateway"
	"payment-settlement/internal/queue"
	"payment-settlement/internal/redis"
	"payment-settlement/internal/settlement"
	"payment-settlement/internal/transaction"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	if err := cfg.RequireProcessor(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	store, closeStore, err := newStore(ctx, cfg)
	if err != nil {
		slog.Error("failed to open transaction store", "error", err)
		os.Exit(1)
	}
	defer closeStore()

	redisClient := redis.NewClient(cfg.RedisAddr)
	defer redisClient.Close()

	gw := gateway.NewClient(gateway.Config{
		TokenURL:     cfg.ProcessorTokenURL,
		ChargeURL:    cfg.ProcessorChargeURL,
		Username:     cfg.ProcessorUsername,
		Password:     cfg.ProcessorPassword,
		ClientID:     cfg.ProcessorClientID,
		ClientSecret: cfg.ProcessorClientSecret,
		Timeout:      cfg.ProcessorTimeout,
	})

	processor := settlement.NewProcessor(store, gw)

	q := queue.New(redisClient, cfg.ReclaimMinIdle)
	if err := q.EnsureGroup(ctx); err != nil {
		slog.Error("failed to prepare settlement stream", "error", err)
		os.Exit(1)
	}

	// Blocks until the context is cancelled.
	q.StartConsumer(ctx, processor.Process, cfg.WorkerCount)
	slog.Info("worker stopped")
}

func newStore(ctx context.Context, cfg config.Config) (transaction.Store, func(), error) {
	if cfg.DBType == "postgres" {
		s, err := transaction.NewPostgresStore(ctx, cfg.ConnString)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	}
	s, err := transaction.NewSQLiteStore(cfg.SQLitePath)
	if err != nil {
		return nil, nil, err
	}
	return s, func() { _ = s.Close() }, nil
}
