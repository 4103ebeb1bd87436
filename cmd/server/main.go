package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"payment-settlement/internal/config"
	"payment-settlement/internal/handlers"
	"payment-settlement/internal/queue"
	"payment-settlement/internal/redis"
	"payment-settlement/internal/transaction"
)

func main() {
	// Graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
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

	q := queue.New(redisClient, cfg.ReclaimMinIdle)
	if err := q.EnsureGroup(ctx); err != nil {
		slog.Error("failed to prepare settlement stream", "error", err)
		os.Exit(1)
	}

	h := handlers.NewTransactionHandler(store, q)

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.Gzip())

	e.POST("/api/v1/transactions", h.Create)
	e.GET("/api/v1/transactions", h.List)
	e.GET("/api/v1/transactions/:id", h.Get)
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	go func() {
		slog.Info("server started", "addr", cfg.HTTPAddr)
		if err := e.Start(cfg.HTTPAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("failed to start server", "error", err)
		}
	}()

	<-ctx.Done()
	stop()
	slog.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
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
