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

	"github.com/geocoder89/storefront/internal/app"
	"github.com/geocoder89/storefront/internal/config"
	"github.com/geocoder89/storefront/internal/observability"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config", "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer stop()

	shutdownTracer, err := observability.InitTracer(ctx, cfg.OTEL, cfg.Env, "worker")
	if err != nil {
		slog.Error("tracer init failed", "err", err)
		os.Exit(1)
	}

	w, cleanup, err := app.InitializeWorker(ctx, cfg)
	if err != nil {
		slog.Error("worker init failed", "err", err)
		os.Exit(1)
	}

	log := w.Log

	go func() {
		log.Info("worker health listening", "port", cfg.Worker.HealthPort)
		if err := w.Health.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("health server failed", "err", err)
		}
	}()

	log.Info("worker has started")

	code := 0
	if err := w.Worker.Run(ctx); err != nil {
		log.Error("worker stopped with error", "err", err)
		code = 1
	}

	sctx, cancel := config.WithTimeout(5 * time.Second)
	_ = w.Health.Shutdown(sctx)
	_ = shutdownTracer(sctx)
	cancel()
	cleanup()

	log.Info("worker shutdown complete")
	os.Exit(code)
}
