package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"tradelock/internal/app"
	"tradelock/internal/bridge"
	"tradelock/internal/config"
	"tradelock/internal/gate"
	"tradelock/internal/logging"
	"tradelock/internal/notify"
)

func main() {
	logger, closeLog, err := logging.New(os.Stdout, config.LogFile(), slog.LevelDebug)
	if err != nil {
		log.Fatal("Failed to open log file:", err)
	}
	defer closeLog()

	logger.Info("=== TradeLock Bridge ===")

	if err := run(logger); err != nil {
		logger.Error("Bridge failed", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("✅ Bridge stopped")
}

func run(logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.Load(logger)
	hub := bridge.NewHub(logger)

	core, err := app.New(ctx, cfg, logger, app.Options{
		Notifiers: []notify.Notifier{hub},
		Haptics:   []notify.Haptics{hub},
	})
	if err != nil {
		return err
	}
	defer core.Close()

	core.Gate.OnOnline(func(context.Context) { hub.Broadcast(bridge.EventMode, gate.ModeOnline) })

	// Первая проверка бэкенда до старта периодического probe
	core.Gate.Probe(ctx)

	if err := core.Gate.Start(ctx); err != nil {
		return err
	}

	router := bridge.New(core, hub, cfg.TelegramToken, logger).SetupRouter(cfg.WebDir)

	srv := &http.Server{
		Addr:         cfg.BridgeAddress,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("🚀 Bridge starting...", slog.String("address", cfg.BridgeAddress))
		logger.Info(fmt.Sprintf("📡 API available at http://%s/api", cfg.BridgeAddress))
		logger.Info(fmt.Sprintf("🏥 Health check at http://%s/health", cfg.BridgeAddress))

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}

		return nil
	})

	// Graceful shutdown
	g.Go(func() error {
		<-gctx.Done()

		logger.Info("🛑 Shutting down bridge...")

		hub.Close()

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}

		return nil
	})

	return g.Wait()
}
