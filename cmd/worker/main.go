// Package main implements the jobsearch worker. It polls the task table,
// runs research and reply tasks against Gemini and records their outcomes.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/phrazzld/jobsearch-api/internal/app"
	"github.com/phrazzld/jobsearch-api/internal/config"
	"github.com/phrazzld/jobsearch-api/internal/platform/logger"
)

func main() {
	if err := run(); err != nil {
		slog.Error("worker exited with error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	log, err := logger.Setup(cfg.Server.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to set up logger: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go handleSignals(cancel, log)

	stores, err := app.OpenStores(ctx, cfg.Database, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := stores.Close(); err != nil {
			log.Error("error closing database connection", "error", err)
		}
	}()

	caps, err := app.GeminiCapabilities(ctx, cfg.LLM, log)
	if err != nil {
		return err
	}

	daemon, err := app.NewDaemon(stores, caps, cfg.Worker, log)
	if err != nil {
		return err
	}
	return daemon.Run(ctx)
}

// handleSignals cancels the daemon on the first SIGINT or SIGTERM so that
// in-flight tasks can finish, and exits immediately on the second.
func handleSignals(cancel context.CancelFunc, log *slog.Logger) {
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	log.Info("shutdown signal received, finishing in-flight tasks", "signal", sig.String())
	cancel()

	sig = <-sigCh
	log.Warn("second signal received, exiting immediately", "signal", sig.String())
	os.Exit(1)
}
