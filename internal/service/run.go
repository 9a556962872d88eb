package service

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/panda-miner/pkg/config"
	"github.com/panda-miner/pkg/utils"
)

// Run starts a service for cfg and blocks until SIGINT or SIGTERM. The first
// signal stops intake and waits for running tasks; a second one aborts them.
func Run(cfg *config.Config, logger utils.Logger) error {
	sigChan := make(chan os.Signal, 2)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	return RunUntil(context.Background(), cfg, logger, sigChan)
}

// RunUntil is Run with the shutdown signals supplied by the caller. It also
// returns once ctx is done.
func RunUntil(ctx context.Context, cfg *config.Config, logger utils.Logger, signals <-chan os.Signal) error {
	if err := cfg.EnsureDataDir(); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	// Mining runs under its own context so a graceful stop lets it finish.
	miningCtx, abort := context.WithCancel(context.Background())
	defer abort()

	svc, err := New(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}
	if err := svc.Initialize(ctx); err != nil {
		_ = svc.Stop()
		return fmt.Errorf("failed to initialize service: %w", err)
	}
	if err := svc.Start(miningCtx); err != nil {
		_ = svc.Stop()
		return fmt.Errorf("failed to start service: %w", err)
	}

	logger.Info("Service started, waiting for tasks...")

	select {
	case sig := <-signals:
		logger.Info("Received signal %v, initiating graceful shutdown...", sig)
	case <-ctx.Done():
		logger.Info("Context cancelled, shutting down...")
	}

	stopped := make(chan struct{})
	defer close(stopped)
	go func() {
		select {
		case sig := <-signals:
			logger.Warn("Received signal %v again, aborting running tasks", sig)
			abort()
		case <-stopped:
		}
	}()

	return svc.Stop()
}
