package app

import (
	"context"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"overlay-router/internal/common/logging"
	"overlay-router/internal/config"
)

// shutdownTimeout bounds graceful shutdown after a signal
const shutdownTimeout = 30 * time.Second

// Run starts a node and blocks until ctx is cancelled or the process is
// interrupted, then shuts it down.
func Run(ctx context.Context, cfg *config.Config, opts ...Option) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logging.Info("Starting overlay node",
		logging.String("member", cfg.MemberID),
		logging.Int("cpus", runtime.NumCPU()),
		logging.Strings("transports", cfg.Transports),
		logging.String("store", cfg.RoutingStore),
	)

	app, err := New(ctx, cfg, opts...)
	if err != nil {
		logging.Error("Failed to initialize node", err)
		return err
	}

	if err := app.Start(ctx); err != nil {
		logging.Error("Failed to start node", err)
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		_ = app.Shutdown(shutdownCtx)
		return err
	}

	<-ctx.Done()
	logging.Info("Shutting down overlay node...")

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	if err := app.Shutdown(shutdownCtx); err != nil {
		logging.Error("Node shutdown incomplete", err)
		return err
	}

	logging.Info("Overlay node exited")
	return nil
}
