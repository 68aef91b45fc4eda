package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/boardwatch/internal/app"
)

const httpShutdownTimeout = 10 * time.Second

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Runs the watcher on its schedule until interrupted",
		Long: `Runs one cycle immediately and then one per poll interval. Cycles never
overlap; a trigger that fires while a cycle is running is skipped. The HTTP
surface starts too when server.enabled is set.`,
		Args: cobra.NoArgs,
		RunE: runWatcher,
	}
}

func runWatcher(cmd *cobra.Command, _ []string) error {
	e, err := resolveEnv(cmd.Context())
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	logger := e.logger

	a, err := newApp(ctx, e.cfg, logger, app.Options{})
	if err != nil {
		return fmt.Errorf("failed to initialize application services: %w", err)
	}
	defer func() { _ = a.Close() }()

	scheduler := a.Scheduler()
	scheduler.Start()

	serverErr := make(chan error, 1)
	var srv *http.Server
	if e.cfg.Server.Enabled {
		srv = a.HTTPServer()
		go func() {
			logger.Info("http server started", zap.Int("port", e.cfg.Server.Port))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serverErr <- err
			}
		}()
	}

	sdNotify(logger, daemon.SdNotifyReady)

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutdown initiated")
	case err := <-serverErr:
		logger.Error("http server error", zap.Error(err))
		runErr = fmt.Errorf("http server: %w", err)
	}
	sdNotify(logger, daemon.SdNotifyStopping)

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), httpShutdownTimeout)
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown error", zap.Error(err))
		}
		cancel()
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), e.cfg.CycleTimeout()+httpShutdownTimeout)
	defer cancel()
	if err := scheduler.Stop(stopCtx); err != nil {
		logger.Error("scheduler stop error", zap.Error(err))
	}

	logger.Info("shutdown complete")
	return runErr
}

// sdNotify is a no-op outside systemd.
func sdNotify(logger *zap.Logger, state string) {
	sent, err := daemon.SdNotify(false, state)
	switch {
	case err != nil:
		logger.Warn("systemd notify failed", zap.String("state", state), zap.Error(err))
	case sent:
		logger.Debug("systemd notified", zap.String("state", state))
	}
}
