package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/boardwatch/internal/api"
	"github.com/JakeFAU/boardwatch/internal/app"
)

// newRenderer is a variable so tests can avoid starting a browser.
var newRenderer = app.NewRenderer

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serves the HTTP surface without the scheduler",
		Long: `Starts only the HTTP surface: health, metrics and, when server.fetch_secret
is set, POST /fetch as a passthrough to the renderer.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := resolveEnv(cmd.Context())
			if err != nil {
				return err
			}
			logger := e.logger

			renderer, err := newRenderer(e.cfg, logger)
			if err != nil {
				return fmt.Errorf("start renderer: %w", err)
			}
			defer func() { _ = renderer.Close() }()

			srv := app.NewHTTPServer(e.cfg, api.Options{
				Renderer:      renderer,
				FetchSecret:   e.cfg.Server.FetchSecret,
				WaitSelectors: e.cfg.Render.WaitSelectors,
				Logger:        logger,
			})
			serverErr := make(chan error, 1)
			go func() {
				logger.Info("http server started", zap.Int("port", e.cfg.Server.Port))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serverErr <- err
				}
			}()

			select {
			case <-cmd.Context().Done():
			case err := <-serverErr:
				return fmt.Errorf("http server: %w", err)
			}
			shutdownCtx, cancel := context.WithTimeout(context.Background(), httpShutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("server shutdown: %w", err)
			}
			return nil
		},
	}
}
