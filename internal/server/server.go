package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MrEthical07/donorhub/internal/config"
	"github.com/urfave/cli/v3"
)

const defaultShutdownTimeout = 10 * time.Second

// Run starts the HTTP server with the given CLI command and blocks until
// SIGINT/SIGTERM or a listener error.
func Run(ctx context.Context, cmd *cli.Command) error {
	app, cfg, err := Setup(ctx, cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app.logger.Info("starting server",
		"addr", cfg.Addr(),
		"site_url", cfg.Site.URL,
		"payments", cfg.PaymentsEnabled(),
		"memory_store", cfg.Dynamo.Memory,
	)
	app.logger.Info("security posture", "security", app.Engine.SecurityReport())
	return serve(ctx, app, cfg)
}

// Setup validates the command's configuration, installs the default
// logger, and builds the App.
func Setup(ctx context.Context, cmd *cli.Command) (*App, *config.Config, error) {
	cfg := config.NewFromCLI(cmd)
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	logger := newLogger(os.Stdout, cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(logger)

	app, err := NewApp(ctx, cfg, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to start: %w", err)
	}
	return app, cfg, nil
}

// serve runs the listener until ctx is done, then drains in-flight
// requests for at most Server.ShutdownTimeout.
func serve(ctx context.Context, app *App, cfg *config.Config) error {
	errChan := make(chan error, 1)
	go func() {
		if err := app.Echo.Start(cfg.Addr()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		app.logger.Info("shutting down server")
	case err := <-errChan:
		app.logger.Error("server error", "error", err)
		return err
	}

	timeout := cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = defaultShutdownTimeout
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := app.Echo.Shutdown(shutdownCtx); err != nil {
		app.logger.Error("failed to shutdown server", "error", err)
		return err
	}

	app.logger.Info("server stopped")
	return nil
}
