package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sagarc03/stashbox"
	"github.com/sagarc03/stashbox/config"
	stashboxhttp "github.com/sagarc03/stashbox/http"
	"github.com/sagarc03/stashbox/metrics"
	"github.com/sagarc03/stashbox/pool"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Start the stashbox HTTP server.

Uploads are accepted at POST <base_path>/ with an access token in the
Authorization header, and served back at GET <base_path>/<id>.`,
	RunE: runServe,
}

const shutdownTimeout = 30 * time.Second

func init() {
	serveCmd.Flags().Int("port", 5708, "HTTP server port")
	serveCmd.Flags().String("public-url", "", "scheme and host used in upload links")
	serveCmd.Flags().String("base-path", "", "path the upload and download routes are mounted on (default: /v1)")

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.FromContext(cmd.Context())
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	listeners := []pool.Listener{pool.LogListener}

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
		listeners = append(listeners, m.PoolListener)
	}

	db, err := openDatabase(ctx, cfg, listeners...)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	files, closeFiles, err := openStorage(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	defer closeFiles()

	var hooks stashbox.Hooks
	if m != nil {
		hooks = m.Hooks()
	}

	service, err := newService(db, files, cfg.Service, hooks)
	if err != nil {
		return err
	}
	defer service.Close()

	handlerConfig := stashboxhttp.HandlerConfig{
		PublicURL:     cfg.Server.PublicURL,
		BasePath:      cfg.Server.BasePath,
		MaxUploadSize: cfg.Server.MaxUploadSize,
		CORS:          cfg.CORS,
		Metrics:       m,
		HealthChecks: map[string]stashboxhttp.HealthCheck{
			"database": db.Ping,
			"storage":  files.Ping,
		},
	}

	handler := stashboxhttp.NewHandler(&handlerConfig, service)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)

	server := &http.Server{
		Addr:              addr,
		Handler:           handler.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	slog.Info("starting server", "addr", addr, "base_path", cfg.Server.BasePath, "storage", cfg.Storage.Backend)
	if err := serveUntilSignal(ctx, server, ln, sigCh, shutdownTimeout); err != nil {
		return err
	}

	slog.Info("waiting for background writes")
	return nil
}

// serveUntilSignal serves on ln until a signal arrives or ctx ends, then
// shuts the server down. It returns only after in-flight requests have
// finished or the timeout has passed, so callers may release what the
// handlers use.
func serveUntilSignal(ctx context.Context, server *http.Server, ln net.Listener, stop <-chan os.Signal, timeout time.Duration) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan struct{})

	go func() {
		defer close(done)

		select {
		case <-stop:
		case <-ctx.Done():
		}

		slog.Info("shutting down server...")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "err", err)
			_ = server.Close()
		}
	}()

	if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		cancel()
		<-done
		return fmt.Errorf("server error: %w", err)
	}

	<-done
	return nil
}
