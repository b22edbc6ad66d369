// Package serve implements the serve command, which runs the HTTP API.
package serve

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/spf13/cobra"

	"github.com/innovyom/breedscan-go/internal/api"
	"github.com/innovyom/breedscan-go/internal/conf"
	"github.com/innovyom/breedscan-go/internal/datastore"
	"github.com/innovyom/breedscan-go/internal/httpclient"
	"github.com/innovyom/breedscan-go/internal/inference"
	"github.com/innovyom/breedscan-go/internal/logging"
	"github.com/innovyom/breedscan-go/internal/observability"
	"github.com/innovyom/breedscan-go/internal/resolver"
	"github.com/innovyom/breedscan-go/internal/storage"
)

const shutdownTimeout = 10 * time.Second

// Command creates the serve command.
func Command(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the breed classification HTTP service",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(settings)
		},
	}
}

// runServer wires the service together and runs it until interrupted.
// All clients are constructed once here and injected into the request
// handlers.
func runServer(settings *conf.Settings) error {
	level := slog.LevelInfo
	if settings.Debug {
		level = slog.LevelDebug
	}
	if settings.Log.Enabled {
		closeLog, err := logging.EnableFileOutput(settings.Log.Path, level)
		if err != nil {
			return fmt.Errorf("enabling file logging: %w", err)
		}
		defer func() { _ = closeLog() }()
	} else if settings.Debug {
		logging.SetLevel(level)
	}

	logger := logging.ForService("serve")

	ds := datastore.New(settings)
	if ds == nil {
		return fmt.Errorf("no datastore enabled in configuration")
	}
	if err := ds.Open(); err != nil {
		return fmt.Errorf("opening datastore: %w", err)
	}
	defer func() {
		if err := ds.Close(); err != nil {
			logger.Error("failed to close datastore", "error", err)
		}
	}()

	metrics, err := observability.NewMetrics()
	if err != nil {
		return fmt.Errorf("initializing metrics: %w", err)
	}

	hc := httpclient.New(&httpclient.Config{
		DefaultTimeout: settings.StorageTimeout(),
	})
	defer hc.Close()

	// Keep a typed nil out of the Downloader interface so the resolver's
	// nil check stays meaningful.
	var downloader storage.Downloader
	if storageClient := storage.NewClient(settings, hc); storageClient != nil {
		downloader = storageClient
	} else {
		logger.Warn("no storage service configured, every image resolves over plain HTTP")
	}
	imageResolver := resolver.New(downloader, hc, metrics)
	classifier := inference.NewClient(settings, hc, metrics)

	e := echo.New()
	e.HideBanner = true
	controller := api.New(e, ds, settings, imageResolver, classifier, metrics)

	addr := net.JoinHostPort(settings.WebServer.Host, settings.WebServer.Port)
	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting HTTP server", "addr", addr)
		if serveErr := e.Start(addr); serveErr != nil && serveErr != http.ErrServerClosed {
			errCh <- serveErr
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case sig := <-quit:
		logger.Info("shutting down", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := controller.Shutdown(ctx); err != nil {
		slog.Error("graceful shutdown failed", "error", err)
		return err
	}

	return nil
}
