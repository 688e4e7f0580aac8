package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/aretw0/loom"
	"github.com/aretw0/loom/internal/cli"
	"github.com/aretw0/loom/internal/logging"
	httpAdapter "github.com/aretw0/loom/pkg/adapters/http"
	"github.com/aretw0/loom/pkg/observability"
	"github.com/aretw0/loom/pkg/session"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the document HTTP server",
	Long: `Serves managed documents over HTTP: create from seeds, apply mutations,
read snapshots, and stream JSON merge patches over SSE. Prometheus metrics are
exposed on /metrics.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("addr") {
			cfg.Addr, _ = cmd.Flags().GetString("addr")
		}
		if cmd.Flags().Changed("store") {
			cfg.Store, _ = cmd.Flags().GetString("store")
		}
		logger := logging.New(cfg.Level())

		backend, err := cli.OpenBackend(cfg, logger)
		if err != nil {
			return err
		}
		defer backend.Close()

		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		metrics := observability.New(reg)

		mgr := backend.NewManager(logger, session.WithDocumentOptions(
			loom.WithLogger(logger),
			loom.WithHooks(metrics.Hooks()),
			loom.WithObserver(metrics.ObserveUpdate),
		))

		ctx := cli.NewSignalContext(context.Background())
		defer ctx.Cancel()

		if dir, _ := cmd.Flags().GetString("dir"); dir != "" {
			loader, err := loom.NewLoader(dir)
			if err != nil {
				return err
			}
			if _, err := cli.Preload(ctx, mgr, loader, logger); err != nil {
				return err
			}
		}

		srv := &http.Server{
			Addr:              cfg.Addr,
			Handler:           httpAdapter.NewHandler(mgr, httpAdapter.WithMetrics(metrics, reg), httpAdapter.WithLogger(logger)),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Channel to listen for errors coming from the listener.
		serverErrors := make(chan error, 1)
		go func() {
			logger.Info("Starting Loom Server", "addr", srv.Addr, "store", cfg.Store)
			serverErrors <- srv.ListenAndServe()
		}()

		select {
		case err := <-serverErrors:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return fmt.Errorf("server error: %w", err)

		case <-ctx.Done():
			logger.Info("Start shutdown", "signal", ctx.Signal())

			// Give outstanding requests a deadline for completion.
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Warn("Graceful shutdown did not complete", "timeout", 5*time.Second, "err", err)
				if err := srv.Close(); err != nil {
					return fmt.Errorf("error killing server: %w", err)
				}
			}
			logger.Info("Loom Server stopped gracefully")
			return nil
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", ":8080", "Address to listen on")
	serveCmd.Flags().String("store", cli.StoreMemory, "Snapshot store: memory, file or redis")
}
