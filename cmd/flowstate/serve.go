package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aretw0/flowstate"
	"github.com/aretw0/flowstate/internal/cli"
	"github.com/aretw0/flowstate/internal/presentation/tui"
	httpadapter "github.com/aretw0/flowstate/pkg/adapters/http"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		Long: `Starts the engine behind a JSON API over HTTP, with Prometheus metrics on /metrics
and a server-sent event stream on /events.

Workflow definitions are loaded from --workflows (a YAML file or directory).`,
		RunE: runServe,
	}
	cmd.Flags().String("addr", "", "Address to listen on (env FLOWSTATE_ADDR, default :8080)")
	cmd.Flags().String("store", "", "Instance store: memory, file or redis (env FLOWSTATE_STORE)")
	cmd.Flags().String("file-dir", "", "Directory of the file store (env FLOWSTATE_FILE_DIR)")
	cmd.Flags().String("redis-addr", "", "Redis address (env FLOWSTATE_REDIS_ADDR)")
	cmd.Flags().StringP("workflows", "w", "", "YAML file or directory of workflow definitions (env FLOWSTATE_WORKFLOWS)")
	cmd.Flags().Bool("watch", false, "Reload workflow definitions when their files change")
	cmd.Flags().Bool("quiet", false, "Do not print the banner")
	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := cli.NewLogger(cfg)

	if quiet, _ := cmd.Flags().GetBool("quiet"); !quiet {
		tui.PrintBanner(cmd.ErrOrStderr(), flowstate.Version)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := cli.NewApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer app.Close()

	if _, err := app.LoadWorkflows(ctx, cfg.Workflows); err != nil {
		return err
	}
	if watch, _ := cmd.Flags().GetBool("watch"); watch {
		if cfg.Workflows == "" {
			return errors.New("--watch requires a workflows path")
		}
		if _, err := app.WatchDefinitions(ctx, cfg.Workflows, cli.DefaultWatchDebounce); err != nil {
			return err
		}
	}

	opts := []httpadapter.Option{
		httpadapter.WithLoader(app.Loader),
		httpadapter.WithLogger(logger),
		httpadapter.WithVersion(flowstate.Version),
	}
	if cfg.Metrics {
		opts = append(opts, httpadapter.WithMetricsHandler(promhttp.HandlerFor(app.Registry, promhttp.HandlerOpts{})))
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpadapter.NewHandler(app.Engine, opts...),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Channel to listen for errors coming from the listener.
	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("Starting flowstate server", "addr", srv.Addr, "store", cfg.Store)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)

	case <-ctx.Done():
		logger.Info("Start shutdown")

		// Give outstanding requests a deadline for completion.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Graceful shutdown did not complete", "timeout", 5*time.Second, "err", err)
			if err := srv.Close(); err != nil {
				return fmt.Errorf("error killing server: %w", err)
			}
		}
		logger.Info("Flowstate server stopped gracefully")
		return nil
	}
}
