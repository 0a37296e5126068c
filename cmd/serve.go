package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/contractwatch/contract-fetcher/internal/contracts"
)

// newServeCmd creates the 'serve' subcommand: a daemon that runs the fetch
// pipeline on a cron schedule and exposes health and metrics endpoints.
func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Runs the fetcher on a schedule",
		Long: `Starts a long-running process that executes the fetch pipeline on the
configured cron schedule and serves /healthz and /metrics for operators.`,

		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), appInstance)
		},
	}
	return cmd
}

func runServe(ctx context.Context, appInstance App) error {
	logger := appInstance.Logger()
	cfg := appInstance.Config()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	scheduler := cron.New()
	_, err := scheduler.AddFunc(cfg.Schedule.Cron, func() {
		requested := contracts.DateRange{
			PostedFrom: cfg.SAM.PostedFrom,
			PostedTo:   cfg.SAM.PostedTo,
		}
		if _, err := appInstance.Pipeline().Run(ctx, requested); err != nil {
			logger.Error("scheduled run failed", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", cfg.Schedule.Cron, err)
	}
	scheduler.Start()
	defer scheduler.Stop()
	logger.Info("scheduler started", zap.String("cron", cfg.Schedule.Cron))

	router := chi.NewRouter()
	router.Use(chimiddleware.Recoverer)
	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	router.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Schedule.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("admin server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("admin server failed: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("admin server shutdown failed", zap.Error(err))
	}
	return nil
}
