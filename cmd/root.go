// Package cmd defines and implements the CLI commands for the
// contract-fetcher executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/contractwatch/contract-fetcher/internal/app"
	"github.com/contractwatch/contract-fetcher/internal/config"
	"github.com/contractwatch/contract-fetcher/internal/pipeline"
)

var cfgFile string

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// App defines the application interface that commands use. It allows tests
// to inject a mock app.
type App interface {
	Close()
	Logger() *zap.Logger
	Pipeline() *pipeline.Pipeline
	Config() config.Config
}

// newApp is the application factory, a variable so tests can replace it.
var newApp = func(ctx context.Context, cfg config.Config) (App, error) {
	return app.New(ctx, cfg)
}

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "contract-fetcher",
		Short: "Fetches government contract opportunities from SAM.gov",
		Long: `contract-fetcher pulls contract opportunity notices from the SAM.gov
search API, normalizes them into flat records, and persists them to the
configured sinks: a local JSON file, object storage, and a warehouse table.`,

		// Runs after flags are parsed but before the subcommand's RunE:
		// load config, build the service container, inject it.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("loading configuration: %w", err)
			}
			appInstance, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return fmt.Errorf("initializing application services: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, appInstance))
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if appInstance, ok := cmd.Context().Value(appKey).(App); ok && appInstance != nil {
				appInstance.Close()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (also honors CONTRACTS_* environment variables)")

	cmd.AddCommand(newFetchCmd())
	cmd.AddCommand(newServeCmd())

	return cmd
}

func resolveApp(ctx context.Context) (App, error) {
	appInstance, ok := ctx.Value(appKey).(App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
