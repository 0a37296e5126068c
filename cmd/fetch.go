package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/contractwatch/contract-fetcher/internal/config"
	"github.com/contractwatch/contract-fetcher/internal/contracts"
)

// newFetchCmd creates the 'fetch' subcommand, a single end-to-end run.
func newFetchCmd() *cobra.Command {
	var postedFrom, postedTo string

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Runs one fetch of contract opportunities",
		Long: `Fetches contract opportunity notices for the configured organization
codes and date range (yesterday when no range is given), writes the output
file, and pushes records to every enabled sink.`,

		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}

			requested, err := resolveRequestedRange(postedFrom, postedTo, appInstance.Config().SAM)
			if err != nil {
				return err
			}

			summary, err := appInstance.Pipeline().Run(cmd.Context(), requested)
			if err != nil {
				return fmt.Errorf("running fetch: %w", err)
			}

			appInstance.Logger().Info("fetch finished",
				zap.String("run_id", summary.RunID),
				zap.Int("fetched", summary.Fetched),
				zap.String("local_path", summary.LocalPath),
			)
			return nil
		},
	}

	cmd.Flags().StringVar(&postedFrom, "posted-from", "", "start of the posted date range, MM/DD/YYYY")
	cmd.Flags().StringVar(&postedTo, "posted-to", "", "end of the posted date range, MM/DD/YYYY")

	return cmd
}

// resolveRequestedRange turns the date flags into the requested range. Both
// flags must be given together; a half-specified range is rejected rather
// than having the missing bound silently replaced by the yesterday default.
// When neither flag is set, the configured range (possibly empty) applies.
func resolveRequestedRange(postedFrom, postedTo string, cfg config.SAMConfig) (contracts.DateRange, error) {
	if (postedFrom == "") != (postedTo == "") {
		return contracts.DateRange{}, errors.New("--posted-from and --posted-to must be given together")
	}
	if postedFrom == "" {
		return contracts.DateRange{PostedFrom: cfg.PostedFrom, PostedTo: cfg.PostedTo}, nil
	}
	return contracts.DateRange{PostedFrom: postedFrom, PostedTo: postedTo}, nil
}
