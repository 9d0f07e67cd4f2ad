package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ipaynter-umb/MCD43GF-production/internal/logger"
	"github.com/ipaynter-umb/MCD43GF-production/pkg/orchestrator"
)

// NewRepairCmd creates the repair command.
func NewRepairCmd() *cobra.Command {
	var (
		collection string
		years      []int
		bands      []int
		opts       orchestrator.RepairOptions
	)

	cmd := &cobra.Command{
		Use:   "repair",
		Short: "Fetch files missing from window link trees",
		Long: `Materialize the requested windows, transfer every catalogued file that
could not be linked because it is missing from the mirror, then link again.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRepair(cmd, collection, years, bands, opts)
		},
	}

	cmd.Flags().StringVar(&collection, "collection", "", "Archive collection (defaults to config)")
	cmd.Flags().IntSliceVar(&years, "years", nil, "Target years")
	cmd.Flags().IntSliceVar(&bands, "bands", nil, "Bands (defaults to config)")
	cmd.Flags().IntVar(&opts.Concurrency, "concurrency", 0, "Parallel transfers (0=config)")
	cmd.Flags().IntVar(&opts.MaxAttempts, "attempts", 0, "Attempts per file (0=config)")
	_ = cmd.MarkFlagRequired("years")

	return cmd
}

func runRepair(cmd *cobra.Command, collection string, years, bands []int, opts orchestrator.RepairOptions) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if collection == "" {
		collection = cfg.Archive.Collection
	}
	if opts.Concurrency == 0 {
		opts.Concurrency = cfg.Settings.TransferWorkers
	}
	if opts.MaxAttempts == 0 {
		opts.MaxAttempts = cfg.Settings.TransferAttempts
	}
	st, err := newStack(cmd.Context(), cfg, true, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	res, err := st.orch.Repair(cmd.Context(), collection, years, bands, opts)
	out := cmd.OutOrStdout()
	if res != nil && res.Before != nil {
		_, _ = fmt.Fprintf(out, "before: %d links missing their file\n", res.Before.Missing)
		if len(res.Tasks) > 0 {
			_, _ = fmt.Fprintf(out, "fetched %d of %d files\n", res.Summary.Succeeded, len(res.Tasks))
			printFailures(out, res.Summary.Failures)
		}
		if res.After != nil {
			_, _ = fmt.Fprintf(out, "after: %d created, %d still missing\n", res.After.Created, res.After.Missing)
		}
	}
	if err != nil {
		return fmt.Errorf("repair incomplete: %w", err)
	}

	logger.Success("Repair finished", logger.Fields{"run": res.RunID})
	return nil
}
