package cli

import (
	stderrors "errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/ipaynter-umb/MCD43GF-production/internal/logger"
	"github.com/ipaynter-umb/MCD43GF-production/pkg/download"
	"github.com/ipaynter-umb/MCD43GF-production/pkg/mirror"
	"github.com/ipaynter-umb/MCD43GF-production/pkg/orchestrator"
)

// NewSyncCmd creates the sync command.
func NewSyncCmd() *cobra.Command {
	var opts orchestrator.SyncOptions

	cmd := &cobra.Command{
		Use:   "sync [DATASET...]",
		Short: "Mirror datasets from the archive",
		Long: `Bring the local mirror of the given datasets (all configured datasets
when none are named) up to date with their newest catalog. Every file is
checked against its archive checksum before it is kept.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(cmd, args, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.Verify, "verify", false, "Checksum files already on disk and refetch mismatches")
	cmd.Flags().BoolVar(&opts.Refresh, "refresh", false, "Crawl even when a catalog snapshot exists")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "Plan transfers without executing them")
	cmd.Flags().IntVar(&opts.Concurrency, "concurrency", 0, "Parallel transfers (0=config)")
	cmd.Flags().IntVar(&opts.MaxAttempts, "attempts", 0, "Attempts per file (0=config)")

	return cmd
}

func runSync(cmd *cobra.Command, names []string, opts orchestrator.SyncOptions) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	reqs, err := datasetRequests(cfg, names)
	if err != nil {
		return err
	}
	st, err := newStack(cmd.Context(), cfg, !opts.DryRun, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	if opts.Concurrency == 0 {
		opts.Concurrency = cfg.Settings.TransferWorkers
	}
	if opts.MaxAttempts == 0 {
		opts.MaxAttempts = cfg.Settings.TransferAttempts
	}

	var failed error
	for _, req := range reqs {
		res, err := st.orch.Sync(cmd.Context(), req, opts)
		if res != nil && res.Catalog != nil {
			printSync(cmd.OutOrStdout(), req.Collection+"/"+req.Product, res, opts.DryRun)
		}
		if err != nil {
			if cmd.Context().Err() != nil {
				return err
			}
			logger.Error("Sync incomplete", logger.Fields{"product": req.Product, "error": err})
			failed = stderrors.Join(failed, err)
		}
	}
	if failed != nil {
		return failed
	}

	logger.Success("Mirror up to date", logger.Fields{"datasets": len(reqs)})
	return nil
}

func printSync(out io.Writer, id string, res *orchestrator.SyncResult, dryRun bool) {
	p := res.Plan
	_, _ = fmt.Fprintf(out, "%s: %d in catalog, %d present, %d missing, %d corrupt\n",
		id, p.Considered, p.Present, p.Missing, p.Corrupt)
	if dryRun {
		for _, t := range res.Tasks {
			_, _ = fmt.Fprintf(out, "  would fetch %s\n", t.ID)
		}
		return
	}
	s := res.Summary
	if len(res.Tasks) > 0 {
		_, _ = fmt.Fprintf(out, "  transferred %d (%s), failed %d\n", s.Succeeded, mirror.FormatBytes(s.Bytes), s.Failed)
	}
	printFailures(out, s.Failures)
}

func printFailures(out io.Writer, failures []download.Outcome) {
	for _, f := range failures {
		_, _ = fmt.Fprintf(out, "  failed %s after %d attempts: %v\n", f.Task.ID, f.Attempts, f.Err)
	}
}
