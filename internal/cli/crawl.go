package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/ipaynter-umb/MCD43GF-production/internal/logger"
	"github.com/ipaynter-umb/MCD43GF-production/pkg/catalog"
	"github.com/ipaynter-umb/MCD43GF-production/pkg/crawler"
)

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	var reuse bool

	cmd := &cobra.Command{
		Use:   "crawl [DATASET...]",
		Short: "Build catalog snapshots from the archive",
		Long: `Crawl the archive listings of the given datasets (all configured
datasets when none are named) and store a new catalog snapshot for each.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCrawl(cmd, args, reuse)
		},
	}

	cmd.Flags().BoolVar(&reuse, "reuse", false, "Skip datasets that already have a snapshot")

	return cmd
}

func runCrawl(cmd *cobra.Command, names []string, reuse bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	reqs, err := datasetRequests(cfg, names)
	if err != nil {
		return err
	}
	st, err := newStack(cmd.Context(), cfg, false, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	for _, req := range reqs {
		cat, stats, err := st.orch.BuildCatalog(cmd.Context(), req, !reuse)
		if err != nil {
			return fmt.Errorf("failed to crawl %s/%s: %w", req.Collection, req.Product, err)
		}
		printCrawl(cmd.OutOrStdout(), req, cat, stats)
	}

	logger.Success("Catalogs up to date", logger.Fields{"datasets": len(reqs)})
	return nil
}

func printCrawl(out io.Writer, req crawler.Request, cat *catalog.Catalog, stats *crawler.Stats) {
	_, _ = fmt.Fprintf(out, "%s/%s: %d files", req.Collection, req.Product, cat.Len())
	if first, last, ok := cat.Range(); ok {
		_, _ = fmt.Fprintf(out, " from %s to %s", first.Format(DateLayout), last.Format(DateLayout))
	}
	if stats == nil {
		_, _ = fmt.Fprintf(out, " (stored snapshot of %s)\n", cat.BuildDate().Format(DateLayout))
		return
	}
	_, _ = fmt.Fprintf(out, " (%d days, %d duplicates, %d rejected, %d gaps)\n",
		stats.Days, stats.Duplicates, stats.Rejected, stats.Gaps)
	for _, d := range stats.GapDates {
		_, _ = fmt.Fprintf(out, "  gap: %s\n", d.Format(DateLayout))
	}
}
