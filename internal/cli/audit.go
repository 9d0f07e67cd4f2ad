package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ipaynter-umb/MCD43GF-production/internal/logger"
	"github.com/ipaynter-umb/MCD43GF-production/pkg/catalog"
	"github.com/ipaynter-umb/MCD43GF-production/pkg/mirror"
)

// NewAuditCmd creates the audit command.
func NewAuditCmd() *cobra.Command {
	var (
		removeUnknown bool
		details       bool
	)

	cmd := &cobra.Command{
		Use:   "audit [DATASET...]",
		Short: "Check mirrored files against their catalog",
		Long: `Checksum every file in the mirror directory of the given datasets
against the newest catalog snapshot. Corrupt files are removed; files the
catalog does not list are reported, or removed with --remove-unknown.
A report is written to the report directory.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAudit(cmd, args, removeUnknown, details)
		},
	}

	cmd.Flags().BoolVar(&removeUnknown, "remove-unknown", false, "Remove files not listed in the catalog")
	cmd.Flags().BoolVar(&details, "details", false, "Print every audited file")

	return cmd
}

func runAudit(cmd *cobra.Command, names []string, removeUnknown, details bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	reqs, err := datasetRequests(cfg, names)
	if err != nil {
		return err
	}
	st, err := newStack(cmd.Context(), cfg, false, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	out := cmd.OutOrStdout()
	for _, req := range reqs {
		key := catalog.Key{Collection: req.Collection, Product: req.Product}
		report, path, err := st.orch.Audit(cmd.Context(), key, mirror.AuditOptions{RemoveUnknown: removeUnknown})
		if err != nil {
			return fmt.Errorf("failed to audit %s: %w", key, err)
		}
		kept, removed := report.Counts()
		_, _ = fmt.Fprintf(out, "%s: %d kept, %d removed, %d absent\n", key, kept, removed, report.Absent)
		if details {
			if _, err := report.WriteTo(out); err != nil {
				return err
			}
		}
		if path != "" {
			logger.Info("Audit report saved", logger.Fields{"path": path})
		}
	}
	return nil
}
