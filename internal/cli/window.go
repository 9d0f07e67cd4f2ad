package cli

import (
	"fmt"
	"path/filepath"

	"github.com/disiqueira/gotree/v3"
	"github.com/spf13/cobra"

	"github.com/ipaynter-umb/MCD43GF-production/internal/logger"
	"github.com/ipaynter-umb/MCD43GF-production/pkg/mirror"
	"github.com/ipaynter-umb/MCD43GF-production/pkg/window"
)

// NewWindowCmd creates the window command with subcommands.
func NewWindowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "window",
		Short: "Build per-band temporal window link trees",
		Long: `Each target year and band gets a tree of symlinks into the mirror
covering June 20 of the previous year through mid July of the next year.`,
	}

	cmd.AddCommand(
		newWindowLinkCmd(),
		newWindowPlanCmd(),
	)

	return cmd
}

func newWindowLinkCmd() *cobra.Command {
	var (
		collection string
		years      []int
		bands      []int
	)

	cmd := &cobra.Command{
		Use:   "link",
		Short: "Create the link trees of the given years",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWindowLink(cmd, collection, years, bands)
		},
	}

	cmd.Flags().StringVar(&collection, "collection", "", "Archive collection (defaults to config)")
	cmd.Flags().IntSliceVar(&years, "years", nil, "Target years")
	cmd.Flags().IntSliceVar(&bands, "bands", nil, "Bands (defaults to config)")
	_ = cmd.MarkFlagRequired("years")

	return cmd
}

func newWindowPlanCmd() *cobra.Command {
	var (
		collection string
		year       int
		band       int
	)

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Show the span, products and directories of one window",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWindowPlan(cmd, collection, year, band)
		},
	}

	cmd.Flags().StringVar(&collection, "collection", "", "Archive collection (defaults to config)")
	cmd.Flags().IntVar(&year, "year", 0, "Target year")
	cmd.Flags().IntVar(&band, "band", 1, "Band")
	_ = cmd.MarkFlagRequired("year")

	return cmd
}

func runWindowLink(cmd *cobra.Command, collection string, years, bands []int) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if collection == "" {
		collection = cfg.Archive.Collection
	}
	st, err := newStack(cmd.Context(), cfg, false, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	res, err := st.orch.Materialize(cmd.Context(), collection, years, bands)
	if err != nil {
		return fmt.Errorf("failed to build windows: %w", err)
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "%d windows: %d created, %d existing, %d missing\n",
		res.Windows, res.Created, res.Existing, res.Missing)
	for _, p := range res.MissingCatalogs {
		_, _ = fmt.Fprintf(out, "  no catalog for %s\n", p)
	}
	if res.Missing > 0 {
		logger.Warn("Some catalogued files are not mirrored; run repair to fetch them", logger.Fields{"missing": res.Missing})
	}
	return nil
}

func runWindowPlan(cmd *cobra.Command, collection string, year, band int) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if collection == "" {
		collection = cfg.Archive.Collection
	}
	layout, err := layoutFor(cfg)
	if err != nil {
		return err
	}
	spec, err := schemeFor(cfg).Spec(year, band)
	if err != nil {
		return err
	}
	_, err = fmt.Fprint(cmd.OutOrStdout(), renderWindowPlan(layout, collection, spec))
	return err
}

// renderWindowPlan draws a window's span, products and link directories.
func renderWindowPlan(layout mirror.Layout, collection string, spec window.Spec) string {
	root := gotree.New(fmt.Sprintf("window %d band %s", spec.Year, mirror.BandName(spec.Band)))
	root.Add(fmt.Sprintf("span %s .. %s (%d days)",
		spec.Start.Format(DateLayout), spec.End.Format(DateLayout), spec.Days()))

	products := root.Add("products")
	for _, p := range spec.Products {
		products.Add(fmt.Sprintf("%s <- %s", p, layout.ProductDir(p)))
	}

	dirs := root.Add(filepath.Dir(layout.LinkDir(collection, spec.Year, spec.Band, spec.Year)))
	for _, sub := range spec.SubYears {
		dirs.Add(fmt.Sprintf("%d/", sub))
	}
	return root.Print()
}
