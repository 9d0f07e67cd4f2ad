package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ipaynter-umb/MCD43GF-production/pkg/catalog"
	"github.com/ipaynter-umb/MCD43GF-production/pkg/errors"
)

// NewSnapshotCmd creates the snapshot command with subcommands.
func NewSnapshotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Inspect stored catalog snapshots",
	}

	cmd.AddCommand(
		newSnapshotListCmd(),
		newSnapshotShowCmd(),
	)

	return cmd
}

func newSnapshotListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list [COLLECTION/PRODUCT]",
		Short: "List stored snapshots, newest first",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runSnapshotList,
	}
}

func newSnapshotShowCmd() *cobra.Command {
	var days bool

	cmd := &cobra.Command{
		Use:   "show COLLECTION/PRODUCT",
		Short: "Show the newest snapshot of a product",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSnapshotShow(cmd, args[0], days)
		},
	}

	cmd.Flags().BoolVar(&days, "days", false, "List file counts per acquisition day")

	return cmd
}

// parseKey accepts COLLECTION/PRODUCT.
func parseKey(s string) (catalog.Key, error) {
	collection, product, ok := strings.Cut(s, "/")
	if !ok || collection == "" || product == "" {
		return catalog.Key{}, fmt.Errorf("%w: expected COLLECTION/PRODUCT, got %q", errors.ErrConfigValidation, s)
	}
	return catalog.Key{Collection: collection, Product: product}, nil
}

func runSnapshotList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := openSnapshotStore(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	var keys []catalog.Key
	if len(args) == 1 {
		key, err := parseKey(args[0])
		if err != nil {
			return err
		}
		keys = []catalog.Key{key}
	} else if keys, err = store.Keys(cmd.Context()); err != nil {
		return err
	}

	if len(keys) == 0 {
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No snapshots stored")
		return nil
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, TabWidth, ' ', 0)
	_, _ = fmt.Fprintln(tw, "KEY\tBUILT\tFILES\tLOCATION")
	for _, key := range keys {
		infos, err := store.List(cmd.Context(), key)
		if err != nil {
			return err
		}
		for _, info := range infos {
			files := "?"
			if info.Files >= 0 {
				files = fmt.Sprint(info.Files)
			}
			_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", key, info.BuildDate.Format("2006-01-02 15:04:05"), files, info.Location)
		}
	}
	return tw.Flush()
}

func runSnapshotShow(cmd *cobra.Command, arg string, days bool) error {
	key, err := parseKey(arg)
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := openSnapshotStore(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	cat, err := store.LoadLatest(cmd.Context(), key)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Key:            %s\n", cat.Key())
	_, _ = fmt.Fprintf(out, "Built:          %s\n", cat.BuildDate().Format("2006-01-02 15:04:05 MST"))
	_, _ = fmt.Fprintf(out, "Format version: %s\n", cat.FormatVersion())
	_, _ = fmt.Fprintf(out, "Files:          %d\n", cat.Len())
	if first, last, ok := cat.Range(); ok {
		_, _ = fmt.Fprintf(out, "Range:          %s .. %s (%d days)\n", first.Format(DateLayout), last.Format(DateLayout), len(cat.Dates()))
	}
	if !days {
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 0, TabWidth, ' ', 0)
	_, _ = fmt.Fprintln(tw, "DATE\tYEAR\tDOY\tFILES")
	for _, d := range cat.Dates() {
		_, _ = fmt.Fprintf(tw, "%s\t%d\t%03d\t%d\n", d.Format(DateLayout), d.Year(), d.YearDay(), len(cat.ByDate(d)))
	}
	return tw.Flush()
}
