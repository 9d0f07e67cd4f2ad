package cli

import (
	"fmt"
	"slices"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ipaynter-umb/MCD43GF-production/pkg/mirror"
)

// NewStatusCmd creates the status command.
func NewStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show mirror and link tree usage",
		Long:  "Display file counts and sizes per mirrored product and the number of window links",
		RunE:  runStatus,
	}
}

// statusProducts is every product a dataset or a window refers to, sorted.
func statusProducts(datasets, windows []string) []string {
	products := append(slices.Clone(datasets), windows...)
	slices.Sort(products)
	return slices.Compact(products)
}

func runStatus(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	layout, err := layoutFor(cfg)
	if err != nil {
		return err
	}

	var datasets []string
	for _, d := range cfg.Datasets {
		datasets = append(datasets, d.Product)
	}
	windows, err := schemeFor(cfg).AllProducts()
	if err != nil {
		return err
	}

	info, err := mirror.GetInfo(layout, statusProducts(datasets, windows))
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Mirror Directory: %s\n", info.MirrorRoot)
	_, _ = fmt.Fprintf(out, "Link Directory:   %s\n", info.LinkRoot)
	_, _ = fmt.Fprintf(out, "Total Size:       %s (%d files)\n", mirror.FormatBytes(info.TotalSize), info.TotalFiles)
	_, _ = fmt.Fprintf(out, "Window Links:     %d\n\n", info.Links)

	tw := tabwriter.NewWriter(out, 0, 0, TabWidth, ' ', 0)
	_, _ = fmt.Fprintln(tw, "PRODUCT\tFILES\tSIZE")
	for _, p := range info.Products {
		_, _ = fmt.Fprintf(tw, "%s\t%d\t%s\n", p.Product, p.Files, mirror.FormatBytes(p.Size))
	}
	return tw.Flush()
}
