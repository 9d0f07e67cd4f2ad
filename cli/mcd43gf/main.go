package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ipaynter-umb/MCD43GF-production/internal/cli"
)

var (
	configPath   string
	verbose      bool
	outputFormat string
	metricsAddr  string
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	rootCmd := newRootCmd()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		cancel()
		os.Exit(1)
	}

	cancel()
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcd43gf",
		Short: "Mirror and verify MODIS BRDF/albedo inputs from LAADS",
		Long: `mcd43gf keeps a local, checksum-verified mirror of an archive collection:
- crawl and sync: catalog the archive and fetch what is missing or stale
- window: link per-band temporal windows into the mirror
- audit and repair: find and fix drift between catalog and disk`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configPath, "config", "", "config file path (default: auto-detect)")
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "", "log format (text, json, auto)")
	cmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while running")

	cli.ConfigPath = &configPath
	cli.Verbose = &verbose
	cli.OutputFormat = &outputFormat
	cli.MetricsAddr = &metricsAddr

	cmd.AddCommand(
		cli.NewCrawlCmd(),
		cli.NewSyncCmd(),
		cli.NewAuditCmd(),
		cli.NewWindowCmd(),
		cli.NewRepairCmd(),
		cli.NewSnapshotCmd(),
		cli.NewStatusCmd(),
		cli.NewConfigCmd(),
		cli.NewVersionCmd(),
	)

	return cmd
}
