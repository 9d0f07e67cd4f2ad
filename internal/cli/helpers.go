package cli

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ipaynter-umb/MCD43GF-production/internal/logger"
	"github.com/ipaynter-umb/MCD43GF-production/pkg/auth"
	"github.com/ipaynter-umb/MCD43GF-production/pkg/catalog"
	"github.com/ipaynter-umb/MCD43GF-production/pkg/config"
	"github.com/ipaynter-umb/MCD43GF-production/pkg/crawler"
	"github.com/ipaynter-umb/MCD43GF-production/pkg/download"
	"github.com/ipaynter-umb/MCD43GF-production/pkg/errors"
	archivehttp "github.com/ipaynter-umb/MCD43GF-production/pkg/http"
	"github.com/ipaynter-umb/MCD43GF-production/pkg/listing"
	"github.com/ipaynter-umb/MCD43GF-production/pkg/metrics"
	"github.com/ipaynter-umb/MCD43GF-production/pkg/mirror"
	"github.com/ipaynter-umb/MCD43GF-production/pkg/orchestrator"
	"github.com/ipaynter-umb/MCD43GF-production/pkg/window"
)

// These variables will be set by the main package
var (
	ConfigPath   *string
	Verbose      *bool
	OutputFormat *string
	MetricsAddr  *string
)

// sqliteFileName is the snapshot database under snapshot_dir.
const sqliteFileName = "catalogs.db"

func getConfigPath() string {
	if ConfigPath != nil && *ConfigPath != "" {
		return *ConfigPath
	}

	defaultPath, err := config.GetDefaultConfigPath()
	if err != nil {
		logger.Warn("Failed to get default config path, using empty path", logger.Fields{"error": err})
		return ""
	}
	return defaultPath
}

// loadConfig loads the configuration, applies the global flags and
// initializes the logger from the result.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(getConfigPath())
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if OutputFormat != nil && *OutputFormat != "" {
		cfg.Settings.OutputFormat = *OutputFormat
	}
	if Verbose != nil && *Verbose {
		cfg.Settings.LogLevel = "debug"
	}
	if MetricsAddr != nil && *MetricsAddr != "" {
		cfg.Settings.MetricsAddr = *MetricsAddr
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger.InitLogger(cfg.Settings.LogLevel, logger.OutputFormat(cfg.Settings.OutputFormat))
	return cfg, nil
}

func layoutFor(cfg *config.Config) (mirror.Layout, error) {
	return mirror.NewLayout(cfg.Settings.MirrorRoot, cfg.Settings.LinkRoot)
}

func schemeFor(cfg *config.Config) window.Scheme {
	return window.Scheme{
		Prefix:    cfg.Window.ProductPrefix,
		GroupSize: cfg.Window.GroupSize,
		Shared:    cfg.Window.Shared,
		Bands:     cfg.Window.Bands,
	}
}

// snapshotStore is a catalog.Repository with a Close method.
type snapshotStore interface {
	catalog.Repository
	io.Closer
}

type fileStore struct{ *catalog.FileRepository }

func (fileStore) Close() error { return nil }

func openSnapshotStore(cfg *config.Config) (snapshotStore, error) {
	switch cfg.Settings.SnapshotBackend {
	case config.BackendSQLite:
		repo, err := catalog.OpenSQLite(filepath.Join(cfg.Settings.SnapshotDir, sqliteFileName))
		if err != nil {
			return nil, err
		}
		return repo, nil
	case config.BackendFile:
		return fileStore{catalog.NewFileRepository(cfg.Settings.SnapshotDir, cfg.Settings.CompressSnapshots)}, nil
	default:
		return nil, fmt.Errorf("%w: %q", errors.ErrUnknownSnapshotStore, cfg.Settings.SnapshotBackend)
	}
}

// stack is every component a pipeline command needs, built from one config.
type stack struct {
	store snapshotStore
	orch  *orchestrator.Orchestrator
}

// newStack wires the client, snapshot store and pipeline stages. When
// needToken is set a missing archive token is an error; otherwise requests
// go out anonymously.
func newStack(ctx context.Context, cfg *config.Config, needToken bool, out io.Writer) (*stack, error) {
	var authenticator auth.Authenticator = auth.Anonymous{}
	token, err := cfg.ResolveToken()
	switch {
	case err == nil:
		authenticator = auth.BearerAuth{Token: token}
	case needToken:
		return nil, err
	default:
		logger.Warn("No archive token configured, sending anonymous requests", logger.Fields{"token_env": cfg.Archive.TokenEnv})
	}

	layout, err := layoutFor(cfg)
	if err != nil {
		return nil, err
	}
	urls, err := listing.NewLayout(cfg.Archive.BaseURL)
	if err != nil {
		return nil, err
	}
	store, err := openSnapshotStore(cfg)
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)
	if addr := cfg.Settings.MetricsAddr; addr != "" {
		go func() {
			if err := metrics.Serve(ctx, addr, registry); err != nil {
				logger.Error("Metrics server stopped", logger.Fields{"addr": addr, "error": err})
			}
		}()
	}

	s := cfg.Settings
	client := archivehttp.NewClient(archivehttp.Options{
		Auth:               authenticator,
		Timeout:            s.HTTPTimeout,
		MaxAttempts:        s.RequestAttempts,
		AttemptsPerSession: s.AttemptsPerSession,
		BackoffBase:        s.BackoffBase,
		BackoffIncrement:   s.BackoffIncrement,
		RateLimit:          s.RateLimit,
		Metrics:            m,
	})

	st := &stack{store: store}
	st.orch = &orchestrator.Orchestrator{
		Crawler: crawler.New(client, urls, crawler.Options{
			Workers:   s.CrawlWorkers,
			ChunkSize: s.CrawlChunkSize,
			Metrics:   m,
		}),
		Snapshots: store,
		DL:        download.NewManager(client, m, nil),
		Windows:   window.New(layout, schemeFor(cfg), window.Options{Metrics: m}),
		Layout:    layout,
		URLs:      urls,
		ReportDir: s.ReportDir,
		Hooks:     progressHooks(out),
	}
	return st, nil
}

func (s *stack) Close() error {
	return s.store.Close()
}

// progressHooks prints orchestrator events as they happen.
func progressHooks(out io.Writer) orchestrator.Hooks {
	return orchestrator.Hooks{OnEvent: func(e orchestrator.Event) {
		switch {
		case e.ID != "" && e.Msg != "":
			_, _ = fmt.Fprintf(out, "%s: %s (%s)\n", e.Phase, e.Msg, e.ID)
		case e.ID != "":
			_, _ = fmt.Fprintf(out, "%s: %s\n", e.Phase, e.ID)
		default:
			_, _ = fmt.Fprintf(out, "%s: %s\n", e.Phase, e.Msg)
		}
	}}
}

// datasetRequests turns dataset names into crawl requests. No names selects
// every configured dataset.
func datasetRequests(cfg *config.Config, names []string) ([]crawler.Request, error) {
	if len(names) == 0 {
		names = cfg.DatasetNames()
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("no datasets configured: %w", errors.ErrConfigValidation)
	}
	reqs := make([]crawler.Request, 0, len(names))
	for _, name := range names {
		d, err := cfg.GetDataset(name)
		if err != nil {
			return nil, err
		}
		start, end, err := d.Range()
		if err != nil {
			return nil, err
		}
		reqs = append(reqs, crawler.Request{
			Collection: d.Collection,
			Product:    d.Product,
			Start:      start,
			End:        end,
			Include:    d.Include,
			Exclude:    d.Exclude,
		})
	}
	return reqs, nil
}
