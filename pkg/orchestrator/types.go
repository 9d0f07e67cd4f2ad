//go:generate mockgen -destination=./mocks/orchestrator.go . Crawler,SnapshotStore,Transferer,Materializer

package orchestrator

import (
	"context"
	"log/slog"

	"github.com/ipaynter-umb/MCD43GF-production/pkg/catalog"
	"github.com/ipaynter-umb/MCD43GF-production/pkg/crawler"
	"github.com/ipaynter-umb/MCD43GF-production/pkg/download"
	"github.com/ipaynter-umb/MCD43GF-production/pkg/listing"
	"github.com/ipaynter-umb/MCD43GF-production/pkg/mirror"
	"github.com/ipaynter-umb/MCD43GF-production/pkg/window"
)

// Crawler builds a catalog from the remote listings.
type Crawler interface {
	Crawl(ctx context.Context, req crawler.Request) (*catalog.Catalog, *crawler.Stats, error)
}

// SnapshotStore is the subset of catalog.Repository used by the orchestrator.
type SnapshotStore interface {
	LoadLatest(ctx context.Context, key catalog.Key) (*catalog.Catalog, error)
	Store(ctx context.Context, c *catalog.Catalog) (catalog.SnapshotInfo, error)
}

// Transferer runs verified transfers.
type Transferer interface {
	Run(ctx context.Context, tasks []download.Task, opts download.Options) []download.Outcome
}

// Materializer builds window link trees.
type Materializer interface {
	Materialize(ctx context.Context, req window.Request, catalogs map[string]*catalog.Catalog) (*window.Result, error)
	Scheme() window.Scheme
}

// Orchestrator ties the crawler, snapshot store, transfer engine and
// materializer together.
type Orchestrator struct {
	Crawler   Crawler
	Snapshots SnapshotStore
	DL        Transferer
	Windows   Materializer
	Layout    mirror.Layout
	URLs      listing.Layout
	// ReportDir receives audit reports. Empty skips saving them.
	ReportDir string
	Hooks     Hooks
	Logger    *slog.Logger
}

// Phases reported through Hooks.
const (
	PhaseCataloging   = "cataloging"
	PhasePlanning     = "planning"
	PhaseTransferring = "transferring"
	PhaseLinking      = "linking"
	PhaseAuditing     = "auditing"
	PhaseDone         = "done"
)

// Event represents a simple progress notification.
type Event struct {
	Phase string
	RunID string
	ID    string // dataset, product or file the event is about
	Msg   string
}

// Hooks carries callbacks for progress events.
type Hooks struct {
	OnEvent func(Event)
}

// SyncOptions control Sync.
type SyncOptions struct {
	Verify      bool
	Concurrency int
	MaxAttempts int
	// Refresh crawls even when a snapshot exists.
	Refresh bool
	// DryRun stops after planning.
	DryRun bool
}

// SyncResult reports one Sync run.
type SyncResult struct {
	RunID    string
	Catalog  *catalog.Catalog
	Crawled  bool
	Stats    *crawler.Stats
	Plan     mirror.PlanStats
	Tasks    []download.Task
	Outcomes []download.Outcome
	Summary  download.Summary
}

// RepairOptions control Repair.
type RepairOptions struct {
	Concurrency int
	MaxAttempts int
}

// RepairResult reports one Repair run. After is nil when nothing was missing.
type RepairResult struct {
	RunID    string
	Before   *window.Result
	Tasks    []download.Task
	Outcomes []download.Outcome
	Summary  download.Summary
	After    *window.Result
}
