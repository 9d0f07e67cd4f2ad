package orchestrator

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/ipaynter-umb/MCD43GF-production/internal/logger"
	"github.com/ipaynter-umb/MCD43GF-production/pkg/catalog"
	"github.com/ipaynter-umb/MCD43GF-production/pkg/crawler"
	"github.com/ipaynter-umb/MCD43GF-production/pkg/download"
	"github.com/ipaynter-umb/MCD43GF-production/pkg/errors"
	"github.com/ipaynter-umb/MCD43GF-production/pkg/mirror"
	"github.com/ipaynter-umb/MCD43GF-production/pkg/window"
)

func emit(h Hooks, e Event) {
	if h.OnEvent != nil {
		h.OnEvent(e)
	}
}

func (o *Orchestrator) log() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return logger.Named("orchestrator")
}

// BuildCatalog returns the newest stored catalog for the request's product,
// crawling and storing a fresh one when refresh is set or none exists. Stats
// are nil when the snapshot was reused.
func (o *Orchestrator) BuildCatalog(ctx context.Context, req crawler.Request, refresh bool) (*catalog.Catalog, *crawler.Stats, error) {
	if o.Snapshots == nil {
		return nil, nil, fmt.Errorf("snapshot store is not configured")
	}
	key := catalog.Key{Collection: req.Collection, Product: req.Product}

	if !refresh {
		cat, err := o.Snapshots.LoadLatest(ctx, key)
		if err == nil {
			o.log().Debug("using stored catalog", "key", key.String(), "built", cat.BuildDate(), "files", cat.Len())
			return cat, nil, nil
		}
		if !stderrors.Is(err, errors.ErrSnapshotNotFound) {
			return nil, nil, err
		}
	}

	if o.Crawler == nil {
		return nil, nil, fmt.Errorf("crawler is not configured")
	}
	cat, stats, err := o.Crawler.Crawl(ctx, req)
	if err != nil {
		return nil, nil, err
	}
	info, err := o.Snapshots.Store(ctx, cat)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "failed to store catalog for %s", key)
	}
	o.log().Info("catalog stored", "key", key.String(), "files", cat.Len(), "location", info.Location)
	return cat, stats, nil
}

// Sync brings the mirror of one dataset up to date with its catalog. Files
// that fail permanently do not stop the others; they are reported in the
// result and the returned error wraps ErrPermanentTransfer.
func (o *Orchestrator) Sync(ctx context.Context, req crawler.Request, opts SyncOptions) (*SyncResult, error) {
	res := &SyncResult{RunID: uuid.NewString()}
	id := req.Collection + "/" + req.Product

	emit(o.Hooks, Event{Phase: PhaseCataloging, RunID: res.RunID, ID: id})
	cat, stats, err := o.BuildCatalog(ctx, req, opts.Refresh)
	if err != nil {
		return res, err
	}
	res.Catalog, res.Stats, res.Crawled = cat, stats, stats != nil

	emit(o.Hooks, Event{Phase: PhasePlanning, RunID: res.RunID, ID: id, Msg: fmt.Sprintf("%d files in catalog", cat.Len())})
	tasks, planStats, err := mirror.Plan(ctx, cat, o.Layout, o.URLs, mirror.PlanOptions{
		Verify: opts.Verify,
		Start:  req.Start,
		End:    req.End,
		Logger: o.Logger,
	})
	if err != nil {
		return res, err
	}
	res.Tasks, res.Plan = tasks, planStats

	if opts.DryRun || len(tasks) == 0 {
		emit(o.Hooks, Event{Phase: PhaseDone, RunID: res.RunID, ID: id, Msg: fmt.Sprintf("%d files to transfer", len(tasks))})
		return res, nil
	}
	if o.DL == nil {
		return res, fmt.Errorf("transfer engine is not configured")
	}

	emit(o.Hooks, Event{Phase: PhaseTransferring, RunID: res.RunID, ID: id, Msg: fmt.Sprintf("%d files", len(tasks))})
	res.Outcomes = o.DL.Run(ctx, tasks, download.Options{Concurrency: opts.Concurrency, MaxAttempts: opts.MaxAttempts})
	res.Summary = download.Summarize(res.Outcomes)
	emit(o.Hooks, Event{
		Phase: PhaseDone, RunID: res.RunID, ID: id,
		Msg: fmt.Sprintf("%d transferred, %d failed", res.Summary.Succeeded, res.Summary.Failed),
	})

	if err := ctx.Err(); err != nil {
		return res, err
	}
	if res.Summary.Failed > 0 {
		return res, fmt.Errorf("%w: %d of %d files", errors.ErrPermanentTransfer, res.Summary.Failed, len(tasks))
	}
	return res, nil
}

// Materialize loads the newest catalog of every product the requested bands
// read and builds their windows. Products without a snapshot are left to
// the materializer to report.
func (o *Orchestrator) Materialize(ctx context.Context, collection string, years, bands []int) (*window.Result, error) {
	if o.Windows == nil {
		return nil, fmt.Errorf("materializer is not configured")
	}
	scheme := o.Windows.Scheme()
	if len(bands) > 0 {
		scheme.Bands = bands
	}
	products, err := scheme.AllProducts()
	if err != nil {
		return nil, err
	}

	catalogs := make(map[string]*catalog.Catalog, len(products))
	for _, p := range products {
		cat, err := o.Snapshots.LoadLatest(ctx, catalog.Key{Collection: collection, Product: p})
		switch {
		case err == nil:
			catalogs[p] = cat
		case stderrors.Is(err, errors.ErrSnapshotNotFound):
		default:
			return nil, err
		}
	}

	emit(o.Hooks, Event{Phase: PhaseLinking, ID: collection, Msg: fmt.Sprintf("%d years, %d bands", len(years), len(scheme.Bands))})
	return o.Windows.Materialize(ctx, window.Request{Collection: collection, Years: years, Bands: scheme.Bands}, catalogs)
}

// Repair materializes the windows, transfers every file a link was missing
// for, and materializes again.
func (o *Orchestrator) Repair(ctx context.Context, collection string, years, bands []int, opts RepairOptions) (*RepairResult, error) {
	res := &RepairResult{RunID: uuid.NewString()}

	before, err := o.Materialize(ctx, collection, years, bands)
	if err != nil {
		return res, err
	}
	res.Before = before
	if len(before.MissingFiles) == 0 {
		emit(o.Hooks, Event{Phase: PhaseDone, RunID: res.RunID, ID: collection, Msg: "nothing to repair"})
		return res, nil
	}
	if o.DL == nil {
		return res, fmt.Errorf("transfer engine is not configured")
	}

	// The same file is missing once per window that reads it.
	seen := make(map[string]bool)
	for _, mf := range before.MissingFiles {
		if seen[mf.Path] {
			continue
		}
		seen[mf.Path] = true
		res.Tasks = append(res.Tasks, mirror.TaskFor(catalog.Key{Collection: collection, Product: mf.Product}, mf.Record, o.Layout, o.URLs))
	}

	emit(o.Hooks, Event{Phase: PhaseTransferring, RunID: res.RunID, ID: collection, Msg: fmt.Sprintf("%d missing files", len(res.Tasks))})
	res.Outcomes = o.DL.Run(ctx, res.Tasks, download.Options{Concurrency: opts.Concurrency, MaxAttempts: opts.MaxAttempts})
	res.Summary = download.Summarize(res.Outcomes)
	if err := ctx.Err(); err != nil {
		return res, err
	}

	after, err := o.Materialize(ctx, collection, years, bands)
	if err != nil {
		return res, err
	}
	res.After = after
	emit(o.Hooks, Event{
		Phase: PhaseDone, RunID: res.RunID, ID: collection,
		Msg: fmt.Sprintf("%d links created, %d still missing", after.Created, after.Missing),
	})

	if res.Summary.Failed > 0 {
		return res, fmt.Errorf("%w: %d of %d files", errors.ErrPermanentTransfer, res.Summary.Failed, len(res.Tasks))
	}
	if after.Missing > 0 {
		return res, fmt.Errorf("%w: %d links still unresolved", errors.ErrMirrorFileMissing, after.Missing)
	}
	return res, nil
}

// Audit checks one product directory against its newest catalog and saves
// the report under ReportDir. The returned path is empty when not saved.
func (o *Orchestrator) Audit(ctx context.Context, key catalog.Key, opts mirror.AuditOptions) (*mirror.AuditReport, string, error) {
	emit(o.Hooks, Event{Phase: PhaseAuditing, ID: key.String()})
	cat, err := o.Snapshots.LoadLatest(ctx, key)
	if err != nil {
		return nil, "", err
	}
	if opts.Logger == nil {
		opts.Logger = o.Logger
	}
	report, err := mirror.Audit(ctx, cat, o.Layout, opts)
	if err != nil {
		return nil, "", err
	}

	var path string
	if o.ReportDir != "" {
		if path, err = report.Save(o.ReportDir); err != nil {
			return report, "", err
		}
	}
	kept, removed := report.Counts()
	emit(o.Hooks, Event{
		Phase: PhaseDone, RunID: report.RunID, ID: key.String(),
		Msg: fmt.Sprintf("%d kept, %d removed, %d absent", kept, removed, report.Absent),
	})
	return report, path, nil
}
