package window

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"slices"

	"github.com/ipaynter-umb/MCD43GF-production/internal/logger"
	"github.com/ipaynter-umb/MCD43GF-production/pkg/catalog"
	"github.com/ipaynter-umb/MCD43GF-production/pkg/errors"
	"github.com/ipaynter-umb/MCD43GF-production/pkg/fsutil"
	"github.com/ipaynter-umb/MCD43GF-production/pkg/metrics"
	"github.com/ipaynter-umb/MCD43GF-production/pkg/mirror"
)

// Phase is the materializer's progress through one window.
type Phase string

const (
	PhaseIdle        Phase = "idle"
	PhaseDirectories Phase = "directories-ensured"
	PhaseLinking     Phase = "linking"
	PhaseDone        Phase = "done"
)

// Event reports a phase change for one window.
type Event struct {
	Phase Phase
	Year  int
	Band  int
	Msg   string
}

// Hooks carries callbacks for progress events.
type Hooks struct {
	OnEvent func(Event)
}

func emit(h Hooks, e Event) {
	if h.OnEvent != nil {
		h.OnEvent(e)
	}
}

// Options configure a Materializer.
type Options struct {
	Hooks   Hooks
	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

// Request selects the windows to build.
type Request struct {
	Collection string
	Years      []int
	// Bands defaults to the scheme's bands.
	Bands []int
}

// MissingFile is a catalog record whose mirror file was absent when linking.
type MissingFile struct {
	Product string
	Record  catalog.FileRecord
	Path    string
}

// Result counts what a materialization did.
type Result struct {
	Windows         int
	Created         int
	Existing        int
	Missing         int
	MissingFiles    []MissingFile
	MissingCatalogs []string
}

// Materializer builds window link trees. A single call is sequential; calls
// for disjoint years may run concurrently.
type Materializer struct {
	layout mirror.Layout
	scheme Scheme
	opts   Options
	log    *slog.Logger
}

// New creates a materializer over layout.
func New(layout mirror.Layout, scheme Scheme, opts Options) *Materializer {
	log := opts.Logger
	if log == nil {
		log = logger.Named("window")
	}
	return &Materializer{layout: layout, scheme: scheme, opts: opts, log: log}
}

// Scheme returns the band scheme in use.
func (m *Materializer) Scheme() Scheme { return m.scheme }

// Materialize links every mirrored file of every requested window. Existing
// entries are never replaced, so repeating a run creates nothing new.
func (m *Materializer) Materialize(ctx context.Context, req Request, catalogs map[string]*catalog.Catalog) (*Result, error) {
	if req.Collection == "" {
		return nil, errors.Wrap(errors.ErrConfigValidation, "window needs a collection")
	}
	bands := req.Bands
	if len(bands) == 0 {
		bands = m.scheme.Bands
	}

	res := &Result{}
	for _, year := range req.Years {
		for _, band := range bands {
			spec, err := m.scheme.Spec(year, band)
			if err != nil {
				return res, err
			}
			if err := m.materialize(ctx, req.Collection, spec, catalogs, res); err != nil {
				return res, err
			}
			res.Windows++
		}
	}
	m.opts.Metrics.ObserveLinks(res.Created, res.Missing)
	return res, nil
}

func (m *Materializer) materialize(ctx context.Context, collection string, spec Spec, catalogs map[string]*catalog.Catalog, res *Result) error {
	log := m.log.With("year", spec.Year, "band", spec.Band)
	emit(m.opts.Hooks, Event{Phase: PhaseIdle, Year: spec.Year, Band: spec.Band})

	for _, sub := range spec.SubYears {
		dir := m.layout.LinkDir(collection, spec.Year, spec.Band, sub)
		if err := os.MkdirAll(dir, fsutil.DirModeDefault); err != nil {
			return errors.Wrapf(err, "failed to create link directory %s", dir)
		}
	}
	emit(m.opts.Hooks, Event{Phase: PhaseDirectories, Year: spec.Year, Band: spec.Band})

	var products []string
	for _, p := range spec.Products {
		if catalogs[p] == nil {
			log.Warn("no catalog for product, its files are not linked", "product", p)
			if !slices.Contains(res.MissingCatalogs, p) {
				res.MissingCatalogs = append(res.MissingCatalogs, p)
			}
			continue
		}
		products = append(products, p)
	}

	emit(m.opts.Hooks, Event{Phase: PhaseLinking, Year: spec.Year, Band: spec.Band})
	var created, existing, missing int
	for _, date := range spec.Dates() {
		if err := ctx.Err(); err != nil {
			return err
		}
		for _, p := range products {
			for _, r := range catalogs[p].ByDate(date) {
				target := m.layout.FilePath(p, r.Name)
				if !fsutil.IsRegularFile(target) {
					log.Warn("link not created, file missing", "product", p, "file", r.Name)
					missing++
					res.MissingFiles = append(res.MissingFiles, MissingFile{Product: p, Record: r, Path: target})
					continue
				}
				link := m.layout.LinkPath(collection, spec.Year, spec.Band, r.Year(), r.Name)
				if fsutil.Exists(link) {
					existing++
					continue
				}
				if err := os.Symlink(target, link); err != nil {
					return errors.Wrapf(err, "failed to link %s", link)
				}
				created++
			}
		}
	}

	res.Created += created
	res.Existing += existing
	res.Missing += missing
	log.Info("window materialized", "created", created, "existing", existing, "missing", missing)
	emit(m.opts.Hooks, Event{
		Phase: PhaseDone, Year: spec.Year, Band: spec.Band,
		Msg: fmt.Sprintf("%d created, %d existing, %d missing", created, existing, missing),
	})
	return nil
}
