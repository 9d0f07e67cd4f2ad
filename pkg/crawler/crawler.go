// Package crawler walks the archive's year and day listings for one product
// and folds the discovered files into a catalog.
package crawler

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ipaynter-umb/MCD43GF-production/internal/logger"
	"github.com/ipaynter-umb/MCD43GF-production/pkg/catalog"
	"github.com/ipaynter-umb/MCD43GF-production/pkg/errors"
	"github.com/ipaynter-umb/MCD43GF-production/pkg/listing"
	"github.com/ipaynter-umb/MCD43GF-production/pkg/metrics"
)

const (
	DefaultWorkers   = 5
	DefaultChunkSize = 50
)

// Lister decodes listing documents. *http.Client satisfies it.
type Lister interface {
	FetchJSON(ctx context.Context, rawURL string, v any) error
}

// Options configure a Crawler.
type Options struct {
	Workers   int
	ChunkSize int
	Metrics   *metrics.Metrics
	Logger    *slog.Logger
}

// Request selects what to crawl. Zero Start or End leaves that side open.
type Request struct {
	Collection string
	Product    string
	Start      time.Time
	End        time.Time
	// Include keeps only names containing at least one of the substrings.
	Include []string
	// Exclude drops names containing any of the substrings.
	Exclude []string
}

// Stats summarises a crawl.
type Stats struct {
	Years      int
	Days       int
	Chunks     int
	Files      int
	Duplicates int
	Rejected   int
	Filtered   int
	// Gaps counts listings that failed after all retries; their days
	// contribute no files.
	Gaps     int
	GapDates []time.Time
	Elapsed  time.Duration
}

// Crawler discovers files for one product at a time.
type Crawler struct {
	lister Lister
	layout listing.Layout
	opts   Options
	log    *slog.Logger
}

// New creates a crawler reading listings below layout.
func New(lister Lister, layout listing.Layout, opts Options) *Crawler {
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	log := opts.Logger
	if log == nil {
		log = logger.Named("crawler")
	}
	return &Crawler{lister: lister, layout: layout, opts: opts, log: log}
}

type dayRef struct {
	year string
	doy  string
	date time.Time
}

type dayResult struct {
	ref      dayRef
	records  []catalog.FileRecord
	rejected int
	filtered int
	err      error
}

// Crawl lists every in-range day of req.Product and returns the resulting catalog.
// Only a failed product listing or cancellation aborts the crawl.
func (c *Crawler) Crawl(ctx context.Context, req Request) (*catalog.Catalog, *Stats, error) {
	if req.Collection == "" || req.Product == "" {
		return nil, nil, errors.Wrap(errors.ErrConfigValidation, "crawl needs a collection and a product")
	}
	if !req.Start.IsZero() && !req.End.IsZero() && req.End.Before(req.Start) {
		return nil, nil, errors.Wrapf(errors.ErrInvalidDateRange, "%s is after %s",
			req.Start.Format(time.DateOnly), req.End.Format(time.DateOnly))
	}

	began := time.Now()
	stats := &Stats{}
	log := c.log.With("collection", req.Collection, "product", req.Product)

	days, err := c.discoverDays(ctx, req, stats, log)
	if err != nil {
		return nil, stats, err
	}
	stats.Days = len(days)

	chunks := partition(days, c.opts.ChunkSize)
	stats.Chunks = len(chunks)
	log.Info("listing days", "days", len(days), "chunks", len(chunks), "workers", c.opts.Workers)

	builder := catalog.NewBuilder(catalog.Key{Collection: req.Collection, Product: req.Product})
	err = c.resolveDays(ctx, req, chunks, func(res dayResult) {
		stats.Rejected += res.rejected
		stats.Filtered += res.filtered
		if res.err != nil {
			stats.Gaps++
			stats.GapDates = append(stats.GapDates, res.ref.date)
			log.Warn("day listing failed, no files recorded for it",
				"year", res.ref.year, "doy", res.ref.doy, "error", res.err)
			c.opts.Metrics.ObserveDay(req.Product, "gap", 0)
			return
		}
		for _, r := range res.records {
			if builder.Add(r) {
				stats.Duplicates++
				log.Warn("duplicate file name, keeping the latest entry", "file", r.Name)
			}
		}
		c.opts.Metrics.ObserveDay(req.Product, "ok", len(res.records))
	})
	if err != nil {
		return nil, stats, err
	}

	cat := builder.Build()
	stats.Files = cat.Len()
	stats.Elapsed = time.Since(began)
	log.Info("crawl finished", "files", stats.Files, "days", stats.Days,
		"gaps", stats.Gaps, "rejected", stats.Rejected, "duplicates", stats.Duplicates,
		"elapsed", stats.Elapsed.Round(time.Millisecond))
	return cat, stats, nil
}

// discoverDays reads the product and year listings and returns the in-range days.
func (c *Crawler) discoverDays(ctx context.Context, req Request, stats *Stats, log *slog.Logger) ([]dayRef, error) {
	var product listing.Listing
	if err := c.lister.FetchJSON(ctx, c.layout.ProductURL(req.Collection, req.Product), &product); err != nil {
		return nil, errors.Wrapf(err, "list years of %s/%s", req.Collection, req.Product)
	}

	var days []dayRef
	for _, y := range product.Directories() {
		year, err := strconv.Atoi(y.Name)
		if err != nil {
			log.Warn("skipping non-numeric year directory", "name", y.Name)
			continue
		}
		if (!req.Start.IsZero() && year < req.Start.Year()) || (!req.End.IsZero() && year > req.End.Year()) {
			continue
		}
		stats.Years++

		var yl listing.Listing
		if err := c.lister.FetchJSON(ctx, c.layout.YearURL(req.Collection, req.Product, y.Name), &yl); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			stats.Gaps++
			log.Warn("year listing failed, skipping its days", "year", y.Name, "error", err)
			continue
		}
		for _, d := range yl.Directories() {
			date, err := catalog.ParseYearDOY(y.Name, d.Name)
			if err != nil {
				log.Warn("skipping malformed day directory", "year", y.Name, "name", d.Name, "error", err)
				continue
			}
			if !inRange(date, req.Start, req.End) {
				continue
			}
			days = append(days, dayRef{year: y.Name, doy: d.Name, date: date})
		}
	}
	return days, nil
}

// resolveDays lists every day on a bounded pool. fold runs on the calling
// goroutine only.
func (c *Crawler) resolveDays(ctx context.Context, req Request, chunks [][]dayRef, fold func(dayResult)) error {
	g, gctx := errgroup.WithContext(ctx)
	work := make(chan []dayRef)
	results := make(chan dayResult)

	g.Go(func() error {
		defer close(work)
		for _, chunk := range chunks {
			select {
			case work <- chunk:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})
	for range c.opts.Workers {
		g.Go(func() error {
			for chunk := range work {
				for _, ref := range chunk {
					res := c.resolveDay(gctx, req, ref)
					if res.err != nil && gctx.Err() != nil {
						return gctx.Err()
					}
					select {
					case results <- res:
					case <-gctx.Done():
						return gctx.Err()
					}
				}
			}
			return nil
		})
	}

	done := make(chan error, 1)
	go func() {
		done <- g.Wait()
		close(results)
	}()
	for res := range results {
		fold(res)
	}
	if err := <-done; err != nil {
		return err
	}
	return ctx.Err()
}

func (c *Crawler) resolveDay(ctx context.Context, req Request, ref dayRef) dayResult {
	res := dayResult{ref: ref}
	var day listing.Listing
	if err := c.lister.FetchJSON(ctx, c.layout.DayURL(req.Collection, req.Product, ref.year, ref.doy), &day); err != nil {
		res.err = err
		return res
	}
	for _, e := range day.Files() {
		if !keep(e.Name, req.Include, req.Exclude) {
			res.filtered++
			continue
		}
		if !e.Cksum.Valid {
			res.rejected++
			c.log.Warn("file entry has no checksum", "file", e.Name)
			continue
		}
		r, err := catalog.NewRecord(e.Name, e.Cksum.Value)
		if err != nil {
			res.rejected++
			c.log.Warn("file name carries no acquisition date", "file", e.Name, "error", err)
			continue
		}
		if !r.Date.Equal(ref.date) {
			res.rejected++
			c.log.Warn("file date disagrees with its directory", "file", e.Name,
				"year", ref.year, "doy", ref.doy)
			continue
		}
		res.records = append(res.records, r)
	}
	return res
}

func partition(days []dayRef, size int) [][]dayRef {
	var chunks [][]dayRef
	for start := 0; start < len(days); start += size {
		end := min(start+size, len(days))
		chunks = append(chunks, days[start:end])
	}
	return chunks
}

func inRange(date, start, end time.Time) bool {
	if !start.IsZero() && date.Before(catalog.Day(start)) {
		return false
	}
	if !end.IsZero() && date.After(catalog.Day(end)) {
		return false
	}
	return true
}

func keep(name string, include, exclude []string) bool {
	for _, s := range exclude {
		if s != "" && strings.Contains(name, s) {
			return false
		}
	}
	if len(include) == 0 {
		return true
	}
	for _, s := range include {
		if strings.Contains(name, s) {
			return true
		}
	}
	return false
}
