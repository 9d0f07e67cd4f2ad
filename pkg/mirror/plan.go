package mirror

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/ipaynter-umb/MCD43GF-production/internal/logger"
	"github.com/ipaynter-umb/MCD43GF-production/pkg/catalog"
	"github.com/ipaynter-umb/MCD43GF-production/pkg/checksum"
	"github.com/ipaynter-umb/MCD43GF-production/pkg/download"
	"github.com/ipaynter-umb/MCD43GF-production/pkg/errors"
	"github.com/ipaynter-umb/MCD43GF-production/pkg/fsutil"
	"github.com/ipaynter-umb/MCD43GF-production/pkg/listing"
)

// PlanOptions control Plan.
type PlanOptions struct {
	// Verify checksums files already present; mismatching files are deleted
	// and queued again. Without it presence is enough.
	Verify bool
	// Start and End restrict planning to records in [Start, End]. Zero is open.
	Start  time.Time
	End    time.Time
	Logger *slog.Logger
}

// PlanStats counts what Plan found.
type PlanStats struct {
	Considered int
	Present    int
	Missing    int
	Corrupt    int
}

// Plan returns a transfer task for every catalog record without a (verified)
// mirror file. Running it again after a successful transfer yields nothing.
func Plan(ctx context.Context, cat *catalog.Catalog, layout Layout, urls listing.Layout, opts PlanOptions) ([]download.Task, PlanStats, error) {
	log := opts.Logger
	if log == nil {
		log = logger.Named("mirror")
	}
	key := cat.Key()

	var stats PlanStats
	var tasks []download.Task
	for _, r := range cat.Between(opts.Start, opts.End) {
		if err := ctx.Err(); err != nil {
			return nil, stats, err
		}
		stats.Considered++
		dest := layout.FilePath(key.Product, r.Name)

		if fsutil.IsRegularFile(dest) {
			if !opts.Verify {
				stats.Present++
				continue
			}
			ok, err := checksum.VerifyFile(dest, r.Checksum)
			if err != nil {
				return nil, stats, errors.Wrapf(err, "verify %s", dest)
			}
			if ok {
				stats.Present++
				continue
			}
			log.Warn("mirror file fails its checksum, deleting before refetch", "file", r.Name)
			if err := fsutil.RemoveIfExists(dest); err != nil {
				return nil, stats, errors.Wrapf(err, "remove %s", dest)
			}
			stats.Corrupt++
		} else {
			stats.Missing++
		}

		tasks = append(tasks, TaskFor(key, r, layout, urls))
	}
	log.Debug("planned transfers", "product", key.Product, "tasks", len(tasks),
		"present", stats.Present, "missing", stats.Missing, "corrupt", stats.Corrupt)
	return tasks, stats, nil
}

// TaskFor builds the transfer task of a single record.
func TaskFor(key catalog.Key, r catalog.FileRecord, layout Layout, urls listing.Layout) download.Task {
	return download.Task{
		ID:       r.Name,
		URL:      urls.FileURL(key.Collection, key.Product, strconv.Itoa(r.Year()), r.DOY(), r.Name),
		Dest:     layout.FilePath(key.Product, r.Name),
		Checksum: r.Checksum,
	}
}
