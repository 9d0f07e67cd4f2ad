package mirror

import (
	"bufio"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/ipaynter-umb/MCD43GF-production/internal/logger"
	"github.com/ipaynter-umb/MCD43GF-production/pkg/catalog"
	"github.com/ipaynter-umb/MCD43GF-production/pkg/checksum"
	"github.com/ipaynter-umb/MCD43GF-production/pkg/errors"
	"github.com/ipaynter-umb/MCD43GF-production/pkg/fsutil"
)

// Audit actions and reasons as written to the report.
const (
	ActionKept    = "kept"
	ActionRemoved = "removed"

	ReasonChecksumMismatch = "checksum-mismatch"
	ReasonNotInCatalog     = "not-in-catalog"

	reportStampLayout = "20060102T150405"
)

// AuditOptions control Audit.
type AuditOptions struct {
	// RemoveUnknown deletes files the catalog does not list. Otherwise they
	// are kept and reported.
	RemoveUnknown bool
	Logger        *slog.Logger
	// Now stamps the report; nil means time.Now.
	Now func() time.Time
}

// AuditEntry is one locally present file.
type AuditEntry struct {
	Name   string
	Action string
	Reason string
}

// AuditReport is the record of one audit of a product directory.
type AuditReport struct {
	RunID   string
	Key     catalog.Key
	Time    time.Time
	Entries []AuditEntry
	// Absent counts catalog records with no local file.
	Absent int
}

// Counts returns how many files were kept and removed.
func (r *AuditReport) Counts() (kept, removed int) {
	for _, e := range r.Entries {
		if e.Action == ActionRemoved {
			removed++
		} else {
			kept++
		}
	}
	return kept, removed
}

// WriteTo writes the report: a "# run" header followed by one line per file.
func (r *AuditReport) WriteTo(w io.Writer) (int64, error) {
	bw := bufio.NewWriter(w)
	var n int64
	write := func(format string, args ...any) error {
		c, err := fmt.Fprintf(bw, format, args...)
		n += int64(c)
		return err
	}
	if err := write("# run %s %s\n", r.RunID, r.Time.UTC().Format(time.RFC3339)); err != nil {
		return n, err
	}
	for _, e := range r.Entries {
		var err error
		if e.Reason == "" {
			err = write("%s %s\n", e.Name, e.Action)
		} else {
			err = write("%s %s %s\n", e.Name, e.Action, e.Reason)
		}
		if err != nil {
			return n, err
		}
	}
	return n, bw.Flush()
}

// FileName is the report's name inside a report directory.
func (r *AuditReport) FileName() string {
	return fmt.Sprintf("%s_download_%s.txt", r.Key.Product, r.Time.UTC().Format(reportStampLayout))
}

// Save writes the report into dir and returns its path.
func (r *AuditReport) Save(dir string) (string, error) {
	if err := os.MkdirAll(dir, fsutil.DirModeDefault); err != nil {
		return "", errors.Wrapf(err, "failed to create report directory %s", dir)
	}
	path := filepath.Join(dir, r.FileName())
	err := fsutil.WriteFileAtomic(path, fsutil.FileModeDefault, func(w io.Writer) error {
		_, err := r.WriteTo(w)
		return err
	})
	if err != nil {
		return "", errors.Wrapf(err, "failed to write report %s", path)
	}
	return path, nil
}

// Audit checks every file in the product's mirror directory against cat.
// Files failing their checksum are deleted so the next sync refetches them.
func Audit(ctx context.Context, cat *catalog.Catalog, layout Layout, opts AuditOptions) (*AuditReport, error) {
	log := opts.Logger
	if log == nil {
		log = logger.Named("mirror")
	}
	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}
	key := cat.Key()
	report := &AuditReport{RunID: uuid.NewString(), Key: key, Time: now()}

	dir := layout.ProductDir(key.Product)
	entries, err := os.ReadDir(dir)
	if err != nil && !stderrors.Is(err, fs.ErrNotExist) {
		return nil, errors.Wrapf(err, "failed to read mirror directory %s", dir)
	}

	present := make(map[string]bool, len(entries))
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !e.Type().IsRegular() {
			continue
		}
		name := e.Name()
		path := filepath.Join(dir, name)

		rec, known := cat.Lookup(name)
		if !known {
			if !opts.RemoveUnknown {
				report.Entries = append(report.Entries, AuditEntry{Name: name, Action: ActionKept, Reason: ReasonNotInCatalog})
				continue
			}
			if err := fsutil.RemoveIfExists(path); err != nil {
				return nil, errors.Wrapf(err, "remove %s", path)
			}
			log.Info("removed file not in catalog", "file", name)
			report.Entries = append(report.Entries, AuditEntry{Name: name, Action: ActionRemoved, Reason: ReasonNotInCatalog})
			continue
		}

		present[name] = true
		ok, err := checksum.VerifyFile(path, rec.Checksum)
		if err != nil {
			return nil, errors.Wrapf(err, "verify %s", path)
		}
		if ok {
			report.Entries = append(report.Entries, AuditEntry{Name: name, Action: ActionKept})
			continue
		}
		if err := fsutil.RemoveIfExists(path); err != nil {
			return nil, errors.Wrapf(err, "remove %s", path)
		}
		present[name] = false
		log.Warn("removed file failing its checksum", "file", name)
		report.Entries = append(report.Entries, AuditEntry{Name: name, Action: ActionRemoved, Reason: ReasonChecksumMismatch})
	}

	for _, r := range cat.Records() {
		if !present[r.Name] {
			report.Absent++
		}
	}
	kept, removed := report.Counts()
	log.Info("audit finished", "product", key.Product, "kept", kept, "removed", removed, "absent", report.Absent)
	return report, nil
}
