package download

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ipaynter-umb/MCD43GF-production/internal/logger"
	"github.com/ipaynter-umb/MCD43GF-production/pkg/checksum"
	pkgerrors "github.com/ipaynter-umb/MCD43GF-production/pkg/errors"
	"github.com/ipaynter-umb/MCD43GF-production/pkg/fsutil"
	"github.com/ipaynter-umb/MCD43GF-production/pkg/metrics"
	"github.com/ipaynter-umb/MCD43GF-production/pkg/retry"
)

const (
	DefaultConcurrency = 3
	DefaultMaxAttempts = 3
)

// ManagerImpl fetches each task into a temporary file next to its
// destination, validates the checksum and renames it into place.
type ManagerImpl struct {
	fetcher Fetcher
	metrics *metrics.Metrics
	log     *slog.Logger
}

// NewManager creates a transfer engine on top of fetcher. m may be nil.
func NewManager(fetcher Fetcher, m *metrics.Metrics, log *slog.Logger) *ManagerImpl {
	if log == nil {
		log = logger.Named("download")
	}
	return &ManagerImpl{fetcher: fetcher, metrics: m, log: log}
}

// Run implements Manager.
func (m *ManagerImpl) Run(ctx context.Context, tasks []Task, opts Options) []Outcome {
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	outcomes := make([]Outcome, len(tasks))
	if len(tasks) == 0 {
		return outcomes
	}

	queue := make(chan int)
	var wg sync.WaitGroup
	for range min(opts.Concurrency, len(tasks)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range queue {
				outcomes[i] = m.transfer(ctx, tasks[i], opts.MaxAttempts)
			}
		}()
	}
	for i := range tasks {
		queue <- i
	}
	close(queue)
	wg.Wait()
	return outcomes
}

func (m *ManagerImpl) transfer(ctx context.Context, task Task, maxAttempts int) Outcome {
	began := time.Now()
	out := Outcome{Task: task}
	log := m.log.With("file", task.ID)

	var written int64
	var attempts int
	err := m.prepare(task, log)
	if err == nil {
		attempts, err = retry.Do(ctx, retry.Policy{
			MaxAttempts: maxAttempts,
			Retryable:   retryable,
		}, func(ctx context.Context, attempt int) error {
			n, err := m.attempt(ctx, task)
			if err != nil {
				log.Warn("transfer attempt failed", "attempt", attempt, "error", err)
				return err
			}
			written = n
			return nil
		}, nil)
	}

	out.Attempts = attempts
	out.Duration = time.Since(began)
	if err != nil {
		out.Status = StatusFailed
		out.Err = fmt.Errorf("%w: %s: %w", pkgerrors.ErrPermanentTransfer, task.ID, err)
		log.Error("transfer failed", "attempts", attempts, "error", err)
	} else {
		out.Status = StatusSucceeded
		out.Bytes = written
		log.Debug("transfer complete", "attempts", attempts, "bytes", written)
	}
	m.metrics.ObserveTransfer(string(out.Status), out.Attempts, out.Bytes)
	return out
}

// prepare validates the destination and creates its directory.
func (m *ManagerImpl) prepare(task Task, log *slog.Logger) error {
	if task.Dest == "" || !filepath.IsAbs(task.Dest) {
		return pkgerrors.Wrapf(pkgerrors.ErrInvalidPath, "destination must be absolute: %q", task.Dest)
	}
	if fsutil.Exists(task.Dest) {
		log.Warn("overwriting existing file", "path", task.Dest)
	}
	if err := fsutil.EnsureFileDir(task.Dest); err != nil {
		return pkgerrors.Wrapf(pkgerrors.ErrInvalidPath, "create directory for %s: %v", task.Dest, err)
	}
	return nil
}

// attempt runs one fetch, validate, move cycle. Bytes that fail validation are
// deleted before the next attempt.
func (m *ManagerImpl) attempt(ctx context.Context, task Task) (int64, error) {
	tmp, err := os.CreateTemp(filepath.Dir(task.Dest), "."+filepath.Base(task.Dest)+"-*.part")
	if err != nil {
		return 0, pkgerrors.Wrapf(pkgerrors.ErrInvalidPath, "create temp file: %v", err)
	}
	tmpPath := tmp.Name()
	_ = tmp.Close()
	keep := false
	defer func() {
		if !keep {
			_ = fsutil.RemoveIfExists(tmpPath)
		}
	}()

	n, err := m.fetcher.FetchToFile(ctx, task.URL, tmpPath)
	if err != nil {
		return 0, err
	}
	sum, _, err := checksum.File(tmpPath)
	if err != nil {
		return 0, pkgerrors.Wrap(err, "checksum temp file")
	}
	if sum != task.Checksum {
		m.metrics.ObserveChecksumFailure()
		return 0, pkgerrors.Wrapf(pkgerrors.ErrChecksumMismatch, "%s: got %d, want %d", task.ID, sum, task.Checksum)
	}
	if err := os.Chmod(tmpPath, fsutil.FileModeDefault); err != nil {
		return 0, pkgerrors.Wrap(err, "could not set permissions")
	}
	if err := fsutil.Move(tmpPath, task.Dest); err != nil {
		return 0, pkgerrors.Wrapf(err, "move %s into place", task.ID)
	}
	keep = true
	return n, nil
}

func retryable(err error) bool {
	return !stderrors.Is(err, context.Canceled) &&
		!stderrors.Is(err, context.DeadlineExceeded) &&
		!stderrors.Is(err, pkgerrors.ErrInvalidPath) &&
		!stderrors.Is(err, pkgerrors.ErrMissingCredentials)
}

// Summary aggregates a run's outcomes.
type Summary struct {
	Succeeded int
	Failed    int
	Bytes     int64
	Failures  []Outcome
}

// Summarize counts successes and failures.
func Summarize(outcomes []Outcome) Summary {
	var s Summary
	for _, o := range outcomes {
		switch o.Status {
		case StatusSucceeded:
			s.Succeeded++
			s.Bytes += o.Bytes
		default:
			s.Failed++
			s.Failures = append(s.Failures, o)
		}
	}
	return s
}
