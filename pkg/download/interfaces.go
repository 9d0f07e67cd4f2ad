//go:generate mockgen -destination=./mocks/download.go . Manager,Fetcher

package download

import (
	"context"
	"time"
)

// Manager is the transfer engine: it brings local files in line with their
// catalog checksums.
type Manager interface {
	// Run transfers every task and returns one Outcome per task, in task order.
	// Failures are reported in the outcomes, never returned.
	Run(ctx context.Context, tasks []Task, opts Options) []Outcome
}

// Fetcher streams a remote file into a local path. The request client
// retries transport failures on its own; *http.Client satisfies it.
type Fetcher interface {
	FetchToFile(ctx context.Context, rawURL, path string) (int64, error)
}

// Task is one file to bring into the mirror.
type Task struct {
	ID       string // file name, unique within a run
	URL      string
	Dest     string // absolute destination path
	Checksum uint32 // expected POSIX cksum
}

// Status is the final state of a task.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Outcome reports what happened to one task.
type Outcome struct {
	Task     Task
	Status   Status
	Attempts int
	Bytes    int64
	Err      error
	Duration time.Duration
}

// Options control a Run.
type Options struct {
	Concurrency int // parallel transfers; <=0 selects DefaultConcurrency
	MaxAttempts int // full fetch-validate cycles per task; <=0 selects DefaultMaxAttempts
}
