package download_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/mock/gomock"

	"github.com/ipaynter-umb/MCD43GF-production/pkg/download"
	dlmocks "github.com/ipaynter-umb/MCD43GF-production/pkg/download/mocks"
	"github.com/ipaynter-umb/MCD43GF-production/pkg/errors"
	"github.com/ipaynter-umb/MCD43GF-production/pkg/metrics"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("testing.(*M).Run.func1"),
		goleak.IgnoreTopFunction("testing.tRunner"),
	)
}

// granule checksums to 305419896 (0x12345678).
var granule = append([]byte("PRODX.A2001065.000.HASH.hdf payload:"), 136, 200, 217, 228)

const granuleSum uint32 = 305419896

func corrupt(b []byte) []byte {
	out := append([]byte(nil), b...)
	out[3] ^= 1
	return out
}

// scriptedFetcher answers each call for a URL with the next step of its
// script; the last step repeats.
type scriptedFetcher struct {
	mu      sync.Mutex
	scripts map[string][]step
	calls   map[string]int
}

type step struct {
	body []byte
	err  error
}

func newScriptedFetcher() *scriptedFetcher {
	return &scriptedFetcher{scripts: map[string][]step{}, calls: map[string]int{}}
}

func (f *scriptedFetcher) on(url string, steps ...step) *scriptedFetcher {
	f.scripts[url] = steps
	return f
}

func (f *scriptedFetcher) FetchToFile(ctx context.Context, url, path string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	f.mu.Lock()
	n := f.calls[url]
	f.calls[url]++
	script := f.scripts[url]
	f.mu.Unlock()

	if len(script) == 0 {
		return 0, errors.ErrRequestFailed
	}
	s := script[min(n, len(script)-1)]
	if s.err != nil {
		return 0, s.err
	}
	if err := os.WriteFile(path, s.body, 0o600); err != nil {
		return 0, err
	}
	return int64(len(s.body)), nil
}

func (f *scriptedFetcher) count(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[url]
}

func task(dir, name string) download.Task {
	return download.Task{
		ID:       name,
		URL:      "https://archive.test/" + name,
		Dest:     filepath.Join(dir, "PRODX", name),
		Checksum: granuleSum,
	}
}

func assertNoTempFiles(t *testing.T, dir string) {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(dir, ".*.part"))
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestRunRetryAccounting(t *testing.T) {
	tests := []struct {
		name         string
		steps        []step
		wantStatus   download.Status
		wantAttempts int
		wantErrs     []error
	}{
		{
			name:         "first attempt succeeds",
			steps:        []step{{body: granule}},
			wantStatus:   download.StatusSucceeded,
			wantAttempts: 1,
		},
		{
			name:         "fail once then succeed",
			steps:        []step{{err: errors.ErrRequestFailed}, {body: granule}},
			wantStatus:   download.StatusSucceeded,
			wantAttempts: 2,
		},
		{
			name:         "fail, corrupt, succeed",
			steps:        []step{{err: errors.ErrRequestFailed}, {body: corrupt(granule)}, {body: granule}},
			wantStatus:   download.StatusSucceeded,
			wantAttempts: 3,
		},
		{
			name:         "always corrupt",
			steps:        []step{{body: corrupt(granule)}},
			wantStatus:   download.StatusFailed,
			wantAttempts: 3,
			wantErrs:     []error{errors.ErrPermanentTransfer, errors.ErrChecksumMismatch, errors.ErrAttemptsExhausted},
		},
		{
			name:         "always unreachable",
			steps:        []step{{err: errors.ErrRequestFailed}},
			wantStatus:   download.StatusFailed,
			wantAttempts: 3,
			wantErrs:     []error{errors.ErrPermanentTransfer, errors.ErrRequestFailed},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			tk := task(dir, "PRODX.A2001065.000.HASH.hdf")
			fetcher := newScriptedFetcher().on(tk.URL, tt.steps...)

			outcomes := download.NewManager(fetcher, nil, nil).Run(context.Background(),
				[]download.Task{tk}, download.Options{MaxAttempts: 3})
			require.Len(t, outcomes, 1)
			out := outcomes[0]

			assert.Equal(t, tt.wantStatus, out.Status)
			assert.Equal(t, tt.wantAttempts, out.Attempts)
			assert.Equal(t, tt.wantAttempts, fetcher.count(tk.URL))
			for _, want := range tt.wantErrs {
				assert.ErrorIs(t, out.Err, want)
			}

			if tt.wantStatus == download.StatusSucceeded {
				require.NoError(t, out.Err)
				got, err := os.ReadFile(tk.Dest)
				require.NoError(t, err)
				assert.Equal(t, granule, got)
				assert.Equal(t, int64(len(granule)), out.Bytes)
			} else {
				assert.NoFileExists(t, tk.Dest, "bytes failing validation never reach the destination")
			}
			assertNoTempFiles(t, filepath.Dir(tk.Dest))
		})
	}
}

func TestRunOverwritesExistingFile(t *testing.T) {
	dir := t.TempDir()
	tk := task(dir, "PRODX.A2001065.000.HASH.hdf")
	require.NoError(t, os.MkdirAll(filepath.Dir(tk.Dest), 0o755))
	require.NoError(t, os.WriteFile(tk.Dest, []byte("stale"), 0o644))

	fetcher := newScriptedFetcher().on(tk.URL, step{body: granule})
	out := download.NewManager(fetcher, nil, nil).Run(context.Background(), []download.Task{tk}, download.Options{})

	require.Equal(t, download.StatusSucceeded, out[0].Status)
	got, err := os.ReadFile(tk.Dest)
	require.NoError(t, err)
	assert.Equal(t, granule, got)

	st, err := os.Stat(tk.Dest)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o644), st.Mode().Perm())
}

// gaugeFetcher tracks how many fetches run at once.
type gaugeFetcher struct {
	active, peak atomic.Int32
}

func (g *gaugeFetcher) FetchToFile(_ context.Context, _, path string) (int64, error) {
	n := g.active.Add(1)
	defer g.active.Add(-1)
	for {
		p := g.peak.Load()
		if n <= p || g.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(5 * time.Millisecond)
	return int64(len(granule)), os.WriteFile(path, granule, 0o600)
}

func TestRunBoundedConcurrencyInTaskOrder(t *testing.T) {
	dir := t.TempDir()
	tasks := make([]download.Task, 20)
	for i := range tasks {
		tasks[i] = task(dir, fmt.Sprintf("PRODX.A2001%03d.000.HASH.hdf", i+1))
	}

	fetcher := &gaugeFetcher{}
	reg := prometheus.NewRegistry()
	outcomes := download.NewManager(fetcher, metrics.New(reg), nil).Run(context.Background(), tasks,
		download.Options{Concurrency: 4})

	require.Len(t, outcomes, len(tasks))
	for i, o := range outcomes {
		assert.Equal(t, tasks[i].ID, o.Task.ID)
		assert.Equal(t, download.StatusSucceeded, o.Status)
	}
	assert.LessOrEqual(t, fetcher.peak.Load(), int32(4))

	s := download.Summarize(outcomes)
	assert.Equal(t, 20, s.Succeeded)
	assert.Zero(t, s.Failed)
	assert.Equal(t, int64(20*len(granule)), s.Bytes)
}

func TestRunCanceled(t *testing.T) {
	ctrl := gomock.NewController(t)
	fetcher := dlmocks.NewMockFetcher(ctrl)
	fetcher.EXPECT().FetchToFile(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	dir := t.TempDir()
	outcomes := download.NewManager(fetcher, nil, nil).Run(ctx,
		[]download.Task{task(dir, "a.hdf"), task(dir, "b.hdf")}, download.Options{})
	for _, o := range outcomes {
		assert.Equal(t, download.StatusFailed, o.Status)
		assert.ErrorIs(t, o.Err, context.Canceled)
		assert.Zero(t, o.Attempts)
	}
}

func TestRunRejectsRelativeDestination(t *testing.T) {
	ctrl := gomock.NewController(t)
	fetcher := dlmocks.NewMockFetcher(ctrl)

	outcomes := download.NewManager(fetcher, nil, nil).Run(context.Background(),
		[]download.Task{{ID: "x", URL: "https://archive.test/x", Dest: "relative/x"}}, download.Options{})
	require.Len(t, outcomes, 1)
	assert.Equal(t, download.StatusFailed, outcomes[0].Status)
	assert.ErrorIs(t, outcomes[0].Err, errors.ErrInvalidPath)
	assert.Zero(t, outcomes[0].Attempts)
}

func TestRunDoesNotRetryNonRetryableErrors(t *testing.T) {
	ctrl := gomock.NewController(t)
	fetcher := dlmocks.NewMockFetcher(ctrl)
	fetcher.EXPECT().
		FetchToFile(gomock.Any(), "https://archive.test/a.hdf", gomock.Any()).
		Return(int64(0), errors.ErrMissingCredentials).
		Times(1)

	outcomes := download.NewManager(fetcher, nil, nil).Run(context.Background(),
		[]download.Task{task(t.TempDir(), "a.hdf")}, download.Options{MaxAttempts: 5})
	assert.Equal(t, 1, outcomes[0].Attempts)
	assert.ErrorIs(t, outcomes[0].Err, errors.ErrMissingCredentials)
}

func TestRunEmpty(t *testing.T) {
	assert.Empty(t, download.NewManager(newScriptedFetcher(), nil, nil).Run(context.Background(), nil, download.Options{}))
}

func TestSummarize(t *testing.T) {
	s := download.Summarize([]download.Outcome{
		{Status: download.StatusSucceeded, Bytes: 10},
		{Status: download.StatusFailed, Task: download.Task{ID: "b"}},
		{Status: download.StatusSucceeded, Bytes: 5},
	})
	assert.Equal(t, 2, s.Succeeded)
	assert.Equal(t, 1, s.Failed)
	assert.Equal(t, int64(15), s.Bytes)
	require.Len(t, s.Failures, 1)
	assert.Equal(t, "b", s.Failures[0].Task.ID)
}
