//go:build integration

package main

import (
	stderrors "errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ipaynter-umb/MCD43GF-production/pkg/errors"
	"github.com/ipaynter-umb/MCD43GF-production/test/testutil"
)

func TestVersion(t *testing.T) {
	out, err := runCLI(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "mcd43gf version")
	assert.Contains(t, out, "Git commit:")
}

func TestConfigInitShowSetGet(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")

	_, err := runCLI(t, "--config", cfgPath, "config", "init")
	require.NoError(t, err)
	require.FileExists(t, cfgPath)

	_, err = runCLI(t, "--config", cfgPath, "config", "init")
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, errors.ErrConfigFileExists))

	_, err = runCLI(t, "--config", cfgPath, "config", "init", "--force")
	require.NoError(t, err)

	_, err = runCLI(t, "--config", cfgPath, "config", "set", "transfer_workers", "7")
	require.NoError(t, err)

	out, err := runCLI(t, "--config", cfgPath, "config", "get", "transfer_workers")
	require.NoError(t, err)
	assert.Equal(t, "7", strings.TrimSpace(out))

	out, err = runCLI(t, "--config", cfgPath, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "transfer_workers")
	assert.Contains(t, out, "https://ladsweb.modaps.eosdis.nasa.gov/archive/allData")
	assert.Contains(t, out, "Datasets (0)")

	_, err = runCLI(t, "--config", cfgPath, "config", "set", "transfer_workers", "0")
	require.Error(t, err)
	out, err = runCLI(t, "--config", cfgPath, "config", "get", "transfer_workers")
	require.NoError(t, err)
	assert.Equal(t, "7", strings.TrimSpace(out), "rejected values are not saved")
}

func TestSyncWithoutDatasetsFails(t *testing.T) {
	root := t.TempDir()
	cfgPath := testutil.SetupTestConfig(t, root, "https://archive.invalid/allData", testTokenEnv)

	_, err := runCLI(t, "--config", cfgPath, "sync")
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, errors.ErrConfigValidation))
}

func TestMirrorLifecycle(t *testing.T) {
	t.Setenv(testTokenEnv, testutil.Token)
	archive := testutil.NewArchive(t)
	root := t.TempDir()

	first := archive.AddGranule("MCD43D01", "2016", "001", []byte("band one, day one"))
	second := archive.AddGranule("MCD43D01", "2016", "002", []byte("band one, day two"))
	cfgPath := testutil.SetupTestConfig(t, root, archive.BaseURL(), testTokenEnv, "MCD43D01")
	mirrored := filepath.Join(root, "mirror", "MCD43D01")

	// crawl
	out, err := runCLI(t, "--config", cfgPath, "crawl")
	require.NoError(t, err)
	assert.Contains(t, out, "61/MCD43D01: 2 files from 2016-01-01 to 2016-01-02")

	out, err = runCLI(t, "--config", cfgPath, "snapshot", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "61/MCD43D01")

	out, err = runCLI(t, "--config", cfgPath, "snapshot", "show", "61/MCD43D01", "--days")
	require.NoError(t, err)
	assert.Contains(t, out, "Files:          2")
	assert.Contains(t, out, "2016-01-02")

	// dry run transfers nothing
	out, err = runCLI(t, "--config", cfgPath, "sync", "--dry-run")
	require.NoError(t, err)
	assert.Contains(t, out, "2 missing")
	assert.Contains(t, out, "would fetch")
	assert.NoFileExists(t, filepath.Join(mirrored, first))

	// sync fetches both, a second sync has nothing to do
	_, err = runCLI(t, "--config", cfgPath, "sync")
	require.NoError(t, err)
	data, err := os.ReadFile(filepath.Join(mirrored, first))
	require.NoError(t, err)
	assert.Equal(t, "band one, day one", string(data))
	require.FileExists(t, filepath.Join(mirrored, second))

	out, err = runCLI(t, "--config", cfgPath, "sync")
	require.NoError(t, err)
	assert.Contains(t, out, "2 present, 0 missing")
	assert.Equal(t, 1, archive.Downloads(first))

	// audit removes a damaged copy and sync --verify restores it
	require.NoError(t, os.WriteFile(filepath.Join(mirrored, second), []byte("damaged"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(mirrored, "stray.hdf"), []byte("?"), 0o644))
	out, err = runCLI(t, "--config", cfgPath, "audit", "--details")
	require.NoError(t, err)
	assert.Contains(t, out, "61/MCD43D01: 2 kept, 1 removed, 1 absent")
	assert.NoFileExists(t, filepath.Join(mirrored, second))
	assert.FileExists(t, filepath.Join(mirrored, "stray.hdf"))
	reports, err := os.ReadDir(filepath.Join(root, "reports"))
	require.NoError(t, err)
	assert.Len(t, reports, 1)

	_, err = runCLI(t, "--config", cfgPath, "sync", "--verify")
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(mirrored, second))

	// window links
	out, err = runCLI(t, "--config", cfgPath, "window", "link", "--years", "2016")
	require.NoError(t, err)
	assert.Contains(t, out, "1 windows: 2 created")
	link := filepath.Join(root, "links", "61", "2016", "01", "2016", first)
	target, err := os.Readlink(link)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(mirrored, first), target)

	out, err = runCLI(t, "--config", cfgPath, "window", "plan", "--year", "2016")
	require.NoError(t, err)
	assert.Contains(t, out, "window 2016 band 01")
	assert.Contains(t, out, "span 2015-06-20 .. 2017-07-12")

	out, err = runCLI(t, "--config", cfgPath, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "MCD43D01")
	assert.Contains(t, out, "Window Links:     2")
}

func TestSyncReportsPermanentFailures(t *testing.T) {
	t.Setenv(testTokenEnv, testutil.Token)
	archive := testutil.NewArchive(t)
	root := t.TempDir()

	good := archive.AddGranule("MCD43D02", "2016", "010", []byte("good"))
	bad := archive.AddGranule("MCD43D02", "2016", "011", []byte("bad"))
	archive.SetCorrupt(bad, true)
	cfgPath := testutil.SetupTestConfig(t, root, archive.BaseURL(), testTokenEnv, "MCD43D02")

	out, err := runCLI(t, "--config", cfgPath, "sync")
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, errors.ErrPermanentTransfer))
	assert.Contains(t, out, "transferred 1")
	assert.Contains(t, out, "failed "+bad)

	assert.FileExists(t, filepath.Join(root, "mirror", "MCD43D02", good))
	assert.NoFileExists(t, filepath.Join(root, "mirror", "MCD43D02", bad), "mismatched copies are never kept")
	assert.Equal(t, 2, archive.Downloads(bad), "every attempt refetches")

	// the archive recovers; repair links the window after fetching
	archive.SetCorrupt(bad, false)
	out, err = runCLI(t, "--config", cfgPath, "repair", "--years", "2016")
	require.NoError(t, err)
	assert.Contains(t, out, "before: 1 links missing their file")
	assert.Contains(t, out, "fetched 1 of 1 files")
	assert.Contains(t, out, "after: 1 created, 0 still missing")
}

func TestSyncRequiresToken(t *testing.T) {
	t.Setenv(testTokenEnv, "")
	archive := testutil.NewArchive(t)
	root := t.TempDir()
	archive.AddGranule("MCD43D03", "2016", "001", []byte("x"))
	cfgPath := testutil.SetupTestConfig(t, root, archive.BaseURL(), testTokenEnv, "MCD43D03")

	_, err := runCLI(t, "--config", cfgPath, "sync")
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, errors.ErrMissingCredentials))
}
