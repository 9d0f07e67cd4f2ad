package catalog_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ipaynter-umb/MCD43GF-production/pkg/catalog"
	"github.com/ipaynter-umb/MCD43GF-production/pkg/errors"
)

// repositoryContract exercises behaviour every Repository implementation shares.
func repositoryContract(t *testing.T, open func(t *testing.T) catalog.Repository) {
	ctx := context.Background()
	older := time.Date(2024, time.January, 2, 3, 4, 5, 0, time.UTC)
	newer := older.Add(48 * time.Hour)

	t.Run("latest of empty repository", func(t *testing.T) {
		repo := open(t)
		_, err := repo.LoadLatest(ctx, testKey)
		assert.ErrorIs(t, err, errors.ErrSnapshotNotFound)

		infos, err := repo.List(ctx, testKey)
		require.NoError(t, err)
		assert.Empty(t, infos)
	})

	t.Run("store and load newest", func(t *testing.T) {
		repo := open(t)
		_, err := repo.Store(ctx, sampleCatalog(t, older))
		require.NoError(t, err)

		b := catalog.NewBuilder(testKey).WithBuildDate(newer)
		b.Add(record(t, "PRODX.A2001067.000.HASH.hdf", 7))
		info, err := repo.Store(ctx, b.Build())
		require.NoError(t, err)
		assert.Equal(t, 1, info.Files)
		assert.True(t, newer.Equal(info.BuildDate))

		infos, err := repo.List(ctx, testKey)
		require.NoError(t, err)
		require.Len(t, infos, 2)
		assert.True(t, newer.Equal(infos[0].BuildDate), "newest first")
		assert.True(t, older.Equal(infos[1].BuildDate))

		latest, err := repo.LoadLatest(ctx, testKey)
		require.NoError(t, err)
		assert.Equal(t, 1, latest.Len())
		_, ok := latest.Lookup("PRODX.A2001067.000.HASH.hdf")
		assert.True(t, ok)
	})

	t.Run("snapshots are never overwritten", func(t *testing.T) {
		repo := open(t)
		_, err := repo.Store(ctx, sampleCatalog(t, older))
		require.NoError(t, err)
		_, err = repo.Store(ctx, sampleCatalog(t, older))
		assert.ErrorIs(t, err, errors.ErrSnapshotExists)
	})

	t.Run("keys", func(t *testing.T) {
		repo := open(t)
		other := catalog.NewBuilder(catalog.Key{Collection: "6", Product: "MCD43D31"}).WithBuildDate(older).Build()
		_, err := repo.Store(ctx, other)
		require.NoError(t, err)
		_, err = repo.Store(ctx, sampleCatalog(t, older))
		require.NoError(t, err)

		keys, err := repo.Keys(ctx)
		require.NoError(t, err)
		assert.Equal(t, []catalog.Key{testKey, {Collection: "6", Product: "MCD43D31"}}, keys)
	})
}

func TestFileRepository(t *testing.T) {
	for _, compress := range []bool{false, true} {
		name := "plain"
		if compress {
			name = "gzip"
		}
		t.Run(name, func(t *testing.T) {
			repositoryContract(t, func(t *testing.T) catalog.Repository {
				return catalog.NewFileRepository(filepath.Join(t.TempDir(), "catalogs"), compress)
			})
		})
	}
}

func TestFileRepositoryLayout(t *testing.T) {
	dir := t.TempDir()
	repo := catalog.NewFileRepository(dir, true)
	built := time.Date(2024, time.March, 4, 5, 6, 7, 8, time.UTC)

	info, err := repo.Store(context.Background(), sampleCatalog(t, built))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "6_MCD43D01_catalog_20240304T050607.000000008Z.json.gz"), info.Location)
	assert.Equal(t, dir, repo.Dir())

	st, err := os.Stat(info.Location)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o640), st.Mode().Perm())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestFileRepositoryReadsMixedCompression(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	older := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

	_, err := catalog.NewFileRepository(dir, false).Store(ctx, sampleCatalog(t, older))
	require.NoError(t, err)

	// A fresh repository configured for compression still reads plain snapshots.
	latest, err := catalog.NewFileRepository(dir, true).LoadLatest(ctx, testKey)
	require.NoError(t, err)
	assert.Equal(t, 3, latest.Len())
}

func TestFileRepositoryIgnoresForeignFiles(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "6_MCD43D01_catalog_yesterday.json"), []byte("{}"), 0o600))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o750))

	keys, err := catalog.NewFileRepository(dir, false).Keys(ctx)
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestFileRepositoryRejectsMismatchedContent(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	info, err := catalog.NewFileRepository(dir, false).Store(ctx, sampleCatalog(t, time.Now()))
	require.NoError(t, err)

	renamed := filepath.Join(dir, "6_MCD43D99_catalog_20240101T000000.000000000Z.json")
	require.NoError(t, os.Rename(info.Location, renamed))

	_, err = catalog.NewFileRepository(dir, false).LoadLatest(ctx, catalog.Key{Collection: "6", Product: "MCD43D99"})
	assert.ErrorIs(t, err, errors.ErrSnapshotFormat)
}

func TestRepositoryHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	repo := catalog.NewFileRepository(t.TempDir(), false)

	_, err := repo.Keys(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	_, err = repo.Store(ctx, sampleCatalog(t, time.Now()))
	assert.ErrorIs(t, err, context.Canceled)
}
