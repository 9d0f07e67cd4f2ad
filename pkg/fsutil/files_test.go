package fsutil

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMove_File(t *testing.T) {
	tempDir := t.TempDir()

	src := filepath.Join(tempDir, "dl-123.tmp")
	dst := filepath.Join(tempDir, "MCD43D01", "MCD43D01.A2001065.061.hdf")
	require.NoError(t, os.WriteFile(src, []byte("granule"), FileModeDefault))

	require.NoError(t, Move(src, dst))

	content, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "granule", string(content))
	assert.False(t, Exists(src))
}

func TestMove_RejectsDirectoriesAndEmptyPaths(t *testing.T) {
	tempDir := t.TempDir()

	assert.Error(t, Move("", filepath.Join(tempDir, "x")))
	assert.Error(t, Move(tempDir, filepath.Join(tempDir, "moved")))
	assert.Error(t, Move(filepath.Join(tempDir, "missing"), filepath.Join(tempDir, "x")))
}

func TestWriteFileAtomic(t *testing.T) {
	t.Run("writes and sets permissions", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "reports", "audit.txt")

		err := WriteFileAtomic(path, FileModeSecure, func(w io.Writer) error {
			_, err := io.WriteString(w, "a.hdf kept\n")
			return err
		})
		require.NoError(t, err)

		content, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "a.hdf kept\n", string(content))

		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(FileModeSecure), info.Mode().Perm())
	})

	t.Run("fill error leaves no file behind", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "snapshot.json")
		boom := errors.New("boom")

		err := WriteFileAtomic(path, FileModeDefault, func(io.Writer) error { return boom })
		require.ErrorIs(t, err, boom)

		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})
}

func TestRemoveIfExists(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.hdf")
	require.NoError(t, os.WriteFile(path, []byte("x"), FileModeDefault))

	require.NoError(t, RemoveIfExists(path))
	assert.False(t, Exists(path))
	require.NoError(t, RemoveIfExists(path))
}

func TestExistsSeesDanglingLinks(t *testing.T) {
	dir := t.TempDir()
	link := filepath.Join(dir, "link.hdf")
	require.NoError(t, os.Symlink(filepath.Join(dir, "nowhere.hdf"), link))

	assert.True(t, Exists(link))
	assert.False(t, IsRegularFile(link))
}
