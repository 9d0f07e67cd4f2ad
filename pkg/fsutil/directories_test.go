package fsutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureDir(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T) string
	}{
		{
			name: "creates new directory",
			setup: func(t *testing.T) string {
				return filepath.Join(t.TempDir(), "newdir")
			},
		},
		{
			name: "creates nested directories",
			setup: func(t *testing.T) string {
				return filepath.Join(t.TempDir(), "61", "2002", "01", "2001")
			},
		},
		{
			name: "succeeds when directory already exists",
			setup: func(t *testing.T) string {
				return t.TempDir()
			},
		},
	}

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			path := testCase.setup(t)

			require.NoError(t, EnsureDir(path))

			info, err := os.Stat(path)
			require.NoError(t, err)
			assert.True(t, info.IsDir())
		})
	}
}

func TestDirSizeAndFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), DirModeDefault))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.hdf"), []byte("12345"), FileModeDefault))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sub", "b.hdf"), []byte("123"), FileModeDefault))
	require.NoError(t, os.Symlink(filepath.Join(dir, "a.hdf"), filepath.Join(dir, "sub", "a.hdf")))

	size, files, links, err := DirSizeAndFiles(dir)
	require.NoError(t, err)
	assert.Equal(t, int64(8), size)
	assert.Equal(t, 2, files)
	assert.Equal(t, 1, links)

	size, files, links, err = DirSizeAndFiles(filepath.Join(dir, "missing"))
	require.NoError(t, err)
	assert.Zero(t, size)
	assert.Zero(t, files)
	assert.Zero(t, links)
}
