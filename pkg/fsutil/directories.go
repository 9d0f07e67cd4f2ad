// Package fsutil provides utility functions and constants for file system operations.
package fsutil

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
)

// EnsureDir creates a directory and all necessary parents with DirModeDefault.
func EnsureDir(path string) error {
	return os.MkdirAll(path, DirModeDefault)
}

// EnsureFileDir creates the parent directory of a file path if it doesn't exist.
func EnsureFileDir(filePath string) error {
	return EnsureDir(filepath.Dir(filePath))
}

// DirSizeAndFiles walks dir and returns the total size and count of regular files.
// Symlinks are counted separately and not followed. A missing dir yields zeros.
func DirSizeAndFiles(dir string) (size int64, files int, links int, err error) {
	if _, err = os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
		return 0, 0, 0, nil
	}

	err = filepath.WalkDir(dir, func(_ string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		switch {
		case d.Type()&fs.ModeSymlink != 0:
			links++
		case d.Type().IsRegular():
			info, err := d.Info()
			if err != nil {
				return err
			}
			size += info.Size()
			files++
		}
		return nil
	})
	return size, files, links, err
}
