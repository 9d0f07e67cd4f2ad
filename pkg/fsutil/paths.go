package fsutil

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
)

const (
	// AppName is the name of the application used in paths
	AppName = "mcd43gf"
)

// GetDataDir returns the platform-specific data directory for the application
// On Linux: ~/.local/share/mcd43gf/
// On macOS: ~/Library/Application Support/mcd43gf/
// On Windows: %LOCALAPPDATA%\mcd43gf\
func GetDataDir() (string, error) {
	baseDir, err := getAppDataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(baseDir, AppName), nil
}

func getAppDataDir() (string, error) {
	switch runtime.GOOS {
	case "windows":
		localAppData := os.Getenv("LOCALAPPDATA")
		if localAppData == "" {
			return "", errors.New("LOCALAPPDATA environment variable not set")
		}
		return localAppData, nil
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, "Library", "Application Support"), nil
	default:
		if xdgDataHome := os.Getenv("XDG_DATA_HOME"); xdgDataHome != "" {
			return xdgDataHome, nil
		}
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, ".local", "share"), nil
	}
}

// DefaultMirrorRoot returns <data_dir>/mirror.
func DefaultMirrorRoot() string {
	return dataSubdir("mirror")
}

// DefaultLinkRoot returns <data_dir>/links.
func DefaultLinkRoot() string {
	return dataSubdir("links")
}

// DefaultSnapshotDir returns <data_dir>/catalogs.
func DefaultSnapshotDir() string {
	return dataSubdir("catalogs")
}

// DefaultReportDir returns <data_dir>/reports.
func DefaultReportDir() string {
	return dataSubdir("reports")
}

func dataSubdir(name string) string {
	dataDir, err := GetDataDir()
	if err != nil {
		dataDir = filepath.Join(os.TempDir(), AppName)
	}
	return filepath.Join(dataDir, name)
}
