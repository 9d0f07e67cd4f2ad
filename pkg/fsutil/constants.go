package fsutil

// Permission modes used for the mirror, link tree, snapshots and reports.
const (
	FileModeDefault = 0o644 // -rw-r--r--: mirrored archive files and reports
	FileModeSecure  = 0o640 // -rw-r-----: config and snapshot files

	DirModeDefault = 0o755 // drwxr-xr-x: mirror and link tree directories
	DirModeSecure  = 0o750 // drwxr-x---: snapshot and state directories
)
