package catalog

import (
	"context"
	stderrors "errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/ipaynter-umb/MCD43GF-production/pkg/errors"
	"github.com/ipaynter-umb/MCD43GF-production/pkg/fsutil"
)

// SnapshotInfo describes one stored snapshot.
type SnapshotInfo struct {
	Key       Key
	BuildDate time.Time
	// Files is the record count, or -1 when unknown without loading.
	Files    int
	Location string
}

// Repository stores catalog snapshots. Snapshots are never overwritten; the
// one with the latest build date wins.
type Repository interface {
	// Keys lists every (collection, product) with at least one snapshot.
	Keys(ctx context.Context) ([]Key, error)
	// List returns the snapshots of key, newest first.
	List(ctx context.Context, key Key) ([]SnapshotInfo, error)
	// LoadLatest returns the newest snapshot of key or ErrSnapshotNotFound.
	LoadLatest(ctx context.Context, key Key) (*Catalog, error)
	// Store persists c as a new snapshot.
	Store(ctx context.Context, c *Catalog) (SnapshotInfo, error)
}

const (
	snapshotMarker = "_catalog_"
	snapshotExt    = ".json"
	gzipExt        = ".gz"
	stampLayout    = "20060102T150405.000000000Z"
)

// FileRepository keeps one JSON file per snapshot in a directory:
// {collection}_{product}_catalog_{stamp}.json[.gz].
type FileRepository struct {
	dir      string
	compress bool

	mu     sync.Mutex
	listed map[Key][]SnapshotInfo
}

// NewFileRepository stores snapshots under dir, gzip compressed when compress is set.
// Both plain and compressed snapshots are read regardless of compress.
func NewFileRepository(dir string, compress bool) *FileRepository {
	return &FileRepository{dir: dir, compress: compress, listed: make(map[Key][]SnapshotInfo)}
}

// Dir returns the snapshot directory.
func (r *FileRepository) Dir() string { return r.dir }

func snapshotName(key Key, buildDate time.Time, compress bool) string {
	name := key.Collection + "_" + key.Product + snapshotMarker + buildDate.UTC().Format(stampLayout) + snapshotExt
	if compress {
		name += gzipExt
	}
	return name
}

// parseSnapshotName is the inverse of snapshotName.
func parseSnapshotName(name string) (Key, time.Time, bool) {
	base := strings.TrimSuffix(name, gzipExt)
	if !strings.HasSuffix(base, snapshotExt) {
		return Key{}, time.Time{}, false
	}
	base = strings.TrimSuffix(base, snapshotExt)
	prefix, stamp, ok := strings.Cut(base, snapshotMarker)
	if !ok {
		return Key{}, time.Time{}, false
	}
	collection, product, ok := strings.Cut(prefix, "_")
	if !ok || collection == "" || product == "" {
		return Key{}, time.Time{}, false
	}
	buildDate, err := time.Parse(stampLayout, stamp)
	if err != nil {
		return Key{}, time.Time{}, false
	}
	return Key{Collection: collection, Product: product}, buildDate, true
}

func (r *FileRepository) scan() (map[Key][]SnapshotInfo, error) {
	entries, err := os.ReadDir(r.dir)
	if stderrors.Is(err, fs.ErrNotExist) {
		return map[Key][]SnapshotInfo{}, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read snapshot directory %s", r.dir)
	}
	found := make(map[Key][]SnapshotInfo)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		key, buildDate, ok := parseSnapshotName(e.Name())
		if !ok {
			continue
		}
		found[key] = append(found[key], SnapshotInfo{
			Key:       key,
			BuildDate: buildDate,
			Files:     -1,
			Location:  filepath.Join(r.dir, e.Name()),
		})
	}
	for k := range found {
		sortNewestFirst(found[k])
	}
	return found, nil
}

func sortNewestFirst(infos []SnapshotInfo) {
	slices.SortFunc(infos, func(a, b SnapshotInfo) int { return b.BuildDate.Compare(a.BuildDate) })
}

// Keys implements Repository.
func (r *FileRepository) Keys(ctx context.Context) ([]Key, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	found, err := r.scan()
	if err != nil {
		return nil, err
	}
	keys := make([]Key, 0, len(found))
	for k := range found {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b Key) int { return strings.Compare(a.String(), b.String()) })
	return keys, nil
}

// List implements Repository. The directory is scanned once per key and the
// result is kept up to date by Store.
func (r *FileRepository) List(ctx context.Context, key Key) ([]SnapshotInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if infos, ok := r.listed[key]; ok {
		return slices.Clone(infos), nil
	}
	found, err := r.scan()
	if err != nil {
		return nil, err
	}
	r.listed[key] = found[key]
	return slices.Clone(found[key]), nil
}

// LoadLatest implements Repository.
func (r *FileRepository) LoadLatest(ctx context.Context, key Key) (*Catalog, error) {
	infos, err := r.List(ctx, key)
	if err != nil {
		return nil, err
	}
	if len(infos) == 0 {
		return nil, errors.Wrapf(errors.ErrSnapshotNotFound, "%s in %s", key, r.dir)
	}
	return r.load(infos[0])
}

func (r *FileRepository) load(info SnapshotInfo) (*Catalog, error) {
	f, err := os.Open(info.Location)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open snapshot %s", info.Location)
	}
	defer func() { _ = f.Close() }()

	var c *Catalog
	if strings.HasSuffix(info.Location, gzipExt) {
		c, err = DecodeCompressed(f)
	} else {
		c, err = Decode(f)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "snapshot %s", info.Location)
	}
	if c.Key() != info.Key {
		return nil, errors.Wrapf(errors.ErrSnapshotFormat, "snapshot %s holds %s", info.Location, c.Key())
	}
	return c, nil
}

// Store implements Repository.
func (r *FileRepository) Store(ctx context.Context, c *Catalog) (SnapshotInfo, error) {
	if err := ctx.Err(); err != nil {
		return SnapshotInfo{}, err
	}
	// Prime the listing cache before writing so the new file is not counted twice.
	if _, err := r.List(ctx, c.Key()); err != nil {
		return SnapshotInfo{}, err
	}

	path := filepath.Join(r.dir, snapshotName(c.Key(), c.BuildDate(), r.compress))
	if fsutil.Exists(path) {
		return SnapshotInfo{}, errors.Wrapf(errors.ErrSnapshotExists, "%s", path)
	}
	if err := os.MkdirAll(r.dir, fsutil.DirModeSecure); err != nil {
		return SnapshotInfo{}, errors.Wrapf(err, "failed to create snapshot directory %s", r.dir)
	}

	encode := Encode
	if r.compress {
		encode = EncodeCompressed
	}
	err := fsutil.WriteFileAtomic(path, fsutil.FileModeSecure, func(w io.Writer) error {
		return encode(w, c)
	})
	if err != nil {
		return SnapshotInfo{}, errors.Wrapf(err, "failed to write snapshot %s", path)
	}

	info := SnapshotInfo{Key: c.Key(), BuildDate: c.BuildDate(), Files: c.Len(), Location: path}
	r.mu.Lock()
	r.listed[c.Key()] = append(r.listed[c.Key()], info)
	sortNewestFirst(r.listed[c.Key()])
	r.mu.Unlock()
	return info, nil
}
