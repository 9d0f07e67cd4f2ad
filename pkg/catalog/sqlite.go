package catalog

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/ipaynter-umb/MCD43GF-production/pkg/errors"
	"github.com/ipaynter-umb/MCD43GF-production/pkg/fsutil"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS snapshots (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	collection     TEXT    NOT NULL,
	product        TEXT    NOT NULL,
	build_date     INTEGER NOT NULL,
	format_version TEXT    NOT NULL,
	files          INTEGER NOT NULL,
	UNIQUE (collection, product, build_date)
);
CREATE TABLE IF NOT EXISTS snapshot_files (
	snapshot_id INTEGER NOT NULL REFERENCES snapshots(id) ON DELETE CASCADE,
	name        TEXT    NOT NULL,
	date        TEXT    NOT NULL,
	checksum    INTEGER NOT NULL,
	PRIMARY KEY (snapshot_id, name)
);
`

// SQLiteRepository keeps every snapshot as rows of a single SQLite database.
type SQLiteRepository struct {
	path string
	db   *sql.DB
}

// OpenSQLite opens (creating if needed) the snapshot database at path.
func OpenSQLite(path string) (*SQLiteRepository, error) {
	if err := fsutil.EnsureFileDir(path); err != nil {
		return nil, errors.Wrapf(err, "failed to create directory for %s", path)
	}
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("cannot open db file: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("cannot create snapshot schema: %w", err)
	}
	return &SQLiteRepository{path: path, db: db}, nil
}

// Close releases the database handle.
func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

// Keys implements Repository.
func (r *SQLiteRepository) Keys(ctx context.Context) ([]Key, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT DISTINCT collection, product FROM snapshots ORDER BY collection, product")
	if err != nil {
		return nil, fmt.Errorf("db.Query(snapshots): %w", err)
	}
	defer rows.Close()

	var keys []Key
	for rows.Next() {
		var k Key
		if err := rows.Scan(&k.Collection, &k.Product); err != nil {
			return nil, fmt.Errorf("error reading snapshots table: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// List implements Repository.
func (r *SQLiteRepository) List(ctx context.Context, key Key) ([]SnapshotInfo, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, build_date, files FROM snapshots WHERE collection = ? AND product = ? ORDER BY build_date DESC",
		key.Collection, key.Product)
	if err != nil {
		return nil, fmt.Errorf("db.Query(snapshots): %w", err)
	}
	defer rows.Close()

	var infos []SnapshotInfo
	for rows.Next() {
		var id, built int64
		var files int
		if err := rows.Scan(&id, &built, &files); err != nil {
			return nil, fmt.Errorf("error reading snapshots table: %w", err)
		}
		infos = append(infos, SnapshotInfo{
			Key:       key,
			BuildDate: time.Unix(0, built).UTC(),
			Files:     files,
			Location:  fmt.Sprintf("%s#%d", r.path, id),
		})
	}
	return infos, rows.Err()
}

// LoadLatest implements Repository.
func (r *SQLiteRepository) LoadLatest(ctx context.Context, key Key) (*Catalog, error) {
	var id, built int64
	var formatVersion string
	err := r.db.QueryRowContext(ctx,
		"SELECT id, build_date, format_version FROM snapshots WHERE collection = ? AND product = ? ORDER BY build_date DESC LIMIT 1",
		key.Collection, key.Product).Scan(&id, &built, &formatVersion)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrapf(errors.ErrSnapshotNotFound, "%s in %s", key, r.path)
	}
	if err != nil {
		return nil, fmt.Errorf("db.QueryRow(snapshots): %w", err)
	}
	if err := CheckFormat(formatVersion); err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, "SELECT name, date, checksum FROM snapshot_files WHERE snapshot_id = ?", id)
	if err != nil {
		return nil, fmt.Errorf("db.Query(snapshot_files): %w", err)
	}
	defer rows.Close()

	b := NewBuilder(key).WithBuildDate(time.Unix(0, built)).withFormatVersion(formatVersion)
	for rows.Next() {
		var name, date string
		var sum int64
		if err := rows.Scan(&name, &date, &sum); err != nil {
			return nil, fmt.Errorf("error reading snapshot_files table: %w", err)
		}
		d, err := time.Parse(snapshotDateLayout, date)
		if err != nil {
			return nil, errors.Wrapf(errors.ErrSnapshotFormat, "record %s has date %q", name, date)
		}
		b.Add(FileRecord{Name: name, Date: d, Checksum: uint32(sum)})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return b.Build(), nil
}

// Store implements Repository.
func (r *SQLiteRepository) Store(ctx context.Context, c *Catalog) (SnapshotInfo, error) {
	key := c.Key()
	built := c.BuildDate().UnixNano()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return SnapshotInfo{}, fmt.Errorf("begin snapshot transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var exists int
	err = tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM snapshots WHERE collection = ? AND product = ? AND build_date = ?",
		key.Collection, key.Product, built).Scan(&exists)
	if err != nil {
		return SnapshotInfo{}, fmt.Errorf("db.QueryRow(snapshots): %w", err)
	}
	if exists > 0 {
		return SnapshotInfo{}, errors.Wrapf(errors.ErrSnapshotExists, "%s built %s", key, c.BuildDate().Format(time.RFC3339Nano))
	}

	res, err := tx.ExecContext(ctx,
		"INSERT INTO snapshots (collection, product, build_date, format_version, files) VALUES (?, ?, ?, ?, ?)",
		key.Collection, key.Product, built, FormatVersion, c.Len())
	if err != nil {
		return SnapshotInfo{}, fmt.Errorf("insert snapshot: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return SnapshotInfo{}, fmt.Errorf("insert snapshot: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, "INSERT INTO snapshot_files (snapshot_id, name, date, checksum) VALUES (?, ?, ?, ?)")
	if err != nil {
		return SnapshotInfo{}, fmt.Errorf("prepare snapshot_files insert: %w", err)
	}
	defer stmt.Close()
	for name, rec := range c.byName {
		if _, err := stmt.ExecContext(ctx, id, name, rec.Date.Format(snapshotDateLayout), int64(rec.Checksum)); err != nil {
			return SnapshotInfo{}, fmt.Errorf("insert snapshot file %s: %w", name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return SnapshotInfo{}, fmt.Errorf("commit snapshot: %w", err)
	}

	return SnapshotInfo{
		Key:       key,
		BuildDate: c.BuildDate(),
		Files:     c.Len(),
		Location:  fmt.Sprintf("%s#%d", r.path, id),
	}, nil
}
