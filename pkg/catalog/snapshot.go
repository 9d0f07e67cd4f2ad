package catalog

import (
	"encoding/json"
	"io"
	"time"

	"github.com/hashicorp/go-version"
	"github.com/mholt/archives"

	"github.com/ipaynter-umb/MCD43GF-production/pkg/errors"
)

const (
	// FormatVersion is written into every new snapshot.
	FormatVersion = "1.0"
	// SupportedFormats is the range of snapshot versions this build can read.
	SupportedFormats = ">= 1.0, < 2.0"

	snapshotDateLayout = "2006-01-02"
)

type snapshotDoc struct {
	FormatVersion string                  `json:"format_version"`
	Collection    string                  `json:"collection"`
	Product       string                  `json:"product"`
	BuildDate     time.Time               `json:"build_date"`
	Files         map[string]snapshotFile `json:"files"`
}

type snapshotFile struct {
	Date     string `json:"date"`
	Checksum uint32 `json:"checksum"`
}

// CheckFormat reports whether snapshots of format v can be decoded.
func CheckFormat(v string) error {
	if v == "" {
		return errors.Wrap(errors.ErrSnapshotFormat, "missing format_version")
	}
	parsed, err := version.NewVersion(v)
	if err != nil {
		return errors.Wrapf(errors.ErrSnapshotFormat, "format_version %q: %v", v, err)
	}
	constraint, err := version.NewConstraint(SupportedFormats)
	if err != nil {
		return errors.Wrapf(err, "invalid constraint %q", SupportedFormats)
	}
	if !constraint.Check(parsed) {
		return errors.Wrapf(errors.ErrSnapshotFormat, "format_version %s outside %s", v, SupportedFormats)
	}
	return nil
}

// Encode writes c as an indented JSON snapshot.
func Encode(w io.Writer, c *Catalog) error {
	doc := snapshotDoc{
		FormatVersion: FormatVersion,
		Collection:    c.key.Collection,
		Product:       c.key.Product,
		BuildDate:     c.buildDate,
		Files:         make(map[string]snapshotFile, c.Len()),
	}
	for name, r := range c.byName {
		doc.Files[name] = snapshotFile{Date: r.Date.Format(snapshotDateLayout), Checksum: r.Checksum}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return errors.Wrap(err, "failed to encode catalog snapshot")
	}
	return nil
}

// Decode reads a JSON snapshot.
func Decode(r io.Reader) (*Catalog, error) {
	var doc snapshotDoc
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, errors.Wrapf(errors.ErrSnapshotFormat, "decode: %v", err)
	}
	if err := CheckFormat(doc.FormatVersion); err != nil {
		return nil, err
	}
	if doc.Collection == "" || doc.Product == "" {
		return nil, errors.Wrap(errors.ErrSnapshotFormat, "snapshot has no collection or product")
	}

	b := NewBuilder(Key{Collection: doc.Collection, Product: doc.Product}).
		WithBuildDate(doc.BuildDate).
		withFormatVersion(doc.FormatVersion)
	for name, f := range doc.Files {
		date, err := time.Parse(snapshotDateLayout, f.Date)
		if err != nil {
			return nil, errors.Wrapf(errors.ErrSnapshotFormat, "record %s has date %q", name, f.Date)
		}
		b.Add(FileRecord{Name: name, Date: date, Checksum: f.Checksum})
	}
	return b.Build(), nil
}

// EncodeCompressed writes a gzip compressed snapshot.
func EncodeCompressed(w io.Writer, c *Catalog) error {
	zw, err := archives.Gz{}.OpenWriter(w)
	if err != nil {
		return errors.Wrap(err, "failed to open gzip writer")
	}
	if err := Encode(zw, c); err != nil {
		_ = zw.Close()
		return err
	}
	if err := zw.Close(); err != nil {
		return errors.Wrap(err, "failed to finish gzip stream")
	}
	return nil
}

// DecodeCompressed reads a gzip compressed snapshot.
func DecodeCompressed(r io.Reader) (*Catalog, error) {
	zr, err := archives.Gz{}.OpenReader(r)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrSnapshotFormat, "open gzip stream: %v", err)
	}
	defer func() { _ = zr.Close() }()
	return Decode(zr)
}
