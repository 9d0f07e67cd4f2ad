// Package mirror maps catalogs onto the local mirror and link trees: it
// plans pending transfers, audits what is on disk and reports usage.
package mirror

import (
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/ipaynter-umb/MCD43GF-production/pkg/errors"
)

// Layout fixes where mirrored files and window links live.
//
//	{MirrorRoot}/{product}/{name}
//	{LinkRoot}/{collection}/{year}/{band}/{subYear}/{name}
type Layout struct {
	MirrorRoot string
	LinkRoot   string
}

// NewLayout resolves both roots to absolute paths. Link targets are written
// as absolute paths, so relative roots are not kept.
func NewLayout(mirrorRoot, linkRoot string) (Layout, error) {
	if mirrorRoot == "" || linkRoot == "" {
		return Layout{}, errors.Wrap(errors.ErrInvalidPath, "mirror and link roots must be set")
	}
	m, err := filepath.Abs(mirrorRoot)
	if err != nil {
		return Layout{}, errors.Wrapf(errors.ErrInvalidPath, "mirror root %q: %v", mirrorRoot, err)
	}
	l, err := filepath.Abs(linkRoot)
	if err != nil {
		return Layout{}, errors.Wrapf(errors.ErrInvalidPath, "link root %q: %v", linkRoot, err)
	}
	return Layout{MirrorRoot: filepath.Clean(m), LinkRoot: filepath.Clean(l)}, nil
}

// ProductDir holds every mirrored file of product.
func (l Layout) ProductDir(product string) string {
	return filepath.Join(l.MirrorRoot, product)
}

// FilePath is the mirror location of one file.
func (l Layout) FilePath(product, name string) string {
	return filepath.Join(l.MirrorRoot, product, name)
}

// BandName is the two digit directory name of a band.
func BandName(band int) string {
	return fmt.Sprintf("%02d", band)
}

// LinkDir is the directory holding the links of one sub-year of a window.
func (l Layout) LinkDir(collection string, year, band, subYear int) string {
	return filepath.Join(l.LinkRoot, collection, strconv.Itoa(year), BandName(band), strconv.Itoa(subYear))
}

// LinkPath is the location of one window link.
func (l Layout) LinkPath(collection string, year, band, subYear int, name string) string {
	return filepath.Join(l.LinkDir(collection, year, band, subYear), name)
}
