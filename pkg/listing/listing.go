// Package listing models the archive's JSON directory listings and the URL
// layout of collection, product, year and day-of-year levels.
package listing

import (
	"bytes"
	"encoding/json"
	"net/url"
	"strconv"
	"strings"

	"github.com/ipaynter-umb/MCD43GF-production/pkg/checksum"
	"github.com/ipaynter-umb/MCD43GF-production/pkg/errors"
)

// DirectoryType is the resourceType of entries that contain further levels.
const DirectoryType = "Directory"

// Listing is one directory level as served by the archive.
type Listing struct {
	Content []Entry `json:"content"`
}

// Entry is one child of a listing.
type Entry struct {
	Name         string   `json:"name"`
	ResourceType string   `json:"resourceType"`
	Self         string   `json:"self,omitempty"`
	Size         int64    `json:"size,omitempty"`
	Cksum        Checksum `json:"cksum"`
}

// IsDir reports whether the entry is a directory.
func (e Entry) IsDir() bool {
	return e.ResourceType == DirectoryType
}

// Directories returns the directory entries of l.
func (l *Listing) Directories() []Entry {
	var out []Entry
	for _, e := range l.Content {
		if e.IsDir() {
			out = append(out, e)
		}
	}
	return out
}

// Files returns the non-directory entries of l.
func (l *Listing) Files() []Entry {
	var out []Entry
	for _, e := range l.Content {
		if !e.IsDir() {
			out = append(out, e)
		}
	}
	return out
}

// Checksum is the cksum field of a file entry. The archive serves it either
// as a JSON number or as a decimal string, and omits it for directories.
type Checksum struct {
	Value uint32
	Valid bool
}

// UnmarshalJSON accepts numbers, decimal strings, null and "".
func (c *Checksum) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*c = Checksum{}
		return nil
	}
	raw := string(data)
	if data[0] == '"' {
		s, err := strconv.Unquote(raw)
		if err != nil {
			return errors.Wrapf(errors.ErrMalformedResponse, "cksum %s", raw)
		}
		if strings.TrimSpace(s) == "" {
			*c = Checksum{}
			return nil
		}
		raw = s
	}
	v, err := checksum.Parse(raw)
	if err != nil {
		return err
	}
	*c = Checksum{Value: v, Valid: true}
	return nil
}

// MarshalJSON writes the value as a number, or null when unset.
func (c Checksum) MarshalJSON() ([]byte, error) {
	if !c.Valid {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatUint(uint64(c.Value), 10)), nil
}

// Parse decodes a listing document.
func Parse(data []byte) (*Listing, error) {
	var l Listing
	if err := json.Unmarshal(data, &l); err != nil {
		return nil, errors.Wrap(errors.ErrMalformedResponse, err.Error())
	}
	if l.Content == nil {
		return nil, errors.Wrap(errors.ErrMalformedResponse, "listing has no content field")
	}
	return &l, nil
}

// Layout builds archive URLs below a base such as
// https://ladsweb.modaps.eosdis.nasa.gov/archive/allData.
type Layout struct {
	base *url.URL
}

// NewLayout parses base into a Layout.
func NewLayout(base string) (Layout, error) {
	u, err := url.Parse(strings.TrimRight(base, "/"))
	if err != nil {
		return Layout{}, errors.Wrapf(errors.ErrConfigValidation, "archive base url %q: %v", base, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return Layout{}, errors.Wrapf(errors.ErrConfigValidation, "archive base url %q must be absolute", base)
	}
	return Layout{base: u}, nil
}

// Base returns the base URL.
func (l Layout) Base() string {
	return l.base.String()
}

// ProductURL is the listing of a product's years.
func (l Layout) ProductURL(collection, product string) string {
	return l.join(collection, product+".json")
}

// YearURL is the listing of a year's days.
func (l Layout) YearURL(collection, product, year string) string {
	return l.join(collection, product, year+".json")
}

// DayURL is the listing of a day's files.
func (l Layout) DayURL(collection, product, year, doy string) string {
	return l.join(collection, product, year, doy+".json")
}

// FileURL is the download location of a file.
func (l Layout) FileURL(collection, product, year, doy, name string) string {
	return l.join(collection, product, year, doy, name)
}

func (l Layout) join(elem ...string) string {
	return l.base.JoinPath(elem...).String()
}
