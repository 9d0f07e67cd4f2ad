// Package window derives per-band temporal windows from the mirror and
// materializes them as symlink trees.
package window

import (
	"fmt"
	"time"

	"github.com/ipaynter-umb/MCD43GF-production/pkg/catalog"
	"github.com/ipaynter-umb/MCD43GF-production/pkg/errors"
)

// Defaults of the band scheme.
const (
	DefaultPrefix    = "MCD43D"
	DefaultGroupSize = 3

	leadMonth  = time.June
	leadDay    = 20
	trailDays  = 192
	maxProduct = 99
)

// DefaultShared are the products every band window draws on.
var DefaultShared = []string{"MCD43D31", "MCD43D40"}

// DefaultBands are the bands materialized when none are requested.
var DefaultBands = []int{1, 2, 3, 4, 5, 6, 7}

// Scheme maps a band to the products its window reads.
type Scheme struct {
	Prefix    string
	GroupSize int
	Shared    []string
	Bands     []int
}

// DefaultScheme is the MCD43D band layout.
func DefaultScheme() Scheme {
	return Scheme{
		Prefix:    DefaultPrefix,
		GroupSize: DefaultGroupSize,
		Shared:    append([]string(nil), DefaultShared...),
		Bands:     append([]int(nil), DefaultBands...),
	}
}

// Products returns the band group followed by the shared products. For
// group size 3, band b reads {prefix}{3b-2}, {prefix}{3b-1} and {prefix}{3b}.
func (s Scheme) Products(band int) ([]string, error) {
	size := s.GroupSize
	if size <= 0 {
		size = DefaultGroupSize
	}
	if band < 1 || size*band > maxProduct {
		return nil, errors.Wrapf(errors.ErrBandOutOfRange, "band %d", band)
	}
	products := make([]string, 0, size+len(s.Shared))
	for i := size - 1; i >= 0; i-- {
		products = append(products, fmt.Sprintf("%s%02d", s.Prefix, size*band-i))
	}
	return append(products, s.Shared...), nil
}

// AllProducts lists every product the scheme's bands read, without repeats.
func (s Scheme) AllProducts() ([]string, error) {
	seen := make(map[string]bool)
	var out []string
	for _, b := range s.Bands {
		products, err := s.Products(b)
		if err != nil {
			return nil, err
		}
		for _, p := range products {
			if !seen[p] {
				seen[p] = true
				out = append(out, p)
			}
		}
	}
	return out, nil
}

// Spec is the window of one target year and band.
type Spec struct {
	Year     int
	Band     int
	Products []string
	// Start and End bound the window, both inclusive.
	Start    time.Time
	End      time.Time
	SubYears []int
}

// Spec computes the window of year for band: June 20 of the previous year
// through 192 days after January 1 of the next year.
func (s Scheme) Spec(year, band int) (Spec, error) {
	products, err := s.Products(band)
	if err != nil {
		return Spec{}, err
	}
	return Spec{
		Year:     year,
		Band:     band,
		Products: products,
		Start:    time.Date(year-1, leadMonth, leadDay, 0, 0, 0, 0, time.UTC),
		End:      time.Date(year+1, time.January, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, trailDays),
		SubYears: []int{year - 1, year, year + 1},
	}, nil
}

// Contains reports whether t's calendar day lies in the window.
func (sp Spec) Contains(t time.Time) bool {
	d := catalog.Day(t)
	return !d.Before(sp.Start) && !d.After(sp.End)
}

// Days is the number of calendar days in the window.
func (sp Spec) Days() int {
	return int(sp.End.Sub(sp.Start).Hours()/24) + 1
}

// Dates lists every day of the window in order.
func (sp Spec) Dates() []time.Time {
	out := make([]time.Time, 0, sp.Days())
	for d := sp.Start; !d.After(sp.End); d = d.AddDate(0, 0, 1) {
		out = append(out, d)
	}
	return out
}
