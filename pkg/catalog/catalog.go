// Package catalog holds the authoritative record of which files exist
// remotely for one (collection, product) pair, and its durable snapshots.
//
//go:generate mockgen -destination=./mocks/repository.go . Repository
package catalog

import (
	"slices"
	"sort"
	"time"
)

// Key identifies the catalog of one product in one collection.
type Key struct {
	Collection string
	Product    string
}

func (k Key) String() string {
	return k.Collection + "/" + k.Product
}

// Catalog is an immutable name-keyed set of FileRecords with date indexes.
// Build one with a Builder; a new crawl produces a new Catalog.
type Catalog struct {
	key           Key
	buildDate     time.Time
	formatVersion string
	byName        map[string]FileRecord
	byDate        map[time.Time][]string
	dates         []time.Time
}

// Key returns the (collection, product) pair.
func (c *Catalog) Key() Key { return c.key }

// BuildDate is when the catalog was crawled.
func (c *Catalog) BuildDate() time.Time { return c.buildDate }

// FormatVersion is the snapshot format the catalog was built or loaded with.
func (c *Catalog) FormatVersion() string { return c.formatVersion }

// Len is the number of records.
func (c *Catalog) Len() int { return len(c.byName) }

// Lookup returns the record named name.
func (c *Catalog) Lookup(name string) (FileRecord, bool) {
	r, ok := c.byName[name]
	return r, ok
}

// ByDate returns the records acquired on date's calendar day, sorted by name.
func (c *Catalog) ByDate(date time.Time) []FileRecord {
	names := c.byDate[Day(date)]
	out := make([]FileRecord, 0, len(names))
	for _, n := range names {
		out = append(out, c.byName[n])
	}
	return out
}

// ByYearDOY returns the records acquired on day doy of year.
func (c *Catalog) ByYearDOY(year, doy int) []FileRecord {
	date, err := FromYearDOY(year, doy)
	if err != nil {
		return nil
	}
	return c.ByDate(date)
}

// Dates returns every acquisition date present, ascending.
func (c *Catalog) Dates() []time.Time {
	return slices.Clone(c.dates)
}

// Range returns the first and last acquisition dates. ok is false when empty.
func (c *Catalog) Range() (first, last time.Time, ok bool) {
	if len(c.dates) == 0 {
		return time.Time{}, time.Time{}, false
	}
	return c.dates[0], c.dates[len(c.dates)-1], true
}

// Records returns all records ordered by date, then name.
func (c *Catalog) Records() []FileRecord {
	out := make([]FileRecord, 0, len(c.byName))
	for _, d := range c.dates {
		out = append(out, c.ByDate(d)...)
	}
	return out
}

// Between returns the records whose date lies in [start, end]. Zero bounds are open.
func (c *Catalog) Between(start, end time.Time) []FileRecord {
	var out []FileRecord
	for _, d := range c.dates {
		if !start.IsZero() && d.Before(Day(start)) {
			continue
		}
		if !end.IsZero() && d.After(Day(end)) {
			break
		}
		out = append(out, c.ByDate(d)...)
	}
	return out
}

// Builder accumulates records for a new Catalog. It is not safe for
// concurrent use; the crawler feeds it from a single goroutine.
type Builder struct {
	key       Key
	buildDate time.Time
	version   string
	records   map[string]FileRecord
}

// NewBuilder starts an empty catalog for key, stamped with the current time.
func NewBuilder(key Key) *Builder {
	return &Builder{
		key:       key,
		buildDate: time.Now().UTC(),
		version:   FormatVersion,
		records:   make(map[string]FileRecord),
	}
}

// WithBuildDate overrides the build timestamp.
func (b *Builder) WithBuildDate(t time.Time) *Builder {
	b.buildDate = t.UTC()
	return b
}

// withFormatVersion records the version a snapshot was decoded from.
func (b *Builder) withFormatVersion(v string) *Builder {
	b.version = v
	return b
}

// Add inserts r. An existing record with the same name is replaced and
// replaced is true.
func (b *Builder) Add(r FileRecord) (replaced bool) {
	r.Date = Day(r.Date)
	_, replaced = b.records[r.Name]
	b.records[r.Name] = r
	return replaced
}

// Merge adds all records and returns the names that replaced an existing record.
func (b *Builder) Merge(records []FileRecord) (duplicates []string) {
	for _, r := range records {
		if b.Add(r) {
			duplicates = append(duplicates, r.Name)
		}
	}
	return duplicates
}

// Len is the number of records added so far.
func (b *Builder) Len() int { return len(b.records) }

// Build freezes the accumulated records into a Catalog. The builder may be
// reused afterwards without affecting the result.
func (b *Builder) Build() *Catalog {
	c := &Catalog{
		key:           b.key,
		buildDate:     b.buildDate,
		formatVersion: b.version,
		byName:        make(map[string]FileRecord, len(b.records)),
		byDate:        make(map[time.Time][]string),
	}
	for name, r := range b.records {
		c.byName[name] = r
		c.byDate[r.Date] = append(c.byDate[r.Date], name)
	}
	for d, names := range c.byDate {
		sort.Strings(names)
		c.dates = append(c.dates, d)
	}
	slices.SortFunc(c.dates, func(a, b time.Time) int { return a.Compare(b) })
	return c
}
