package catalog

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ipaynter-umb/MCD43GF-production/pkg/errors"
)

// FileRecord is one archive file known to a catalog.
type FileRecord struct {
	Name     string
	Date     time.Time
	Checksum uint32
	// LocalPath is set once the record is resolved against a mirror.
	LocalPath string
}

// Year is the acquisition year.
func (r FileRecord) Year() int {
	return r.Date.Year()
}

// DOY is the zero padded acquisition day-of-year, as used in archive paths.
func (r FileRecord) DOY() string {
	return FormatDOY(r.Date.YearDay())
}

// Day truncates t to midnight UTC of its calendar day.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// FromYearDOY returns the date of day-of-year doy (1-based) in year.
func FromYearDOY(year, doy int) (time.Time, error) {
	if doy < 1 || doy > daysIn(year) {
		return time.Time{}, fmt.Errorf("day-of-year %d out of range for %d", doy, year)
	}
	return time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, doy-1), nil
}

// ParseYearDOY parses listing directory names such as "2001" and "065".
func ParseYearDOY(year, doy string) (time.Time, error) {
	y, err := strconv.Atoi(year)
	if err != nil {
		return time.Time{}, fmt.Errorf("year %q is not numeric", year)
	}
	d, err := strconv.Atoi(doy)
	if err != nil {
		return time.Time{}, fmt.Errorf("day-of-year %q is not numeric", doy)
	}
	return FromYearDOY(y, d)
}

// FormatDOY zero pads a day-of-year to three digits.
func FormatDOY(doy int) string {
	return fmt.Sprintf("%03d", doy)
}

func daysIn(year int) int {
	return time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC).YearDay()
}

// ParseAcquisitionDate extracts the date encoded in an archive file name.
// The second dot separated field is a letter followed by YYYYDDD,
// e.g. PRODX.A2001065.000.HASH.hdf is 2001-03-06.
func ParseAcquisitionDate(name string) (time.Time, error) {
	fields := strings.Split(name, ".")
	if len(fields) < 2 {
		return time.Time{}, errors.Wrapf(errors.ErrInvalidFileName, "%s has no date field", name)
	}
	field := fields[1]
	if len(field) < 8 {
		return time.Time{}, errors.Wrapf(errors.ErrInvalidFileName, "%s has a short date field %q", name, field)
	}
	date, err := ParseYearDOY(field[1:5], field[5:8])
	if err != nil {
		return time.Time{}, errors.Wrapf(errors.ErrInvalidFileName, "%s: %v", name, err)
	}
	return date, nil
}

// NewRecord builds a record whose date is derived from the file name.
func NewRecord(name string, sum uint32) (FileRecord, error) {
	date, err := ParseAcquisitionDate(name)
	if err != nil {
		return FileRecord{}, err
	}
	return FileRecord{Name: name, Date: date, Checksum: sum}, nil
}
