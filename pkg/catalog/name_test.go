package catalog

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSnapshotNameRoundTrip(t *testing.T) {
	key := Key{Collection: "61", Product: "MCD43D40"}
	built := time.Date(2023, time.December, 31, 23, 59, 59, 999999999, time.UTC)

	for _, compress := range []bool{false, true} {
		name := snapshotName(key, built, compress)
		gotKey, gotBuilt, ok := parseSnapshotName(name)
		assert.True(t, ok, name)
		assert.Equal(t, key, gotKey)
		assert.True(t, built.Equal(gotBuilt))
	}
}

func TestParseSnapshotNameRejects(t *testing.T) {
	for _, name := range []string{
		"6_MCD43D01_catalog_20240101T000000.000000000Z.txt",
		"6MCD43D01_catalog_20240101T000000.000000000Z.json",
		"6_MCD43D01_20240101T000000.000000000Z.json",
		"_MCD43D01_catalog_20240101T000000.000000000Z.json",
		"6_MCD43D01_catalog_.json",
	} {
		_, _, ok := parseSnapshotName(name)
		assert.False(t, ok, name)
	}
}
