package catalog_test

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ipaynter-umb/MCD43GF-production/pkg/catalog"
	"github.com/ipaynter-umb/MCD43GF-production/pkg/errors"
)

func sampleCatalog(t *testing.T, built time.Time) *catalog.Catalog {
	t.Helper()
	b := catalog.NewBuilder(testKey).WithBuildDate(built)
	b.Merge([]catalog.FileRecord{
		record(t, "PRODX.A2001065.000.HASH.hdf", 305419896),
		record(t, "PRODX.A2001066.000.HASH.hdf", 4294967295),
		record(t, "PRODX.A2001066.001.HASH.hdf", 0),
	})
	return b.Build()
}

func assertSameCatalog(t *testing.T, want, got *catalog.Catalog) {
	t.Helper()
	assert.Equal(t, want.Key(), got.Key())
	assert.True(t, want.BuildDate().Equal(got.BuildDate()), "build date %s != %s", want.BuildDate(), got.BuildDate())
	assert.Equal(t, want.Records(), got.Records())
}

func TestSnapshotRoundTrip(t *testing.T) {
	c := sampleCatalog(t, time.Date(2024, time.May, 1, 12, 30, 0, 123, time.UTC))

	t.Run("plain", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, catalog.Encode(&buf, c))
		assert.Contains(t, buf.String(), `"format_version": "1.0"`)
		assert.Contains(t, buf.String(), `"checksum": 305419896`)

		got, err := catalog.Decode(&buf)
		require.NoError(t, err)
		assertSameCatalog(t, c, got)
	})

	t.Run("gzip", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, catalog.EncodeCompressed(&buf, c))
		assert.Equal(t, []byte{0x1f, 0x8b}, buf.Bytes()[:2])

		got, err := catalog.DecodeCompressed(&buf)
		require.NoError(t, err)
		assertSameCatalog(t, c, got)
	})
}

func TestCheckFormat(t *testing.T) {
	tests := []struct {
		version string
		ok      bool
	}{
		{"1.0", true},
		{"1.7", true},
		{"1.0.3", true},
		{"2.0", false},
		{"0.9", false},
		{"", false},
		{"abc", false},
	}
	for _, tt := range tests {
		t.Run(tt.version, func(t *testing.T) {
			err := catalog.CheckFormat(tt.version)
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, errors.ErrSnapshotFormat)
		})
	}
}

func TestDecodeRejects(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{name: "not json", doc: "{"},
		{name: "future format", doc: `{"format_version":"2.0","collection":"6","product":"P","files":{}}`},
		{name: "missing product", doc: `{"format_version":"1.0","collection":"6","files":{}}`},
		{name: "bad date", doc: `{"format_version":"1.0","collection":"6","product":"P","files":{"a":{"date":"2001/03/06","checksum":1}}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := catalog.Decode(strings.NewReader(tt.doc))
			assert.ErrorIs(t, err, errors.ErrSnapshotFormat)
		})
	}
}

func TestDecodeCompressedRejectsPlain(t *testing.T) {
	_, err := catalog.DecodeCompressed(strings.NewReader(`{"format_version":"1.0"}`))
	assert.ErrorIs(t, err, errors.ErrSnapshotFormat)
}
