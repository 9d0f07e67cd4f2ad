package checksum

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/ipaynter-umb/MCD43GF-production/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// granule is a 40 byte payload whose cksum is 305419896 (0x12345678).
var granule = append([]byte("PRODX.A2001065.000.HASH.hdf payload:"), 136, 200, 217, 228)

func TestSum(t *testing.T) {
	big := make([]byte, 300)
	for i := 0; i < 256; i++ {
		big[i] = byte(i)
	}

	tests := []struct {
		name  string
		input []byte
		want  uint32
	}{
		{"empty", nil, 4294967295},
		{"check string", []byte("123456789"), 930766865},
		{"text line", []byte("hello world\n"), 3733384285},
		{"granule payload", granule, 305419896},
		{"length spans two octets", big, 2332084323},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Sum(tt.input))
			assert.True(t, Verify(tt.input, tt.want))
		})
	}
}

func TestSingleBitFlipIsDetected(t *testing.T) {
	flipped := bytes.Clone(granule)
	flipped[3] ^= 0x01

	assert.Equal(t, uint32(3877983693), Sum(flipped))
	assert.False(t, Verify(flipped, 305419896))

	for i := range granule {
		for bit := 0; bit < 8; bit++ {
			b := bytes.Clone(granule)
			b[i] ^= 1 << bit
			require.False(t, Verify(b, 305419896), "flip of byte %d bit %d went unnoticed", i, bit)
		}
	}
}

func TestStreamingMatchesOneShot(t *testing.T) {
	h := New()
	for _, chunk := range [][]byte{granule[:7], granule[7:20], granule[20:]} {
		_, err := h.Write(chunk)
		require.NoError(t, err)
	}
	assert.Equal(t, uint32(305419896), h.Sum32())
	assert.Equal(t, []byte{0x12, 0x34, 0x56, 0x78}, h.Sum(nil))
	assert.Equal(t, Size, h.Size())

	h.Reset()
	assert.Equal(t, uint32(4294967295), h.Sum32())
}

func TestFileAndVerifyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "PRODX.A2001065.000.HASH.hdf")
	require.NoError(t, os.WriteFile(path, granule, 0o644))

	sum, size, err := File(path)
	require.NoError(t, err)
	assert.Equal(t, uint32(305419896), sum)
	assert.Equal(t, int64(40), size)

	ok, err := VerifyFile(path, 305419896)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = VerifyFile(path, 1)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = VerifyFile(filepath.Join(t.TempDir(), "missing.hdf"), 1)
	assert.Error(t, err)
}

func TestParse(t *testing.T) {
	v, err := Parse(" 305419896 ")
	require.NoError(t, err)
	assert.Equal(t, uint32(305419896), v)

	for _, bad := range []string{"", "abc", "-1", "4294967296"} {
		_, err := Parse(bad)
		assert.ErrorIs(t, err, errors.ErrMalformedResponse, bad)
	}
}
