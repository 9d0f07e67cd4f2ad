// Package checksum implements the POSIX cksum algorithm the archive publishes
// for every file, and helpers to verify byte buffers and files against it.
package checksum

import (
	"hash"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/ipaynter-umb/MCD43GF-production/pkg/errors"
)

// poly is the CRC-32 generator used by cksum, processed most significant bit first.
const poly = 0x04C11DB7

// Size of a cksum value in bytes.
const Size = 4

var table = makeTable()

func makeTable() *[256]uint32 {
	t := new([256]uint32)
	for i := range t {
		crc := uint32(i) << 24
		for j := 0; j < 8; j++ {
			if crc&0x80000000 != 0 {
				crc = crc<<1 ^ poly
			} else {
				crc <<= 1
			}
		}
		t[i] = crc
	}
	return t
}

func update(crc uint32, p []byte) uint32 {
	for _, b := range p {
		crc = crc<<8 ^ table[byte(crc>>24)^b]
	}
	return crc
}

// digest is a streaming cksum. The message length is folded in by Sum32.
type digest struct {
	crc uint32
	n   uint64
}

// New returns a hash.Hash32 computing the POSIX cksum value.
func New() hash.Hash32 {
	return &digest{}
}

func (d *digest) Write(p []byte) (int, error) {
	d.crc = update(d.crc, p)
	d.n += uint64(len(p))
	return len(p), nil
}

// Sum32 appends the length octets, least significant first, and complements.
func (d *digest) Sum32() uint32 {
	crc := d.crc
	for n := d.n; n != 0; n >>= 8 {
		crc = crc<<8 ^ table[byte(crc>>24)^byte(n)]
	}
	return ^crc
}

func (d *digest) Sum(in []byte) []byte {
	s := d.Sum32()
	return append(in, byte(s>>24), byte(s>>16), byte(s>>8), byte(s))
}

func (d *digest) Reset()         { d.crc, d.n = 0, 0 }
func (d *digest) Size() int      { return Size }
func (d *digest) BlockSize() int { return 1 }

// Sum returns the cksum value of b.
func Sum(b []byte) uint32 {
	d := &digest{}
	_, _ = d.Write(b)
	return d.Sum32()
}

// Verify reports whether b hashes to expected.
func Verify(b []byte, expected uint32) bool {
	return Sum(b) == expected
}

// Reader computes the cksum value and length of everything read from r.
func Reader(r io.Reader) (uint32, int64, error) {
	d := &digest{}
	n, err := io.Copy(d, r)
	if err != nil {
		return 0, n, err
	}
	return d.Sum32(), n, nil
}

// File computes the cksum value and size of the file at path.
func File(path string) (uint32, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, errors.Wrapf(err, "open %s for checksum", path)
	}
	defer func() { _ = f.Close() }()

	sum, n, err := Reader(f)
	if err != nil {
		return 0, n, errors.Wrapf(err, "checksum %s", path)
	}
	return sum, n, nil
}

// VerifyFile reports whether the file at path hashes to expected.
func VerifyFile(path string, expected uint32) (bool, error) {
	sum, _, err := File(path)
	if err != nil {
		return false, err
	}
	return sum == expected, nil
}

// Parse reads a decimal cksum value as published in listings.
func Parse(s string) (uint32, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 10, 32)
	if err != nil {
		return 0, errors.Wrapf(errors.ErrMalformedResponse, "checksum %q", s)
	}
	return uint32(v), nil
}
