// Package persistence implements the self-describing snapshot container and
// atomic file helpers.
//
// A snapshot file is, in order (all integers little-endian):
//
//	magic     uint32
//	version   uint32
//	codec     uint16 length + name bytes
//	compress  uint16 length + name bytes
//	bodyLen   uint64
//	body      bodyLen bytes (codec output, possibly compressed)
//	checksum  uint32 CRC-32C (Castagnoli) over the body
//
// The codec and compression names make old files decodable after the library
// defaults change. Graph structure is never serialized: importing a snapshot
// rebuilds the index by replaying inserts.
package persistence

import (
	"errors"
	"hash/crc32"
)

const (
	// MagicNumber identifies snapshot files ("MEMV").
	MagicNumber uint32 = 0x4D454D56

	// Version is the current container version.
	Version uint32 = 1

	// maxBodyLen caps the declared body size so corrupt headers cannot
	// trigger huge allocations.
	maxBodyLen = 1 << 33
)

var (
	// ErrInvalidMagic is returned when the file does not start with the
	// snapshot magic number.
	ErrInvalidMagic = errors.New("invalid magic number")

	// ErrInvalidVersion is returned for unsupported container versions.
	ErrInvalidVersion = errors.New("unsupported snapshot version")

	// ErrChecksumMismatch is returned when the body fails CRC validation.
	ErrChecksumMismatch = errors.New("checksum mismatch")

	// ErrUnknownCodec is returned when the header names a codec this
	// build does not provide.
	ErrUnknownCodec = errors.New("unknown codec")

	// ErrUnknownCompression is returned when the header names a
	// compression this build does not provide.
	ErrUnknownCompression = errors.New("unknown compression")
)

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// Checksum computes the CRC-32C checksum used by the snapshot container.
func Checksum(data []byte) uint32 {
	return crc32.Checksum(data, castagnoli)
}
