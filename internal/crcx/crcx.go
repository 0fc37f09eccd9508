// Package crcx provides the CRC32C (Castagnoli) checksum and the
// little-endian integer encode/decode helpers shared by the audit log and
// wire-capture formats, grounded on orig:src/util/crc32c.hpp and
// orig:src/persist/endianness.hpp.
package crcx

import (
	"encoding/binary"
	"hash/crc32"
)

var castagnoliTable = crc32.MakeTable(crc32.Castagnoli)

// Checksum returns the CRC32C (Castagnoli polynomial) of data.
func Checksum(data []byte) uint32 {
	return crc32.Checksum(data, castagnoliTable)
}

// NewDigest returns a fresh running CRC32C digest for incremental use
// across multiple Write calls (e.g. header then payload).
func NewDigest() Digest {
	return Digest{crc: 0}
}

// Digest is an incremental CRC32C accumulator.
type Digest struct {
	crc uint32
}

// Write folds data into the running checksum.
func (d *Digest) Write(data []byte) {
	d.crc = crc32.Update(d.crc, castagnoliTable, data)
}

// Sum returns the checksum accumulated so far.
func (d *Digest) Sum() uint32 { return d.crc }

// PutUint16LE writes v into buf (len(buf) must be >= 2) in little-endian
// byte order.
func PutUint16LE(buf []byte, v uint16) {
	binary.LittleEndian.PutUint16(buf, v)
}

// Uint16LE reads a little-endian uint16 from buf (len(buf) must be >= 2).
func Uint16LE(buf []byte) uint16 {
	return binary.LittleEndian.Uint16(buf)
}

// PutUint32LE writes v into buf (len(buf) must be >= 4) in little-endian
// byte order.
func PutUint32LE(buf []byte, v uint32) {
	binary.LittleEndian.PutUint32(buf, v)
}

// Uint32LE reads a little-endian uint32 from buf (len(buf) must be >= 4).
func Uint32LE(buf []byte) uint32 {
	return binary.LittleEndian.Uint32(buf)
}

// PutUint64LE writes v into buf (len(buf) must be >= 8) in little-endian
// byte order.
func PutUint64LE(buf []byte, v uint64) {
	binary.LittleEndian.PutUint64(buf, v)
}

// Uint64LE reads a little-endian uint64 from buf (len(buf) must be >= 8).
func Uint64LE(buf []byte) uint64 {
	return binary.LittleEndian.Uint64(buf)
}

// PutInt64LE writes v into buf (len(buf) must be >= 8) in little-endian
// byte order.
func PutInt64LE(buf []byte, v int64) {
	binary.LittleEndian.PutUint64(buf, uint64(v))
}

// Int64LE reads a little-endian int64 from buf (len(buf) must be >= 8).
func Int64LE(buf []byte) int64 {
	return int64(binary.LittleEndian.Uint64(buf))
}
