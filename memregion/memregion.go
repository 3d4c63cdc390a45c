// Copyright The stackmap Authors
// SPDX-License-Identifier: Apache-2.0

// Package memregion provides a bounds-checked view into a contiguous byte
// buffer with unaligned little-endian loads and stores and single-bit
// addressing. All metadata decoding and encoding in this module goes through
// Region so that no caller does raw offset arithmetic on byte slices.
//
// The backing buffer is trusted data produced by the same build; an access
// outside the region is a contract violation between encoder and decoder and
// panics instead of returning an error.
package memregion // import "github.com/dexmeta/stackmap/memregion"

import (
	"encoding/binary"
	"fmt"
)

// Region is a view into a byte buffer. The zero value is an empty region.
// Region borrows the backing storage, it never owns it: copying a Region
// copies the view, not the bytes.
type Region struct {
	data []byte
}

// New wraps data in a Region.
func New(data []byte) Region {
	return Region{data: data}
}

// Size returns the region size in bytes.
func (r Region) Size() uint32 {
	return uint32(len(r.data))
}

// Subregion returns a view of size bytes starting at offset.
func (r Region) Subregion(offset, size uint32) Region {
	r.check(offset, size)
	return Region{data: r.data[offset : offset+size]}
}

// Bytes returns the backing slice of the region.
func (r Region) Bytes() []byte {
	return r.data
}

// LoadU8 reads one byte at offset.
func (r Region) LoadU8(offset uint32) uint8 {
	r.check(offset, 1)
	return r.data[offset]
}

// LoadU16 reads a 16-bit little-endian value at offset, unaligned.
func (r Region) LoadU16(offset uint32) uint16 {
	r.check(offset, 2)
	return binary.LittleEndian.Uint16(r.data[offset:])
}

// LoadU32 reads a 32-bit little-endian value at offset, unaligned.
func (r Region) LoadU32(offset uint32) uint32 {
	r.check(offset, 4)
	return binary.LittleEndian.Uint32(r.data[offset:])
}

// StoreU8 writes one byte at offset.
func (r Region) StoreU8(offset uint32, value uint8) {
	r.check(offset, 1)
	r.data[offset] = value
}

// StoreU16 writes a 16-bit little-endian value at offset, unaligned.
func (r Region) StoreU16(offset uint32, value uint16) {
	r.check(offset, 2)
	binary.LittleEndian.PutUint16(r.data[offset:], value)
}

// StoreU32 writes a 32-bit little-endian value at offset, unaligned.
func (r Region) StoreU32(offset uint32, value uint32) {
	r.check(offset, 4)
	binary.LittleEndian.PutUint32(r.data[offset:], value)
}

// LoadBit reads the bit at bitOffset. Bit 0 is the least significant bit of
// the first byte.
func (r Region) LoadBit(bitOffset uint32) bool {
	b := r.LoadU8(bitOffset / 8)
	return (b>>(bitOffset%8))&1 != 0
}

// StoreBit sets or clears the bit at bitOffset.
func (r Region) StoreBit(bitOffset uint32, value bool) {
	idx, mask := bitOffset/8, uint8(1)<<(bitOffset%8)
	b := r.LoadU8(idx)
	if value {
		b |= mask
	} else {
		b &^= mask
	}
	r.StoreU8(idx, b)
}

func (r Region) check(offset, size uint32) {
	if uint64(offset)+uint64(size) > uint64(len(r.data)) {
		panic(fmt.Sprintf("memregion: access [%#x,%#x) outside region of size %#x",
			offset, offset+size, len(r.data)))
	}
}
