// Copyright The stackmap Authors
// SPDX-License-Identifier: Apache-2.0

package memregion

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadStoreUnaligned(t *testing.T) {
	r := New(make([]byte, 16))

	r.StoreU8(3, 0xab)
	assert.Equal(t, uint8(0xab), r.LoadU8(3))

	// Odd offsets exercise the unaligned paths.
	r.StoreU16(5, 0xbeef)
	assert.Equal(t, uint16(0xbeef), r.LoadU16(5))

	r.StoreU32(7, 0xdeadbeef)
	assert.Equal(t, uint32(0xdeadbeef), r.LoadU32(7))

	// Little-endian byte order.
	assert.Equal(t, uint8(0xef), r.LoadU8(7))
	assert.Equal(t, uint8(0xde), r.LoadU8(10))
}

func TestBits(t *testing.T) {
	r := New(make([]byte, 2))

	for _, bit := range []uint32{0, 3, 7, 8, 15} {
		r.StoreBit(bit, true)
		assert.True(t, r.LoadBit(bit), "bit %d", bit)
	}
	assert.False(t, r.LoadBit(1))
	assert.False(t, r.LoadBit(14))

	r.StoreBit(8, false)
	assert.False(t, r.LoadBit(8))
	// Clearing one bit leaves its neighbors alone.
	assert.True(t, r.LoadBit(15))
}

func TestSubregion(t *testing.T) {
	data := make([]byte, 8)
	r := New(data)
	sub := r.Subregion(2, 4)
	require.Equal(t, uint32(4), sub.Size())

	sub.StoreU32(0, 0x01020304)
	assert.Equal(t, uint32(0x01020304), r.LoadU32(2))
	// A subregion is a view, not a copy.
	assert.Equal(t, uint8(0x04), data[2])
}

func TestOutOfBoundsPanics(t *testing.T) {
	r := New(make([]byte, 4))

	assert.Panics(t, func() { r.LoadU8(4) })
	assert.Panics(t, func() { r.LoadU16(3) })
	assert.Panics(t, func() { r.LoadU32(1) })
	assert.Panics(t, func() { r.StoreU32(1, 0) })
	assert.Panics(t, func() { r.LoadBit(32) })
	assert.Panics(t, func() { r.Subregion(2, 3) })

	// Offsets near the uint32 limit must not wrap around.
	assert.Panics(t, func() { r.LoadU32(^uint32(0) - 1) })
}

func TestEmptyRegion(t *testing.T) {
	var r Region
	assert.Equal(t, uint32(0), r.Size())
	assert.Panics(t, func() { r.LoadU8(0) })
}
