// Copyright The stackmap Authors
// SPDX-License-Identifier: Apache-2.0

package codeinfo

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dexmeta/stackmap/memregion"
)

func TestFieldRoundTrip(t *testing.T) {
	tests := []struct {
		width uint32
		value uint32
	}{
		{width: 0, value: 0},
		{width: 1, value: 0},
		{width: 1, value: 0xfe},
		{width: 2, value: 0x1234},
		{width: 2, value: 0xfffe},
		{width: 3, value: 0x123456},
		{width: 3, value: 0xfffffe},
		{width: 4, value: 0x12345678},
		{width: 4, value: 0xffffffff},
	}
	for _, test := range tests {
		t.Run(fmt.Sprintf("w%d_%#x", test.width, test.value), func(t *testing.T) {
			r := memregion.New(make([]byte, 8))
			// Offset 1 keeps the 2- and 4-byte loads unaligned.
			storeField(r, test.width, 1, test.value)
			assert.Equal(t, test.value, loadField(r, test.width, 1, false))
		})
	}
}

func TestFieldAbsentSentinel(t *testing.T) {
	for width := uint32(1); width <= 3; width++ {
		t.Run(fmt.Sprintf("width%d", width), func(t *testing.T) {
			r := memregion.New(make([]byte, 4))
			storeField(r, width, 0, maxRepresentable(width))
			// The raw all-ones pattern of the width decodes to the one
			// canonical absent value.
			assert.Equal(t, absentValue, loadField(r, width, 0, true))
			// Without the check the literal value comes back.
			assert.Equal(t, maxRepresentable(width), loadField(r, width, 0, false))
		})
	}
}

func TestFieldStoreAbsent(t *testing.T) {
	// Storing the canonical absent value writes the width's own all-ones
	// pattern, making store the exact inverse of load.
	for width := uint32(1); width <= 3; width++ {
		r := memregion.New(make([]byte, 4))
		storeField(r, width, 0, absentValue)
		assert.Equal(t, absentValue, loadField(r, width, 0, true))
	}
}

func TestFieldThreeBytesLayout(t *testing.T) {
	r := memregion.New(make([]byte, 4))
	storeField(r, 3, 0, 0xabcdef)
	// low16 first, high8 after.
	assert.Equal(t, uint16(0xcdef), r.LoadU16(0))
	assert.Equal(t, uint8(0xab), r.LoadU8(2))
	assert.Equal(t, uint32(0xabcdef), loadField(r, 3, 0, false))
}

func TestFieldContractViolations(t *testing.T) {
	r := memregion.New(make([]byte, 8))

	// Width 0 can hold nothing but zero.
	assert.Panics(t, func() { storeField(r, 0, 0, 1) })
	// A zero-width field cannot carry absence either.
	assert.Panics(t, func() { loadField(r, 0, 0, true) })
	// Values wider than the field are refused, not truncated.
	assert.Panics(t, func() { storeField(r, 1, 0, 0x100) })
	assert.Panics(t, func() { storeField(r, 2, 0, 0x10000) })
	assert.Panics(t, func() { storeField(r, 3, 0, 0x1000000) })
	// Widths outside 0..4 are invalid.
	assert.Panics(t, func() { loadField(r, 5, 0, false) })
	assert.Panics(t, func() { storeField(r, 5, 0, 0) })
}

func TestEncodingWidth(t *testing.T) {
	tests := []struct {
		value uint32
		width uint32
	}{
		{0, 0},
		{1, 1},
		{255, 1},
		{256, 2},
		{65535, 2},
		{65536, 3},
		{16777215, 3},
		{16777216, 4},
		{0xffffffff, 4},
	}
	for _, test := range tests {
		assert.Equal(t, test.width, EncodingWidth(test.value), "value %d", test.value)
	}
}
