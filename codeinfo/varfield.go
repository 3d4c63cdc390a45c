// Copyright The stackmap Authors
// SPDX-License-Identifier: Apache-2.0

package codeinfo // import "github.com/dexmeta/stackmap/codeinfo"

import (
	"fmt"

	"github.com/dexmeta/stackmap/memregion"
)

// absentValue is the canonical decoded form of a field whose stored bit
// pattern is the reserved all-ones pattern of its width. Accessors never
// return it directly; they translate it to an explicit "not present" result.
const absentValue = ^uint32(0)

// loadField assembles a uint32 from a width-byte field at offset. Width 0
// fields occupy no bytes and always decode to 0. If checkAbsent is set and
// the stored pattern is the all-ones pattern of the field's width, the
// canonical absentValue is returned instead of the literal value. Width 4
// reserves no pattern, so checkAbsent is not supported there.
func loadField(r memregion.Region, width, offset uint32, checkAbsent bool) uint32 {
	switch width {
	case 0:
		if checkAbsent {
			panic("codeinfo: absent-sentinel check on zero-width field")
		}
		return 0
	case 1:
		value := uint32(r.LoadU8(offset))
		if checkAbsent && value == 0xff {
			return absentValue
		}
		return value
	case 2:
		value := uint32(r.LoadU16(offset))
		if checkAbsent && value == 0xffff {
			return absentValue
		}
		return value
	case 3:
		low := uint32(r.LoadU16(offset))
		high := uint32(r.LoadU8(offset + 2))
		value := high<<16 | low
		if checkAbsent && value == 0xffffff {
			return absentValue
		}
		return value
	case 4:
		// A 4-byte field spans the whole uint32 range, so no pattern is
		// reserved and checkAbsent has nothing to do: the all-ones value
		// already is the canonical absent value.
		return r.LoadU32(offset)
	default:
		panic(fmt.Sprintf("codeinfo: invalid field width %d", width))
	}
}

// storeField writes value into a width-byte field at offset, the inverse of
// loadField: the canonical absentValue maps onto the all-ones pattern of the
// field's width. Storing into a width 0 field is allowed only for value 0:
// the table decided this field never exists, so any other value cannot be
// represented.
func storeField(r memregion.Region, width, offset, value uint32) {
	if value == absentValue && width >= 1 && width <= 3 {
		value = maxRepresentable(width)
	}
	if width < 4 && value > maxRepresentable(width) {
		panic(fmt.Sprintf("codeinfo: value %#x does not fit in %d-byte field",
			value, width))
	}
	switch width {
	case 0:
	case 1:
		r.StoreU8(offset, uint8(value))
	case 2:
		r.StoreU16(offset, uint16(value))
	case 3:
		r.StoreU16(offset, uint16(value))
		r.StoreU8(offset+2, uint8(value>>16))
	case 4:
		r.StoreU32(offset, value)
	default:
		panic(fmt.Sprintf("codeinfo: invalid field width %d", width))
	}
}

// maxRepresentable returns the largest value a width-byte field can hold,
// ignoring any sentinel reservation.
func maxRepresentable(width uint32) uint32 {
	return 1<<(8*width) - 1
}

// EncodingWidth returns the smallest field width in bytes able to hold
// value, 0 if value is 0. Callers that need the absent sentinel pass their
// maximum plus one so the all-ones pattern stays unused by real values.
func EncodingWidth(value uint32) uint32 {
	switch {
	case value == 0:
		return 0
	case value <= 0xff:
		return 1
	case value <= 0xffff:
		return 2
	case value <= 0xffffff:
		return 3
	default:
		return 4
	}
}
