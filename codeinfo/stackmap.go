// Copyright The stackmap Authors
// SPDX-License-Identifier: Apache-2.0

package codeinfo // import "github.com/dexmeta/stackmap/codeinfo"

import (
	"github.com/dexmeta/stackmap/memregion"
)

// StackMap is one fixed-size safepoint entry. Every accessor takes the
// table's Encoding because field widths and offsets are table-wide, not
// stored per entry.
type StackMap struct {
	region memregion.Region
}

// DexPc returns the source bytecode pc of the safepoint.
func (s StackMap) DexPc(enc *Encoding) uint32 {
	return loadField(s.region, enc.DexPcWidth, enc.dexPcFieldOffset(), false)
}

func (s StackMap) setDexPc(enc *Encoding, pc uint32) {
	storeField(s.region, enc.DexPcWidth, enc.dexPcFieldOffset(), pc)
}

// NativePcOffset returns the native code offset of the safepoint, relative
// to the start of the compiled method.
func (s StackMap) NativePcOffset(enc *Encoding) uint32 {
	return loadField(s.region, enc.NativePcWidth, enc.nativePcFieldOffset(), false)
}

func (s StackMap) setNativePcOffset(enc *Encoding, offset uint32) {
	storeField(s.region, enc.NativePcWidth, enc.nativePcFieldOffset(), offset)
}

// DexRegisterMapOffset returns the payload offset of the entry's dex
// register map. The second return is false when no source register is live
// at this safepoint, including when the whole table stores no register maps
// and the field has width zero.
func (s StackMap) DexRegisterMapOffset(enc *Encoding) (uint32, bool) {
	if enc.DexRegisterMapOffsetWidth == 0 {
		return 0, false
	}
	v := loadField(s.region, enc.DexRegisterMapOffsetWidth,
		enc.dexRegisterMapFieldOffset(), true)
	if v == absentValue {
		return 0, false
	}
	return v, true
}

// setDexRegisterMapOffset stores offset, or the absent sentinel when passed
// absentValue.
func (s StackMap) setDexRegisterMapOffset(enc *Encoding, offset uint32) {
	storeField(s.region, enc.DexRegisterMapOffsetWidth,
		enc.dexRegisterMapFieldOffset(), offset)
}

// HasDexRegisterMap reports whether any source register is live at this
// safepoint. It is derived from the stored offset, never stored itself.
func (s StackMap) HasDexRegisterMap(enc *Encoding) bool {
	_, ok := s.DexRegisterMapOffset(enc)
	return ok
}

// InlineInfoOffset returns the payload offset of the entry's inline info
// record. The second return is false when the safepoint is not inside
// inlined code, including when the table tracks no inline info at all.
func (s StackMap) InlineInfoOffset(enc *Encoding) (uint32, bool) {
	if !enc.HasInlineInfo {
		return 0, false
	}
	v := loadField(s.region, enc.InlineInfoOffsetWidth,
		enc.inlineInfoFieldOffset(), true)
	if v == absentValue {
		return 0, false
	}
	return v, true
}

func (s StackMap) setInlineInfoOffset(enc *Encoding, offset uint32) {
	if !enc.HasInlineInfo {
		panic("codeinfo: table has no inline info field")
	}
	storeField(s.region, enc.InlineInfoOffsetWidth,
		enc.inlineInfoFieldOffset(), offset)
}

// HasInlineInfo reports whether this safepoint sits inside inlined code.
func (s StackMap) HasInlineInfo(enc *Encoding) bool {
	_, ok := s.InlineInfoOffset(enc)
	return ok
}

// RegisterMask returns the bitmask of physical registers holding live
// references at this safepoint.
func (s StackMap) RegisterMask(enc *Encoding) uint32 {
	return loadField(s.region, enc.RegisterMaskWidth, enc.registerMaskFieldOffset(), false)
}

func (s StackMap) setRegisterMask(enc *Encoding, mask uint32) {
	storeField(s.region, enc.RegisterMaskWidth, enc.registerMaskFieldOffset(), mask)
}

// StackMask returns a bit-addressable view of the stack slot liveness mask.
// It is a view into the entry, not a copy; bit i covers stack slot i.
func (s StackMap) StackMask(enc *Encoding) memregion.Region {
	return s.region.Subregion(enc.stackMaskFieldOffset(), enc.StackMaskBytes())
}
