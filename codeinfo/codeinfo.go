// Copyright The stackmap Authors
// SPDX-License-Identifier: Apache-2.0

// Package codeinfo implements the compact binary format for per-safepoint
// metadata of compiled methods. For every native code location where
// execution may be inspected (call sites, suspend checks, back-edges) the
// table records the source bytecode pc, the native pc offset, bitmasks of
// registers and stack slots holding live references, the locations of source
// ("dex") registers, and the chain of inlined call frames if any.
//
// One table serves one compiled method. The encoder chooses a byte width per
// field from the largest value that field takes anywhere in the table, so
// every stack map entry has the same size and entry addressing is
// index * entrySize. Fields that can be absent reserve the all-ones pattern
// of their width as a sentinel. The width configuration is decoded once into
// an Encoding and passed to every accessor; encoder and decoder must agree
// on it exactly, which is why all width and offset arithmetic lives in this
// package.
//
// Binary layout:
//
//	Table   := Header Catalog StackMap[stackMapCount] Payload
//	Payload := DexRegisterMap records ++ InlineInfo records
//
// Offsets stored in stack map entries are relative to the start of Payload.
package codeinfo // import "github.com/dexmeta/stackmap/codeinfo"

import (
	"fmt"

	"github.com/dexmeta/stackmap/memregion"
)

// Header field offsets. The header is fixed-width so it can be written
// before the variable parts are sized.
const (
	overallSizeOffset       = 0
	encodingWordOffset      = 4
	stackMaskBitsOffset     = 6
	catalogEntryCountOffset = 8
	catalogSizeOffset       = 12
	stackMapCountOffset     = 16
	headerSize              = 20
)

// Bit layout of the 16-bit encoding word: one flag for inline info presence,
// then five 3-bit byte-width fields.
const (
	hasInlineInfoShift       = 0
	inlineInfoWidthShift     = 1
	dexRegisterMapWidthShift = 4
	dexPcWidthShift          = 7
	nativePcWidthShift       = 10
	registerMaskWidthShift   = 13
)

const encodingWidthMask uint16 = 0x7

// Encoding is the per-table field configuration: the byte width of every
// stack map field, the stack mask width in bits, and whether the table
// carries inline info at all. It is produced once, by the encoder from the
// table-wide maxima or by decoding a table header, and passed by pointer to
// every accessor. It is immutable after construction.
type Encoding struct {
	HasInlineInfo             bool
	InlineInfoOffsetWidth     uint32
	DexRegisterMapOffsetWidth uint32
	DexPcWidth                uint32
	NativePcWidth             uint32
	RegisterMaskWidth         uint32
	StackMaskBits             uint32
}

// NewEncoding computes the field configuration from table-wide maxima:
// the stack mask width in bits, the total payload bytes taken by inline info
// records and by dex register map records, and the largest dex pc, native pc
// offset and register mask stored in any entry. The offset fields are sized
// one past their payload so the all-ones absent sentinel never collides with
// a real offset. A table with no inline info drops that field entirely.
func NewEncoding(stackMaskBits, inlineInfoSize, dexRegisterMapsSize,
	dexPcMax, nativePcMax, registerMaskMax uint32) Encoding {
	e := Encoding{
		DexRegisterMapOffsetWidth: EncodingWidth(dexRegisterMapsSize + 1),
		DexPcWidth:                EncodingWidth(dexPcMax),
		NativePcWidth:             EncodingWidth(nativePcMax),
		RegisterMaskWidth:         EncodingWidth(registerMaskMax),
		StackMaskBits:             stackMaskBits,
	}
	if inlineInfoSize != 0 {
		e.HasInlineInfo = true
		e.InlineInfoOffsetWidth = EncodingWidth(inlineInfoSize + dexRegisterMapsSize + 1)
	}
	return e
}

// ComputeStackMapSize returns the byte size of one stack map entry for a
// table with the given maxima. Entry size is a table-wide constant.
func ComputeStackMapSize(stackMaskBits, inlineInfoSize, dexRegisterMapsSize,
	dexPcMax, nativePcMax, registerMaskMax uint32) uint32 {
	e := NewEncoding(stackMaskBits, inlineInfoSize, dexRegisterMapsSize,
		dexPcMax, nativePcMax, registerMaskMax)
	return e.StackMapSize()
}

// StackMaskBytes returns the byte span of the stack mask field.
func (e *Encoding) StackMaskBytes() uint32 {
	return (e.StackMaskBits + 7) / 8
}

// Per-entry field offsets. The field order is frozen: stack mask, inline
// info offset, dex register map offset, dex pc, native pc offset, register
// mask. Both the encoder and every accessor derive offsets from this chain;
// nothing else may compute them.
func (e *Encoding) stackMaskFieldOffset() uint32 { return 0 }

func (e *Encoding) inlineInfoFieldOffset() uint32 {
	return e.stackMaskFieldOffset() + e.StackMaskBytes()
}

func (e *Encoding) dexRegisterMapFieldOffset() uint32 {
	return e.inlineInfoFieldOffset() + e.InlineInfoOffsetWidth
}

func (e *Encoding) dexPcFieldOffset() uint32 {
	return e.dexRegisterMapFieldOffset() + e.DexRegisterMapOffsetWidth
}

func (e *Encoding) nativePcFieldOffset() uint32 {
	return e.dexPcFieldOffset() + e.DexPcWidth
}

func (e *Encoding) registerMaskFieldOffset() uint32 {
	return e.nativePcFieldOffset() + e.NativePcWidth
}

// StackMapSize returns the byte size of one stack map entry.
func (e *Encoding) StackMapSize() uint32 {
	return e.registerMaskFieldOffset() + e.RegisterMaskWidth
}

// encodingWord packs the widths and the inline info flag into the header's
// 16-bit encoding word.
func (e *Encoding) encodingWord() uint16 {
	var w uint16
	if e.HasInlineInfo {
		w |= 1 << hasInlineInfoShift
	}
	w |= uint16(e.InlineInfoOffsetWidth) << inlineInfoWidthShift
	w |= uint16(e.DexRegisterMapOffsetWidth) << dexRegisterMapWidthShift
	w |= uint16(e.DexPcWidth) << dexPcWidthShift
	w |= uint16(e.NativePcWidth) << nativePcWidthShift
	w |= uint16(e.RegisterMaskWidth) << registerMaskWidthShift
	return w
}

// CodeInfo is the metadata table of one compiled method. It borrows the
// backing region; the table is assembled once by a Builder and read-only
// from then on, so any number of readers may use it concurrently.
type CodeInfo struct {
	region memregion.Region
}

// NewCodeInfo wraps an encoded table. The data is trusted to come from the
// same build's Builder; no validation beyond bounds checking is performed.
func NewCodeInfo(data []byte) CodeInfo {
	return CodeInfo{region: memregion.New(data)}
}

// Encoding decodes the header's field configuration. Callers decode it once
// and pass it to every accessor.
func (c CodeInfo) Encoding() Encoding {
	w := c.region.LoadU16(encodingWordOffset)
	width := func(shift uint) uint32 {
		return uint32((w >> shift) & encodingWidthMask)
	}
	return Encoding{
		HasInlineInfo:             w&(1<<hasInlineInfoShift) != 0,
		InlineInfoOffsetWidth:     width(inlineInfoWidthShift),
		DexRegisterMapOffsetWidth: width(dexRegisterMapWidthShift),
		DexPcWidth:                width(dexPcWidthShift),
		NativePcWidth:             width(nativePcWidthShift),
		RegisterMaskWidth:         width(registerMaskWidthShift),
		StackMaskBits:             uint32(c.region.LoadU16(stackMaskBitsOffset)),
	}
}

// OverallSize returns the total table size in bytes.
func (c CodeInfo) OverallSize() uint32 {
	return c.region.LoadU32(overallSizeOffset)
}

// NumberOfStackMaps returns the number of safepoint entries in the table.
func (c CodeInfo) NumberOfStackMaps() uint32 {
	return c.region.LoadU32(stackMapCountOffset)
}

// CatalogEntryCount returns the number of distinct location descriptors in
// the catalog.
func (c CodeInfo) CatalogEntryCount() uint32 {
	return c.region.LoadU32(catalogEntryCountOffset)
}

// CatalogSize returns the catalog byte size.
func (c CodeInfo) CatalogSize() uint32 {
	return c.region.LoadU32(catalogSizeOffset)
}

// Catalog returns the location catalog of this table.
func (c CodeInfo) Catalog() LocationCatalog {
	return LocationCatalog{
		region:  c.region.Subregion(headerSize, c.CatalogSize()),
		entries: c.CatalogEntryCount(),
	}
}

func (c CodeInfo) stackMapsOffset() uint32 {
	return headerSize + c.CatalogSize()
}

// StackMapAt returns safepoint entry i.
func (c CodeInfo) StackMapAt(i uint32, enc *Encoding) StackMap {
	if i >= c.NumberOfStackMaps() {
		panic(fmt.Sprintf("codeinfo: stack map index %d out of %d", i,
			c.NumberOfStackMaps()))
	}
	size := enc.StackMapSize()
	return StackMap{region: c.region.Subregion(c.stackMapsOffset()+i*size, size)}
}

// payload returns the variable-size tail holding dex register map and inline
// info records. All offsets stored in stack map entries point into it.
func (c CodeInfo) payload(enc *Encoding) memregion.Region {
	offset := c.stackMapsOffset() + c.NumberOfStackMaps()*enc.StackMapSize()
	return c.region.Subregion(offset, c.OverallSize()-offset)
}

// DexRegisterMapOf returns the dex register map of sm, or false if no
// source register is live at that safepoint.
func (c CodeInfo) DexRegisterMapOf(sm StackMap, enc *Encoding,
	numRegisters uint16) (DexRegisterMap, bool) {
	offset, ok := sm.DexRegisterMapOffset(enc)
	if !ok {
		return DexRegisterMap{}, false
	}
	return c.dexRegisterMapAt(enc, offset, numRegisters), true
}

// dexRegisterMapAt views the record at the given payload offset, sized from
// its own liveness bitmap.
func (c CodeInfo) dexRegisterMapAt(enc *Encoding, offset uint32,
	numRegisters uint16) DexRegisterMap {
	payload := c.payload(enc)
	m := DexRegisterMap{region: payload.Subregion(offset, payload.Size()-offset)}
	size := m.Size(numRegisters, c.CatalogEntryCount())
	return DexRegisterMap{region: payload.Subregion(offset, size)}
}

// InlineInfoOf returns the inline info record of sm, or false if the entry
// has none (or the table tracks no inline info at all).
func (c CodeInfo) InlineInfoOf(sm StackMap, enc *Encoding) (InlineInfo, bool) {
	offset, ok := sm.InlineInfoOffset(enc)
	if !ok {
		return InlineInfo{}, false
	}
	payload := c.payload(enc)
	return InlineInfo{region: payload.Subregion(offset, payload.Size()-offset)}, true
}

// DexRegisterMapAtDepth returns the dex register map of inlined frame depth
// in info, or false if that frame has none. numRegisters is the register
// count of the inlined method at that depth; it is a property of the method,
// not of this table, so the caller supplies it.
func (c CodeInfo) DexRegisterMapAtDepth(depth uint8, info InlineInfo,
	enc *Encoding, numRegisters uint16) (DexRegisterMap, bool) {
	offset, ok := info.DexRegisterMapOffsetAtDepth(depth)
	if !ok {
		return DexRegisterMap{}, false
	}
	return c.dexRegisterMapAt(enc, offset, numRegisters), true
}
