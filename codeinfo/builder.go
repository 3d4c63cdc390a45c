// Copyright The stackmap Authors
// SPDX-License-Identifier: Apache-2.0

package codeinfo // import "github.com/dexmeta/stackmap/codeinfo"

import (
	"fmt"
	"slices"

	"github.com/dexmeta/stackmap/internal/log"
	"github.com/dexmeta/stackmap/memregion"
)

// LiveRegister names one live source register and where its value lives.
type LiveRegister struct {
	Register uint16
	Location Location
}

// InlineFrame describes one inlined call frame at a safepoint. NumRegisters
// is the register count of the inlined method.
type InlineFrame struct {
	DexPc        uint32
	MethodIndex  uint32
	NumRegisters uint16
	Registers    []LiveRegister
}

// Safepoint is the encoder-side description of one stack map entry.
// StackMask bit i marks stack slot i as holding a live reference; masks
// shorter than the table-wide maximum are zero-extended.
type Safepoint struct {
	DexPc          uint32
	NativePcOffset uint32
	RegisterMask   uint32
	StackMask      []bool
	Registers      []LiveRegister
	InlineFrames   []InlineFrame
}

// Builder assembles the metadata table of one compiled method. All
// safepoints are collected first so field widths can be chosen from the
// table-wide maxima: a width picked from an early, small entry could not
// hold a later, larger value. The builder is used single-threaded by the
// encoder; the encoded table is immutable and safe for concurrent readers.
type Builder struct {
	numRegisters uint16
	safepoints   []Safepoint
	catalog      []Location
	catalogIndex map[Location]uint32
}

// NewBuilder returns a builder for a method with numRegisters source
// registers.
func NewBuilder(numRegisters uint16) *Builder {
	return &Builder{
		numRegisters: numRegisters,
		catalogIndex: make(map[Location]uint32),
	}
}

// AddSafepoint records one safepoint. Register lists are copied, sorted by
// register number, and their locations interned into the catalog, so two
// registers with an identical location anywhere in the table share one
// catalog entry.
func (b *Builder) AddSafepoint(sp Safepoint) error {
	regs, err := b.internRegisters(sp.Registers, b.numRegisters)
	if err != nil {
		return fmt.Errorf("safepoint at native pc %#x: %w", sp.NativePcOffset, err)
	}
	sp.Registers = regs

	if len(sp.InlineFrames) > 255 {
		return fmt.Errorf("safepoint at native pc %#x: inline depth %d exceeds 255",
			sp.NativePcOffset, len(sp.InlineFrames))
	}
	frames := slices.Clone(sp.InlineFrames)
	for i := range frames {
		regs, err = b.internRegisters(frames[i].Registers, frames[i].NumRegisters)
		if err != nil {
			return fmt.Errorf("safepoint at native pc %#x, inline depth %d: %w",
				sp.NativePcOffset, i, err)
		}
		frames[i].Registers = regs
	}
	sp.InlineFrames = frames
	sp.StackMask = slices.Clone(sp.StackMask)

	b.safepoints = append(b.safepoints, sp)
	return nil
}

// internRegisters validates, copies and sorts a live register list and
// assigns catalog indices to its locations.
func (b *Builder) internRegisters(regs []LiveRegister,
	numRegisters uint16) ([]LiveRegister, error) {
	sorted := slices.Clone(regs)
	slices.SortFunc(sorted, func(a, c LiveRegister) int {
		return int(a.Register) - int(c.Register)
	})
	for i, r := range sorted {
		if r.Register >= numRegisters {
			return nil, fmt.Errorf("register v%d out of frame's %d registers",
				r.Register, numRegisters)
		}
		if i > 0 && sorted[i-1].Register == r.Register {
			return nil, fmt.Errorf("register v%d listed twice", r.Register)
		}
		if r.Location.Kind == KindNone {
			return nil, fmt.Errorf("live register v%d without location", r.Register)
		}
		b.internLocation(r.Location)
	}
	return sorted, nil
}

func (b *Builder) internLocation(loc Location) uint32 {
	if index, ok := b.catalogIndex[loc]; ok {
		return index
	}
	index := uint32(len(b.catalog))
	b.catalog = append(b.catalog, loc)
	b.catalogIndex[loc] = index
	return index
}

// payloadLayout is the computed placement of one safepoint's variable-size
// records. Offsets are payload-relative; absentValue marks a missing record.
type payloadLayout struct {
	mapOffset    uint32
	frameOffsets []uint32
	inlineOffset uint32
}

// Encode lays out and writes the table. The dex register map records come
// first in the payload, then the inline info records, so the stored offsets
// stay within the ranges the chosen field widths can represent.
func (b *Builder) Encode() ([]byte, error) {
	catalogEntries := uint32(len(b.catalog))
	indexWidth := catalogIndexSize(catalogEntries)

	var catBuf []byte
	for _, loc := range b.catalog {
		catBuf = appendLocation(catBuf, loc)
	}

	layouts := make([]payloadLayout, len(b.safepoints))
	var dexMapsSize uint32
	for i, sp := range b.safepoints {
		l := &layouts[i]
		l.mapOffset = absentValue
		if len(sp.Registers) > 0 {
			l.mapOffset = dexMapsSize
			dexMapsSize += bitmapSize(b.numRegisters) +
				uint32(len(sp.Registers))*indexWidth
		}
		l.frameOffsets = make([]uint32, len(sp.InlineFrames))
		for j, frame := range sp.InlineFrames {
			l.frameOffsets[j] = absentValue
			if len(frame.Registers) > 0 {
				l.frameOffsets[j] = dexMapsSize
				dexMapsSize += bitmapSize(frame.NumRegisters) +
					uint32(len(frame.Registers))*indexWidth
			}
		}
	}

	var inlineSize uint32
	for i, sp := range b.safepoints {
		layouts[i].inlineOffset = absentValue
		if len(sp.InlineFrames) > 0 {
			layouts[i].inlineOffset = dexMapsSize + inlineSize
			inlineSize += inlineInfoSize(uint8(len(sp.InlineFrames)))
		}
	}

	var stackMaskBits, dexPcMax, nativePcMax, registerMaskMax uint32
	for _, sp := range b.safepoints {
		stackMaskBits = max(stackMaskBits, uint32(len(sp.StackMask)))
		dexPcMax = max(dexPcMax, sp.DexPc)
		nativePcMax = max(nativePcMax, sp.NativePcOffset)
		registerMaskMax = max(registerMaskMax, sp.RegisterMask)
	}
	if stackMaskBits > 0xffff {
		return nil, fmt.Errorf("stack mask of %d bits exceeds 65535", stackMaskBits)
	}

	enc := NewEncoding(stackMaskBits, inlineSize, dexMapsSize,
		dexPcMax, nativePcMax, registerMaskMax)

	count := uint32(len(b.safepoints))
	total := headerSize + uint32(len(catBuf)) + count*enc.StackMapSize() +
		dexMapsSize + inlineSize

	buf := make([]byte, total)
	region := memregion.New(buf)
	region.StoreU32(overallSizeOffset, total)
	region.StoreU16(encodingWordOffset, enc.encodingWord())
	region.StoreU16(stackMaskBitsOffset, uint16(stackMaskBits))
	region.StoreU32(catalogEntryCountOffset, catalogEntries)
	region.StoreU32(catalogSizeOffset, uint32(len(catBuf)))
	region.StoreU32(stackMapCountOffset, count)
	copy(buf[headerSize:], catBuf)

	info := NewCodeInfo(buf)
	payload := info.payload(&enc)
	for i, sp := range b.safepoints {
		l := layouts[i]
		sm := info.StackMapAt(uint32(i), &enc)
		sm.setDexPc(&enc, sp.DexPc)
		sm.setNativePcOffset(&enc, sp.NativePcOffset)
		sm.setRegisterMask(&enc, sp.RegisterMask)
		sm.setDexRegisterMapOffset(&enc, l.mapOffset)
		if enc.HasInlineInfo {
			sm.setInlineInfoOffset(&enc, l.inlineOffset)
		}
		mask := sm.StackMask(&enc)
		for bit, set := range sp.StackMask {
			if set {
				mask.StoreBit(uint32(bit), true)
			}
		}

		if l.mapOffset != absentValue {
			b.writeDexRegisterMap(payload, l.mapOffset, b.numRegisters,
				sp.Registers, catalogEntries)
		}
		if l.inlineOffset != absentValue {
			depth := uint8(len(sp.InlineFrames))
			ii := InlineInfo{
				region: payload.Subregion(l.inlineOffset, inlineInfoSize(depth)),
			}
			ii.setDepth(depth)
			for j, frame := range sp.InlineFrames {
				ii.setDexPcAtDepth(uint8(j), frame.DexPc)
				ii.setMethodIndexAtDepth(uint8(j), frame.MethodIndex)
				ii.setDexRegisterMapOffsetAtDepth(uint8(j), l.frameOffsets[j])
				if l.frameOffsets[j] != absentValue {
					b.writeDexRegisterMap(payload, l.frameOffsets[j],
						frame.NumRegisters, frame.Registers, catalogEntries)
				}
			}
		}
	}

	log.Debugf("encoded code info: %d stack maps, %d catalog entries, %d bytes",
		count, catalogEntries, total)
	return buf, nil
}

// writeDexRegisterMap writes one record at the given payload offset. regs
// must already be sorted by register number, so the slice position of a
// register is its live rank.
func (b *Builder) writeDexRegisterMap(payload memregion.Region, offset uint32,
	numRegisters uint16, regs []LiveRegister, catalogEntries uint32) {
	size := bitmapSize(numRegisters) + uint32(len(regs))*catalogIndexSize(catalogEntries)
	m := DexRegisterMap{region: payload.Subregion(offset, size)}
	for rank, r := range regs {
		m.setLive(r.Register)
		m.setCatalogIndex(uint32(rank), numRegisters, catalogEntries,
			b.catalogIndex[r.Location])
	}
}
