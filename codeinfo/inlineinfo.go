// Copyright The stackmap Authors
// SPDX-License-Identifier: Apache-2.0

package codeinfo // import "github.com/dexmeta/stackmap/codeinfo"

import (
	"fmt"

	"github.com/dexmeta/stackmap/memregion"
)

// InlineInfo record layout: one depth byte followed by a fixed 12-byte
// entry per inlined frame. Depth 0 is the outermost inlined callee. Keeping
// the per-depth entries fixed size keeps every at-depth accessor O(1); the
// frames' own register maps live in the shared payload area and are
// referenced by offset like the top-level ones.
const (
	inlineDepthOffset       = 0
	inlineEntriesOffset     = 1
	inlineEntrySize         = 12
	inlineEntryDexPcOffset  = 0
	inlineEntryMethodOffset = 4
	inlineEntryMapOffset    = 8
)

// inlineInfoSize returns the record byte size for the given depth.
func inlineInfoSize(depth uint8) uint32 {
	return inlineEntriesOffset + uint32(depth)*inlineEntrySize
}

// InlineInfo describes the chain of inlined call frames collapsed into the
// native code around one safepoint.
type InlineInfo struct {
	region memregion.Region
}

// Depth returns the number of inlined frames.
func (ii InlineInfo) Depth() uint8 {
	return ii.region.LoadU8(inlineDepthOffset)
}

func (ii InlineInfo) setDepth(depth uint8) {
	ii.region.StoreU8(inlineDepthOffset, depth)
}

func (ii InlineInfo) entryOffset(depth uint8) uint32 {
	if depth >= ii.Depth() {
		panic(fmt.Sprintf("codeinfo: inline depth %d out of %d", depth, ii.Depth()))
	}
	return inlineEntriesOffset + uint32(depth)*inlineEntrySize
}

// DexPcAtDepth returns the bytecode pc inside the frame at depth.
func (ii InlineInfo) DexPcAtDepth(depth uint8) uint32 {
	return ii.region.LoadU32(ii.entryOffset(depth) + inlineEntryDexPcOffset)
}

func (ii InlineInfo) setDexPcAtDepth(depth uint8, pc uint32) {
	ii.region.StoreU32(ii.entryOffset(depth)+inlineEntryDexPcOffset, pc)
}

// MethodIndexAtDepth returns the method index of the inlined method at
// depth.
func (ii InlineInfo) MethodIndexAtDepth(depth uint8) uint32 {
	return ii.region.LoadU32(ii.entryOffset(depth) + inlineEntryMethodOffset)
}

func (ii InlineInfo) setMethodIndexAtDepth(depth uint8, index uint32) {
	ii.region.StoreU32(ii.entryOffset(depth)+inlineEntryMethodOffset, index)
}

// DexRegisterMapOffsetAtDepth returns the payload offset of the register
// map of the frame at depth, or false if that frame has no live registers.
func (ii InlineInfo) DexRegisterMapOffsetAtDepth(depth uint8) (uint32, bool) {
	v := ii.region.LoadU32(ii.entryOffset(depth) + inlineEntryMapOffset)
	if v == absentValue {
		return 0, false
	}
	return v, true
}

func (ii InlineInfo) setDexRegisterMapOffsetAtDepth(depth uint8, offset uint32) {
	ii.region.StoreU32(ii.entryOffset(depth)+inlineEntryMapOffset, offset)
}

// HasDexRegisterMapAtDepth reports whether the frame at depth has any live
// registers.
func (ii InlineInfo) HasDexRegisterMapAtDepth(depth uint8) bool {
	_, ok := ii.DexRegisterMapOffsetAtDepth(depth)
	return ok
}
