// Copyright The stackmap Authors
// SPDX-License-Identifier: Apache-2.0

package codeinfo // import "github.com/dexmeta/stackmap/codeinfo"

import (
	"fmt"
	"io"
	"strings"
)

// Dump writes a human-readable listing of the table to w: header fields,
// catalog entries and, if dumpStackMaps is set, a line per stack map with
// its live register locations. codeOffset is the load address of the
// compiled code, used to print absolute native pcs. The output format
// carries no compatibility guarantee.
func (c CodeInfo) Dump(w io.Writer, codeOffset uint32, numRegisters uint16,
	dumpStackMaps bool) {
	enc := c.Encoding()
	fmt.Fprintf(w, "CodeInfo (size=%d, registers=%d, stack_maps=%d, "+
		"has_inline_info=%v, widths: inline_info=%d dex_register_map=%d "+
		"dex_pc=%d native_pc=%d register_mask=%d, stack_mask_bits=%d)\n",
		c.OverallSize(), numRegisters, c.NumberOfStackMaps(),
		enc.HasInlineInfo, enc.InlineInfoOffsetWidth, enc.DexRegisterMapOffsetWidth,
		enc.DexPcWidth, enc.NativePcWidth, enc.RegisterMaskWidth, enc.StackMaskBits)

	c.Catalog().dump(w)

	if !dumpStackMaps {
		return
	}
	for i := uint32(0); i < c.NumberOfStackMaps(); i++ {
		c.dumpStackMap(w, &enc, i, codeOffset, numRegisters)
	}
}

func (c LocationCatalog) dump(w io.Writer) {
	fmt.Fprintf(w, "  LocationCatalog (entries=%d, size=%d)\n",
		c.NumberOfEntries(), c.Size())
	for i := uint32(0); i < c.NumberOfEntries(); i++ {
		fmt.Fprintf(w, "    entry %d: %s\n", i, c.LocationAt(i))
	}
}

func (c CodeInfo) dumpStackMap(w io.Writer, enc *Encoding, index, codeOffset uint32,
	numRegisters uint16) {
	sm := c.StackMapAt(index, enc)
	fmt.Fprintf(w, "  StackMap %d [native_pc=%#x] (dex_pc=%#x, native_pc_offset=%#x, "+
		"dex_register_map_offset=%s, inline_info_offset=%s, register_mask=%#x, "+
		"stack_mask=0b%s)\n",
		index, codeOffset+sm.NativePcOffset(enc), sm.DexPc(enc),
		sm.NativePcOffset(enc),
		dumpOffset(sm.DexRegisterMapOffset(enc)),
		dumpOffset(sm.InlineInfoOffset(enc)),
		sm.RegisterMask(enc), dumpStackMask(sm, enc))

	if m, ok := c.DexRegisterMapOf(sm, enc, numRegisters); ok {
		m.dump(w, c, numRegisters, "    ")
	}
	if ii, ok := c.InlineInfoOf(sm, enc); ok {
		ii.dump(w)
	}
}

func (m DexRegisterMap) dump(w io.Writer, info CodeInfo, numRegisters uint16,
	indent string) {
	for reg := uint16(0); reg < numRegisters; reg++ {
		if !m.IsLive(reg) {
			continue
		}
		index := m.CatalogIndexOf(reg, numRegisters, info.CatalogEntryCount())
		fmt.Fprintf(w, "%sv%d: %s [entry %d]\n", indent, reg,
			info.Catalog().LocationAt(index), index)
	}
}

func (ii InlineInfo) dump(w io.Writer) {
	fmt.Fprintf(w, "    InlineInfo (depth=%d)\n", ii.Depth())
	for depth := uint8(0); depth < ii.Depth(); depth++ {
		fmt.Fprintf(w, "      depth %d: dex_pc=%#x, method_index=%#x, "+
			"dex_register_map_offset=%s\n",
			depth, ii.DexPcAtDepth(depth), ii.MethodIndexAtDepth(depth),
			dumpOffset(ii.DexRegisterMapOffsetAtDepth(depth)))
		// The frames' own register maps need the register counts of the
		// inlined methods, which the table does not store.
	}
}

func dumpOffset(offset uint32, ok bool) string {
	if !ok {
		return "none"
	}
	return fmt.Sprintf("%#x", offset)
}

// dumpStackMask renders the stack mask most significant bit first.
func dumpStackMask(sm StackMap, enc *Encoding) string {
	if enc.StackMaskBits == 0 {
		return "0"
	}
	mask := sm.StackMask(enc)
	var sb strings.Builder
	for i := enc.StackMaskBits; i > 0; i-- {
		if mask.LoadBit(i - 1) {
			sb.WriteByte('1')
		} else {
			sb.WriteByte('0')
		}
	}
	return sb.String()
}
