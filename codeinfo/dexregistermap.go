// Copyright The stackmap Authors
// SPDX-License-Identifier: Apache-2.0

package codeinfo // import "github.com/dexmeta/stackmap/codeinfo"

import (
	"github.com/dexmeta/stackmap/memregion"
)

// DexRegisterMap records where each live source register of one frame lives
// at one safepoint. The record starts with a liveness bitmap of one bit per
// register, followed by one catalog index per live register in ascending
// register order. Dead registers take no index bytes at all, which is what
// keeps the record compact: looking up register R costs a popcount over the
// bits before R instead of a fixed-size slot.
type DexRegisterMap struct {
	region memregion.Region
}

// bitmapSize returns the byte span of the liveness bitmap.
func bitmapSize(numRegisters uint16) uint32 {
	return (uint32(numRegisters) + 7) / 8
}

// catalogIndexSize returns the byte width of one catalog index for a table
// with numEntries catalog entries. One extra representable value is reserved
// so the width never needs the all-ones pattern for a real index, keeping
// the arithmetic uniform with the offset fields even though liveness bits
// already express absence here.
func catalogIndexSize(numEntries uint32) uint32 {
	return EncodingWidth(numEntries + 1)
}

// IsLive reports whether register reg holds a value at this safepoint.
func (m DexRegisterMap) IsLive(reg uint16) bool {
	return m.region.LoadBit(uint32(reg))
}

// liveRegisterRank counts the live registers before reg, which is reg's
// position among the stored catalog indices.
func (m DexRegisterMap) liveRegisterRank(reg uint16) uint32 {
	var rank uint32
	for i := uint16(0); i < reg; i++ {
		if m.IsLive(i) {
			rank++
		}
	}
	return rank
}

// LiveRegisterCount returns the number of live registers of the frame.
func (m DexRegisterMap) LiveRegisterCount(numRegisters uint16) uint32 {
	var n uint32
	for i := uint16(0); i < numRegisters; i++ {
		if m.IsLive(i) {
			n++
		}
	}
	return n
}

// CatalogIndexOf returns the catalog index of register reg, or
// NoLocationEntry if reg is dead. A dead register reads no index bytes.
func (m DexRegisterMap) CatalogIndexOf(reg, numRegisters uint16,
	catalogEntries uint32) uint32 {
	if !m.IsLive(reg) {
		return NoLocationEntry
	}
	width := catalogIndexSize(catalogEntries)
	offset := bitmapSize(numRegisters) + m.liveRegisterRank(reg)*width
	return loadField(m.region, width, offset, false)
}

// LocationOf resolves register reg to its location descriptor through the
// table's catalog. Dead registers resolve to a KindNone location.
func (m DexRegisterMap) LocationOf(reg, numRegisters uint16, info CodeInfo) Location {
	index := m.CatalogIndexOf(reg, numRegisters, info.CatalogEntryCount())
	if index == NoLocationEntry {
		return Location{}
	}
	return info.Catalog().LocationAt(index)
}

// Size returns the record's byte size for a frame of numRegisters registers.
func (m DexRegisterMap) Size(numRegisters uint16, catalogEntries uint32) uint32 {
	return bitmapSize(numRegisters) +
		m.LiveRegisterCount(numRegisters)*catalogIndexSize(catalogEntries)
}

// setLive marks register reg live. Build side only.
func (m DexRegisterMap) setLive(reg uint16) {
	m.region.StoreBit(uint32(reg), true)
}

// setCatalogIndex stores the catalog index of the live register with the
// given rank. Build side only.
func (m DexRegisterMap) setCatalogIndex(rank uint32, numRegisters uint16,
	catalogEntries, index uint32) {
	width := catalogIndexSize(catalogEntries)
	storeField(m.region, width, bitmapSize(numRegisters)+rank*width, index)
}
