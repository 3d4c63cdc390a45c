// Copyright The stackmap Authors
// SPDX-License-Identifier: Apache-2.0

package codeinfo // import "github.com/dexmeta/stackmap/codeinfo"

import (
	"fmt"

	"github.com/dexmeta/stackmap/memregion"
)

// LocationKind says where the value of a source register lives at a
// safepoint.
type LocationKind uint8

const (
	// KindNone marks a register without a location (dead or untracked).
	KindNone LocationKind = iota
	// KindInStack places the value in the stack slot at Value bytes from
	// the frame base. The offset is word aligned.
	KindInStack
	// KindInRegister places the value in core register number Value.
	KindInRegister
	// KindInFpuRegister places the value in floating point register
	// number Value.
	KindInFpuRegister
	// KindConstant means the value is the literal constant Value.
	KindConstant

	// Wire-only variants for payloads that do not fit the short form.
	// Decoded entries always surface the canonical kinds above.
	kindInStackLarge
	kindConstantLarge
)

func (k LocationKind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindInStack:
		return "in stack"
	case KindInRegister:
		return "in register"
	case KindInFpuRegister:
		return "in fpu register"
	case KindConstant:
		return "constant"
	default:
		return fmt.Sprintf("unknown kind %d", uint8(k))
	}
}

// Location describes where a source register's value lives.
type Location struct {
	Kind  LocationKind
	Value int32
}

func (l Location) String() string {
	return fmt.Sprintf("%s (%d)", l.Kind, l.Value)
}

// NoLocationEntry is the catalog index meaning "no location descriptor".
// It never appears on the wire: register liveness bits already encode
// absence, so it exists only as an API-level sentinel.
const NoLocationEntry = ^uint32(0)

// Catalog entry wire format. An entry self-describes its own size through
// its first byte: the kind sits in the top 3 bits and, for short-form kinds,
// the payload in the low 5 bits. Large-form kinds are followed by a 4-byte
// payload. Stack offsets are word multiples, so the short form stores them
// divided by the word size to stretch its reach to offset 124.
const (
	locationKindShift       = 5
	locationValueMask uint8 = 0x1f
	locationWordSize        = 4
	maxShortValue           = 31
	shortEntrySize          = 1
	largeEntrySize          = 5
)

// LocationCatalog is the deduplicated list of distinct register location
// descriptors of one table. Many safepoints referencing the same location
// share one entry through its index.
type LocationCatalog struct {
	region  memregion.Region
	entries uint32
}

// NumberOfEntries returns the number of catalog entries.
func (c LocationCatalog) NumberOfEntries() uint32 {
	return c.entries
}

// Size returns the catalog byte size.
func (c LocationCatalog) Size() uint32 {
	return c.region.Size()
}

// entryOffset walks the self-describing entries preceding index. Lookup
// cost is linear in the index; catalogs are small enough that an offset
// side table would cost more than it saves.
func (c LocationCatalog) entryOffset(index uint32) uint32 {
	if index >= c.entries {
		panic(fmt.Sprintf("codeinfo: catalog index %d out of %d", index, c.entries))
	}
	var offset uint32
	for i := uint32(0); i < index; i++ {
		offset += entrySizeAt(c.region, offset)
	}
	return offset
}

func entrySizeAt(r memregion.Region, offset uint32) uint32 {
	kind := LocationKind(r.LoadU8(offset) >> locationKindShift)
	if kind == kindInStackLarge || kind == kindConstantLarge {
		return largeEntrySize
	}
	return shortEntrySize
}

// KindAt resolves the kind of catalog entry index.
func (c LocationCatalog) KindAt(index uint32) LocationKind {
	return c.LocationAt(index).Kind
}

// LocationAt resolves catalog entry index to its descriptor.
func (c LocationCatalog) LocationAt(index uint32) Location {
	offset := c.entryOffset(index)
	first := c.region.LoadU8(offset)
	kind := LocationKind(first >> locationKindShift)
	short := int32(first & locationValueMask)
	switch kind {
	case KindInStack:
		return Location{Kind: KindInStack, Value: short * locationWordSize}
	case KindInRegister, KindInFpuRegister, KindConstant:
		return Location{Kind: kind, Value: short}
	case kindInStackLarge:
		return Location{Kind: KindInStack, Value: int32(c.region.LoadU32(offset + 1))}
	case kindConstantLarge:
		return Location{Kind: KindConstant, Value: int32(c.region.LoadU32(offset + 1))}
	default:
		panic(fmt.Sprintf("codeinfo: invalid catalog entry kind %d", uint8(kind)))
	}
}

// locationEncodedSize returns the wire size of loc.
func locationEncodedSize(loc Location) uint32 {
	if wireKind(loc) == kindInStackLarge || wireKind(loc) == kindConstantLarge {
		return largeEntrySize
	}
	return shortEntrySize
}

// wireKind picks the short or large form for loc.
func wireKind(loc Location) LocationKind {
	switch loc.Kind {
	case KindInStack:
		if loc.Value%locationWordSize != 0 {
			panic(fmt.Sprintf("codeinfo: unaligned stack location %d", loc.Value))
		}
		if loc.Value < 0 || loc.Value/locationWordSize > maxShortValue {
			return kindInStackLarge
		}
		return KindInStack
	case KindInRegister, KindInFpuRegister:
		if loc.Value < 0 || loc.Value > maxShortValue {
			panic(fmt.Sprintf("codeinfo: register number %d out of range", loc.Value))
		}
		return loc.Kind
	case KindConstant:
		if loc.Value < 0 || loc.Value > maxShortValue {
			return kindConstantLarge
		}
		return KindConstant
	default:
		panic(fmt.Sprintf("codeinfo: cannot encode location kind %s", loc.Kind))
	}
}

// appendLocation encodes loc onto buf.
func appendLocation(buf []byte, loc Location) []byte {
	kind := wireKind(loc)
	switch kind {
	case kindInStackLarge, kindConstantLarge:
		buf = append(buf, uint8(kind)<<locationKindShift)
		v := uint32(loc.Value)
		return append(buf, uint8(v), uint8(v>>8), uint8(v>>16), uint8(v>>24))
	case KindInStack:
		value := uint8(loc.Value / locationWordSize)
		return append(buf, uint8(kind)<<locationKindShift|value)
	default:
		return append(buf, uint8(kind)<<locationKindShift|uint8(loc.Value))
	}
}
