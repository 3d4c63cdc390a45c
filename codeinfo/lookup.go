// Copyright The stackmap Authors
// SPDX-License-Identifier: Apache-2.0

package codeinfo // import "github.com/dexmeta/stackmap/codeinfo"

import (
	lru "github.com/elastic/go-freelru"
)

// locationCacheSize bounds the per-method cache of decoded register
// locations. Hot methods are probed at few distinct safepoints, so a small
// cache covers repeated root scans and deoptimization probes.
const locationCacheSize = 128

// Lookup resolves pcs to stack maps for one compiled method and memoizes
// decoded register locations, since resolving a register walks the liveness
// bitmap and the self-describing catalog on every call.
//
// Lookup caches internally and is not safe for concurrent use; create one
// per consumer thread. The underlying table may be shared freely.
type Lookup struct {
	info         CodeInfo
	enc          Encoding
	numRegisters uint16
	locations    *lru.LRU[uint32, []Location]
}

// NewLookup creates a Lookup over an encoded table for a method with
// numRegisters source registers.
func NewLookup(info CodeInfo, numRegisters uint16) (*Lookup, error) {
	locations, err := lru.New[uint32, []Location](locationCacheSize, hashUint32)
	if err != nil {
		return nil, err
	}
	return &Lookup{
		info:         info,
		enc:          info.Encoding(),
		numRegisters: numRegisters,
		locations:    locations,
	}, nil
}

// Encoding returns the table's decoded field configuration.
func (l *Lookup) Encoding() *Encoding {
	return &l.enc
}

// StackMapForDexPc returns the first stack map at the given bytecode pc.
func (l *Lookup) StackMapForDexPc(dexPc uint32) (StackMap, bool) {
	return l.find(func(sm StackMap) bool {
		return sm.DexPc(&l.enc) == dexPc
	})
}

// StackMapForNativePcOffset returns the first stack map at the given native
// code offset.
func (l *Lookup) StackMapForNativePcOffset(offset uint32) (StackMap, bool) {
	return l.find(func(sm StackMap) bool {
		return sm.NativePcOffset(&l.enc) == offset
	})
}

func (l *Lookup) find(match func(StackMap) bool) (StackMap, bool) {
	for i := uint32(0); i < l.info.NumberOfStackMaps(); i++ {
		sm := l.info.StackMapAt(i, &l.enc)
		if match(sm) {
			return sm, true
		}
	}
	return StackMap{}, false
}

// LocationsAt returns the location of every source register at stack map
// index, one slot per register; dead registers report KindNone. The decoded
// slice is cached and must not be modified by the caller.
func (l *Lookup) LocationsAt(index uint32) []Location {
	if cached, ok := l.locations.Get(index); ok {
		return cached
	}
	locations := make([]Location, l.numRegisters)
	sm := l.info.StackMapAt(index, &l.enc)
	if m, ok := l.info.DexRegisterMapOf(sm, &l.enc, l.numRegisters); ok {
		for reg := uint16(0); reg < l.numRegisters; reg++ {
			locations[reg] = m.LocationOf(reg, l.numRegisters, l.info)
		}
	}
	l.locations.Add(index, locations)
	return locations
}

// hashUint32 is the Murmur3 finalizer, enough mixing for cache bucketing of
// small integer keys.
func hashUint32(x uint32) uint32 {
	x ^= x >> 16
	x *= 0x85ebca6b
	x ^= x >> 13
	x *= 0xc2b2ae35
	x ^= x >> 16
	return x
}
