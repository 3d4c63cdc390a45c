// Copyright The stackmap Authors
// SPDX-License-Identifier: Apache-2.0

package codeinfo

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The dump format is informational only; the tests pin the surfaced
// information, not the exact layout.
func TestDump(t *testing.T) {
	b := NewBuilder(2)
	require.NoError(t, b.AddSafepoint(Safepoint{
		DexPc:          10,
		NativePcOffset: 20,
		RegisterMask:   0x3,
		StackMask:      []bool{true, false, true},
		Registers: []LiveRegister{
			{Register: 0, Location: Location{KindConstant, 0}},
		},
		InlineFrames: []InlineFrame{
			{DexPc: 4, MethodIndex: 0x99, NumRegisters: 1},
		},
	}))
	data, err := b.Encode()
	require.NoError(t, err)

	var sb strings.Builder
	NewCodeInfo(data).Dump(&sb, 0x1000, 2, true)
	out := sb.String()

	assert.Contains(t, out, "stack_maps=1")
	assert.Contains(t, out, "entry 0: constant (0)")
	assert.Contains(t, out, "native_pc=0x1014")
	assert.Contains(t, out, "dex_pc=0xa")
	assert.Contains(t, out, "register_mask=0x3")
	assert.Contains(t, out, "stack_mask=0b101")
	assert.Contains(t, out, "v0: constant (0) [entry 0]")
	assert.Contains(t, out, "InlineInfo (depth=1)")
	assert.Contains(t, out, "method_index=0x99")
}

func TestDumpHeaderOnly(t *testing.T) {
	b := NewBuilder(1)
	require.NoError(t, b.AddSafepoint(Safepoint{DexPc: 1, NativePcOffset: 2}))
	data, err := b.Encode()
	require.NoError(t, err)

	var sb strings.Builder
	NewCodeInfo(data).Dump(&sb, 0, 1, false)
	out := sb.String()

	assert.Contains(t, out, "LocationCatalog (entries=0")
	assert.NotContains(t, out, "StackMap 0")
}
