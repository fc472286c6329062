// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package modules

import (
	"testing"

	"github.com/luxfi/geth/common"
	"github.com/stretchr/testify/require"
)

func withCleanRegistry(t *testing.T) {
	t.Helper()
	saved := registeredModules
	registeredModules = make([]Module, 0)
	t.Cleanup(func() { registeredModules = saved })
}

func TestReservedAddress(t *testing.T) {
	tests := []struct {
		name     string
		addr     common.Address
		expected bool
	}{
		{"range start", common.HexToAddress("0x0000000000000000000000000000000000009000"), true},
		{"flash arbitrage", common.HexToAddress("0x0000000000000000000000000000000000009015"), true},
		{"range end", common.HexToAddress("0x0000000000000000000000000000000000009fff"), true},
		{"below range", common.HexToAddress("0x0000000000000000000000000000000000008fff"), false},
		{"above range", common.HexToAddress("0x000000000000000000000000000000000000a000"), false},
		{"zero", common.Address{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.expected, ReservedAddress(tt.addr))
		})
	}
}

func TestRegisterModule(t *testing.T) {
	withCleanRegistry(t)

	high := Module{ConfigKey: "high", Address: common.HexToAddress("0x0000000000000000000000000000000000009020")}
	low := Module{ConfigKey: "low", Address: common.HexToAddress("0x0000000000000000000000000000000000009010")}

	require.NoError(t, RegisterModule(high))
	require.NoError(t, RegisterModule(low))

	// Iteration order follows address, not registration order
	mods := RegisteredModules()
	require.Len(t, mods, 2)
	require.Equal(t, "low", mods[0].ConfigKey)
	require.Equal(t, "high", mods[1].ConfigKey)

	got, ok := GetPrecompileModule("high")
	require.True(t, ok)
	require.Equal(t, high.Address, got.Address)

	got, ok = GetPrecompileModuleByAddress(low.Address)
	require.True(t, ok)
	require.Equal(t, "low", got.ConfigKey)

	_, ok = GetPrecompileModule("missing")
	require.False(t, ok)
}

func TestRegisterModule_Rejects(t *testing.T) {
	withCleanRegistry(t)

	base := Module{ConfigKey: "base", Address: common.HexToAddress("0x0000000000000000000000000000000000009010")}
	require.NoError(t, RegisterModule(base))

	require.ErrorContains(t, RegisterModule(Module{ConfigKey: "base", Address: common.HexToAddress("0x0000000000000000000000000000000000009011")}), "already used")
	require.ErrorContains(t, RegisterModule(Module{ConfigKey: "other", Address: base.Address}), "already used")
	require.ErrorContains(t, RegisterModule(Module{ConfigKey: "outside", Address: common.HexToAddress("0x0000000000000000000000000000000000000042")}), "not in a reserved range")
	require.ErrorContains(t, RegisterModule(Module{ConfigKey: "hole", Address: BlackholeAddr}), "blackhole")
}
