// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package modules keeps the registry of stateful precompiles by address and
// config key.
package modules

import (
	"bytes"

	"github.com/luxfi/geth/common"

	"github.com/luxfi/flasharb/contract"
)

// Module binds a precompile implementation to its address and config key.
type Module struct {
	// ConfigKey is the key used in json config files to specify this precompile config.
	ConfigKey string
	// Address is the address where the stateful precompile is accessible.
	Address common.Address
	// Contract is the precompile entry point.
	Contract contract.StatefulPrecompiledContract
	// Configurator applies the precompile config on activation.
	Configurator contract.Configurator
}

type moduleArray []Module

func (u moduleArray) Len() int {
	return len(u)
}

func (u moduleArray) Swap(i, j int) {
	u[i], u[j] = u[j], u[i]
}

func (u moduleArray) Less(i, j int) bool {
	return bytes.Compare(u[i].Address.Bytes(), u[j].Address.Bytes()) < 0
}
