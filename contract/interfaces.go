// Copyright (C) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package contract defines the host interfaces a stateful precompile runs
// against: the state database, the block context and the precompile entry point.
package contract

import (
	"math/big"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/core/tracing"
	"github.com/luxfi/geth/core/types"

	"github.com/luxfi/flasharb/precompileconfig"
)

// StatefulPrecompiledContract is the entry point the EVM calls for a precompile address.
type StatefulPrecompiledContract interface {
	Run(
		accessibleState AccessibleState,
		caller common.Address,
		addr common.Address,
		input []byte,
		suppliedGas uint64,
		readOnly bool,
	) (ret []byte, remainingGas uint64, err error)
}

// StateDB is the subset of the EVM state a precompile may read and write.
// Every mutation is journaled by the host so that RevertToSnapshot undoes it.
type StateDB interface {
	GetState(common.Address, common.Hash) common.Hash
	SetState(common.Address, common.Hash, common.Hash) common.Hash

	GetBalance(common.Address) *uint256.Int
	AddBalance(common.Address, *uint256.Int, tracing.BalanceChangeReason) uint256.Int
	SubBalance(common.Address, *uint256.Int, tracing.BalanceChangeReason) uint256.Int

	CreateAccount(common.Address)
	Exist(common.Address) bool

	AddLog(*types.Log)
	Logs() []*types.Log

	TxHash() common.Hash

	Snapshot() int
	RevertToSnapshot(int)
}

// AccessibleState gives a running precompile access to state and block data.
type AccessibleState interface {
	GetStateDB() StateDB
	GetBlockContext() BlockContext
}

// BlockContext describes the block the current transaction executes in.
type BlockContext interface {
	Number() *big.Int
	Timestamp() uint64
}

// ConfigurationBlockContext is the block data available while a precompile
// config is being applied.
type ConfigurationBlockContext interface {
	Timestamp() uint64
}

// Configurator builds and applies a precompile's config.
type Configurator interface {
	MakeConfig() precompileconfig.Config
	Configure(
		chainConfig precompileconfig.ChainConfig,
		cfg precompileconfig.Config,
		state StateDB,
		blockContext ConfigurationBlockContext,
	) error
}
