// Copyright (C) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package host

import (
	"math/big"

	"github.com/luxfi/geth/common"

	"github.com/luxfi/flasharb/contract"
)

var (
	_ contract.AccessibleState = (*Runtime)(nil)
	_ contract.BlockContext    = (*Block)(nil)
)

// Block is a fixed block context.
type Block struct {
	Height *big.Int
	Time   uint64
}

func (b *Block) Number() *big.Int {
	if b.Height == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(b.Height)
}

func (b *Block) Timestamp() uint64 {
	return b.Time
}

// ChainConfig is the chain parameter set handed to precompile configurators.
type ChainConfig struct {
	ID *big.Int
}

func (c *ChainConfig) ChainID() *big.Int {
	return c.ID
}

// Runtime executes calls as indivisible units of work: every effect of a call
// that returns an error is rolled back before the error reaches the caller.
type Runtime struct {
	state *StateDB
	block *Block
}

// NewRuntime creates a runtime over state executing in block.
func NewRuntime(state *StateDB, block *Block) *Runtime {
	if block == nil {
		block = &Block{Height: big.NewInt(1)}
	}
	return &Runtime{state: state, block: block}
}

func (r *Runtime) GetStateDB() contract.StateDB {
	return r.state
}

func (r *Runtime) GetBlockContext() contract.BlockContext {
	return r.block
}

// State returns the concrete state for setup and inspection.
func (r *Runtime) State() *StateDB {
	return r.state
}

// Call runs a precompile the way the EVM does: snapshot, run, and revert the
// snapshot when the precompile fails.
func (r *Runtime) Call(
	precompile contract.StatefulPrecompiledContract,
	caller common.Address,
	addr common.Address,
	input []byte,
	suppliedGas uint64,
	readOnly bool,
) ([]byte, uint64, error) {
	snapshot := r.state.Snapshot()
	ret, remainingGas, err := precompile.Run(r, caller, addr, input, suppliedGas, readOnly)
	if err != nil {
		r.state.RevertToSnapshot(snapshot)
		return nil, remainingGas, err
	}
	return ret, remainingGas, nil
}

// Atomic runs fn as one unit of work, reverting all of its effects when it
// returns an error.
func (r *Runtime) Atomic(fn func(state contract.StateDB) error) error {
	snapshot := r.state.Snapshot()
	if err := fn(r.state); err != nil {
		r.state.RevertToSnapshot(snapshot)
		return err
	}
	return nil
}
