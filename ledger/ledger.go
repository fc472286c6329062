// Copyright (C) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package ledger moves asset balances on the EVM state. The native asset lives
// in account balances; every other asset keeps ERC20-style balances in its
// own contract storage.
package ledger

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"
	"github.com/luxfi/crypto"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/core/tracing"
	"github.com/luxfi/geth/core/types"
	"github.com/zeebo/blake3"

	"github.com/luxfi/flasharb/contract"
)

// Native is the asset id of the chain's native coin.
var Native = common.Address{}

var balancePrefix = []byte("bal")

// TransferTopic is the topic of the Transfer(address,address,uint256) log.
var TransferTopic = common.Hash(crypto.Keccak256Hash([]byte("Transfer(address,address,uint256)")))

var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrBalanceOverflow     = errors.New("balance overflow")
	ErrNilAmount           = errors.New("nil amount")
)

// Ledger reads and moves asset balances.
type Ledger interface {
	BalanceOf(asset common.Address, holder common.Address) *uint256.Int
	Transfer(asset common.Address, from common.Address, to common.Address, amount *uint256.Int) error
}

var _ Ledger = (*StateLedger)(nil)

// StateLedger is a Ledger over a StateDB. All mutations go through the
// StateDB so the host can roll them back.
type StateLedger struct {
	state contract.StateDB
}

// New returns a ledger over state.
func New(state contract.StateDB) *StateLedger {
	return &StateLedger{state: state}
}

// BalanceSlot is the storage slot of holder's balance inside the asset contract.
func BalanceSlot(holder common.Address) common.Hash {
	h := blake3.New()
	h.Write(balancePrefix)
	h.Write(holder.Bytes())
	var slot common.Hash
	h.Digest().Read(slot[:])
	return slot
}

func (l *StateLedger) BalanceOf(asset common.Address, holder common.Address) *uint256.Int {
	if asset == Native {
		return l.state.GetBalance(holder)
	}
	v := l.state.GetState(asset, BalanceSlot(holder))
	return new(uint256.Int).SetBytes32(v[:])
}

// Transfer moves amount of asset from one holder to another and emits a
// Transfer log. A zero amount is a no-op.
func (l *StateLedger) Transfer(asset common.Address, from common.Address, to common.Address, amount *uint256.Int) error {
	if amount == nil {
		return ErrNilAmount
	}
	if amount.IsZero() {
		return nil
	}
	have := l.BalanceOf(asset, from)
	if have.Lt(amount) {
		return fmt.Errorf("%w: %s holds %s of %s, needs %s", ErrInsufficientBalance, from.Hex(), have, asset.Hex(), amount)
	}
	if from != to {
		if _, overflow := new(uint256.Int).AddOverflow(l.BalanceOf(asset, to), amount); overflow {
			return fmt.Errorf("%w: %s of %s", ErrBalanceOverflow, to.Hex(), asset.Hex())
		}
	}

	if asset == Native {
		l.state.SubBalance(from, amount, tracing.BalanceChangeTransfer)
		l.state.AddBalance(to, amount, tracing.BalanceChangeTransfer)
	} else {
		l.setBalance(asset, from, new(uint256.Int).Sub(have, amount))
		l.setBalance(asset, to, new(uint256.Int).Add(l.BalanceOf(asset, to), amount))
	}

	l.emitTransfer(asset, from, to, amount)
	return nil
}

// Mint credits amount of asset to holder. Used to seed state.
func (l *StateLedger) Mint(asset common.Address, to common.Address, amount *uint256.Int) error {
	if amount == nil {
		return ErrNilAmount
	}
	next, overflow := new(uint256.Int).AddOverflow(l.BalanceOf(asset, to), amount)
	if overflow {
		return fmt.Errorf("%w: %s of %s", ErrBalanceOverflow, to.Hex(), asset.Hex())
	}
	if asset == Native {
		l.state.AddBalance(to, amount, tracing.BalanceChangeUnspecified)
	} else {
		l.setBalance(asset, to, next)
	}
	l.emitTransfer(asset, common.Address{}, to, amount)
	return nil
}

func (l *StateLedger) setBalance(asset common.Address, holder common.Address, value *uint256.Int) {
	l.state.SetState(asset, BalanceSlot(holder), common.Hash(value.Bytes32()))
}

func (l *StateLedger) emitTransfer(asset common.Address, from common.Address, to common.Address, amount *uint256.Int) {
	data := amount.Bytes32()
	l.state.AddLog(&types.Log{
		Address: asset,
		Topics: []common.Hash{
			TransferTopic,
			common.BytesToHash(from.Bytes()),
			common.BytesToHash(to.Bytes()),
		},
		Data: data[:],
	})
}
