// Copyright (C) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package lender

import (
	"errors"
	"testing"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/flasharb/contract"
	"github.com/luxfi/flasharb/host"
	"github.com/luxfi/flasharb/ledger"
	"github.com/luxfi/flasharb/venue"
)

var (
	wbnb     = common.HexToAddress("0x00000000000000000000000000000000000000b1")
	busd     = common.HexToAddress("0x00000000000000000000000000000000000000b2")
	cake     = common.HexToAddress("0x00000000000000000000000000000000000000c1")
	factory  = common.HexToAddress("0x00000000000000000000000000000000000000f3")
	borrower = common.HexToAddress("0x000000000000000000000000000000000000b0b0")
)

// borrowerFunc adapts a function to the Borrower interface.
type borrowerFunc func(state contract.StateDB, caller common.Address, principal, fee *uint256.Int, asset common.Address, data []byte) error

func (f borrowerFunc) OnLoanReceived(state contract.StateDB, caller common.Address, principal, fee *uint256.Int, asset common.Address, data []byte) error {
	return f(state, caller, principal, fee, asset, data)
}

func repay(state contract.StateDB, caller common.Address, principal, fee *uint256.Int, asset common.Address, _ []byte) error {
	owed := new(uint256.Int).Add(principal, fee)
	return ledger.New(state).Transfer(asset, borrower, caller, owed)
}

func newFundedPool(t *testing.T, tier uint32) (*Pool, *host.StateDB) {
	t.Helper()
	pool, err := NewPool(Config{Factory: factory, Asset0: wbnb, Asset1: busd, FeeTier: tier})
	require.NoError(t, err)
	state := host.NewStateDB(nil)
	l := ledger.New(state)
	require.NoError(t, l.Mint(busd, pool.Address(), uint256.NewInt(1_000_000)))
	require.NoError(t, l.Mint(busd, borrower, uint256.NewInt(1_000)))
	return pool, state
}

func TestNewPool(t *testing.T) {
	_, err := NewPool(Config{Asset0: wbnb, Asset1: wbnb, FeeTier: venue.Fee005})
	require.ErrorIs(t, err, venue.ErrIdenticalAssets)

	_, err = NewPool(Config{Asset0: wbnb, Asset1: busd, FeeTier: 3000})
	require.ErrorIs(t, err, venue.ErrUnsupportedFeeTier)

	a, err := NewPool(Config{Factory: factory, Asset0: wbnb, Asset1: busd, FeeTier: venue.Fee005})
	require.NoError(t, err)
	b, err := NewPool(Config{Factory: factory, Asset0: busd, Asset1: wbnb, FeeTier: venue.Fee005})
	require.NoError(t, err)
	require.Equal(t, a.Address(), b.Address())
}

func TestFee(t *testing.T) {
	pool, err := NewPool(Config{Asset0: wbnb, Asset1: busd, FeeTier: venue.Fee005})
	require.NoError(t, err)

	tests := []struct {
		amount   uint64
		expected uint64
	}{
		{0, 0},
		{1, 1},
		{2000, 1},
		{2001, 2},
		{1_000_000, 500},
	}
	for _, tt := range tests {
		require.Equal(t, tt.expected, pool.Fee(uint256.NewInt(tt.amount)).Uint64(), "amount %d", tt.amount)
	}

	max := new(uint256.Int).SetAllOne()
	require.False(t, pool.Fee(max).IsZero())
}

func TestFlash_Repaid(t *testing.T) {
	pool, state := newFundedPool(t, venue.Fee005)
	l := ledger.New(state)

	var gotCaller common.Address
	var gotData []byte
	fee, err := pool.Flash(state, borrower, borrowerFunc(func(s contract.StateDB, caller common.Address, principal, fee *uint256.Int, asset common.Address, data []byte) error {
		gotCaller, gotData = caller, data
		require.Equal(t, uint64(1_000+10_000), l.BalanceOf(busd, borrower).Uint64())
		return repay(s, caller, principal, fee, asset, data)
	}), busd, uint256.NewInt(10_000), []byte("payload"))
	require.NoError(t, err)
	require.Equal(t, uint64(5), fee.Uint64())
	require.Equal(t, pool.Address(), gotCaller)
	require.Equal(t, []byte("payload"), gotData)
	require.Equal(t, uint64(1_000_005), l.BalanceOf(busd, pool.Address()).Uint64())
	require.Equal(t, uint64(995), l.BalanceOf(busd, borrower).Uint64())
}

func TestFlash_Rejects(t *testing.T) {
	keep := borrowerFunc(func(contract.StateDB, common.Address, *uint256.Int, *uint256.Int, common.Address, []byte) error {
		return nil
	})
	boom := errors.New("boom")

	tests := []struct {
		name     string
		asset    common.Address
		amount   *uint256.Int
		callback Borrower
		err      error
	}{
		{"unsupported asset", cake, uint256.NewInt(1), keep, ErrUnsupportedAsset},
		{"zero amount", busd, new(uint256.Int), keep, ErrZeroAmount},
		{"more than pool holds", busd, uint256.NewInt(1_000_001), keep, ErrInsufficientLiquidity},
		{"not repaid", busd, uint256.NewInt(100), keep, ErrFlashLoanNotRepaid},
		{"callback error", busd, uint256.NewInt(100), borrowerFunc(func(contract.StateDB, common.Address, *uint256.Int, *uint256.Int, common.Address, []byte) error {
			return boom
		}), boom},
		{"fee withheld", busd, uint256.NewInt(100), borrowerFunc(func(s contract.StateDB, caller common.Address, principal, _ *uint256.Int, asset common.Address, _ []byte) error {
			return ledger.New(s).Transfer(asset, borrower, caller, principal)
		}), ErrFlashLoanNotRepaid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pool, state := newFundedPool(t, venue.Fee005)
			_, err := pool.Flash(state, borrower, tt.callback, tt.asset, tt.amount, nil)
			require.ErrorIs(t, err, tt.err)
		})
	}
}

func TestFlash_Reentrant(t *testing.T) {
	pool, state := newFundedPool(t, venue.Fee005)

	var inner error
	_, err := pool.Flash(state, borrower, borrowerFunc(func(s contract.StateDB, caller common.Address, principal, fee *uint256.Int, asset common.Address, data []byte) error {
		_, inner = pool.Flash(s, borrower, borrowerFunc(repay), busd, uint256.NewInt(1), nil)
		return repay(s, caller, principal, fee, asset, data)
	}), busd, uint256.NewInt(100), nil)
	require.NoError(t, err)
	require.ErrorIs(t, inner, ErrReentrant)

	// The lock is released once the outer loan ends
	_, err = pool.Flash(state, borrower, borrowerFunc(repay), busd, uint256.NewInt(100), nil)
	require.NoError(t, err)
}
