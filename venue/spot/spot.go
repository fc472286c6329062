// Copyright (C) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package spot is the constant-product spot pool venue. Every pair has a
// single pool with a fixed 0.25% fee; the fee tier of a request is ignored.
package spot

import (
	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"

	"github.com/luxfi/flasharb/ledger"
	"github.com/luxfi/flasharb/venue"
)

// Fee is the pool fee in hundredths of a bip.
const Fee uint64 = 2500

// Venue swaps against spot pools created by one factory.
type Venue struct {
	factory common.Address
}

// New returns the spot venue of factory.
func New(factory common.Address) *Venue {
	return &Venue{factory: factory}
}

// PairAddress is the address holding the reserves of the (a, b) pool.
func (v *Venue) PairAddress(a, b common.Address) common.Address {
	return venue.PoolAddress(v.factory, a, b, 0)
}

func (*Venue) RequiresFeeTier() bool {
	return false
}

// QuoteAndSwap sells amountIn of tokenIn held by trader for tokenOut.
func (v *Venue) QuoteAndSwap(
	l ledger.Ledger,
	trader common.Address,
	tokenIn common.Address,
	tokenOut common.Address,
	amountIn *uint256.Int,
	_ uint32,
) (*uint256.Int, error) {
	return venue.Swap(l, v.PairAddress(tokenIn, tokenOut), trader, tokenIn, tokenOut, amountIn, Fee)
}

// Quote returns what QuoteAndSwap would pay without moving balances.
func (v *Venue) Quote(l ledger.Ledger, tokenIn, tokenOut common.Address, amountIn *uint256.Int) (*uint256.Int, error) {
	pair := v.PairAddress(tokenIn, tokenOut)
	return venue.GetAmountOut(amountIn, l.BalanceOf(tokenIn, pair), l.BalanceOf(tokenOut, pair), Fee)
}
