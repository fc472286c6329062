// Copyright (C) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package tiered is the fee-tiered pool venue. A pair may have one pool per
// fee tier and a swap names the tier it trades against. Pools hold
// full-range liquidity, so pricing is constant product at the tier's fee.
package tiered

import (
	"fmt"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"

	"github.com/luxfi/flasharb/ledger"
	"github.com/luxfi/flasharb/venue"
)

// Venue swaps against tiered pools created by one factory.
type Venue struct {
	factory common.Address
}

// New returns the tiered venue of factory.
func New(factory common.Address) *Venue {
	return &Venue{factory: factory}
}

// PoolAddress is the address holding the reserves of the (a, b) pool at tier.
func (v *Venue) PoolAddress(a, b common.Address, tier uint32) common.Address {
	return venue.PoolAddress(v.factory, a, b, tier)
}

func (*Venue) RequiresFeeTier() bool {
	return true
}

// QuoteAndSwap sells amountIn of tokenIn held by trader for tokenOut in the
// pool at feeTier.
func (v *Venue) QuoteAndSwap(
	l ledger.Ledger,
	trader common.Address,
	tokenIn common.Address,
	tokenOut common.Address,
	amountIn *uint256.Int,
	feeTier uint32,
) (*uint256.Int, error) {
	if !venue.ValidFeeTier(feeTier) {
		return nil, fmt.Errorf("%w: %d", venue.ErrUnsupportedFeeTier, feeTier)
	}
	pool := v.PoolAddress(tokenIn, tokenOut, feeTier)
	return venue.Swap(l, pool, trader, tokenIn, tokenOut, amountIn, uint64(feeTier))
}

// Quote returns what QuoteAndSwap would pay without moving balances.
func (v *Venue) Quote(l ledger.Ledger, tokenIn, tokenOut common.Address, amountIn *uint256.Int, feeTier uint32) (*uint256.Int, error) {
	if !venue.ValidFeeTier(feeTier) {
		return nil, fmt.Errorf("%w: %d", venue.ErrUnsupportedFeeTier, feeTier)
	}
	pool := v.PoolAddress(tokenIn, tokenOut, feeTier)
	return venue.GetAmountOut(amountIn, l.BalanceOf(tokenIn, pool), l.BalanceOf(tokenOut, pool), uint64(feeTier))
}
