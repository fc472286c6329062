// Copyright (C) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package flash

import (
	"fmt"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	log "github.com/luxfi/log"

	"github.com/luxfi/flasharb/ledger"
)

// SwapExecutor runs single hops on behalf of a custody account.
type SwapExecutor struct {
	custody common.Address
	log     log.Logger
}

// NewSwapExecutor returns an executor trading from custody.
func NewSwapExecutor(custody common.Address, logger log.Logger) *SwapExecutor {
	return &SwapExecutor{custody: custody, log: logger}
}

// Swap sells amountIn of assetIn for assetOut on v. The returned amount is
// the increase of the custody balance of assetOut, whatever v reports.
func (x *SwapExecutor) Swap(
	l ledger.Ledger,
	v Venue,
	assetIn common.Address,
	assetOut common.Address,
	amountIn *uint256.Int,
	feeTier uint32,
) (*uint256.Int, error) {
	if amountIn == nil || amountIn.IsZero() {
		return nil, fmt.Errorf("%w: zero input", ErrSwapFailed)
	}
	tier := uint32(0)
	if v.RequiresFeeTier() {
		tier = feeTier
	}

	before := l.BalanceOf(assetOut, x.custody)
	reported, err := v.QuoteAndSwap(l, x.custody, assetIn, assetOut, amountIn, tier)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSwapFailed, err)
	}
	after := l.BalanceOf(assetOut, x.custody)

	if after.Lt(before) {
		return nil, fmt.Errorf("%w: %s balance fell from %s to %s", ErrSwapFailed, assetOut.Hex(), before, after)
	}
	received := new(uint256.Int).Sub(after, before)
	if received.IsZero() {
		return nil, fmt.Errorf("%w: no %s delivered for %s %s", ErrSwapFailed, assetOut.Hex(), amountIn, assetIn.Hex())
	}
	if reported == nil || !reported.Eq(received) {
		x.log.Warn("venue misreported swap output",
			"assetOut", assetOut,
			"reported", reported,
			"received", received,
		)
	}
	return received, nil
}
