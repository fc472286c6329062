// Copyright (C) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package venue holds the pool math and addressing shared by the swap venue
// adapters in venue/spot and venue/tiered.
package venue

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/zeebo/blake3"

	"github.com/luxfi/flasharb/ledger"
)

// Fee tiers in hundredths of a bip (1e-6)
const (
	Fee001 uint32 = 100   // 0.01% - stablecoins
	Fee005 uint32 = 500   // 0.05% - stable pairs
	Fee025 uint32 = 2500  // 0.25% - standard
	Fee100 uint32 = 10000 // 1.00% - exotic pairs

	FeeDenominator uint64 = 1_000_000
)

var (
	ErrIdenticalAssets       = errors.New("identical assets")
	ErrZeroInput             = errors.New("zero input amount")
	ErrPoolNotFound          = errors.New("pool not found")
	ErrInsufficientLiquidity = errors.New("insufficient liquidity")
	ErrUnsupportedFeeTier    = errors.New("unsupported fee tier")
	ErrOverflow              = errors.New("amount overflow")
)

// FeeTiers lists the tiers a tiered pool can be created at.
func FeeTiers() []uint32 {
	return []uint32{Fee001, Fee005, Fee025, Fee100}
}

// ValidFeeTier reports whether tier is one of FeeTiers.
func ValidFeeTier(tier uint32) bool {
	switch tier {
	case Fee001, Fee005, Fee025, Fee100:
		return true
	default:
		return false
	}
}

// SortAssets orders a pair by address.
func SortAssets(a, b common.Address) (common.Address, common.Address) {
	if bytes.Compare(a.Bytes(), b.Bytes()) < 0 {
		return a, b
	}
	return b, a
}

// PoolAddress derives the address of the pool for a pair under factory.
// The pair is sorted first so both directions resolve to the same pool.
func PoolAddress(factory common.Address, a, b common.Address, tier uint32) common.Address {
	token0, token1 := SortAssets(a, b)
	var tierBytes [4]byte
	binary.BigEndian.PutUint32(tierBytes[:], tier)

	h := blake3.New()
	h.Write(factory.Bytes())
	h.Write(token0.Bytes())
	h.Write(token1.Bytes())
	h.Write(tierBytes[:])
	var digest [32]byte
	h.Digest().Read(digest[:])
	return common.BytesToAddress(digest[12:])
}

// GetAmountOut returns the constant-product output for amountIn after a
// fee of fee/FeeDenominator is taken from the input.
//
//	out = in·(D−f)·rOut / (rIn·D + in·(D−f))
func GetAmountOut(amountIn, reserveIn, reserveOut *uint256.Int, fee uint64) (*uint256.Int, error) {
	if amountIn.IsZero() {
		return nil, ErrZeroInput
	}
	if reserveIn.IsZero() || reserveOut.IsZero() {
		return nil, ErrInsufficientLiquidity
	}
	if fee >= FeeDenominator {
		return nil, ErrUnsupportedFeeTier
	}

	inWithFee, overflow := new(uint256.Int).MulOverflow(amountIn, uint256.NewInt(FeeDenominator-fee))
	if overflow {
		return nil, ErrOverflow
	}
	numerator, overflow := new(uint256.Int).MulOverflow(inWithFee, reserveOut)
	if overflow {
		return nil, ErrOverflow
	}
	denominator, overflow := new(uint256.Int).MulOverflow(reserveIn, uint256.NewInt(FeeDenominator))
	if overflow {
		return nil, ErrOverflow
	}
	if _, overflow = denominator.AddOverflow(denominator, inWithFee); overflow {
		return nil, ErrOverflow
	}
	return numerator.Div(numerator, denominator), nil
}

// Swap sells amountIn of tokenIn from trader into the pool at pool and pays
// the constant-product output of tokenOut back to trader. Reserves are the
// pool's own ledger balances.
func Swap(
	l ledger.Ledger,
	pool common.Address,
	trader common.Address,
	tokenIn common.Address,
	tokenOut common.Address,
	amountIn *uint256.Int,
	fee uint64,
) (*uint256.Int, error) {
	if tokenIn == tokenOut {
		return nil, ErrIdenticalAssets
	}
	reserveIn := l.BalanceOf(tokenIn, pool)
	reserveOut := l.BalanceOf(tokenOut, pool)
	if reserveIn.IsZero() && reserveOut.IsZero() {
		return nil, fmt.Errorf("%w: %s", ErrPoolNotFound, pool.Hex())
	}

	amountOut, err := GetAmountOut(amountIn, reserveIn, reserveOut, fee)
	if err != nil {
		return nil, err
	}
	if amountOut.IsZero() {
		return nil, fmt.Errorf("%w: %s in yields nothing", ErrInsufficientLiquidity, amountIn)
	}

	if err := l.Transfer(tokenIn, trader, pool, amountIn); err != nil {
		return nil, fmt.Errorf("pay in: %w", err)
	}
	if err := l.Transfer(tokenOut, pool, trader, amountOut); err != nil {
		return nil, fmt.Errorf("pay out: %w", err)
	}
	return amountOut, nil
}
