// Copyright (C) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package lender issues uncollateralized flash loans out of a pool's own
// ledger balances. The borrower gets the principal, the pool calls back
// exactly once, and the loan only stands if the pool ends up holding at least
// its starting balance plus the fee.
package lender

import (
	"errors"
	"fmt"
	"sync"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	log "github.com/luxfi/log"
	"github.com/luxfi/log/level"

	"github.com/luxfi/flasharb/contract"
	"github.com/luxfi/flasharb/ledger"
	"github.com/luxfi/flasharb/venue"
)

var (
	ErrReentrant             = errors.New("reentrancy detected")
	ErrZeroAmount            = errors.New("zero loan amount")
	ErrUnsupportedAsset      = errors.New("asset not held by pool")
	ErrInsufficientLiquidity = errors.New("insufficient pool liquidity")
	ErrFlashLoanNotRepaid    = errors.New("flash loan not repaid")
	ErrCallbackFailed        = errors.New("flash callback failed")
)

// Borrower receives the principal of a flash loan. caller is the address of
// the pool that issued it.
type Borrower interface {
	OnLoanReceived(
		state contract.StateDB,
		caller common.Address,
		principal *uint256.Int,
		fee *uint256.Int,
		asset common.Address,
		data []byte,
	) error
}

// Config describes a lending pool.
type Config struct {
	Factory common.Address
	Asset0  common.Address
	Asset1  common.Address
	FeeTier uint32
	Logger  log.Logger
}

// Pool lends either of its two assets.
type Pool struct {
	// mu protects locked
	mu sync.Mutex
	// locked prevents a callback from borrowing again
	locked bool

	address common.Address
	asset0  common.Address
	asset1  common.Address
	feeTier uint32

	log log.Logger
}

// NewPool creates the pool for cfg. Its address is derived from the factory,
// the sorted pair and the fee tier.
func NewPool(cfg Config) (*Pool, error) {
	if cfg.Asset0 == cfg.Asset1 {
		return nil, venue.ErrIdenticalAssets
	}
	if !venue.ValidFeeTier(cfg.FeeTier) {
		return nil, fmt.Errorf("%w: %d", venue.ErrUnsupportedFeeTier, cfg.FeeTier)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewTestLogger(level.Info)
	}
	asset0, asset1 := venue.SortAssets(cfg.Asset0, cfg.Asset1)
	return &Pool{
		address: venue.PoolAddress(cfg.Factory, asset0, asset1, cfg.FeeTier),
		asset0:  asset0,
		asset1:  asset1,
		feeTier: cfg.FeeTier,
		log:     logger,
	}, nil
}

// Address is where the pool holds its liquidity.
func (p *Pool) Address() common.Address {
	return p.address
}

// FeeTier is the pool fee in hundredths of a bip.
func (p *Pool) FeeTier() uint32 {
	return p.feeTier
}

// Fee is the flash fee owed on amount, rounded up.
func (p *Pool) Fee(amount *uint256.Int) *uint256.Int {
	// fee = ceil(amount * tier / 1_000_000)
	if amount.IsZero() {
		return new(uint256.Int)
	}
	tier := uint256.NewInt(uint64(p.feeTier))
	denominator := uint256.NewInt(venue.FeeDenominator)
	fee, _ := new(uint256.Int).MulDivOverflow(amount, tier, denominator)
	if !new(uint256.Int).MulMod(amount, tier, denominator).IsZero() {
		fee.AddUint64(fee, 1)
	}
	return fee
}

// Flash lends amount of asset to borrower, invokes callback and verifies it
// was repaid with the fee. On any error the caller must discard the state
// changes; the pool does not undo its own transfer.
func (p *Pool) Flash(
	state contract.StateDB,
	borrower common.Address,
	callback Borrower,
	asset common.Address,
	amount *uint256.Int,
	data []byte,
) (*uint256.Int, error) {
	p.mu.Lock()
	if p.locked {
		p.mu.Unlock()
		return nil, ErrReentrant
	}
	p.locked = true
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.locked = false
		p.mu.Unlock()
	}()

	if asset != p.asset0 && asset != p.asset1 {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedAsset, asset.Hex())
	}
	if amount == nil || amount.IsZero() {
		return nil, ErrZeroAmount
	}

	l := ledger.New(state)
	before := l.BalanceOf(asset, p.address)
	if before.Lt(amount) {
		return nil, fmt.Errorf("%w: have %s, want %s", ErrInsufficientLiquidity, before, amount)
	}
	fee := p.Fee(amount)
	owed, overflow := new(uint256.Int).AddOverflow(before, fee)
	if overflow {
		return nil, fmt.Errorf("%w: fee overflows pool balance", ErrInsufficientLiquidity)
	}

	if err := l.Transfer(asset, p.address, borrower, amount); err != nil {
		return nil, fmt.Errorf("send principal: %w", err)
	}

	p.log.Debug("flash loan issued",
		"pool", p.address,
		"borrower", borrower,
		"asset", asset,
		"amount", amount,
		"fee", fee,
	)

	if err := callback.OnLoanReceived(state, p.address, amount.Clone(), fee.Clone(), asset, data); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCallbackFailed, err)
	}

	after := l.BalanceOf(asset, p.address)
	if after.Lt(owed) {
		return nil, fmt.Errorf("%w: balance %s, owed %s", ErrFlashLoanNotRepaid, after, owed)
	}
	return fee, nil
}
