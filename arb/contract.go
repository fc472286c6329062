// Copyright (C) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package arb implements the flash arbitrage precompile (LP-9015). A call to
// flashloanRequest borrows from the configured lending pool, routes the
// principal through spot and tiered pools, repays the loan and keeps the
// residual at the precompile address. A request that cannot repay fails and
// the EVM reverts everything it did.
package arb

import (
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	log "github.com/luxfi/log"
	"github.com/luxfi/log/level"

	"github.com/luxfi/flasharb/contract"
	"github.com/luxfi/flasharb/flash"
	"github.com/luxfi/flasharb/lender"
	"github.com/luxfi/flasharb/venue/spot"
	"github.com/luxfi/flasharb/venue/tiered"
)

var _ contract.StatefulPrecompiledContract = (*FlashArbContract)(nil)

// Gas costs
const (
	GasFlashloanBase uint64 = 60_000 // Borrow, guard and settlement
	GasPerHop        uint64 = 35_000 // One swap
	GasCallback      uint64 = 5_000
	GasView          uint64 = 200
)

var (
	ErrNotConfigured     = errors.New("flash arbitrage precompile not configured")
	ErrAlreadyConfigured = errors.New("flash arbitrage precompile already configured")
	ErrInvalidInput      = errors.New("invalid input")
	ErrDisabled          = errors.New("flash arbitrage precompile disabled")
	ErrNotActive         = errors.New("flash arbitrage config not yet active")
)

const rawABI = `[
	{
		"type": "function",
		"name": "flashloanRequest",
		"stateMutability": "nonpayable",
		"inputs": [
			{"name": "tokenPath", "type": "address[]"},
			{"name": "startIndex", "type": "uint256"},
			{"name": "amountBorrow", "type": "uint256"},
			{"name": "feeTier", "type": "uint24"},
			{"name": "routing", "type": "uint8[]"}
		],
		"outputs": [
			{"name": "residual", "type": "uint256"},
			{"name": "repayment", "type": "uint256"}
		]
	},
	{
		"type": "function",
		"name": "onLoanReceived",
		"stateMutability": "nonpayable",
		"inputs": [
			{"name": "principal", "type": "uint256"},
			{"name": "fee", "type": "uint256"},
			{"name": "asset", "type": "address"},
			{"name": "data", "type": "bytes"}
		],
		"outputs": []
	},
	{
		"type": "function",
		"name": "referenceAssets",
		"stateMutability": "view",
		"inputs": [],
		"outputs": [
			{"name": "asset0", "type": "address"},
			{"name": "asset1", "type": "address"},
			{"name": "defaultFeeTier", "type": "uint24"}
		]
	},
	{
		"type": "function",
		"name": "lendingPool",
		"stateMutability": "view",
		"inputs": [],
		"outputs": [
			{"name": "pool", "type": "address"}
		]
	}
]`

// FlashArbABI is the calling convention of the precompile.
var FlashArbABI = contract.MustParseABI(rawABI)

// Function selectors
var (
	SelectorFlashloanRequest = mustSelector("flashloanRequest")
	SelectorOnLoanReceived   = mustSelector("onLoanReceived")
	SelectorReferenceAssets  = mustSelector("referenceAssets")
	SelectorLendingPool      = mustSelector("lendingPool")
)

func mustSelector(name string) [contract.SelectorLen]byte {
	selector, err := FlashArbABI.Selector(name)
	if err != nil {
		panic(err)
	}
	return selector
}

// FlashArbContract is the precompile entry point.
type FlashArbContract struct {
	// mu protects the fields below, written once by configure
	mu     sync.RWMutex
	config *Config
	coord  *flash.Coordinator
	pool   *lender.Pool
	spot   *spot.Venue
	tiered *tiered.Venue
	log    log.Logger
}

// NewFlashArbContract returns a configured instance outside the module
// registry, custodying funds at ContractAddress.
func NewFlashArbContract(cfg *Config, logger log.Logger) (*FlashArbContract, error) {
	if err := cfg.Verify(nil); err != nil {
		return nil, err
	}
	c := &FlashArbContract{log: logger}
	if err := c.configure(cfg); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *FlashArbContract) configure(cfg *Config) error {
	if cfg.IsDisabled() {
		return ErrDisabled
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.config != nil {
		if c.config.Equal(cfg) {
			return nil
		}
		return ErrAlreadyConfigured
	}
	if c.log == nil {
		c.log = log.NewTestLogger(level.Info)
	}

	pool, err := lender.NewPool(lender.Config{
		Factory: cfg.LenderFactory,
		Asset0:  cfg.ReferenceAsset0,
		Asset1:  cfg.ReferenceAsset1,
		FeeTier: cfg.DefaultFeeTier,
		Logger:  c.log,
	})
	if err != nil {
		return err
	}
	spotVenue := spot.New(cfg.SpotFactory)
	tieredVenue := tiered.New(cfg.TieredFactory)
	coord, err := flash.NewCoordinator(flash.Config{
		Custody:         ContractAddress,
		Lender:          pool,
		ReferenceAssets: [2]common.Address{cfg.ReferenceAsset0, cfg.ReferenceAsset1},
		DefaultFeeTier:  cfg.DefaultFeeTier,
		Dispatcher:      flash.NewDispatcher(spotVenue, tieredVenue),
		Logger:          c.log,
	})
	if err != nil {
		return err
	}

	copied := *cfg
	c.config = &copied
	c.pool = pool
	c.spot = spotVenue
	c.tiered = tieredVenue
	c.coord = coord
	return nil
}

// LendingPool returns the pool loans are drawn from.
func (c *FlashArbContract) LendingPool() *lender.Pool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.pool
}

// Spot returns the spot venue adapter.
func (c *FlashArbContract) Spot() *spot.Venue {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.spot
}

// Tiered returns the tiered venue adapter.
func (c *FlashArbContract) Tiered() *tiered.Venue {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tiered
}

// Run executes the precompile
func (c *FlashArbContract) Run(
	accessibleState contract.AccessibleState,
	caller common.Address,
	addr common.Address,
	input []byte,
	suppliedGas uint64,
	readOnly bool,
) (ret []byte, remainingGas uint64, err error) {
	c.mu.RLock()
	coord := c.coord
	c.mu.RUnlock()
	if coord == nil {
		return nil, suppliedGas, ErrNotConfigured
	}

	selector, data, err := contract.SplitSelector(input)
	if err != nil {
		return nil, suppliedGas, err
	}

	switch selector {
	case SelectorFlashloanRequest:
		return c.runFlashloanRequest(accessibleState, coord, caller, data, suppliedGas, readOnly)
	case SelectorOnLoanReceived:
		return c.runOnLoanReceived(accessibleState, coord, caller, data, suppliedGas, readOnly)
	case SelectorReferenceAssets:
		return c.runReferenceAssets(suppliedGas)
	case SelectorLendingPool:
		return c.runLendingPool(suppliedGas)
	default:
		return nil, suppliedGas, fmt.Errorf("%w: %x", contract.ErrUnknownSelector, selector)
	}
}

// RequiredGas is the gas a call with input will be charged.
func (c *FlashArbContract) RequiredGas(input []byte) uint64 {
	selector, data, err := contract.SplitSelector(input)
	if err != nil {
		return 0
	}
	switch selector {
	case SelectorFlashloanRequest:
		req, err := unpackFlashloanRequest(data)
		if err != nil {
			return GasFlashloanBase
		}
		return GasFlashloanBase + GasPerHop*uint64(len(req.Routing))
	case SelectorOnLoanReceived:
		return GasCallback
	default:
		return GasView
	}
}

func (c *FlashArbContract) runFlashloanRequest(
	accessibleState contract.AccessibleState,
	coord *flash.Coordinator,
	caller common.Address,
	input []byte,
	suppliedGas uint64,
	readOnly bool,
) ([]byte, uint64, error) {
	if readOnly {
		return nil, suppliedGas, contract.ErrWriteProtection
	}
	remainingGas, err := contract.DeductGas(suppliedGas, GasFlashloanBase)
	if err != nil {
		return nil, 0, err
	}

	req, err := unpackFlashloanRequest(input)
	if err != nil {
		return nil, remainingGas, err
	}
	remainingGas, err = contract.DeductGas(remainingGas, GasPerHop*uint64(len(req.Routing)))
	if err != nil {
		return nil, 0, err
	}

	outcome, err := coord.RequestLoan(accessibleState.GetStateDB(), req)
	if err != nil {
		kind := flash.KindOf(err)
		if kind.Expected() {
			c.log.Info("flashloan request reverted", "caller", caller, "kind", kind, "err", err)
		} else {
			c.log.Error("flashloan request reverted", "caller", caller, "kind", kind, "err", err)
		}
		return nil, remainingGas, err
	}

	ret, err := FlashArbABI.PackOutput("flashloanRequest", outcome.Residual.ToBig(), outcome.Repayment.ToBig())
	if err != nil {
		return nil, remainingGas, err
	}
	c.log.Info("flashloan request settled",
		"caller", caller,
		"block", accessibleState.GetBlockContext().Number(),
		"residual", outcome.Residual,
		"repayment", outcome.Repayment,
	)
	return ret, remainingGas, nil
}

// runOnLoanReceived serves the callback when it arrives as an external call.
// Loans issued by the configured pool call the coordinator directly, so any
// caller reaching this path is rejected by the coordinator.
func (c *FlashArbContract) runOnLoanReceived(
	accessibleState contract.AccessibleState,
	coord *flash.Coordinator,
	caller common.Address,
	input []byte,
	suppliedGas uint64,
	readOnly bool,
) ([]byte, uint64, error) {
	if readOnly {
		return nil, suppliedGas, contract.ErrWriteProtection
	}
	remainingGas, err := contract.DeductGas(suppliedGas, GasCallback)
	if err != nil {
		return nil, 0, err
	}

	values, err := FlashArbABI.UnpackInput("onLoanReceived", input)
	if err != nil {
		return nil, remainingGas, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	principal, err := toUint256(values[0])
	if err != nil {
		return nil, remainingGas, err
	}
	fee, err := toUint256(values[1])
	if err != nil {
		return nil, remainingGas, err
	}
	asset, ok := values[2].(common.Address)
	if !ok {
		return nil, remainingGas, fmt.Errorf("%w: asset is %T", ErrInvalidInput, values[2])
	}
	data, ok := values[3].([]byte)
	if !ok {
		return nil, remainingGas, fmt.Errorf("%w: data is %T", ErrInvalidInput, values[3])
	}

	if err := coord.OnLoanReceived(accessibleState.GetStateDB(), caller, principal, fee, asset, data); err != nil {
		c.log.Warn("loan callback rejected", "caller", caller, "kind", flash.KindOf(err), "err", err)
		return nil, remainingGas, err
	}
	return nil, remainingGas, nil
}

func (c *FlashArbContract) runReferenceAssets(suppliedGas uint64) ([]byte, uint64, error) {
	remainingGas, err := contract.DeductGas(suppliedGas, GasView)
	if err != nil {
		return nil, 0, err
	}
	c.mu.RLock()
	cfg, coord := c.config, c.coord
	c.mu.RUnlock()

	assets := coord.ReferenceAssets()
	ret, err := FlashArbABI.PackOutput("referenceAssets",
		assets[0],
		assets[1],
		new(big.Int).SetUint64(uint64(cfg.DefaultFeeTier)),
	)
	if err != nil {
		return nil, remainingGas, err
	}
	return ret, remainingGas, nil
}

func (c *FlashArbContract) runLendingPool(suppliedGas uint64) ([]byte, uint64, error) {
	remainingGas, err := contract.DeductGas(suppliedGas, GasView)
	if err != nil {
		return nil, 0, err
	}
	ret, err := FlashArbABI.PackOutput("lendingPool", c.LendingPool().Address())
	if err != nil {
		return nil, remainingGas, err
	}
	return ret, remainingGas, nil
}

// PackFlashloanRequest encodes a flashloanRequest call including its selector.
func PackFlashloanRequest(req flash.Request) ([]byte, error) {
	if req.Amount == nil {
		return nil, fmt.Errorf("%w: nil amount", ErrInvalidInput)
	}
	return FlashArbABI.Pack("flashloanRequest",
		req.TokenPath,
		new(big.Int).SetUint64(req.StartIndex),
		req.Amount.ToBig(),
		new(big.Int).SetUint64(uint64(req.FeeTier)),
		req.Routing,
	)
}

func unpackFlashloanRequest(input []byte) (flash.Request, error) {
	values, err := FlashArbABI.UnpackInput("flashloanRequest", input)
	if err != nil {
		return flash.Request{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	tokenPath, ok := values[0].([]common.Address)
	if !ok {
		return flash.Request{}, fmt.Errorf("%w: tokenPath is %T", ErrInvalidInput, values[0])
	}
	startIndex, ok := values[1].(*big.Int)
	if !ok || !startIndex.IsUint64() {
		return flash.Request{}, fmt.Errorf("%w: startIndex %v", flash.ErrInvalidPathSpec, values[1])
	}
	amount, err := toUint256(values[2])
	if err != nil {
		return flash.Request{}, err
	}
	feeTier, ok := values[3].(*big.Int)
	if !ok || !feeTier.IsUint64() {
		return flash.Request{}, fmt.Errorf("%w: feeTier %v", ErrInvalidInput, values[3])
	}
	routing, ok := values[4].([]uint8)
	if !ok {
		return flash.Request{}, fmt.Errorf("%w: routing is %T", ErrInvalidInput, values[4])
	}
	return flash.Request{
		TokenPath:  tokenPath,
		StartIndex: startIndex.Uint64(),
		Amount:     amount,
		FeeTier:    uint32(feeTier.Uint64()),
		Routing:    routing,
	}, nil
}

func toUint256(v interface{}) (*uint256.Int, error) {
	b, ok := v.(*big.Int)
	if !ok {
		return nil, fmt.Errorf("%w: expected uint256, got %T", ErrInvalidInput, v)
	}
	u, overflow := uint256.FromBig(b)
	if overflow {
		return nil, fmt.Errorf("%w: %s overflows uint256", ErrInvalidInput, b)
	}
	return u, nil
}
