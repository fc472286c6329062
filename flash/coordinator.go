// Copyright (C) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package flash runs flash-loan arbitrage sequences: borrow an asset, route it
// through a fixed plan of swaps, repay principal plus fee and keep the rest.
//
// A sequence never undoes its own effects. Every failure is returned to the
// caller, which must discard the state changes of the whole invocation.
package flash

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
	"github.com/luxfi/flasharb/lender"
)

var _ lender.Borrower = (*Coordinator)(nil)

var (
	ErrNilDispatcher = errors.New("nil dispatcher")
	ErrNilLender     = errors.New("nil lender")
)

// Lender issues the loans a coordinator borrows.
type Lender interface {
	Address() common.Address
	Flash(
		state contract.StateDB,
		borrower common.Address,
		callback lender.Borrower,
		asset common.Address,
		amount *uint256.Int,
		data []byte,
	) (*uint256.Int, error)
}

// Config is fixed for the lifetime of a coordinator.
type Config struct {
	// Custody holds the borrowed funds and keeps the residual.
	Custody         common.Address
	Lender          Lender
	ReferenceAssets [2]common.Address
	DefaultFeeTier  uint32
	Dispatcher      *Dispatcher
	Logger          log.Logger
}

// Request mirrors flashloanRequest(tokenPath, startIndex, amountBorrow,
// feeTier, routing).
type Request struct {
	TokenPath  []common.Address
	StartIndex uint64
	Amount     *uint256.Int
	FeeTier    uint32
	Routing    []uint8
}

// pendingLoan is a loan requested from the lender whose callback has not
// finished yet.
type pendingLoan struct {
	asset    common.Address
	baseline *uint256.Int
	outcome  *SettlementOutcome
}

// Coordinator is the only entry point of a sequence: RequestLoan asks the
// lender for a loan, and the lender's OnLoanReceived callback runs it.
type Coordinator struct {
	custody         common.Address
	lender          Lender
	referenceAssets [2]common.Address
	defaultFeeTier  uint32
	dispatcher      *Dispatcher
	swaps           *SwapExecutor
	log             log.Logger

	// mu protects active and pending
	mu sync.Mutex
	// active is set while a sequence runs and rejects re-entry
	active  bool
	pending *pendingLoan
}

// NewCoordinator creates a coordinator for cfg.
func NewCoordinator(cfg Config) (*Coordinator, error) {
	if cfg.Dispatcher == nil {
		return nil, ErrNilDispatcher
	}
	if cfg.Lender == nil {
		return nil, ErrNilLender
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewTestLogger(level.Info)
	}
	return &Coordinator{
		custody:         cfg.Custody,
		lender:          cfg.Lender,
		referenceAssets: cfg.ReferenceAssets,
		defaultFeeTier:  cfg.DefaultFeeTier,
		dispatcher:      cfg.Dispatcher,
		swaps:           NewSwapExecutor(cfg.Custody, logger),
		log:             logger,
	}, nil
}

// Custody is the account the coordinator trades from.
func (c *Coordinator) Custody() common.Address {
	return c.custody
}

// ReferenceAssets returns the two default path endpoints.
func (c *Coordinator) ReferenceAssets() [2]common.Address {
	return c.referenceAssets
}

// RequestLoan borrows req.Amount from the lender and runs the plan req
// describes inside the lender's callback.
func (c *Coordinator) RequestLoan(state contract.StateDB, req Request) (SettlementOutcome, error) {
	spec, err := BuildPathSpec(req.TokenPath, req.StartIndex, req.Routing, req.FeeTier, c.referenceAssets, c.defaultFeeTier)
	if err != nil {
		return SettlementOutcome{}, err
	}
	if req.Amount == nil || req.Amount.IsZero() {
		return SettlementOutcome{}, fmt.Errorf("%w: zero principal", ErrInvalidPathSpec)
	}
	if _, err := c.dispatcher.Resolve(spec); err != nil {
		return SettlementOutcome{}, err
	}
	data, err := EncodePathSpec(spec)
	if err != nil {
		return SettlementOutcome{}, fmt.Errorf("%w: %w", ErrInvalidPathSpec, err)
	}

	asset := spec.Borrowed()
	pending := &pendingLoan{
		asset:    asset,
		baseline: ledger.New(state).BalanceOf(asset, c.custody),
	}
	c.mu.Lock()
	if c.active || c.pending != nil {
		c.mu.Unlock()
		return SettlementOutcome{}, ErrReentrantInvocation
	}
	c.pending = pending
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.pending = nil
		c.mu.Unlock()
	}()

	if _, err := c.lender.Flash(state, c.custody, c, asset, req.Amount, data); err != nil {
		return SettlementOutcome{}, err
	}
	if pending.outcome == nil {
		return SettlementOutcome{}, fmt.Errorf("%w: lender never called back", ErrUnauthorizedCaller)
	}
	return *pending.outcome, nil
}

// OnLoanReceived is the lender callback. It accepts only the configured
// lender answering a loan this coordinator requested, and only after the
// principal has actually arrived in custody.
func (c *Coordinator) OnLoanReceived(
	state contract.StateDB,
	caller common.Address,
	principal *uint256.Int,
	fee *uint256.Int,
	asset common.Address,
	data []byte,
) error {
	if err := c.begin(); err != nil {
		return err
	}
	defer c.end()

	c.mu.Lock()
	pending := c.pending
	c.mu.Unlock()

	if caller != c.lender.Address() {
		return fmt.Errorf("%w: %s is not the lender", ErrUnauthorizedCaller, caller.Hex())
	}
	if pending == nil {
		return fmt.Errorf("%w: no loan requested", ErrUnauthorizedCaller)
	}
	if asset != pending.asset {
		return fmt.Errorf("%w: lent %s, requested %s", ErrUnauthorizedCaller, asset.Hex(), pending.asset.Hex())
	}
	if principal == nil || fee == nil {
		return fmt.Errorf("%w: missing loan amounts", ErrUnauthorizedCaller)
	}

	balance := ledger.New(state).BalanceOf(asset, c.custody)
	if balance.Lt(pending.baseline) {
		return fmt.Errorf("%w: %w: custody balance fell below %s", ErrUnauthorizedCaller, ErrPrincipalMismatch, pending.baseline)
	}
	received := new(uint256.Int).Sub(balance, pending.baseline)
	if !received.Eq(principal) {
		return fmt.Errorf("%w: %w: reported %s, received %s", ErrUnauthorizedCaller, ErrPrincipalMismatch, principal, received)
	}

	spec, err := DecodePathSpec(data)
	if err != nil {
		return err
	}
	outcome, err := c.run(state, LoanTerms{Asset: asset, Principal: principal, Fee: fee}, spec)
	if err != nil {
		return err
	}
	pending.outcome = &outcome
	return nil
}

// execute runs spec on a principal already held in custody and repays the
// lender. OnLoanReceived is the only caller; it has checked the lender and
// the received principal.
func (c *Coordinator) execute(state contract.StateDB, terms LoanTerms, spec PathSpec) (SettlementOutcome, error) {
	if err := c.begin(); err != nil {
		return SettlementOutcome{}, err
	}
	defer c.end()
	return c.run(state, terms, spec)
}

func (c *Coordinator) begin() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active {
		return ErrReentrantInvocation
	}
	c.active = true
	return nil
}

func (c *Coordinator) end() {
	c.mu.Lock()
	c.active = false
	c.mu.Unlock()
}

// run is the fold over the hops of spec. It must be called with active set.
func (c *Coordinator) run(state contract.StateDB, terms LoanTerms, spec PathSpec) (outcome SettlementOutcome, err error) {
	seq := &sequence{}
	defer func() {
		if err == nil {
			return
		}
		phase := seq.phase
		seq.abort()
		kind := KindOf(err)
		if kind.Expected() {
			c.log.Info("flash sequence aborted", "kind", kind, "phase", phase, "asset", terms.Asset, "err", err)
		} else {
			c.log.Error("flash sequence aborted", "kind", kind, "phase", phase, "hop", seq.hop, "asset", terms.Asset, "err", err)
		}
	}()

	if err := c.transition(seq, PhaseValidating); err != nil {
		return SettlementOutcome{}, err
	}
	if err := spec.Validate(); err != nil {
		return SettlementOutcome{}, err
	}
	if terms.Asset != spec.Borrowed() {
		return SettlementOutcome{}, fmt.Errorf("%w: borrowed %s, path starts at %s", ErrInvalidPathSpec, terms.Asset.Hex(), spec.Borrowed().Hex())
	}
	if terms.Principal == nil || terms.Principal.IsZero() {
		return SettlementOutcome{}, fmt.Errorf("%w: zero principal", ErrInvalidPathSpec)
	}
	if terms.Fee == nil {
		terms.Fee = new(uint256.Int)
	}
	venues, err := c.dispatcher.Resolve(spec)
	if err != nil {
		return SettlementOutcome{}, err
	}

	l := ledger.New(state)
	hops := make([]HopResult, 0, spec.Hops())
	amount := terms.Principal.Clone()
	for i, v := range venues {
		if err := c.transition(seq, PhaseSwapping); err != nil {
			return SettlementOutcome{}, err
		}
		seq.hop = i
		out, err := c.swaps.Swap(l, v, spec.Path[i], spec.Path[i+1], amount, spec.FeeTier)
		if err != nil {
			return SettlementOutcome{}, fmt.Errorf("hop %d: %w", i, err)
		}
		hop := HopResult{
			Index:     i,
			AssetIn:   spec.Path[i],
			AssetOut:  spec.Path[i+1],
			AmountIn:  amount,
			AmountOut: out,
			Route:     spec.Routing[i],
		}
		hops = append(hops, hop)
		if err := emitHopExecuted(state, c.custody, hop); err != nil {
			return SettlementOutcome{}, err
		}
		amount = out
	}

	if err := c.transition(seq, PhaseGuarding); err != nil {
		return SettlementOutcome{}, err
	}
	outcome, err = CheckProfit(amount, terms.Principal, terms.Fee)
	if err != nil {
		return SettlementOutcome{}, err
	}
	outcome.Hops = hops

	if err := c.transition(seq, PhaseSettling); err != nil {
		return SettlementOutcome{}, err
	}
	if err := Settle(l, c.custody, c.lender.Address(), terms.Asset, outcome.Repayment); err != nil {
		return SettlementOutcome{}, err
	}
	if err := emitLoanSettled(state, c.custody, terms, outcome); err != nil {
		return SettlementOutcome{}, err
	}
	if err := c.transition(seq, PhaseDone); err != nil {
		return SettlementOutcome{}, err
	}

	c.log.Info("flash loan settled",
		"asset", terms.Asset,
		"principal", terms.Principal,
		"fee", terms.Fee,
		"final", outcome.Final,
		"residual", outcome.Residual,
		"hops", len(hops),
	)
	return outcome, nil
}

func (c *Coordinator) transition(seq *sequence, to Phase) error {
	from := seq.phase
	if err := seq.advance(to); err != nil {
		return err
	}
	c.log.Debug("flash phase", "from", from, "to", to, "hop", seq.hop)
	return nil
}
