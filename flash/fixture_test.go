// Copyright (C) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package flash

import (
	"errors"
	"testing"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/flasharb/contract"
	"github.com/luxfi/flasharb/host"
	"github.com/luxfi/flasharb/ledger"
	"github.com/luxfi/flasharb/lender"
)

var (
	wbnb = common.HexToAddress("0x00000000000000000000000000000000000000b1")
	busd = common.HexToAddress("0x00000000000000000000000000000000000000b2")
	cake = common.HexToAddress("0x00000000000000000000000000000000000000c1")

	custody     = common.HexToAddress("0x000000000000000000000000000000000000c057")
	lenderAddr  = common.HexToAddress("0x00000000000000000000000000000000000011d0")
	spotReserve = common.HexToAddress("0x0000000000000000000000000000000000005907")
	tierReserve = common.HexToAddress("0x0000000000000000000000000000000000007133")

	referenceAssets = [2]common.Address{wbnb, busd}
	allAssets       = []common.Address{wbnb, busd, cake}
)

var errVenueDown = errors.New("venue down")

type swapCall struct {
	tokenIn  common.Address
	tokenOut common.Address
	amountIn *uint256.Int
	feeTier  uint32
}

// scriptedVenue pays a fixed amount per call out of its reserve.
type scriptedVenue struct {
	reserve common.Address
	tiered  bool
	outputs []uint64
	// fail makes the call with that index error before moving funds
	fail map[int]error
	// report overrides the amount the venue claims to have paid
	report func(i int, paid *uint256.Int) *uint256.Int
	// onSwap runs at the start of each call
	onSwap func(i int)

	calls []swapCall
}

func (v *scriptedVenue) RequiresFeeTier() bool {
	return v.tiered
}

func (v *scriptedVenue) QuoteAndSwap(
	l ledger.Ledger,
	trader common.Address,
	tokenIn common.Address,
	tokenOut common.Address,
	amountIn *uint256.Int,
	feeTier uint32,
) (*uint256.Int, error) {
	i := len(v.calls)
	v.calls = append(v.calls, swapCall{tokenIn: tokenIn, tokenOut: tokenOut, amountIn: amountIn.Clone(), feeTier: feeTier})
	if v.onSwap != nil {
		v.onSwap(i)
	}
	if err := v.fail[i]; err != nil {
		return nil, err
	}
	if err := l.Transfer(tokenIn, trader, v.reserve, amountIn); err != nil {
		return nil, err
	}
	paid := uint256.NewInt(v.outputs[i])
	if err := l.Transfer(tokenOut, v.reserve, trader, paid); err != nil {
		return nil, err
	}
	if v.report != nil {
		return v.report(i, paid), nil
	}
	return paid, nil
}

// fixedLender only receives repayments.
type fixedLender struct {
	addr common.Address
}

func (f fixedLender) Address() common.Address {
	return f.addr
}

func (fixedLender) Flash(contract.StateDB, common.Address, lender.Borrower, common.Address, *uint256.Int, []byte) (*uint256.Int, error) {
	return nil, errors.New("fixed lender does not lend")
}

// shortLender sends short less than it reports lending.
type shortLender struct {
	addr  common.Address
	short uint64
}

func (s shortLender) Address() common.Address {
	return s.addr
}

func (s shortLender) Flash(state contract.StateDB, borrower common.Address, callback lender.Borrower, asset common.Address, amount *uint256.Int, data []byte) (*uint256.Int, error) {
	sent := new(uint256.Int).SubUint64(amount, s.short)
	if err := ledger.New(state).Transfer(asset, s.addr, borrower, sent); err != nil {
		return nil, err
	}
	return new(uint256.Int), callback.OnLoanReceived(state, s.addr, amount, new(uint256.Int), asset, data)
}

type fixture struct {
	rt     *host.Runtime
	ledger *ledger.StateLedger
	spot   *scriptedVenue
	tiered *scriptedVenue
	coord  *Coordinator
}

func newFixture(t *testing.T, l Lender) *fixture {
	t.Helper()
	state := host.NewStateDB(nil)
	f := &fixture{
		rt:     host.NewRuntime(state, nil),
		ledger: ledger.New(state),
		spot:   &scriptedVenue{reserve: spotReserve},
		tiered: &scriptedVenue{reserve: tierReserve, tiered: true},
	}
	for _, asset := range allAssets {
		require.NoError(t, f.ledger.Mint(asset, spotReserve, uint256.NewInt(1_000_000)))
		require.NoError(t, f.ledger.Mint(asset, tierReserve, uint256.NewInt(1_000_000)))
	}
	if l == nil {
		l = fixedLender{addr: lenderAddr}
	}
	coord, err := NewCoordinator(Config{
		Custody:         custody,
		Lender:          l,
		ReferenceAssets: referenceAssets,
		DefaultFeeTier:  500,
		Dispatcher:      NewDispatcher(f.spot, f.tiered),
	})
	require.NoError(t, err)
	f.coord = coord
	return f
}

func (f *fixture) state() contract.StateDB {
	return f.rt.GetStateDB()
}

func (f *fixture) mint(t *testing.T, asset, to common.Address, amount uint64) {
	t.Helper()
	require.NoError(t, f.ledger.Mint(asset, to, uint256.NewInt(amount)))
}

func (f *fixture) balance(asset, holder common.Address) uint64 {
	return f.ledger.BalanceOf(asset, holder).Uint64()
}

// snapshotBalances records every balance a sequence can touch.
func (f *fixture) snapshotBalances(holders ...common.Address) map[common.Address]map[common.Address]string {
	balances := make(map[common.Address]map[common.Address]string)
	for _, holder := range holders {
		balances[holder] = make(map[common.Address]string)
		for _, asset := range allAssets {
			balances[holder][asset] = f.ledger.BalanceOf(asset, holder).Dec()
		}
	}
	return balances
}

func (f *fixture) countLogs(topic common.Hash) int {
	n := 0
	for _, entry := range f.state().Logs() {
		if len(entry.Topics) > 0 && entry.Topics[0] == topic {
			n++
		}
	}
	return n
}

func terms(principal, fee uint64) LoanTerms {
	return LoanTerms{Asset: busd, Principal: uint256.NewInt(principal), Fee: uint256.NewInt(fee)}
}
