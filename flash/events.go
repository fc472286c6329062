// Copyright (C) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package flash

import (
	"math/big"

	"github.com/luxfi/geth/common"

	"github.com/luxfi/flasharb/contract"
)

const eventsABI = `[
	{
		"type": "event",
		"name": "HopExecuted",
		"anonymous": false,
		"inputs": [
			{"name": "index", "type": "uint256", "indexed": false},
			{"name": "tokenIn", "type": "address", "indexed": true},
			{"name": "tokenOut", "type": "address", "indexed": true},
			{"name": "amountIn", "type": "uint256", "indexed": false},
			{"name": "amountOut", "type": "uint256", "indexed": false},
			{"name": "route", "type": "uint8", "indexed": false}
		]
	},
	{
		"type": "event",
		"name": "LoanSettled",
		"anonymous": false,
		"inputs": [
			{"name": "asset", "type": "address", "indexed": true},
			{"name": "principal", "type": "uint256", "indexed": false},
			{"name": "fee", "type": "uint256", "indexed": false},
			{"name": "residual", "type": "uint256", "indexed": false}
		]
	}
]`

// EventsABI declares the logs a settled sequence emits.
var EventsABI = contract.MustParseABI(eventsABI)

func emitHopExecuted(state contract.StateDB, custody common.Address, hop HopResult) error {
	entry, err := EventsABI.PackLog(custody, "HopExecuted",
		big.NewInt(int64(hop.Index)),
		hop.AssetIn,
		hop.AssetOut,
		hop.AmountIn.ToBig(),
		hop.AmountOut.ToBig(),
		uint8(hop.Route),
	)
	if err != nil {
		return err
	}
	state.AddLog(entry)
	return nil
}

func emitLoanSettled(state contract.StateDB, custody common.Address, terms LoanTerms, outcome SettlementOutcome) error {
	entry, err := EventsABI.PackLog(custody, "LoanSettled",
		terms.Asset,
		terms.Principal.ToBig(),
		terms.Fee.ToBig(),
		outcome.Residual.ToBig(),
	)
	if err != nil {
		return err
	}
	state.AddLog(entry)
	return nil
}
