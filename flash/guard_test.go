// Copyright (C) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package flash

import (
	"errors"
	"testing"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/flasharb/host"
	"github.com/luxfi/flasharb/ledger"
)

func TestCheckProfit(t *testing.T) {
	tests := []struct {
		name      string
		final     uint64
		principal uint64
		fee       uint64
		residual  uint64
		wantErr   bool
	}{
		{"profit", 31, 30, 0, 1, false},
		{"break even", 31, 30, 1, 0, false},
		{"one short", 30, 30, 1, 0, true},
		{"loss", 29, 30, 0, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outcome, err := CheckProfit(uint256.NewInt(tt.final), uint256.NewInt(tt.principal), uint256.NewInt(tt.fee))
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInsufficientOutput)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.final, outcome.Final.Uint64())
			require.Equal(t, tt.principal+tt.fee, outcome.Repayment.Uint64())
			require.Equal(t, tt.residual, outcome.Residual.Uint64())
		})
	}
}

func TestCheckProfit_RepaymentOverflow(t *testing.T) {
	max := new(uint256.Int).SetAllOne()
	_, err := CheckProfit(max, max, uint256.NewInt(1))
	require.ErrorIs(t, err, ErrInsufficientOutput)
}

type failingLedger struct {
	ledger.Ledger
	err error
}

func (f failingLedger) Transfer(common.Address, common.Address, common.Address, *uint256.Int) error {
	return f.err
}

func TestSettle(t *testing.T) {
	l := ledger.New(host.NewStateDB(nil))
	require.NoError(t, l.Mint(busd, custody, uint256.NewInt(31)))

	require.NoError(t, Settle(l, custody, lenderAddr, busd, uint256.NewInt(30)))
	require.Equal(t, uint64(30), l.BalanceOf(busd, lenderAddr).Uint64())
	require.Equal(t, uint64(1), l.BalanceOf(busd, custody).Uint64())

	err := Settle(l, custody, lenderAddr, busd, uint256.NewInt(2))
	require.ErrorIs(t, err, ErrRepaymentFailed)
	require.ErrorIs(t, err, ledger.ErrInsufficientBalance)

	boom := errors.New("transfer rejected")
	err = Settle(failingLedger{Ledger: l, err: boom}, custody, lenderAddr, busd, uint256.NewInt(1))
	require.ErrorIs(t, err, ErrRepaymentFailed)
	require.ErrorIs(t, err, boom)
}
