// Copyright (C) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package flash

import (
	"fmt"

	"github.com/holiman/uint256"
)

// CheckProfit compares the final amount of a sequence against the repayment
// it owes. It fails with ErrInsufficientOutput unless final covers
// principal + fee exactly or better.
func CheckProfit(final, principal, fee *uint256.Int) (SettlementOutcome, error) {
	repayment, overflow := new(uint256.Int).AddOverflow(principal, fee)
	if overflow {
		return SettlementOutcome{}, fmt.Errorf("%w: repayment overflows", ErrInsufficientOutput)
	}
	if final.Lt(repayment) {
		return SettlementOutcome{}, fmt.Errorf("%w: have %s, owe %s", ErrInsufficientOutput, final, repayment)
	}
	return SettlementOutcome{
		Final:     final.Clone(),
		Repayment: repayment,
		Residual:  new(uint256.Int).Sub(final, repayment),
	}, nil
}
