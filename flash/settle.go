// Copyright (C) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package flash

import (
	"fmt"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"

	"github.com/luxfi/flasharb/ledger"
)

// Settle pays amount of asset from custody to lender. A failed transfer is
// final for the invocation.
func Settle(l ledger.Ledger, custody, lender, asset common.Address, amount *uint256.Int) error {
	if err := l.Transfer(asset, custody, lender, amount); err != nil {
		return fmt.Errorf("%w: %w", ErrRepaymentFailed, err)
	}
	return nil
}
