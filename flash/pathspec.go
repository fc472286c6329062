// Copyright (C) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package flash

import (
	"fmt"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
)

// PathSpec is a borrow-and-swap plan: Path[i] is sold for Path[i+1] on the
// venue Routing[i] selects. The path starts and ends on the borrowed asset.
type PathSpec struct {
	Path    []common.Address
	Routing []Route
	// FeeTier selects the pool of hops routed to a tiered venue.
	FeeTier uint32
}

// Hops is the number of swaps in the plan.
func (p PathSpec) Hops() int {
	return len(p.Routing)
}

// Borrowed is the asset the plan starts from and repays in.
func (p PathSpec) Borrowed() common.Address {
	if len(p.Path) == 0 {
		return common.Address{}
	}
	return p.Path[0]
}

// Validate checks the shape of the plan. It never touches state.
func (p PathSpec) Validate() error {
	if len(p.Path) < 2 {
		return fmt.Errorf("%w: path has %d assets, need at least 2", ErrInvalidPathSpec, len(p.Path))
	}
	if len(p.Routing) != len(p.Path)-1 {
		return fmt.Errorf("%w: %d routing codes for %d hops", ErrInvalidPathSpec, len(p.Routing), len(p.Path)-1)
	}
	for i, r := range p.Routing {
		if !r.Valid() {
			return fmt.Errorf("%w: hop %d: %w %d", ErrInvalidPathSpec, i, ErrUnknownRoute, uint8(r))
		}
	}
	for i := 0; i+1 < len(p.Path); i++ {
		if p.Path[i] == p.Path[i+1] {
			return fmt.Errorf("%w: hop %d swaps %s for itself", ErrInvalidPathSpec, i, p.Path[i].Hex())
		}
	}
	if p.Path[0] != p.Path[len(p.Path)-1] {
		return fmt.Errorf("%w: path ends on %s, not the borrowed %s", ErrInvalidPathSpec, p.Path[len(p.Path)-1].Hex(), p.Path[0].Hex())
	}
	return nil
}

// LoanTerms is what the lender issued. Fee is computed by the lender.
type LoanTerms struct {
	Asset     common.Address
	Principal *uint256.Int
	Fee       *uint256.Int
}

// HopResult records one executed swap.
type HopResult struct {
	Index     int
	AssetIn   common.Address
	AssetOut  common.Address
	AmountIn  *uint256.Int
	AmountOut *uint256.Int
	Route     Route
}

// SettlementOutcome is the accounting of a completed sequence:
// Final = Repayment + Residual.
type SettlementOutcome struct {
	Final     *uint256.Int
	Repayment *uint256.Int
	Residual  *uint256.Int
	Hops      []HopResult
}

// BuildPathSpec turns the flashloanRequest calling convention into a plan.
//
// tokenPath is rotated left by startIndex. The borrowed asset is the rotated
// head when it is one of the reference assets, otherwise the second
// reference asset. The plan runs from the borrowed asset through the rotated
// path and back, so [CAKE, WBNB] borrowing BUSD becomes
// BUSD → CAKE → WBNB → BUSD. A zero feeTier selects defaultFeeTier.
func BuildPathSpec(
	tokenPath []common.Address,
	startIndex uint64,
	routing []uint8,
	feeTier uint32,
	referenceAssets [2]common.Address,
	defaultFeeTier uint32,
) (PathSpec, error) {
	if len(tokenPath) == 0 {
		return PathSpec{}, fmt.Errorf("%w: empty token path", ErrInvalidPathSpec)
	}
	if startIndex >= uint64(len(tokenPath)) {
		return PathSpec{}, fmt.Errorf("%w: start index %d out of range for %d assets", ErrInvalidPathSpec, startIndex, len(tokenPath))
	}

	rotated := make([]common.Address, 0, len(tokenPath))
	rotated = append(rotated, tokenPath[startIndex:]...)
	rotated = append(rotated, tokenPath[:startIndex]...)

	borrowed := referenceAssets[1]
	if rotated[0] == referenceAssets[0] || rotated[0] == referenceAssets[1] {
		borrowed = rotated[0]
		rotated = rotated[1:]
	}

	path := make([]common.Address, 0, len(rotated)+2)
	path = append(path, borrowed)
	path = append(path, rotated...)
	path = append(path, borrowed)

	routes := make([]Route, len(routing))
	for i, code := range routing {
		routes[i] = Route(code)
	}
	if feeTier == 0 {
		feeTier = defaultFeeTier
	}

	spec := PathSpec{Path: path, Routing: routes, FeeTier: feeTier}
	if err := spec.Validate(); err != nil {
		return PathSpec{}, err
	}
	return spec, nil
}
