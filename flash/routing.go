// Copyright (C) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package flash

import (
	"fmt"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"

	"github.com/luxfi/flasharb/ledger"
)

// Route selects the venue a hop trades on.
type Route uint8

const (
	// RouteSpot is a constant-product spot pool.
	RouteSpot Route = 0
	// RouteTiered is a fee-tiered concentrated liquidity pool.
	RouteTiered Route = 1
)

// Valid reports whether r is one of the known routes.
func (r Route) Valid() bool {
	switch r {
	case RouteSpot, RouteTiered:
		return true
	default:
		return false
	}
}

func (r Route) String() string {
	switch r {
	case RouteSpot:
		return "spot"
	case RouteTiered:
		return "tiered"
	default:
		return fmt.Sprintf("route(%d)", uint8(r))
	}
}

// Venue is a liquidity venue adapter. QuoteAndSwap sells amountIn of tokenIn
// held by trader and pays tokenOut back to trader, returning the amount it
// claims to have paid.
type Venue interface {
	QuoteAndSwap(
		l ledger.Ledger,
		trader common.Address,
		tokenIn common.Address,
		tokenOut common.Address,
		amountIn *uint256.Int,
		feeTier uint32,
	) (*uint256.Int, error)
	// RequiresFeeTier reports whether the venue prices by fee tier.
	RequiresFeeTier() bool
}

// Dispatcher maps routes to venue adapters.
type Dispatcher struct {
	spot   Venue
	tiered Venue
}

// NewDispatcher returns a dispatcher over one adapter per route.
func NewDispatcher(spot Venue, tiered Venue) *Dispatcher {
	return &Dispatcher{spot: spot, tiered: tiered}
}

// Venue returns the adapter for r.
func (d *Dispatcher) Venue(r Route) (Venue, error) {
	var v Venue
	switch r {
	case RouteSpot:
		v = d.spot
	case RouteTiered:
		v = d.tiered
	default:
		return nil, fmt.Errorf("%w: %w %d", ErrInvalidPathSpec, ErrUnknownRoute, uint8(r))
	}
	if v == nil {
		return nil, fmt.Errorf("%w: %w: no %s venue configured", ErrInvalidPathSpec, ErrUnknownRoute, r)
	}
	return v, nil
}

// Resolve returns the adapter of every hop in spec, failing before any swap
// runs when one is missing.
func (d *Dispatcher) Resolve(spec PathSpec) ([]Venue, error) {
	venues := make([]Venue, len(spec.Routing))
	for i, r := range spec.Routing {
		v, err := d.Venue(r)
		if err != nil {
			return nil, fmt.Errorf("hop %d: %w", i, err)
		}
		venues[i] = v
	}
	return venues, nil
}
