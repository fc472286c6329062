// Copyright (C) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package flash

import (
	"fmt"
	"math/big"

	"github.com/luxfi/geth/accounts/abi"
	"github.com/luxfi/geth/common"
)

// pathSpecArgs is the ABI layout of a PathSpec carried through the lender
// callback: (address[] path, uint8[] routing, uint24 feeTier).
var pathSpecArgs = abi.Arguments{
	{Name: "path", Type: mustType("address[]")},
	{Name: "routing", Type: mustType("uint8[]")},
	{Name: "feeTier", Type: mustType("uint24")},
}

func mustType(t string) abi.Type {
	typ, err := abi.NewType(t, "", nil)
	if err != nil {
		panic(fmt.Sprintf("abi type %s: %v", t, err))
	}
	return typ
}

// EncodePathSpec packs spec for the lender callback payload.
func EncodePathSpec(spec PathSpec) ([]byte, error) {
	routing := make([]uint8, len(spec.Routing))
	for i, r := range spec.Routing {
		routing[i] = uint8(r)
	}
	return pathSpecArgs.Pack(spec.Path, routing, new(big.Int).SetUint64(uint64(spec.FeeTier)))
}

// DecodePathSpec unpacks a callback payload. The result is not validated.
func DecodePathSpec(data []byte) (PathSpec, error) {
	values, err := pathSpecArgs.Unpack(data)
	if err != nil {
		return PathSpec{}, fmt.Errorf("%w: %w", ErrInvalidPathSpec, err)
	}
	if len(values) != len(pathSpecArgs) {
		return PathSpec{}, fmt.Errorf("%w: %d fields in payload", ErrInvalidPathSpec, len(values))
	}
	path, ok := values[0].([]common.Address)
	if !ok {
		return PathSpec{}, fmt.Errorf("%w: path is %T", ErrInvalidPathSpec, values[0])
	}
	codes, ok := values[1].([]uint8)
	if !ok {
		return PathSpec{}, fmt.Errorf("%w: routing is %T", ErrInvalidPathSpec, values[1])
	}
	tier, ok := values[2].(*big.Int)
	if !ok || !tier.IsUint64() || tier.Uint64() > 1<<24-1 {
		return PathSpec{}, fmt.Errorf("%w: fee tier %v", ErrInvalidPathSpec, values[2])
	}

	routing := make([]Route, len(codes))
	for i, c := range codes {
		routing[i] = Route(c)
	}
	return PathSpec{Path: path, Routing: routing, FeeTier: uint32(tier.Uint64())}, nil
}
