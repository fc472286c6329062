// Copyright (C) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package contract

import (
	"errors"
	"fmt"
)

// SelectorLen is the length of an ABI function selector.
const SelectorLen = 4

var (
	ErrOutOfGas        = errors.New("out of gas")
	ErrWriteProtection = errors.New("write protection")
	ErrInputTooShort   = errors.New("input too short")
	ErrUnknownSelector = errors.New("unknown method selector")
)

// DeductGas subtracts requiredGas from suppliedGas, failing with ErrOutOfGas
// when not enough gas was supplied.
func DeductGas(suppliedGas uint64, requiredGas uint64) (uint64, error) {
	if suppliedGas < requiredGas {
		return 0, ErrOutOfGas
	}
	return suppliedGas - requiredGas, nil
}

// SplitSelector separates the 4-byte selector from the ABI-encoded arguments.
func SplitSelector(input []byte) ([SelectorLen]byte, []byte, error) {
	var selector [SelectorLen]byte
	if len(input) < SelectorLen {
		return selector, nil, fmt.Errorf("%w: %d bytes", ErrInputTooShort, len(input))
	}
	copy(selector[:], input[:SelectorLen])
	return selector, input[SelectorLen:], nil
}
