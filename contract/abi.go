// Copyright (C) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package contract

import (
	"errors"
	"fmt"
	"strings"

	"github.com/luxfi/geth/accounts/abi"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/core/types"
)

var (
	ErrUnknownMethod = errors.New("unknown method")
	ErrUnknownEvent  = errors.New("unknown event")
)

// ABI adds precompile-side helpers to a parsed contract ABI: packing method
// outputs, unpacking inputs without the selector and building event logs.
type ABI struct {
	abi.ABI
}

// MustParseABI parses a JSON ABI, panicking on malformed input. Meant for
// package-level ABIs embedded at build time.
func MustParseABI(raw string) ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(fmt.Sprintf("failed to parse ABI: %v", err))
	}
	return ABI{ABI: parsed}
}

// Selector returns the 4-byte id of method name.
func (a ABI) Selector(name string) ([SelectorLen]byte, error) {
	var selector [SelectorLen]byte
	method, ok := a.Methods[name]
	if !ok {
		return selector, fmt.Errorf("%w: %s", ErrUnknownMethod, name)
	}
	copy(selector[:], method.ID)
	return selector, nil
}

// PackOutput packs args as the return data of method name.
func (a ABI) PackOutput(name string, args ...interface{}) ([]byte, error) {
	method, ok := a.Methods[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMethod, name)
	}
	return method.Outputs.Pack(args...)
}

// UnpackInput decodes the arguments of method name. data excludes the selector.
func (a ABI) UnpackInput(name string, data []byte) ([]interface{}, error) {
	method, ok := a.Methods[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMethod, name)
	}
	if len(data)%32 != 0 {
		return nil, fmt.Errorf("abi: improperly formatted input of %d bytes", len(data))
	}
	return method.Inputs.Unpack(data)
}

// PackLog builds the log of event name emitted by addr. Indexed arguments
// must be addresses or hashes.
func (a ABI) PackLog(addr common.Address, name string, args ...interface{}) (*types.Log, error) {
	event, ok := a.Events[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEvent, name)
	}
	if len(args) != len(event.Inputs) {
		return nil, fmt.Errorf("event %s takes %d arguments, got %d", name, len(event.Inputs), len(args))
	}

	topics := make([]common.Hash, 0, len(event.Inputs)+1)
	if !event.Anonymous {
		topics = append(topics, event.ID)
	}
	var (
		dataArgs   abi.Arguments
		dataValues []interface{}
	)
	for i, input := range event.Inputs {
		if !input.Indexed {
			dataArgs = append(dataArgs, input)
			dataValues = append(dataValues, args[i])
			continue
		}
		switch v := args[i].(type) {
		case common.Address:
			topics = append(topics, common.BytesToHash(v.Bytes()))
		case common.Hash:
			topics = append(topics, v)
		default:
			return nil, fmt.Errorf("event %s: unsupported indexed type %T", name, args[i])
		}
	}

	data, err := dataArgs.Pack(dataValues...)
	if err != nil {
		return nil, fmt.Errorf("event %s: %w", name, err)
	}
	return &types.Log{Address: addr, Topics: topics, Data: data}, nil
}
