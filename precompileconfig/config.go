// Copyright (C) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package precompileconfig defines the configuration contract shared by all
// stateful precompiles.
package precompileconfig

import "math/big"

// Config is the per-precompile configuration read from the chain's genesis or
// upgrade file.
type Config interface {
	// Key is the JSON key the config is stored under.
	Key() string
	// Timestamp is the activation time, nil when never activated.
	Timestamp() *uint64
	IsDisabled() bool
	Equal(Config) bool
	Verify(ChainConfig) error
}

// ChainConfig exposes the chain parameters a config may validate against.
type ChainConfig interface {
	ChainID() *big.Int
}

// Upgrade describes when a precompile is activated or disabled.
type Upgrade struct {
	BlockTimestamp *uint64 `json:"blockTimestamp,omitempty"`
	Disable        bool    `json:"disable,omitempty"`
}

// Timestamp returns the activation timestamp.
func (u *Upgrade) Timestamp() *uint64 {
	return u.BlockTimestamp
}

// Equal reports whether two upgrades activate at the same time with the same mode.
func (u *Upgrade) Equal(other *Upgrade) bool {
	if other == nil {
		return false
	}
	if u.Disable != other.Disable {
		return false
	}
	switch {
	case u.BlockTimestamp == nil && other.BlockTimestamp == nil:
		return true
	case u.BlockTimestamp == nil || other.BlockTimestamp == nil:
		return false
	default:
		return *u.BlockTimestamp == *other.BlockTimestamp
	}
}

// IsActive reports whether the upgrade is active at the given block time.
func (u *Upgrade) IsActive(timestamp uint64) bool {
	if u.Disable || u.BlockTimestamp == nil {
		return false
	}
	return *u.BlockTimestamp <= timestamp
}
