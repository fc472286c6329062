// Copyright (C) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package arb

import (
	"errors"
	"fmt"

	"github.com/luxfi/geth/common"

	"github.com/luxfi/flasharb/precompileconfig"
	"github.com/luxfi/flasharb/venue"
)

var _ precompileconfig.Config = (*Config)(nil)

// Default reference assets, WBNB and BUSD on BNB Smart Chain.
var (
	DefaultReferenceAsset0 = common.HexToAddress("0xbb4CdB9CBd36B01bD1cBaEBF2De08d9173bc095c")
	DefaultReferenceAsset1 = common.HexToAddress("0xe9e7CEA3DedcA5984780Bafc599bD69ADd087D56")
	DefaultFeeTier         = venue.Fee005
)

// Default venue factories. Pool addresses are derived from these.
var (
	DefaultLenderFactory = common.HexToAddress("0x0000000000000000000000000000000000009016")
	DefaultSpotFactory   = common.HexToAddress("0x0000000000000000000000000000000000009017")
	DefaultTieredFactory = common.HexToAddress("0x0000000000000000000000000000000000009018")
)

var (
	ErrZeroReferenceAsset      = errors.New("reference asset cannot be zero")
	ErrDuplicateReferenceAsset = errors.New("reference assets must differ")
	ErrZeroFactory             = errors.New("factory cannot be zero")
)

// Config implements the precompileconfig.Config interface. The reference
// assets and fee tier are fixed once the precompile is configured.
type Config struct {
	Upgrade         precompileconfig.Upgrade `json:"upgrade,omitempty"`
	ReferenceAsset0 common.Address           `json:"referenceAsset0"`
	ReferenceAsset1 common.Address           `json:"referenceAsset1"`
	DefaultFeeTier  uint32                   `json:"defaultFeeTier"`
	LenderFactory   common.Address           `json:"lenderFactory,omitempty"`
	SpotFactory     common.Address           `json:"spotFactory,omitempty"`
	TieredFactory   common.Address           `json:"tieredFactory,omitempty"`
}

// NewConfig returns a config activating at blockTimestamp with the default
// factories.
func NewConfig(blockTimestamp *uint64, asset0, asset1 common.Address, defaultFeeTier uint32) *Config {
	return &Config{
		Upgrade:         precompileconfig.Upgrade{BlockTimestamp: blockTimestamp},
		ReferenceAsset0: asset0,
		ReferenceAsset1: asset1,
		DefaultFeeTier:  defaultFeeTier,
		LenderFactory:   DefaultLenderFactory,
		SpotFactory:     DefaultSpotFactory,
		TieredFactory:   DefaultTieredFactory,
	}
}

// DefaultConfig borrows against the WBNB/BUSD pool at the 0.05% tier.
func DefaultConfig(blockTimestamp *uint64) *Config {
	return NewConfig(blockTimestamp, DefaultReferenceAsset0, DefaultReferenceAsset1, DefaultFeeTier)
}

func (c *Config) Key() string {
	return ConfigKey
}

func (c *Config) Timestamp() *uint64 {
	return c.Upgrade.Timestamp()
}

func (c *Config) IsDisabled() bool {
	return c.Upgrade.Disable
}

func (c *Config) Equal(cfg precompileconfig.Config) bool {
	other, ok := cfg.(*Config)
	if !ok {
		return false
	}
	return c.Upgrade.Equal(&other.Upgrade) &&
		c.ReferenceAsset0 == other.ReferenceAsset0 &&
		c.ReferenceAsset1 == other.ReferenceAsset1 &&
		c.DefaultFeeTier == other.DefaultFeeTier &&
		c.LenderFactory == other.LenderFactory &&
		c.SpotFactory == other.SpotFactory &&
		c.TieredFactory == other.TieredFactory
}

func (c *Config) Verify(chainConfig precompileconfig.ChainConfig) error {
	if c.ReferenceAsset0 == (common.Address{}) || c.ReferenceAsset1 == (common.Address{}) {
		return ErrZeroReferenceAsset
	}
	if c.ReferenceAsset0 == c.ReferenceAsset1 {
		return ErrDuplicateReferenceAsset
	}
	if !venue.ValidFeeTier(c.DefaultFeeTier) {
		return fmt.Errorf("%w: %d", venue.ErrUnsupportedFeeTier, c.DefaultFeeTier)
	}
	if c.LenderFactory == (common.Address{}) || c.SpotFactory == (common.Address{}) || c.TieredFactory == (common.Address{}) {
		return ErrZeroFactory
	}
	return nil
}
