// Copyright (C) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package arb

import (
	"fmt"

	"github.com/luxfi/geth/common"

	"github.com/luxfi/flasharb/contract"
	"github.com/luxfi/flasharb/modules"
	"github.com/luxfi/flasharb/precompileconfig"
)

var _ contract.Configurator = (*configurator)(nil)

// ConfigKey is the key used in json config files to specify this precompile config.
const ConfigKey = "flashArbConfig"

// ContractAddress is the address of the flash arbitrage precompile (LP-9015).
// It is also the custody account that holds borrowed funds and residuals.
var ContractAddress = common.HexToAddress("0x0000000000000000000000000000000000009015")

// FlashArbPrecompile is the singleton instance
var FlashArbPrecompile = &FlashArbContract{}

// Module is the precompile module
var Module = modules.Module{
	ConfigKey:    ConfigKey,
	Address:      ContractAddress,
	Contract:     FlashArbPrecompile,
	Configurator: &configurator{target: FlashArbPrecompile},
}

type configurator struct {
	target *FlashArbContract
}

func init() {
	if err := modules.RegisterModule(Module); err != nil {
		panic(err)
	}
}

func (*configurator) MakeConfig() precompileconfig.Config {
	return new(Config)
}

func (c *configurator) Configure(
	chainConfig precompileconfig.ChainConfig,
	cfg precompileconfig.Config,
	state contract.StateDB,
	blockContext contract.ConfigurationBlockContext,
) error {
	config, ok := cfg.(*Config)
	if !ok {
		return fmt.Errorf("expected config type %T, got %T: %v", &Config{}, cfg, cfg)
	}
	if err := config.Verify(chainConfig); err != nil {
		return err
	}
	if config.IsDisabled() {
		return ErrDisabled
	}
	// An activation time in the future is applied once the chain reaches it
	if config.Timestamp() != nil && !config.Upgrade.IsActive(blockContext.Timestamp()) {
		return fmt.Errorf("%w: activates at %d, block time %d", ErrNotActive, *config.Timestamp(), blockContext.Timestamp())
	}
	if err := c.target.configure(config); err != nil {
		return err
	}
	// The custody account must exist for native asset balances
	state.CreateAccount(ContractAddress)
	return nil
}
