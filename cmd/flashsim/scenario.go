// Copyright (C) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"

	"github.com/BurntSushi/toml"
	"github.com/holiman/uint256"
	"github.com/joho/godotenv"
	"github.com/luxfi/geth/common"
)

// Holder aliases usable wherever a scenario names an account.
const (
	HolderCustody = "custody"
	HolderLender  = "lender"
)

var (
	ErrUnknownToken  = errors.New("unknown token")
	ErrInvalidAmount = errors.New("invalid amount")
	ErrInvalidHolder = errors.New("invalid holder")
	ErrInvalidRoute  = errors.New("routing code out of range")
)

// Scenario is a market snapshot plus one flashloanRequest to run against it.
type Scenario struct {
	LogLevel string `toml:"log_level"`
	ChainID  uint64 `toml:"chain_id"`

	// Tokens maps symbols to asset addresses.
	Tokens map[string]string `toml:"tokens"`

	Reference   Reference     `toml:"reference"`
	Balances    []Balance     `toml:"balances"`
	SpotPools   []SpotPool    `toml:"spot_pools"`
	TieredPools []TieredPool  `toml:"tiered_pools"`
	Request     RequestConfig `toml:"request"`
}

// Reference is the construction-time configuration of the precompile.
type Reference struct {
	Asset0  string `toml:"asset0"`
	Asset1  string `toml:"asset1"`
	FeeTier uint32 `toml:"fee_tier"`
}

// Balance credits Amount of Token to Holder before the request.
type Balance struct {
	Token  string `toml:"token"`
	Holder string `toml:"holder"`
	Amount string `toml:"amount"`
}

type SpotPool struct {
	Token0   string `toml:"token0"`
	Token1   string `toml:"token1"`
	Reserve0 string `toml:"reserve0"`
	Reserve1 string `toml:"reserve1"`
}

type TieredPool struct {
	Token0   string `toml:"token0"`
	Token1   string `toml:"token1"`
	FeeTier  uint32 `toml:"fee_tier"`
	Reserve0 string `toml:"reserve0"`
	Reserve1 string `toml:"reserve1"`
}

// RequestConfig mirrors flashloanRequest with token symbols.
type RequestConfig struct {
	Caller     string   `toml:"caller"`
	TokenPath  []string `toml:"token_path"`
	StartIndex uint64   `toml:"start_index"`
	Amount     string   `toml:"amount"`
	FeeTier    uint32   `toml:"fee_tier"`
	Routing    []int    `toml:"routing"`
}

// LoadScenario reads a TOML scenario and applies FLASHSIM_* environment
// overrides, loading a .env file first when one exists.
func LoadScenario(path string) (*Scenario, error) {
	sc := &Scenario{LogLevel: "info", ChainID: 56}
	if _, err := toml.DecodeFile(path, sc); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}

	// A missing .env file is fine
	_ = godotenv.Load()
	if err := applyEnvOverrides(sc); err != nil {
		return nil, err
	}
	return sc, nil
}

func applyEnvOverrides(sc *Scenario) error {
	if v := os.Getenv("FLASHSIM_LOG_LEVEL"); v != "" {
		sc.LogLevel = v
	}
	if v := os.Getenv("FLASHSIM_AMOUNT"); v != "" {
		sc.Request.Amount = v
	}
	if v := os.Getenv("FLASHSIM_FEE_TIER"); v != "" {
		tier, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return fmt.Errorf("FLASHSIM_FEE_TIER: %w", err)
		}
		sc.Request.FeeTier = uint32(tier)
	}
	return nil
}

// Token resolves a symbol declared in the tokens table.
func (sc *Scenario) Token(symbol string) (common.Address, error) {
	raw, ok := sc.Tokens[symbol]
	if !ok || !common.IsHexAddress(raw) {
		return common.Address{}, fmt.Errorf("%w: %q", ErrUnknownToken, symbol)
	}
	return common.HexToAddress(raw), nil
}

// Validate checks that every symbol and amount in the scenario resolves.
func (sc *Scenario) Validate() error {
	for _, symbol := range []string{sc.Reference.Asset0, sc.Reference.Asset1} {
		if _, err := sc.Token(symbol); err != nil {
			return fmt.Errorf("reference: %w", err)
		}
	}
	for i, b := range sc.Balances {
		if _, err := sc.Token(b.Token); err != nil {
			return fmt.Errorf("balances[%d]: %w", i, err)
		}
		if _, err := ParseAmount(b.Amount); err != nil {
			return fmt.Errorf("balances[%d]: %w", i, err)
		}
	}
	for i, p := range sc.SpotPools {
		if err := sc.validatePair(p.Token0, p.Token1, p.Reserve0, p.Reserve1); err != nil {
			return fmt.Errorf("spot_pools[%d]: %w", i, err)
		}
	}
	for i, p := range sc.TieredPools {
		if err := sc.validatePair(p.Token0, p.Token1, p.Reserve0, p.Reserve1); err != nil {
			return fmt.Errorf("tiered_pools[%d]: %w", i, err)
		}
	}
	for _, symbol := range sc.Request.TokenPath {
		if _, err := sc.Token(symbol); err != nil {
			return fmt.Errorf("request: %w", err)
		}
	}
	if _, err := ParseAmount(sc.Request.Amount); err != nil {
		return fmt.Errorf("request: %w", err)
	}
	for i, code := range sc.Request.Routing {
		if code < 0 || code > math.MaxUint8 {
			return fmt.Errorf("request: %w: routing[%d] = %d", ErrInvalidRoute, i, code)
		}
	}
	if !common.IsHexAddress(sc.Request.Caller) {
		return fmt.Errorf("request: %w: caller %q", ErrInvalidHolder, sc.Request.Caller)
	}
	return nil
}

func (sc *Scenario) validatePair(token0, token1, reserve0, reserve1 string) error {
	for _, symbol := range []string{token0, token1} {
		if _, err := sc.Token(symbol); err != nil {
			return err
		}
	}
	for _, amount := range []string{reserve0, reserve1} {
		if _, err := ParseAmount(amount); err != nil {
			return err
		}
	}
	return nil
}

// ParseAmount parses a base-10 token amount in the smallest unit.
func ParseAmount(s string) (*uint256.Int, error) {
	amount, err := uint256.FromDecimal(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %w", ErrInvalidAmount, s, err)
	}
	return amount, nil
}
