// Copyright (C) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Command flashsim runs a flashloanRequest against a simulated market loaded
// from a TOML scenario and reports the resulting balances.
package main

import (
	"errors"
	"flag"
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/holiman/uint256"
	"github.com/luxfi/database/memdb"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/log"
	loglevel "github.com/luxfi/log/level"

	"github.com/luxfi/flasharb/arb"
	"github.com/luxfi/flasharb/flash"
	"github.com/luxfi/flasharb/host"
	"github.com/luxfi/flasharb/ledger"
)

const defaultGas uint64 = 1_000_000

func main() {
	scenarioPath := flag.String("scenario", "testdata/pancake.toml", "path to scenario TOML file")
	gas := flag.Uint64("gas", defaultGas, "gas supplied to the call")
	flag.Parse()

	sc, err := LoadScenario(*scenarioPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "flashsim: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(sc.LogLevel)
	res, err := Simulate(sc, *gas, logger)
	if err != nil {
		logger.Error("simulation failed", "scenario", *scenarioPath, "kind", flash.KindOf(err), "err", err)
		os.Exit(1)
	}
	if res.Err != nil {
		// A reverted request is a valid outcome, not a simulator failure
		fmt.Printf("reverted (%s): %v\n", res.Kind, res.Err)
		return
	}
	fmt.Printf("residual=%s repayment=%s gasUsed=%d\n", res.Residual, res.Repayment, res.GasUsed)
}

func newLogger(level string) log.Logger {
	switch strings.ToLower(level) {
	case "debug":
		return log.NewTestLogger(loglevel.Debug)
	case "warn":
		return log.NewTestLogger(loglevel.Warn)
	case "error":
		return log.NewTestLogger(loglevel.Error)
	default:
		return log.NewTestLogger(loglevel.Info)
	}
}

// Result is the outcome of one simulated request. Err holds the revert
// reason when the request itself failed; the market is then unchanged.
type Result struct {
	RunID     string
	Residual  *uint256.Int
	Repayment *uint256.Int
	GasUsed   uint64
	Logs      int
	Err       error
	Kind      flash.Kind

	// Before and After hold custody balances by token symbol.
	Before map[string]*uint256.Int
	After  map[string]*uint256.Int

	State *host.StateDB
}

// Simulate seeds a fresh state from sc, submits its request to the
// precompile and commits the outcome.
func Simulate(sc *Scenario, gas uint64, logger log.Logger) (*Result, error) {
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	res := &Result{RunID: uuid.NewString()}

	state := host.NewStateDB(memdb.New())
	state.SetTxHash(common.BytesToHash([]byte(res.RunID)))
	rt := host.NewRuntime(state, nil)

	cfg := arb.NewConfig(nil, mustToken(sc, sc.Reference.Asset0), mustToken(sc, sc.Reference.Asset1), sc.Reference.FeeTier)
	if err := cfg.Verify(&host.ChainConfig{ID: new(big.Int).SetUint64(sc.ChainID)}); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	precompile, err := arb.NewFlashArbContract(cfg, logger)
	if err != nil {
		return nil, err
	}
	state.CreateAccount(arb.ContractAddress)

	if err := seed(sc, ledger.New(state), precompile); err != nil {
		return nil, fmt.Errorf("seed: %w", err)
	}
	if err := state.Commit(); err != nil {
		return nil, fmt.Errorf("commit seed: %w", err)
	}

	req, err := scenarioRequest(sc)
	if err != nil {
		return nil, err
	}
	input, err := arb.PackFlashloanRequest(req)
	if err != nil {
		return nil, err
	}
	caller := common.HexToAddress(sc.Request.Caller)

	res.Before = custodyBalances(sc, state)
	logger.Info("submitting flashloan request",
		"run", res.RunID,
		"caller", caller,
		"path", sc.Request.TokenPath,
		"amount", req.Amount,
		"routing", req.Routing,
	)

	ret, remainingGas, callErr := rt.Call(precompile, caller, arb.ContractAddress, input, gas, false)
	res.GasUsed = gas - remainingGas
	res.State = state
	if callErr != nil {
		res.Err = callErr
		res.Kind = flash.KindOf(callErr)
		res.After = custodyBalances(sc, state)
		logger.Info("flashloan request reverted", "run", res.RunID, "kind", res.Kind, "err", callErr)
		return res, nil
	}

	values, err := arb.FlashArbABI.Unpack("flashloanRequest", ret)
	if err != nil {
		return nil, fmt.Errorf("decode output: %w", err)
	}
	if len(values) != 2 {
		return nil, fmt.Errorf("decode output: %d values", len(values))
	}
	if res.Residual, err = bigToUint256(values[0]); err != nil {
		return nil, err
	}
	if res.Repayment, err = bigToUint256(values[1]); err != nil {
		return nil, err
	}
	res.Logs = len(state.Logs())
	if err := state.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	res.After = custodyBalances(sc, state)
	logger.Info("flashloan request settled",
		"run", res.RunID,
		"residual", res.Residual,
		"repayment", res.Repayment,
		"gasUsed", res.GasUsed,
		"logs", res.Logs,
	)
	return res, nil
}

func seed(sc *Scenario, l *ledger.StateLedger, precompile *arb.FlashArbContract) error {
	for _, b := range sc.Balances {
		holder, err := resolveHolder(b.Holder, precompile)
		if err != nil {
			return err
		}
		if err := l.Mint(mustToken(sc, b.Token), holder, mustAmount(b.Amount)); err != nil {
			return err
		}
	}
	for _, p := range sc.SpotPools {
		token0, token1 := mustToken(sc, p.Token0), mustToken(sc, p.Token1)
		pair := precompile.Spot().PairAddress(token0, token1)
		if err := seedPool(l, pair, token0, token1, p.Reserve0, p.Reserve1); err != nil {
			return err
		}
	}
	for _, p := range sc.TieredPools {
		token0, token1 := mustToken(sc, p.Token0), mustToken(sc, p.Token1)
		pool := precompile.Tiered().PoolAddress(token0, token1, p.FeeTier)
		if err := seedPool(l, pool, token0, token1, p.Reserve0, p.Reserve1); err != nil {
			return err
		}
	}
	return nil
}

func seedPool(l *ledger.StateLedger, pool, token0, token1 common.Address, reserve0, reserve1 string) error {
	if err := l.Mint(token0, pool, mustAmount(reserve0)); err != nil {
		return err
	}
	return l.Mint(token1, pool, mustAmount(reserve1))
}

func resolveHolder(holder string, precompile *arb.FlashArbContract) (common.Address, error) {
	switch {
	case holder == HolderCustody:
		return arb.ContractAddress, nil
	case holder == HolderLender:
		return precompile.LendingPool().Address(), nil
	case common.IsHexAddress(holder):
		return common.HexToAddress(holder), nil
	default:
		return common.Address{}, fmt.Errorf("%w: %q", ErrInvalidHolder, holder)
	}
}

func scenarioRequest(sc *Scenario) (flash.Request, error) {
	path := make([]common.Address, len(sc.Request.TokenPath))
	for i, symbol := range sc.Request.TokenPath {
		path[i] = mustToken(sc, symbol)
	}
	amount, err := ParseAmount(sc.Request.Amount)
	if err != nil {
		return flash.Request{}, err
	}
	routing := make([]uint8, len(sc.Request.Routing))
	for i, code := range sc.Request.Routing {
		routing[i] = uint8(code)
	}
	return flash.Request{
		TokenPath:  path,
		StartIndex: sc.Request.StartIndex,
		Amount:     amount,
		FeeTier:    sc.Request.FeeTier,
		Routing:    routing,
	}, nil
}

func custodyBalances(sc *Scenario, state *host.StateDB) map[string]*uint256.Int {
	l := ledger.New(state)
	balances := make(map[string]*uint256.Int, len(sc.Tokens))
	for symbol := range sc.Tokens {
		balances[symbol] = l.BalanceOf(mustToken(sc, symbol), arb.ContractAddress)
	}
	return balances
}

func bigToUint256(v interface{}) (*uint256.Int, error) {
	b, ok := v.(*big.Int)
	if !ok {
		return nil, fmt.Errorf("decode output: %T", v)
	}
	u, overflow := uint256.FromBig(b)
	if overflow {
		return nil, errors.New("decode output: overflow")
	}
	return u, nil
}

// mustToken and mustAmount are only called after Validate.
func mustToken(sc *Scenario, symbol string) common.Address {
	addr, err := sc.Token(symbol)
	if err != nil {
		panic(err)
	}
	return addr
}

func mustAmount(s string) *uint256.Int {
	amount, err := ParseAmount(s)
	if err != nil {
		panic(err)
	}
	return amount
}
