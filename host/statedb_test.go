// Copyright (C) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package host

import (
	"errors"
	"testing"

	"github.com/holiman/uint256"
	"github.com/luxfi/database/memdb"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/core/tracing"
	"github.com/luxfi/geth/core/types"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/flasharb/contract"
)

var (
	testAddr1 = common.HexToAddress("0x1111111111111111111111111111111111111111")
	testAddr2 = common.HexToAddress("0x2222222222222222222222222222222222222222")
	testAddr3 = common.HexToAddress("0x3333333333333333333333333333333333333333")
	testAddr4 = common.HexToAddress("0x4444444444444444444444444444444444444444")
	testSlot  = common.HexToHash("0x01")
)

func TestStateDB_RevertToSnapshot(t *testing.T) {
	s := NewStateDB(nil)
	s.AddBalance(testAddr1, uint256.NewInt(100), tracing.BalanceChangeTransfer)
	s.SetState(testAddr1, testSlot, common.HexToHash("0xaa"))

	snap := s.Snapshot()
	s.SubBalance(testAddr1, uint256.NewInt(40), tracing.BalanceChangeTransfer)
	s.AddBalance(testAddr2, uint256.NewInt(40), tracing.BalanceChangeTransfer)
	s.SetState(testAddr1, testSlot, common.HexToHash("0xbb"))
	s.SetState(testAddr2, testSlot, common.HexToHash("0xcc"))
	s.AddLog(&types.Log{Address: testAddr1})

	require.Equal(t, uint64(60), s.GetBalance(testAddr1).Uint64())
	require.Len(t, s.Logs(), 1)

	s.RevertToSnapshot(snap)

	require.Equal(t, uint64(100), s.GetBalance(testAddr1).Uint64())
	require.True(t, s.GetBalance(testAddr2).IsZero())
	require.Equal(t, common.HexToHash("0xaa"), s.GetState(testAddr1, testSlot))
	require.Equal(t, common.Hash{}, s.GetState(testAddr2, testSlot))
	require.Empty(t, s.Logs())
}

func TestStateDB_NestedSnapshots(t *testing.T) {
	s := NewStateDB(nil)
	outer := s.Snapshot()
	s.AddBalance(testAddr1, uint256.NewInt(1), tracing.BalanceChangeTransfer)
	inner := s.Snapshot()
	s.AddBalance(testAddr1, uint256.NewInt(2), tracing.BalanceChangeTransfer)

	s.RevertToSnapshot(inner)
	require.Equal(t, uint64(1), s.GetBalance(testAddr1).Uint64())

	s.RevertToSnapshot(outer)
	require.True(t, s.GetBalance(testAddr1).IsZero())

	require.Panics(t, func() { s.RevertToSnapshot(inner) })
}

func TestStateDB_SubBalanceUnderflowPanics(t *testing.T) {
	s := NewStateDB(nil)
	require.Panics(t, func() {
		s.SubBalance(testAddr1, uint256.NewInt(1), tracing.BalanceChangeTransfer)
	})
}

func TestStateDB_CommitPersists(t *testing.T) {
	db := memdb.New()
	s := NewStateDB(db)
	s.AddBalance(testAddr1, uint256.NewInt(7), tracing.BalanceChangeTransfer)
	s.SetState(testAddr2, testSlot, common.HexToHash("0x42"))
	require.NoError(t, s.Commit())

	reopened := NewStateDB(db)
	require.Equal(t, uint64(7), reopened.GetBalance(testAddr1).Uint64())
	require.Equal(t, common.HexToHash("0x42"), reopened.GetState(testAddr2, testSlot))

	// Reverting after a commit only touches post-commit changes
	snap := reopened.Snapshot()
	reopened.SubBalance(testAddr1, uint256.NewInt(7), tracing.BalanceChangeTransfer)
	reopened.RevertToSnapshot(snap)
	require.Equal(t, uint64(7), reopened.GetBalance(testAddr1).Uint64())
}

func TestStateDB_ExistSurvivesCommit(t *testing.T) {
	db := memdb.New()
	s := NewStateDB(db)
	s.CreateAccount(testAddr1)
	s.AddBalance(testAddr2, uint256.NewInt(1), tracing.BalanceChangeTransfer)
	s.CreateAccount(testAddr3)
	s.AddBalance(testAddr3, uint256.NewInt(2), tracing.BalanceChangeTransfer)
	for _, addr := range []common.Address{testAddr1, testAddr2, testAddr3} {
		require.True(t, s.Exist(addr))
	}
	require.NoError(t, s.Commit())

	for _, addr := range []common.Address{testAddr1, testAddr2, testAddr3} {
		require.True(t, s.Exist(addr), addr.Hex())
		require.True(t, NewStateDB(db).Exist(addr), addr.Hex())
	}
	require.False(t, s.Exist(testAddr4))

	// A created account reverted before commit is never persisted
	snap := s.Snapshot()
	s.CreateAccount(testAddr4)
	s.RevertToSnapshot(snap)
	require.NoError(t, s.Commit())
	require.False(t, s.Exist(testAddr4))
}

func TestStateDB_CommitWithoutDatabase(t *testing.T) {
	require.Error(t, NewStateDB(nil).Commit())
}

func TestRuntime_AtomicRevertsOnError(t *testing.T) {
	rt := NewRuntime(NewStateDB(nil), nil)
	rt.State().AddBalance(testAddr1, uint256.NewInt(10), tracing.BalanceChangeTransfer)

	boom := errors.New("boom")
	err := rt.Atomic(func(state contract.StateDB) error {
		state.SubBalance(testAddr1, uint256.NewInt(10), tracing.BalanceChangeTransfer)
		state.AddBalance(testAddr2, uint256.NewInt(10), tracing.BalanceChangeTransfer)
		return boom
	})
	require.ErrorIs(t, err, boom)
	require.Equal(t, uint64(10), rt.State().GetBalance(testAddr1).Uint64())
	require.True(t, rt.State().GetBalance(testAddr2).IsZero())

	err = rt.Atomic(func(state contract.StateDB) error {
		state.SubBalance(testAddr1, uint256.NewInt(4), tracing.BalanceChangeTransfer)
		state.AddBalance(testAddr2, uint256.NewInt(4), tracing.BalanceChangeTransfer)
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, uint64(6), rt.State().GetBalance(testAddr1).Uint64())
	require.Equal(t, uint64(4), rt.State().GetBalance(testAddr2).Uint64())
}

type failingPrecompile struct{}

func (failingPrecompile) Run(
	accessibleState contract.AccessibleState,
	caller common.Address,
	addr common.Address,
	input []byte,
	suppliedGas uint64,
	readOnly bool,
) ([]byte, uint64, error) {
	accessibleState.GetStateDB().AddBalance(caller, uint256.NewInt(1), tracing.BalanceChangeTransfer)
	return []byte{1}, suppliedGas - 1, errors.New("reverted")
}

func TestRuntime_CallRevertsFailedPrecompile(t *testing.T) {
	rt := NewRuntime(NewStateDB(nil), nil)
	ret, gas, err := rt.Call(failingPrecompile{}, testAddr1, testAddr2, nil, 10, false)
	require.Error(t, err)
	require.Nil(t, ret)
	require.Equal(t, uint64(9), gas)
	require.True(t, rt.State().GetBalance(testAddr1).IsZero())
}
