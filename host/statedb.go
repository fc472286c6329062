// Copyright (C) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package host provides the ledger runtime the arbitrage precompile runs
// inside: a journaled state database whose mutations can be rolled back to a
// snapshot, and a Runtime that reverts every effect of a call that fails.
package host

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"
	"github.com/luxfi/database"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/core/tracing"
	"github.com/luxfi/geth/core/types"

	"github.com/luxfi/flasharb/contract"
)

var _ contract.StateDB = (*StateDB)(nil)

// Key prefixes in the backing database.
var (
	storagePrefix = []byte("s")
	balancePrefix = []byte("b")
	accountPrefix = []byte("a")
)

var ErrInvalidSnapshot = errors.New("invalid snapshot id")

type storageKey struct {
	addr common.Address
	slot common.Hash
}

// journalEntry undoes one mutation.
type journalEntry func(s *StateDB)

// StateDB is an in-memory EVM state with a mutation journal. Reads fall
// through to the backing database for anything not yet touched; Commit writes
// the dirty set back in one batch.
type StateDB struct {
	db database.Database

	storage  map[storageKey]common.Hash
	balances map[common.Address]*uint256.Int
	accounts map[common.Address]bool
	logs     []*types.Log

	journal   []journalEntry
	snapshots []int

	txHash common.Hash
}

// NewStateDB creates a state on top of db. A nil db starts from empty state
// and cannot be committed.
func NewStateDB(db database.Database) *StateDB {
	return &StateDB{
		db:       db,
		storage:  make(map[storageKey]common.Hash),
		balances: make(map[common.Address]*uint256.Int),
		accounts: make(map[common.Address]bool),
	}
}

// SetTxHash sets the hash reported to precompiles and stamped on logs.
func (s *StateDB) SetTxHash(h common.Hash) {
	s.txHash = h
}

func (s *StateDB) GetState(addr common.Address, slot common.Hash) common.Hash {
	key := storageKey{addr: addr, slot: slot}
	if v, ok := s.storage[key]; ok {
		return v
	}
	v := s.load(storageDBKey(addr, slot))
	return common.BytesToHash(v)
}

func (s *StateDB) SetState(addr common.Address, slot common.Hash, value common.Hash) common.Hash {
	key := storageKey{addr: addr, slot: slot}
	prev, existed := s.storage[key]
	if !existed {
		prev = s.GetState(addr, slot)
	}
	s.storage[key] = value
	s.journal = append(s.journal, func(s *StateDB) {
		if existed {
			s.storage[key] = prev
		} else {
			delete(s.storage, key)
		}
	})
	return prev
}

func (s *StateDB) GetBalance(addr common.Address) *uint256.Int {
	if bal, ok := s.balances[addr]; ok {
		return bal.Clone()
	}
	v := s.load(balanceDBKey(addr))
	return new(uint256.Int).SetBytes(v)
}

func (s *StateDB) AddBalance(addr common.Address, amount *uint256.Int, _ tracing.BalanceChangeReason) uint256.Int {
	prev := s.GetBalance(addr)
	s.setBalance(addr, new(uint256.Int).Add(prev, amount))
	return *prev
}

// SubBalance panics on underflow. Callers check the balance first, as the
// EVM does before any value transfer.
func (s *StateDB) SubBalance(addr common.Address, amount *uint256.Int, _ tracing.BalanceChangeReason) uint256.Int {
	prev := s.GetBalance(addr)
	next, underflow := new(uint256.Int).SubOverflow(prev, amount)
	if underflow {
		panic(fmt.Sprintf("host: balance underflow for %s: have %s, sub %s", addr.Hex(), prev, amount))
	}
	s.setBalance(addr, next)
	return *prev
}

func (s *StateDB) setBalance(addr common.Address, value *uint256.Int) {
	prev, existed := s.balances[addr]
	s.balances[addr] = value
	s.journal = append(s.journal, func(s *StateDB) {
		if existed {
			s.balances[addr] = prev
		} else {
			delete(s.balances, addr)
		}
	})
}

func (s *StateDB) CreateAccount(addr common.Address) {
	if s.accounts[addr] {
		return
	}
	s.accounts[addr] = true
	s.journal = append(s.journal, func(s *StateDB) {
		delete(s.accounts, addr)
	})
}

func (s *StateDB) Exist(addr common.Address) bool {
	if s.accounts[addr] {
		return true
	}
	if _, ok := s.balances[addr]; ok {
		return true
	}
	return s.load(accountDBKey(addr)) != nil
}

func (s *StateDB) AddLog(log *types.Log) {
	log.TxHash = s.txHash
	log.Index = uint(len(s.logs))
	s.logs = append(s.logs, log)
	s.journal = append(s.journal, func(s *StateDB) {
		s.logs = s.logs[:len(s.logs)-1]
	})
}

func (s *StateDB) Logs() []*types.Log {
	return s.logs
}

func (s *StateDB) TxHash() common.Hash {
	return s.txHash
}

// Snapshot returns an id that RevertToSnapshot accepts.
func (s *StateDB) Snapshot() int {
	id := len(s.snapshots)
	s.snapshots = append(s.snapshots, len(s.journal))
	return id
}

// RevertToSnapshot undoes every mutation made since the snapshot was taken,
// newest first. Snapshots taken after id are discarded.
func (s *StateDB) RevertToSnapshot(id int) {
	if id < 0 || id >= len(s.snapshots) {
		panic(fmt.Errorf("%w: %d", ErrInvalidSnapshot, id))
	}
	mark := s.snapshots[id]
	for i := len(s.journal) - 1; i >= mark; i-- {
		s.journal[i](s)
	}
	s.journal = s.journal[:mark]
	s.snapshots = s.snapshots[:id]
}

// Commit writes every dirty balance and storage slot to the backing database
// and resets the journal. Logs are cleared with it.
func (s *StateDB) Commit() error {
	if s.db == nil {
		return errors.New("host: no backing database")
	}
	batch := s.db.NewBatch()
	for key, value := range s.storage {
		if err := batch.Put(storageDBKey(key.addr, key.slot), value.Bytes()); err != nil {
			return fmt.Errorf("host: stage storage: %w", err)
		}
	}
	for addr, bal := range s.balances {
		b := bal.Bytes32()
		if err := batch.Put(balanceDBKey(addr), b[:]); err != nil {
			return fmt.Errorf("host: stage balance: %w", err)
		}
		if err := batch.Put(accountDBKey(addr), []byte{1}); err != nil {
			return fmt.Errorf("host: stage account: %w", err)
		}
	}
	for addr := range s.accounts {
		if err := batch.Put(accountDBKey(addr), []byte{1}); err != nil {
			return fmt.Errorf("host: stage account: %w", err)
		}
	}
	if err := batch.Write(); err != nil {
		return fmt.Errorf("host: commit: %w", err)
	}

	s.storage = make(map[storageKey]common.Hash)
	s.balances = make(map[common.Address]*uint256.Int)
	s.accounts = make(map[common.Address]bool)
	s.journal = nil
	s.snapshots = nil
	s.logs = nil
	return nil
}

func (s *StateDB) load(key []byte) []byte {
	if s.db == nil {
		return nil
	}
	v, err := s.db.Get(key)
	if err != nil {
		// database.ErrNotFound reads as the zero value; anything else means
		// the backing store is broken.
		if errors.Is(err, database.ErrNotFound) {
			return nil
		}
		panic(fmt.Errorf("host: read %x: %w", key, err))
	}
	return v
}

func storageDBKey(addr common.Address, slot common.Hash) []byte {
	key := make([]byte, 0, len(storagePrefix)+common.AddressLength+common.HashLength)
	key = append(key, storagePrefix...)
	key = append(key, addr.Bytes()...)
	return append(key, slot.Bytes()...)
}

func balanceDBKey(addr common.Address) []byte {
	key := make([]byte, 0, len(balancePrefix)+common.AddressLength)
	key = append(key, balancePrefix...)
	return append(key, addr.Bytes()...)
}

func accountDBKey(addr common.Address) []byte {
	key := make([]byte, 0, len(accountPrefix)+common.AddressLength)
	key = append(key, accountPrefix...)
	return append(key, addr.Bytes()...)
}
