package executor

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/rawdb"
	"github.com/ethereum/go-ethereum/core/state"
	"github.com/ethereum/go-ethereum/core/tracing"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/core/vm"
	"github.com/ethereum/go-ethereum/core/vm/runtime"

	"kansoc/internal/errors"
)

// Call is one message sent to a contract
type Call struct {
	Caller   common.Address
	Contract common.Address
	Input    []byte
	GasLimit uint64
}

// Outcome is what an interpreter reports for a call. Failure holds a revert
// or exceptional halt; the applies of a failed call are empty.
type Outcome struct {
	ReturnData []byte
	Applies    []Apply
	GasUsed    uint64
	Failure    error
}

// Interpreter runs a call against a backend. An error means the call could
// not be run at all, not that it failed.
type Interpreter interface {
	Call(backend Backend, call Call) (*Outcome, error)
}

// storageIterator is implemented by backends that can list written slots
type storageIterator interface {
	ForEachStorage(addr common.Address, fn func(key, value common.Hash))
}

// GethInterpreter runs calls on the go-ethereum EVM over a throwaway state
// seeded from the backend
type GethInterpreter struct{}

func (GethInterpreter) Call(backend Backend, call Call) (*Outcome, error) {
	statedb, err := state.New(types.EmptyRootHash, state.NewDatabase(rawdb.NewMemoryDatabase()), nil)
	if err != nil {
		return nil, errors.Interpreter(err)
	}
	seed(statedb, backend)

	tracker := newStorageTracker()
	cfg := &runtime.Config{
		Origin:      call.Caller,
		GasLimit:    call.GasLimit,
		GasPrice:    backend.GasPrice(),
		BlockNumber: backend.BlockNumber(),
		State:       statedb,
		EVMConfig: vm.Config{
			Tracer: &tracing.Hooks{OnOpcode: tracker.onOpcode},
		},
	}

	ret, leftOver, err := runtime.Call(call.Contract, call.Input, cfg)
	outcome := &Outcome{
		ReturnData: common.CopyBytes(ret),
		GasUsed:    call.GasLimit - leftOver,
	}
	if err != nil {
		log.Debugf("call to %s failed: %s", call.Contract.Hex(), err)
		outcome.Failure = err
		return outcome, nil
	}

	outcome.Applies = tracker.applies(statedb, backend.Accounts())
	return outcome, nil
}

func seed(statedb *state.StateDB, backend Backend) {
	iter, canIterate := backend.(storageIterator)
	for _, addr := range backend.Accounts() {
		if !backend.Exists(addr) {
			continue
		}
		statedb.CreateAccount(addr)
		if bal := backend.Balance(addr); !bal.IsZero() {
			statedb.AddBalance(addr, bal, tracing.BalanceChangeUnspecified)
		}
		if code := backend.Code(addr); len(code) > 0 {
			statedb.SetCode(addr, code)
		}
		if canIterate {
			iter.ForEachStorage(addr, func(key, _ common.Hash) {
				statedb.SetState(addr, key, backend.Storage(addr, key))
			})
		}
	}
}

// storageTracker records the slots written by SSTORE in first-write order
type storageTracker struct {
	order []common.Address
	keys  map[common.Address][]common.Hash
	seen  map[common.Address]map[common.Hash]bool
}

func newStorageTracker() *storageTracker {
	return &storageTracker{
		keys: make(map[common.Address][]common.Hash),
		seen: make(map[common.Address]map[common.Hash]bool),
	}
}

func (t *storageTracker) onOpcode(pc uint64, op byte, gas, cost uint64, scope tracing.OpContext, rData []byte, depth int, err error) {
	if vm.OpCode(op) != vm.SSTORE || err != nil {
		return
	}
	stack := scope.StackData()
	if len(stack) < 2 {
		return
	}
	addr := scope.Address()
	key := common.Hash(stack[len(stack)-1].Bytes32())

	if t.seen[addr] == nil {
		t.seen[addr] = make(map[common.Hash]bool)
		t.order = append(t.order, addr)
	}
	if !t.seen[addr][key] {
		t.seen[addr][key] = true
		t.keys[addr] = append(t.keys[addr], key)
	}
}

// applies reads back the final value of every written slot. Accounts that
// self-destructed are reported as deleted whether or not they wrote storage.
func (t *storageTracker) applies(statedb *state.StateDB, accounts []common.Address) []Apply {
	var out []Apply
	deleted := make(map[common.Address]bool)
	for _, addr := range append(append([]common.Address{}, t.order...), accounts...) {
		if !deleted[addr] && statedb.HasSelfDestructed(addr) {
			deleted[addr] = true
			out = append(out, Delete{Address: addr})
		}
	}
	for _, addr := range t.order {
		if deleted[addr] {
			continue
		}
		m := Modify{Address: addr}
		for _, key := range t.keys[addr] {
			m.Storage = append(m.Storage, StorageUpdate{Key: key, Value: statedb.GetState(addr, key)})
		}
		out = append(out, m)
	}
	return out
}
