package executor

import (
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/tliron/commonlog"

	"kansoc/internal/abi"
	"kansoc/internal/assembler"
	"kansoc/internal/errors"
)

var log = commonlog.GetLogger("kansoc.executor")

// DefaultGasLimit is the gas every call gets unless configured otherwise
const DefaultGasLimit = 10_000_000

// Config tunes an Executor. Zero fields take defaults.
type Config struct {
	GasLimit    uint64
	Caller      common.Address
	Interpreter Interpreter
}

// Result is the outcome of one harness call. ChangeSet maps
// "{address}.{key}" to the slot's new value and "{address}" to nil for a
// deleted account.
type Result struct {
	Contract   common.Address
	ChangeSet  map[string]*common.Hash
	ReturnData []byte
	Failure    error
	GasUsed    uint64
}

// Succeeded reports whether the call completed without reverting
func (r *Result) Succeeded() bool {
	return r.Failure == nil
}

// ReturnWord decodes the first word of the return data
func (r *Result) ReturnWord() (*uint256.Int, error) {
	return abi.DecodeWord(r.ReturnData)
}

// Keys lists the change-set keys in lexical order
func (r *Result) Keys() []string {
	keys := make([]string, 0, len(r.ChangeSet))
	for k := range r.ChangeSet {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// StorageKey is the change-set key of a storage slot
func StorageKey(contract common.Address, slot uint64) string {
	return SlotKey(contract, common.Hash(uint256.NewInt(slot).Bytes32()))
}

// SlotKey is the change-set key of a raw storage key
func SlotKey(addr common.Address, key common.Hash) string {
	return fmt.Sprintf("%s.%s", addr.Hex(), key.Hex())
}

// ChangeSet flattens applies into change-set entries
func ChangeSet(applies []Apply) map[string]*common.Hash {
	out := make(map[string]*common.Hash)
	for _, a := range applies {
		switch a := a.(type) {
		case Modify:
			for _, u := range a.Storage {
				value := u.Value
				out[SlotKey(a.Address, u.Key)] = &value
			}
		case Delete:
			out[a.Address.Hex()] = nil
		}
	}
	return out
}

// Executor calls the transitions of one executable. Every call runs
// against freshly fabricated accounts, so calls never see each other's
// effects.
type Executor struct {
	exe    *assembler.Executable
	table  *abi.Table
	config Config
}

// New creates an executor for exe whose transitions are listed in table
func New(exe *assembler.Executable, table *abi.Table, config Config) *Executor {
	if config.GasLimit == 0 {
		config.GasLimit = DefaultGasLimit
	}
	if config.Caller == (common.Address{}) {
		config.Caller = DefaultCaller
	}
	if config.Interpreter == nil {
		config.Interpreter = GethInterpreter{}
	}
	return &Executor{exe: exe, table: table, config: config}
}

// Table exposes the signatures the executor can call
func (e *Executor) Table() *abi.Table {
	return e.table
}

// Execute calls the named transition with args
func (e *Executor) Execute(fn string, args ...abi.Value) (*Result, error) {
	input, err := e.table.GenerateTransactionData(fn, args...)
	if err != nil {
		return nil, err
	}
	log.Infof("executing %s with %d arguments", fn, len(args))
	return e.ExecuteData(input)
}

// ExecuteText calls the named transition, parsing each argument against
// the transition's ABI parameter type
func (e *Executor) ExecuteText(fn string, texts ...string) (*Result, error) {
	sig, ok := e.table.Lookup(fn)
	if !ok {
		return nil, errors.InvalidCall(fmt.Sprintf("no external function named '%s'", fn))
	}
	args, err := abi.ParseArguments(sig, texts)
	if err != nil {
		return nil, err
	}
	return e.Execute(fn, args...)
}

// ExecuteData sends raw call data to the contract
func (e *Executor) ExecuteData(input []byte) (*Result, error) {
	backend, contract := NewContractBackend(e.config.Caller, e.exe.Bytecode)

	outcome, err := e.config.Interpreter.Call(backend, Call{
		Caller:   e.config.Caller,
		Contract: contract,
		Input:    input,
		GasLimit: e.config.GasLimit,
	})
	if err != nil {
		return nil, err
	}

	result := &Result{
		Contract:   contract,
		ChangeSet:  ChangeSet(outcome.Applies),
		ReturnData: outcome.ReturnData,
		Failure:    outcome.Failure,
		GasUsed:    outcome.GasUsed,
	}
	if result.Failure != nil {
		log.Infof("call reverted after %d gas: %s", result.GasUsed, result.Failure)
	} else {
		log.Debugf("call used %d gas, %d storage changes", result.GasUsed, len(result.ChangeSet))
	}
	return result, nil
}
