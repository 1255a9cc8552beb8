package executor

import (
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
)

// Backend is the world state an interpreter runs a call against
type Backend interface {
	Exists(addr common.Address) bool
	Code(addr common.Address) []byte
	Balance(addr common.Address) *uint256.Int
	Storage(addr common.Address, key common.Hash) common.Hash
	// OriginalStorage is the value at the start of the call, false when
	// the slot was never written
	OriginalStorage(addr common.Address, key common.Hash) (common.Hash, bool)
	GasPrice() *big.Int
	BlockNumber() *big.Int
	Accounts() []common.Address
}

// Account is one entry of a MemoryBackend
type Account struct {
	Balance *uint256.Int
	Code    []byte
	Storage map[common.Hash]common.Hash
}

// MemoryBackend holds accounts in memory with a fixed chain context
type MemoryBackend struct {
	accounts map[common.Address]*Account
}

// NewMemoryBackend creates an empty backend
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{accounts: make(map[common.Address]*Account)}
}

var (
	// DefaultCaller is the address every harness call originates from
	DefaultCaller = common.HexToAddress("0xf000000000000000000000000000000000000000")

	// CallerBalance is the starting balance of the caller, 1 ether
	CallerBalance = uint256.NewInt(1_000_000_000_000_000_000)
)

// NewContractBackend fabricates the two accounts of a harness call: a
// funded caller and the contract holding code, at the address the caller's
// first create would produce
func NewContractBackend(caller common.Address, code []byte) (*MemoryBackend, common.Address) {
	b := NewMemoryBackend()
	b.SetAccount(caller, &Account{Balance: new(uint256.Int).Set(CallerBalance)})

	contract := crypto.CreateAddress(caller, 0)
	b.SetAccount(contract, &Account{Balance: new(uint256.Int), Code: code})
	return b, contract
}

// SetAccount adds or replaces an account
func (b *MemoryBackend) SetAccount(addr common.Address, acct *Account) {
	if acct.Balance == nil {
		acct.Balance = new(uint256.Int)
	}
	if acct.Storage == nil {
		acct.Storage = make(map[common.Hash]common.Hash)
	}
	b.accounts[addr] = acct
}

// Account returns the account at addr
func (b *MemoryBackend) Account(addr common.Address) (*Account, bool) {
	acct, ok := b.accounts[addr]
	return acct, ok
}

func (b *MemoryBackend) Exists(addr common.Address) bool {
	_, ok := b.accounts[addr]
	return ok
}

func (b *MemoryBackend) Code(addr common.Address) []byte {
	if acct, ok := b.accounts[addr]; ok {
		return acct.Code
	}
	return nil
}

func (b *MemoryBackend) Balance(addr common.Address) *uint256.Int {
	if acct, ok := b.accounts[addr]; ok {
		return new(uint256.Int).Set(acct.Balance)
	}
	return new(uint256.Int)
}

func (b *MemoryBackend) Storage(addr common.Address, key common.Hash) common.Hash {
	if acct, ok := b.accounts[addr]; ok {
		return acct.Storage[key]
	}
	return common.Hash{}
}

func (b *MemoryBackend) OriginalStorage(addr common.Address, key common.Hash) (common.Hash, bool) {
	acct, ok := b.accounts[addr]
	if !ok {
		return common.Hash{}, false
	}
	v, ok := acct.Storage[key]
	return v, ok
}

// ForEachStorage calls fn for every written slot of addr in key order
func (b *MemoryBackend) ForEachStorage(addr common.Address, fn func(key, value common.Hash)) {
	acct, ok := b.accounts[addr]
	if !ok {
		return
	}
	keys := make([]common.Hash, 0, len(acct.Storage))
	for k := range acct.Storage {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return keys[i].Cmp(keys[j]) < 0
	})
	for _, k := range keys {
		fn(k, acct.Storage[k])
	}
}

// GasPrice is always zero so calls never pay for gas
func (b *MemoryBackend) GasPrice() *big.Int {
	return new(big.Int)
}

// BlockNumber is always one
func (b *MemoryBackend) BlockNumber() *big.Int {
	return big.NewInt(1)
}

// Accounts lists account addresses in ascending order
func (b *MemoryBackend) Accounts() []common.Address {
	out := make([]common.Address, 0, len(b.accounts))
	for addr := range b.accounts {
		out = append(out, addr)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Cmp(out[j]) < 0
	})
	return out
}

// Apply is one state change an interpreter reports after a call
type Apply interface {
	isApply()
}

// StorageUpdate is the final value of one storage slot
type StorageUpdate struct {
	Key   common.Hash
	Value common.Hash
}

// Modify reports the storage an account ended the call with
type Modify struct {
	Address common.Address
	Storage []StorageUpdate
}

// Delete reports an account removed by the call
type Delete struct {
	Address common.Address
}

func (Modify) isApply() {}
func (Delete) isApply() {}
