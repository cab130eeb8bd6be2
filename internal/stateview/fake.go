package stateview

import (
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Fake is an in-memory StateView used by tests and local tooling: a plain
// map keyed by address, with storage nested underneath.
type Fake struct {
	mu       sync.RWMutex
	accounts map[common.Address]Account
	storage  map[common.Address]map[common.Hash]common.Hash
}

// NewFake returns an empty Fake state view.
func NewFake() *Fake {
	return &Fake{
		accounts: make(map[common.Address]Account),
		storage:  make(map[common.Address]map[common.Hash]common.Hash),
	}
}

// SetAccount installs the nonce/balance for addr.
func (f *Fake) SetAccount(addr common.Address, nonce uint64, balance *big.Int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.accounts[addr] = Account{Nonce: nonce, Balance: new(big.Int).Set(balance)}
}

// SetStorage installs the value at (addr, key).
func (f *Fake) SetStorage(addr common.Address, key, value common.Hash) {
	f.mu.Lock()
	defer f.mu.Unlock()
	slots, ok := f.storage[addr]
	if !ok {
		slots = make(map[common.Hash]common.Hash)
		f.storage[addr] = slots
	}
	slots[key] = value
}

func (f *Fake) GetAccount(addr common.Address) Account {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if acc, ok := f.accounts[addr]; ok {
		return Account{Nonce: acc.Nonce, Balance: new(big.Int).Set(acc.Balance)}
	}
	return Account{Balance: new(big.Int)}
}

func (f *Fake) StorageLoad(addr common.Address, key common.Hash) common.Hash {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.storage[addr][key]
}
