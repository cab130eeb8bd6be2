// Package stateview defines the read-only account view the transaction
// pool consults during admission. It is the collaborator boundary spec.md
// calls out ("the pool consumes a read-only StateView capability") in
// place of a full state trie, grounded on the teacher's txpool-facing
// currentState.GetNonce/GetBalance calls in
// core/txpool/legacypool/queue.go.
package stateview

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Account is the subset of account state the pool needs to admit or reject
// a transaction.
type Account struct {
	Nonce   uint64
	Balance *big.Int
}

// StateView is a read-only snapshot of account and storage state. The pool
// never mutates it and never blocks it; implementations may back it with a
// live state trie, a test fixture, or a frozen block snapshot.
type StateView interface {
	// GetAccount returns the current nonce/balance for addr. A never-seen
	// address returns the zero account, not an error.
	GetAccount(addr common.Address) Account

	// StorageLoad returns the 32-byte value at (addr, key), or the zero
	// hash if unset.
	StorageLoad(addr common.Address, key common.Hash) common.Hash
}
