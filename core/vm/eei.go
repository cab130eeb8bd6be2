package vm

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// EEI is the "capability" collaborator named in spec.md's RunState data
// model: the gas layer never touches a state trie directly, it asks the
// environment. Grounded on the teacher's StateDB interface
// (core/vm/interface.go), narrowed to the handful of queries the dynamic-gas
// handlers in this package actually need.
type EEI interface {
	AccountExists(addr common.Address) bool
	AccountEmpty(addr common.Address) bool
	GetBalance(addr common.Address) *big.Int

	// GetState/GetCommittedState distinguish the in-transaction "current"
	// value from the "original" (block-start) value, as SSTORE's
	// hardfork-dispatched gas rules require both.
	GetState(addr common.Address, key common.Hash) common.Hash
	GetCommittedState(addr common.Address, key common.Hash) common.Hash

	AddRefund(gas uint64)
	SubRefund(gas uint64)
}
