package types

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Transaction type bytes per EIP-2718. LegacyTxType has no byte prefix on
// the wire; it is distinguished by the first RLP item being a list rather
// than a single type byte.
const (
	LegacyTxType = iota
	AccessListTxType
	FeeMarketTxType
)

// AccessTuple is one entry of an EIP-2930 access list: an address plus the
// storage keys within it that are pre-declared as touched.
type AccessTuple struct {
	Address     common.Address `json:"address"`
	StorageKeys []common.Hash  `json:"storageKeys"`
}

// AccessList is an EIP-2930 access list.
type AccessList []AccessTuple

// StorageKeys returns the total number of storage keys across every tuple
// of the access list.
func (al AccessList) StorageKeys() int {
	sum := 0
	for _, tuple := range al {
		sum += len(tuple.StorageKeys)
	}
	return sum
}

// innerTx is implemented by each of the three admitted transaction shapes
// (spec.md §3): LegacyTx, AccessListTx, FeeMarketTx. It is the mutable
// per-type payload a Tx and SignedTx wrap; callers never hold an innerTx
// directly.
type innerTx interface {
	txType() byte
	copy() innerTx

	chainID() *big.Int
	accessList() AccessList
	data() []byte
	gas() uint64
	gasPrice() *big.Int
	gasTipCap() *big.Int
	gasFeeCap() *big.Int
	value() *big.Int
	nonce() uint64
	to() *common.Address

	rawSignatureValues() (v, r, s *big.Int)
	setSignatureValues(chainID, v, r, s *big.Int)
}
