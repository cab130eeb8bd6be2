package eth

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/nodecore/gnode/core/types"
)

// Message codes, relative to this protocol's offset (spec.md §4.C, §6).
const (
	TransactionsMsg               = 0x00
	NewPooledTransactionHashesMsg = 0x01
	GetPooledTransactionsMsg      = 0x02
	PooledTransactionsMsg         = 0x03
)

// TransactionsPacket is the body of a direct (unsolicited) Transactions
// flood, spec.md §4.C.
type TransactionsPacket []*types.SignedTx

// NewPooledTransactionHashesPacket announces hashes the sender holds but
// has not pushed the bodies for.
type NewPooledTransactionHashesPacket []common.Hash

// GetPooledTransactionsPacket requests the bodies for hashes, correlated by
// RequestId to its PooledTransactionsPacket reply (SPEC_FULL.md's
// request/response correlation supplement to spec.md §4.C).
type GetPooledTransactionsPacket struct {
	RequestId uint64
	Hashes    []common.Hash
}

// PooledTransactionsPacket is the reply to a GetPooledTransactionsPacket
// carrying the same RequestId.
type PooledTransactionsPacket struct {
	RequestId    uint64
	Transactions []*types.SignedTx
}
