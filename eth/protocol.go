// Package eth implements the subset of the eth sub-protocol spec.md §4.C
// names as "needed by the pool": transaction gossip and pooled-transaction
// retrieval. Grounded on the teacher's eth/protocol.go Protocol-factory /
// runEthProtocol / per-peer handle-loop shape; the message set itself
// (NewPooledTransactionHashes/GetPooledTransactions/PooledTransactions/
// Transactions) is not present in the retrieved teacher snapshot (its
// eth/protocol.go predates eth/66 by over a decade — StatusMsg/TxMsg/
// GetBlockHashesMsg/BlocksMsg), so the message codes and RLP shapes come
// directly from spec.md §4.C/§6.
package eth

import (
	"github.com/nodecore/gnode/p2p"
)

const (
	ProtocolName    = "eth"
	ProtocolVersion = 66
	ProtocolLength  = uint64(16)

	// ProtocolMaxMsgSize bounds a single frame's decoded size, mirroring the
	// teacher's ProtocolMaxMsgSize guard in eth/protocol.go.
	ProtocolMaxMsgSize = 10 * 1024 * 1024
)

// Protocol builds the p2p.Protocol descriptor that registers this package's
// message handling with a peer, the same factory shape as the teacher's
// EthProtocol(backend) *p2p.Protocol. peers is registered/unregistered as
// connections come and go, and is what core/txpool.Pool broadcasts through.
func Protocol(backend Backend, peers *PeerSet) p2p.Protocol {
	return p2p.Protocol{
		Name:    ProtocolName,
		Version: ProtocolVersion,
		Length:  ProtocolLength,
		Run: func(peer *p2p.Peer, rw p2p.MsgReadWriter) error {
			return runEthProtocol(backend, peers, peer, rw)
		},
	}
}
