package txpool

import "github.com/ethereum/go-ethereum/common"

// PeerID identifies a connected peer session for gossip bookkeeping
// purposes. It is deliberately opaque to the pool; the eth subprotocol
// shim supplies the concrete value (normally a p2p.ID).
type PeerID string

// Peer is the sub-protocol surface the pool needs from a connected peer to
// drive gossip fan-out (spec.md §4.C/§4.E): requesting bodies for
// announced hashes, and announcing newly admitted hashes onward.
type Peer interface {
	ID() PeerID
	RequestPooledTransactions(hashes []common.Hash) error
	AnnounceTransactionHashes(hashes []common.Hash) error
}

// PeerSource enumerates currently connected peers. The eth subprotocol
// package's peer pool satisfies this; it is kept as a narrow interface
// here so the pool never depends on p2p directly (spec.md's component
// layering: E depends on C, not on B/F concretely).
type PeerSource interface {
	Peers() []Peer
}
