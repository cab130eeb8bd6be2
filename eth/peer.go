package eth

import (
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/nodecore/gnode/core/txpool"
	"github.com/nodecore/gnode/p2p"
)

// requestTimeout bounds how long a GetPooledTransactions request waits for
// its correlated reply before the reqId is forgotten; a late reply is then
// dropped rather than ingested (spec.md §7 retry policy: individual
// retrievals are never retried, so there is nothing to keep the slot for).
const requestTimeout = 10 * time.Second

// Peer wraps a negotiated p2p.Peer running this protocol's message loop and
// satisfies core/txpool.Peer, letting the pool gossip and fetch through it
// without depending on the p2p or eth packages directly. Grounded on the
// teacher's ethProtocol (eth/protocol.go), which holds the same
// (peer, rw) pair; the pending-request table is this package's own
// addition, since the teacher's ancient protocol has no request/response
// correlation at all (GetTxMsg has no reqId).
type Peer struct {
	id p2p.ID
	rw p2p.MsgReadWriter

	nextReqID uint64
	pending   *lru.LRU[uint64, struct{}]

	log log.Logger
}

func newPeer(id p2p.ID, rw p2p.MsgReadWriter) *Peer {
	return &Peer{
		id:      id,
		rw:      rw,
		pending: lru.NewLRU[uint64, struct{}](1024, nil, requestTimeout),
		log:     log.New("proto", "eth", "peer", id.String()),
	}
}

func (p *Peer) ID() txpool.PeerID { return txpool.PeerID(p.id.String()) }

// RequestPooledTransactions sends GetPooledTransactions for hashes and
// records the assigned request ID so the reply can be correlated (and
// stale replies rejected) when it arrives on the protocol's read loop.
func (p *Peer) RequestPooledTransactions(hashes []common.Hash) error {
	reqID := atomic.AddUint64(&p.nextReqID, 1)
	p.pending.Add(reqID, struct{}{})
	return p2p.Send(p.rw, GetPooledTransactionsMsg, &GetPooledTransactionsPacket{
		RequestId: reqID,
		Hashes:    hashes,
	})
}

// AnnounceTransactionHashes sends NewPooledTransactionHashes to this peer.
func (p *Peer) AnnounceTransactionHashes(hashes []common.Hash) error {
	return p2p.Send(p.rw, NewPooledTransactionHashesMsg, NewPooledTransactionHashesPacket(hashes))
}

// takeRequest reports whether reqID is a live outstanding request and, if
// so, consumes it — a reply for an unknown or already-expired reqID is a
// late or duplicate response and must be dropped, not ingested.
func (p *Peer) takeRequest(reqID uint64) bool {
	_, ok := p.pending.Get(reqID)
	if ok {
		p.pending.Remove(reqID)
	}
	return ok
}
