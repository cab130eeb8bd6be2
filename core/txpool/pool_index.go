package txpool

import (
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/nodecore/gnode/core/types"
)

// PoolEntry is a pooled transaction plus its admission timestamp (spec.md
// §3 "PoolEntry"). AddedAt drives the cleanup sweep's staleness check.
// Local marks a transaction submitted
// directly to this node (as opposed to one learned about via gossip);
// eviction under pool-overflow pressure (spec.md §4.E, component E) only
// ever displaces a remote entry, following the teacher's legacypool
// locals-are-never-evicted policy (legacypool.Config.NoLocals/journal
// handling) — see DESIGN.md's core/txpool section.
type PoolEntry struct {
	Tx      *types.SignedTx
	AddedAt time.Time
	Local   bool
}

func (e *PoolEntry) Hash() common.Hash { return e.Tx.Hash() }

// handledRecord is a `handled` entry: a hash the pool recently admitted or
// rejected, kept until Cleanup drops it after HandledCleanupTime, to
// suppress re-announcement loops (spec.md §3).
type handledRecord struct {
	addedAt time.Time
}

// peerKnowledge is the KnownByPeer row for one peer: the ordered set of
// hashes that peer is known to have seen, so gossip never echoes back
// (spec.md §3 "KnownByPeer").
type peerKnowledge struct {
	seenAt map[common.Hash]time.Time
}

func newPeerKnowledge() *peerKnowledge {
	return &peerKnowledge{seenAt: make(map[common.Hash]time.Time)}
}

func (k *peerKnowledge) Knows(hash common.Hash) bool {
	_, ok := k.seenAt[hash]
	return ok
}

func (k *peerKnowledge) Record(hash common.Hash, at time.Time) {
	k.seenAt[hash] = at
}
