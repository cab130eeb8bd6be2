package txpool

import (
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/nodecore/gnode/core/types"
)

// HandleAnnouncedTxHashes implements spec.md §4.E "Announcement handling":
// filter out hashes the pool has already handled or that this peer is
// already known to have, and request bodies for what's left in batches of at
// most TxRetrievalLimit hashes. Admitting the returned transactions and
// re-announcing them happens later, in IngestFetchedTransactions, when the
// replies arrive.
func (p *Pool) HandleAnnouncedTxHashes(from Peer, hashes []common.Hash) error {
	p.mu.Lock()
	now := time.Now()
	known := p.knownByPeer[from.ID()]
	if known == nil {
		known = newPeerKnowledge()
		p.knownByPeer[from.ID()] = known
	}

	var toFetch []common.Hash
	for _, h := range hashes {
		_, handled := p.handled[h]
		alreadyKnown := known.Knows(h)
		known.Record(h, now) // record regardless, to suppress echoing

		if !handled && !alreadyKnown {
			toFetch = append(toFetch, h)
		}
	}
	p.mu.Unlock()

	if len(toFetch) == 0 {
		return nil
	}
	for len(toFetch) > 0 {
		batch := toFetch
		if len(batch) > TxRetrievalLimit {
			batch = batch[:TxRetrievalLimit]
		}
		toFetch = toFetch[len(batch):]
		if err := from.RequestPooledTransactions(batch); err != nil {
			return err
		}
	}
	return nil
}

// IngestFetchedTransactions admits every transaction returned in response
// to a GetPooledTransactions round-trip, then re-announces newly admitted
// hashes to every other peer not already known to have them.
func (p *Pool) IngestFetchedTransactions(txs []*types.SignedTx) {
	var newHashes []common.Hash
	for _, tx := range txs {
		if err := p.AddRemoteTx(tx); err == nil {
			newHashes = append(newHashes, tx.Hash())
		}
	}
	if len(newHashes) > 0 {
		p.announce(newHashes)
	}
}

func (p *Pool) announce(hashes []common.Hash) {
	if p.peers == nil {
		return
	}
	p.mu.Lock()
	now := time.Now()
	targets := p.peers.Peers()
	toSend := make(map[PeerID][]common.Hash, len(targets))
	for _, peer := range targets {
		known := p.knownByPeer[peer.ID()]
		if known == nil {
			known = newPeerKnowledge()
			p.knownByPeer[peer.ID()] = known
		}
		for _, h := range hashes {
			if known.Knows(h) {
				continue
			}
			toSend[peer.ID()] = append(toSend[peer.ID()], h)
			known.Record(h, now)
		}
	}
	p.mu.Unlock()

	for _, peer := range targets {
		batch := toSend[peer.ID()]
		if len(batch) == 0 {
			continue
		}
		if err := peer.AnnounceTransactionHashes(batch); err != nil {
			p.log.Debug("Failed to announce transactions", "peer", peer.ID(), "err", err)
		}
	}
}
