package txpool

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// BlockTx is the minimal shape the pool needs from an included transaction
// for reconciliation: its sender and nonce. Callers (the block-import /
// sync driver spec.md treats as an external collaborator) derive this from
// the block body.
type BlockTx struct {
	Sender common.Address
	Nonce  uint64
}

// RemoveNewBlockTxs implements spec.md §4.E "Block reconciliation": for
// every transaction now included in a block, drop the matching
// (sender, nonce) pool entry. Removing a sender's last entry removes the
// sender key itself.
func (p *Pool) RemoveNewBlockTxs(included []BlockTx) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, btx := range included {
		list, ok := p.bySender[btx.Sender]
		if !ok {
			continue
		}
		entry := list.Get(btx.Nonce)
		if entry == nil {
			continue
		}
		list.Remove(btx.Nonce)
		delete(p.hashToSender, entry.Hash())
		p.size--
		if list.Len() == 0 {
			delete(p.bySender, btx.Sender)
		}
	}
}

// Cleanup implements spec.md §4.E "Cleanup": sweeps pool entries and
// knownByPeer records older than PooledStorageTimeLimit, and handled
// records older than HandledCleanupTime.
func (p *Pool) Cleanup() {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := time.Now()

	for sender, list := range p.bySender {
		for _, entry := range list.Ordered() {
			if now.Sub(entry.AddedAt) > p.config.PooledStorageTimeLimit {
				list.Remove(entry.Tx.Nonce())
				delete(p.hashToSender, entry.Hash())
				p.size--
			}
		}
		if list.Len() == 0 {
			delete(p.bySender, sender)
		}
	}

	for peerID, known := range p.knownByPeer {
		for hash, seenAt := range known.seenAt {
			if now.Sub(seenAt) > p.config.PooledStorageTimeLimit {
				delete(known.seenAt, hash)
			}
		}
		if len(known.seenAt) == 0 {
			delete(p.knownByPeer, peerID)
		}
	}

	for hash, rec := range p.handled {
		if now.Sub(rec.addedAt) > p.config.HandledCleanupTime {
			delete(p.handled, hash)
		}
	}
}
