package txpool

import (
	"bytes"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// cheapestRemoteEntry scans every pooled transaction for the remote
// (non-Local) entry with the lowest effective price at baseFee, returning
// its owning sender alongside it. Ties are broken by transaction hash so the
// victim is deterministic. Grounded on the teacher's legacypool discard path
// (legacypool.go's `Add`, via heap.go's priceHeap), which always evicts the
// single cheapest remote transaction to make room rather than scanning for
// the first evictable one.
func (p *Pool) cheapestRemoteEntry() (victim *PoolEntry, sender common.Address, found bool) {
	baseFee := p.config.baseFee()
	for addr, list := range p.bySender {
		for _, entry := range list.Ordered() {
			if entry.Local {
				continue
			}
			if !found {
				victim, sender, found = entry, addr, true
				continue
			}
			cmp := entry.Tx.EffectiveGasPrice(baseFee).Cmp(victim.Tx.EffectiveGasPrice(baseFee))
			entryHash, victimHash := entry.Hash(), victim.Hash()
			if cmp < 0 || (cmp == 0 && bytes.Compare(entryHash.Bytes(), victimHash.Bytes()) < 0) {
				victim, sender, found = entry, addr, true
			}
		}
	}
	return victim, sender, found
}

// evictForSpace removes the single cheapest remote transaction pool-wide if
// candidatePrice is strictly higher, making room for an incoming transaction
// under pool-overflow pressure (spec.md §4.E step 3, component E
// "eviction"). It reports whether a victim was evicted; the caller must
// reject the incoming transaction with ErrPoolFull when it returns false.
func (p *Pool) evictForSpace(candidatePrice *big.Int) bool {
	victim, sender, found := p.cheapestRemoteEntry()
	if !found || candidatePrice.Cmp(victim.Tx.EffectiveGasPrice(p.config.baseFee())) <= 0 {
		return false
	}

	list := p.bySender[sender]
	list.Remove(victim.Tx.Nonce())
	delete(p.hashToSender, victim.Hash())
	p.size--
	if list.Len() == 0 {
		delete(p.bySender, sender)
	}
	p.log.Debug("Evicted cheapest remote transaction for space", "hash", victim.Hash(), "sender", sender)
	return true
}
