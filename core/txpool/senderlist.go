package txpool

import (
	"math/big"
	"sort"

	"github.com/nodecore/gnode/core/types"
)

// senderList holds every pooled transaction for one sender, keyed by nonce
// and kept in ascending-nonce order. Grounded on the teacher's
// core/txpool/legacypool/list.go sortedMap/list pair, simplified from its
// AVL-tree index to a plain nonce-keyed map plus an on-demand sort, since
// spec.md does not require the strict/non-strict gapped-queue distinction
// the teacher's pending/queued split exists for.
type senderList struct {
	byNonce map[uint64]*PoolEntry
}

func newSenderList() *senderList {
	return &senderList{byNonce: make(map[uint64]*PoolEntry)}
}

func (l *senderList) Len() int { return len(l.byNonce) }

func (l *senderList) Get(nonce uint64) *PoolEntry { return l.byNonce[nonce] }

// Put inserts or replaces the entry at tx's nonce.
func (l *senderList) Put(entry *PoolEntry) {
	l.byNonce[entry.Tx.Nonce()] = entry
}

// Remove deletes the entry at nonce, reporting whether one was present.
func (l *senderList) Remove(nonce uint64) bool {
	if _, ok := l.byNonce[nonce]; !ok {
		return false
	}
	delete(l.byNonce, nonce)
	return true
}

// Ordered returns every entry sorted by ascending nonce.
func (l *senderList) Ordered() []*PoolEntry {
	out := make([]*PoolEntry, 0, len(l.byNonce))
	for _, e := range l.byNonce {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Tx.Nonce() < out[j].Tx.Nonce() })
	return out
}

// replacementBumpPercent is REPLACEMENT_BUMP_PERCENT from spec.md §6: a
// replacement at the same (sender, nonce) must pay at least 10% more than
// the transaction it displaces.
const replacementBumpPercent = 10

// wouldReplace reports whether candidate may displace the existing entry at
// the same nonce, per spec.md §4.E step 10: the new effective price must be
// at least 110% of the old one. baseFee may be nil (pre-London pools).
func wouldReplace(old, candidate *types.SignedTx, baseFee *big.Int) bool {
	oldPrice := old.EffectiveGasPrice(baseFee)
	newPrice := candidate.EffectiveGasPrice(baseFee)

	threshold := new(big.Int).Mul(oldPrice, big.NewInt(100+replacementBumpPercent))
	threshold.Div(threshold, big.NewInt(100))
	return newPrice.Cmp(threshold) >= 0
}
