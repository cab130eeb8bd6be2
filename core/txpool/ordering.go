package txpool

import (
	"bytes"
	"container/heap"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/nodecore/gnode/core/types"
)

// headHeap is a max-heap over the head (lowest-nonce) transaction of each
// sender's list, ordered by effective price at a fixed base fee, with
// sender-address as a deterministic tie-break. Grounded on the teacher's
// core/txpool/legacypool/heap.go priceHeap, adapted from a flat
// all-transactions heap to a per-sender-head heap since spec.md's
// getOrderedTransactions must respect each sender's ascending-nonce order.
type headHeap struct {
	senders []common.Address
	heads   map[common.Address]*PoolEntry
	baseFee *big.Int
}

func (h *headHeap) Len() int { return len(h.senders) }

func (h *headHeap) Less(i, j int) bool {
	a, b := h.heads[h.senders[i]], h.heads[h.senders[j]]
	pa, pb := a.Tx.EffectiveGasPrice(h.baseFee), b.Tx.EffectiveGasPrice(h.baseFee)
	if c := pa.Cmp(pb); c != 0 {
		return c > 0 // higher price sorts first
	}
	return bytes.Compare(h.senders[i].Bytes(), h.senders[j].Bytes()) < 0
}

func (h *headHeap) Swap(i, j int) { h.senders[i], h.senders[j] = h.senders[j], h.senders[i] }

func (h *headHeap) Push(x interface{}) { h.senders = append(h.senders, x.(common.Address)) }

func (h *headHeap) Pop() interface{} {
	old := h.senders
	n := len(old)
	addr := old[n-1]
	h.senders = old[:n-1]
	return addr
}

// GetOrderedTransactions returns every pooled transaction in block-building
// order (spec.md §4.E "Ordering for block construction"): at each step the
// sender whose head transaction has the highest effective price at baseFee
// is popped and appended, ties broken by sender address, until every
// sender's list is drained. Within a sender the result is ascending-nonce.
func (p *Pool) GetOrderedTransactions(baseFee *big.Int) []*types.SignedTx {
	p.mu.Lock()
	defer p.mu.Unlock()

	remaining := make(map[common.Address][]*PoolEntry, len(p.bySender))
	h := &headHeap{heads: make(map[common.Address]*PoolEntry), baseFee: baseFee}
	for sender, list := range p.bySender {
		ordered := list.Ordered()
		if len(ordered) == 0 {
			continue
		}
		remaining[sender] = ordered[1:]
		h.heads[sender] = ordered[0]
		h.senders = append(h.senders, sender)
	}
	heap.Init(h)

	var out []*types.SignedTx
	for h.Len() > 0 {
		sender := heap.Pop(h).(common.Address)
		entry := h.heads[sender]
		out = append(out, entry.Tx)

		rest := remaining[sender]
		if len(rest) == 0 {
			delete(h.heads, sender)
			delete(remaining, sender)
			continue
		}
		h.heads[sender] = rest[0]
		remaining[sender] = rest[1:]
		heap.Push(h, sender)
	}
	return out
}
