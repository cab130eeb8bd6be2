package txpool

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/nodecore/gnode/core/types"
)

// GetPooledTransactions returns the pooled bodies for whichever of hashes
// are currently present, silently skipping the rest — the eth/66+
// GetPooledTransactions responder is not obligated to explain a miss, per
// spec.md §4.C.
func (p *Pool) GetPooledTransactions(hashes []common.Hash) []*types.SignedTx {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]*types.SignedTx, 0, len(hashes))
	for _, h := range hashes {
		sender, ok := p.hashToSender[h]
		if !ok {
			continue
		}
		list, ok := p.bySender[sender]
		if !ok {
			continue
		}
		for _, entry := range list.Ordered() {
			if entry.Hash() == h {
				out = append(out, entry.Tx)
				break
			}
		}
	}
	return out
}
