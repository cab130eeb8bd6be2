package txpool

import (
	"fmt"
	"time"

	"github.com/nodecore/gnode/core/types"
)

// AddTx runs tx through the 11-step acceptance pipeline of spec.md §4.E as a
// locally submitted transaction and, if accepted, inserts it into the
// sender's ordered list and records it in handled. Local transactions are
// never chosen as an eviction victim under pool-overflow pressure (step 3).
// It returns nil on admission (including a replace-by-fee), and otherwise an
// error naming the rule that rejected tx.
func (p *Pool) AddTx(tx *types.SignedTx) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.addTxLocked(tx, true)
}

// AddRemoteTx runs tx through the same acceptance pipeline as AddTx, but
// marks it remote: a transaction learned about from the network rather than
// submitted directly to this node, and therefore eligible to be evicted to
// make room for a higher-priced incoming transaction (spec.md §4.E step 3).
// IngestFetchedTransactions uses this for every gossip-delivered transaction.
func (p *Pool) AddRemoteTx(tx *types.SignedTx) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.addTxLocked(tx, false)
}

func (p *Pool) addTxLocked(tx *types.SignedTx, local bool) (err error) {
	if p.state != stateOpened && p.state != stateStarted {
		return errPoolNotOpen
	}
	// A rejected hash is recorded in handled too, so gossip does not fetch it
	// again while the record lasts.
	defer func() {
		if err != nil {
			p.handled[tx.Hash()] = handledRecord{addedAt: time.Now()}
		}
	}()

	// 1. Reject if not signed.
	if !tx.IsSigned() {
		return ErrUnsigned
	}

	sender, err := types.Sender(p.signer, tx)
	if err != nil {
		return fmt.Errorf("txpool: recover sender: %w", err)
	}

	// 2. Per-sender quota.
	if list, ok := p.bySender[sender]; ok && list.Len() >= MaxPerSender {
		if existing := list.Get(tx.Nonce()); existing == nil {
			return ErrSenderQuotaReached
		}
	}

	// 3. Pool total quota: make room by evicting the cheapest remote
	// transaction pool-wide if tx outbids it, otherwise reject (spec.md
	// §4.E step 3, component E "eviction"). A duplicate-hash re-add of an
	// already-pooled tx never needs room, so it skips straight through.
	hash := tx.Hash()
	if p.size >= PoolMaxSize {
		if _, exists := p.hashToSender[hash]; !exists {
			if !p.evictForSpace(tx.EffectiveGasPrice(p.config.baseFee())) {
				return ErrPoolFull
			}
		}
	}

	// 4. Reject duplicate hash.
	if _, exists := p.hashToSender[hash]; exists {
		return ErrAlreadyKnown
	}

	// 5. Data size cap.
	if len(tx.Data()) > MaxDataBytes {
		return ErrOversizedData
	}

	// 6. Nonce floor.
	account := p.view.GetAccount(sender)
	if tx.Nonce() < account.Nonce {
		return ErrNonceTooLow
	}

	// 7. Balance covers upfront cost.
	upfront := tx.UpfrontCost(p.config.baseFee())
	if account.Balance.Cmp(upfront) < 0 {
		return ErrInsufficientFunds
	}

	// 8. Gas limit within block limit.
	if tx.Gas() > p.config.BlockGasLimit {
		return ErrGasLimitTooHigh
	}

	// 9. Minimum gas price.
	if tx.EffectiveGasPrice(p.config.baseFee()).Cmp(p.config.MinGasPrice) < 0 {
		return ErrUnderpriced
	}

	list, ok := p.bySender[sender]
	if !ok {
		list = newSenderList()
		p.bySender[sender] = list
	}

	// 10. Replace-by-fee at an occupied nonce.
	now := time.Now()
	if existing := list.Get(tx.Nonce()); existing != nil {
		if !wouldReplace(existing.Tx, tx, p.config.baseFee()) {
			return ErrReplaceUnderpriced
		}
		delete(p.hashToSender, existing.Hash())
		p.size--
	}

	// 11. Insert, maintaining ascending-nonce order via the map; record handled.
	list.Put(&PoolEntry{Tx: tx, AddedAt: now, Local: local})
	p.hashToSender[hash] = sender
	p.handled[hash] = handledRecord{addedAt: now}
	p.size++

	p.log.Debug("Pooled new transaction", "hash", hash, "sender", sender, "nonce", tx.Nonce())
	return nil
}

