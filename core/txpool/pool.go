// Package txpool implements the admission-controlled, per-sender-ordered
// pending transaction buffer described in spec.md §4.E: acceptance,
// replace-by-fee, eviction, block-inclusion reconciliation, and gossip
// fan-out. It is grounded on the teacher's core/txpool/legacypool package,
// simplified to the single-pool shape spec.md calls for (no separate
// pending/queued split, no blob pool).
package txpool

import (
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"

	"github.com/nodecore/gnode/core/types"
	"github.com/nodecore/gnode/internal/stateview"
)

// Tunables from spec.md §6 "Pool-tunable constants".
const (
	PoolMaxSize      = 5000
	MaxPerSender     = 100
	MaxDataBytes     = 128 * 1024
	TxRetrievalLimit = 256

	DefaultPooledStorageTimeLimit = 3 * time.Hour
	DefaultHandledCleanupTime     = 6 * time.Hour
	DefaultCleanupInterval        = time.Minute
)

// Config holds the pool's runtime parameters, mirroring the teacher's
// legacypool.Config shape but trimmed to what spec.md's acceptance
// pipeline and cleanup sweep actually consult.
type Config struct {
	MinGasPrice            *big.Int
	BlockGasLimit          uint64
	CurrentBaseFee         *big.Int
	PooledStorageTimeLimit time.Duration
	HandledCleanupTime     time.Duration
	CleanupInterval        time.Duration
}

// baseFee returns the base fee acceptance checks should use; nil is valid
// and signals a pre-London chain (FeeMarket transactions fall back to
// their GasFeeCap per SignedTx.EffectiveGasPrice).
func (c *Config) baseFee() *big.Int { return c.CurrentBaseFee }

func (c *Config) sanitize() {
	if c.MinGasPrice == nil {
		c.MinGasPrice = new(big.Int)
	}
	if c.BlockGasLimit == 0 {
		c.BlockGasLimit = 30_000_000
	}
	if c.PooledStorageTimeLimit == 0 {
		c.PooledStorageTimeLimit = DefaultPooledStorageTimeLimit
	}
	if c.HandledCleanupTime == 0 {
		c.HandledCleanupTime = DefaultHandledCleanupTime
	}
	if c.CleanupInterval == 0 {
		c.CleanupInterval = DefaultCleanupInterval
	}
}

// lifecycle state, per spec.md §4.E "Lifecycle": open → start → stop → close.
type lifecycleState int

const (
	stateFresh lifecycleState = iota
	stateOpened
	stateStarted
	stateStopped
	stateClosed
)

// Pool is the transaction pool. All mutating operations are serialized
// under a single mutex, satisfying spec.md §5's "no two acceptance
// pipelines observe an intermediate state" ordering guarantee the way the
// teacher's legacypool does it: one pool-wide lock rather than per-sender
// locking.
type Pool struct {
	mu     sync.Mutex
	state  lifecycleState
	config Config
	signer types.Signer
	view   stateview.StateView
	peers  PeerSource

	bySender     map[common.Address]*senderList
	hashToSender map[common.Hash]common.Address
	handled      map[common.Hash]handledRecord
	knownByPeer  map[PeerID]*peerKnowledge
	size         int

	stopCh chan struct{}
	wg     sync.WaitGroup

	log log.Logger
}

// New constructs a Pool bound to view for account lookups, signer for
// sender recovery, and peers for gossip fan-out. The pool is not usable
// until Open and Start are called.
func New(config Config, signer types.Signer, view stateview.StateView, peers PeerSource) *Pool {
	config.sanitize()
	return &Pool{
		config:       config,
		signer:       signer,
		view:         view,
		peers:        peers,
		bySender:     make(map[common.Address]*senderList),
		hashToSender: make(map[common.Hash]common.Address),
		handled:      make(map[common.Hash]handledRecord),
		knownByPeer:  make(map[PeerID]*peerKnowledge),
		log:          log.New("module", "txpool"),
	}
}

// Open transitions the pool from fresh to opened. It is idempotent,
// returning false if the pool was already opened (spec.md §4.E).
func (p *Pool) Open() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != stateFresh {
		return false
	}
	p.state = stateOpened
	return true
}

// Start arms the cleanup timer. Re-announcement has no timer: it is driven
// inline from IngestFetchedTransactions, which announces each newly admitted
// gossip transaction as soon as it is admitted.
func (p *Pool) Start() {
	p.mu.Lock()
	if p.state != stateOpened && p.state != stateStopped {
		p.mu.Unlock()
		return
	}
	p.state = stateStarted
	p.stopCh = make(chan struct{})
	stop := p.stopCh
	p.mu.Unlock()

	p.wg.Add(1)
	go p.cleanupLoop(stop)
}

func (p *Pool) cleanupLoop(stop chan struct{}) {
	defer p.wg.Done()
	ticker := time.NewTicker(p.config.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			p.Cleanup()
		case <-stop:
			return
		}
	}
}

// Stop disarms the cleanup timer. It does not cancel GetPooledTransactions
// requests already sent to peers, since the pool does not track them. An
// admission already holding the pool lock completes and its result is kept;
// admissions attempted after Stop are rejected.
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.state != stateStarted {
		p.mu.Unlock()
		return
	}
	p.state = stateStopped
	stop := p.stopCh
	p.mu.Unlock()

	close(stop)
	p.wg.Wait()
}

// Close clears all pool state. The pool cannot be reused afterward.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state = stateClosed
	p.bySender = make(map[common.Address]*senderList)
	p.hashToSender = make(map[common.Hash]common.Address)
	p.handled = make(map[common.Hash]handledRecord)
	p.knownByPeer = make(map[PeerID]*peerKnowledge)
	p.size = 0
}

// Len returns the total number of pooled transactions.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.size
}
