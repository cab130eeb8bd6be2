package p2p

import (
	"errors"
	"sync"

	"github.com/ethereum/go-ethereum/log"
	lru "github.com/hashicorp/golang-lru/v2"
)

// recentlyDisconnectedCacheSize bounds the recently-disconnected cache so a
// churning remote can't grow it without bound.
const recentlyDisconnectedCacheSize = 256

var errAlreadyConnected = errors.New("p2p: peer already connected")

// PeerPool is the registry of currently connected peers (spec.md §4.F). It
// is single-writer by contract (the owning task domain serializes add/
// remove/broadcast calls), grounded on the bookkeeping go-ethereum's
// p2p.Server keeps inline over its own peer map.
type PeerPool struct {
	mu    sync.RWMutex
	peers map[ID]*Peer

	recentlyDisconnected *lru.Cache[ID, struct{}]

	log    log.Logger
	closed bool
}

// NewPeerPool creates an empty, open pool.
func NewPeerPool() *PeerPool {
	cache, _ := lru.New[ID, struct{}](recentlyDisconnectedCacheSize)
	return &PeerPool{
		peers:                make(map[ID]*Peer),
		recentlyDisconnected: cache,
		log:                  log.New("module", "peerpool"),
	}
}

// Open marks the pool ready to accept peers. A freshly constructed pool is
// already open; Open only matters after Close.
func (pp *PeerPool) Open() {
	pp.mu.Lock()
	defer pp.mu.Unlock()
	pp.closed = false
}

// Add registers p. It rejects a second connection from the same node ID
// with errAlreadyConnected (spec.md §6 ALREADY_CONNECTED), matching the
// disconnect reason a caller should send back to the duplicate dialer.
func (pp *PeerPool) Add(p *Peer) error {
	pp.mu.Lock()
	defer pp.mu.Unlock()
	if pp.closed {
		return errors.New("p2p: peer pool closed")
	}
	if _, ok := pp.peers[p.ID()]; ok {
		return errAlreadyConnected
	}
	pp.peers[p.ID()] = p
	return nil
}

// Remove unregisters id and records it in the recently-disconnected cache
// that RecentlyDisconnected reads. Add does not consult that cache.
func (pp *PeerPool) Remove(id ID) {
	pp.mu.Lock()
	defer pp.mu.Unlock()
	delete(pp.peers, id)
	pp.recentlyDisconnected.Add(id, struct{}{})
}

// Get returns the connected peer for id, if any.
func (pp *PeerPool) Get(id ID) (*Peer, bool) {
	pp.mu.RLock()
	defer pp.mu.RUnlock()
	p, ok := pp.peers[id]
	return p, ok
}

// Len reports the number of currently connected peers.
func (pp *PeerPool) Len() int {
	pp.mu.RLock()
	defer pp.mu.RUnlock()
	return len(pp.peers)
}

// Peers returns a snapshot slice of the currently connected peers.
func (pp *PeerPool) Peers() []*Peer {
	pp.mu.RLock()
	defer pp.mu.RUnlock()
	out := make([]*Peer, 0, len(pp.peers))
	for _, p := range pp.peers {
		out = append(out, p)
	}
	return out
}

// RecentlyDisconnected reports whether id was removed from the pool
// recently enough to still be in the bounded cache. Callers use this to
// decide whether a dial attempt is a suspiciously fast reconnection.
func (pp *PeerPool) RecentlyDisconnected(id ID) bool {
	pp.mu.RLock()
	defer pp.mu.RUnlock()
	return pp.recentlyDisconnected.Contains(id)
}

// Broadcast invokes send on every connected peer. Failures are logged and
// swallowed, never propagated to the caller (spec.md §4.F).
func (pp *PeerPool) Broadcast(send func(*Peer) error) {
	for _, p := range pp.Peers() {
		if err := send(p); err != nil {
			pp.log.Debug("p2p: broadcast send failed", "peer", p.ID(), "err", err)
		}
	}
}

// Close disconnects every peer with CLIENT_QUITTING and marks the pool
// closed to further Add calls.
func (pp *PeerPool) Close() {
	pp.mu.Lock()
	pp.closed = true
	peers := make([]*Peer, 0, len(pp.peers))
	for _, p := range pp.peers {
		peers = append(peers, p)
	}
	pp.mu.Unlock()

	for _, p := range peers {
		p.Disconnect(DiscQuitting)
	}
}
