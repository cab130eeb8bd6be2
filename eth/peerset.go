package eth

import (
	"sync"

	"github.com/nodecore/gnode/core/txpool"
)

// PeerSet tracks the peers currently running this protocol and satisfies
// core/txpool.PeerSource, letting the pool broadcast announcements without
// depending on this package. Grounded on the teacher's eth/peerset.go
// registry shape (add/remove/len under one mutex), narrowed to what gossip
// fan-out needs — no td/head tracking, since spec.md scopes the pool to
// transactions, not block sync.
type PeerSet struct {
	mu    sync.RWMutex
	peers map[txpool.PeerID]*Peer
}

func NewPeerSet() *PeerSet {
	return &PeerSet{peers: make(map[txpool.PeerID]*Peer)}
}

func (s *PeerSet) Register(p *Peer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.peers[p.ID()] = p
}

func (s *PeerSet) Unregister(id txpool.PeerID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.peers, id)
}

// Peers implements core/txpool.PeerSource.
func (s *PeerSet) Peers() []txpool.Peer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]txpool.Peer, 0, len(s.peers))
	for _, p := range s.peers {
		out = append(out, p)
	}
	return out
}

func (s *PeerSet) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.peers)
}
