package p2p

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// newTestPeer builds a Peer with a shared eth/66 capability so NewPeer
// succeeds without a real rlpx.Conn; the pool only needs distinct IDs to
// exercise its registry logic.
func newTestPeer(t *testing.T, id ID) *Peer {
	t.Helper()
	protocols := []Protocol{{Name: "eth", Version: 66, Length: 16}}
	p, err := NewPeer(nil, id, "testnode", []Cap{{Name: "eth", Version: 66}}, protocols)
	require.NoError(t, err)
	return p
}

func TestPeerPoolAddGetRemove(t *testing.T) {
	pool := NewPeerPool()
	id := ID{1}
	peer := newTestPeer(t, id)

	require.NoError(t, pool.Add(peer))
	got, ok := pool.Get(id)
	require.True(t, ok)
	require.Same(t, peer, got)
	require.Equal(t, 1, pool.Len())

	pool.Remove(id)
	_, ok = pool.Get(id)
	require.False(t, ok)
	require.Equal(t, 0, pool.Len())
	require.True(t, pool.RecentlyDisconnected(id))
}

// TestPeerPoolAddRejectsDuplicateID checks the ALREADY_CONNECTED guard
// (spec.md §6): a second registration for the same node ID is rejected
// rather than silently replacing the first.
func TestPeerPoolAddRejectsDuplicateID(t *testing.T) {
	pool := NewPeerPool()
	id := ID{2}
	require.NoError(t, pool.Add(newTestPeer(t, id)))
	err := pool.Add(newTestPeer(t, id))
	require.ErrorIs(t, err, errAlreadyConnected)
}

func TestPeerPoolAddRejectsAfterClose(t *testing.T) {
	pool := NewPeerPool()
	pool.Close()
	err := pool.Add(newTestPeer(t, ID{3}))
	require.Error(t, err)
}

func TestPeerPoolPeersSnapshot(t *testing.T) {
	pool := NewPeerPool()
	require.NoError(t, pool.Add(newTestPeer(t, ID{4})))
	require.NoError(t, pool.Add(newTestPeer(t, ID{5})))

	peers := pool.Peers()
	require.Len(t, peers, 2)
}

func TestPeerPoolBroadcastSwallowsErrors(t *testing.T) {
	pool := NewPeerPool()
	require.NoError(t, pool.Add(newTestPeer(t, ID{6})))

	calls := 0
	pool.Broadcast(func(p *Peer) error {
		calls++
		return errAlreadyConnected // any non-nil error; Broadcast must not propagate it
	})
	require.Equal(t, 1, calls)
}
