package txpool

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

type fakePeer struct {
	id        PeerID
	requested [][]common.Hash
}

func (f *fakePeer) ID() PeerID { return f.id }
func (f *fakePeer) RequestPooledTransactions(hashes []common.Hash) error {
	f.requested = append(f.requested, hashes)
	return nil
}
func (f *fakePeer) AnnounceTransactionHashes(hashes []common.Hash) error { return nil }

func TestHandleAnnouncedTxHashesIdempotent(t *testing.T) {
	pool, _ := newTestPool(t)
	peer := &fakePeer{id: "peer-1"}

	hashes := []common.Hash{common.HexToHash("0x01"), common.HexToHash("0x02")}
	require.NoError(t, pool.HandleAnnouncedTxHashes(peer, hashes))
	require.Len(t, peer.requested, 1)
	require.Len(t, peer.requested[0], 2)

	sizeBefore := pool.Len()
	handledBefore := len(pool.handled)

	require.NoError(t, pool.HandleAnnouncedTxHashes(peer, hashes))
	require.Len(t, peer.requested, 1) // no new retrieval round: everything already known to this peer
	require.Equal(t, sizeBefore, pool.Len())
	require.Equal(t, handledBefore, len(pool.handled))

	for _, h := range hashes {
		require.True(t, pool.knownByPeer[peer.id].Knows(h))
	}
}
