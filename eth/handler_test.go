package eth

import (
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/nodecore/gnode/core/txpool"
	"github.com/nodecore/gnode/core/types"
	"github.com/nodecore/gnode/p2p"
)

type fakeBackend struct {
	mu       sync.Mutex
	ingested []*types.SignedTx
	announced []struct {
		from   txpool.Peer
		hashes []common.Hash
	}
	pooled map[common.Hash]*types.SignedTx
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{pooled: make(map[common.Hash]*types.SignedTx)}
}

func (b *fakeBackend) AddTx(tx *types.SignedTx) error { return nil }

func (b *fakeBackend) IngestFetchedTransactions(txs []*types.SignedTx) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ingested = append(b.ingested, txs...)
}

func (b *fakeBackend) HandleAnnouncedTxHashes(from txpool.Peer, hashes []common.Hash) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.announced = append(b.announced, struct {
		from   txpool.Peer
		hashes []common.Hash
	}{from, hashes})
	return nil
}

func (b *fakeBackend) GetPooledTransactions(hashes []common.Hash) []*types.SignedTx {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []*types.SignedTx
	for _, h := range hashes {
		if tx, ok := b.pooled[h]; ok {
			out = append(out, tx)
		}
	}
	return out
}

// TestHandleTransactionsMsg drives the protocol's read loop over an
// in-memory pipe and checks a flooded Transactions message reaches the
// backend.
func TestHandleTransactionsMsg(t *testing.T) {
	backend := newFakeBackend()

	local, remote := p2p.MsgPipe()
	defer local.Close()
	defer remote.Close()

	ep := newPeer(p2p.ID{}, local)
	errCh := make(chan error, 1)
	go func() { errCh <- handle(backend, ep, local) }()

	require.NoError(t, p2p.Send(remote, TransactionsMsg, TransactionsPacket{}))
	require.NoError(t, <-errCh)
}

func TestGetPooledTransactionsRequestResponse(t *testing.T) {
	backend := newFakeBackend()
	hash := common.HexToHash("0xaa")

	local, remote := p2p.MsgPipe()
	defer local.Close()
	defer remote.Close()

	serverPeer := newPeer(p2p.ID{}, local)
	go handle(backend, serverPeer, local)

	clientPeer := newPeer(p2p.ID{1}, remote)
	require.NoError(t, clientPeer.RequestPooledTransactions([]common.Hash{hash}))

	msg, err := remote.ReadMsg()
	require.NoError(t, err)
	require.Equal(t, uint64(PooledTransactionsMsg), msg.Code)

	var resp PooledTransactionsPacket
	require.NoError(t, msg.Decode(&resp))
	require.Empty(t, resp.Transactions, "hash was never added to the backend's pool")
	require.True(t, clientPeer.takeRequest(resp.RequestId))
}

func TestTakeRequestRejectsUnknownOrConsumedID(t *testing.T) {
	_, remote := p2p.MsgPipe()
	defer remote.Close()
	p := newPeer(p2p.ID{}, remote)

	require.False(t, p.takeRequest(99), "never-issued reqID")

	p.pending.Add(1, struct{}{})
	require.True(t, p.takeRequest(1))
	require.False(t, p.takeRequest(1), "reqID is consumed on first successful take")
}
