package eth

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/nodecore/gnode/core/types"
	"github.com/nodecore/gnode/core/txpool"
	"github.com/nodecore/gnode/p2p"
)

// Backend is the collaborator this protocol's handle loop drives: the
// transaction pool, narrowed to the operations the eth/66+ message set
// needs. Grounded on the teacher's eth/protocol.go backend interface
// (GetTransactions/AddTransactions), narrowed and retargeted at
// core/txpool.Pool's admission/gossip API instead of the ancient
// GetBlockHashes/AddBlock surface. *core/txpool.Pool satisfies this
// directly.
type Backend interface {
	AddTx(tx *types.SignedTx) error
	IngestFetchedTransactions(txs []*types.SignedTx)
	HandleAnnouncedTxHashes(from txpool.Peer, hashes []common.Hash) error
	GetPooledTransactions(hashes []common.Hash) []*types.SignedTx
}

func runEthProtocol(backend Backend, peers *PeerSet, peer *p2p.Peer, rw p2p.MsgReadWriter) error {
	ep := newPeer(peer.ID(), rw)
	peers.Register(ep)
	defer peers.Unregister(ep.ID())

	for {
		if err := handle(backend, ep, rw); err != nil {
			return err
		}
	}
}

func handle(backend Backend, ep *Peer, rw p2p.MsgReadWriter) error {
	msg, err := rw.ReadMsg()
	if err != nil {
		return err
	}
	if msg.Size > ProtocolMaxMsgSize {
		return fmt.Errorf("eth: message %#x too large: %d bytes", msg.Code, msg.Size)
	}
	defer msg.Discard()

	switch msg.Code {
	case TransactionsMsg:
		var txs TransactionsPacket
		if err := msg.Decode(&txs); err != nil {
			return fmt.Errorf("eth: decode Transactions: %w", err)
		}
		backend.IngestFetchedTransactions(txs)
		return nil

	case NewPooledTransactionHashesMsg:
		var hashes NewPooledTransactionHashesPacket
		if err := msg.Decode(&hashes); err != nil {
			return fmt.Errorf("eth: decode NewPooledTransactionHashes: %w", err)
		}
		return backend.HandleAnnouncedTxHashes(ep, hashes)

	case GetPooledTransactionsMsg:
		var req GetPooledTransactionsPacket
		if err := msg.Decode(&req); err != nil {
			return fmt.Errorf("eth: decode GetPooledTransactions: %w", err)
		}
		found := backend.GetPooledTransactions(req.Hashes)
		return p2p.Send(rw, PooledTransactionsMsg, &PooledTransactionsPacket{
			RequestId:    req.RequestId,
			Transactions: found,
		})

	case PooledTransactionsMsg:
		var resp PooledTransactionsPacket
		if err := msg.Decode(&resp); err != nil {
			return fmt.Errorf("eth: decode PooledTransactions: %w", err)
		}
		if !ep.takeRequest(resp.RequestId) {
			ep.log.Debug("eth: dropping unsolicited or stale PooledTransactions reply", "reqId", resp.RequestId)
			return nil
		}
		backend.IngestFetchedTransactions(resp.Transactions)
		return nil

	default:
		return fmt.Errorf("eth: unknown message code %#x", msg.Code)
	}
}
