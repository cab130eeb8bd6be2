package txpool

import (
	"crypto/ecdsa"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"github.com/nodecore/gnode/core/types"
	"github.com/nodecore/gnode/internal/stateview"
)

const testChainID = 4

func newTestPool(t *testing.T) (*Pool, *stateview.Fake) {
	t.Helper()
	view := stateview.NewFake()
	signer := types.NewSigner(big.NewInt(testChainID))
	pool := New(Config{BlockGasLimit: 30_000_000}, signer, view, nil)
	require.True(t, pool.Open())
	return pool, view
}

func signFeeMarketTx(t *testing.T, prv *ecdsa.PrivateKey, nonce uint64, feeCap int64, gas uint64) *types.SignedTx {
	t.Helper()
	to := common.HexToAddress("0x00000000000000000000000000000000000002")
	tx := types.NewTx(&types.FeeMarketTx{
		ChainID:    big.NewInt(testChainID),
		Nonce:      nonce,
		GasTipCap:  big.NewInt(feeCap),
		GasFeeCap:  big.NewInt(feeCap),
		Gas:        gas,
		To:         &to,
		Value:      big.NewInt(0),
		AccessList: types.AccessList{},
	})
	signer := types.NewSigner(big.NewInt(testChainID))
	signed, err := tx.SignWith(signer, prv)
	require.NoError(t, err)
	return signed
}

func TestReplaceByFee(t *testing.T) {
	pool, view := newTestPool(t)
	prv, err := crypto.GenerateKey()
	require.NoError(t, err)
	sender := crypto.PubkeyToAddress(prv.PublicKey)
	view.SetAccount(sender, 0, big.NewInt(1_000_000_000_000_000_000))

	txA := signFeeMarketTx(t, prv, 0, 1_000_000_000, 21000)
	require.NoError(t, pool.AddTx(txA))

	txAPrime := signFeeMarketTx(t, prv, 0, 1_090_000_000, 21000)
	err = pool.AddTx(txAPrime)
	require.ErrorIs(t, err, ErrReplaceUnderpriced)

	txADoublePrime := signFeeMarketTx(t, prv, 0, 1_100_000_000, 21000)
	require.NoError(t, pool.AddTx(txADoublePrime))

	require.Equal(t, 1, pool.Len())
	list := pool.bySender[sender]
	require.Equal(t, txADoublePrime.Hash(), list.Get(0).Hash())
}

func TestPoolOverflow(t *testing.T) {
	pool, view := newTestPool(t)

	var overflowTx *types.SignedTx
	for i := 0; i < 51; i++ {
		prv, err := crypto.GenerateKey()
		require.NoError(t, err)
		sender := crypto.PubkeyToAddress(prv.PublicKey)
		view.SetAccount(sender, 0, big.NewInt(1_000_000_000_000_000_000))

		count := 100
		if i == 50 {
			count = 1
		}
		for n := 0; n < count; n++ {
			tx := signFeeMarketTx(t, prv, uint64(n), 1_000_000_000, 21000)
			err := pool.AddTx(tx)
			if i == 50 && n == 0 {
				overflowTx = tx
			}
			if pool.Len() > PoolMaxSize {
				t.Fatalf("pool exceeded max size: %d", pool.Len())
			}
			if err != nil {
				require.ErrorIs(t, err, ErrPoolFull)
			}
		}
	}
	require.Equal(t, PoolMaxSize, pool.Len())
	require.NotNil(t, overflowTx)
}

func TestBlockReconciliation(t *testing.T) {
	pool, view := newTestPool(t)
	prv, err := crypto.GenerateKey()
	require.NoError(t, err)
	sender := crypto.PubkeyToAddress(prv.PublicKey)
	view.SetAccount(sender, 0, big.NewInt(1_000_000_000_000_000_000))

	tx0 := signFeeMarketTx(t, prv, 0, 1_000_000_000, 21000)
	tx1 := signFeeMarketTx(t, prv, 1, 1_000_000_000, 21000)
	require.NoError(t, pool.AddTx(tx0))
	require.NoError(t, pool.AddTx(tx1))

	pool.RemoveNewBlockTxs([]BlockTx{{Sender: sender, Nonce: 0}})
	list, ok := pool.bySender[sender]
	require.True(t, ok)
	require.Equal(t, 1, list.Len())
	require.NotNil(t, list.Get(1))

	pool.RemoveNewBlockTxs([]BlockTx{{Sender: sender, Nonce: 1}})
	_, ok = pool.bySender[sender]
	require.False(t, ok)
}

func TestGetOrderedTransactionsPriceOrder(t *testing.T) {
	pool, view := newTestPool(t)

	prvHigh, _ := crypto.GenerateKey()
	prvLow, _ := crypto.GenerateKey()
	senderHigh := crypto.PubkeyToAddress(prvHigh.PublicKey)
	senderLow := crypto.PubkeyToAddress(prvLow.PublicKey)
	view.SetAccount(senderHigh, 0, big.NewInt(1_000_000_000_000_000_000))
	view.SetAccount(senderLow, 0, big.NewInt(1_000_000_000_000_000_000))

	txHigh := signFeeMarketTx(t, prvHigh, 0, 2_000_000_000, 21000)
	txLow := signFeeMarketTx(t, prvLow, 0, 1_000_000_000, 21000)
	require.NoError(t, pool.AddTx(txLow))
	require.NoError(t, pool.AddTx(txHigh))

	ordered := pool.GetOrderedTransactions(big.NewInt(0))
	require.Len(t, ordered, 2)
	require.Equal(t, txHigh.Hash(), ordered[0].Hash())
	require.Equal(t, txLow.Hash(), ordered[1].Hash())
}

func TestBalanceInvariant(t *testing.T) {
	pool, view := newTestPool(t)
	prv, err := crypto.GenerateKey()
	require.NoError(t, err)
	sender := crypto.PubkeyToAddress(prv.PublicKey)
	view.SetAccount(sender, 0, big.NewInt(1))

	tx := signFeeMarketTx(t, prv, 0, 1_000_000_000, 21000)
	err = pool.AddTx(tx)
	require.ErrorIs(t, err, ErrInsufficientFunds)
	require.Equal(t, 0, pool.Len())
}
