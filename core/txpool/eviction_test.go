package txpool

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"github.com/nodecore/gnode/core/types"
	"github.com/nodecore/gnode/internal/stateview"
)

// fillPoolToCapacity admits PoolMaxSize transactions spread across enough
// senders to respect MaxPerSender, via add (pool.AddTx for local entries,
// pool.AddRemoteTx for remote ones). When cheapPrice is non-zero, the very
// first transaction (the first sender's nonce 0) is priced at cheapPrice
// instead of the uniform 1_000_000_000, making it the pool's unique
// cheapest entry; its hash is returned.
func fillPoolToCapacity(t *testing.T, pool *Pool, view *stateview.Fake, add func(*types.SignedTx) error, cheapPrice int64) (cheapestHash [32]byte) {
	t.Helper()
	const senders = 50
	const perSender = PoolMaxSize / senders

	for i := 0; i < senders; i++ {
		prv, err := crypto.GenerateKey()
		require.NoError(t, err)
		sender := crypto.PubkeyToAddress(prv.PublicKey)
		view.SetAccount(sender, 0, big.NewInt(1_000_000_000_000_000_000))

		for n := 0; n < perSender; n++ {
			price := int64(1_000_000_000)
			if i == 0 && n == 0 && cheapPrice != 0 {
				price = cheapPrice
			}
			tx := signFeeMarketTx(t, prv, uint64(n), price, 21000)
			require.NoError(t, add(tx))
			if i == 0 && n == 0 {
				cheapestHash = tx.Hash()
			}
		}
	}
	require.Equal(t, PoolMaxSize, pool.Len())
	return cheapestHash
}

// TestEvictionPrefersHigherPricedIncomingOverCheapestRemote exercises
// spec.md §4.E step 3's eviction path directly: fill the pool to
// PoolMaxSize with remote transactions, one of them priced below every
// other, then admit a higher-priced remote transaction and confirm it is
// accepted, the pool stays at PoolMaxSize, and the cheapest remote entry
// is gone. This is distinct from TestPoolOverflow, whose all-equal-price
// transactions can never outbid anything and so can't tell "evicted"
// apart from "rejected, no victim found".
func TestEvictionPrefersHigherPricedIncomingOverCheapestRemote(t *testing.T) {
	pool, view := newTestPool(t)
	cheapestHash := fillPoolToCapacity(t, pool, view, pool.AddRemoteTx, 900_000_000)

	incomingPrv, err := crypto.GenerateKey()
	require.NoError(t, err)
	incomingSender := crypto.PubkeyToAddress(incomingPrv.PublicKey)
	view.SetAccount(incomingSender, 0, big.NewInt(1_000_000_000_000_000_000))

	incoming := signFeeMarketTx(t, incomingPrv, 0, 2_000_000_000, 21000)
	require.NoError(t, pool.AddRemoteTx(incoming))

	require.Equal(t, PoolMaxSize, pool.Len())

	list, ok := pool.bySender[incomingSender]
	require.True(t, ok)
	require.NotNil(t, list.Get(0))
	require.Equal(t, incoming.Hash(), list.Get(0).Hash())

	_, stillPresent := pool.hashToSender[cheapestHash]
	require.False(t, stillPresent, "cheapest remote transaction should have been evicted")
}

// TestEvictionRejectsWhenIncomingDoesNotOutbidCheapestRemote confirms the
// same full pool rejects an incoming transaction priced at or below every
// existing remote entry, since evictForSpace requires a strictly higher
// price before displacing anything.
func TestEvictionRejectsWhenIncomingDoesNotOutbidCheapestRemote(t *testing.T) {
	pool, view := newTestPool(t)
	fillPoolToCapacity(t, pool, view, pool.AddRemoteTx, 0)

	prv, err := crypto.GenerateKey()
	require.NoError(t, err)
	sender := crypto.PubkeyToAddress(prv.PublicKey)
	view.SetAccount(sender, 0, big.NewInt(1_000_000_000_000_000_000))

	incoming := signFeeMarketTx(t, prv, 0, 1_000_000_000, 21000)
	err = pool.AddRemoteTx(incoming)
	require.ErrorIs(t, err, ErrPoolFull)
	require.Equal(t, PoolMaxSize, pool.Len())
}

// TestEvictionNeverDisplacesLocalTransactions confirms a local transaction
// occupying the cheapest slot pool-wide is never chosen as an eviction
// victim: when every pooled transaction is local, a higher-priced incoming
// remote transaction is rejected with ErrPoolFull rather than evicting
// anything, per the teacher's legacypool locals-are-never-evicted policy.
func TestEvictionNeverDisplacesLocalTransactions(t *testing.T) {
	pool, view := newTestPool(t)
	fillPoolToCapacity(t, pool, view, pool.AddTx, 900_000_000)

	prv, err := crypto.GenerateKey()
	require.NoError(t, err)
	sender := crypto.PubkeyToAddress(prv.PublicKey)
	view.SetAccount(sender, 0, big.NewInt(1_000_000_000_000_000_000))

	incoming := signFeeMarketTx(t, prv, 0, 2_000_000_000, 21000)
	err = pool.AddRemoteTx(incoming)
	require.ErrorIs(t, err, ErrPoolFull)
	require.Equal(t, PoolMaxSize, pool.Len())
}
