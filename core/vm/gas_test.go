package vm

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

type fakeEEI struct {
	exists  map[common.Address]bool
	empty   map[common.Address]bool
	balance map[common.Address]*big.Int
	state   map[common.Address]map[common.Hash]common.Hash
	orig    map[common.Address]map[common.Hash]common.Hash
	refund  uint64
}

func newFakeEEI() *fakeEEI {
	return &fakeEEI{
		exists:  make(map[common.Address]bool),
		empty:   make(map[common.Address]bool),
		balance: make(map[common.Address]*big.Int),
		state:   make(map[common.Address]map[common.Hash]common.Hash),
		orig:    make(map[common.Address]map[common.Hash]common.Hash),
	}
}

func (f *fakeEEI) AccountExists(addr common.Address) bool { return f.exists[addr] }
func (f *fakeEEI) AccountEmpty(addr common.Address) bool   { return f.empty[addr] }
func (f *fakeEEI) GetBalance(addr common.Address) *big.Int {
	if b, ok := f.balance[addr]; ok {
		return b
	}
	return new(big.Int)
}
func (f *fakeEEI) GetState(addr common.Address, key common.Hash) common.Hash {
	return f.state[addr][key]
}
func (f *fakeEEI) GetCommittedState(addr common.Address, key common.Hash) common.Hash {
	return f.orig[addr][key]
}
func (f *fakeEEI) AddRefund(gas uint64) { f.refund += gas }
func (f *fakeEEI) SubRefund(gas uint64) { f.refund -= gas }

func newTestRunState() (*RunState, *fakeEEI) {
	eei := newFakeEEI()
	return NewRunState(eei, false), eei
}

// TestMemCostMonotone exercises spec.md §8's universal invariant: memCost
// is monotone non-decreasing in the word count.
func TestMemCostMonotone(t *testing.T) {
	var prev uint64
	for w := uint64(0); w < 4096; w++ {
		cost := memCost(w)
		require.GreaterOrEqual(t, cost, prev)
		prev = cost
	}
}

func TestMemoryExpansionGasChargesOnlyDelta(t *testing.T) {
	rs, _ := newTestRunState()

	first, err := MemoryExpansionGas(rs, 0, 32)
	require.NoError(t, err)
	require.Equal(t, memCost(1), first)

	second, err := MemoryExpansionGas(rs, 0, 32)
	require.NoError(t, err)
	require.Equal(t, uint64(0), second, "re-touching already-expanded memory is free")

	third, err := MemoryExpansionGas(rs, 0, 64)
	require.NoError(t, err)
	require.Equal(t, memCost(2)-memCost(1), third)
}

func TestMemoryExpansionGasZeroLength(t *testing.T) {
	rs, _ := newTestRunState()
	cost, err := MemoryExpansionGas(rs, 100, 0)
	require.NoError(t, err)
	require.Equal(t, uint64(0), cost)
	require.Equal(t, uint64(0), rs.MemoryWordCount)
}

func TestCopyGas(t *testing.T) {
	require.Equal(t, uint64(0), CopyGas(0))
	require.Equal(t, uint64(copyWordGas), CopyGas(1))
	require.Equal(t, uint64(copyWordGas), CopyGas(32))
	require.Equal(t, uint64(2*copyWordGas), CopyGas(33))
}

func TestAccessAddressColdThenWarm(t *testing.T) {
	rs, _ := newTestRunState()
	addr := common.HexToAddress("0x01")

	cost, cold := AccessAddress(rs, addr)
	require.Equal(t, coldAccountAccessCost, cost)
	require.True(t, cold)

	cost, cold = AccessAddress(rs, addr)
	require.Equal(t, warmStorageReadCost, cost)
	require.False(t, cold)
}

func TestAccessStorageSlotColdThenWarm(t *testing.T) {
	rs, _ := newTestRunState()
	addr := common.HexToAddress("0x01")
	key := common.HexToHash("0x02")

	cost, cold := AccessStorageSlot(rs, addr, key)
	require.Equal(t, coldSloadCost, cost)
	require.True(t, cold)

	cost, cold = AccessStorageSlot(rs, addr, key)
	require.Equal(t, warmStorageReadCost, cost)
	require.False(t, cold)
}

func TestRunStateRevertDropsAccessedSinceSnapshot(t *testing.T) {
	rs, _ := newTestRunState()
	addrA := common.HexToAddress("0x01")
	addrB := common.HexToAddress("0x02")

	AccessAddress(rs, addrA)
	snap := rs.Snapshot()
	AccessAddress(rs, addrB)
	require.True(t, rs.AccessedAddresses.Contains(addrB))

	rs.Revert(snap)
	require.True(t, rs.AccessedAddresses.Contains(addrA))
	require.False(t, rs.AccessedAddresses.Contains(addrB))
}

func TestSStoreGasLegacySetAndClear(t *testing.T) {
	rs, eei := newTestRunState()
	addr := common.HexToAddress("0x01")
	key := common.HexToHash("0x01")

	gas, err := SStoreGas(Frontier, rs, 1_000_000, addr, key, common.Hash{}, common.Hash{}, common.HexToHash("0x2a"))
	require.NoError(t, err)
	require.Equal(t, sstoreSetGas, gas)

	gas, err = SStoreGas(Frontier, rs, 1_000_000, addr, key, common.HexToHash("0x2a"), common.HexToHash("0x2a"), common.Hash{})
	require.NoError(t, err)
	require.Equal(t, sstoreClearGas, gas)
	require.Equal(t, sstoreRefundGas, eei.refund)
}

func TestSStoreGasEIP2200SentryCheck(t *testing.T) {
	rs, _ := newTestRunState()
	addr := common.HexToAddress("0x01")
	key := common.HexToHash("0x01")

	_, err := SStoreGas(Istanbul, rs, sstoreSentryGas, addr, key, common.Hash{}, common.Hash{}, common.HexToHash("0x2a"))
	require.ErrorIs(t, err, ErrOutOfGas)
}

func TestSStoreGasBerlinChargesColdSlotOnce(t *testing.T) {
	rs, _ := newTestRunState()
	addr := common.HexToAddress("0x01")
	key := common.HexToHash("0x01")
	val := common.HexToHash("0x2a")

	gas, err := SStoreGas(Berlin, rs, 1_000_000, addr, key, common.Hash{}, common.Hash{}, val)
	require.NoError(t, err)
	require.Equal(t, coldSloadCost+sstoreSetGasEIP2200, gas)

	gas, err = SStoreGas(Berlin, rs, 1_000_000, addr, key, val, common.Hash{}, val)
	require.NoError(t, err)
	require.Equal(t, 2*warmStorageReadCost, gas, "slot access and no-op both price warm the second time")
}

func TestMaxCallGasCapPostTangerineWhistle(t *testing.T) {
	require.Equal(t, uint64(1000), MaxCallGas(Frontier, 1000, 1000))
	require.Equal(t, uint64(1000-1000/64), MaxCallGas(TangerineWhistle, 1000, 1000))
	require.Equal(t, uint64(10), MaxCallGas(TangerineWhistle, 1000, 10))
}

func TestStaticStateGuardTrapsSstoreAndValueCall(t *testing.T) {
	rs, _ := newTestRunState()
	rs.IsStatic = true

	require.ErrorIs(t, CheckStaticViolation(rs, OpSstore, nil), ErrStaticStateChange)
	require.ErrorIs(t, CheckStaticViolation(rs, OpCall, uint256.NewInt(1)), ErrStaticStateChange)
	require.NoError(t, CheckStaticViolation(rs, OpCall, nil))
}

func TestAuthCallRequiresPriorAuth(t *testing.T) {
	rs, _ := newTestRunState()
	addr := common.HexToAddress("0x01")

	_, _, err := AuthCallGas(rs, Berlin, addr, nil, 1000, 100_000)
	require.ErrorIs(t, err, ErrAuthCallUnset)

	rs.SetAuthorized(addr)
	gas, _, err := AuthCallGas(rs, Berlin, addr, nil, 1000, 100_000)
	require.NoError(t, err)
	require.Equal(t, uint64(1000), gas)

	_, ok := rs.Authorized()
	require.False(t, ok, "AUTHCALL consumes the authorization")
}
