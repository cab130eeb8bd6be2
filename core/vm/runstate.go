package vm

import (
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// RunState is the per-EVM-message gas bookkeeping object named in spec.md
// §5: `{ stack, memoryWordCount, returnDataSize, accessedAddresses: set,
// accessedStorage: map address → set<32-byte-key>, eei }`. Stack entries use
// uint256.Int rather than *big.Int, matching the teacher's core/vm.Stack.
type RunState struct {
	Stack           []*uint256.Int
	MemoryWordCount uint64
	ReturnDataSize  uint64
	IsStatic        bool

	AccessedAddresses mapset.Set[common.Address]
	AccessedStorage   map[common.Address]mapset.Set[common.Hash]

	// authorizedBy holds the address that a prior AUTH opcode authorized
	// within this call frame, consumed once by the next AUTHCALL per
	// spec.md §4.D. Absent spec.md precedent in the teacher (AUTH/AUTHCALL
	// are not implemented there), this is built directly from spec prose.
	authorizedBy *common.Address

	EEI EEI
}

// NewRunState builds a RunState with empty access lists, as at the start of
// a fresh EVM message call.
func NewRunState(eei EEI, isStatic bool) *RunState {
	return &RunState{
		IsStatic:          isStatic,
		AccessedAddresses: mapset.NewThreadUnsafeSet[common.Address](),
		AccessedStorage:   make(map[common.Address]mapset.Set[common.Hash]),
		EEI:               eei,
	}
}

// journalSnapshot captures the access lists so a reverted sub-call can
// restore them, per spec.md §5 "Shared-resource policy": accessedAddresses/
// accessedStorage are per-EVM-message and must be reverted on sub-call
// revert.
type journalSnapshot struct {
	addresses []common.Address
	storage   map[common.Address][]common.Hash
}

// Snapshot records the current access-list membership.
func (rs *RunState) Snapshot() journalSnapshot {
	snap := journalSnapshot{
		addresses: rs.AccessedAddresses.ToSlice(),
		storage:   make(map[common.Address][]common.Hash, len(rs.AccessedStorage)),
	}
	for addr, keys := range rs.AccessedStorage {
		snap.storage[addr] = keys.ToSlice()
	}
	return snap
}

// Revert rolls the access lists back to a prior snapshot, dropping any
// address/slot touched since. Cold/warm accounting for a reverted sub-call
// must not leak warmth into the parent on failure.
func (rs *RunState) Revert(snap journalSnapshot) {
	rs.AccessedAddresses = mapset.NewThreadUnsafeSet[common.Address](snap.addresses...)
	rs.AccessedStorage = make(map[common.Address]mapset.Set[common.Hash], len(snap.storage))
	for addr, keys := range snap.storage {
		rs.AccessedStorage[addr] = mapset.NewThreadUnsafeSet[common.Hash](keys...)
	}
}

func (rs *RunState) storageSetFor(addr common.Address) mapset.Set[common.Hash] {
	set, ok := rs.AccessedStorage[addr]
	if !ok {
		set = mapset.NewThreadUnsafeSet[common.Hash]()
		rs.AccessedStorage[addr] = set
	}
	return set
}

// SetAuthorized records the address a preceding AUTH opcode authorized,
// per spec.md §4.D's AUTHCALL precondition.
func (rs *RunState) SetAuthorized(addr common.Address) { rs.authorizedBy = &addr }

// ClearAuthorized consumes the current authorization, as AUTHCALL does on
// use — it is not a standing grant for the rest of the call frame.
func (rs *RunState) ClearAuthorized() { rs.authorizedBy = nil }

func (rs *RunState) Authorized() (common.Address, bool) {
	if rs.authorizedBy == nil {
		return common.Address{}, false
	}
	return *rs.authorizedBy, true
}
