package vm

import "github.com/ethereum/go-ethereum/common"

// EIP-2929 cold/warm costs, ported from params.ColdAccountAccessCostEIP2929/
// ColdSloadCostEIP2929/WarmStorageReadCostEIP2929 in the teacher's
// params/protocol_params.go.
const (
	coldAccountAccessCost uint64 = 2600
	coldSloadCost         uint64 = 2100
	warmStorageReadCost   uint64 = 100
)

// AccessAddress implements spec.md's access-list rule for addresses: the
// first touch within this EVM message costs coldAccountAccess and marks the
// address as accessed; every later touch costs only warmStorageRead.
// Grounded on the teacher's AddressInAccessList/AddAddressToAccessList pair
// (core/vm/eips.go enable2929, core/state/statedb.go), collapsed onto the
// RunState-local set spec.md's data model calls for instead of a StateDB
// journal.
func AccessAddress(rs *RunState, addr common.Address) (cost uint64, wasCold bool) {
	if rs.AccessedAddresses.Contains(addr) {
		return warmStorageReadCost, false
	}
	rs.AccessedAddresses.Add(addr)
	return coldAccountAccessCost, true
}

// AccessStorageSlot is AccessAddress's per-(address,key) analogue: coldSload
// on first touch, warmStorageRead thereafter.
func AccessStorageSlot(rs *RunState, addr common.Address, key common.Hash) (cost uint64, wasCold bool) {
	set := rs.storageSetFor(addr)
	if set.Contains(key) {
		return warmStorageReadCost, false
	}
	set.Add(key)
	return coldSloadCost, true
}
