package vm

import (
	"github.com/ethereum/go-ethereum/common"
)

// SSTORE gas constants, ported from the teacher's params/protocol_params.go.
const (
	sstoreSetGas    uint64 = 20000
	sstoreResetGas  uint64 = 5000
	sstoreClearGas  uint64 = 5000
	sstoreRefundGas uint64 = 15000

	netSstoreNoopGas  uint64 = 200
	netSstoreInitGas  uint64 = 20000
	netSstoreCleanGas uint64 = 5000
	netSstoreDirtyGas uint64 = 200

	netSstoreClearRefund      uint64 = 15000
	netSstoreResetRefund      uint64 = 4800
	netSstoreResetClearRefund uint64 = 19800

	sstoreSentryGas           uint64 = 2300
	sstoreSetGasEIP2200       uint64 = 20000
	sstoreResetGasEIP2200     uint64 = 5000
	sloadGasEIP2200           uint64 = 800
	sstoreClearRefundEIP2200  uint64 = 15000
	sstoreClearRefundEIP3529  uint64 = sstoreResetGasEIP2200 - coldSloadCost + 1900 // TxAccessListStorageKeyGas
)

var zeroHash common.Hash

// SStoreGas dispatches SSTORE's dynamic cost by hardfork, per spec.md
// §4.D: pre-Constantinople uses the legacy three-case rule, Constantinople
// exactly uses EIP-1283 net metering, and Istanbul-and-later uses the
// sentry-gated EIP-2200 rule (with Berlin's EIP-2929 cold/warm top-up
// layered on for Berlin and later). Petersburg reinstates the legacy rule,
// since EIP-1283 net metering was disabled there before Istanbul brought it
// back behind the reentrancy sentry. Grounded on the teacher's gasSStore /
// gasSStoreEIP2200 / gasSStoreEIP2929 in core/vm/gas_table.go and
// core/vm/instructions.go.
//
// current and original are the in-transaction and block-start values for
// key; spec.md requires both regardless of fork, so callers fetch them via
// rs.EEI before calling in rather than this function doing so lazily.
func SStoreGas(hf Hardfork, rs *RunState, gasRemaining uint64, addr common.Address, key, current, original, newValue common.Hash) (uint64, error) {
	switch {
	case hf.AtLeast(Istanbul):
		return sstoreGasEIP2200(hf, rs, gasRemaining, addr, key, current, original, newValue)
	case hf.Exactly(Constantinople):
		return sstoreGasNetMetered(rs, current, original, newValue, sstoreClearRefundEIP2200), nil
	default:
		return sstoreGasLegacy(rs, current, newValue), nil
	}
}

func sstoreGasLegacy(rs *RunState, current, newValue common.Hash) uint64 {
	switch {
	case current == zeroHash && newValue != zeroHash:
		return sstoreSetGas
	case current != zeroHash && newValue == zeroHash:
		rs.EEI.AddRefund(sstoreRefundGas)
		return sstoreClearGas
	default:
		return sstoreResetGas
	}
}

// sstoreGasNetMetered implements EIP-1283 for the Constantinople-exact path.
// sstoreGasEIP2200 does not call it; it carries its own copy of the
// net-metering cases.
func sstoreGasNetMetered(rs *RunState, current, original, newValue common.Hash, clearRefund uint64) uint64 {
	if current == newValue {
		return netSstoreNoopGas
	}
	if original == current {
		if original == zeroHash {
			return netSstoreInitGas
		}
		if newValue == zeroHash {
			rs.EEI.AddRefund(clearRefund)
		}
		return netSstoreCleanGas
	}
	if original != zeroHash {
		if current == zeroHash {
			rs.EEI.SubRefund(clearRefund)
		} else if newValue == zeroHash {
			rs.EEI.AddRefund(clearRefund)
		}
	}
	if original == newValue {
		if original == zeroHash {
			rs.EEI.AddRefund(netSstoreResetClearRefund)
		} else {
			rs.EEI.AddRefund(netSstoreResetRefund)
		}
	}
	return netSstoreDirtyGas
}

func sstoreGasEIP2200(hf Hardfork, rs *RunState, gasRemaining uint64, addr common.Address, key, current, original, newValue common.Hash) (uint64, error) {
	if gasRemaining <= sstoreSentryGas {
		return 0, ErrOutOfGas
	}

	var accessCost uint64
	if hf.AtLeast(Berlin) {
		// spec.md: "SSTORE charges the access-list fee after the EIP-2200
		// sentry check, so the 2300-gas floor check is preserved."
		cost, _ := AccessStorageSlot(rs, addr, key)
		accessCost = cost
	}

	if current == newValue {
		if hf.AtLeast(Berlin) {
			return accessCost + warmStorageReadCost, nil
		}
		return sloadGasEIP2200, nil
	}
	if original == current {
		if original == zeroHash {
			return accessCost + sstoreSetGasEIP2200, nil
		}
		clearRefund := sstoreClearRefundEIP2200
		if hf.AtLeast(Berlin) {
			clearRefund = sstoreClearRefundEIP3529
		}
		if newValue == zeroHash {
			rs.EEI.AddRefund(clearRefund)
		}
		if hf.AtLeast(Berlin) {
			return accessCost + (sstoreResetGasEIP2200 - coldSloadCost), nil
		}
		return accessCost + sstoreResetGasEIP2200, nil
	}

	clearRefund := sstoreClearRefundEIP2200
	if hf.AtLeast(Berlin) {
		clearRefund = sstoreClearRefundEIP3529
	}
	if original != zeroHash {
		if current == zeroHash {
			rs.EEI.SubRefund(clearRefund)
		} else if newValue == zeroHash {
			rs.EEI.AddRefund(clearRefund)
		}
	}
	if original == newValue {
		if original == zeroHash {
			base := sstoreSetGasEIP2200
			sub := sloadGasEIP2200
			if hf.AtLeast(Berlin) {
				sub = warmStorageReadCost
			}
			rs.EEI.AddRefund(base - sub)
		} else {
			base := sstoreResetGasEIP2200
			if hf.AtLeast(Berlin) {
				base -= coldSloadCost
			}
			sub := sloadGasEIP2200
			if hf.AtLeast(Berlin) {
				sub = warmStorageReadCost
			}
			rs.EEI.AddRefund(base - sub)
		}
	}
	if hf.AtLeast(Berlin) {
		return accessCost + warmStorageReadCost, nil
	}
	return sloadGasEIP2200, nil
}
