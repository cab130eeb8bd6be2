package vm

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// callStipend is the teacher's params.CallStipend: free gas credited to the
// callee when CALL transfers non-zero value.
const callStipend uint64 = 2300

// callValueTransferGas/callNewAccountGas mirror params.CallValueTransferGas/
// CallNewAccountGas.
const (
	callValueTransferGas uint64 = 9000
	callNewAccountGas    uint64 = 25000
)

// MaxCallGas implements spec.md's `maxCallGas`: the amount forwarded to a
// callee is capped at floor(remaining*63/64) from TangerineWhistle onward,
// and uncapped before. Grounded on the teacher's callGas in
// core/vm/gas_table.go, minus its *big.Int overflow dance — remaining and
// requested both fit uint64 here.
func MaxCallGas(hf Hardfork, remaining, requested uint64) uint64 {
	if !hf.AtLeast(TangerineWhistle) {
		return requested
	}
	available := remaining - remaining/64
	if requested > available {
		return available
	}
	return requested
}

// CallNewAccountGas implements spec.md's "empty-destination surcharge": on
// Spurious Dragon and later it fires when the destination is an empty
// account and the call carries value; before that, it fires whenever the
// destination account does not exist at all, value or no. Grounded on the
// teacher's gasCall in core/vm/gas_table.go.
func CallNewAccountGas(hf Hardfork, eei EEI, dest common.Address, value *uint256.Int) uint64 {
	if hf.AtLeast(SpuriousDragon) {
		if value.IsZero() || !eei.AccountEmpty(dest) {
			return 0
		}
		return callNewAccountGas
	}
	if eei.AccountExists(dest) {
		return 0
	}
	return callNewAccountGas
}

// CallValueTransferGas is the fixed surcharge CALL pays whenever it moves
// non-zero value, per spec.md's "fixed callStipend added to the callee gas
// budget" rule — the caller pays callValueTransferGas, the callee receives
// callStipend.
func CallValueTransferGas() uint64 { return callValueTransferGas }

// CallStipend returns the gas credited to the callee when CALL transfers
// non-zero value.
func CallStipend() uint64 { return callStipend }
