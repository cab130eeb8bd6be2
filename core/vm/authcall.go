package vm

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// AuthCallGas implements spec.md §4.D's AUTHCALL rule. There is no teacher
// precedent for AUTH/AUTHCALL (EIP-3074 predates and was superseded before
// the retrieved go-ethereum snapshot implemented it), so this is built
// directly from spec prose rather than ported from a teacher file; it
// reuses AccessAddress and MaxCallGas for the pieces spec.md explicitly
// shares with CALL.
//
// It requires a prior AUTH to have set an authorization in rs (checked by
// the caller's AUTH handler via RunState.SetAuthorized), rejects a non-zero
// valueExt, forces the destination address from cold to warm, and forwards
// requestedGas only if it does not exceed the 63/64ths ceiling — otherwise
// the call traps out-of-gas rather than silently clamping.
func AuthCallGas(rs *RunState, hf Hardfork, addr common.Address, valueExt *uint256.Int, requestedGas, gasRemaining uint64) (gasToForward, accessCost uint64, err error) {
	if _, ok := rs.Authorized(); !ok {
		return 0, 0, ErrAuthCallUnset
	}
	if valueExt != nil && !valueExt.IsZero() {
		return 0, 0, ErrAuthCallNonzeroValExt
	}

	accessCost, _ = AccessAddress(rs, addr)

	ceiling := MaxCallGas(hf, gasRemaining, requestedGas)
	if requestedGas > ceiling {
		return 0, accessCost, ErrOutOfGas
	}

	rs.ClearAuthorized()
	return requestedGas, accessCost, nil
}
