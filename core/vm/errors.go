package vm

import "errors"

// EVM-trap sentinels per spec.md §7 "EVM-trap (gas layer)". These unwind
// the current call frame; the caller decides retry semantics.
var (
	ErrStaticStateChange     = errors.New("vm: static state change")
	ErrOutOfGas              = errors.New("vm: out of gas")
	ErrOutOfRange            = errors.New("vm: out of range")
	ErrAuthCallUnset         = errors.New("vm: authcall without prior auth")
	ErrAuthCallNonzeroValExt = errors.New("vm: authcall valueExt must be zero")
)
