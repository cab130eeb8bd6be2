package vm

import "github.com/holiman/uint256"

// Opcode names the handful of operations the static-state guard inspects.
// Grounded on the teacher's OpCode type (core/vm/opcodes.go), trimmed to
// spec.md §4.D's guarded set.
type Opcode int

const (
	OpSstore Opcode = iota
	OpLog
	OpCreate
	OpCreate2
	OpSelfdestruct
	OpCall
)

// CheckStaticViolation implements spec.md's static-state guard: SSTORE,
// LOG*, CREATE, CREATE2, SELFDESTRUCT, and value-bearing CALL all trap with
// STATIC_STATE_CHANGE while running inside a static (read-only) call frame.
// value is only consulted for OpCall; pass nil for every other opcode.
// Grounded on the teacher's errWriteProtection checks scattered across
// core/vm/instructions.go (opSstore, opLog, opCreate, opCreate2,
// opSelfdestruct, opCall), unified here into one guard per spec.md's single
// named trap.
func CheckStaticViolation(rs *RunState, op Opcode, value *uint256.Int) error {
	if !rs.IsStatic {
		return nil
	}
	switch op {
	case OpCall:
		if value != nil && !value.IsZero() {
			return ErrStaticStateChange
		}
		return nil
	default:
		return ErrStaticStateChange
	}
}
