package vm

import "math"

// memoryGasParams mirrors the teacher's params.MemoryGas/QuadCoeffDiv
// (core/vm/gas_table.go memoryGasCost), renamed to the spec's vocabulary.
const (
	memoryWordGas  = 3
	memoryQuadCoef = 512
)

// toWordSize rounds size up to a whole 32-byte word count, ported from the
// teacher's core/vm/gas_table.go toWordSize (overflow-checked the same way:
// a size within 31 of MaxUint64 returns MaxUint64/32+1 instead of letting
// size+31 wrap around).
func toWordSize(size uint64) uint64 {
	if size > math.MaxUint64-31 {
		return math.MaxUint64/32 + 1
	}
	return (size + 31) / 32
}

// memCost implements spec.md's `memCost(w) = 3w + w²/512` for a word count
// w. Grounded on the teacher's memoryGasCost, which computes the same
// quantity as `MemoryGas*w + w*w/QuadCoeffDiv` before taking the delta
// against the previous high-water mark.
func memCost(words uint64) uint64 {
	square := words * words
	linCoef := words * memoryWordGas
	quadCoef := square / memoryQuadCoef
	return linCoef + quadCoef
}

// MemoryExpansionGas charges for growing memory to cover [offset, offset+
// length), returning the incremental cost over the run state's current
// high-water mark and advancing that mark. Zero-length accesses neither
// cost anything nor expand memory, per spec.md §4.D.
func MemoryExpansionGas(rs *RunState, offset, length uint64) (uint64, error) {
	if length == 0 {
		return 0, nil
	}
	end, overflow := addWithOverflow(offset, length)
	if overflow {
		return 0, ErrOutOfRange
	}
	newWords := toWordSize(end)
	if newWords <= rs.MemoryWordCount {
		return 0, nil
	}
	cost := memCost(newWords) - memCost(rs.MemoryWordCount)
	rs.MemoryWordCount = newWords
	return cost, nil
}

func addWithOverflow(a, b uint64) (uint64, bool) {
	sum := a + b
	return sum, sum < a
}

// copyWordGas is the teacher's params.CopyGas: charged per 32-byte word
// for any *COPY opcode.
const copyWordGas = 3

// CopyGas implements spec.md's copy fee: `ceil(length/32) * copyWord`,
// added on top of the opcode's base gas whenever length > 0. Grounded on
// the teacher's memoryCopierGas factory in core/vm/gas_table.go.
func CopyGas(length uint64) uint64 {
	if length == 0 {
		return 0
	}
	return toWordSize(length) * copyWordGas
}

// sha3WordGas is the teacher's params.Keccak256WordGas, reused by spec.md
// for both SHA3 and the CREATE2 init-code hash.
const sha3WordGas = 6

// Sha3WordGas implements spec.md's "SHA3 / CREATE2 init-code hash" rule:
// `ceil(length/32) * sha3Word` over the hashed region. Grounded on the
// teacher's gasKeccak256/gasCreate2 in core/vm/gas_table.go, which both
// reduce to this same word-count multiply.
func Sha3WordGas(length uint64) uint64 {
	if length == 0 {
		return 0
	}
	return toWordSize(length) * sha3WordGas
}
