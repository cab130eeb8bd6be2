package txpool

import "errors"

// Rejection errors from the acceptance pipeline (spec.md §4.E). Each names
// the rule that fired; none ever abort the pool itself (spec.md §7
// "Pool-reject").
var (
	ErrUnsigned           = errors.New("txpool: transaction is not signed")
	ErrSenderQuotaReached = errors.New("txpool: sender has reached the per-account transaction limit")
	ErrPoolFull           = errors.New("txpool: pool is full")
	ErrAlreadyKnown       = errors.New("txpool: transaction already in pool")
	ErrOversizedData      = errors.New("txpool: transaction data exceeds size limit")
	ErrNonceTooLow        = errors.New("txpool: nonce too low")
	ErrInsufficientFunds  = errors.New("txpool: insufficient funds for upfront cost")
	ErrGasLimitTooHigh    = errors.New("txpool: gas limit exceeds block gas limit")
	ErrUnderpriced        = errors.New("txpool: transaction underpriced")
	ErrReplaceUnderpriced = errors.New("txpool: replacement transaction underpriced")

	errPoolClosed  = errors.New("txpool: pool is closed")
	errPoolNotOpen = errors.New("txpool: pool has not been opened")
)
