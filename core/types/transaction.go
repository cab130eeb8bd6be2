package types

import (
	"bytes"
	"crypto/ecdsa"
	"errors"
	"io"
	"math/big"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
)

var (
	ErrTxTypeNotSupported = errors.New("types: transaction type not supported")
	errShortTypedTx       = errors.New("types: typed transaction too short")
)

// Tx is a mutable transaction builder. It exists only to be filled in and
// then signed; once signed it is frozen into a SignedTx and the builder is
// discarded (spec.md §9 "Frozen vs mutable transactions" — signing is the
// only transition).
type Tx struct {
	inner innerTx
}

// NewTx wraps data (a *LegacyTx, *AccessListTx or *FeeMarketTx literal) into
// a Tx ready for signing.
func NewTx(data innerTx) *Tx {
	return &Tx{inner: data.copy()}
}

// Type returns the EIP-2718 type byte of the underlying shape.
func (tx *Tx) Type() byte { return tx.inner.txType() }

// SignWith signs tx with prv under signer and returns the resulting
// immutable SignedTx. The Tx builder is left usable but its contents are
// never shared with the returned SignedTx (signing copies).
func (tx *Tx) SignWith(signer Signer, prv *ecdsa.PrivateKey) (*SignedTx, error) {
	return signTx(tx.inner.copy(), signer, prv)
}

// SignedTx is an immutable, hashable transaction: the output of signing a
// Tx, or the result of decoding one off the wire. Every field access goes
// through the frozen inner payload; there is no mutator.
type SignedTx struct {
	inner innerTx
	time  time.Time

	hash atomic.Pointer[common.Hash]
	from atomic.Pointer[sigCacheEntry]
	size atomic.Int64
}

type sigCacheEntry struct {
	signer Signer
	from   common.Address
}

// NewSignedTx wraps an already-signed innerTx (used by decoders and tests
// that construct a SignedTx directly from known V/R/S values).
func NewSignedTx(data innerTx) *SignedTx {
	return &SignedTx{inner: data.copy(), time: time.Now()}
}

func (tx *SignedTx) Type() byte              { return tx.inner.txType() }
func (tx *SignedTx) ChainID() *big.Int       { return tx.inner.chainID() }
func (tx *SignedTx) AccessList() AccessList  { return tx.inner.accessList() }
func (tx *SignedTx) Data() []byte            { return tx.inner.data() }
func (tx *SignedTx) Gas() uint64             { return tx.inner.gas() }
func (tx *SignedTx) GasPrice() *big.Int      { return new(big.Int).Set(tx.inner.gasPrice()) }
func (tx *SignedTx) GasTipCap() *big.Int     { return new(big.Int).Set(tx.inner.gasTipCap()) }
func (tx *SignedTx) GasFeeCap() *big.Int     { return new(big.Int).Set(tx.inner.gasFeeCap()) }
func (tx *SignedTx) Value() *big.Int         { return new(big.Int).Set(tx.inner.value()) }
func (tx *SignedTx) Nonce() uint64           { return tx.inner.nonce() }
func (tx *SignedTx) To() *common.Address     { return tx.inner.to() }
func (tx *SignedTx) RawSignatureValues() (v, r, s *big.Int) {
	return tx.inner.rawSignatureValues()
}

// IsSigned reports whether R and S are non-zero; an unsigned transaction
// must never enter the pool (spec.md §4.E step 1).
func (tx *SignedTx) IsSigned() bool {
	_, r, s := tx.inner.rawSignatureValues()
	return r != nil && r.Sign() != 0 && s != nil && s.Sign() != 0
}

// EffectiveGasPrice is the per-gas price actually paid, capped by baseFee
// (spec.md §3): min(maxFeePerGas, baseFee + maxPriorityFeePerGas) for
// FeeMarket, and the flat gasPrice for Legacy/AccessList.
func (tx *SignedTx) EffectiveGasPrice(baseFee *big.Int) *big.Int {
	if tx.Type() != FeeMarketTxType || baseFee == nil {
		return tx.GasPrice()
	}
	tip := new(big.Int).Add(baseFee, tx.GasTipCap())
	if tip.Cmp(tx.GasFeeCap()) > 0 {
		return tx.GasFeeCap()
	}
	return tip
}

// UpfrontCost is getUpfrontCost(baseFee) from spec.md §3:
// gasLimit * effectiveGasPrice(baseFee) + value.
func (tx *SignedTx) UpfrontCost(baseFee *big.Int) *big.Int {
	cost := new(big.Int).Mul(new(big.Int).SetUint64(tx.Gas()), tx.EffectiveGasPrice(baseFee))
	return cost.Add(cost, tx.Value())
}

// Hash returns the transaction's unique wire identity: keccak256 of its
// canonical serialized form. It is cached after first computation.
func (tx *SignedTx) Hash() common.Hash {
	if h := tx.hash.Load(); h != nil {
		return *h
	}
	var h common.Hash
	if tx.Type() == LegacyTxType {
		h = rlpHash(tx.inner)
	} else {
		h = prefixedRlpHash(tx.Type(), tx.inner)
	}
	tx.hash.Store(&h)
	return h
}

// Size returns the encoded storage size of the transaction, caching the
// result since it is immutable once signed.
func (tx *SignedTx) Size() uint64 {
	if s := tx.size.Load(); s != 0 {
		return uint64(s)
	}
	buf := new(bytes.Buffer)
	rlp.Encode(buf, tx)
	tx.size.Store(int64(buf.Len()))
	return uint64(buf.Len())
}

// EncodeRLP implements rlp.Encoder: a LegacyTx is a bare RLP list; any
// typed transaction is RLP-encoded as a byte string holding the type byte
// followed by the field list, per EIP-2718.
func (tx *SignedTx) EncodeRLP(w io.Writer) error {
	if tx.Type() == LegacyTxType {
		return rlp.Encode(w, tx.inner)
	}
	buf := new(bytes.Buffer)
	buf.WriteByte(tx.Type())
	if err := rlp.Encode(buf, tx.inner); err != nil {
		return err
	}
	return rlp.Encode(w, buf.Bytes())
}

// DecodeRLP implements rlp.Decoder, dispatching on whether the next value
// is a list (legacy) or a byte string (typed), per EIP-2718.
func (tx *SignedTx) DecodeRLP(s *rlp.Stream) error {
	kind, _, err := s.Kind()
	if err != nil {
		return err
	}
	if kind == rlp.List {
		var inner LegacyTx
		if err := s.Decode(&inner); err != nil {
			return err
		}
		tx.setDecoded(&inner)
		return nil
	}
	b, err := s.Bytes()
	if err != nil {
		return err
	}
	inner, err := decodeTypedTx(b)
	if err != nil {
		return err
	}
	tx.setDecoded(inner)
	return nil
}

func decodeTypedTx(b []byte) (innerTx, error) {
	if len(b) <= 1 {
		return nil, errShortTypedTx
	}
	switch b[0] {
	case AccessListTxType:
		var inner AccessListTx
		if err := rlp.DecodeBytes(b[1:], &inner); err != nil {
			return nil, err
		}
		return &inner, nil
	case FeeMarketTxType:
		var inner FeeMarketTx
		if err := rlp.DecodeBytes(b[1:], &inner); err != nil {
			return nil, err
		}
		return &inner, nil
	default:
		return nil, ErrTxTypeNotSupported
	}
}

func (tx *SignedTx) setDecoded(inner innerTx) {
	tx.inner = inner
	tx.time = time.Now()
}

func rlpHash(x interface{}) common.Hash {
	return crypto.Keccak256Hash(mustRlp(x))
}

func prefixedRlpHash(prefix byte, x interface{}) common.Hash {
	enc := mustRlp(x)
	buf := make([]byte, 0, len(enc)+1)
	buf = append(buf, prefix)
	buf = append(buf, enc...)
	return crypto.Keccak256Hash(buf)
}

func mustRlp(x interface{}) []byte {
	b, err := rlp.EncodeToBytes(x)
	if err != nil {
		panic(err)
	}
	return b
}
