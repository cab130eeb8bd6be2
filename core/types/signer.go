package types

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// ErrInvalidChainID is returned when a typed transaction's chain ID does
// not match the signer deriving its sender.
var ErrInvalidChainID = errors.New("types: invalid chain id for signer")

// Signer encapsulates signature hashing and sender recovery for all three
// transaction shapes. Unlike the teacher's fork-gated signer family, one
// Signer here accepts every shape spec.md defines; hardfork gating of
// which shapes are admissible belongs to the pool, not the signer.
type Signer interface {
	Sender(tx *SignedTx) (common.Address, error)
	SignatureValues(tx *SignedTx, sig []byte) (v, r, s *big.Int, err error)
	Hash(tx *SignedTx) common.Hash
	ChainID() *big.Int
	Equal(Signer) bool
}

type signer struct {
	chainID *big.Int
}

// NewSigner returns a Signer bound to chainID.
func NewSigner(chainID *big.Int) Signer {
	return &signer{chainID: new(big.Int).Set(chainID)}
}

func (s *signer) ChainID() *big.Int { return s.chainID }

func (s *signer) Equal(other Signer) bool {
	o, ok := other.(*signer)
	return ok && s.chainID.Cmp(o.chainID) == 0
}

// Hash returns the signature hash: the hash that was actually signed, not
// the transaction's wire hash.
func (s *signer) Hash(tx *SignedTx) common.Hash {
	switch tx.Type() {
	case LegacyTxType:
		return rlpHash([]interface{}{
			tx.Nonce(), tx.GasPrice(), tx.Gas(), tx.To(), tx.Value(), tx.Data(),
			s.chainID, uint(0), uint(0),
		})
	case AccessListTxType:
		return prefixedRlpHash(AccessListTxType, []interface{}{
			s.chainID, tx.Nonce(), tx.GasPrice(), tx.Gas(), tx.To(), tx.Value(), tx.Data(), tx.AccessList(),
		})
	case FeeMarketTxType:
		return prefixedRlpHash(FeeMarketTxType, []interface{}{
			s.chainID, tx.Nonce(), tx.GasTipCap(), tx.GasFeeCap(), tx.Gas(), tx.To(), tx.Value(), tx.Data(), tx.AccessList(),
		})
	default:
		panic(fmt.Sprintf("types: unsupported tx type %d", tx.Type()))
	}
}

func (s *signer) Sender(tx *SignedTx) (common.Address, error) {
	if cache := tx.from.Load(); cache != nil && cache.signer.Equal(s) {
		return cache.from, nil
	}
	v, r, sVal := tx.RawSignatureValues()
	var addr common.Address
	var err error
	switch tx.Type() {
	case LegacyTxType:
		chainID := deriveChainID(v)
		if chainID.Sign() != 0 {
			protectedV := new(big.Int).Sub(v, new(big.Int).Mul(chainID, big.NewInt(2)))
			protectedV.Sub(protectedV, big.NewInt(8))
			addr, err = recoverPlain(s.Hash(tx), r, sVal, protectedV)
		} else {
			addr, err = recoverPlain(s.Hash(tx), r, sVal, v)
		}
	case AccessListTxType, FeeMarketTxType:
		if tx.ChainID().Sign() != 0 && tx.ChainID().Cmp(s.chainID) != 0 {
			return common.Address{}, fmt.Errorf("%w: have %d want %d", ErrInvalidChainID, tx.ChainID(), s.chainID)
		}
		protectedV := new(big.Int).Add(v, big.NewInt(27))
		addr, err = recoverPlain(s.Hash(tx), r, sVal, protectedV)
	default:
		return common.Address{}, ErrTxTypeNotSupported
	}
	if err != nil {
		return common.Address{}, err
	}
	tx.from.Store(&sigCacheEntry{signer: s, from: addr})
	return addr, nil
}

func (s *signer) SignatureValues(tx *SignedTx, sig []byte) (v, r, sVal *big.Int, err error) {
	r, sVal = new(big.Int).SetBytes(sig[:32]), new(big.Int).SetBytes(sig[32:64])
	switch tx.Type() {
	case LegacyTxType:
		v = big.NewInt(int64(sig[64] + 27))
		if s.chainID.Sign() != 0 {
			v = big.NewInt(int64(sig[64]))
			v.Add(v, new(big.Int).Mul(s.chainID, big.NewInt(2)))
			v.Add(v, big.NewInt(35))
		}
	case AccessListTxType, FeeMarketTxType:
		v = big.NewInt(int64(sig[64]))
	default:
		return nil, nil, nil, ErrTxTypeNotSupported
	}
	return v, r, sVal, nil
}

// Sender returns the address that signed tx under signer, consulting and
// populating tx's signer cache.
func Sender(signer Signer, tx *SignedTx) (common.Address, error) {
	return signer.Sender(tx)
}

// signTx hashes inner under signer, signs with prv, assigns the resulting
// signature values, and freezes the result into a SignedTx.
func signTx(inner innerTx, s Signer, prv *ecdsa.PrivateKey) (*SignedTx, error) {
	tx := &SignedTx{inner: inner}
	h := s.Hash(tx)
	sig, err := crypto.Sign(h[:], prv)
	if err != nil {
		return nil, err
	}
	v, r, sVal, err := s.SignatureValues(tx, sig)
	if err != nil {
		return nil, err
	}
	inner.setSignatureValues(s.ChainID(), v, r, sVal)
	return NewSignedTx(inner), nil
}

// recoverPlain recovers the sender address from a signature hash and raw
// (V, R, S) values, where V is already normalized to 27/28.
func recoverPlain(sighash common.Hash, r, s, v *big.Int) (common.Address, error) {
	if !crypto.ValidateSignatureValues(byte(v.Uint64()-27), r, s, true) {
		return common.Address{}, errors.New("types: invalid transaction v, r, s values")
	}
	sig := make([]byte, 65)
	rBytes, sBytes := r.Bytes(), s.Bytes()
	copy(sig[32-len(rBytes):32], rBytes)
	copy(sig[64-len(sBytes):64], sBytes)
	sig[64] = byte(v.Uint64() - 27)
	pub, err := crypto.Ecrecover(sighash[:], sig)
	if err != nil {
		return common.Address{}, err
	}
	if len(pub) == 0 || pub[0] != 4 {
		return common.Address{}, errors.New("types: invalid public key")
	}
	var addr common.Address
	copy(addr[:], crypto.Keccak256(pub[1:])[12:])
	return addr, nil
}
