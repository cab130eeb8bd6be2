package types

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// FeeMarketTx is the EIP-1559 transaction shape: a base-fee-aware gasPrice
// split into a cap and a tip, plus the EIP-2930 access list.
type FeeMarketTx struct {
	ChainID    *big.Int
	Nonce      uint64
	GasTipCap  *big.Int
	GasFeeCap  *big.Int
	Gas        uint64
	To         *common.Address `rlp:"nil"`
	Value      *big.Int
	Data       []byte
	AccessList AccessList

	V, R, S *big.Int
}

func (tx *FeeMarketTx) txType() byte { return FeeMarketTxType }

func (tx *FeeMarketTx) copy() innerTx {
	cpy := &FeeMarketTx{
		Nonce:      tx.Nonce,
		Gas:        tx.Gas,
		To:         copyAddr(tx.To),
		Data:       common.CopyBytes(tx.Data),
		AccessList: append(AccessList{}, tx.AccessList...),

		ChainID:   new(big.Int),
		GasTipCap: new(big.Int),
		GasFeeCap: new(big.Int),
		Value:     new(big.Int),
		V:         new(big.Int),
		R:         new(big.Int),
		S:         new(big.Int),
	}
	if tx.ChainID != nil {
		cpy.ChainID.Set(tx.ChainID)
	}
	if tx.GasTipCap != nil {
		cpy.GasTipCap.Set(tx.GasTipCap)
	}
	if tx.GasFeeCap != nil {
		cpy.GasFeeCap.Set(tx.GasFeeCap)
	}
	if tx.Value != nil {
		cpy.Value.Set(tx.Value)
	}
	if tx.V != nil {
		cpy.V.Set(tx.V)
	}
	if tx.R != nil {
		cpy.R.Set(tx.R)
	}
	if tx.S != nil {
		cpy.S.Set(tx.S)
	}
	return cpy
}

func (tx *FeeMarketTx) chainID() *big.Int      { return tx.ChainID }
func (tx *FeeMarketTx) accessList() AccessList { return tx.AccessList }
func (tx *FeeMarketTx) data() []byte           { return tx.Data }
func (tx *FeeMarketTx) gas() uint64            { return tx.Gas }
func (tx *FeeMarketTx) gasFeeCap() *big.Int    { return tx.GasFeeCap }
func (tx *FeeMarketTx) gasTipCap() *big.Int    { return tx.GasTipCap }
func (tx *FeeMarketTx) gasPrice() *big.Int     { return tx.GasFeeCap }
func (tx *FeeMarketTx) value() *big.Int        { return tx.Value }
func (tx *FeeMarketTx) nonce() uint64          { return tx.Nonce }
func (tx *FeeMarketTx) to() *common.Address    { return tx.To }

func (tx *FeeMarketTx) rawSignatureValues() (v, r, s *big.Int) { return tx.V, tx.R, tx.S }

func (tx *FeeMarketTx) setSignatureValues(chainID, v, r, s *big.Int) {
	tx.ChainID, tx.V, tx.R, tx.S = chainID, v, r, s
}
