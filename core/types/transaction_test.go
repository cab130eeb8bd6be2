package types

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/stretchr/testify/require"
)

func TestFeeMarketSigningRoundTrip(t *testing.T) {
	prv, err := crypto.HexToECDSA("fad9c8855b740a0b7ed4c221dbad0f33a83a49cad6b3fe8d5817ac83d38b6a0")
	require.NoError(t, err)

	to := common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	tx := NewTx(&FeeMarketTx{
		ChainID:    big.NewInt(4),
		Nonce:      0x333,
		GasTipCap:  big.NewInt(0x1284d),
		GasFeeCap:  big.NewInt(0x1d97c),
		Gas:        0x8ae0,
		To:         &to,
		Value:      big.NewInt(0x2933bc9),
		Data:       nil,
		AccessList: AccessList{},
	})

	signer := NewSigner(big.NewInt(4))
	signed, err := tx.SignWith(signer, prv)
	require.NoError(t, err)

	sender, err := Sender(signer, signed)
	require.NoError(t, err)
	require.Equal(t, crypto.PubkeyToAddress(prv.PublicKey), sender)

	var decoded SignedTx
	encoded, err := rlp.EncodeToBytes(signed)
	require.NoError(t, err)
	require.NoError(t, rlp.DecodeBytes(encoded, &decoded))
	require.Equal(t, signed.Hash(), decoded.Hash())

	require.Equal(t, "2e564c87eb4b40e7f469b2eec5aa5d18b0b46a24e8bf0919439cfb0e8fcae446", signed.Hash().Hex()[2:])
}

func TestUnsignedMessageHash(t *testing.T) {
	to := common.HexToAddress("0x0101010101010101010101010101010101010101")
	key := common.HexToHash("0x0101010101010101010101010101010101010101010101010101010101010101")
	tx := &SignedTx{inner: &FeeMarketTx{
		ChainID: big.NewInt(4),
		To:      &to,
		Data:    []byte{0x01, 0x02, 0x00},
		AccessList: AccessList{
			{Address: to, StorageKeys: []common.Hash{key}},
		},
		GasTipCap: new(big.Int),
		GasFeeCap: new(big.Int),
		Value:     new(big.Int),
	}}
	signer := NewSigner(big.NewInt(4))
	got := signer.Hash(tx)
	require.Equal(t, "fa81814f7dd57bad435657a05eabdba2815f41e3f15ddd6139027e7db56b0dea", common.Bytes2Hex(got[:]))
}

func TestUpfrontCost(t *testing.T) {
	tx := &SignedTx{inner: &FeeMarketTx{
		GasFeeCap: big.NewInt(10),
		GasTipCap: big.NewInt(8),
		Gas:       100,
		Value:     big.NewInt(6),
		ChainID:   new(big.Int),
	}}
	require.Equal(t, big.NewInt(806), tx.UpfrontCost(big.NewInt(0)))
	require.Equal(t, big.NewInt(1006), tx.UpfrontCost(big.NewInt(4)))
}

func TestLegacyTxRoundTrip(t *testing.T) {
	prv, err := crypto.GenerateKey()
	require.NoError(t, err)
	to := common.HexToAddress("0x00000000000000000000000000000000000001")
	tx := NewTx(&LegacyTx{
		Nonce:    1,
		GasPrice: big.NewInt(1_000_000_000),
		Gas:      21000,
		To:       &to,
		Value:    big.NewInt(1),
	})
	signer := NewSigner(big.NewInt(1337))
	signed, err := tx.SignWith(signer, prv)
	require.NoError(t, err)

	var decoded SignedTx
	encoded, err := rlp.EncodeToBytes(signed)
	require.NoError(t, err)
	require.NoError(t, rlp.DecodeBytes(encoded, &decoded))
	require.Equal(t, signed.Hash(), decoded.Hash())

	sender, err := Sender(signer, &decoded)
	require.NoError(t, err)
	require.Equal(t, crypto.PubkeyToAddress(prv.PublicKey), sender)
}
