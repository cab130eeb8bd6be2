package rlpx

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"hash"
	"io"
	mrand "math/rand"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/crypto/ecies"
	"github.com/ethereum/go-ethereum/rlp"
	"golang.org/x/crypto/sha3"
)

// Wire sizes for the legacy (pre-EIP-8) plaintext handshake layout.
const (
	sskLen = 16 // ecies.MaxSharedKeyLength(pubKey) / 2
	sigLen = crypto.SignatureLength
	pubLen = 64 // 512-bit public key, uncompressed, without the format byte
	shaLen = 32

	authMsgLen  = sigLen + shaLen + pubLen + shaLen + 1
	authRespLen = pubLen + shaLen + 1

	eciesOverhead = 65 /* pubkey */ + 16 /* IV */ + 32 /* MAC */

	encAuthMsgLen  = authMsgLen + eciesOverhead
	encAuthRespLen = authRespLen + eciesOverhead

	// legacyAuthPrefix is the first byte of a non-EIP-8 plaintext Auth:
	// the uncompressed-pubkey marker used by the ephemeral-key field that
	// starts the legacy layout (spec.md §4.A).
	legacyAuthPrefix = 0x04
)

// Secrets are the symmetric session keys negotiated by the handshake.
type Secrets struct {
	Remote                *ecies.PublicKey
	AES, MAC              []byte
	EgressMAC, IngressMAC hash.Hash
}

// encHandshake tracks handshake-local state across the Auth/Ack exchange.
type encHandshake struct {
	initiator            bool
	remote               *ecies.PublicKey
	initNonce, respNonce []byte
	randomPrivKey        *ecies.PrivateKey
	remoteRandomPub      *ecies.PublicKey
}

// authMsgV4 is the EIP-8 Auth body (also used, truncated, for the legacy
// plaintext layout).
type authMsgV4 struct {
	gotPlain bool // set when the peer sent the legacy pre-EIP-8 layout

	Signature       [sigLen]byte
	InitiatorPubkey [pubLen]byte
	Nonce           [shaLen]byte
	Version         uint

	Rest []rlp.RawValue `rlp:"tail"`
}

// authRespV4 is the EIP-8 Ack body.
type authRespV4 struct {
	RandomPubkey [pubLen]byte
	Nonce        [shaLen]byte
	Version      uint

	Rest []rlp.RawValue `rlp:"tail"`
}

// initiatorEncHandshake runs the Auth->Ack exchange from the dialing side.
func initiatorEncHandshake(conn io.ReadWriter, prv *ecdsa.PrivateKey, remote *ecdsa.PublicKey) (Secrets, error) {
	h := &encHandshake{initiator: true, remote: ecies.ImportECDSAPublic(remote)}

	authMsg, err := h.createAuthMsg(prv)
	if err != nil {
		return Secrets{}, err
	}
	authPacket, err := createAuthEIP8(authMsg, h)
	if err != nil {
		return Secrets{}, err
	}
	if _, err := conn.Write(authPacket); err != nil {
		return Secrets{}, err
	}

	ackMsg := new(authRespV4)
	ackPacket, err := readHandshakeMsg(ackMsg, encAuthRespLen, prv, conn)
	if err != nil {
		return Secrets{}, err
	}
	if err := h.handleAckMsg(ackMsg); err != nil {
		return Secrets{}, err
	}
	return h.secrets(authPacket, ackPacket)
}

// receiverEncHandshake runs the Auth->Ack exchange from the accepting side.
func receiverEncHandshake(conn io.ReadWriter, prv *ecdsa.PrivateKey) (Secrets, error) {
	authMsg := new(authMsgV4)
	authPacket, err := readHandshakeMsg(authMsg, encAuthMsgLen, prv, conn)
	if err != nil {
		return Secrets{}, err
	}

	h := new(encHandshake)
	if err := h.handleAuthMsg(authMsg, prv); err != nil {
		return Secrets{}, err
	}

	ackMsg, err := h.createAckMsg()
	if err != nil {
		return Secrets{}, err
	}

	var ackPacket []byte
	if authMsg.gotPlain {
		ackPacket, err = createAckNonEIP8(ackMsg, h)
	} else {
		ackPacket, err = createAuthEIP8(ackMsg, h)
	}
	if err != nil {
		return Secrets{}, err
	}
	if _, err := conn.Write(ackPacket); err != nil {
		return Secrets{}, err
	}
	return h.secrets(authPacket, ackPacket)
}

// createAuthMsg builds and signs the initiator's Auth payload.
func (h *encHandshake) createAuthMsg(prv *ecdsa.PrivateKey) (*authMsgV4, error) {
	h.initNonce = make([]byte, shaLen)
	if _, err := rand.Read(h.initNonce); err != nil {
		return nil, err
	}
	randomPrivKey, err := ecies.GenerateKey(rand.Reader, crypto.S256(), nil)
	if err != nil {
		return nil, err
	}
	h.randomPrivKey = randomPrivKey

	token, err := h.staticSharedSecret(prv)
	if err != nil {
		return nil, err
	}
	signed := xor(token, h.initNonce)
	signature, err := crypto.Sign(signed, h.randomPrivKey.ExportECDSA())
	if err != nil {
		return nil, err
	}

	msg := new(authMsgV4)
	copy(msg.Signature[:], signature)
	copy(msg.InitiatorPubkey[:], crypto.FromECDSAPub(&prv.PublicKey)[1:])
	copy(msg.Nonce[:], h.initNonce)
	msg.Version = 4
	return msg, nil
}

// handleAuthMsg validates an incoming Auth (receiver side) and recovers the
// remote ephemeral public key from its embedded signature.
func (h *encHandshake) handleAuthMsg(msg *authMsgV4, prv *ecdsa.PrivateKey) error {
	rpub, err := importPublicKey(msg.InitiatorPubkey[:])
	if err != nil {
		return err
	}
	h.initNonce = msg.Nonce[:]
	h.remote = rpub

	if h.randomPrivKey == nil {
		h.randomPrivKey, err = ecies.GenerateKey(rand.Reader, crypto.S256(), nil)
		if err != nil {
			return err
		}
	}

	token, err := h.staticSharedSecret(prv)
	if err != nil {
		return err
	}
	signed := xor(token, h.initNonce)
	remoteRandomPub, err := crypto.Ecrecover(signed, msg.Signature[:])
	if err != nil {
		return err
	}
	h.remoteRandomPub, _ = importPublicKey(remoteRandomPub)
	return nil
}

// createAckMsg builds the receiver's Ack payload.
func (h *encHandshake) createAckMsg() (*authRespV4, error) {
	h.respNonce = make([]byte, shaLen)
	if _, err := rand.Read(h.respNonce); err != nil {
		return nil, err
	}
	msg := new(authRespV4)
	copy(msg.Nonce[:], h.respNonce)
	copy(msg.RandomPubkey[:], exportPubkey(&h.randomPrivKey.PublicKey))
	msg.Version = 4
	return msg, nil
}

func (h *encHandshake) handleAckMsg(msg *authRespV4) (err error) {
	h.respNonce = msg.Nonce[:]
	h.remoteRandomPub, err = importPublicKey(msg.RandomPubkey[:])
	return err
}

// secrets derives the session Secrets once both Auth and Ack are known.
func (h *encHandshake) secrets(auth, ack []byte) (Secrets, error) {
	ecdheSecret, err := h.randomPrivKey.GenerateShared(h.remoteRandomPub, sskLen, sskLen)
	if err != nil {
		return Secrets{}, err
	}

	sharedSecret := crypto.Keccak256(ecdheSecret, crypto.Keccak256(h.respNonce, h.initNonce))
	aesSecret := crypto.Keccak256(ecdheSecret, sharedSecret)
	s := Secrets{
		Remote: h.remote,
		AES:    aesSecret,
		MAC:    crypto.Keccak256(ecdheSecret, aesSecret),
	}

	mac1 := sha3.NewLegacyKeccak256()
	mac1.Write(xor(s.MAC, h.respNonce))
	mac1.Write(auth)
	mac2 := sha3.NewLegacyKeccak256()
	mac2.Write(xor(s.MAC, h.initNonce))
	mac2.Write(ack)

	if h.initiator {
		s.EgressMAC, s.IngressMAC = mac1, mac2
	} else {
		s.EgressMAC, s.IngressMAC = mac2, mac1
	}
	return s, nil
}

func (h *encHandshake) staticSharedSecret(prv *ecdsa.PrivateKey) ([]byte, error) {
	return ecies.ImportECDSA(prv).GenerateShared(h.remote, sskLen, sskLen)
}

var padSpace = make([]byte, 300)

// createAuthEIP8 encodes msg as RLP, pads it, and ECIES-encrypts it with a
// 2-byte big-endian length prefix as associated data — the EIP-8 Auth/Ack
// layout (spec.md §4.A, §6).
func createAuthEIP8(msg interface{}, h *encHandshake) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := rlp.Encode(buf, msg); err != nil {
		return nil, err
	}
	// Padding must be at least 100 bytes so the packet can't be mistaken
	// for the fixed-size legacy layout.
	pad := padSpace[:mrand.Intn(len(padSpace)-100)+100]
	buf.Write(pad)

	prefix := make([]byte, 2)
	binary.BigEndian.PutUint16(prefix, uint16(buf.Len()+eciesOverhead))

	enc, err := ecies.Encrypt(rand.Reader, h.remote, buf.Bytes(), nil, prefix)
	if err != nil {
		return nil, err
	}
	return append(prefix, enc...), nil
}

// createAckNonEIP8 encodes an Ack in the legacy fixed-size plaintext layout,
// used only when the Auth we received was itself legacy-framed.
func createAckNonEIP8(msg *authRespV4, h *encHandshake) ([]byte, error) {
	buf := make([]byte, authRespLen)
	n := copy(buf, msg.RandomPubkey[:])
	copy(buf[n:], msg.Nonce[:])
	return ecies.Encrypt(rand.Reader, h.remote, buf, nil, nil)
}

// decodePlain unpacks the fixed-size legacy Auth layout.
func (msg *authMsgV4) decodePlain(input []byte) {
	n := copy(msg.Signature[:], input)
	n += shaLen // skip sha3(initiator-ephemeral-pubk), unused here
	n += copy(msg.InitiatorPubkey[:], input[n:])
	copy(msg.Nonce[:], input[n:])
	msg.Version = 4
	msg.gotPlain = true
}

func (msg *authRespV4) decodePlain(input []byte) {
	n := copy(msg.RandomPubkey[:], input)
	copy(msg.Nonce[:], input[n:])
	msg.Version = 4
}

type plainDecoder interface {
	decodePlain([]byte)
}

// readHandshakeMsg reads and decrypts an Auth or Ack packet, choosing
// between the legacy plaintext layout and the EIP-8 RLP layout by the
// packet's first byte: a 0x04 first byte is tried as a fixed-size legacy
// packet, and if that does not decrypt (or the first byte is anything else)
// the leading two bytes are read as an EIP-8 length prefix (spec.md §4.A).
func readHandshakeMsg(msg plainDecoder, plainSize int, prv *ecdsa.PrivateKey, r io.Reader) ([]byte, error) {
	buf := make([]byte, plainSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		return buf, err
	}

	key := ecies.ImportECDSA(prv)
	if !looksLikeEIP8(buf[0]) {
		if dec, err := key.Decrypt(buf, nil, nil); err == nil {
			msg.decodePlain(dec)
			return buf, nil
		}
		// Fell through: the peer's first byte happened to collide with the
		// legacy marker but the packet doesn't actually decrypt as plain.
		// Retry as EIP-8 below rather than failing outright.
	}

	prefix := buf[:2]
	size := binary.BigEndian.Uint16(prefix)
	if size < uint16(plainSize) {
		return buf, fmt.Errorf("rlpx: EIP-8 handshake size underflow, need at least %d bytes", plainSize)
	}
	buf = append(buf, make([]byte, int(size)-plainSize+2)...)
	if _, err := io.ReadFull(r, buf[plainSize:]); err != nil {
		return buf, err
	}
	dec, err := key.Decrypt(buf[2:], nil, prefix)
	if err != nil {
		return buf, err
	}
	// rlp.DecodeBytes would reject the forward-compatible trailing fields,
	// so stream-decode instead.
	s := rlp.NewStream(bytes.NewReader(dec), 0)
	return buf, s.Decode(msg)
}

// looksLikeEIP8 reports whether a raw handshake packet is EIP-8 framed by
// checking the first byte against the legacy uncompressed-pubkey marker,
// per spec.md §4.A.
func looksLikeEIP8(firstByte byte) bool {
	return firstByte != legacyAuthPrefix
}

func importPublicKey(pubKey []byte) (*ecies.PublicKey, error) {
	var pubKey65 []byte
	switch len(pubKey) {
	case 64:
		pubKey65 = append([]byte{0x04}, pubKey...)
	case 65:
		pubKey65 = pubKey
	default:
		return nil, fmt.Errorf("rlpx: invalid public key length %d (want 64 or 65)", len(pubKey))
	}
	pub, err := crypto.UnmarshalPubkey(pubKey65)
	if err != nil {
		return nil, err
	}
	return ecies.ImportECDSAPublic(pub), nil
}

func exportPubkey(pub *ecies.PublicKey) []byte {
	if pub == nil {
		panic("rlpx: nil pubkey")
	}
	return elliptic.Marshal(pub.Curve, pub.X, pub.Y)[1:]
}

func xor(one, other []byte) []byte {
	out := make([]byte, len(one))
	for i := range one {
		out[i] = one[i] ^ other[i]
	}
	return out
}
