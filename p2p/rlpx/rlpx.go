// Package rlpx implements the RLPx transport protocol: an ECIES-encrypted,
// length-prefixed, MAC-authenticated framing layer for devp2p connections.
package rlpx

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdsa"
	"crypto/hmac"
	"errors"
	"fmt"
	"hash"
	"io"
	"net"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/golang/snappy"
)

const (
	maxUint24 = ^uint32(0) >> 8

	// snappyProtocolVersion is the first HELLO protocolVersion at which
	// message bodies are snappy-compressed (spec.md §4.B).
	snappyProtocolVersion = 5

	// headerFrameSize is the size on the wire of an encrypted frame
	// header: 16 bytes of header data plus a 16-byte header MAC.
	headerFrameSize = 32
)

var (
	// zeroHeader is the plaintext header-data prefix for every frame: an
	// RLP-encoded empty capability-id/context-id pair, kept only for wire
	// compatibility with the reference implementation.
	zeroHeader = []byte{0xC2, 0x80, 0x80}
	zero16     = make([]byte, 16)

	errPlainMessageTooLarge = errors.New("rlpx: message length >= 16MB")
	errBadHeaderMAC         = errors.New("rlpx: bad header MAC")
	errBadFrameMAC          = errors.New("rlpx: bad frame MAC")
)

// Conn is a single RLPx session layered over a net.Conn. Before any
// messages can be exchanged the caller must run Handshake; reads and writes
// before that fail. After Handshake the Conn writes uncompressed frame
// bodies; call SetSnappy once the negotiated HELLO protocolVersion is known.
type Conn struct {
	rmu, wmu sync.Mutex

	dialDest *ecdsa.PublicKey // non-nil on the dialing (initiator) side
	conn     net.Conn

	session *sessionState
	snappy  bool
}

// sessionState holds the per-direction secrets derived during the
// handshake: independent AES-CTR streams and Keccak256 MAC ratchets for
// ingress and egress, per spec.md §4.A.
type sessionState struct {
	enc, dec  cipher.Stream
	macCipher cipher.Block

	egressMAC  hash.Hash
	ingressMAC hash.Hash
}

// NewConn wraps conn in an RLPx session. dialDest must be the remote node's
// public key on the dialing side, and nil on the accepting side.
func NewConn(conn net.Conn, dialDest *ecdsa.PublicKey) *Conn {
	return &Conn{dialDest: dialDest, conn: conn}
}

// SetSnappy toggles snappy compression of frame bodies. Callers enable this
// only after both sides' HELLO has been exchanged and the negotiated
// protocolVersion is known to be >= 5 (spec.md §4.B); HELLO itself is never
// compressed.
func (c *Conn) SetSnappy(snappy bool) {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	c.snappy = snappy
}

func (c *Conn) SetReadDeadline(t time.Time) error {
	return c.conn.SetReadDeadline(t)
}

func (c *Conn) SetWriteDeadline(t time.Time) error {
	return c.conn.SetWriteDeadline(t)
}

func (c *Conn) SetDeadline(t time.Time) error {
	return c.conn.SetDeadline(t)
}

func (c *Conn) Close() error {
	return c.conn.Close()
}

// Handshake performs the ECIES Auth/Ack exchange and installs the derived
// session secrets. It returns the remote node's static public key. The
// exchange runs under a 5-second deadline on the underlying conn, which is
// cleared again before Handshake returns.
func (c *Conn) Handshake(prv *ecdsa.PrivateKey) (*ecdsa.PublicKey, error) {
	c.conn.SetDeadline(time.Now().Add(5 * time.Second))
	defer c.conn.SetDeadline(time.Time{})

	var (
		secrets Secrets
		err     error
	)
	if c.dialDest != nil {
		secrets, err = initiatorEncHandshake(c.conn, prv, c.dialDest)
	} else {
		secrets, err = receiverEncHandshake(c.conn, prv)
	}
	if err != nil {
		return nil, err
	}
	c.session, err = newSessionState(secrets)
	if err != nil {
		return nil, err
	}
	return secrets.Remote.ExportECDSA(), nil
}

func newSessionState(sec Secrets) (*sessionState, error) {
	macCipher, err := aes.NewCipher(sec.MAC)
	if err != nil {
		return nil, fmt.Errorf("rlpx: invalid MAC secret: %w", err)
	}
	encCipher, err := aes.NewCipher(sec.AES)
	if err != nil {
		return nil, fmt.Errorf("rlpx: invalid AES secret: %w", err)
	}
	// The AES key is ephemeral (derived fresh per-session), so an all-zero
	// IV is safe here.
	iv := make([]byte, encCipher.BlockSize())
	return &sessionState{
		enc:        cipher.NewCTR(encCipher, iv),
		dec:        cipher.NewCTR(encCipher, iv),
		macCipher:  macCipher,
		egressMAC:  sec.EgressMAC,
		ingressMAC: sec.IngressMAC,
	}, nil
}

// ReadMsg reads one framed message and returns its decoded message code
// and decompressed (if snappy is enabled) payload.
func (c *Conn) ReadMsg() (code uint64, data []byte, err error) {
	code, payload, err := c.ReadMsgRaw()
	if err != nil {
		return 0, nil, err
	}
	if c.snappy {
		payload, err = decompressSnappy(payload)
		if err != nil {
			return 0, nil, err
		}
	}
	return code, payload, nil
}

// ReadMsgRaw reads one framed message without applying snappy
// decompression regardless of the negotiated state. It exists for the
// DISCONNECT special case (spec.md §4.B, §9): a DISCONNECT may arrive
// compressed or uncompressed independent of the conn's negotiated snappy
// state, so callers that need to try both must bypass the automatic path.
func (c *Conn) ReadMsgRaw() (code uint64, data []byte, err error) {
	c.rmu.Lock()
	defer c.rmu.Unlock()

	if c.session == nil {
		return 0, nil, errors.New("rlpx: handshake not completed")
	}

	bodySize, err := c.readHeader()
	if err != nil {
		return 0, nil, err
	}
	frame, err := c.readBody(bodySize)
	if err != nil {
		return 0, nil, err
	}

	content := bytes.NewReader(frame)
	if err := rlp.Decode(content, &code); err != nil {
		return 0, nil, fmt.Errorf("rlpx: bad message code: %w", err)
	}
	payload := make([]byte, content.Len())
	if _, err := io.ReadFull(content, payload); err != nil {
		return 0, nil, err
	}
	return code, payload, nil
}

// SnappyEnabled reports the conn's current negotiated snappy state.
func (c *Conn) SnappyEnabled() bool {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	return c.snappy
}

// DecompressSnappy decodes a snappy-framed payload. Exposed for callers
// (such as the DISCONNECT try-both fallback) that must bypass a Conn's
// automatic ReadMsg compression handling.
func DecompressSnappy(payload []byte) ([]byte, error) {
	return decompressSnappy(payload)
}

// CompressSnappy encodes a payload with snappy, mirroring what WriteMsg
// does automatically when the conn's snappy state is enabled.
func CompressSnappy(payload []byte) []byte {
	return snappy.Encode(nil, payload)
}

func decompressSnappy(payload []byte) ([]byte, error) {
	decodedLen, err := snappy.DecodedLen(payload)
	if err != nil {
		return nil, err
	}
	if decodedLen > int(maxUint24) {
		return nil, errPlainMessageTooLarge
	}
	return snappy.Decode(nil, payload)
}

// readHeader decrypts and MAC-checks the 32-byte frame header, returning
// the declared body length (before 16-byte padding).
func (c *Conn) readHeader() (uint32, error) {
	headbuf := make([]byte, headerFrameSize)
	if _, err := io.ReadFull(c.conn, headbuf); err != nil {
		return 0, err
	}
	wantMAC := updateMAC(c.session.ingressMAC, c.session.macCipher, headbuf[:16])
	if !hmac.Equal(wantMAC, headbuf[16:]) {
		return 0, errBadHeaderMAC
	}
	c.session.dec.XORKeyStream(headbuf[:16], headbuf[:16])
	return readInt24(headbuf), nil
}

// readBody reads, MAC-checks and decrypts the padded frame body.
func (c *Conn) readBody(size uint32) ([]byte, error) {
	readSize := size
	if pad := size % 16; pad > 0 {
		readSize += 16 - pad
	}
	framebuf := make([]byte, readSize)
	if _, err := io.ReadFull(c.conn, framebuf); err != nil {
		return nil, err
	}

	c.session.ingressMAC.Write(framebuf)
	seed := c.session.ingressMAC.Sum(nil)

	frameMAC := make([]byte, 16)
	if _, err := io.ReadFull(c.conn, frameMAC); err != nil {
		return nil, err
	}
	wantMAC := updateMAC(c.session.ingressMAC, c.session.macCipher, seed)
	if !hmac.Equal(wantMAC, frameMAC) {
		return nil, errBadFrameMAC
	}

	c.session.dec.XORKeyStream(framebuf, framebuf)
	return framebuf[:size], nil
}

// WriteMsg frames and writes a single message, snappy-compressing the
// payload first when the conn's negotiated snappy state is enabled.
func (c *Conn) WriteMsg(code uint64, data []byte) error {
	if c.snappy {
		if len(data) > int(maxUint24) {
			return errPlainMessageTooLarge
		}
		data = snappy.Encode(nil, data)
	}
	return c.WriteMsgRaw(code, data)
}

// WriteMsgRaw frames and writes a single message without applying snappy
// compression, regardless of the conn's negotiated state.
func (c *Conn) WriteMsgRaw(code uint64, data []byte) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()

	if c.session == nil {
		return errors.New("rlpx: handshake not completed")
	}

	codeBytes, _ := rlp.EncodeToBytes(code)
	frame := append(append([]byte{}, codeBytes...), data...)
	if uint64(len(frame)) > uint64(maxUint24) {
		return errors.New("rlpx: message size overflows uint24")
	}

	if err := c.writeHeader(uint32(len(frame))); err != nil {
		return err
	}
	return c.writeBody(frame)
}

func (c *Conn) writeHeader(frameSize uint32) error {
	headbuf := make([]byte, headerFrameSize)
	putInt24(frameSize, headbuf)
	copy(headbuf[3:16], zeroHeader)
	c.session.enc.XORKeyStream(headbuf[:16], headbuf[:16])
	copy(headbuf[16:], updateMAC(c.session.egressMAC, c.session.macCipher, headbuf[:16]))
	_, err := c.conn.Write(headbuf)
	return err
}

func (c *Conn) writeBody(frame []byte) error {
	tee := cipher.StreamWriter{S: c.session.enc, W: io.MultiWriter(c.conn, c.session.egressMAC)}
	if _, err := tee.Write(frame); err != nil {
		return err
	}
	if pad := len(frame) % 16; pad > 0 {
		if _, err := tee.Write(zero16[:16-pad]); err != nil {
			return err
		}
	}
	seed := c.session.egressMAC.Sum(nil)
	mac := updateMAC(c.session.egressMAC, c.session.macCipher, seed)
	_, err := c.conn.Write(mac)
	return err
}

func readInt24(b []byte) uint32 {
	return uint32(b[2]) | uint32(b[1])<<8 | uint32(b[0])<<16
}

func putInt24(v uint32, b []byte) {
	b[0] = byte(v >> 16)
	b[1] = byte(v >> 8)
	b[2] = byte(v)
}

// updateMAC reseeds mac with an AES-encrypted copy of its own running sum
// XORed with seed, then returns the first 16 bytes of the updated sum. This
// is the RLPx MAC ratchet used for both header and frame MACs.
func updateMAC(mac hash.Hash, block cipher.Block, seed []byte) []byte {
	aesbuf := make([]byte, aes.BlockSize)
	block.Encrypt(aesbuf, mac.Sum(nil))
	for i := range aesbuf {
		aesbuf[i] ^= seed[i]
	}
	mac.Write(aesbuf)
	return mac.Sum(nil)[:16]
}
