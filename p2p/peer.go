package p2p

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/ioutil"
	"sort"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/rlp"

	"github.com/nodecore/gnode/p2p/rlpx"
)

const (
	// ourProtocolVersion is the devp2p wire version this node speaks.
	// protocolVersion >= 5 is the snappy-compression threshold (spec.md §4.B).
	ourProtocolVersion = 5

	pingInterval           = 15 * time.Second
	disconnectGracePeriod  = 2 * time.Second
	frameReadTimeout       = 30 * time.Second
	handshakeTimeout       = 5 * time.Second
)

var (
	errProtocolNotRegistered = errors.New("p2p: protocol not registered on this peer")
	errPingTimeout           = errors.New("p2p: ping timeout")
)

// Protocol is a sub-protocol a Peer can run, such as eth or les. Run is
// invoked once per connected peer that negotiated this protocol and owns
// rw for the lifetime of the connection.
type Protocol struct {
	Name    string
	Version uint
	Length  uint64

	Run func(peer *Peer, rw MsgReadWriter) error
}

// ID identifies a remote node by its static public key, 64 bytes
// uncompressed without the leading format byte.
type ID [64]byte

func (id ID) String() string {
	return fmt.Sprintf("%x", id[:8])
}

// Peer represents one established, handshaken RLPx connection and demuxes
// its framed messages to the negotiated sub-protocols (spec.md §4.B).
type Peer struct {
	conn *rlpx.Conn
	log  log.Logger

	id        ID
	name      string
	caps      []Cap
	protocols []Protocol
	running   map[string]*protoRW

	protoWG  sync.WaitGroup
	protoErr chan error
	closed   chan struct{}
	disc     chan DiscReason

	pongRecv chan struct{}

	created time.Time
}

// NewPeer wraps a handshaken rlpx.Conn plus the remote's negotiated HELLO
// capabilities into a running Peer. protocols is the full set of
// sub-protocols this node supports; only those also advertised by the
// remote (via remoteCaps) are started.
func NewPeer(conn *rlpx.Conn, id ID, remoteName string, remoteCaps []Cap, protocols []Protocol) (*Peer, error) {
	localCaps := make([]Cap, len(protocols))
	for i, proto := range protocols {
		localCaps[i] = Cap{Name: proto.Name, Version: proto.Version}
	}

	running := negotiateProtocols(localCaps, remoteCaps)
	if len(running) == 0 {
		return nil, &handshakeError{reason: DiscUselessPeer, msg: "no shared capabilities"}
	}
	for _, rw := range running {
		rw.w = connWriter{conn}
	}

	p := &Peer{
		conn:      conn,
		log:       log.New("peer", id.String()),
		id:        id,
		name:      remoteName,
		caps:      remoteCaps,
		protocols: protocols,
		running:   running,
		protoErr:  make(chan error),
		closed:    make(chan struct{}),
		disc:      make(chan DiscReason),
		pongRecv:  make(chan struct{}, 1),
		created:   time.Now(),
	}
	return p, nil
}

// handshakeError signals a failure during HELLO exchange that must be
// reported to the peer with a specific DiscReason before closing.
type handshakeError struct {
	reason DiscReason
	msg    string
}

func (e *handshakeError) Error() string { return fmt.Sprintf("p2p handshake: %s", e.msg) }

// connWriter adapts rlpx.Conn's (code, payload) framing to the Msg-based
// MsgWriter interface sub-protocol handlers are written against, so that
// every outgoing sub-protocol frame goes through the conn's negotiated
// snappy state exactly like PING/PONG does.
type connWriter struct{ conn *rlpx.Conn }

func (w connWriter) WriteMsg(msg Msg) error {
	data, err := io.ReadAll(msg.Payload)
	if err != nil {
		return err
	}
	return w.conn.WriteMsg(msg.Code, data)
}

// ID returns the remote node's static public key.
func (p *Peer) ID() ID { return p.id }

// Name returns the remote client ID string from HELLO.
func (p *Peer) Name() string { return p.name }

// Caps returns the remote's advertised capabilities.
func (p *Peer) Caps() []Cap { return p.caps }

// Disconnect requests an orderly teardown of the connection with reason.
// It returns immediately.
func (p *Peer) Disconnect(reason DiscReason) {
	select {
	case p.disc <- reason:
	case <-p.closed:
	}
}

func (p *Peer) String() string {
	return fmt.Sprintf("Peer %s %q", p.id, p.name)
}

// DoHandshake performs the HELLO exchange on an already ECIES-handshaken
// connection and returns the remote's protoHandshake. The caller is
// responsible for enabling snappy on conn once both sides' versions are
// known, via conn.SetSnappy(NegotiatedSnappy(...)); NewConnectedPeer does
// this.
func DoHandshake(conn *rlpx.Conn, ourID []byte, ourName string, protocols []Protocol, listenPort uint64) (*protoHandshake, error) {
	conn.SetDeadline(time.Now().Add(handshakeTimeout))
	defer conn.SetDeadline(time.Time{})

	our := &protoHandshake{
		Version:    ourProtocolVersion,
		ClientID:   ourName,
		ListenPort: listenPort,
		ID:         ourID,
	}
	for _, proto := range protocols {
		our.Caps = append(our.Caps, Cap{Name: proto.Name, Version: proto.Version})
	}
	sort.Sort(capsByNameAndVersion(our.Caps))

	werr := make(chan error, 1)
	go func() { werr <- sendHandshake(conn, our) }()

	their, err := readHandshake(conn)
	if err != nil {
		return nil, err
	}
	if err := <-werr; err != nil {
		return nil, err
	}
	return their, nil
}

// sendHandshake and readHandshake use the raw (non-snappy) framing path:
// HELLO is exchanged before either side knows the peer's protocolVersion,
// so it is never compressed (spec.md §4.B).
func sendHandshake(conn *rlpx.Conn, hs *protoHandshake) error {
	payload, err := rlp.EncodeToBytes(hs)
	if err != nil {
		return err
	}
	return conn.WriteMsgRaw(handshakeMsg, payload)
}

func readHandshake(conn *rlpx.Conn) (*protoHandshake, error) {
	code, data, err := conn.ReadMsgRaw()
	if err != nil {
		return nil, err
	}
	if code != handshakeMsg {
		if code == discMsg {
			reason, _ := decodeDisconnect(data, false)
			return nil, &handshakeError{reason: reason, msg: "peer disconnected before HELLO"}
		}
		return nil, fmt.Errorf("p2p: expected HELLO, got code %#x", code)
	}
	hs := new(protoHandshake)
	if err := rlp.DecodeBytes(data, hs); err != nil {
		return nil, err
	}
	if len(hs.ID) != 64 {
		return nil, &handshakeError{reason: DiscInvalidIdentity, msg: "invalid node id length in HELLO"}
	}
	return hs, nil
}

// NegotiatedSnappy reports whether both sides' HELLO protocolVersion
// support snappy-compressed frame bodies (spec.md §4.B).
func NegotiatedSnappy(ourVersion, theirVersion uint64) bool {
	v := ourVersion
	if theirVersion < v {
		v = theirVersion
	}
	return v >= snappyProtocolVersionP2P
}

const snappyProtocolVersionP2P = 5

// NewConnectedPeer runs the HELLO exchange on an already ECIES-handshaken
// conn, enables snappy once both sides' protocolVersion is known, and
// returns a Peer ready for Run. This is the usual entry point for both the
// dialing and listening sides once rlpx.Conn.Handshake has completed.
func NewConnectedPeer(conn *rlpx.Conn, id ID, ourID []byte, ourName string, protocols []Protocol, listenPort uint64) (*Peer, error) {
	their, err := DoHandshake(conn, ourID, ourName, protocols, listenPort)
	if err != nil {
		return nil, err
	}
	conn.SetSnappy(NegotiatedSnappy(ourProtocolVersion, their.Version))
	return NewPeer(conn, id, their.ClientID, their.Caps, protocols)
}

// Run starts the peer's sub-protocols and services the base protocol
// (PING/PONG/DISCONNECT) until disconnection, returning the reason.
func (p *Peer) Run() DiscReason {
	readErr := make(chan error, 1)
	defer p.closeProtocols()
	defer close(p.closed)

	p.startProtocols()
	go func() { readErr <- p.readLoop() }()

	ping := time.NewTicker(pingInterval)
	defer ping.Stop()

	var reason DiscReason
loop:
	for {
		select {
		case <-ping.C:
			go func() {
				if err := p.conn.WriteMsg(pingMsg, pingPongPayload()); err != nil {
					select {
					case p.protoErr <- err:
					case <-p.closed:
					}
				}
			}()
			go p.armPingTimeout()
		case err := <-readErr:
			p.log.Debug("p2p: read error", "err", err)
			p.conn.Close()
			return DiscNetworkError
		case err := <-p.protoErr:
			reason = discReasonForError(err)
			break loop
		case reason = <-p.disc:
			break loop
		}
	}
	p.politeDisconnect(reason)
	<-readErr
	p.log.Debug("p2p: disconnected", "reason", reason)
	return reason
}

// armPingTimeout waits for a PONG; if none arrives within the keepalive
// window it forces a TIMEOUT disconnect (spec.md §4.B, §5).
func (p *Peer) armPingTimeout() {
	select {
	case <-p.pongRecv:
	case <-time.After(pingInterval):
		select {
		case p.protoErr <- errPingTimeout:
		case <-p.closed:
		}
	case <-p.closed:
	}
}

func discReasonForError(err error) DiscReason {
	var hsErr *handshakeError
	if errors.As(err, &hsErr) {
		return hsErr.reason
	}
	if errors.Is(err, errPingTimeout) {
		return DiscReadTimeout
	}
	return DiscSubprotocolError
}

func (p *Peer) politeDisconnect(reason DiscReason) {
	done := make(chan struct{})
	go func() {
		payload, _ := rlp.EncodeToBytes(disconnectMsgData{Reason: reason})
		p.conn.WriteMsg(discMsg, payload)
		io.Copy(ioutil.Discard, discardReader{p.conn})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(disconnectGracePeriod):
	}
	p.conn.Close()
}

// discardReader drains frames off conn without interpreting them, so the
// peer can observe the other side closing its end after our DISCONNECT.
// It bypasses snappy handling entirely since we don't care about content.
type discardReader struct{ conn *rlpx.Conn }

func (d discardReader) Read(_ []byte) (int, error) {
	if _, _, err := d.conn.ReadMsgRaw(); err != nil {
		return 0, err
	}
	return 0, nil
}

// readLoop reads raw frames and special-cases DISCONNECT before applying
// any snappy decompression, since a DISCONNECT's compression state is not
// reliably predictable from the negotiated protocolVersion (spec.md §9).
// Every other message code is decompressed according to the conn's
// negotiated state before being handed to handle.
func (p *Peer) readLoop() error {
	for {
		p.conn.SetReadDeadline(time.Now().Add(frameReadTimeout))
		code, raw, err := p.conn.ReadMsgRaw()
		if err != nil {
			return err
		}
		if code == discMsg {
			reason, err := decodeDisconnect(raw, p.conn.SnappyEnabled())
			if err != nil {
				return err
			}
			p.log.Debug("p2p: disconnect requested by peer", "reason", reason)
			p.Disconnect(DiscRequested)
			return fmt.Errorf("p2p: peer requested disconnect: %s", reason)
		}
		data := raw
		if p.conn.SnappyEnabled() {
			data, err = rlpx.DecompressSnappy(raw)
			if err != nil {
				return err
			}
		}
		if err := p.handle(code, data); err != nil {
			return err
		}
	}
}

func (p *Peer) handle(code uint64, data []byte) error {
	switch {
	case code == pingMsg:
		return p.conn.WriteMsg(pongMsg, pingPongPayload())
	case code == pongMsg:
		select {
		case p.pongRecv <- struct{}{}:
		default:
		}
		return nil
	case code < baseProtocolLength:
		return nil // ignore other base-protocol codes
	default:
		proto, err := p.protoFor(code)
		if err != nil {
			return err
		}
		msg := Msg{Code: code, Size: uint32(len(data)), Payload: bytes.NewReader(data), ReceivedAt: time.Now()}
		select {
		case proto.in <- msg:
		case <-p.closed:
		}
		return nil
	}
}

// decodeDisconnect implements the historical DISCONNECT snappy-fallback:
// a DISCONNECT may legitimately arrive either compressed or uncompressed
// regardless of negotiated snappy state, because it can be sent before the
// peer has observed our HELLO. Try the caller's expected layout first,
// then the other (spec.md §4.B, §9 Open Question — preserved, not fixed).
func decodeDisconnect(data []byte, snappyExpected bool) (DiscReason, error) {
	try := func(raw []byte) (DiscReason, error) {
		var d [1]DiscReason
		if err := rlp.DecodeBytes(raw, &d); err != nil {
			return 0, err
		}
		return d[0], nil
	}

	if snappyExpected {
		if decoded, err := rlpx.DecompressSnappy(data); err == nil {
			if reason, err := try(decoded); err == nil {
				return reason, nil
			}
		}
		return try(data)
	}
	if reason, err := try(data); err == nil {
		return reason, nil
	}
	if decoded, err := rlpx.DecompressSnappy(data); err == nil {
		return try(decoded)
	}
	return 0, errors.New("p2p: malformed DISCONNECT payload")
}

func (p *Peer) protoFor(code uint64) (*protoRW, error) {
	for _, rw := range p.running {
		length := capabilityLength(rw.name)
		if code >= rw.offset && code < rw.offset+length {
			return rw, nil
		}
	}
	return nil, fmt.Errorf("p2p: message code %#x out of range for any running protocol", code)
}

func (p *Peer) startProtocols() {
	for _, rw := range p.running {
		rw := rw
		proto := p.protocolByName(rw.name)
		if proto == nil {
			p.protoWG.Add(1)
			go func() {
				defer p.protoWG.Done()
				select {
				case p.protoErr <- errProtocolNotRegistered:
				case <-p.closed:
				}
			}()
			continue
		}
		p.protoWG.Add(1)
		go func() {
			defer p.protoWG.Done()
			err := proto.Run(p, rw)
			if err == nil {
				err = errProtocolReturned
			}
			select {
			case p.protoErr <- err:
			case <-p.closed:
			}
		}()
	}
}

var errProtocolReturned = errors.New("p2p: sub-protocol handler returned")

func (p *Peer) protocolByName(name string) *Protocol {
	for i := range p.protocols {
		if p.protocols[i].Name == name {
			return &p.protocols[i]
		}
	}
	return nil
}

func (p *Peer) closeProtocols() {
	for _, rw := range p.running {
		close(rw.in)
	}
	p.protoWG.Wait()
}

// pingPongPayload returns the wire payload for PING/PONG: an RLP
// empty-list, which is what snappy compresses when protocolVersion >= 5
// (spec.md §4.B).
func pingPongPayload() []byte {
	b, _ := rlp.EncodeToBytes([]interface{}{})
	return b
}
