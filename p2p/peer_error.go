package p2p

import (
	"fmt"
	"io"

	"github.com/ethereum/go-ethereum/rlp"
)

// DiscReason is the canonical RLPx disconnect reason code (spec.md §6).
type DiscReason byte

const (
	DiscRequested DiscReason = iota
	DiscNetworkError
	DiscProtocolError
	DiscUselessPeer
	DiscTooManyPeers
	DiscAlreadyConnected
	DiscIncompatibleVersion
	DiscInvalidIdentity
	DiscQuitting
	DiscUnexpectedIdentity
	DiscSelf
	DiscReadTimeout
	discReserved0x0c
	discReserved0x0d
	discReserved0x0e
	discReserved0x0f
	DiscSubprotocolError = DiscReason(0x10)
)

var discReasonToString = map[DiscReason]string{
	DiscRequested:           "disconnect requested",
	DiscNetworkError:        "network error",
	DiscProtocolError:       "breach of protocol",
	DiscUselessPeer:         "useless peer",
	DiscTooManyPeers:        "too many peers",
	DiscAlreadyConnected:    "already connected",
	DiscIncompatibleVersion: "incompatible p2p protocol version",
	DiscInvalidIdentity:     "invalid node identity",
	DiscQuitting:            "client quitting",
	DiscUnexpectedIdentity:  "unexpected identity",
	DiscSelf:                "connected to self",
	DiscReadTimeout:         "read timeout",
	DiscSubprotocolError:    "subprotocol error",
}

func (d DiscReason) String() string {
	if s, ok := discReasonToString[d]; ok {
		return s
	}
	return fmt.Sprintf("unknown disconnect reason %#x", byte(d))
}

func (d DiscReason) Error() string { return d.String() }

// EncodeRLP encodes a DiscReason as a single-element RLP list, matching the
// wire layout real clients emit for DISCONNECT (and still accepted by most
// of them when sent as a bare integer).
func (d DiscReason) EncodeRLP(w io.Writer) error {
	return rlp.Encode(w, []interface{}{uint(d)})
}

// DecodeRLP accepts either layout: a single-element list (the common case)
// or a bare integer, since both are observed on the wire.
func (d *DiscReason) DecodeRLP(s *rlp.Stream) error {
	kind, _, err := s.Kind()
	if err != nil {
		return err
	}
	if kind == rlp.List {
		var reasons [1]uint
		if err := s.Decode(&reasons); err != nil {
			return err
		}
		*d = DiscReason(reasons[0])
		return nil
	}
	var reason uint
	if err := s.Decode(&reason); err != nil {
		return err
	}
	*d = DiscReason(reason)
	return nil
}
