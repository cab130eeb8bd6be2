package p2p

import (
	"net"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"github.com/nodecore/gnode/p2p/rlpx"
)

func handshakenConnPair(t *testing.T) (clientConn, serverConn *rlpx.Conn) {
	t.Helper()
	clientPrv, err := crypto.GenerateKey()
	require.NoError(t, err)
	serverPrv, err := crypto.GenerateKey()
	require.NoError(t, err)

	local, remote := net.Pipe()
	clientConn = rlpx.NewConn(local, &serverPrv.PublicKey)
	serverConn = rlpx.NewConn(remote, nil)

	var wg sync.WaitGroup
	wg.Add(2)
	var errC, errS error
	go func() { defer wg.Done(); _, errC = clientConn.Handshake(clientPrv) }()
	go func() { defer wg.Done(); _, errS = serverConn.Handshake(serverPrv) }()
	wg.Wait()
	require.NoError(t, errC)
	require.NoError(t, errS)
	return clientConn, serverConn
}

// TestHelloHandshakeNegotiatesSnappy runs DoHandshake on both ends of a real
// ECIES-handshaken conn pair and checks both recover the other's
// capabilities and agree snappy is enabled (both advertise
// ourProtocolVersion, which is >= the compression threshold).
func TestHelloHandshakeNegotiatesSnappy(t *testing.T) {
	clientConn, serverConn := handshakenConnPair(t)
	protocols := []Protocol{{Name: "eth", Version: 66, Length: 16}}

	var wg sync.WaitGroup
	wg.Add(2)
	var clientHS, serverHS *protoHandshake
	var errC, errS error
	go func() {
		defer wg.Done()
		clientHS, errC = DoHandshake(clientConn, make([]byte, 64), "client", protocols, 30303)
	}()
	go func() {
		defer wg.Done()
		serverHS, errS = DoHandshake(serverConn, make([]byte, 64), "server", protocols, 30303)
	}()
	wg.Wait()

	require.NoError(t, errC)
	require.NoError(t, errS)
	require.Equal(t, "server", clientHS.ClientID)
	require.Equal(t, "client", serverHS.ClientID)
	require.True(t, NegotiatedSnappy(uint64(ourProtocolVersion), uint64(ourProtocolVersion)))
}

// TestPeerRunExchangesSubprotocolMessageAndDisconnects drives a full
// handshake (ECIES + HELLO) between two Peers whose single eth/66 protocol
// carries one message from client to server, then lets each side's Run loop
// end via its protocol handler returning (spec.md §4.B: a sub-protocol Run
// returning ends the connection with a subprotocol-error disconnect).
func TestPeerRunExchangesSubprotocolMessageAndDisconnects(t *testing.T) {
	clientConn, serverConn := handshakenConnPair(t)

	received := make(chan Msg, 1)
	serverProtocols := []Protocol{{
		Name: "eth", Version: 66, Length: 16,
		Run: func(peer *Peer, rw MsgReadWriter) error {
			msg, err := rw.ReadMsg()
			if err != nil {
				return err
			}
			received <- msg
			return msg.Discard()
		},
	}}
	clientProtocols := []Protocol{{
		Name: "eth", Version: 66, Length: 16,
		Run: func(peer *Peer, rw MsgReadWriter) error {
			return Send(rw, 0, []byte("hi"))
		},
	}}

	var wg sync.WaitGroup
	wg.Add(2)
	var clientPeer, serverPeer *Peer
	var errC, errS error
	go func() {
		defer wg.Done()
		clientPeer, errC = NewConnectedPeer(clientConn, ID{1}, make([]byte, 64), "client", clientProtocols, 30303)
	}()
	go func() {
		defer wg.Done()
		serverPeer, errS = NewConnectedPeer(serverConn, ID{2}, make([]byte, 64), "server", serverProtocols, 30303)
	}()
	wg.Wait()
	require.NoError(t, errC)
	require.NoError(t, errS)

	clientReason := make(chan DiscReason, 1)
	serverReason := make(chan DiscReason, 1)
	go func() { clientReason <- clientPeer.Run() }()
	go func() { serverReason <- serverPeer.Run() }()

	select {
	case msg := <-received:
		require.Equal(t, uint64(0), msg.Code)
	case <-time.After(3 * time.Second):
		t.Fatal("server protocol never received the client's message")
	}

	require.Equal(t, DiscSubprotocolError, <-clientReason)
	require.Equal(t, DiscSubprotocolError, <-serverReason)
}
