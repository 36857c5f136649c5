package transport

import (
	"bufio"
	"encoding/binary"
	"io"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestConn returns a WSConn wired to one end of an in-memory pipe, with
// the other end's bufio.ReadWriter for the test to act as the peer.
func newTestConn(t *testing.T) (*WSConn, *bufio.ReadWriter) {
	t.Helper()
	serverSide, peerSide := net.Pipe()
	t.Cleanup(func() { serverSide.Close(); peerSide.Close() })
	ws := &WSConn{
		conn: serverSide,
		rw:   bufio.NewReadWriter(bufio.NewReader(serverSide), bufio.NewWriter(serverSide)),
	}
	peer := bufio.NewReadWriter(bufio.NewReader(peerSide), bufio.NewWriter(peerSide))
	return ws, peer
}

// writeClientFrame masks payload (as every real client must) and writes one
// frame of opcode to peer.
func writeClientFrame(t *testing.T, peer *bufio.ReadWriter, opcode byte, payload []byte) {
	t.Helper()
	require.NoError(t, peer.WriteByte(0x80|opcode))
	n := len(payload)
	switch {
	case n <= 125:
		require.NoError(t, peer.WriteByte(0x80|byte(n)))
	case n <= 0xFFFF:
		require.NoError(t, peer.WriteByte(0x80|126))
		var ext [2]byte
		binary.BigEndian.PutUint16(ext[:], uint16(n))
		_, err := peer.Write(ext[:])
		require.NoError(t, err)
	default:
		t.Fatalf("test helper does not support 64-bit lengths")
	}
	maskKey := [4]byte{0x12, 0x34, 0x56, 0x78}
	_, err := peer.Write(maskKey[:])
	require.NoError(t, err)
	masked := make([]byte, n)
	for i, b := range payload {
		masked[i] = b ^ maskKey[i%4]
	}
	_, err = peer.Write(masked)
	require.NoError(t, err)
	require.NoError(t, peer.Flush())
}

// readServerFrame reads one unmasked frame written by a WSConn, as every
// server-to-client frame must be.
func readServerFrame(t *testing.T, peer *bufio.ReadWriter) (opcode byte, payload []byte) {
	t.Helper()
	var head [2]byte
	_, err := io.ReadFull(peer, head[:])
	require.NoError(t, err)
	assert.Equal(t, byte(0x80), head[0]&0x80, "FIN must be set")
	assert.Equal(t, byte(0), head[1]&0x80, "server frames must not be masked")
	opcode = head[0] & 0x0F
	length := uint64(head[1] & 0x7F)
	switch length {
	case 126:
		var ext [2]byte
		_, err := io.ReadFull(peer, ext[:])
		require.NoError(t, err)
		length = uint64(binary.BigEndian.Uint16(ext[:]))
	case 127:
		var ext [8]byte
		_, err := io.ReadFull(peer, ext[:])
		require.NoError(t, err)
		length = binary.BigEndian.Uint64(ext[:])
	}
	payload = make([]byte, length)
	_, err = io.ReadFull(peer, payload)
	require.NoError(t, err)
	return opcode, payload
}

func TestReadMessageUnmasksClientTextFrame(t *testing.T) {
	ws, peer := newTestConn(t)
	go writeClientFrame(t, peer, opText, []byte(`{"type":"hello"}`))

	got, err := ws.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, `{"type":"hello"}`, string(got))
}

func TestReadMessageHandlesExtended16BitLength(t *testing.T) {
	ws, peer := newTestConn(t)
	payload := make([]byte, 300)
	for i := range payload {
		payload[i] = byte(i)
	}
	go writeClientFrame(t, peer, opText, payload)

	got, err := ws.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestReadMessageAnswersPingWithPongAndContinues(t *testing.T) {
	ws, peer := newTestConn(t)
	go func() {
		writeClientFrame(t, peer, opPing, []byte("are you there"))
		writeClientFrame(t, peer, opText, []byte("payload after ping"))
	}()

	type frame struct {
		opcode  byte
		payload []byte
	}
	pong := make(chan frame, 1)
	go func() {
		opcode, payload := readServerFrame(t, peer)
		pong <- frame{opcode, payload}
	}()

	got, err := ws.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "payload after ping", string(got))

	p := <-pong
	assert.Equal(t, opPong, p.opcode)
	assert.Equal(t, "are you there", string(p.payload))
}

func TestReadMessageReturnsEOFOnCloseFrame(t *testing.T) {
	ws, peer := newTestConn(t)
	go writeClientFrame(t, peer, opClose, nil)
	// The server answers the close with its own close frame; drain it so
	// that write doesn't block ReadMessage from returning.
	go func() {
		buf := make([]byte, 64)
		for {
			if _, err := peer.Read(buf); err != nil {
				return
			}
		}
	}()

	_, err := ws.ReadMessage()
	assert.ErrorIs(t, err, io.EOF)
}

func TestWriteMessageProducesUnmaskedTextFrame(t *testing.T) {
	ws, peer := newTestConn(t)
	done := make(chan error, 1)
	go func() { done <- ws.WriteMessage([]byte("hi there")) }()

	opcode, payload := readServerFrame(t, peer)
	require.NoError(t, <-done)
	assert.Equal(t, opText, opcode)
	assert.Equal(t, "hi there", string(payload))
}

func TestWriteMessageUsesExtended16BitLengthPastThreshold(t *testing.T) {
	ws, peer := newTestConn(t)
	payload := make([]byte, 200)
	done := make(chan error, 1)
	go func() { done <- ws.WriteMessage(payload) }()

	opcode, got := readServerFrame(t, peer)
	require.NoError(t, <-done)
	assert.Equal(t, opText, opcode)
	assert.Equal(t, payload, got)
}

func TestCloseWritesCloseFrame(t *testing.T) {
	ws, peer := newTestConn(t)
	done := make(chan error, 1)
	go func() { done <- ws.Close() }()

	opcode, _ := readServerFrame(t, peer)
	assert.Equal(t, opClose, opcode)
	require.NoError(t, <-done)
}
