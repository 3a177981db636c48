package transport

import (
	"context"
	"encoding/binary"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haukened/rr-dns/internal/dns/common/log"
	"github.com/haukened/rr-dns/internal/dns/domain"
)

func dialFramed(t *testing.T, addr net.Addr, payload []byte) []byte {
	t.Helper()
	conn, err := net.Dial("tcp", addr.String())
	require.NoError(t, err)
	defer conn.Close()

	frame := make([]byte, 2+len(payload))
	binary.BigEndian.PutUint16(frame, uint16(len(payload)))
	copy(frame[2:], payload)
	_, err = conn.Write(frame)
	require.NoError(t, err)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var lengthPrefix [2]byte
	_, err = conn.Read(lengthPrefix[:])
	require.NoError(t, err)
	respLen := binary.BigEndian.Uint16(lengthPrefix[:])
	buf := make([]byte, respLen)
	n := 0
	for n < len(buf) {
		m, err := conn.Read(buf[n:])
		require.NoError(t, err)
		n += m
	}
	return buf
}

func TestTCPListener_StartStopAddress(t *testing.T) {
	l := NewTCPListener("127.0.0.1:0", fakeCodec{}, log.NewNoopLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, l.Start(ctx, fakeHandler{resolve: func(context.Context, domain.Message) domain.Message { return domain.Message{} }}))
	assert.Equal(t, "127.0.0.1:0", l.Address())
	assert.Error(t, l.Start(ctx, fakeHandler{}), "starting twice should fail")
	require.NoError(t, l.Stop())
}

func TestTCPListener_OneConnectionPerRequestRoundTrip(t *testing.T) {
	l := NewTCPListener("127.0.0.1:0", fakeCodec{}, log.NewNoopLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var gotQuery domain.Message
	handler := fakeHandler{resolve: func(_ context.Context, q domain.Message) domain.Message {
		gotQuery = q
		return domain.Message{ID: 0x42}
	}}
	require.NoError(t, l.Start(ctx, handler))
	defer l.Stop()

	resp := dialFramed(t, l.ln.Addr(), queryMarker)
	assert.Equal(t, []byte{0x42}, resp)
	assert.Equal(t, uint16(0x1234), gotQuery.ID)

	// A second, independent connection must be served too — confirming the
	// accept loop keeps going after closing the first connection.
	resp2 := dialFramed(t, l.ln.Addr(), queryMarker)
	assert.Equal(t, []byte{0x42}, resp2)
}

func TestTCPListener_DecodeErrorClosesConnectionWithoutCrashing(t *testing.T) {
	l := NewTCPListener("127.0.0.1:0", fakeCodec{}, log.NewNoopLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	handler := fakeHandler{resolve: func(context.Context, domain.Message) domain.Message { return domain.Message{ID: 0x9} }}
	require.NoError(t, l.Start(ctx, handler))
	defer l.Stop()

	conn, err := net.Dial("tcp", l.ln.Addr().String())
	require.NoError(t, err)
	frame := []byte{0, 1, 0xFF} // length=1, undecodable payload
	_, err = conn.Write(frame)
	require.NoError(t, err)
	conn.Close()

	// The listener must still serve a subsequent, well-formed connection.
	resp := dialFramed(t, l.ln.Addr(), queryMarker)
	assert.Equal(t, []byte{0x9}, resp)
}
