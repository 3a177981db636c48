package transport

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/haukened/rr-dns/internal/dns/common/log"
	"github.com/haukened/rr-dns/internal/dns/domain"
)

// maxTCPMessageSize bounds a single framed TCP message to what a 2-byte
// length prefix can carry.
const maxTCPMessageSize = 0xFFFF

// TCPListener serves the local role's length-framed TCP transport, per
// spec.md §4.6: each request gets its own connection, a 2-byte big-endian
// length prefix precedes both the request and the response, and the
// connection closes once the response has been written. There is no
// teacher equivalent — the production repo this server is adapted from
// only ever speaks UDP.
type TCPListener struct {
	addr   string
	ln     *net.TCPListener
	codec  domain.DNSCodec
	logger log.Logger

	mu      sync.RWMutex
	running bool
	stopCh  chan struct{}
}

// NewTCPListener builds a TCPListener bound to addr once Start is called.
func NewTCPListener(addr string, codec domain.DNSCodec, logger log.Logger) *TCPListener {
	return &TCPListener{
		addr:   addr,
		codec:  codec,
		logger: logger,
		stopCh: make(chan struct{}),
	}
}

// Start binds the TCP socket and launches the single sequential accept loop.
func (t *TCPListener) Start(ctx context.Context, handler RequestHandler) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.running {
		return fmt.Errorf("tcp transport already running")
	}

	tcpAddr, err := net.ResolveTCPAddr("tcp", t.addr)
	if err != nil {
		return fmt.Errorf("resolve tcp address %s: %w", t.addr, err)
	}
	ln, err := net.ListenTCP("tcp", tcpAddr)
	if err != nil {
		return fmt.Errorf("bind tcp socket on %s: %w", t.addr, err)
	}

	t.ln = ln
	t.running = true

	t.logger.Info(map[string]any{"transport": "tcp", "address": t.addr}, "dns transport started")

	go t.serve(ctx, handler)
	return nil
}

// Stop closes the listening socket, unblocking the accept loop.
func (t *TCPListener) Stop() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.running {
		return nil
	}
	close(t.stopCh)
	t.running = false

	err := t.ln.Close()
	if err != nil {
		t.logger.Warn(map[string]any{"error": err.Error()}, "error closing tcp listener")
	}
	t.logger.Info(map[string]any{"transport": "tcp", "address": t.addr}, "dns transport stopped")
	return err
}

// Address returns the bound address.
func (t *TCPListener) Address() string {
	return t.addr
}

// serve is the single sequential accept loop: one connection, fully
// handled end to end, before the next Accept call — matching the original
// server's accept/recv/send/close cycle.
func (t *TCPListener) serve(ctx context.Context, handler RequestHandler) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.stopCh:
			return
		default:
		}

		conn, err := t.ln.Accept()
		if err != nil {
			t.mu.RLock()
			running := t.running
			t.mu.RUnlock()
			if !running {
				return
			}
			t.logger.Warn(map[string]any{"error": err.Error()}, "failed to accept tcp connection")
			continue
		}

		t.handleConn(ctx, conn, handler)
	}
}

// handleConn reads one length-framed request, resolves it, writes one
// length-framed response, and closes the connection.
func (t *TCPListener) handleConn(ctx context.Context, conn net.Conn, handler RequestHandler) {
	defer conn.Close()

	var lengthPrefix [2]byte
	if _, err := io.ReadFull(conn, lengthPrefix[:]); err != nil {
		t.logger.Warn(map[string]any{"client": conn.RemoteAddr().String(), "error": err.Error()}, "failed to read tcp length prefix")
		return
	}
	length := binary.BigEndian.Uint16(lengthPrefix[:])

	payload := make([]byte, length)
	if _, err := io.ReadFull(conn, payload); err != nil {
		t.logger.Warn(map[string]any{"client": conn.RemoteAddr().String(), "error": err.Error()}, "failed to read tcp message body")
		return
	}

	query, err := t.codec.Decode(payload)
	if err != nil {
		t.logger.Warn(map[string]any{"client": conn.RemoteAddr().String(), "error": err.Error()}, "failed to decode dns query")
		return
	}

	response := handler.Resolve(ctx, query)

	raw, err := t.codec.Encode(response)
	if err != nil {
		t.logger.Error(map[string]any{"client": conn.RemoteAddr().String(), "error": err.Error()}, "failed to encode dns response")
		return
	}
	if len(raw) > maxTCPMessageSize {
		t.logger.Error(map[string]any{"client": conn.RemoteAddr().String(), "size": len(raw)}, "dns response too large for tcp framing")
		return
	}

	out := make([]byte, 2+len(raw))
	binary.BigEndian.PutUint16(out, uint16(len(raw)))
	copy(out[2:], raw)

	if _, err := conn.Write(out); err != nil {
		t.logger.Error(map[string]any{"client": conn.RemoteAddr().String(), "error": err.Error()}, "failed to send dns response")
	}
}
