package transport

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/haukened/rr-dns/internal/dns/common/log"
	"github.com/haukened/rr-dns/internal/dns/domain"
)

// maxDatagramSize bounds a single inbound UDP read.
const maxDatagramSize = 512

// UDPListener serves the authoritative and recursive-authoritative roles'
// unframed-UDP transport, per spec.md §4.6. It reads one datagram, resolves
// it, writes one datagram back, and only then reads the next — there is no
// per-packet goroutine, matching the single in-flight-request model the
// original server's recvfrom loop used.
type UDPListener struct {
	addr   string
	conn   *net.UDPConn
	codec  domain.DNSCodec
	logger log.Logger

	mu      sync.RWMutex
	running bool
	stopCh  chan struct{}
}

// NewUDPListener builds a UDPListener bound to addr once Start is called.
func NewUDPListener(addr string, codec domain.DNSCodec, logger log.Logger) *UDPListener {
	return &UDPListener{
		addr:   addr,
		codec:  codec,
		logger: logger,
		stopCh: make(chan struct{}),
	}
}

// Start binds the UDP socket and launches the single sequential serve loop.
func (t *UDPListener) Start(ctx context.Context, handler RequestHandler) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.running {
		return fmt.Errorf("udp transport already running")
	}

	udpAddr, err := net.ResolveUDPAddr("udp", t.addr)
	if err != nil {
		return fmt.Errorf("resolve udp address %s: %w", t.addr, err)
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return fmt.Errorf("bind udp socket on %s: %w", t.addr, err)
	}

	t.conn = conn
	t.running = true

	t.logger.Info(map[string]any{"transport": "udp", "address": t.addr}, "dns transport started")

	go t.serve(ctx, handler)
	return nil
}

// Stop closes the listening socket, unblocking the serve loop's pending read.
func (t *UDPListener) Stop() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.running {
		return nil
	}
	close(t.stopCh)
	t.running = false

	err := t.conn.Close()
	if err != nil {
		t.logger.Warn(map[string]any{"error": err.Error()}, "error closing udp connection")
	}
	t.logger.Info(map[string]any{"transport": "udp", "address": t.addr}, "dns transport stopped")
	return err
}

// Address returns the bound address.
func (t *UDPListener) Address() string {
	return t.addr
}

// serve is the single sequential accept loop: one datagram in, one
// datagram out, repeat. No request is handled concurrently with another.
func (t *UDPListener) serve(ctx context.Context, handler RequestHandler) {
	buf := make([]byte, maxDatagramSize)
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.stopCh:
			return
		default:
		}

		n, clientAddr, err := t.conn.ReadFromUDP(buf)
		if err != nil {
			t.mu.RLock()
			running := t.running
			t.mu.RUnlock()
			if !running {
				return
			}
			t.logger.Warn(map[string]any{"error": err.Error()}, "failed to read udp packet")
			continue
		}

		query, err := t.codec.Decode(buf[:n])
		if err != nil {
			t.logger.Warn(map[string]any{"client": clientAddr.String(), "error": err.Error()}, "failed to decode dns query")
			continue
		}

		response := handler.Resolve(ctx, query)

		raw, err := t.codec.Encode(response)
		if err != nil {
			t.logger.Error(map[string]any{"client": clientAddr.String(), "error": err.Error()}, "failed to encode dns response")
			continue
		}

		if _, err := t.conn.WriteToUDP(raw, clientAddr); err != nil {
			t.logger.Error(map[string]any{"client": clientAddr.String(), "error": err.Error()}, "failed to send dns response")
		}
	}
}
