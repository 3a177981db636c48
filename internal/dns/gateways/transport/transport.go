// Package transport implements the C6 listener layer: it owns the network
// socket, converts wire bytes to and from domain.Message, and hands each
// decoded query to a RequestHandler one at a time. Per spec.md §5's
// single-threaded mandate, a transport's serve loop never dispatches a
// second request before finishing the first — Start launches exactly one
// loop goroutine (never one per packet or per connection), so the server's
// own graceful-shutdown signal handling keeps the same async Start/Stop
// shape the teacher's transports use.
package transport

import (
	"context"

	"github.com/haukened/rr-dns/internal/dns/domain"
)

// ServerTransport is the contract cmd/rr-dnsd wires a listener through,
// regardless of which of the two wire transports spec.md §4.6 assigns to a
// given role.
type ServerTransport interface {
	// Start binds the listening socket and begins serving requests to
	// handler. It returns once the socket is bound; serving happens on a
	// single background goroutine.
	Start(ctx context.Context, handler RequestHandler) error
	// Stop closes the listening socket and returns; it does not wait for an
	// in-flight request to finish.
	Stop() error
	// Address returns the address the transport is bound to.
	Address() string
}

// RequestHandler is the service-layer contract a transport drives: decode a
// wire message, pass it to Resolve, encode what comes back. Resolver
// satisfies this directly.
type RequestHandler interface {
	Resolve(ctx context.Context, query domain.Message) domain.Message
}

// TransportType selects which wire transport a listener speaks. spec.md
// §4.6 names exactly two: unframed UDP for the authoritative and
// recursive-authoritative roles, and 2-byte length-framed TCP for the local
// role.
type TransportType string

const (
	TransportUDP TransportType = "udp"
	TransportTCP TransportType = "tcp"
)
