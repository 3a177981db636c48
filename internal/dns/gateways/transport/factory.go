package transport

import (
	"fmt"

	"github.com/haukened/rr-dns/internal/dns/common/log"
	"github.com/haukened/rr-dns/internal/dns/domain"
)

// NewTransport builds the listener for the requested wire transport, bound
// to addr but not yet started.
func NewTransport(transportType TransportType, addr string, codec domain.DNSCodec, logger log.Logger) (ServerTransport, error) {
	switch transportType {
	case TransportUDP:
		return NewUDPListener(addr, codec, logger), nil
	case TransportTCP:
		return NewTCPListener(addr, codec, logger), nil
	default:
		return nil, fmt.Errorf("unsupported transport type: %s", transportType)
	}
}
