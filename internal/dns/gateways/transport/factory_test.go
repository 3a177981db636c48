package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haukened/rr-dns/internal/dns/common/log"
)

func TestNewTransport(t *testing.T) {
	logger := log.NewNoopLogger()
	codec := fakeCodec{}

	tests := []struct {
		name          string
		transportType TransportType
		addr          string
		wantErr       bool
		errContains   string
	}{
		{name: "udp transport success", transportType: TransportUDP, addr: "127.0.0.1:0"},
		{name: "tcp transport success", transportType: TransportTCP, addr: "127.0.0.1:0"},
		{
			name:          "unsupported transport type",
			transportType: TransportType("doh"),
			addr:          "127.0.0.1:443",
			wantErr:       true,
			errContains:   "unsupported transport type: doh",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr, err := NewTransport(tt.transportType, tt.addr, codec, logger)

			if tt.wantErr {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tt.errContains)
				assert.Nil(t, tr)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, tr)
			assert.Equal(t, tt.addr, tr.Address())
		})
	}
}

func TestTransportConstants(t *testing.T) {
	assert.Equal(t, TransportType("udp"), TransportUDP)
	assert.Equal(t, TransportType("tcp"), TransportTCP)
}
