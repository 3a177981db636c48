package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haukened/rr-dns/internal/dns/config"
	"github.com/haukened/rr-dns/internal/dns/services/resolver"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

// TestApplication_Integration starts a local-role server on a real TCP port
// and confirms it starts and shuts down gracefully; no client connects.
func TestApplication_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	tempDir := t.TempDir()
	prefix := filepath.Join(tempDir, "db.")
	writeFile(t, prefix+"resolve.txt", "")
	writeFile(t, prefix+"authorised.txt", "")
	writeFile(t, prefix+"cache.txt", "")

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())
	t.Setenv("DNS_PORT", fmt.Sprintf("%d", port))

	cfg, err := config.Load([]string{"127.0.0.1", prefix, "0"})
	require.NoError(t, err)

	app, err := buildApplication(cfg)
	require.NoError(t, err)
	assert.NotNil(t, app)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	appErr := make(chan error, 1)
	go func() { appErr <- app.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-appErr:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("application failed to shut down within timeout")
	}
}

func TestBuildApplication_RoleSelectsTransport(t *testing.T) {
	tempDir := t.TempDir()
	prefix := filepath.Join(tempDir, "db.")
	writeFile(t, prefix+"resolve.txt", "")
	writeFile(t, prefix+"authorised.txt", "")
	writeFile(t, prefix+"cache.txt", "")

	tests := []struct {
		role     string
		wantType string
	}{
		{role: "0", wantType: "*transport.TCPListener"},
		{role: "1", wantType: "*transport.UDPListener"},
		{role: "2", wantType: "*transport.UDPListener"},
	}

	for _, tt := range tests {
		t.Run(tt.role, func(t *testing.T) {
			cfg, err := config.Load([]string{"127.0.0.1", prefix, tt.role})
			require.NoError(t, err)

			app, err := buildApplication(cfg)
			require.NoError(t, err)
			assert.Equal(t, tt.wantType, fmt.Sprintf("%T", app.transport))
		})
	}
}

func TestBuildApplication_ComponentIntegration(t *testing.T) {
	tempDir := t.TempDir()
	prefix := filepath.Join(tempDir, "db.")
	writeFile(t, prefix+"resolve.txt", "A\tIN\ttest.local\t10.0.0.1\t300\n")
	writeFile(t, prefix+"authorised.txt", "")
	writeFile(t, prefix+"cache.txt", "")

	cfg, err := config.Load([]string{"127.0.0.1", prefix, "1"})
	require.NoError(t, err)

	app, err := buildApplication(cfg)
	require.NoError(t, err)

	assert.NotNil(t, app.config)
	assert.NotNil(t, app.transport)
	assert.NotNil(t, app.resolver)
	assert.Equal(t, resolver.RoleAuthoritative, app.config.Role)
	assert.Equal(t, prefix+"resolve.txt", app.config.ZoneFile)
}

func TestBuildApplication_MissingBlocklistFileFails(t *testing.T) {
	tempDir := t.TempDir()
	prefix := filepath.Join(tempDir, "db.")
	writeFile(t, prefix+"resolve.txt", "")
	writeFile(t, prefix+"authorised.txt", "")
	writeFile(t, prefix+"cache.txt", "")

	t.Setenv("DNS_BLOCKLIST_FILE", filepath.Join(tempDir, "nonexistent.txt"))

	cfg, err := config.Load([]string{"127.0.0.1", prefix, "0"})
	require.NoError(t, err)

	_, err = buildApplication(cfg)
	assert.Error(t, err)
}
