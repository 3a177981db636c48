package config

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haukened/rr-dns/internal/dns/services/resolver"
)

func TestLoad_RequiresThreeArgs(t *testing.T) {
	_, err := Load([]string{"127.0.0.1", "/tmp/db."})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "usage:")
}

func TestLoad_ValidPositionalArgs(t *testing.T) {
	tests := []struct {
		name     string
		role     string
		wantRole resolver.Role
	}{
		{name: "local", role: "0", wantRole: resolver.RoleLocal},
		{name: "authoritative", role: "1", wantRole: resolver.RoleAuthoritative},
		{name: "recursive authoritative", role: "2", wantRole: resolver.RoleRecursiveAuthoritative},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load([]string{"192.168.1.1", "/tmp/db.", tt.role})
			require.NoError(t, err)
			assert.Equal(t, "192.168.1.1", cfg.BindIP)
			assert.Equal(t, "/tmp/db.", cfg.FilePrefix)
			assert.Equal(t, tt.wantRole, cfg.Role)
			assert.Equal(t, "/tmp/db.resolve.txt", cfg.ZoneFile)
			assert.Equal(t, "/tmp/db.authorised.txt", cfg.AuthorityFile)
			assert.Equal(t, "/tmp/db.cache.txt", cfg.CacheFile)
		})
	}
}

func TestLoad_InvalidRole(t *testing.T) {
	tests := []string{"3", "-1", "notanumber", ""}
	for _, role := range tests {
		t.Run(role, func(t *testing.T) {
			_, err := Load([]string{"127.0.0.1", "/tmp/db.", role})
			assert.Error(t, err)
		})
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load([]string{"127.0.0.1", "/tmp/db.", "0"})
	require.NoError(t, err)

	assert.Equal(t, "prod", cfg.Env)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 5*time.Second, cfg.UpstreamTimeout)
	assert.Equal(t, uint16(53), cfg.Port)
	assert.Equal(t, "/var/lib/rr-dns/blocklist.db", cfg.BlocklistDBPath)
	assert.Equal(t, uint(4096), cfg.BlocklistCacheSize)
	assert.Equal(t, 0.01, cfg.BlocklistFalsePositiveRate)
	assert.Empty(t, cfg.BlocklistFile)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("DNS_ENV", "dev")
	t.Setenv("DNS_LOG_LEVEL", "debug")
	t.Setenv("DNS_UPSTREAM_TIMEOUT", "2s")
	t.Setenv("DNS_PORT", "9953")
	t.Setenv("DNS_BLOCKLIST_FILE", "/etc/rr-dns/block.txt")
	t.Setenv("DNS_BLOCKLIST_DB_PATH", "/tmp/blk.db")
	t.Setenv("DNS_BLOCKLIST_CACHE_SIZE", "8192")
	t.Setenv("DNS_BLOCKLIST_FP_RATE", "0.02")

	cfg, err := Load([]string{"127.0.0.1", "/tmp/db.", "1"})
	require.NoError(t, err)

	assert.Equal(t, "dev", cfg.Env)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 2*time.Second, cfg.UpstreamTimeout)
	assert.Equal(t, uint16(9953), cfg.Port)
	assert.Equal(t, "/etc/rr-dns/block.txt", cfg.BlocklistFile)
	assert.Equal(t, "/tmp/blk.db", cfg.BlocklistDBPath)
	assert.Equal(t, uint(8192), cfg.BlocklistCacheSize)
	assert.Equal(t, 0.02, cfg.BlocklistFalsePositiveRate)
}

func TestLoad_InvalidEnv(t *testing.T) {
	t.Setenv("DNS_ENV", "staging")
	_, err := Load([]string{"127.0.0.1", "/tmp/db.", "0"})
	assert.Error(t, err)
}

func TestLoad_InvalidLogLevel(t *testing.T) {
	t.Setenv("DNS_LOG_LEVEL", "trace")
	_, err := Load([]string{"127.0.0.1", "/tmp/db.", "0"})
	assert.Error(t, err)
}

func TestLoad_InvalidUpstreamTimeout(t *testing.T) {
	t.Setenv("DNS_UPSTREAM_TIMEOUT", "0s")
	_, err := Load([]string{"127.0.0.1", "/tmp/db.", "0"})
	assert.Error(t, err)
}

func TestLoad_BlocklistCacheSizeRequiredWithBlocklistFile(t *testing.T) {
	t.Setenv("DNS_BLOCKLIST_FILE", "/etc/rr-dns/block.txt")
	t.Setenv("DNS_BLOCKLIST_CACHE_SIZE", "0")
	_, err := Load([]string{"127.0.0.1", "/tmp/db.", "0"})
	assert.Error(t, err)
}

func TestLoad_BlocklistFPRateRequiredWithBlocklistFile(t *testing.T) {
	t.Setenv("DNS_BLOCKLIST_FILE", "/etc/rr-dns/block.txt")
	t.Setenv("DNS_BLOCKLIST_FP_RATE", "1.5")
	_, err := Load([]string{"127.0.0.1", "/tmp/db.", "0"})
	assert.Error(t, err)
}

func TestLoad_WhenKoanfDefaultLoadFails(t *testing.T) {
	orig := defaultLoader
	defaultLoader = func(k *koanf.Koanf) error { return errors.New("mocked error") }
	defer func() { defaultLoader = orig }()

	_, err := Load([]string{"127.0.0.1", "/tmp/db.", "0"})
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "mocked error"))
}

func TestLoad_WhenKoanfEnvLoadFails(t *testing.T) {
	orig := envLoader
	envLoader = func(k *koanf.Koanf) error { return errors.New("mocked error") }
	defer func() { envLoader = orig }()

	_, err := Load([]string{"127.0.0.1", "/tmp/db.", "0"})
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "mocked error"))
}

func TestLoad_RegisterValidationFails(t *testing.T) {
	orig := registerValidation
	registerValidation = func(v *validator.Validate) error { return errors.New("mocked validation error") }
	defer func() { registerValidation = orig }()

	_, err := Load([]string{"127.0.0.1", "/tmp/db.", "0"})
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "mocked validation error"))
}

func TestDefaultLoader_LoadsDefaults(t *testing.T) {
	k := koanf.New(".")
	require.NoError(t, defaultLoader(k))

	var cfg AppConfig
	require.NoError(t, k.Unmarshal("", &cfg))

	assert.Equal(t, defaultOpsConfig.Env, cfg.Env)
	assert.Equal(t, defaultOpsConfig.LogLevel, cfg.LogLevel)
	assert.Equal(t, defaultOpsConfig.UpstreamTimeout, cfg.UpstreamTimeout)
	assert.Equal(t, defaultOpsConfig.Port, cfg.Port)
	assert.Equal(t, defaultOpsConfig.BlocklistDBPath, cfg.BlocklistDBPath)
	assert.Equal(t, defaultOpsConfig.BlocklistCacheSize, cfg.BlocklistCacheSize)
	assert.Equal(t, defaultOpsConfig.BlocklistFalsePositiveRate, cfg.BlocklistFalsePositiveRate)
}

func TestParseRole(t *testing.T) {
	tests := []struct {
		in      string
		want    resolver.Role
		wantErr bool
	}{
		{in: "0", want: resolver.RoleLocal},
		{in: "1", want: resolver.RoleAuthoritative},
		{in: "2", want: resolver.RoleRecursiveAuthoritative},
		{in: "3", wantErr: true},
		{in: "x", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseRole(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
