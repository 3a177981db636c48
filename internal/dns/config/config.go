// Package config loads this server's configuration: the three mandatory
// positional arguments spec.md §4.6/§9 give the original program's command
// line (bind IP, file prefix, role), plus the optional operational knobs
// this reimplementation adds (log level, upstream timeout, blocklist
// settings), loaded from DNS_-prefixed environment variables the same way
// the teacher's config package does.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/haukened/rr-dns/internal/dns/services/resolver"
)

// AppConfig holds the server's full runtime configuration.
type AppConfig struct {
	// BindIP is the address the listener binds to — spec.md §4.6's
	// <bind_ip>.
	BindIP string
	// FilePrefix names the three flat-file stores — spec.md §4.6's
	// <file_prefix>.
	FilePrefix string
	// Role selects the resolution algorithm — spec.md §4.6's <role>.
	Role resolver.Role

	// ZoneFile, AuthorityFile, and CacheFile are derived from FilePrefix:
	// "<prefix>resolve.txt", "<prefix>authorised.txt", "<prefix>cache.txt".
	ZoneFile      string
	AuthorityFile string
	CacheFile     string

	// Env is the runtime environment, either "dev" or "prod".
	Env string `koanf:"env" validate:"required,oneof=dev prod"`

	// LogLevel controls log verbosity: "debug", "info", "warn", or "error".
	LogLevel string `koanf:"log_level" validate:"required,oneof=debug info warn error"`

	// UpstreamTimeout bounds a single iterative-querier hop, replacing the
	// original implementation's unbounded recvfrom (spec.md §9).
	UpstreamTimeout time.Duration `koanf:"upstream_timeout" validate:"required,gt=0"`

	// Port is the listener's bound port. The original program always binds
	// port 53; this knob exists so the server can be run and tested
	// unprivileged on a high port.
	Port uint16 `koanf:"port" validate:"required"`

	// BlocklistFile is a plain-text block-rule list. Empty disables the
	// blocklist precheck entirely — it is a supplemental feature (SPEC_FULL
	// §11), not part of the original program.
	BlocklistFile string `koanf:"blocklist_file"`

	// BlocklistDBPath is where the compiled blocklist's persistent store
	// lives. Only consulted when BlocklistFile is set.
	BlocklistDBPath string `koanf:"blocklist_db_path"`

	// BlocklistCacheSize bounds the blocklist decision LRU cache.
	BlocklistCacheSize uint `koanf:"blocklist_cache_size" validate:"required_with=BlocklistFile,omitempty,gte=1"`

	// BlocklistFalsePositiveRate is the Bloom filter's target false-positive
	// rate when the blocklist is rebuilt.
	BlocklistFalsePositiveRate float64 `koanf:"blocklist_fp_rate" validate:"required_with=BlocklistFile,omitempty,gt=0,lt=1"`
}

// defaultOpsConfig supplies defaults for every knob Load does not source
// from a positional argument.
var defaultOpsConfig = AppConfig{
	Env:                        "prod",
	LogLevel:                   "info",
	UpstreamTimeout:            5 * time.Second,
	Port:                       53,
	BlocklistDBPath:            "/var/lib/rr-dns/blocklist.db",
	BlocklistCacheSize:         4096,
	BlocklistFalsePositiveRate: 0.01,
}

// envLoader loads environment variables with the "DNS_" prefix, lower-cased
// and stripped of that prefix to match the koanf struct tags. Var so tests
// can replace it to exercise error paths.
var envLoader = func(k *koanf.Koanf) error {
	return k.Load(env.Provider(".", env.Opt{
		Prefix: "DNS_",
		TransformFunc: func(key, value string) (string, any) {
			return strings.ToLower(strings.TrimPrefix(key, "DNS_")), strings.TrimSpace(value)
		},
	}), nil)
}

// defaultLoader seeds k with defaultOpsConfig's values. Var for the same
// reason as envLoader.
var defaultLoader = func(k *koanf.Koanf) error {
	return k.Load(structs.Provider(defaultOpsConfig, "koanf"), nil)
}

// registerValidation is a seam tests use to exercise validator registration
// failures; this server has no custom validation tags to register.
var registerValidation = func(v *validator.Validate) error {
	return nil
}

// Load parses args as the program's three mandatory positional arguments
// (bind IP, file prefix, role), layers the optional operational knobs from
// DNS_-prefixed environment variables on top, derives the three flat-file
// store paths, and validates the result.
func Load(args []string) (*AppConfig, error) {
	if len(args) != 3 {
		return nil, fmt.Errorf("usage: rr-dnsd <bind_ip> <file_prefix> <role>")
	}

	role, err := parseRole(args[2])
	if err != nil {
		return nil, err
	}

	k := koanf.New(".")
	if err := defaultLoader(k); err != nil {
		return nil, fmt.Errorf("error loading default config: %w", err)
	}
	if err := envLoader(k); err != nil {
		return nil, fmt.Errorf("error loading env: %w", err)
	}

	var cfg AppConfig
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	cfg.BindIP = args[0]
	cfg.FilePrefix = args[1]
	cfg.Role = role
	cfg.ZoneFile = cfg.FilePrefix + "resolve.txt"
	cfg.AuthorityFile = cfg.FilePrefix + "authorised.txt"
	cfg.CacheFile = cfg.FilePrefix + "cache.txt"

	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := registerValidation(validate); err != nil {
		return nil, fmt.Errorf("error registering validation: %w", err)
	}
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	return &cfg, nil
}

// parseRole maps the <role> positional argument to a resolver.Role, per
// spec.md §4.6: 0 local, 1 authoritative, 2 recursive-authoritative.
func parseRole(s string) (resolver.Role, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid role %q: must be 0, 1, or 2", s)
	}
	switch n {
	case 0:
		return resolver.RoleLocal, nil
	case 1:
		return resolver.RoleAuthoritative, nil
	case 2:
		return resolver.RoleRecursiveAuthoritative, nil
	default:
		return 0, fmt.Errorf("invalid role %d: must be 0, 1, or 2", n)
	}
}
