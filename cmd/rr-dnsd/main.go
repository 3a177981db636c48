package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/haukened/rr-dns/internal/dns/common/clock"
	"github.com/haukened/rr-dns/internal/dns/common/log"
	"github.com/haukened/rr-dns/internal/dns/config"
	"github.com/haukened/rr-dns/internal/dns/gateways/transport"
	"github.com/haukened/rr-dns/internal/dns/gateways/upstream"
	"github.com/haukened/rr-dns/internal/dns/gateways/wire"
	"github.com/haukened/rr-dns/internal/dns/repos/blocklist"
	"github.com/haukened/rr-dns/internal/dns/repos/blocklist/bloom"
	"github.com/haukened/rr-dns/internal/dns/repos/blocklist/bolt"
	"github.com/haukened/rr-dns/internal/dns/repos/blocklist/lru"
	"github.com/haukened/rr-dns/internal/dns/repos/blocklist/parsers"
	"github.com/haukened/rr-dns/internal/dns/repos/store"
	"github.com/haukened/rr-dns/internal/dns/services/resolver"
)

const (
	version = "0.1.0-dev"
	appName = "rr-dnsd"

	defaultShutdownTimeout = 10 * time.Second
)

// Application holds the wired components of the DNS server.
type Application struct {
	config    *config.AppConfig
	transport transport.ServerTransport
	resolver  *resolver.Resolver
}

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}

	if err := log.Configure(cfg.Env, cfg.LogLevel); err != nil {
		fmt.Fprintf(os.Stderr, "Logging configuration error: %v\n", err)
		os.Exit(1)
	}

	log.Info(map[string]any{
		"version":     version,
		"env":         cfg.Env,
		"log_level":   cfg.LogLevel,
		"bind_ip":     cfg.BindIP,
		"role":        cfg.Role,
		"file_prefix": cfg.FilePrefix,
	}, "starting rr-dnsd")

	app, err := buildApplication(cfg)
	if err != nil {
		log.Fatal(map[string]any{"error": err}, "failed to build application")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.Info(map[string]any{"signal": sig.String()}, "shutdown signal received")
		cancel()
	}()

	if err := app.Run(ctx); err != nil {
		log.Fatal(map[string]any{"error": err}, "server failed")
	}

	log.Info(nil, "rr-dnsd stopped gracefully")
}

// buildApplication wires the store, blocklist, upstream, resolver, and
// transport layers together from cfg, per spec.md §4.6's three-argument CLI
// contract: bind IP, file prefix, and role select which stores and
// transport the server runs.
func buildApplication(cfg *config.AppConfig) (*Application, error) {
	clk := clock.RealClock{}
	logger := log.GetLogger()
	codec := wire.NewCodec(logger)

	zone := store.New(cfg.ZoneFile)
	authority := store.New(cfg.AuthorityFile)
	cache := store.New(cfg.CacheFile)

	blocklistRepo, err := buildBlocklist(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to build blocklist: %w", err)
	}

	querier := upstream.New(upstream.Options{
		Codec:   codec,
		Timeout: cfg.UpstreamTimeout,
	})

	resolverService := resolver.New(cfg.Role, zone, cache, authority, blocklistRepo, querier, clk, logger)

	addr := fmt.Sprintf("%s:%d", cfg.BindIP, cfg.Port)
	transportType := transportForRole(cfg.Role)
	listener, err := transport.NewTransport(transportType, addr, codec, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to build transport: %w", err)
	}

	return &Application{
		config:    cfg,
		transport: listener,
		resolver:  resolverService,
	}, nil
}

// transportForRole picks the wire transport spec.md §4.6 assigns each role:
// the local role speaks length-framed TCP to its stub clients, while the
// authoritative and recursive-authoritative roles speak unframed UDP.
func transportForRole(role resolver.Role) transport.TransportType {
	if role == resolver.RoleLocal {
		return transport.TransportTCP
	}
	return transport.TransportUDP
}

// buildBlocklist wires the bbolt-backed store, LRU decision cache, and
// Bloom-filter precheck into a blocklist.Repository, loading cfg.BlocklistFile
// into it if one was configured. An empty BlocklistFile returns
// resolver.NoopBlocklist{} — the blocklist precheck is a supplemental
// feature (SPEC_FULL §11), not part of the original program, so it is
// entirely optional.
func buildBlocklist(cfg *config.AppConfig, logger log.Logger) (resolver.Blocklist, error) {
	if cfg.BlocklistFile == "" {
		return resolver.NoopBlocklist{}, nil
	}

	boltStore, err := bolt.New(cfg.BlocklistDBPath)
	if err != nil {
		return nil, fmt.Errorf("open blocklist store %s: %w", cfg.BlocklistDBPath, err)
	}

	cacheSize := cfg.BlocklistCacheSize
	if cacheSize > uint(^uint(0)>>1) {
		return nil, fmt.Errorf("blocklist cache size too large: %d", cacheSize)
	}
	decisionCache, err := lru.New(int(cacheSize))
	if err != nil {
		return nil, fmt.Errorf("build blocklist decision cache: %w", err)
	}

	repo := blocklist.NewRepository(boltStore, decisionCache, bloom.NewFactory(), cfg.BlocklistFalsePositiveRate)

	f, err := os.Open(cfg.BlocklistFile)
	if err != nil {
		return nil, fmt.Errorf("open blocklist file %s: %w", cfg.BlocklistFile, err)
	}
	defer f.Close()

	rules, err := parsers.ParsePlainList(f, cfg.BlocklistFile, logger, time.Now())
	if err != nil {
		return nil, fmt.Errorf("parse blocklist file %s: %w", cfg.BlocklistFile, err)
	}
	if err := repo.UpdateAll(rules, 1, time.Now().Unix()); err != nil {
		return nil, fmt.Errorf("load blocklist rules: %w", err)
	}

	log.Info(map[string]any{"file": cfg.BlocklistFile, "rules": len(rules)}, "blocklist loaded")

	return blocklist.Adapter{Repo: repo}, nil
}

// Run starts the transport and blocks until ctx is cancelled, then shuts
// down gracefully.
func (app *Application) Run(ctx context.Context) error {
	if err := app.transport.Start(ctx, app.resolver); err != nil {
		return fmt.Errorf("failed to start transport: %w", err)
	}

	log.Info(map[string]any{"address": app.transport.Address()}, "dns server started")

	<-ctx.Done()
	log.Info(nil, "shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer cancel()

	if err := app.transport.Stop(); err != nil {
		log.Warn(map[string]any{"error": err}, "error during transport shutdown")
	}

	done := make(chan struct{})
	go func() { close(done) }()

	select {
	case <-done:
		log.Info(nil, "graceful shutdown completed")
		return nil
	case <-shutdownCtx.Done():
		log.Warn(map[string]any{"timeout": defaultShutdownTimeout}, "shutdown timeout exceeded")
		return fmt.Errorf("shutdown timeout")
	}
}
