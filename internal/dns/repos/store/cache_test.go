package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/haukened/rr-dns/internal/dns/domain"
)

func TestCachingStore_ServesFromCacheAfterFirstLookup(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "zone.txt", "A\tIN\twww.example.com\t1.2.3.4\t3600\n")
	inner := New(path)
	cached, err := NewCachingStore(inner, 16)
	if err != nil {
		t.Fatalf("NewCachingStore: %v", err)
	}

	name := mustName(t, "www.example.com")
	if _, _, err := cached.Lookup(name, domain.RRTypeA, domain.RRClassIN); err != nil {
		t.Fatalf("Lookup: %v", err)
	}

	// Remove the backing file; a cache hit should still answer.
	if err := os.Remove(path); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	rr, kind, err := cached.Lookup(name, domain.RRTypeA, domain.RRClassIN)
	if err != nil {
		t.Fatalf("Lookup (cached): %v", err)
	}
	if kind != ExactMatch || rr.Data.String() != "1.2.3.4" {
		t.Errorf("expected cached hit, got kind=%v rr=%+v", kind, rr)
	}
}

func TestCachingStore_WritebackPurgesCache(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cache.txt")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	inner := New(path)
	cached, err := NewCachingStore(inner, 16)
	if err != nil {
		t.Fatalf("NewCachingStore: %v", err)
	}

	name := mustName(t, "www.example.com")
	if _, kind, err := cached.Lookup(name, domain.RRTypeA, domain.RRClassIN); err != nil || kind != NoMatch {
		t.Fatalf("Lookup: kind=%v err=%v", kind, err)
	}

	data, _ := domain.NewARecordData("9.9.9.9")
	rr, _ := domain.NewAuthoritativeRecord(name, domain.RRClassIN, 60, data)
	if err := cached.Writeback(rr); err != nil {
		t.Fatalf("Writeback: %v", err)
	}

	got, kind, err := cached.Lookup(name, domain.RRTypeA, domain.RRClassIN)
	if err != nil {
		t.Fatalf("Lookup after writeback: %v", err)
	}
	if kind != ExactMatch || got.Data.String() != "9.9.9.9" {
		t.Errorf("expected fresh data after writeback purged the cache, got kind=%v rr=%+v", kind, got)
	}
}
