package store

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/haukened/rr-dns/internal/dns/common/names"
	"github.com/haukened/rr-dns/internal/dns/domain"
)

// lookupKey identifies one Lookup call's inputs.
type lookupKey struct {
	name  string
	rtype domain.RRType
	class domain.RRClass
}

type lookupValue struct {
	rr   domain.ResourceRecord
	kind MatchKind
}

// CachingStore wraps a *FileStore with an in-process LRU read-through
// cache, so repeated lookups within a run don't re-scan the file. The file
// remains the source of truth: Writeback always goes through to disk and
// purges the whole cache, and Lookup semantics
// (longest-suffix match, first-line tie-break) are identical whether served
// from cache or freshly scanned.
type CachingStore struct {
	inner *FileStore
	cache *lru.Cache[lookupKey, lookupValue]
}

// NewCachingStore builds a CachingStore over inner with room for size
// entries.
func NewCachingStore(inner *FileStore, size int) (*CachingStore, error) {
	c, err := lru.New[lookupKey, lookupValue](size)
	if err != nil {
		return nil, fmt.Errorf("store: building read-through cache: %w", err)
	}
	return &CachingStore{inner: inner, cache: c}, nil
}

// Lookup serves from the in-process cache when possible, falling back to
// the underlying file scan on a miss.
func (c *CachingStore) Lookup(name names.Name, rrtype domain.RRType, class domain.RRClass) (domain.ResourceRecord, MatchKind, error) {
	key := lookupKey{name: name.String(), rtype: rrtype, class: class}
	if v, ok := c.cache.Get(key); ok {
		return v.rr, v.kind, nil
	}
	rr, kind, err := c.inner.Lookup(name, rrtype, class)
	if err != nil {
		return domain.ResourceRecord{}, NoMatch, err
	}
	if kind != NoMatch {
		c.cache.Add(key, lookupValue{rr: rr, kind: kind})
	}
	return rr, kind, nil
}

// Writeback writes through to the underlying file. A writeback can change
// which line is the best suffix match for queries keyed on names other than
// rr.Owner, so rather than try to invalidate every affected key it purges
// the whole cache — writebacks are rare compared to lookups, and a full
// re-scan on the next lookup is cheap next to getting a stale suffix match
// wrong.
func (c *CachingStore) Writeback(rr domain.ResourceRecord) error {
	if err := c.inner.Writeback(rr); err != nil {
		return err
	}
	c.cache.Purge()
	return nil
}

// Path returns the underlying file path.
func (c *CachingStore) Path() string { return c.inner.Path() }
