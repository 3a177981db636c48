package blocklist

import "github.com/haukened/rr-dns/internal/dns/domain"

// BloomFilter is the minimal interface the repository needs from Bloom filters.
type BloomFilter interface {
	Add(key []byte)
	MightContain(key []byte) bool
}

// BloomFactory sizes and constructs a fresh BloomFilter for a given dataset
// capacity and target false-positive rate.
type BloomFactory interface {
	New(capacity uint64, fpRate float64) BloomFilter
}

// DecisionCache caches block decisions by canonical name.
type DecisionCache interface {
	Get(name string) (domain.BlockDecision, bool)
	Put(name string, d domain.BlockDecision)
	Len() int
	Purge()
}

// StoreStats captures high-level counts and metadata for the persistent store.
type StoreStats struct {
	ExactCount  uint64
	SuffixCount uint64
	Version     uint64
	UpdatedUnix int64 // seconds since epoch
}

// Store abstracts the persistent rule index (bbolt-backed in bolt.New).
// GetFirstMatch consults the exact rule first, then the closest matching
// suffix rule. RebuildAll atomically replaces the entire rule set, and
// Purge empties it.
type Store interface {
	GetFirstMatch(name string) (domain.BlockRule, bool, error)
	RebuildAll(rules []domain.BlockRule, version uint64, updatedUnix int64) error
	Purge() error
	Close() error
}

// Repository is the composition layer that wires cache -> bloom -> store.
// Decide returns a value-type BlockDecision for the canonical name.
// UpdateAll rebuilds the store, refreshes Bloom, and clears the decision
// cache as one atomic snapshot swap.
type Repository interface {
	Decide(name string) domain.BlockDecision
	UpdateAll(rules []domain.BlockRule, version uint64, updatedUnix int64) error
}
