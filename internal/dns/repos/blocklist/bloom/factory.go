package bloom

import (
	bitsbloom "github.com/bits-and-blooms/bloom/v3"
	"github.com/haukened/rr-dns/internal/dns/repos/blocklist"
)

// factory implements blocklist.BloomFactory using internal sizing formulas.
type factory struct{}

// NewFactory returns a BloomFactory that sizes filters from capacity and FP rate.
func NewFactory() blocklist.BloomFactory { return factory{} }

// New constructs a new BloomFilter instance sized for the given dataset capacity
// and target false-positive rate.
// A zero capacity is treated as 1 and a rate outside (0, 1) as 0.01.
func (factory) New(capacity uint64, fpRate float64) blocklist.BloomFilter {
	if capacity == 0 {
		capacity = 1
	}
	if fpRate <= 0 || fpRate >= 1 {
		fpRate = 0.01
	}
	m, k := bitsbloom.EstimateParameters(uint(capacity), fpRate)
	return &filter{bf: bitsbloom.New(m, k)}
}
