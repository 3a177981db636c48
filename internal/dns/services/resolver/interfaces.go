package resolver

import (
	"context"
	"net"

	"github.com/haukened/rr-dns/internal/dns/common/names"
	"github.com/haukened/rr-dns/internal/dns/domain"
	"github.com/haukened/rr-dns/internal/dns/repos/store"
)

// Store is satisfied by *store.FileStore and *store.CachingStore; the
// resolver talks to the zone, cache, and authority files only through this
// interface so it never needs to know which decorator (if any) is in
// front of a given file.
type Store interface {
	Lookup(name names.Name, rrtype domain.RRType, class domain.RRClass) (domain.ResourceRecord, store.MatchKind, error)
	Writeback(rr domain.ResourceRecord) error
}

// Querier performs one outbound iterative query to a single upstream peer
// and returns its parsed response (C5).
type Querier interface {
	Query(ctx context.Context, peer net.IP, q domain.Question) (domain.Message, error)
}

// Blocklist decides whether a queried name should be refused outright,
// before any store or upstream lookup runs.
type Blocklist interface {
	Decide(name names.Name) domain.BlockDecision
}

// NoopBlocklist never blocks anything; used when no blocklist file is
// configured.
type NoopBlocklist struct{}

func (NoopBlocklist) Decide(names.Name) domain.BlockDecision { return domain.EmptyDecision() }
