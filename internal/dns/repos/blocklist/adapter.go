package blocklist

import (
	"github.com/haukened/rr-dns/internal/dns/common/names"
	"github.com/haukened/rr-dns/internal/dns/common/utils"
	"github.com/haukened/rr-dns/internal/dns/domain"
)

// Adapter exposes a Repository as the resolver's Blocklist contract, which
// operates on names.Name rather than the bare strings Repository.Decide
// expects.
type Adapter struct {
	Repo Repository
}

// Decide canonicalizes name to its presentation form and defers to the
// wrapped Repository.
func (a Adapter) Decide(name names.Name) domain.BlockDecision {
	return a.Repo.Decide(utils.CanonicalDNSName(name.String()))
}
