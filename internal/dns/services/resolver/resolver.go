// Package resolver implements the task-queue-driven resolution engine (C3
// and C4): given a decoded query, it drains a queue of (name, type, class)
// tasks against the zone file, the cache file, the authority file, and —
// when local data cannot answer — the iterative querier (C5), assembling
// the reply message one task at a time.
package resolver

import (
	"context"
	"net"

	"github.com/haukened/rr-dns/internal/dns/common/clock"
	"github.com/haukened/rr-dns/internal/dns/common/log"
	"github.com/haukened/rr-dns/internal/dns/common/names"
	"github.com/haukened/rr-dns/internal/dns/domain"
	"github.com/haukened/rr-dns/internal/dns/repos/store"
)

// Role selects which resolution algorithm a Resolver runs, per spec.md
// §4.6's listener roles.
type Role uint8

const (
	// RoleLocal is a stub+recursive server: zone/cache first, iterative
	// chase on miss, with a root-name fallback when the authority file has
	// no delegation for the target.
	RoleLocal Role = 0
	// RoleAuthoritative answers only from its own zone and authority
	// files; it never chases referrals upstream.
	RoleAuthoritative Role = 1
	// RoleRecursiveAuthoritative runs the same zone/cache/iterative-chase
	// algorithm as RoleLocal, but without the root-name fallback — it only
	// chases delegations its own authority file names.
	RoleRecursiveAuthoritative Role = 2
)

// rootName is the hard-coded bootstrap delegation a local server falls
// back to when its authority file has no better delegation for a target,
// per spec.md §4.5. The literal labels are "根" and "网络" ("root.net").
var rootName = names.MustFromPresentation("根.网络")

// defaultMaxReferralHops bounds the referral chase so a misconfigured or
// malicious chain of referrals cannot loop forever; spec.md §4.5 describes
// an unbounded loop, but a finite bound is required for this reimplementation
// to terminate under adversarial input. Recorded as an explicit addition in
// DESIGN.md, in the same spirit as the per-hop UDP read timeout.
const defaultMaxReferralHops = 16

// Resolver drains a per-request task queue against the configured stores,
// blocklist, and iterative querier.
type Resolver struct {
	role      Role
	zone      Store
	cache     Store
	authority Store
	blocklist Blocklist
	querier   Querier
	clock     clock.Clock
	logger    log.Logger

	maxReferralHops int
}

// New builds a Resolver. blocklist may be NoopBlocklist{} when no blocklist
// is configured.
func New(role Role, zone, cache, authority Store, blocklist Blocklist, querier Querier, clk clock.Clock, logger log.Logger) *Resolver {
	return &Resolver{
		role:            role,
		zone:            zone,
		cache:           cache,
		authority:       authority,
		blocklist:       blocklist,
		querier:         querier,
		clock:           clk,
		logger:          logger,
		maxReferralHops: defaultMaxReferralHops,
	}
}

// Resolve decodes the task queue from query's questions, drains it against
// the stores and (when needed) the iterative querier, and returns the
// assembled reply.
func (r *Resolver) Resolve(ctx context.Context, query domain.Message) domain.Message {
	reply := domain.Message{
		ID: query.ID,
		Flags: domain.MessageFlags{
			QR: true,
			RD: query.Flags.RD,
			RA: r.role != RoleAuthoritative,
		},
		Questions: query.Questions,
	}

	q := newTaskQueue(query.Questions)
	for !q.empty() {
		t, _ := q.pop()
		r.resolveTask(ctx, &reply, t)
	}

	if reply.Flags.RCode == domain.Ok && reply.IsEmpty() {
		reply.Flags.RCode = domain.NameError
	}
	return reply
}

// resolveTask dispatches a single task to the blocklist check and then the
// role-appropriate algorithm.
func (r *Resolver) resolveTask(ctx context.Context, reply *domain.Message, t task) {
	if d := r.blocklist.Decide(t.name); d.IsBlocked() {
		setRCode(reply, domain.Refused)
		return
	}
	if r.role == RoleAuthoritative {
		r.resolveAuthoritative(reply, t)
		return
	}
	r.resolveLocalOrRecursive(ctx, reply, t)
}

// resolveAuthoritative implements spec.md §4.4's authoritative-mode
// algorithm: only A/CNAME/MX are resolvable, zone data answers directly,
// and a miss falls through to an authority-file delegation referral.
func (r *Resolver) resolveAuthoritative(reply *domain.Message, t task) {
	switch t.rtype {
	case domain.RRTypeA, domain.RRTypeCNAME, domain.RRTypeMX:
	default:
		setRCode(reply, domain.NotImplemented)
		return
	}

	if rr, kind, err := r.zone.Lookup(t.name, t.rtype, t.class); err == nil && kind == store.ExactMatch {
		r.attachAnswer(reply, rr, t)
		return
	}

	arr, kind, err := r.authority.Lookup(t.name, domain.RRTypeA, t.class)
	if err == nil && kind == store.SuffixMatch {
		reply.Authority = prepend(reply.Authority, arr)
	}
	// NoMatch: nothing further to attach; the drain loop's final-RCODE
	// rule handles an entirely empty reply.
}

// resolveLocalOrRecursive implements spec.md §4.4's local/recursive-mode
// algorithm: zone, then cache, then the iterative querier on a miss.
func (r *Resolver) resolveLocalOrRecursive(ctx context.Context, reply *domain.Message, t task) {
	if r.answerFromStores(reply, t) {
		return
	}
	r.iterativeResolve(ctx, reply, t)
}

// answerFromStores tries the zone file and then the cache file for an exact
// match, attaching the answer (and any MX additional) on a hit.
func (r *Resolver) answerFromStores(reply *domain.Message, t task) bool {
	if rr, kind, err := r.zone.Lookup(t.name, t.rtype, t.class); err == nil && kind == store.ExactMatch {
		r.attachAnswer(reply, rr, t)
		return true
	}
	if rr, kind, err := r.cache.Lookup(t.name, t.rtype, t.class); err == nil && kind == store.ExactMatch {
		r.attachAnswer(reply, rr, t)
		return true
	}
	return false
}

// attachAnswer prepends rr to the answer section (new records are
// prepended within a section, per spec.md §5's ordering guarantee) and, for
// an MX answer, looks up the exchange's A record in the zone then the
// cache, prepending a hit to the additional section.
func (r *Resolver) attachAnswer(reply *domain.Message, rr domain.ResourceRecord, t task) {
	reply.Answer = prepend(reply.Answer, rr)
	if t.rtype != domain.RRTypeMX {
		return
	}
	mx, ok := rr.Data.(domain.MXRecordData)
	if !ok {
		return
	}
	if arr, kind, err := r.zone.Lookup(mx.Exchange, domain.RRTypeA, t.class); err == nil && kind == store.ExactMatch {
		reply.Additional = prepend(reply.Additional, arr)
		return
	}
	if arr, kind, err := r.cache.Lookup(mx.Exchange, domain.RRTypeA, t.class); err == nil && kind == store.ExactMatch {
		reply.Additional = prepend(reply.Additional, arr)
	}
}

// iterativeResolve runs the C5 referral chase: find an initial peer from
// the authority file (falling back to the root name for a local server),
// then repeatedly query the current peer, write back anything useful, and
// either resolve from cache or pivot to the next referred peer.
func (r *Resolver) iterativeResolve(ctx context.Context, reply *domain.Message, t task) {
	peer, ok := r.findInitialPeer(t)
	if !ok {
		return
	}
	q, err := domain.NewQuestion(t.name, t.rtype, t.class)
	if err != nil {
		setRCode(reply, domain.ServerFailure)
		return
	}

	for hop := 0; hop < r.maxReferralHops; hop++ {
		resp, err := r.querier.Query(ctx, peer, q)
		if err != nil {
			setRCode(reply, domain.Refused)
			return
		}

		resolved := r.writebackAnswer(resp, q)
		r.writebackAdditional(resp)
		if resolved {
			if !r.answerFromStores(reply, t) {
				setRCode(reply, domain.Refused)
			}
			return
		}

		next, found := r.nextPeerFromAuthority(resp)
		if !found {
			setRCode(reply, domain.Refused)
			return
		}
		peer = next
	}
	setRCode(reply, domain.Refused)
}

// findInitialPeer consults the authority file for the target's best
// delegation, falling back to the hard-coded root name when this resolver
// runs as a local server and no delegation matched.
func (r *Resolver) findInitialPeer(t task) (net.IP, bool) {
	if rr, kind, err := r.authority.Lookup(t.name, domain.RRTypeA, t.class); err == nil && kind != store.NoMatch {
		if ip, ok := ipFromARecord(rr); ok {
			return ip, true
		}
	}
	if r.role != RoleLocal {
		return nil, false
	}
	if rr, kind, err := r.authority.Lookup(rootName, domain.RRTypeA, t.class); err == nil && kind != store.NoMatch {
		if ip, ok := ipFromARecord(rr); ok {
			return ip, true
		}
	}
	return nil, false
}

// writebackAnswer persists only the answer-section records matching q
// (the filter the store's writeback contract expects), reporting whether
// any of them did — the signal that the task is now resolvable from cache.
func (r *Resolver) writebackAnswer(resp domain.Message, q domain.Question) bool {
	matched := false
	for _, rr := range resp.Answer {
		if !rr.Owner.Equal(q.Name) || rr.Type() != q.Type || rr.Class != q.Class {
			continue
		}
		matched = true
		if err := r.cache.Writeback(rr); err != nil {
			r.logger.Warn(map[string]any{"error": err.Error(), "name": rr.Owner.String()}, "cache writeback failed")
		}
	}
	return matched
}

// writebackAdditional force-saves every additional-section record, per
// spec.md §4.5 step 3.b.
func (r *Resolver) writebackAdditional(resp domain.Message) {
	for _, rr := range resp.Additional {
		if err := r.cache.Writeback(rr); err != nil {
			r.logger.Warn(map[string]any{"error": err.Error(), "name": rr.Owner.String()}, "cache writeback failed")
		}
	}
}

// nextPeerFromAuthority looks for an A-type authority record in resp, the
// referral pivot target for the next hop.
func (r *Resolver) nextPeerFromAuthority(resp domain.Message) (net.IP, bool) {
	for _, rr := range resp.Authority {
		if rr.Type() == domain.RRTypeA {
			if ip, ok := ipFromARecord(rr); ok {
				return ip, true
			}
		}
	}
	return nil, false
}

func ipFromARecord(rr domain.ResourceRecord) (net.IP, bool) {
	a, ok := rr.Data.(domain.ARecordData)
	if !ok {
		return nil, false
	}
	return net.IP(a.Addr[:]), true
}

// setRCode sets reply's RCODE only if it has not already been explicitly
// set by an earlier task, per spec.md §4.4's final-RCODE rule: once a task
// sets NotImplemented or Refused, it sticks regardless of what later tasks
// do.
func setRCode(reply *domain.Message, code domain.RCode) {
	if reply.Flags.RCode == domain.Ok {
		reply.Flags.RCode = code
	}
}

// prepend inserts rr ahead of everything already in section, matching
// spec.md §5's reverse-insertion-order guarantee.
func prepend(section []domain.ResourceRecord, rr domain.ResourceRecord) []domain.ResourceRecord {
	out := make([]domain.ResourceRecord, 0, len(section)+1)
	out = append(out, rr)
	return append(out, section...)
}
