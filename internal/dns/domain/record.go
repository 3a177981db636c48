package domain

import (
	"fmt"
	"time"

	"github.com/haukened/rr-dns/internal/dns/common/names"
)

// ResourceRecord represents a DNS resource record. Records loaded from a
// zone, cache, or authority file are authoritative (expiresAt is nil) or
// cache entries (expiresAt is set) depending on which store produced them;
// TTL accounting differs between the two per TTL below.
type ResourceRecord struct {
	Owner     names.Name
	Class     RRClass
	Data      RData
	ttl       uint32
	expiresAt *time.Time
}

// NewAuthoritativeRecord constructs a non-expiring record, as loaded from a
// zone or authority file.
func NewAuthoritativeRecord(owner names.Name, class RRClass, ttl uint32, data RData) (ResourceRecord, error) {
	rr := ResourceRecord{Owner: owner, Class: class, ttl: ttl, Data: data}
	if err := rr.Validate(); err != nil {
		return ResourceRecord{}, err
	}
	return rr, nil
}

// NewCachedRecord constructs a record that expires ttl seconds after now, as
// written to the cache file by an iterative lookup.
func NewCachedRecord(owner names.Name, class RRClass, ttl uint32, data RData, now time.Time) (ResourceRecord, error) {
	exp := now.Add(time.Duration(ttl) * time.Second)
	rr := ResourceRecord{Owner: owner, Class: class, ttl: ttl, Data: data, expiresAt: &exp}
	if err := rr.Validate(); err != nil {
		return ResourceRecord{}, err
	}
	return rr, nil
}

// Validate checks whether the ResourceRecord fields are valid.
func (rr ResourceRecord) Validate() error {
	if !rr.Class.IsValid() {
		return fmt.Errorf("invalid RRClass: %d", rr.Class)
	}
	if rr.Data == nil {
		return fmt.Errorf("record data must not be nil")
	}
	// OpaqueRData carries record types this server doesn't natively
	// resolve or store but must still relay verbatim (e.g. an upstream
	// referral's unrelated additional records), so it is exempt from the
	// supported-type check below.
	if _, opaque := rr.Data.(OpaqueRData); !opaque && !rr.Data.Type().IsValid() {
		return fmt.Errorf("invalid RRType: %d", rr.Data.Type())
	}
	return nil
}

// Type returns the record's RRType, delegating to its RData.
func (rr ResourceRecord) Type() RRType {
	return rr.Data.Type()
}

// TTL returns the effective TTL for wire encoding: the stored TTL for
// authoritative records, or the remaining TTL for cache entries.
func (rr ResourceRecord) TTL() uint32 {
	if rr.expiresAt == nil {
		return rr.ttl
	}
	remaining := time.Until(*rr.expiresAt).Seconds()
	if remaining <= 0 {
		return 0
	}
	return uint32(remaining)
}

// IsExpired reports whether a cache entry's TTL has elapsed. Authoritative
// records never expire.
func (rr ResourceRecord) IsExpired(now time.Time) bool {
	if rr.expiresAt == nil {
		return false
	}
	return now.After(*rr.expiresAt)
}

// IsAuthoritative reports whether the record came from a zone/authority
// file rather than the cache.
func (rr ResourceRecord) IsAuthoritative() bool {
	return rr.expiresAt == nil
}
