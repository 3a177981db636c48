package domain

import "errors"

// Sentinel errors the resolution pipeline maps to RCODEs at the listener
// boundary. A bare error that isn't one of these (or wrapping one of these)
// is treated as ServerFailure.
var (
	// ErrFormatError means the wire message itself could not be parsed:
	// truncated, a label/pointer running past the buffer, or a pointer
	// chasing another pointer.
	ErrFormatError = errors.New("dns: format error")
	// ErrNameError means resolution completed with no data in any section.
	ErrNameError = errors.New("dns: name error")
	// ErrNotImplemented means the query asks for an operation or record
	// type this server does not resolve (in authoritative mode, queries
	// other than A/CNAME/MX; zone transfers, etc).
	ErrNotImplemented = errors.New("dns: not implemented")
	// ErrRefused means policy (blocklist, dead-end referral chase) refused
	// to answer the query.
	ErrRefused = errors.New("dns: refused")
)
