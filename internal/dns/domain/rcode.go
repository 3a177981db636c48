package domain

import "fmt"

// RCode represents a DNS response code indicating the result of a query.
type RCode uint8

// Response codes this server ever emits on the wire.
const (
	Ok            RCode = 0
	FormatError   RCode = 1
	ServerFailure RCode = 2
	NameError     RCode = 3
	NotImplemented RCode = 4
	Refused       RCode = 5
)

// IsValid returns true if the RCode is within the range this server emits.
func (r RCode) IsValid() bool {
	switch r {
	case Ok, FormatError, ServerFailure, NameError, NotImplemented, Refused:
		return true
	default:
		return false
	}
}

// String returns the textual representation of the RCode.
func (r RCode) String() string {
	switch r {
	case Ok:
		return "NOERROR"
	case FormatError:
		return "FORMERR"
	case ServerFailure:
		return "SERVFAIL"
	case NameError:
		return "NXDOMAIN"
	case NotImplemented:
		return "NOTIMP"
	case Refused:
		return "REFUSED"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", uint8(r))
	}
}
