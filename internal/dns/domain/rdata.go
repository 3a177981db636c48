package domain

import (
	"encoding/binary"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/haukened/rr-dns/internal/dns/common/names"
)

// RData is the record-type-specific payload of a ResourceRecord. Each
// concrete type owns its own wire encoding and its own text presentation
// format, replacing a single tagged-union RDATA blob with one small type per
// resource record type.
type RData interface {
	Type() RRType
	// Encode returns the RDATA in wire format, suitable for RDLENGTH-prefixed
	// placement in a message.
	Encode() []byte
	// String returns the RDATA in the text form used by the zone/cache/
	// authority file grammar.
	String() string
}

// OpaqueRData holds the raw RDATA of a record type this server does not
// natively understand. It is only ever produced by the wire decoder when
// relaying upstream responses; it is never written to a store file.
type OpaqueRData struct {
	RRType RRType
	Raw    []byte
}

func (d OpaqueRData) Type() RRType   { return d.RRType }
func (d OpaqueRData) Encode() []byte { return append([]byte(nil), d.Raw...) }
func (d OpaqueRData) String() string { return fmt.Sprintf("\\# %d %x", len(d.Raw), d.Raw) }

// ARecordData holds an IPv4 address.
type ARecordData struct {
	Addr [4]byte
}

// NewARecordData parses the dotted-quad text form used by store files.
func NewARecordData(text string) (ARecordData, error) {
	ip := net.ParseIP(strings.TrimSpace(text))
	if ip == nil {
		return ARecordData{}, fmt.Errorf("invalid A record address %q", text)
	}
	v4 := ip.To4()
	if v4 == nil {
		return ARecordData{}, fmt.Errorf("not an IPv4 address: %q", text)
	}
	var a ARecordData
	copy(a.Addr[:], v4)
	return a, nil
}

// DecodeARecordData parses the 4-byte wire form.
func DecodeARecordData(raw []byte) (ARecordData, error) {
	if len(raw) != 4 {
		return ARecordData{}, fmt.Errorf("invalid A RDATA length: %d", len(raw))
	}
	var a ARecordData
	copy(a.Addr[:], raw)
	return a, nil
}

func (d ARecordData) Type() RRType   { return RRTypeA }
func (d ARecordData) Encode() []byte { return append([]byte(nil), d.Addr[:]...) }
func (d ARecordData) String() string {
	return net.IP(d.Addr[:]).String()
}

// nameRecordData is the shared shape of NS/CNAME/PTR records: a single
// domain name.
type nameRecordData struct {
	rrType RRType
	Name   names.Name
}

func (d nameRecordData) Type() RRType   { return d.rrType }
func (d nameRecordData) String() string { return d.Name.String() }
func (d nameRecordData) Encode() []byte { return encodeWireName(d.Name) }

// NSRecordData names a delegated authority.
type NSRecordData struct{ nameRecordData }

// NewNSRecordData builds an NS record from presentation text.
func NewNSRecordData(text string) (NSRecordData, error) {
	n, err := names.FromPresentation(text)
	if err != nil {
		return NSRecordData{}, err
	}
	return NewNSRecordDataFromName(n), nil
}

// NewNSRecordDataFromName builds an NS record from an already-parsed name,
// for use by the wire decoder.
func NewNSRecordDataFromName(n names.Name) NSRecordData {
	return NSRecordData{nameRecordData{rrType: RRTypeNS, Name: n}}
}

// CNAMERecordData names a canonical alias target.
type CNAMERecordData struct{ nameRecordData }

// NewCNAMERecordData builds a CNAME record from presentation text.
func NewCNAMERecordData(text string) (CNAMERecordData, error) {
	n, err := names.FromPresentation(text)
	if err != nil {
		return CNAMERecordData{}, err
	}
	return NewCNAMERecordDataFromName(n), nil
}

// NewCNAMERecordDataFromName builds a CNAME record from an already-parsed
// name, for use by the wire decoder.
func NewCNAMERecordDataFromName(n names.Name) CNAMERecordData {
	return CNAMERecordData{nameRecordData{rrType: RRTypeCNAME, Name: n}}
}

// PTRRecordData names the domain a reverse-lookup address maps to.
type PTRRecordData struct{ nameRecordData }

// NewPTRRecordData builds a PTR record from presentation text.
func NewPTRRecordData(text string) (PTRRecordData, error) {
	n, err := names.FromPresentation(text)
	if err != nil {
		return PTRRecordData{}, err
	}
	return NewPTRRecordDataFromName(n), nil
}

// NewPTRRecordDataFromName builds a PTR record from an already-parsed name,
// for use by the wire decoder.
func NewPTRRecordDataFromName(n names.Name) PTRRecordData {
	return PTRRecordData{nameRecordData{rrType: RRTypePTR, Name: n}}
}

// MXRecordData names a mail exchange and its preference.
type MXRecordData struct {
	Preference uint16
	Exchange   names.Name
}

// NewMXRecordData parses the "exchange,preference" text form used by store
// files.
func NewMXRecordData(text string) (MXRecordData, error) {
	parts := strings.SplitN(text, ",", 2)
	if len(parts) != 2 {
		return MXRecordData{}, fmt.Errorf("invalid MX record data %q, want \"exchange,preference\"", text)
	}
	ex, err := names.FromPresentation(parts[0])
	if err != nil {
		return MXRecordData{}, err
	}
	pref, err := strconv.ParseUint(strings.TrimSpace(parts[1]), 10, 16)
	if err != nil {
		return MXRecordData{}, fmt.Errorf("invalid MX preference %q: %w", parts[1], err)
	}
	return MXRecordData{Preference: uint16(pref), Exchange: ex}, nil
}

func (d MXRecordData) Type() RRType { return RRTypeMX }
func (d MXRecordData) String() string {
	return fmt.Sprintf("%s,%d", d.Exchange.String(), d.Preference)
}
func (d MXRecordData) Encode() []byte {
	out := make([]byte, 2)
	binary.BigEndian.PutUint16(out, d.Preference)
	return append(out, encodeWireName(d.Exchange)...)
}

// ParseRData builds the RData for rrtype from its store-file text
// representation, dispatching to the per-type constructor the same way the
// wire decoder dispatches on RRType. Returns an error for any type other
// than the five this server stores (a store file is never expected to
// carry a record type this server can't resolve).
func ParseRData(rrtype RRType, text string) (RData, error) {
	switch rrtype {
	case RRTypeA:
		return NewARecordData(text)
	case RRTypeNS:
		return NewNSRecordData(text)
	case RRTypeCNAME:
		return NewCNAMERecordData(text)
	case RRTypePTR:
		return NewPTRRecordData(text)
	case RRTypeMX:
		return NewMXRecordData(text)
	default:
		return nil, fmt.Errorf("unsupported stored record type: %s", rrtype)
	}
}

// encodeWireName encodes a name as uncompressed length-prefixed labels.
// Compression is applied only by the message encoder, which knows the full
// buffer and the compression table; RDATA encoders here always produce the
// uncompressed form and let the caller re-splice compressed pointers in
// where the format allows it (NS/CNAME/PTR/MX target names, per RFC 1035
// ยง4.1.4, are legal compression targets but this implementation never
// compresses inside RDATA — only owner names and the question name are
// compressed. See gateways/wire for that logic).
func encodeWireName(n names.Name) []byte {
	var out []byte
	for _, label := range n.WireLabels() {
		out = append(out, byte(len(label)))
		out = append(out, label...)
	}
	return append(out, 0)
}
