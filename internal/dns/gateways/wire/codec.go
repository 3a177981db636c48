// Package wire encodes and decodes DNS messages per RFC 1035 ยง4: header
// flags, the four message sections, and the single-slot domain-name
// compression scheme described by the data model this server uses.
package wire

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/haukened/rr-dns/internal/dns/common/log"
	"github.com/haukened/rr-dns/internal/dns/common/names"
	"github.com/haukened/rr-dns/internal/dns/domain"
)

const headerLen = 12

const (
	flagQR     = 1 << 15
	flagAA     = 1 << 10
	flagTC     = 1 << 9
	flagRD     = 1 << 8
	flagRA     = 1 << 7
	opcodeMask = 0x7800
	opcodeShift = 11
	zMask      = 0x0070
	zShift     = 4
	rcodeMask  = 0x000F
)

// codec implements domain.DNSCodec over RFC 1035 wire format.
type codec struct {
	logger log.Logger
}

// NewCodec builds a wire codec that logs through the given logger.
func NewCodec(logger log.Logger) *codec {
	return &codec{logger: logger}
}

var _ domain.DNSCodec = (*codec)(nil)

// compressionSlot is the single (name, offset) reuse entry an encode pass
// keeps: at most one previously-written name is ever a candidate for
// pointer reuse, matching the data model's one-slot compression table.
type compressionSlot struct {
	name    names.Name
	offset  uint16
	present bool
}

// Encode serializes msg to wire format.
func (c *codec) Encode(msg domain.Message) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeHeader(&buf, msg); err != nil {
		return nil, err
	}
	slot := compressionSlot{}
	for _, q := range msg.Questions {
		writeName(&buf, q.Name, &slot)
		writeUint16(&buf, uint16(q.Type))
		writeUint16(&buf, uint16(q.Class))
	}
	for _, section := range [][]domain.ResourceRecord{msg.Answer, msg.Authority, msg.Additional} {
		for _, rr := range section {
			if err := writeRR(&buf, rr, &slot); err != nil {
				return nil, err
			}
		}
	}
	return buf.Bytes(), nil
}

func writeHeader(buf *bytes.Buffer, msg domain.Message) error {
	writeUint16(buf, msg.ID)
	var flags uint16
	if msg.Flags.QR {
		flags |= flagQR
	}
	flags |= (uint16(msg.Flags.Opcode) << opcodeShift) & opcodeMask
	if msg.Flags.AA {
		flags |= flagAA
	}
	if msg.Flags.TC {
		flags |= flagTC
	}
	if msg.Flags.RD {
		flags |= flagRD
	}
	if msg.Flags.RA {
		flags |= flagRA
	}
	flags |= (uint16(msg.Flags.Z) << zShift) & zMask
	flags |= uint16(msg.Flags.RCode) & rcodeMask
	writeUint16(buf, flags)

	qd, an, ns, ar := msg.SectionCounts()
	writeUint16(buf, qd)
	writeUint16(buf, an)
	writeUint16(buf, ns)
	writeUint16(buf, ar)
	return nil
}

func writeUint16(buf *bytes.Buffer, v uint16) {
	var tmp [2]byte
	binary.BigEndian.PutUint16(tmp[:], v)
	buf.Write(tmp[:])
}

func writeUint32(buf *bytes.Buffer, v uint32) {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], v)
	buf.Write(tmp[:])
}

// writeName writes a name. If the compression slot is occupied, it searches
// for the longest suffix of n that is also a suffix of the slot's stored
// name; any non-matching leading labels are emitted verbatim, followed by a
// two-byte pointer into the matched portion of the stored name. The slot
// itself is populated at most once per encode pass — the first name written
// while the slot is empty — matching the single-slot reuse table this
// server's data model uses; it is never replaced afterward.
func writeName(buf *bytes.Buffer, n names.Name, slot *compressionSlot) {
	newLabels := n.WireLabels()
	if slot.present {
		storedLabels := slot.name.WireLabels()
		k := commonSuffixLabels(newLabels, storedLabels)
		if k > 0 {
			ptrOffset := uint32(slot.offset) + uint32(byteOffsetOfLabel(storedLabels, len(storedLabels)-k))
			if ptrOffset <= 0x3FFF {
				for _, label := range newLabels[:len(newLabels)-k] {
					buf.WriteByte(byte(len(label)))
					buf.WriteString(label)
				}
				writeUint16(buf, 0xC000|uint16(ptrOffset))
				return
			}
		}
	}
	offset := buf.Len()
	for _, label := range newLabels {
		buf.WriteByte(byte(len(label)))
		buf.WriteString(label)
	}
	buf.WriteByte(0)
	if !slot.present && offset <= 0x3FFF {
		slot.name = n
		//gosec:disable G115 -- bounded by the 0x3FFF check above.
		slot.offset = uint16(offset)
		slot.present = true
	}
}

// commonSuffixLabels returns the number of trailing labels a and b share,
// compared case-insensitively as RFC 1035 names require.
func commonSuffixLabels(a, b []string) int {
	k := 0
	for k < len(a) && k < len(b) && strings.EqualFold(a[len(a)-1-k], b[len(b)-1-k]) {
		k++
	}
	return k
}

// byteOffsetOfLabel returns the byte offset, relative to the start of a
// wire-encoded label sequence, at which label index idx begins.
func byteOffsetOfLabel(labels []string, idx int) int {
	off := 0
	for i := 0; i < idx; i++ {
		off += 1 + len(labels[i])
	}
	return off
}

func writeRR(buf *bytes.Buffer, rr domain.ResourceRecord, slot *compressionSlot) error {
	writeName(buf, rr.Owner, slot)
	writeUint16(buf, uint16(rr.Type()))
	writeUint16(buf, uint16(rr.Class))
	writeUint32(buf, rr.TTL())
	rdata := rr.Data.Encode()
	if len(rdata) > 0xFFFF {
		return fmt.Errorf("wire: RDATA too large: %d bytes", len(rdata))
	}
	writeUint16(buf, uint16(len(rdata)))
	buf.Write(rdata)
	return nil
}

// Decode parses a raw wire-format message.
func (c *codec) Decode(data []byte) (domain.Message, error) {
	if len(data) < headerLen {
		return domain.Message{}, fmt.Errorf("%w: message shorter than header", domain.ErrFormatError)
	}
	id := binary.BigEndian.Uint16(data[0:2])
	rawFlags := binary.BigEndian.Uint16(data[2:4])
	flags := domain.MessageFlags{
		QR:     rawFlags&flagQR != 0,
		Opcode: uint8((rawFlags & opcodeMask) >> opcodeShift),
		AA:     rawFlags&flagAA != 0,
		TC:     rawFlags&flagTC != 0,
		RD:     rawFlags&flagRD != 0,
		RA:     rawFlags&flagRA != 0,
		Z:      uint8((rawFlags & zMask) >> zShift),
		RCode:  domain.RCode(rawFlags & rcodeMask),
	}
	qdCount := binary.BigEndian.Uint16(data[4:6])
	anCount := binary.BigEndian.Uint16(data[6:8])
	nsCount := binary.BigEndian.Uint16(data[8:10])
	arCount := binary.BigEndian.Uint16(data[10:12])

	offset := headerLen
	msg := domain.Message{ID: id, Flags: flags}

	for i := 0; i < int(qdCount); i++ {
		name, next, err := decodeName(data, offset, 0)
		if err != nil {
			return domain.Message{}, err
		}
		offset = next
		if offset+4 > len(data) {
			return domain.Message{}, fmt.Errorf("%w: truncated question", domain.ErrFormatError)
		}
		qtype := domain.RRType(binary.BigEndian.Uint16(data[offset : offset+2]))
		qclass := domain.RRClass(binary.BigEndian.Uint16(data[offset+2 : offset+4]))
		offset += 4
		msg.Questions = append(msg.Questions, domain.Question{Name: name, Type: qtype, Class: qclass})
	}

	sections := []struct {
		count int
		dest  *[]domain.ResourceRecord
	}{
		{int(anCount), &msg.Answer},
		{int(nsCount), &msg.Authority},
		{int(arCount), &msg.Additional},
	}
	for _, s := range sections {
		for i := 0; i < s.count; i++ {
			rr, next, err := decodeRR(data, offset)
			if err != nil {
				return domain.Message{}, err
			}
			offset = next
			*s.dest = append(*s.dest, rr)
		}
	}
	return msg, nil
}

// decodeName reads a name starting at offset, following at most one
// compression pointer (depth guards against a pointer chain, which this
// server does not support — a pointer that would chase a second pointer is
// rejected as FormatError rather than followed).
func decodeName(data []byte, offset int, depth int) (names.Name, int, error) {
	if depth > 1 {
		return names.Name{}, 0, fmt.Errorf("%w: nested compression pointer", domain.ErrFormatError)
	}
	var labels []string
	start := offset
	for {
		if offset >= len(data) {
			return names.Name{}, 0, fmt.Errorf("%w: name runs past end of message", domain.ErrFormatError)
		}
		length := int(data[offset])
		switch {
		case length == 0:
			offset++
			n, err := names.FromWireLabels(labels)
			if err != nil {
				return names.Name{}, 0, fmt.Errorf("%w: %v", domain.ErrFormatError, err)
			}
			return n, offset, nil
		case length&0xC0 == 0xC0:
			if offset+1 >= len(data) {
				return names.Name{}, 0, fmt.Errorf("%w: truncated compression pointer", domain.ErrFormatError)
			}
			ptr := int(binary.BigEndian.Uint16(data[offset:offset+2]) & 0x3FFF)
			if ptr >= start {
				return names.Name{}, 0, fmt.Errorf("%w: compression pointer does not point backward", domain.ErrFormatError)
			}
			suffix, _, err := decodeName(data, ptr, depth+1)
			if err != nil {
				return names.Name{}, 0, err
			}
			labels = append(labels, suffix.WireLabels()...)
			offset += 2
			n, err := names.FromWireLabels(labels)
			if err != nil {
				return names.Name{}, 0, fmt.Errorf("%w: %v", domain.ErrFormatError, err)
			}
			return n, offset, nil
		case length&0xC0 != 0:
			return names.Name{}, 0, fmt.Errorf("%w: reserved label length bits set", domain.ErrFormatError)
		default:
			offset++
			if offset+length > len(data) {
				return names.Name{}, 0, fmt.Errorf("%w: label runs past end of message", domain.ErrFormatError)
			}
			labels = append(labels, string(data[offset:offset+length]))
			offset += length
		}
	}
}

func decodeRR(data []byte, offset int) (domain.ResourceRecord, int, error) {
	name, offset, err := decodeName(data, offset, 0)
	if err != nil {
		return domain.ResourceRecord{}, 0, err
	}
	if offset+10 > len(data) {
		return domain.ResourceRecord{}, 0, fmt.Errorf("%w: truncated resource record", domain.ErrFormatError)
	}
	rrtype := domain.RRType(binary.BigEndian.Uint16(data[offset : offset+2]))
	rrclass := domain.RRClass(binary.BigEndian.Uint16(data[offset+2 : offset+4]))
	ttl := binary.BigEndian.Uint32(data[offset+4 : offset+8])
	rdLen := int(binary.BigEndian.Uint16(data[offset+8 : offset+10]))
	offset += 10
	if offset+rdLen > len(data) {
		return domain.ResourceRecord{}, 0, fmt.Errorf("%w: RDATA runs past end of message", domain.ErrFormatError)
	}
	raw := data[offset : offset+rdLen]
	offset += rdLen // always advance by RDLENGTH, even for types we don't parse below

	rdata, err := decodeRData(rrtype, raw, data, offset-rdLen)
	if err != nil {
		return domain.ResourceRecord{}, 0, err
	}
	rr, err := domain.NewAuthoritativeRecord(name, rrclass, ttl, rdata)
	if err != nil {
		return domain.ResourceRecord{}, 0, fmt.Errorf("%w: %v", domain.ErrFormatError, err)
	}
	return rr, offset, nil
}

// decodeRData decodes RDATA for the record types this server understands.
// rdataStart is the RDATA's absolute offset in data, needed because NS,
// CNAME, PTR and MX target names may themselves use compression pointers
// into the rest of the message.
func decodeRData(rrtype domain.RRType, raw []byte, data []byte, rdataStart int) (domain.RData, error) {
	switch rrtype {
	case domain.RRTypeA:
		return domain.DecodeARecordData(raw)
	case domain.RRTypeNS, domain.RRTypeCNAME, domain.RRTypePTR:
		name, _, err := decodeName(data, rdataStart, 0)
		if err != nil {
			return nil, err
		}
		switch rrtype {
		case domain.RRTypeNS:
			return domain.NewNSRecordDataFromName(name), nil
		case domain.RRTypeCNAME:
			return domain.NewCNAMERecordDataFromName(name), nil
		default:
			return domain.NewPTRRecordDataFromName(name), nil
		}
	case domain.RRTypeMX:
		if len(raw) < 2 {
			return nil, fmt.Errorf("%w: truncated MX RDATA", domain.ErrFormatError)
		}
		pref := binary.BigEndian.Uint16(raw[0:2])
		exchange, _, err := decodeName(data, rdataStart+2, 0)
		if err != nil {
			return nil, err
		}
		return domain.MXRecordData{Preference: pref, Exchange: exchange}, nil
	default:
		return domain.OpaqueRData{RRType: rrtype, Raw: append([]byte(nil), raw...)}, nil
	}
}
