package domain

// MessageFlags carries the DNS header's bit fields, laid out per RFC 1035
// ยง4.1.1: QR(1) OPCODE(4) AA(1) TC(1) RD(1) RA(1) Z(3) RCODE(4).
type MessageFlags struct {
	QR     bool
	Opcode uint8
	AA     bool
	TC     bool
	RD     bool
	RA     bool
	Z      uint8
	RCode  RCode
}

// Message is a full DNS message: header flags plus the four sections.
type Message struct {
	ID         uint16
	Flags      MessageFlags
	Questions  []Question
	Answer     []ResourceRecord
	Authority  []ResourceRecord
	Additional []ResourceRecord
}

// NewQuery builds a query message carrying a single question, with RD set
// to recursionDesired.
func NewQuery(id uint16, q Question, recursionDesired bool) Message {
	return Message{
		ID:        id,
		Flags:     MessageFlags{RD: recursionDesired},
		Questions: []Question{q},
	}
}

// SectionCounts returns the QDCOUNT/ANCOUNT/NSCOUNT/ARCOUNT the header must
// carry for this message.
func (m Message) SectionCounts() (qd, an, ns, ar uint16) {
	return uint16(len(m.Questions)), uint16(len(m.Answer)), uint16(len(m.Authority)), uint16(len(m.Additional))
}

// IsEmpty reports whether the message carries no records in any response
// section, the condition under which the header's RCODE is forced to
// NameError per the resolution algorithm.
func (m Message) IsEmpty() bool {
	return len(m.Answer) == 0 && len(m.Authority) == 0 && len(m.Additional) == 0
}
