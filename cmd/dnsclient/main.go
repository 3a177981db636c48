// Command dnsclient sends one DNS query message carrying one or more
// questions to a server over the length-framed TCP transport spec.md §4.6
// assigns the local role, and prints the decoded response. It is the
// reimplementation of original_source/client.c's command line: a server
// address followed by any number of <name> <type> pairs packed into a
// single outbound message.
package main

import (
	"encoding/binary"
	"fmt"
	"io"
	"math/rand/v2"
	"net"
	"os"
	"strings"
	"time"

	"github.com/haukened/rr-dns/internal/dns/common/log"
	"github.com/haukened/rr-dns/internal/dns/common/names"
	"github.com/haukened/rr-dns/internal/dns/domain"
	"github.com/haukened/rr-dns/internal/dns/gateways/wire"
)

const defaultPort = "53"

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "dnsclient: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	if len(args) < 3 || len(args)%2 != 1 {
		return fmt.Errorf("usage: dnsclient <server_ip> <name1> <type1> [<name2> <type2> ...]")
	}

	query, err := buildQuery(args[1:])
	if err != nil {
		return err
	}

	addr := args[0]
	if !strings.Contains(addr, ":") {
		addr = net.JoinHostPort(addr, defaultPort)
	}

	codec := wire.NewCodec(log.NewNoopLogger())
	raw, err := codec.Encode(query)
	if err != nil {
		return fmt.Errorf("encode query: %w", err)
	}

	start := time.Now()
	resp, err := sendFramed(addr, raw, codec)
	if err != nil {
		return fmt.Errorf("query %s: %w", addr, err)
	}

	printResponse(out, resp, time.Since(start))
	return nil
}

// buildQuery packs every <name> <type> pair into one query message, mirroring
// client.c's main(): a single outbound message can carry several questions.
func buildQuery(pairs []string) (domain.Message, error) {
	msg := domain.Message{ID: uint16(rand.IntN(1 << 16))}
	for i := 0; i+1 < len(pairs); i += 2 {
		name, err := names.FromPresentation(pairs[i])
		if err != nil {
			return domain.Message{}, fmt.Errorf("invalid name %q: %w", pairs[i], err)
		}
		rrtype, ok := domain.ParseRRType(pairs[i+1])
		if !ok {
			return domain.Message{}, fmt.Errorf("unsupported type %q", pairs[i+1])
		}
		question, err := domain.NewQuestion(name, rrtype, domain.RRClassIN)
		if err != nil {
			return domain.Message{}, fmt.Errorf("invalid question %s %s: %w", pairs[i], pairs[i+1], err)
		}
		msg.Questions = append(msg.Questions, question)
	}
	return msg, nil
}

// sendFramed dials addr, writes raw behind a 2-byte big-endian length
// prefix, and reads one length-framed response — the wire convention
// spec.md §4.6 gives the local role's TCP transport.
func sendFramed(addr string, raw []byte, codec domain.DNSCodec) (domain.Message, error) {
	conn, err := net.DialTimeout("tcp", addr, 5*time.Second)
	if err != nil {
		return domain.Message{}, err
	}
	defer conn.Close()

	frame := make([]byte, 2+len(raw))
	binary.BigEndian.PutUint16(frame, uint16(len(raw)))
	copy(frame[2:], raw)
	if _, err := conn.Write(frame); err != nil {
		return domain.Message{}, fmt.Errorf("send query: %w", err)
	}

	if err := conn.SetReadDeadline(time.Now().Add(5 * time.Second)); err != nil {
		return domain.Message{}, err
	}
	var lengthPrefix [2]byte
	if _, err := io.ReadFull(conn, lengthPrefix[:]); err != nil {
		return domain.Message{}, fmt.Errorf("read response length: %w", err)
	}
	length := binary.BigEndian.Uint16(lengthPrefix[:])
	payload := make([]byte, length)
	if _, err := io.ReadFull(conn, payload); err != nil {
		return domain.Message{}, fmt.Errorf("read response body: %w", err)
	}

	return codec.Decode(payload)
}

// printResponse renders the decoded response the way client.c's
// printMessage does: header counts, each question, then each populated
// section.
func printResponse(out io.Writer, msg domain.Message, elapsed time.Duration) {
	fmt.Fprintf(out, "id: %04x  rcode: %s  questions: %d  answers: %d  authority: %d  additional: %d\n",
		msg.ID, msg.Flags.RCode, len(msg.Questions), len(msg.Answer), len(msg.Authority), len(msg.Additional))

	for _, q := range msg.Questions {
		fmt.Fprintf(out, "question: %s %s %s\n", q.Name, q.Type, q.Class)
	}
	printSection(out, "answer", msg.Answer)
	printSection(out, "authority", msg.Authority)
	printSection(out, "additional", msg.Additional)

	fmt.Fprintf(out, "time: %s\n", elapsed)
}

func printSection(out io.Writer, label string, rrs []domain.ResourceRecord) {
	if len(rrs) == 0 {
		return
	}
	fmt.Fprintf(out, "%s:\n", label)
	for _, rr := range rrs {
		fmt.Fprintf(out, "  %s %s %s %d %s\n", rr.Owner, rr.Class, rr.Type(), rr.TTL(), rr.Data.String())
	}
}
