// Package store implements the zone/cache/authority file contract: flat,
// tab-separated record files scanned for the longest owner-name suffix that
// matches a query, with an append-or-overwrite writeback path. No index is
// kept across calls — each file is a plain text file scanned top to bottom,
// the same resource model the original implementation used, now fixed to
// overwrite a conflicting line on writeback instead of silently keeping a
// stale one.
package store

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/haukened/rr-dns/internal/dns/common/names"
	"github.com/haukened/rr-dns/internal/dns/domain"
)

// MatchKind describes how a Lookup result relates to the queried name.
type MatchKind int

const (
	// NoMatch means no line in the file names a suffix of the query.
	NoMatch MatchKind = iota
	// SuffixMatch means the best matching line's owner is a proper
	// ancestor of the queried name (a delegation point).
	SuffixMatch
	// ExactMatch means the best matching line's owner equals the queried
	// name exactly.
	ExactMatch
)

// minLineLen is the shortest syntactically plausible record line:
// "A\tIN\ta\t0.0.0.0\t0" has at least this many bytes; anything shorter is
// skipped rather than treated as a parse error, matching the tolerant
// line-skipping behavior of the original file reader.
const minLineLen = 5

// FileStore reads and writes one record file using the
// TYPE\tCLASS\tOWNER_NAME\tRDATA\tTTL grammar.
type FileStore struct {
	path string
}

// New opens a FileStore over path. The file need not exist yet for Lookup
// (a missing file behaves as an empty one); Writeback creates it on demand.
func New(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the underlying file path.
func (s *FileStore) Path() string { return s.path }

// line is a single parsed record-file entry.
type line struct {
	rrtype domain.RRType
	class  domain.RRClass
	owner  names.Name
	text   string
	ttl    uint32
	raw    string // the original unparsed line, preserved for writeback of untouched lines
}

// Lookup scans the file for the record of the given type and class whose
// owner name is the longest suffix of name. Ties (equal suffix length) keep
// the first matching line encountered in the file, per the file-order
// tie-break rule.
func (s *FileStore) Lookup(name names.Name, rrtype domain.RRType, class domain.RRClass) (domain.ResourceRecord, MatchKind, error) {
	lines, err := s.readLines()
	if err != nil {
		return domain.ResourceRecord{}, NoMatch, err
	}

	bestMatched := -1
	var best *line
	for i := range lines {
		l := lines[i]
		if l.rrtype != rrtype || l.class != class {
			continue
		}
		matched, _ := name.HasSuffix(l.owner)
		if matched > bestMatched {
			bestMatched = matched
			best = &lines[i]
		}
	}
	if best == nil || bestMatched <= 0 && !best.owner.IsRoot() {
		return domain.ResourceRecord{}, NoMatch, nil
	}

	data, err := domain.ParseRData(best.rrtype, best.text)
	if err != nil {
		return domain.ResourceRecord{}, NoMatch, fmt.Errorf("store: %s: %w", s.path, err)
	}
	rr, err := domain.NewAuthoritativeRecord(best.owner, best.class, best.ttl, data)
	if err != nil {
		return domain.ResourceRecord{}, NoMatch, fmt.Errorf("store: %s: %w", s.path, err)
	}

	kind := SuffixMatch
	if best.owner.Equal(name) {
		kind = ExactMatch
	}
	return rr, kind, nil
}

// Writeback appends rr to the file, or — the defect fix this
// implementation makes over the original — overwrites the existing line
// for the same TYPE/CLASS/OWNER if its RDATA or TTL differ, instead of
// silently keeping the stale line.
func (s *FileStore) Writeback(rr domain.ResourceRecord) error {
	lines, err := s.readLines()
	if err != nil {
		return err
	}

	newText := rr.Data.String()
	for i := range lines {
		l := lines[i]
		if l.rrtype == rr.Type() && l.class == rr.Class && l.owner.Equal(rr.Owner) {
			if l.text == newText && l.ttl == rr.TTL() {
				return nil // identical entry already on file, nothing to do
			}
			lines[i].raw = formatLine(rr)
			lines[i].text = newText
			lines[i].ttl = rr.TTL()
			return s.writeLines(lines)
		}
	}
	lines = append(lines, line{
		rrtype: rr.Type(),
		class:  rr.Class,
		owner:  rr.Owner,
		text:   newText,
		ttl:    rr.TTL(),
		raw:    formatLine(rr),
	})
	return s.writeLines(lines)
}

func (s *FileStore) readLines() ([]line, error) {
	f, err := os.Open(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", s.path, err)
	}
	defer f.Close()

	var out []line
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		raw := scanner.Text()
		if len(raw) < minLineLen {
			continue
		}
		l, ok := parseLine(raw)
		if !ok {
			continue
		}
		out = append(out, l)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("store: read %s: %w", s.path, err)
	}
	return out, nil
}

func (s *FileStore) writeLines(lines []line) error {
	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".store-*")
	if err != nil {
		return fmt.Errorf("store: create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once the rename below succeeds

	w := bufio.NewWriter(tmp)
	for _, l := range lines {
		if _, err := w.WriteString(l.raw); err != nil {
			tmp.Close()
			return fmt.Errorf("store: write temp file: %w", err)
		}
		if err := w.WriteByte('\n'); err != nil {
			tmp.Close()
			return fmt.Errorf("store: write temp file: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return fmt.Errorf("store: flush temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("store: close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("store: replace %s: %w", s.path, err)
	}
	return nil
}

// parseLine parses one TYPE\tCLASS\tOWNER_NAME\tRDATA\tTTL line. Lines that
// don't split into exactly five tab-separated fields, or that name a type
// or class or owner this server can't represent, are skipped rather than
// treated as fatal, matching the tolerant grammar of the original reader.
func parseLine(raw string) (line, bool) {
	fields := strings.Split(raw, "\t")
	if len(fields) != 5 {
		return line{}, false
	}
	rrtype, ok := domain.ParseRRType(fields[0])
	if !ok {
		return line{}, false
	}
	class, ok := domain.ParseRRClass(fields[1])
	if !ok {
		return line{}, false
	}
	owner, err := names.FromPresentation(fields[2])
	if err != nil {
		return line{}, false
	}
	ttl, err := strconv.ParseUint(strings.TrimSpace(fields[4]), 10, 32)
	if err != nil {
		return line{}, false
	}
	return line{
		rrtype: rrtype,
		class:  class,
		owner:  owner,
		text:   fields[3],
		ttl:    uint32(ttl),
		raw:    raw,
	}, true
}

func formatLine(rr domain.ResourceRecord) string {
	owner := rr.Owner.String()
	if owner == "" {
		owner = "."
	}
	return strings.Join([]string{
		rr.Type().String(),
		rr.Class.String(),
		owner,
		rr.Data.String(),
		strconv.FormatUint(uint64(rr.TTL()), 10),
	}, "\t")
}
