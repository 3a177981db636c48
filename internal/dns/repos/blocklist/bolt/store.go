// Package bolt persists blocklist rules in a bbolt database, keyed for two
// lookup shapes: an "exact" bucket keyed by canonical name, and a "suffix"
// bucket keyed by the reversed name (apex-inclusive, walked from
// most-specific ancestor down to the apex on a miss).
package bolt

import (
	"encoding/binary"
	"fmt"
	"strings"
	"time"

	bbolt "go.etcd.io/bbolt"
	bberrors "go.etcd.io/bbolt/errors"

	"github.com/haukened/rr-dns/internal/dns/domain"
	"github.com/haukened/rr-dns/internal/dns/repos/blocklist"
)

var (
	bucketExact  = []byte("exact")
	bucketSuffix = []byte("suffix")
	bucketMeta   = []byte("meta")
)

// boltStore implements blocklist.Store using bbolt.
type boltStore struct {
	db *bbolt.DB
}

// bucketCreator and bucketDeleter narrow *bbolt.Tx to what ensureBuckets and
// deleteBuckets need, so tests can substitute a fake transaction.
type bucketCreator interface {
	CreateBucketIfNotExists(name []byte) (*bbolt.Bucket, error)
}

type bucketDeleter interface {
	DeleteBucket(name []byte) error
}

func ensureBuckets(bc bucketCreator) error {
	for _, name := range [][]byte{bucketExact, bucketSuffix, bucketMeta} {
		if _, err := bc.CreateBucketIfNotExists(name); err != nil {
			return err
		}
	}
	return nil
}

// deleteBuckets removes the named buckets, tolerating ones that don't exist.
func deleteBuckets(bd bucketDeleter, names ...[]byte) error {
	for _, name := range names {
		if err := bd.DeleteBucket(name); err != nil && err != bberrors.ErrBucketNotFound {
			return err
		}
	}
	return nil
}

// Indirection seams so tests can inject failures at each RebuildAll/Purge step.
var (
	ensureBucketsFn   = func(tx bucketCreator) error { return ensureBuckets(tx) }
	deleteBucketsFn   = func(tx bucketDeleter, names ...[]byte) error { return deleteBuckets(tx, names...) }
	loadRulesFn       = loadRules
	writeMetaFn       = writeMeta
	decodeRuleValueFn = decodeRuleValue
)

// New opens (or creates) a Bolt database at path and ensures buckets exist.
func New(path string) (blocklist.Store, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, err
	}
	if err := db.Update(func(tx *bbolt.Tx) error {
		return ensureBucketsFn(tx)
	}); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &boltStore{db: db}, nil
}

func (s *boltStore) Close() error { return s.db.Close() }

// GetFirstMatch checks the exact bucket first, then walks name and its
// ancestors (most specific first, apex-inclusive) against the suffix
// bucket, stopping at the first hit.
func (s *boltStore) GetFirstMatch(name string) (domain.BlockRule, bool, error) {
	var rule domain.BlockRule
	found := false
	err := s.db.View(func(tx *bbolt.Tx) error {
		if eb := tx.Bucket(bucketExact); eb != nil {
			if v := eb.Get([]byte(name)); v != nil {
				r, err := decodeRuleValueFn(name, v, domain.BlockRuleExact)
				if err != nil {
					return err
				}
				rule, found = r, true
				return nil
			}
		}
		sb := tx.Bucket(bucketSuffix)
		if sb == nil {
			return nil
		}
		for a := name; len(a) > 0; {
			if v := sb.Get([]byte(reverseString(a))); v != nil {
				r, err := decodeRuleValueFn(a, v, domain.BlockRuleSuffix)
				if err != nil {
					return err
				}
				rule, found = r, true
				return nil
			}
			idx := strings.IndexByte(a, '.')
			if idx < 0 {
				break
			}
			a = a[idx+1:]
		}
		return nil
	})
	return rule, found, err
}

// RebuildAll atomically replaces the store's contents with rules, tagged
// with version and updatedUnix.
func (s *boltStore) RebuildAll(rules []domain.BlockRule, version uint64, updatedUnix int64) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := deleteBucketsFn(tx, bucketExact, bucketSuffix, bucketMeta); err != nil {
			return err
		}
		if err := ensureBucketsFn(tx); err != nil {
			return err
		}
		if err := loadRulesFn(tx, rules); err != nil {
			return err
		}
		return writeMetaFn(tx, version, updatedUnix)
	})
}

// Purge empties the store back to zero rules.
func (s *boltStore) Purge() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := deleteBucketsFn(tx, bucketExact, bucketSuffix, bucketMeta); err != nil {
			return err
		}
		return ensureBucketsFn(tx)
	})
}

// Stats reports counts and metadata read from the store in a single
// read-only transaction.
func (s *boltStore) Stats() blocklist.StoreStats {
	st := blocklist.StoreStats{}
	_ = s.db.View(func(tx *bbolt.Tx) error {
		if b := tx.Bucket(bucketExact); b != nil {
			st.ExactCount = uint64(b.Stats().KeyN)
		}
		if b := tx.Bucket(bucketSuffix); b != nil {
			st.SuffixCount = uint64(b.Stats().KeyN)
		}
		if b := tx.Bucket(bucketMeta); b != nil {
			if v := b.Get([]byte("version")); len(v) == 8 {
				st.Version = binary.BigEndian.Uint64(v)
			}
			if v := b.Get([]byte("updated")); len(v) == 8 {
				st.UpdatedUnix = int64(binary.BigEndian.Uint64(v))
			}
		}
		return nil
	})
	return st
}

// loadRules writes every supported rule into its bucket. Unsupported kinds
// are ignored rather than rejected, so a partially-understood snapshot
// still loads.
func loadRules(tx *bbolt.Tx, rules []domain.BlockRule) error {
	eb := tx.Bucket(bucketExact)
	sb := tx.Bucket(bucketSuffix)
	for _, r := range rules {
		switch r.Kind {
		case domain.BlockRuleExact:
			if r.Name == "" {
				return fmt.Errorf("bolt: exact rule with blank name")
			}
			if err := eb.Put([]byte(r.Name), encodeRuleValue(r)); err != nil {
				return err
			}
		case domain.BlockRuleSuffix:
			if r.Name == "" {
				return fmt.Errorf("bolt: suffix rule with blank name")
			}
			if err := sb.Put([]byte(reverseString(r.Name)), encodeRuleValue(r)); err != nil {
				return err
			}
		default:
			// unsupported kind: ignored
		}
	}
	return nil
}

func writeMeta(tx *bbolt.Tx, version uint64, updatedUnix int64) error {
	b := tx.Bucket(bucketMeta)
	vbuf := make([]byte, 8)
	ubuf := make([]byte, 8)
	binary.BigEndian.PutUint64(vbuf, version)
	binary.BigEndian.PutUint64(ubuf, uint64(updatedUnix))
	if err := b.Put([]byte("version"), vbuf); err != nil {
		return err
	}
	return b.Put([]byte("updated"), ubuf)
}

// encodeRuleValue packs a rule's kind, ingestion time, and source into the
// bytes stored alongside its bucket key: 1-byte kind, 8-byte unix seconds,
// 2-byte source length, then the source bytes.
func encodeRuleValue(r domain.BlockRule) []byte {
	src := []byte(r.Source)
	buf := make([]byte, 11+len(src))
	buf[0] = byte(r.Kind)
	binary.BigEndian.PutUint64(buf[1:9], uint64(r.AddedAt.Unix()))
	binary.BigEndian.PutUint16(buf[9:11], uint16(len(src)))
	copy(buf[11:], src)
	return buf
}

// decodeRuleValue unpacks a value encoded by encodeRuleValue. Values too
// short to carry a header fall back to defaultKind with a zero AddedAt and
// empty Source; a source length that overruns the buffer is clamped.
func decodeRuleValue(name string, v []byte, defaultKind domain.BlockRuleKind) (domain.BlockRule, error) {
	r := domain.BlockRule{Name: name, Kind: defaultKind}
	if len(v) < 11 {
		return r, nil
	}
	if kind := domain.BlockRuleKind(v[0]); kind == domain.BlockRuleExact || kind == domain.BlockRuleSuffix {
		r.Kind = kind
	}
	if addedUnix := int64(binary.BigEndian.Uint64(v[1:9])); addedUnix != 0 {
		r.AddedAt = time.Unix(addedUnix, 0)
	}
	srcLen := int(binary.BigEndian.Uint16(v[9:11]))
	if avail := len(v) - 11; srcLen > avail {
		srcLen = avail
	}
	if srcLen > 0 {
		r.Source = string(v[11 : 11+srcLen])
	}
	return r, nil
}

func reverseString(s string) string {
	return string(reverseBytesInPlace([]byte(s)))
}

func reverseBytesInPlace(b []byte) []byte {
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
	return b
}
