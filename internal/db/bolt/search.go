package bolt

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/vmihailenco/msgpack/v5"
	"go.etcd.io/bbolt"

	"github.com/nichesupply/listingsearch/internal/db"
	"github.com/nichesupply/listingsearch/internal/domain/filter"
)

// SearchKNN runs an exact brute-force cosine scan over all documents
// under the index prefixes. Entries come back ordered ascending by
// distance with the document key as tie-break, truncated to K.
func (s *Store) SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	if q.IndexName == "" {
		return nil, fmt.Errorf("index name is required")
	}
	if len(q.Vector) == 0 {
		return nil, fmt.Errorf("vector is required")
	}
	if q.K <= 0 {
		return nil, fmt.Errorf("k must be positive")
	}
	if err := ctx.Err(); err != nil {
		return nil, &db.Error{Op: db.OpSearch, Err: err}
	}

	type candidate struct {
		key      string
		distance float64
		fields   map[string]string
	}

	var cands []candidate
	err := s.db.View(func(tx *bbolt.Tx) error {
		def, err := s.loadIndex(tx, q.IndexName)
		if err != nil {
			return err
		}

		docs := tx.Bucket(bucketDocs)
		for _, prefix := range def.Prefixes {
			c := docs.Cursor()
			p := []byte(prefix)
			for k, v := c.Seek(p); k != nil && bytes.HasPrefix(k, p); k, v = c.Next() {
				fields := make(map[string]string)
				if err := msgpack.Unmarshal(v, &fields); err != nil {
					continue
				}
				if !matchesFilter(fields, q.Filters) {
					continue
				}
				vec, err := db.VectorFromBytes([]byte(fields[db.FieldVector]))
				if err != nil || len(vec) != len(q.Vector) {
					continue
				}
				cands = append(cands, candidate{
					key:      string(k),
					distance: cosineDistance(q.Vector, vec),
					fields:   projectFields(fields, q.ReturnFields),
				})
			}
		}
		return nil
	})
	if err != nil {
		return nil, &db.Error{Op: db.OpSearch, Err: err}
	}

	sort.Slice(cands, func(i, j int) bool {
		if cands[i].distance != cands[j].distance {
			return cands[i].distance < cands[j].distance
		}
		return cands[i].key < cands[j].key
	})
	if len(cands) > q.K {
		cands = cands[:q.K]
	}

	result := &db.SearchResult{
		Total:   len(cands),
		Entries: make([]db.SearchEntry, 0, len(cands)),
	}
	for _, c := range cands {
		result.Entries = append(result.Entries, db.SearchEntry{
			Key:      c.key,
			Distance: c.distance,
			Fields:   c.fields,
		})
	}
	return result, nil
}

// SearchCount counts documents under the index prefixes. Only the
// match-all query "*" is supported, which is the only query consumers
// issue against it.
func (s *Store) SearchCount(ctx context.Context, index, query string) (int, error) {
	if query != "*" {
		return 0, fmt.Errorf("unsupported count query %q", query)
	}
	if err := ctx.Err(); err != nil {
		return 0, &db.Error{Op: db.OpSearch, Err: err}
	}

	count := 0
	err := s.db.View(func(tx *bbolt.Tx) error {
		def, err := s.loadIndex(tx, index)
		if err != nil {
			return err
		}

		docs := tx.Bucket(bucketDocs)
		for _, prefix := range def.Prefixes {
			c := docs.Cursor()
			p := []byte(prefix)
			for k, _ := c.Seek(p); k != nil && bytes.HasPrefix(k, p); k, _ = c.Next() {
				count++
			}
		}
		return nil
	})
	if err != nil {
		return 0, &db.Error{Op: db.OpSearch, Err: err}
	}
	return count, nil
}

// matchesFilter evaluates the tag-token predicate the redis driver
// delegates to RediSearch: equality needs the pair token present,
// inequality needs the key token present and the pair token absent.
func matchesFilter(fields map[string]string, f filter.Filter) bool {
	if f.IsEmpty() {
		return true
	}

	keys := tokenSet(fields[db.FieldMetaKeys])
	pairs := tokenSet(fields[db.FieldMetaPairs])

	for _, c := range f.Conditions() {
		pair := db.PairToken(c.Key(), c.Value())
		switch c.Operator() {
		case filter.OpNe:
			if !keys[db.KeyToken(c.Key())] || pairs[pair] {
				return false
			}
		default:
			if !pairs[pair] {
				return false
			}
		}
	}
	return true
}

func tokenSet(value string) map[string]bool {
	tokens := db.SplitTags(value)
	set := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		set[t] = true
	}
	return set
}

func projectFields(fields map[string]string, returnFields []string) map[string]string {
	if len(returnFields) == 0 {
		out := make(map[string]string, len(fields))
		for k, v := range fields {
			out[k] = v
		}
		return out
	}
	out := make(map[string]string, len(returnFields))
	for _, k := range returnFields {
		if v, ok := fields[k]; ok {
			out[k] = v
		}
	}
	return out
}

// cosineDistance is 1 - cosine similarity, accumulated in float64.
// Zero-norm vectors read as orthogonal (distance 1).
func cosineDistance(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(normA)*math.Sqrt(normB))
}
