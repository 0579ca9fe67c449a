package bolt

import (
	"bytes"
	"context"
	"errors"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
	"go.etcd.io/bbolt"

	"github.com/nichesupply/listingsearch/internal/db"
)

// HSet merges fields into the document at key, creating it if absent.
func (s *Store) HSet(ctx context.Context, key string, fields map[string]string) error {
	if err := ctx.Err(); err != nil {
		return &db.Error{Op: db.OpHSet, Err: err}
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketDocs)

		current := make(map[string]string, len(fields))
		if data := b.Get([]byte(key)); data != nil {
			if err := msgpack.Unmarshal(data, &current); err != nil {
				return err
			}
		}
		for k, v := range fields {
			current[k] = v
		}

		data, err := msgpack.Marshal(current)
		if err != nil {
			return err
		}
		return b.Put([]byte(key), data)
	})
	if err != nil {
		return &db.Error{Op: db.OpHSet, Err: err}
	}
	return nil
}

// HGetAll returns all fields of the document at key. A missing key
// yields an empty map, matching redis HGETALL.
func (s *Store) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, &db.Error{Op: db.OpHGetAll, Err: err}
	}

	fields := make(map[string]string)
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketDocs).Get([]byte(key))
		if data == nil {
			return nil
		}
		return msgpack.Unmarshal(data, &fields)
	})
	if err != nil {
		return nil, &db.Error{Op: db.OpHGetAll, Err: err}
	}
	return fields, nil
}

// Del removes the document at key. Deleting an absent key is a no-op.
func (s *Store) Del(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return &db.Error{Op: db.OpDel, Err: err}
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketDocs).Delete([]byte(key))
	})
	if err != nil {
		return &db.Error{Op: db.OpDel, Err: err}
	}
	return nil
}

// Scan returns document keys matching the pattern. Only exact keys and
// trailing-star prefixes ("search:listings:*") are supported; that is
// the full pattern surface the repositories use.
func (s *Store) Scan(ctx context.Context, pattern string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, &db.Error{Op: db.OpScan, Err: err}
	}

	prefix, wildcard, err := splitPattern(pattern)
	if err != nil {
		return nil, &db.Error{Op: db.OpScan, Err: err}
	}

	var keys []string
	err = s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketDocs).Cursor()
		p := []byte(prefix)
		for k, _ := c.Seek(p); k != nil && bytes.HasPrefix(k, p); k, _ = c.Next() {
			if !wildcard && len(k) != len(p) {
				continue
			}
			keys = append(keys, string(k))
		}
		return nil
	})
	if err != nil {
		return nil, &db.Error{Op: db.OpScan, Err: err}
	}
	return keys, nil
}

func splitPattern(pattern string) (prefix string, wildcard bool, err error) {
	star := strings.IndexByte(pattern, '*')
	switch {
	case star < 0:
		if strings.ContainsAny(pattern, "?[") {
			return "", false, errors.New("unsupported scan pattern: " + pattern)
		}
		return pattern, false, nil
	case star == len(pattern)-1:
		prefix = pattern[:star]
		if strings.ContainsAny(prefix, "*?[") {
			return "", false, errors.New("unsupported scan pattern: " + pattern)
		}
		return prefix, true, nil
	default:
		return "", false, errors.New("unsupported scan pattern: " + pattern)
	}
}
