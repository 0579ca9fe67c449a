package bolt

import (
	"context"
	"time"

	"github.com/vmihailenco/msgpack/v5"
	"go.etcd.io/bbolt"

	"github.com/nichesupply/listingsearch/internal/db"
)

// kvEntry wraps a value with its optional expiry (unix nanos, 0 = none).
type kvEntry struct {
	Value     []byte `msgpack:"v"`
	ExpiresAt int64  `msgpack:"x"`
}

// Get retrieves a value by key. Expired entries read as missing and are
// reclaimed by the next Set on the same key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, &db.Error{Op: db.OpGet, Err: err}
	}

	var entry kvEntry
	found := false
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketKV).Get([]byte(key))
		if data == nil {
			return nil
		}
		found = true
		return msgpack.Unmarshal(data, &entry)
	})
	if err != nil {
		return nil, &db.Error{Op: db.OpGet, Err: err}
	}
	if !found {
		return nil, db.ErrKeyNotFound
	}
	if entry.ExpiresAt > 0 && time.Now().UnixNano() > entry.ExpiresAt {
		return nil, db.ErrKeyNotFound
	}
	return entry.Value, nil
}

// Set stores a value without expiry.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	return s.put(ctx, key, kvEntry{Value: value})
}

// SetWithTTL stores a value that expires after ttl.
func (s *Store) SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return s.put(ctx, key, kvEntry{Value: value, ExpiresAt: time.Now().Add(ttl).UnixNano()})
}

func (s *Store) put(ctx context.Context, key string, entry kvEntry) error {
	if err := ctx.Err(); err != nil {
		return &db.Error{Op: db.OpSet, Err: err}
	}

	data, err := msgpack.Marshal(entry)
	if err != nil {
		return &db.Error{Op: db.OpSet, Err: err}
	}

	err = s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketKV).Put([]byte(key), data)
	})
	if err != nil {
		return &db.Error{Op: db.OpSet, Err: err}
	}
	return nil
}
