// Package bolt implements db.Store over an embedded bbolt file.
//
// Documents are stored as msgpack-encoded field maps and searched with
// an exact brute-force cosine scan. Meant for single-node deployments
// that should not carry a Redis; the wire behavior matches the redis
// driver closely enough that consumers cannot tell them apart.
package bolt

import (
	"context"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/nichesupply/listingsearch/internal/db"
)

// Compile-time check: Store implements db.Store.
var _ db.Store = (*Store)(nil)

var (
	bucketDocs = []byte("docs")
	bucketKV   = []byte("kv")
	bucketIdx  = []byte("indexes")
)

// Config holds parameters for an embedded store.
type Config struct {
	Path string
}

// Store implements db.Store via bbolt.
type Store struct {
	db *bbolt.DB
}

// NewStore opens (or creates) the database file and its buckets.
func NewStore(cfg Config) (*Store, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("path is required")
	}

	bdb, err := bbolt.Open(cfg.Path, 0o600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = bdb.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketDocs, bucketKV, bucketIdx} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = bdb.Close()
		return nil, fmt.Errorf("failed to create buckets: %w", err)
	}

	return &Store{db: bdb}, nil
}

// Ping checks that the file handle is usable.
func (s *Store) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.View(func(tx *bbolt.Tx) error {
		if tx.Bucket(bucketDocs) == nil {
			return fmt.Errorf("bucket %q missing", bucketDocs)
		}
		return nil
	})
}

// Close releases the file lock.
func (s *Store) Close() {
	_ = s.db.Close()
}

// WaitForReady is immediate for an embedded store; the open already
// blocked on the file lock.
func (s *Store) WaitForReady(ctx context.Context, _ time.Duration) error {
	return s.Ping(ctx)
}
