package bolt

import (
	"context"
	"errors"

	"github.com/vmihailenco/msgpack/v5"
	"go.etcd.io/bbolt"

	"github.com/nichesupply/listingsearch/internal/db"
)

// CreateIndex persists the index definition. The brute-force scan only
// speaks cosine, so other metrics are rejected up front instead of
// silently ranking by the wrong distance.
func (s *Store) CreateIndex(ctx context.Context, def *db.IndexDefinition) error {
	if err := def.Validate(); err != nil {
		return err
	}
	if vf, ok := def.VectorField(); ok {
		if vf.VectorDistance != "" && vf.VectorDistance != db.DistanceCosine {
			return errors.New("bolt driver supports only cosine distance")
		}
	}
	if err := ctx.Err(); err != nil {
		return &db.Error{Op: db.OpCreateIndex, Err: err}
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketIdx)
		if b.Get([]byte(def.Name)) != nil {
			return db.ErrIndexExists
		}
		data, err := msgpack.Marshal(def)
		if err != nil {
			return err
		}
		return b.Put([]byte(def.Name), data)
	})
	if errors.Is(err, db.ErrIndexExists) {
		return db.ErrIndexExists
	}
	if err != nil {
		return &db.Error{Op: db.OpCreateIndex, Err: err}
	}
	return nil
}

// DropIndex removes an index definition. Documents stay, matching the
// redis driver's FT.DROPINDEX without DD.
func (s *Store) DropIndex(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return &db.Error{Op: db.OpDropIndex, Err: err}
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketIdx)
		if b.Get([]byte(name)) == nil {
			return db.ErrIndexNotFound
		}
		return b.Delete([]byte(name))
	})
	if errors.Is(err, db.ErrIndexNotFound) {
		return db.ErrIndexNotFound
	}
	if err != nil {
		return &db.Error{Op: db.OpDropIndex, Err: err}
	}
	return nil
}

// IndexExists reports whether an index definition is persisted.
func (s *Store) IndexExists(ctx context.Context, name string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, &db.Error{Op: db.OpIndexInfo, Err: err}
	}

	exists := false
	err := s.db.View(func(tx *bbolt.Tx) error {
		exists = tx.Bucket(bucketIdx).Get([]byte(name)) != nil
		return nil
	})
	if err != nil {
		return false, &db.Error{Op: db.OpIndexInfo, Err: err}
	}
	return exists, nil
}

func (s *Store) loadIndex(tx *bbolt.Tx, name string) (*db.IndexDefinition, error) {
	data := tx.Bucket(bucketIdx).Get([]byte(name))
	if data == nil {
		return nil, db.ErrIndexNotFound
	}
	var def db.IndexDefinition
	if err := msgpack.Unmarshal(data, &def); err != nil {
		return nil, err
	}
	return &def, nil
}
