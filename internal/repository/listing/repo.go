// Package listing persists listing documents in the vector store and runs
// filtered k-NN queries over them. One listing is one hash holding the
// source text, the embedding blob, the raw metadata JSON, and two derived
// TAG fields the filter language matches against.
package listing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/nichesupply/listingsearch/internal/db"
	"github.com/nichesupply/listingsearch/internal/domain"
	"github.com/nichesupply/listingsearch/internal/domain/filter"
)

// docSegment namespaces listing hashes under the service key prefix.
const docSegment = "listings:"

// store is the consumer interface for listing persistence (ISP).
//
//nolint:interfacebloat // listing repo needs hash + index management operations
type store interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	Del(ctx context.Context, key string) error
	Scan(ctx context.Context, pattern string) ([]string, error)
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	DropIndex(ctx context.Context, name string) error
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	SearchCount(ctx context.Context, index, query string) (int, error)
}

// HNSWConfig HNSW index parameters.
type HNSWConfig struct {
	M           int
	EFConstruct int
}

// Config sets the index layout. Values come from service configuration.
type Config struct {
	IndexName string
	KeyPrefix string
	VectorDim int
	HNSW      HNSWConfig
}

// Repo implements the storage side of the indexing and search usecases.
type Repo struct {
	store  store
	cfg    Config
	logger *zap.Logger
}

// New creates a listing repository.
func New(s store, cfg Config, logger *zap.Logger) *Repo {
	if cfg.HNSW.M <= 0 {
		cfg.HNSW.M = 32
	}
	if cfg.HNSW.EFConstruct <= 0 {
		cfg.HNSW.EFConstruct = 400
	}
	return &Repo{store: s, cfg: cfg, logger: logger}
}

// docPrefix returns the key prefix shared by all listing hashes.
func (r *Repo) docPrefix() string {
	return r.cfg.KeyPrefix + docSegment
}

func (r *Repo) key(id string) string {
	return r.docPrefix() + id
}

// indexDef builds the schema all listing hashes are indexed under.
func (r *Repo) indexDef() (*db.IndexDefinition, error) {
	return db.NewIndex(r.cfg.IndexName).
		Prefix(r.docPrefix()).
		TagWithOpts(db.FieldMetaKeys, db.TagSeparator, true).
		TagWithOpts(db.FieldMetaPairs, db.TagSeparator, true).
		VectorHNSW(db.FieldVector, r.cfg.VectorDim, db.DistanceCosine, r.cfg.HNSW.M, r.cfg.HNSW.EFConstruct).
		Build()
}

// EnsureIndex creates the listing index if it does not exist yet.
func (r *Repo) EnsureIndex(ctx context.Context) error {
	def, err := r.indexDef()
	if err != nil {
		return fmt.Errorf("build index: %w", err)
	}
	if err := r.store.CreateIndex(ctx, def); err != nil && !errors.Is(err, db.ErrIndexExists) {
		return fmt.Errorf("create index %s: %w", def.Name, err)
	}
	return nil
}

// Save upserts a listing hash with its embedding. An existing document
// under the same id is replaced field by field.
func (r *Repo) Save(ctx context.Context, l domain.Listing, vector []float32) error {
	fields, err := documentFields(l, vector)
	if err != nil {
		return err
	}
	if err := r.store.HSet(ctx, r.key(l.ID()), fields); err != nil {
		return fmt.Errorf("save listing %s: %w: %w", l.ID(), domain.ErrStoreUnavailable, err)
	}
	return nil
}

// Delete removes a listing. Deleting an absent id is a no-op.
func (r *Repo) Delete(ctx context.Context, id string) error {
	if err := r.store.Del(ctx, r.key(id)); err != nil {
		return fmt.Errorf("delete listing %s: %w: %w", id, domain.ErrStoreUnavailable, err)
	}
	return nil
}

// Search runs a filtered k-NN query and returns up to k hits ordered by
// cosine distance ascending.
func (r *Repo) Search(ctx context.Context, vector []float32, f filter.Filter, k int) ([]domain.Hit, error) {
	q := &db.KNNQuery{
		IndexName:    r.cfg.IndexName,
		Filters:      f,
		Vector:       vector,
		K:            k,
		ReturnFields: []string{db.FieldMeta},
	}

	sr, err := r.store.SearchKNN(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("search listings: %w", err)
	}

	return r.parseHits(sr), nil
}

// Count returns the number of indexed listings.
func (r *Repo) Count(ctx context.Context) (int, error) {
	n, err := r.store.SearchCount(ctx, r.cfg.IndexName, "*")
	if err != nil {
		return 0, fmt.Errorf("count listings: %w", err)
	}
	return n, nil
}

// Purge deletes every listing hash and recreates an empty index.
func (r *Repo) Purge(ctx context.Context) error {
	keys, err := r.store.Scan(ctx, r.docPrefix()+"*")
	if err != nil {
		return fmt.Errorf("scan listings: %w: %w", domain.ErrStoreUnavailable, err)
	}
	for _, key := range keys {
		if err := r.store.Del(ctx, key); err != nil {
			return fmt.Errorf("purge listing %s: %w: %w", key, domain.ErrStoreUnavailable, err)
		}
	}

	if err := r.store.DropIndex(ctx, r.cfg.IndexName); err != nil && !errors.Is(err, db.ErrIndexNotFound) {
		return fmt.Errorf("drop index %s: %w: %w", r.cfg.IndexName, domain.ErrStoreUnavailable, err)
	}

	def, err := r.indexDef()
	if err != nil {
		return fmt.Errorf("build index: %w", err)
	}
	if err := r.store.CreateIndex(ctx, def); err != nil {
		return fmt.Errorf("recreate index %s: %w: %w", def.Name, domain.ErrStoreUnavailable, err)
	}
	return nil
}

// documentFields renders a listing into its stored hash fields.
func documentFields(l domain.Listing, vector []float32) (map[string]string, error) {
	canonical, err := l.Metadata().Canonical()
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(canonical))
	pairs := make([]string, 0, len(canonical))
	for k, cv := range canonical {
		keys = append(keys, db.KeyToken(k))
		pairs = append(pairs, db.PairToken(k, cv))
	}
	sort.Strings(keys)
	sort.Strings(pairs)

	metaJSON, err := json.Marshal(l.Metadata())
	if err != nil {
		return nil, fmt.Errorf("marshal metadata for %s: %w", l.ID(), err)
	}

	return map[string]string{
		db.FieldText:      l.Text(),
		db.FieldVector:    string(db.VectorToBytes(vector)),
		db.FieldMeta:      string(metaJSON),
		db.FieldMetaKeys:  db.JoinTags(keys),
		db.FieldMetaPairs: db.JoinTags(pairs),
	}, nil
}

// parseHits converts store entries into domain hits. Metadata that fails
// to decode is dropped from the hit, not fatal: the pk falls back to the
// document id.
func (r *Repo) parseHits(sr *db.SearchResult) []domain.Hit {
	if sr == nil || len(sr.Entries) == 0 {
		return nil
	}

	prefix := r.docPrefix()
	hits := make([]domain.Hit, 0, len(sr.Entries))
	for _, entry := range sr.Entries {
		hit := domain.Hit{
			DocID:    strings.TrimPrefix(entry.Key, prefix),
			Distance: entry.Distance,
		}
		if raw, ok := entry.Fields[db.FieldMeta]; ok && raw != "" {
			if err := json.Unmarshal([]byte(raw), &hit.Meta); err != nil {
				r.logger.Warn("Failed to decode listing metadata",
					zap.String("key", entry.Key),
					zap.Error(err))
			}
		}
		hits = append(hits, hit)
	}
	return hits
}
