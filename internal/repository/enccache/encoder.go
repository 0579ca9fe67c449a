// Package enccache caches encoded vectors in a key-value store so repeated
// texts skip the provider round-trip.
package enccache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/nichesupply/listingsearch/internal/db"
	"github.com/nichesupply/listingsearch/internal/domain"
)

var cacheKeyPrefix = domain.KeyPrefix + "enc_cache:"

// store is the consumer interface for the encoder cache (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// CachedEncoder caches vectors in a key-value store. Entries expire after
// the configured TTL; cache failures degrade to a miss, never to an error.
type CachedEncoder struct {
	inner      domain.Encoder
	store      store
	model      string
	ttl        time.Duration
	cacheTotal *prometheus.CounterVec
	logger     *zap.Logger
}

// New creates a caching decorator. The model name is part of the cache key
// so a model switch never serves vectors from the old embedding space.
// cacheTotal is a counter vec with label "result" ("hit"/"miss"), passed
// explicitly.
func New(
	inner domain.Encoder,
	s store,
	model string,
	ttl time.Duration,
	cacheTotal *prometheus.CounterVec,
	logger *zap.Logger,
) *CachedEncoder {
	return &CachedEncoder{
		inner:      inner,
		store:      s,
		model:      model,
		ttl:        ttl,
		cacheTotal: cacheTotal,
		logger:     logger,
	}
}

// Encode returns a cached vector or calls the inner encoder.
// Cache hit: TotalTokens = 0 (no real tokens consumed).
// Cache miss: full EncodeResult from inner.
func (c *CachedEncoder) Encode(ctx context.Context, text string) (domain.EncodeResult, error) {
	key := c.cacheKey(text)

	if vec, ok := c.getFromCache(ctx, key); ok {
		c.incCache("hit")
		return domain.EncodeResult{Vector: vec}, nil
	}

	c.incCache("miss")

	result, err := c.inner.Encode(ctx, text)
	if err != nil {
		return domain.EncodeResult{}, fmt.Errorf("encode text: %w", err)
	}

	c.putToCache(ctx, key, result.Vector)
	return result, nil
}

// BatchEncode serves each text from cache when possible and encodes only
// the misses, in one inner round-trip. Vectors[i] always corresponds to
// texts[i]; token counters cover the misses only.
func (c *CachedEncoder) BatchEncode(ctx context.Context, texts []string) (domain.BatchEncodeResult, error) {
	vectors := make([][]float32, len(texts))
	missIdx := make([]int, 0, len(texts))
	missTexts := make([]string, 0, len(texts))

	for i, text := range texts {
		if vec, ok := c.getFromCache(ctx, c.cacheKey(text)); ok {
			c.incCache("hit")
			vectors[i] = vec
			continue
		}
		c.incCache("miss")
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, text)
	}

	result := domain.BatchEncodeResult{Vectors: vectors}
	if len(missTexts) == 0 {
		return result, nil
	}

	var res domain.BatchEncodeResult
	var err error
	if be, ok := c.inner.(domain.BatchEncoder); ok {
		res, err = be.BatchEncode(ctx, missTexts)
	} else {
		res, err = domain.BatchFallback(ctx, c.inner, missTexts)
	}
	if err != nil {
		return domain.BatchEncodeResult{}, fmt.Errorf("batch encode: %w", err)
	}
	if len(res.Vectors) != len(missTexts) {
		return domain.BatchEncodeResult{}, fmt.Errorf(
			"batch encode: got %d vectors for %d texts", len(res.Vectors), len(missTexts))
	}

	for j, i := range missIdx {
		vectors[i] = res.Vectors[j]
		c.putToCache(ctx, c.cacheKey(missTexts[j]), res.Vectors[j])
	}
	result.PromptTokens = res.PromptTokens
	result.TotalTokens = res.TotalTokens
	return result, nil
}

func (c *CachedEncoder) incCache(result string) {
	if c.cacheTotal != nil {
		c.cacheTotal.WithLabelValues(result).Inc()
	}
}

func (c *CachedEncoder) cacheKey(text string) string {
	h := sha256.Sum256([]byte(c.model + "\x00" + text))
	return cacheKeyPrefix + hex.EncodeToString(h[:])
}

func (c *CachedEncoder) getFromCache(ctx context.Context, key string) ([]float32, bool) {
	data, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, db.ErrKeyNotFound) {
			c.logger.Warn("Failed to get cached vector", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}
	if len(data) == 0 {
		return nil, false
	}

	vec, err := db.VectorFromBytes(data)
	if err != nil {
		c.logger.Warn("Failed to parse cached vector", zap.String("key", key), zap.Error(err))
		return nil, false
	}

	return vec, true
}

func (c *CachedEncoder) putToCache(ctx context.Context, key string, vec []float32) {
	if err := c.store.SetWithTTL(ctx, key, db.VectorToBytes(vec), c.ttl); err != nil {
		c.logger.Warn("Failed to cache vector", zap.String("key", key), zap.Error(err))
	}
}
