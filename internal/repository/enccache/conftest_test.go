package enccache

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/nichesupply/listingsearch/internal/db"
	"github.com/nichesupply/listingsearch/internal/domain"
)

type mockEncoder struct {
	result      domain.EncodeResult
	err         error
	batchResult domain.BatchEncodeResult
	batchErr    error
	calls       int
	batchCalls  int
}

func (m *mockEncoder) Encode(_ context.Context, _ string) (domain.EncodeResult, error) {
	m.calls++
	return m.result, m.err
}

func (m *mockEncoder) BatchEncode(_ context.Context, texts []string) (domain.BatchEncodeResult, error) {
	m.batchCalls++
	if m.batchErr != nil {
		return domain.BatchEncodeResult{}, m.batchErr
	}
	if m.batchResult.Vectors != nil {
		return m.batchResult, nil
	}
	// Авто-генерация: один и тот же вектор на каждый текст
	vectors := make([][]float32, len(texts))
	for i := range texts {
		vectors[i] = m.result.Vector
	}
	return domain.BatchEncodeResult{
		Vectors:      vectors,
		PromptTokens: m.result.PromptTokens * len(texts),
		TotalTokens:  m.result.TotalTokens * len(texts),
	}, nil
}

// mockKVStore implements the consumer interface for tests.
type mockKVStore struct {
	getFn func(ctx context.Context, key string) ([]byte, error)
	setFn func(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

func (m *mockKVStore) Get(ctx context.Context, key string) ([]byte, error) {
	if m.getFn != nil {
		return m.getFn(ctx, key)
	}
	return nil, db.ErrKeyNotFound
}

func (m *mockKVStore) SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if m.setFn != nil {
		return m.setFn(ctx, key, value, ttl)
	}
	return nil
}

func newTestCachedEncoder(t *testing.T, inner domain.Encoder) (*CachedEncoder, *mockKVStore) {
	t.Helper()
	ms := &mockKVStore{}
	ce := New(inner, ms, "all-MiniLM-L6-v2", time.Hour, nil, zap.NewNop())
	return ce, ms
}
