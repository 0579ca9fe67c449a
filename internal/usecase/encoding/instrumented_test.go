package encoding

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/nichesupply/listingsearch/internal/domain"
)

type mockEncoder struct {
	result      domain.EncodeResult
	err         error
	batchErr    error
	batchCalls  int
	batchSizes  []int
	singleCalls int
}

func (m *mockEncoder) Encode(_ context.Context, _ string) (domain.EncodeResult, error) {
	m.singleCalls++
	return m.result, m.err
}

func (m *mockEncoder) BatchEncode(_ context.Context, texts []string) (domain.BatchEncodeResult, error) {
	m.batchCalls++
	m.batchSizes = append(m.batchSizes, len(texts))
	if m.batchErr != nil {
		return domain.BatchEncodeResult{}, m.batchErr
	}
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

func TestInstrumentedEncoder_Success(t *testing.T) {
	inner := &mockEncoder{result: domain.EncodeResult{
		Vector:       []float32{0.1, 0.2, 0.3},
		PromptTokens: 100,
		TotalTokens:  100,
	}}
	p := NewInstrumentedEncoder(inner, "test-model", zap.NewNop())

	result, err := p.Encode(context.Background(), "hello")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Vector) != 3 {
		t.Fatalf("expected 3 dimensions, got %d", len(result.Vector))
	}
	if result.TotalTokens != 100 {
		t.Fatalf("expected 100 total tokens, got %d", result.TotalTokens)
	}
}

func TestInstrumentedEncoder_Error(t *testing.T) {
	innerErr := errors.New("api error")
	inner := &mockEncoder{err: innerErr}
	p := NewInstrumentedEncoder(inner, "test-model", zap.NewNop())

	_, err := p.Encode(context.Background(), "hello")
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, innerErr) {
		t.Fatalf("expected wrapped inner error, got %v", err)
	}
}

func TestBatchEncode_SingleChunk(t *testing.T) {
	inner := &mockEncoder{result: domain.EncodeResult{
		Vector:      []float32{0.5},
		TotalTokens: 2,
	}}
	p := NewInstrumentedEncoder(inner, "test-model", zap.NewNop())

	res, err := p.BatchEncode(context.Background(), []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Vectors) != 3 {
		t.Fatalf("expected 3 vectors, got %d", len(res.Vectors))
	}
	if inner.batchCalls != 1 {
		t.Errorf("expected 1 inner call, got %d", inner.batchCalls)
	}
	if res.TotalTokens != 6 {
		t.Errorf("expected TotalTokens=6, got %d", res.TotalTokens)
	}
}

func TestBatchEncode_SplitsLargeBatches(t *testing.T) {
	inner := &mockEncoder{result: domain.EncodeResult{Vector: []float32{0.5}}}
	p := NewInstrumentedEncoder(inner, "test-model", zap.NewNop())

	texts := make([]string, DefaultMaxAPIBatchSize+10)
	for i := range texts {
		texts[i] = "text"
	}

	res, err := p.BatchEncode(context.Background(), texts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Vectors) != len(texts) {
		t.Fatalf("expected %d vectors, got %d", len(texts), len(res.Vectors))
	}
	if inner.batchCalls != 2 {
		t.Fatalf("expected 2 chunked calls, got %d", inner.batchCalls)
	}
	if inner.batchSizes[0] != DefaultMaxAPIBatchSize || inner.batchSizes[1] != 10 {
		t.Errorf("chunk sizes = %v", inner.batchSizes)
	}
}

func TestBatchEncode_Empty(t *testing.T) {
	inner := &mockEncoder{}
	p := NewInstrumentedEncoder(inner, "test-model", zap.NewNop())

	res, err := p.BatchEncode(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Vectors) != 0 {
		t.Errorf("expected no vectors, got %d", len(res.Vectors))
	}
	if inner.batchCalls != 0 {
		t.Errorf("inner must not be called for an empty batch")
	}
}

func TestBatchEncode_InnerError(t *testing.T) {
	inner := &mockEncoder{batchErr: errors.New("api down")}
	p := NewInstrumentedEncoder(inner, "test-model", zap.NewNop())

	if _, err := p.BatchEncode(context.Background(), []string{"a"}); err == nil {
		t.Fatal("expected error")
	}
}

// batchlessEncoder forces the BatchFallback path.
type batchlessEncoder struct {
	calls int
}

func (b *batchlessEncoder) Encode(_ context.Context, _ string) (domain.EncodeResult, error) {
	b.calls++
	return domain.EncodeResult{Vector: []float32{0.1}, TotalTokens: 1}, nil
}

func TestBatchEncode_FallbackWithoutBatchSupport(t *testing.T) {
	inner := &batchlessEncoder{}
	p := NewInstrumentedEncoder(inner, "test-model", zap.NewNop())

	res, err := p.BatchEncode(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inner.calls != 2 {
		t.Errorf("expected 2 per-text calls, got %d", inner.calls)
	}
	if res.TotalTokens != 2 {
		t.Errorf("expected TotalTokens=2, got %d", res.TotalTokens)
	}
}
