package domain

import (
	"context"
	"fmt"
)

// EncodeResult is a single-text encoding with provider usage counters.
type EncodeResult struct {
	Vector       []float32
	PromptTokens int
	TotalTokens  int
}

// BatchEncodeResult is a multi-text encoding with summed usage counters.
// Vectors[i] corresponds to texts[i] of the request.
type BatchEncodeResult struct {
	Vectors      [][]float32
	PromptTokens int
	TotalTokens  int
}

// Encoder turns free text into a dense vector. Implementations must be
// deterministic for a given model and produce one fixed dimensionality
// per process lifetime. Empty input is legal and encodes like any other
// string.
type Encoder interface {
	Encode(ctx context.Context, text string) (EncodeResult, error)
}

// BatchEncoder encodes several texts in one provider round-trip.
type BatchEncoder interface {
	BatchEncode(ctx context.Context, texts []string) (BatchEncodeResult, error)
}

// HealthChecker verifies that the encoding provider is reachable.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// BatchFallback encodes texts one by one. Safety net for encoders without
// native batch support.
func BatchFallback(ctx context.Context, e Encoder, texts []string) (BatchEncodeResult, error) {
	vectors := make([][]float32, len(texts))
	var totalPrompt, totalTokens int

	for i, text := range texts {
		res, err := e.Encode(ctx, text)
		if err != nil {
			return BatchEncodeResult{}, fmt.Errorf("fallback encode [%d]: %w", i, err)
		}
		vectors[i] = res.Vector
		totalPrompt += res.PromptTokens
		totalTokens += res.TotalTokens
	}

	return BatchEncodeResult{
		Vectors:      vectors,
		PromptTokens: totalPrompt,
		TotalTokens:  totalTokens,
	}, nil
}
