// Package encoding decorates the encoder chain with request logging and
// chunked batch dispatch.
package encoding

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/nichesupply/listingsearch/internal/domain"
)

// DefaultMaxAPIBatchSize caps how many texts go into one provider request.
const DefaultMaxAPIBatchSize = 256

// InstrumentedEncoder wraps an Encoder with logging and batch chunking.
// Transport metrics (requests, duration, tokens) are recorded in
// transport/openai; this layer owns logs and chunk dispatch only.
type InstrumentedEncoder struct {
	inner  domain.Encoder
	model  string
	logger *zap.Logger
}

// NewInstrumentedEncoder wraps an encoder with observability.
func NewInstrumentedEncoder(inner domain.Encoder, model string, logger *zap.Logger) *InstrumentedEncoder {
	return &InstrumentedEncoder{
		inner:  inner,
		model:  model,
		logger: logger,
	}
}

// Encode delegates to the inner encoder and logs the outcome.
func (p *InstrumentedEncoder) Encode(ctx context.Context, text string) (domain.EncodeResult, error) {
	start := time.Now()

	result, err := p.inner.Encode(ctx, text)

	duration := time.Since(start)

	if err != nil {
		p.logger.Error("Encoding request failed",
			zap.String("model", p.model),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return domain.EncodeResult{}, fmt.Errorf("encode: %w", err)
	}

	p.logger.Debug("Encoding request completed",
		zap.String("model", p.model),
		zap.Duration("duration", duration),
		zap.Int("dimensions", len(result.Vector)),
		zap.Int("prompt_tokens", result.PromptTokens),
		zap.Int("total_tokens", result.TotalTokens),
	)

	return result, nil
}

// BatchEncode splits the texts into provider-sized chunks and delegates.
func (p *InstrumentedEncoder) BatchEncode(ctx context.Context, texts []string) (domain.BatchEncodeResult, error) {
	if len(texts) == 0 {
		return domain.BatchEncodeResult{}, nil
	}

	start := time.Now()

	result, err := p.encodeChunked(ctx, texts)
	if err != nil {
		return domain.BatchEncodeResult{}, err
	}

	p.logger.Debug("Batch encoding completed",
		zap.String("model", p.model),
		zap.Duration("duration", time.Since(start)),
		zap.Int("batch_size", len(texts)),
		zap.Int("prompt_tokens", result.PromptTokens),
		zap.Int("total_tokens", result.TotalTokens),
	)

	return result, nil
}

// encodeChunked walks the texts in chunks of DefaultMaxAPIBatchSize.
func (p *InstrumentedEncoder) encodeChunked(ctx context.Context, texts []string) (domain.BatchEncodeResult, error) {
	var allVectors [][]float32
	var totalPrompt, totalTokens int

	for offset := 0; offset < len(texts); offset += DefaultMaxAPIBatchSize {
		end := offset + DefaultMaxAPIBatchSize
		if end > len(texts) {
			end = len(texts)
		}
		chunk := texts[offset:end]

		chunkResult, err := p.encodeInner(ctx, chunk)
		if err != nil {
			p.logger.Error("Batch encoding request failed",
				zap.String("model", p.model),
				zap.Int("chunk_offset", offset),
				zap.Int("chunk_size", len(chunk)),
				zap.Error(err),
			)
			return domain.BatchEncodeResult{}, fmt.Errorf("batch encode: %w", err)
		}

		allVectors = append(allVectors, chunkResult.Vectors...)
		totalPrompt += chunkResult.PromptTokens
		totalTokens += chunkResult.TotalTokens
	}

	return domain.BatchEncodeResult{
		Vectors:      allVectors,
		PromptTokens: totalPrompt,
		TotalTokens:  totalTokens,
	}, nil
}

func (p *InstrumentedEncoder) encodeInner(ctx context.Context, texts []string) (domain.BatchEncodeResult, error) {
	if be, ok := p.inner.(domain.BatchEncoder); ok {
		res, err := be.BatchEncode(ctx, texts)
		if err != nil {
			return domain.BatchEncodeResult{}, fmt.Errorf("inner batch encode: %w", err)
		}
		return res, nil
	}
	res, err := domain.BatchFallback(ctx, p.inner, texts)
	if err != nil {
		return domain.BatchEncodeResult{}, fmt.Errorf("inner batch fallback: %w", err)
	}
	return res, nil
}
