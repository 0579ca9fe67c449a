// Package openai encodes text through an OpenAI-compatible embeddings API
// (e.g. a local TEI or llama.cpp server, Nebius, OpenAI itself).
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/nichesupply/listingsearch/internal/domain"
	"github.com/nichesupply/listingsearch/internal/metrics"
)

// Encoder is an embedding provider over the OpenAI-compatible API.
type Encoder struct {
	client     *openai.Client
	model      openai.EmbeddingModel
	dimensions int
	logger     *zap.Logger
}

// Config holds the embedding provider settings.
type Config struct {
	APIKey     string
	BaseURL    string
	Model      string
	Dimensions int
	Logger     *zap.Logger
}

// NewEncoder creates an OpenAI-compatible embedding provider.
func NewEncoder(cfg *Config) *Encoder {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	clientCfg.BaseURL = cfg.BaseURL

	return &Encoder{
		client:     openai.NewClientWithConfig(clientCfg),
		model:      openai.EmbeddingModel(cfg.Model),
		dimensions: cfg.Dimensions,
		logger:     cfg.Logger,
	}
}

// Encode implements domain.Encoder. Returns the vector and usage with
// transport-level metrics.
func (e *Encoder) Encode(ctx context.Context, text string) (domain.EncodeResult, error) {
	req := e.request([]string{orSpace(text)})

	start := time.Now()
	resp, err := e.client.CreateEmbeddings(ctx, req)
	duration := time.Since(start)

	if err != nil {
		metrics.EncoderRequestsTotal.WithLabelValues(string(e.model), "error").Inc()
		metrics.EncoderErrorsTotal.WithLabelValues(string(e.model), "api_error").Inc()
		return domain.EncodeResult{}, parseAPIError(err)
	}

	if len(resp.Data) == 0 {
		metrics.EncoderRequestsTotal.WithLabelValues(string(e.model), "error").Inc()
		metrics.EncoderErrorsTotal.WithLabelValues(string(e.model), "empty_response").Inc()
		return domain.EncodeResult{}, fmt.Errorf("empty embeddings response: %w", domain.ErrEncoderUnavailable)
	}

	metrics.EncoderRequestsTotal.WithLabelValues(string(e.model), "success").Inc()
	metrics.EncoderRequestDuration.WithLabelValues(string(e.model)).Observe(duration.Seconds())
	e.recordTokens(resp.Usage.PromptTokens, resp.Usage.TotalTokens)

	return domain.EncodeResult{
		Vector:       resp.Data[0].Embedding,
		PromptTokens: resp.Usage.PromptTokens,
		TotalTokens:  resp.Usage.TotalTokens,
	}, nil
}

// BatchEncode implements domain.BatchEncoder: one API round-trip for all
// texts. Vectors are reordered by the response Index field, so
// Vectors[i] always matches texts[i].
func (e *Encoder) BatchEncode(ctx context.Context, texts []string) (domain.BatchEncodeResult, error) {
	if len(texts) == 0 {
		return domain.BatchEncodeResult{}, nil
	}

	input := make([]string, len(texts))
	for i, t := range texts {
		input[i] = orSpace(t)
	}
	req := e.request(input)

	start := time.Now()
	resp, err := e.client.CreateEmbeddings(ctx, req)
	duration := time.Since(start)

	if err != nil {
		metrics.EncoderRequestsTotal.WithLabelValues(string(e.model), "error").Inc()
		metrics.EncoderErrorsTotal.WithLabelValues(string(e.model), "api_error").Inc()
		return domain.BatchEncodeResult{}, parseAPIError(err)
	}

	if len(resp.Data) != len(texts) {
		metrics.EncoderRequestsTotal.WithLabelValues(string(e.model), "error").Inc()
		metrics.EncoderErrorsTotal.WithLabelValues(string(e.model), "count_mismatch").Inc()
		return domain.BatchEncodeResult{}, fmt.Errorf(
			"expected %d embeddings, got %d: %w", len(texts), len(resp.Data), domain.ErrEncoderUnavailable)
	}

	vectors := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(vectors) {
			metrics.EncoderRequestsTotal.WithLabelValues(string(e.model), "error").Inc()
			metrics.EncoderErrorsTotal.WithLabelValues(string(e.model), "bad_index").Inc()
			return domain.BatchEncodeResult{}, fmt.Errorf(
				"embedding index %d out of range: %w", d.Index, domain.ErrEncoderUnavailable)
		}
		vectors[d.Index] = d.Embedding
	}

	metrics.EncoderRequestsTotal.WithLabelValues(string(e.model), "success").Inc()
	metrics.EncoderRequestDuration.WithLabelValues(string(e.model)).Observe(duration.Seconds())
	e.recordTokens(resp.Usage.PromptTokens, resp.Usage.TotalTokens)

	return domain.BatchEncodeResult{
		Vectors:      vectors,
		PromptTokens: resp.Usage.PromptTokens,
		TotalTokens:  resp.Usage.TotalTokens,
	}, nil
}

// HealthCheck verifies API availability via ListModels (free endpoint).
func (e *Encoder) HealthCheck(ctx context.Context) error {
	if _, err := e.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

func (e *Encoder) request(input []string) openai.EmbeddingRequest {
	req := openai.EmbeddingRequest{
		Input:          input,
		Model:          e.model,
		EncodingFormat: openai.EmbeddingEncodingFormatFloat,
	}
	if e.dimensions > 0 {
		req.Dimensions = e.dimensions
	}
	return req
}

func (e *Encoder) recordTokens(prompt, total int) {
	if total > 0 {
		metrics.EncoderTokensTotal.WithLabelValues(string(e.model), "prompt").Add(float64(prompt))
		metrics.EncoderTokensTotal.WithLabelValues(string(e.model), "total").Add(float64(total))
	}
}

// orSpace substitutes a single space for empty input; the embeddings API
// rejects empty strings.
func orSpace(text string) string {
	if text == "" {
		return " "
	}
	return text
}

// parseAPIError extracts a human-readable error from the API response.
// All errors are wrapped with domain.ErrEncoderUnavailable for correct 502
// mapping.
func parseAPIError(err error) error {
	wrap := domain.ErrEncoderUnavailable

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		detail := extractDetail(reqErr.Body)
		if detail != "" {
			return fmt.Errorf("embeddings API error %d: %s: %w",
				reqErr.HTTPStatusCode, detail, wrap)
		}
		return fmt.Errorf("embeddings API error %d: %s: %w",
			reqErr.HTTPStatusCode, string(reqErr.Body), wrap)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("embeddings API error %d: %s: %w",
			apiErr.HTTPStatusCode, apiErr.Message, wrap)
	}

	return fmt.Errorf("embeddings request failed: %w", wrap)
}

// extractDetail pulls the "detail" field from a JSON error body (the
// FastAPI/TEI error format).
func extractDetail(body []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &parsed) == nil && parsed.Detail != "" {
		return parsed.Detail
	}
	return ""
}
