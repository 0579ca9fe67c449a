package search

import (
	"context"

	"github.com/nichesupply/listingsearch/internal/domain"
	"github.com/nichesupply/listingsearch/internal/domain/filter"
)

// Repository defines the storage contract for search operations.
type Repository interface {
	Search(ctx context.Context, vector []float32, f filter.Filter, k int) ([]domain.Hit, error)
	Count(ctx context.Context) (int, error)
}

// Encoder vectorizes query text.
type Encoder interface {
	Encode(ctx context.Context, text string) (domain.EncodeResult, error)
}
