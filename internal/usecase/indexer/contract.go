package indexer

import (
	"context"

	"github.com/nichesupply/listingsearch/internal/domain"
)

// Repository defines the storage contract for index mutations.
type Repository interface {
	Save(ctx context.Context, l domain.Listing, vector []float32) error
	Delete(ctx context.Context, id string) error
	Purge(ctx context.Context) error
}

// Encoder vectorizes listing text.
type Encoder interface {
	Encode(ctx context.Context, text string) (domain.EncodeResult, error)
}
