// Package indexer maintains the vector index: single listing upserts,
// removals, and full rebuilds.
package indexer

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/nichesupply/listingsearch/internal/domain"
	"github.com/nichesupply/listingsearch/internal/domain/batch"
)

// Item is one raw listing in a rebuild request. Rebuild items are
// validated per item so one malformed listing cannot fail the batch.
type Item struct {
	ID       string
	Text     string
	Metadata domain.Metadata
}

// Service handles index mutations.
type Service struct {
	repo    Repository
	encoder Encoder
	logger  *zap.Logger
}

// New creates an indexer service.
func New(repo Repository, encoder Encoder, logger *zap.Logger) *Service {
	return &Service{repo: repo, encoder: encoder, logger: logger}
}

// Index encodes and stores one listing, replacing any previous document
// under the same id.
func (s *Service) Index(ctx context.Context, l domain.Listing) error {
	res, err := s.encoder.Encode(ctx, l.Text())
	if err != nil {
		return fmt.Errorf("encode listing: %w", err)
	}
	domain.UsageFromContext(ctx).AddTokens(res.TotalTokens)

	if err := s.repo.Save(ctx, l, res.Vector); err != nil {
		return fmt.Errorf("index listing: %w", err)
	}
	return nil
}

// Remove deletes a listing from the index. Removing an unknown id is not
// an error.
func (s *Service) Remove(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("remove listing: %w", err)
	}
	return nil
}

// Rebuild wipes the index and re-indexes the given items from scratch.
// Items that fail to validate, encode, or store are skipped with a log
// entry; the returned results report the outcome of every item in input
// order so the caller can count what actually landed.
func (s *Service) Rebuild(ctx context.Context, items []Item) ([]batch.Result, error) {
	if err := s.repo.Purge(ctx); err != nil {
		return nil, fmt.Errorf("purge index: %w", err)
	}

	results := make([]batch.Result, len(items))

	// Validate up front; only well-formed listings reach the encoder.
	listings := make([]domain.Listing, 0, len(items))
	validIdx := make([]int, 0, len(items))
	for i, item := range items {
		l, err := domain.NewListing(item.ID, item.Text, item.Metadata)
		if err != nil {
			s.logger.Warn("Skipping invalid listing during rebuild",
				zap.String("listing_id", item.ID), zap.Error(err))
			results[i] = batch.NewSkipped(item.ID, err)
			continue
		}
		listings = append(listings, l)
		validIdx = append(validIdx, i)
	}
	if len(listings) == 0 {
		return results, nil
	}

	vectors, encErrs := s.encodeListings(ctx, listings)

	for vi := range listings {
		l := &listings[vi]
		i := validIdx[vi]

		if vectors[vi] == nil {
			err := encErrs[vi]
			if err == nil {
				err = domain.ErrEncoderUnavailable
			}
			s.logger.Warn("Failed to encode listing during rebuild",
				zap.String("listing_id", l.ID()), zap.Error(err))
			results[i] = batch.NewSkipped(l.ID(), fmt.Errorf("encode listing: %w", err))
			continue
		}

		if err := s.repo.Save(ctx, *l, vectors[vi]); err != nil {
			s.logger.Warn("Failed to store listing during rebuild",
				zap.String("listing_id", l.ID()), zap.Error(err))
			results[i] = batch.NewSkipped(l.ID(), err)
			continue
		}

		results[i] = batch.NewOK(l.ID())
	}

	return results, nil
}

// encodeListings embeds every listing text, in one batch when the encoder
// supports it. A failed batch falls back to per-item encoding so one bad
// text cannot sink the whole rebuild. vectors[i] is nil where encoding
// failed, with the cause in errs[i].
func (s *Service) encodeListings(ctx context.Context, listings []domain.Listing) (vectors [][]float32, errs []error) {
	texts := make([]string, len(listings))
	for i := range listings {
		texts[i] = listings[i].Text()
	}

	if be, ok := s.encoder.(domain.BatchEncoder); ok {
		res, err := be.BatchEncode(ctx, texts)
		if err == nil && len(res.Vectors) == len(texts) {
			domain.UsageFromContext(ctx).AddTokens(res.TotalTokens)
			return res.Vectors, make([]error, len(texts))
		}
		if err != nil {
			s.logger.Warn("Batch encoding failed during rebuild, retrying per item", zap.Error(err))
		}
	}

	vectors = make([][]float32, len(listings))
	errs = make([]error, len(listings))
	for i := range listings {
		res, err := s.encoder.Encode(ctx, texts[i])
		if err != nil {
			errs[i] = err
			continue
		}
		domain.UsageFromContext(ctx).AddTokens(res.TotalTokens)
		vectors[i] = res.Vector
	}
	return vectors, errs
}
