// Package search ranks listings against a free-text query: encode, k-NN,
// deterministic ordering, adaptive cutoff.
package search

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/nichesupply/listingsearch/internal/domain"
	"github.com/nichesupply/listingsearch/internal/metrics"
	"github.com/nichesupply/listingsearch/internal/usecase/ranking"
)

// Options are per-request response toggles, separate from the query
// itself.
type Options struct {
	// Debug attaches raw candidates and the cutoff decision.
	Debug bool
	// BypassCutoff returns every raw candidate unranked.
	BypassCutoff bool
}

// Debug carries the raw candidate list behind a ranking decision.
type Debug struct {
	BypassCutoff bool
	RawCount     int
	RawPKs       []any
	RawDistances []float64
	KeepCount    int
}

// Ranking is the outcome of one search. Results is never nil. Debug is
// set when bypassing, or on request once candidates were actually ranked;
// early empty answers carry none.
type Ranking struct {
	Results []domain.RankedResult
	Debug   *Debug
}

// Service handles semantic listing search.
type Service struct {
	repo    Repository
	encoder Encoder
	logger  *zap.Logger
}

// New creates a search service.
func New(repo Repository, encoder Encoder, logger *zap.Logger) *Service {
	return &Service{repo: repo, encoder: encoder, logger: logger}
}

// Search encodes the query, fetches up to limit nearest listings, and
// trims them at the adaptive cutoff. Store failures degrade to an empty
// ranking; encoder failures propagate.
func (s *Service) Search(ctx context.Context, q domain.Query, opts Options) (Ranking, error) {
	count, err := s.repo.Count(ctx)
	if err != nil {
		s.logger.Warn("Failed to count listings, returning empty results", zap.Error(err))
		return emptyRanking(), nil
	}
	if count == 0 {
		return emptyRanking(), nil
	}

	encRes, err := s.encoder.Encode(ctx, q.Text())
	if err != nil {
		return Ranking{}, fmt.Errorf("encode query: %w", err)
	}

	domain.UsageFromContext(ctx).AddTokens(encRes.TotalTokens)

	k := q.Limit()
	if count < k {
		k = count
	}

	hits, err := s.repo.Search(ctx, encRes.Vector, q.Filter(), k)
	if err != nil {
		s.logger.Warn("Failed to search listings, returning empty results", zap.Error(err))
		return emptyRanking(), nil
	}

	metrics.SearchRawResults.Observe(float64(len(hits)))
	if len(hits) == 0 {
		return emptyRanking(), nil
	}

	// Equal distances order by document id so reruns page identically.
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Distance != hits[j].Distance {
			return hits[i].Distance < hits[j].Distance
		}
		return hits[i].DocID < hits[j].DocID
	})

	pks := make([]any, len(hits))
	distances := make([]float64, len(hits))
	for i, h := range hits {
		pks[i] = h.PK()
		distances[i] = h.Distance
	}

	if opts.BypassCutoff {
		metrics.SearchCutoffTotal.WithLabelValues("bypassed").Inc()
		return Ranking{
			Results: ranked(pks, distances, len(hits)),
			Debug:   &Debug{BypassCutoff: true, RawCount: len(hits)},
		}, nil
	}

	keep := ranking.Cutoff(distances)
	metrics.SearchKeptResults.Observe(float64(keep))
	if keep < len(hits) {
		metrics.SearchCutoffTotal.WithLabelValues("trimmed").Inc()
	} else {
		metrics.SearchCutoffTotal.WithLabelValues("kept_all").Inc()
	}

	res := Ranking{Results: ranked(pks, distances, keep)}
	if opts.Debug {
		res.Debug = &Debug{
			BypassCutoff: false,
			RawCount:     len(hits),
			RawPKs:       pks,
			RawDistances: distances,
			KeepCount:    keep,
		}
	}
	return res, nil
}

func emptyRanking() Ranking {
	return Ranking{Results: []domain.RankedResult{}}
}

func ranked(pks []any, distances []float64, n int) []domain.RankedResult {
	out := make([]domain.RankedResult, n)
	for i := range out {
		out[i] = domain.RankedResult{PK: pks[i], Distance: distances[i]}
	}
	return out
}
