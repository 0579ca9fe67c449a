package db

import "github.com/nichesupply/listingsearch/internal/domain/filter"

// KNNQuery is the input for vector similarity search.
type KNNQuery struct {
	IndexName    string
	Filters      filter.Filter
	Vector       []float32
	K            int
	ReturnFields []string
}

// SearchResult is the output of a search operation.
type SearchResult struct {
	Total   int
	Entries []SearchEntry
}

// SearchEntry is a single document hit from a search.
// Distance is the cosine distance reported by the index, ascending is better.
type SearchEntry struct {
	Key      string
	Distance float64
	Fields   map[string]string
}
