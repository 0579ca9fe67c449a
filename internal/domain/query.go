package domain

import "github.com/nichesupply/listingsearch/internal/domain/filter"

const (
	// DefaultSearchLimit applies when the caller requests no limit.
	DefaultSearchLimit = 20
	// MaxSearchLimit caps how many raw neighbors one query may request.
	MaxSearchLimit = 100
)

// Query is one semantic search request. Ephemeral, never persisted.
type Query struct {
	text   string
	limit  int
	filter filter.Filter
}

// NewQuery creates a Query. A non-positive limit selects
// DefaultSearchLimit; anything above MaxSearchLimit is clamped down.
// Empty text is legal: it encodes to the model's empty-string vector.
func NewQuery(text string, limit int, f filter.Filter) Query {
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	if limit > MaxSearchLimit {
		limit = MaxSearchLimit
	}
	return Query{text: text, limit: limit, filter: f}
}

// Text returns the query text.
func (q *Query) Text() string { return q.text }

// Limit returns the clamped result limit.
func (q *Query) Limit() int { return q.limit }

// Filter returns the metadata predicates.
func (q *Query) Filter() filter.Filter { return q.filter }
