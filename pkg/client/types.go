package client

// Listing is one marketplace document to index. Metadata keys must hold
// strings, numbers or booleans; anything else is rejected by the service.
type Listing struct {
	ID       string         `json:"id"`
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata"`
}

// SearchRequest carries a ranking query. A zero Limit means the service
// default of 20.
type SearchRequest struct {
	Query   string         `json:"query"`
	Filters map[string]any `json:"filters,omitempty"`
	Limit   int            `json:"limit,omitempty"`
}

// SearchOption tweaks a single Search call.
type SearchOption func(*searchParams)

type searchParams struct {
	debug        bool
	bypassCutoff bool
}

// WithDebug asks the service to attach ranking internals to the response.
func WithDebug() SearchOption {
	return func(p *searchParams) { p.debug = true }
}

// WithBypassCutoff disables the adaptive relevance cutoff for this call,
// returning the full candidate set.
func WithBypassCutoff() SearchOption {
	return func(p *searchParams) { p.bypassCutoff = true }
}

// Result is one ranked listing. PK is the numeric primary key when the
// listing carried one, the listing id string otherwise.
type Result struct {
	PK       any     `json:"pk"`
	Distance float64 `json:"distance"`
}

// DebugInfo mirrors the service's debug block. KeepCount is a pointer
// because zero kept results is a meaningful value, not an absence.
type DebugInfo struct {
	BypassCutoff bool      `json:"bypass_cutoff"`
	RawCount     int       `json:"raw_count"`
	RawPKs       []any     `json:"raw_pks,omitempty"`
	RawDistances []float64 `json:"raw_distances,omitempty"`
	KeepCount    *int      `json:"keep_count,omitempty"`
}

// SearchResponse is the ranked answer. Results is never nil.
type SearchResponse struct {
	Results []Result   `json:"results"`
	Debug   *DebugInfo `json:"debug,omitempty"`
}

// HealthStatus is the service health report. It is returned for both
// healthy and degraded answers; check Healthy.
type HealthStatus struct {
	Status          string `json:"status"`
	ModelLoaded     bool   `json:"model_loaded"`
	CollectionCount int    `json:"collection_count"`
}

// Healthy reports whether every component check passed.
func (h HealthStatus) Healthy() bool { return h.Status == "ok" }
