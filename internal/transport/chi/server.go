// Package chi exposes the sidecar wire protocol over a chi router.
package chi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/nichesupply/listingsearch/internal/domain"
	dombatch "github.com/nichesupply/listingsearch/internal/domain/batch"
	"github.com/nichesupply/listingsearch/internal/domain/filter"
	healthuc "github.com/nichesupply/listingsearch/internal/usecase/health"
	indexeruc "github.com/nichesupply/listingsearch/internal/usecase/indexer"
	searchuc "github.com/nichesupply/listingsearch/internal/usecase/search"
)

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server handles the marketplace-facing HTTP endpoints.
type Server struct {
	search        *searchuc.Service
	indexer       *indexeruc.Service
	health        *healthuc.Service
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	search *searchuc.Service,
	indexer *indexeruc.Service,
	health *healthuc.Service,
	logger *zap.Logger,
) *Server {
	s := &Server{
		search:  search,
		indexer: indexer,
		health:  health,
		logger:  logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrInvalidListing, http.StatusBadRequest),
		sentinelHandler(domain.ErrInvalidQuery, http.StatusBadRequest),
		sentinelHandler(domain.ErrEncoderUnavailable, http.StatusBadGateway),
		sentinelHandler(domain.ErrStoreUnavailable, http.StatusServiceUnavailable),
	}
	return s
}

// Routes mounts every endpoint on the given router.
func (s *Server) Routes(r chi.Router) {
	r.Post("/index", s.handleIndex)
	r.Post("/remove", s.handleRemove)
	r.Post("/search", s.handleSearch)
	r.Post("/rebuild", s.handleRebuild)
	r.Get("/health", s.handleHealth)
	r.Get("/metrics", s.handleMetrics)
}

// Wire types. The field shapes mirror what the marketplace backend sends
// and expects; pointer fields distinguish absent from empty.

type indexRequest struct {
	ID       *string         `json:"id"`
	Text     *string         `json:"text"`
	Metadata domain.Metadata `json:"metadata"`
}

type removeRequest struct {
	ID *string `json:"id"`
}

type searchRequest struct {
	Query   *string        `json:"query"`
	Filters map[string]any `json:"filters"`
	Limit   int            `json:"limit"`
}

type rebuildListing struct {
	ID       *string         `json:"id"`
	Text     *string         `json:"text"`
	Metadata domain.Metadata `json:"metadata"`
}

type rebuildRequest struct {
	Listings []rebuildListing `json:"listings"`
}

type okResponse struct {
	OK bool `json:"ok"`
}

type rebuildResponse struct {
	OK    bool `json:"ok"`
	Count int  `json:"count"`
}

type searchResult struct {
	PK       any     `json:"pk"`
	Distance float64 `json:"distance"`
}

type searchDebug struct {
	BypassCutoff bool      `json:"bypass_cutoff"`
	RawCount     int       `json:"raw_count"`
	RawPKs       []any     `json:"raw_pks,omitempty"`
	RawDistances []float64 `json:"raw_distances,omitempty"`
	KeepCount    *int      `json:"keep_count,omitempty"`
}

type searchResponse struct {
	Results []searchResult `json:"results"`
	Debug   *searchDebug   `json:"debug,omitempty"`
}

type healthResponse struct {
	Status          string `json:"status"`
	ModelLoaded     bool   `json:"model_loaded"`
	CollectionCount int    `json:"collection_count"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// handleIndex handles POST /index.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	var req indexRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	if req.ID == nil {
		writeError(w, http.StatusBadRequest, "Listing id is required")
		return
	}
	if req.Text == nil {
		writeError(w, http.StatusBadRequest, "Listing text is required")
		return
	}

	l, err := domain.NewListing(*req.ID, *req.Text, req.Metadata)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	if err := s.indexer.Index(ctx, l); err != nil {
		s.handleDomainError(w, err)
		return
	}

	setEncodingHeaders(w, usage)
	writeJSON(w, http.StatusOK, okResponse{OK: true})
}

// handleRemove handles POST /remove.
func (s *Server) handleRemove(w http.ResponseWriter, r *http.Request) {
	var req removeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	if req.ID == nil || *req.ID == "" {
		writeError(w, http.StatusBadRequest, "Listing id is required")
		return
	}

	if err := s.indexer.Remove(r.Context(), *req.ID); err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, okResponse{OK: true})
}

// handleSearch handles POST /search.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	if req.Query == nil {
		writeError(w, http.StatusBadRequest, "Query is required")
		return
	}

	f, err := filtersFromWire(req.Filters)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	q := domain.NewQuery(*req.Query, req.Limit, f)
	opts := searchuc.Options{
		Debug:        queryFlag(r, "debug"),
		BypassCutoff: queryFlag(r, "bypass_cutoff"),
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	ranking, err := s.search.Search(ctx, q, opts)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	setEncodingHeaders(w, usage)
	writeJSON(w, http.StatusOK, searchResponseFromRanking(ranking))
}

// handleRebuild handles POST /rebuild.
func (s *Server) handleRebuild(w http.ResponseWriter, r *http.Request) {
	var req rebuildRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	if req.Listings == nil {
		writeError(w, http.StatusBadRequest, "Listings are required")
		return
	}

	items := make([]indexeruc.Item, len(req.Listings))
	for i, l := range req.Listings {
		items[i] = indexeruc.Item{
			ID:       derefString(l.ID),
			Text:     derefString(l.Text),
			Metadata: l.Metadata,
		}
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	results, err := s.indexer.Rebuild(ctx, items)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	indexed := 0
	for _, res := range results {
		if res.Status() == dombatch.StatusOK {
			indexed++
		}
	}

	setEncodingHeaders(w, usage)
	writeJSON(w, http.StatusOK, rebuildResponse{OK: true, Count: indexed})
}

// handleHealth handles GET /health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
		s.logger.Warn("Health check degraded", zap.Any("checks", report.Checks))
	}

	writeJSON(w, httpStatus, healthResponse{
		Status:          string(report.Status),
		ModelLoaded:     report.ModelLoaded,
		CollectionCount: report.CollectionCount,
	})
}

// handleMetrics handles GET /metrics.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func searchResponseFromRanking(ranking searchuc.Ranking) searchResponse {
	results := make([]searchResult, len(ranking.Results))
	for i, res := range ranking.Results {
		results[i] = searchResult{PK: res.PK, Distance: res.Distance}
	}

	resp := searchResponse{Results: results}
	if d := ranking.Debug; d != nil {
		dbg := &searchDebug{
			BypassCutoff: d.BypassCutoff,
			RawCount:     d.RawCount,
			RawPKs:       d.RawPKs,
			RawDistances: d.RawDistances,
		}
		// keep_count appears only when the cutoff actually ran; it is
		// meaningful at zero, so a pointer keeps it in the payload.
		if !d.BypassCutoff {
			keep := d.KeepCount
			dbg.KeepCount = &keep
		}
		resp.Debug = dbg
	}
	return resp
}

// filtersFromWire converts the filter shapes the marketplace sends into a
// domain filter. Accepted forms:
//
//	{"$and": [{key: {"$eq": v}}, {key: {"$ne": v}}]}
//	{key: {"$eq": v}}
//	{key: v}            (implicit equality)
func filtersFromWire(raw map[string]any) (filter.Filter, error) {
	if len(raw) == 0 {
		return filter.Filter{}, nil
	}

	eq := make(map[string]any)
	ne := make(map[string]any)

	if clauses, ok := raw["$and"]; ok {
		if len(raw) > 1 {
			return filter.Filter{}, fmt.Errorf("%w: $and cannot be mixed with other filter keys", domain.ErrInvalidQuery)
		}
		list, ok := clauses.([]any)
		if !ok {
			return filter.Filter{}, fmt.Errorf("%w: $and must hold a list of clauses", domain.ErrInvalidQuery)
		}
		for _, c := range list {
			m, ok := c.(map[string]any)
			if !ok {
				return filter.Filter{}, fmt.Errorf("%w: filter clause must be an object", domain.ErrInvalidQuery)
			}
			if err := addFilterClause(m, eq, ne); err != nil {
				return filter.Filter{}, err
			}
		}
	} else {
		if err := addFilterClause(raw, eq, ne); err != nil {
			return filter.Filter{}, err
		}
	}

	f, err := filter.New(eq, ne)
	if err != nil {
		return filter.Filter{}, fmt.Errorf("%w: %s", domain.ErrInvalidQuery, err.Error())
	}
	return f, nil
}

// addFilterClause folds one {key: predicate} object into the eq/ne maps.
func addFilterClause(m map[string]any, eq, ne map[string]any) error {
	for k, v := range m {
		if strings.HasPrefix(k, "$") {
			return fmt.Errorf("%w: unsupported filter operator %q", domain.ErrInvalidQuery, k)
		}

		pred, ok := v.(map[string]any)
		if !ok {
			eq[k] = v
			continue
		}

		if len(pred) != 1 {
			return fmt.Errorf("%w: filter for %q must hold exactly one operator", domain.ErrInvalidQuery, k)
		}
		for op, val := range pred {
			switch op {
			case "$eq":
				eq[k] = val
			case "$ne":
				ne[k] = val
			default:
				return fmt.Errorf("%w: unsupported filter operator %q for %q", domain.ErrInvalidQuery, op, k)
			}
		}
	}
	return nil
}

// queryFlag reads an integer query parameter as a switch: any non-zero
// value turns the flag on, anything unparseable leaves it off.
func queryFlag(r *http.Request, name string) bool {
	v := r.URL.Query().Get(name)
	if v == "" {
		return false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return false
	}
	return n != 0
}

func setEncodingHeaders(w http.ResponseWriter, usage *domain.EncodingUsage) {
	if usage != nil && usage.Used {
		w.Header().Set("X-Encoding-Tokens", strconv.Itoa(usage.TotalTokens))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrInvalidListing,
		domain.ErrInvalidQuery,
		domain.ErrEncoderUnavailable,
		domain.ErrStoreUnavailable,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal error")
}

func derefString(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
