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

	"github.com/kailas-cloud/searchdex/internal/domain"
	"github.com/kailas-cloud/searchdex/internal/domain/batch"
	"github.com/kailas-cloud/searchdex/internal/domain/model"
	"github.com/kailas-cloud/searchdex/internal/domain/registry"
	"github.com/kailas-cloud/searchdex/internal/domain/search/result"
	logpkg "github.com/kailas-cloud/searchdex/internal/logger"
	healthuc "github.com/kailas-cloud/searchdex/internal/usecase/health"
	indexinguc "github.com/kailas-cloud/searchdex/internal/usecase/indexing"
	searchuc "github.com/kailas-cloud/searchdex/internal/usecase/search"
)

// Error codes returned in error bodies.
const (
	CodeBadRequest         = "bad_request"
	CodeUnauthorized       = "unauthorized"
	CodeNotRegistered      = "model_not_registered"
	CodeInvalidQuery       = "invalid_query"
	CodeConfiguration      = "improperly_configured"
	CodeFieldType          = "field_type_mismatch"
	CodeIndexing           = "indexing_failed"
	CodeBackendUnavailable = "backend_unavailable"
	CodePageNotFound       = "page_not_found"
	CodeInternal           = "internal_error"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// ErrorResponse is the body of every non-2xx JSON response.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Server serves the search HTTP API.
type Server struct {
	site          *registry.Site
	search        *searchuc.Service
	indexing      *indexinguc.Service
	health        *healthuc.Service
	logger        *zap.Logger
	pageSize      int
	maxPageSize   int
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	site *registry.Site,
	search *searchuc.Service,
	indexing *indexinguc.Service,
	health *healthuc.Service,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		site:        site,
		search:      search,
		indexing:    indexing,
		health:      health,
		logger:      logger,
		pageSize:    defaultPageSize,
		maxPageSize: maxPageSize,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrNotRegistered, http.StatusNotFound, CodeNotRegistered),
		sentinelHandler(domain.ErrCompilation, http.StatusBadRequest, CodeInvalidQuery),
		sentinelHandler(domain.ErrFieldType, http.StatusBadRequest, CodeFieldType),
		sentinelHandler(domain.ErrIndexing, http.StatusBadRequest, CodeIndexing),
		sentinelHandler(domain.ErrConfiguration, http.StatusBadRequest, CodeConfiguration),
		sentinelHandler(domain.ErrBackendUnavailable, http.StatusBadGateway, CodeBackendUnavailable),
		sentinelHandler(searchuc.ErrOutOfRange, http.StatusNotFound, CodePageNotFound),
	}
	return s
}

// WithPaging sets the default and maximum page size of /search.
func (s *Server) WithPaging(pageSize, maxSize int) *Server {
	if maxSize > 0 {
		s.maxPageSize = maxSize
	}
	if pageSize > 0 {
		s.pageSize = min(pageSize, s.maxPageSize)
	}
	return s
}

// Routes mounts the API on r.
func (s *Server) Routes(r chi.Router) {
	r.Get("/search", s.Search)
	r.Get("/models", s.ListModels)
	r.Delete("/documents", s.ClearDocuments)
	r.Post("/documents/{app}/{name}", s.UpdateDocuments)
	r.Delete("/documents/{app}/{name}/{pk}", s.RemoveDocument)
	r.Get("/documents/{app}/{name}/{pk}/similar", s.MoreLikeThis)
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
}

// RecordResponse is one search hit.
type RecordResponse struct {
	ID          string              `json:"id"`
	ContentType string              `json:"content_type"`
	PK          string              `json:"pk"`
	Score       float64             `json:"score"`
	Fields      map[string]any      `json:"fields,omitempty"`
	Highlighted map[string][]string `json:"highlighted,omitempty"`
}

// SearchResponse is one page of search hits.
type SearchResponse struct {
	Query    string           `json:"query"`
	Page     int              `json:"page"`
	PageSize int              `json:"page_size"`
	NumPages int              `json:"num_pages"`
	Total    int              `json:"total"`
	Results  []RecordResponse `json:"results"`
	Facets   *result.Facets   `json:"facets,omitempty"`
}

// Search handles GET /search.
func (s *Server) Search(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	text := strings.TrimSpace(params.Get("q"))

	page, err := intParam(params.Get("page"), 1)
	if err != nil || page < 1 {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "page must be a positive integer")
		return
	}
	size, err := intParam(params.Get("page_size"), s.pageSize)
	if err != nil || size < 1 {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "page_size must be a positive integer")
		return
	}
	size = min(size, s.maxPageSize)

	q := searchuc.NewQuery()
	if text == "" {
		q = q.None()
	} else {
		q = q.AutoQuery(text)
	}

	types, err := s.lookupTypes(listParam(params, "models"))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	q = q.Models(types...)

	if order := listParam(params, "order_by"); len(order) > 0 {
		q = q.OrderBy(order...)
	}
	if v := params.Get("highlight"); v != "" {
		on, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, CodeBadRequest, "highlight must be a boolean")
			return
		}
		if on {
			q = q.Highlight()
		}
	}
	facets := listParam(params, "facet")
	for _, f := range facets {
		q = q.Facet(f)
	}

	rs, err := s.search.Run(q)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	ctx := r.Context()
	total, err := rs.Len(ctx)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	numPages := max((total+size-1)/size, 1)
	if page > numPages {
		writeError(w, http.StatusNotFound, CodePageNotFound, fmt.Sprintf("page %d of %d", page, numPages))
		return
	}

	records, err := rs.Slice(ctx, (page-1)*size, page*size)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	resp := SearchResponse{
		Query:    text,
		Page:     page,
		PageSize: size,
		NumPages: numPages,
		Total:    total,
		Results:  recordsToResponse(records),
	}
	if len(facets) > 0 {
		counts, err := rs.Facets(ctx)
		if err != nil {
			s.handleDomainError(w, r, err)
			return
		}
		resp.Facets = &counts
	}
	writeJSON(w, http.StatusOK, resp)
}

// ListModels handles GET /models.
func (s *Server) ListModels(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"items": s.site.ModelChoices()})
}

// ItemResponse is the outcome of one object in an update.
type ItemResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// UpdateResponse summarizes an update.
type UpdateResponse struct {
	Items   []ItemResponse `json:"items"`
	Indexed int            `json:"indexed"`
	Skipped int            `json:"skipped"`
}

// UpdateDocuments handles POST /documents/{app}/{name}.
func (s *Server) UpdateDocuments(w http.ResponseWriter, r *http.Request) {
	t, err := s.site.Lookup(chi.URLParam(r, "app") + "." + chi.URLParam(r, "name"))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	commit, err := boolParam(r.URL.Query().Get("commit"), true)
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "commit must be a boolean")
		return
	}

	var raw []map[string]any
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	objs := make([]model.Object, 0, len(raw))
	for i, attrs := range raw {
		pk, ok := primaryKey(attrs["pk"])
		if !ok {
			writeError(w, http.StatusBadRequest, CodeBadRequest, fmt.Sprintf("object %d: pk is required", i))
			return
		}
		objs = append(objs, model.NewInstance(t, pk, attrs))
	}

	results, err := s.indexing.Update(r.Context(), t, objs, commit)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	resp := UpdateResponse{Items: make([]ItemResponse, len(results))}
	for i, res := range results {
		item := ItemResponse{ID: res.Identifier(), Status: string(res.Status())}
		if res.Err() != nil {
			item.Error = res.Err().Error()
		}
		resp.Items[i] = item
	}
	resp.Skipped = batch.Skipped(results)
	resp.Indexed = len(results) - resp.Skipped
	writeJSON(w, http.StatusOK, resp)
}

// RemoveDocument handles DELETE /documents/{app}/{name}/{pk}.
func (s *Server) RemoveDocument(w http.ResponseWriter, r *http.Request) {
	obj, err := s.objectFromPath(r)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	commit, err := boolParam(r.URL.Query().Get("commit"), true)
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "commit must be a boolean")
		return
	}
	if err := s.indexing.Remove(r.Context(), obj, commit); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ClearDocuments handles DELETE /documents. Without models the whole index
// is cleared.
func (s *Server) ClearDocuments(w http.ResponseWriter, r *http.Request) {
	types, err := s.lookupTypes(listParam(r.URL.Query(), "models"))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	commit, err := boolParam(r.URL.Query().Get("commit"), true)
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "commit must be a boolean")
		return
	}
	if err := s.indexing.Clear(r.Context(), types, commit); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// MoreLikeThis handles GET /documents/{app}/{name}/{pk}/similar.
func (s *Server) MoreLikeThis(w http.ResponseWriter, r *http.Request) {
	obj, err := s.objectFromPath(r)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	resp, err := s.search.MoreLikeThis(r.Context(), obj)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"total":   resp.Hits,
		"results": recordsToResponse(resp.Records),
	})
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, map[string]any{
		"status": report.Status,
		"checks": report.Checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func (s *Server) objectFromPath(r *http.Request) (model.Object, error) {
	t, err := s.site.Lookup(chi.URLParam(r, "app") + "." + chi.URLParam(r, "name"))
	if err != nil {
		return nil, err
	}
	return model.NewInstance(t, chi.URLParam(r, "pk"), nil), nil
}

func (s *Server) lookupTypes(labels []string) ([]model.Type, error) {
	types := make([]model.Type, 0, len(labels))
	for _, label := range labels {
		t, err := s.site.Lookup(label)
		if err != nil {
			return nil, err
		}
		types = append(types, t)
	}
	return types, nil
}

func recordsToResponse(records []result.Record) []RecordResponse {
	out := make([]RecordResponse, len(records))
	for i, rec := range records {
		out[i] = RecordResponse{
			ID:          rec.Identifier(),
			ContentType: rec.Type().String(),
			PK:          rec.PK(),
			Score:       rec.Score(),
			Fields:      rec.Fields(),
			Highlighted: rec.Highlighted(),
		}
	}
	return out
}

// listParam collects repeated and comma-separated values of a query parameter.
func listParam(params map[string][]string, name string) []string {
	var out []string
	for _, v := range params[name] {
		for part := range strings.SplitSeq(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func intParam(v string, def int) (int, error) {
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}

func boolParam(v string, def bool) (bool, error) {
	if v == "" {
		return def, nil
	}
	return strconv.ParseBool(v)
}

func primaryKey(v any) (string, bool) {
	switch pk := v.(type) {
	case string:
		return pk, pk != ""
	case json.Number:
		return pk.String(), true
	default:
		return "", false
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a client-facing message. Query and value errors
// describe the request and are returned whole; everything else is reduced
// to its sentinel so engine internals are not exposed.
func safeDomainMessage(err error) string {
	if errors.Is(err, domain.ErrCompilation) || errors.Is(err, domain.ErrFieldType) ||
		errors.Is(err, domain.ErrNotRegistered) {
		return err.Error()
	}
	sentinels := []error{
		domain.ErrConfiguration,
		domain.ErrIndexing,
		domain.ErrBackendUnavailable,
		searchuc.ErrOutOfRange,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	logger := logpkg.FromContextOr(r.Context(), s.logger)
	logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, CodeInternal, msg)
}
