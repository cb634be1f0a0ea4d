package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/custodia-labs/contentindex/internal/core/domain"
	"github.com/custodia-labs/contentindex/internal/logger"
)

const maxSearchLimit = 100

type indexRequest struct {
	Items []domain.IndexRequest `json:"items"`
}

type changedRequest struct {
	URL string `json:"url"`
}

type indexingState struct {
	Enabled *bool `json:"enabled"`
}

type searchResponse struct {
	Query   string                `json:"query"`
	Mode    domain.SearchMode     `json:"mode"`
	Count   int                   `json:"count"`
	Results []domain.SearchResult `json:"results"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":           "ok",
		"indexing_enabled": s.ports.Indexing.Enabled(),
	})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	var req indexRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Items) == 0 {
		respondError(w, http.StatusBadRequest, "items are required")
		return
	}

	stats, err := s.ports.Indexing.IndexContent(r.Context(), req.Items)
	if err != nil {
		logger.Error("index request: %v", err)
		respondError(w, statusFor(err), err.Error())
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

func (s *Server) handleItemChanged(w http.ResponseWriter, r *http.Request) {
	var req changedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := s.ports.Indexing.OnContentChanged(r.Context(), chi.URLParam(r, "id"), req.URL)
	s.respondItem(w, result, err)
}

func (s *Server) handleReindexText(w http.ResponseWriter, r *http.Request) {
	result, err := s.ports.Indexing.IndexFromExistingContent(r.Context(), chi.URLParam(r, "id"))
	s.respondItem(w, result, err)
}

// respondItem writes the item result. A failed item keeps its result as the
// body so callers see the error kind.
func (s *Server) respondItem(w http.ResponseWriter, result domain.ItemResult, err error) {
	if err == nil {
		respondJSON(w, http.StatusOK, result)
		return
	}
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		status = http.StatusUnprocessableEntity
	}
	respondJSON(w, status, result)
}

func (s *Server) handleItemStatus(w http.ResponseWriter, r *http.Request) {
	view, err := s.ports.Indexing.GetIndexStatus(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			respondError(w, http.StatusNotFound, "item has not been indexed")
			return
		}
		logger.Error("index status: %v", err)
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, view)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := strings.TrimSpace(q.Get("q"))
	if query == "" {
		respondError(w, http.StatusBadRequest, "q is required")
		return
	}

	limit := 0
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxSearchLimit)
	}

	mode := domain.SearchModeHybrid
	if raw := q.Get("mode"); raw != "" {
		mode = domain.SearchMode(raw)
		if !mode.IsValid() {
			respondError(w, http.StatusBadRequest, "mode must be hybrid or keyword")
			return
		}
	}

	var (
		results []domain.SearchResult
		err     error
	)
	if mode == domain.SearchModeKeyword {
		results, err = s.ports.Search.KeywordSearch(r.Context(), query, limit)
	} else {
		results, err = s.ports.Search.HybridSearch(r.Context(), query, domain.SearchOptions{Limit: limit})
	}
	if err != nil {
		logger.Error("search %q: %v", query, err)
		respondError(w, statusFor(err), err.Error())
		return
	}

	if results == nil {
		results = []domain.SearchResult{}
	}
	respondJSON(w, http.StatusOK, searchResponse{
		Query:   query,
		Mode:    mode,
		Count:   len(results),
		Results: results,
	})
}

func (s *Server) handleGetIndexing(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]bool{"enabled": s.ports.Indexing.Enabled()})
}

func (s *Server) handlePutIndexing(w http.ResponseWriter, r *http.Request) {
	var req indexingState
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Enabled == nil {
		respondError(w, http.StatusBadRequest, "body must be {\"enabled\": true|false}")
		return
	}

	if s.ports.Settings != nil {
		if err := s.ports.Settings.SetIndexingEnabled(*req.Enabled); err != nil {
			logger.Error("persist kill switch: %v", err)
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}
	s.ports.Indexing.SetEnabled(*req.Enabled)

	respondJSON(w, http.StatusOK, map[string]bool{"enabled": s.ports.Indexing.Enabled()})
}

func (s *Server) handleQueue(w http.ResponseWriter, r *http.Request) {
	stats, err := s.ports.Indexing.QueueStats(r.Context())
	if err != nil {
		logger.Error("queue stats: %v", err)
		respondError(w, statusFor(err), err.Error())
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrIndexingDisabled),
		errors.Is(err, domain.ErrSearchUnavailable),
		errors.Is(err, domain.ErrQueueUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
