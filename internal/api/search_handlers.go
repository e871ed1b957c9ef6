package api

import (
	"net/http"
	"strconv"

	"github.com/numisapp/numis-server/internal/http/response"
)

// handleSearch runs a free-text query over the catalog.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")

	limit := 0
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed < 0 {
			response.BadRequest(w, "limit must be a non-negative integer", s.logger)
			return
		}
		limit = parsed
	}

	result, err := s.searcher.Search(r.Context(), query, limit)
	if err != nil {
		s.logger.Error("search failed", "query", query, "error", err)
		response.InternalError(w, "search failed", s.logger)
		return
	}
	response.Success(w, result, s.logger)
}
