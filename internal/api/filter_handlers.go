package api

import (
	"encoding/json/v2"
	"net/http"

	"github.com/numisapp/numis-server/internal/domain"
	"github.com/numisapp/numis-server/internal/http/response"
)

// toggleFilterRequest names one facet value to toggle.
type toggleFilterRequest struct {
	Category string `json:"category"`
	Value    string `json:"value"`
}

// rangeRequest carries numeric filter bounds.
type rangeRequest struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// handleAllFacets returns facets over the whole catalog.
func (s *Server) handleAllFacets(w http.ResponseWriter, _ *http.Request) {
	response.Success(w, s.coins.AllTagFacets(), s.logger)
}

// handleAvailableFacets returns facets over the filtered catalog, which
// drives the cascading filter UI.
func (s *Server) handleAvailableFacets(w http.ResponseWriter, _ *http.Request) {
	response.Success(w, s.coins.AvailableTagFacets(), s.logger)
}

// handleListFilters returns the active filters.
func (s *Server) handleListFilters(w http.ResponseWriter, _ *http.Request) {
	response.Success(w, s.coins.Filters(), s.logger)
}

// handleToggleFilter flips one facet value on or off.
func (s *Server) handleToggleFilter(w http.ResponseWriter, r *http.Request) {
	var req toggleFilterRequest
	if err := json.UnmarshalRead(r.Body, &req); err != nil {
		response.BadRequest(w, "request body is not a valid filter toggle", s.logger)
		return
	}
	if req.Category == "" || req.Value == "" {
		response.BadRequest(w, "filter toggle needs a category and a value", s.logger)
		return
	}

	s.coins.ToggleFilter(req.Category, req.Value)
	response.Success(w, s.coins.Filters(), s.logger)
}

// handleClearFilters removes every active filter including ranges.
func (s *Server) handleClearFilters(w http.ResponseWriter, _ *http.Request) {
	s.coins.ClearFilters()
	response.NoContent(w)
}

// handleRangeBounds returns the selectable weight and diameter bounds
// derived from the catalog.
func (s *Server) handleRangeBounds(w http.ResponseWriter, _ *http.Request) {
	response.Success(w, map[string]domain.Range{
		"weight":   s.coins.WeightRange(),
		"diameter": s.coins.DiameterRange(),
	}, s.logger)
}

// handleSetWeightRange activates a weight filter.
func (s *Server) handleSetWeightRange(w http.ResponseWriter, r *http.Request) {
	var req rangeRequest
	if err := json.UnmarshalRead(r.Body, &req); err != nil {
		response.BadRequest(w, "request body is not a valid range", s.logger)
		return
	}
	if req.Min > req.Max {
		response.BadRequest(w, "range min must not exceed max", s.logger)
		return
	}

	s.coins.SetWeightRange(req.Min, req.Max)
	response.NoContent(w)
}

// handleSetDiameterRange activates a diameter filter.
func (s *Server) handleSetDiameterRange(w http.ResponseWriter, r *http.Request) {
	var req rangeRequest
	if err := json.UnmarshalRead(r.Body, &req); err != nil {
		response.BadRequest(w, "request body is not a valid range", s.logger)
		return
	}
	if req.Min > req.Max {
		response.BadRequest(w, "range min must not exceed max", s.logger)
		return
	}

	s.coins.SetDiameterRange(req.Min, req.Max)
	response.NoContent(w)
}
