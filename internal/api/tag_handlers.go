package api

import (
	"encoding/json/v2"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/numisapp/numis-server/internal/http/response"
)

// tagRequest is the request body for creating or updating a definition.
type tagRequest struct {
	Category string `json:"category"`
	Value    string `json:"value"`
}

// handleListTags returns every tag definition.
func (s *Server) handleListTags(w http.ResponseWriter, _ *http.Request) {
	response.Success(w, s.tags.All(), s.logger)
}

// handleCreateTag adds a definition.
func (s *Server) handleCreateTag(w http.ResponseWriter, r *http.Request) {
	var req tagRequest
	if err := json.UnmarshalRead(r.Body, &req); err != nil {
		response.BadRequest(w, "request body is not a valid tag", s.logger)
		return
	}

	tagID := s.tags.AddTag(req.Category, req.Value)
	if tagID == "" {
		response.BadRequest(w, "tag needs a category and a value", s.logger)
		return
	}

	def, _ := s.tags.GetTag(tagID)
	response.Created(w, def, s.logger)
}

// handleUpdateTag renames a definition's category or value.
func (s *Server) handleUpdateTag(w http.ResponseWriter, r *http.Request) {
	var req tagRequest
	if err := json.UnmarshalRead(r.Body, &req); err != nil {
		response.BadRequest(w, "request body is not a valid tag", s.logger)
		return
	}

	tagID := chi.URLParam(r, "id")
	s.tags.UpdateTag(tagID, req.Category, req.Value)

	def, ok := s.tags.GetTag(tagID)
	if !ok {
		response.NotFound(w, "tag not found", s.logger)
		return
	}
	response.Success(w, def, s.logger)
}

// handleDeleteTag removes a definition. Coins keep the dangling ID.
func (s *Server) handleDeleteTag(w http.ResponseWriter, r *http.Request) {
	s.tags.DeleteTag(chi.URLParam(r, "id"))
	response.NoContent(w)
}

// handleSearchCategories returns categories containing ?q= (all when empty).
func (s *Server) handleSearchCategories(w http.ResponseWriter, r *http.Request) {
	response.Success(w, s.tags.SearchCategories(r.URL.Query().Get("q")), s.logger)
}

// handleSearchValues returns values within ?category= containing ?q=.
func (s *Server) handleSearchValues(w http.ResponseWriter, r *http.Request) {
	category := r.URL.Query().Get("category")
	if category == "" {
		response.BadRequest(w, "category query parameter is required", s.logger)
		return
	}
	response.Success(w, s.tags.SearchValuesByCategory(category, r.URL.Query().Get("q")), s.logger)
}

// handleListDuplicateTags returns groups of IDs sharing a (category, value).
func (s *Server) handleListDuplicateTags(w http.ResponseWriter, _ *http.Request) {
	response.Success(w, s.tags.FindDuplicates(), s.logger)
}
