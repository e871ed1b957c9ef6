package api

import (
	"encoding/json/v2"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/numisapp/numis-server/internal/domain"
	"github.com/numisapp/numis-server/internal/http/response"
)

// handleListCoins returns the catalog. With ?filtered=true only coins
// matching the active filters are returned, in display order.
func (s *Server) handleListCoins(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("filtered") == "true" {
		response.Success(w, s.coins.FilteredCoins(), s.logger)
		return
	}
	response.Success(w, s.coins.Coins(), s.logger)
}

// handleCreateCoin adds a coin.
func (s *Server) handleCreateCoin(w http.ResponseWriter, r *http.Request) {
	var input domain.CoinInput
	if err := json.UnmarshalRead(r.Body, &input); err != nil {
		response.BadRequest(w, "request body is not a valid coin", s.logger)
		return
	}

	coin := s.coins.AddCoin(input)
	response.Created(w, coin, s.logger)
}

// handleGetCoin returns a single coin by ID.
func (s *Server) handleGetCoin(w http.ResponseWriter, r *http.Request) {
	coin, ok := s.coins.GetCoin(chi.URLParam(r, "id"))
	if !ok {
		response.NotFound(w, "coin not found", s.logger)
		return
	}
	response.Success(w, coin, s.logger)
}

// handleUpdateCoin replaces a coin's caller-settable fields.
func (s *Server) handleUpdateCoin(w http.ResponseWriter, r *http.Request) {
	var input domain.CoinInput
	if err := json.UnmarshalRead(r.Body, &input); err != nil {
		response.BadRequest(w, "request body is not a valid coin", s.logger)
		return
	}

	coin, ok := s.coins.UpdateCoin(chi.URLParam(r, "id"), input)
	if !ok {
		response.NotFound(w, "coin not found", s.logger)
		return
	}
	response.Success(w, coin, s.logger)
}

// handleDeleteCoin removes a coin.
func (s *Server) handleDeleteCoin(w http.ResponseWriter, r *http.Request) {
	if !s.coins.DeleteCoin(chi.URLParam(r, "id")) {
		response.NotFound(w, "coin not found", s.logger)
		return
	}
	response.NoContent(w)
}

// handleNextReference returns the next free catalog reference.
func (s *Server) handleNextReference(w http.ResponseWriter, _ *http.Request) {
	response.Success(w, map[string]string{
		"reference": s.coins.NextReference(),
	}, s.logger)
}
