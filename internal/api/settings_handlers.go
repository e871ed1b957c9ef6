package api

import (
	"encoding/json/v2"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/numisapp/numis-server/internal/errors"
	"github.com/numisapp/numis-server/internal/http/response"
	"github.com/numisapp/numis-server/internal/store"
)

// settingKeys maps API setting names to their fixed storage keys. The
// storage keys are shared with earlier releases and must not change.
var settingKeys = map[string]string{
	"language": store.KeyLanguage,
	"columns":  store.KeyColumns,
}

// settingRequest carries an opaque setting value. The server does not
// interpret it; the UI owns the format.
type settingRequest struct {
	Value string `json:"value"`
}

// handleGetSetting returns a stored UI preference.
func (s *Server) handleGetSetting(w http.ResponseWriter, r *http.Request) {
	key, ok := settingKeys[chi.URLParam(r, "key")]
	if !ok {
		response.NotFound(w, "unknown setting", s.logger)
		return
	}

	value, err := s.settings.Get(r.Context(), key)
	if err != nil {
		if errors.Is(err, store.ErrKeyNotFound) {
			response.Success(w, settingRequest{}, s.logger)
			return
		}
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, settingRequest{Value: string(value)}, s.logger)
}

// handleSetSetting stores a UI preference.
func (s *Server) handleSetSetting(w http.ResponseWriter, r *http.Request) {
	key, ok := settingKeys[chi.URLParam(r, "key")]
	if !ok {
		response.NotFound(w, "unknown setting", s.logger)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		response.BadRequest(w, "could not read setting payload", s.logger)
		return
	}

	var req settingRequest
	if err := json.Unmarshal(body, &req); err != nil {
		response.BadRequest(w, "request body is not a valid setting", s.logger)
		return
	}

	if err := s.settings.Set(r.Context(), key, []byte(req.Value)); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.NoContent(w)
}
