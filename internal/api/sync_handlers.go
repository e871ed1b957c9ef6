package api

import (
	"encoding/json/v2"
	"net/http"

	"github.com/numisapp/numis-server/internal/http/response"
	"github.com/numisapp/numis-server/internal/remote"
)

// handleSyncStatus returns the engine state and last successful sync time.
func (s *Server) handleSyncStatus(w http.ResponseWriter, _ *http.Request) {
	response.Success(w, s.engine.Status(), s.logger)
}

// handleSyncNow runs a manual exchange. Unlike the periodic path, failure
// is surfaced to the caller.
func (s *Server) handleSyncNow(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.SyncNow(r.Context()); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, s.engine.Status(), s.logger)
}

// handleForceRefresh discards the local sync document and pulls fresh.
func (s *Server) handleForceRefresh(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.ForceFullRefresh(r.Context()); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, s.engine.Status(), s.logger)
}

// handleSetCredentials stores remote credentials for future exchanges.
func (s *Server) handleSetCredentials(w http.ResponseWriter, r *http.Request) {
	var creds remote.Credentials
	if err := json.UnmarshalRead(r.Body, &creds); err != nil {
		response.BadRequest(w, "request body is not valid credentials", s.logger)
		return
	}

	if err := s.engine.SetCredentials(r.Context(), creds); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.NoContent(w)
}

// handleTestConnection pings the remote with the stored credentials.
func (s *Server) handleTestConnection(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.TestConnection(r.Context()); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, map[string]string{"status": "reachable"}, s.logger)
}
