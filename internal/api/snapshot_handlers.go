package api

import (
	"io"
	"net/http"
	"strconv"

	"github.com/numisapp/numis-server/internal/http/response"
)

// maxSnapshotSize bounds import payloads. A collection of tens of
// thousands of coins serializes to a few megabytes; 64 MiB is generous.
const maxSnapshotSize = 64 << 20

// handleExportSnapshot returns the full collection as a snapshot file.
func (s *Server) handleExportSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := s.snapshots.Export(r.Context())
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, snap, s.logger)
}

// handleImportSnapshot applies an uploaded snapshot. The payload is
// validated in full before any state changes, so a rejected import
// leaves the catalog untouched.
func (s *Server) handleImportSnapshot(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxSnapshotSize+1))
	if err != nil {
		response.BadRequest(w, "could not read snapshot payload", s.logger)
		return
	}
	if len(payload) > maxSnapshotSize {
		response.Error(w, http.StatusRequestEntityTooLarge, "snapshot exceeds "+strconv.Itoa(maxSnapshotSize)+" bytes", s.logger)
		return
	}

	if err := s.snapshots.Import(r.Context(), payload); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.NoContent(w)
}
