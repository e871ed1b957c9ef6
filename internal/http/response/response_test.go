package response

import (
	"encoding/json/v2"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/numisapp/numis-server/internal/errors"
)

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) Envelope {
	t.Helper()
	var env Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func TestSuccess(t *testing.T) {
	rec := httptest.NewRecorder()
	Success(rec, map[string]string{"status": "ok"}, nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))

	env := decodeEnvelope(t, rec)
	assert.True(t, env.Success)
	assert.Empty(t, env.Error)
}

func TestCreated(t *testing.T) {
	rec := httptest.NewRecorder()
	Created(rec, map[string]string{"id": "coin-1"}, nil)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.True(t, decodeEnvelope(t, rec).Success)
}

func TestNoContent(t *testing.T) {
	rec := httptest.NewRecorder()
	NoContent(rec)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.Bytes())
}

func TestError(t *testing.T) {
	rec := httptest.NewRecorder()
	BadRequest(rec, "invalid payload", nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	env := decodeEnvelope(t, rec)
	assert.False(t, env.Success)
	assert.Equal(t, "invalid payload", env.Error)
}

func TestHandleError_CodedErrors(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{apperrors.NotFound("no such coin"), http.StatusNotFound},
		{apperrors.Validation("bad snapshot"), http.StatusBadRequest},
		{apperrors.Conflict("revision mismatch"), http.StatusConflict},
		{apperrors.SyncUnauthorized("rejected"), http.StatusUnauthorized},
		{apperrors.SyncUnreachable("down"), http.StatusBadGateway},
		{apperrors.SyncMalformedDoc("garbled"), http.StatusUnprocessableEntity},
	}

	for _, tc := range cases {
		rec := httptest.NewRecorder()
		HandleError(rec, tc.err, nil)
		assert.Equal(t, tc.want, rec.Code, "error %v", tc.err)
		assert.False(t, decodeEnvelope(t, rec).Success)
	}
}

func TestHandleError_UnknownError(t *testing.T) {
	rec := httptest.NewRecorder()
	HandleError(rec, assert.AnError, nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
