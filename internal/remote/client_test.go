package remote

import (
	"context"
	"encoding/json/v2"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/numisapp/numis-server/internal/domain"
	"github.com/numisapp/numis-server/internal/errors"
	"github.com/numisapp/numis-server/internal/store"
)

func newTestClient(serverURL string) *Client {
	c := NewClient(serverURL, "numis", slog.New(slog.DiscardHandler))
	// No delays between retries in tests.
	c.newBackOff = func() backoff.BackOff {
		return backoff.WithMaxRetries(&backoff.ZeroBackOff{}, 3)
	}
	return c
}

func serveDocument(t *testing.T, doc *domain.SyncDocument) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.MarshalWrite(w, doc))
	}
}

func TestGetDocument(t *testing.T) {
	doc := domain.NewSyncDocument(
		[]domain.Coin{{ID: "coin-1", Images: []string{}, Tags: []string{}}},
		[]domain.TagDefinition{{ID: "tag-1", Category: "Metal", Value: "Silver"}},
	)
	doc.Rev = "3-abc"

	var gotPath atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath.Store(r.URL.Path)
		serveDocument(t, doc)(w, r)
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	got, err := c.GetDocument(context.Background(), Credentials{})
	require.NoError(t, err)

	assert.Equal(t, "/numis/numis-data", gotPath.Load())
	assert.Equal(t, domain.SyncDocumentID, got.ID)
	assert.Equal(t, "3-abc", got.Rev)
	require.Len(t, got.Coins, 1)
	assert.Equal(t, "coin-1", got.Coins[0].ID)
}

func TestGetDocument_BasicAuthFromCredentials(t *testing.T) {
	var user, pass atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, _ := r.BasicAuth()
		user.Store(u)
		pass.Store(p)
		serveDocument(t, domain.NewSyncDocument(nil, nil))(w, r)
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	_, err := c.GetDocument(context.Background(), Credentials{Username: "alice", Password: "p@ss:word"})
	require.NoError(t, err)

	// Reserved characters in the password must survive URL userinfo escaping.
	assert.Equal(t, "alice", user.Load())
	assert.Equal(t, "p@ss:word", pass.Load())
}

func TestGetDocument_NotFoundIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, `{"error":"not_found"}`, http.StatusNotFound)
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	_, err := c.GetDocument(context.Background(), Credentials{})
	assert.True(t, errors.Is(err, errors.ErrNotFound))
	assert.Equal(t, int32(1), calls.Load())
}

func TestGetDocument_Unauthorized(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	_, err := c.GetDocument(context.Background(), Credentials{Username: "alice", Password: "wrong"})
	assert.True(t, errors.Is(err, errors.ErrSyncUnauthorized))
}

func TestGetDocument_ServerErrorIsRetried(t *testing.T) {
	doc := domain.NewSyncDocument(nil, nil)

	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		serveDocument(t, doc)(w, r)
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	got, err := c.GetDocument(context.Background(), Credentials{})
	require.NoError(t, err)
	assert.Equal(t, domain.SyncDocumentID, got.ID)
	assert.Equal(t, int32(3), calls.Load())
}

func TestGetDocument_MalformedPayload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"_id":"numis-data","coins":"not an array"`))
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	_, err := c.GetDocument(context.Background(), Credentials{})
	assert.True(t, errors.Is(err, errors.ErrSyncMalformedDoc))
}

func TestGetDocument_UnexpectedDocumentID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"_id":"something-else","coins":[],"tags":[]}`))
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	_, err := c.GetDocument(context.Background(), Credentials{})
	assert.True(t, errors.Is(err, errors.ErrSyncMalformedDoc))
}

func TestGetDocument_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	c := newTestClient(server.URL)
	_, err := c.GetDocument(context.Background(), Credentials{})
	assert.True(t, errors.Is(err, errors.ErrSyncUnreachable))
}

func TestPutDocument(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/numis/numis-data", r.URL.Path)

		var doc domain.SyncDocument
		require.NoError(t, json.UnmarshalRead(r.Body, &doc))
		assert.Equal(t, "1-old", doc.Rev)

		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"ok":true,"id":"numis-data","rev":"2-new"}`))
	}))
	defer server.Close()

	doc := domain.NewSyncDocument(nil, nil)
	doc.Rev = "1-old"

	c := newTestClient(server.URL)
	rev, err := c.PutDocument(context.Background(), Credentials{}, doc)
	require.NoError(t, err)
	assert.Equal(t, "2-new", rev)
}

func TestPutDocument_Conflict(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"conflict"}`, http.StatusConflict)
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	_, err := c.PutDocument(context.Background(), Credentials{}, domain.NewSyncDocument(nil, nil))
	assert.True(t, errors.Is(err, errors.ErrConflict))
}

func TestPing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/numis", r.URL.Path)
		w.Write([]byte(`{"db_name":"numis"}`))
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	assert.NoError(t, c.Ping(context.Background(), Credentials{}))
}

func TestPing_Unauthorized(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusUnauthorized)
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	err := c.Ping(context.Background(), Credentials{Username: "alice", Password: "wrong"})
	assert.True(t, errors.Is(err, errors.ErrSyncUnauthorized))
}

func TestCredentials_URLOverride(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		serveDocument(t, domain.NewSyncDocument(nil, nil))(w, r)
	}))
	defer server.Close()

	// Configured base URL points nowhere; the stored credentials redirect.
	c := newTestClient("http://127.0.0.1:1")
	c.newBackOff = func() backoff.BackOff { return &backoff.StopBackOff{} }

	_, err := c.GetDocument(context.Background(), Credentials{URL: server.URL})
	require.NoError(t, err)
}

func TestCredentialsRoundTrip(t *testing.T) {
	kv := store.NewMemoryKV()
	ctx := context.Background()

	_, found, err := LoadCredentials(ctx, kv)
	require.NoError(t, err)
	assert.False(t, found)

	creds := Credentials{URL: "http://couch.example:5984", Username: "alice", Password: "secret"}
	require.NoError(t, SaveCredentials(ctx, kv, creds))

	got, found, err := LoadCredentials(ctx, kv)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, creds, got)
}

func TestSaveCredentials_RejectsIncomplete(t *testing.T) {
	kv := store.NewMemoryKV()
	err := SaveCredentials(context.Background(), kv, Credentials{Username: " "})
	assert.True(t, errors.Is(err, errors.ErrValidation))
}
