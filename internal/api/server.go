// Package api provides the HTTP API server and handlers for the Numis catalog.
package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/numisapp/numis-server/internal/collection"
	"github.com/numisapp/numis-server/internal/domain"
	"github.com/numisapp/numis-server/internal/http/response"
	"github.com/numisapp/numis-server/internal/ratelimit"
	"github.com/numisapp/numis-server/internal/registry"
	"github.com/numisapp/numis-server/internal/remote"
	"github.com/numisapp/numis-server/internal/search"
	syncengine "github.com/numisapp/numis-server/internal/sync"
)

// Inbound per-client limits. Generous for a single-user UI; the point is
// to stop a stuck client loop from hammering the sync endpoints.
const (
	requestsPerSecond = 50
	requestBurst      = 100
)

// SyncEngine is the slice of the reconciliation engine the API needs.
type SyncEngine interface {
	Status() syncengine.Status
	SyncNow(ctx context.Context) error
	ForceFullRefresh(ctx context.Context) error
	SetCredentials(ctx context.Context, creds remote.Credentials) error
	TestConnection(ctx context.Context) error
}

// SnapshotService exports and imports snapshot files.
type SnapshotService interface {
	Export(ctx context.Context) (*domain.Snapshot, error)
	Import(ctx context.Context, payload []byte) error
}

// Searcher runs full-text queries over the catalog.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) (*search.Result, error)
}

// SettingsStore persists small UI preferences (language, column layout).
type SettingsStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	coins     *collection.Store
	tags      *registry.Registry
	engine    SyncEngine
	snapshots SnapshotService
	searcher  Searcher
	settings  SettingsStore
	limiter   *ratelimit.KeyedRateLimiter
	router    *chi.Mux
	logger    *slog.Logger
}

// NewServer creates a new HTTP server with all routes configured.
func NewServer(coins *collection.Store, tags *registry.Registry, engine SyncEngine, snapshots SnapshotService, searcher Searcher, settings SettingsStore, allowedOrigins []string, logger *slog.Logger) *Server {
	s := &Server{
		coins:     coins,
		tags:      tags,
		engine:    engine,
		snapshots: snapshots,
		searcher:  searcher,
		settings:  settings,
		limiter:   ratelimit.New(requestsPerSecond, requestBurst),
		router:    chi.NewRouter(),
		logger:    logger,
	}

	s.setupMiddleware(allowedOrigins)
	s.setupRoutes()

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// setupMiddleware configures the middleware stack.
func (s *Server) setupMiddleware(allowedOrigins []string) {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	s.router.Use(s.rateLimit)
}

// rateLimit rejects clients that exceed the per-address budget. RealIP
// runs earlier in the stack, so RemoteAddr is the real client address.
func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow(r.RemoteAddr) {
			response.Error(w, http.StatusTooManyRequests, "too many requests", s.logger)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	// Health check.
	s.router.Get("/health", s.handleHealthCheck)

	// API v1.
	s.router.Route("/api/v1", func(r chi.Router) {
		// Coins.
		r.Route("/coins", func(r chi.Router) {
			r.Get("/", s.handleListCoins)
			r.Post("/", s.handleCreateCoin)
			r.Get("/next-reference", s.handleNextReference)
			r.Get("/{id}", s.handleGetCoin)
			r.Put("/{id}", s.handleUpdateCoin)
			r.Delete("/{id}", s.handleDeleteCoin)
		})

		// Tag definitions.
		r.Route("/tags", func(r chi.Router) {
			r.Get("/", s.handleListTags)
			r.Post("/", s.handleCreateTag)
			r.Get("/categories", s.handleSearchCategories)
			r.Get("/values", s.handleSearchValues)
			r.Get("/duplicates", s.handleListDuplicateTags)
			r.Put("/{id}", s.handleUpdateTag)
			r.Delete("/{id}", s.handleDeleteTag)
		})

		// Derived facet views.
		r.Route("/facets", func(r chi.Router) {
			r.Get("/", s.handleAllFacets)
			r.Get("/available", s.handleAvailableFacets)
		})

		// Active filters.
		r.Route("/filters", func(r chi.Router) {
			r.Get("/", s.handleListFilters)
			r.Post("/toggle", s.handleToggleFilter)
			r.Delete("/", s.handleClearFilters)
			r.Get("/ranges", s.handleRangeBounds)
			r.Put("/weight-range", s.handleSetWeightRange)
			r.Put("/diameter-range", s.handleSetDiameterRange)
		})

		// Full-text search.
		r.Get("/search", s.handleSearch)

		// Snapshot export/import.
		r.Route("/snapshot", func(r chi.Router) {
			r.Get("/", s.handleExportSnapshot)
			r.Post("/", s.handleImportSnapshot)
		})

		// Sync engine.
		r.Route("/sync", func(r chi.Router) {
			r.Get("/status", s.handleSyncStatus)
			r.Post("/now", s.handleSyncNow)
			r.Post("/refresh", s.handleForceRefresh)
			r.Put("/credentials", s.handleSetCredentials)
			r.Post("/test", s.handleTestConnection)
		})

		// UI settings.
		r.Route("/settings", func(r chi.Router) {
			r.Get("/{key}", s.handleGetSetting)
			r.Put("/{key}", s.handleSetSetting)
		})
	})
}

// handleHealthCheck returns server health status.
func (s *Server) handleHealthCheck(w http.ResponseWriter, _ *http.Request) {
	response.Success(w, map[string]string{
		"status": "healthy",
	}, s.logger)
}
