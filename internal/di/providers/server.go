package providers

import (
	"context"
	"fmt"
	"net/http"

	"github.com/samber/do/v2"

	"github.com/numisapp/numis-server/internal/api"
	"github.com/numisapp/numis-server/internal/collection"
	"github.com/numisapp/numis-server/internal/config"
	"github.com/numisapp/numis-server/internal/logger"
	"github.com/numisapp/numis-server/internal/registry"
	"github.com/numisapp/numis-server/internal/snapshot"
)

// HTTPServerHandle wraps http.Server with Shutdownable.
type HTTPServerHandle struct {
	*http.Server
}

// Shutdown implements do.Shutdownable.
func (h *HTTPServerHandle) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return h.Server.Shutdown(ctx)
}

// ProvideHTTPServer provides the HTTP API server.
func ProvideHTTPServer(i do.Injector) (*HTTPServerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	coins := do.MustInvoke[*collection.Store](i)
	tags := do.MustInvoke[*registry.Registry](i)
	engine := do.MustInvoke[*EngineHandle](i)
	snapshots := do.MustInvoke[*snapshot.Service](i)
	index := do.MustInvoke[*SearchIndexHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	apiServer := api.NewServer(
		coins, tags,
		engine.Engine, snapshots, index.Index, storeHandle.Store,
		cfg.Server.AllowedOrigins,
		log.Logger,
	)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      apiServer,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start in background
	go func() {
		log.Info("HTTP server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server error", "error", err)
		}
	}()

	return &HTTPServerHandle{Server: srv}, nil
}
