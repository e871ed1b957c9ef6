// Package di provides dependency injection configuration for the Numis server.
package di

import (
	"github.com/samber/do/v2"

	"github.com/numisapp/numis-server/internal/collection"
	"github.com/numisapp/numis-server/internal/config"
	"github.com/numisapp/numis-server/internal/di/providers"
	"github.com/numisapp/numis-server/internal/logger"
	"github.com/numisapp/numis-server/internal/registry"
	"github.com/numisapp/numis-server/internal/remote"
	"github.com/numisapp/numis-server/internal/snapshot"
)

// NewContainer creates and configures the DI container with all providers.
func NewContainer() *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)

	// Database layer
	do.Provide(injector, providers.ProvideStore)

	// Catalog layer
	do.Provide(injector, providers.ProvideTagRegistry)
	do.Provide(injector, providers.ProvideCollection)
	do.Provide(injector, providers.ProvideSearchIndex)

	// Sync layer
	do.Provide(injector, providers.ProvideRemoteClient)
	do.Provide(injector, providers.ProvideSyncEngine)
	do.Provide(injector, providers.ProvideSnapshotService)

	// Server
	do.Provide(injector, providers.ProvideHTTPServer)

	return injector
}

// Bootstrap initializes all services and returns handles for lifecycle management.
// This triggers lazy initialization of all core services.
func Bootstrap(injector *do.RootScope) error {
	_ = do.MustInvoke[*config.Config](injector)
	_ = do.MustInvoke[*logger.Logger](injector)
	_ = do.MustInvoke[*providers.StoreHandle](injector)

	// Catalog
	_ = do.MustInvoke[*registry.Registry](injector)
	_ = do.MustInvoke[*collection.Store](injector)
	_ = do.MustInvoke[*providers.SearchIndexHandle](injector)

	// Sync
	_ = do.MustInvoke[*remote.Client](injector)
	_ = do.MustInvoke[*providers.EngineHandle](injector)
	_ = do.MustInvoke[*snapshot.Service](injector)

	// Server
	_ = do.MustInvoke[*providers.HTTPServerHandle](injector)

	return nil
}
