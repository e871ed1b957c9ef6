package providers

import (
	"github.com/samber/do/v2"

	"github.com/numisapp/numis-server/internal/collection"
	"github.com/numisapp/numis-server/internal/config"
	"github.com/numisapp/numis-server/internal/logger"
	"github.com/numisapp/numis-server/internal/registry"
	"github.com/numisapp/numis-server/internal/remote"
	"github.com/numisapp/numis-server/internal/snapshot"
	syncengine "github.com/numisapp/numis-server/internal/sync"
)

// ProvideRemoteClient provides the CouchDB mirror client.
func ProvideRemoteClient(i do.Injector) (*remote.Client, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	return remote.NewClient(cfg.Sync.RemoteURL, cfg.Sync.Database, log.Logger), nil
}

// EngineHandle wraps the sync engine with shutdown capability.
type EngineHandle struct {
	*syncengine.Engine
}

// Shutdown implements do.Shutdownable.
func (h *EngineHandle) Shutdown() error {
	h.Stop()
	return nil
}

// ProvideSyncEngine provides the reconciliation engine, wired as the
// change notifier of both stores.
func ProvideSyncEngine(i do.Injector) (*EngineHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	coins := do.MustInvoke[*collection.Store](i)
	tags := do.MustInvoke[*registry.Registry](i)
	client := do.MustInvoke[*remote.Client](i)
	log := do.MustInvoke[*logger.Logger](i)

	engine := syncengine.New(
		coins, tags,
		storeHandle.Store, client, storeHandle.Store,
		log.Logger,
		cfg.Sync.DebounceInterval, cfg.Sync.PeriodicInterval,
	)
	coins.SetNotifier(engine)
	tags.SetNotifier(engine)

	return &EngineHandle{Engine: engine}, nil
}

// ProvideSnapshotService provides snapshot export/import.
func ProvideSnapshotService(i do.Injector) (*snapshot.Service, error) {
	coins := do.MustInvoke[*collection.Store](i)
	tags := do.MustInvoke[*registry.Registry](i)
	log := do.MustInvoke[*logger.Logger](i)

	return snapshot.NewService(coins, tags, log.Logger), nil
}
