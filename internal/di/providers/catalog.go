package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/numisapp/numis-server/internal/collection"
	"github.com/numisapp/numis-server/internal/logger"
	"github.com/numisapp/numis-server/internal/registry"
	"github.com/numisapp/numis-server/internal/search"
)

// ProvideTagRegistry provides the tag definition registry.
func ProvideTagRegistry(i do.Injector) (*registry.Registry, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return registry.New(storeHandle.Store, log.Logger), nil
}

// ProvideCollection provides the coin catalog store.
func ProvideCollection(i do.Injector) (*collection.Store, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	tags := do.MustInvoke[*registry.Registry](i)
	log := do.MustInvoke[*logger.Logger](i)

	return collection.New(storeHandle.Store, tags, log.Logger), nil
}

// SearchIndexHandle wraps the search index with shutdown capability.
type SearchIndexHandle struct {
	*search.Index
}

// Shutdown implements do.Shutdownable.
func (h *SearchIndexHandle) Shutdown() error {
	return h.Close()
}

// ProvideSearchIndex provides the full-text index, seeded from the
// catalog and wired to receive incremental updates.
func ProvideSearchIndex(i do.Injector) (*SearchIndexHandle, error) {
	tags := do.MustInvoke[*registry.Registry](i)
	coins := do.MustInvoke[*collection.Store](i)
	log := do.MustInvoke[*logger.Logger](i)

	index, err := search.NewIndex(tags, log.Logger)
	if err != nil {
		return nil, err
	}

	if err := index.RebuildIndex(context.Background(), coins.Coins()); err != nil {
		return nil, err
	}
	coins.SetSearchIndexer(index)

	return &SearchIndexHandle{Index: index}, nil
}
