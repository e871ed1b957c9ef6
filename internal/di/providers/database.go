package providers

import (
	"os"
	"path/filepath"

	"github.com/samber/do/v2"

	"github.com/numisapp/numis-server/internal/config"
	"github.com/numisapp/numis-server/internal/logger"
	"github.com/numisapp/numis-server/internal/store"
)

// StoreHandle wraps the store with shutdown capability.
type StoreHandle struct {
	*store.Store
}

// Shutdown implements do.Shutdownable.
func (h *StoreHandle) Shutdown() error {
	return h.Close()
}

// ProvideStore provides the embedded database store.
func ProvideStore(i do.Injector) (*StoreHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	dataPath := cfg.Storage.DataPath
	if dataPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		dataPath = filepath.Join(home, ".numis")
	}
	if err := os.MkdirAll(dataPath, 0o755); err != nil {
		return nil, err
	}

	s, err := store.New(filepath.Join(dataPath, "numis.db"), log.Logger)
	if err != nil {
		return nil, err
	}

	return &StoreHandle{Store: s}, nil
}
