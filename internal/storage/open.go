package storage

import (
	"context"
	"fmt"

	"github.com/hanamilabs/pretender-bot/internal/config"
	"github.com/hanamilabs/pretender-bot/internal/ports"
)

// Backend is a relay store that holds resources until closed.
type Backend interface {
	ports.RelayStore
	Location() string
	Close() error
}

// Open returns the backend selected by cfg.StoreBackend. The SQLite backend
// is migrated before it is returned.
func Open(ctx context.Context, cfg config.Config) (Backend, error) {
	switch cfg.StoreBackend {
	case "", "json":
		return NewJSONFileStore(cfg.RelaysFilePath), nil
	case "sqlite":
		store, err := OpenSQLite(cfg.DatabasePath)
		if err != nil {
			return nil, err
		}
		if err := store.Migrate(ctx); err != nil {
			store.Close()
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}
