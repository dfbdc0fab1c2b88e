package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rubiojr/resdir/pkg/config"
	"github.com/rubiojr/resdir/pkg/core"
	"github.com/rubiojr/resdir/pkg/db"
	"github.com/rubiojr/resdir/pkg/search"
	"github.com/rubiojr/resdir/pkg/storage"
)

// openStore opens the configured store. A database that has never been
// migrated is initialized; one with some migrations pending is refused so
// upgrades stay explicit.
func openStore(cfg *config.Config) (*storage.Store, error) {
	if cfg.Storage.Driver == config.DriverSQLite {
		path := strings.TrimPrefix(cfg.Storage.DSN, "file:")
		if i := strings.IndexByte(path, '?'); i >= 0 {
			path = path[:i]
		}
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("creating storage directory: %w", err)
		}
	}

	store, err := storage.Open(cfg.Storage.Driver, cfg.Storage.DSN)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	if err := ensureSchema(store); err != nil {
		store.Close()
		return nil, err
	}
	return store, nil
}

func ensureSchema(store *storage.Store) error {
	status, err := db.NewMigrationManager(store.DB(), store.Dialect()).GetMigrationStatus()
	if err != nil {
		return fmt.Errorf("checking migrations: %w", err)
	}
	if len(status.Pending) == 0 {
		return nil
	}
	if len(status.Applied) == 0 {
		if _, err := store.Migrate(); err != nil {
			return fmt.Errorf("initializing database: %w", err)
		}
		return nil
	}
	return fmt.Errorf("database has %d pending migrations. Run 'resdir migrate' first", len(status.Pending))
}

// searchSettings maps the [search] config section onto service settings.
func searchSettings(c config.SearchConfig) search.Settings {
	return search.Settings{
		DefaultPageSize:   c.DefaultPageSize,
		MaxPageSize:       c.MaxPageSize,
		CategoryCacheSize: c.CategoryCacheSize,
		CategoryCacheTTL:  c.CategoryCacheTTL.Duration,
	}
}

func categoryNames(ctx context.Context, list func(context.Context) ([]core.Category, error)) map[int64]string {
	cats, err := list(ctx)
	if err != nil {
		return nil
	}
	names := make(map[int64]string, len(cats))
	for _, c := range cats {
		names[c.ID] = c.Name
	}
	return names
}
