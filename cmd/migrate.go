package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/rubiojr/resdir/pkg/config"
	"github.com/rubiojr/resdir/pkg/db"
	"github.com/rubiojr/resdir/pkg/storage"
	"github.com/urfave/cli/v3"
)

// MigrateCommand creates the migrate command
func MigrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Run database migrations",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "status",
				Usage: "Show migration status without applying migrations",
				Value: false,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			return RunMigrations(os.Stdout, c.String("config"), c.Bool("status"))
		},
	}
}

// RunMigrations handles the migration process (exported for testing)
func RunMigrations(w io.Writer, configPath string, statusOnly bool) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	store, err := storage.Open(cfg.Storage.Driver, cfg.Storage.DSN)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			fmt.Fprintf(w, "Warning: failed to close store: %v\n", err)
		}
	}()

	manager := db.NewMigrationManager(store.DB(), store.Dialect())
	fmt.Fprintf(w, "=== Database: %s ===\n", store.Dialect())

	if statusOnly {
		if err := showMigrationStatus(w, manager); err != nil {
			return fmt.Errorf("showing migration status: %w", err)
		}
		fmt.Fprintln(w, "\nMigration status check completed")
		return nil
	}

	applied, err := manager.ApplyPendingMigrations()
	if err != nil {
		return fmt.Errorf("applying migrations: %w", err)
	}
	fmt.Fprintf(w, "\nAll migrations completed successfully (%d applied)\n", applied)
	return nil
}

// showMigrationStatus displays the current migration status
func showMigrationStatus(w io.Writer, manager *db.MigrationManager) error {
	status, err := manager.GetMigrationStatus()
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "Applied migrations: %d\n", len(status.Applied))
	for _, migration := range status.Applied {
		appliedTime := "unknown"
		if migration.AppliedAt != nil {
			appliedTime = migration.AppliedAt.Format("2006-01-02 15:04:05")
		}
		fmt.Fprintf(w, "  ✓ %03d: %s (applied: %s)\n", migration.Version, migration.Name, appliedTime)
	}

	fmt.Fprintf(w, "Pending migrations: %d\n", len(status.Pending))
	for _, migration := range status.Pending {
		fmt.Fprintf(w, "  • %03d: %s\n", migration.Version, migration.Name)
	}

	if len(status.Pending) == 0 {
		fmt.Fprintln(w, "  (none - database is up to date)")
	}

	return nil
}
