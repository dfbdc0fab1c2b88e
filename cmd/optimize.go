package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/rubiojr/resdir/pkg/config"
	"github.com/urfave/cli/v3"
)

// OptimizeCommand creates the optimize command
func OptimizeCommand() *cli.Command {
	return &cli.Command{
		Name:  "optimize",
		Usage: "Refresh query planner statistics and checkpoint the database",
		Action: func(ctx context.Context, c *cli.Command) error {
			return optimizeDatabase(ctx, c.String("config"))
		},
	}
}

func optimizeDatabase(ctx context.Context, configPath string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	start := time.Now()
	if err := store.Optimize(ctx); err != nil {
		return fmt.Errorf("optimizing database: %w", err)
	}
	fmt.Printf("Database optimized in %v\n", time.Since(start).Round(time.Millisecond))
	return nil
}
