package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/rubiojr/resdir/pkg/catalog"
	"github.com/rubiojr/resdir/pkg/config"
	"github.com/urfave/cli/v3"
)

// ImportCommand creates the import command
func ImportCommand() *cli.Command {
	return &cli.Command{
		Name:      "import",
		Usage:     "Import categories and resources from a TOML catalog",
		ArgsUsage: "<catalog.toml>",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "dry-run",
				Usage: "Validate the catalog without writing anything",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			if c.NArg() != 1 {
				return fmt.Errorf("expected exactly one catalog file")
			}
			return importCatalog(ctx, os.Stdout, c.String("config"), c.Args().First(), c.Bool("dry-run"))
		},
	}
}

func importCatalog(ctx context.Context, w io.Writer, configPath, path string, dryRun bool) error {
	cat, err := catalog.Load(path)
	if err != nil {
		return err
	}

	if dryRun {
		fmt.Fprintf(w, "Catalog is valid: %d categories, %d resources\n", len(cat.Categories), len(cat.Resources))
		return nil
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	res, err := cat.Apply(ctx, store)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Imported %d categories and %d resources\n", res.Categories, res.Resources)
	return nil
}
