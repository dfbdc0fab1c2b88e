package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/rubiojr/resdir/pkg/db"
	"github.com/rubiojr/resdir/pkg/version"
	"github.com/urfave/cli/v3"
)

// VersionCommand creates the version command
func VersionCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Show version information",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "short",
				Usage: "Print only the version number",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Print version details as JSON",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			return printVersion(os.Stdout, c.Bool("short"), c.Bool("json"))
		},
	}
}

func printVersion(w io.Writer, short, asJSON bool) error {
	if short {
		_, err := fmt.Fprintln(w, version.Version)
		return err
	}

	schema, err := latestSchema()
	if err != nil {
		return err
	}
	info := version.Current(schema)
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	}

	fmt.Fprintln(w, version.BuildVersion())
	fmt.Fprintf(w, "  go:       %s (%s)\n", info.GoVersion, info.Platform)
	fmt.Fprintf(w, "  schema:   %03d\n", info.Schema)
	return nil
}

// latestSchema returns the highest migration version shipped for sqlite.
// Both dialects carry the same numbered set.
func latestSchema() (int, error) {
	migrations, err := db.GetEmbeddedMigrations(db.SQLite)
	if err != nil {
		return 0, fmt.Errorf("reading embedded migrations: %w", err)
	}
	latest := 0
	for _, m := range migrations {
		latest = max(latest, m.Version)
	}
	return latest, nil
}
