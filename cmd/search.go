package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/rubiojr/resdir/pkg/codec"
	"github.com/rubiojr/resdir/pkg/config"
	"github.com/rubiojr/resdir/pkg/intent"
	"github.com/rubiojr/resdir/pkg/search"
	"github.com/urfave/cli/v3"
)

// SearchCommand creates the search command
func SearchCommand() *cli.Command {
	return &cli.Command{
		Name:  "search",
		Usage: "Search the local directory",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "query",
				Aliases: []string{"q"},
				Usage:   "Free text matched against name, description and address",
			},
			&cli.StringSliceFlag{
				Name:  "category",
				Usage: "Category name (repeatable)",
			},
			&cli.StringSliceFlag{
				Name:  "services",
				Usage: "Offered service (repeatable, any match)",
			},
			&cli.StringSliceFlag{
				Name:  "population",
				Usage: "Population served (repeatable, any match)",
			},
			&cli.StringFlag{
				Name:  "location",
				Usage: "Address substring",
			},
			&cli.StringFlag{
				Name:  "sort",
				Usage: "relevance, name or created_at",
			},
			&cli.StringFlag{
				Name:  "order",
				Usage: "asc or desc",
			},
			&cli.IntFlag{
				Name:  "page",
				Usage: "Page number",
			},
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Results per page",
			},
			&cli.StringFlag{
				Name:  "link",
				Usage: "Start from a shared query string such as 'q=food&page=2'",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Print the raw result page as JSON",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg, err := config.LoadConfig(c.String("config"))
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			return runSearch(ctx, os.Stdout, cfg, searchIntent(c, cfg), c.Bool("json"))
		},
	}
}

// searchIntent starts from --link (or the defaults) and applies any flag
// given explicitly on top.
func searchIntent(c *cli.Command, cfg *config.Config) intent.Intent {
	in := codec.DecodeString(c.String("link"))
	if in.PageSize == intent.DefaultPageSize {
		in.PageSize = cfg.Search.DefaultPageSize
	}

	if c.IsSet("query") {
		in.Query = c.String("query")
	}
	if c.IsSet("category") {
		in.Filters.Category = c.StringSlice("category")
	}
	if c.IsSet("services") {
		in.Filters.Services = c.StringSlice("services")
	}
	if c.IsSet("population") {
		in.Filters.Population = c.StringSlice("population")
	}
	if c.IsSet("location") {
		in.Filters.Location = c.String("location")
	}
	if c.IsSet("sort") {
		in.SortBy = intent.SortBy(c.String("sort"))
	}
	if c.IsSet("order") {
		in.SortOrder = intent.SortOrder(c.String("order"))
	}
	if c.IsSet("page") {
		in.Page = c.Int("page")
	}
	if c.IsSet("limit") {
		in.PageSize = c.Int("limit")
	}
	return intent.Normalize(in)
}

func runSearch(ctx context.Context, w io.Writer, cfg *config.Config, in intent.Intent, asJSON bool) error {
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	svc := search.NewService(store, searchSettings(cfg.Search))
	page, err := svc.Search(ctx, in)
	if err != nil {
		return fmt.Errorf("searching: %w", err)
	}

	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(page)
	}

	formatResultPage(w, in, page, categoryNames(ctx, store.ListCategories))
	fmt.Fprintln(w)
	fmt.Fprintln(w, dimStyle.Render("link: ?"+codec.EncodeString(in)))
	return nil
}
