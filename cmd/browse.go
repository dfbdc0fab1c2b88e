package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rubiojr/resdir/pkg/client"
	"github.com/rubiojr/resdir/pkg/config"
	"github.com/rubiojr/resdir/pkg/controller"
	"github.com/rubiojr/resdir/pkg/log"
	"github.com/rubiojr/resdir/pkg/tui"
	"github.com/urfave/cli/v3"
)

// BrowseCommand creates the browse command
func BrowseCommand() *cli.Command {
	return &cli.Command{
		Name:  "browse",
		Usage: "Browse a running directory server interactively",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "link",
				Usage: "Open a shared query string such as 'q=food&category=Food+Bank'",
			},
			&cli.StringFlag{
				Name:  "api-url",
				Usage: "Server base URL (overrides [client] api_url)",
			},
			&cli.BoolFlag{
				Name:  "live",
				Usage: "Use the WebSocket transport",
			},
			&cli.StringFlag{
				Name:  "log-file",
				Usage: "Write logs to this file while the browser runs",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			return browse(ctx, c.String("config"), browseOptions{
				link:    c.String("link"),
				apiURL:  c.String("api-url"),
				live:    c.Bool("live"),
				logFile: c.String("log-file"),
			})
		},
	}
}

type browseOptions struct {
	link    string
	apiURL  string
	live    bool
	logFile string
}

func browse(ctx context.Context, configPath string, opts browseOptions) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if opts.apiURL == "" {
		opts.apiURL = cfg.Client.APIURL
	}

	// Log lines would corrupt the terminal UI.
	var logOut io.Writer = io.Discard
	if opts.logFile != "" {
		f, err := os.OpenFile(opts.logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("opening log file: %w", err)
		}
		defer f.Close()
		logOut = f
	}
	log.SetOutput(logOut)
	defer log.SetOutput(os.Stderr)
	logger := log.ForService("browse")

	httpFetcher := client.NewHTTPFetcher(opts.apiURL, cfg.Client.Timeout.Duration)
	var fetcher controller.Fetcher = httpFetcher
	if opts.live || cfg.Client.Live {
		live, err := client.NewLiveFetcher(opts.apiURL)
		if err != nil {
			return fmt.Errorf("creating live fetcher: %w", err)
		}
		defer live.Close()
		fetcher = live
	}

	categories, err := httpFetcher.Categories(ctx)
	if err != nil {
		logger.Warnf("could not load categories from %s: %v", opts.apiURL, err)
	}

	history := controller.NewMemoryHistory(opts.link)
	ctrl := controller.New(fetcher,
		controller.WithHistory(history),
		controller.WithDebounce(cfg.Client.Debounce.Duration),
	)
	defer ctrl.Close()

	link, err := tui.Run(ctrl, history, categories, tea.WithAltScreen(), tea.WithContext(ctx))
	if err != nil {
		return err
	}
	fmt.Println("?" + link)
	return nil
}
