package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rubiojr/resdir/pkg/api"
	"github.com/rubiojr/resdir/pkg/config"
	"github.com/rubiojr/resdir/pkg/log"
	"github.com/rubiojr/resdir/pkg/maintenance"
	"github.com/rubiojr/resdir/pkg/search"
	"github.com/urfave/cli/v3"
)

const shutdownTimeout = 30 * time.Second

// ServeCommand creates the serve command
func ServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the search API server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "listen",
				Usage: "Address to listen on (overrides [server] listen)",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			return serve(ctx, c.String("config"), c.String("listen"))
		},
	}
}

// serve runs the API server until interrupted. Changes to the [search]
// section of the config file, or a SIGHUP, are applied without a restart.
func serve(ctx context.Context, configPath, listen string) error {
	logger := log.ForService("serve")

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if listen != "" {
		cfg.Server.Listen = listen
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warnf("failed to close store: %v", err)
		}
	}()

	svc := search.NewService(store, searchSettings(cfg.Search))

	scheduler, err := startMaintenance(ctx, cfg.Storage, store)
	if err != nil {
		return err
	}
	defer scheduler.Stop()

	server := &http.Server{
		Addr:         cfg.Server.Listen,
		Handler:      api.NewServer(svc, store, nil).Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout.Duration,
		WriteTimeout: cfg.Server.WriteTimeout.Duration,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("listening on http://%s (%s store)", server.Addr, store.Dialect())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigCh)

	var events <-chan fsnotify.Event
	var watchErrs <-chan error
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Warnf("failed to create config file watcher: %v", err)
	} else {
		defer func() {
			if err := watcher.Close(); err != nil {
				logger.Warnf("failed to close config file watcher: %v", err)
			}
		}()
		if err := watcher.Add(configPath); err != nil {
			logger.Warnf("failed to watch config file %s: %v", configPath, err)
		} else {
			logger.Infof("watching config file for changes: %s", configPath)
			events, watchErrs = watcher.Events, watcher.Errors
		}
	}

	shutdown := func() error {
		logger.Infof("shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	}

	for {
		select {
		case <-ctx.Done():
			return shutdown()
		case err := <-errCh:
			return fmt.Errorf("server failed: %w", err)
		case sig := <-sigCh:
			if sig != syscall.SIGHUP {
				return shutdown()
			}
			logger.Infof("received SIGHUP, reloading configuration")
			if err := reloadSearchSettings(configPath, svc); err != nil {
				logger.Errorf("failed to reload configuration: %v", err)
			}
		case event, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
				!event.Has(fsnotify.Rename) && !event.Has(fsnotify.Remove) {
				continue
			}
			logger.Infof("config file changed: %s (event: %s)", event.Name, event.Op)

			// Editors often replace the file atomically, which drops the watch.
			if event.Has(fsnotify.Rename) || event.Has(fsnotify.Remove) {
				time.Sleep(200 * time.Millisecond)
				if _, err := os.Stat(configPath); os.IsNotExist(err) {
					logger.Warnf("config file was removed and not replaced, keeping current settings")
					continue
				}
				if err := watcher.Add(configPath); err != nil {
					logger.Warnf("failed to re-add config file to watcher: %v", err)
				}
			} else {
				time.Sleep(100 * time.Millisecond)
			}

			if err := reloadSearchSettings(configPath, svc); err != nil {
				logger.Errorf("failed to reload configuration after file change: %v", err)
			}
		case err, ok := <-watchErrs:
			if !ok {
				watchErrs = nil
				continue
			}
			logger.Warnf("config file watcher error: %v", err)
		}
	}
}

// startMaintenance schedules database optimization. The returned scheduler
// is stopped when optimization is disabled.
func startMaintenance(ctx context.Context, cfg config.StorageConfig, store maintenance.Optimizer) (*maintenance.Scheduler, error) {
	scheduler := maintenance.NewScheduler(nil)
	if cfg.OptimizeInterval.Duration <= 0 {
		log.ForService("serve").Infof("periodic database optimization disabled")
		return scheduler, nil
	}
	if err := scheduler.Add(maintenance.Job{
		Name:     "optimize",
		Interval: cfg.OptimizeInterval.Duration,
		Run:      store.Optimize,
	}); err != nil {
		return nil, err
	}
	if err := scheduler.Start(ctx); err != nil {
		return nil, fmt.Errorf("starting maintenance: %w", err)
	}
	return scheduler, nil
}

// reloadSearchSettings applies the [search] section of the config file to
// a running service. Server and storage changes need a restart.
func reloadSearchSettings(configPath string, svc *search.Service) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	settings := searchSettings(cfg.Search)
	svc.Configure(settings)
	log.ForService("serve").Infof("search settings reloaded: default_page_size=%d max_page_size=%d cache=%d/%v",
		settings.DefaultPageSize, settings.MaxPageSize, settings.CategoryCacheSize, settings.CategoryCacheTTL)
	return nil
}
