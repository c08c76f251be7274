// Package main provides the entry point for soketi-server.
//
// soketi-server hosts the Pusher-compatible HTTP API and the channel
// namespaces behind it. A single process answers every query from its
// own state; with the gossip adapter enabled, any number of processes
// form a cluster and aggregate their answers across all members.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/atymic/soketi/internal/adapter"
	"github.com/atymic/soketi/internal/apps"
	"github.com/atymic/soketi/internal/infra/buildinfo"
	"github.com/atymic/soketi/internal/infra/confloader"
	"github.com/atymic/soketi/internal/infra/shutdown"
	"github.com/atymic/soketi/internal/namespace"
	"github.com/atymic/soketi/internal/server/config"
	"github.com/atymic/soketi/internal/server/httpserver"
	"github.com/atymic/soketi/internal/server/httpserver/handler"
	"github.com/atymic/soketi/internal/telemetry/logger"
	"github.com/atymic/soketi/internal/telemetry/metric"
	"github.com/atymic/soketi/internal/transport/gossip"
)

const shutdownTimeout = 30 * time.Second

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// newApp creates the CLI application.
func newApp() *cli.App {
	return &cli.App{
		Name:    "soketi-server",
		Usage:   "Pusher-compatible channel server with cluster support",
		Version: buildinfo.String(),
		Commands: []*cli.Command{
			serveCommand(),
			versionCommand(),
		},
	}
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				EnvVars: []string{"SOKETI_CONFIG"},
			},
		},
		Action: func(c *cli.Context) error {
			return runServe(c.String("config"))
		},
	}
}

func versionCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Print version information",
		Action: func(c *cli.Context) error {
			info := buildinfo.Get()
			fmt.Printf("soketi-server %s\n", info.Version)
			fmt.Printf("  commit: %s\n", info.Commit)
			fmt.Printf("  built:  %s\n", info.BuildTime)
			fmt.Printf("  go:     %s\n", info.GoVersion)
			return nil
		},
	}
}

func runServe(configFile string) error {
	cfg, err := loadConfig(configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: os.Stdout,
	})
	slog.SetDefault(log)

	log.Info("starting soketi-server",
		"version", buildinfo.Version,
		"commit", buildinfo.Commit,
		"adapter", cfg.Adapter.Driver,
	)
	log.Debug("effective configuration", "config", config.Sanitize(cfg))

	shutdownHandler := shutdown.NewHandler(shutdownTimeout)

	// App registry.
	manager, err := initApps(cfg, log, shutdownHandler)
	if err != nil {
		return fmt.Errorf("init apps: %w", err)
	}

	// Metrics registry before the adapter: cluster queries report
	// into it.
	metrics := metric.NewRegistry()

	// Local namespaces and, when configured, the cluster on top.
	registry := namespace.NewRegistry()
	local := adapter.NewLocalAdapter(registry)

	var ad adapter.Adapter = local
	if cfg.Adapter.Driver == config.AdapterGossip {
		gossipCfg, err := config.ToGossipConfig(cfg, log)
		if err != nil {
			return fmt.Errorf("gossip config: %w", err)
		}
		bus, err := gossip.New(gossipCfg)
		if err != nil {
			return fmt.Errorf("join cluster: %w", err)
		}
		log.Info("cluster joined",
			"node_id", bus.NodeID(),
			"address", bus.Address(),
			"members", bus.ParticipantCount(),
		)

		ad = adapter.NewHorizontalAdapter(local, bus, adapter.HorizontalConfig{
			NodeID:         gossipCfg.NodeID,
			ChannelPrefix:  cfg.Adapter.Prefix,
			RequestTimeout: cfg.Adapter.Timeout,
			Logger:         log,
			Metrics:        metrics,
		})
	}
	shutdownHandler.OnShutdown(func(ctx context.Context) error {
		log.Info("closing adapter")
		return ad.Close()
	})

	metrics.MustRegister(metric.NewCollector(registry))

	// HTTP API.
	limiters := apps.NewLimiterRegistry()
	h := handler.New(ad, manager, limiters, log)
	router := httpserver.NewRouter(h, &httpserver.RouterConfig{
		Apps:     manager,
		Limiters: limiters,
		Logger:   log,
		Metrics:  metrics,
	})
	apiServer := httpserver.New(cfg.Server.Address, router)

	shutdownHandler.OnShutdown(func(ctx context.Context) error {
		log.Info("shutting down HTTP server")
		return apiServer.Shutdown(ctx)
	})

	go func() {
		log.Info("HTTP API listening", "address", cfg.Server.Address)

		var err error
		if cfg.Server.TLSCertFile != "" {
			err = apiServer.ListenAndServeTLS(cfg.Server.TLSCertFile, cfg.Server.TLSKeyFile)
		} else {
			err = apiServer.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server error", "error", err)
		}
	}()

	if cfg.Server.Metrics.Enabled {
		startMetricsServer(cfg, metrics, log, shutdownHandler)
	}

	// Registered last so it runs first: flip /ready so load balancers
	// drain us while in-flight requests finish.
	shutdownHandler.OnShutdown(func(ctx context.Context) error {
		h.SetReady(false)
		return nil
	})

	if err := shutdownHandler.Wait(); err != nil {
		log.Error("shutdown error", "error", err)
		return err
	}

	log.Info("server stopped gracefully")
	return nil
}

// loadConfig loads configuration from defaults, the optional config
// file, and SOKETI_* environment variables.
func loadConfig(configFile string) (*config.ServerConfig, error) {
	cfg := config.Default()

	opts := []confloader.Option{}
	if configFile != "" {
		opts = append(opts, confloader.WithConfigFile(configFile))
	}

	loader := confloader.NewLoader(opts...)
	if err := loader.Load(cfg); err != nil {
		return nil, err
	}

	if err := config.Verify(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// initApps builds the app registry for the configured driver and
// registers its teardown on the shutdown handler.
func initApps(cfg *config.ServerConfig, log *slog.Logger, sd *shutdown.Handler) (apps.Manager, error) {
	switch cfg.Apps.Driver {
	case config.AppsBadger:
		manager, err := apps.NewBadgerManager(apps.BadgerOptions{
			Dir:        cfg.Apps.DataDir,
			Passphrase: cfg.Apps.Passphrase,
			Logger:     log,
		})
		if err != nil {
			return nil, err
		}
		sd.OnShutdown(func(ctx context.Context) error {
			log.Info("closing app store")
			return manager.Close()
		})
		return manager, nil

	default: // memory, enforced by config.Verify
		entries := cfg.Apps.Entries
		if cfg.Apps.File != "" {
			loaded, err := apps.LoadAppsFile(cfg.Apps.File)
			if err != nil {
				return nil, err
			}
			entries = loaded
		}

		manager, err := apps.NewMemoryManager(entries)
		if err != nil {
			return nil, err
		}

		if cfg.Apps.Watch {
			watcher, err := apps.WatchAppsFile(cfg.Apps.File, manager, log)
			if err != nil {
				return nil, err
			}
			sd.OnShutdown(func(ctx context.Context) error {
				return watcher.Stop()
			})
			log.Info("watching apps file", "path", cfg.Apps.File)
		}
		return manager, nil
	}
}

// startMetricsServer serves Prometheus metrics on a dedicated listener.
func startMetricsServer(cfg *config.ServerConfig, metrics *metric.Registry, log *slog.Logger, sd *shutdown.Handler) {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", metrics.Handler())

	srv := httpserver.New(cfg.Server.Metrics.Address, mux)
	sd.OnShutdown(func(ctx context.Context) error {
		return srv.Shutdown(ctx)
	})

	go func() {
		log.Info("metrics listening", "address", cfg.Server.Metrics.Address)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("metrics server error", "error", err)
		}
	}()
}
