// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"

	"github.com/bureau-foundation/assets/lib/asset"
	"github.com/bureau-foundation/assets/lib/assetmetrics"
	"github.com/bureau-foundation/assets/lib/clock"
	"github.com/bureau-foundation/assets/lib/config"
	"github.com/bureau-foundation/assets/lib/service"
	"github.com/bureau-foundation/assets/lib/version"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		showVersion bool
		configPath  string
		logLevel    string
		socketPath  string
		httpAddress string
		backend     string
	)
	flagSet := pflag.NewFlagSet("bureau-asset-service", pflag.ContinueOnError)
	flagSet.BoolVar(&showVersion, "version", false, "print version information and exit")
	flagSet.StringVarP(&configPath, "config", "c", "", "configuration file (default: $"+config.EnvVar+")")
	flagSet.StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn or error")
	flagSet.StringVar(&socketPath, "socket", "", "override paths.socket")
	flagSet.StringVar(&httpAddress, "http-address", "", "override delivery.http_address")
	flagSet.StringVar(&backend, "backend", "", "override storage.backend (memory, sqlite, badger)")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}

	if showVersion {
		version.Print("bureau-asset-service")
		return nil
	}

	level, err := service.ParseLevel(logLevel)
	if err != nil {
		return err
	}
	logger := service.NewLogger(level)

	var cfg *config.Config
	switch {
	case configPath != "":
		cfg, err = config.LoadFile(configPath)
	case os.Getenv(config.EnvVar) != "":
		cfg, err = config.Load()
	default:
		cfg = config.Default()
		logger.Info("no configuration file, using defaults", "root", cfg.Paths.Root)
	}
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	if socketPath != "" {
		cfg.Paths.Socket = socketPath
	}
	if flagSet.Changed("http-address") {
		cfg.Delivery.HTTPAddress = httpAddress
	}
	if backend != "" {
		cfg.Storage.Backend = backend
		if !cfg.Durable() {
			cfg.Paths.Snapshot = ""
		}
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := cfg.EnsurePaths(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := assetmetrics.New(registry)

	pages, err := openPages(cfg, logger)
	if err != nil {
		return err
	}

	hashAlgorithm, err := asset.ParseHashAlgorithm(cfg.Upload.HashAlgorithm)
	if err != nil {
		pages.Close()
		return err
	}

	clk := clock.Real()
	store, err := asset.New(asset.Config{
		Pages:            pages,
		BucketSize:       cfg.Storage.BucketSize,
		MaxResponseBytes: cfg.Delivery.MaxResponseBytes,
		HashAlgorithm:    hashAlgorithm,
		Trusted:          cfg.Upload.Trusted,
		Clock:            clk,
		Logger:           logger,
		Metrics:          metrics,
	})
	if err != nil {
		pages.Close()
		return fmt.Errorf("creating asset store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("closing page store failed", "error", err)
		}
	}()

	if cfg.Paths.Snapshot != "" {
		found, err := store.LoadSnapshot(cfg.Paths.Snapshot)
		if err != nil {
			return fmt.Errorf("loading snapshot: %w", err)
		}
		if !found {
			logger.Info("no snapshot found, starting empty", "path", cfg.Paths.Snapshot)
		}
	}

	assetService := &AssetService{
		store:        store,
		snapshotPath: cfg.Paths.Snapshot,
		clock:        clk,
		startedAt:    clk.Now(),
		logger:       logger,
	}

	server := service.NewSocketServer(cfg.Paths.Socket, logger, newAccessPolicy(cfg.Access))
	assetService.registerActions(server)

	socketDone := make(chan error, 1)
	go func() {
		socketDone <- server.Serve(ctx)
	}()

	var httpDone chan error
	if cfg.Delivery.HTTPAddress != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))
		mux.Handle("/", newGateway(store, logger))

		httpServer := service.NewHTTPServer(service.HTTPServerConfig{
			Address: cfg.Delivery.HTTPAddress,
			Handler: mux,
			Logger:  logger,
		})
		httpDone = make(chan error, 1)
		go func() {
			httpDone <- httpServer.Serve(ctx)
		}()
	}

	stats := store.Stats()
	logger.Info("asset service running",
		"version", version.Info(),
		"socket", cfg.Paths.Socket,
		"http", cfg.Delivery.HTTPAddress,
		"backend", cfg.Storage.Backend,
		"codec", cfg.Storage.Codec,
		"files", stats.Files,
		"uploads", stats.Uploads,
	)

	// Wait for shutdown signal.
	<-ctx.Done()
	logger.Info("shutting down")

	if err := <-socketDone; err != nil {
		logger.Error("socket listener error", "error", err)
	}
	if httpDone != nil {
		if err := <-httpDone; err != nil {
			logger.Error("http gateway error", "error", err)
		}
	}

	assetService.persist(asset.SnapshotAll)
	return nil
}

// AssetService is the socket-facing state of the service.
type AssetService struct {
	store *asset.Store

	// snapshotPath is where state is persisted after mutations.
	// Empty disables persistence (memory backend).
	snapshotPath string

	// persistMu serializes snapshot writes so the file on disk always
	// reflects the latest completed mutation.
	persistMu sync.Mutex

	clock     clock.Clock
	startedAt time.Time

	logger *slog.Logger
}
