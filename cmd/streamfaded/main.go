// Command streamfaded is the background daemon. It owns the availability
// state database, talks to the metadata and offer catalogs, and serves the
// CLI and the page collaborator over a Unix socket.
package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"
	"time"

	"streamfade/internal/availability"
	"streamfade/internal/config"
	"streamfade/internal/daemon"
	"streamfade/internal/fade"
	"streamfade/internal/ipc"
	"streamfade/internal/logging"
	"streamfade/internal/providers"
	"streamfade/internal/runs"
	"streamfade/internal/services/offers"
	"streamfade/internal/services/tmdb"
	"streamfade/internal/settings"
	"streamfade/internal/state"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, _, _, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		log.Fatalf("prepare directories: %v", err)
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	store, err := state.Open(cfg)
	if err != nil {
		logger.Error("open state store", logging.Error(err))
		return
	}

	window := time.Duration(cfg.HTTP.WindowSeconds) * time.Second
	timeout := time.Duration(cfg.HTTP.TimeoutSeconds) * time.Second
	searchClient, err := tmdb.New(cfg.TMDB.APIKey, cfg.TMDB.BaseURL, cfg.TMDB.Language,
		tmdb.WithRateLimit(cfg.HTTP.RequestsPerWindow, window),
		tmdb.WithTimeout(timeout))
	if err != nil {
		logger.Error("create metadata client", logging.Error(err))
		return
	}
	offerClient, err := offers.New(cfg.Offers.BaseURL, cfg.Offers.PageSize,
		offers.WithRateLimit(cfg.HTTP.RequestsPerWindow, window),
		offers.WithTimeout(timeout))
	if err != nil {
		logger.Error("create offer-catalog client", logging.Error(err))
		return
	}

	filter := settings.NewService(store, cfg)
	queue := fade.NewQueue(logger)
	pipeline := availability.NewPipeline(searchClient, offerClient, logger)
	coordinator := runs.NewCoordinator(pipeline, queue, filter, store, cfg, logger)
	directory := providers.NewDirectory(searchClient, store, logger)

	d, err := daemon.New(cfg, store, coordinator, queue, filter, directory, logger)
	if err != nil {
		logger.Error("create daemon", logging.Error(err))
		return
	}
	defer d.Close()

	ipcServer, err := ipc.NewServer(ctx, cfg.Paths.SocketPath, d, cancel, logger)
	if err != nil {
		logger.Error("start IPC server", logging.Error(err))
		return
	}
	defer ipcServer.Close()
	ipcServer.Serve()

	if err := d.Start(ctx); err != nil {
		logger.Error("daemon start", logging.Error(err))
		return
	}

	<-ctx.Done()
	logger.Info("streamfaded shutting down")
}
