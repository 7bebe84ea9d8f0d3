package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"carprice/config"
	"carprice/db"
	chttp "carprice/http"
	"carprice/logging"
	"carprice/ml"
	"carprice/monitoring"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config.yaml")
	flag.Parse()

	// 1. Load config; a missing default file falls back to built-in defaults
	path := *configPath
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) && path == "config.yaml" {
		path = ""
	}
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := serve(cfg, logger); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
	logger.Info("exiting")
}

func serve(cfg *config.Config, logger *zap.Logger) error {
	// 2. Initialize history database
	var history *db.History
	if cfg.Database.Path != "" {
		var err error
		history, err = db.Open(cfg.Database.Path)
		if err != nil {
			return fmt.Errorf("open history: %w", err)
		}
		defer history.Close()
		logger.Info("history database initialized", zap.String("path", cfg.Database.Path))
	}

	cache, err := ml.NewModelCache(cfg.Model.CacheSize)
	if err != nil {
		return err
	}
	metrics := monitoring.NewMetricsCollector()
	hub := monitoring.NewTrainingHub(logger)

	api, err := chttp.NewAPI(chttp.APIConfig{
		ModelPath:     cfg.Model.Path,
		Cache:         cache,
		History:       history,
		Hub:           hub,
		Metrics:       metrics,
		Logger:        logger,
		Training:      cfg.TrainConfig(),
		LoaderOptions: cfg.LoaderOptions(logger),
	})
	if err != nil {
		return err
	}

	serverCfg := chttp.DefaultServerConfig()
	serverCfg.Port = cfg.HTTP.Port
	serverCfg.Timeout = cfg.HTTP.Timeout
	server := chttp.NewServer(serverCfg, api, logger)

	// 3. Run until SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(server.Start)
	g.Go(func() error {
		<-ctx.Done()
		return server.Stop()
	})
	g.Go(func() error {
		return hub.Run(ctx)
	})
	if cfg.Model.Watch {
		watcher := ml.NewModelWatcher(cfg.Model.Path, func(path string) {
			cache.Invalidate(path)
			metrics.IncrCounter(monitoring.MetricModelReloads, 1)
			hub.Publish(monitoring.ModelReloaded, map[string]string{"path": path})
			logger.Info("model artifact changed", zap.String("path", path))
		}, logger)
		g.Go(func() error {
			// prediction keeps working without hot reload
			if err := watcher.Run(ctx); err != nil {
				logger.Warn("model watcher stopped", zap.Error(err))
			}
			return nil
		})
	}

	return g.Wait()
}
