package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/mybus-data/internal/busstop"
	"github.com/mybus-data/internal/common/config"
	"github.com/mybus-data/internal/common/logger"
	"github.com/mybus-data/internal/common/maintenance"
	"github.com/mybus-data/internal/common/webhook"
	"github.com/mybus-data/internal/livetimes"
	"github.com/mybus-data/internal/settings"
	"github.com/mybus-data/internal/updater"
)

// services holds everything a command may need, wired together.
type services struct {
	stops    *busstop.Store
	settings *settings.Store
	live     *livetimes.Client
	checker  *updater.Checker
	cleanup  *maintenance.CleanupScheduler
}

func openServices(ctx context.Context, cfg *config.Config, log logger.Logger) (*services, error) {
	stops, err := busstop.Open(ctx, busstop.Config{
		Path:       cfg.Database.BusStopPath,
		AssetPath:  cfg.Database.AssetPath,
		SchemaName: cfg.Database.SchemaName,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("opening bus stop database: %w", err)
	}

	settingsStore, err := settings.Open(ctx, settings.Config{
		Path:           cfg.Database.SettingsPath,
		AlertRetention: cfg.Maintenance.AlertRetention,
	}, log)
	if err != nil {
		stops.Close()
		return nil, fmt.Errorf("opening settings database: %w", err)
	}

	s := &services{
		stops:    stops,
		settings: settingsStore,
	}

	if cfg.LiveTimes.APIKey != "" {
		live, err := livetimes.NewClient(livetimes.ClientConfig{
			BaseURL:     cfg.LiveTimes.BaseURL,
			APIKey:      cfg.LiveTimes.APIKey,
			Departures:  cfg.LiveTimes.Departures,
			CacheExpiry: cfg.LiveTimes.CacheExpiry,
			MaxParallel: cfg.LiveTimes.MaxParallel,
		}, log)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("creating live times client: %w", err)
		}
		s.live = live
	} else {
		log.Info("Live times disabled (no API key provided)")
	}

	// Downloads land next to the live database so the final rename stays on
	// one file system.
	downloadDir := filepath.Dir(cfg.Database.BusStopPath)

	s.checker = updater.NewChecker(
		updater.Config{
			CheckInterval: cfg.Updater.CheckInterval,
			UnmeteredOnly: cfg.Updater.UnmeteredOnly,
			DownloadDir:   downloadDir,
		},
		stops,
		updater.NewHTTPEndpoint(updater.EndpointConfig{
			URL:    cfg.Updater.EndpointURL,
			APIKey: cfg.Updater.APIKey,
		}, log),
		updater.NewHTTPDownloader(cfg.Updater.DownloadTimeout, log),
		settingsStore,
		updater.StaticNetwork{Metered: cfg.Updater.MeteredNetwork},
		log,
	)

	s.cleanup = maintenance.NewCleanupScheduler(
		maintenance.New(settingsStore, downloadDir, log),
		log,
		maintenance.SchedulerConfig{
			CleanupInterval: cfg.Maintenance.CleanupInterval,
		},
	)
	s.checker.SetReplaceLock(s.cleanup)
	if cfg.Logging.WebhookURL != "" {
		s.checker.SetNotifier(webhook.NewClient(cfg.Logging.WebhookURL))
	}

	return s, nil
}

func (s *services) Close() {
	if s.settings != nil {
		s.settings.Close()
	}
	if s.stops != nil {
		s.stops.Close()
	}
}
