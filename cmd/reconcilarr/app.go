package main

import (
	"fmt"
	"path/filepath"

	"github.com/amaumene/reconcilarr/internal/config"
	"github.com/amaumene/reconcilarr/internal/controllers"
	"github.com/amaumene/reconcilarr/internal/models"
	"github.com/amaumene/reconcilarr/internal/scheduler"
	"github.com/amaumene/reconcilarr/internal/services/gateway"
	"github.com/amaumene/reconcilarr/internal/services/library"
	"github.com/amaumene/reconcilarr/internal/services/newznab"
	"github.com/amaumene/reconcilarr/internal/utils"
	"github.com/sirupsen/logrus"
)

// app holds the wired components shared by every command
type app struct {
	cfg    *config.Config
	logger *logrus.Logger
	db     *models.Database

	settings  *controllers.SettingsCache
	download  *controllers.DownloadController
	monitor   *controllers.MonitorController
	watcher   *controllers.WatcherController
	renamer   *controllers.RenameController
	scheduler *scheduler.Scheduler
}

// newApp loads configuration and wires the database, backends and
// controllers
func newApp() (*app, error) {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	// 2. Setup logger
	logger := utils.NewLogger(cfg.LogLevel, cfg.LogFormat)
	logger.WithField("config_dir", filepath.Dir(cfg.DatabaseFile)).Debug("Configuration loaded")

	// 3. Initialize database
	db, err := models.NewDatabase(cfg.DatabaseFile)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	// 4. Load blacklist
	blacklist, err := utils.LoadBlacklist(cfg.BlacklistFile)
	if err != nil {
		logger.WithError(err).Warn("Failed to load blacklist, continuing without it")
		blacklist = utils.NewBlacklist()
	}
	logger.WithField("terms", blacklist.Len()).Debug("Blacklist loaded")

	// 5. Initialize backends
	var (
		searchers  []controllers.Searcher
		downloader controllers.Downloader
	)
	if cfg.GatewayURL != "" {
		gw, err := gateway.NewClient(gateway.Config{
			URL:     cfg.GatewayURL,
			APIKey:  cfg.GatewayAPIKey,
			Timeout: cfg.SearchTimeout,
		}, logger)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to initialize gateway client: %w", err)
		}
		searchers = append(searchers, gw)
		downloader = gw
	}
	if cfg.NewznabURL != "" {
		nz, err := newznab.NewClient(newznab.Config{
			URL:      cfg.NewznabURL,
			APIKey:   cfg.NewznabKey,
			Name:     cfg.NewznabName,
			Priority: cfg.NewznabPriority,
			Timeout:  cfg.SearchTimeout,
		}, logger)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to initialize Newznab client: %w", err)
		}
		searchers = append(searchers, nz)
	}
	logger.WithField("searchers", len(searchers)).Debug("Backends initialized")

	// 6. Initialize controllers
	settings := controllers.NewSettingsCache(db, cfg.SettingsCacheTTL)
	searchCtrl := controllers.NewSearchController(searchers, blacklist, controllers.RetryPolicy{
		Retries: cfg.SearchRetries,
		Delay:   cfg.SearchRetryDelay,
		Timeout: cfg.SearchTimeout,
	}, logger)
	downloadCtrl := controllers.NewDownloadController(db, downloader, cfg.SubmitTimeout, logger)
	renameCtrl := controllers.NewRenameController(db, settings, logger)
	monitorCtrl := controllers.NewMonitorController(db, settings, library.NewScanner(cfg.MinMovieSize, logger),
		searchCtrl, downloadCtrl, renameCtrl, controllers.MonitorConfig{
			EntityDelay:     cfg.EntityDelay,
			DownloadTimeout: cfg.DownloadTimeout,
		}, logger)
	watcherCtrl := controllers.NewWatcherController(db, settings, controllers.WatcherConfig{
		StabilityWait: cfg.StabilityWait,
		RecentLimit:   cfg.RecentLimit,
	}, logger)

	// 7. Initialize scheduler (started only by serve)
	sched := scheduler.NewScheduler(db, settings, monitorCtrl, watcherCtrl, renameCtrl, scheduler.Config{
		GlobalSweepSchedule: cfg.GlobalSweepSchedule,
		MinCheckInterval:    cfg.MinCheckInterval,
		MinWatcherInterval:  cfg.MinWatcherInterval,
		Notify:              cfg.WatcherNotify,
	}, logger)

	return &app{
		cfg:       cfg,
		logger:    logger,
		db:        db,
		settings:  settings,
		download:  downloadCtrl,
		monitor:   monitorCtrl,
		watcher:   watcherCtrl,
		renamer:   renameCtrl,
		scheduler: sched,
	}, nil
}

func (a *app) close() {
	if err := a.db.Close(); err != nil {
		a.logger.WithError(err).Error("Failed to close database")
	}
}
