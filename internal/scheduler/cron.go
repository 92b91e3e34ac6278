package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/amaumene/reconcilarr/internal/controllers"
	"github.com/amaumene/reconcilarr/internal/metrics"
	"github.com/amaumene/reconcilarr/internal/models"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Config holds the scheduler's intervals and floors
type Config struct {
	GlobalSweepSchedule string        // cron spec of the all-users check
	MinCheckInterval    time.Duration // floor for check and rename intervals
	MinWatcherInterval  time.Duration // floor for watcher intervals
	Notify              bool          // scan early on filesystem events
	NotifyDelay         time.Duration // quiet period after the last event
}

// userJobs are the cron entries of one owner
type userJobs struct {
	check       cron.EntryID
	checkEvery  time.Duration
	rename      cron.EntryID
	renameEvery time.Duration
	watch       cron.EntryID
	watchEvery  time.Duration
	notifier    *notifier
}

// UserSchedule is the read surface of one owner's timers
type UserSchedule struct {
	CheckEvery  time.Duration `json:"check_every"`
	NextCheck   *time.Time    `json:"next_check,omitempty"`
	RenameEvery time.Duration `json:"rename_every,omitempty"`
	NextRename  *time.Time    `json:"next_rename,omitempty"`
	WatchEvery  time.Duration `json:"watch_every,omitempty"`
	NextScan    *time.Time    `json:"next_scan,omitempty"`
	Notifying   bool          `json:"notifying"`
}

// Scheduler manages the per-owner recurring jobs: monitoring checks,
// auto-rename and watcher scans, plus a global safety sweep
type Scheduler struct {
	cron     *cron.Cron
	db       *models.Database
	settings *controllers.SettingsCache
	monitor  *controllers.MonitorController
	watcher  *controllers.WatcherController
	renamer  *controllers.RenameController
	cfg      Config
	logger   *logrus.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup // runs started outside the cron loop

	mu    sync.Mutex
	users map[string]*userJobs
	sweep cron.EntryID
}

// NewScheduler creates a new scheduler
func NewScheduler(
	db *models.Database,
	settings *controllers.SettingsCache,
	monitor *controllers.MonitorController,
	watcher *controllers.WatcherController,
	renamer *controllers.RenameController,
	cfg Config,
	logger *logrus.Logger,
) *Scheduler {
	cronLogger := cron.PrintfLogger(logger)
	ctx, cancel := context.WithCancel(context.Background())
	if cfg.NotifyDelay <= 0 {
		cfg.NotifyDelay = 5 * time.Second
	}
	return &Scheduler{
		cron: cron.New(cron.WithChain(
			cron.Recover(cronLogger),
			cron.SkipIfStillRunning(cronLogger),
		)),
		db:       db,
		settings: settings,
		monitor:  monitor,
		watcher:  watcher,
		renamer:  renamer,
		cfg:      cfg,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
		users:    make(map[string]*userJobs),
	}
}

// ClampInterval returns d, raised to floor when shorter
func ClampInterval(d, floor time.Duration) time.Duration {
	if d < floor {
		return floor
	}
	return d
}

// Start schedules every known owner and the global sweep
func (s *Scheduler) Start() error {
	s.logger.Info("Starting scheduler")

	if s.cfg.GlobalSweepSchedule != "" {
		id, err := s.cron.AddFunc(s.cfg.GlobalSweepSchedule, s.runSweep)
		if err != nil {
			return fmt.Errorf("failed to add global sweep job: %w", err)
		}
		s.sweep = id
	}

	owners, err := s.db.ListOwners()
	if err != nil {
		return fmt.Errorf("failed to list owners: %w", err)
	}
	for _, owner := range owners {
		if err := s.UpdateUser(owner); err != nil {
			s.logger.WithError(err).WithField("owner_id", owner).Error("Failed to schedule owner")
		}
	}

	s.cron.Start()
	s.logger.WithField("owners", len(owners)).Info("Scheduler started")
	return nil
}

// Stop stops every job and waits for running ones to finish
func (s *Scheduler) Stop() {
	s.logger.Info("Stopping scheduler")
	s.cancel()
	<-s.cron.Stop().Done()
	s.wg.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, jobs := range s.users {
		if jobs.notifier != nil {
			jobs.notifier.Close()
		}
	}
}

// UpdateUser (re)schedules an owner's jobs from fresh settings. It is
// called at startup and whenever the owner's settings change. When
// auto-rename is enabled a rename pass also runs right away.
func (s *Scheduler) UpdateUser(ownerID string) error {
	s.settings.Invalidate(ownerID)
	settings, err := s.settings.Get(s.ctx, ownerID)
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.removeLocked(ownerID)
	jobs := &userJobs{}
	log := s.logger.WithField("owner_id", ownerID)

	jobs.checkEvery = ClampInterval(time.Duration(settings.CheckIntervalMins)*time.Minute, s.cfg.MinCheckInterval)
	jobs.check = s.cron.Schedule(cron.Every(jobs.checkEvery), cron.FuncJob(func() { s.runCheck(ownerID) }))

	if settings.AutoRename {
		jobs.renameEvery = ClampInterval(time.Duration(settings.RenameIntervalMins)*time.Minute, s.cfg.MinCheckInterval)
		jobs.rename = s.cron.Schedule(cron.Every(jobs.renameEvery), cron.FuncJob(func() { s.runRename(ownerID) }))
		// Same wrapped job as the entry so a tick skips while this runs
		job := s.cron.Entry(jobs.rename).WrappedJob
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			job.Run()
		}()
	}

	pairs := settings.WatchPairs()
	if settings.WatcherEnabled && len(pairs) > 0 {
		jobs.watchEvery = ClampInterval(time.Duration(settings.WatcherIntervalSecs)*time.Second, s.cfg.MinWatcherInterval)
		jobs.watch = s.cron.Schedule(cron.Every(jobs.watchEvery), cron.FuncJob(func() { s.runScan(ownerID) }))

		if s.cfg.Notify {
			dirs := make([]string, 0, len(pairs))
			for _, p := range pairs {
				dirs = append(dirs, p.Source)
			}
			n, err := newNotifier(dirs, s.cfg.NotifyDelay, func() { s.runScan(ownerID) }, s.logger)
			if err != nil {
				log.WithError(err).Warn("Filesystem notifications unavailable, relying on interval scans")
			} else {
				jobs.notifier = n
			}
		}
	}

	s.users[ownerID] = jobs
	log.WithFields(logrus.Fields{
		"check_every":  jobs.checkEvery,
		"rename_every": jobs.renameEvery,
		"watch_every":  jobs.watchEvery,
	}).Info("Owner scheduled")
	return nil
}

// RemoveUser stops every job of an owner
func (s *Scheduler) RemoveUser(ownerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(ownerID)
	s.watcher.RemoveOwner(ownerID)
}

func (s *Scheduler) removeLocked(ownerID string) {
	jobs, ok := s.users[ownerID]
	if !ok {
		return
	}
	for _, id := range []cron.EntryID{jobs.check, jobs.rename, jobs.watch} {
		if id != 0 {
			s.cron.Remove(id)
		}
	}
	if jobs.notifier != nil {
		jobs.notifier.Close()
	}
	delete(s.users, ownerID)
}

// Status returns the timers of an owner, or nil when unscheduled
func (s *Scheduler) Status(ownerID string) *UserSchedule {
	s.mu.Lock()
	defer s.mu.Unlock()
	jobs, ok := s.users[ownerID]
	if !ok {
		return nil
	}
	return &UserSchedule{
		CheckEvery:  jobs.checkEvery,
		NextCheck:   s.next(jobs.check),
		RenameEvery: jobs.renameEvery,
		NextRename:  s.next(jobs.rename),
		WatchEvery:  jobs.watchEvery,
		NextScan:    s.next(jobs.watch),
		Notifying:   jobs.notifier != nil,
	}
}

func (s *Scheduler) next(id cron.EntryID) *time.Time {
	if id == 0 {
		return nil
	}
	entry := s.cron.Entry(id)
	if !entry.Valid() || entry.Next.IsZero() {
		return nil
	}
	next := entry.Next
	return &next
}

// TriggerCheck runs a monitoring check for an owner now
func (s *Scheduler) TriggerCheck(ctx context.Context, ownerID string) (*controllers.CheckResult, error) {
	return s.monitor.CheckUser(ctx, ownerID)
}

// TriggerScan runs a watcher scan for an owner now
func (s *Scheduler) TriggerScan(ctx context.Context, ownerID string) (*controllers.ScanResult, error) {
	return s.watcher.ScanUser(ctx, ownerID)
}

// TriggerRename runs an auto-rename pass for an owner now
func (s *Scheduler) TriggerRename(ctx context.Context, ownerID string) (*controllers.RenameResult, error) {
	return s.renamer.RunAutoRename(ctx, ownerID)
}

// runCheck executes one owner's monitoring check
func (s *Scheduler) runCheck(ownerID string) {
	log := s.logger.WithField("owner_id", ownerID)
	log.Debug("Running scheduled check")

	if _, err := s.monitor.CheckUser(s.ctx, ownerID); err != nil {
		log.WithError(err).Error("Check job failed")
	}
}

// runRename executes one owner's auto-rename pass
func (s *Scheduler) runRename(ownerID string) {
	start := time.Now()
	defer metrics.ObserveJob("rename", start)
	log := s.logger.WithField("owner_id", ownerID)
	log.Debug("Running scheduled rename")

	result, err := s.renamer.RunAutoRename(s.ctx, ownerID)
	if errors.Is(err, controllers.ErrAutoRenameDisabled) {
		return
	}
	if err != nil {
		log.WithError(err).Error("Rename job failed")
		return
	}
	if result.Failed > 0 {
		log.WithField("failed", result.Failed).Warn("Rename job completed with failures")
	}
}

// runScan executes one owner's watcher scan
func (s *Scheduler) runScan(ownerID string) {
	log := s.logger.WithField("owner_id", ownerID)
	log.Debug("Running scheduled watcher scan")

	if _, err := s.watcher.ScanUser(s.ctx, ownerID); err != nil {
		log.WithError(err).Warn("Watcher scan failed")
	}
}

// runSweep checks every owner one after the other
func (s *Scheduler) runSweep() {
	s.logger.Info("Running global sweep")
	start := time.Now()
	defer metrics.ObserveJob("sweep", start)

	owners, err := s.db.ListOwners()
	if err != nil {
		s.logger.WithError(err).Error("Failed to list owners")
		return
	}
	for _, owner := range owners {
		if s.ctx.Err() != nil {
			return
		}
		s.runCheck(owner)
	}
	s.logger.WithFields(logrus.Fields{
		"owners":   len(owners),
		"duration": time.Since(start),
	}).Info("Global sweep completed")
}
