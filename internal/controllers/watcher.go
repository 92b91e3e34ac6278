package controllers

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/amaumene/reconcilarr/internal/metrics"
	"github.com/amaumene/reconcilarr/internal/models"
	"github.com/amaumene/reconcilarr/internal/utils"
	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// Activity actions recorded in the recent log
const (
	ActionMoved    = "moved"
	ActionPending  = "pending"
	ActionSkipped  = "skipped"
	ActionApproved = "approved"
	ActionRejected = "rejected"
	ActionError    = "error"
)

// WatcherConfig holds the watcher's timing and bounds
type WatcherConfig struct {
	StabilityWait time.Duration // gap between the two size/mtime reads
	RecentLimit   int           // entries kept in the recent activity log
}

// ScanResult aggregates one scan over one or more watch pairs
type ScanResult struct {
	OwnerID string      `json:"owner_id"`
	Found   int         `json:"found"`
	Moved   int         `json:"moved"`
	Pending int         `json:"pending"`
	Skipped int         `json:"skipped"`
	Failed  int         `json:"failed"`
	Errors  []ItemError `json:"errors,omitempty"`
}

func (r *ScanResult) merge(o *ScanResult) {
	r.Found += o.Found
	r.Moved += o.Moved
	r.Pending += o.Pending
	r.Skipped += o.Skipped
	r.Failed += o.Failed
	r.Errors = append(r.Errors, o.Errors...)
}

func (r *ScanResult) fail(path string, err error) {
	r.Failed++
	r.Errors = append(r.Errors, ItemError{Path: path, Reason: err.Error()})
}

// WatcherStats are the running counters of an owner's watcher
type WatcherStats struct {
	LastRun        *time.Time `json:"last_run,omitempty"`
	FilesProcessed int        `json:"files_processed"`
	Movies         int        `json:"movies"`
	Series         int        `json:"series"`
	Errors         int        `json:"errors"`
}

// WatcherStatus is the read surface of an owner's watcher
type WatcherStatus struct {
	Stats    WatcherStats           `json:"stats"`
	Recent   []models.ActivityEntry `json:"recent"`
	Pending  int                    `json:"pending"`
	Tracking int                    `json:"tracking"`
}

// ownerWatch is the in-memory state of one owner. processed holds source
// paths that were moved, skipped or rejected and must not be offered again.
type ownerWatch struct {
	mu        sync.Mutex
	processed map[string]bool
	stats     WatcherStats
	recent    []models.ActivityEntry
}

// WatcherController detects completed downloads in watch directories and
// moves them into the library, directly or through the approval queue
type WatcherController struct {
	db       *models.Database
	settings SettingsProvider
	cfg      WatcherConfig
	logger   *logrus.Logger

	flights singleflight.Group

	mu     sync.Mutex
	owners map[string]*ownerWatch
}

// NewWatcherController creates a new watcher controller
func NewWatcherController(db *models.Database, settings SettingsProvider, cfg WatcherConfig, logger *logrus.Logger) *WatcherController {
	if cfg.RecentLimit <= 0 {
		cfg.RecentLimit = 20
	}
	return &WatcherController{
		db:       db,
		settings: settings,
		cfg:      cfg,
		logger:   logger,
		owners:   make(map[string]*ownerWatch),
	}
}

func (c *WatcherController) owner(ownerID string) *ownerWatch {
	c.mu.Lock()
	defer c.mu.Unlock()
	w, ok := c.owners[ownerID]
	if !ok {
		w = &ownerWatch{processed: make(map[string]bool)}
		c.owners[ownerID] = w
	}
	return w
}

// RemoveOwner forgets the in-memory state of an owner
func (c *WatcherController) RemoveOwner(ownerID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.owners, ownerID)
}

// ScanUser scans every configured watch pair of an owner concurrently.
// Each pair is single-flighted, so a manual scan that overlaps a scheduled
// one shares its result instead of running twice.
func (c *WatcherController) ScanUser(ctx context.Context, ownerID string) (*ScanResult, error) {
	settings, err := c.settings.Get(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	pairs := settings.WatchPairs()
	if len(pairs) == 0 {
		return nil, fmt.Errorf("no watch directories: %w", ErrNoDirectory)
	}

	start := time.Now()
	defer metrics.ObserveJob("watcher", start)

	results := make([]*ScanResult, len(pairs))
	pairErrs := make([]error, len(pairs))
	g, gctx := errgroup.WithContext(ctx)
	for i, pair := range pairs {
		i, pair := i, pair
		g.Go(func() error {
			key := ownerID + "\x00" + pair.Source + "\x00" + pair.Dest
			v, err, shared := c.flights.Do(key, func() (interface{}, error) {
				return c.ScanPair(gctx, ownerID, pair, settings.WatcherAutoApprove)
			})
			if shared {
				c.logger.WithFields(logrus.Fields{
					"owner_id": ownerID,
					"source":   pair.Source,
				}).Debug("Joined scan already in progress")
			}
			if err != nil {
				// A broken pair does not stop the others
				pairErrs[i] = err
				return nil
			}
			results[i] = v.(*ScanResult)
			return nil
		})
	}
	_ = g.Wait()

	total := &ScanResult{OwnerID: ownerID}
	for i, r := range results {
		if pairErrs[i] != nil {
			total.fail(pairs[i].Source, pairErrs[i])
			continue
		}
		total.merge(r)
	}

	w := c.owner(ownerID)
	w.mu.Lock()
	now := time.Now()
	w.stats.LastRun = &now
	w.mu.Unlock()

	c.logger.WithFields(logrus.Fields{
		"owner_id": ownerID,
		"found":    total.Found,
		"moved":    total.Moved,
		"pending":  total.Pending,
		"skipped":  total.Skipped,
		"failed":   total.Failed,
	}).Info("Watcher scan completed")

	failed := 0
	for _, err := range pairErrs {
		if err != nil {
			failed++
		}
	}
	if failed == len(pairs) {
		return total, errors.Join(pairErrs...)
	}
	return total, nil
}

// ScanPair runs one scan of a single source/destination pair. Only an
// unreadable source directory fails the pass; per-file problems are
// reported in the result.
func (c *WatcherController) ScanPair(ctx context.Context, ownerID string, pair models.WatchPair, autoApprove bool) (*ScanResult, error) {
	ctx, span := tracer.Start(ctx, "watcher.ScanPair", trace.WithAttributes(
		attribute.String("owner_id", ownerID),
		attribute.String("source", pair.Source),
	))
	defer span.End()

	log := c.logger.WithFields(logrus.Fields{
		"owner_id": ownerID,
		"source":   pair.Source,
		"dest":     pair.Dest,
		"kind":     pair.MediaKind,
	})

	if info, err := os.Stat(pair.Source); err != nil || !info.IsDir() {
		if err == nil {
			err = errors.New("not a directory")
		}
		span.RecordError(err)
		log.WithError(err).Warn("Watch directory unavailable")
		return nil, fmt.Errorf("%s: %w: %w", pair.Source, ErrNoDirectory, err)
	}

	w := c.owner(ownerID)
	result := &ScanResult{OwnerID: ownerID}

	// First read of every new file
	first := make(map[string]utils.FileState)
	var order []string
	err := utils.WalkVideoFiles(pair.Source, func(path string, info os.FileInfo) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		result.Found++
		w.mu.Lock()
		done := w.processed[path]
		w.mu.Unlock()
		if done {
			return nil
		}
		if _, err := c.db.GetPendingFileBySource(ownerID, path); err == nil {
			return nil
		} else if !errors.Is(err, models.ErrNotFound) {
			result.fail(path, err)
			return nil
		}
		first[path] = utils.StateOf(info)
		order = append(order, path)
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to scan %s: %w: %w", pair.Source, ErrNoDirectory, err)
	}

	// One wait covers the whole batch
	stable, err := utils.StableFiles(ctx, first, c.cfg.StabilityWait)
	if err != nil {
		return result, err
	}

	for _, path := range order {
		info, ok := stable[path]
		if !ok {
			log.WithField("path", path).Debug("File still being written, skipping")
			continue
		}

		dest, err := destinationFor(pair, path)
		if err != nil {
			result.fail(path, err)
			continue
		}

		if autoApprove {
			c.autoMove(ownerID, w, pair, path, dest, info.Size(), result)
			continue
		}

		pending := &models.PendingFile{
			ID:         uuid.NewString(),
			OwnerID:    ownerID,
			SourcePath: path,
			SourceRoot: pair.Source,
			DestPath:   dest,
			MediaKind:  pair.MediaKind,
			Size:       info.Size(),
			DetectedAt: time.Now(),
		}
		queued, err := c.queuePending(w, pending)
		if err != nil {
			result.fail(path, err)
			continue
		}
		if !queued {
			continue
		}
		result.Pending++
		metrics.WatcherFiles.WithLabelValues(ActionPending).Inc()
		c.record(w, models.ActivityEntry{
			Action:     ActionPending,
			SourcePath: path,
			DestPath:   dest,
			MediaKind:  pair.MediaKind,
			Size:       info.Size(),
		}, false)
		log.WithFields(logrus.Fields{
			"path": path,
			"size": humanize.Bytes(uint64(info.Size())),
		}).Info("File awaiting approval")
	}

	c.PruneProcessed(ownerID)
	return result, nil
}

// queuePending stores a pending file unless its source was processed, for
// instance rejected, while the scan was waiting on it. The owner lock is
// held so a concurrent Reject is ordered before or after the check.
func (c *WatcherController) queuePending(w *ownerWatch, pending *models.PendingFile) (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.processed[pending.SourcePath] {
		return false, nil
	}
	if err := c.db.CreatePendingFile(pending); err != nil {
		if errors.Is(err, models.ErrDuplicate) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// destinationFor keeps the file's path relative to the source root
func destinationFor(pair models.WatchPair, path string) (string, error) {
	rel, err := filepath.Rel(pair.Source, path)
	if err != nil {
		return "", err
	}
	return filepath.Join(pair.Dest, rel), nil
}

func (c *WatcherController) autoMove(ownerID string, w *ownerWatch, pair models.WatchPair, src, dest string, size int64, result *ScanResult) {
	log := c.logger.WithFields(logrus.Fields{
		"owner_id":    ownerID,
		"source_path": src,
		"dest_path":   dest,
	})

	err := utils.MoveFile(src, dest)
	entry := models.ActivityEntry{
		SourcePath: src,
		DestPath:   dest,
		MediaKind:  pair.MediaKind,
		Size:       size,
	}
	switch {
	case errors.Is(err, utils.ErrDestinationExists):
		// Never overwrite; the source stays where it is
		result.Skipped++
		entry.Action = ActionSkipped
		entry.Detail = err.Error()
		metrics.WatcherFiles.WithLabelValues(ActionSkipped).Inc()
		c.record(w, entry, false)
		c.markProcessed(w, src)
		log.Info("Destination already exists, skipping")
	case err != nil:
		result.fail(src, err)
		entry.Action = ActionError
		entry.Detail = err.Error()
		metrics.WatcherFiles.WithLabelValues(ActionError).Inc()
		c.record(w, entry, false)
		log.WithError(err).Error("Failed to move file")
	default:
		result.Moved++
		entry.Action = ActionMoved
		metrics.WatcherFiles.WithLabelValues(ActionMoved).Inc()
		c.record(w, entry, true)
		c.markProcessed(w, src)
		log.WithField("size", humanize.Bytes(uint64(size))).Info("File moved")
	}
}

func (c *WatcherController) markProcessed(w *ownerWatch, path string) {
	w.mu.Lock()
	w.processed[path] = true
	w.mu.Unlock()
}

// record appends to the bounded recent log, newest first. counted entries
// bump the processed counters.
func (c *WatcherController) record(w *ownerWatch, entry models.ActivityEntry, counted bool) {
	if entry.At.IsZero() {
		entry.At = time.Now()
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	w.recent = append([]models.ActivityEntry{entry}, w.recent...)
	if len(w.recent) > c.cfg.RecentLimit {
		w.recent = w.recent[:c.cfg.RecentLimit]
	}

	if entry.Action == ActionError {
		w.stats.Errors++
	}
	if !counted {
		return
	}
	w.stats.FilesProcessed++
	switch entry.MediaKind {
	case models.MediaKindMovie:
		w.stats.Movies++
	case models.MediaKindSeries:
		w.stats.Series++
	}
}

// PendingFiles lists the files waiting for approval
func (c *WatcherController) PendingFiles(ownerID string) ([]*models.PendingFile, error) {
	return c.db.GetPendingFiles(ownerID)
}

// Approve moves a pending file to its destination. On a collision the
// pending entry is kept and both files are left untouched.
func (c *WatcherController) Approve(ctx context.Context, ownerID, id string) (*models.PendingFile, error) {
	pending, err := c.getPending(ownerID, id)
	if err != nil {
		return nil, err
	}
	w := c.owner(ownerID)
	log := c.logger.WithFields(logrus.Fields{
		"owner_id":    ownerID,
		"pending_id":  id,
		"source_path": pending.SourcePath,
		"dest_path":   pending.DestPath,
	})

	entry := models.ActivityEntry{
		SourcePath: pending.SourcePath,
		DestPath:   pending.DestPath,
		MediaKind:  pending.MediaKind,
		Size:       pending.Size,
	}
	if err := utils.MoveFile(pending.SourcePath, pending.DestPath); err != nil {
		entry.Action = ActionError
		entry.Detail = err.Error()
		metrics.WatcherFiles.WithLabelValues(ActionError).Inc()
		c.record(w, entry, false)
		if errors.Is(err, utils.ErrDestinationExists) {
			log.Warn("Approval blocked, destination already exists")
		} else {
			log.WithError(err).Error("Failed to move approved file")
		}
		return pending, err
	}

	if err := c.db.DeletePendingFile(pending.ID); err != nil {
		log.WithError(err).Error("Failed to delete pending entry after move")
	}
	c.markProcessed(w, pending.SourcePath)
	entry.Action = ActionApproved
	metrics.WatcherFiles.WithLabelValues(ActionApproved).Inc()
	c.record(w, entry, true)
	log.Info("Pending file approved")
	return pending, nil
}

// Reject drops a pending file without moving it. The source path is
// remembered so the file is not offered again.
func (c *WatcherController) Reject(ctx context.Context, ownerID, id string) (*models.PendingFile, error) {
	pending, err := c.getPending(ownerID, id)
	if err != nil {
		return nil, err
	}
	// Marked first so a scan never sees the file as neither pending nor processed
	w := c.owner(ownerID)
	c.markProcessed(w, pending.SourcePath)
	if err := c.db.DeletePendingFile(pending.ID); err != nil {
		return nil, fmt.Errorf("failed to delete pending file: %w", err)
	}
	metrics.WatcherFiles.WithLabelValues(ActionRejected).Inc()
	c.record(w, models.ActivityEntry{
		Action:     ActionRejected,
		SourcePath: pending.SourcePath,
		DestPath:   pending.DestPath,
		MediaKind:  pending.MediaKind,
		Size:       pending.Size,
	}, false)

	c.logger.WithFields(logrus.Fields{
		"owner_id":    ownerID,
		"pending_id":  id,
		"source_path": pending.SourcePath,
	}).Info("Pending file rejected")
	return pending, nil
}

func (c *WatcherController) getPending(ownerID, id string) (*models.PendingFile, error) {
	pending, err := c.db.GetPendingFile(ownerID, id)
	if errors.Is(err, models.ErrNotFound) {
		return nil, fmt.Errorf("%s: %w", id, ErrPendingNotFound)
	}
	return pending, err
}

// PruneProcessed forgets processed paths that no longer exist on disk
func (c *WatcherController) PruneProcessed(ownerID string) int {
	w := c.owner(ownerID)

	w.mu.Lock()
	paths := make([]string, 0, len(w.processed))
	for path := range w.processed {
		paths = append(paths, path)
	}
	w.mu.Unlock()

	var gone []string
	for _, path := range paths {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			gone = append(gone, path)
		}
	}

	w.mu.Lock()
	for _, path := range gone {
		delete(w.processed, path)
	}
	w.mu.Unlock()
	return len(gone)
}

// Status returns the stats, recent activity and queue size of an owner
func (c *WatcherController) Status(ownerID string) (*WatcherStatus, error) {
	pending, err := c.db.GetPendingFiles(ownerID)
	if err != nil {
		return nil, err
	}

	w := c.owner(ownerID)
	w.mu.Lock()
	defer w.mu.Unlock()
	recent := make([]models.ActivityEntry, len(w.recent))
	copy(recent, w.recent)
	return &WatcherStatus{
		Stats:    w.stats,
		Recent:   recent,
		Pending:  len(pending),
		Tracking: len(w.processed),
	}, nil
}
