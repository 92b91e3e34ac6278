package models

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/timshannon/bolthold"
	"go.etcd.io/bbolt"
)

var (
	// ErrNotFound is returned when a record does not exist
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when an (owner, external id) pair already exists
	ErrDuplicate = errors.New("record already exists")
)

// Database wraps the bolthold store
type Database struct {
	store *bolthold.Store
}

// NewDatabase creates a new database connection
func NewDatabase(path string) (*Database, error) {
	store, err := bolthold.Open(path, 0600, &bolthold.Options{
		Options: &bbolt.Options{
			Timeout: 1 * time.Second,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return &Database{store: store}, nil
}

// Close closes the database connection
func (db *Database) Close() error {
	return db.store.Close()
}

func notFound(err error) error {
	if errors.Is(err, bolthold.ErrNotFound) {
		return ErrNotFound
	}
	return err
}

// Movie operations

// CreateMovie inserts a monitored movie, rejecting a duplicate external id
// for the same owner
func (db *Database) CreateMovie(movie *MonitoredMovie) error {
	var existing []*MonitoredMovie
	err := db.store.Find(&existing,
		bolthold.Where("OwnerID").Eq(movie.OwnerID).
			And("ExternalID").Eq(movie.ExternalID))
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return fmt.Errorf("movie %d for owner %s: %w", movie.ExternalID, movie.OwnerID, ErrDuplicate)
	}

	if movie.Status == "" {
		movie.Status = StatusMonitoring
	}
	if movie.MinimumAvailability == "" {
		movie.MinimumAvailability = AvailabilityReleased
	}
	movie.CreatedAt = time.Now()
	movie.UpdatedAt = movie.CreatedAt
	return db.store.Insert(bolthold.NextSequence(), movie)
}

// UpdateMovie updates an existing movie
func (db *Database) UpdateMovie(movie *MonitoredMovie) error {
	movie.UpdatedAt = time.Now()
	return notFound(db.store.Update(movie.ID, movie))
}

// GetMovie retrieves a movie by ID
func (db *Database) GetMovie(id uint64) (*MonitoredMovie, error) {
	var movie MonitoredMovie
	if err := db.store.Get(id, &movie); err != nil {
		return nil, notFound(err)
	}
	return &movie, nil
}

// GetMoviesByOwner retrieves all movies of an owner ordered by ID
func (db *Database) GetMoviesByOwner(ownerID string) ([]*MonitoredMovie, error) {
	var movies []*MonitoredMovie
	err := db.store.Find(&movies, bolthold.Where("OwnerID").Eq(ownerID).SortBy("ID"))
	return movies, err
}

// DeleteMovie deletes a movie by ID
func (db *Database) DeleteMovie(id uint64) error {
	return notFound(db.store.Delete(id, &MonitoredMovie{}))
}

// Series operations

// CreateSeries inserts a monitored series, rejecting a duplicate external
// id for the same owner
func (db *Database) CreateSeries(series *MonitoredSeries) error {
	var existing []*MonitoredSeries
	err := db.store.Find(&existing,
		bolthold.Where("OwnerID").Eq(series.OwnerID).
			And("ExternalID").Eq(series.ExternalID))
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return fmt.Errorf("series %d for owner %s: %w", series.ExternalID, series.OwnerID, ErrDuplicate)
	}

	if series.Status == "" {
		series.Status = StatusMonitoring
	}
	series.CreatedAt = time.Now()
	series.UpdatedAt = series.CreatedAt
	return db.store.Insert(bolthold.NextSequence(), series)
}

// UpdateSeries updates an existing series
func (db *Database) UpdateSeries(series *MonitoredSeries) error {
	series.UpdatedAt = time.Now()
	return notFound(db.store.Update(series.ID, series))
}

// GetSeries retrieves a series by ID
func (db *Database) GetSeries(id uint64) (*MonitoredSeries, error) {
	var series MonitoredSeries
	if err := db.store.Get(id, &series); err != nil {
		return nil, notFound(err)
	}
	return &series, nil
}

// GetSeriesByOwner retrieves all series of an owner ordered by ID
func (db *Database) GetSeriesByOwner(ownerID string) ([]*MonitoredSeries, error) {
	var series []*MonitoredSeries
	err := db.store.Find(&series, bolthold.Where("OwnerID").Eq(ownerID).SortBy("ID"))
	return series, err
}

// DeleteSeries deletes a series by ID
func (db *Database) DeleteSeries(id uint64) error {
	return notFound(db.store.Delete(id, &MonitoredSeries{}))
}

// Pending file operations

// CreatePendingFile stores a pending file. Only one entry may exist per
// owner and source path.
func (db *Database) CreatePendingFile(pending *PendingFile) error {
	if _, err := db.GetPendingFileBySource(pending.OwnerID, pending.SourcePath); err == nil {
		return fmt.Errorf("pending file %s: %w", pending.SourcePath, ErrDuplicate)
	} else if !errors.Is(err, ErrNotFound) {
		return err
	}
	return db.store.Insert(pending.ID, pending)
}

// GetPendingFiles retrieves all pending files of an owner, oldest first
func (db *Database) GetPendingFiles(ownerID string) ([]*PendingFile, error) {
	var pending []*PendingFile
	if err := db.store.Find(&pending, bolthold.Where("OwnerID").Eq(ownerID)); err != nil {
		return nil, err
	}
	sort.Slice(pending, func(i, j int) bool {
		if !pending[i].DetectedAt.Equal(pending[j].DetectedAt) {
			return pending[i].DetectedAt.Before(pending[j].DetectedAt)
		}
		return pending[i].SourcePath < pending[j].SourcePath
	})
	return pending, nil
}

// GetPendingFile retrieves one pending file of an owner
func (db *Database) GetPendingFile(ownerID, id string) (*PendingFile, error) {
	var pending PendingFile
	if err := db.store.Get(id, &pending); err != nil {
		return nil, notFound(err)
	}
	if pending.OwnerID != ownerID {
		return nil, ErrNotFound
	}
	return &pending, nil
}

// GetPendingFileBySource retrieves the pending entry for a source path
func (db *Database) GetPendingFileBySource(ownerID, sourcePath string) (*PendingFile, error) {
	var pending []*PendingFile
	err := db.store.Find(&pending,
		bolthold.Where("OwnerID").Eq(ownerID).
			And("SourcePath").Eq(sourcePath))
	if err != nil {
		return nil, err
	}
	if len(pending) == 0 {
		return nil, ErrNotFound
	}
	return pending[0], nil
}

// DeletePendingFile deletes a pending file by ID
func (db *Database) DeletePendingFile(id string) error {
	return notFound(db.store.Delete(id, &PendingFile{}))
}

// History operations

// CreateHistory records a submitted download
func (db *Database) CreateHistory(entry *HistoryEntry) error {
	if entry.Status == "" {
		entry.Status = HistoryGrabbed
	}
	entry.CreatedAt = time.Now()
	entry.UpdatedAt = entry.CreatedAt
	return db.store.Insert(bolthold.NextSequence(), entry)
}

// UpdateHistoryStatus applies a progress report from the download client.
// Entries already completed or failed are left untouched; the returned
// bool reports whether an entry changed.
func (db *Database) UpdateHistoryStatus(clientRef string, status HistoryStatus, reason string) (bool, error) {
	var entries []*HistoryEntry
	if err := db.store.Find(&entries, bolthold.Where("DownloadClientID").Eq(clientRef)); err != nil {
		return false, err
	}
	if len(entries) == 0 {
		return false, ErrNotFound
	}

	changed := false
	now := time.Now()
	for _, entry := range entries {
		if entry.Status.IsTerminal() || entry.Status == status {
			continue
		}
		entry.Status = status
		entry.FailureReason = reason
		entry.UpdatedAt = now
		if status.IsTerminal() {
			entry.CompletedAt = &now
		}
		if err := db.store.Update(entry.ID, entry); err != nil {
			return changed, err
		}
		changed = true
	}
	return changed, nil
}

// GetHistoryByOwner retrieves the history of an owner, newest first
func (db *Database) GetHistoryByOwner(ownerID string) ([]*HistoryEntry, error) {
	var entries []*HistoryEntry
	err := db.store.Find(&entries, bolthold.Where("OwnerID").Eq(ownerID).SortBy("ID").Reverse())
	return entries, err
}

// Settings operations

// GetSettings retrieves an owner's settings, falling back to defaults
func (db *Database) GetSettings(ownerID string) (*Settings, error) {
	var settings Settings
	err := db.store.Get(ownerID, &settings)
	if errors.Is(err, bolthold.ErrNotFound) {
		return DefaultSettings(ownerID), nil
	}
	if err != nil {
		return nil, err
	}
	return &settings, nil
}

// SaveSettings stores an owner's settings
func (db *Database) SaveSettings(settings *Settings) error {
	settings.UpdatedAt = time.Now()
	return db.store.Upsert(settings.OwnerID, settings)
}

// ListSettings retrieves all stored settings
func (db *Database) ListSettings() ([]*Settings, error) {
	var settings []*Settings
	err := db.store.Find(&settings, nil)
	return settings, err
}

// ListOwners returns every owner with monitored media or stored settings
func (db *Database) ListOwners() ([]string, error) {
	owners := make(map[string]bool)

	var movies []*MonitoredMovie
	if err := db.store.Find(&movies, nil); err != nil {
		return nil, err
	}
	for _, m := range movies {
		owners[m.OwnerID] = true
	}

	var series []*MonitoredSeries
	if err := db.store.Find(&series, nil); err != nil {
		return nil, err
	}
	for _, s := range series {
		owners[s.OwnerID] = true
	}

	settings, err := db.ListSettings()
	if err != nil {
		return nil, err
	}
	for _, s := range settings {
		owners[s.OwnerID] = true
	}

	result := make([]string, 0, len(owners))
	for owner := range owners {
		result = append(result, owner)
	}
	sort.Strings(result)
	return result, nil
}
