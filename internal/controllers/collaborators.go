package controllers

import (
	"context"
	"errors"

	"github.com/amaumene/reconcilarr/internal/models"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("github.com/amaumene/reconcilarr/internal/controllers")

var (
	// ErrNoDirectory is returned when a required directory is not configured
	// or cannot be read
	ErrNoDirectory = errors.New("directory not configured or inaccessible")
	// ErrPendingNotFound is returned for an unknown pending file id
	ErrPendingNotFound = errors.New("pending file not found")
	// ErrAutoRenameDisabled is returned by RunAutoRename when the owner has
	// auto-rename turned off
	ErrAutoRenameDisabled = errors.New("auto-rename is disabled")
	// ErrNoDownloader is returned when no download client is configured
	ErrNoDownloader = errors.New("no download client configured")
)

// Searcher is a search backend
type Searcher interface {
	Name() string
	Search(ctx context.Context, query string, category models.Category) ([]models.SearchCandidate, error)
}

// Downloader hands a candidate to the download client and returns the
// client's reference for it
type Downloader interface {
	SubmitDownload(ctx context.Context, candidate models.SearchCandidate) (string, error)
}

// LibraryScanner looks for media that already exists on disk. A nil
// FileInfo with a nil error means not found.
type LibraryScanner interface {
	FindMovieFile(ctx context.Context, root string, movie *models.MonitoredMovie) (*models.FileInfo, error)
	FindEpisodeFile(ctx context.Context, root string, series *models.MonitoredSeries, season, episode int) (*models.FileInfo, error)
}

// SettingsProvider returns an owner's settings
type SettingsProvider interface {
	Get(ctx context.Context, ownerID string) (*models.Settings, error)
}

// ItemError describes one failed item of a batch operation
type ItemError struct {
	Path     string `json:"path,omitempty"`
	EntityID uint64 `json:"entity_id,omitempty"`
	Reason   string `json:"reason"`
}
