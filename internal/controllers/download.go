package controllers

import (
	"context"
	"fmt"
	"time"

	"github.com/amaumene/reconcilarr/internal/metrics"
	"github.com/amaumene/reconcilarr/internal/models"
	"github.com/amaumene/reconcilarr/internal/utils"
	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
)

// MediaRef identifies what a download is for
type MediaRef struct {
	OwnerID string
	Kind    models.MediaKind
	ID      uint64
	Season  *int
	Episode *int
}

// DownloadController submits chosen candidates and tracks their history
type DownloadController struct {
	db         *models.Database
	downloader Downloader
	timeout    time.Duration
	logger     *logrus.Logger
}

// NewDownloadController creates a new download controller. downloader may
// be nil, in which case every submission fails with ErrNoDownloader.
func NewDownloadController(db *models.Database, downloader Downloader, timeout time.Duration, logger *logrus.Logger) *DownloadController {
	return &DownloadController{
		db:         db,
		downloader: downloader,
		timeout:    timeout,
		logger:     logger,
	}
}

// Submit hands the candidate to the download client under the submission
// timeout and records a grabbed history entry on success
func (c *DownloadController) Submit(ctx context.Context, ref MediaRef, candidate models.SearchCandidate) (*models.HistoryEntry, error) {
	if c.downloader == nil {
		metrics.Grabs.WithLabelValues("error").Inc()
		return nil, ErrNoDownloader
	}

	c.logger.WithFields(logrus.Fields{
		"owner_id": ref.OwnerID,
		"media_id": ref.ID,
		"title":    candidate.Title,
		"source":   candidate.Source,
		"seeders":  candidate.SeederCount(),
		"size":     humanize.Bytes(uint64(candidate.Size)),
	}).Info("Starting download")

	submitCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	clientRef, err := c.downloader.SubmitDownload(submitCtx, candidate)
	if err != nil {
		metrics.Grabs.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to submit download: %w", err)
	}
	metrics.Grabs.WithLabelValues("ok").Inc()

	entry := &models.HistoryEntry{
		OwnerID:          ref.OwnerID,
		MediaKind:        ref.Kind,
		MediaID:          ref.ID,
		Season:           ref.Season,
		Episode:          ref.Episode,
		ReleaseName:      candidate.Title,
		Protocol:         candidate.Protocol,
		Source:           candidate.Source,
		Size:             candidate.Size,
		Seeders:          candidate.SeederCount(),
		Leechers:         candidate.LeecherCount(),
		Quality:          utils.DetermineQuality(candidate.Title),
		Status:           models.HistoryGrabbed,
		DownloadClientID: clientRef,
	}
	if err := c.db.CreateHistory(entry); err != nil {
		// The job is already submitted, only the audit record is lost
		c.logger.WithError(err).Error("Failed to save history entry")
	}

	c.logger.WithFields(logrus.Fields{
		"owner_id":  ref.OwnerID,
		"media_id":  ref.ID,
		"client_id": clientRef,
	}).Info("Download job created")
	return entry, nil
}

// HandleProgress applies a status report from the download client.
// Reports for completed or failed entries are ignored.
func (c *DownloadController) HandleProgress(clientRef string, status models.HistoryStatus, reason string) error {
	c.logger.WithFields(logrus.Fields{
		"client_id": clientRef,
		"status":    status,
	}).Info("Processing download progress")

	switch status {
	case models.HistoryDownloading, models.HistoryCompleted, models.HistoryFailed:
	default:
		return fmt.Errorf("unsupported download status %q", status)
	}

	changed, err := c.db.UpdateHistoryStatus(clientRef, status, reason)
	if err != nil {
		return fmt.Errorf("failed to update history for %s: %w", clientRef, err)
	}
	if !changed {
		c.logger.WithField("client_id", clientRef).Debug("History entry already final, ignoring report")
	}
	return nil
}
