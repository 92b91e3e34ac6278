package models

import "time"

// HistoryEntry is the audit record of a submitted download
type HistoryEntry struct {
	ID      uint64 `boltholdKey:"ID"`
	OwnerID string `boltholdIndex:"OwnerID"`

	// Media reference
	MediaKind MediaKind
	MediaID   uint64
	Season    *int
	Episode   *int

	// Release snapshot
	ReleaseName string
	Protocol    Protocol
	Source      string
	Size        int64
	Seeders     int
	Leechers    int
	Quality     Quality

	// Download tracking
	Status           HistoryStatus `boltholdIndex:"Status"`
	DownloadClientID string        `boltholdIndex:"DownloadClientID"`
	FailureReason    string

	// Metadata
	CreatedAt   time.Time
	UpdatedAt   time.Time
	CompletedAt *time.Time
}
