package models

import "time"

// PendingFile is a detected, stable download waiting for manual approval
type PendingFile struct {
	ID         string    `boltholdKey:"ID" json:"id"`
	OwnerID    string    `boltholdIndex:"OwnerID" json:"owner_id"`
	SourcePath string    `boltholdIndex:"SourcePath" json:"source_path"`
	SourceRoot string    `json:"source_root"`
	DestPath   string    `json:"dest_path"`
	MediaKind  MediaKind `json:"media_kind"`
	Size       int64     `json:"size"`
	DetectedAt time.Time `json:"detected_at"`
}

// ActivityEntry is one watcher action kept in the bounded recent log
type ActivityEntry struct {
	Action     string    `json:"action"` // moved, skipped, approved, rejected, error
	SourcePath string    `json:"source_path"`
	DestPath   string    `json:"dest_path"`
	MediaKind  MediaKind `json:"media_kind"`
	Size       int64     `json:"size"`
	Detail     string    `json:"detail"`
	At         time.Time `json:"at"`
}
