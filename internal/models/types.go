package models

import "strings"

// MediaKind represents the type of media (movie or series)
type MediaKind string

const (
	MediaKindMovie  MediaKind = "movie"
	MediaKindSeries MediaKind = "series"
)

// Status represents the monitoring state of a movie or series
type Status string

const (
	StatusMonitoring  Status = "monitoring"
	StatusDownloading Status = "downloading"
	StatusDownloaded  Status = "downloaded"
	StatusMissing     Status = "missing"
	StatusError       Status = "error"
)

// Protocol represents how a candidate is downloaded
type Protocol string

const (
	ProtocolTorrent Protocol = "torrent"
	ProtocolNZB     Protocol = "nzb"
)

// Category is the search category hint passed to search backends
type Category string

const (
	CategoryMovies Category = "2000"
	CategoryTV     Category = "5000"
)

// Quality is the resolution tier inferred from a release or file name
type Quality string

const (
	Quality2160p   Quality = "2160p"
	Quality1080p   Quality = "1080p"
	Quality720p    Quality = "720p"
	Quality480p    Quality = "480p"
	Quality360p    Quality = "360p"
	QualityUnknown Quality = ""
)

// QualityPolicy is a named bucket constraining acceptable release quality
type QualityPolicy string

const (
	PolicyAny         QualityPolicy = "any"
	PolicyHD720p      QualityPolicy = "hd-720p"
	PolicyHD1080p     QualityPolicy = "hd-1080p"
	PolicyHD720p1080p QualityPolicy = "hd-720p-1080p"
	PolicySD          QualityPolicy = "sd"
	PolicyUltraHD     QualityPolicy = "ultra-hd"
)

// ParseQualityPolicy maps stored policy names, including the legacy
// resolution aliases, onto a policy. Unknown names mean any.
func ParseQualityPolicy(name string) QualityPolicy {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "hd-720p":
		return PolicyHD720p
	case "hd-1080p", "1080p":
		return PolicyHD1080p
	case "hd-720p-1080p", "720p":
		return PolicyHD720p1080p
	case "sd", "480p":
		return PolicySD
	case "ultra-hd", "2160p":
		return PolicyUltraHD
	default:
		return PolicyAny
	}
}

// Availability controls when a movie becomes eligible for searching
type Availability string

const (
	AvailabilityAnnounced Availability = "announced"
	AvailabilityReleased  Availability = "released"
)

// HistoryStatus represents the lifecycle of a submitted download
type HistoryStatus string

const (
	HistoryGrabbed     HistoryStatus = "grabbed"
	HistoryDownloading HistoryStatus = "downloading"
	HistoryCompleted   HistoryStatus = "completed"
	HistoryFailed      HistoryStatus = "failed"
)

// IsTerminal reports whether no further progress updates are accepted
func (s HistoryStatus) IsTerminal() bool {
	return s == HistoryCompleted || s == HistoryFailed
}
