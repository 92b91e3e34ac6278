package models

import "time"

const (
	DefaultMovieFormat  = "{Movie Title} ({Release Year})"
	DefaultSeriesFormat = "{Series Title}/Season {season:00}/{Series Title} - S{season:00}E{episode:00} - {Episode Title}"
)

// Settings holds the per-owner configuration read by the scheduler,
// watcher and renamer
type Settings struct {
	OwnerID string `boltholdKey:"OwnerID" json:"owner_id"`

	// Library roots
	MovieDirectory  string `json:"movie_directory"`
	SeriesDirectory string `json:"series_directory"`

	// Naming
	MovieFormat  string `json:"movie_format"`
	SeriesFormat string `json:"series_format"`

	// Acquisition
	QualityPolicy      QualityPolicy `json:"quality_policy"`
	AutoDownload       bool          `json:"auto_download"`
	CheckIntervalMins  int           `json:"check_interval_mins"`
	AutoRename         bool          `json:"auto_rename"`
	RenameIntervalMins int           `json:"rename_interval_mins"`

	// Watcher
	WatcherEnabled       bool   `json:"watcher_enabled"`
	WatcherIntervalSecs  int    `json:"watcher_interval_secs"`
	WatcherAutoApprove   bool   `json:"watcher_auto_approve"`
	MovieWatchDirectory  string `json:"movie_watch_directory"`
	SeriesWatchDirectory string `json:"series_watch_directory"`

	UpdatedAt time.Time `json:"updated_at"`
}

// DefaultSettings returns the settings an owner gets before saving any
func DefaultSettings(ownerID string) *Settings {
	return &Settings{
		OwnerID:             ownerID,
		MovieFormat:         DefaultMovieFormat,
		SeriesFormat:        DefaultSeriesFormat,
		QualityPolicy:       PolicyHD720p1080p,
		AutoDownload:        true,
		CheckIntervalMins:   60,
		AutoRename:          false,
		RenameIntervalMins:  60,
		WatcherEnabled:      false,
		WatcherIntervalSecs: 30,
		WatcherAutoApprove:  false,
	}
}

// WatchPair is one (source, destination, media kind) directory pair
type WatchPair struct {
	Source    string
	Dest      string
	MediaKind MediaKind
}

// WatchPairs returns the configured pairs with both directories set
func (s *Settings) WatchPairs() []WatchPair {
	var pairs []WatchPair
	if s.MovieWatchDirectory != "" && s.MovieDirectory != "" {
		pairs = append(pairs, WatchPair{Source: s.MovieWatchDirectory, Dest: s.MovieDirectory, MediaKind: MediaKindMovie})
	}
	if s.SeriesWatchDirectory != "" && s.SeriesDirectory != "" {
		pairs = append(pairs, WatchPair{Source: s.SeriesWatchDirectory, Dest: s.SeriesDirectory, MediaKind: MediaKindSeries})
	}
	return pairs
}

// EffectivePolicy returns the entity policy, or the owner's default when
// the entity has none
func (s *Settings) EffectivePolicy(entity QualityPolicy) QualityPolicy {
	if entity != "" {
		return ParseQualityPolicy(string(entity))
	}
	return ParseQualityPolicy(string(s.QualityPolicy))
}
