package models

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// MonitoredMovie represents a movie a user wants acquired and tracked
type MonitoredMovie struct {
	ID         uint64 `boltholdKey:"ID"`
	OwnerID    string `boltholdIndex:"OwnerID"`
	ExternalID int    // catalog (TMDB) id, unique per owner

	Title       string
	ReleaseDate *time.Time

	// Policies
	QualityPolicy       QualityPolicy // empty inherits the owner's settings
	MinimumAvailability Availability
	MonitorMode         string

	// Tracking
	Status          Status `boltholdIndex:"Status"`
	LastError       string
	DownloadingFrom *time.Time // set when a candidate was submitted

	// Last known file
	FileExists bool
	FilePath   string
	FileName   string
	FileSize   int64

	// Last submitted release
	ReleaseTitle string

	// Metadata
	CreatedAt   time.Time
	UpdatedAt   time.Time
	LastChecked *time.Time
}

// Year returns the release year, or 0 when unknown
func (m *MonitoredMovie) Year() int {
	if m.ReleaseDate == nil {
		return 0
	}
	return m.ReleaseDate.Year()
}

// SearchQuery builds the free-text query used for indexer searches
func (m *MonitoredMovie) SearchQuery() string {
	if year := m.Year(); year != 0 {
		return fmt.Sprintf("%s %d", m.Title, year)
	}
	return m.Title
}

// IsAvailable reports whether the movie may be searched at the given time
func (m *MonitoredMovie) IsAvailable(now time.Time) bool {
	if m.MinimumAvailability == AvailabilityAnnounced || m.ReleaseDate == nil {
		return true
	}
	return !m.ReleaseDate.After(now)
}

// MonitoredSeries represents a series with selected seasons and episodes
type MonitoredSeries struct {
	ID         uint64 `boltholdKey:"ID"`
	OwnerID    string `boltholdIndex:"OwnerID"`
	ExternalID int

	Title string

	QualityPolicy       QualityPolicy
	MinimumAvailability Availability
	MonitorMode         string

	SelectedSeasons  []int
	SelectedEpisodes []string // EpisodeKey values

	// Per-episode tracking keyed by EpisodeKey
	EpisodeFiles    map[string]string    // key -> on-disk path
	GrabbedEpisodes map[string]time.Time // key -> submission time

	Status    Status `boltholdIndex:"Status"`
	LastError string

	CreatedAt   time.Time
	UpdatedAt   time.Time
	LastChecked *time.Time
}

// EpisodeKey formats a season/episode pair as "season-episode"
func EpisodeKey(season, episode int) string {
	return fmt.Sprintf("%d-%d", season, episode)
}

// ParseEpisodeKey splits a "season-episode" key
func ParseEpisodeKey(key string) (season int, episode int, err error) {
	parts := strings.SplitN(key, "-", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid episode key %q", key)
	}
	season, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid season in episode key %q: %w", key, err)
	}
	episode, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid episode in episode key %q: %w", key, err)
	}
	return season, episode, nil
}

// SearchQuery builds the query for one episode, e.g. "Show S01E02"
func (s *MonitoredSeries) SearchQuery(season, episode int) string {
	return fmt.Sprintf("%s S%02dE%02d", s.Title, season, episode)
}

// SelectEpisodes replaces the episode selection. A downloaded series goes
// back to monitoring so newly selected episodes are acquired.
func (s *MonitoredSeries) SelectEpisodes(keys []string) {
	seen := make(map[string]bool, len(keys))
	selected := make([]string, 0, len(keys))
	seasons := make(map[int]bool)
	for _, key := range keys {
		season, _, err := ParseEpisodeKey(key)
		if err != nil || seen[key] {
			continue
		}
		seen[key] = true
		selected = append(selected, key)
		seasons[season] = true
	}
	sortEpisodeKeys(selected)

	s.SelectedEpisodes = selected
	s.SelectedSeasons = s.SelectedSeasons[:0]
	for season := range seasons {
		s.SelectedSeasons = append(s.SelectedSeasons, season)
	}
	sort.Ints(s.SelectedSeasons)

	if s.Status == StatusDownloaded {
		s.Status = StatusMonitoring
	}
}

// SelectAllEpisodes selects every episode given a season -> episode count map
func (s *MonitoredSeries) SelectAllEpisodes(episodeCounts map[int]int) {
	var keys []string
	for season, count := range episodeCounts {
		for episode := 1; episode <= count; episode++ {
			keys = append(keys, EpisodeKey(season, episode))
		}
	}
	s.SelectEpisodes(keys)
}

// UnselectAllEpisodes clears the season and episode selection
func (s *MonitoredSeries) UnselectAllEpisodes() {
	s.SelectedEpisodes = nil
	s.SelectedSeasons = nil
}

// HasEpisodeFile reports whether a file is recorded for the key
func (s *MonitoredSeries) HasEpisodeFile(key string) bool {
	_, ok := s.EpisodeFiles[key]
	return ok
}

// RecordEpisodeFile stores the on-disk path for an episode and clears any
// outstanding grab for it
func (s *MonitoredSeries) RecordEpisodeFile(key, path string) {
	if s.EpisodeFiles == nil {
		s.EpisodeFiles = make(map[string]string)
	}
	s.EpisodeFiles[key] = path
	delete(s.GrabbedEpisodes, key)
}

// MarkGrabbed records that a download was submitted for an episode
func (s *MonitoredSeries) MarkGrabbed(key string, at time.Time) {
	if s.GrabbedEpisodes == nil {
		s.GrabbedEpisodes = make(map[string]time.Time)
	}
	s.GrabbedEpisodes[key] = at
}

func sortEpisodeKeys(keys []string) {
	sort.Slice(keys, func(i, j int) bool {
		si, ei, _ := ParseEpisodeKey(keys[i])
		sj, ej, _ := ParseEpisodeKey(keys[j])
		if si != sj {
			return si < sj
		}
		return ei < ej
	})
}

// FileInfo describes a media file found on disk
type FileInfo struct {
	Path    string
	Name    string
	Size    int64
	ModTime time.Time
}
