// Package library finds media that already exists in an owner's library
// directories.
package library

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/amaumene/reconcilarr/internal/models"
	"github.com/amaumene/reconcilarr/internal/utils"
	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
)

// ErrLibraryUnavailable is returned when a library root is missing or
// cannot be read
var ErrLibraryUnavailable = errors.New("library directory unavailable")

// Scanner looks up movie and episode files on disk
type Scanner struct {
	minMovieSize int64
	logger       *logrus.Logger
}

// NewScanner creates a scanner ignoring movie files smaller than
// minMovieSize bytes
func NewScanner(minMovieSize int64, logger *logrus.Logger) *Scanner {
	return &Scanner{
		minMovieSize: minMovieSize,
		logger:       logger,
	}
}

func checkRoot(root string) error {
	info, err := os.Stat(root)
	if err != nil {
		return fmt.Errorf("%s: %w: %w", root, ErrLibraryUnavailable, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory: %w", root, ErrLibraryUnavailable)
	}
	return nil
}

// FindMovieFile looks for the movie directly under root and one folder
// deep. Returns nil when nothing matches.
func (s *Scanner) FindMovieFile(ctx context.Context, root string, movie *models.MonitoredMovie) (*models.FileInfo, error) {
	if err := checkRoot(root); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", root, ErrLibraryUnavailable, err)
	}

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if isHidden(entry.Name()) {
			continue
		}
		path := filepath.Join(root, entry.Name())

		if !entry.IsDir() {
			if file := s.matchMovie(path, movie); file != nil {
				return file, nil
			}
			continue
		}

		children, err := os.ReadDir(path)
		if err != nil {
			// Unreadable movie folders are skipped
			continue
		}
		for _, child := range children {
			if child.IsDir() || isHidden(child.Name()) {
				continue
			}
			if file := s.matchMovie(filepath.Join(path, child.Name()), movie); file != nil {
				return file, nil
			}
		}
	}
	return nil, nil
}

func (s *Scanner) matchMovie(path string, movie *models.MonitoredMovie) *models.FileInfo {
	name := filepath.Base(path)
	if !utils.IsVideoFile(name) || !TitleMatchesFilename(movie.Title, name) {
		return nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil
	}
	if info.Size() < s.minMovieSize {
		s.logger.WithFields(logrus.Fields{
			"path": path,
			"size": humanize.Bytes(uint64(info.Size())),
		}).Debug("Skipping small file")
		return nil
	}
	s.logger.WithFields(logrus.Fields{
		"title": movie.Title,
		"path":  path,
	}).Debug("Found movie file")
	return &models.FileInfo{
		Path:    path,
		Name:    name,
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}
}

// FindEpisodeFile walks root for a video file carrying the season and
// episode whose guessed title, or top-level folder, matches the series
func (s *Scanner) FindEpisodeFile(ctx context.Context, root string, series *models.MonitoredSeries, season, episode int) (*models.FileInfo, error) {
	if err := checkRoot(root); err != nil {
		return nil, err
	}

	var found *models.FileInfo
	errFound := errors.New("found")
	known := []string{series.Title}

	err := utils.WalkVideoFiles(root, func(path string, info os.FileInfo) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		s2, e2, ok := utils.ExtractSeasonEpisode(info.Name())
		if !ok || s2 != season || e2 != episode {
			return nil
		}

		_, matched := utils.FuzzyMatchTitle(utils.ExtractSeriesTitleGuess(info.Name()), known)
		if !matched {
			if top := topFolder(root, path); top != "" {
				_, matched = utils.FuzzyMatchTitle(top, known)
			}
		}
		if !matched {
			return nil
		}

		found = &models.FileInfo{
			Path:    path,
			Name:    info.Name(),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		}
		return errFound
	})
	if errors.Is(err, errFound) {
		return found, nil
	}
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%s: %w: %w", root, ErrLibraryUnavailable, err)
	}
	return nil, nil
}

func topFolder(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return ""
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")
	if len(parts) < 2 {
		return ""
	}
	return parts[0]
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}

var nonWordRegex = regexp.MustCompile(`[^\p{L}\p{N}]+`)

func words(s string) []string {
	return strings.Fields(nonWordRegex.ReplaceAllString(strings.ToLower(s), " "))
}

// TitleMatchesFilename reports whether every word of the title appears as a
// whole word in the file name. Titles ending in a number ("Shrek 2") must
// appear with that number right after the rest of the title, so the first
// film of a series does not match its sequel.
func TitleMatchesFilename(title, fileName string) bool {
	titleWords := words(title)
	if len(titleWords) == 0 {
		return false
	}
	nameWords := words(utils.StripVideoExtension(fileName))

	last := titleWords[len(titleWords)-1]
	if isNumber(last) && len(titleWords) > 1 {
		return containsSequence(nameWords, titleWords)
	}

	present := make(map[string]bool, len(nameWords))
	for _, w := range nameWords {
		present[w] = true
	}
	for _, w := range titleWords {
		if len([]rune(w)) < 2 {
			continue
		}
		if !present[w] {
			return false
		}
	}
	return true
}

func containsSequence(haystack, needle []string) bool {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		match := true
		for j, w := range needle {
			if haystack[i+j] != w {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

func isNumber(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
