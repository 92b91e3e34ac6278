package utils

import (
	"io/fs"
	"path/filepath"
	"strings"
)

var videoExtensions = map[string]bool{
	".mp4": true, ".mkv": true, ".avi": true, ".mov": true, ".wmv": true,
	".flv": true, ".webm": true, ".m4v": true, ".mpg": true, ".mpeg": true,
	".m2ts": true, ".ts": true, ".vob": true, ".divx": true, ".xvid": true,
}

// Folders that never hold the main feature
var skippedDirs = map[string]bool{
	"sample":      true,
	"samples":     true,
	"subs":        true,
	"subtitles":   true,
	"extras":      true,
	"featurettes": true,
}

// IsVideoFile reports whether the name carries a known video extension
func IsVideoFile(name string) bool {
	return videoExtensions[strings.ToLower(filepath.Ext(name))]
}

// IsSkippedDir reports whether a directory name is a non-content folder
func IsSkippedDir(name string) bool {
	return skippedDirs[strings.ToLower(name)]
}

// StripVideoExtension removes the extension only when it is a video one,
// so "Movie.2020.1080p" keeps its last dotted segment
func StripVideoExtension(name string) string {
	if IsVideoFile(name) {
		return strings.TrimSuffix(name, filepath.Ext(name))
	}
	return name
}

// WalkVideoFiles calls fn for every video file below root, skipping
// non-content folders and hidden entries. An error reading root itself is
// returned; errors deeper in the tree skip that entry.
func WalkVideoFiles(root string, fn func(path string, info fs.FileInfo) error) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		name := d.Name()
		if d.IsDir() {
			if path != root && (IsSkippedDir(name) || strings.HasPrefix(name, ".")) {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(name, ".") || !IsVideoFile(name) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}
		return fn(path, info)
	})
}
