package library

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amaumene/reconcilarr/internal/models"
	"github.com/amaumene/reconcilarr/internal/utils"
)

func writeSized(t *testing.T, path string, size int) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, make([]byte, size), 0644))
}

func TestTitleMatchesFilename(t *testing.T) {
	tests := []struct {
		title string
		file  string
		want  bool
	}{
		{"The Matrix", "The.Matrix.1999.1080p.BluRay.x264.mkv", true},
		{"The Matrix", "Matrix.Reloaded.2003.mkv", false},
		{"Shrek 2", "Shrek.2.2004.720p.mkv", true},
		{"Shrek 2", "Shrek (2001).mkv", false},
		{"Shrek 2", "Shrek.1.2001.mkv", false},
		{"Amélie", "amélie.2001.mkv", true},
		{"", "anything.mkv", false},
	}
	for _, tt := range tests {
		t.Run(tt.title+"/"+tt.file, func(t *testing.T) {
			assert.Equal(t, tt.want, TitleMatchesFilename(tt.title, tt.file))
		})
	}
}

func TestFindMovieFile(t *testing.T) {
	root := t.TempDir()
	writeSized(t, filepath.Join(root, "Heat (1995)", "Heat.1995.1080p.mkv"), 2048)
	writeSized(t, filepath.Join(root, "Heat (1995)", "sample-heat.mkv"), 10)
	writeSized(t, filepath.Join(root, "Alien.1979.mkv"), 10)

	scanner := NewScanner(1024, utils.NewTestLogger())
	ctx := context.Background()

	file, err := scanner.FindMovieFile(ctx, root, &models.MonitoredMovie{Title: "Heat"})
	require.NoError(t, err)
	require.NotNil(t, file)
	assert.Equal(t, filepath.Join(root, "Heat (1995)", "Heat.1995.1080p.mkv"), file.Path)
	assert.Equal(t, int64(2048), file.Size)

	// Below the minimum size
	file, err = scanner.FindMovieFile(ctx, root, &models.MonitoredMovie{Title: "Alien"})
	require.NoError(t, err)
	assert.Nil(t, file)

	_, err = scanner.FindMovieFile(ctx, filepath.Join(root, "missing"), &models.MonitoredMovie{Title: "Heat"})
	assert.ErrorIs(t, err, ErrLibraryUnavailable)
}

func TestFindEpisodeFile(t *testing.T) {
	root := t.TempDir()
	writeSized(t, filepath.Join(root, "Breaking Bad", "Season 1", "Breaking.Bad.S01E02.720p.mkv"), 10)
	writeSized(t, filepath.Join(root, "The Wire", "Season 1", "S01E02.mkv"), 10)

	scanner := NewScanner(0, utils.NewTestLogger())
	ctx := context.Background()
	bb := &models.MonitoredSeries{Title: "Breaking Bad", CreatedAt: time.Now()}

	file, err := scanner.FindEpisodeFile(ctx, root, bb, 1, 2)
	require.NoError(t, err)
	require.NotNil(t, file)
	assert.Equal(t, "Breaking.Bad.S01E02.720p.mkv", file.Name)

	file, err = scanner.FindEpisodeFile(ctx, root, bb, 1, 3)
	require.NoError(t, err)
	assert.Nil(t, file)

	// No title in the file name, matched through the show folder
	file, err = scanner.FindEpisodeFile(ctx, root, &models.MonitoredSeries{Title: "The Wire"}, 1, 2)
	require.NoError(t, err)
	require.NotNil(t, file)
	assert.Equal(t, filepath.Join(root, "The Wire", "Season 1", "S01E02.mkv"), file.Path)

	_, err = scanner.FindEpisodeFile(ctx, filepath.Join(root, "missing"), bb, 1, 2)
	assert.ErrorIs(t, err, ErrLibraryUnavailable)
}
