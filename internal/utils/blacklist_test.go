package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amaumene/reconcilarr/internal/models"
)

func TestLoadBlacklist(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blacklist.txt")
	require.NoError(t, os.WriteFile(path, []byte("# comment\nCAM\n\n  TeleSync \n"), 0644))

	bl, err := LoadBlacklist(path)
	require.NoError(t, err)
	assert.Equal(t, 2, bl.Len())

	blocked, term := bl.IsBlacklisted("Movie.2024.HDCAM.x264")
	assert.True(t, blocked)
	assert.Equal(t, "CAM", term)

	missing, err := LoadBlacklist(filepath.Join(t.TempDir(), "none.txt"))
	require.NoError(t, err)
	assert.Equal(t, 0, missing.Len())
}

func TestBlacklistFilter(t *testing.T) {
	bl := NewBlacklist("cam")
	kept, dropped := bl.Filter([]models.SearchCandidate{
		{Title: "Movie HDCAM"},
		{Title: "Movie 1080p BluRay"},
	})

	require.Len(t, kept, 1)
	assert.Equal(t, "Movie 1080p BluRay", kept[0].Title)
	assert.Equal(t, "cam", dropped["Movie HDCAM"])
}
