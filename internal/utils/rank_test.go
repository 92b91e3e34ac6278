package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amaumene/reconcilarr/internal/models"
)

func intPtr(v int) *int { return &v }

func candidate(title string, seeders, priority *int) models.SearchCandidate {
	return models.SearchCandidate{Title: title, Seeders: seeders, Priority: priority}
}

func TestSelectBestFiltersByPolicy(t *testing.T) {
	candidates := []models.SearchCandidate{
		candidate("Movie 2020 720p", intPtr(100), nil),
		candidate("Movie 2020 1080p", intPtr(1), nil),
		candidate("Movie 2020 DVDRip", intPtr(500), nil),
	}

	tests := []struct {
		policy models.QualityPolicy
		want   string
	}{
		{models.PolicyAny, "Movie 2020 DVDRip"},
		{models.PolicyHD720p, "Movie 2020 720p"},
		{models.PolicyHD1080p, "Movie 2020 1080p"},
		{models.PolicyHD720p1080p, "Movie 2020 720p"},
		{models.PolicySD, "Movie 2020 DVDRip"},
	}
	for _, tt := range tests {
		t.Run(string(tt.policy), func(t *testing.T) {
			best, ok := SelectBest(candidates, tt.policy)
			require.True(t, ok)
			assert.Equal(t, tt.want, best.Title)
			assert.True(t, MatchesPolicy(best.Title, tt.policy))
		})
	}

	_, ok := SelectBest(candidates, models.PolicyUltraHD)
	assert.False(t, ok)
}

func TestSelectBestSeedersOrderIndependent(t *testing.T) {
	base := []models.SearchCandidate{
		candidate("a 1080p", intPtr(5), intPtr(1)),
		candidate("b 1080p", intPtr(50), intPtr(30)),
		candidate("c 1080p", intPtr(20), intPtr(1)),
		candidate("d 1080p", nil, intPtr(0)),
	}
	permutations := [][]int{{0, 1, 2, 3}, {3, 2, 1, 0}, {1, 0, 3, 2}, {2, 3, 0, 1}}

	for _, perm := range permutations {
		list := make([]models.SearchCandidate, 0, len(base))
		for _, i := range perm {
			list = append(list, base[i])
		}
		best, ok := SelectBest(list, models.PolicyAny)
		require.True(t, ok)
		assert.Equal(t, "b 1080p", best.Title)
	}
}

func TestSelectBestPriorityBreaksTies(t *testing.T) {
	candidates := []models.SearchCandidate{
		candidate("no priority", intPtr(10), nil),
		candidate("priority 5", intPtr(10), intPtr(5)),
		candidate("priority 1", intPtr(10), intPtr(1)),
	}

	best, ok := SelectBest(candidates, models.PolicyAny)
	require.True(t, ok)
	assert.Equal(t, "priority 1", best.Title)
}

func TestSelectBestNilSeedersCountAsZero(t *testing.T) {
	candidates := []models.SearchCandidate{
		candidate("nzb", nil, intPtr(1)),
		candidate("torrent", intPtr(0), intPtr(2)),
	}

	best, ok := SelectBest(candidates, models.PolicyAny)
	require.True(t, ok)
	assert.Equal(t, "nzb", best.Title)
}

func TestSelectBestEndToEndScenario(t *testing.T) {
	candidates := []models.SearchCandidate{
		candidate("Movie 2023 720p WEB", intPtr(5), nil),
		candidate("Movie 2023 1080p BluRay", intPtr(50), nil),
		candidate("Movie 2023 2160p", intPtr(20), nil),
	}

	best, ok := SelectBest(candidates, models.PolicyHD1080p)
	require.True(t, ok)
	assert.Equal(t, 50, best.SeederCount())
}

func TestSelectBestEmpty(t *testing.T) {
	_, ok := SelectBest(nil, models.PolicyAny)
	assert.False(t, ok)
}
