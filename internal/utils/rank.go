package utils

import (
	"strings"

	"github.com/amaumene/reconcilarr/internal/models"
)

// MatchesPolicy reports whether a title satisfies a quality policy
func MatchesPolicy(title string, policy models.QualityPolicy) bool {
	lower := strings.ToLower(title)
	has := func(keys ...string) bool {
		for _, k := range keys {
			if strings.Contains(lower, k) {
				return true
			}
		}
		return false
	}

	switch policy {
	case models.PolicyHD720p:
		return has("720p")
	case models.PolicyHD1080p:
		return has("1080p")
	case models.PolicyHD720p1080p:
		return has("720p", "1080p")
	case models.PolicyUltraHD:
		return has("2160p", "4k")
	case models.PolicySD:
		return !has("720p", "1080p", "2160p", "4k")
	default:
		return true
	}
}

// FilterByPolicy keeps the candidates whose title satisfies the policy
func FilterByPolicy(candidates []models.SearchCandidate, policy models.QualityPolicy) []models.SearchCandidate {
	filtered := make([]models.SearchCandidate, 0, len(candidates))
	for _, c := range candidates {
		if MatchesPolicy(c.Title, policy) {
			filtered = append(filtered, c)
		}
	}
	return filtered
}

// better orders candidates by:
// 1. Seeders (more is better, nil counts as zero)
// 2. Source priority (lower is better, nil counts as 25)
func better(a, b *models.SearchCandidate) bool {
	if a.SeederCount() != b.SeederCount() {
		return a.SeederCount() > b.SeederCount()
	}
	return a.SourcePriority() < b.SourcePriority()
}

// SelectBest applies the quality policy and picks one candidate. Equal
// candidates keep the earliest in input order.
func SelectBest(candidates []models.SearchCandidate, policy models.QualityPolicy) (*models.SearchCandidate, bool) {
	filtered := FilterByPolicy(candidates, policy)
	if len(filtered) == 0 {
		return nil, false
	}

	best := &filtered[0]
	for i := 1; i < len(filtered); i++ {
		if better(&filtered[i], best) {
			best = &filtered[i]
		}
	}
	chosen := *best
	return &chosen, true
}
