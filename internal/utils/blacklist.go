package utils

import (
	"bufio"
	"os"
	"strings"

	"github.com/amaumene/reconcilarr/internal/models"
)

// Blacklist holds blacklist terms for filtering search candidates
type Blacklist struct {
	terms []string
}

// LoadBlacklist loads blacklist terms from a file
func LoadBlacklist(path string) (*Blacklist, error) {
	// If file doesn't exist, return empty blacklist
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return &Blacklist{terms: []string{}}, nil
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var terms []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		term := strings.TrimSpace(scanner.Text())
		if term != "" && !strings.HasPrefix(term, "#") {
			terms = append(terms, term)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return &Blacklist{terms: terms}, nil
}

// NewBlacklist builds a blacklist from in-memory terms
func NewBlacklist(terms ...string) *Blacklist {
	return &Blacklist{terms: terms}
}

// Len returns the number of terms
func (b *Blacklist) Len() int {
	return len(b.terms)
}

// IsBlacklisted checks if a title matches any blacklist term
// Returns (isBlacklisted, matchedTerm)
func (b *Blacklist) IsBlacklisted(title string) (bool, string) {
	if b == nil {
		return false, ""
	}
	titleLower := strings.ToLower(title)

	for _, term := range b.terms {
		termLower := strings.ToLower(term)
		if strings.Contains(titleLower, termLower) {
			return true, term
		}
	}

	return false, ""
}

// Filter drops blacklisted candidates and returns the kept ones along with
// the terms that caused each drop, keyed by candidate title
func (b *Blacklist) Filter(candidates []models.SearchCandidate) ([]models.SearchCandidate, map[string]string) {
	kept := make([]models.SearchCandidate, 0, len(candidates))
	dropped := make(map[string]string)
	for _, c := range candidates {
		if blocked, term := b.IsBlacklisted(c.Title); blocked {
			dropped[c.Title] = term
			continue
		}
		kept = append(kept, c)
	}
	return kept, dropped
}
