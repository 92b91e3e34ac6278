package models

// SearchCandidate is one search result (torrent or NZB). It is never
// persisted and only lives for one ranking decision.
type SearchCandidate struct {
	Protocol    Protocol
	Title       string
	Source      string // indexer label
	SourceID    string
	Priority    *int // lower is preferred, nil means lowest priority
	Size        int64
	Seeders     *int
	Leechers    *int
	DownloadURL string
	GUID        string
}

// DefaultSourcePriority is used when a candidate carries no priority
const DefaultSourcePriority = 25

// SeederCount returns the seeder count, treating nil as zero
func (c *SearchCandidate) SeederCount() int {
	if c.Seeders == nil {
		return 0
	}
	return *c.Seeders
}

// LeecherCount returns the leecher count, treating nil as zero
func (c *SearchCandidate) LeecherCount() int {
	if c.Leechers == nil {
		return 0
	}
	return *c.Leechers
}

// SourcePriority returns the priority, treating nil as the lowest priority
func (c *SearchCandidate) SourcePriority() int {
	if c.Priority == nil {
		return DefaultSourcePriority
	}
	return *c.Priority
}
