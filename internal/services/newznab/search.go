package newznab

import (
	"context"
	"fmt"

	"github.com/amaumene/reconcilarr/internal/models"
)

// Search runs a free-text query in the given category. Movie queries use
// the movie endpoint, everything else the generic search.
func (c *Client) Search(ctx context.Context, query string, category models.Category) ([]models.SearchCandidate, error) {
	searchType := "search"
	if category == models.CategoryMovies {
		searchType = "movie"
	}

	items, err := c.query(ctx, searchType, query, string(category))
	if err != nil {
		return nil, fmt.Errorf("%s search failed: %w", c.name, err)
	}

	return c.convertResults(items), nil
}

// convertResults converts Newznab Items to search candidates. Usenet
// results carry no seeders.
func (c *Client) convertResults(items []Item) []models.SearchCandidate {
	results := make([]models.SearchCandidate, 0, len(items))
	priority := c.priority

	for _, item := range items {
		// Prefer the size attribute, fall back to the enclosure length
		size := item.AttrInt64("size")
		if size == 0 {
			size = item.Enclosure.Length
		}

		results = append(results, models.SearchCandidate{
			Protocol:    models.ProtocolNZB,
			Title:       item.Title,
			Source:      c.name,
			Priority:    &priority,
			Size:        size,
			DownloadURL: item.Enclosure.URL,
			GUID:        item.GUID,
		})
	}

	return results
}
