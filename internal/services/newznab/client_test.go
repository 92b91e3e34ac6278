package newznab

import (
	"context"
	"encoding/xml"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/amaumene/reconcilarr/internal/models"
	"github.com/amaumene/reconcilarr/internal/utils"
)

func TestXMLParsing(t *testing.T) {
	// Sample Newznab XML response
	xmlData := `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:atom="http://www.w3.org/2005/Atom" xmlns:newznab="http://www.newznab.com/DTD/2010/feeds/attributes/">
  <channel>
    <title>Test Indexer</title>
    <item>
      <title>Test Movie 2024 1080p BluRay x264</title>
      <link>https://example.com/download/12345</link>
      <guid>https://example.com/details/12345</guid>
      <pubDate>Mon, 01 Jan 2024 12:00:00 +0000</pubDate>
      <newznab:attr name="size" value="8589934592"/>
      <newznab:attr name="category" value="2000"/>
    </item>
    <item>
      <title>Test Show S01E01 1080p WEB-DL</title>
      <link>https://example.com/download/12346</link>
      <guid>https://example.com/details/12346</guid>
      <pubDate>Tue, 02 Jan 2024 12:00:00 +0000</pubDate>
      <newznab:attr name="size" value="2147483648"/>
      <newznab:attr name="season" value="1"/>
      <newznab:attr name="episode" value="1"/>
      <newznab:attr name="category" value="5000"/>
    </item>
    <item>
      <title>Test Show S02 1080p WEB-DL Season Pack</title>
      <link>https://example.com/download/12347</link>
      <guid>https://example.com/details/12347</guid>
      <pubDate>Wed, 03 Jan 2024 12:00:00 +0000</pubDate>
      <newznab:attr name="size" value="21474836480"/>
      <newznab:attr name="season" value="2"/>
      <newznab:attr name="category" value="5000"/>
    </item>
  </channel>
</rss>`

	var response Feed
	err := xml.Unmarshal([]byte(xmlData), &response)
	if err != nil {
		t.Fatalf("Failed to parse XML: %v", err)
	}

	// Verify channel
	if response.Channel.Title != "Test Indexer" {
		t.Errorf("Expected channel title 'Test Indexer', got '%s'", response.Channel.Title)
	}

	// Verify items count
	if len(response.Channel.Items) != 3 {
		t.Fatalf("Expected 3 items, got %d", len(response.Channel.Items))
	}

	// Test movie item (no season/episode)
	movieItem := response.Channel.Items[0]
	if movieItem.Title != "Test Movie 2024 1080p BluRay x264" {
		t.Errorf("Movie title mismatch")
	}
	if movieItem.AttrInt64("size") != 8589934592 {
		t.Errorf("Movie size mismatch")
	}
	if movieItem.Attr("season") != "" {
		t.Errorf("Movie should not have season attribute")
	}

	// Test episode item
	episodeItem := response.Channel.Items[1]
	if season := episodeItem.Attr("season"); season != "1" {
		t.Errorf("Expected season 1, got %q", season)
	}
	if episode := episodeItem.Attr("episode"); episode != "1" {
		t.Errorf("Expected episode 1, got %q", episode)
	}
	if episodeItem.AttrInt64("size") != 2147483648 {
		t.Errorf("Episode size mismatch")
	}

	// Test season pack item (has season, no episode)
	seasonPackItem := response.Channel.Items[2]
	if season := seasonPackItem.Attr("season"); season != "2" {
		t.Errorf("Expected season 2, got %q", season)
	}
	if episode := seasonPackItem.Attr("episode"); episode != "" {
		t.Errorf("Season pack should not have episode attribute, got %q", episode)
	}
	if seasonPackItem.AttrInt64("size") != 21474836480 {
		t.Errorf("Season pack size mismatch")
	}
}

func TestConvertResults(t *testing.T) {
	client := &Client{name: "indexer", priority: 5}

	items := []Item{
		{
			Title:     "Movie Title 2024 1080p",
			GUID:      "movie-guid",
			Enclosure: Enclosure{URL: "https://example.com/get/1", Length: 42},
			Attributes: []Attribute{
				{Name: "size", Value: "1073741824"},
			},
		},
		{
			Title:     "Show S01E01",
			GUID:      "episode-guid",
			Enclosure: Enclosure{URL: "https://example.com/get/2", Length: 2147483648},
		},
	}

	results := client.convertResults(items)

	if len(results) != 2 {
		t.Fatalf("Expected 2 results, got %d", len(results))
	}

	// Size attribute wins over the enclosure length
	if results[0].Size != 1073741824 {
		t.Errorf("Movie size mismatch: %d", results[0].Size)
	}
	if results[0].DownloadURL != "https://example.com/get/1" {
		t.Errorf("Expected enclosure URL, got %s", results[0].DownloadURL)
	}
	if results[0].Protocol != models.ProtocolNZB || results[0].Source != "indexer" {
		t.Errorf("Unexpected protocol/source: %s/%s", results[0].Protocol, results[0].Source)
	}
	if results[0].SourcePriority() != 5 {
		t.Errorf("Expected priority 5, got %d", results[0].SourcePriority())
	}
	if results[0].Seeders != nil {
		t.Error("Usenet results should not carry seeders")
	}

	// Falls back to the enclosure length
	if results[1].Size != 2147483648 {
		t.Errorf("Episode size mismatch: %d", results[1].Size)
	}
}

func TestSearchUsesMovieEndpoint(t *testing.T) {
	var gotQuery url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		w.Write([]byte(`<rss><channel><item><title>Heat 1995 1080p</title><enclosure url="https://x/1" length="10"/></item></channel></rss>`))
	}))
	defer srv.Close()

	client, err := NewClient(Config{URL: srv.URL, APIKey: "key", Name: "test"}, utils.NewTestLogger())
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	results, err := client.Search(context.Background(), "Heat 1995", models.CategoryMovies)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("Expected 1 result, got %d", len(results))
	}
	if gotQuery.Get("t") != "movie" || gotQuery.Get("q") != "Heat 1995" || gotQuery.Get("cat") != "2000" {
		t.Errorf("Unexpected query: %v", gotQuery)
	}
	if gotQuery.Get("apikey") != "key" {
		t.Errorf("API key not sent")
	}

	_, err = client.Search(context.Background(), "Show S01E01", models.CategoryTV)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if gotQuery.Get("t") != "search" {
		t.Errorf("Expected generic search for TV, got %s", gotQuery.Get("t"))
	}
}
