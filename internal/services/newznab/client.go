package newznab

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
)

// Feed is the RSS document returned by the Newznab API
type Feed struct {
	XMLName xml.Name `xml:"rss"`
	Channel struct {
		Title string `xml:"title"`
		Items []Item `xml:"item"`
	} `xml:"channel"`
}

// Item is a single search result
type Item struct {
	Title      string      `xml:"title"`
	Link       string      `xml:"link"` // details page, not the download
	GUID       string      `xml:"guid"`
	PubDate    string      `xml:"pubDate"`
	Enclosure  Enclosure   `xml:"enclosure"`
	Attributes []Attribute `xml:"attr"`
}

// Enclosure carries the NZB download link
type Enclosure struct {
	URL    string `xml:"url,attr"`
	Length int64  `xml:"length,attr"`
	Type   string `xml:"type,attr"`
}

// Attribute is a newznab:attr element (size, season, episode, ...)
type Attribute struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

// Attr returns the named attribute, or "" when absent
func (i Item) Attr(name string) string {
	for _, attr := range i.Attributes {
		if attr.Name == name {
			return attr.Value
		}
	}
	return ""
}

// AttrInt64 returns the named attribute as an int64, 0 when absent or invalid
func (i Item) AttrInt64(name string) int64 {
	v, _ := strconv.ParseInt(i.Attr(name), 10, 64)
	return v
}

// Config holds the connection settings of one Newznab indexer
type Config struct {
	URL      string
	APIKey   string
	Name     string // label reported as the candidate source
	Priority int    // lower is preferred
	Timeout  time.Duration
}

// Client queries one Newznab indexer
type Client struct {
	http     *resty.Client
	endpoint string
	apiKey   string
	name     string
	priority int
	logger   *logrus.Logger
}

// NewClient creates a new Newznab client
func NewClient(cfg Config, logger *logrus.Logger) (*Client, error) {
	if cfg.URL == "" {
		return nil, errors.New("newznab URL is required")
	}
	if cfg.APIKey == "" {
		return nil, errors.New("newznab API key is required")
	}
	base, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid newznab URL: %w", err)
	}
	if base.Path == "" || base.Path == "/" {
		base.Path = "/api"
	}
	if cfg.Name == "" {
		cfg.Name = "newznab"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	return &Client{
		http: resty.New().
			SetTimeout(cfg.Timeout).
			SetHeader("User-Agent", "reconcilarr/1.0"),
		endpoint: base.String(),
		apiKey:   cfg.APIKey,
		name:     cfg.Name,
		priority: cfg.Priority,
		logger:   logger,
	}, nil
}

// Name identifies the indexer in logs and metrics
func (c *Client) Name() string {
	return c.name
}

// query runs one API call. searchType is "search" for free text or
// "movie" for the movie endpoint; an empty category searches all.
func (c *Client) query(ctx context.Context, searchType, q, category string) ([]Item, error) {
	params := map[string]string{
		"t":      searchType,
		"apikey": c.apiKey,
		"q":      q,
	}
	if category != "" {
		params["cat"] = category
	}

	c.logger.WithFields(logrus.Fields{
		"indexer":     c.name,
		"search_type": searchType,
		"query":       q,
		"category":    category,
	}).Debug("Performing Newznab search")

	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(params).
		Get(c.endpoint)
	if err != nil {
		return nil, fmt.Errorf("newznab API request failed: %w", err)
	}
	if resp.IsError() {
		body := resp.String()
		if len(body) > 4096 {
			body = body[:4096]
		}
		return nil, fmt.Errorf("newznab API returned status %d: %s", resp.StatusCode(), strings.TrimSpace(body))
	}

	var feed Feed
	if err := xml.Unmarshal(resp.Body(), &feed); err != nil {
		return nil, fmt.Errorf("failed to parse XML response: %w", err)
	}

	c.logger.WithFields(logrus.Fields{
		"indexer": c.name,
		"count":   len(feed.Channel.Items),
	}).Debug("Newznab search completed")
	return feed.Channel.Items, nil
}
