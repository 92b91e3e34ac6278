// Package gateway talks to the indexer/download-client gateway: it runs
// searches across the gateway's indexers and hands grabs to its download
// clients.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/amaumene/reconcilarr/internal/models"
	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
)

const defaultLimit = 100

// Config holds the gateway connection settings
type Config struct {
	URL     string
	APIKey  string
	Timeout time.Duration
}

// Result is one search result as returned by the gateway
type Result struct {
	Protocol    string `json:"protocol"`
	Title       string `json:"title"`
	Indexer     string `json:"indexer"`
	IndexerID   string `json:"indexerId"`
	Priority    *int   `json:"priority"`
	Size        int64  `json:"size"`
	Seeders     *int   `json:"seeders"`
	Leechers    *int   `json:"leechers"`
	DownloadURL string `json:"downloadUrl"`
	GUID        string `json:"guid"`
}

type searchResponse struct {
	Results []Result `json:"results"`
}

type grabRequest struct {
	Protocol    string `json:"protocol"`
	Title       string `json:"title"`
	DownloadURL string `json:"downloadUrl"`
	Indexer     string `json:"indexer"`
	Size        int64  `json:"size"`
}

type grabResponse struct {
	Success bool   `json:"success"`
	ID      string `json:"id"`
	Error   string `json:"error"`
}

// Client is the gateway HTTP client
type Client struct {
	http   *resty.Client
	logger *logrus.Logger
}

// NewClient creates a new gateway client
func NewClient(cfg Config, logger *logrus.Logger) (*Client, error) {
	if cfg.URL == "" {
		return nil, errors.New("gateway URL is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	client := resty.New().
		SetBaseURL(cfg.URL).
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", "reconcilarr/1.0")
	if cfg.APIKey != "" {
		client.SetHeader("X-Api-Key", cfg.APIKey)
	}

	return &Client{
		http:   client,
		logger: logger,
	}, nil
}

// Name identifies the backend in logs and metrics
func (c *Client) Name() string {
	return "gateway"
}

// Search runs a query across the gateway's indexers
func (c *Client) Search(ctx context.Context, query string, category models.Category) ([]models.SearchCandidate, error) {
	var body searchResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"query":       query,
			"categoryIds": string(category),
			"limit":       strconv.Itoa(defaultLimit),
		}).
		SetResult(&body).
		Get("/api/search")
	if err != nil {
		return nil, fmt.Errorf("gateway search request failed: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("gateway search returned status %d: %s", resp.StatusCode(), resp.String())
	}

	c.logger.WithFields(logrus.Fields{
		"query":   query,
		"results": len(body.Results),
	}).Debug("Gateway search completed")

	candidates := make([]models.SearchCandidate, 0, len(body.Results))
	for _, r := range body.Results {
		candidates = append(candidates, r.toCandidate())
	}
	return candidates, nil
}

func (r Result) toCandidate() models.SearchCandidate {
	protocol := models.ProtocolTorrent
	if r.Protocol == string(models.ProtocolNZB) || r.Protocol == "usenet" {
		protocol = models.ProtocolNZB
	}
	return models.SearchCandidate{
		Protocol:    protocol,
		Title:       r.Title,
		Source:      r.Indexer,
		SourceID:    r.IndexerID,
		Priority:    r.Priority,
		Size:        r.Size,
		Seeders:     r.Seeders,
		Leechers:    r.Leechers,
		DownloadURL: r.DownloadURL,
		GUID:        r.GUID,
	}
}

// SubmitDownload hands a candidate to the gateway's download client and
// returns the client's reference
func (c *Client) SubmitDownload(ctx context.Context, candidate models.SearchCandidate) (string, error) {
	var body grabResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(grabRequest{
			Protocol:    string(candidate.Protocol),
			Title:       candidate.Title,
			DownloadURL: candidate.DownloadURL,
			Indexer:     candidate.Source,
			Size:        candidate.Size,
		}).
		SetResult(&body).
		SetError(&body).
		Post("/api/downloadclients/grab")
	if err != nil {
		return "", fmt.Errorf("gateway grab request failed: %w", err)
	}
	if resp.IsError() || !body.Success {
		reason := body.Error
		if reason == "" {
			reason = fmt.Sprintf("status %d", resp.StatusCode())
		}
		return "", fmt.Errorf("download client rejected %q: %s", candidate.Title, reason)
	}
	if body.ID == "" {
		return "", fmt.Errorf("download client returned no reference for %q", candidate.Title)
	}

	c.logger.WithFields(logrus.Fields{
		"title":     candidate.Title,
		"client_id": body.ID,
	}).Debug("Gateway grab accepted")
	return body.ID, nil
}
