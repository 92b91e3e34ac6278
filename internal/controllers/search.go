package controllers

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/amaumene/reconcilarr/internal/metrics"
	"github.com/amaumene/reconcilarr/internal/models"
	"github.com/amaumene/reconcilarr/internal/utils"
	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var errNoResults = errors.New("no search results")

// RetryPolicy controls how an empty or failed search is retried
type RetryPolicy struct {
	Retries int           // extra attempts after the first
	Delay   time.Duration // constant delay between attempts
	Timeout time.Duration // per-attempt timeout
}

// DefaultRetryPolicy retries twice, 1.5s apart, 30s per attempt
var DefaultRetryPolicy = RetryPolicy{
	Retries: 2,
	Delay:   1500 * time.Millisecond,
	Timeout: 30 * time.Second,
}

// SearchQuery is one title lookup across all backends
type SearchQuery struct {
	Query    string
	Category models.Category
	Year     int // movies only; candidates naming another year are dropped
}

// SearchController fans a query out to the configured search backends
type SearchController struct {
	searchers []Searcher
	blacklist *utils.Blacklist
	policy    RetryPolicy
	logger    *logrus.Logger
}

// NewSearchController creates a new search controller
func NewSearchController(searchers []Searcher, blacklist *utils.Blacklist, policy RetryPolicy, logger *logrus.Logger) *SearchController {
	return &SearchController{
		searchers: searchers,
		blacklist: blacklist,
		policy:    policy,
		logger:    logger,
	}
}

// Search queries every backend, merges and filters the results. An empty
// result is retried per the retry policy; if every attempt comes back
// empty the result is empty with a nil error. An error is only returned
// when the last attempt failed on every backend.
func (c *SearchController) Search(ctx context.Context, q SearchQuery) ([]models.SearchCandidate, error) {
	ctx, span := tracer.Start(ctx, "search", trace.WithAttributes(
		attribute.String("query", q.Query),
		attribute.String("category", string(q.Category)),
	))
	defer span.End()

	if len(c.searchers) == 0 {
		return nil, errors.New("no search backends configured")
	}

	var results []models.SearchCandidate
	attempt := 0
	operation := func() error {
		attempt++
		found, err := c.searchOnce(ctx, q)
		if err != nil {
			c.logger.WithError(err).WithFields(logrus.Fields{
				"query":   q.Query,
				"attempt": attempt,
			}).Warn("Search attempt failed")
			return err
		}
		if len(found) == 0 {
			c.logger.WithFields(logrus.Fields{
				"query":   q.Query,
				"attempt": attempt,
			}).Debug("Search returned no usable results")
			return errNoResults
		}
		results = found
		return nil
	}

	b := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(c.policy.Delay), uint64(c.policy.Retries)),
		ctx,
	)
	err := backoff.Retry(operation, b)
	if errors.Is(err, errNoResults) {
		c.logger.WithField("query", q.Query).Info("Search completed with no results")
		return nil, nil
	}
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("search failed: %w", err)
	}

	c.logger.WithFields(logrus.Fields{
		"query":      q.Query,
		"candidates": len(results),
		"attempts":   attempt,
	}).Info("Search completed")
	return results, nil
}

// searchOnce runs one attempt across all backends concurrently. Results
// are merged in backend order.
func (c *SearchController) searchOnce(ctx context.Context, q SearchQuery) ([]models.SearchCandidate, error) {
	timeout := c.policy.Timeout
	if timeout <= 0 {
		timeout = DefaultRetryPolicy.Timeout
	}
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	perBackend := make([][]models.SearchCandidate, len(c.searchers))
	errs := make([]error, len(c.searchers))

	var wg sync.WaitGroup
	for i, s := range c.searchers {
		wg.Add(1)
		go func(i int, s Searcher) {
			defer wg.Done()
			found, err := s.Search(attemptCtx, q.Query, q.Category)
			if err != nil {
				metrics.Searches.WithLabelValues(s.Name(), "error").Inc()
				errs[i] = fmt.Errorf("%s: %w", s.Name(), err)
				return
			}
			outcome := "ok"
			if len(found) == 0 {
				outcome = "empty"
			}
			metrics.Searches.WithLabelValues(s.Name(), outcome).Inc()
			perBackend[i] = found
		}(i, s)
	}
	wg.Wait()

	failed := 0
	var merged []models.SearchCandidate
	for i := range c.searchers {
		if errs[i] != nil {
			failed++
			c.logger.WithError(errs[i]).Warn("Search backend failed")
			continue
		}
		merged = append(merged, perBackend[i]...)
	}
	if failed == len(c.searchers) {
		return nil, errors.Join(errs...)
	}

	return c.filter(merged, q), nil
}

// filter drops blacklisted candidates and, for movies, candidates naming a
// different year
func (c *SearchController) filter(candidates []models.SearchCandidate, q SearchQuery) []models.SearchCandidate {
	kept, dropped := c.blacklist.Filter(candidates)
	for title, term := range dropped {
		c.logger.WithFields(logrus.Fields{
			"title": title,
			"term":  term,
		}).Debug("Candidate blacklisted")
	}

	if q.Year == 0 {
		return kept
	}

	filtered := kept[:0]
	for _, candidate := range kept {
		year := utils.ExtractYear(candidate.Title)
		if year != 0 && year != q.Year {
			c.logger.WithFields(logrus.Fields{
				"title":      candidate.Title,
				"found_year": year,
				"movie_year": q.Year,
			}).Debug("Skipping candidate due to year mismatch")
			continue
		}
		filtered = append(filtered, candidate)
	}
	return filtered
}
