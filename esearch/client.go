// Package esearch retrieves identifier lists from the NCBI ESearch E-utility.
//
// The fetcher pages through a search with retmax/retstart until the reported
// Count has been consumed, pausing a fixed interval between requests. It does
// not retry: any failure aborts the whole fetch and nothing partial is
// returned.
package esearch

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/wizenheimer/cooccur/metrics"
)

var (
	ErrStatus            = errors.New("esearch: unexpected HTTP status")
	ErrMalformedResponse = errors.New("esearch: malformed response")
	ErrSearch            = errors.New("esearch: search reported an error")
)

// Client polls an ESearch endpoint.
type Client struct {
	config     Config
	httpClient *http.Client
	logger     *slog.Logger
	metrics    *metrics.Metrics
	sleep      func(ctx context.Context, d time.Duration) error
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets the logger; the default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithMetrics enables Prometheus instrumentation.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// NewClient creates a fetcher. cfg is checked with Validate.
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c := &Client{
		config:     cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     slog.Default(),
		sleep:      sleepContext,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "esearch")
	return c, nil
}

// Fetch runs the search described by query and returns every identifier in
// the order the pages were served. query is not modified.
//
// Loop, with count starting at 1 so the first page is always requested:
//
//	retstart = 0
//	while retstart < count:
//	    page  = GET(query + retmax + retstart)
//	    count = page.Count
//	    ids  += page.IdList
//	    retstart += retmax
//	    sleep (unless this was the last page)
func (c *Client) Fetch(ctx context.Context, query url.Values) ([]string, error) {
	params := c.baseParams(query)

	var ids []string
	count := 1
	for retstart := 0; retstart < count; retstart += c.config.RetMax {
		if retstart > 0 {
			if err := c.sleep(ctx, c.config.Sleep); err != nil {
				return nil, err
			}
		}

		params.Set("retstart", strconv.Itoa(retstart))
		page, err := c.fetchPage(ctx, params)
		if err != nil {
			return nil, fmt.Errorf("retstart %d: %w", retstart, err)
		}

		count = page.count
		ids = append(ids, page.ids...)
		c.metrics.ObserveIDs(len(page.ids))
		c.logger.Debug("fetched page",
			slog.Int("retstart", retstart),
			slog.Int("ids", len(page.ids)),
			slog.Int("count", count))
	}

	if ids == nil {
		ids = []string{}
	}
	return ids, nil
}

// baseParams copies query and adds paging and identification parameters
func (c *Client) baseParams(query url.Values) url.Values {
	params := make(url.Values, len(query)+5)
	for key, values := range query {
		params[key] = append([]string(nil), values...)
	}
	params.Set("retmax", strconv.Itoa(c.config.RetMax))
	if c.config.APIKey != "" {
		params.Set("api_key", c.config.APIKey)
	}
	if c.config.Email != "" {
		params.Set("email", c.config.Email)
	}
	if c.config.Tool != "" {
		params.Set("tool", c.config.Tool)
	}
	return params
}

type page struct {
	count int
	ids   []string
}

// fetchPage issues one GET and decodes the eSearchResult body
func (c *Client) fetchPage(ctx context.Context, params url.Values) (*page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.BaseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.ObserveRequest(0, time.Since(start))
		return nil, fmt.Errorf("failed to fetch page: %w", err)
	}
	defer resp.Body.Close()
	c.metrics.ObserveRequest(resp.StatusCode, time.Since(start))

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: %d: %s", ErrStatus, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var result searchResult
	if err := xml.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if result.Error != "" {
		return nil, fmt.Errorf("%w: %s", ErrSearch, result.Error)
	}
	if result.Count == nil {
		return nil, fmt.Errorf("%w: missing Count", ErrMalformedResponse)
	}
	count, err := strconv.Atoi(strings.TrimSpace(*result.Count))
	if err != nil || count < 0 {
		return nil, fmt.Errorf("%w: invalid Count %q", ErrMalformedResponse, *result.Count)
	}

	ids := make([]string, 0, len(result.IDs))
	for _, id := range result.IDs {
		ids = append(ids, strings.TrimSpace(id))
	}
	return &page{count: count, ids: ids}, nil
}

// sleepContext waits for d or until ctx is done
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
