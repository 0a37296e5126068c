// Package sam implements a client for the SAM.gov opportunities search API.
package sam

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/contractwatch/contract-fetcher/internal/metrics"
)

// DefaultBaseURL is the production search endpoint.
const DefaultBaseURL = "https://api.sam.gov/opportunities/v2/search"

// DefaultLimit caps the number of notices returned per search request.
const DefaultLimit = 200

const maxErrorBodyBytes = 2048

// RetryConfig bounds retries of transient search failures.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// Client issues search requests against the opportunities API.
type Client struct {
	baseURL     string
	apiKey      string
	httpClient  *http.Client
	userAgent   string
	limit       int
	noticeTypes string
	retry       RetryConfig
}

// Option customizes a Client.
type Option func(*Client)

// WithBaseURL overrides the search endpoint, typically for tests.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if strings.TrimSpace(baseURL) != "" {
			c.baseURL = baseURL
		}
	}
}

// WithHTTPClient substitutes the underlying HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithLimit sets the per-request result cap.
func WithLimit(limit int) Option {
	return func(c *Client) {
		if limit > 0 {
			c.limit = limit
		}
	}
}

// WithNoticeTypes restricts results to a comma-separated list of notice
// types, e.g. "Solicitation,Sources Sought".
func WithNoticeTypes(types string) Option {
	return func(c *Client) {
		c.noticeTypes = strings.TrimSpace(types)
	}
}

// WithUserAgent sets the User-Agent header on search requests.
func WithUserAgent(userAgent string) Option {
	return func(c *Client) {
		c.userAgent = userAgent
	}
}

// WithRetryConfig overrides the retry policy for transient failures.
func WithRetryConfig(cfg RetryConfig) Option {
	return func(c *Client) {
		c.retry = cfg
	}
}

// NewClient builds a search client with a 30 second request timeout and a
// small bounded retry budget.
func NewClient(apiKey string, opts ...Option) *Client {
	client := &Client{
		baseURL:    DefaultBaseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		userAgent:  "contract-fetcher/1.0",
		limit:      DefaultLimit,
		retry: RetryConfig{
			MaxAttempts: 3,
			BaseDelay:   250 * time.Millisecond,
			MaxDelay:    2 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// SearchParams scope one search request. An empty OrgCode searches across
// all organizations.
type SearchParams struct {
	OrgCode    string
	PostedFrom string
	PostedTo   string
}

func (c *Client) encode(p SearchParams) (url.Values, error) {
	if strings.TrimSpace(c.apiKey) == "" {
		return nil, errors.New("sam: API key is required")
	}
	values := url.Values{}
	values.Set("api_key", c.apiKey)
	if p.OrgCode != "" {
		values.Set("organizationCode", p.OrgCode)
	}
	values.Set("postedFrom", p.PostedFrom)
	values.Set("postedTo", p.PostedTo)
	values.Set("active", "true")
	values.Set("limit", strconv.Itoa(c.limit))
	if c.noticeTypes != "" {
		values.Set("noticeType", c.noticeTypes)
	}
	return values, nil
}

// Search returns the notices posted inside the date range for one
// organization code. A response without the opportunitiesData key yields an
// empty slice, not an error. Transient failures are retried up to the
// configured attempt budget.
func (c *Client) Search(ctx context.Context, params SearchParams) ([]RawOpportunity, error) {
	values, err := c.encode(params)
	if err != nil {
		return nil, err
	}
	query := values.Encode()

	maxAttempts := c.retry.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL, nil)
		if err != nil {
			return nil, fmt.Errorf("sam: build request: %w", err)
		}
		req.URL.RawQuery = query
		req.Header.Set("Accept", "application/json")
		if c.userAgent != "" {
			req.Header.Set("User-Agent", c.userAgent)
		}

		statusCode, body, err := c.doRequest(req)
		metrics.ObserveSearchRequest(params.OrgCode, statusCode)
		if err == nil && statusCode >= 200 && statusCode < 300 {
			var out searchResponse
			if err := json.Unmarshal(body, &out); err != nil {
				return nil, fmt.Errorf("sam: decode response: %w", err)
			}
			return out.OpportunitiesData, nil
		}

		if err != nil {
			lastErr = fmt.Errorf("sam: request failed: %w", err)
		} else {
			lastErr = &APIError{StatusCode: statusCode, Body: truncateBody(body)}
		}

		if !c.shouldRetry(statusCode, err) || attempt == maxAttempts {
			return nil, lastErr
		}
		if err := sleepWithContext(ctx, c.retryDelay(attempt)); err != nil {
			return nil, err
		}
	}
	return nil, lastErr
}

func (c *Client) doRequest(req *http.Request) (int, []byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, body, nil
}

func (c *Client) shouldRetry(statusCode int, err error) bool {
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return false
		}
		return true
	}
	switch statusCode {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

func (c *Client) retryDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return c.retry.BaseDelay
	}
	delay := c.retry.BaseDelay << (attempt - 1)
	if delay > c.retry.MaxDelay || delay <= 0 {
		delay = c.retry.MaxDelay
	}
	return delay
}

func sleepWithContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func truncateBody(body []byte) string {
	if len(body) > maxErrorBodyBytes {
		return string(body[:maxErrorBodyBytes])
	}
	return string(body)
}
