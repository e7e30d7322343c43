// Package recordstore implements the entity record store API client.
// This package handles all communication with the membership entity store,
// including listing education records by category and writing category
// updates back.
package recordstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/memberhub/member-records/internal/domain/education"
	"github.com/memberhub/member-records/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// ClientConfig contains configuration for the record store client.
type ClientConfig struct {
	// BaseURL is the entity store base URL
	BaseURL string

	// APIKey authenticates this backend against the store
	APIKey string

	// Timeout is the HTTP request timeout
	Timeout time.Duration

	// PageSize is the page size for listing requests
	PageSize int

	// RateLimiterConfig for API rate limiting
	RateLimiterConfig RateLimiterConfig

	// CircuitBreakerConfig for fault tolerance
	CircuitBreakerConfig CircuitBreakerConfig

	// Logger for structured logging
	Logger *slog.Logger

	// Debug enables debug logging
	Debug bool
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig(baseURL string) ClientConfig {
	return ClientConfig{
		BaseURL:              baseURL,
		Timeout:              30 * time.Second,
		PageSize:             100,
		RateLimiterConfig:    DefaultRateLimiterConfig(),
		CircuitBreakerConfig: DefaultCircuitBreakerConfig(),
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// CLIENT
// ══════════════════════════════════════════════════════════════════════════════

// Client is the entity record store API client.
type Client struct {
	config         ClientConfig
	httpClient     *http.Client
	logger         *slog.Logger
	rateLimiter    *RateLimiter
	circuitBreaker *CircuitBreaker
	retrier        *retry.Retrier
	mapper         *Mapper
}

// NewClient creates a new record store client.
func NewClient(config ClientConfig) *Client {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.PageSize <= 0 {
		config.PageSize = 100
	}

	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		logger:         config.Logger,
		rateLimiter:    NewRateLimiter(config.RateLimiterConfig),
		circuitBreaker: NewCircuitBreaker(config.CircuitBreakerConfig),
		retrier:        retry.RecordStoreRetrier(),
		mapper:         NewMapper(),
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// RECORD OPERATIONS
// ══════════════════════════════════════════════════════════════════════════════

// FindRecordsByCategory fetches all education records in the given category,
// handling pagination. Structurally invalid rows are skipped and returned as
// a separate slice of errors so the caller can surface them.
func (c *Client) FindRecordsByCategory(ctx context.Context, category education.Category) ([]*education.Record, []error, error) {
	var (
		all      []*education.Record
		rejected []error
	)
	page := 1

	for {
		dtos, meta, err := c.listRecordsPage(ctx, RecordsRequestDTO{
			Category: category.String(),
			Page:     page,
			PerPage:  c.config.PageSize,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("find records in %s, page %d: %w", category, page, err)
		}

		records, bad := c.mapper.RecordsFromDTO(dtos)
		all = append(all, records...)
		rejected = append(rejected, bad...)

		if len(dtos) < c.config.PageSize || (meta != nil && page >= meta.TotalPages) {
			break
		}
		page++
	}

	return all, rejected, nil
}

// listRecordsPage fetches a single page of education records.
func (c *Client) listRecordsPage(ctx context.Context, req RecordsRequestDTO) ([]EducationRecordDTO, *Meta, error) {
	params := url.Values{}
	if req.Category != "" {
		params.Set("category", req.Category)
	}
	if req.Page > 0 {
		params.Set("page", strconv.Itoa(req.Page))
	}
	if req.PerPage > 0 {
		params.Set("per_page", strconv.Itoa(req.PerPage))
	}

	path := "/api/v1/education-records"
	if len(params) > 0 {
		path += "?" + params.Encode()
	}

	var response APIResponse[[]EducationRecordDTO]
	if err := c.doRequest(ctx, http.MethodGet, path, nil, &response); err != nil {
		return nil, nil, err
	}

	if !response.Success {
		return nil, nil, fmt.Errorf("api error: %s", response.Error)
	}

	return response.Data, response.Meta, nil
}

// UpdateRecordCategory writes a new category to a single education record.
func (c *Client) UpdateRecordCategory(ctx context.Context, id education.RecordID, category education.Category) error {
	path := fmt.Sprintf("/api/v1/education-records/%s/category", url.PathEscape(id.String()))

	body := UpdateCategoryDTO{Category: category.String()}

	var response APIResponse[EducationRecordDTO]
	if err := c.doRequest(ctx, http.MethodPatch, path, body, &response); err != nil {
		return fmt.Errorf("update record %s: %w", id, err)
	}

	if !response.Success {
		return fmt.Errorf("update record %s: api error: %s", id, response.Error)
	}

	return nil
}

// CountRecordsByCategory returns the total number of records in a category
// without fetching them, using the pagination metadata of a minimal page.
func (c *Client) CountRecordsByCategory(ctx context.Context, category education.Category) (int, error) {
	_, meta, err := c.listRecordsPage(ctx, RecordsRequestDTO{
		Category: category.String(),
		Page:     1,
		PerPage:  1,
	})
	if err != nil {
		return 0, fmt.Errorf("count records in %s: %w", category, err)
	}

	if meta == nil {
		return 0, fmt.Errorf("count records in %s: store returned no pagination metadata", category)
	}

	return meta.TotalCount, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HTTP REQUEST HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// doRequest performs an HTTP request with rate limiting, circuit breaking,
// and retries.
func (c *Client) doRequest(ctx context.Context, method, path string, body any, result any) error {
	if err := c.circuitBreaker.Allow(); err != nil {
		return fmt.Errorf("circuit breaker: %w", err)
	}

	err := c.retrier.Do(ctx, func(ctx context.Context) error {
		if err := c.rateLimiter.Allow(ctx); err != nil {
			return retry.Permanent(fmt.Errorf("rate limiter: %w", err))
		}

		err := c.doSingleRequest(ctx, method, path, body, result)
		if err == nil {
			return nil
		}

		var rateLimitErr *RateLimitError
		if errors.As(err, &rateLimitErr) {
			c.rateLimiter.RecordRateLimitHit()
			return retry.Retryable(err)
		}

		if isTransient(err) {
			return retry.Retryable(err)
		}
		return retry.Permanent(err)
	})

	if err != nil {
		c.circuitBreaker.RecordFailure()
		return err
	}

	c.circuitBreaker.RecordSuccess()
	return nil
}

// doSingleRequest performs a single HTTP request.
func (c *Client) doSingleRequest(ctx context.Context, method, path string, body any, result any) error {
	fullURL := c.config.BaseURL + path

	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, bodyReader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	if c.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	if c.config.Debug {
		c.logger.Debug("record store request", "method", method, "path", path)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		retryAfter := 60 * time.Second
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			if seconds, err := strconv.Atoi(ra); err == nil {
				retryAfter = time.Duration(seconds) * time.Second
			}
		}
		return &RateLimitError{
			RetryAfter: retryAfter,
			Message:    "rate limit exceeded",
		}
	}

	if resp.StatusCode >= 400 {
		var apiErr APIErrorDTO
		if err := json.Unmarshal(respBody, &apiErr); err == nil && apiErr.Message != "" {
			return &statusError{status: resp.StatusCode, err: &apiErr}
		}
		return &statusError{status: resp.StatusCode, err: fmt.Errorf("api error: status %d", resp.StatusCode)}
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}

	return nil
}

// statusError carries the HTTP status alongside the decoded store error.
type statusError struct {
	status int
	err    error
}

func (e *statusError) Error() string { return e.err.Error() }
func (e *statusError) Unwrap() error { return e.err }

// isTransient checks whether an error is worth retrying.
func isTransient(err error) bool {
	if err == nil {
		return false
	}

	var statusErr *statusError
	if errors.As(err, &statusErr) {
		return statusErr.status >= 500
	}

	// Network errors are generally retryable.
	msg := err.Error()
	for _, hint := range []string{"timeout", "connection refused", "temporary", "reset", "EOF"} {
		if strings.Contains(msg, hint) {
			return true
		}
	}
	return false
}

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH AND STATUS
// ══════════════════════════════════════════════════════════════════════════════

// IsHealthy checks if the entity store is reachable.
func (c *Client) IsHealthy(ctx context.Context) bool {
	var response APIResponse[map[string]any]
	err := c.doSingleRequest(ctx, http.MethodGet, "/health", nil, &response)
	return err == nil && response.Success
}

// ClientStatus is a point-in-time view of the client's protective machinery.
type ClientStatus struct {
	RateLimiter    RateLimiterStatus
	CircuitBreaker CircuitState
}

// Status returns the current status of the client.
func (c *Client) Status() ClientStatus {
	return ClientStatus{
		RateLimiter:    c.rateLimiter.Status(),
		CircuitBreaker: c.circuitBreaker.State(),
	}
}

// Reset resets the rate limiter and circuit breaker.
func (c *Client) Reset() {
	c.rateLimiter.Reset()
	c.circuitBreaker.Reset()
}
