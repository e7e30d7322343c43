// Package membership implements the client for the membership-settings API,
// the admin-facing service that owns the shared membership expiry date.
package membership

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/memberhub/member-records/pkg/retry"
	"github.com/memberhub/member-records/pkg/timeutil"
)

// ClientConfig contains configuration for the membership-settings client.
type ClientConfig struct {
	// BaseURL is the membership-settings API base URL
	BaseURL string

	// APIKey authenticates this backend against the API
	APIKey string

	// Timeout is the HTTP request timeout
	Timeout time.Duration

	// Logger for structured logging
	Logger *slog.Logger
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig(baseURL string) ClientConfig {
	return ClientConfig{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// settingsDTO is the wire form of the current membership settings.
// ExpiresOn is a plain calendar date; an empty string means no expiry
// date has been configured by the administrators.
type settingsDTO struct {
	ExpiresOn string `json:"membership_expires_on"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

// Client reads the current membership expiry date.
type Client struct {
	config     ClientConfig
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a new membership-settings client.
func NewClient(config ClientConfig) *Client {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		logger: config.Logger,
	}
}

// CurrentMembershipExpiry fetches the admin-configured membership expiry
// date. A nil time with a nil error means the date is not configured, which
// callers treat as "expiry already passed".
func (c *Client) CurrentMembershipExpiry(ctx context.Context) (*time.Time, error) {
	dto, err := retry.DoWithData(ctx, func(ctx context.Context) (settingsDTO, error) {
		return c.fetchSettings(ctx)
	},
		retry.WithMaxAttempts(3),
		retry.WithInitialDelay(100*time.Millisecond),
		retry.WithMaxDelay(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("fetch membership settings: %w", err)
	}

	if dto.ExpiresOn == "" {
		return nil, nil
	}

	expiresOn, err := timeutil.ParseDate(dto.ExpiresOn)
	if err != nil {
		return nil, fmt.Errorf("parse membership expiry %q: %w", dto.ExpiresOn, err)
	}

	// The date is inclusive: membership runs until the end of that day.
	endOfDay := timeutil.StartOfDay(expiresOn).Add(24*time.Hour - time.Nanosecond)
	return &endOfDay, nil
}

// fetchSettings performs a single settings request.
func (c *Client) fetchSettings(ctx context.Context) (settingsDTO, error) {
	var dto settingsDTO

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.BaseURL+"/api/v1/membership-settings/current", nil)
	if err != nil {
		return dto, retry.Permanent(fmt.Errorf("create request: %w", err))
	}

	req.Header.Set("Accept", "application/json")
	if c.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return dto, retry.Retryable(fmt.Errorf("http request: %w", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return dto, retry.Retryable(fmt.Errorf("read response: %w", err))
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		// No settings row yet. Same meaning as an empty expiry date.
		return settingsDTO{}, nil
	case resp.StatusCode >= 500:
		return dto, retry.Retryable(fmt.Errorf("api error: status %d", resp.StatusCode))
	case resp.StatusCode >= 400:
		return dto, retry.Permanent(fmt.Errorf("api error: status %d", resp.StatusCode))
	}

	if err := json.Unmarshal(body, &dto); err != nil {
		return dto, retry.Permanent(fmt.Errorf("unmarshal settings: %w", err))
	}

	return dto, nil
}

// IsHealthy checks if the membership-settings API is reachable.
func (c *Client) IsHealthy(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.BaseURL+"/health", nil)
	if err != nil {
		return false
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode == http.StatusOK
}
