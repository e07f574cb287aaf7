// Package assistant provides the HTTP client for the upstream
// assistant service that produces incremental travel results.
package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

var (
	// ErrMissingProfile is returned before any request is issued when no
	// profile identifier is available.
	ErrMissingProfile = errors.New("profile id is required")
	// ErrUpstreamStatus wraps non-OK responses from the assistant.
	ErrUpstreamStatus = errors.New("assistant returned non-OK status")
)

// Config holds configuration for the assistant client.
type Config struct {
	BaseURL        string
	ConnectTimeout time.Duration
}

// DefaultConfig returns default client configuration.
func DefaultConfig() Config {
	return Config{
		ConnectTimeout: 5 * time.Second,
	}
}

// Client talks to the assistant's chat endpoint. Response bodies are
// incremental, so the underlying http.Client carries no global timeout;
// callers bound streams through the request context.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates an assistant client for the given base URL.
func NewClient(baseURL string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{},
		logger:     logger,
	}
}

// QueryRequest is the domain-agnostic chat request the assistant accepts.
type QueryRequest struct {
	ProfileID string   `json:"profile_id"`
	Message   string   `json:"message"`
	Domain    string   `json:"domain,omitempty"`
	SessionID string   `json:"session_id,omitempty"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
}

// Stream opens the incremental response for a query. The returned body
// yields SSE-framed JSON fragments and must be closed by the caller.
// A non-OK status fails here, before any stream exists.
func (c *Client) Stream(ctx context.Context, req QueryRequest) (io.ReadCloser, error) {
	if req.ProfileID == "" {
		return nil, ErrMissingProfile
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal query request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/assistant/chat", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create query request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("send query request: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.logger.Warn("failed to close error response body", "error", closeErr)
		}
		return nil, fmt.Errorf("%w: %d: %s", ErrUpstreamStatus, resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	return resp.Body, nil
}

// Health checks whether the assistant service is reachable.
func (c *Client) Health(ctx context.Context) error {
	cfg := DefaultConfig()
	ctx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("create health request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("assistant health check: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.logger.Warn("failed to close health response body", "error", closeErr)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %d", ErrUpstreamStatus, resp.StatusCode)
	}
	return nil
}
