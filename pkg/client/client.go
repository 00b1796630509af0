package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/tendant/framecompare/pkg/compare"
)

// Client is an HTTP client for the framecompare worker
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a new client. Inline runs can take a long time, so the
// timeout is generous.
func New(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Minute,
		},
	}
}

// NewWithHTTPClient creates a new client with a custom HTTP client
func NewWithHTTPClient(baseURL string, httpClient *http.Client) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
	}
}

// StatusError is a non-success reply from the worker
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Body)
}

// Compare submits a comparison. An enqueued run comes back with status
// "pending"; an inline run comes back finished. A finished run that failed
// is returned together with a *StatusError.
func (c *Client) Compare(ctx context.Context, req compare.Request) (*compare.Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/compare", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var out compare.Response
	decodeErr := json.Unmarshal(data, &out)

	switch resp.StatusCode {
	case http.StatusOK, http.StatusAccepted:
		if decodeErr != nil {
			return nil, fmt.Errorf("failed to decode response: %w", decodeErr)
		}
		return &out, nil
	case http.StatusUnprocessableEntity:
		if decodeErr == nil {
			return &out, &StatusError{StatusCode: resp.StatusCode, Body: string(data)}
		}
	}
	return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(data)}
}

// Status returns the state of an enqueued run
func (c *Client) Status(ctx context.Context, runID string) (*compare.RunStatus, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/runs/"+url.PathEscape(runID), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(bodyBytes)}
	}

	var status compare.RunStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &status, nil
}

// Wait polls Status until the run leaves the pending and running states
func (c *Client) Wait(ctx context.Context, runID string, interval time.Duration) (*compare.RunStatus, error) {
	for {
		status, err := c.Status(ctx, runID)
		if err != nil {
			return nil, err
		}
		if status.State != "pending" && status.State != "running" {
			return status, nil
		}

		select {
		case <-time.After(interval):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}
