// Package client is the MediTrack client library: an HTTP client for the log
// API, the month cache, the query loader that keeps the cache fresh, and the
// optimistic mutation controller behind a day toggle.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"cloud.google.com/go/civil"

	"mediTrackAPI/internal/types/medication"
)

// ErrNetworkFailure means the request did not complete. The UI treats it like
// a store failure.
var ErrNetworkFailure = errors.New("network failure")

// APIError is a completed request answered with a non-2xx status.
type APIError struct {
	StatusCode int
	Body       medication.ErrorResponse
}

func (e *APIError) Error() string {
	if e.Body.Error == "" {
		return fmt.Sprintf("medication api: status %d", e.StatusCode)
	}
	return fmt.Sprintf("medication api: status %d: %s", e.StatusCode, e.Body.Error)
}

// LogAPI is the remote log store as the client sees it.
type LogAPI interface {
	ListLogs(ctx context.Context, userID string, start, end civil.Date) ([]medication.Log, error)
	UpsertLog(ctx context.Context, userID string, date civil.Date, taken bool) (*medication.Log, error)
}

type HTTPClient struct {
	baseURL string
	client  *http.Client
}

// NewHTTPClient talks to the API mounted at baseURL (e.g. http://localhost:3333).
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

func (c *HTTPClient) ListLogs(ctx context.Context, userID string, start, end civil.Date) ([]medication.Log, error) {
	q := url.Values{}
	q.Set("userId", userID)
	q.Set("startDate", start.String())
	q.Set("endDate", end.String())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/medication?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build list request: %w", err)
	}

	var logs []medication.Log
	if err := c.do(req, &logs); err != nil {
		return nil, err
	}
	return logs, nil
}

func (c *HTTPClient) UpsertLog(ctx context.Context, userID string, date civil.Date, taken bool) (*medication.Log, error) {
	body, err := json.Marshal(medication.UpsertRequest{
		UserID: userID,
		Date:   date.String(),
		Taken:  taken,
	})
	if err != nil {
		return nil, fmt.Errorf("encode upsert request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/medication", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build upsert request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var entry medication.Log
	if err := c.do(req, &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

func (c *HTTPClient) do(req *http.Request, out any) error {
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %w", ErrNetworkFailure, req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: reading response: %w", ErrNetworkFailure, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		// best effort: rate limiter and proxies answer in plain text
		_ = json.Unmarshal(data, &apiErr.Body)
		return apiErr
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s response: %w", req.URL.Path, err)
	}
	return nil
}
