// Package taskapi provides the HTTP client for the external task worker
// service that performs transcription, AI and media work and reports back via
// callbacks.
package taskapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/civora/civora-api/internal/config"
	"github.com/civora/civora-api/internal/domain"
)

// DispatchError carries the worker's HTTP status and response body when a
// dispatch is rejected or fails.
type DispatchError struct {
	TaskType   domain.TaskType
	StatusCode int
	Body       string
	Err        error
}

// Error implements the error interface for DispatchError.
func (e *DispatchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("dispatch of %s task failed: %v", e.TaskType, e.Err)
	}
	return fmt.Sprintf("dispatch of %s task failed: worker returned %d: %s", e.TaskType, e.StatusCode, e.Body)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *DispatchError) Unwrap() error {
	return e.Err
}

// Client calls the external worker's per-type endpoints with bearer auth.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a worker API client from configuration.
func NewClient(cfg config.WorkerConfig, logger *slog.Logger) *Client {
	return &Client{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		httpClient: http.DefaultClient,
		logger:     logger.With("component", "taskapi_client"),
	}
}

// Dispatch POSTs the request body to {baseURL}/{taskType}. Any 2xx response
// is success; the response body is ignored at dispatch time because results
// arrive later through the callback endpoint.
func (c *Client) Dispatch(ctx context.Context, taskType domain.TaskType, requestBody json.RawMessage) error {
	url := fmt.Sprintf("%s/%s", c.baseURL, taskType)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(requestBody))
	if err != nil {
		return &DispatchError{TaskType: taskType, Err: fmt.Errorf("failed to build request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	c.logger.Debug("dispatching task to worker", "task_type", taskType, "url", url)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &DispatchError{TaskType: taskType, Err: err}
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.logger.Warn("failed to close worker response body", "error", closeErr)
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Bounded read; the worker's error bodies are small but untrusted.
		body, readErr := io.ReadAll(io.LimitReader(resp.Body, 8192))
		if readErr != nil {
			body = []byte(fmt.Sprintf("<failed to read body: %v>", readErr))
		}
		return &DispatchError{
			TaskType:   taskType,
			StatusCode: resp.StatusCode,
			Body:       string(body),
		}
	}

	return nil
}
