// Package httputil provides an HTTP client for the Quiet Map RPC gateway.
package httputil

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/R3E-Network/quietmap/internal/app/domain/place"
	svcerrors "github.com/R3E-Network/quietmap/internal/errors"
)

const maxResponseBytes = 8 << 20

// Client calls /trpc procedures on a running server.
type Client struct {
	httpClient *http.Client
	baseURL    string
	maxRetries int
	backoff    time.Duration
}

// ClientConfig configures the client.
type ClientConfig struct {
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int

	// RetryBackoff is the wait before the first retry; it doubles per attempt.
	RetryBackoff time.Duration
}

// RPCError is an error envelope returned by the gateway.
type RPCError struct {
	Status  int
	Code    string
	Message string
	Issues  []svcerrors.Issue
}

func (e *RPCError) Error() string {
	msg := fmt.Sprintf("%s (%d): %s", e.Code, e.Status, e.Message)
	for _, issue := range e.Issues {
		path := issue.Path
		if path == "" {
			path = "input"
		}
		msg += fmt.Sprintf("\n  %s: %s", path, issue.Message)
	}
	return msg
}

// NewClient creates a new gateway client.
func NewClient(cfg ClientConfig) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	maxRetries := cfg.MaxRetries
	if maxRetries == 0 {
		maxRetries = 2
	}

	backoff := cfg.RetryBackoff
	if backoff <= 0 {
		backoff = 200 * time.Millisecond
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		maxRetries: maxRetries,
		backoff:    backoff,
	}
}

// Query invokes a query procedure with GET. Queries are retried on
// transient gateway failures; mutations never are.
func (c *Client) Query(ctx context.Context, procedure string, input, out any) error {
	path := "/trpc/" + procedure
	if input != nil {
		raw, err := json.Marshal(input)
		if err != nil {
			return fmt.Errorf("failed to marshal input: %w", err)
		}
		path += "?input=" + url.QueryEscape(string(raw))
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			if err := c.wait(ctx, attempt); err != nil {
				return err
			}
		}
		resp, err := c.do(ctx, http.MethodGet, path, nil)
		if err != nil {
			lastErr = err
		} else if isTransient(resp.StatusCode) {
			resp.Body.Close()
			lastErr = fmt.Errorf("request failed with status %d", resp.StatusCode)
		} else {
			return DecodeResponse(resp, out)
		}
	}
	return lastErr
}

// wait sleeps before retry number attempt, or returns early with the
// context's error.
func (c *Client) wait(ctx context.Context, attempt int) error {
	timer := time.NewTimer(c.backoff << (attempt - 1))
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Mutate invokes a mutation procedure with POST.
func (c *Client) Mutate(ctx context.Context, procedure string, input, out any) error {
	raw, err := json.Marshal(input)
	if err != nil {
		return fmt.Errorf("failed to marshal input: %w", err)
	}
	resp, err := c.do(ctx, http.MethodPost, "/trpc/"+procedure, raw)
	if err != nil {
		return err
	}
	return DecodeResponse(resp, out)
}

// CreatePlace calls createPlace. input is sent as-is so callers control which
// optional keys are present.
func (c *Client) CreatePlace(ctx context.Context, input map[string]any) (place.Place, error) {
	var out place.Place
	err := c.Mutate(ctx, "createPlace", input, &out)
	return out, err
}

// AddMeasurement calls addMeasurement.
func (c *Client) AddMeasurement(ctx context.Context, placeID string, value float64) (place.Measurement, error) {
	var out place.Measurement
	err := c.Mutate(ctx, "addMeasurement", map[string]any{"placeId": placeID, "value": value}, &out)
	return out, err
}

// GetPlaces calls getPlaces.
func (c *Client) GetPlaces(ctx context.Context) ([]place.Summary, error) {
	var out []place.Summary
	err := c.Query(ctx, "getPlaces", nil, &out)
	return out, err
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	return resp, nil
}

func isTransient(status int) bool {
	switch status {
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

type responseEnvelope struct {
	Result *struct {
		Data json.RawMessage `json:"data"`
	} `json:"result"`
	Error *struct {
		Message string `json:"message"`
		Data    struct {
			Code       string            `json:"code"`
			HTTPStatus int               `json:"httpStatus"`
			Issues     []svcerrors.Issue `json:"issues"`
		} `json:"data"`
	} `json:"error"`
}

// DecodeResponse decodes a gateway envelope. The result data is unmarshalled
// into target; an error envelope becomes an *RPCError.
func DecodeResponse(resp *http.Response, target any) error {
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}

	var env responseEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("request failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if env.Error != nil {
		status := env.Error.Data.HTTPStatus
		if status == 0 {
			status = resp.StatusCode
		}
		return &RPCError{
			Status:  status,
			Code:    env.Error.Data.Code,
			Message: env.Error.Message,
			Issues:  env.Error.Data.Issues,
		}
	}
	if env.Result == nil {
		return fmt.Errorf("response with status %d has neither result nor error", resp.StatusCode)
	}
	if target == nil {
		return nil
	}
	if err := json.Unmarshal(env.Result.Data, target); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
