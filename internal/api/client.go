// Package api is the HTTP client for the solve game backend.
package api

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

	"github.com/google/uuid"

	"github.com/pavelanni/cotgame/internal/model"
)

// UnknownErrorMessage is used when no message can be extracted from a failure.
const UnknownErrorMessage = "unknown error"

// DefaultBaseURL is used when no base URL is configured.
const DefaultBaseURL = "http://localhost:8081"

// DefaultTimeout bounds each request unless WithTimeout says otherwise.
const DefaultTimeout = 30 * time.Second

// RequestFailedError is returned for every non-2xx response and every
// network or decoding failure.
type RequestFailedError struct {
	Message    string
	StatusCode int // 0 when no response was received
	Err        error
}

func (e *RequestFailedError) Error() string {
	return e.Message
}

func (e *RequestFailedError) Unwrap() error {
	return e.Err
}

// IsRequestFailed reports whether err is a *RequestFailedError and returns it.
func IsRequestFailed(err error) (*RequestFailedError, bool) {
	var rf *RequestFailedError
	if errors.As(err, &rf) {
		return rf, true
	}
	return nil, false
}

// Client talks to the backend API.
type Client struct {
	baseURL    string
	token      string
	userAgent  string
	timeout    time.Duration
	httpClient *http.Client
}

// Option configures the client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithTimeout sets the request timeout. A client passed to WithHTTPClient
// is copied, never modified.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.timeout = timeout
	}
}

// WithToken sends the token as a bearer credential on every request.
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// New creates a client for baseURL. An empty baseURL means DefaultBaseURL.
func New(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{baseURL: strings.TrimRight(baseURL, "/")}

	for _, opt := range opts {
		opt(c)
	}

	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	if c.timeout > 0 {
		hc := *c.httpClient
		hc.Timeout = c.timeout
		c.httpClient = &hc
	}

	return c
}

// BaseURL returns the configured base URL without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Do sends a JSON request and decodes a 2xx JSON response into out.
// body and out may be nil. It never retries.
func (c *Client) Do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	requestID := uuid.NewString()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		slog.Debug("request failed", "method", method, "path", path, "request_id", requestID, "error", err)
		return &RequestFailedError{Message: UnknownErrorMessage, Err: err}
	}
	defer resp.Body.Close()

	slog.Debug("api response", "method", method, "path", path, "status", resp.StatusCode, "request_id", requestID)

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &RequestFailedError{Message: UnknownErrorMessage, StatusCode: resp.StatusCode, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errorFromBody(resp.StatusCode, respBody)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return &RequestFailedError{
			Message:    UnknownErrorMessage,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("decode response: %w", err),
		}
	}
	return nil
}

func errorFromBody(status int, body []byte) error {
	var er model.ErrorResponse
	if err := json.Unmarshal(body, &er); err != nil {
		return &RequestFailedError{
			Message:    UnknownErrorMessage,
			StatusCode: status,
			Err:        fmt.Errorf("HTTP %d: decode error body: %w", status, err),
		}
	}
	msg := strings.TrimSpace(er.Message)
	if msg == "" {
		return &RequestFailedError{
			Message:    UnknownErrorMessage,
			StatusCode: status,
			Err:        fmt.Errorf("HTTP %d: %s", status, string(body)),
		}
	}
	return &RequestFailedError{Message: msg, StatusCode: status}
}
