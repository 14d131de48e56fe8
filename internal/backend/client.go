// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/nexusai/nexus-tui/internal/auth"
	"github.com/nexusai/nexus-tui/internal/logging"
)

// Configuration constants for the backend API.
const (
	// DefaultTimeout is the default timeout for API requests. Sends block on
	// the model producing a full reply.
	DefaultTimeout = 120 * time.Second

	// MaxResponseSize is the maximum allowed response body size.
	MaxResponseSize = 10 * 1024 * 1024

	// MaxUploadSize is the largest document accepted for upload.
	MaxUploadSize = 20 * 1024 * 1024

	// apiPrefix is appended to the configured backend URL.
	apiPrefix = "/api"
)

// Error variables for backend failures.
var (
	// ErrUnauthorized indicates the token was rejected. The auth session has
	// already been invalidated when this is returned.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrNotFound indicates the session or resource does not exist.
	ErrNotFound = errors.New("not found")

	// ErrNetwork indicates the request never produced an HTTP response.
	ErrNetwork = errors.New("network error")

	// ErrUploadTooLarge indicates a document exceeded MaxUploadSize.
	ErrUploadTooLarge = errors.New("document too large")
)

// APIError represents any other non-2xx response from the backend.
type APIError struct {
	Status int
	Detail string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("backend error (HTTP %d): %s", e.Status, e.Detail)
	}
	return fmt.Sprintf("backend error (HTTP %d)", e.Status)
}

// Authenticator supplies the bearer token and receives the logout policy
// decision. *auth.Session implements it.
type Authenticator interface {
	Token() string
	InvalidateToken(token string, reason auth.LogoutReason)
}

// Client is a client for the chat backend's JSON API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	auth       Authenticator
	limiter    *rate.Limiter
	log        logrus.FieldLogger
	userAgent  string
}

// NewClient creates a client for the backend rooted at baseURL
// (for example "http://localhost:8000"). authn may be nil for
// unauthenticated use.
func NewClient(baseURL string, authn Authenticator) *Client {
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/") + apiPrefix,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		auth:       authn,
		log:        logging.Discard(),
		userAgent:  "nexus-tui/0.1.0",
	}
}

// WithTimeout sets the request timeout.
func (c *Client) WithTimeout(timeout time.Duration) *Client {
	c.httpClient.Timeout = timeout
	return c
}

// WithHTTPClient replaces the underlying HTTP client.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	return c
}

// WithRateLimit limits outgoing requests to rps with the given burst.
// rps <= 0 removes the limit.
func (c *Client) WithRateLimit(rps float64, burst int) *Client {
	if rps <= 0 {
		c.limiter = nil
		return c
	}
	if burst < 1 {
		burst = 1
	}
	c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	return c
}

// WithLogger sets the logger.
func (c *Client) WithLogger(log logrus.FieldLogger) *Client {
	c.log = logging.OrDiscard(log)
	return c
}

// WithUserAgent sets the User-Agent header.
func (c *Client) WithUserAgent(ua string) *Client {
	c.userAgent = ua
	return c
}

// BaseURL returns the API root including the /api prefix.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// =============================================================================
// REQUEST PLUMBING
// =============================================================================

// doJSON sends in (if non-nil) as a JSON body and decodes the response into
// out (if non-nil).
func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	contentType := ""
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
		contentType = "application/json"
	}
	return c.do(ctx, method, path, body, contentType, out)
}

// do performs a single request. It is the only place responses are
// classified, and the only place a 401 triggers the logout policy.
func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	sent := c.setHeaders(req, contentType)

	log := c.log.WithFields(logrus.Fields{"method": method, "path": path})
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.WithError(err).Debug("backend request failed")
		return fmt.Errorf("%w: %s %s: %w", ErrNetwork, method, path, err)
	}
	defer resp.Body.Close()
	log = log.WithFields(logrus.Fields{"status": resp.StatusCode, "duration": time.Since(start)})
	log.Debug("backend response")

	data, err := readResponse(resp)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %w", ErrNetwork, method, path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.handleErrorResponse(log, sent, resp.StatusCode, data)
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse response from %s %s: %w", method, path, err)
	}
	return nil
}

// setHeaders sets the bearer token and standard headers. It returns the
// token sent, if any.
func (c *Client) setHeaders(req *http.Request, contentType string) string {
	var token string
	if c.auth != nil {
		token = c.auth.Token()
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	return token
}

// readResponse reads the response body with size limits to prevent memory exhaustion.
func readResponse(resp *http.Response) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if int64(len(body)) > MaxResponseSize {
		return nil, fmt.Errorf("response exceeded maximum size of %d bytes", MaxResponseSize)
	}
	return body, nil
}

// handleErrorResponse converts HTTP error responses to Go errors. A 401
// invalidates the session only if it still holds the token that was sent.
func (c *Client) handleErrorResponse(log logrus.FieldLogger, sent string, status int, body []byte) error {
	detail := errorDetail(body)
	switch status {
	case http.StatusUnauthorized:
		log.Warn("backend rejected token")
		if c.auth != nil {
			c.auth.InvalidateToken(sent, auth.ReasonUnauthorized)
		}
		if detail != "" {
			return fmt.Errorf("%w: %s", ErrUnauthorized, detail)
		}
		return ErrUnauthorized
	case http.StatusNotFound:
		if detail != "" {
			return fmt.Errorf("%w: %s", ErrNotFound, detail)
		}
		return ErrNotFound
	default:
		return &APIError{Status: status, Detail: detail}
	}
}

// errorDetail extracts {"detail": ...} or {"error": ...} from an error body,
// falling back to the raw text.
func errorDetail(body []byte) string {
	var parsed struct {
		Detail json.RawMessage `json:"detail"`
		Error  string          `json:"error"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil {
		if len(parsed.Detail) > 0 {
			var s string
			if json.Unmarshal(parsed.Detail, &s) == nil {
				return s
			}
			return string(parsed.Detail)
		}
		if parsed.Error != "" {
			return parsed.Error
		}
	}
	text := strings.TrimSpace(string(body))
	if len(text) > 200 {
		text = text[:200]
	}
	return text
}

// =============================================================================
// MULTIPART
// =============================================================================

// multipartFile builds a multipart body with a single file field.
func multipartFile(field, filename string, r io.Reader) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile(field, filename)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create form file: %w", err)
	}
	n, err := io.Copy(part, io.LimitReader(r, MaxUploadSize+1))
	if err != nil {
		return nil, "", fmt.Errorf("failed to read document: %w", err)
	}
	if n > MaxUploadSize {
		return nil, "", fmt.Errorf("%w: limit is %d bytes", ErrUploadTooLarge, MaxUploadSize)
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to finish form: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}

func escape(id string) string {
	return url.PathEscape(id)
}
