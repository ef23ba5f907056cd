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
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/invoicely-dev/invoicely/internal/cli/auth"
)

const (
	DefaultBaseURL   = "http://localhost:5000/api"
	defaultUserAgent = "invoicely-cli"
	defaultTimeout   = 30 * time.Second
	requestIDHeader  = "X-Request-ID"
)

// UnauthorizedEvent is emitted when an authenticated request comes back 401.
// By the time listeners run the credential has already been cleared.
type UnauthorizedEvent struct {
	Method    string
	Path      string
	RequestID string
}

// Client represents an HTTP client for the Invoicely API
type Client struct {
	baseURL    string
	httpClient *http.Client
	store      auth.TokenStore
	logger     zerolog.Logger
	validate   *validator.Validate
	userAgent  string

	mu        sync.RWMutex
	nextID    int
	listeners map[int]func(UnauthorizedEvent)
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithLogger sets the logger used for request tracing
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithUserAgent overrides the User-Agent header
func WithUserAgent(userAgent string) Option {
	return func(c *Client) {
		c.userAgent = userAgent
	}
}

// New creates a new API client. The store is the only place the client reads
// or clears the credential.
func New(baseURL string, store auth.TokenStore, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
		store:     store,
		logger:    zerolog.Nop(),
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		userAgent: defaultUserAgent,
		listeners: make(map[int]func(UnauthorizedEvent)),
	}

	// Report json field names in validation errors
	c.validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// BaseURL returns the API root the client talks to
func (c *Client) BaseURL() string {
	return c.baseURL
}

// OnUnauthorized registers fn to be called on every global 401. The returned
// func removes the listener.
func (c *Client) OnUnauthorized(fn func(UnauthorizedEvent)) func() {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}

// request describes one API call
type request struct {
	method string
	path   string
	query  url.Values
	body   any
	// public requests (login, register) never carry a credential and are
	// exempt from the global 401 policy
	public bool
}

// do sends req and decodes a JSON response into out (when out is non-nil)
func (c *Client) do(ctx context.Context, req request, out any) error {
	resp, err := c.send(ctx, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// doRaw sends req and returns the raw response body
func (c *Client) doRaw(ctx context.Context, req request) ([]byte, error) {
	resp, err := c.send(ctx, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w: %w", ErrNetwork, err)
	}
	return data, nil
}

// send performs the request and applies the status policy. On success the
// caller owns the response body.
func (c *Client) send(ctx context.Context, req request) (*http.Response, error) {
	var body io.Reader
	if req.body != nil {
		if err := c.validateBody(req.body); err != nil {
			return nil, err
		}

		jsonData, err := json.Marshal(req.body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewBuffer(jsonData)
	}

	endpoint := c.baseURL + req.path
	if len(req.query) > 0 {
		endpoint += "?" + req.query.Encode()
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	requestID := ulid.Make().String()
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", c.userAgent)
	httpReq.Header.Set(requestIDHeader, requestID)
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	if !req.public {
		token, err := c.store.Get()
		if err != nil {
			if errors.Is(err, auth.ErrNoCredential) {
				return nil, fmt.Errorf("%s %s: %w", req.method, req.path, ErrUnauthenticated)
			}
			return nil, err
		}
		httpReq.Header.Set("Authorization", fmt.Sprintf("Bearer %s", token))
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.logger.Debug().Err(err).
			Str("method", req.method).
			Str("path", req.path).
			Str("request_id", requestID).
			Msg("API request failed")
		return nil, fmt.Errorf("failed to send request: %w: %w", ErrNetwork, err)
	}

	c.logger.Debug().
		Str("method", req.method).
		Str("path", req.path).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Str("request_id", requestID).
		Msg("API request")

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}

	defer resp.Body.Close()
	respBody, _ := io.ReadAll(resp.Body)
	apiErr := newAPIError(resp.StatusCode, respBody, req.public)
	apiErr.RequestID = requestID

	if resp.StatusCode == http.StatusUnauthorized && !req.public {
		c.handleUnauthorized(UnauthorizedEvent{
			Method:    req.method,
			Path:      req.path,
			RequestID: requestID,
		})
	}

	return nil, apiErr
}

// handleUnauthorized clears the credential and notifies listeners. This is the
// only place a 401 is acted on.
func (c *Client) handleUnauthorized(event UnauthorizedEvent) {
	if err := c.store.Clear(); err != nil {
		c.logger.Warn().Err(err).Msg("Failed to clear credential after 401")
	}

	c.logger.Info().
		Str("method", event.Method).
		Str("path", event.Path).
		Str("request_id", event.RequestID).
		Msg("Credential rejected by API, session cleared")

	c.mu.RLock()
	listeners := make([]func(UnauthorizedEvent), 0, len(c.listeners))
	for _, fn := range c.listeners {
		listeners = append(listeners, fn)
	}
	c.mu.RUnlock()

	for _, fn := range listeners {
		fn(event)
	}
}

// validateBody runs struct validation on request bodies. Non-struct bodies pass.
func (c *Client) validateBody(body any) error {
	err := c.validate.Struct(body)
	if err == nil {
		return nil
	}

	var invalid *validator.InvalidValidationError
	if errors.As(err, &invalid) {
		return nil
	}

	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		return &ValidationError{Fields: validationFields(validationErrs)}
	}
	return fmt.Errorf("%w: %w", ErrValidation, err)
}
