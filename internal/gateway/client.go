// Package gateway is the base HTTP client every console component uses to
// reach the search engine's gateway. Each call gets a per-attempt timeout,
// bounded retries with exponential backoff, body sanitization, bearer-token
// injection and one error normalization step.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/searchconsole/internal/apierr"
	"github.com/JakeFAU/searchconsole/internal/clock"
	"github.com/JakeFAU/searchconsole/internal/clock/system"
	"github.com/JakeFAU/searchconsole/internal/id/uuid"
	"github.com/JakeFAU/searchconsole/internal/metrics"
	"github.com/JakeFAU/searchconsole/internal/policy/ratelimit"
)

const (
	defaultTimeout   = 30 * time.Second
	maxResponseBytes = 10 << 20

	// HeaderRequestID carries the per-call correlation id.
	HeaderRequestID = "X-Request-ID"
)

// TokenSource supplies bearer tokens for outgoing calls.
type TokenSource interface {
	// Token returns the current access token and whether a session is active.
	Token(ctx context.Context) (string, bool)
	// Refresh exchanges the refresh token for a new pair.
	Refresh(ctx context.Context) error
}

// IDGenerator produces request ids.
type IDGenerator interface {
	NewID() (string, error)
}

// Config controls Client behavior.
type Config struct {
	BaseURL        string
	Timeout        time.Duration
	MaxRetries     int
	BackoffInitial time.Duration
	BackoffMax     time.Duration
	// DisableJitter makes backoff delays deterministic.
	DisableJitter bool

	HTTPClient *http.Client
	Limiter    *ratelimit.Limiter
	Retry      RetryPolicy
	Clock      clock.Clock
	IDs        IDGenerator
	Logger     *zap.Logger
	// Sleep waits between attempts; nil uses a context-aware timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Request describes one gateway call.
type Request struct {
	Method string
	// Path is relative to the base URL, e.g. "search" or "auth-server/api/auth/login".
	Path   string
	Query  url.Values
	Body   any
	Header http.Header
	// SkipAuth suppresses bearer-token injection and 401 refresh handling.
	SkipAuth bool
	// BaseURL overrides the client's base URL for this call.
	BaseURL string
	// Timeout overrides the client's per-attempt timeout.
	Timeout time.Duration
	// NoRetry disables retries for this call.
	NoRetry bool
	// NoSanitize sends Body exactly as marshaled. Credentials must reach the
	// server unchanged.
	NoSanitize bool
	// NoWait fails with a 429 instead of waiting when the service's rate
	// limit is exhausted.
	NoWait bool
}

// Response is a successful (2xx/3xx) gateway response.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// Decode unmarshals the JSON body into v. Empty bodies leave v untouched.
func (r *Response) Decode(v any) error {
	if r == nil || v == nil || len(bytes.TrimSpace(r.Body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Client performs gateway calls.
type Client struct {
	baseURL string
	timeout time.Duration
	http    *http.Client
	limiter *ratelimit.Limiter
	retry   RetryPolicy
	clock   clock.Clock
	ids     IDGenerator
	logger  *zap.Logger
	sleep   func(ctx context.Context, d time.Duration) error
	tokens  TokenSource
}

// New builds a Client.
func New(cfg Config) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, errors.New("gateway base url is required")
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("parse gateway base url: %w", err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}
	if cfg.Retry == nil {
		cfg.Retry = NewExponentialRetryPolicy(cfg.MaxRetries, cfg.BackoffInitial, cfg.BackoffMax, !cfg.DisableJitter)
	}
	if cfg.Clock == nil {
		cfg.Clock = system.New()
	}
	if cfg.IDs == nil {
		cfg.IDs = uuid.New()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Sleep == nil {
		cfg.Sleep = sleepContext
	}
	return &Client{
		baseURL: base,
		timeout: cfg.Timeout,
		http:    cfg.HTTPClient,
		limiter: cfg.Limiter,
		retry:   cfg.Retry,
		clock:   cfg.Clock,
		ids:     cfg.IDs,
		logger:  cfg.Logger,
		sleep:   cfg.Sleep,
	}, nil
}

// SetTokenSource installs the session that supplies bearer tokens. It must be
// called before the client is shared between goroutines.
func (c *Client) SetTokenSource(ts TokenSource) {
	c.tokens = ts
}

// BaseURL returns the configured gateway base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Do executes req, retrying and refreshing the session as configured.
// Failures are always *apierr.Error.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	if req.Method == "" {
		req.Method = http.MethodGet
	}
	body, err := encodeBody(req.Body, !req.NoSanitize)
	if err != nil {
		return nil, apierr.Validation(req.Path, []string{err.Error()}, c.clock.Now())
	}

	resp, attached, err := c.doWithRetry(ctx, req, body)
	if err == nil || !attached || !c.shouldRefresh(req, err) {
		return resp, err
	}

	c.logger.Debug("unauthorized response, refreshing session", zap.String("path", req.Path))
	if rerr := c.tokens.Refresh(ctx); rerr != nil {
		c.logger.Warn("session refresh failed", zap.String("path", req.Path), zap.Error(rerr))
		return nil, err
	}
	resp, _, err = c.doWithRetry(ctx, req, body)
	return resp, err
}

// Call executes req and decodes the JSON response into out when out is non-nil.
func (c *Client) Call(ctx context.Context, req Request, out any) error {
	resp, err := c.Do(ctx, req)
	if err != nil {
		return err
	}
	if err := resp.Decode(out); err != nil {
		return apierr.FromTransport(req.Path, err, c.clock.Now())
	}
	return nil
}

// GetJSON issues a GET and decodes the response into out.
func (c *Client) GetJSON(ctx context.Context, path string, query url.Values, out any) error {
	return c.Call(ctx, Request{Method: http.MethodGet, Path: path, Query: query}, out)
}

// PostJSON issues a POST with a JSON body and decodes the response into out.
func (c *Client) PostJSON(ctx context.Context, path string, body, out any) error {
	return c.Call(ctx, Request{Method: http.MethodPost, Path: path, Body: body}, out)
}

// DeleteJSON issues a DELETE and decodes the response into out.
func (c *Client) DeleteJSON(ctx context.Context, path string, out any) error {
	return c.Call(ctx, Request{Method: http.MethodDelete, Path: path}, out)
}

func (c *Client) doWithRetry(ctx context.Context, req Request, body []byte) (*Response, bool, error) {
	service := metrics.ServiceOf(req.Path)
	for attempt := 0; ; attempt++ {
		resp, attached, err := c.attempt(ctx, req, body, service)
		if err == nil {
			return resp, attached, nil
		}
		if req.NoRetry || ctx.Err() != nil || !c.retry.ShouldRetry(err, attempt) {
			return nil, attached, err
		}
		delay := c.retry.Backoff(attempt)
		metrics.ObserveRetry(service)
		c.logger.Debug("retrying gateway call",
			zap.String("path", req.Path),
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
		if serr := c.sleep(ctx, delay); serr != nil {
			return nil, attached, apierr.FromTransport(req.Path, serr, c.clock.Now())
		}
	}
}

func (c *Client) attempt(ctx context.Context, req Request, body []byte, service string) (*Response, bool, error) {
	timeout := c.timeout
	if req.Timeout > 0 {
		timeout = req.Timeout
	}
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if req.NoWait {
		if !c.limiter.Allow(service) {
			return nil, false, apierr.FromStatus(req.Path, http.StatusTooManyRequests, "rate limited locally", c.clock.Now())
		}
	} else if err := c.limiter.Wait(attemptCtx, service); err != nil {
		return nil, false, apierr.FromTransport(req.Path, err, c.clock.Now())
	}

	httpReq, err := c.newHTTPRequest(attemptCtx, req, body)
	if err != nil {
		return nil, false, apierr.Validation(req.Path, []string{err.Error()}, c.clock.Now())
	}
	attached := false
	if !req.SkipAuth && c.tokens != nil {
		if token, ok := c.tokens.Token(ctx); ok && token != "" {
			httpReq.Header.Set("Authorization", "Bearer "+token)
			attached = true
		}
	}

	start := time.Now()
	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		metrics.ObserveGatewayRequest(service, req.Method, 0, time.Since(start))
		if ctx.Err() != nil {
			err = fmt.Errorf("%w: %w", ctx.Err(), err)
		}
		return nil, attached, apierr.FromTransport(req.Path, err, c.clock.Now())
	}
	defer httpResp.Body.Close() //nolint:errcheck // read-only body

	payload, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBytes))
	metrics.ObserveGatewayRequest(service, req.Method, httpResp.StatusCode, time.Since(start))
	if err != nil {
		return nil, attached, apierr.FromTransport(req.Path, fmt.Errorf("read response: %w", err), c.clock.Now())
	}
	if httpResp.StatusCode >= http.StatusBadRequest {
		return nil, attached, apierr.FromStatus(req.Path, httpResp.StatusCode, errorMessage(payload), c.clock.Now())
	}
	return &Response{Status: httpResp.StatusCode, Header: httpResp.Header, Body: payload}, attached, nil
}

func (c *Client) newHTTPRequest(ctx context.Context, req Request, body []byte) (*http.Request, error) {
	base := c.baseURL
	if req.BaseURL != "" {
		base = strings.TrimRight(req.BaseURL, "/")
	}
	target := base + "/" + strings.TrimLeft(req.Path, "/")
	if len(req.Query) > 0 {
		target += "?" + req.Query.Encode()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	for k, vals := range req.Header {
		for _, v := range vals {
			httpReq.Header.Add(k, v)
		}
	}
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if id, err := c.ids.NewID(); err == nil {
		httpReq.Header.Set(HeaderRequestID, id)
	}
	return httpReq, nil
}

// shouldRefresh reports whether a 401 on req earns one refresh-and-retry.
// Auth, admin and health paths surface the 401 to the caller untouched.
func (c *Client) shouldRefresh(req Request, err error) bool {
	if req.SkipAuth || c.tokens == nil {
		return false
	}
	if apierr.StatusOf(err) != http.StatusUnauthorized {
		return false
	}
	return refreshEligible(req.Path)
}

func refreshEligible(path string) bool {
	p := "/" + strings.TrimLeft(path, "/")
	switch {
	case strings.HasPrefix(p, "/auth-server/"):
		return false
	case strings.Contains(p, "/admin/"), strings.HasSuffix(p, "/admin"):
		return false
	case strings.Contains(p, "/actuator/health"):
		return false
	default:
		return true
	}
}

// errorMessage pulls a human-readable message out of an error body.
func errorMessage(body []byte) string {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	if payload.Message != "" {
		return payload.Message
	}
	return payload.Error
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("backoff interrupted: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}
