// Package transport performs the outbound backend calls. It is the only
// place in the service that retries.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"strings"
	"time"

	"nanoedit/internal/infra"
	"nanoedit/internal/metrics"
)

// DefaultMaxJitter bounds the random component added to each backoff delay.
const DefaultMaxJitter = 200 * time.Millisecond

const maxResponseBytes = 64 << 20

// Options configures a Client. Zero values fall back to the defaults noted
// on each field.
type Options struct {
	// Target labels log lines and metrics, e.g. "genai" or "video".
	Target string
	// MaxAttempts is the total number of attempts, including the first. Default 3.
	MaxAttempts int
	// BaseDelay is the backoff unit. Default 500ms.
	BaseDelay time.Duration
	// Timeout bounds each individual attempt. Default 60s.
	Timeout time.Duration
	// MaxJitter bounds the random delay component. Default DefaultMaxJitter.
	MaxJitter time.Duration

	HTTPClient *http.Client
	Logger     *infra.Logger
	Metrics    *metrics.Collector

	// Sleep and Jitter are replaced in tests.
	Sleep  func(ctx context.Context, d time.Duration) error
	Jitter func(max time.Duration) time.Duration
}

// Credential is the authorization header sent with every attempt.
type Credential struct {
	Header string
	Value  string
}

// GoogleAPIKey authenticates against the Gemini REST API.
func GoogleAPIKey(key string) Credential {
	return Credential{Header: "x-goog-api-key", Value: key}
}

// Token authenticates against backends that expect "Authorization: Token <key>".
func Token(key string) Credential {
	return Credential{Header: "Authorization", Value: "Token " + key}
}

// Response is a successful backend answer. Body is left untouched.
type Response struct {
	Status   int
	Body     []byte
	Attempts int
}

// Failure is returned once the retry budget is spent or a terminal status
// is seen. Status is zero when no attempt produced an HTTP response.
type Failure struct {
	Status   int
	Body     string
	Attempts int
	Err      error
}

func (f *Failure) Error() string {
	switch {
	case f.Status > 0:
		return fmt.Sprintf("transport: status %d after %d attempt(s)", f.Status, f.Attempts)
	case f.Err != nil:
		return fmt.Sprintf("transport: %v after %d attempt(s)", f.Err, f.Attempts)
	}
	return fmt.Sprintf("transport: failed after %d attempt(s)", f.Attempts)
}

func (f *Failure) Unwrap() error { return f.Err }

// Client sends JSON payloads with bounded retry and exponential backoff.
type Client struct {
	target      string
	maxAttempts int
	baseDelay   time.Duration
	timeout     time.Duration
	maxJitter   time.Duration
	httpClient  *http.Client
	logger      *infra.Logger
	metrics     *metrics.Collector
	sleep       func(ctx context.Context, d time.Duration) error
	jitter      func(max time.Duration) time.Duration
}

// NewClient constructs a client with sane defaults.
func NewClient(opts Options) *Client {
	c := &Client{
		target:      opts.Target,
		maxAttempts: opts.MaxAttempts,
		baseDelay:   opts.BaseDelay,
		timeout:     opts.Timeout,
		maxJitter:   opts.MaxJitter,
		httpClient:  opts.HTTPClient,
		logger:      infra.OrDiscard(opts.Logger),
		metrics:     opts.Metrics,
		sleep:       opts.Sleep,
		jitter:      opts.Jitter,
	}
	if c.target == "" {
		c.target = "backend"
	}
	if c.maxAttempts < 1 {
		c.maxAttempts = 3
	}
	if c.baseDelay <= 0 {
		c.baseDelay = 500 * time.Millisecond
	}
	if c.timeout <= 0 {
		c.timeout = 60 * time.Second
	}
	if c.maxJitter <= 0 {
		c.maxJitter = DefaultMaxJitter
	}
	if c.httpClient == nil {
		// Attempt deadlines come from the per-attempt context.
		c.httpClient = &http.Client{}
	}
	if c.sleep == nil {
		c.sleep = sleepContext
	}
	if c.jitter == nil {
		c.jitter = randomJitter
	}
	return c
}

// MaxAttempts returns the configured retry budget.
func (c *Client) MaxAttempts() int { return c.maxAttempts }

// Backoff returns the deterministic part of the delay that follows the
// given zero-based attempt: BaseDelay * 2^attempt.
func (c *Client) Backoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt > 20 {
		attempt = 20
	}
	return c.baseDelay * time.Duration(1<<uint(attempt))
}

// Send POSTs payload as JSON to endpoint. Network errors, attempt timeouts,
// 429 and 5xx answers are retried; any other non-2xx status is returned
// immediately as a *Failure.
func (c *Client) Send(ctx context.Context, endpoint string, cred Credential, payload any) (*Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("transport: marshal payload: %w", err)
	}

	var last *Failure
	for attempt := 0; attempt < c.maxAttempts; attempt++ {
		if attempt > 0 {
			delay := c.Backoff(attempt-1) + c.jitter(c.maxJitter)
			c.logger.Warn().
				Str("target", c.target).
				Int("attempt", attempt+1).
				Int("max_attempts", c.maxAttempts).
				Int("status", last.Status).
				Dur("delay", delay).
				Msg("transport: retrying")
			if err := c.sleep(ctx, delay); err != nil {
				last.Err = errors.Join(last.Err, err)
				return nil, last
			}
		}

		status, respBody, err := c.attempt(ctx, endpoint, cred, body)
		n := attempt + 1
		switch {
		case err != nil:
			c.metrics.ObserveAttempt(c.target, "network")
			last = &Failure{Attempts: n, Err: err}
			if ctx.Err() != nil {
				// The caller gave up; an attempt timeout alone leaves ctx intact.
				return nil, last
			}
		case status >= 200 && status < 300:
			c.metrics.ObserveAttempt(c.target, "ok")
			return &Response{Status: status, Body: respBody, Attempts: n}, nil
		case Retryable(status):
			c.metrics.ObserveAttempt(c.target, "retryable")
			last = &Failure{Status: status, Body: string(respBody), Attempts: n}
		default:
			c.metrics.ObserveAttempt(c.target, "terminal")
			c.logger.Warn().
				Str("target", c.target).
				Int("status", status).
				Msg("transport: terminal status")
			return nil, &Failure{Status: status, Body: string(respBody), Attempts: n}
		}
	}

	c.logger.Error().
		Str("target", c.target).
		Int("attempts", last.Attempts).
		Int("status", last.Status).
		Err(last.Err).
		Msg("transport: attempts exhausted")
	return nil, last
}

func (c *Client) attempt(ctx context.Context, endpoint string, cred Credential, body []byte) (int, []byte, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return 0, nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if cred.Header != "" && strings.TrimSpace(cred.Value) != "" {
		req.Header.Set(cred.Header, cred.Value)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("invoke %s: %w", c.target, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return 0, nil, fmt.Errorf("read %s response: %w", c.target, err)
	}
	return resp.StatusCode, data, nil
}

// Retryable reports whether a status is worth another attempt.
func Retryable(status int) bool {
	return status == http.StatusTooManyRequests || (status >= 500 && status <= 599)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func randomJitter(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	return time.Duration(rand.Int64N(int64(max) + 1))
}
