package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"trackarr/internal/circuitbreaker"
	apperrors "trackarr/internal/errors"
	"trackarr/internal/logger"
	"trackarr/internal/ratelimit"
	"trackarr/internal/retry"
)

const (
	// maxRateLimitAttempts caps how many times a single logical request
	// is replayed after upstream 429 responses
	maxRateLimitAttempts = 5

	// rateLimitBuffer is added on top of the upstream Retry-After value
	rateLimitBuffer = 3 * time.Second
)

// Options configures a single request
type Options struct {
	Params  url.Values
	Headers map[string]string
	Body    []byte
}

// Client is a rate-limited JSON client shared by all provider adapters.
// Each upstream host gets its own circuit breaker and, optionally, its
// own token bucket on top of the global one.
type Client struct {
	http     *http.Client
	limiter  *ratelimit.Limiter
	breakers *circuitbreaker.Registry
	log      *logger.Logger

	// transientRetryDelay is the fixed pause before the single retry
	// granted to timeouts and 5xx responses
	transientRetryDelay time.Duration
}

// Config holds client construction parameters
type Config struct {
	Timeout             time.Duration
	Limiter             *ratelimit.Limiter
	TransientRetryDelay time.Duration
}

// New creates a client
func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.TransientRetryDelay <= 0 {
		cfg.TransientRetryDelay = time.Second
	}
	if cfg.Limiter == nil {
		cfg.Limiter = ratelimit.New(5)
	}

	return &Client{
		http:                &http.Client{Timeout: cfg.Timeout},
		limiter:             cfg.Limiter,
		breakers:            circuitbreaker.NewRegistry(circuitbreaker.DefaultConfig()),
		log:                 logger.ProviderLogger(),
		transientRetryDelay: cfg.TransientRetryDelay,
	}
}

// rateLimitedError signals an upstream 429 and how long it asked us to wait
type rateLimitedError struct {
	retryAfter time.Duration
}

func (e *rateLimitedError) Error() string {
	return fmt.Sprintf("rate limited, retry after %s", e.retryAfter)
}

// transientError signals a failure worth one more attempt
type transientError struct {
	status int
	err    error
}

func (e *transientError) Error() string {
	if e.err != nil {
		return e.err.Error()
	}
	return fmt.Sprintf("upstream returned status %d", e.status)
}

func (e *transientError) Unwrap() error { return e.err }

// GetJSON performs a GET and decodes the JSON response into dst
func (c *Client) GetJSON(ctx context.Context, provider, rawURL string, params url.Values, headers map[string]string, dst interface{}) error {
	return c.Request(ctx, provider, http.MethodGet, rawURL, Options{Params: params, Headers: headers}, dst)
}

// PostJSON performs a POST with the given body and decodes the response
func (c *Client) PostJSON(ctx context.Context, provider, rawURL string, body []byte, headers map[string]string, dst interface{}) error {
	return c.Request(ctx, provider, http.MethodPost, rawURL, Options{Headers: headers, Body: body}, dst)
}

// Request performs one logical request against a provider API.
//
// Upstream 429 responses are replayed after sleeping Retry-After plus a
// small buffer, up to maxRateLimitAttempts total attempts. Timeouts and
// 5xx responses get exactly one retry after a fixed delay. Everything
// else surfaces immediately as a provider API error.
func (c *Client) Request(ctx context.Context, provider, method, rawURL string, opts Options, dst interface{}) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return apperrors.ValidationError(fmt.Sprintf("invalid url %q", rawURL))
	}
	if len(opts.Params) > 0 {
		q := u.Query()
		for k, vs := range opts.Params {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}

	host := u.Host
	cb := c.breakers.Get(host)
	target := u.String()

	for attempt := 1; ; attempt++ {
		if err := c.limiter.Wait(ctx, host); err != nil {
			return err
		}

		body, err := c.attempt(ctx, cb, provider, method, target, opts)
		if err == nil {
			if dst == nil || len(body) == 0 {
				return nil
			}
			if err := json.Unmarshal(body, dst); err != nil {
				return apperrors.ProviderAPIError(provider, 0, "malformed response body", err)
			}
			return nil
		}

		var rl *rateLimitedError
		if errors.As(err, &rl) {
			if attempt >= maxRateLimitAttempts {
				return apperrors.Wrap(err, apperrors.CodeRateLimited,
					fmt.Sprintf("%s kept rate limiting after %d attempts", provider, attempt)).
					WithContext("provider", provider)
			}

			wait := rl.retryAfter + rateLimitBuffer
			c.log.WithFields(map[string]interface{}{
				"provider": provider,
				"wait":     wait.String(),
				"attempt":  attempt,
			}).Warn("rate limited by provider, backing off")

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
			continue
		}

		var tr *transientError
		if errors.As(err, &tr) {
			return apperrors.ProviderAPIError(provider, tr.status, "upstream failure persisted after retry", tr.err)
		}
		return err
	}
}

// attempt runs one request with the single transient retry applied
func (c *Client) attempt(ctx context.Context, cb *circuitbreaker.CircuitBreaker, provider, method, target string, opts Options) ([]byte, error) {
	policy := retry.SingleRetryPolicy(c.transientRetryDelay)

	return retry.DoWithResult(ctx, policy, func() ([]byte, error) {
		return c.doOnce(ctx, cb, provider, method, target, opts)
	}, func(err error) bool {
		var tr *transientError
		return errors.As(err, &tr)
	})
}

func (c *Client) doOnce(ctx context.Context, cb *circuitbreaker.CircuitBreaker, provider, method, target string, opts Options) ([]byte, error) {
	var bodyReader io.Reader
	if len(opts.Body) > 0 {
		bodyReader = bytes.NewReader(opts.Body)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, bodyReader)
	if err != nil {
		return nil, apperrors.ValidationError(fmt.Sprintf("building request: %v", err))
	}

	req.Header.Set("Accept", "application/json")
	if len(opts.Body) > 0 {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range opts.Headers {
		req.Header.Set(k, v)
	}

	var body []byte
	execErr := cb.Execute(func() error {
		resp, err := c.http.Do(req)
		if err != nil {
			return &transientError{err: err}
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return &transientError{err: err}
		}

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			body = data
			return nil

		case resp.StatusCode == http.StatusTooManyRequests:
			return &rateLimitedError{retryAfter: parseRetryAfter(resp.Header.Get("Retry-After"))}

		case resp.StatusCode >= 500:
			return &transientError{status: resp.StatusCode}

		default:
			return apperrors.ProviderAPIError(provider, resp.StatusCode, trimForLog(data), nil)
		}
	})

	if execErr != nil {
		// Breaker rejections look like an unavailable upstream to callers
		if execErr == circuitbreaker.ErrOpenState || execErr == circuitbreaker.ErrTooManyRequests {
			return nil, apperrors.Wrap(execErr, apperrors.CodeServiceUnavailable,
				fmt.Sprintf("%s requests suspended by circuit breaker", provider)).
				WithContext("provider", provider)
		}
		return nil, execErr
	}
	return body, nil
}

// parseRetryAfter reads a Retry-After header given in seconds
func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	secs, err := strconv.Atoi(value)
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

// trimForLog bounds an error body so it stays readable in logs
func trimForLog(data []byte) string {
	const max = 200
	s := string(data)
	if len(s) > max {
		return s[:max]
	}
	return s
}
