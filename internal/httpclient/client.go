// Package httpclient provides the retrying HTTP client used by sources.
//
// Requests carry a bot User-Agent and an Accept-Language header by default.
// Network errors and 429/500/502/503/504 responses are retried with
// exponential backoff; any other non-2xx status fails immediately.
package httpclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/spontis-app/spontis/internal/logger"
)

const (
	DefaultUserAgent = "SpontisBot/1.1 (+https://spontis-app.github.io)"
	DefaultLanguage  = "nb,en;q=0.8"
	DefaultTimeout   = 25 * time.Second
	DefaultRetries   = 3
	DefaultBackoff   = 600 * time.Millisecond

	// MaxBodySize caps how much of a response body is read.
	MaxBodySize = 10 << 20
)

var retryStatus = map[int]bool{
	http.StatusTooManyRequests:     true,
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status code: %d", e.URL, e.StatusCode)
}

// Options configures a Client. Zero values fall back to the defaults.
type Options struct {
	Timeout   time.Duration
	Retries   int
	Backoff   time.Duration
	UserAgent string
	Language  string
}

// Client performs GET requests with retries.
type Client struct {
	http      *http.Client
	retries   int
	backoff   time.Duration
	userAgent string
	language  string
}

// New creates a Client.
func New(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Retries < 0 {
		opts.Retries = 0
	}
	if opts.Backoff <= 0 {
		opts.Backoff = DefaultBackoff
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.Language == "" {
		opts.Language = DefaultLanguage
	}
	return &Client{
		http:      &http.Client{Timeout: opts.Timeout},
		retries:   opts.Retries,
		backoff:   opts.Backoff,
		userAgent: opts.UserAgent,
		language:  opts.Language,
	}
}

// Get fetches url and returns the response body. Extra headers override the
// defaults.
func (c *Client) Get(ctx context.Context, url string, headers map[string]string) ([]byte, error) {
	var body []byte
	attempt := 0

	op := func() error {
		attempt++
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("creating request: %w", err))
		}
		req.Header.Set("User-Agent", c.userAgent)
		req.Header.Set("Accept-Language", c.language)
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(fmt.Errorf("fetching %s: %w", url, err))
			}
			return fmt.Errorf("fetching %s: %w", url, err)
		}
		defer resp.Body.Close() // nolint:errcheck

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			io.Copy(io.Discard, io.LimitReader(resp.Body, MaxBodySize)) // nolint:errcheck
			statusErr := &StatusError{URL: url, StatusCode: resp.StatusCode}
			if retryStatus[resp.StatusCode] {
				return statusErr
			}
			return backoff.Permanent(statusErr)
		}

		data, err := io.ReadAll(io.LimitReader(resp.Body, MaxBodySize))
		if err != nil {
			return fmt.Errorf("reading body: %w", err)
		}
		body = data
		return nil
	}

	notify := func(err error, wait time.Duration) {
		logger.Debug("retrying request", logger.Fields{
			"url":     url,
			"attempt": attempt,
			"wait":    wait.String(),
			"error":   err.Error(),
		})
	}

	if err := backoff.RetryNotify(op, c.policy(ctx), notify); err != nil {
		return nil, err
	}
	return body, nil
}

func (c *Client) policy(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.backoff
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	b.Reset()
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(c.retries)), ctx)
}

// IsStatus reports whether err is a StatusError with the given code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == code
}
