// Package http is the resilient request client used for every archive
// request: listings, and file bodies.
package http

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/ipaynter-umb/MCD43GF-production/internal/logger"
	"github.com/ipaynter-umb/MCD43GF-production/pkg/auth"
	"github.com/ipaynter-umb/MCD43GF-production/pkg/errors"
	"github.com/ipaynter-umb/MCD43GF-production/pkg/fsutil"
	"github.com/ipaynter-umb/MCD43GF-production/pkg/metrics"
	"github.com/ipaynter-umb/MCD43GF-production/pkg/retry"
)

// Defaults mirror the archive's tolerance for slow, flaky listings.
const (
	DefaultMaxAttempts        = 10
	DefaultAttemptsPerSession = 3
	DefaultBackoffIncrement   = time.Second
	DefaultTimeout            = 10 * time.Minute
	DefaultUserAgent          = "mcd43gf/1.0"
)

// Options configure a Client. Zero attempt counts and timeouts select the
// defaults above; a zero backoff retries without pausing.
type Options struct {
	Auth               auth.Authenticator
	Timeout            time.Duration
	MaxAttempts        int
	AttemptsPerSession int
	BackoffBase        time.Duration
	BackoffIncrement   time.Duration
	// RateLimit caps requests per second across all callers. 0 disables it.
	RateLimit float64
	UserAgent string
	Metrics   *metrics.Metrics
	Logger    *slog.Logger
	// Sleep replaces the backoff wait, for tests.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Client is safe for concurrent use. All callers share one session; a caller
// that sees AttemptsPerSession consecutive failures replaces it.
type Client struct {
	opts    Options
	log     *slog.Logger
	limiter *rate.Limiter

	mu       sync.Mutex
	session  *http.Client
	sessions int
}

// StatusError is a non-200 response.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status code %d for %s", e.StatusCode, e.URL)
}

// Unwrap classifies every bad status as a transient failure.
func (e *StatusError) Unwrap() error { return errors.ErrRequestFailed }

// NewClient creates a client and its first session.
func NewClient(opts Options) *Client {
	if opts.Auth == nil {
		opts.Auth = auth.Anonymous{}
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.AttemptsPerSession <= 0 {
		opts.AttemptsPerSession = DefaultAttemptsPerSession
	}
	if opts.BackoffIncrement < 0 {
		opts.BackoffIncrement = 0
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	c := &Client{opts: opts, log: opts.Logger}
	if c.log == nil {
		c.log = logger.Named("http")
	}
	if opts.RateLimit > 0 {
		burst := int(opts.RateLimit)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}
	c.session = c.newSession()
	c.sessions = 1
	return c
}

func (c *Client) newSession() *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	return &http.Client{
		Timeout:   c.opts.Timeout,
		Transport: transport,
		// Redirects are answered as failures and retried, never followed.
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func (c *Client) currentSession() *http.Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// rotate discards the current session and opens a fresh one.
func (c *Client) rotate() {
	c.mu.Lock()
	old := c.session
	c.session = c.newSession()
	c.sessions++
	n := c.sessions
	c.mu.Unlock()

	old.CloseIdleConnections()
	c.opts.Metrics.ObserveRotation()
	c.log.Debug("rotated http session", "session", n)
}

// Sessions reports how many sessions have been opened so far.
func (c *Client) Sessions() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessions
}

func (c *Client) policy() retry.Policy {
	return retry.Policy{
		MaxAttempts:  c.opts.MaxAttempts,
		Delay:        retry.Linear(c.opts.BackoffBase, c.opts.BackoffIncrement),
		ShouldRotate: retry.EveryN(c.opts.AttemptsPerSession),
		Retryable:    retryable,
		Sleep:        c.opts.Sleep,
	}
}

func retryable(err error) bool {
	return !stderrors.Is(err, context.Canceled) &&
		!stderrors.Is(err, context.DeadlineExceeded) &&
		!stderrors.Is(err, errors.ErrMissingCredentials) &&
		!stderrors.Is(err, errors.ErrInvalidPath)
}

// Fetch implements Fetcher.
func (c *Client) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	var body []byte
	err := c.do(ctx, rawURL, func(resp *http.Response) error {
		b, err := io.ReadAll(resp.Body)
		if err != nil {
			return errors.Wrap(errors.ErrRequestFailed, err.Error())
		}
		body = b
		return nil
	})
	return body, err
}

// FetchJSON implements Fetcher.
func (c *Client) FetchJSON(ctx context.Context, rawURL string, v any) error {
	return c.do(ctx, rawURL, func(resp *http.Response) error {
		b, err := io.ReadAll(resp.Body)
		if err != nil {
			return errors.Wrap(errors.ErrRequestFailed, err.Error())
		}
		if err := json.Unmarshal(b, v); err != nil {
			return errors.Wrap(errors.ErrMalformedResponse, err.Error())
		}
		return nil
	})
}

// FetchToFile implements Fetcher.
func (c *Client) FetchToFile(ctx context.Context, rawURL, path string) (int64, error) {
	if err := fsutil.EnsureFileDir(path); err != nil {
		return 0, errors.Wrapf(errors.ErrInvalidPath, "create directory for %s: %v", path, err)
	}
	var written int64
	err := c.do(ctx, rawURL, func(resp *http.Response) error {
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, fsutil.FileModeDefault)
		if err != nil {
			return errors.Wrapf(errors.ErrInvalidPath, "open %s: %v", path, err)
		}
		n, copyErr := io.Copy(f, resp.Body)
		closeErr := f.Close()
		if copyErr != nil {
			return errors.Wrap(errors.ErrRequestFailed, copyErr.Error())
		}
		if closeErr != nil {
			return errors.Wrapf(errors.ErrInvalidPath, "close %s: %v", path, closeErr)
		}
		written = n
		return nil
	})
	return written, err
}

// do runs one GET per attempt under the retry policy and hands 200 responses to consume.
func (c *Client) do(ctx context.Context, rawURL string, consume func(*http.Response) error) error {
	attempts, err := retry.Do(ctx, c.policy(), func(ctx context.Context, attempt int) error {
		err := c.attempt(ctx, rawURL, consume)
		if err != nil && retryable(err) {
			c.log.Debug("request attempt failed", "url", rawURL, "attempt", attempt, "error", err)
		}
		return err
	}, c.rotate)

	switch {
	case err == nil:
		c.opts.Metrics.ObserveRequest("ok", attempts)
		return nil
	case stderrors.Is(err, context.Canceled), stderrors.Is(err, context.DeadlineExceeded):
		c.opts.Metrics.ObserveRequest("canceled", attempts)
	case stderrors.Is(err, errors.ErrMalformedResponse):
		c.opts.Metrics.ObserveRequest("malformed", attempts)
	default:
		c.opts.Metrics.ObserveRequest("failed", attempts)
	}
	c.log.Warn("request failed", "url", rawURL, "attempts", attempts, "error", err)
	return errors.Wrapf(err, "GET %s", rawURL)
}

func (c *Client) attempt(ctx context.Context, rawURL string, consume func(*http.Response) error) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return errors.Wrapf(errors.ErrInvalidPath, "build request for %s: %v", rawURL, err)
	}
	req.Header.Set("User-Agent", c.opts.UserAgent)
	if err := c.opts.Auth.Apply(req); err != nil {
		return err
	}

	resp, err := c.currentSession().Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return errors.Wrap(errors.ErrRequestFailed, err.Error())
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return &StatusError{URL: rawURL, StatusCode: resp.StatusCode}
	}
	return consume(resp)
}
