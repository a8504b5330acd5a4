package service

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
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/muurk/incidentdesk/internal/logging"
	"github.com/muurk/incidentdesk/internal/version"
)

const (
	// DefaultTimeout is the default HTTP request timeout
	DefaultTimeout = 10 * time.Second

	// DefaultMaxRetries is the default number of retry attempts for idempotent requests
	DefaultMaxRetries = 3

	// DefaultRetryDelay is the initial delay between retry attempts
	DefaultRetryDelay = 500 * time.Millisecond

	// DefaultMaxRetryDelay is the maximum delay for exponential backoff
	DefaultMaxRetryDelay = 5 * time.Second

	// maxBodySize caps how much of a response body is read
	maxBodySize = 1 << 20
)

// Client talks to the incident backend.
type Client struct {
	// BaseURL is the backend root, e.g. "http://incidents.local:8080/api"
	BaseURL string

	// HTTPClient is the underlying HTTP client
	HTTPClient *http.Client

	// MaxRetries is the maximum number of retries for idempotent requests
	MaxRetries int

	// RetryDelay is the initial delay between retry attempts
	RetryDelay time.Duration

	// MaxRetryDelay is the maximum delay for exponential backoff
	MaxRetryDelay time.Duration

	mu    sync.RWMutex
	token string
}

// NewClient creates a client for the backend at baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL:       strings.TrimRight(baseURL, "/"),
		HTTPClient:    &http.Client{Timeout: DefaultTimeout},
		MaxRetries:    DefaultMaxRetries,
		RetryDelay:    DefaultRetryDelay,
		MaxRetryDelay: DefaultMaxRetryDelay,
	}
}

// SetTimeout sets the HTTP request timeout
func (c *Client) SetTimeout(timeout time.Duration) {
	c.HTTPClient.Timeout = timeout
}

// SetRetry configures retry behavior
func (c *Client) SetRetry(maxRetries int, retryDelay time.Duration) {
	c.MaxRetries = maxRetries
	c.RetryDelay = retryDelay
}

// SetToken sets the bearer token sent with every request. Empty clears it.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// Token returns the current bearer token.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// Ping checks that the backend answers its health endpoint.
func (c *Client) Ping(ctx context.Context) error {
	res := do[struct{}](ctx, c, http.MethodGet, "/healthz", nil, false)
	if !res.IsOK() {
		return fmt.Errorf("backend health check failed: %s", res.Message())
	}
	return nil
}

type rawResponse struct {
	status int
	body   []byte
}

// do performs one logical request and decides its Result. GET and
// validate-only requests are retried on transient failures.
func do[T any](ctx context.Context, c *Client, method, path string, body any, validateOnly bool) Result[T] {
	if c.BaseURL == "" {
		return FromError[T](ErrNoBaseURL)
	}

	endpoint, err := c.endpoint(path, validateOnly)
	if err != nil {
		return General[T](fmt.Sprintf("Invalid backend URL: %v", err))
	}

	var payload []byte
	if body != nil {
		payload, err = json.Marshal(body)
		if err != nil {
			return General[T](fmt.Sprintf("Failed to encode request: %v", err))
		}
	}

	var last rawResponse
	attempt := func() error {
		last = rawResponse{}
		raw, err := c.attempt(ctx, method, endpoint, payload)
		if err != nil {
			if !IsRetryable(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		last = raw
		if raw.status >= 500 {
			return NewHTTPError(raw.status, http.StatusText(raw.status))
		}
		return nil
	}

	if method == http.MethodGet || validateOnly {
		err = backoff.RetryNotify(attempt, c.backoff(ctx), func(err error, wait time.Duration) {
			logging.Debug("Retrying request",
				zap.String("method", method),
				zap.String("path", path),
				zap.Duration("wait", wait),
				zap.Error(err),
			)
		})
	} else {
		err = attempt()
		if perr, ok := err.(*backoff.PermanentError); ok {
			err = perr.Err
		}
	}

	if last.status == 0 {
		var te *TransportError
		switch {
		case err == nil:
			err = NewParseError("empty response", nil)
		case !errors.As(err, &te):
			err = ClassifyNetworkError(err, c.host())
		}
		logging.Warn("Request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err),
		)
		return FromError[T](err)
	}
	return Decide[T](last.status, last.body)
}

func (c *Client) attempt(ctx context.Context, method, endpoint string, payload []byte) (rawResponse, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return rawResponse{}, ClassifyNetworkError(err, c.host())
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return rawResponse{}, ClassifyNetworkError(err, c.host())
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return rawResponse{}, ClassifyNetworkError(err, c.host())
	}
	return rawResponse{status: resp.StatusCode, body: data}, nil
}

func (c *Client) endpoint(path string, validateOnly bool) (string, error) {
	u, err := url.Parse(c.BaseURL + path)
	if err != nil {
		return "", err
	}
	if validateOnly {
		q := u.Query()
		q.Set("validateOnly", "true")
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

func (c *Client) backoff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.RetryDelay
	b.MaxInterval = c.MaxRetryDelay
	b.MaxElapsedTime = 0

	retries := c.MaxRetries
	if retries < 0 {
		retries = 0
	}
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(retries)), ctx)
}

func (c *Client) host() string {
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return c.BaseURL
	}
	return u.Host
}
