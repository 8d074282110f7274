package httpclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Config defines the setup for the HTTP Client.
type Config struct {
	Timeout time.Duration
	// Provide a custom Transport, e.g. for tests or instrumentation
	Transport http.RoundTripper
}

// Client wraps a standard http.Client to provide a bounded per-request
// timeout. Both upstream APIs are plain request/response JSON endpoints,
// so no cookie jar or redirect policy is needed.
type Client struct {
	*http.Client
}

// New creates a new HTTP client based on the provided configuration.
func New(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	c := &http.Client{
		Timeout: cfg.Timeout,
	}
	if cfg.Transport != nil {
		c.Transport = cfg.Transport
	}

	return &Client{Client: c}
}

// Do executes an HTTP request. The provided context.Context controls the
// overarching request timeout/cancellation independent of the client timeout.
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if ctx == nil {
		return nil, errors.New("context cannot be nil")
	}

	// Always clone the request with the provided context
	reqWithCtx := req.Clone(ctx)

	resp, err := c.Client.Do(reqWithCtx)
	if err != nil {
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	return resp, nil
}
