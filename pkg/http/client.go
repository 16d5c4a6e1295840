package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

const (
	MethodGet  = http.MethodGet
	MethodPost = http.MethodPost

	defaultMaxBody = 8 << 20
)

// ClientOption configures Client.
type ClientOption func(*Client)

// RequestOptions describes one outgoing request. Body, when set, is sent as JSON
// unless it already is a []byte.
type RequestOptions struct {
	Method      string
	URL         string
	Headers     map[string]string
	QueryParams map[string][]string
	Body        interface{}
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Code       int
	Body       string
	RetryAfter time.Duration
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.Code, e.Body)
}

// Temporary reports whether the request may succeed if repeated.
func (e *StatusError) Temporary() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}

// Client is a JSON HTTP client for upstream APIs.
type Client struct {
	timeout   time.Duration
	transport http.RoundTripper
	headers   http.Header
	maxBody   int64
	client    *http.Client
}

// NewClient creates a new HTTP client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		timeout: 30 * time.Second,
		headers: make(http.Header),
		maxBody: defaultMaxBody,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.client = &http.Client{Timeout: c.timeout, Transport: c.transport}
	return c
}

// SendAndParse performs the request and decodes a 2xx JSON body into dest (ignored when nil).
func (c *Client) SendAndParse(ctx context.Context, opts *RequestOptions, dest interface{}) error {
	req, err := c.newRequest(ctx, opts)
	if err != nil {
		return err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	body := io.LimitReader(resp.Body, c.maxBody)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(body, 4096))
		return &StatusError{
			Code:       resp.StatusCode,
			Body:       string(snippet),
			RetryAfter: retryAfter(resp.Header.Get("Retry-After")),
		}
	}

	if dest == nil {
		_, _ = io.Copy(io.Discard, body)
		return nil
	}
	if err := json.NewDecoder(body).Decode(dest); err != nil {
		return fmt.Errorf("decode json: %w", err)
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, opts *RequestOptions) (*http.Request, error) {
	var body io.Reader
	switch b := opts.Body.(type) {
	case nil:
	case []byte:
		body = bytes.NewReader(b)
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return nil, fmt.Errorf("marshal json: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, opts.Method, opts.URL, body)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}

	if len(opts.QueryParams) > 0 {
		q := req.URL.Query()
		for k, vs := range opts.QueryParams {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		req.URL.RawQuery = q.Encode()
	}

	for k, vs := range c.headers {
		req.Header[k] = append([]string(nil), vs...)
	}
	for k, v := range opts.Headers {
		req.Header.Set(k, v)
	}
	if body != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// retryAfter parses the delay-seconds form of Retry-After; dates are ignored.
func retryAfter(v string) time.Duration {
	secs, err := strconv.Atoi(v)
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

// WithTimeout sets the whole-request timeout.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithTransport overrides the underlying round tripper.
func WithTransport(rt http.RoundTripper) ClientOption {
	return func(c *Client) {
		c.transport = rt
	}
}

// WithHeader adds a header sent with every request.
func WithHeader(key, value string) ClientOption {
	return func(c *Client) {
		c.headers.Set(key, value)
	}
}

// WithMaxBodyBytes caps how much of a response body is read.
func WithMaxBodyBytes(n int64) ClientOption {
	return func(c *Client) {
		if n > 0 {
			c.maxBody = n
		}
	}
}
