// Package llm holds the text generators used by the analysis agents.
package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	xhttp "StockCast/pkg/http"
)

const maxRetryWait = 5 * time.Second

// HTTPServiceBase centralizes client construction and JSON POST handling for HTTP backed generators.
type HTTPServiceBase struct {
	baseURL string
	headers map[string]string
	client  *xhttp.Client
}

// NewHTTPServiceBase builds an HTTP client with timeout and base URL.
func NewHTTPServiceBase(baseURL string, timeout time.Duration, headers map[string]string, opts ...xhttp.ClientOption) *HTTPServiceBase {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	opts = append([]xhttp.ClientOption{xhttp.WithTimeout(timeout)}, opts...)
	return &HTTPServiceBase{
		baseURL: baseURL,
		headers: headers,
		client:  xhttp.NewClient(opts...),
	}
}

// PostJSON posts the given payload to `path` under baseURL and decodes JSON into dest.
func (b *HTTPServiceBase) PostJSON(ctx context.Context, path string, payload interface{}, dest interface{}) error {
	if b.client == nil || b.baseURL == "" {
		return fmt.Errorf("llm http client not initialized")
	}
	err := b.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:  xhttp.MethodPost,
		URL:     b.baseURL + path,
		Headers: b.headers,
		Body:    payload,
	}, dest)
	if err != nil {
		return fmt.Errorf("post %s: %w", path, err)
	}
	return nil
}

// PostJSONWithRetry posts JSON with up to `attempts` tries. Client errors other than 429 are not retried.
func (b *HTTPServiceBase) PostJSONWithRetry(ctx context.Context, path string, payload interface{}, dest interface{}, attempts int) error {
	if attempts <= 1 {
		return b.PostJSON(ctx, path, payload, dest)
	}
	var err error
	for i := 1; i <= attempts; i++ {
		err = b.PostJSON(ctx, path, payload, dest)
		if err == nil || !retryable(err) {
			return err
		}
		if i == attempts {
			break
		}
		select {
		case <-time.After(backoff(err, i)):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

func retryable(err error) bool {
	var se *xhttp.StatusError
	if errors.As(err, &se) {
		return se.Temporary()
	}
	return !errors.Is(err, context.Canceled)
}

// backoff honours a server Retry-After up to maxRetryWait, else grows linearly.
func backoff(err error, attempt int) time.Duration {
	var se *xhttp.StatusError
	if errors.As(err, &se) && se.RetryAfter > 0 {
		return min(se.RetryAfter, maxRetryWait)
	}
	return time.Duration(attempt) * 250 * time.Millisecond
}
