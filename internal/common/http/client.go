// internal/common/http/client.go
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// Client is the outbound HTTP client for directory lookups. Requests that
// fail with a transient status are retried with exponential backoff when
// their body can be replayed.
type Client struct {
	httpClient *http.Client
	maxRetries int
	baseDelay  time.Duration
}

func NewClient(timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		maxRetries: 2,
		baseDelay:  200 * time.Millisecond,
	}
}

// WithRetries returns a copy of c using the given retry policy.
func (c *Client) WithRetries(maxRetries int, baseDelay time.Duration) *Client {
	cp := *c
	cp.maxRetries = maxRetries
	cp.baseDelay = baseDelay
	return &cp
}

func (c *Client) Do(req *http.Request) (*http.Response, error) {
	return c.DoWithContext(req.Context(), req)
}

func (c *Client) DoWithContext(ctx context.Context, req *http.Request) (*http.Response, error) {
	req = req.WithContext(ctx)

	delay := c.baseDelay
	for attempt := 0; ; attempt++ {
		resp, err := c.httpClient.Do(req)
		if err == nil && !IsTransientStatus(resp.StatusCode) {
			return resp, nil
		}
		if attempt >= c.maxRetries || (req.Body != nil && req.GetBody == nil) {
			return resp, err
		}
		if resp != nil {
			resp.Body.Close()
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, fmt.Errorf("request to %s cancelled: %w", req.URL.Host, ctx.Err())
		}
		delay *= 2

		if req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, fmt.Errorf("replay request body: %w", err)
			}
			req.Body = body
		}
	}
}

func IsTransientStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}
