// internal/common/http/client.go
package http

import (
	"context"
	"net/http"
	"time"
)

// Client is a thin wrapper around http.Client that applies a request
// timeout and, when configured, bearer authentication on every call.
type Client struct {
	httpClient *http.Client
	bearer     string
}

func NewClient(timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// NewClientWithAuth returns a client that attaches the given bearer token
// to every request. An empty token behaves like NewClient.
func NewClientWithAuth(timeout time.Duration, bearerToken string) *Client {
	c := NewClient(timeout)
	c.bearer = bearerToken
	return c
}

func (c *Client) Do(req *http.Request) (*http.Response, error) {
	c.applyAuth(req)
	return c.httpClient.Do(req)
}

func (c *Client) DoWithContext(ctx context.Context, req *http.Request) (*http.Response, error) {
	req = req.WithContext(ctx)
	c.applyAuth(req)
	return c.httpClient.Do(req)
}

func (c *Client) applyAuth(req *http.Request) {
	if c.bearer != "" && req.Header.Get("Authorization") == "" {
		req.Header.Set("Authorization", "Bearer "+c.bearer)
	}
}
