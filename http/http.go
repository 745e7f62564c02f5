// Package http provides the x402 HTTP transport: the codec for challenges,
// payment envelopes and settlement receipts, and the challenge-retry client
// that pays a 402 at most once per request.
package http

import (
	"context"
	"io"
	"net/http"
	"time"
)

// DefaultTimeout applies to each of the (at most two) requests of a call
const DefaultTimeout = 30 * time.Second

// Get performs a GET request with automatic payment handling
func (c *PaymentClient) Get(ctx context.Context, url string) (*Outcome, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	return c.Do(req)
}

// Post performs a POST request with automatic payment handling
func (c *PaymentClient) Post(ctx context.Context, url, contentType string, body io.Reader) (*Outcome, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	return c.Do(req)
}
