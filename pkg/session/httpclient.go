// Copyright (C) 2025 Halcyon AI (oss@halcyonai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package session

import (
	"context"
	"io"
	"net/http"
)

// HTTPClient abstracts the HTTP operations the controller performs.
//
// The abstraction exists for testability: production code uses
// NewHTTPClient, tests inject a mock that serves canned SSE bodies.
// Implementations must honor context cancellation promptly — a pending
// response-body read must unblock when the request context is cancelled,
// not wait for the next natural chunk.
type HTTPClient interface {
	// Post sends a POST request with the given content type and body.
	// The caller owns the response body and must close it.
	Post(ctx context.Context, url, contentType string, body io.Reader) (*http.Response, error)
}

// defaultHTTPClient wraps net/http for production use.
//
// No client-level timeout is set: the stream's duration is unbounded by
// design and bounded instead by the escalation timer's hard threshold,
// which cancels the request context.
type defaultHTTPClient struct {
	client *http.Client
}

// NewHTTPClient returns the production HTTP client.
func NewHTTPClient() HTTPClient {
	return &defaultHTTPClient{client: &http.Client{}}
}

// Post implements HTTPClient.
func (c *defaultHTTPClient) Post(ctx context.Context, url, contentType string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "text/event-stream")
	return c.client.Do(req)
}

var _ HTTPClient = (*defaultHTTPClient)(nil)
