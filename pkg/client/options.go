package client

import (
	"net/http"
	"time"
)

// Option configures a Client.
type Option func(*options)

type options struct {
	bearerToken string
	httpClient  *http.Client
}

func defaultOptions() *options {
	return &options{
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// WithBearerToken sets the token sent as "Authorization: Bearer <token>"
// on every request the client makes; the server requires it only for DLQ
// retry.
func WithBearerToken(token string) Option {
	return func(o *options) { o.bearerToken = token }
}

// WithHTTPClient overrides the underlying *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) { o.httpClient = hc }
}
