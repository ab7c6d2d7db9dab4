// Package api provides the webhook client that carries chat messages to the
// remote message-processing service.
package api

import (
	"context"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	tls_client "github.com/bogdanfinn/tls-client"
	"github.com/bogdanfinn/tls-client/profiles"
)

// WebhookClientInterface is the subset of WebhookClient used by commands and the TUI
type WebhookClientInterface interface {
	Send(ctx context.Context, message string, sentAt time.Time) (string, error)
	Endpoint() string
	Close()
	IsClosed() bool
}

// WebhookClient posts messages to a fixed webhook endpoint
type WebhookClient struct {
	httpClient    tls_client.HttpClient
	endpoint      string
	timeout       time.Duration
	responseField string
	profile       profiles.ClientProfile
	logger        *log.Logger
	mu            sync.RWMutex
	closed        bool
}

// ClientOption is a function that configures the client
type ClientOption func(*WebhookClient)

// WithTimeout bounds every request. Zero disables the client-side timeout.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *WebhookClient) {
		c.timeout = timeout
	}
}

// WithResponseField extracts a gjson path from JSON reply bodies
func WithResponseField(path string) ClientOption {
	return func(c *WebhookClient) {
		c.responseField = path
	}
}

// WithHTTPClient injects the underlying HTTP client (for testing)
func WithHTTPClient(httpClient tls_client.HttpClient) ClientOption {
	return func(c *WebhookClient) {
		c.httpClient = httpClient
	}
}

// WithClientProfile sets the TLS fingerprint profile
func WithClientProfile(profile profiles.ClientProfile) ClientOption {
	return func(c *WebhookClient) {
		c.profile = profile
	}
}

// WithLogger sets the logger used for request diagnostics
func WithLogger(logger *log.Logger) ClientOption {
	return func(c *WebhookClient) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient creates a new WebhookClient for endpoint. The endpoint is used
// as given; an empty one makes every Send fail.
func NewClient(endpoint string, opts ...ClientOption) (*WebhookClient, error) {
	client := &WebhookClient{
		endpoint: endpoint,
		profile:  profiles.Chrome_120,
		logger:   log.New(io.Discard, "", 0),
	}

	for _, opt := range opts {
		opt(client)
	}

	if client.httpClient == nil {
		options := []tls_client.HttpClientOption{
			tls_client.WithTimeoutSeconds(int(client.timeout / time.Second)),
			tls_client.WithClientProfile(client.profile),
		}

		httpClient, err := tls_client.NewHttpClient(tls_client.NewNoopLogger(), options...)
		if err != nil {
			return nil, fmt.Errorf("failed to create HTTP client: %w", err)
		}
		client.httpClient = httpClient
	}

	return client, nil
}

// Endpoint returns the configured webhook URL
func (c *WebhookClient) Endpoint() string {
	return c.endpoint
}

// Timeout returns the per-request timeout (0 = none)
func (c *WebhookClient) Timeout() time.Duration {
	return c.timeout
}

// Close releases idle connections. Further sends fail.
func (c *WebhookClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	c.httpClient.CloseIdleConnections()
}

// IsClosed returns whether the client is closed
func (c *WebhookClient) IsClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}
