package api

import (
	"context"
	"sync"
	"time"
)

// MockWebhookClient is a mock implementation of WebhookClientInterface for testing
type MockWebhookClient struct {
	mu sync.Mutex

	// Mock return values
	Reply       string
	Err         error
	EndpointVal string
	// SendFunc, when set, replaces Reply/Err
	SendFunc func(ctx context.Context, message string, sentAt time.Time) (string, error)

	// Call counters/recorders
	Messages    []string
	SentAt      []time.Time
	CloseCalled bool
	closed      bool
}

// Ensure MockWebhookClient implements WebhookClientInterface
var _ WebhookClientInterface = (*MockWebhookClient)(nil)

func (m *MockWebhookClient) Send(ctx context.Context, message string, sentAt time.Time) (string, error) {
	m.mu.Lock()
	m.Messages = append(m.Messages, message)
	m.SentAt = append(m.SentAt, sentAt)
	fn := m.SendFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, message, sentAt)
	}
	return m.Reply, m.Err
}

func (m *MockWebhookClient) Endpoint() string {
	return m.EndpointVal
}

func (m *MockWebhookClient) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CloseCalled = true
	m.closed = true
}

func (m *MockWebhookClient) IsClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// CallCount returns how many messages were sent
func (m *MockWebhookClient) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Messages)
}
