// Package relay mirrors conversation messages onto a Redis pub/sub channel.
package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/diogo/sentichat/internal/models"
)

const (
	// DefaultQueueSize bounds the number of messages waiting to be published
	DefaultQueueSize = 64
	// DefaultPublishTimeout bounds a single PUBLISH
	DefaultPublishTimeout = 2 * time.Second

	envelopeSource = "sentichat"
)

// Publisher is the subset of *redis.Client the relay needs
type Publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
	Close() error
}

// MessageEnvelope is the JSON document published for every message
type MessageEnvelope struct {
	MessageID string    `json:"message_id"`
	SessionID string    `json:"session_id"`
	Source    string    `json:"source"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Relay publishes messages from a bounded queue on its own goroutine, so a
// slow or unreachable Redis never blocks the caller.
type Relay struct {
	pub       Publisher
	channel   string
	sessionID string
	timeout   time.Duration
	logger    *log.Logger

	queue chan models.Message
	done  chan struct{}

	mu     sync.Mutex
	closed bool

	published int
	dropped   int
	failed    int
}

// Option configures a Relay
type Option func(*relayOptions)

type relayOptions struct {
	sessionID string
	queueSize int
	timeout   time.Duration
	logger    *log.Logger
}

// WithSessionID tags every envelope with id
func WithSessionID(id string) Option {
	return func(o *relayOptions) {
		o.sessionID = id
	}
}

// WithQueueSize sets the queue capacity
func WithQueueSize(n int) Option {
	return func(o *relayOptions) {
		if n > 0 {
			o.queueSize = n
		}
	}
}

// WithPublishTimeout bounds each publish call
func WithPublishTimeout(d time.Duration) Option {
	return func(o *relayOptions) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithLogger sets the logger used for drops and publish failures
func WithLogger(l *log.Logger) Option {
	return func(o *relayOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// New starts a relay publishing to channel through pub
func New(pub Publisher, channel string, opts ...Option) *Relay {
	o := relayOptions{
		queueSize: DefaultQueueSize,
		timeout:   DefaultPublishTimeout,
		logger:    log.New(io.Discard, "", 0),
	}
	for _, opt := range opts {
		opt(&o)
	}

	r := &Relay{
		pub:       pub,
		channel:   channel,
		sessionID: o.sessionID,
		timeout:   o.timeout,
		logger:    o.logger,
		queue:     make(chan models.Message, o.queueSize),
		done:      make(chan struct{}),
	}
	go r.run()
	return r
}

// Dial connects to the Redis server at url and starts a relay on channel.
// The connection is verified with PING before the relay is returned.
func Dial(ctx context.Context, url, channel string, opts ...Option) (*Relay, error) {
	redisOpts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	rdb := redis.NewClient(redisOpts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return New(rdb, channel, opts...), nil
}

// Subscriber is anything that reports appended messages
type Subscriber interface {
	Subscribe(fn func(models.Message))
}

// Attach mirrors every message appended to src
func (r *Relay) Attach(src Subscriber) {
	src.Subscribe(r.Enqueue)
}

// Enqueue schedules msg for publishing. It never blocks: when the queue is
// full or the relay is closed the message is dropped.
func (r *Relay) Enqueue(msg models.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		r.dropped++
		return
	}

	select {
	case r.queue <- msg:
	default:
		r.dropped++
		r.logger.Printf("relay queue full, dropped message %s", msg.ID)
	}
}

// Close stops accepting messages, publishes what is queued and closes the
// underlying publisher.
func (r *Relay) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	close(r.queue)
	r.mu.Unlock()

	<-r.done
	return r.pub.Close()
}

// Stats returns how many messages were published, dropped and failed
func (r *Relay) Stats() (published, dropped, failed int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.published, r.dropped, r.failed
}

func (r *Relay) run() {
	defer close(r.done)

	for msg := range r.queue {
		err := r.publish(msg)

		r.mu.Lock()
		if err != nil {
			r.failed++
		} else {
			r.published++
		}
		r.mu.Unlock()

		if err != nil {
			r.logger.Printf("relay publish %s failed: %v", msg.ID, err)
		}
	}
}

func (r *Relay) publish(msg models.Message) error {
	payload, err := json.Marshal(NewEnvelope(msg, r.sessionID))
	if err != nil {
		return fmt.Errorf("failed to marshal envelope: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	return r.pub.Publish(ctx, r.channel, payload).Err()
}

// NewEnvelope builds the published form of msg
func NewEnvelope(msg models.Message, sessionID string) MessageEnvelope {
	return MessageEnvelope{
		MessageID: msg.ID,
		SessionID: sessionID,
		Source:    envelopeSource,
		Role:      string(msg.Role),
		Content:   msg.Content,
		Timestamp: msg.Timestamp.UTC(),
	}
}
