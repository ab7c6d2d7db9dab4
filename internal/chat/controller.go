package chat

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/diogo/sentichat/internal/models"
)

// Transport performs the single outbound call for a submission.
// It returns the reply body on a 2xx response and an error otherwise.
type Transport interface {
	Send(ctx context.Context, message string, sentAt time.Time) (string, error)
}

// Controller owns the conversation and the busy flag. It accepts at most one
// submission at a time and appends exactly one assistant reply per accepted
// submission.
type Controller struct {
	store     *Store
	transport Transport
	notifier  Notifier
	logger    *log.Logger
	now       func() time.Time
	newID     func() string

	mu    sync.Mutex
	busy  bool
	input string
}

// Option configures a Controller
type Option func(*Controller)

// WithNotifier sets the collaborator used to surface dispatch failures
func WithNotifier(n Notifier) Option {
	return func(c *Controller) {
		if n != nil {
			c.notifier = n
		}
	}
}

// WithLogger sets the logger used for diagnostics
func WithLogger(l *log.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithClock overrides the time source (for testing)
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		c.now = now
	}
}

// WithIDGenerator overrides message id generation (for testing)
func WithIDGenerator(newID func() string) Option {
	return func(c *Controller) {
		c.newID = newID
	}
}

// WithStore uses an existing store instead of a fresh one
func WithStore(s *Store) Option {
	return func(c *Controller) {
		if s != nil {
			c.store = s
		}
	}
}

// NewController creates a controller dispatching through transport
func NewController(transport Transport, opts ...Option) *Controller {
	c := &Controller{
		store:     NewStore(),
		transport: transport,
		notifier:  nopNotifier{},
		logger:    log.New(io.Discard, "", 0),
		now:       time.Now,
		newID:     newMessageID,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// newMessageID returns a time-ordered unique id
func newMessageID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}

// NewSessionID returns an id tagging one run of the program
func NewSessionID() string {
	return newMessageID()
}

// Store returns the conversation store
func (c *Controller) Store() *Store {
	return c.store
}

// Messages returns the conversation in display order
func (c *Controller) Messages() []models.Message {
	return c.store.Messages()
}

// Busy reports whether a dispatch is in flight
func (c *Controller) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.busy
}

// Input returns the staged input text
func (c *Controller) Input() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.input
}

// SetInput replaces the staged input text
func (c *Controller) SetInput(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.input = text
}

// Accept runs the synchronous half of a submission. It returns false, with
// no state change, when the trimmed input is empty or a dispatch is already
// in flight. Otherwise the user message is appended, the staged input is
// cleared, busy is set and the returned Dispatch must be run to settle it.
func (c *Controller) Accept(raw string) (*Dispatch, bool) {
	text := strings.TrimSpace(raw)

	c.mu.Lock()
	if text == "" || c.busy {
		c.mu.Unlock()
		return nil, false
	}
	c.busy = true
	c.input = ""
	c.mu.Unlock()

	sentAt := c.now()
	msg := models.Message{
		ID:        c.newID(),
		Content:   text,
		Role:      models.RoleUser,
		Timestamp: sentAt,
	}
	c.store.Append(msg)
	c.logger.Printf("accepted message %s (%d chars)", msg.ID, len(text))

	return &Dispatch{controller: c, userMsg: msg}, true
}

// Submit accepts raw and blocks until the dispatch settles. It returns the
// assistant reply, or false if the submission was rejected.
func (c *Controller) Submit(ctx context.Context, raw string) (models.Message, bool) {
	d, ok := c.Accept(raw)
	if !ok {
		return models.Message{}, false
	}
	reply, _ := d.Run(ctx)
	return reply, true
}

// SubmitInput submits the staged input
func (c *Controller) SubmitInput(ctx context.Context) (models.Message, bool) {
	return c.Submit(ctx, c.Input())
}

// Reset clears the conversation. It refuses while a dispatch is in flight.
func (c *Controller) Reset() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.busy {
		return false
	}
	c.store.Clear()
	return true
}

// Dispatch is one accepted submission awaiting settlement
type Dispatch struct {
	controller *Controller
	userMsg    models.Message

	once  sync.Once
	reply models.Message
	err   error
}

// UserMessage returns the message that was appended on acceptance
func (d *Dispatch) UserMessage() models.Message {
	return d.userMsg
}

// Run performs the outbound call and settles the submission: exactly one
// assistant message is appended and busy is cleared. The returned error is
// the underlying failure, already converted into the fallback reply. Calling
// Run again returns the first settlement without another request.
func (d *Dispatch) Run(ctx context.Context) (models.Message, error) {
	d.once.Do(func() {
		d.reply, d.err = d.controller.dispatch(ctx, d.userMsg)
	})
	return d.reply, d.err
}

func (c *Controller) dispatch(ctx context.Context, userMsg models.Message) (reply models.Message, err error) {
	defer func() {
		c.mu.Lock()
		c.busy = false
		c.mu.Unlock()
	}()

	start := c.now()
	body, err := c.send(ctx, userMsg)
	settledAt := c.now()

	reply = models.Message{
		ID:        c.newID(),
		Role:      models.RoleAssistant,
		Timestamp: settledAt,
	}

	if err != nil {
		c.logger.Printf("dispatch %s failed after %s: %v", userMsg.ID, settledAt.Sub(start).Round(time.Millisecond), err)
		reply.Content = models.ErrorReplyFallback
		c.store.Append(reply)
		c.notify(models.NotifyErrorTitle, models.NotifyErrorDescription, SeverityDestructive)
		return reply, err
	}

	c.logger.Printf("dispatch %s settled in %s (%d bytes)", userMsg.ID, settledAt.Sub(start).Round(time.Millisecond), len(body))
	reply.Content = body
	if body == "" {
		reply.Content = models.EmptyReplyFallback
	}
	c.store.Append(reply)
	return reply, nil
}

// send calls the transport, turning a panic into an error so the
// submission still settles.
func (c *Controller) send(ctx context.Context, userMsg models.Message) (body string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &panicError{value: r}
		}
	}()
	return c.transport.Send(ctx, userMsg.Content, userMsg.Timestamp)
}

// notify delivers a notification, swallowing notifier panics
func (c *Controller) notify(title, description string, severity Severity) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Printf("notifier panicked: %v", r)
		}
	}()
	c.notifier.Notify(title, description, severity)
}

type panicError struct {
	value any
}

func (e *panicError) Error() string {
	return fmt.Sprintf("transport panicked: %v", e.value)
}
