package chat

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apierrors "github.com/diogo/sentichat/internal/errors"
	"github.com/diogo/sentichat/internal/models"
)

// transportFunc adapts a function to Transport
type transportFunc func(ctx context.Context, message string, sentAt time.Time) (string, error)

func (f transportFunc) Send(ctx context.Context, message string, sentAt time.Time) (string, error) {
	return f(ctx, message, sentAt)
}

// recordingTransport replies with a fixed outcome and records every call
type recordingTransport struct {
	mu     sync.Mutex
	reply  string
	err    error
	calls  []string
	sentAt []time.Time
}

func (r *recordingTransport) Send(_ context.Context, message string, sentAt time.Time) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, message)
	r.sentAt = append(r.sentAt, sentAt)
	return r.reply, r.err
}

func (r *recordingTransport) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

// blockingTransport holds each call until release receives an outcome
type blockingTransport struct {
	started chan string
	release chan string
	calls   int
	mu      sync.Mutex
}

func newBlockingTransport() *blockingTransport {
	return &blockingTransport{
		started: make(chan string, 4),
		release: make(chan string),
	}
}

func (b *blockingTransport) Send(_ context.Context, message string, _ time.Time) (string, error) {
	b.mu.Lock()
	b.calls++
	b.mu.Unlock()
	b.started <- message
	return <-b.release, nil
}

// recordingNotifier captures notifications
type recordingNotifier struct {
	mu    sync.Mutex
	calls []notification
}

type notification struct {
	title, description string
	severity           Severity
}

func (n *recordingNotifier) Notify(title, description string, severity Severity) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, notification{title, description, severity})
}

func sequentialIDs() func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("msg-%d", n)
	}
}

func TestSubmit_RejectsEmptyInput(t *testing.T) {
	inputs := []string{"", " ", "   ", "\t", "\n", " \n\t \r\n "}

	for _, input := range inputs {
		t.Run(fmt.Sprintf("%q", input), func(t *testing.T) {
			transport := &recordingTransport{reply: "ignored"}
			c := NewController(transport)
			c.SetInput(input)

			_, ok := c.Submit(context.Background(), input)

			assert.False(t, ok)
			assert.Empty(t, c.Messages())
			assert.Zero(t, transport.callCount())
			assert.False(t, c.Busy())
			assert.Equal(t, input, c.Input(), "rejected submit must not clear staged input")
		})
	}
}

func TestSubmit_RejectsWhileBusy(t *testing.T) {
	transport := newBlockingTransport()
	c := NewController(transport)

	done := make(chan models.Message)
	go func() {
		reply, _ := c.Submit(context.Background(), "first")
		done <- reply
	}()

	require.Equal(t, "first", <-transport.started)
	require.True(t, c.Busy())

	for _, input := range []string{"second", "  third  ", ""} {
		_, ok := c.Accept(input)
		assert.False(t, ok, "submission %q accepted while busy", input)
	}
	require.Len(t, c.Messages(), 1, "only the first user message may be present")

	transport.release <- "done"
	reply := <-done

	assert.Equal(t, "done", reply.Content)
	assert.False(t, c.Busy())
	assert.Equal(t, 1, transport.calls)
	assert.Len(t, c.Messages(), 2)
}

func TestSubmit_SuccessAppendsUserThenAssistant(t *testing.T) {
	transport := &recordingTransport{reply: "Bullish sentiment detected."}
	c := NewController(transport, WithIDGenerator(sequentialIDs()))

	reply, ok := c.Submit(context.Background(), "  How is NVDA trending?\n")
	require.True(t, ok)

	msgs := c.Messages()
	require.Len(t, msgs, 2)

	assert.Equal(t, models.RoleUser, msgs[0].Role)
	assert.Equal(t, "How is NVDA trending?", msgs[0].Content)
	assert.Equal(t, "msg-1", msgs[0].ID)

	assert.Equal(t, models.RoleAssistant, msgs[1].Role)
	assert.Equal(t, "Bullish sentiment detected.", msgs[1].Content)
	assert.Equal(t, "msg-2", msgs[1].ID)
	assert.Equal(t, msgs[1], reply)

	assert.Equal(t, []string{"How is NVDA trending?"}, transport.calls, "transport receives the trimmed input")
	assert.False(t, c.Busy())
}

func TestSubmit_EndToEndScenario(t *testing.T) {
	transport := transportFunc(func(ctx context.Context, message string, sentAt time.Time) (string, error) {
		return "Bullish sentiment detected.", nil
	})
	c := NewController(transport)

	_, ok := c.Submit(context.Background(), "How is NVDA trending?")
	require.True(t, ok)

	msgs := c.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, models.RoleUser, msgs[0].Role)
	assert.Equal(t, "How is NVDA trending?", msgs[0].Content)
	assert.Equal(t, models.RoleAssistant, msgs[1].Role)
	assert.Equal(t, "Bullish sentiment detected.", msgs[1].Content)
	assert.False(t, c.Busy())
}

func TestSubmit_EmptyBodyUsesFallback(t *testing.T) {
	notifier := &recordingNotifier{}
	c := NewController(&recordingTransport{reply: ""}, WithNotifier(notifier))

	reply, ok := c.Submit(context.Background(), "anything?")
	require.True(t, ok)

	assert.Equal(t, models.EmptyReplyFallback, reply.Content)
	assert.Equal(t, "I received your message but have no response to share.", reply.Content)
	assert.Empty(t, notifier.calls, "empty body is not an error")
}

func TestSubmit_FailureFallbackAndNotification(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"network error", apierrors.NewNetworkError("send message", errors.New("connection refused"))},
		{"non-success status", apierrors.NewAPIError(503, "https://hook.example", "service unavailable")},
		{"timeout", apierrors.NewTimeoutError("")},
		{"plain error", errors.New("boom")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			notifier := &recordingNotifier{}
			c := NewController(&recordingTransport{err: tt.err}, WithNotifier(notifier))

			d, ok := c.Accept("Is NVDA overbought?")
			require.True(t, ok)
			reply, err := d.Run(context.Background())

			assert.ErrorIs(t, err, tt.err)
			assert.Equal(t, models.RoleAssistant, reply.Role)
			assert.Equal(t, "Sorry, I encountered an error while processing your request. Please try again.", reply.Content)

			msgs := c.Messages()
			require.Len(t, msgs, 2)
			assert.Equal(t, reply, msgs[1])

			require.Len(t, notifier.calls, 1)
			assert.Equal(t, models.NotifyErrorTitle, notifier.calls[0].title)
			assert.Equal(t, models.NotifyErrorDescription, notifier.calls[0].description)
			assert.Equal(t, SeverityDestructive, notifier.calls[0].severity)

			assert.False(t, c.Busy())
		})
	}
}

func TestSubmit_PanickingNotifierStillClearsBusy(t *testing.T) {
	var logs bytes.Buffer
	notifier := NotifierFunc(func(string, string, Severity) {
		panic("toast system offline")
	})
	c := NewController(
		&recordingTransport{err: errors.New("unreachable")},
		WithNotifier(notifier),
		WithLogger(log.New(&logs, "", 0)),
	)

	require.NotPanics(t, func() {
		_, ok := c.Submit(context.Background(), "hello")
		require.True(t, ok)
	})

	assert.False(t, c.Busy())
	assert.Len(t, c.Messages(), 2)
	assert.Contains(t, logs.String(), "notifier panicked")
}

func TestSubmit_PanickingTransportSettlesAsFailure(t *testing.T) {
	notifier := &recordingNotifier{}
	c := NewController(transportFunc(func(context.Context, string, time.Time) (string, error) {
		panic("nil pointer somewhere")
	}), WithNotifier(notifier))

	reply, ok := c.Submit(context.Background(), "hello")
	require.True(t, ok)

	assert.Equal(t, models.ErrorReplyFallback, reply.Content)
	assert.Len(t, notifier.calls, 1)
	assert.False(t, c.Busy())
}

func TestSubmit_SequentialOrdering(t *testing.T) {
	transport := transportFunc(func(_ context.Context, message string, _ time.Time) (string, error) {
		if message == "B" {
			return "", errors.New("down")
		}
		return "reply to " + message, nil
	})
	c := NewController(transport)

	_, ok := c.Submit(context.Background(), "A")
	require.True(t, ok)
	_, ok = c.Submit(context.Background(), "B")
	require.True(t, ok)

	msgs := c.Messages()
	require.Len(t, msgs, 4)

	wantRoles := []models.Role{models.RoleUser, models.RoleAssistant, models.RoleUser, models.RoleAssistant}
	for i, want := range wantRoles {
		assert.Equal(t, want, msgs[i].Role, "message %d", i)
	}
	assert.Equal(t, "A", msgs[0].Content)
	assert.Equal(t, "reply to A", msgs[1].Content)
	assert.Equal(t, "B", msgs[2].Content)
	assert.Equal(t, models.ErrorReplyFallback, msgs[3].Content)
}

func TestAccept_ClearsInputBeforeDispatch(t *testing.T) {
	transport := newBlockingTransport()
	c := NewController(transport)
	c.SetInput("  staged text  ")

	d, ok := c.Accept(c.Input())
	require.True(t, ok)

	// Input is cleared and the user message is visible before the call runs.
	assert.Equal(t, "", c.Input())
	assert.True(t, c.Busy())
	require.Len(t, c.Messages(), 1)
	assert.Equal(t, "staged text", c.Messages()[0].Content)
	assert.Equal(t, d.UserMessage(), c.Messages()[0])

	// The user can type the next message while the request is in flight.
	c.SetInput("next")

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = d.Run(context.Background())
	}()
	<-transport.started
	transport.release <- "ok"
	<-done

	assert.Equal(t, "next", c.Input())
	assert.False(t, c.Busy())
}

func TestDispatchRun_IsIdempotent(t *testing.T) {
	transport := &recordingTransport{reply: "once"}
	c := NewController(transport)

	d, ok := c.Accept("hi")
	require.True(t, ok)

	first, err1 := d.Run(context.Background())
	second, err2 := d.Run(context.Background())

	assert.NoError(t, err1)
	assert.NoError(t, err2)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, transport.callCount())
	assert.Len(t, c.Messages(), 2)
}

func TestSubmit_TimestampsAndSendTime(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	tick := 0
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}

	transport := &recordingTransport{reply: "ok"}
	c := NewController(transport, WithClock(clock))

	_, ok := c.Submit(context.Background(), "when?")
	require.True(t, ok)

	msgs := c.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, msgs[0].Timestamp, transport.sentAt[0], "transport receives the user message send time")
	assert.True(t, msgs[1].Timestamp.After(msgs[0].Timestamp), "reply is stamped at settlement")
}

func TestSubmit_UniqueIDs(t *testing.T) {
	c := NewController(&recordingTransport{reply: "ok"})

	for i := 0; i < 25; i++ {
		_, ok := c.Submit(context.Background(), fmt.Sprintf("message %d", i))
		require.True(t, ok)
	}

	seen := make(map[string]bool)
	for _, msg := range c.Messages() {
		require.NotEmpty(t, msg.ID)
		require.False(t, seen[msg.ID], "duplicate id %s", msg.ID)
		seen[msg.ID] = true
	}
	assert.Len(t, seen, 50)
}

func TestSubmitInput_UsesStagedText(t *testing.T) {
	transport := &recordingTransport{reply: "ok"}
	c := NewController(transport)

	c.SetInput("staged question")
	_, ok := c.SubmitInput(context.Background())

	require.True(t, ok)
	assert.Equal(t, []string{"staged question"}, transport.calls)
	assert.Equal(t, "", c.Input())
}

func TestReset(t *testing.T) {
	transport := newBlockingTransport()
	c := NewController(transport)

	d, ok := c.Accept("hold on")
	require.True(t, ok)
	assert.False(t, c.Reset(), "reset must be refused while busy")

	go func() { _, _ = d.Run(context.Background()) }()
	<-transport.started
	transport.release <- "ok"

	require.Eventually(t, func() bool { return !c.Busy() }, time.Second, time.Millisecond)
	assert.True(t, c.Reset())
	assert.Empty(t, c.Messages())
}

func TestSubmit_ConcurrentCallersAcceptOnlyOne(t *testing.T) {
	transport := newBlockingTransport()
	c := NewController(transport)

	const callers = 20
	var wg sync.WaitGroup
	accepted := make(chan *Dispatch, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if d, ok := c.Accept(fmt.Sprintf("caller %d", i)); ok {
				accepted <- d
			}
		}(i)
	}
	wg.Wait()
	close(accepted)

	var dispatches []*Dispatch
	for d := range accepted {
		dispatches = append(dispatches, d)
	}
	require.Len(t, dispatches, 1)

	go func() { _, _ = dispatches[0].Run(context.Background()) }()
	<-transport.started
	transport.release <- "only one"

	require.Eventually(t, func() bool { return !c.Busy() }, time.Second, time.Millisecond)
	assert.Len(t, c.Messages(), 2)
}

func TestController_LogsDispatch(t *testing.T) {
	var logs bytes.Buffer
	c := NewController(&recordingTransport{reply: "fine"}, WithLogger(log.New(&logs, "", 0)))

	_, ok := c.Submit(context.Background(), "status?")
	require.True(t, ok)

	out := logs.String()
	assert.True(t, strings.Contains(out, "accepted message"), out)
	assert.True(t, strings.Contains(out, "settled in"), out)
}

func TestSeverityString(t *testing.T) {
	assert.Equal(t, "info", SeverityInfo.String())
	assert.Equal(t, "destructive", SeverityDestructive.String())
}
