package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/diogo/sentichat/internal/chat"
	"github.com/diogo/sentichat/internal/models"
)

type published struct {
	channel string
	payload []byte
}

// fakePublisher records publishes instead of talking to Redis
type fakePublisher struct {
	mu      sync.Mutex
	calls   []published
	err     error
	block   chan struct{}
	closed  bool
	started chan struct{}
}

func (f *fakePublisher) Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd {
	if f.started != nil {
		select {
		case f.started <- struct{}{}:
		default:
		}
	}
	if f.block != nil {
		<-f.block
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	payload, _ := message.([]byte)
	f.calls = append(f.calls, published{channel: channel, payload: payload})
	return redis.NewIntResult(1, f.err)
}

func (f *fakePublisher) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakePublisher) snapshot() []published {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]published, len(f.calls))
	copy(out, f.calls)
	return out
}

func testMessage(id string, role models.Role, content string) models.Message {
	return models.Message{
		ID:        id,
		Role:      role,
		Content:   content,
		Timestamp: time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC),
	}
}

func TestRelay_PublishesEnvelopesInOrder(t *testing.T) {
	pub := &fakePublisher{}
	r := New(pub, "sentichat:test", WithSessionID("session-1"))

	r.Enqueue(testMessage("m1", models.RoleUser, "How is NVDA trending?"))
	r.Enqueue(testMessage("m2", models.RoleAssistant, "Bullish"))

	if err := r.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	calls := pub.snapshot()
	if len(calls) != 2 {
		t.Fatalf("published %d messages, want 2", len(calls))
	}

	var first MessageEnvelope
	if err := json.Unmarshal(calls[0].payload, &first); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	if calls[0].channel != "sentichat:test" {
		t.Errorf("channel = %q", calls[0].channel)
	}
	if first.MessageID != "m1" || first.Role != "user" || first.SessionID != "session-1" {
		t.Errorf("unexpected envelope %+v", first)
	}
	if first.Source != "sentichat" {
		t.Errorf("Source = %q", first.Source)
	}

	var second MessageEnvelope
	if err := json.Unmarshal(calls[1].payload, &second); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	if second.MessageID != "m2" || second.Content != "Bullish" {
		t.Errorf("unexpected envelope %+v", second)
	}

	if !pub.closed {
		t.Error("Close() should close the publisher")
	}

	sent, dropped, failed := r.Stats()
	if sent != 2 || dropped != 0 || failed != 0 {
		t.Errorf("Stats() = %d, %d, %d", sent, dropped, failed)
	}
}

func TestRelay_DropsWhenQueueFull(t *testing.T) {
	var buf bytes.Buffer
	pub := &fakePublisher{
		block:   make(chan struct{}),
		started: make(chan struct{}, 1),
	}
	r := New(pub, "ch", WithQueueSize(1), WithLogger(log.New(&buf, "", 0)))

	r.Enqueue(testMessage("m1", models.RoleUser, "a"))
	<-pub.started // worker holds m1

	r.Enqueue(testMessage("m2", models.RoleUser, "b")) // queued
	r.Enqueue(testMessage("m3", models.RoleUser, "c")) // dropped

	close(pub.block)
	if err := r.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	if got := len(pub.snapshot()); got != 2 {
		t.Errorf("published %d messages, want 2", got)
	}
	_, dropped, _ := r.Stats()
	if dropped != 1 {
		t.Errorf("dropped = %d, want 1", dropped)
	}
	if !strings.Contains(buf.String(), "dropped message m3") {
		t.Errorf("drop not logged: %q", buf.String())
	}
}

func TestRelay_PublishFailureIsLogged(t *testing.T) {
	var buf bytes.Buffer
	pub := &fakePublisher{err: errors.New("connection refused")}
	r := New(pub, "ch", WithLogger(log.New(&buf, "", 0)))

	r.Enqueue(testMessage("m1", models.RoleUser, "a"))
	r.Close()

	_, _, failed := r.Stats()
	if failed != 1 {
		t.Errorf("failed = %d, want 1", failed)
	}
	if !strings.Contains(buf.String(), "connection refused") {
		t.Errorf("failure not logged: %q", buf.String())
	}
}

func TestRelay_EnqueueAfterClose(t *testing.T) {
	pub := &fakePublisher{}
	r := New(pub, "ch")
	r.Close()

	r.Enqueue(testMessage("m1", models.RoleUser, "late"))

	if got := len(pub.snapshot()); got != 0 {
		t.Errorf("published %d messages after Close", got)
	}
	if err := r.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}

func TestRelay_AttachToStore(t *testing.T) {
	pub := &fakePublisher{}
	r := New(pub, "ch")

	store := chat.NewStore()
	r.Attach(store)

	store.Append(testMessage("m1", models.RoleUser, "hello"))
	store.Append(testMessage("m2", models.RoleAssistant, "hi"))
	r.Close()

	if got := len(pub.snapshot()); got != 2 {
		t.Errorf("published %d messages, want 2", got)
	}
}

func TestNewEnvelope_UsesUTC(t *testing.T) {
	loc := time.FixedZone("EST", -5*60*60)
	msg := models.Message{
		ID:        "x",
		Role:      models.RoleAssistant,
		Timestamp: time.Date(2025, 3, 14, 4, 30, 0, 0, loc),
	}

	env := NewEnvelope(msg, "")
	if env.Timestamp.Location() != time.UTC {
		t.Errorf("Timestamp location = %v, want UTC", env.Timestamp.Location())
	}
	if env.Timestamp.Hour() != 9 {
		t.Errorf("Timestamp hour = %d, want 9", env.Timestamp.Hour())
	}
}

func TestDial_InvalidURL(t *testing.T) {
	_, err := Dial(context.Background(), "not-a-redis-url", "ch")
	if err == nil {
		t.Fatal("Dial() should fail on invalid url")
	}
	if !strings.Contains(err.Error(), "invalid redis url") {
		t.Errorf("error = %v", err)
	}
}
