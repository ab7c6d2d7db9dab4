package tui

import (
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/diogo/sentichat/internal/chat"
)

// ToastDuration is how long a toast stays on screen
const ToastDuration = 5 * time.Second

type toast struct {
	id          int
	title       string
	description string
	severity    chat.Severity
}

// toastExpiredMsg dismisses the toast with the given id
type toastExpiredMsg struct {
	id int
}

// ToastQueue is the chat.Notifier used by the chat screen. Notify may be
// called from the dispatch goroutine; the model drains the queue on the
// bubbletea loop.
type ToastQueue struct {
	mu      sync.Mutex
	nextID  int
	pending []toast
}

// NewToastQueue creates an empty queue
func NewToastQueue() *ToastQueue {
	return &ToastQueue{}
}

// Notify queues a toast. It never blocks.
func (q *ToastQueue) Notify(title, description string, severity chat.Severity) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.nextID++
	q.pending = append(q.pending, toast{
		id:          q.nextID,
		title:       title,
		description: description,
		severity:    severity,
	})
}

// drain returns and clears the pending toasts
func (q *ToastQueue) drain() []toast {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := q.pending
	q.pending = nil
	return out
}

// expireToast schedules the dismissal of a toast
func expireToast(id int, after time.Duration) tea.Cmd {
	return tea.Tick(after, func(time.Time) tea.Msg {
		return toastExpiredMsg{id: id}
	})
}
