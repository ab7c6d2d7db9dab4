// Package chat holds the conversation state and the request lifecycle that
// turns one user submission into exactly one assistant reply.
package chat

import (
	"sync"

	"github.com/diogo/sentichat/internal/models"
)

// Store is the ordered, append-only message sequence of one conversation.
// Insertion order is display order.
type Store struct {
	mu        sync.RWMutex
	messages  []models.Message
	listeners []func(models.Message)
}

// NewStore creates an empty conversation store
func NewStore() *Store {
	return &Store{messages: []models.Message{}}
}

// Append inserts msg at the tail and notifies subscribers.
// Subscribers run after the message is visible to readers.
func (s *Store) Append(msg models.Message) {
	s.mu.Lock()
	s.messages = append(s.messages, msg)
	listeners := make([]func(models.Message), len(s.listeners))
	copy(listeners, s.listeners)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(msg)
	}
}

// Messages returns a copy of the full sequence
func (s *Store) Messages() []models.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Len returns the number of messages
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}

// Last returns the most recent message
func (s *Store) Last() (models.Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.messages) == 0 {
		return models.Message{}, false
	}
	return s.messages[len(s.messages)-1], true
}

// LastByRole returns the most recent message with the given role
func (s *Store) LastByRole(role models.Role) (models.Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := len(s.messages) - 1; i >= 0; i-- {
		if s.messages[i].Role == role {
			return s.messages[i], true
		}
	}
	return models.Message{}, false
}

// Subscribe registers fn to be called after every append
func (s *Store) Subscribe(fn func(models.Message)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Clear removes every message. Subscribers are not notified.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = []models.Message{}
}
