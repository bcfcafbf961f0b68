// Package chat holds per-session transcripts and the HTTP and WebSocket
// surfaces that feed queries to the agent client.
package chat

import (
	"sync"
	"time"

	"github.com/ashureev/cityagent/internal/domain"
)

// Session is one visitor's transcript plus its loading flag.
type Session struct {
	ID string

	mu         sync.Mutex
	messages   []domain.ChatMessage
	loading    bool
	lastActive time.Time
}

func newSession(id string, now time.Time) *Session {
	return &Session{ID: id, lastActive: now}
}

// Append adds messages in order.
func (s *Session) Append(now time.Time, msgs ...domain.ChatMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, msgs...)
	s.lastActive = now
}

// Messages returns a copy of the transcript.
func (s *Session) Messages() []domain.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.ChatMessage, len(s.messages))
	copy(out, s.messages)
	return out
}

// Len returns the number of messages.
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

// Clear empties the transcript.
func (s *Session) Clear(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = nil
	s.lastActive = now
}

// TryBeginQuery sets the loading flag. It returns false if a query is already in flight.
func (s *Session) TryBeginQuery(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loading {
		return false
	}
	s.loading = true
	s.lastActive = now
	return true
}

// EndQuery clears the loading flag.
func (s *Session) EndQuery() {
	s.mu.Lock()
	s.loading = false
	s.mu.Unlock()
}

// Loading reports whether a query is in flight.
func (s *Session) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// LastActive returns the time of the last mutation.
func (s *Session) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}
