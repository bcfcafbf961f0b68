package chat

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const pruneInterval = 5 * time.Minute

// SessionStore keeps transcripts in memory, keyed by session ID.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]*Session
	now      func() time.Time
}

// NewSessionStore creates an empty store.
func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*Session),
		now:      time.Now,
	}
}

// Get returns the session for id, creating it on first use.
func (st *SessionStore) Get(id string) *Session {
	st.mu.Lock()
	defer st.mu.Unlock()
	s, ok := st.sessions[id]
	if !ok {
		s = newSession(id, st.now())
		st.sessions[id] = s
	}
	return s
}

// Begin returns the session for id, creating it if needed, and marks a query
// in flight. It reports false when a query is already running. Both steps run
// under the store lock so Prune cannot drop the session in between.
func (st *SessionStore) Begin(id string, now time.Time) (*Session, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	s, ok := st.sessions[id]
	if !ok {
		s = newSession(id, now)
		st.sessions[id] = s
	}
	return s, s.TryBeginQuery(now)
}

// Lookup returns the session for id without creating it.
func (st *SessionStore) Lookup(id string) (*Session, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	s, ok := st.sessions[id]
	return s, ok
}

// Len returns the number of live sessions.
func (st *SessionStore) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.sessions)
}

// Prune drops sessions idle for longer than ttl and returns their IDs.
// Sessions with a query in flight are kept.
func (st *SessionStore) Prune(ttl time.Duration) []string {
	cutoff := st.now().Add(-ttl)

	st.mu.Lock()
	defer st.mu.Unlock()

	var pruned []string
	for id, s := range st.sessions {
		if s.Loading() || s.LastActive().After(cutoff) {
			continue
		}
		delete(st.sessions, id)
		pruned = append(pruned, id)
	}
	return pruned
}

// StartPruner runs Prune every interval until ctx is done.
func (st *SessionStore) StartPruner(ctx context.Context, ttl, interval time.Duration) {
	if interval <= 0 {
		interval = pruneInterval
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		slog.Info("Session pruner started", "interval", interval, "ttl", ttl)

		for {
			select {
			case <-ticker.C:
				if pruned := st.Prune(ttl); len(pruned) > 0 {
					slog.Info("Session pruner dropped idle transcripts", "count", len(pruned), "remaining", st.Len())
				}
			case <-ctx.Done():
				slog.Info("Session pruner shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}
