package session

import (
	"context"
	"sync"
	"time"

	"github.com/cryptolock-ai/whatsapp-relay/pkg/logging"
)

// Store is the process-wide map of user ID to chat session. It is the single
// source of truth for who is mid-conversation.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	ttl      time.Duration
	logger   *logging.Logger
}

// NewStore creates a session store. A zero ttl disables idle eviction.
func NewStore(ttl time.Duration, logger *logging.Logger) *Store {
	if logger == nil {
		logger = logging.Default()
	}
	return &Store{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		logger:   logger,
	}
}

// GetOrCreate returns the session for userID, creating it atomically on first
// contact. The factory supplies the system instruction for a new session and
// is only invoked when one is actually created. The returned bool reports
// whether a new session was created.
func (s *Store) GetOrCreate(userID string, factory func() string) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.sessions[userID]; ok {
		return sess, false
	}

	sess := newSession(userID, factory(), time.Now().UTC())
	s.sessions[userID] = sess
	s.logger.Info("chat session created", "user_id", userID)
	return sess, true
}

// Get returns the session for userID, or nil when none exists.
func (s *Store) Get(userID string) *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessions[userID]
}

// Delete removes a session if present and reports whether one existed.
func (s *Store) Delete(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[userID]; !ok {
		return false
	}
	delete(s.sessions, userID)
	s.logger.Info("chat session deleted", "user_id", userID)
	return true
}

// Clear removes every session and returns the count removed.
func (s *Store) Clear() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := len(s.sessions)
	s.sessions = make(map[string]*Session)
	if removed > 0 {
		s.logger.Info("all chat sessions cleared", "removed", removed)
	}
	return removed
}

// Count returns the number of live sessions.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// StartSweeper evicts sessions idle longer than the store TTL until ctx is
// cancelled. It is a no-op when the TTL is zero.
func (s *Store) StartSweeper(ctx context.Context, interval time.Duration) {
	if s.ttl <= 0 {
		return
	}
	if interval <= 0 {
		interval = time.Minute
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if evicted := s.sweep(time.Now().UTC()); evicted > 0 {
					s.logger.Info("idle sessions evicted", "count", evicted)
				}
			}
		}
	}()
}

func (s *Store) sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	var evicted int
	for userID, sess := range s.sessions {
		if now.Sub(sess.LastActivity()) > s.ttl {
			delete(s.sessions, userID)
			evicted++
		}
	}
	return evicted
}
