// Package session holds the in-memory conversational state for each WhatsApp
// user. Sessions live only for the process lifetime; a restart discards them.
package session

import (
	"sync"
	"time"
)

const (
	// RoleUser marks a turn authored by the WhatsApp user.
	RoleUser = "user"
	// RoleAssistant marks a turn authored by the AI.
	RoleAssistant = "assistant"
)

// Turn is a single role-tagged message within a session's history.
type Turn struct {
	Role    string    `json:"role"`
	Content string    `json:"content"`
	At      time.Time `json:"at"`
}

// Session is one user's ongoing conversation: append-only history plus the
// system instruction fixed at creation.
type Session struct {
	UserID            string
	SystemInstruction string
	CreatedAt         time.Time

	// turnMu serializes complete inbound exchanges for this user so that
	// concurrent deliveries from the same number cannot interleave turns.
	turnMu sync.Mutex

	mu           sync.Mutex
	history      []Turn
	lastActivity time.Time
	messageCount int
}

func newSession(userID, systemInstruction string, now time.Time) *Session {
	return &Session{
		UserID:            userID,
		SystemInstruction: systemInstruction,
		CreatedAt:         now,
		lastActivity:      now,
	}
}

// LockTurn acquires the per-user exchange lock. Callers must pair it with
// UnlockTurn around the full inbound→AI→append cycle.
func (s *Session) LockTurn() { s.turnMu.Lock() }

// UnlockTurn releases the per-user exchange lock.
func (s *Session) UnlockTurn() { s.turnMu.Unlock() }

// History returns a copy of the accumulated turns.
func (s *Session) History() []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Turn, len(s.history))
	copy(out, s.history)
	return out
}

// Len returns the number of recorded turns.
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.history)
}

// AppendExchange records one completed user/assistant exchange atomically and
// bumps the activity timestamp and inbound message counter. Failed AI calls
// must not reach this method, which keeps history clean for retries.
func (s *Session) AppendExchange(userText, assistantText string) {
	now := time.Now().UTC()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history,
		Turn{Role: RoleUser, Content: userText, At: now},
		Turn{Role: RoleAssistant, Content: assistantText, At: now},
	)
	s.lastActivity = now
	s.messageCount++
}

// LastActivity returns the time of the most recent completed exchange.
func (s *Session) LastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

// MessageCount returns the number of inbound messages that completed an exchange.
func (s *Session) MessageCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.messageCount
}
