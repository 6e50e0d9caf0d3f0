package auth

import (
	"sync"
	"time"
)

// SessionStore tracks active sessions in memory.
// Sessions are invalidated when the server restarts.
type SessionStore struct {
	sessions    map[string]*Session
	mu          sync.RWMutex
	serverEpoch time.Time // tokens issued before this are rejected
}

// Session represents an active user session
type Session struct {
	SessionID string
	UserID    string
	Email     string
	CreatedAt time.Time
	LastSeen  time.Time
}

// NewSessionStore creates a new session store
func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*Session),
		// truncated to the second: JWT iat claims carry second
		// precision, and a token minted in the startup second must
		// still validate
		serverEpoch: time.Now().Truncate(time.Second),
	}
}

// CreateSession creates a new session
func (s *SessionStore) CreateSession(sessionID, userID, email string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	s.sessions[sessionID] = &Session{
		SessionID: sessionID,
		UserID:    userID,
		Email:     email,
		CreatedAt: now,
		LastSeen:  now,
	}
}

// ValidateSession checks if a session is valid and updates last seen time
func (s *SessionStore) ValidateSession(sessionID string, issuedAt time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	// tokens minted before the current server start are stale
	if issuedAt.Before(s.serverEpoch) {
		return false
	}

	session, exists := s.sessions[sessionID]
	if !exists {
		return false
	}

	session.LastSeen = time.Now()
	return true
}

// InvalidateSession removes a session
func (s *SessionStore) InvalidateSession(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, sessionID)
}

// ActiveSessions returns the count of active sessions
func (s *SessionStore) ActiveSessions() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.sessions)
}

// CleanupExpiredSessions removes sessions idle longer than maxAge
func (s *SessionStore) CleanupExpiredSessions(maxAge time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for id, session := range s.sessions {
		if now.Sub(session.LastSeen) > maxAge {
			delete(s.sessions, id)
		}
	}
}

// ServerEpoch returns when the server started
func (s *SessionStore) ServerEpoch() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.serverEpoch
}
