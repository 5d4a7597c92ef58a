package main

import (
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"
)

// Session binds a bearer token to an authenticated user for the lifetime of
// their login, independent of any single connection (a user may reconnect
// with the same session after a network blip).
type Session struct {
	Token        string
	UserID       int64
	Username     string
	CreatedAt    time.Time
	LastActivity time.Time // protected by SessionStore.mu
}

// SessionStore issues and tracks bearer tokens. Tokens are 256 bits of
// crypto/rand, hex-encoded, never derived from guessable state.
type SessionStore struct {
	mu       sync.RWMutex
	byToken  map[string]*Session
	byUserID map[int64]*Session
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		byToken:  make(map[string]*Session),
		byUserID: make(map[int64]*Session),
	}
}

func newToken() (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return hex.EncodeToString(raw), nil
}

// Create issues a fresh session for userID, evicting any previous session
// for the same user (a login elsewhere invalidates the old token).
func (s *SessionStore) Create(userID int64, username string) (*Session, error) {
	token, err := newToken()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.byToken) >= sessionCapacity {
		return nil, errCapacity
	}
	if old, ok := s.byUserID[userID]; ok {
		delete(s.byToken, old.Token)
	}

	now := time.Now()
	sess := &Session{
		Token:        token,
		UserID:       userID,
		Username:     username,
		CreatedAt:    now,
		LastActivity: now,
	}
	s.byToken[token] = sess
	s.byUserID[userID] = sess
	return sess, nil
}

// Validate returns the session for token if it exists and has not expired.
// It is read-only with respect to LastActivity — only Touch (the heartbeat
// path) moves that timestamp, so a session's idle clock reflects actual
// heartbeats rather than every incidental request.
func (s *SessionStore) Validate(token string) (*Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.byToken[token]
	if !ok {
		return nil, false
	}
	if time.Since(sess.LastActivity) > sessionTTL {
		return nil, false
	}
	return sess, true
}

// Touch refreshes a session's activity timestamp without full validation,
// used by the heartbeat handler.
func (s *SessionStore) Touch(token string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.byToken[token]
	if !ok {
		return false
	}
	sess.LastActivity = time.Now()
	return true
}

// Destroy invalidates a session (logout).
func (s *SessionStore) Destroy(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.byToken[token]; ok {
		s.removeLocked(sess)
	}
}

func (s *SessionStore) removeLocked(sess *Session) {
	delete(s.byToken, sess.Token)
	if cur, ok := s.byUserID[sess.UserID]; ok && cur.Token == sess.Token {
		delete(s.byUserID, sess.UserID)
	}
}

// SweepExpired purges sessions whose TTL has elapsed and returns how many
// were removed. Called periodically from the core's tick loop.
func (s *SessionStore) SweepExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	now := time.Now()
	for token, sess := range s.byToken {
		if now.Sub(sess.LastActivity) > sessionTTL {
			delete(s.byToken, token)
			if cur, ok := s.byUserID[sess.UserID]; ok && cur.Token == token {
				delete(s.byUserID, sess.UserID)
			}
			removed++
		}
	}
	return removed
}

// Count returns the number of live sessions.
func (s *SessionStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byToken)
}
