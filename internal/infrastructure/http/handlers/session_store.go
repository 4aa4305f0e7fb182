package handlers

import (
	"context"
	"sync"
	"time"

	"github.com/alchemorsel/recipegen/internal/application/generation"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SessionSource creates generation sessions
type SessionSource interface {
	NewSession() *generation.Session
}

type sessionEntry struct {
	session *generation.Session
	closeFn func()
}

// SessionStore tracks the generation session of every open websocket.
// Sessions idle for longer than the configured timeout are closed by Run.
type SessionStore struct {
	source  SessionSource
	idle    time.Duration
	logger  *zap.Logger
	mu      sync.RWMutex
	entries map[uuid.UUID]*sessionEntry
}

// NewSessionStore creates a new session store
func NewSessionStore(source SessionSource, idle time.Duration, logger *zap.Logger) *SessionStore {
	return &SessionStore{
		source:  source,
		idle:    idle,
		logger:  logger.Named("sessions"),
		entries: make(map[uuid.UUID]*sessionEntry),
	}
}

// Open starts a session. closeFn is invoked when the session expires.
func (s *SessionStore) Open(closeFn func()) *generation.Session {
	session := s.source.NewSession()

	s.mu.Lock()
	s.entries[session.ID()] = &sessionEntry{session: session, closeFn: closeFn}
	s.mu.Unlock()

	s.logger.Debug("Session opened", zap.String("session_id", session.ID().String()))
	return session
}

// Get returns an open session
func (s *SessionStore) Get(id uuid.UUID) (*generation.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.entries[id]
	if !ok {
		return nil, false
	}
	return entry.session, true
}

// Close cancels the session's generation and forgets it
func (s *SessionStore) Close(id uuid.UUID) {
	s.mu.Lock()
	entry, ok := s.entries[id]
	delete(s.entries, id)
	s.mu.Unlock()

	if ok {
		entry.session.Cancel()
		s.logger.Debug("Session closed", zap.String("session_id", id.String()))
	}
}

// Len returns the number of open sessions
func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Sweep closes sessions that have been idle longer than the timeout and
// are not generating. It returns how many were closed.
func (s *SessionStore) Sweep(now time.Time) int {
	if s.idle <= 0 {
		return 0
	}

	var expired []*sessionEntry
	s.mu.Lock()
	for id, entry := range s.entries {
		if entry.session.Generating() || now.Sub(entry.session.LastUsed()) < s.idle {
			continue
		}
		expired = append(expired, entry)
		delete(s.entries, id)
	}
	s.mu.Unlock()

	for _, entry := range expired {
		entry.session.Cancel()
		if entry.closeFn != nil {
			entry.closeFn()
		}
		s.logger.Debug("Cleaned up idle session", zap.String("session_id", entry.session.ID().String()))
	}
	return len(expired)
}

// Run sweeps idle sessions every interval until ctx is done
func (s *SessionStore) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := s.Sweep(now); n > 0 {
				s.logger.Info("Closed idle sessions", zap.Int("count", n))
			}
		}
	}
}

// CloseAll closes every session, used on shutdown
func (s *SessionStore) CloseAll() {
	s.mu.Lock()
	entries := s.entries
	s.entries = make(map[uuid.UUID]*sessionEntry)
	s.mu.Unlock()

	for _, entry := range entries {
		entry.session.Cancel()
		if entry.closeFn != nil {
			entry.closeFn()
		}
	}
}
