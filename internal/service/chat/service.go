package chat

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zhouzirui/article-rag/backend/internal/model/chat"
)

var (
	ErrSessionIDRequired = errors.New("session id is required")
	ErrSessionNotFound   = errors.New("session not found")
	ErrSessionExists     = errors.New("session already exists")
)

// Service keeps chat sessions in process memory. Sessions idle longer than
// the configured TTL are removed by Sweep; creating a session beyond the
// configured capacity evicts the least recently updated one. Sessions with a
// turn in flight (see Acquire) are never swept or evicted, so capacity may be
// exceeded briefly while every session is busy.
type Service struct {
	mu       sync.RWMutex
	sessions map[string]chat.Session
	messages map[string][]chat.Message

	turnsMu sync.Mutex
	turns   map[string]*turnLock

	ttl         time.Duration
	maxSessions int
	now         func() time.Time
}

type turnLock struct {
	mu   sync.Mutex
	refs int
}

// Option configures a Service.
type Option func(*Service)

// WithTTL sets the idle lifetime of a session. Zero disables expiry.
func WithTTL(ttl time.Duration) Option {
	return func(s *Service) { s.ttl = ttl }
}

// WithMaxSessions caps the number of live sessions. Zero means unbounded.
func WithMaxSessions(n int) Option {
	return func(s *Service) { s.maxSessions = n }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService bootstraps the in-memory session store.
func NewService(opts ...Option) *Service {
	s := &Service{
		sessions: make(map[string]chat.Session),
		messages: make(map[string][]chat.Message),
		turns:    make(map[string]*turnLock),
		now:      time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Acquire serializes conversation turns on one session id. Callers must
// invoke the returned release function exactly once.
func (s *Service) Acquire(sessionID string) (release func()) {
	s.turnsMu.Lock()
	l, ok := s.turns[sessionID]
	if !ok {
		l = &turnLock{}
		s.turns[sessionID] = l
	}
	l.refs++
	s.turnsMu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		s.turnsMu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.turns, sessionID)
		}
		s.turnsMu.Unlock()
	}
}

// CreateSession stores a new session. ID must be set by the caller.
func (s *Service) CreateSession(_ context.Context, session chat.Session) (chat.Session, error) {
	if session.ID == "" {
		return chat.Session{}, ErrSessionIDRequired
	}

	now := s.now().UTC()
	session.CreatedAt = now
	session.UpdatedAt = now
	session.Messages = nil

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[session.ID]; ok {
		return chat.Session{}, ErrSessionExists
	}
	if s.maxSessions > 0 && len(s.sessions) >= s.maxSessions {
		s.evictOldestLocked()
	}

	s.sessions[session.ID] = session
	s.messages[session.ID] = make([]chat.Message, 0, 16)
	return session, nil
}

// SaveMessage appends a message to the session history and returns it with
// its ID and timestamp filled in.
func (s *Service) SaveMessage(_ context.Context, sessionID string, message chat.Message) (chat.Message, error) {
	if sessionID == "" {
		return chat.Message{}, ErrSessionNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return chat.Message{}, ErrSessionNotFound
	}

	now := s.now().UTC()
	message.ID = uuid.NewString()
	if message.Timestamp == "" {
		message.Timestamp = now.Format(time.RFC3339Nano)
	}

	s.messages[sessionID] = append(s.messages[sessionID], message)
	session.UpdatedAt = now
	s.sessions[sessionID] = session
	return message, nil
}

// GetSession retrieves a session, including a copy of its transcript.
func (s *Service) GetSession(_ context.Context, sessionID string) (chat.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return chat.Session{}, ErrSessionNotFound
	}
	session.Messages = append([]chat.Message(nil), s.messages[sessionID]...)
	return session, nil
}

// DeleteSession removes a session and its transcript.
func (s *Service) DeleteSession(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[sessionID]; !ok {
		return ErrSessionNotFound
	}
	delete(s.sessions, sessionID)
	delete(s.messages, sessionID)
	return nil
}

// Count returns the number of live sessions.
func (s *Service) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Sweep removes sessions idle for longer than the TTL and returns how many
// were removed.
func (s *Service) Sweep(_ context.Context) int {
	if s.ttl <= 0 {
		return 0
	}
	cutoff := s.now().UTC().Add(-s.ttl)

	s.mu.Lock()
	defer s.mu.Unlock()

	busy := s.busySessions()
	removed := 0
	for id, session := range s.sessions {
		if _, inTurn := busy[id]; inTurn {
			continue
		}
		if session.UpdatedAt.Before(cutoff) {
			delete(s.sessions, id)
			delete(s.messages, id)
			removed++
		}
	}
	return removed
}

func (s *Service) evictOldestLocked() {
	var (
		oldestID string
		oldest   time.Time
	)
	busy := s.busySessions()
	for id, session := range s.sessions {
		if _, inTurn := busy[id]; inTurn {
			continue
		}
		if oldestID == "" || session.UpdatedAt.Before(oldest) {
			oldestID = id
			oldest = session.UpdatedAt
		}
	}
	if oldestID != "" {
		delete(s.sessions, oldestID)
		delete(s.messages, oldestID)
	}
}

// busySessions snapshots the ids that currently hold or wait on a turn lock.
// Lock order is mu before turnsMu.
func (s *Service) busySessions() map[string]struct{} {
	s.turnsMu.Lock()
	defer s.turnsMu.Unlock()

	busy := make(map[string]struct{}, len(s.turns))
	for id, l := range s.turns {
		if l.refs > 0 {
			busy[id] = struct{}{}
		}
	}
	return busy
}
