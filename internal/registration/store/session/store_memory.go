package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"intake/internal/registration/models"
	id "intake/pkg/domain"
	"intake/pkg/platform/sentinel"
)

// InMemoryStore keeps sessions in a map for single-instance deployments and
// tests. Expired sessions are dropped lazily on access.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[id.SessionID]*models.Session
	now      func() time.Time
}

type MemoryOption func(*InMemoryStore)

// WithMemoryClock overrides the clock used for expiry checks.
func WithMemoryClock(now func() time.Time) MemoryOption {
	return func(s *InMemoryStore) { s.now = now }
}

func NewInMemory(opts ...MemoryOption) *InMemoryStore {
	s := &InMemoryStore{
		sessions: make(map[id.SessionID]*models.Session),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *InMemoryStore) Create(_ context.Context, session *models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.sessions[session.ID]; ok && !existing.IsExpired(s.now()) {
		return fmt.Errorf("registration session exists: %w", sentinel.ErrConflict)
	}
	s.sessions[session.ID] = session.Clone()
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, sessionID id.SessionID) (*models.Session, error) {
	s.mu.RLock()
	session, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if !ok {
		return nil, errNotFound()
	}
	if session.IsExpired(s.now()) {
		s.mu.Lock()
		delete(s.sessions, sessionID)
		s.mu.Unlock()
		return nil, errNotFound()
	}
	return session.Clone(), nil
}

// Execute runs validate then mutate on the stored session under the write
// lock. A validate error leaves the session untouched.
func (s *InMemoryStore) Execute(_ context.Context, sessionID id.SessionID, validate func(*models.Session) error, mutate func(*models.Session)) (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[sessionID]
	if !ok || session.IsExpired(s.now()) {
		delete(s.sessions, sessionID)
		return nil, errNotFound()
	}
	working := session.Clone()
	if err := validate(working); err != nil {
		return nil, err
	}
	mutate(working)
	s.sessions[sessionID] = working
	return working.Clone(), nil
}

// AppendDocument stages doc on the session.
func (s *InMemoryStore) AppendDocument(ctx context.Context, sessionID id.SessionID, doc models.StagedDocument) (*models.Session, error) {
	return s.Execute(ctx, sessionID,
		func(session *models.Session) error { return canAppend(session, doc.Step) },
		func(session *models.Session) { session.ApplyStaged(doc) },
	)
}

func (s *InMemoryStore) Delete(_ context.Context, sessionID id.SessionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	return nil
}
