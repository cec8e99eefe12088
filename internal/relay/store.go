package relay

import (
	"log/slog"
	"sync"
	"time"

	"github.com/applyflow/agent-relay/internal/domain"
	"github.com/google/uuid"
)

// Store is the in-memory mapping from connection identity to session, plus a
// pointer to the globally active session (needed because HTTP-originated
// commands carry no connection identity).
//
// One mutex guards the map, the active pointer, and all session mutation.
// The single-active-session policy runs inside StartSession under that lock,
// so no new session is ever observed running while an older one still is.
type Store struct {
	mu     sync.Mutex
	byConn map[string]*domain.Session
	active *domain.Session
}

// NewStore creates an empty store. Callers pass it by reference to the
// ingress and driver layers so tests can instantiate isolated stores.
func NewStore() *Store {
	return &Store{
		byConn: make(map[string]*domain.Session),
	}
}

// StartSession applies the single-active-session policy and creates a new
// running session owned by connID. Any session found running, including one
// previously owned by connID itself, is transitioned to stopped first, and
// returned so the caller can cancel its driver and notify its owner.
func (s *Store) StartSession(connID, targetURL string) (sess *domain.Session, preempted []*domain.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.byConn[connID]; ok && prev.Status == domain.StatusRunning {
		prev.Status = domain.StatusStopped
		preempted = append(preempted, prev)
	}
	for owner, other := range s.byConn {
		if owner == connID {
			continue
		}
		if other.Status == domain.StatusRunning {
			other.Status = domain.StatusStopped
			preempted = append(preempted, other)
		}
	}
	sess = &domain.Session{
		SessionID:    uuid.NewString(),
		ConnectionID: connID,
		TargetURL:    targetURL,
		StartedAt:    time.Now(),
		Status:       domain.StatusRunning,
		CurrentPage:  1,
		Questions:    make(map[string]*domain.Question),
	}
	s.byConn[connID] = sess
	s.active = sess

	slog.Info("Session started", "session_id", sess.SessionID, "conn_id", connID, "job_url", targetURL, "preempted", len(preempted))
	return sess, preempted
}

// Get returns the session owned by connID, if any.
func (s *Store) Get(connID string) (*domain.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.byConn[connID]
	return sess, ok
}

// Active returns the globally active session, if any.
func (s *Store) Active() (*domain.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return nil, false
	}
	return s.active, true
}

// Remove evicts the per-connection entry and returns it. The active pointer
// is cleared only if it still refers to the evicted session; a newer session
// may have superseded it since.
func (s *Store) Remove(connID string) (*domain.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.byConn[connID]
	if !ok {
		return nil, false
	}
	delete(s.byConn, connID)
	if s.active == sess {
		s.active = nil
	}
	slog.Info("Session evicted", "session_id", sess.SessionID, "conn_id", connID)
	return sess, true
}

// Transition moves a session from one status to another under the store
// lock. It reports whether the session was in the from status.
func (s *Store) Transition(sess *domain.Session, from, to domain.Status) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess.Status != from {
		return false
	}
	sess.Status = to
	return true
}

// MutateRunning runs fn under the store lock if the session is still
// running, reporting whether fn ran. The activity driver uses this to make
// each tick's mutation and state snapshot atomic with respect to the policy.
func (s *Store) MutateRunning(sess *domain.Session, fn func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess.Status != domain.StatusRunning {
		return false
	}
	fn()
	return true
}
