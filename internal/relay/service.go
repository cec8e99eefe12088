package relay

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/applyflow/agent-relay/internal/config"
	"github.com/applyflow/agent-relay/internal/domain"
)

// RunArchiver persists a summary of a finished run. Archive failures are
// logged and never surfaced to clients.
type RunArchiver interface {
	SaveRun(ctx context.Context, run *domain.RunRecord) error
}

// Service is the command layer of the relay: it applies the
// single-active-session policy, owns the driver cancel handles, and routes
// status events to the right observers.
type Service struct {
	store   *Store
	hub     *Hub
	cfg     config.DriverConfig
	archive RunArchiver // optional

	mu    sync.Mutex
	stops map[string]chan struct{} // session id → driver cancel
}

// NewService creates a service around an isolated store and hub. archive may
// be nil to disable run history.
func NewService(store *Store, hub *Hub, cfg config.DriverConfig, archive RunArchiver) *Service {
	return &Service{
		store:   store,
		hub:     hub,
		cfg:     cfg,
		archive: archive,
		stops:   make(map[string]chan struct{}),
	}
}

// StartAgent handles a start_agent command from the persistent channel. Any
// session found running is stopped first: its driver timer is cancelled
// outright and its owner is told with a plain stopped status, never an error.
func (s *Service) StartAgent(ctx context.Context, connID, jobURL string) (*domain.Session, error) {
	if strings.TrimSpace(jobURL) == "" {
		s.hub.SendTo(ctx, connID, domain.EventAgentError, "job_url is required")
		return nil, fmt.Errorf("start_agent: job_url is required")
	}

	sess, preempted := s.store.StartSession(connID, jobURL)
	for _, prev := range preempted {
		s.cancelDriver(prev.SessionID)
		if prev.ConnectionID != "" {
			s.hub.SendTo(ctx, prev.ConnectionID, domain.EventAgentStatus, domain.StatusPayload{
				Status:      domain.StatusStopped,
				CurrentPage: prev.CurrentPage,
				Progress:    s.progress(prev),
			})
		}
		s.archiveRun(ctx, prev)
	}

	s.hub.Broadcast(ctx, domain.EventAgentStatus, domain.StatusPayload{
		Status:      domain.StatusRunning,
		CurrentPage: sess.CurrentPage,
		Progress:    0,
	})

	stop := make(chan struct{})
	s.mu.Lock()
	s.stops[sess.SessionID] = stop
	s.mu.Unlock()

	d := &driver{sess: sess, store: s.store, hub: s.hub, cfg: s.cfg, onFinish: s.finishRun}
	// The driver outlives the originating request; broadcasts go to whichever
	// observers are connected when each tick fires.
	go d.run(context.Background(), stop)

	return sess, nil
}

// StopAgent handles a stop_agent command: the issuer's running session goes
// idle, its driver timer is cancelled, and the idle status is sent to the
// issuer only. A second stop on an already-idle session is a no-op.
func (s *Service) StopAgent(ctx context.Context, connID string) {
	sess, ok := s.store.Get(connID)
	if !ok {
		return
	}
	if !s.store.Transition(sess, domain.StatusRunning, domain.StatusIdle) {
		return
	}
	s.cancelDriver(sess.SessionID)
	s.hub.SendTo(ctx, connID, domain.EventAgentStatus, domain.StatusPayload{
		Status:      domain.StatusIdle,
		CurrentPage: sess.CurrentPage,
		Progress:    s.progress(sess),
	})
	s.archiveRun(ctx, sess)
}

// Disconnect evicts the connection's store entry and stops its session and
// driver if still running.
func (s *Service) Disconnect(connID string) {
	sess, ok := s.store.Remove(connID)
	if !ok {
		return
	}
	if s.store.Transition(sess, domain.StatusRunning, domain.StatusStopped) {
		s.cancelDriver(sess.SessionID)
		s.archiveRun(context.Background(), sess)
	}
}

// finishRun is the driver's completion callback.
func (s *Service) finishRun(sess *domain.Session) {
	s.mu.Lock()
	delete(s.stops, sess.SessionID)
	s.mu.Unlock()
	s.archiveRun(context.Background(), sess)
}

func (s *Service) cancelDriver(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if stop, ok := s.stops[sessionID]; ok {
		close(stop)
		delete(s.stops, sessionID)
	}
}

// progress reports how far through the action ceiling a session is, 0–100.
func (s *Service) progress(sess *domain.Session) int {
	if s.cfg.MaxActions == 0 {
		return 0
	}
	p := len(sess.Actions) * 100 / s.cfg.MaxActions
	if p > 100 {
		p = 100
	}
	return p
}

func (s *Service) archiveRun(ctx context.Context, sess *domain.Session) {
	if s.archive == nil || !sess.Status.Terminal() {
		return
	}
	run := &domain.RunRecord{
		SessionID:        sess.SessionID,
		JobURL:           sess.TargetURL,
		Status:           sess.Status,
		TotalActions:     len(sess.Actions),
		QuestionsFound:   len(sess.Questions),
		QuestionsFilled:  sess.QuestionsFilled(),
		ScreenshotsTaken: len(sess.Screenshots),
		StartedAt:        sess.StartedAt,
		EndedAt:          time.Now(),
	}
	if err := s.archive.SaveRun(ctx, run); err != nil {
		slog.Warn("Failed to archive run", "session_id", sess.SessionID, "error", err)
	}
}
