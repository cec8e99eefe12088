package relay

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/applyflow/agent-relay/internal/config"
	"github.com/applyflow/agent-relay/internal/domain"
)

// idleDriverCfg keeps drivers from ticking during a test, so session state
// only changes through commands.
var idleDriverCfg = config.DriverConfig{
	MaxActions: 50,
	TickMin:    time.Hour,
	TickMax:    2 * time.Hour,
}

type fakeArchive struct {
	mu   sync.Mutex
	runs []*domain.RunRecord
}

func (f *fakeArchive) SaveRun(_ context.Context, run *domain.RunRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs = append(f.runs, run)
	return nil
}

func (f *fakeArchive) all() []*domain.RunRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*domain.RunRecord, len(f.runs))
	copy(out, f.runs)
	return out
}

func newTestService(cfg config.DriverConfig) (*Service, *Hub, *fakeArchive) {
	hub := NewHub()
	archive := &fakeArchive{}
	return NewService(NewStore(), hub, cfg, archive), hub, archive
}

func TestPreemptionIsSilent(t *testing.T) {
	t.Parallel()

	svc, hub, _ := newTestService(idleDriverCfg)
	ctx := context.Background()

	senderA, senderB := &fakeSender{}, &fakeSender{}
	hub.Register("conn-a", senderA)
	hub.Register("conn-b", senderB)

	sessA, err := svc.StartAgent(ctx, "conn-a", "https://example.com/jobs/1")
	if err != nil {
		t.Fatalf("StartAgent A: %v", err)
	}
	sessB, err := svc.StartAgent(ctx, "conn-b", "https://example.com/jobs/2")
	if err != nil {
		t.Fatalf("StartAgent B: %v", err)
	}

	if sessA.Status != domain.StatusStopped {
		t.Errorf("expected A stopped after preemption, got %s", sessA.Status)
	}
	if sessB.Status != domain.StatusRunning {
		t.Errorf("expected B running, got %s", sessB.Status)
	}

	// A is told with a plain stopped status, never an error.
	var sawStopped bool
	for _, e := range senderA.byName(domain.EventAgentStatus) {
		if p, ok := e.Data.(domain.StatusPayload); ok && p.Status == domain.StatusStopped {
			sawStopped = true
		}
	}
	if !sawStopped {
		t.Error("expected preempted owner to receive a stopped status event")
	}
	if len(senderA.byName(domain.EventAgentError)) != 0 {
		t.Error("expected no agent_error for a preempted session")
	}
	// The stopped notice goes to the preempted owner only.
	for _, e := range senderB.byName(domain.EventAgentStatus) {
		if p, ok := e.Data.(domain.StatusPayload); ok && p.Status == domain.StatusStopped {
			t.Error("expected no stopped status delivered to the preempting connection")
		}
	}
}

func TestStartAgentCancelsPreemptedDriver(t *testing.T) {
	t.Parallel()

	svc, _, _ := newTestService(idleDriverCfg)
	ctx := context.Background()

	sessA, _ := svc.StartAgent(ctx, "conn-a", "https://example.com/jobs/1")
	sessB, _ := svc.StartAgent(ctx, "conn-b", "https://example.com/jobs/2")

	svc.mu.Lock()
	_, aAlive := svc.stops[sessA.SessionID]
	_, bAlive := svc.stops[sessB.SessionID]
	svc.mu.Unlock()

	if aAlive {
		t.Error("expected preempted session's driver cancel handle removed")
	}
	if !bAlive {
		t.Error("expected new session's driver cancel handle present")
	}
}

func TestStartAgentRequiresJobURL(t *testing.T) {
	t.Parallel()

	svc, hub, _ := newTestService(idleDriverCfg)
	sender := &fakeSender{}
	hub.Register("conn-a", sender)

	if _, err := svc.StartAgent(context.Background(), "conn-a", "  "); err == nil {
		t.Fatal("expected an error for a blank job_url")
	}
	if len(sender.byName(domain.EventAgentError)) != 1 {
		t.Error("expected an agent_error event sent to the issuer")
	}
}

func TestStopAgentIsIdempotent(t *testing.T) {
	t.Parallel()

	svc, hub, archive := newTestService(idleDriverCfg)
	ctx := context.Background()
	sender := &fakeSender{}
	hub.Register("conn-a", sender)

	sess, _ := svc.StartAgent(ctx, "conn-a", "https://example.com/jobs/1")

	svc.StopAgent(ctx, "conn-a")
	svc.StopAgent(ctx, "conn-a")

	if sess.Status != domain.StatusIdle {
		t.Errorf("expected status idle, got %s", sess.Status)
	}

	idleEvents := 0
	for _, e := range sender.byName(domain.EventAgentStatus) {
		if p, ok := e.Data.(domain.StatusPayload); ok && p.Status == domain.StatusIdle {
			idleEvents++
		}
	}
	if idleEvents != 1 {
		t.Errorf("expected exactly one idle status event, got %d", idleEvents)
	}
	if got := len(archive.all()); got != 1 {
		t.Errorf("expected one archived run, got %d", got)
	}
}

func TestStopAgentWithoutSessionIsNoOp(t *testing.T) {
	t.Parallel()

	svc, hub, _ := newTestService(idleDriverCfg)
	sender := &fakeSender{}
	hub.Register("conn-a", sender)

	svc.StopAgent(context.Background(), "conn-a")

	if len(sender.all()) != 0 {
		t.Errorf("expected no events, got %v", sender.all())
	}
}

func TestDisconnectStopsSessionAndDriver(t *testing.T) {
	t.Parallel()

	svc, _, archive := newTestService(idleDriverCfg)
	ctx := context.Background()

	sess, _ := svc.StartAgent(ctx, "conn-a", "https://example.com/jobs/1")
	svc.Disconnect("conn-a")

	if sess.Status != domain.StatusStopped {
		t.Errorf("expected status stopped after disconnect, got %s", sess.Status)
	}
	if _, ok := svc.store.Get("conn-a"); ok {
		t.Error("expected store entry evicted on disconnect")
	}
	svc.mu.Lock()
	_, alive := svc.stops[sess.SessionID]
	svc.mu.Unlock()
	if alive {
		t.Error("expected driver cancel handle removed on disconnect")
	}

	runs := archive.all()
	if len(runs) != 1 || runs[0].Status != domain.StatusStopped {
		t.Errorf("expected one stopped run archived, got %v", runs)
	}
}

func TestStartAgentBroadcastsRunningStatus(t *testing.T) {
	t.Parallel()

	svc, hub, _ := newTestService(idleDriverCfg)
	senderA, senderB := &fakeSender{}, &fakeSender{}
	hub.Register("conn-a", senderA)
	hub.Register("conn-b", senderB)

	if _, err := svc.StartAgent(context.Background(), "conn-a", "https://example.com/jobs/1"); err != nil {
		t.Fatalf("StartAgent: %v", err)
	}

	// Any dashboard instance should be able to watch any run.
	for name, s := range map[string]*fakeSender{"a": senderA, "b": senderB} {
		found := false
		for _, e := range s.byName(domain.EventAgentStatus) {
			if p, ok := e.Data.(domain.StatusPayload); ok && p.Status == domain.StatusRunning {
				found = true
			}
		}
		if !found {
			t.Errorf("observer %s: expected a running status broadcast", name)
		}
	}
}
