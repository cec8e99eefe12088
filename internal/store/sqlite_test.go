package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/applyflow/agent-relay/internal/domain"
)

func newTestStore(t *testing.T) Repository {
	t.Helper()
	repo, err := NewSQLite(filepath.Join(t.TempDir(), "relay.db"))
	if err != nil {
		t.Fatalf("NewSQLite: %v", err)
	}
	t.Cleanup(func() {
		if err := repo.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})
	return repo
}

func TestSaveAndListRuns(t *testing.T) {
	t.Parallel()

	repo := newTestStore(t)
	ctx := context.Background()

	now := time.Now().Truncate(time.Second)
	older := &domain.RunRecord{
		SessionID:        "run-1",
		JobURL:           "https://apply.appcast.io/jobs/123/apply",
		Status:           domain.StatusCompleted,
		TotalActions:     25,
		QuestionsFound:   21,
		QuestionsFilled:  9,
		ScreenshotsTaken: 4,
		StartedAt:        now.Add(-2 * time.Minute),
		EndedAt:          now.Add(-time.Minute),
	}
	newer := &domain.RunRecord{
		SessionID:    "run-2",
		JobURL:       "https://jobs.lever.co/acme/42",
		Status:       domain.StatusStopped,
		TotalActions: 7,
		StartedAt:    now.Add(-time.Minute),
		EndedAt:      now,
	}

	if err := repo.SaveRun(ctx, older); err != nil {
		t.Fatalf("SaveRun older: %v", err)
	}
	if err := repo.SaveRun(ctx, newer); err != nil {
		t.Fatalf("SaveRun newer: %v", err)
	}

	runs, err := repo.ListRuns(ctx, 10)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	if runs[0].SessionID != "run-2" || runs[1].SessionID != "run-1" {
		t.Errorf("expected newest-first ordering, got %s, %s", runs[0].SessionID, runs[1].SessionID)
	}

	got := runs[1]
	if got.Status != domain.StatusCompleted {
		t.Errorf("expected status completed, got %s", got.Status)
	}
	if got.TotalActions != 25 || got.QuestionsFound != 21 || got.QuestionsFilled != 9 || got.ScreenshotsTaken != 4 {
		t.Errorf("unexpected counts: %+v", got)
	}
	if !got.StartedAt.Equal(older.StartedAt) || !got.EndedAt.Equal(older.EndedAt) {
		t.Errorf("unexpected timestamps: %+v", got)
	}
}

func TestSaveRunUpsertsOnSessionID(t *testing.T) {
	t.Parallel()

	repo := newTestStore(t)
	ctx := context.Background()

	run := &domain.RunRecord{
		SessionID: "run-1",
		JobURL:    "https://example.com/jobs/1",
		Status:    domain.StatusStopped,
		StartedAt: time.Now(),
		EndedAt:   time.Now(),
	}
	if err := repo.SaveRun(ctx, run); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}

	run.Status = domain.StatusCompleted
	run.TotalActions = 25
	if err := repo.SaveRun(ctx, run); err != nil {
		t.Fatalf("SaveRun update: %v", err)
	}

	runs, err := repo.ListRuns(ctx, 10)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected a single upserted run, got %d", len(runs))
	}
	if runs[0].Status != domain.StatusCompleted || runs[0].TotalActions != 25 {
		t.Errorf("expected updated record, got %+v", runs[0])
	}
}

func TestListRunsHonorsLimit(t *testing.T) {
	t.Parallel()

	repo := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		run := &domain.RunRecord{
			SessionID: "run-" + string(rune('a'+i)),
			JobURL:    "https://example.com/jobs/1",
			Status:    domain.StatusCompleted,
			StartedAt: time.Now(),
			EndedAt:   time.Now().Add(time.Duration(i) * time.Second),
		}
		if err := repo.SaveRun(ctx, run); err != nil {
			t.Fatalf("SaveRun %d: %v", i, err)
		}
	}

	runs, err := repo.ListRuns(ctx, 3)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 3 {
		t.Errorf("expected 3 runs, got %d", len(runs))
	}
}

func TestPing(t *testing.T) {
	t.Parallel()

	repo := newTestStore(t)
	if err := repo.Ping(context.Background()); err != nil {
		t.Errorf("Ping: %v", err)
	}
}
