package storage

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// TestMigrationsIdempotent runs Open twice on the same database and verifies
// no migration is applied twice.
func TestMigrationsIdempotent(t *testing.T) {
	dir := t.TempDir()

	s1, err := Open(dir)
	if err != nil {
		t.Fatalf("first Open failed: %v", err)
	}
	v1, err := s1.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	s1.Close()

	s2, err := Open(dir)
	if err != nil {
		t.Fatalf("second Open failed: %v", err)
	}
	defer s2.Close()

	v2, err := s2.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	if len(v1) != len(v2) {
		t.Errorf("migration count changed: %d -> %d", len(v1), len(v2))
	}
}

func TestMigrationsOrdered(t *testing.T) {
	s := openTestStore(t)

	versions, err := s.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	if len(versions) == 0 {
		t.Fatal("expected at least one applied migration")
	}
	for i := 1; i < len(versions); i++ {
		if versions[i] <= versions[i-1] {
			t.Errorf("migrations not in ascending order: %v", versions)
			break
		}
	}
}

func TestIndexesExist(t *testing.T) {
	s := openTestStore(t)

	for _, idx := range []string{"idx_messages_created", "idx_jobs_status_run_after"} {
		var count int
		err := s.db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='index' AND name=?", idx).Scan(&count)
		if err != nil {
			t.Fatalf("querying index %s: %v", idx, err)
		}
		if count != 1 {
			t.Errorf("index %s not found", idx)
		}
	}
}

func TestSaveAndGetMessage(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	saved, err := s.SaveMessage(ctx, Message{
		Sender:  SenderUser,
		Content: "I'm so sad today",
		Mood:    "sad",
	})
	if err != nil {
		t.Fatalf("SaveMessage: %v", err)
	}
	if saved.ID == "" || saved.CreatedAt.IsZero() {
		t.Fatalf("SaveMessage did not fill ID and CreatedAt: %+v", saved)
	}

	got, err := s.GetMessage(ctx, saved.ID)
	if err != nil {
		t.Fatalf("GetMessage: %v", err)
	}
	if got.Sender != SenderUser {
		t.Errorf("Sender = %q, want %q", got.Sender, SenderUser)
	}
	if got.Content != "I'm so sad today" {
		t.Errorf("Content = %q", got.Content)
	}
	if got.Mood != "sad" {
		t.Errorf("Mood = %q, want sad", got.Mood)
	}
	if !got.CreatedAt.Equal(saved.CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, saved.CreatedAt)
	}
}

func TestGetMessageNotFound(t *testing.T) {
	s := openTestStore(t)

	_, err := s.GetMessage(context.Background(), "nonexistent")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestRecentMessages_OldestFirst(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		_, err := s.SaveMessage(ctx, Message{
			CreatedAt: base.Add(time.Duration(i) * time.Second),
			Sender:    SenderAssistant,
			Content:   fmt.Sprintf("m%d", i),
			Backend:   "local",
		})
		if err != nil {
			t.Fatalf("SaveMessage %d: %v", i, err)
		}
	}

	got, err := s.RecentMessages(ctx, 3)
	if err != nil {
		t.Fatalf("RecentMessages: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	for i, want := range []string{"m2", "m3", "m4"} {
		if got[i].Content != want {
			t.Errorf("got[%d] = %q, want %q", i, got[i].Content, want)
		}
	}
	if got[0].Backend != "local" {
		t.Errorf("Backend = %q, want local", got[0].Backend)
	}
}

func TestRecentMessages_SameTimestampKeepsInsertOrder(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	at := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	for _, c := range []string{"question", "answer"} {
		if _, err := s.SaveMessage(ctx, Message{CreatedAt: at, Sender: SenderUser, Content: c}); err != nil {
			t.Fatal(err)
		}
	}

	got, err := s.RecentMessages(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].Content != "question" || got[1].Content != "answer" {
		t.Errorf("order = %+v", got)
	}
}

func TestCountAndClearMessages(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := s.SaveMessage(ctx, Message{Sender: SenderUser, Content: "x"}); err != nil {
			t.Fatal(err)
		}
	}
	if n, err := s.CountMessages(ctx); err != nil || n != 3 {
		t.Errorf("CountMessages = %d, %v, want 3", n, err)
	}
	if err := s.ClearMessages(ctx); err != nil {
		t.Fatal(err)
	}
	if n, _ := s.CountMessages(ctx); n != 0 {
		t.Errorf("CountMessages after clear = %d", n)
	}
}

func TestJobsTableDefaults(t *testing.T) {
	s := openTestStore(t)

	_, err := s.db.Exec(`INSERT INTO jobs (id, type, payload_json) VALUES ('j1', 'action', '{"type":"google"}')`)
	if err != nil {
		t.Fatalf("INSERT into jobs: %v", err)
	}

	var status string
	var attempts, maxAttempts int
	err = s.db.QueryRow(`SELECT status, attempts, max_attempts FROM jobs WHERE id = 'j1'`).
		Scan(&status, &attempts, &maxAttempts)
	if err != nil {
		t.Fatalf("SELECT from jobs: %v", err)
	}
	if status != "pending" {
		t.Errorf("status = %q, want %q", status, "pending")
	}
	if attempts != 0 {
		t.Errorf("attempts = %d, want 0", attempts)
	}
	if maxAttempts != 3 {
		t.Errorf("max_attempts = %d, want 3", maxAttempts)
	}
}

func TestEnqueueAndClaimJob(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	job := Job{ID: "j-claim-1", Type: "action", PayloadJSON: `{"type":"youtube"}`}
	if err := s.EnqueueJob(ctx, job); err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}

	got, err := s.ClaimNextJob(ctx, []string{"action"})
	if err != nil {
		t.Fatalf("ClaimNextJob: %v", err)
	}
	if got == nil {
		t.Fatal("ClaimNextJob returned nil")
	}
	if got.ID != "j-claim-1" {
		t.Errorf("ID = %q, want %q", got.ID, "j-claim-1")
	}
	if got.PayloadJSON != `{"type":"youtube"}` {
		t.Errorf("PayloadJSON = %q", got.PayloadJSON)
	}
	if got.Status != JobRunning {
		t.Errorf("Status = %q, want %q", got.Status, JobRunning)
	}
	if got.MaxAttempts != DefaultMaxAttempts {
		t.Errorf("MaxAttempts = %d, want %d", got.MaxAttempts, DefaultMaxAttempts)
	}

	if n, _ := s.CountJobs(ctx, JobRunning); n != 1 {
		t.Errorf("CountJobs(running) = %d, want 1", n)
	}
}

func TestClaimNextJob_Empty(t *testing.T) {
	s := openTestStore(t)

	got, err := s.ClaimNextJob(context.Background(), []string{"action"})
	if err != nil {
		t.Fatalf("ClaimNextJob: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil, got %+v", got)
	}
}

func TestClaimNextJob_RespectRunAfter(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	job := Job{ID: "j-future", Type: "action", PayloadJSON: `{}`, RunAfter: time.Now().Add(time.Hour)}
	if err := s.EnqueueJob(ctx, job); err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}

	got, err := s.ClaimNextJob(ctx, []string{"action"})
	if err != nil {
		t.Fatalf("ClaimNextJob: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil for future run_after, got %+v", got)
	}
}

func TestClaimNextJob_TypeFilterAndSkipsRunning(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for _, j := range []Job{
		{ID: "j-a1", Type: "a", PayloadJSON: `{}`},
		{ID: "j-b", Type: "b", PayloadJSON: `{}`},
	} {
		if err := s.EnqueueJob(ctx, j); err != nil {
			t.Fatal(err)
		}
	}

	first, err := s.ClaimNextJob(ctx, []string{"a"})
	if err != nil || first == nil || first.ID != "j-a1" {
		t.Fatalf("first claim = %+v, %v", first, err)
	}

	if err := s.EnqueueJob(ctx, Job{ID: "j-a2", Type: "a", PayloadJSON: `{}`}); err != nil {
		t.Fatal(err)
	}
	second, err := s.ClaimNextJob(ctx, []string{"a"})
	if err != nil || second == nil || second.ID != "j-a2" {
		t.Errorf("second claim = %+v, %v, want j-a2", second, err)
	}
}

func TestClaimNextJob_SameSecondKeepsInsertionOrder(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	ids := []string{"z", "a", "m", "b", "y", "c"}
	runAfter := time.Now().Add(-time.Minute)
	for _, id := range ids {
		if err := s.EnqueueJob(ctx, Job{ID: id, Type: "action", PayloadJSON: `{}`, RunAfter: runAfter}); err != nil {
			t.Fatal(err)
		}
	}
	// Same run_after and created_at second for every row.
	if _, err := s.db.Exec(`UPDATE jobs SET created_at = '2026-01-01T00:00:00Z', run_after = '2026-01-01T00:00:00Z'`); err != nil {
		t.Fatal(err)
	}

	for _, want := range ids {
		got, err := s.ClaimNextJob(ctx, []string{"action"})
		if err != nil || got == nil {
			t.Fatalf("ClaimNextJob = %+v, %v", got, err)
		}
		if got.ID != want {
			t.Errorf("claimed %q, want %q", got.ID, want)
		}
	}
}

func TestCompleteJob(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.EnqueueJob(ctx, Job{ID: "j-complete", Type: "x", PayloadJSON: `{}`}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.ClaimNextJob(ctx, []string{"x"}); err != nil {
		t.Fatal(err)
	}
	if err := s.CompleteJob(ctx, "j-complete"); err != nil {
		t.Fatalf("CompleteJob: %v", err)
	}
	if n, _ := s.CountJobs(ctx, JobCompleted); n != 1 {
		t.Errorf("CountJobs(completed) = %d, want 1", n)
	}
	if err := s.CompleteJob(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("CompleteJob(missing) = %v, want ErrNotFound", err)
	}
}

func TestFailJob_RetriesWithBackoff(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.EnqueueJob(ctx, Job{ID: "j-retry", Type: "x", PayloadJSON: `{}`}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.ClaimNextJob(ctx, []string{"x"}); err != nil {
		t.Fatal(err)
	}

	before := time.Now().UTC()
	if err := s.FailJob(ctx, "j-retry", "something broke"); err != nil {
		t.Fatalf("FailJob: %v", err)
	}

	var status, lastError, runAfterStr string
	var attempts int
	err := s.db.QueryRow(`SELECT status, attempts, last_error, run_after FROM jobs WHERE id = 'j-retry'`).
		Scan(&status, &attempts, &lastError, &runAfterStr)
	if err != nil {
		t.Fatalf("SELECT: %v", err)
	}
	if status != "pending" || attempts != 1 || lastError != "something broke" {
		t.Errorf("status=%q attempts=%d last_error=%q", status, attempts, lastError)
	}
	runAfter, err := time.Parse(time.RFC3339, runAfterStr)
	if err != nil {
		t.Fatalf("parsing run_after: %v", err)
	}
	if !runAfter.After(before) {
		t.Errorf("run_after %v should be after %v", runAfter, before)
	}
}

func TestFailJob_MaxAttemptsReached(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.EnqueueJob(ctx, Job{ID: "j-fail-max", Type: "x", PayloadJSON: `{}`, MaxAttempts: 1}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.ClaimNextJob(ctx, []string{"x"}); err != nil {
		t.Fatal(err)
	}
	if err := s.FailJob(ctx, "j-fail-max", "fatal"); err != nil {
		t.Fatalf("FailJob: %v", err)
	}
	if n, _ := s.CountJobs(ctx, JobFailed); n != 1 {
		t.Errorf("CountJobs(failed) = %d, want 1", n)
	}
	if err := s.FailJob(ctx, "missing", "x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("FailJob(missing) = %v, want ErrNotFound", err)
	}
}
