// Package dispatch runs model-requested actions off the request path through
// the SQLite job queue.
package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/kalambet/buddy/internal/action"
	"github.com/kalambet/buddy/internal/storage"
)

// JobType is the queue type of action jobs.
const JobType = "action"

// JobStore abstracts the job queue operations.
type JobStore interface {
	EnqueueJob(ctx context.Context, job storage.Job) error
	ClaimNextJob(ctx context.Context, types []string) (*storage.Job, error)
	CompleteJob(ctx context.Context, id string) error
	FailJob(ctx context.Context, id, errMsg string) error
}

// Notifier receives the feedback of every executed action.
type Notifier func(a action.Action, feedback string)

// Queue enqueues actions for the Worker.
type Queue struct {
	store JobStore
}

// NewQueue returns a queue writing to store.
func NewQueue(store JobStore) *Queue {
	return &Queue{store: store}
}

// Dispatch enqueues actions in order and returns one acknowledgement per
// action. Actions have side effects, so each job runs at most once.
func (q *Queue) Dispatch(ctx context.Context, actions []action.Action) []string {
	var acks []string
	for _, a := range actions {
		payload, err := json.Marshal(a)
		if err != nil {
			acks = append(acks, fmt.Sprintf("Could not queue %s: %v", a.Type, err))
			continue
		}
		job := storage.Job{
			ID:          uuid.New().String(),
			Type:        JobType,
			PayloadJSON: string(payload),
			MaxAttempts: 1,
		}
		if err := q.store.EnqueueJob(ctx, job); err != nil {
			slog.Warn("action not queued", "type", a.Type, "error", err)
			acks = append(acks, fmt.Sprintf("Could not queue %s: %v", a.Type, err))
			continue
		}
		acks = append(acks, "Queued: "+string(a.Type))
	}
	return acks
}

// Worker executes queued action jobs.
type Worker struct {
	store  JobStore
	exec   action.Executor
	notify Notifier
	poll   time.Duration
	logger *slog.Logger
}

// NewWorker creates a Worker. notify may be nil.
// If pollInterval is <= 0, it defaults to 250ms.
func NewWorker(store JobStore, exec action.Executor, notify Notifier, pollInterval time.Duration) *Worker {
	if pollInterval <= 0 {
		pollInterval = 250 * time.Millisecond
	}
	return &Worker{
		store:  store,
		exec:   exec,
		notify: notify,
		poll:   pollInterval,
		logger: slog.Default().With("component", "dispatch"),
	}
}

// Run polls for jobs until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		done, err := w.RunOnce(ctx)
		if err != nil {
			w.logger.Error("worker iteration failed", "error", err)
		}
		if done {
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(w.poll):
		}
	}
}

// RunOnce claims and executes a single action job.
// Returns true if a job was processed (regardless of success/failure).
func (w *Worker) RunOnce(ctx context.Context) (bool, error) {
	job, err := w.store.ClaimNextJob(ctx, []string{JobType})
	if err != nil {
		return false, fmt.Errorf("claiming job: %w", err)
	}
	if job == nil {
		return false, nil
	}

	if err := w.processJob(ctx, job); err != nil {
		w.logger.Warn("job failed", "job_id", job.ID, "error", err)
		if failErr := w.store.FailJob(ctx, job.ID, err.Error()); failErr != nil {
			w.logger.Error("failed to mark job as failed", "job_id", job.ID, "error", failErr)
		}
		return true, nil
	}

	if err := w.store.CompleteJob(ctx, job.ID); err != nil {
		return true, fmt.Errorf("completing job %s: %w", job.ID, err)
	}
	return true, nil
}

func (w *Worker) processJob(ctx context.Context, job *storage.Job) error {
	var a action.Action
	if err := json.Unmarshal([]byte(job.PayloadJSON), &a); err != nil {
		return fmt.Errorf("parsing payload: %w", err)
	}
	if _, err := action.ParseType(string(a.Type)); err != nil {
		return err
	}

	feedback := w.exec.Execute(ctx, a)
	if w.notify != nil {
		w.notify(a, feedback)
	}
	return nil
}
