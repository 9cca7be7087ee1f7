package companion

import (
	"context"
	"errors"
	"log/slog"
)

// ErrWorkerStopped is returned by Submit after the worker has exited.
var ErrWorkerStopped = errors.New("companion worker stopped")

type request struct {
	ctx   context.Context
	text  string
	reply chan Turn
}

// Worker serializes text turns on one long-lived goroutine so interactive
// callers share the conversation in arrival order.
type Worker struct {
	c      *Companion
	reqs   chan request
	done   chan struct{}
	logger *slog.Logger
}

// NewWorker returns a worker handling turns with c. Call Run to start it.
func NewWorker(c *Companion) *Worker {
	return &Worker{
		c:      c,
		reqs:   make(chan request),
		done:   make(chan struct{}),
		logger: slog.Default().With("component", "text-worker"),
	}
}

// Run handles submitted turns until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	defer close(w.done)
	w.logger.Debug("text worker started")
	for {
		select {
		case <-ctx.Done():
			return
		case req := <-w.reqs:
			if req.ctx.Err() != nil {
				continue
			}
			req.reply <- w.c.Handle(req.ctx, req.text)
		}
	}
}

// Submit queues text and waits for its turn to complete.
func (w *Worker) Submit(ctx context.Context, text string) (Turn, error) {
	req := request{ctx: ctx, text: text, reply: make(chan Turn, 1)}
	select {
	case w.reqs <- req:
	case <-ctx.Done():
		return Turn{}, ctx.Err()
	case <-w.done:
		return Turn{}, ErrWorkerStopped
	}

	select {
	case t := <-req.reply:
		return t, nil
	case <-ctx.Done():
		return Turn{}, ctx.Err()
	}
}
