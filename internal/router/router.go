package router

import (
	"context"
	"log/slog"

	"github.com/kalambet/buddy/internal/llm"
)

// Apology is the reply when every backend failed.
const Apology = "I'm having trouble thinking right now."

// Attempt records one failed backend call.
type Attempt struct {
	Backend llm.ID
	Err     error
}

// Reply is the outcome of a routed chat turn.
type Reply struct {
	Text string
	// Backend produced Text, or is llm.IDError when all attempts failed.
	Backend llm.ID
	// Failed lists the attempts that failed before Text was produced.
	Failed []Attempt
}

// Router sends user turns through the selected backend and its fallbacks.
type Router struct {
	*Selector
}

// New returns a router over sel.
func New(sel *Selector) *Router {
	return &Router{Selector: sel}
}

// SetMoodContext broadcasts directive to every backend, since the active
// backend can change from turn to turn.
func (r *Router) SetMoodContext(directive string) {
	for _, b := range r.Backends() {
		b.SetMoodContext(directive)
	}
}

// Reset clears every backend's history.
func (r *Router) Reset() {
	for _, b := range r.Backends() {
		b.Reset()
	}
}

// Chat tries the selected backend and then its fallback candidates in
// order. It never fails: when every attempt fails the reply is Apology
// from llm.IDError.
func (r *Router) Chat(ctx context.Context, text string) Reply {
	active := r.Select(ctx)
	chain := append([]llm.Backend{active}, r.Candidates(active.ID())...)

	var failed []Attempt
	for _, b := range chain {
		reply, err := b.Chat(ctx, text)
		if err == nil {
			r.setLast(b.ID())
			if len(failed) > 0 {
				slog.Info("fallback backend answered", "backend", b.ID(), "failed", len(failed))
			}
			return Reply{Text: reply, Backend: b.ID(), Failed: failed}
		}
		slog.Warn("backend failed", "backend", b.ID(), "error", err)
		failed = append(failed, Attempt{Backend: b.ID(), Err: err})
		if ctx.Err() != nil {
			break
		}
	}

	slog.Warn("all backends failed", "attempts", len(failed))
	r.setLast(llm.IDError)
	return Reply{Text: Apology, Backend: llm.IDError, Failed: failed}
}
