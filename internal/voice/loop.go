// Package voice runs the hands-free conversation loop: listen, think, speak,
// and listen again as soon as the user talks over the reply.
package voice

import (
	"context"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/kalambet/buddy/internal/action"
	"github.com/kalambet/buddy/internal/companion"
	"github.com/kalambet/buddy/internal/events"
)

// Speaker plays replies aloud.
type Speaker interface {
	// Speak blocks until text has been played, ctx is done or interrupt
	// returns true. interrupt is polled while audio plays.
	Speak(ctx context.Context, text string, interrupt func() bool) error
	// Stop cuts playback immediately. Stopping a silent speaker is a no-op.
	Stop()
	IsSpeaking() bool
	// Interrupted reports whether the last Speak was cut short.
	Interrupted() bool
}

// Listener captures and transcribes speech.
type Listener interface {
	// Listen waits up to timeout for speech and records at most phraseLimit
	// of it. ok is false when nobody spoke.
	Listen(ctx context.Context, timeout, phraseLimit time.Duration) (text string, ok bool, err error)
	// IsSpeaking samples the microphone for d and reports voice activity.
	IsSpeaking(ctx context.Context, d time.Duration) bool
}

// Turner processes a turn and dispatches its actions.
type Turner interface {
	Process(ctx context.Context, text string) companion.Result
	Dispatch(ctx context.Context, actions []action.Action) []string
}

// State is the loop's position in the conversation.
type State int32

const (
	Idle State = iota
	Listening
	Thinking
	Speaking
	Interrupted
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Listening:
		return "listening"
	case Thinking:
		return "thinking"
	case Speaking:
		return "speaking"
	case Interrupted:
		return "interrupted"
	}
	return "unknown"
}

// Options tunes the loop.
type Options struct {
	ListenTimeout time.Duration
	PhraseLimit   time.Duration
	// ProbeWindow is how long each interrupt check samples the microphone.
	ProbeWindow time.Duration
	// ErrorBackoff is the pause after a failed listen.
	ErrorBackoff time.Duration
	Bus          *events.Bus
}

func (o *Options) setDefaults() {
	if o.ListenTimeout <= 0 {
		o.ListenTimeout = 5 * time.Second
	}
	if o.PhraseLimit <= 0 {
		o.PhraseLimit = 10 * time.Second
	}
	if o.ProbeWindow <= 0 {
		o.ProbeWindow = 200 * time.Millisecond
	}
	if o.ErrorBackoff <= 0 {
		o.ErrorBackoff = time.Second
	}
}

// Loop is the voice conversation state machine. At most one turn is in
// flight at a time.
type Loop struct {
	turner   Turner
	listener Listener
	speaker  Speaker
	opts     Options
	state    atomic.Int32
	logger   *slog.Logger
}

// NewLoop builds a loop. Zero options take their defaults.
func NewLoop(t Turner, l Listener, s Speaker, opts Options) *Loop {
	opts.setDefaults()
	return &Loop{
		turner:   t,
		listener: l,
		speaker:  s,
		opts:     opts,
		logger:   slog.Default().With("component", "voice"),
	}
}

// State returns the current state.
func (l *Loop) State() State {
	return State(l.state.Load())
}

func (l *Loop) set(s State) {
	prev := State(l.state.Swap(int32(s)))
	if prev == s {
		return
	}
	l.logger.Debug("voice state", "from", prev, "to", s)

	// Thinking is published by the companion itself.
	bus := l.opts.Bus
	if t, ok := stateEvents[prev]; ok {
		bus.State(t, false)
	}
	if t, ok := stateEvents[s]; ok {
		bus.State(t, true)
	}
}

var stateEvents = map[State]events.Type{
	Listening: events.Listening,
	Speaking:  events.Speaking,
}

// Run converses until ctx is done or the user says an exit word.
func (l *Loop) Run(ctx context.Context) error {
	defer l.set(Idle)
	l.logger.Info("voice loop started")

	var (
		heard  string
		result companion.Result
	)
	l.set(Listening)
	for {
		if ctx.Err() != nil {
			return nil
		}

		switch l.State() {
		case Listening:
			text, ok, err := l.listener.Listen(ctx, l.opts.ListenTimeout, l.opts.PhraseLimit)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				l.logger.Warn("listen failed", "error", err)
				if !sleep(ctx, l.opts.ErrorBackoff) {
					return nil
				}
				continue
			}
			heard = strings.TrimSpace(text)
			if !ok || heard == "" {
				continue
			}
			l.opts.Bus.Text(events.UserVoice, heard)
			l.set(Thinking)

		case Thinking:
			if companion.IsExit(heard) {
				l.opts.Bus.Text(events.Response, companion.Goodbye)
				l.set(Speaking)
				if err := l.speaker.Speak(ctx, companion.Goodbye, nil); err != nil {
					l.logger.Warn("speak failed", "error", err)
				}
				l.logger.Info("voice loop ended by user")
				return nil
			}
			result = l.turner.Process(ctx, heard)
			l.set(Speaking)

		case Speaking:
			interrupted := l.speak(ctx, result.Text)
			// Actions of this turn run exactly once, whether or not the
			// reply was cut short.
			l.turner.Dispatch(ctx, result.Actions)
			result = companion.Result{}
			if interrupted {
				l.set(Interrupted)
				continue
			}
			l.set(Listening)

		case Interrupted:
			l.logger.Debug("reply interrupted, listening")
			l.set(Listening)

		default:
			l.set(Listening)
		}
	}
}

// speak plays text and reports whether the user talked over it.
func (l *Loop) speak(ctx context.Context, text string) bool {
	if text == "" {
		return false
	}
	var heard atomic.Bool
	interrupt := func() bool {
		if l.listener.IsSpeaking(ctx, l.opts.ProbeWindow) {
			heard.Store(true)
			return true
		}
		return false
	}
	if err := l.speaker.Speak(ctx, text, interrupt); err != nil && ctx.Err() == nil {
		l.logger.Warn("speak failed", "error", err)
	}
	if heard.Load() || l.speaker.Interrupted() {
		l.speaker.Stop()
		return true
	}
	return false
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
