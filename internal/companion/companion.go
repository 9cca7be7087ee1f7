// Package companion runs one conversation turn: mood analysis, backend
// routing, action extraction and action dispatch.
package companion

import (
	"context"
	"log/slog"
	"strings"
	"unicode"

	"github.com/kalambet/buddy/internal/action"
	"github.com/kalambet/buddy/internal/events"
	"github.com/kalambet/buddy/internal/llm"
	"github.com/kalambet/buddy/internal/mood"
	"github.com/kalambet/buddy/internal/router"
	"github.com/kalambet/buddy/internal/storage"
)

// MoodGate is the confidence above which the empathy directive is injected.
const MoodGate = 0.4

// Goodbye is the reply to an exit word.
const Goodbye = "Goodbye!"

// Acknowledgement replaces a reply that held nothing but action tags.
const Acknowledgement = "On it!"

// Router routes a turn to a backend.
type Router interface {
	Chat(ctx context.Context, text string) router.Reply
	SetMoodContext(directive string)
}

// ChatLog records the conversation.
type ChatLog interface {
	SaveMessage(ctx context.Context, m storage.Message) (storage.Message, error)
}

// Dispatcher carries out the actions of a turn and returns one feedback
// line per action.
type Dispatcher interface {
	Dispatch(ctx context.Context, actions []action.Action) []string
}

// Result is the outcome of one processed turn.
type Result struct {
	Text    string          `json:"text"`
	Actions []action.Action `json:"actions"`
	Backend llm.ID          `json:"backend"`
	Mood    mood.Assessment `json:"mood"`
	// Exit is set when the user asked to end the conversation.
	Exit bool `json:"exit,omitempty"`
}

// Turn is a processed turn with the feedback of its dispatched actions.
type Turn struct {
	Result
	Feedback []string `json:"feedback,omitempty"`
}

// Options holds the optional collaborators of a Companion.
type Options struct {
	// Executor runs actions for Dispatch. Nil drops actions.
	Executor action.Executor
	// Dispatcher replaces the synchronous Dispatch in Handle.
	Dispatcher Dispatcher
	Bus        *events.Bus
	Log        ChatLog
}

// Companion is the shared conversation context used by the text and voice
// paths. It is safe for concurrent use.
type Companion struct {
	router     Router
	analyzer   *mood.Analyzer
	exec       action.Executor
	dispatcher Dispatcher
	bus        *events.Bus
	log        ChatLog
	logger     *slog.Logger
}

// New returns a Companion routing through r and analyzing mood with a.
func New(r Router, a *mood.Analyzer, opts Options) *Companion {
	c := &Companion{
		router:   r,
		analyzer: a,
		exec:     opts.Executor,
		bus:      opts.Bus,
		log:      opts.Log,
		logger:   slog.Default().With("component", "companion"),
	}
	c.dispatcher = opts.Dispatcher
	if c.dispatcher == nil {
		c.dispatcher = c
	}
	return c
}

// Bus returns the event bus, which may be nil.
func (c *Companion) Bus() *events.Bus {
	return c.bus
}

// IsExit reports whether text contains an exit word.
func IsExit(text string) bool {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r)
	})
	for _, w := range words {
		if w == "goodbye" || w == "exit" {
			return true
		}
	}
	return false
}

// Process runs one turn without dispatching its actions. Blank text yields
// an empty Result.
func (c *Companion) Process(ctx context.Context, text string) Result {
	text = strings.TrimSpace(text)
	if text == "" {
		return Result{Mood: mood.Assessment{Mood: mood.Neutral}}
	}

	c.bus.State(events.Thinking, true)
	defer c.bus.State(events.Thinking, false)

	assessment := c.analyzer.Analyze(text)
	directive := ""
	if assessment.Confidence > MoodGate {
		directive = mood.EmpathyContext(assessment)
	}
	c.router.SetMoodContext(directive)
	c.bus.Publish(events.Event{Type: events.Mood, Text: string(assessment.Mood), Data: assessment})
	c.record(ctx, storage.Message{Sender: storage.SenderUser, Content: text, Mood: string(assessment.Mood)})

	reply := c.router.Chat(ctx, text)

	actions, clean := action.Parse(reply.Text)
	if clean == "" && len(actions) > 0 {
		clean = Acknowledgement
	}
	c.logger.Debug("turn processed",
		"mood", assessment.Mood,
		"confidence", assessment.Confidence,
		"backend", reply.Backend,
		"actions", len(actions),
	)

	c.bus.Text(events.Backend, reply.Backend.Label())
	c.bus.Text(events.Response, clean)
	c.record(ctx, storage.Message{Sender: storage.SenderAssistant, Content: clean, Backend: string(reply.Backend)})

	return Result{
		Text:    clean,
		Actions: actions,
		Backend: reply.Backend,
		Mood:    assessment,
	}
}

// Dispatch executes actions in order and publishes each feedback line.
func (c *Companion) Dispatch(ctx context.Context, actions []action.Action) []string {
	if c.exec == nil || len(actions) == 0 {
		return nil
	}
	feedback := make([]string, 0, len(actions))
	for _, a := range actions {
		fb := c.exec.Execute(ctx, a)
		c.bus.Text(events.ActionFeedback, fb)
		feedback = append(feedback, fb)
	}
	return feedback
}

// Handle processes text and dispatches its actions. An exit word ends the
// conversation without calling any backend.
func (c *Companion) Handle(ctx context.Context, text string) Turn {
	if IsExit(text) {
		c.bus.Text(events.Response, Goodbye)
		return Turn{Result: Result{Text: Goodbye, Exit: true, Mood: mood.Assessment{Mood: mood.Neutral}}}
	}
	res := c.Process(ctx, text)
	return Turn{Result: res, Feedback: c.dispatcher.Dispatch(ctx, res.Actions)}
}

func (c *Companion) record(ctx context.Context, m storage.Message) {
	if c.log == nil {
		return
	}
	if _, err := c.log.SaveMessage(ctx, m); err != nil {
		c.logger.Warn("chat log write failed", "sender", m.Sender, "error", err)
	}
}
