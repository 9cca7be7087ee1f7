// Package events fans out companion state changes to UI subscribers.
package events

import (
	"sync"
	"time"
)

// Type names an event.
type Type string

const (
	Listening      Type = "listening"
	Thinking       Type = "thinking"
	Speaking       Type = "speaking"
	Response       Type = "response"
	UserVoice      Type = "user_voice"
	ActionFeedback Type = "action_feedback"
	Backend        Type = "backend"
	Mood           Type = "mood"
)

// Event is one published state change.
type Event struct {
	Type Type      `json:"type"`
	Time time.Time `json:"time"`
	// Text carries the transcript, reply, feedback or backend label.
	Text string `json:"text,omitempty"`
	// Active is set for listening, thinking and speaking.
	Active bool `json:"active,omitempty"`
	Data   any  `json:"data,omitempty"`
}

// subscriberBuffer is how many events a slow subscriber may lag behind
// before events to it are dropped.
const subscriberBuffer = 64

// Bus is a non-blocking publish/subscribe hub. The zero value is ready.
type Bus struct {
	mu   sync.Mutex
	subs map[chan Event]struct{}
}

// New returns an empty bus.
func New() *Bus {
	return &Bus{}
}

// Publish delivers e to every subscriber, dropping it for subscribers whose
// buffer is full. A nil bus discards events.
func (b *Bus) Publish(e Event) {
	if b == nil {
		return
	}
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

// State publishes an on/off state event such as Listening.
func (b *Bus) State(t Type, active bool) {
	b.Publish(Event{Type: t, Active: active})
}

// Text publishes an event carrying text.
func (b *Bus) Text(t Type, text string) {
	b.Publish(Event{Type: t, Text: text})
}

// Subscribe returns a channel of events and a function that unsubscribes
// and closes it.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)
	b.mu.Lock()
	if b.subs == nil {
		b.subs = make(map[chan Event]struct{})
	}
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, ch)
			b.mu.Unlock()
			close(ch)
		})
	}
}
