// Package llm holds the chat backends the companion talks to. Every backend
// owns a private conversation history that starts with the system prompt and
// is capped at MaxTurns exchange turns.
package llm

import (
	"context"
	"fmt"
)

// ID identifies a backend.
type ID string

const (
	IDLocal  ID = "local"
	IDGroq   ID = "groq"
	IDGemini ID = "gemini"
	// IDError marks a reply produced after every backend failed.
	IDError ID = "error"
)

// Label is the human-facing backend name.
func (id ID) Label() string {
	switch id {
	case IDLocal:
		return "Ollama"
	case IDGroq:
		return "Groq"
	case IDGemini:
		return "Gemini"
	case IDError:
		return "Error"
	}
	return string(id)
}

// IsCloud reports whether the backend needs network access.
func (id ID) IsCloud() bool {
	return id == IDGroq || id == IDGemini
}

// Role is the author of a conversation turn.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one message in a backend's conversation history.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// MaxTurns is the number of exchange turns kept after the system turn.
const MaxTurns = 20

// Backend is a single chat provider with its own history.
type Backend interface {
	ID() ID
	Model() string
	// Chat sends userText, decorated with the current mood context, and
	// returns the reply. Failures are *BackendError and leave history as is.
	Chat(ctx context.Context, userText string) (string, error)
	// SetMoodContext replaces the directive prefixed to the next message.
	// An empty directive clears it.
	SetMoodContext(directive string)
	// History returns a copy of the conversation, system turn first.
	History() []Turn
	// Reset drops every turn except the system turn.
	Reset()
}

// Decorate prefixes text with a mood directive the way the backends send it.
func Decorate(directive, text string) string {
	if directive == "" {
		return text
	}
	return fmt.Sprintf("[Context: %s]\n%s", directive, text)
}
