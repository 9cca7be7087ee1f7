package llm

import (
	"context"
	"errors"

	"github.com/kalambet/buddy/internal/ollama"
)

// Local is the offline backend served by a local Ollama instance. Each call
// replays the full history.
type Local struct {
	*conversation
	client *ollama.Client
	model  string
}

// NewLocal returns the Ollama-backed backend.
func NewLocal(client *ollama.Client, model, systemPrompt string) *Local {
	return &Local{
		conversation: newConversation(systemPrompt),
		client:       client,
		model:        model,
	}
}

func (b *Local) ID() ID        { return IDLocal }
func (b *Local) Model() string { return b.model }

func (b *Local) Chat(ctx context.Context, userText string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	user := b.decorate(userText)

	msgs := make([]ollama.Message, 0, len(b.turns)+2)
	msgs = append(msgs, ollama.Message{Role: string(RoleSystem), Content: b.system})
	for _, t := range b.turns {
		msgs = append(msgs, ollama.Message{Role: string(t.Role), Content: t.Content})
	}
	msgs = append(msgs, ollama.Message{Role: string(RoleUser), Content: user})

	reply, err := b.client.Chat(ctx, b.model, msgs, nil)
	if err != nil {
		var se *ollama.StatusError
		if errors.As(err, &se) {
			return "", wrap(IDLocal, err, se.StatusCode)
		}
		if errors.Is(err, ollama.ErrEmptyResponse) {
			return "", &BackendError{Backend: IDLocal, Kind: KindMalformed, Err: err}
		}
		return "", wrap(IDLocal, err, 0)
	}

	b.record(user, reply)
	return reply, nil
}
