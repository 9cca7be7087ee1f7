package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"
)

// Gemini is the second cloud backend. It keeps a stateful chat session
// whose history mirrors the backend's own turns; the session is rebuilt from
// those turns after trimming or a failed call.
type Gemini struct {
	*conversation
	client  *genai.Client
	model   string
	session *genai.Chat
}

// GeminiOptions configure a Gemini backend.
type GeminiOptions struct {
	APIKey     string
	Model      string
	BaseURL    string
	HTTPClient *http.Client
}

// NewGemini returns the Gemini-backed backend.
func NewGemini(ctx context.Context, opts GeminiOptions, systemPrompt string) (*Gemini, error) {
	cfg := &genai.ClientConfig{
		APIKey:     opts.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: opts.HTTPClient,
	}
	if opts.BaseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: opts.BaseURL}
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}
	return &Gemini{
		conversation: newConversation(systemPrompt),
		client:       client,
		model:        opts.Model,
	}, nil
}

func (b *Gemini) ID() ID        { return IDGemini }
func (b *Gemini) Model() string { return b.model }

func (b *Gemini) Reset() {
	b.mu.Lock()
	b.turns = nil
	b.session = nil
	b.mu.Unlock()
}

func (b *Gemini) Chat(ctx context.Context, userText string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	user := b.decorate(userText)

	if b.session == nil {
		s, err := b.newSession(ctx)
		if err != nil {
			return "", wrap(IDGemini, err, 0)
		}
		b.session = s
	}

	resp, err := b.session.SendMessage(ctx, genai.Part{Text: user})
	if err != nil {
		b.session = nil
		return "", wrap(IDGemini, err, apiStatus(err))
	}
	reply := resp.Text()
	if strings.TrimSpace(reply) == "" {
		b.session = nil
		return "", &BackendError{Backend: IDGemini, Kind: KindMalformed, Err: ErrEmptyReply}
	}

	if b.record(user, reply) {
		b.session = nil
	}
	return reply, nil
}

// newSession starts a chat seeded with the current turns. Caller must hold mu.
func (b *Gemini) newSession(ctx context.Context) (*genai.Chat, error) {
	history := make([]*genai.Content, 0, len(b.turns))
	for _, t := range b.turns {
		var role genai.Role = genai.RoleUser
		if t.Role == RoleAssistant {
			role = genai.RoleModel
		}
		history = append(history, genai.NewContentFromText(t.Content, role))
	}
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(b.system, genai.RoleUser),
		Temperature:       genai.Ptr[float32](0.7),
	}
	return b.client.Chats.Create(ctx, b.model, cfg, history)
}

func apiStatus(err error) int {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) {
		return apiErrPtr.Code
	}
	return 0
}
