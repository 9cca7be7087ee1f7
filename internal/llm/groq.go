package llm

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// GroqBaseURL is Groq's OpenAI-compatible endpoint.
const GroqBaseURL = "https://api.groq.com/openai/v1/"

// Groq is the fast cloud backend. It speaks the OpenAI chat completions
// protocol and replays the full history on every call.
type Groq struct {
	*conversation
	client openai.Client
	model  string
}

// GroqOptions configure a Groq backend.
type GroqOptions struct {
	APIKey     string
	Model      string
	BaseURL    string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// NewGroq returns the Groq-backed backend.
func NewGroq(opts GroqOptions, systemPrompt string) *Groq {
	base := opts.BaseURL
	if base == "" {
		base = GroqBaseURL
	}
	reqOpts := []option.RequestOption{
		option.WithAPIKey(opts.APIKey),
		option.WithBaseURL(base),
		// 429s are retried by the transport.
		option.WithMaxRetries(0),
	}
	if opts.HTTPClient != nil {
		reqOpts = append(reqOpts, option.WithHTTPClient(opts.HTTPClient))
	}
	if opts.Timeout > 0 {
		reqOpts = append(reqOpts, option.WithRequestTimeout(opts.Timeout))
	}
	return &Groq{
		conversation: newConversation(systemPrompt),
		client:       openai.NewClient(reqOpts...),
		model:        opts.Model,
	}
}

func (b *Groq) ID() ID        { return IDGroq }
func (b *Groq) Model() string { return b.model }

func (b *Groq) Chat(ctx context.Context, userText string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	user := b.decorate(userText)

	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(b.turns)+2)
	msgs = append(msgs, openai.SystemMessage(b.system))
	for _, t := range b.turns {
		if t.Role == RoleAssistant {
			msgs = append(msgs, openai.AssistantMessage(t.Content))
		} else {
			msgs = append(msgs, openai.UserMessage(t.Content))
		}
	}
	msgs = append(msgs, openai.UserMessage(user))

	resp, err := b.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(b.model),
		Messages:    msgs,
		Temperature: openai.Float(0.7),
		MaxTokens:   openai.Int(1024),
	})
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return "", wrap(IDGroq, err, apiErr.StatusCode)
		}
		return "", wrap(IDGroq, err, 0)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", &BackendError{Backend: IDGroq, Kind: KindMalformed, Err: ErrEmptyReply}
	}

	reply := resp.Choices[0].Message.Content
	b.record(user, reply)
	return reply, nil
}
