package api

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/kalambet/buddy/internal/companion"
	"github.com/kalambet/buddy/internal/mood"
	"github.com/kalambet/buddy/internal/router"
	"github.com/kalambet/buddy/internal/storage"
)

// --- helpers ---

func newTestMCPDeps(t *testing.T) (MCPDeps, *storage.Store) {
	t.Helper()
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	return MCPDeps{
		Chat:     &mockChatter{},
		Backends: &mockBackends{mode: router.ModeAuto},
		History:  store,
		Analyzer: mood.New(mood.DefaultSensitivity),
	}, store
}

func toolText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("no content in result")
	}
	tc, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected TextContent, got %T", result.Content[0])
	}
	return tc.Text
}

func makeCallToolRequest(name string, args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

func makeReadResourceRequest(uri string) mcp.ReadResourceRequest {
	return mcp.ReadResourceRequest{
		Params: mcp.ReadResourceParams{
			URI: uri,
		},
	}
}

// --- tests ---

func TestNewMCPServer(t *testing.T) {
	deps, _ := newTestMCPDeps(t)
	if s := NewMCPServer(deps); s == nil {
		t.Fatal("NewMCPServer returned nil")
	}
}

func TestMCPTool_Chat(t *testing.T) {
	deps, _ := newTestMCPDeps(t)
	chat := &mockChatter{turn: companion.Turn{
		Result:   companion.Result{Text: "Opening YouTube for you!"},
		Feedback: []string{"Searching YouTube: lofi beats"},
	}}
	deps.Chat = chat

	result, err := mcpChat(deps)(context.Background(), makeCallToolRequest("chat", map[string]interface{}{
		"message": "play lofi on youtube",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected error: %s", toolText(t, result))
	}

	want := "Opening YouTube for you!\nSearching YouTube: lofi beats"
	if got := toolText(t, result); got != want {
		t.Errorf("text = %q, want %q", got, want)
	}
	if len(chat.got) != 1 || chat.got[0] != "play lofi on youtube" {
		t.Errorf("submitted = %v", chat.got)
	}
}

func TestMCPTool_Chat_MissingMessage(t *testing.T) {
	deps, _ := newTestMCPDeps(t)
	for _, args := range []map[string]interface{}{{}, {"message": "  "}} {
		result, err := mcpChat(deps)(context.Background(), makeCallToolRequest("chat", args))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !result.IsError {
			t.Errorf("args %v: expected tool error", args)
		}
	}
}

func TestMCPTool_Chat_SubmitFails(t *testing.T) {
	deps, _ := newTestMCPDeps(t)
	deps.Chat = &mockChatter{err: companion.ErrWorkerStopped}

	result, _ := mcpChat(deps)(context.Background(), makeCallToolRequest("chat", map[string]interface{}{"message": "hi"}))
	if !result.IsError || !strings.Contains(toolText(t, result), "stopped") {
		t.Errorf("result = %+v, want worker stopped error", result)
	}
}

func TestMCPTool_SwitchBackend(t *testing.T) {
	deps, _ := newTestMCPDeps(t)
	backends := &mockBackends{mode: router.ModeAuto}
	deps.Backends = backends

	result, err := mcpSwitchBackend(deps)(context.Background(), makeCallToolRequest("switch_backend", map[string]interface{}{
		"mode": "gemini",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected error: %s", toolText(t, result))
	}
	if backends.mode != router.ModeGemini {
		t.Errorf("mode = %q, want gemini", backends.mode)
	}
	if got := toolText(t, result); got != "Switched to gemini" {
		t.Errorf("text = %q", got)
	}
}

func TestMCPTool_SwitchBackend_Invalid(t *testing.T) {
	deps, _ := newTestMCPDeps(t)
	result, _ := mcpSwitchBackend(deps)(context.Background(), makeCallToolRequest("switch_backend", map[string]interface{}{
		"mode": "gpt",
	}))
	if !result.IsError {
		t.Error("expected tool error for invalid mode")
	}
}

func TestMCPTool_SwitchBackend_NotSaved(t *testing.T) {
	deps, _ := newTestMCPDeps(t)
	deps.Backends = &mockBackends{mode: router.ModeAuto, saveErr: errors.New("disk full")}

	result, _ := mcpSwitchBackend(deps)(context.Background(), makeCallToolRequest("switch_backend", map[string]interface{}{
		"mode": "local",
	}))
	if result.IsError {
		t.Fatalf("unexpected error: %s", toolText(t, result))
	}
	if got := toolText(t, result); !strings.Contains(got, "not saved: disk full") {
		t.Errorf("text = %q", got)
	}
}

func TestMCPTool_AnalyzeMood(t *testing.T) {
	deps, _ := newTestMCPDeps(t)
	result, err := mcpAnalyzeMood(deps)(context.Background(), makeCallToolRequest("analyze_mood", map[string]interface{}{
		"text": "I feel so sad and lonely today",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected error: %s", toolText(t, result))
	}

	var got struct {
		Mood        mood.Mood `json:"mood"`
		Confidence  float64   `json:"confidence"`
		Description string    `json:"description"`
	}
	if err := json.Unmarshal([]byte(toolText(t, result)), &got); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if got.Mood != mood.Sad {
		t.Errorf("mood = %q, want sad", got.Mood)
	}
	if got.Description != mood.Describe(mood.Sad) {
		t.Errorf("description = %q", got.Description)
	}
}

func TestMCPTool_AnalyzeMood_MissingText(t *testing.T) {
	deps, _ := newTestMCPDeps(t)
	result, _ := mcpAnalyzeMood(deps)(context.Background(), makeCallToolRequest("analyze_mood", nil))
	if !result.IsError {
		t.Error("expected tool error")
	}
}

func TestMCPResource_History(t *testing.T) {
	deps, store := newTestMCPDeps(t)
	ctx := context.Background()

	long := strings.Repeat("é", 250)
	for _, m := range []storage.Message{
		{Sender: storage.SenderUser, Content: long},
		{Sender: storage.SenderAssistant, Content: "That's a lot of accents!", Backend: "groq"},
	} {
		if _, err := store.SaveMessage(ctx, m); err != nil {
			t.Fatalf("SaveMessage: %v", err)
		}
	}

	contents, err := mcpResourceHistory(deps)(ctx, makeReadResourceRequest(historyResourceURI))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(contents) != 1 {
		t.Fatalf("expected 1 resource content, got %d", len(contents))
	}
	tc, ok := contents[0].(mcp.TextResourceContents)
	if !ok {
		t.Fatalf("expected TextResourceContents, got %T", contents[0])
	}
	if tc.URI != historyResourceURI || tc.MIMEType != "application/json" {
		t.Errorf("uri = %q mime = %q", tc.URI, tc.MIMEType)
	}

	var msgs []struct {
		Sender  string `json:"sender"`
		Content string `json:"content"`
		Backend string `json:"backend"`
	}
	if err := json.Unmarshal([]byte(tc.Text), &msgs); err != nil {
		t.Fatalf("failed to parse history: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if want := strings.Repeat("é", historyPreviewRunes) + "..."; msgs[0].Content != want {
		t.Errorf("long message not truncated to %d runes", historyPreviewRunes)
	}
	if msgs[1].Sender != "assistant" || msgs[1].Backend != "groq" {
		t.Errorf("second message = %+v", msgs[1])
	}
}

func TestMCPResource_History_Empty(t *testing.T) {
	deps, _ := newTestMCPDeps(t)
	contents, err := mcpResourceHistory(deps)(context.Background(), makeReadResourceRequest(historyResourceURI))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tc := contents[0].(mcp.TextResourceContents); tc.Text != "[]" {
		t.Errorf("text = %q, want []", tc.Text)
	}
}
