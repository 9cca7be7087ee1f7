package api

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/buddy/internal/mood"
	"github.com/kalambet/buddy/internal/router"
)

const (
	historyResourceURI   = "buddy://history"
	historyResourceLimit = 20
	historyPreviewRunes  = 200
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Chat     Chatter
	Backends Backends
	History  History
	Analyzer *mood.Analyzer
	Version  string
}

// NewMCPServer creates an MCP server with the companion's tools and
// resources registered.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	version := deps.Version
	if version == "" {
		version = "dev"
	}
	s := server.NewMCPServer(
		"buddy",
		version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("buddy: a desktop companion that chats, reads the user's mood, and opens apps, files and websites."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("chat",
			mcp.WithDescription("Send a message to the companion and get its reply. Actions in the reply run on the user's machine."),
			mcp.WithString("message", mcp.Description("What to say"), mcp.Required()),
		),
		mcpChat(deps),
	)

	s.AddTool(
		mcp.NewTool("switch_backend",
			mcp.WithDescription("Switch the language model backend."),
			mcp.WithString("mode",
				mcp.Description("Backend selection mode"),
				mcp.Enum("auto", "local", "groq", "gemini"),
				mcp.Required(),
			),
		),
		mcpSwitchBackend(deps),
	)

	s.AddTool(
		mcp.NewTool("analyze_mood",
			mcp.WithDescription("Estimate the emotional state expressed in a piece of text."),
			mcp.WithString("text", mcp.Description("Text to analyze"), mcp.Required()),
		),
		mcpAnalyzeMood(deps),
	)

	s.AddResource(
		mcp.NewResource(
			historyResourceURI,
			"Chat History",
			mcp.WithResourceDescription("Most recent messages between the user and the companion"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceHistory(deps),
	)

	return s
}

func mcpChat(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		message, err := req.RequireString("message")
		if err != nil || strings.TrimSpace(message) == "" {
			return mcpError("message is required"), nil
		}

		turn, err := deps.Chat.Submit(ctx, message)
		if err != nil {
			return mcpError(fmt.Sprintf("chat failed: %v", err)), nil
		}

		var b strings.Builder
		b.WriteString(turn.Text)
		for _, f := range turn.Feedback {
			b.WriteString("\n")
			b.WriteString(f)
		}
		return mcpText(b.String()), nil
	}
}

func mcpSwitchBackend(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		raw, err := req.RequireString("mode")
		if err != nil {
			return mcpError("mode is required"), nil
		}
		mode, err := router.ParseMode(raw)
		if err != nil {
			return mcpError(err.Error()), nil
		}
		if err := deps.Backends.SetMode(mode); err != nil {
			return mcpText(fmt.Sprintf("Switched to %s (not saved: %v)", mode, err)), nil
		}
		return mcpText(fmt.Sprintf("Switched to %s", mode)), nil
	}
}

func mcpAnalyzeMood(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		text, err := req.RequireString("text")
		if err != nil {
			return mcpError("text is required"), nil
		}
		analyzer := deps.Analyzer
		if analyzer == nil {
			analyzer = mood.New(mood.DefaultSensitivity)
		}

		a := analyzer.Analyze(text)
		b, err := json.Marshal(struct {
			mood.Assessment
			Description string `json:"description"`
		}{a, mood.Describe(a.Mood)})
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal assessment: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpResourceHistory(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		msgs, err := deps.History.RecentMessages(ctx, historyResourceLimit)
		if err != nil {
			return nil, fmt.Errorf("failed to get history: %w", err)
		}

		type messageSummary struct {
			CreatedAt string `json:"created_at"`
			Sender    string `json:"sender"`
			Content   string `json:"content"`
			Backend   string `json:"backend,omitempty"`
		}

		summaries := make([]messageSummary, len(msgs))
		for i, m := range msgs {
			content := m.Content
			if utf8.RuneCountInString(content) > historyPreviewRunes {
				content = string([]rune(content)[:historyPreviewRunes]) + "..."
			}
			summaries[i] = messageSummary{
				CreatedAt: m.CreatedAt.Format(time.RFC3339),
				Sender:    string(m.Sender),
				Content:   content,
				Backend:   m.Backend,
			}
		}

		b, err := json.Marshal(summaries)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal history: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
