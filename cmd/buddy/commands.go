package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kalambet/buddy/internal/api"
	"github.com/kalambet/buddy/internal/companion"
	"github.com/kalambet/buddy/internal/config"
	"github.com/kalambet/buddy/internal/mood"
	"github.com/kalambet/buddy/internal/router"
	"github.com/kalambet/buddy/internal/storage"
)

// --- chat ---

var chatCmd = &cobra.Command{
	Use:   "chat [message]",
	Short: "Talk to buddy by text",
	Long: `Talk to buddy by text. With a message, sends one turn to the running
server. Without one, starts an interactive session; say "goodbye" to leave.

Examples:
  buddy chat "open my downloads folder"
  buddy chat
  buddy chat --local`,
	RunE: func(cmd *cobra.Command, args []string) error {
		local, _ := cmd.Flags().GetBool("local")
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if local {
			return runLocalChat(ctx, os.Stdin, os.Stdout)
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		send := func(text string) (companion.Turn, error) {
			return sendChat(ctx, client, text)
		}
		if len(args) > 0 {
			turn, err := send(strings.Join(args, " "))
			if err != nil {
				return err
			}
			printTurn(os.Stdout, turn)
			return nil
		}
		return chatREPL(ctx, os.Stdin, os.Stdout, send)
	},
}

func init() {
	chatCmd.Flags().Bool("local", false, "run the conversation in-process without the server")
}

func sendChat(ctx context.Context, c *apiClient, text string) (companion.Turn, error) {
	resp, err := c.post(ctx, "/chat", api.ChatRequest{Message: text})
	if err != nil {
		return companion.Turn{}, err
	}
	var turn companion.Turn
	if err := decodeJSON(resp, &turn); err != nil {
		return companion.Turn{}, err
	}
	return turn, nil
}

// runLocalChat runs a REPL against an in-process companion. Actions run
// synchronously.
func runLocalChat(ctx context.Context, in io.Reader, out io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	setupLogging(cfg.Log.Level)

	a, err := buildApp(ctx, cfg, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	if !a.ollama.IsRunning(ctx) {
		printWarning("Ollama is not running; only cloud backends can answer")
	}

	send := func(text string) (companion.Turn, error) {
		return a.companion.Handle(ctx, text), nil
	}
	return chatREPL(ctx, in, out, send)
}

// chatREPL reads lines from in and prints each reply until an exit word,
// EOF or cancellation.
func chatREPL(ctx context.Context, in io.Reader, out io.Writer, send func(string) (companion.Turn, error)) error {
	fmt.Fprintln(out, colorize(colorBold, "Chatting with Buddy. Say goodbye to leave."))
	sc := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, colorize(colorGreen, "You: "))
		if !sc.Scan() {
			fmt.Fprintln(out)
			return sc.Err()
		}
		if ctx.Err() != nil {
			return nil
		}
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}

		turn, err := send(text)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			printError("%v", err)
			continue
		}
		printTurn(out, turn)
		if turn.Exit {
			return nil
		}
	}
}

func printTurn(w io.Writer, turn companion.Turn) {
	label := ""
	if turn.Backend != "" {
		label = turn.Backend.Label()
	}
	printReply(w, label, turn.Text, turn.Feedback)
}

// --- backend ---

var backendCmd = &cobra.Command{
	Use:   "backend [auto|local|groq|gemini]",
	Short: "Show or switch the language model backend",
	Long: `Show or switch the language model backend. "auto" picks a backend per
turn by connectivity and falls back between them; the others pin one.`,
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: []string{"auto", "local", "groq", "gemini"},
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		var mode router.Mode
		if len(args) == 1 {
			m, err := router.ParseMode(args[0])
			if err != nil {
				return err
			}
			mode = m
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		var st api.BackendStatus
		if mode == "" {
			st, err = fetchBackendStatus(ctx, client)
		} else {
			st, err = switchBackend(ctx, client, mode)
		}
		if err != nil {
			if mode == "" || !errors.Is(err, errNotRunning) {
				return err
			}
			slog.Debug("server unreachable, saving mode", "error", err)
			if err := config.SetKey("llm.mode", string(mode)); err != nil {
				return err
			}
			printSuccess("Saved backend mode %s; it applies on the next start", mode)
			return nil
		}

		if st.Warning != "" {
			printWarning("%s", st.Warning)
		}
		writeBackendStatus(os.Stdout, st)
		return nil
	},
}

func fetchBackendStatus(ctx context.Context, c *apiClient) (api.BackendStatus, error) {
	var st api.BackendStatus
	resp, err := c.get(ctx, "/backend")
	if err != nil {
		return st, err
	}
	err = decodeJSON(resp, &st)
	return st, err
}

func switchBackend(ctx context.Context, c *apiClient, mode router.Mode) (api.BackendStatus, error) {
	var st api.BackendStatus
	resp, err := c.put(ctx, "/backend", api.BackendRequest{Mode: string(mode)})
	if err != nil {
		return st, err
	}
	err = decodeJSON(resp, &st)
	return st, err
}

func writeBackendStatus(w io.Writer, st api.BackendStatus) {
	fmt.Fprintf(w, "  %s %s\n", colorize(colorBold, "Mode:"), st.Mode)
	if st.Last != "" {
		fmt.Fprintf(w, "  %s %s\n", colorize(colorBold, "Last used:"), st.Last.Label())
	}
	for _, b := range st.Backends {
		marker := " "
		if b.ID == st.Last {
			marker = "*"
		}
		fmt.Fprintf(w, "  %s %-8s %s\n", marker, b.ID, colorize(colorCyan, b.Model))
	}
}

// --- mood ---

var moodCmd = &cobra.Command{
	Use:   "mood <text>",
	Short: "Analyze the mood of a piece of text",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sensitivity := mood.DefaultSensitivity
		if cfg, err := config.Load(); err == nil {
			sensitivity = cfg.Sentiment.Sensitivity
		}
		a := mood.New(sensitivity).Analyze(strings.Join(args, " "))
		writeMood(os.Stdout, a)
		return nil
	},
}

func writeMood(w io.Writer, a mood.Assessment) {
	fmt.Fprintf(w, "%s %s (confidence %.2f)\n", colorize(colorBold, "Mood:"), a.Mood, a.Confidence)
	fmt.Fprintf(w, "  %s\n", mood.Describe(a.Mood))
	if d := mood.EmpathyContext(a); d != "" {
		fmt.Fprintf(w, "  %s %s\n", colorize(colorCyan, "Directive:"), d)
	}
}

// --- history ---

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent conversation history",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), fmt.Sprintf("/history?limit=%d", limit))
		if err != nil {
			return err
		}

		var msgs []storage.Message
		if err := decodeJSON(resp, &msgs); err != nil {
			return err
		}
		writeHistory(os.Stdout, msgs)
		return nil
	},
}

func init() {
	historyCmd.Flags().Int("limit", 20, "maximum number of messages to show")
}

func writeHistory(w io.Writer, msgs []storage.Message) {
	if len(msgs) == 0 {
		fmt.Fprintln(w, "No messages yet.")
		return
	}
	for _, m := range msgs {
		who := colorize(colorGreen, "You")
		if m.Sender == storage.SenderAssistant {
			who = colorize(colorMagenta, "Buddy")
			if m.Backend != "" {
				who += " (" + m.Backend + ")"
			}
		}
		fmt.Fprintf(w, "%s  %s: %s\n", m.CreatedAt.Local().Format("Jan 02 15:04"), who, m.Content)
	}
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		writeConfig(os.Stdout, config.ShowAll(cfg))
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: "Set a configuration value. Valid keys:\n  " +
		strings.Join(config.ValidKeys(), "\n  "),
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}

func writeConfig(w io.Writer, keys []config.KeyInfo) {
	for _, k := range keys {
		fmt.Fprintf(w, "  %s = %s\n", colorize(colorBold, k.Key), k.Value)
	}
}
