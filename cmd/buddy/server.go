package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/kalambet/buddy/internal/action"
	"github.com/kalambet/buddy/internal/api"
	"github.com/kalambet/buddy/internal/companion"
	"github.com/kalambet/buddy/internal/config"
	"github.com/kalambet/buddy/internal/dispatch"
	"github.com/kalambet/buddy/internal/events"
	"github.com/kalambet/buddy/internal/ollama"
	"github.com/kalambet/buddy/internal/proxy"
	"github.com/kalambet/buddy/internal/storage"
	"github.com/kalambet/buddy/internal/stt"
	"github.com/kalambet/buddy/internal/tts"
	"github.com/kalambet/buddy/internal/voice"
)

const (
	shutdownTimeout    = 5 * time.Second
	actionPollInterval = 500 * time.Millisecond
	speechTimeout      = 30 * time.Second
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the buddy server and voice loop (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		withMCP, _ := cmd.Flags().GetBool("mcp")
		noVoice, _ := cmd.Flags().GetBool("no-voice")
		return runServer(withMCP, noVoice)
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running buddy server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show buddy status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus()
	},
}

func init() {
	startCmd.Flags().Bool("mcp", false, "serve MCP over stdio")
	startCmd.Flags().Bool("no-voice", false, "disable the voice loop")
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "buddy.pid")
}

func writePIDFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func readPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func removePIDFile(path string) {
	os.Remove(path)
}

func runServer(withMCP, noVoice bool) error {
	fmt.Fprintf(os.Stderr, "buddy version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	setupLogging(cfg.Log.Level)

	apiToken, err := config.APIToken()
	if err != nil {
		return fmt.Errorf("initializing API token: %w", err)
	}

	pidPath := pidFilePath(cfg.Storage.DataDir)
	healthURL := fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Server.Port)
	healthClient := &http.Client{Timeout: 2 * time.Second}
	if resp, err := healthClient.Get(healthURL); err == nil {
		resp.Body.Close()
		if pid, pidErr := readPIDFile(pidPath); pidErr == nil {
			printWarning("buddy is already running (PID %d)", pid)
			return fmt.Errorf("server already running (PID %d)", pid)
		}
		printWarning("buddy is already running on port %d", cfg.Server.Port)
		return fmt.Errorf("server already running on port %d", cfg.Server.Port)
	}
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer removePIDFile(pidPath)

	sigCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(sigCtx)
	defer cancel()

	a, err := buildApp(ctx, cfg, func(s *storage.Store) companion.Dispatcher {
		return dispatch.NewQueue(s)
	})
	if err != nil {
		return err
	}
	defer a.Close()

	// Cloud backends can still serve when Ollama is down.
	if err := ollama.EnsureReady(ctx, a.ollama, cfg.Ollama.Model, os.Stderr); err != nil {
		printWarning("local backend unavailable: %v", err)
	}

	textWorker := companion.NewWorker(a.companion)
	actionWorker := dispatch.NewWorker(a.store, a.executor, func(_ action.Action, feedback string) {
		a.bus.Text(events.ActionFeedback, feedback)
	}, actionPollInterval)

	appHandler := api.NewAppHandler(api.AppDeps{
		Chat:     textWorker,
		Backends: a.selector,
		History:  a.store,
		Bus:      a.bus,
		Token:    apiToken,
	})
	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           appHandler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		fmt.Fprintf(os.Stderr, "buddy listening on %s\n", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		fmt.Fprintln(os.Stderr, "shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		textWorker.Run(gctx)
		return nil
	})
	g.Go(func() error {
		actionWorker.Run(gctx)
		return nil
	})

	if withMCP {
		mcpSrv := api.NewMCPServer(api.MCPDeps{
			Chat:     textWorker,
			Backends: a.selector,
			History:  a.store,
			Analyzer: a.analyzer,
			Version:  version,
		})
		stdioSrv := server.NewStdioServer(mcpSrv)
		g.Go(func() error {
			if err := stdioSrv.Listen(gctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("MCP stdio server error", "error", err)
			}
			return nil
		})
		slog.Info("MCP server started (stdio transport)")
	}

	if loop := newVoiceLoop(cfg, a, noVoice); loop != nil {
		g.Go(func() error {
			if err := loop.Run(gctx); err != nil {
				return fmt.Errorf("voice loop: %w", err)
			}
			// The user said goodbye.
			cancel()
			return nil
		})
	}

	return g.Wait()
}

// newVoiceLoop returns the hands-free loop, or nil when voice is off or
// speech recognition has no credentials.
func newVoiceLoop(cfg config.Config, a *app, disabled bool) *voice.Loop {
	if disabled || !cfg.Voice.Enabled {
		slog.Info("voice loop disabled")
		return nil
	}
	if cfg.Groq.APIKey == "" {
		printWarning("voice disabled: speech recognition needs a Groq API key (set BUDDY_GROQ_API_KEY)")
		return nil
	}
	client, err := proxy.NewHTTPClient(cfg.Network.SocksProxy, speechTimeout)
	if err != nil {
		printWarning("voice disabled: %v", err)
		return nil
	}

	listener := stt.NewListener(stt.Arecord{}, stt.NewWhisper(stt.WhisperOptions{
		APIKey:     cfg.Groq.APIKey,
		Model:      cfg.STT.Model,
		HTTPClient: client,
	}), stt.ListenerOptions{EnergyThreshold: cfg.STT.EnergyThreshold})
	speaker := tts.New(tts.Options{
		Voice:     cfg.TTS.Voice,
		Speed:     cfg.TTS.Speed,
		VoicesDir: filepath.Join(cfg.Storage.DataDir, "voices"),
	})

	return voice.NewLoop(a.companion, listener, speaker, voice.Options{
		ListenTimeout: cfg.Voice.ListenWait(),
		PhraseLimit:   cfg.Voice.PhraseWindow(),
		Bus:           a.bus,
	})
}

func stopServer() error {
	cfg, err := config.Load()
	if err != nil {
		printError("could not load config: %v", err)
		return err
	}

	pidPath := pidFilePath(cfg.Storage.DataDir)
	pid, err := readPIDFile(pidPath)
	if err != nil {
		printError("buddy is not running (no PID file)")
		return fmt.Errorf("not running: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		printError("could not find process %d", pid)
		return err
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		printError("could not stop buddy (PID %d): %v", pid, err)
		removePIDFile(pidPath)
		return err
	}

	printSuccess("Sent stop signal to buddy (PID %d)", pid)
	return nil
}

func showStatus() error {
	cfg, err := config.Load()
	if err != nil {
		printError("config error: %v", err)
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	serverURL := fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port)
	client := &http.Client{Timeout: 2 * time.Second}
	running := false

	resp, err := client.Get(serverURL + "/health")
	if err != nil {
		printStatus("Server", "stopped")
	} else {
		resp.Body.Close()
		if resp.StatusCode == http.StatusOK {
			running = true
			printStatus("Server", "running on port %d", cfg.Server.Port)
		} else {
			printStatus("Server", "error (HTTP %d)", resp.StatusCode)
		}
	}

	if ollama.New(cfg.Ollama.BaseURL).IsRunning(ctx) {
		printStatus("Ollama", "running at %s (model %s)", cfg.Ollama.BaseURL, cfg.Ollama.Model)
	} else {
		printStatus("Ollama", "not running")
	}
	printStatus("Groq", "%s", keyLabel(cfg.Groq.APIKey, cfg.Groq.Model))
	printStatus("Gemini", "%s", keyLabel(cfg.Gemini.APIKey, cfg.Gemini.Model))

	if running {
		if c, err := newAPIClient(); err == nil {
			if st, err := fetchBackendStatus(ctx, c); err == nil {
				writeBackendStatus(os.Stderr, st)
			}
		}
	} else {
		printStatus("Mode", "%s", cfg.LLM.Mode)
	}

	printStatus("Voice", "%s", onOff(cfg.Voice.Enabled))
	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	return nil
}

func keyLabel(key, model string) string {
	if key == "" {
		return "no API key"
	}
	return "configured (model " + model + ")"
}

func onOff(b bool) string {
	if b {
		return "enabled"
	}
	return "disabled"
}
