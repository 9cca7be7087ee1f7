package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Modes accepted for llm.mode.
var validModes = []string{"auto", "local", "groq", "gemini"}

// Cloud backends accepted in llm.cloud_priority.
var validClouds = []string{"groq", "gemini"}

type Config struct {
	LLM         LLMConfig
	Ollama      OllamaConfig
	Groq        GroqConfig
	Gemini      GeminiConfig
	Preferences PreferencesConfig
	Sentiment   SentimentConfig
	Voice       VoiceConfig
	STT         STTConfig
	TTS         TTSConfig
	Server      ServerConfig
	Storage     StorageConfig
	Network     NetworkConfig
	Log         LogConfig
}

type LLMConfig struct {
	Mode           string
	CloudPriority  string
	RequestTimeout string
}

type OllamaConfig struct {
	BaseURL string
	Model   string
}

type GroqConfig struct {
	APIKey string
	Model  string
}

type GeminiConfig struct {
	APIKey string
	Model  string
}

type PreferencesConfig struct {
	PreferOnline bool
	AutoFallback bool
}

type SentimentConfig struct {
	Sensitivity float64
}

type VoiceConfig struct {
	Enabled       bool
	ListenTimeout string
	PhraseLimit   string
}

type STTConfig struct {
	Model           string
	EnergyThreshold float64
}

type TTSConfig struct {
	Voice string
	Speed float64
}

type ServerConfig struct {
	Port int
}

type StorageConfig struct {
	DataDir string
}

type NetworkConfig struct {
	SocksProxy string
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	return Config{
		LLM: LLMConfig{
			Mode:           "auto",
			CloudPriority:  "groq,gemini",
			RequestTimeout: "30s",
		},
		Ollama: OllamaConfig{
			BaseURL: "http://localhost:11434",
			Model:   "llama3.2:latest",
		},
		Groq: GroqConfig{
			Model: "llama-3.3-70b-versatile",
		},
		Gemini: GeminiConfig{
			Model: "gemini-1.5-flash",
		},
		Preferences: PreferencesConfig{
			PreferOnline: true,
			AutoFallback: true,
		},
		Sentiment: SentimentConfig{
			Sensitivity: 0.5,
		},
		Voice: VoiceConfig{
			Enabled:       true,
			ListenTimeout: "5s",
			PhraseLimit:   "10s",
		},
		STT: STTConfig{
			Model:           "whisper-large-v3-turbo",
			EnergyThreshold: 0.015,
		},
		TTS: TTSConfig{
			Voice: "en_US-lessac-medium",
			Speed: 1.2,
		},
		Server: ServerConfig{
			Port: 4100,
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the platform-native backend, a .env file in
// the working directory, environment variables, and the platform secret
// store.
//
// On macOS the backend is UserDefaults (domain: com.buddy.app) and secrets
// fall back to macOS Keychain.
// On Linux the backend is a JSON file at $XDG_CONFIG_HOME/buddy/config.json
// and secrets fall back to $XDG_DATA_HOME/buddy/secrets.json.
//
// Environment variables (BUDDY_*) override backend values on all platforms.
// Missing API keys are not an error: the companion runs on the local model
// alone.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "[WARN] could not read .env: %v\n", err)
	}
	return loadWith(newPlatformBackend(), keychainStore{})
}

// keychain abstracts secret store access for testing.
type keychain interface {
	Get(service, account string) (string, error)
}

// keychainService is the service name secrets are filed under.
const keychainService = "buddy"

func loadWith(b ConfigBackend, kc keychain) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)
	applySecrets(&cfg, kc)
	normalize(&cfg)

	return cfg, nil
}

// normalize replaces values that would leave the companion unusable with
// their defaults.
func normalize(cfg *Config) {
	d := defaults()
	if err := checkMode(cfg.LLM.Mode); err != nil {
		fmt.Fprintf(os.Stderr, "[WARN] %v. Using %q.\n", err, d.LLM.Mode)
		cfg.LLM.Mode = d.LLM.Mode
	}
	if err := checkPriority(cfg.LLM.CloudPriority); err != nil {
		fmt.Fprintf(os.Stderr, "[WARN] %v. Using %q.\n", err, d.LLM.CloudPriority)
		cfg.LLM.CloudPriority = d.LLM.CloudPriority
	}
	if cfg.Ollama.Model == "" {
		cfg.Ollama.Model = d.Ollama.Model
	}
	if cfg.Groq.Model == "" {
		cfg.Groq.Model = d.Groq.Model
	}
	if cfg.Gemini.Model == "" {
		cfg.Gemini.Model = d.Gemini.Model
	}
	if cfg.Sentiment.Sensitivity < 0 || cfg.Sentiment.Sensitivity > 1 {
		fmt.Fprintf(os.Stderr, "[WARN] sentiment.sensitivity %v out of range [0,1]. Using %v.\n", cfg.Sentiment.Sensitivity, d.Sentiment.Sensitivity)
		cfg.Sentiment.Sensitivity = d.Sentiment.Sensitivity
	}
}

func checkMode(v string) error {
	for _, m := range validModes {
		if v == m {
			return nil
		}
	}
	return fmt.Errorf("invalid llm.mode %q (want one of %s)", v, strings.Join(validModes, ", "))
}

func checkPriority(v string) error {
	items := splitList(v)
	if len(items) == 0 {
		return fmt.Errorf("llm.cloud_priority is empty")
	}
	seen := make(map[string]bool)
	for _, it := range items {
		ok := false
		for _, c := range validClouds {
			if it == c {
				ok = true
			}
		}
		if !ok {
			return fmt.Errorf("invalid cloud backend %q in llm.cloud_priority (want %s)", it, strings.Join(validClouds, ", "))
		}
		if seen[it] {
			return fmt.Errorf("duplicate cloud backend %q in llm.cloud_priority", it)
		}
		seen[it] = true
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(strings.ToLower(p)); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Priority returns the configured cloud backend order.
func (c LLMConfig) Priority() []string {
	return splitList(c.CloudPriority)
}

// Timeout returns the per-request timeout for cloud backends.
func (c LLMConfig) Timeout() time.Duration {
	return parseDuration(c.RequestTimeout, 30*time.Second)
}

func (c VoiceConfig) ListenWait() time.Duration {
	return parseDuration(c.ListenTimeout, 5*time.Second)
}

func (c VoiceConfig) PhraseWindow() time.Duration {
	return parseDuration(c.PhraseLimit, 10*time.Second)
}

func parseDuration(raw string, def time.Duration) time.Duration {
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		fmt.Fprintf(os.Stderr, "[WARN] could not parse duration %q. Using %s.\n", raw, def)
		return def
	}
	return d
}

// keychainStore reads and writes the platform secret store.
type keychainStore struct{}

func (keychainStore) Get(service, account string) (string, error) {
	out, err := keychainGet(service, account)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

func (keychainStore) Set(service, account, value string) error {
	return keychainSet(service, account, value)
}
