package config

import (
	"fmt"
	"os"
	"strconv"
)

type keyType int

const (
	kString keyType = iota
	kInt
	kBool
	kFloat
)

type keySpec struct {
	key    string
	typ    keyType
	env    string
	secret bool
	// account is the secret store account consulted when env is unset.
	account string
	// altEnv is a conventional provider variable accepted as a fallback.
	altEnv   string
	validate func(v string) error
	apply    func(cfg *Config, v any)
	extract  func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "llm.mode", typ: kString, env: "BUDDY_LLM_MODE",
		validate: checkMode,
		apply:    func(cfg *Config, v any) { cfg.LLM.Mode = v.(string) },
		extract:  func(cfg Config) any { return cfg.LLM.Mode },
	},
	{
		key: "llm.cloud_priority", typ: kString, env: "BUDDY_LLM_CLOUD_PRIORITY",
		validate: checkPriority,
		apply:    func(cfg *Config, v any) { cfg.LLM.CloudPriority = v.(string) },
		extract:  func(cfg Config) any { return cfg.LLM.CloudPriority },
	},
	{
		key: "llm.request_timeout", typ: kString, env: "BUDDY_LLM_REQUEST_TIMEOUT",
		apply:   func(cfg *Config, v any) { cfg.LLM.RequestTimeout = v.(string) },
		extract: func(cfg Config) any { return cfg.LLM.RequestTimeout },
	},
	{
		key: "ollama.base_url", typ: kString, env: "BUDDY_OLLAMA_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Ollama.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Ollama.BaseURL },
	},
	{
		key: "ollama.model", typ: kString, env: "BUDDY_OLLAMA_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Ollama.Model = v.(string) },
		extract: func(cfg Config) any { return cfg.Ollama.Model },
	},
	{
		key: "groq.model", typ: kString, env: "BUDDY_GROQ_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Groq.Model = v.(string) },
		extract: func(cfg Config) any { return cfg.Groq.Model },
	},
	{
		key: "groq.api_key", typ: kString, env: "BUDDY_GROQ_API_KEY",
		secret: true, account: "groq_api_key", altEnv: "GROQ_API_KEY",
		apply:   func(cfg *Config, v any) { cfg.Groq.APIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.Groq.APIKey },
	},
	{
		key: "gemini.model", typ: kString, env: "BUDDY_GEMINI_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Gemini.Model = v.(string) },
		extract: func(cfg Config) any { return cfg.Gemini.Model },
	},
	{
		key: "gemini.api_key", typ: kString, env: "BUDDY_GEMINI_API_KEY",
		secret: true, account: "gemini_api_key", altEnv: "GEMINI_API_KEY",
		apply:   func(cfg *Config, v any) { cfg.Gemini.APIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.Gemini.APIKey },
	},
	{
		key: "preferences.prefer_online", typ: kBool, env: "BUDDY_PREFER_ONLINE",
		apply:   func(cfg *Config, v any) { cfg.Preferences.PreferOnline = v.(bool) },
		extract: func(cfg Config) any { return cfg.Preferences.PreferOnline },
	},
	{
		key: "preferences.auto_fallback", typ: kBool, env: "BUDDY_AUTO_FALLBACK",
		apply:   func(cfg *Config, v any) { cfg.Preferences.AutoFallback = v.(bool) },
		extract: func(cfg Config) any { return cfg.Preferences.AutoFallback },
	},
	{
		key: "sentiment.sensitivity", typ: kFloat, env: "BUDDY_SENTIMENT_SENSITIVITY",
		apply:   func(cfg *Config, v any) { cfg.Sentiment.Sensitivity = v.(float64) },
		extract: func(cfg Config) any { return cfg.Sentiment.Sensitivity },
	},
	{
		key: "voice.enabled", typ: kBool, env: "BUDDY_VOICE_ENABLED",
		apply:   func(cfg *Config, v any) { cfg.Voice.Enabled = v.(bool) },
		extract: func(cfg Config) any { return cfg.Voice.Enabled },
	},
	{
		key: "voice.listen_timeout", typ: kString, env: "BUDDY_VOICE_LISTEN_TIMEOUT",
		apply:   func(cfg *Config, v any) { cfg.Voice.ListenTimeout = v.(string) },
		extract: func(cfg Config) any { return cfg.Voice.ListenTimeout },
	},
	{
		key: "voice.phrase_limit", typ: kString, env: "BUDDY_VOICE_PHRASE_LIMIT",
		apply:   func(cfg *Config, v any) { cfg.Voice.PhraseLimit = v.(string) },
		extract: func(cfg Config) any { return cfg.Voice.PhraseLimit },
	},
	{
		key: "stt.model", typ: kString, env: "BUDDY_STT_MODEL",
		apply:   func(cfg *Config, v any) { cfg.STT.Model = v.(string) },
		extract: func(cfg Config) any { return cfg.STT.Model },
	},
	{
		key: "stt.energy_threshold", typ: kFloat, env: "BUDDY_STT_ENERGY_THRESHOLD",
		apply:   func(cfg *Config, v any) { cfg.STT.EnergyThreshold = v.(float64) },
		extract: func(cfg Config) any { return cfg.STT.EnergyThreshold },
	},
	{
		key: "tts.voice", typ: kString, env: "BUDDY_TTS_VOICE",
		apply:   func(cfg *Config, v any) { cfg.TTS.Voice = v.(string) },
		extract: func(cfg Config) any { return cfg.TTS.Voice },
	},
	{
		key: "tts.speed", typ: kFloat, env: "BUDDY_TTS_SPEED",
		apply:   func(cfg *Config, v any) { cfg.TTS.Speed = v.(float64) },
		extract: func(cfg Config) any { return cfg.TTS.Speed },
	},
	{
		key: "server.port", typ: kInt, env: "BUDDY_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "storage.data_dir", typ: kString, env: "BUDDY_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "network.socks_proxy", typ: kString, env: "BUDDY_SOCKS_PROXY",
		apply:   func(cfg *Config, v any) { cfg.Network.SocksProxy = v.(string) },
		extract: func(cfg Config) any { return cfg.Network.SocksProxy },
	},
	{
		key: "log.level", typ: kString, env: "BUDDY_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
}

func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
		if s.secret {
			continue
		}
		switch s.typ {
		case kString:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kInt:
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kBool:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok && v != "" {
				if bv, err := strconv.ParseBool(v); err == nil {
					s.apply(cfg, bv)
				} else {
					fmt.Fprintf(os.Stderr, "[WARN] could not parse bool from config key %s=%q: %v. Using default value.\n", s.key, v, err)
				}
			}
		case kFloat:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok && v != "" {
				if f, err := strconv.ParseFloat(v, 64); err == nil {
					s.apply(cfg, f)
				} else {
					fmt.Fprintf(os.Stderr, "[WARN] could not parse float from config key %s=%q: %v. Using default value.\n", s.key, v, err)
				}
			}
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		if s.env == "" || s.secret {
			continue
		}
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		switch s.typ {
		case kString:
			s.apply(cfg, raw)
		case kInt:
			if i, err := strconv.Atoi(raw); err == nil {
				s.apply(cfg, i)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse integer from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		case kBool:
			if b, err := strconv.ParseBool(raw); err == nil {
				s.apply(cfg, b)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse bool from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		case kFloat:
			if f, err := strconv.ParseFloat(raw, 64); err == nil {
				s.apply(cfg, f)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse float from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		}
	}
}

// applySecrets resolves secrets from BUDDY_* env, then the provider's own
// env var, then the platform secret store.
func applySecrets(cfg *Config, kc keychain) {
	for _, s := range specs {
		if !s.secret {
			continue
		}
		if v := os.Getenv(s.env); v != "" {
			s.apply(cfg, v)
			continue
		}
		if s.altEnv != "" {
			if v := os.Getenv(s.altEnv); v != "" {
				s.apply(cfg, v)
				continue
			}
		}
		if v, err := kc.Get(keychainService, s.account); err == nil && v != "" {
			s.apply(cfg, v)
		}
	}
}
