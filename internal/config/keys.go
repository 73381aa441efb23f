package config

import (
	"fmt"
	"log/slog"
	"os"
)

type keyType int

const (
	kString keyType = iota
	kInt
	kBool
	kFloat
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	secret  bool
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "server.port", typ: kInt, env: "LUMINA_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "storage.data_dir", typ: kString, env: "LUMINA_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "storage.backend", typ: kString, env: "LUMINA_STORAGE_BACKEND",
		apply:   func(cfg *Config, v any) { cfg.Storage.Backend = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.Backend },
	},
	{
		key: "gemini.api_key", typ: kString, env: "LUMINA_GEMINI_API_KEY",
		secret: true,
		apply:   func(cfg *Config, v any) { cfg.Gemini.APIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.Gemini.APIKey },
	},
	{
		key: "gemini.base_url", typ: kString, env: "LUMINA_GEMINI_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Gemini.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Gemini.BaseURL },
	},
	{
		key: "gemini.live_url", typ: kString, env: "LUMINA_GEMINI_LIVE_URL",
		apply:   func(cfg *Config, v any) { cfg.Gemini.LiveURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Gemini.LiveURL },
	},
	{
		key: "gemini.text_model", typ: kString, env: "LUMINA_GEMINI_TEXT_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Gemini.TextModel = v.(string) },
		extract: func(cfg Config) any { return cfg.Gemini.TextModel },
	},
	{
		key: "gemini.pro_model", typ: kString, env: "LUMINA_GEMINI_PRO_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Gemini.ProModel = v.(string) },
		extract: func(cfg Config) any { return cfg.Gemini.ProModel },
	},
	{
		key: "gemini.speech_model", typ: kString, env: "LUMINA_GEMINI_SPEECH_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Gemini.SpeechModel = v.(string) },
		extract: func(cfg Config) any { return cfg.Gemini.SpeechModel },
	},
	{
		key: "gemini.live_model", typ: kString, env: "LUMINA_GEMINI_LIVE_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Gemini.LiveModel = v.(string) },
		extract: func(cfg Config) any { return cfg.Gemini.LiveModel },
	},
	{
		key: "gemini.voice", typ: kString, env: "LUMINA_GEMINI_VOICE",
		apply:   func(cfg *Config, v any) { cfg.Gemini.Voice = v.(string) },
		extract: func(cfg Config) any { return cfg.Gemini.Voice },
	},
	{
		key: "gateway.max_retries", typ: kInt, env: "LUMINA_GATEWAY_MAX_RETRIES",
		apply:   func(cfg *Config, v any) { cfg.Gateway.MaxRetries = v.(int) },
		extract: func(cfg Config) any { return cfg.Gateway.MaxRetries },
	},
	{
		key: "gateway.initial_backoff", typ: kString, env: "LUMINA_GATEWAY_INITIAL_BACKOFF",
		apply:   func(cfg *Config, v any) { cfg.Gateway.InitialBackoff = v.(string) },
		extract: func(cfg Config) any { return cfg.Gateway.InitialBackoff },
	},
	{
		key: "gateway.backoff_multiplier", typ: kFloat, env: "LUMINA_GATEWAY_BACKOFF_MULTIPLIER",
		apply:   func(cfg *Config, v any) { cfg.Gateway.BackoffMultiplier = v.(float64) },
		extract: func(cfg Config) any { return cfg.Gateway.BackoffMultiplier },
	},
	{
		key: "flow.delay_scale", typ: kFloat, env: "LUMINA_FLOW_DELAY_SCALE",
		apply:   func(cfg *Config, v any) { cfg.Flow.DelayScale = v.(float64) },
		extract: func(cfg Config) any { return cfg.Flow.DelayScale },
	},
	{
		key: "auth.session_ttl", typ: kString, env: "LUMINA_AUTH_SESSION_TTL",
		apply:   func(cfg *Config, v any) { cfg.Auth.SessionTTL = v.(string) },
		extract: func(cfg Config) any { return cfg.Auth.SessionTTL },
	},
	{
		key: "log.level", typ: kString, env: "LUMINA_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
}

// applyBackend copies stored values into cfg. A stored value that does not
// parse is an error, since `lumina config set` validates before writing.
func applyBackend(cfg *Config, b Backend) error {
	for _, s := range specs {
		if s.secret {
			continue
		}
		raw, ok, err := b.Get(s.key)
		if err != nil {
			return fmt.Errorf("reading %s: %w", s.key, err)
		}
		if !ok || raw == "" {
			continue
		}
		v, err := parseValue(s, raw)
		if err != nil {
			return fmt.Errorf("%s in %s: %w", s.key, b.Location(), err)
		}
		s.apply(cfg, v)
	}
	return nil
}

// applyEnvOverrides lets LUMINA_* variables win over stored values. A
// malformed variable is logged and skipped.
func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		raw := os.Getenv(s.env)
		if s.env == "" || raw == "" {
			continue
		}
		v, err := parseValue(s, raw)
		if err != nil {
			slog.Warn("ignoring environment override", "env", s.env, "error", err)
			continue
		}
		s.apply(cfg, v)
	}
}
