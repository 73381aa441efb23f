package config

import (
	"fmt"
	"strings"
)

type Config struct {
	Server  ServerConfig
	Storage StorageConfig
	Gemini  GeminiConfig
	Gateway GatewayConfig
	Flow    FlowConfig
	Auth    AuthConfig
	Log     LogConfig
}

type ServerConfig struct {
	Port int
}

type StorageConfig struct {
	DataDir string
	// Backend is one of "sqlite", "file" or "memory".
	Backend string
}

type GeminiConfig struct {
	APIKey      string
	BaseURL     string
	LiveURL     string
	TextModel   string
	ProModel    string
	SpeechModel string
	LiveModel   string
	Voice       string
}

type GatewayConfig struct {
	MaxRetries        int
	InitialBackoff    string
	BackoffMultiplier float64
}

type FlowConfig struct {
	// DelayScale multiplies every simulated latency in the flows.
	// 0 disables the delays entirely.
	DelayScale float64
}

type AuthConfig struct {
	SessionTTL string
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: 4100,
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
			Backend: "sqlite",
		},
		Gemini: GeminiConfig{
			BaseURL:     "https://generativelanguage.googleapis.com/v1beta",
			LiveURL:     "wss://generativelanguage.googleapis.com/ws/google.ai.generativelanguage.v1beta.GenerativeService.BidiGenerateContent",
			TextModel:   "gemini-3-flash-preview",
			ProModel:    "gemini-3-pro-preview",
			SpeechModel: "gemini-2.5-flash-preview-tts",
			LiveModel:   "gemini-2.5-flash-native-audio-preview-12-2025",
			Voice:       "Kore",
		},
		Gateway: GatewayConfig{
			MaxRetries:        2,
			InitialBackoff:    "1500ms",
			BackoffMultiplier: 2.5,
		},
		Flow: FlowConfig{
			DelayScale: 1,
		},
		Auth: AuthConfig{
			SessionTTL: "24h",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the platform-native backend, environment
// variables, and platform secret store.
//
// On macOS the backend is UserDefaults (domain: com.lumina.studio) and the
// Gemini API key falls back to the macOS Keychain.
// On Linux the backend is a JSON file at $XDG_CONFIG_HOME/lumina/config.json
// and secrets live in $XDG_DATA_HOME/lumina/secrets.json.
//
// Environment variables (LUMINA_*) override backend values on all platforms.
func Load() (Config, error) {
	return loadWith(newPlatformBackend(), NewKeychain())
}

// keychain abstracts secret store reads for testing.
type keychain interface {
	Get(service, account string) (string, error)
}

func loadWith(b Backend, kc keychain) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	if cfg.Gemini.APIKey == "" {
		if key, err := kc.Get(keychainService, "gemini_api_key"); err == nil && key != "" {
			cfg.Gemini.APIKey = strings.TrimSpace(key)
		}
	}

	if cfg.Gemini.APIKey == "" {
		msg := "missing required config: Gemini API key. " +
			"Set it via environment variable LUMINA_GEMINI_API_KEY" +
			apiKeyHint()
		return Config{}, fmt.Errorf("%s", msg)
	}

	switch cfg.Storage.Backend {
	case "sqlite", "file", "memory":
	default:
		return Config{}, fmt.Errorf("invalid storage.backend %q: want sqlite, file or memory", cfg.Storage.Backend)
	}

	return cfg, nil
}
