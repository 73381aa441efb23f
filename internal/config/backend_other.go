//go:build !darwin

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
)

// defaultDataDir follows the XDG base directory layout.
func defaultDataDir() string {
	dir := os.Getenv("XDG_DATA_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "lumina-data"
		}
		dir = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dir, "lumina")
}

func apiKeyHint() string {
	return ` or add {"` + keychainService + `":{"gemini_api_key":"<key>"}} to ` + secretsFilePath()
}

// jsonBackend keeps settings as a flat JSON object. A missing file is an
// empty configuration; an unreadable one is reported and ignored.
type jsonBackend struct {
	path   string
	values map[string]string
}

func newPlatformBackend() Backend {
	return openJSONBackend(configFilePath())
}

func openJSONBackend(path string) *jsonBackend {
	b := &jsonBackend{path: path, values: make(map[string]string)}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return b
	}
	if err != nil {
		slog.Warn("config file unreadable, using defaults", "path", path, "error", err)
		return b
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		slog.Warn("config file is not valid JSON, using defaults", "path", path, "error", err)
		return b
	}
	for k, v := range raw {
		switch val := v.(type) {
		case string:
			b.values[k] = val
		case float64:
			b.values[k] = strconv.FormatFloat(val, 'f', -1, 64)
		case bool:
			b.values[k] = strconv.FormatBool(val)
		default:
			slog.Warn("ignoring config value", "path", path, "key", k)
		}
	}
	return b
}

func configFilePath() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join(".", "lumina", "config.json")
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "lumina", "config.json")
}

// save replaces the file through a rename so a crash never leaves half a
// config behind.
func (b *jsonBackend) save() error {
	dir := filepath.Dir(b.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	data, err := json.MarshalIndent(b.values, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".config-*")
	if err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing config: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("writing config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	if err := os.Rename(tmp.Name(), b.path); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

func (b *jsonBackend) Get(key string) (string, bool, error) {
	v, ok := b.values[key]
	return v, ok, nil
}

func (b *jsonBackend) Set(key, val string) error {
	b.values[key] = val
	return b.save()
}

func (b *jsonBackend) Unset(key string) error {
	if _, ok := b.values[key]; !ok {
		return nil
	}
	delete(b.values, key)
	return b.save()
}

func (b *jsonBackend) Location() string { return b.path }
