//go:build darwin

package config

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// studioDomain is the defaults domain holding Lumina's settings.
const studioDomain = "com.lumina.studio"

// defaultDataDir keeps the vault, speech cache and session beside other
// per-user application data.
func defaultDataDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, "Library", "Application Support", "Lumina")
	}
	return "lumina-data"
}

func apiKeyHint() string {
	return " or store it in the macOS Keychain: security add-generic-password -s " +
		keychainService + " -a gemini_api_key -w <key>"
}

// defaultsBackend reads and writes the studio domain through the `defaults`
// tool. Every value is written as a string.
type defaultsBackend struct {
	domain string
	run    func(args ...string) ([]byte, error)
}

func newPlatformBackend() Backend {
	return &defaultsBackend{
		domain: studioDomain,
		run: func(args ...string) ([]byte, error) {
			return exec.Command("defaults", args...).CombinedOutput()
		},
	}
}

func (b *defaultsBackend) Get(key string) (string, bool, error) {
	out, err := b.run("read", b.domain, key)
	val := strings.TrimSpace(string(out))
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
			return "", false, nil
		}
		return "", false, fmt.Errorf("defaults read %s %s: %w (%s)", b.domain, key, err, val)
	}
	return val, true, nil
}

func (b *defaultsBackend) Set(key, val string) error {
	if out, err := b.run("write", b.domain, key, "-string", val); err != nil {
		return fmt.Errorf("defaults write %s %s: %w (%s)", b.domain, key, err, strings.TrimSpace(string(out)))
	}
	return nil
}

func (b *defaultsBackend) Unset(key string) error {
	out, err := b.run("delete", b.domain, key)
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
			return nil
		}
		return fmt.Errorf("defaults delete %s %s: %w (%s)", b.domain, key, err, strings.TrimSpace(string(out)))
	}
	return nil
}

func (b *defaultsBackend) Location() string {
	return "defaults domain " + b.domain
}
