//go:build !darwin

package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFileBackendRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lumina", "config.json")

	b := openJSONBackend(path)
	if err := b.Set("gemini.voice", "Puck"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := b.Set("server.port", "4242"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if b.Location() != path {
		t.Errorf("Location = %q, want %q", b.Location(), path)
	}

	reloaded := openJSONBackend(path)
	if v, ok, err := reloaded.Get("gemini.voice"); err != nil || !ok || v != "Puck" {
		t.Errorf("Get = %q, %v, %v; want Puck", v, ok, err)
	}
	if v, ok, err := reloaded.Get("server.port"); err != nil || !ok || v != "4242" {
		t.Errorf("Get = %q, %v, %v; want 4242", v, ok, err)
	}

	if err := reloaded.Unset("gemini.voice"); err != nil {
		t.Fatalf("Unset: %v", err)
	}
	if _, ok, _ := openJSONBackend(path).Get("gemini.voice"); ok {
		t.Error("gemini.voice survived Unset")
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("mode = %v, want 0600", info.Mode().Perm())
	}
}

func TestFileBackendCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}

	b := openJSONBackend(path)
	if _, ok, _ := b.Get("server.port"); ok {
		t.Error("expected no values from corrupt file")
	}
}

func TestFileBackendReadsHandEditedNumbers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"server.port": 4300, "flow.delay_scale": 0.5}`), 0o600); err != nil {
		t.Fatal(err)
	}

	b := openJSONBackend(path)
	if v, _, _ := b.Get("server.port"); v != "4300" {
		t.Errorf("server.port = %q, want 4300", v)
	}
	if v, _, _ := b.Get("flow.delay_scale"); v != "0.5" {
		t.Errorf("flow.delay_scale = %q, want 0.5", v)
	}
}

func TestSecretsFileKeychain(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", t.TempDir())

	kc := NewKeychain()
	if _, err := kc.Get("lumina", "gemini_api_key"); err == nil {
		t.Fatal("expected error before any secret is stored")
	}
	if err := kc.Set("lumina", "gemini_api_key", "abc"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	v, err := kc.Get("lumina", "gemini_api_key")
	if err != nil || v != "abc" {
		t.Fatalf("Get = %q, %v; want abc", v, err)
	}
}
