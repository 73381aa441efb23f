package storage

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// TestMigrationsIdempotent runs Open twice on the same database and verifies
// the schema_version count stays correct (migration not re-applied).
func TestMigrationsIdempotent(t *testing.T) {
	dir := t.TempDir()

	s1, err := Open(dir)
	if err != nil {
		t.Fatalf("first Open failed: %v", err)
	}
	v1, err := s1.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	s1.Close()

	s2, err := Open(dir)
	if err != nil {
		t.Fatalf("second Open failed: %v", err)
	}
	defer s2.Close()

	v2, err := s2.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	if len(v1) != len(v2) {
		t.Errorf("migration count changed: %d -> %d", len(v1), len(v2))
	}
}

func TestMigrationsOrdered(t *testing.T) {
	s := openTestStore(t)

	versions, err := s.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	if len(versions) != 2 {
		t.Fatalf("applied = %v, want 2 migrations", versions)
	}
	for i := 1; i < len(versions); i++ {
		if versions[i] <= versions[i-1] {
			t.Errorf("migrations not in ascending order: %v", versions)
			break
		}
	}
}

func TestParseMigrationVersion(t *testing.T) {
	v, err := parseMigrationVersion("0002_speech_cache.sql")
	if err != nil || v != 2 {
		t.Errorf("parseMigrationVersion = %d, %v; want 2, nil", v, err)
	}
	if _, err := parseMigrationVersion("init.sql"); err == nil {
		t.Error("expected error for unnumbered migration")
	}
}

// kvContract runs the same behaviour checks against every KV implementation.
func kvContract(t *testing.T, kv KV) {
	t.Helper()

	if _, ok, err := kv.GetItem("missing"); err != nil || ok {
		t.Fatalf("GetItem(missing) = ok=%v err=%v; want absent", ok, err)
	}

	if err := kv.SetItem("lumina_vault_v1", `{"a":1}`); err != nil {
		t.Fatalf("SetItem: %v", err)
	}
	v, ok, err := kv.GetItem("lumina_vault_v1")
	if err != nil || !ok || v != `{"a":1}` {
		t.Fatalf("GetItem = %q ok=%v err=%v", v, ok, err)
	}

	if err := kv.SetItem("lumina_vault_v1", `{"a":2}`); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	v, _, _ = kv.GetItem("lumina_vault_v1")
	if v != `{"a":2}` {
		t.Errorf("after overwrite = %q", v)
	}

	if err := kv.RemoveItem("lumina_vault_v1"); err != nil {
		t.Fatalf("RemoveItem: %v", err)
	}
	if _, ok, _ := kv.GetItem("lumina_vault_v1"); ok {
		t.Error("key still present after RemoveItem")
	}
	if err := kv.RemoveItem("lumina_vault_v1"); err != nil {
		t.Errorf("second RemoveItem should be a no-op, got %v", err)
	}
}

func TestSQLiteKV(t *testing.T) {
	kvContract(t, openTestStore(t))
}

func TestMemoryKV(t *testing.T) {
	kvContract(t, NewMemory())
}

func TestFilesKV(t *testing.T) {
	f, err := OpenFiles(t.TempDir())
	if err != nil {
		t.Fatalf("OpenFiles: %v", err)
	}
	kvContract(t, f)
}

func TestQuotaExceeded(t *testing.T) {
	s := openTestStore(t)
	s.SetQuota(16)

	err := s.SetItem("k", strings.Repeat("x", 32))
	if !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("err = %v, want ErrQuotaExceeded", err)
	}
	if _, ok, _ := s.GetItem("k"); ok {
		t.Error("oversized value should not be stored")
	}

	m := NewMemory()
	m.SetQuota(4)
	if err := m.SetItem("k", "12345"); !errors.Is(err, ErrQuotaExceeded) {
		t.Errorf("memory err = %v, want ErrQuotaExceeded", err)
	}
}

func TestSpeechCache(t *testing.T) {
	s := openTestStore(t)

	if _, ok, err := s.GetSpeech("Kore", "hello"); err != nil || ok {
		t.Fatalf("empty cache lookup = ok=%v err=%v", ok, err)
	}
	if err := s.PutSpeech("Kore", "hello", "AAAA"); err != nil {
		t.Fatalf("PutSpeech: %v", err)
	}
	audio, ok, err := s.GetSpeech("Kore", "hello")
	if err != nil || !ok || audio != "AAAA" {
		t.Fatalf("GetSpeech = %q ok=%v err=%v", audio, ok, err)
	}
	if _, ok, _ := s.GetSpeech("Puck", "hello"); ok {
		t.Error("cache entries must be keyed by voice")
	}

	n, err := s.PruneSpeech(time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("PruneSpeech: %v", err)
	}
	if n != 1 {
		t.Errorf("pruned %d, want 1", n)
	}
}
