package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadExpandsEnvironment(t *testing.T) {
	t.Setenv("TEST_DATABASE_URL", "postgres://u:p@db:5432/risk")
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte(`
server:
  port: "9090"
postgres:
  url: ${TEST_DATABASE_URL}
autosave:
  delay: 500ms
  flushOnClose: false
limits:
  editsPerSecond: 5
`)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != "9090" || cfg.Postgres.URL != "postgres://u:p@db:5432/risk" {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if Duration(cfg.Autosave.Delay, time.Second) != 500*time.Millisecond {
		t.Fatalf("expected parsed delay")
	}
	if cfg.FlushOnClose() {
		t.Fatalf("expected flushOnClose false")
	}
	if cfg.Limits.EditsPerSecond != 5 {
		t.Fatalf("expected edit limit")
	}
}

func TestDefaults(t *testing.T) {
	var cfg Config
	if !cfg.FlushOnClose() {
		t.Fatalf("flushOnClose should default to true")
	}
	if Duration("", 2*time.Second) != 2*time.Second {
		t.Fatalf("expected fallback for empty duration")
	}
	if Duration("soon", 3*time.Second) != 3*time.Second {
		t.Fatalf("expected fallback for invalid duration")
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
