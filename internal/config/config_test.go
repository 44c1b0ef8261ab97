package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestSaveAndLoad(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.toml")

	cfg := &Config{
		ServerURL:      "https://chat.example.com",
		DefaultSession: "work",
		Reconnect:      Reconnect{MaxAttempts: 3, BaseDelayMS: 500, HandshakeTimeoutMS: 2000},
	}
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.ServerURL != "https://chat.example.com" {
		t.Errorf("ServerURL = %q", loaded.ServerURL)
	}
	if loaded.DefaultSession != "work" {
		t.Errorf("DefaultSession = %q, want %q", loaded.DefaultSession, "work")
	}
	if loaded.Reconnect.MaxAttempts != 3 {
		t.Errorf("MaxAttempts = %d, want 3", loaded.Reconnect.MaxAttempts)
	}
	if loaded.Reconnect.BaseDelay() != 500*time.Millisecond {
		t.Errorf("BaseDelay() = %v, want 500ms", loaded.Reconnect.BaseDelay())
	}
}

func TestLoadMissing(t *testing.T) {
	_, err := Load("/nonexistent/config.toml")
	if err == nil {
		t.Error("Load() expected error for missing file")
	}
}

func TestLoadOrDefaultMissing(t *testing.T) {
	cfg, err := LoadOrDefault("/nonexistent/config.toml")
	if err != nil {
		t.Fatalf("LoadOrDefault() error = %v", err)
	}
	if cfg.ServerURL != DefaultServerURL {
		t.Errorf("ServerURL = %q, want default", cfg.ServerURL)
	}
	if cfg.Reconnect.MaxAttempts != DefaultMaxAttempts {
		t.Errorf("MaxAttempts = %d, want %d", cfg.Reconnect.MaxAttempts, DefaultMaxAttempts)
	}
	if cfg.Reconnect.HandshakeTimeoutD() != 10*time.Second {
		t.Errorf("HandshakeTimeoutD() = %v, want 10s", cfg.Reconnect.HandshakeTimeoutD())
	}
}

func TestLoadAppliesDefaultsToPartialFile(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.toml")
	if err := os.WriteFile(path, []byte("default_session = \"main\"\n"), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Reconnect.BaseDelayMS != DefaultBaseDelayMS {
		t.Errorf("BaseDelayMS = %d, want default %d", cfg.Reconnect.BaseDelayMS, DefaultBaseDelayMS)
	}
}

func TestSavePermissions(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.toml")

	if err := Save(path, &Config{DefaultSession: "main"}); err != nil {
		t.Fatal(err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("file permission = %o, want 0600", perm)
	}
}
