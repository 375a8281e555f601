package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadFromFileMissingFileYieldsDefaults(t *testing.T) {
	cfg, err := loadFromFile(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("missing config file should not be an error: %v", err)
	}
	want := DefaultConfig()
	if cfg.Server.Port != want.Server.Port || cfg.Cache.CapacityBytes != want.Cache.CapacityBytes {
		t.Fatalf("expected defaults, got %+v", cfg)
	}
}

func TestLoadFromFileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	contents := "server:\n  port: 9999\ncache:\n  capacityBytes: 2048\n  objectMaxBytes: 512\n"
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := loadFromFile(path)
	if err != nil {
		t.Fatalf("unexpected error loading config: %v", err)
	}
	if cfg.Server.Port != 9999 {
		t.Fatalf("expected port override to apply, got %d", cfg.Server.Port)
	}
	if cfg.Cache.CapacityBytes != 2048 || cfg.Cache.ObjectMaxBytes != 512 {
		t.Fatalf("expected cache overrides to apply, got %+v", cfg.Cache)
	}
	// Fields absent from the file must keep their defaults.
	if cfg.Logging.Level != "info" {
		t.Fatalf("expected untouched fields to retain defaults, got logging level %q", cfg.Logging.Level)
	}
}

func TestLoadFromFileRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server: [this is not valid"), 0o644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	if _, err := loadFromFile(path); err == nil {
		t.Fatal("expected an error for malformed yaml")
	}
}
