// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestApplyEnvOverridesPaths(t *testing.T) {
	t.Setenv("HF_PATH", "/data/hf")
	t.Setenv("HF_CACHE_PATH", "/data/hf/cache")
	t.Setenv("HF_CACHE_FLAG_PATH", "/data/hf/cache.flags")

	cfg := DefaultConfig()
	applyEnv(&cfg)

	if cfg.ManifestDir != "/data/hf" {
		t.Errorf("ManifestDir = %q", cfg.ManifestDir)
	}
	if cfg.CacheDir != "/data/hf/cache" {
		t.Errorf("CacheDir = %q", cfg.CacheDir)
	}
	if cfg.CacheFlagPath != "/data/hf/cache.flags" {
		t.Errorf("CacheFlagPath = %q", cfg.CacheFlagPath)
	}
}

func TestApplyEnvEmptyButSetPassesThrough(t *testing.T) {
	// A variable that is set to the empty string must override the default
	// with the empty string, not be skipped.
	t.Setenv("HF_CACHE_PATH", "")

	cfg := DefaultConfig()
	if cfg.CacheDir == "" {
		t.Fatal("default CacheDir should be non-empty for this test")
	}
	applyEnv(&cfg)
	if cfg.CacheDir != "" {
		t.Errorf("CacheDir = %q, want empty", cfg.CacheDir)
	}
}

func TestApplyEnvUnsetLeavesDefaults(t *testing.T) {
	os.Unsetenv("HF_PATH")
	os.Unsetenv("HF_CACHE_PATH")
	os.Unsetenv("HF_CACHE_FLAG_PATH")

	cfg := DefaultConfig()
	applyEnv(&cfg)
	if cfg.CacheDir != "Cache" {
		t.Errorf("CacheDir = %q, want default", cfg.CacheDir)
	}
}

func TestLoadConfigFromJSONFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cfg.json")
	b, _ := json.Marshal(Config{ManifestDir: "/srv/manifests", CacheDir: "/srv/cache", Retries: 7})
	if err := os.WriteFile(path, b, 0o644); err != nil {
		t.Fatal(err)
	}

	// Make sure the environment does not interfere.
	os.Unsetenv("HF_PATH")
	os.Unsetenv("HF_CACHE_PATH")
	os.Unsetenv("HF_CACHE_FLAG_PATH")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.ManifestDir != "/srv/manifests" || cfg.CacheDir != "/srv/cache" {
		t.Errorf("paths not taken from file: %+v", cfg)
	}
	if cfg.Retries != 7 {
		t.Errorf("Retries = %d, want 7", cfg.Retries)
	}
}

func TestLoadConfigEnvBeatsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cfg.yaml")
	if err := os.WriteFile(path, []byte("manifest-dir: /from/file\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("HF_PATH", "/from/env")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.ManifestDir != "/from/env" {
		t.Errorf("ManifestDir = %q, want /from/env", cfg.ManifestDir)
	}
}

func TestLoadConfigInvalidJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cfg.json")
	if err := os.WriteFile(path, []byte("{nope"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected error for invalid JSON config")
	}
}

func TestSettingsCarriesCachePaths(t *testing.T) {
	cfg := Config{CacheDir: "/c", Connections: 4, MaxActive: 2, Token: "tok", Endpoint: "http://hub.local"}
	s := cfg.settings()
	if s.CacheDir != "/c" || s.Concurrency != 4 || s.MaxActive != 2 {
		t.Errorf("settings mismatch: %+v", s)
	}
	if s.Token != "tok" || s.Endpoint != "http://hub.local" {
		t.Errorf("auth/endpoint mismatch: %+v", s)
	}
}
