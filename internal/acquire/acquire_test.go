// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package acquire

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/Yangs-AI/younger-fetch/internal/cacheflag"
	"github.com/Yangs-AI/younger-fetch/internal/manifest"
	"github.com/Yangs-AI/younger-fetch/pkg/hfhub"
)

// hubStub serves a one-file snapshot for any repo, and 500s repos listed in
// broken.
func hubStub(broken map[string]bool) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for repo := range broken {
			if strings.Contains(r.URL.Path, repo) {
				http.Error(w, "boom", 500)
				return
			}
		}
		switch {
		case strings.Contains(r.URL.Path, "/tree/"):
			fmt.Fprint(w, `[{"type":"file","path":"config.json","size":2}]`)
		case strings.Contains(r.URL.Path, "/raw/"):
			fmt.Fprint(w, "{}")
		default:
			http.NotFound(w, r)
		}
	}))
}

func writeManifest(t *testing.T, dir string, ids []string) string {
	t.Helper()
	path := filepath.Join(dir, "70K-1-Neat.json")
	if err := manifest.Save(path, ids); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRun(t *testing.T) {
	srv := hubStub(nil)
	defer srv.Close()

	dir := t.TempDir()
	opts := Options{
		ManifestPath:  writeManifest(t, dir, []string{"org/a", "org/b"}),
		CacheFlagPath: filepath.Join(dir, "flags.jsonl"),
		Settings: hfhub.Settings{
			Endpoint: srv.URL,
			CacheDir: filepath.Join(dir, "cache"),
			Verify:   "size",
		},
	}

	var mu sync.Mutex
	var modelEvents []string
	progress := func(e hfhub.ProgressEvent) {
		if strings.HasPrefix(e.Event, "model_") || e.Event == "run_done" {
			mu.Lock()
			modelEvents = append(modelEvents, e.Event+":"+e.Repo)
			mu.Unlock()
		}
	}

	sum, err := Run(context.Background(), opts, progress)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.Fetched != 2 || sum.Failed != 0 || sum.Flagged != 0 {
		t.Errorf("summary %+v", sum)
	}

	flags, err := cacheflag.Open(opts.CacheFlagPath)
	if err != nil {
		t.Fatal(err)
	}
	defer flags.Close()
	if !flags.Has("org/a") || !flags.Has("org/b") {
		t.Error("models not flagged complete")
	}
}

func TestRun_SkipsFlagged(t *testing.T) {
	srv := hubStub(nil)
	defer srv.Close()

	dir := t.TempDir()
	flagPath := filepath.Join(dir, "flags.jsonl")

	flags, err := cacheflag.Open(flagPath)
	if err != nil {
		t.Fatal(err)
	}
	flags.Mark(cacheflag.Entry{ID: "org/a"})
	flags.Close()

	opts := Options{
		ManifestPath:  writeManifest(t, dir, []string{"org/a", "org/b"}),
		CacheFlagPath: flagPath,
		Settings: hfhub.Settings{
			Endpoint: srv.URL,
			CacheDir: filepath.Join(dir, "cache"),
		},
	}

	sum, err := Run(context.Background(), opts, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.Flagged != 1 || sum.Fetched != 1 {
		t.Errorf("summary %+v", sum)
	}
}

func TestRun_AbortsOnFirstFailure(t *testing.T) {
	srv := hubStub(map[string]bool{"org/bad": true})
	defer srv.Close()

	dir := t.TempDir()
	opts := Options{
		ManifestPath: writeManifest(t, dir, []string{"org/bad", "org/good"}),
		Settings: hfhub.Settings{
			Endpoint: srv.URL,
			CacheDir: filepath.Join(dir, "cache"),
			Retries:  0,
		},
	}

	sum, err := Run(context.Background(), opts, nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if sum.Fetched != 0 {
		t.Errorf("should abort before fetching later models: %+v", sum)
	}
}

func TestRun_KeepGoing(t *testing.T) {
	srv := hubStub(map[string]bool{"org/bad": true})
	defer srv.Close()

	dir := t.TempDir()
	opts := Options{
		ManifestPath: writeManifest(t, dir, []string{"org/bad", "org/good"}),
		KeepGoing:    true,
		Settings: hfhub.Settings{
			Endpoint: srv.URL,
			CacheDir: filepath.Join(dir, "cache"),
			Retries:  0,
		},
	}

	sum, err := Run(context.Background(), opts, nil)
	if err == nil {
		t.Fatal("expected the last failure to be returned")
	}
	if sum.Fetched != 1 || sum.Failed != 1 {
		t.Errorf("summary %+v", sum)
	}
}

func TestRun_BadCacheFlagPath(t *testing.T) {
	srv := hubStub(nil)
	defer srv.Close()

	dir := t.TempDir()
	obstacle := filepath.Join(dir, "occupied")
	if err := os.WriteFile(obstacle, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	// The flag path sits under a regular file, so opening the store fails
	// before any model is touched.
	opts := Options{
		ManifestPath:  writeManifest(t, dir, []string{"org/a"}),
		CacheFlagPath: filepath.Join(obstacle, "flags.jsonl"),
		Settings: hfhub.Settings{
			Endpoint: srv.URL,
			CacheDir: filepath.Join(dir, "cache"),
		},
	}
	if _, err := Run(context.Background(), opts, nil); err == nil {
		t.Fatal("expected error opening the cache-flag store")
	}
}

func TestRun_MissingManifest(t *testing.T) {
	// An empty manifest path must fail from the read itself, with no
	// validation layered on top.
	_, err := Run(context.Background(), Options{ManifestPath: ""}, nil)
	if err == nil {
		t.Fatal("expected error for empty manifest path")
	}
}
