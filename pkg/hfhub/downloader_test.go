// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package hfhub

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
)

func TestDownloadSnapshot(t *testing.T) {
	files := map[string]string{
		"config.json":          `{"model_type":"gpt2"}`,
		"vocab.json":           `{"a":1}`,
		"onnx/model.onnx":      "fake-onnx-graph",
	}
	srv := fakeHub(t, files)
	defer srv.Close()

	dir := t.TempDir()
	snap := Snapshot{Repo: "org/tiny"}
	cfg := Settings{Endpoint: srv.URL, CacheDir: dir, MaxActive: 2, Verify: "size"}

	var mu sync.Mutex
	var events []string
	progress := func(e ProgressEvent) {
		mu.Lock()
		events = append(events, e.Event)
		mu.Unlock()
	}

	res, err := DownloadSnapshot(context.Background(), snap, cfg, progress)
	if err != nil {
		t.Fatalf("DownloadSnapshot: %v", err)
	}
	if res.Files != len(files) {
		t.Errorf("downloaded %d files, want %d", res.Files, len(files))
	}

	for path, content := range files {
		dst := filepath.Join(dir, "org", "tiny", filepath.FromSlash(path))
		b, err := os.ReadFile(dst)
		if err != nil {
			t.Fatalf("missing downloaded file %s: %v", path, err)
		}
		if string(b) != content {
			t.Errorf("content mismatch for %s", path)
		}
	}

	mu.Lock()
	defer mu.Unlock()
	var sawScan, sawDone bool
	for _, ev := range events {
		switch ev {
		case "scan_start":
			sawScan = true
		case "done":
			sawDone = true
		}
	}
	if !sawScan || !sawDone {
		t.Errorf("missing lifecycle events in %v", events)
	}
}

func TestDownloadSnapshot_SkipsExisting(t *testing.T) {
	files := map[string]string{"config.json": `{"ok":true}`}
	srv := fakeHub(t, files)
	defer srv.Close()

	dir := t.TempDir()
	snap := Snapshot{Repo: "org/tiny"}
	cfg := Settings{Endpoint: srv.URL, CacheDir: dir, Verify: "size"}

	if _, err := DownloadSnapshot(context.Background(), snap, cfg, nil); err != nil {
		t.Fatalf("first run: %v", err)
	}

	res, err := DownloadSnapshot(context.Background(), snap, cfg, nil)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if res.Skipped != 1 || res.Files != 0 {
		t.Errorf("expected 1 skip / 0 downloads, got %d / %d", res.Skipped, res.Files)
	}
}

func TestDownloadSnapshot_Cancelled(t *testing.T) {
	srv := fakeHub(t, map[string]string{"config.json": "{}"})
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cfg := Settings{Endpoint: srv.URL, CacheDir: t.TempDir()}
	if _, err := DownloadSnapshot(ctx, Snapshot{Repo: "org/tiny"}, cfg, nil); err == nil {
		t.Fatal("expected cancellation error")
	}
}

func TestDownloadSnapshot_NotFound(t *testing.T) {
	srv := fakeHub(t, nil)
	defer srv.Close()

	// Prefixing the endpoint breaks the /api/models route shape, so the
	// fake 404s the tree request like the hub does for an unknown repo.
	cfg := Settings{Endpoint: srv.URL + "/missing", CacheDir: t.TempDir()}
	_, err := DownloadSnapshot(context.Background(), Snapshot{Repo: "org/nope"}, cfg, nil)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDownloadSingle_RetryRestartsFile(t *testing.T) {
	content := "0123456789abcdef"
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", strconv.Itoa(len(content)))
		if atomic.AddInt32(&calls, 1) == 1 {
			// Half the body, then drop the connection mid-transfer.
			io.WriteString(w, content[:len(content)/2])
			w.(http.Flusher).Flush()
			conn, _, _ := w.(http.Hijacker).Hijack()
			conn.Close()
			return
		}
		io.WriteString(w, content)
	}))
	defer srv.Close()

	dst := filepath.Join(t.TempDir(), "model.bin")
	it := PlanItem{RelativePath: "model.bin", URL: srv.URL + "/model.bin", Size: int64(len(content))}
	cfg := Settings{Retries: 2, BackoffInitial: "1ms", BackoffMax: "5ms"}

	if err := downloadSingle(context.Background(), http.DefaultClient, cfg, it, dst, func(ProgressEvent) {}); err != nil {
		t.Fatalf("downloadSingle: %v", err)
	}
	if n := atomic.LoadInt32(&calls); n < 2 {
		t.Fatalf("expected a retry, got %d requests", n)
	}
	b, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != content {
		t.Errorf("file is %d bytes after retry, want %d", len(b), len(content))
	}
}

func TestShouldSkipLocal(t *testing.T) {
	dir := t.TempDir()
	dst := filepath.Join(dir, "f.bin")
	if err := os.WriteFile(dst, []byte("12345"), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Run("size match", func(t *testing.T) {
		skip, reason, err := shouldSkipLocal(PlanItem{Size: 5}, dst)
		if err != nil || !skip {
			t.Fatalf("skip=%v reason=%q err=%v", skip, reason, err)
		}
	})

	t.Run("size mismatch", func(t *testing.T) {
		skip, _, _ := shouldSkipLocal(PlanItem{Size: 99}, dst)
		if skip {
			t.Fatal("should not skip on size mismatch")
		}
	})

	t.Run("missing file", func(t *testing.T) {
		skip, _, _ := shouldSkipLocal(PlanItem{Size: 5}, filepath.Join(dir, "absent"))
		if skip {
			t.Fatal("should not skip a missing file")
		}
	})

	t.Run("lfs sha match", func(t *testing.T) {
		// sha256("12345")
		sha := "5994471abb01112afcc18159f6cc74b4f511b99806da59b3caf5a9c173cacfc5"
		skip, reason, err := shouldSkipLocal(PlanItem{Size: 5, LFS: true, SHA256: sha}, dst)
		if err != nil || !skip || reason != "sha256 match" {
			t.Fatalf("skip=%v reason=%q err=%v", skip, reason, err)
		}
	})

	t.Run("lfs sha mismatch", func(t *testing.T) {
		skip, _, _ := shouldSkipLocal(PlanItem{Size: 5, LFS: true, SHA256: "deadbeef"}, dst)
		if skip {
			t.Fatal("should re-download on sha mismatch")
		}
	})
}

func TestVerifySHA256(t *testing.T) {
	dir := t.TempDir()
	dst := filepath.Join(dir, "f.txt")
	os.WriteFile(dst, []byte("hello"), 0o644)

	good := "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824"
	if err := verifySHA256(dst, good); err != nil {
		t.Errorf("expected match: %v", err)
	}
	if err := verifySHA256(dst, "00"); err == nil {
		t.Error("expected mismatch error")
	}
}
