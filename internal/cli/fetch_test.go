// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"path/filepath"
	"testing"

	"github.com/Yangs-AI/younger-fetch/internal/manifest"
)

func TestResolveManifests_JoinsDirAndName(t *testing.T) {
	paths, err := resolveManifests("/data/hf", fetchOpts{Manifest: "70K-3-Neat.json"})
	if err != nil {
		t.Fatalf("resolveManifests: %v", err)
	}
	want := filepath.Join("/data/hf", "70K-3-Neat.json")
	if len(paths) != 1 || paths[0] != want {
		t.Errorf("got %v, want [%s]", paths, want)
	}
}

func TestResolveManifests_Shard(t *testing.T) {
	for shard, name := range map[int]string{
		1: "70K-1-Neat.json",
		2: "70K-2-Neat.json",
		3: "70K-3-Neat.json",
		4: "70K-4-Neat.json",
	} {
		paths, err := resolveManifests("/data/hf", fetchOpts{Shard: shard, Prefix: "70K", Suffix: "Neat"})
		if err != nil {
			t.Fatalf("shard %d: %v", shard, err)
		}
		if paths[0] != filepath.Join("/data/hf", name) {
			t.Errorf("shard %d resolved to %s", shard, paths[0])
		}
	}
}

func TestResolveManifests_EmptyDirPassesThrough(t *testing.T) {
	// An unset manifest dir must not be rejected by the wrapper; the join
	// simply yields a bare relative path, and the failure (if any) comes
	// from the acquisition core when it opens the file.
	paths, err := resolveManifests("", fetchOpts{Manifest: "70K-3-Neat.json"})
	if err != nil {
		t.Fatalf("resolveManifests: %v", err)
	}
	if paths[0] != "70K-3-Neat.json" {
		t.Errorf("got %q", paths[0])
	}
}

func TestResolveManifests_ExplicitPathWins(t *testing.T) {
	paths, err := resolveManifests("/data/hf", fetchOpts{
		Manifest:     "70K-3-Neat.json",
		ManifestPath: "/tmp/override.json",
		Shard:        2,
	})
	if err != nil {
		t.Fatalf("resolveManifests: %v", err)
	}
	if len(paths) != 1 || paths[0] != "/tmp/override.json" {
		t.Errorf("got %v", paths)
	}
}

func TestResolveManifests_AllShards(t *testing.T) {
	dir := t.TempDir()
	for i := 1; i <= 4; i++ {
		if err := manifest.Save(manifest.ShardPath(dir, "70K", i, "Neat"), []string{"a/b"}); err != nil {
			t.Fatal(err)
		}
	}

	paths, err := resolveManifests(dir, fetchOpts{AllShards: true, Prefix: "70K", Suffix: "Neat"})
	if err != nil {
		t.Fatalf("resolveManifests: %v", err)
	}
	if len(paths) != 4 {
		t.Errorf("expected 4 shards, got %v", paths)
	}
}

func TestResolveManifests_NoneSelected(t *testing.T) {
	if _, err := resolveManifests("/data/hf", fetchOpts{}); err == nil {
		t.Fatal("expected error when nothing is selected")
	}
}
