// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

// Package manifest handles model-ID manifest files: JSON arrays of Hub
// repository IDs, optionally split into numbered shard files such as
// 70K-1-Neat.json ... 70K-4-Neat.json.
package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// Load reads a manifest file and returns its model IDs with order preserved
// and duplicates removed.
func Load(path string) ([]string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var ids []string
	if err := json.Unmarshal(b, &ids); err != nil {
		return nil, fmt.Errorf("manifest %s: %w", path, err)
	}
	return Dedup(ids), nil
}

// Save writes model IDs as an indented JSON array, atomically via a temp file
// in the same directory.
func Save(path string, ids []string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	b, err := json.MarshalIndent(ids, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, append(b, '\n'), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// Dedup removes duplicate IDs, keeping first occurrences in order.
func Dedup(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// Split partitions ids into n chunks as evenly as possible, earlier chunks
// taking the remainder. n greater than len(ids) yields empty tail chunks.
func Split(ids []string, n int) [][]string {
	if n <= 1 {
		return [][]string{ids}
	}
	q, r := len(ids)/n, len(ids)%n

	chunks := make([][]string, 0, n)
	start := 0
	for i := 0; i < n; i++ {
		end := start + q
		if i < r {
			end++
		}
		chunks = append(chunks, ids[start:end])
		start = end
	}
	return chunks
}

// ShardName builds the file name for shard i of a manifest family,
// "<prefix>-<i>-<suffix>.json". Shards are numbered from 1.
func ShardName(prefix string, i int, suffix string) string {
	if suffix == "" {
		return fmt.Sprintf("%s-%d.json", prefix, i)
	}
	return fmt.Sprintf("%s-%d-%s.json", prefix, i, suffix)
}

// ShardPath joins a shard name onto the manifest directory.
func ShardPath(dir, prefix string, i int, suffix string) string {
	return filepath.Join(dir, ShardName(prefix, i, suffix))
}

// DiscoverShards returns the shard files of a manifest family present in dir,
// sorted by name so numeric order holds for single-digit shards.
func DiscoverShards(dir, prefix, suffix string) ([]string, error) {
	pattern := filepath.Join(dir, prefix+"-*.json")
	if suffix != "" {
		pattern = filepath.Join(dir, fmt.Sprintf("%s-*-%s.json", prefix, suffix))
	}
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)
	return matches, nil
}
