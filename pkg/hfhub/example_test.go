// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package hfhub_test

import (
	"context"
	"fmt"
	"os"

	"github.com/Yangs-AI/younger-fetch/pkg/hfhub"
)

func ExampleDownloadSnapshot() {
	snap := hfhub.Snapshot{
		Repo:     "hf-internal-testing/tiny-random-gpt2",
		Revision: "main",
	}

	cfg := hfhub.DefaultSettings()
	cfg.CacheDir = "./example_cache"
	cfg.Concurrency = 4
	cfg.MaxActive = 2

	// Progress callback
	progress := func(e hfhub.ProgressEvent) {
		switch e.Event {
		case "scan_start":
			fmt.Println("Scanning repository...")
		case "file_done":
			fmt.Printf("Downloaded: %s\n", e.Path)
		case "done":
			fmt.Println("Complete!")
		}
	}

	res, err := hfhub.DownloadSnapshot(context.Background(), snap, cfg, progress)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	fmt.Printf("%d files, %d bytes\n", res.Files, res.Bytes)

	// Cleanup
	os.RemoveAll("./example_cache")
}

func ExampleDownloadSnapshot_withExcludes() {
	// Mirror everything except the original PyTorch weights.
	snap := hfhub.Snapshot{
		Repo:     "openai-community/gpt2",
		Excludes: []string{".bin", ".msgpack"},
	}

	cfg := hfhub.DefaultSettings()
	cfg.CacheDir = "./Cache"

	_, err := hfhub.DownloadSnapshot(context.Background(), snap, cfg, nil)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
	}
}

func ExamplePlanSnapshot() {
	snap := hfhub.Snapshot{
		Repo: "hf-internal-testing/tiny-random-gpt2",
	}

	plan, err := hfhub.PlanSnapshot(context.Background(), snap, hfhub.DefaultSettings())
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}

	fmt.Printf("Found %d files (%d bytes):\n", len(plan.Items), plan.TotalBytes())
	for _, item := range plan.Items {
		lfsTag := ""
		if item.LFS {
			lfsTag = " [LFS]"
		}
		fmt.Printf("  %s (%d bytes)%s\n", item.RelativePath, item.Size, lfsTag)
	}
}

func ExampleListModelIDs() {
	cfg := hfhub.DefaultSettings()
	cfg.Token = os.Getenv("HF_TOKEN")

	// First 100 ONNX models, most downloads first.
	ids, err := hfhub.ListModelIDs(context.Background(), cfg, hfhub.ListParams{
		Filter: []string{"onnx"},
		Sort:   "downloads",
		Limit:  100,
	})
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}

	for _, id := range ids {
		fmt.Println(id)
	}
}

func ExampleIsValidRepoID() {
	// Valid IDs
	fmt.Println(hfhub.IsValidRepoID("TheBloke/Mistral-7B-GGUF"))     // true
	fmt.Println(hfhub.IsValidRepoID("facebook/opt-1.3b"))            // true
	fmt.Println(hfhub.IsValidRepoID("hf-internal-testing/tiny-gpt")) // true

	// Invalid IDs
	fmt.Println(hfhub.IsValidRepoID("Mistral-7B-GGUF")) // false (no owner)
	fmt.Println(hfhub.IsValidRepoID(""))                // false (empty)
	fmt.Println(hfhub.IsValidRepoID("/model"))          // false (empty owner)

	// Output:
	// true
	// true
	// true
	// false
	// false
	// false
}

func ExampleSettings_performance() {
	// High-throughput settings for fast networks
	cfg := hfhub.Settings{
		CacheDir:           "./Cache",
		Concurrency:        16,       // 16 parallel connections per file
		MaxActive:          4,        // 4 files at once
		MultipartThreshold: "16MiB",  // Use multipart for files >= 16MiB
		Retries:            6,        // More retries for unstable connections
		BackoffInitial:     "200ms",  // Faster retry
		BackoffMax:         "30s",    // Longer max for rate limiting
		Verify:             "sha256", // Full verification
	}

	_ = cfg // Use in DownloadSnapshot()
}
