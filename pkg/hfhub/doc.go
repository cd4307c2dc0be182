// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

/*
Package hfhub talks to the Hugging Face Hub: it lists models through the
paginated /api/models endpoint and mirrors repository snapshots to a local
cache directory with resume support, multipart downloads, and verification.

# Snapshot Downloads

	snap := hfhub.Snapshot{
		Repo:     "hf-internal-testing/tiny-random-gpt2",
		Revision: "main",
	}

	cfg := hfhub.DefaultSettings()
	cfg.CacheDir = "./Cache"

	res, err := hfhub.DownloadSnapshot(context.Background(), snap, cfg, func(e hfhub.ProgressEvent) {
		fmt.Printf("[%s] %s\n", e.Event, e.Path)
	})

Resume is always enabled and purely filesystem-based: LFS files are compared by
SHA-256 when the hash is known, other files by size. No metadata sidecar files
are written.

# Planning

PlanSnapshot returns the file list without downloading, for dry runs:

	plan, err := hfhub.PlanSnapshot(ctx, snap, cfg)
	for _, it := range plan.Items {
		fmt.Printf("%s (%d bytes, LFS=%v)\n", it.RelativePath, it.Size, it.LFS)
	}

# Model Listing

ListModels pages through the Hub catalog, following the Link: rel="next"
response headers:

	ids, err := hfhub.ListModelIDs(ctx, cfg, hfhub.ListParams{
		Filter: []string{"onnx"},
		Sort:   "downloads",
		Limit:  1000,
	})

# Authentication

For gated or private repositories set Settings.Token. Tokens are created at
https://huggingface.co/settings/tokens.
*/
package hfhub
