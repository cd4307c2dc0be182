// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cheggaaa/pb/v3"
	"github.com/spf13/cobra"

	"github.com/Yangs-AI/younger-fetch/internal/acquire"
	"github.com/Yangs-AI/younger-fetch/internal/manifest"
	"github.com/Yangs-AI/younger-fetch/internal/tui"
	"github.com/Yangs-AI/younger-fetch/pkg/hfhub"
)

// fetchOpts are the manifest-selection flags of the fetch command.
type fetchOpts struct {
	Manifest     string
	ManifestPath string
	Shard        int
	AllShards    bool
	Prefix       string
	Suffix       string
}

// resolveManifests turns the selection flags into concrete manifest paths.
// Path joins are performed verbatim; an unset manifest dir simply yields a
// relative path.
func resolveManifests(dir string, fo fetchOpts) ([]string, error) {
	switch {
	case fo.ManifestPath != "":
		return []string{fo.ManifestPath}, nil
	case fo.AllShards:
		shards, err := manifest.DiscoverShards(dir, fo.Prefix, fo.Suffix)
		if err != nil {
			return nil, err
		}
		if len(shards) == 0 {
			return nil, fmt.Errorf("no shard manifests matching %s-*-%s.json in %q", fo.Prefix, fo.Suffix, dir)
		}
		return shards, nil
	case fo.Shard > 0:
		return []string{manifest.ShardPath(dir, fo.Prefix, fo.Shard, fo.Suffix)}, nil
	case fo.Manifest != "":
		return []string{filepath.Join(dir, fo.Manifest)}, nil
	default:
		return nil, fmt.Errorf("no manifest selected: pass --manifest, --shard, --all-shards or --manifest-path")
	}
}

func newFetchCmd(ctx context.Context, ro *RootOpts) *cobra.Command {
	fo := fetchOpts{}
	var (
		manifestDir   string
		cacheDir      string
		cacheFlagPath string
		revision      string
		excludes      []string
		keepGoing     bool
		endpoint      string
		dryRun        bool
		planFmt       string

		connections int
		maxActive   int
		threshold   string
		verify      string
		retries     int
		backoffInit string
		backoffMax  string
	)

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Download every model listed in a manifest into the cache",
		Long: `Reads a model-ID manifest (a JSON array of owner/name IDs), mirrors each
model's snapshot into the cache directory, and records completed models in the
cache-flag file so interrupted runs resume without re-checking the network.

The manifest is selected either by joining --manifest onto the manifest
directory (HF_PATH), by shard number (--shard 3 selects 70K-3-Neat.json with
the default prefix/suffix), by --all-shards, or by an explicit
--manifest-path.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(ro)
			if err != nil {
				return err
			}

			// Flag overrides, only when set on the command line.
			if cmd.Flags().Changed("manifest-dir") {
				cfg.ManifestDir = manifestDir
			}
			if cmd.Flags().Changed("cache-dir") {
				cfg.CacheDir = cacheDir
			}
			if cmd.Flags().Changed("cache-flag") {
				cfg.CacheFlagPath = cacheFlagPath
			}
			if cmd.Flags().Changed("endpoint") {
				cfg.Endpoint = endpoint
			}
			if cmd.Flags().Changed("connections") {
				cfg.Connections = connections
			}
			if cmd.Flags().Changed("max-active") {
				cfg.MaxActive = maxActive
			}
			if cmd.Flags().Changed("multipart-threshold") {
				cfg.MultipartThreshold = threshold
			}
			if cmd.Flags().Changed("verify") {
				cfg.Verify = verify
			}
			if cmd.Flags().Changed("retries") {
				cfg.Retries = retries
			}
			if cmd.Flags().Changed("backoff-initial") {
				cfg.BackoffInitial = backoffInit
			}
			if cmd.Flags().Changed("backoff-max") {
				cfg.BackoffMax = backoffMax
			}

			paths, err := resolveManifests(cfg.ManifestDir, fo)
			if err != nil {
				return err
			}

			if dryRun {
				return printPlans(ctx, paths, cfg, ro, planFmt)
			}

			for _, path := range paths {
				if err := fetchManifest(ctx, path, cfg, ro, revision, excludes, keepGoing); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&fo.Manifest, "manifest", "m", "70K-3-Neat.json", "Manifest file name, joined onto the manifest directory")
	cmd.Flags().StringVar(&fo.ManifestPath, "manifest-path", "", "Explicit manifest file path (overrides --manifest/--shard)")
	cmd.Flags().IntVar(&fo.Shard, "shard", 0, "Shard number to fetch (selects <prefix>-N-<suffix>.json)")
	cmd.Flags().BoolVar(&fo.AllShards, "all-shards", false, "Fetch every shard manifest found in the manifest directory")
	cmd.Flags().StringVar(&fo.Prefix, "prefix", "70K", "Shard manifest name prefix")
	cmd.Flags().StringVar(&fo.Suffix, "suffix", "Neat", "Shard manifest name suffix")

	cmd.Flags().StringVar(&manifestDir, "manifest-dir", "", "Manifest directory (env HF_PATH)")
	cmd.Flags().StringVarP(&cacheDir, "cache-dir", "o", "", "Snapshot cache directory (env HF_CACHE_PATH)")
	cmd.Flags().StringVar(&cacheFlagPath, "cache-flag", "", "Completion-flag file (env HF_CACHE_FLAG_PATH)")
	cmd.Flags().StringVarP(&revision, "revision", "b", "", "Revision to fetch for every model (default main)")
	cmd.Flags().StringSliceVar(&excludes, "exclude", nil, "Skip files whose path contains any of these substrings")
	cmd.Flags().BoolVar(&keepGoing, "keep-going", false, "Continue with the next model after a failure")
	cmd.Flags().StringVar(&endpoint, "endpoint", "", "Hub endpoint override (env HF_ENDPOINT)")

	cmd.Flags().IntVarP(&connections, "connections", "c", 8, "Per-file parallel connections for range requests")
	cmd.Flags().IntVar(&maxActive, "max-active", 3, "Maximum files downloading at once")
	cmd.Flags().StringVar(&threshold, "multipart-threshold", "32MiB", "Multipart downloads for files >= this size")
	cmd.Flags().StringVar(&verify, "verify", "size", "Verification for non-LFS files: none|size|etag|sha256")
	cmd.Flags().IntVar(&retries, "retries", 4, "Max retry attempts per HTTP request")
	cmd.Flags().StringVar(&backoffInit, "backoff-initial", "400ms", "Initial retry backoff")
	cmd.Flags().StringVar(&backoffMax, "backoff-max", "10s", "Maximum retry backoff")

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Plan only: list each model's files and exit")
	cmd.Flags().StringVar(&planFmt, "plan-format", "table", "Plan output format for --dry-run: table|json")

	return cmd
}

// fetchManifest runs one manifest through the acquisition pipeline with the
// progress mode implied by the global flags.
func fetchManifest(ctx context.Context, path string, cfg Config, ro *RootOpts, revision string, excludes []string, keepGoing bool) error {
	opts := acquire.Options{
		ManifestPath:  path,
		CacheFlagPath: cfg.CacheFlagPath,
		Revision:      revision,
		Excludes:      excludes,
		KeepGoing:     keepGoing,
		Settings:      cfg.settings(),
	}

	var progress hfhub.ProgressFunc
	switch {
	case ro.JSONOut:
		progress = jsonProgress(os.Stdout)
	case ro.Verbose:
		progress = textProgress(true)
	case ro.Quiet:
		// Single bar across the manifest's models, nothing else.
		ids, err := manifest.Load(path)
		if err != nil {
			return err
		}
		bar := pb.StartNew(len(ids))
		bar.Set(pb.Bytes, false)
		defer bar.Finish()
		progress = func(ev hfhub.ProgressEvent) {
			switch ev.Event {
			case "model_done", "model_skip", "model_error":
				bar.Increment()
			}
		}
	default:
		ui := tui.NewLiveRenderer(filepath.Base(path), cfg.CacheDir)
		defer ui.Close()
		progress = ui.Handler()
	}

	_, err := acquire.Run(ctx, opts, progress)
	return err
}

// printPlans resolves and prints the download plan of every model in the
// selected manifests without downloading anything.
func printPlans(ctx context.Context, paths []string, cfg Config, ro *RootOpts, planFmt string) error {
	asJSON := strings.ToLower(planFmt) == "json" || ro.JSONOut
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	for _, path := range paths {
		ids, err := manifest.Load(path)
		if err != nil {
			return err
		}
		for _, id := range ids {
			snap := hfhub.Snapshot{Repo: id}
			plan, err := hfhub.PlanSnapshot(ctx, snap, cfg.settings())
			if err != nil {
				return err
			}
			if asJSON {
				if err := enc.Encode(map[string]any{"repo": id, "plan": plan}); err != nil {
					return err
				}
				continue
			}
			fmt.Printf("Plan for %s (%d files, %d bytes):\n", id, len(plan.Items), plan.TotalBytes())
			for _, it := range plan.Items {
				fmt.Printf("  %s  %10d  lfs=%t\n", it.RelativePath, it.Size, it.LFS)
			}
		}
	}
	return nil
}
