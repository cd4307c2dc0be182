// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Yangs-AI/younger-fetch/internal/manifest"
	"github.com/Yangs-AI/younger-fetch/pkg/hfhub"
)

func newIDsCmd(ctx context.Context, ro *RootOpts) *cobra.Command {
	var (
		outputDir string
		prefix    string
		suffix    string
		shards    int

		filters   []string
		library   string
		sort      string
		ascending bool
		limit     int
		full      bool
		withCfg   bool
	)

	cmd := &cobra.Command{
		Use:   "ids",
		Short: "Build model-ID manifests from the Hub catalog",
		Long: `Queries the Hub model listing API and writes the matching model IDs as
manifest files, optionally split into numbered shards:

  younger-fetch ids --library onnx --sort downloads --limit 70000 \
      --prefix 70K --suffix Neat --shards 4

writes 70K-1-Neat.json ... 70K-4-Neat.json into the manifest directory.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(ro)
			if err != nil {
				return err
			}
			dir := cfg.ManifestDir
			if cmd.Flags().Changed("output-dir") {
				dir = outputDir
			}

			params := hfhub.ListParams{
				Filter:    filters,
				Full:      full,
				Config:    withCfg,
				Limit:     limit,
				Sort:      sort,
				Ascending: ascending,
			}
			if library != "" {
				params.Filter = append(params.Filter, library)
			}

			if !ro.Quiet {
				fmt.Println("Querying the Hub model catalog ...")
			}
			ids, err := hfhub.ListModelIDs(ctx, cfg.settings(), params)
			if err != nil {
				return err
			}
			ids = manifest.Dedup(ids)

			if shards <= 1 {
				path := filepath.Join(dir, prefix+".json")
				if suffix != "" {
					path = filepath.Join(dir, prefix+"-"+suffix+".json")
				}
				if err := manifest.Save(path, ids); err != nil {
					return err
				}
				if !ro.Quiet {
					fmt.Printf("Total %d model IDs. Saved in: %s\n", len(ids), path)
				}
				return nil
			}

			chunks := manifest.Split(ids, shards)
			for i, chunk := range chunks {
				path := manifest.ShardPath(dir, prefix, i+1, suffix)
				if err := manifest.Save(path, chunk); err != nil {
					return err
				}
				if !ro.Quiet {
					fmt.Printf("Shard %d/%d: %d model IDs. Saved in: %s\n", i+1, shards, len(chunk), path)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&outputDir, "output-dir", "", "Output directory for manifests (default: manifest dir / HF_PATH)")
	cmd.Flags().StringVar(&prefix, "prefix", "70K", "Manifest name prefix")
	cmd.Flags().StringVar(&suffix, "suffix", "Neat", "Manifest name suffix")
	cmd.Flags().IntVar(&shards, "shards", 1, "Split the IDs into this many shard files")

	cmd.Flags().StringSliceVarP(&filters, "filter", "F", nil, "Catalog filters (library, language, task or tag)")
	cmd.Flags().StringVar(&library, "library", "", "Shorthand for a library filter (e.g. onnx, transformers)")
	cmd.Flags().StringVar(&sort, "sort", "downloads", "Sort key (downloads, likes, ...)")
	cmd.Flags().BoolVar(&ascending, "ascending", false, "Sort ascending instead of descending")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of models (0 = all)")
	cmd.Flags().BoolVar(&full, "full", false, "Request full model info from the API")
	cmd.Flags().BoolVar(&withCfg, "model-config", false, "Request model configs as well")

	return cmd
}
