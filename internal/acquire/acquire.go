// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

// Package acquire drives a full acquisition run: read a model-ID manifest,
// mirror each model's snapshot into the cache directory, and flag completed
// models in the cache-flag file so later runs skip them.
package acquire

import (
	"context"
	"fmt"
	"time"

	"github.com/Yangs-AI/younger-fetch/internal/cacheflag"
	"github.com/Yangs-AI/younger-fetch/internal/manifest"
	"github.com/Yangs-AI/younger-fetch/pkg/hfhub"
)

// Options configures an acquisition run.
type Options struct {
	// ManifestPath is the model-ID manifest file to process.
	ManifestPath string

	// ModelIDs, when non-empty, is used instead of reading ManifestPath.
	ModelIDs []string

	// CacheFlagPath is the completion-flag file. Empty disables flagging,
	// so every model is re-checked against the filesystem.
	CacheFlagPath string

	// Revision applies to every model in the manifest. Empty means "main".
	Revision string

	// Excludes are passed through to every snapshot.
	Excludes []string

	// KeepGoing continues with the next model after a failure instead of
	// aborting the run.
	KeepGoing bool

	// Settings carries the download tuning, cache directory included.
	Settings hfhub.Settings
}

// Summary totals one acquisition run.
type Summary struct {
	Total   int   `json:"total"`
	Fetched int   `json:"fetched"`
	Flagged int   `json:"flagged"` // skipped because already flagged
	Failed  int   `json:"failed"`
	Bytes   int64 `json:"bytes"`
}

// Run processes opts.ModelIDs, or the manifest at opts.ManifestPath when no
// explicit IDs are given. It performs no validation
// of the configured paths up front: unresolvable paths surface as errors from
// the first operation that touches them. Returns the first error unless
// opts.KeepGoing is set, in which case failures are counted and the last one
// is returned at the end.
func Run(ctx context.Context, opts Options, progress hfhub.ProgressFunc) (*Summary, error) {
	ids := manifest.Dedup(opts.ModelIDs)
	if len(ids) == 0 {
		var err error
		ids, err = manifest.Load(opts.ManifestPath)
		if err != nil {
			return nil, err
		}
	}

	var flags *cacheflag.Store
	if opts.CacheFlagPath != "" {
		var err error
		flags, err = cacheflag.Open(opts.CacheFlagPath)
		if err != nil {
			return nil, err
		}
		defer flags.Close()
	}

	emit := func(ev hfhub.ProgressEvent) {
		if progress != nil {
			if ev.Time.IsZero() {
				ev.Time = time.Now()
			}
			progress(ev)
		}
	}

	sum := &Summary{Total: len(ids)}
	var lastErr error

	for i, id := range ids {
		select {
		case <-ctx.Done():
			return sum, ctx.Err()
		default:
		}

		if flags != nil && flags.Has(id) {
			sum.Flagged++
			emit(hfhub.ProgressEvent{Event: "model_skip", Repo: id, Message: "flagged complete"})
			continue
		}

		emit(hfhub.ProgressEvent{
			Event:   "model_start",
			Repo:    id,
			Message: fmt.Sprintf("model %d/%d", i+1, len(ids)),
		})

		snap := hfhub.Snapshot{Repo: id, Revision: opts.Revision, Excludes: opts.Excludes}
		res, err := hfhub.DownloadSnapshot(ctx, snap, opts.Settings, progress)
		if err != nil {
			sum.Failed++
			lastErr = fmt.Errorf("acquire %s: %w", id, err)
			emit(hfhub.ProgressEvent{Level: "error", Event: "model_error", Repo: id, Message: err.Error()})
			if ctx.Err() != nil {
				return sum, ctx.Err()
			}
			if !opts.KeepGoing {
				return sum, lastErr
			}
			continue
		}

		sum.Fetched++
		sum.Bytes += res.Bytes

		if flags != nil {
			if err := flags.Mark(cacheflag.Entry{
				ID:    id,
				Files: res.Files + res.Skipped,
				Bytes: res.TotalBytes,
			}); err != nil {
				return sum, fmt.Errorf("flag %s: %w", id, err)
			}
		}

		emit(hfhub.ProgressEvent{Event: "model_done", Repo: id})
	}

	emit(hfhub.ProgressEvent{
		Event: "run_done",
		Message: fmt.Sprintf("manifest complete (fetched %d, flagged %d, failed %d of %d)",
			sum.Fetched, sum.Flagged, sum.Failed, sum.Total),
	})

	if sum.Failed > 0 {
		return sum, lastErr
	}
	return sum, nil
}
