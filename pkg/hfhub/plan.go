// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package hfhub

import (
	"context"
	"net/http"
	"path/filepath"
	"strings"
)

// PlanItem is a single file in a snapshot download plan.
type PlanItem struct {
	RelativePath string `json:"path"`
	URL          string `json:"url"`
	LFS          bool   `json:"lfs"`
	SHA256       string `json:"sha256,omitempty"`
	Size         int64  `json:"size"`
	AcceptRanges bool   `json:"acceptRanges"`
}

// Plan is the list of files making up a snapshot.
type Plan struct {
	Items []PlanItem `json:"items"`
}

// TotalBytes sums the known sizes of all plan items.
func (p *Plan) TotalBytes() int64 {
	var total int64
	for _, it := range p.Items {
		total += it.Size
	}
	return total
}

// PlanSnapshot builds the file list for a snapshot without downloading.
func PlanSnapshot(ctx context.Context, snap Snapshot, cfg Settings) (*Plan, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := validate(snap); err != nil {
		return nil, err
	}
	if snap.Revision == "" {
		snap.Revision = "main"
	}
	return scanSnapshot(ctx, newHTTPClient(), snap, cfg)
}

// scanSnapshot walks the repository tree and builds the download plan.
func scanSnapshot(ctx context.Context, httpc *http.Client, snap Snapshot, cfg Settings) (*Plan, error) {
	var items []PlanItem
	seen := make(map[string]struct{}) // each relative path appears once

	err := walkTree(ctx, httpc, cfg.Token, cfg.Endpoint, snap, "", func(n hubNode) error {
		if n.Type != "file" && n.Type != "blob" {
			return nil
		}
		rel := n.Path
		if _, ok := seen[rel]; ok {
			return nil
		}
		seen[rel] = struct{}{}

		relLower := strings.ToLower(rel)
		for _, ex := range snap.Excludes {
			if strings.Contains(relLower, strings.ToLower(ex)) {
				return nil
			}
		}

		isLFS := n.LFS != nil

		var urlStr string
		if isLFS {
			urlStr = lfsURL(cfg.Endpoint, snap, rel)
		} else {
			urlStr = rawURL(cfg.Endpoint, snap, rel)
		}

		// For LFS entries n.Size is the pointer file size, not the blob size.
		size := n.Size
		if n.LFS != nil && n.LFS.Size > 0 {
			size = n.LFS.Size
		}

		sha := n.Sha256
		if sha == "" && n.LFS != nil {
			sha = n.LFS.Sha256
		}
		// The tree API reports no sha256 field for LFS files; the OID is the
		// sha256 of the blob.
		if sha == "" && n.LFS != nil {
			sha = n.LFS.Oid
		}

		items = append(items, PlanItem{
			RelativePath: rel,
			URL:          urlStr,
			LFS:          isLFS,
			SHA256:       sha,
			Size:         size,
			// LFS blobs are served from a CDN that supports range requests;
			// probing with HEAD during planning is too slow for large repos.
			AcceptRanges: isLFS,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &Plan{Items: items}, nil
}

// snapshotDir returns the local directory for a snapshot, laid out as
// <CacheDir>/<owner>/<name>.
func snapshotDir(snap Snapshot, cfg Settings) string {
	return filepath.Join(cfg.CacheDir, filepath.FromSlash(snap.Repo))
}
