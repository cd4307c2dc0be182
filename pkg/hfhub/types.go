// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package hfhub

import "time"

// Snapshot identifies one repository snapshot to mirror from the Hub.
type Snapshot struct {
	// Repo is the repository ID in "owner/name" format.
	Repo string

	// Revision is the branch, tag, or commit SHA. Empty means "main".
	Revision string

	// Excludes skips files whose path contains any of these substrings,
	// matched case-insensitively.
	Excludes []string
}

// Settings configures snapshot downloads.
//
// All fields have defaults; at minimum set CacheDir.
type Settings struct {
	// CacheDir is the base directory where snapshots are stored as
	// <CacheDir>/<owner>/<name>/<path>.
	CacheDir string

	// Concurrency is the number of parallel range requests per file for
	// multipart downloads. If <= 0, defaults to 8.
	Concurrency int

	// MaxActive limits how many files download simultaneously.
	// If <= 0, defaults to GOMAXPROCS.
	MaxActive int

	// MultipartThreshold is the minimum file size for multipart downloads.
	// Accepts human-readable sizes ("32MiB", "256MB"). Default "256MiB".
	MultipartThreshold string

	// Verify selects verification for non-LFS files: none|size|etag|sha256.
	// LFS files are always verified by SHA-256 when the hash is known.
	Verify string

	// Retries is the maximum retry attempts per HTTP request. Default 4.
	Retries int

	// BackoffInitial is the delay before the first retry ("400ms").
	BackoffInitial string

	// BackoffMax caps the exponential retry delay ("10s").
	BackoffMax string

	// Token is the Hub access token for gated or private repositories.
	Token string

	// Endpoint overrides the Hub URL, for mirrors or enterprise deployments.
	Endpoint string
}

// DefaultSettings returns Settings with defaults filled in.
func DefaultSettings() Settings {
	return Settings{
		CacheDir:           "Cache",
		Concurrency:        8,
		MaxActive:          4,
		MultipartThreshold: "256MiB",
		Verify:             "size",
		Retries:            4,
		BackoffInitial:     "400ms",
		BackoffMax:         "10s",
	}
}

// ProgressEvent is one progress update emitted during scanning or download.
//
// Event values:
//   - "scan_start": repository scanning has begun
//   - "plan_item": a file was added to the download plan
//   - "file_start": download of a file has started
//   - "file_progress": periodic progress update
//   - "file_done": file complete (Message carries "skip (reason)" when skipped)
//   - "retry": a retry attempt is being made
//   - "error": an error occurred
//   - "done": the snapshot is complete
//
// Callers that run many snapshots layer their own run-level events on the
// same type ("model_start", "model_skip", "model_done", "model_error",
// "run_done").
type ProgressEvent struct {
	Time time.Time `json:"time"`

	// Level is "debug", "info", "warn" or "error"; empty means "info".
	Level string `json:"level,omitempty"`

	Event    string `json:"event"`
	Repo     string `json:"repo,omitempty"`
	Revision string `json:"revision,omitempty"`

	// Path is the file path relative to the repository root.
	Path string `json:"path,omitempty"`

	Total      int64 `json:"total,omitempty"`
	Downloaded int64 `json:"downloaded,omitempty"`

	// Attempt is the 1-based retry attempt, set on "retry" events.
	Attempt int `json:"attempt,omitempty"`

	Message string `json:"message,omitempty"`
	IsLFS   bool   `json:"isLfs,omitempty"`
}

// ProgressFunc receives progress events. It may be invoked from multiple
// goroutines and must be safe for concurrent use.
type ProgressFunc func(ProgressEvent)
