// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package hfhub

import (
	"errors"
	"fmt"
)

// Common errors returned by the library.
var (
	// ErrInvalidRepo is returned when a repository ID is not "owner/name".
	ErrInvalidRepo = errors.New("invalid repository ID: expected owner/name format")

	// ErrMissingRepo is returned when no repository is specified.
	ErrMissingRepo = errors.New("missing repository ID")

	// ErrUnauthorized is returned when authentication is required but missing.
	ErrUnauthorized = errors.New("unauthorized: this repository requires authentication")

	// ErrNotFound is returned when the repository or revision does not exist.
	ErrNotFound = errors.New("repository or revision not found")

	// ErrRateLimited is returned when the API rate limit is exceeded.
	ErrRateLimited = errors.New("rate limited: too many requests")
)

// DownloadError wraps an error with the file it concerns.
type DownloadError struct {
	Path string
	Err  error
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("download %s: %v", e.Path, e.Err)
}

func (e *DownloadError) Unwrap() error {
	return e.Err
}

// VerificationError is returned when file verification fails.
type VerificationError struct {
	Path     string
	Expected string
	Actual   string
	Method   string // "sha256", "size", "etag"
}

func (e *VerificationError) Error() string {
	return fmt.Sprintf("verification failed for %s: %s mismatch (expected %s, got %s)",
		e.Path, e.Method, e.Expected, e.Actual)
}
