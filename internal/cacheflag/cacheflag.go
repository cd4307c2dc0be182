// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

// Package cacheflag records which models have been fully cached. The flag
// file is append-only JSON lines, one record per completed model, flushed as
// each model finishes so an interrupted run resumes where it stopped.
package cacheflag

import (
	"bufio"
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Entry is one completion record in the flag file.
type Entry struct {
	ID          string    `json:"id"`
	CompletedAt time.Time `json:"completedAt"`
	Files       int       `json:"files,omitempty"`
	Bytes       int64     `json:"bytes,omitempty"`
}

// Store is a concurrent-safe view over a cache-flag file.
type Store struct {
	mu      sync.Mutex
	path    string
	entries map[string]Entry
	f       *os.File
}

// Open loads the flag file at path, creating it (and parent directories) if
// absent. Partially written trailing lines are ignored, as they occur when a
// previous run was killed mid-append.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	entries := make(map[string]Entry)
	if b, err := os.ReadFile(path); err == nil {
		sc := bufio.NewScanner(bytes.NewReader(b))
		sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
		for sc.Scan() {
			var e Entry
			if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
				continue
			}
			if e.ID != "" {
				entries[e.ID] = e
			}
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}

	return &Store{path: path, entries: entries, f: f}, nil
}

// Path returns the flag file location.
func (s *Store) Path() string {
	return s.path
}

// Has reports whether a model is flagged complete.
func (s *Store) Has(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entries[id]
	return ok
}

// Get returns the completion record for a model, if any.
func (s *Store) Get(id string) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	return e, ok
}

// Len returns the number of flagged models.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Mark flags a model complete and flushes the record to disk immediately.
// Re-marking an already flagged model is a no-op.
func (s *Store) Mark(e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[e.ID]; ok {
		return nil
	}
	if e.CompletedAt.IsZero() {
		e.CompletedAt = time.Now().UTC()
	}

	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	if _, err := s.f.Write(append(b, '\n')); err != nil {
		return err
	}
	if err := s.f.Sync(); err != nil {
		return err
	}

	s.entries[e.ID] = e
	return nil
}

// Close releases the underlying file handle.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.f.Close()
}
