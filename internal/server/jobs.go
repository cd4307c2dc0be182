// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/Yangs-AI/younger-fetch/internal/acquire"
	"github.com/Yangs-AI/younger-fetch/pkg/hfhub"
)

// JobStatus represents the state of an acquisition job.
type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// Job represents one acquisition run: a manifest (or explicit model IDs)
// mirrored into the server's cache directory.
type Job struct {
	ID        string      `json:"id"`
	Manifest  string      `json:"manifest,omitempty"` // resolved manifest path
	ModelIDs  []string    `json:"modelIds,omitempty"`
	Revision  string      `json:"revision,omitempty"`
	Excludes  []string    `json:"excludes,omitempty"`
	KeepGoing bool        `json:"keepGoing,omitempty"`
	Status    JobStatus   `json:"status"`
	Progress  JobProgress `json:"progress"`
	Error     string      `json:"error,omitempty"`
	CreatedAt time.Time   `json:"createdAt"`
	StartedAt *time.Time  `json:"startedAt,omitempty"`
	EndedAt   *time.Time  `json:"endedAt,omitempty"`

	cancel context.CancelFunc `json:"-"`
}

// JobProgress holds model-level progress for a run.
type JobProgress struct {
	TotalModels   int    `json:"totalModels"`
	FetchedModels int    `json:"fetchedModels"`
	FlaggedModels int    `json:"flaggedModels"` // skipped, already flagged complete
	FailedModels  int    `json:"failedModels"`
	CurrentRepo   string `json:"currentRepo,omitempty"`
	CurrentPath   string `json:"currentPath,omitempty"`
	Bytes         int64  `json:"bytes"`
}

// key identifies a job's workload for duplicate suppression.
func (j *Job) key() string {
	if j.Manifest != "" {
		return "manifest:" + j.Manifest
	}
	return "ids:" + strings.Join(j.ModelIDs, ",")
}

func (j *Job) active() bool {
	return j.Status == JobStatusQueued || j.Status == JobStatusRunning
}

// JobManager manages acquisition jobs.
type JobManager struct {
	mu         sync.RWMutex
	jobs       map[string]*Job
	config     Config
	listeners  []chan *Job
	listenerMu sync.RWMutex
	wsHub      *WSHub
}

// NewJobManager creates a new job manager.
func NewJobManager(cfg Config, wsHub *WSHub) *JobManager {
	return &JobManager{
		jobs:   make(map[string]*Job),
		config: cfg,
		wsHub:  wsHub,
	}
}

// generateID creates a short random ID.
func generateID() string {
	b := make([]byte, 6)
	rand.Read(b)
	return hex.EncodeToString(b)
}

// CreateJob creates a new acquisition job.
// Returns the existing job if the same workload is already in progress.
func (m *JobManager) CreateJob(req AcquireRequest) (*Job, bool, error) {
	job := &Job{
		ID:        generateID(),
		ModelIDs:  req.ModelIDs,
		Revision:  req.Revision,
		Excludes:  req.Excludes,
		KeepGoing: req.KeepGoing,
		Status:    JobStatusQueued,
		CreatedAt: time.Now(),
	}

	// Manifest path is resolved server-side, never taken verbatim from the
	// request unless it is an explicit path.
	switch {
	case req.ManifestPath != "":
		job.Manifest = req.ManifestPath
	case req.Manifest != "":
		job.Manifest = filepath.Join(m.config.ManifestDir, req.Manifest)
	}

	m.mu.Lock()
	for _, existing := range m.jobs {
		if existing.key() == job.key() && existing.active() {
			m.mu.Unlock()
			return existing, true, nil
		}
	}
	// cancel must be visible before the goroutine starts, or CancelJob can
	// race past a nil func.
	ctx, cancel := context.WithCancel(context.Background())
	job.cancel = cancel
	m.jobs[job.ID] = job
	m.mu.Unlock()

	go m.runJob(ctx, cancel, job)

	return job, false, nil
}

// GetJob retrieves a job by ID.
func (m *JobManager) GetJob(id string) (*Job, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	job, ok := m.jobs[id]
	return job, ok
}

// ListJobs returns all jobs.
func (m *JobManager) ListJobs() []*Job {
	m.mu.RLock()
	defer m.mu.RUnlock()

	jobs := make([]*Job, 0, len(m.jobs))
	for _, job := range m.jobs {
		jobs = append(jobs, job)
	}
	return jobs
}

// CancelJob cancels a running or queued job.
func (m *JobManager) CancelJob(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[id]
	if !ok {
		return false
	}

	if job.active() {
		if job.cancel != nil {
			job.cancel()
		}
		job.Status = JobStatusCancelled
		now := time.Now()
		job.EndedAt = &now
		m.notifyListeners(job)
		return true
	}

	return false
}

// DeleteJob removes a job from the list, cancelling it first if needed.
func (m *JobManager) DeleteJob(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[id]
	if !ok {
		return false
	}

	if job.cancel != nil && job.active() {
		job.cancel()
	}

	delete(m.jobs, id)
	return true
}

// Subscribe adds a listener for job updates.
func (m *JobManager) Subscribe() chan *Job {
	ch := make(chan *Job, 100)
	m.listenerMu.Lock()
	m.listeners = append(m.listeners, ch)
	m.listenerMu.Unlock()
	return ch
}

// Unsubscribe removes a listener.
func (m *JobManager) Unsubscribe(ch chan *Job) {
	m.listenerMu.Lock()
	defer m.listenerMu.Unlock()

	for i, listener := range m.listeners {
		if listener == ch {
			m.listeners = append(m.listeners[:i], m.listeners[i+1:]...)
			close(ch)
			return
		}
	}
}

func (m *JobManager) notifyListeners(job *Job) {
	m.listenerMu.RLock()
	for _, ch := range m.listeners {
		select {
		case ch <- job:
		default:
			// Listener is slow, skip
		}
	}
	m.listenerMu.RUnlock()

	if m.wsHub != nil {
		m.wsHub.BroadcastJob(job)
	}
}

// settings builds the download settings for a run from the server config.
func (m *JobManager) settings() hfhub.Settings {
	s := hfhub.DefaultSettings()
	s.CacheDir = m.config.CacheDir
	if m.config.Concurrency > 0 {
		s.Concurrency = m.config.Concurrency
	}
	if m.config.MaxActive > 0 {
		s.MaxActive = m.config.MaxActive
	}
	if m.config.MultipartThreshold != "" {
		s.MultipartThreshold = m.config.MultipartThreshold
	}
	if m.config.Verify != "" {
		s.Verify = m.config.Verify
	}
	if m.config.Retries > 0 {
		s.Retries = m.config.Retries
	}
	s.Token = m.config.Token
	s.Endpoint = m.config.Endpoint
	return s
}

// runJob executes the acquisition run.
func (m *JobManager) runJob(ctx context.Context, cancel context.CancelFunc, job *Job) {
	defer cancel()

	m.mu.Lock()
	job.Status = JobStatusRunning
	now := time.Now()
	job.StartedAt = &now
	m.mu.Unlock()
	m.notifyListeners(job)

	opts := acquire.Options{
		ManifestPath:  job.Manifest,
		ModelIDs:      job.ModelIDs,
		CacheFlagPath: m.config.CacheFlagPath,
		Revision:      job.Revision,
		Excludes:      job.Excludes,
		KeepGoing:     job.KeepGoing,
		Settings:      m.settings(),
	}

	// NOTE: must not hold the lock when calling notifyListeners.
	progress := func(ev hfhub.ProgressEvent) {
		m.mu.Lock()
		notify := true
		switch ev.Event {
		case "model_start":
			job.Progress.CurrentRepo = ev.Repo
			job.Progress.CurrentPath = ""
		case "model_done":
			job.Progress.FetchedModels++
			job.Progress.CurrentRepo = ""
		case "model_skip":
			job.Progress.FlaggedModels++
		case "model_error":
			job.Progress.FailedModels++
			job.Progress.CurrentRepo = ""
		case "file_start":
			job.Progress.CurrentPath = ev.Path
		case "file_done":
			job.Progress.CurrentPath = ""
		default:
			// Per-chunk progress is too chatty to broadcast.
			notify = false
		}
		m.mu.Unlock()
		if notify {
			m.notifyListeners(job)
		}
	}

	sum, err := acquire.Run(ctx, opts, progress)

	m.mu.Lock()
	endTime := time.Now()
	job.EndedAt = &endTime
	if sum != nil {
		job.Progress.TotalModels = sum.Total
		job.Progress.FetchedModels = sum.Fetched
		job.Progress.FlaggedModels = sum.Flagged
		job.Progress.FailedModels = sum.Failed
		job.Progress.Bytes = sum.Bytes
	}
	if ctx.Err() != nil {
		job.Status = JobStatusCancelled
	} else if err != nil {
		job.Status = JobStatusFailed
		job.Error = err.Error()
	} else {
		job.Status = JobStatusCompleted
	}
	m.mu.Unlock()

	m.notifyListeners(job)
}
