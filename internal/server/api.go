// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/Yangs-AI/younger-fetch/internal/cacheflag"
	"github.com/Yangs-AI/younger-fetch/pkg/hfhub"
)

// AcquireRequest is the request body for starting an acquisition job.
// Cache paths are NOT configurable via the API; the server always writes into
// its configured cache directory and flag file.
type AcquireRequest struct {
	// Manifest selects a manifest by name, joined onto the server's
	// manifest directory.
	Manifest string `json:"manifest,omitempty"`

	// ManifestPath selects a manifest by explicit path.
	ManifestPath string `json:"manifestPath,omitempty"`

	// ModelIDs runs an ad-hoc acquisition without a manifest file.
	ModelIDs []string `json:"modelIds,omitempty"`

	Revision  string   `json:"revision,omitempty"`
	Excludes  []string `json:"excludes,omitempty"`
	KeepGoing bool     `json:"keepGoing,omitempty"`
}

// PlanRequest asks for the download plan of a single repository.
type PlanRequest struct {
	Repo     string   `json:"repo"`
	Revision string   `json:"revision,omitempty"`
	Excludes []string `json:"excludes,omitempty"`
}

// PlanResponse is the response for a plan request.
type PlanResponse struct {
	Repo       string     `json:"repo"`
	Revision   string     `json:"revision"`
	Files      []PlanFile `json:"files"`
	TotalSize  int64      `json:"totalSize"`
	TotalFiles int        `json:"totalFiles"`
}

// PlanFile represents a file in the plan.
type PlanFile struct {
	Path string `json:"path"`
	Size int64  `json:"size"`
	LFS  bool   `json:"lfs"`
}

// SettingsResponse represents current settings.
type SettingsResponse struct {
	Token              string `json:"token,omitempty"`
	ManifestDir        string `json:"manifestDir"`
	CacheDir           string `json:"cacheDir"`
	CacheFlagPath      string `json:"cacheFlagPath"`
	Concurrency        int    `json:"connections"`
	MaxActive          int    `json:"maxActive"`
	MultipartThreshold string `json:"multipartThreshold"`
	Verify             string `json:"verify"`
	Retries            int    `json:"retries"`
	Endpoint           string `json:"endpoint,omitempty"`
}

// ErrorResponse represents an API error.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// SuccessResponse represents a simple success message.
type SuccessResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// --- Handlers ---

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// handleStartAcquire starts a new acquisition job.
func (s *Server) handleStartAcquire(w http.ResponseWriter, r *http.Request) {
	var req AcquireRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}

	if req.Manifest == "" && req.ManifestPath == "" && len(req.ModelIDs) == 0 {
		writeError(w, http.StatusBadRequest, "Nothing to acquire", "Set manifest, manifestPath or modelIds")
		return
	}
	for _, id := range req.ModelIDs {
		if !hfhub.IsValidRepoID(id) {
			writeError(w, http.StatusBadRequest, "Invalid model ID", id+" (expected owner/name)")
			return
		}
	}
	if req.Manifest != "" && strings.Contains(req.Manifest, "..") {
		writeError(w, http.StatusBadRequest, "Invalid manifest name", "Use manifestPath for paths outside the manifest directory")
		return
	}

	job, wasExisting, err := s.jobs.CreateJob(req)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create job", err.Error())
		return
	}

	if wasExisting {
		writeJSON(w, http.StatusOK, map[string]any{
			"job":     job,
			"message": "Acquisition already in progress",
		})
		return
	}
	writeJSON(w, http.StatusAccepted, job)
}

// handlePlan returns the download plan of one repository without downloading.
func (s *Server) handlePlan(w http.ResponseWriter, r *http.Request) {
	var req PlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}
	if req.Repo == "" {
		writeError(w, http.StatusBadRequest, "Missing required field: repo", "")
		return
	}
	if !hfhub.IsValidRepoID(req.Repo) {
		writeError(w, http.StatusBadRequest, "Invalid repo format", "Expected owner/name")
		return
	}

	revision := req.Revision
	if revision == "" {
		revision = "main"
	}

	ctx, cancel := context.WithTimeout(r.Context(), 60*time.Second)
	defer cancel()

	snap := hfhub.Snapshot{Repo: req.Repo, Revision: revision, Excludes: req.Excludes}
	plan, err := hfhub.PlanSnapshot(ctx, snap, s.jobs.settings())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to scan repository", err.Error())
		return
	}

	files := make([]PlanFile, 0, len(plan.Items))
	for _, it := range plan.Items {
		files = append(files, PlanFile{Path: it.RelativePath, Size: it.Size, LFS: it.LFS})
	}
	writeJSON(w, http.StatusOK, PlanResponse{
		Repo:       req.Repo,
		Revision:   revision,
		Files:      files,
		TotalSize:  plan.TotalBytes(),
		TotalFiles: len(files),
	})
}

// handleListManifests lists the manifest files in the manifest directory.
func (s *Server) handleListManifests(w http.ResponseWriter, r *http.Request) {
	if s.config.ManifestDir == "" {
		writeJSON(w, http.StatusOK, map[string]any{"manifests": []string{}, "count": 0})
		return
	}

	entries, err := os.ReadDir(s.config.ManifestDir)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to read manifest directory", err.Error())
		return
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	writeJSON(w, http.StatusOK, map[string]any{
		"manifests": names,
		"count":     len(names),
	})
}

// handleFlags summarizes the completion-flag file.
func (s *Server) handleFlags(w http.ResponseWriter, r *http.Request) {
	if s.config.CacheFlagPath == "" {
		writeJSON(w, http.StatusOK, map[string]any{"enabled": false, "count": 0})
		return
	}

	flags, err := cacheflag.Open(s.config.CacheFlagPath)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to open cache-flag file", err.Error())
		return
	}
	defer flags.Close()

	writeJSON(w, http.StatusOK, map[string]any{
		"enabled": true,
		"path":    flags.Path(),
		"count":   flags.Len(),
	})
}

// handleListJobs returns all jobs.
func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	jobs := s.jobs.ListJobs()
	writeJSON(w, http.StatusOK, map[string]any{
		"jobs":  jobs,
		"count": len(jobs),
	})
}

// handleGetJob returns a specific job.
func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "Missing job ID", "")
		return
	}

	job, ok := s.jobs.GetJob(id)
	if !ok {
		writeError(w, http.StatusNotFound, "Job not found", "")
		return
	}

	writeJSON(w, http.StatusOK, job)
}

// handleCancelJob cancels a job.
func (s *Server) handleCancelJob(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "Missing job ID", "")
		return
	}

	if s.jobs.CancelJob(id) {
		writeJSON(w, http.StatusOK, SuccessResponse{
			Success: true,
			Message: "Job cancelled",
		})
		return
	}
	writeError(w, http.StatusNotFound, "Job not found or already completed", "")
}

// handleGetSettings returns current settings.
func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	// Don't expose the full token, just its tail.
	tokenStatus := ""
	if s.config.Token != "" {
		tokenStatus = "********" + s.config.Token[max(0, len(s.config.Token)-4):]
	}

	writeJSON(w, http.StatusOK, SettingsResponse{
		Token:              tokenStatus,
		ManifestDir:        s.config.ManifestDir,
		CacheDir:           s.config.CacheDir,
		CacheFlagPath:      s.config.CacheFlagPath,
		Concurrency:        s.config.Concurrency,
		MaxActive:          s.config.MaxActive,
		MultipartThreshold: s.config.MultipartThreshold,
		Verify:             s.config.Verify,
		Retries:            s.config.Retries,
		Endpoint:           s.config.Endpoint,
	})
}

// handleUpdateSettings updates tuning settings. Paths cannot be changed via
// the API.
func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token              *string `json:"token,omitempty"`
		Concurrency        *int    `json:"connections,omitempty"`
		MaxActive          *int    `json:"maxActive,omitempty"`
		MultipartThreshold *string `json:"multipartThreshold,omitempty"`
		Verify             *string `json:"verify,omitempty"`
		Retries            *int    `json:"retries,omitempty"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}

	if req.Token != nil {
		s.config.Token = *req.Token
	}
	if req.Concurrency != nil && *req.Concurrency > 0 {
		s.config.Concurrency = *req.Concurrency
	}
	if req.MaxActive != nil && *req.MaxActive > 0 {
		s.config.MaxActive = *req.MaxActive
	}
	if req.MultipartThreshold != nil && *req.MultipartThreshold != "" {
		s.config.MultipartThreshold = *req.MultipartThreshold
	}
	if req.Verify != nil && *req.Verify != "" {
		s.config.Verify = *req.Verify
	}
	if req.Retries != nil && *req.Retries > 0 {
		s.config.Retries = *req.Retries
	}

	// New jobs pick up the updated tuning.
	s.jobs.config = s.config

	writeJSON(w, http.StatusOK, SuccessResponse{
		Success: true,
		Message: "Settings updated",
	})
}

// --- Helpers ---

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message, details string) {
	writeJSON(w, status, ErrorResponse{
		Error:   message,
		Details: details,
	})
}
