// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package hfhub

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
)

// Result summarizes a completed snapshot download.
type Result struct {
	Files      int   `json:"files"`
	Skipped    int   `json:"skipped"`
	Bytes      int64 `json:"bytes"`
	TotalBytes int64 `json:"totalBytes"`
}

// progressReader emits progress events as data is read.
type progressReader struct {
	reader     io.Reader
	total      int64
	downloaded int64
	path       string
	emit       func(ProgressEvent)
	lastEmit   time.Time
	interval   time.Duration
}

func newProgressReader(r io.Reader, total int64, path string, emit func(ProgressEvent)) *progressReader {
	return &progressReader{
		reader:   r,
		total:    total,
		path:     path,
		emit:     emit,
		lastEmit: time.Now(),
		interval: 200 * time.Millisecond,
	}
}

func (pr *progressReader) Read(p []byte) (n int, err error) {
	n, err = pr.reader.Read(p)
	if n > 0 {
		pr.downloaded += int64(n)
		if time.Since(pr.lastEmit) >= pr.interval || err == io.EOF {
			pr.emit(ProgressEvent{
				Event:      "file_progress",
				Path:       pr.path,
				Downloaded: pr.downloaded,
				Total:      pr.total,
			})
			pr.lastEmit = time.Now()
		}
	}
	return n, err
}

// DownloadSnapshot scans a repository and mirrors its files under the cache
// directory. Resume is always on; skip decisions rely only on the filesystem:
// sha256 comparison for LFS files when the hash is known, size comparison
// otherwise. All loops, sleeps and requests are tied to ctx.
func DownloadSnapshot(ctx context.Context, snap Snapshot, cfg Settings, progress ProgressFunc) (*Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := validate(snap); err != nil {
		return nil, err
	}

	if snap.Revision == "" {
		snap.Revision = "main"
	}
	if cfg.CacheDir == "" {
		cfg.CacheDir = "Cache"
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 8
	}
	if cfg.MaxActive <= 0 {
		cfg.MaxActive = runtime.GOMAXPROCS(0)
	}

	thresholdBytes, err := parseSizeString(cfg.MultipartThreshold, 256<<20)
	if err != nil {
		return nil, fmt.Errorf("invalid multipart-threshold: %w", err)
	}

	httpc := newHTTPClient()

	emit := func(ev ProgressEvent) {
		if progress != nil {
			if ev.Time.IsZero() {
				ev.Time = time.Now()
			}
			if ev.Repo == "" {
				ev.Repo = snap.Repo
			}
			if ev.Revision == "" {
				ev.Revision = snap.Revision
			}
			progress(ev)
		}
	}

	emit(ProgressEvent{Event: "scan_start", Message: "scanning repo"})

	plan, err := scanSnapshot(ctx, httpc, snap, cfg)
	if err != nil {
		return nil, err
	}

	base := snapshotDir(snap, cfg)
	if err := os.MkdirAll(base, 0o755); err != nil {
		return nil, err
	}

	sem := semaphore.NewWeighted(int64(cfg.MaxActive))

	var wg sync.WaitGroup
	errCh := make(chan error, len(plan.Items))

	var skippedCount, downloadedCount, downloadedBytes int64

	for _, item := range plan.Items {
		it := item

		emit(ProgressEvent{Event: "plan_item", Path: it.RelativePath, Total: it.Size, IsLFS: it.LFS})

		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer sem.Release(1)

			fileCtx, fileCancel := context.WithCancel(ctx)
			defer fileCancel()

			dst := filepath.Join(base, filepath.FromSlash(it.RelativePath))
			if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
				pushErr(errCh, err)
				return
			}

			alreadyOK, reason, err := shouldSkipLocal(it, dst)
			if err != nil {
				pushErr(errCh, err)
				return
			}
			if alreadyOK {
				emit(ProgressEvent{Event: "file_done", Path: it.RelativePath, Message: "skip (" + reason + ")"})
				atomic.AddInt64(&skippedCount, 1)
				return
			}

			emit(ProgressEvent{Event: "file_start", Path: it.RelativePath, Total: it.Size})

			var dlErr error
			if it.Size >= thresholdBytes && it.AcceptRanges {
				dlErr = downloadMultipart(fileCtx, httpc, cfg, it, dst, emit)
			} else {
				dlErr = downloadSingle(fileCtx, httpc, cfg, it, dst, emit)
			}
			if dlErr != nil {
				pushErr(errCh, &DownloadError{Path: it.RelativePath, Err: dlErr})
				return
			}

			if err := verifyAfterDownload(fileCtx, httpc, cfg, it, dst); err != nil {
				pushErr(errCh, err)
				return
			}

			emit(ProgressEvent{Event: "file_done", Path: it.RelativePath})
			atomic.AddInt64(&downloadedCount, 1)
			atomic.AddInt64(&downloadedBytes, it.Size)
		}()
	}

	wg.Wait()
	close(errCh)

	var firstErr error
	for e := range errCh {
		if e != nil {
			firstErr = e
			break
		}
	}
	if firstErr != nil {
		emit(ProgressEvent{Level: "error", Event: "error", Message: firstErr.Error()})
		return nil, firstErr
	}

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	res := &Result{
		Files:      int(downloadedCount),
		Skipped:    int(skippedCount),
		Bytes:      downloadedBytes,
		TotalBytes: plan.TotalBytes(),
	}
	emit(ProgressEvent{
		Event:   "done",
		Message: fmt.Sprintf("snapshot complete (downloaded %d, skipped %d)", res.Files, res.Skipped),
	})
	return res, nil
}

// verifyAfterDownload applies the configured post-download verification.
func verifyAfterDownload(ctx context.Context, httpc *http.Client, cfg Settings, it PlanItem, dst string) error {
	if it.LFS && it.SHA256 != "" {
		if err := verifySHA256(dst, it.SHA256); err != nil {
			return fmt.Errorf("sha256 verify failed: %s: %w", it.RelativePath, err)
		}
		return nil
	}
	switch cfg.Verify {
	case "size":
		if it.Size > 0 {
			fi, err := os.Stat(dst)
			if err != nil || fi.Size() != it.Size {
				return fmt.Errorf("size mismatch for %s", it.RelativePath)
			}
		}
	case "sha256":
		_, remoteSha, _ := headForSha(ctx, httpc, cfg.Token, it)
		if remoteSha != "" {
			if err := verifySHA256(dst, remoteSha); err != nil {
				return fmt.Errorf("sha256 verify failed: %s: %w", it.RelativePath, err)
			}
		}
	}
	return nil
}

func pushErr(errCh chan error, err error) {
	select {
	case errCh <- err:
	default:
	}
}

// downloadSingle fetches a file in one request, writing to a .part file that
// is renamed into place on success.
func downloadSingle(ctx context.Context, httpc *http.Client, cfg Settings, it PlanItem, dst string, emit func(ProgressEvent)) error {
	tmp := dst + ".part"
	out, err := os.Create(tmp)
	if err != nil {
		return err
	}
	defer out.Close()

	retry := newRetry(cfg)
	var lastErr error

	for attempt := 0; attempt <= cfg.Retries; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		// A failed attempt leaves partial bytes in the file; every try
		// rewrites it from the start.
		if err := out.Truncate(0); err != nil {
			return err
		}
		if _, err := out.Seek(0, io.SeekStart); err != nil {
			return err
		}

		req, _ := http.NewRequestWithContext(ctx, "GET", it.URL, nil)
		addAuth(req, cfg.Token)

		resp, err := httpc.Do(req)
		if err != nil {
			lastErr = err
		} else {
			if resp.StatusCode < 200 || resp.StatusCode >= 300 {
				lastErr = fmt.Errorf("bad status: %s", resp.Status)
				resp.Body.Close()
			} else {
				pr := newProgressReader(resp.Body, it.Size, it.RelativePath, emit)
				_, cerr := io.Copy(out, pr)
				resp.Body.Close()
				if cerr == nil {
					out.Close()
					return os.Rename(tmp, dst)
				}
				lastErr = cerr
			}
		}

		if attempt < cfg.Retries {
			emit(ProgressEvent{Event: "retry", Path: it.RelativePath, Attempt: attempt + 1, Message: lastErr.Error()})
			if d := retry.Next(); !sleepCtx(ctx, d) {
				return ctx.Err()
			}
		}
	}
	return lastErr
}

// downloadMultipart fetches a file with parallel range requests and assembles
// the parts. Falls back to a single request when the size is unknown.
func downloadMultipart(ctx context.Context, httpc *http.Client, cfg Settings, it PlanItem, dst string, emit func(ProgressEvent)) error {
	req, _ := http.NewRequestWithContext(ctx, "HEAD", it.URL, nil)
	addAuth(req, cfg.Token)
	resp, err := httpc.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()

	if it.Size == 0 {
		if clen := resp.Header.Get("Content-Length"); clen != "" {
			var n int64
			fmt.Sscan(clen, &n)
			it.Size = n
		}
	}
	if it.Size == 0 {
		return downloadSingle(ctx, httpc, cfg, it, dst, emit)
	}

	n := cfg.Concurrency
	chunk := it.Size / int64(n)
	if chunk <= 0 {
		chunk = it.Size
		n = 1
	}

	tmpParts := make([]string, n)
	for i := 0; i < n; i++ {
		tmpParts[i] = fmt.Sprintf("%s.part-%02d", dst, i)
	}

	var wg sync.WaitGroup
	errCh := make(chan error, n)

	for i := 0; i < n; i++ {
		i := i
		start := int64(i) * chunk
		end := start + chunk - 1
		if i == n-1 {
			end = it.Size - 1
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			tmp := tmpParts[i]

			// Resume: a part file of the right size is already complete.
			if fi, err := os.Stat(tmp); err == nil && fi.Size() == (end-start+1) {
				return
			}

			retry := newRetry(cfg)
			var lastErr error

			for attempt := 0; attempt <= cfg.Retries; attempt++ {
				select {
				case <-ctx.Done():
					return
				default:
				}

				rq, _ := http.NewRequestWithContext(ctx, "GET", it.URL, nil)
				addAuth(rq, cfg.Token)
				rq.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", start, end))

				rs, err := httpc.Do(rq)
				if err != nil {
					lastErr = err
				} else if rs.StatusCode != 206 {
					lastErr = fmt.Errorf("range not supported (status %s)", rs.Status)
					rs.Body.Close()
				} else {
					out, err := os.Create(tmp)
					if err != nil {
						lastErr = err
						rs.Body.Close()
					} else {
						_, lastErr = io.Copy(out, rs.Body)
						out.Close()
						rs.Body.Close()
						if lastErr == nil {
							return
						}
					}
				}

				if attempt < cfg.Retries {
					emit(ProgressEvent{Event: "retry", Path: it.RelativePath, Attempt: attempt + 1, Message: lastErr.Error()})
					if d := retry.Next(); !sleepCtx(ctx, d) {
						return
					}
				}
			}

			select {
			case errCh <- lastErr:
			default:
			}
		}()
	}

	// Periodic progress from the part files on disk.
	progressCtx, stopProgress := context.WithCancel(ctx)
	defer stopProgress()
	go func() {
		t := time.NewTicker(200 * time.Millisecond)
		defer t.Stop()
		for {
			select {
			case <-progressCtx.Done():
				return
			case <-t.C:
				var downloaded int64
				for _, p := range tmpParts {
					if fi, err := os.Stat(p); err == nil {
						downloaded += fi.Size()
					}
				}
				emit(ProgressEvent{Event: "file_progress", Path: it.RelativePath, Downloaded: downloaded, Total: it.Size})
			}
		}
	}()

	wg.Wait()

	select {
	case e := <-errCh:
		return e
	default:
	}

	out, err := os.Create(dst + ".part")
	if err != nil {
		return err
	}

	for i := 0; i < n; i++ {
		in, err := os.Open(tmpParts[i])
		if err != nil {
			out.Close()
			return err
		}
		if _, err := io.Copy(out, in); err != nil {
			in.Close()
			out.Close()
			return err
		}
		in.Close()
	}
	out.Close()

	if err := os.Rename(dst+".part", dst); err != nil {
		return err
	}

	for _, p := range tmpParts {
		_ = os.Remove(p)
	}

	return nil
}
