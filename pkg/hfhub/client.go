// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package hfhub

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultEndpoint is the default Hugging Face Hub URL.
// Override via Settings.Endpoint for mirrors or enterprise deployments.
const DefaultEndpoint = "https://huggingface.co"

func getEndpoint(endpoint string) string {
	if endpoint == "" {
		return DefaultEndpoint
	}
	return strings.TrimSuffix(endpoint, "/")
}

// hubNode is a file or directory entry from the Hub tree API.
type hubNode struct {
	Type   string      `json:"type"` // "file"|"directory" (sometimes "blob"|"tree")
	Path   string      `json:"path"`
	Size   int64       `json:"size,omitempty"`
	LFS    *hubLfsInfo `json:"lfs,omitempty"`
	Sha256 string      `json:"sha256,omitempty"`
}

// hubLfsInfo holds LFS metadata for large files.
type hubLfsInfo struct {
	Oid    string `json:"oid,omitempty"`
	Size   int64  `json:"size,omitempty"`
	Sha256 string `json:"sha256,omitempty"`
}

// newHTTPClient builds an HTTP client with a tuned transport. Proxies are
// honored via the standard environment variables.
func newHTTPClient() *http.Client {
	tr := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          64,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	return &http.Client{Transport: tr}
}

func addAuth(req *http.Request, token string) {
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("User-Agent", "younger-fetch/0")
}

// headForSha fetches the ETag and SHA256 headers for a plan item.
func headForSha(ctx context.Context, httpc *http.Client, token string, it PlanItem) (etag string, remoteSha string, _ error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, "HEAD", it.URL, nil)
	addAuth(req, token)
	resp, err := httpc.Do(req)
	if err != nil {
		return "", "", err
	}
	defer resp.Body.Close()
	return resp.Header.Get("ETag"), resp.Header.Get("x-amz-meta-sha256"), nil
}

// walkTree recursively walks the repository tree rooted at prefix.
func walkTree(ctx context.Context, httpc *http.Client, token, endpoint string, snap Snapshot, prefix string, fn func(hubNode) error) error {
	reqURL := treeURL(endpoint, snap, prefix)
	req, _ := http.NewRequestWithContext(ctx, "GET", reqURL, nil)
	addAuth(req, token)
	resp, err := httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case 200:
	case 401:
		return fmt.Errorf("401 unauthorized: repo requires a token or you lack access (visit %s): %w", repoURL(endpoint, snap), ErrUnauthorized)
	case 403:
		return fmt.Errorf("403 forbidden: accept the repository terms at %s: %w", repoURL(endpoint, snap), ErrUnauthorized)
	case 404:
		return fmt.Errorf("%s@%s: %w", snap.Repo, snap.Revision, ErrNotFound)
	default:
		return fmt.Errorf("tree API failed: %s", resp.Status)
	}

	var nodes []hubNode
	if err := json.NewDecoder(resp.Body).Decode(&nodes); err != nil {
		return err
	}

	for _, n := range nodes {
		switch n.Type {
		case "directory", "tree":
			if err := walkTree(ctx, httpc, token, endpoint, snap, n.Path, fn); err != nil {
				return err
			}
		default:
			if err := fn(n); err != nil {
				return err
			}
		}
	}
	return nil
}

// URL builders. Repo IDs contain "/" which the Hub requires unescaped.

func rawURL(endpoint string, snap Snapshot, path string) string {
	return fmt.Sprintf("%s/%s/raw/%s/%s", getEndpoint(endpoint), snap.Repo, url.PathEscape(snap.Revision), pathEscapeAll(path))
}

func lfsURL(endpoint string, snap Snapshot, path string) string {
	return fmt.Sprintf("%s/%s/resolve/%s/%s", getEndpoint(endpoint), snap.Repo, url.PathEscape(snap.Revision), pathEscapeAll(path))
}

func treeURL(endpoint string, snap Snapshot, prefix string) string {
	ep := getEndpoint(endpoint)
	if prefix == "" {
		return fmt.Sprintf("%s/api/models/%s/tree/%s", ep, snap.Repo, url.PathEscape(snap.Revision))
	}
	return fmt.Sprintf("%s/api/models/%s/tree/%s/%s", ep, snap.Repo, url.PathEscape(snap.Revision), pathEscapeAll(prefix))
}

func repoURL(endpoint string, snap Snapshot) string {
	return fmt.Sprintf("%s/%s", getEndpoint(endpoint), snap.Repo)
}

func pathEscapeAll(p string) string {
	segs := strings.Split(p, "/")
	for i := range segs {
		segs[i] = url.PathEscape(segs[i])
	}
	return strings.Join(segs, "/")
}
