// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package hfhub

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

// ModelInfo is one entry from the Hub model listing API.
type ModelInfo struct {
	ID        string   `json:"id"`
	Author    string   `json:"author,omitempty"`
	Sha       string   `json:"sha,omitempty"`
	Downloads int64    `json:"downloads,omitempty"`
	Likes     int64    `json:"likes,omitempty"`
	Library   string   `json:"library_name,omitempty"`
	Pipeline  string   `json:"pipeline_tag,omitempty"`
	Tags      []string `json:"tags,omitempty"`
	Private   bool     `json:"private,omitempty"`
	Gated     any      `json:"gated,omitempty"` // false, "auto" or "manual"
}

// ListParams are the query parameters of the /api/models endpoint.
//
// Filter entries may name a library, language, task or tag, but not a model
// name or author. A zero Limit fetches every page.
type ListParams struct {
	Filter    []string
	Full      bool
	Config    bool
	Limit     int
	Sort      string
	Ascending bool
}

func (p ListParams) query() url.Values {
	q := url.Values{}
	for _, f := range p.Filter {
		q.Add("filter", f)
	}
	if p.Full {
		q.Set("full", "true")
	}
	if p.Config {
		q.Set("config", "true")
	}
	if p.Limit > 0 {
		// The API caps the page size; the limit is enforced client-side too.
		q.Set("limit", strconv.Itoa(p.Limit))
	}
	if p.Sort != "" {
		q.Set("sort", p.Sort)
		if !p.Ascending {
			q.Set("direction", "-1")
		}
	}
	return q
}

var nextLinkRe = regexp.MustCompile(`<([^>]+)>\s*;\s*rel="next"`)

// nextLink extracts the rel="next" URL from a Link response header.
func nextLink(h http.Header) string {
	for _, link := range h.Values("Link") {
		if m := nextLinkRe.FindStringSubmatch(link); m != nil {
			return m[1]
		}
	}
	return ""
}

// ListModels pages through the Hub model listing API and returns the matching
// model infos. Pagination follows the Link: rel="next" headers; the next link
// already carries the query parameters.
func ListModels(ctx context.Context, cfg Settings, params ListParams) ([]ModelInfo, error) {
	httpc := newHTTPClient()

	pageURL := fmt.Sprintf("%s/api/models", getEndpoint(cfg.Endpoint))
	if q := params.query().Encode(); q != "" {
		pageURL += "?" + q
	}

	var infos []ModelInfo
	for pageURL != "" {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		req, err := http.NewRequestWithContext(ctx, "GET", pageURL, nil)
		if err != nil {
			return nil, err
		}
		addAuth(req, cfg.Token)

		resp, err := httpc.Do(req)
		if err != nil {
			return nil, err
		}

		if resp.StatusCode != 200 {
			resp.Body.Close()
			if resp.StatusCode == 429 {
				return nil, fmt.Errorf("list models: %s: %w", resp.Status, ErrRateLimited)
			}
			return nil, fmt.Errorf("list models: %s", resp.Status)
		}

		var page []ModelInfo
		err = json.NewDecoder(resp.Body).Decode(&page)
		next := nextLink(resp.Header)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("list models: decode page: %w", err)
		}

		infos = append(infos, page...)
		if params.Limit > 0 && len(infos) >= params.Limit {
			return infos[:params.Limit], nil
		}
		pageURL = next
	}
	return infos, nil
}

// ListModelIDs returns just the IDs of the matching models, preserving the
// API ordering.
func ListModelIDs(ctx context.Context, cfg Settings, params ListParams) ([]string, error) {
	infos, err := ListModels(ctx, cfg, params)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(infos))
	for _, info := range infos {
		if strings.TrimSpace(info.ID) != "" {
			ids = append(ids, info.ID)
		}
	}
	return ids, nil
}
