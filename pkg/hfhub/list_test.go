// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package hfhub

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNextLink(t *testing.T) {
	h := http.Header{}
	h.Set("Link", `<https://huggingface.co/api/models?cursor=abc>; rel="next"`)
	if got := nextLink(h); got != "https://huggingface.co/api/models?cursor=abc" {
		t.Errorf("nextLink = %q", got)
	}

	h = http.Header{}
	if got := nextLink(h); got != "" {
		t.Errorf("expected empty next link, got %q", got)
	}

	h = http.Header{}
	h.Set("Link", `<https://x/prev>; rel="prev", <https://x/next>; rel="next"`)
	if got := nextLink(h); got != "https://x/next" {
		t.Errorf("nextLink = %q", got)
	}
}

func TestListModels_Pagination(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/models" {
			http.NotFound(w, r)
			return
		}
		switch r.URL.Query().Get("cursor") {
		case "":
			w.Header().Set("Link", fmt.Sprintf(`<%s/api/models?cursor=p2>; rel="next"`, srv.URL))
			fmt.Fprint(w, `[{"id":"org/model-a","downloads":10},{"id":"org/model-b","downloads":9}]`)
		case "p2":
			fmt.Fprint(w, `[{"id":"org/model-c","downloads":8}]`)
		default:
			http.Error(w, "bad cursor", 400)
		}
	}))
	defer srv.Close()

	cfg := Settings{Endpoint: srv.URL}
	infos, err := ListModels(context.Background(), cfg, ListParams{Sort: "downloads"})
	if err != nil {
		t.Fatalf("ListModels: %v", err)
	}
	if len(infos) != 3 {
		t.Fatalf("expected 3 models across pages, got %d", len(infos))
	}
	if infos[2].ID != "org/model-c" {
		t.Errorf("order not preserved: %v", infos)
	}
}

func TestListModels_LimitStopsEarly(t *testing.T) {
	var pages int
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pages++
		w.Header().Set("Link", fmt.Sprintf(`<%s/api/models?cursor=more>; rel="next"`, srv.URL))
		fmt.Fprint(w, `[{"id":"org/a"},{"id":"org/b"}]`)
	}))
	defer srv.Close()

	cfg := Settings{Endpoint: srv.URL}
	infos, err := ListModels(context.Background(), cfg, ListParams{Limit: 3})
	if err != nil {
		t.Fatalf("ListModels: %v", err)
	}
	if len(infos) != 3 {
		t.Errorf("expected exactly 3, got %d", len(infos))
	}
	if pages != 2 {
		t.Errorf("expected 2 page fetches, got %d", pages)
	}
}

func TestListModels_RateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "slow down", 429)
	}))
	defer srv.Close()

	cfg := Settings{Endpoint: srv.URL}
	_, err := ListModels(context.Background(), cfg, ListParams{})
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestListModelIDs_SkipsBlank(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"id":"org/a"},{"id":""},{"id":"org/b"}]`)
	}))
	defer srv.Close()

	cfg := Settings{Endpoint: srv.URL}
	ids, err := ListModelIDs(context.Background(), cfg, ListParams{})
	if err != nil {
		t.Fatalf("ListModelIDs: %v", err)
	}
	if len(ids) != 2 || ids[0] != "org/a" || ids[1] != "org/b" {
		t.Errorf("unexpected ids: %v", ids)
	}
}

func TestListParamsQuery(t *testing.T) {
	q := ListParams{
		Filter: []string{"onnx", "text-classification"},
		Full:   true,
		Config: true,
		Limit:  500,
		Sort:   "downloads",
	}.query()

	if got := q["filter"]; len(got) != 2 {
		t.Errorf("filter values: %v", got)
	}
	if q.Get("direction") != "-1" {
		t.Errorf("expected descending by default, got %q", q.Get("direction"))
	}
	if q.Get("limit") != "500" {
		t.Errorf("limit = %q", q.Get("limit"))
	}

	asc := ListParams{Sort: "likes", Ascending: true}.query()
	if asc.Get("direction") != "" {
		t.Errorf("ascending should omit direction, got %q", asc.Get("direction"))
	}
}
