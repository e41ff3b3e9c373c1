package tags

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"tagsmith/internal/credstore"
	"tagsmith/internal/logging"
	"tagsmith/internal/repo"
)

func newTestClient(t *testing.T, handler http.Handler) (*repo.Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	store := credstore.New(filepath.Join(t.TempDir(), "config.json"), server.URL+"/")
	if err := store.Load(); err != nil {
		t.Fatalf("load creds: %v", err)
	}
	return repo.NewClient(store), server
}

func TestCollectCountsDuplicateOccurrences(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		if query.Get("metadata_fields") != "_all" || query.Get("b_size") != "1000" {
			t.Fatalf("unexpected query: %v", query)
		}
		_, _ = w.Write([]byte(`{"items":[
			{"@id":"one","Subject":["a","a"]},
			{"@id":"two","Subject":"a"},
			{"@id":"three","subject":["b"]}
		]}`))
	}))

	counts, err := NewAggregator(client, logging.NewNop()).Collect(context.Background(), "", false)
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if counts["a"] != 3 {
		t.Fatalf(`count for "a" = %d, want 3`, counts["a"])
	}
	if counts["b"] != 1 {
		t.Fatalf(`count for "b" = %d, want 1`, counts["b"])
	}
}

func TestCollectEmptyItemsYieldsEmptyMap(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"items":[]}`))
	}))

	counts, err := NewAggregator(client, logging.NewNop()).Collect(context.Background(), "", false)
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if len(counts) != 0 {
		t.Fatalf("counts = %v, want empty", counts)
	}
}

func TestCollectWithoutEndpointFails(t *testing.T) {
	store := credstore.New(filepath.Join(t.TempDir(), "config.json"), "")
	if err := store.Load(); err != nil {
		t.Fatalf("load creds: %v", err)
	}
	client := repo.NewClient(store)

	if _, err := NewAggregator(client, logging.NewNop()).Collect(context.Background(), "", false); err != repo.ErrNotAuthenticated {
		t.Fatalf("expected ErrNotAuthenticated, got %v", err)
	}
}

func TestCollectForwardsPath(t *testing.T) {
	var gotPath string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Query().Get("path")
		_, _ = w.Write([]byte(`{"items":[]}`))
	}))

	if _, err := NewAggregator(client, logging.NewNop()).Collect(context.Background(), "/de/news", false); err != nil {
		t.Fatalf("collect: %v", err)
	}
	if gotPath != "/de/news" {
		t.Fatalf("path param = %q", gotPath)
	}
}
