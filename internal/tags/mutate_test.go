package tags

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"reflect"
	"sync"
	"testing"

	"tagsmith/internal/logging"
)

// fakeRepo serves tag searches over an in-memory item set and records
// partial updates, mimicking the remote repository's behavior.
type fakeRepo struct {
	mu       sync.Mutex
	items    map[string][]string // item name -> tags
	patched  map[string][]string // item name -> written tags
	failing  map[string]bool     // item name -> respond 500 on PATCH
	baseURL  string
	searches int
}

func newFakeRepo(items map[string][]string) *fakeRepo {
	return &fakeRepo{
		items:   items,
		patched: make(map[string][]string),
		failing: make(map[string]bool),
	}
}

func (f *fakeRepo) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch r.Method {
	case http.MethodGet:
		f.searches++
		subject := r.URL.Query().Get("Subject")
		type wireItem struct {
			ID      string   `json:"@id"`
			Title   string   `json:"title"`
			Subject []string `json:"Subject"`
		}
		var found []wireItem
		for name, tags := range f.items {
			for _, tag := range tags {
				if tag == subject {
					found = append(found, wireItem{
						ID:      f.baseURL + "/" + name,
						Title:   name,
						Subject: tags,
					})
					break
				}
			}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"items": found})
	case http.MethodPatch:
		name := r.URL.Path[1:]
		if f.failing[name] {
			http.Error(w, "conflict", http.StatusInternalServerError)
			return
		}
		var payload struct {
			Subject []string `json:"Subject"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.patched[name] = payload.Subject
		w.WriteHeader(http.StatusNoContent)
	default:
		http.Error(w, "unexpected method", http.StatusMethodNotAllowed)
	}
}

func newMutatorFixture(t *testing.T, fake *fakeRepo) *Mutator {
	t.Helper()
	client, server := newTestClient(t, fake)
	fake.baseURL = server.URL
	return NewMutator(client, logging.NewNop())
}

func TestMergeDryRunPreviewsWithoutWriting(t *testing.T) {
	fake := newFakeRepo(map[string][]string{
		"doc1": {"py", "web"},
		"doc2": {"python", "cli"},
		"doc3": {"rust"},
	})
	mutator := newMutatorFixture(t, fake)

	result, err := mutator.Merge(context.Background(), []string{"py", "python"}, "Python", "", true, false)
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if result.Items != 2 || result.Updated != 0 || result.Errors != 0 {
		t.Fatalf("result = %+v, want 2 affected, 0 written", result)
	}
	if !result.DryRun {
		t.Fatal("dry_run flag not set")
	}
	if len(fake.patched) != 0 {
		t.Fatalf("dry run wrote items: %v", fake.patched)
	}
	if len(result.Preview) != 2 {
		t.Fatalf("preview = %+v, want 2 entries", result.Preview)
	}
	for _, entry := range result.Preview {
		var hasTarget bool
		for _, tag := range entry.Proposed {
			if tag == "py" || tag == "python" {
				t.Fatalf("proposed tags still carry a source: %+v", entry)
			}
			if tag == "Python" {
				hasTarget = true
			}
		}
		if !hasTarget {
			t.Fatalf("proposed tags missing target: %+v", entry)
		}
	}
}

func TestMergeWritesRewrittenTags(t *testing.T) {
	fake := newFakeRepo(map[string][]string{
		"doc1": {"py", "web"},
		"doc2": {"python"},
	})
	mutator := newMutatorFixture(t, fake)

	result, err := mutator.Merge(context.Background(), []string{"py", "python"}, "Python", "", false, false)
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if result.Updated != 2 || result.Errors != 0 {
		t.Fatalf("result = %+v, want 2 updates", result)
	}
	if got := fake.patched["doc1"]; !reflect.DeepEqual(got, []string{"web", "Python"}) {
		t.Fatalf("doc1 written as %v", got)
	}
	if got := fake.patched["doc2"]; !reflect.DeepEqual(got, []string{"Python"}) {
		t.Fatalf("doc2 written as %v", got)
	}
}

func TestMergeDeduplicatesItemsAcrossSources(t *testing.T) {
	fake := newFakeRepo(map[string][]string{
		"doc1": {"py", "python"},
	})
	mutator := newMutatorFixture(t, fake)

	result, err := mutator.Merge(context.Background(), []string{"py", "python"}, "Python", "", false, false)
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if result.Items != 1 || result.Updated != 1 {
		t.Fatalf("result = %+v, want the item counted once", result)
	}
}

func TestMergeSkipsExistingTarget(t *testing.T) {
	fake := newFakeRepo(map[string][]string{
		"doc1": {"py", "Python"},
	})
	mutator := newMutatorFixture(t, fake)

	if _, err := mutator.Merge(context.Background(), []string{"py"}, "Python", "", false, false); err != nil {
		t.Fatalf("merge: %v", err)
	}
	if got := fake.patched["doc1"]; !reflect.DeepEqual(got, []string{"Python"}) {
		t.Fatalf("doc1 written as %v, target must not duplicate", got)
	}
}

func TestRemoveStripsTag(t *testing.T) {
	fake := newFakeRepo(map[string][]string{
		"doc1": {"deprecated", "keep"},
	})
	mutator := newMutatorFixture(t, fake)

	result, err := mutator.Remove(context.Background(), "deprecated", "", false, false)
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if result.Updated != 1 {
		t.Fatalf("result = %+v, want 1 update", result)
	}
	if got := fake.patched["doc1"]; !reflect.DeepEqual(got, []string{"keep"}) {
		t.Fatalf("doc1 written as %v, want [keep]", got)
	}
}

func TestRenameIsSingleSourceMerge(t *testing.T) {
	fake := newFakeRepo(map[string][]string{
		"doc1": {"js", "web"},
	})
	mutator := newMutatorFixture(t, fake)

	if _, err := mutator.Rename(context.Background(), "js", "JavaScript", "", false, false); err != nil {
		t.Fatalf("rename: %v", err)
	}
	if got := fake.patched["doc1"]; !reflect.DeepEqual(got, []string{"web", "JavaScript"}) {
		t.Fatalf("doc1 written as %v", got)
	}
}

func TestApplyIsolatesPerItemFailures(t *testing.T) {
	items := make(map[string][]string)
	for i := 0; i < 4; i++ {
		items[fmt.Sprintf("doc%d", i)] = []string{"old"}
	}
	fake := newFakeRepo(items)
	fake.failing["doc2"] = true
	mutator := newMutatorFixture(t, fake)

	result, err := mutator.Rename(context.Background(), "old", "new", "", false, false)
	if err != nil {
		t.Fatalf("rename: %v", err)
	}
	if result.Errors != 1 {
		t.Fatalf("errors = %d, want 1", result.Errors)
	}
	if result.Updated != 3 {
		t.Fatalf("updated = %d, want the other items written", result.Updated)
	}
	if _, ok := fake.patched["doc2"]; ok {
		t.Fatal("failing item recorded a write")
	}
}

func TestApplyNoMatches(t *testing.T) {
	fake := newFakeRepo(map[string][]string{"doc1": {"other"}})
	mutator := newMutatorFixture(t, fake)

	result, err := mutator.Remove(context.Background(), "missing", "", false, false)
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if result.Message != "No matching items found." {
		t.Fatalf("message = %q", result.Message)
	}
	if result.Items != 0 || result.Updated != 0 {
		t.Fatalf("result = %+v, want zeros", result)
	}
}

func TestRewriteSubjects(t *testing.T) {
	tests := []struct {
		name    string
		current []string
		sources []string
		target  string
		want    []string
	}{
		{"merge", []string{"py", "web"}, []string{"py"}, "Python", []string{"web", "Python"}},
		{"remove", []string{"deprecated", "keep"}, []string{"deprecated"}, "", []string{"keep"}},
		{"target present", []string{"py", "Python"}, []string{"py"}, "Python", []string{"Python"}},
		{"no sources present", []string{"a", "b"}, []string{"c"}, "d", []string{"a", "b", "d"}},
		{"empty current", nil, []string{"x"}, "y", []string{"y"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := rewriteSubjects(tt.current, tt.sources, tt.target); !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("rewriteSubjects(%v, %v, %q) = %v, want %v", tt.current, tt.sources, tt.target, got, tt.want)
			}
		})
	}
}
