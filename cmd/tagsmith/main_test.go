package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"tagsmith/internal/api"
	"tagsmith/internal/tags"
)

// writeTestConfig points the CLI at bind and returns the config file path.
func writeTestConfig(t *testing.T, bind string) string {
	t.Helper()
	base := t.TempDir()
	content := fmt.Sprintf(`[paths]
state_dir = %q
log_dir = %q
api_bind = %q

[remote]
default_base = "https://demo.example/++api++/"
`, filepath.Join(base, "state"), filepath.Join(base, "logs"), bind)

	path := filepath.Join(base, "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func runCLI(t *testing.T, configPath string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--config", configPath}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func requireContains(t *testing.T, haystack, needle string) {
	t.Helper()
	if !strings.Contains(haystack, needle) {
		t.Fatalf("output %q does not contain %q", haystack, needle)
	}
}

func fakeDaemonBind(t *testing.T, handler http.HandlerFunc) string {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return strings.TrimPrefix(server.URL, "http://")
}

func TestConfigInitCommand(t *testing.T) {
	target := filepath.Join(t.TempDir(), "config.toml")
	out, err := runCLI(t, "", "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	if _, err := runCLI(t, "", "config", "init", "--path", target); err == nil {
		t.Fatal("second init without --overwrite should fail")
	}
}

func TestTagsCommandRendersTable(t *testing.T) {
	bind := fakeDaemonBind(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(api.TagCountsResponse{
			Tags:  []api.TagCount{{Name: "python", Count: 5}, {Name: "rust", Count: 2}},
			Total: 7,
		})
	})
	configPath := writeTestConfig(t, bind)

	out, err := runCLI(t, configPath, "tags")
	if err != nil {
		t.Fatalf("tags: %v", err)
	}
	requireContains(t, out, "python")
	requireContains(t, out, "2 distinct tags, 7 occurrences")
}

func TestMergeCommandDryRunOutput(t *testing.T) {
	bind := fakeDaemonBind(t, func(w http.ResponseWriter, r *http.Request) {
		var req api.MergeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if !req.DryRun {
			t.Fatal("merge without --apply must request a dry run")
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"items":   2,
			"dry_run": true,
			"preview": []map[string]any{
				{"title": "Doc", "current": []string{"py"}, "updated": []string{"Python"}},
			},
		})
	})
	configPath := writeTestConfig(t, bind)

	out, err := runCLI(t, configPath, "merge", "py", "--into", "Python")
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	requireContains(t, out, "Dry run: 2 items would be updated")
	requireContains(t, out, "Proposed Tags")
}

func TestMergeCommandRequiresTarget(t *testing.T) {
	configPath := writeTestConfig(t, "127.0.0.1:1")
	if _, err := runCLI(t, configPath, "merge", "py"); err == nil {
		t.Fatal("merge without --into should fail")
	}
}

func TestStatusCommandDaemonDown(t *testing.T) {
	configPath := writeTestConfig(t, "127.0.0.1:1")

	out, err := runCLI(t, configPath, "status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "not running")
}

func TestSimilarCommandJSONOutput(t *testing.T) {
	bind := fakeDaemonBind(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(api.SimilarResponse{
			ScanID:  "scan-1",
			Matches: []tags.Match{{Tag: "python", Count: 5, Score: 95, MatchedAgainst: "pythons"}},
		})
	})
	configPath := writeTestConfig(t, bind)

	out, err := runCLI(t, configPath, "--json", "similar")
	if err != nil {
		t.Fatalf("similar: %v", err)
	}
	requireContains(t, out, `"scan_id": "scan-1"`)
	requireContains(t, out, `"similarity": 95`)
}
