package credstore

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"
)

const testBase = "https://cms.example.org/++api++/"

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store := New(filepath.Join(t.TempDir(), "config.json"), testBase)
	if err := store.Load(); err != nil {
		t.Fatalf("load: %v", err)
	}
	return store
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	store := newTestStore(t)
	if got := store.Base(); got != testBase {
		t.Fatalf("base = %q, want %q", got, testBase)
	}
	if store.Session() != nil {
		t.Fatal("expected no session")
	}
}

func TestLoadMalformedFileFallsBackToDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	store := New(path, testBase)
	if err := store.Load(); err != nil {
		t.Fatalf("load should tolerate malformed JSON, got %v", err)
	}
	if got := store.Base(); got != testBase {
		t.Fatalf("base = %q, want default", got)
	}
}

func TestSetSessionPersistsWithOwnerOnlyPermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	store := New(path, testBase)
	if err := store.Load(); err != nil {
		t.Fatalf("load: %v", err)
	}

	exp := time.Now().Add(time.Hour).Unix()
	session := Session{Mode: SessionModeToken, Token: "tok", UpdatedAt: time.Now().Unix(), Username: "admin", Expiry: &exp}
	if err := store.SetSession("https://other.example.org/api/", session); err != nil {
		t.Fatalf("set session: %v", err)
	}

	if runtime.GOOS != "windows" {
		info, err := os.Stat(path)
		if err != nil {
			t.Fatalf("stat: %v", err)
		}
		if perm := info.Mode().Perm(); perm != 0o600 {
			t.Fatalf("permissions = %o, want 600", perm)
		}
	}

	reloaded := New(path, testBase)
	if err := reloaded.Load(); err != nil {
		t.Fatalf("reload: %v", err)
	}
	got := reloaded.Session()
	if got == nil || got.Token != "tok" || got.Username != "admin" {
		t.Fatalf("session round trip mismatch: %+v", got)
	}
	if got.Expiry == nil || *got.Expiry != exp {
		t.Fatalf("expiry round trip mismatch: %+v", got.Expiry)
	}
	if reloaded.Base() != "https://other.example.org/api/" {
		t.Fatalf("base = %q", reloaded.Base())
	}
}

func TestSetBaseClearsSession(t *testing.T) {
	store := newTestStore(t)
	if err := store.SetSession("", Session{Mode: SessionModeToken, Token: "tok", UpdatedAt: 1}); err != nil {
		t.Fatalf("set session: %v", err)
	}
	if err := store.SetBase("https://elsewhere.example.org/api/"); err != nil {
		t.Fatalf("set base: %v", err)
	}
	if store.Session() != nil {
		t.Fatal("session should be cleared when base changes")
	}
	if store.Base() != "https://elsewhere.example.org/api/" {
		t.Fatalf("base = %q", store.Base())
	}
}

func TestClearDropsSessionKeepsBase(t *testing.T) {
	store := newTestStore(t)
	if err := store.SetSession("", Session{Mode: SessionModeToken, Token: "tok", UpdatedAt: 1}); err != nil {
		t.Fatalf("set session: %v", err)
	}
	if err := store.Clear(); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if store.Session() != nil {
		t.Fatal("expected session cleared")
	}
	if store.Base() != testBase {
		t.Fatalf("base should survive logout, got %q", store.Base())
	}
}

func TestSessionReturnsSnapshot(t *testing.T) {
	store := newTestStore(t)
	if err := store.SetSession("", Session{Mode: SessionModeToken, Token: "tok", UpdatedAt: 1}); err != nil {
		t.Fatalf("set session: %v", err)
	}
	snapshot := store.Session()
	snapshot.Token = "mutated"
	if store.Session().Token != "tok" {
		t.Fatal("mutating a snapshot must not affect the store")
	}
}
