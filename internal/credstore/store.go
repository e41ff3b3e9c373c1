// Package credstore persists the session and base-endpoint state for the
// remote content repository. It is the single source of truth for "are we
// authenticated, against which endpoint".
package credstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// SessionModeToken is the only supported authentication mode.
const SessionModeToken = "token"

// Session holds a bearer credential for the configured base endpoint.
// Expiry, when present, is a scheduling hint decoded from the token payload;
// it is never cryptographically verified.
type Session struct {
	Mode      string `json:"mode"`
	Token     string `json:"token"`
	UpdatedAt int64  `json:"updated_at"`
	Username  string `json:"username,omitempty"`
	Expiry    *int64 `json:"token_exp,omitempty"`
}

type fileState struct {
	Base string   `json:"base"`
	Auth *Session `json:"auth,omitempty"`
}

// Store guards the process-wide credential state. Every mutation is performed
// under one mutex covering the read-modify-write-persist sequence, and is
// flushed to a 0600 JSON file.
type Store struct {
	path        string
	defaultBase string

	mu    sync.Mutex
	state fileState
}

// New builds a store rooted at path. defaultBase is used until a base endpoint
// has been saved.
func New(path, defaultBase string) *Store {
	if trimmed := strings.TrimRight(defaultBase, "/"); trimmed != "" {
		defaultBase = trimmed + "/"
	}
	return &Store{path: path, defaultBase: defaultBase}
}

// Load reads persisted state from disk. A missing or malformed file resolves
// to defaults rather than failing startup.
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.state = fileState{Base: s.defaultBase}
			return nil
		}
		return fmt.Errorf("read credential state: %w", err)
	}

	var state fileState
	if err := json.Unmarshal(data, &state); err != nil {
		s.state = fileState{Base: s.defaultBase}
		return nil
	}
	if strings.TrimSpace(state.Base) == "" {
		state.Base = s.defaultBase
	}
	s.state = state
	return nil
}

// Base returns the configured base endpoint.
func (s *Store) Base() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Base
}

// Session returns a snapshot of the current session, or nil when none is held.
func (s *Store) Session() *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Auth == nil {
		return nil
	}
	session := *s.state.Auth
	return &session
}

// SetBase replaces the base endpoint, clears any held session, and persists.
// Switching endpoints invalidates the credential.
func (s *Store) SetBase(base string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Base = base
	s.state.Auth = nil
	return s.saveLocked()
}

// SetSession replaces the session wholesale (and optionally the base) and persists.
func (s *Store) SetSession(base string, session Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if strings.TrimSpace(base) != "" {
		s.state.Base = base
	}
	s.state.Auth = &session
	return s.saveLocked()
}

// Clear drops the session and persists. The base endpoint is retained.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Auth = nil
	return s.saveLocked()
}

// Save persists the current state.
func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked()
}

func (s *Store) saveLocked() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("ensure credential directory: %w", err)
	}
	data, err := json.MarshalIndent(s.state, "", "  ")
	if err != nil {
		return fmt.Errorf("encode credential state: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("write credential state: %w", err)
	}
	return nil
}
