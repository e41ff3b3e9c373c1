// Package api defines the JSON payload shapes exchanged between the tagsmith
// daemon and its clients.
package api

import (
	"tagsmith/internal/history"
	"tagsmith/internal/tags"
)

// HealthResponse reports daemon liveness.
type HealthResponse struct {
	Status string `json:"status"`
	PID    int    `json:"pid"`
}

// SessionInfo describes the active endpoint and authentication state. The
// raw token never leaves the daemon.
type SessionInfo struct {
	Base          string `json:"base"`
	Authenticated bool   `json:"authenticated"`
	Mode          string `json:"mode,omitempty"`
	Username      string `json:"username,omitempty"`
	TokenExpiry   *int64 `json:"token_exp,omitempty"`
}

// LoginRequest carries credentials for establishing a session.
type LoginRequest struct {
	Base     string `json:"base,omitempty"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// EndpointRequest switches the configured base endpoint.
type EndpointRequest struct {
	Base string `json:"base"`
}

// GetResponse wraps a raw repository fetch. Data carries whatever JSON value
// the remote returned.
type GetResponse struct {
	URL  string `json:"url"`
	Data any    `json:"data"`
}

// ItemView is a transport-friendly projection of a content item.
type ItemView struct {
	ID          string   `json:"@id"`
	Type        string   `json:"@type,omitempty"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	ReviewState string   `json:"review_state,omitempty"`
	Modified    string   `json:"modified,omitempty"`
	Subjects    []string `json:"subjects"`
}

// ItemListResponse wraps a collection of items.
type ItemListResponse struct {
	Items []ItemView `json:"items"`
}

// TagCount is one tag with its occurrence count.
type TagCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// TagCountsResponse carries tag frequencies for a subtree, ordered by count
// descending then name ascending.
type TagCountsResponse struct {
	Tags  []TagCount `json:"tags"`
	Total int        `json:"total"`
}

// SimilarResponse carries one similarity scan's results. ScanID correlates
// progress polling for all-pairs scans; query-mode scans leave it empty.
type SimilarResponse struct {
	ScanID  string       `json:"scan_id,omitempty"`
	Matches []tags.Match `json:"matches"`
}

// MergeRequest folds several source tags into one target.
type MergeRequest struct {
	Sources  []string `json:"sources"`
	Target   string   `json:"target"`
	Path     string   `json:"path,omitempty"`
	DryRun   bool     `json:"dry_run"`
	SkipAuth bool     `json:"no_auth,omitempty"`
}

// RenameRequest rewrites one tag to a new spelling.
type RenameRequest struct {
	Old      string `json:"old_tag"`
	New      string `json:"new_tag"`
	Path     string `json:"path,omitempty"`
	DryRun   bool   `json:"dry_run"`
	SkipAuth bool   `json:"no_auth,omitempty"`
}

// RemoveRequest strips one tag everywhere it appears.
type RemoveRequest struct {
	Tag      string `json:"tag"`
	Path     string `json:"path,omitempty"`
	DryRun   bool   `json:"dry_run"`
	SkipAuth bool   `json:"no_auth,omitempty"`
}

// HistoryResponse wraps recorded audit events, newest first.
type HistoryResponse struct {
	Events []history.Event `json:"events"`
}
