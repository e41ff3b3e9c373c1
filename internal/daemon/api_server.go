package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"tagsmith/internal/api"
	"tagsmith/internal/history"
	"tagsmith/internal/logging"
	"tagsmith/internal/repo"
)

type apiServer struct {
	bind   string
	logger *slog.Logger
	daemon *Daemon

	listener net.Listener
	server   *http.Server
}

func newAPIServer(bind string, d *Daemon, logger *slog.Logger) *apiServer {
	srv := &apiServer{
		bind:   strings.TrimSpace(bind),
		logger: logging.WithComponent(logger, "api"),
		daemon: d,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/health", srv.handleHealth)
	mux.HandleFunc("/api/session", srv.handleSession)
	mux.HandleFunc("/api/login", srv.handleLogin)
	mux.HandleFunc("/api/logout", srv.handleLogout)
	mux.HandleFunc("/api/endpoint", srv.handleEndpoint)
	mux.HandleFunc("/api/get", srv.handleGet)
	mux.HandleFunc("/api/items", srv.handleItems)
	mux.HandleFunc("/api/tags", srv.handleTags)
	mux.HandleFunc("/api/similar-tags", srv.handleSimilarTags)
	mux.HandleFunc("/api/similar-tags/progress", srv.handleProgress)
	mux.HandleFunc("/api/tags/merge", srv.handleMerge)
	mux.HandleFunc("/api/tags/rename", srv.handleRename)
	mux.HandleFunc("/api/tags/remove", srv.handleRemove)
	mux.HandleFunc("/api/history", srv.handleHistory)
	mux.HandleFunc("/api/shutdown", srv.handleShutdown)

	srv.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}
	return srv
}

func (s *apiServer) start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

// addr returns the bound address once the server is listening.
func (s *apiServer) addr() string {
	if s.listener == nil {
		return s.bind
	}
	return s.listener.Addr().String()
}

func (s *apiServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.writeJSON(w, http.StatusOK, api.HealthResponse{Status: "ok", PID: os.Getpid()})
}

func (s *apiServer) handleSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	creds := s.daemon.creds
	s.writeJSON(w, http.StatusOK, api.FromSession(creds.Base(), creds.Session()))
}

func (s *apiServer) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req api.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Username) == "" || req.Password == "" {
		s.writeError(w, http.StatusBadRequest, "username and password are required")
		return
	}
	if err := s.daemon.client.Login(r.Context(), req.Base, req.Username, req.Password); err != nil {
		s.writeRepoError(w, err)
		return
	}
	creds := s.daemon.creds
	s.writeJSON(w, http.StatusOK, api.FromSession(creds.Base(), creds.Session()))
}

func (s *apiServer) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if err := s.daemon.creds.Clear(); err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "logged out"})
}

func (s *apiServer) handleEndpoint(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req api.EndpointRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	base := strings.TrimSpace(req.Base)
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		s.writeError(w, http.StatusBadRequest, "base must be an http(s) URL")
		return
	}
	if err := s.daemon.creds.SetBase(base); err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	creds := s.daemon.creds
	s.writeJSON(w, http.StatusOK, api.FromSession(creds.Base(), creds.Session()))
}

func (s *apiServer) handleGet(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	query := r.URL.Query()
	path := query.Get("path")
	if strings.TrimSpace(path) == "" {
		s.writeError(w, http.StatusBadRequest, "path is required")
		return
	}
	var params url.Values
	if raw := query.Get("params"); raw != "" {
		parsed, err := url.ParseQuery(raw)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid params")
			return
		}
		params = parsed
	}
	target, data, err := s.daemon.client.Get(r.Context(), path, nil, params, boolParam(query, "no_auth"))
	if err != nil {
		s.writeRepoError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.GetResponse{URL: target, Data: data})
}

func (s *apiServer) handleItems(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	query := r.URL.Query()
	portalType := query.Get("type")
	if strings.TrimSpace(portalType) == "" {
		portalType = "Document"
	}
	items, err := s.daemon.client.SearchByType(r.Context(), portalType, query.Get("path"), boolParam(query, "no_auth"))
	if err != nil {
		s.writeRepoError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.ItemListResponse{Items: api.FromItems(items)})
}

func (s *apiServer) handleTags(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	query := r.URL.Query()
	counts, err := s.daemon.aggregator.Collect(r.Context(), query.Get("path"), boolParam(query, "no_auth"))
	if err != nil {
		s.writeRepoError(w, err)
		return
	}
	total := 0
	entries := make([]api.TagCount, 0, len(counts))
	for tag, count := range counts {
		total += count
		entries = append(entries, api.TagCount{Name: tag, Count: count})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Count != entries[j].Count {
			return entries[i].Count > entries[j].Count
		}
		return strings.ToLower(entries[i].Name) < strings.ToLower(entries[j].Name)
	})
	s.writeJSON(w, http.StatusOK, api.TagCountsResponse{Tags: entries, Total: total})
}

func (s *apiServer) handleSimilarTags(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	query := r.URL.Query()
	threshold := s.daemon.cfg.Similarity.DefaultThreshold
	if raw := query.Get("threshold"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 || parsed > 100 {
			s.writeError(w, http.StatusBadRequest, "threshold must be between 0 and 100")
			return
		}
		threshold = parsed
	}

	counts, err := s.daemon.aggregator.Collect(r.Context(), query.Get("path"), boolParam(query, "no_auth"))
	if err != nil {
		s.writeRepoError(w, err)
		return
	}

	if tag := strings.TrimSpace(query.Get("tag")); tag != "" {
		matches := s.daemon.engine.Query(tag, counts, threshold)
		s.writeJSON(w, http.StatusOK, api.SimilarResponse{Matches: matches})
		return
	}

	scanID := s.daemon.engine.Board().Begin(len(counts))
	matches := s.daemon.engine.AllPairs(scanID, counts, threshold)
	s.daemon.record(r.Context(), history.KindScan,
		map[string]any{"threshold": threshold, "tags": len(counts), "pairs": len(matches)},
		0, 0, 0)
	s.writeJSON(w, http.StatusOK, api.SimilarResponse{ScanID: scanID, Matches: matches})
}

func (s *apiServer) handleProgress(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	state, ok := s.daemon.engine.Board().Get(r.URL.Query().Get("scan_id"))
	if !ok {
		s.writeError(w, http.StatusNotFound, "no scan in progress")
		return
	}
	s.writeJSON(w, http.StatusOK, state)
}

func (s *apiServer) handleMerge(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req api.MergeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	sources := trimAll(req.Sources)
	target := strings.TrimSpace(req.Target)
	if len(sources) == 0 || target == "" {
		s.writeError(w, http.StatusBadRequest, "sources and target are required")
		return
	}
	result, err := s.daemon.mutator.Merge(r.Context(), sources, target, req.Path, req.DryRun, req.SkipAuth)
	if err != nil {
		s.writeRepoError(w, err)
		return
	}
	if !req.DryRun {
		s.daemon.record(r.Context(), history.KindMerge,
			map[string]any{"sources": sources, "target": target, "path": req.Path},
			result.Items, result.Updated, result.Errors)
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *apiServer) handleRename(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req api.RenameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	oldTag := strings.TrimSpace(req.Old)
	newTag := strings.TrimSpace(req.New)
	if oldTag == "" || newTag == "" {
		s.writeError(w, http.StatusBadRequest, "old and new tag names are required")
		return
	}
	result, err := s.daemon.mutator.Rename(r.Context(), oldTag, newTag, req.Path, req.DryRun, req.SkipAuth)
	if err != nil {
		s.writeRepoError(w, err)
		return
	}
	if !req.DryRun {
		s.daemon.record(r.Context(), history.KindRename,
			map[string]any{"old": oldTag, "new": newTag, "path": req.Path},
			result.Items, result.Updated, result.Errors)
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *apiServer) handleRemove(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req api.RemoveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	tag := strings.TrimSpace(req.Tag)
	if tag == "" {
		s.writeError(w, http.StatusBadRequest, "tag is required")
		return
	}
	result, err := s.daemon.mutator.Remove(r.Context(), tag, req.Path, req.DryRun, req.SkipAuth)
	if err != nil {
		s.writeRepoError(w, err)
		return
	}
	if !req.DryRun {
		s.daemon.record(r.Context(), history.KindRemove,
			map[string]any{"tag": tag, "path": req.Path},
			result.Items, result.Updated, result.Errors)
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *apiServer) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.daemon.audit == nil {
		s.writeJSON(w, http.StatusOK, api.HistoryResponse{Events: []history.Event{}})
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	events, err := s.daemon.audit.Recent(r.Context(), limit)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.HistoryResponse{Events: events})
}

func (s *apiServer) handleShutdown(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "shutting down"})
	s.daemon.requestShutdown()
}

// writeRepoError maps repository failures onto HTTP statuses: missing
// authentication is the caller's problem, everything else is an upstream
// failure.
func (s *apiServer) writeRepoError(w http.ResponseWriter, err error) {
	var statusErr *repo.StatusError
	switch {
	case errors.Is(err, repo.ErrNotAuthenticated):
		s.writeError(w, http.StatusUnauthorized, err.Error())
	case errors.As(err, &statusErr):
		s.writeError(w, http.StatusBadGateway, statusErr.Error())
	case errors.Is(err, repo.ErrInvalidBody):
		s.writeError(w, http.StatusBadGateway, err.Error())
	default:
		var reqErr *repo.RequestError
		if errors.As(err, &reqErr) {
			s.writeError(w, http.StatusBadGateway, reqErr.Error())
			return
		}
		s.writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

func boolParam(query url.Values, key string) bool {
	value := query.Get(key)
	return value == "1" || strings.EqualFold(value, "true")
}

func trimAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
