package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/lherron/eotdiff/internal/attribution"
	"github.com/lherron/eotdiff/internal/compare"
	"github.com/lherron/eotdiff/internal/config"
	"github.com/lherron/eotdiff/internal/cursor"
	"github.com/lherron/eotdiff/internal/domain"
	"github.com/lherron/eotdiff/internal/logging"
	"github.com/lherron/eotdiff/internal/parse"
	"github.com/lherron/eotdiff/internal/render"
	"github.com/lherron/eotdiff/internal/store"
	"github.com/lherron/eotdiff/internal/webhooks"
)

// maxEventPage caps the limit accepted by /v1/events.
const maxEventPage = 500

// DaemonOptions configures the eotdiffd daemon.
type DaemonOptions struct {
	Addr     string
	Unix     string
	Token    string
	LogLevel string
}

// ServeDaemon starts the eotdiffd daemon and blocks until it is interrupted.
// Sessions live in an in-memory database and are lost on exit.
func ServeDaemon(opts DaemonOptions) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := logging.New(os.Stderr, daemonLevel(opts, cfg))

	st, err := store.Open()
	if err != nil {
		return fmt.Errorf("failed to open session store: %w", err)
	}
	defer st.Close()

	token := opts.Token
	if token == "" {
		token = cfg.DaemonToken
	}

	server := newDaemonServer(daemonDeps{
		store:    st,
		comparer: compare.New(compare.Options{Matcher: cfg.MatchOptions(), Logger: log}),
		token:    token,
		log:      log,
		hooks:    webhooks.NewDispatcher(cfg.WebhookURLs, log),
	})
	defer server.hooks.Wait()

	httpServer := &http.Server{
		Handler:      server.handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	var listener net.Listener
	if opts.Unix != "" {
		_ = os.Remove(opts.Unix)
		listener, err = net.Listen("unix", opts.Unix)
		if err != nil {
			return fmt.Errorf("failed to listen on unix socket: %w", err)
		}
	} else {
		addr := opts.Addr
		if addr == "" {
			addr = cfg.DaemonAddr
		}
		listener, err = net.Listen("tcp", addr)
		if err != nil {
			return fmt.Errorf("failed to listen on %s: %w", addr, err)
		}
	}
	log.Info("daemon listening", "addr", listener.Addr().String(), "auth", token != "")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- httpServer.Serve(listener) }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		log.Info("daemon shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	}
}

// daemonLevel picks the flag level, then the configured one, then info.
func daemonLevel(opts DaemonOptions, cfg *config.Config) string {
	if opts.LogLevel != "" {
		return logging.ParseLevel(opts.LogLevel)
	}
	return cfg.LevelOr(logging.LevelInfo)
}

type daemonDeps struct {
	store    *store.Store
	comparer *compare.Comparer
	token    string
	log      *logging.Logger
	hooks    *webhooks.Dispatcher
}

type daemonServer struct {
	store    *store.Store
	comparer *compare.Comparer
	token    string
	log      *logging.Logger
	hooks    *webhooks.Dispatcher
}

func newDaemonServer(deps daemonDeps) *daemonServer {
	if deps.log == nil {
		deps.log = logging.NopLogger()
	}
	if deps.comparer == nil {
		deps.comparer = compare.New(compare.Options{Logger: deps.log})
	}
	return &daemonServer{
		store:    deps.store,
		comparer: deps.comparer,
		token:    deps.token,
		log:      deps.log,
		hooks:    deps.hooks,
	}
}

func (s *daemonServer) handler() http.Handler {
	mux := http.NewServeMux()
	s.registerRoutes(mux)
	return s.withLogging(mux)
}

func (s *daemonServer) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/health", s.withAuth(s.handleHealth))

	mux.HandleFunc("/v1/sessions/create", s.withAuth(s.handleSessionsCreate))
	mux.HandleFunc("/v1/compare", s.withAuth(s.handleCompare))
	mux.HandleFunc("/v1/attribution/apply", s.withAuth(s.handleAttributionApply))

	mux.HandleFunc("/v1/result", s.withAuth(s.handleResult))
	mux.HandleFunc("/v1/export/csv", s.withAuth(s.handleExportCSV))
	mux.HandleFunc("/v1/events", s.withAuth(s.handleEvents))
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *daemonServer) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.log.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds())
	})
}

func (s *daemonServer) withAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.token != "" {
			token := r.Header.Get("Authorization")
			if strings.HasPrefix(token, "Bearer ") {
				token = strings.TrimPrefix(token, "Bearer ")
			}
			if token == "" {
				token = r.Header.Get("X-Eotdiff-Token")
			}
			if token != s.token {
				s.writeError(w, http.StatusUnauthorized, fmt.Errorf("unauthorized"))
				return
			}
		}

		next(w, r)
	}
}

func (s *daemonServer) decodeJSON(r *http.Request, dst interface{}) error {
	decoder := json.NewDecoder(r.Body)
	return decoder.Decode(dst)
}

func (s *daemonServer) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func (s *daemonServer) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, map[string]interface{}{
		"message": err.Error(),
	})
}

// writeStoreError maps session store failures onto HTTP statuses.
func (s *daemonServer) writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound), errors.Is(err, store.ErrNoResult):
		s.writeError(w, http.StatusNotFound, err)
	default:
		s.log.Error("session store failure", "error", err)
		s.writeError(w, http.StatusInternalServerError, err)
	}
}

func (s *daemonServer) sessionParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return "", false
	}
	id := r.URL.Query().Get("session_id")
	if id == "" {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("session_id is required"))
		return "", false
	}
	return id, true
}

func (s *daemonServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"ok":   true,
		"time": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *daemonServer) handleSessionsCreate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}

	id, err := s.store.Sessions.Create()
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.log.WithSession(id).Info("session created")

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"session_id": id,
	})
}

type compareRequest struct {
	SessionID       string                 `json:"session_id"`
	LeftTasks       []domain.Task          `json:"left_tasks"`
	RightTasks      []domain.Task          `json:"right_tasks"`
	IncludeBaseline bool                   `json:"include_baseline"`
	Overrides       []domain.MatchOverride `json:"overrides,omitempty"`
}

func (s *daemonServer) handleCompare(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}

	var req compareRequest
	if err := s.decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.SessionID == "" {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("session_id is required"))
		return
	}
	if err := parse.Normalize(req.LeftTasks); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("left_tasks: %w", err))
		return
	}
	if err := parse.Normalize(req.RightTasks); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("right_tasks: %w", err))
		return
	}

	unlock := s.store.Sessions.Lock(req.SessionID)
	defer unlock()

	amap, err := s.store.Sessions.Assignments(req.SessionID)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}

	result := s.comparer.Compare(compare.Input{
		Left:            req.LeftTasks,
		Right:           req.RightTasks,
		IncludeBaseline: req.IncludeBaseline,
		Overrides:       req.Overrides,
		Assignments:     amap,
	})

	if err := s.store.Sessions.SaveCompare(req.SessionID, &result, attribution.BuildAssignmentMap(result.Diffs, amap)); err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.hooks.Dispatch(webhooks.NewPayload(domain.EventCompareCompleted, req.SessionID, &result))

	s.writeJSON(w, http.StatusOK, result)
}

type attributionApplyRequest struct {
	SessionID   string                         `json:"session_id"`
	Assignments []domain.AttributionAssignment `json:"assignments"`
	Bulk        *domain.AttributionBulkFilter  `json:"bulk,omitempty"`
}

func (s *daemonServer) handleAttributionApply(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}

	var req attributionApplyRequest
	if err := s.decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.SessionID == "" {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("session_id is required"))
		return
	}
	attrReq := domain.AttributionRequest{Assignments: req.Assignments, Bulk: req.Bulk}
	attrReq.ApplyDefaults()
	if err := domain.ValidateAttributionRequest(attrReq); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	unlock := s.store.Sessions.Lock(req.SessionID)
	defer unlock()

	last, err := s.store.Sessions.LastResult(req.SessionID)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	amap, err := s.store.Sessions.Assignments(req.SessionID)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}

	updated, amap := attribution.Apply(*last, req.Assignments, req.Bulk, amap)
	if err := s.store.Sessions.SaveAttribution(req.SessionID, &updated, amap, len(req.Assignments), req.Bulk != nil); err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.log.WithSession(req.SessionID).Info("attribution applied",
		"assignments", len(req.Assignments),
		"bulk", req.Bulk != nil)
	s.hooks.Dispatch(webhooks.NewPayload(domain.EventAttributionApplied, req.SessionID, &updated))

	s.writeJSON(w, http.StatusOK, updated)
}

func (s *daemonServer) handleResult(w http.ResponseWriter, r *http.Request) {
	id, ok := s.sessionParam(w, r)
	if !ok {
		return
	}

	result, err := s.store.Sessions.LastResult(id)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *daemonServer) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	id, ok := s.sessionParam(w, r)
	if !ok {
		return
	}

	result, err := s.store.Sessions.LastResult(id)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"eot-evidence-%s.csv\"", id))
	w.WriteHeader(http.StatusOK)
	if err := render.WriteEvidencePack(w, *result); err != nil {
		s.log.WithSession(id).Error("failed to write evidence pack", "error", err)
	}
}

func (s *daemonServer) handleEvents(w http.ResponseWriter, r *http.Request) {
	id, ok := s.sessionParam(w, r)
	if !ok {
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 || n > maxEventPage {
			s.writeError(w, http.StatusBadRequest, fmt.Errorf("limit must be between 0 and %d", maxEventPage))
			return
		}
		limit = n
	}
	after, err := cursor.After(r.URL.Query().Get("cursor"), id)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	list, err := s.store.Sessions.EventsAfter(id, after, limit)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}

	resp := map[string]interface{}{
		"session_id": id,
		"events":     list,
	}
	if limit > 0 && len(list) == limit {
		next := cursor.Cursor{SessionID: id, LastID: list[len(list)-1].ID}
		if encoded, err := next.Encode(); err == nil {
			resp["next_cursor"] = encoded
		}
	}
	s.writeJSON(w, http.StatusOK, resp)
}
