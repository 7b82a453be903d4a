// Package http exposes the engine as a JSON REST API routed with chi.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/aretw0/flowstate/internal/logging"
	"github.com/aretw0/flowstate/internal/sanitize"
	"github.com/aretw0/flowstate/pkg/domain"
	"github.com/aretw0/flowstate/pkg/loader"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Engine defines the operations the API serves.
type Engine interface {
	DefineWorkflow(ctx context.Context, def *domain.WorkflowDefinition) (*domain.WorkflowDefinition, error)
	GetAllWorkflows() []*domain.WorkflowDefinition
	ExportWorkflow(workflowName string) (*domain.ExportedWorkflow, error)
	GetWorkflowStats(ctx context.Context, workflowName string) (*domain.WorkflowStats, error)

	CreateInstance(ctx context.Context, workflowName, entityID string, initialData map[string]any, userID string) (*domain.WorkflowInstance, error)
	GetInstance(ctx context.Context, workflowName, entityID string) (*domain.WorkflowInstance, error)
	ListInstances(ctx context.Context, workflowName string) ([]*domain.WorkflowInstance, error)
	ResetInstance(ctx context.Context, workflowName, entityID, userID string) (*domain.WorkflowInstance, error)
	DeleteInstance(ctx context.Context, workflowName, entityID string) (bool, error)
	GetHistory(ctx context.Context, workflowName, entityID string) ([]domain.HistoryEntry, error)

	Transition(ctx context.Context, workflowName, entityID, event string, opts domain.TransitionOptions) (*domain.WorkflowInstance, error)
	CanTransition(ctx context.Context, workflowName, entityID, event string) bool
	GetAvailableTransitions(ctx context.Context, workflowName, entityID string) ([]domain.StateTransition, error)

	Watch(ctx context.Context, prefix string) <-chan domain.Event
}

// Server holds the handler dependencies.
type Server struct {
	Engine  Engine
	Loader  *loader.Loader
	Metrics http.Handler
	Version string
	logger  *slog.Logger
}

// Option configures the handler.
type Option func(*Server)

// WithLoader enables POST /workflows, which accepts YAML (or JSON) definitions.
func WithLoader(l *loader.Loader) Option {
	return func(s *Server) {
		s.Loader = l
	}
}

// WithMetricsHandler mounts h on GET /metrics, typically promhttp.Handler().
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) {
		s.Metrics = h
	}
}

// WithVersion sets the version reported by GET /health.
func WithVersion(v string) Option {
	return func(s *Server) {
		s.Version = v
	}
}

// WithLogger sets the logger used for request and error logs.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewHandler creates a new HTTP handler for the engine.
func NewHandler(engine Engine, opts ...Option) http.Handler {
	s := &Server{Engine: engine, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/health", s.Health)
	if s.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.Metrics)
	}
	r.Get("/events", s.SubscribeEvents)

	r.Route("/workflows", func(r chi.Router) {
		r.Get("/", s.ListWorkflows)
		r.Post("/", s.DefineWorkflow)
		r.Route("/{workflow}", func(r chi.Router) {
			r.Get("/", s.GetWorkflow)
			r.Get("/stats", s.GetStats)
			r.Get("/instances", s.ListInstances)
			r.Post("/instances", s.CreateInstance)
			r.Route("/instances/{entity}", func(r chi.Router) {
				r.Get("/", s.GetInstance)
				r.Delete("/", s.DeleteInstance)
				r.Get("/history", s.GetHistory)
				r.Post("/reset", s.ResetInstance)
				r.Get("/transitions", s.AvailableTransitions)
				r.Post("/transitions", s.Transition)
				r.Get("/transitions/{event}", s.CanTransition)
			})
		})
	})

	return enableCORS(r)
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Custom-Header")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

// Health handles GET /health.
func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": s.Version})
}

// ListWorkflows handles GET /workflows.
func (s *Server) ListWorkflows(w http.ResponseWriter, r *http.Request) {
	defs := s.Engine.GetAllWorkflows()
	out := make([]*domain.ExportedWorkflow, len(defs))
	for i, def := range defs {
		out[i] = domain.Export(def)
	}
	s.writeJSON(w, http.StatusOK, out)
}

// DefineWorkflow handles POST /workflows.
func (s *Server) DefineWorkflow(w http.ResponseWriter, r *http.Request) {
	if s.Loader == nil {
		s.writeError(w, http.StatusNotImplemented, errors.New("defining workflows over HTTP is disabled"))
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("failed to read body: %w", err))
		return
	}
	defs, err := s.Loader.Parse(body)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	if len(defs) == 0 {
		s.writeError(w, http.StatusBadRequest, errors.New("no workflow document in body"))
		return
	}

	out := make([]*domain.ExportedWorkflow, 0, len(defs))
	for _, def := range defs {
		stored, err := s.Engine.DefineWorkflow(r.Context(), def)
		if err != nil {
			s.fail(w, err)
			return
		}
		out = append(out, domain.Export(stored))
	}
	s.writeJSON(w, http.StatusCreated, out)
}

// GetWorkflow handles GET /workflows/{workflow}.
func (s *Server) GetWorkflow(w http.ResponseWriter, r *http.Request) {
	exported, err := s.Engine.ExportWorkflow(chi.URLParam(r, "workflow"))
	if err != nil {
		s.fail(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, exported)
}

// GetStats handles GET /workflows/{workflow}/stats.
func (s *Server) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.Engine.GetWorkflowStats(r.Context(), chi.URLParam(r, "workflow"))
	if err != nil {
		s.fail(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, stats)
}

// ListInstances handles GET /workflows/{workflow}/instances.
func (s *Server) ListInstances(w http.ResponseWriter, r *http.Request) {
	list, err := s.Engine.ListInstances(r.Context(), chi.URLParam(r, "workflow"))
	if err != nil {
		s.fail(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, list)
}

// CreateInstanceRequest is the body of POST /workflows/{workflow}/instances.
type CreateInstanceRequest struct {
	EntityID string         `json:"entity_id"`
	Data     map[string]any `json:"data,omitempty"`
	UserID   string         `json:"user_id,omitempty"`
}

// CreateInstance handles POST /workflows/{workflow}/instances.
func (s *Server) CreateInstance(w http.ResponseWriter, r *http.Request) {
	var body CreateInstanceRequest
	if !s.decode(w, r, &body) {
		return
	}
	if err := sanitize.Identifiers("entity_id", body.EntityID, "user_id", body.UserID); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	inst, err := s.Engine.CreateInstance(r.Context(), chi.URLParam(r, "workflow"), body.EntityID, body.Data, body.UserID)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, inst)
}

// GetInstance handles GET /workflows/{workflow}/instances/{entity}.
func (s *Server) GetInstance(w http.ResponseWriter, r *http.Request) {
	workflow, entity := chi.URLParam(r, "workflow"), chi.URLParam(r, "entity")
	inst, err := s.Engine.GetInstance(r.Context(), workflow, entity)
	if err != nil {
		s.fail(w, err)
		return
	}
	if inst == nil {
		s.fail(w, fmt.Errorf("%w: %s", domain.ErrInstanceNotFound, domain.InstanceKey(workflow, entity)))
		return
	}
	s.writeJSON(w, http.StatusOK, inst)
}

// DeleteInstance handles DELETE /workflows/{workflow}/instances/{entity}.
func (s *Server) DeleteInstance(w http.ResponseWriter, r *http.Request) {
	workflow, entity := chi.URLParam(r, "workflow"), chi.URLParam(r, "entity")
	deleted, err := s.Engine.DeleteInstance(r.Context(), workflow, entity)
	if err != nil {
		s.fail(w, err)
		return
	}
	if !deleted {
		s.fail(w, fmt.Errorf("%w: %s", domain.ErrInstanceNotFound, domain.InstanceKey(workflow, entity)))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetHistory handles GET /workflows/{workflow}/instances/{entity}/history.
func (s *Server) GetHistory(w http.ResponseWriter, r *http.Request) {
	history, err := s.Engine.GetHistory(r.Context(), chi.URLParam(r, "workflow"), chi.URLParam(r, "entity"))
	if err != nil {
		s.fail(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, history)
}

// ResetRequest is the body of POST .../reset.
type ResetRequest struct {
	UserID string `json:"user_id,omitempty"`
}

// ResetInstance handles POST /workflows/{workflow}/instances/{entity}/reset.
func (s *Server) ResetInstance(w http.ResponseWriter, r *http.Request) {
	var body ResetRequest
	if !s.decode(w, r, &body) {
		return
	}
	if err := sanitize.Identifier("user_id", body.UserID); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	inst, err := s.Engine.ResetInstance(r.Context(), chi.URLParam(r, "workflow"), chi.URLParam(r, "entity"), body.UserID)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, inst)
}

// AvailableTransitions handles GET .../transitions.
func (s *Server) AvailableTransitions(w http.ResponseWriter, r *http.Request) {
	available, err := s.Engine.GetAvailableTransitions(r.Context(), chi.URLParam(r, "workflow"), chi.URLParam(r, "entity"))
	if err != nil {
		s.fail(w, err)
		return
	}
	out := make([]domain.ExportedTransition, len(available))
	for i, t := range available {
		out[i] = domain.ExportTransition(t)
	}
	s.writeJSON(w, http.StatusOK, out)
}

// CanTransitionResponse is the body of GET .../transitions/{event}.
type CanTransitionResponse struct {
	Event   string `json:"event"`
	Allowed bool   `json:"allowed"`
}

// CanTransition handles GET .../transitions/{event}.
func (s *Server) CanTransition(w http.ResponseWriter, r *http.Request) {
	event := chi.URLParam(r, "event")
	allowed := s.Engine.CanTransition(r.Context(), chi.URLParam(r, "workflow"), chi.URLParam(r, "entity"), event)
	s.writeJSON(w, http.StatusOK, CanTransitionResponse{Event: event, Allowed: allowed})
}

// TransitionRequest is the body of POST .../transitions.
type TransitionRequest struct {
	Event  string         `json:"event"`
	Data   map[string]any `json:"data,omitempty"`
	UserID string         `json:"user_id,omitempty"`
	Force  bool           `json:"force,omitempty"`
}

// TransitionErrorResponse is returned when the state changed but an after hook failed.
type TransitionErrorResponse struct {
	Error    string                   `json:"error"`
	Instance *domain.WorkflowInstance `json:"instance"`
}

// Transition handles POST .../transitions.
func (s *Server) Transition(w http.ResponseWriter, r *http.Request) {
	var body TransitionRequest
	if !s.decode(w, r, &body) {
		return
	}
	if err := sanitize.Identifiers("event", body.Event, "user_id", body.UserID); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	inst, err := s.Engine.Transition(r.Context(), chi.URLParam(r, "workflow"), chi.URLParam(r, "entity"), body.Event, domain.TransitionOptions{
		UserID: body.UserID,
		Data:   body.Data,
		Force:  body.Force,
	})
	if err != nil && inst != nil {
		// After hook failed: the transition is applied, report both.
		s.logger.Error("Transition applied but after hook failed", "err", err)
		s.writeJSON(w, http.StatusInternalServerError, TransitionErrorResponse{Error: err.Error(), Instance: inst})
		return
	}
	if err != nil {
		s.fail(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, inst)
}

// SubscribeEvents handles the GET /events request (SSE).
// The optional "topic" query parameter filters by topic prefix.
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	events := s.Engine.Watch(r.Context(), r.URL.Query().Get("topic"))

	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			data, err := json.Marshal(event)
			if err != nil {
				s.logger.Error("SSE encode failed", "topic", event.Topic, "err", err)
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Topic, data)
			flusher.Flush()
		}
	}
}

// -- Helpers --

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Error string `json:"error"`
}

// StatusFor maps engine errors to HTTP status codes.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, domain.ErrGuardFailed):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("Request failed", "err", err)
	}
	s.writeError(w, status, err)
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, ErrorResponse{Error: err.Error()})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Response encode failed", "err", err)
	}
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if r.ContentLength == 0 {
		return true
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return false
	}
	return true
}
