// Package mcp exposes the engine to Model Context Protocol clients as a set of tools.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/aretw0/flowstate/internal/logging"
	"github.com/aretw0/flowstate/internal/sanitize"
	"github.com/aretw0/flowstate/pkg/domain"
	"github.com/aretw0/flowstate/pkg/loader"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// WorkflowsURI is the resource listing every registered workflow.
const WorkflowsURI = "flowstate://workflows"

// Engine defines the operations the MCP server exposes.
type Engine interface {
	DefineWorkflow(ctx context.Context, def *domain.WorkflowDefinition) (*domain.WorkflowDefinition, error)
	GetAllWorkflows() []*domain.WorkflowDefinition
	ExportWorkflow(workflowName string) (*domain.ExportedWorkflow, error)
	GetWorkflowStats(ctx context.Context, workflowName string) (*domain.WorkflowStats, error)

	CreateInstance(ctx context.Context, workflowName, entityID string, initialData map[string]any, userID string) (*domain.WorkflowInstance, error)
	GetInstance(ctx context.Context, workflowName, entityID string) (*domain.WorkflowInstance, error)
	ResetInstance(ctx context.Context, workflowName, entityID, userID string) (*domain.WorkflowInstance, error)
	DeleteInstance(ctx context.Context, workflowName, entityID string) (bool, error)
	GetHistory(ctx context.Context, workflowName, entityID string) ([]domain.HistoryEntry, error)

	Transition(ctx context.Context, workflowName, entityID, event string, opts domain.TransitionOptions) (*domain.WorkflowInstance, error)
	CanTransition(ctx context.Context, workflowName, entityID, event string) bool
	GetAvailableTransitions(ctx context.Context, workflowName, entityID string) ([]domain.StateTransition, error)
}

// Server wraps the engine and exposes it as an MCP server.
type Server struct {
	engine    Engine
	loader    *loader.Loader
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// Option configures the Server.
type Option func(*Server)

// WithLoader enables the define_workflow tool.
func WithLoader(l *loader.Loader) Option {
	return func(s *Server) {
		s.loader = l
	}
}

// WithLogger sets the server logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewServer creates a new MCP Server instance.
func NewServer(engine Engine, version string, opts ...Option) *Server {
	s := &Server{
		engine:    engine,
		logger:    logging.NewNop(),
		mcpServer: server.NewMCPServer("flowstate-mcp", version),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer returns the underlying protocol server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves the SSE transport on port until ctx is cancelled.
func (s *Server) ServeSSE(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	baseURL := fmt.Sprintf("http://localhost:%d", port)

	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP Server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Info("Shutdown signal received, stopping MCP server")
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) registerTools() {
	workflowArg := mcp.WithString("workflow", mcp.Required(), mcp.Description("Workflow name"))
	entityArg := mcp.WithString("entity_id", mcp.Required(), mcp.Description("Entity ID"))
	userArg := mcp.WithString("user_id", mcp.Description("User recorded in the history (optional)"))
	dataArg := mcp.WithString("data", mcp.Description("JSON object attached to the request (optional)"))

	s.mcpServer.AddTool(mcp.NewTool("list_workflows",
		mcp.WithDescription("List every registered workflow definition."),
	), s.handleListWorkflows)

	s.mcpServer.AddTool(mcp.NewTool("get_workflow",
		mcp.WithDescription("Describe a workflow: states, transitions, guard and hook names."),
		workflowArg,
	), s.handleGetWorkflow)

	if s.loader != nil {
		s.mcpServer.AddTool(mcp.NewTool("define_workflow",
			mcp.WithDescription("Register (or replace) workflows from a YAML definition."),
			mcp.WithString("definition", mcp.Required(), mcp.Description("YAML document(s) describing the workflow")),
		), s.handleDefineWorkflow)
	}

	s.mcpServer.AddTool(mcp.NewTool("workflow_stats",
		mcp.WithDescription("Count a workflow's instances per state."),
		workflowArg,
	), s.handleStats)

	s.mcpServer.AddTool(mcp.NewTool("create_instance",
		mcp.WithDescription("Start tracking an entity in its initial state. Existing instances are returned unchanged."),
		workflowArg, entityArg, dataArg, userArg,
	), s.handleCreateInstance)

	s.mcpServer.AddTool(mcp.NewTool("get_instance",
		mcp.WithDescription("Get the current state, metadata and history of an entity."),
		workflowArg, entityArg,
	), s.handleGetInstance)

	s.mcpServer.AddTool(mcp.NewTool("transition",
		mcp.WithDescription("Apply an event to an entity, moving it to the transition's target state."),
		workflowArg, entityArg,
		mcp.WithString("event", mcp.Required(), mcp.Description("Event name")),
		dataArg, userArg,
		mcp.WithBoolean("force", mcp.Description("Skip guards (hooks still run)")),
	), s.handleTransition)

	s.mcpServer.AddTool(mcp.NewTool("can_transition",
		mcp.WithDescription("Check whether an event would be accepted right now. Guards are evaluated."),
		workflowArg, entityArg,
		mcp.WithString("event", mcp.Required(), mcp.Description("Event name")),
	), s.handleCanTransition)

	s.mcpServer.AddTool(mcp.NewTool("available_transitions",
		mcp.WithDescription("List the transitions leaving the entity's current state."),
		workflowArg, entityArg,
	), s.handleAvailable)

	s.mcpServer.AddTool(mcp.NewTool("get_history",
		mcp.WithDescription("Get the audit trail of an entity, oldest first."),
		workflowArg, entityArg,
	), s.handleHistory)

	s.mcpServer.AddTool(mcp.NewTool("reset_instance",
		mcp.WithDescription("Move an entity back to the initial state."),
		workflowArg, entityArg, userArg,
	), s.handleReset)

	s.mcpServer.AddTool(mcp.NewTool("delete_instance",
		mcp.WithDescription("Stop tracking an entity."),
		workflowArg, entityArg,
	), s.handleDelete)
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(WorkflowsURI, "Registered Workflows",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		jsonBytes, err := json.Marshal(s.exportAll())
		if err != nil {
			return nil, fmt.Errorf("failed to encode workflows: %w", err)
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      WorkflowsURI,
				MIMEType: "application/json",
				Text:     string(jsonBytes),
			},
		}, nil
	})
}

// Handlers

func (s *Server) handleListWorkflows(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.exportAll())
}

func (s *Server) handleGetWorkflow(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	workflow, err := request.RequireString("workflow")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	exported, err := s.engine.ExportWorkflow(workflow)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(exported)
}

func (s *Server) handleDefineWorkflow(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	definition, err := request.RequireString("definition")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	defs, err := s.loader.Parse([]byte(definition))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out := make([]*domain.ExportedWorkflow, 0, len(defs))
	for _, def := range defs {
		stored, err := s.engine.DefineWorkflow(ctx, def)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		out = append(out, domain.Export(stored))
	}
	return jsonResult(out)
}

func (s *Server) handleStats(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	workflow, err := request.RequireString("workflow")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	stats, err := s.engine.GetWorkflowStats(ctx, workflow)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(stats)
}

func (s *Server) handleCreateInstance(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	workflow, entity, err := instanceArgs(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	data, err := dataArg(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	inst, err := s.engine.CreateInstance(ctx, workflow, entity, data, request.GetString("user_id", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(inst)
}

func (s *Server) handleGetInstance(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	workflow, entity, err := instanceArgs(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	inst, err := s.engine.GetInstance(ctx, workflow, entity)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if inst == nil {
		return mcp.NewToolResultError(fmt.Sprintf("%s: %s", domain.ErrInstanceNotFound, domain.InstanceKey(workflow, entity))), nil
	}
	return jsonResult(inst)
}

func (s *Server) handleTransition(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	workflow, entity, err := instanceArgs(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	event, err := request.RequireString("event")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	data, err := dataArg(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	inst, err := s.engine.Transition(ctx, workflow, entity, event, domain.TransitionOptions{
		UserID: request.GetString("user_id", ""),
		Data:   data,
		Force:  request.GetBool("force", false),
	})
	if err != nil {
		if inst != nil {
			s.logger.Error("MCP Transition: after hook failed", "workflow", workflow, "entity_id", entity, "err", err)
		}
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(inst)
}

func (s *Server) handleCanTransition(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	workflow, entity, err := instanceArgs(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	event, err := request.RequireString("event")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(map[string]any{
		"event":   event,
		"allowed": s.engine.CanTransition(ctx, workflow, entity, event),
	})
}

func (s *Server) handleAvailable(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	workflow, entity, err := instanceArgs(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	available, err := s.engine.GetAvailableTransitions(ctx, workflow, entity)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out := make([]domain.ExportedTransition, len(available))
	for i, t := range available {
		out[i] = domain.ExportTransition(t)
	}
	return jsonResult(out)
}

func (s *Server) handleHistory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	workflow, entity, err := instanceArgs(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	history, err := s.engine.GetHistory(ctx, workflow, entity)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(history)
}

func (s *Server) handleReset(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	workflow, entity, err := instanceArgs(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	inst, err := s.engine.ResetInstance(ctx, workflow, entity, request.GetString("user_id", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(inst)
}

func (s *Server) handleDelete(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	workflow, entity, err := instanceArgs(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	deleted, err := s.engine.DeleteInstance(ctx, workflow, entity)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(map[string]bool{"deleted": deleted})
}

// Helpers

func (s *Server) exportAll() []*domain.ExportedWorkflow {
	defs := s.engine.GetAllWorkflows()
	out := make([]*domain.ExportedWorkflow, len(defs))
	for i, def := range defs {
		out[i] = domain.Export(def)
	}
	return out
}

func instanceArgs(request mcp.CallToolRequest) (string, string, error) {
	workflow, err := request.RequireString("workflow")
	if err != nil {
		return "", "", err
	}
	entity, err := request.RequireString("entity_id")
	if err != nil {
		return "", "", err
	}
	if err := sanitize.Identifiers(
		"entity_id", entity,
		"event", request.GetString("event", ""),
		"user_id", request.GetString("user_id", ""),
	); err != nil {
		return "", "", err
	}
	return workflow, entity, nil
}

func dataArg(request mcp.CallToolRequest) (map[string]any, error) {
	raw := request.GetString("data", "")
	if raw == "" {
		return nil, nil
	}
	var data map[string]any
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return nil, fmt.Errorf("data must be a JSON object: %w", err)
	}
	return data, nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	jsonBytes, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode result: %w", err)
	}
	return mcp.NewToolResultText(string(jsonBytes)), nil
}
