package taskapi

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/lathelabs/lathe/devagent"
	"github.com/lathelabs/lathe/llmclient"
)

const (
	// ServiceName and ServiceVersion identify the API on the root
	// endpoint.
	ServiceName    = "lathe"
	ServiceVersion = "0.1.0"

	// DefaultMaxSteps caps a run when the request does not say.
	DefaultMaxSteps = 30
)

// RunFunc executes one agent task. devagent.RunTask is the default;
// tests substitute scripted runners.
type RunFunc func(ctx context.Context, cfg devagent.TaskConfig) *devagent.Result

// Options carries the server-side configuration merged into every
// request: the model backend and the workspace tool settings.
type Options struct {
	Model llmclient.Config
	Tools devagent.LocalToolConfig
}

// Handler serves the task-runner endpoints.
type Handler struct {
	opts Options
	run  RunFunc
}

// NewHandler builds a handler that runs tasks with devagent.RunTask.
func NewHandler(opts Options) *Handler {
	return &Handler{opts: opts, run: devagent.RunTask}
}

// RegisterRoutes registers the API routes on mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /dev-agent/run", h.handleRun)
	mux.HandleFunc("GET /health", h.handleHealth)
	mux.HandleFunc("GET /{$}", h.handleRoot)
}

// Message is the wire shape of one transcript entry.
type Message struct {
	Role       string `json:"role"`
	Content    string `json:"content"`
	ToolCallID string `json:"tool_call_id,omitempty"`
}

// RunRequest is the POST /dev-agent/run body.
type RunRequest struct {
	TaskDescription     string    `json:"task_description"`
	RepoRoot            string    `json:"repo_root"`
	GitMCPURL           string    `json:"git_mcp_url"`
	MaxSteps            int       `json:"max_steps"`
	ConversationHistory []Message `json:"conversation_history,omitempty"`
}

// RunResponse reports a finished run. Core failures travel inside it
// with success=false; only request and handler failures use HTTP
// error statuses.
type RunResponse struct {
	Success  bool      `json:"success"`
	Steps    int       `json:"steps"`
	Error    string    `json:"error,omitempty"`
	Messages []Message `json:"messages"`
}

func (h *Handler) handleRun(w http.ResponseWriter, r *http.Request) {
	requestID := uuid.New().String()[:8]
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("api.run_panic", "request_id", requestID, "panic", rec)
			writeDetail(w, http.StatusInternalServerError,
				fmt.Sprintf("Error executing dev agent task: %v", rec))
		}
	}()

	var req RunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if msg := validateRequest(req); msg != "" {
		writeDetail(w, http.StatusBadRequest, msg)
		return
	}
	if req.MaxSteps <= 0 {
		req.MaxSteps = DefaultMaxSteps
	}

	history := make([]devagent.Message, 0, len(req.ConversationHistory))
	for _, msg := range req.ConversationHistory {
		history = append(history, devagent.Message{
			Role:       msg.Role,
			Content:    msg.Content,
			ToolCallID: msg.ToolCallID,
		})
	}

	slog.Info("api.run_start",
		"request_id", requestID,
		"repo_root", req.RepoRoot,
		"max_steps", req.MaxSteps,
		"history", len(history))

	result := h.run(r.Context(), devagent.TaskConfig{
		Task:          req.TaskDescription,
		Workspace:     req.RepoRoot,
		ServerAddress: req.GitMCPURL,
		MaxSteps:      req.MaxSteps,
		Model:         h.opts.Model,
		Tools:         h.opts.Tools,
		History:       history,
	})
	if result == nil {
		writeDetail(w, http.StatusInternalServerError, "Error executing dev agent task: runner returned no result")
		return
	}

	resp := RunResponse{
		Success: result.Success,
		Steps:   result.Steps,
		Error:   result.Error,
	}
	resp.Messages = make([]Message, 0)
	if result.Transcript != nil {
		for _, msg := range result.Transcript.Messages() {
			resp.Messages = append(resp.Messages, Message{
				Role:       msg.Role,
				Content:    msg.Content,
				ToolCallID: msg.ToolCallID,
			})
		}
	}

	slog.Info("api.run_done",
		"request_id", requestID,
		"success", resp.Success,
		"steps", resp.Steps)
	writeJSON(w, http.StatusOK, resp)
}

func validateRequest(req RunRequest) string {
	switch {
	case req.TaskDescription == "":
		return "task_description is required"
	case req.RepoRoot == "":
		return "repo_root is required"
	case req.GitMCPURL == "":
		return "git_mcp_url is required"
	}
	return ""
}

func (h *Handler) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":        ServiceName,
		"version":     ServiceVersion,
		"description": "API for an autonomous development agent",
		"endpoints": map[string]string{
			"POST /dev-agent/run": "Execute a development agent task",
			"GET /health":         "Health check",
		},
	})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Warn("api.write_failed", "error", err)
	}
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
