package devagent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/lathelabs/lathe/llmclient"
	"github.com/lathelabs/lathe/mcpclient"
)

// DefaultMaxSteps bounds a run when the config does not say otherwise.
const DefaultMaxSteps = 20

// completionPhrases are matched case-insensitively against the most
// recent assistant message to decide whether the model declared the
// task done.
var completionPhrases = []string{
	"i have completed the task",
	"task completed",
	"task is complete",
	"i have finished",
	"task finished",
	"completed the task",
}

// Config bounds one agent instance.
type Config struct {
	// MaxSteps caps generate-dispatch iterations per run. Zero means
	// DefaultMaxSteps.
	MaxSteps int
}

// Result is the structured outcome of a run. Error is a truncated
// diagnostic, empty on success. The transcript is always present,
// including on failure, so callers can inspect how far the run got.
type Result struct {
	Success    bool
	Steps      int
	Transcript *Conversation
	Error      string
}

// Agent drives the generate-dispatch loop over one model client, one
// tool transport and one workspace.
type Agent struct {
	model     llmclient.Client
	transport ToolTransport
	local     *LocalExecutor
	cfg       Config

	// registry caches the merged tool catalog for the agent's
	// lifetime; the set of tools cannot change mid-run.
	registry *ToolRegistry
}

// NewAgent wires an agent from its collaborators. transport and local
// may each be nil when the corresponding tool source is not wanted.
func NewAgent(model llmclient.Client, transport ToolTransport, local *LocalExecutor, cfg Config) *Agent {
	if cfg.MaxSteps <= 0 {
		cfg.MaxSteps = DefaultMaxSteps
	}
	return &Agent{model: model, transport: transport, local: local, cfg: cfg}
}

func (a *Agent) catalog(ctx context.Context) (*ToolRegistry, error) {
	if a.registry != nil {
		return a.registry, nil
	}
	reg, err := BuildRegistry(ctx, a.transport, a.local)
	if err != nil {
		return nil, err
	}
	a.registry = reg
	return reg, nil
}

// Run drives the loop until the model declares completion, the step
// budget runs out, or a step fails. It never panics and never returns
// an error: every outcome is folded into the Result, transcript
// included.
func (a *Agent) Run(ctx context.Context, conv *Conversation) (result *Result) {
	runID := uuid.New().String()[:8]
	steps := 0

	defer func() {
		if r := recover(); r != nil {
			err := NewUnhandledFailureError(nil, "run aborted by panic: %v", r)
			slog.Error("agent.run_panic", "run_id", runID, "step", steps, "panic", fmt.Sprint(r))
			result = &Result{Steps: steps, Transcript: conv, Error: truncateDiagnostic(err.Error())}
		}
	}()

	slog.Info("agent.run_start", "run_id", runID, "max_steps", a.cfg.MaxSteps)

	for steps < a.cfg.MaxSteps {
		steps++
		if err := a.runStep(ctx, conv); err != nil {
			slog.Error("agent.step_failed", "run_id", runID, "step", steps, "error", err)
			return &Result{Steps: steps, Transcript: conv, Error: truncateDiagnostic(err.Error())}
		}
		if taskCompleted(conv.Messages()) {
			slog.Info("agent.run_completed", "run_id", runID, "steps", steps)
			return &Result{Success: true, Steps: steps, Transcript: conv}
		}
	}

	err := NewBudgetExhaustedError(a.cfg.MaxSteps)
	slog.Warn("agent.run_exhausted", "run_id", runID, "steps", steps)
	return &Result{Steps: steps, Transcript: conv, Error: err.Error()}
}

// runStep performs one generate-dispatch iteration: send the
// transcript with the tool catalog, store the assistant reply, then
// run any requested tool calls in order.
func (a *Agent) runStep(ctx context.Context, conv *Conversation) error {
	reg, err := a.catalog(ctx)
	if err != nil {
		return fmt.Errorf("building tool catalog: %w", err)
	}

	resp, err := a.model.Generate(ctx, llmclient.GenerateRequest{
		Messages: wireMessages(conv.Messages()),
		Tools:    reg.Specs(),
	})
	if err != nil {
		return fmt.Errorf("generating model response: %w", err)
	}

	conv.append(AssistantMessage(flattenRawContent(resp.Content)))

	for _, call := range resp.ToolCalls {
		a.dispatchCall(ctx, conv, reg, call)
	}
	return nil
}

// dispatchCall runs one tool call and appends its outcome. A failing
// call never fails the step: the error is rendered as a tool-result
// message tagged with the call id so the model can see it and adjust.
func (a *Agent) dispatchCall(ctx context.Context, conv *Conversation, reg *ToolRegistry, call llmclient.ToolCall) {
	callID := call.ID
	if callID == "" {
		callID = call.Name
	}

	blocks, err := a.safeDispatch(ctx, reg, call)
	if err != nil {
		slog.Warn("agent.tool_error", "tool", call.Name, "call_id", callID, "error", err)
		content := fmt.Sprintf("Error executing tool %s (call %s): %v", call.Name, callID, err)
		conv.append(ToolResultMessage(content, callID, call.Name))
		return
	}
	conv.append(ToolResultMessage(RenderToolResult(blocks), callID, call.Name))
}

func (a *Agent) safeDispatch(ctx context.Context, reg *ToolRegistry, call llmclient.ToolCall) (blocks []mcpclient.ContentBlock, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = NewToolExecutionError(call.Name, "tool handler panicked: %v", r)
		}
	}()
	return reg.Dispatch(ctx, call)
}

// taskCompleted reports whether the most recent assistant message
// declares the task done. Tool-result messages after it are skipped:
// they echo tool output, not the model's own judgment.
func taskCompleted(msgs []Message) bool {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role != RoleAssistant {
			continue
		}
		return containsCompletionPhrase(msgs[i].Content)
	}
	return false
}

func containsCompletionPhrase(content string) bool {
	lowered := strings.ToLower(content)
	for _, phrase := range completionPhrases {
		if strings.Contains(lowered, phrase) {
			return true
		}
	}
	return false
}

func wireMessages(msgs []Message) []llmclient.Message {
	out := make([]llmclient.Message, len(msgs))
	for i, m := range msgs {
		out[i] = llmclient.Message{
			Role:       m.Role,
			Content:    m.Content,
			ToolCallID: m.ToolCallID,
			Name:       m.Name,
		}
	}
	return out
}

// TaskConfig describes one complete task run.
type TaskConfig struct {
	// Task is the work description handed to the model.
	Task string

	// Workspace is the repository the agent operates on.
	Workspace string

	// ServerAddress is the stdio:// address of the git tool server.
	ServerAddress string

	// MaxSteps caps loop iterations. Zero means DefaultMaxSteps.
	MaxSteps int

	// AllowedTools optionally restricts which remote tools are offered
	// to the model. Nil means everything the server advertises.
	AllowedTools []string

	// Tools adjusts the built-in workspace tools.
	Tools LocalToolConfig

	// Model configures the generation backend.
	Model llmclient.Config

	// History seeds the conversation with prior transcript messages.
	// The system prompt is only added when History is empty.
	History []Message

	// Observers subscribe to the conversation before the run starts.
	Observers []Observer
}

// RunTask wires a model client, a tool-server session and a workspace
// executor from cfg and runs the loop to completion. It never returns
// an error: configuration failures, transport failures and mid-run
// failures all fold into the Result with whatever transcript exists.
//
// The tool-server session is established lazily by the first catalog
// fetch and closed when the run finishes, so one run shares a single
// server process across all of its steps. A malformed address fails
// here, before any model call is made.
func RunTask(ctx context.Context, cfg TaskConfig) *Result {
	conv := NewConversation(cfg.Observers...)

	fail := func(err error) *Result {
		slog.Error("agent.task_failed", "error", err)
		return &Result{Transcript: conv, Error: truncateDiagnostic(err.Error())}
	}

	model, err := llmclient.NewModelClient(cfg.Model)
	if err != nil {
		return fail(err)
	}

	local, err := NewLocalExecutor(cfg.Workspace, cfg.Tools)
	if err != nil {
		return fail(err)
	}

	transport, err := mcpclient.New(cfg.ServerAddress, mcpclient.Options{
		AllowedTools:    cfg.AllowedTools,
		DefaultRepoPath: local.Root(),
	})
	if err != nil {
		return fail(err)
	}
	defer func() {
		if err := transport.Close(); err != nil {
			slog.Warn("agent.transport_close_failed", "error", err)
		}
	}()

	if len(cfg.History) > 0 {
		for _, msg := range cfg.History {
			conv.append(msg)
		}
	} else {
		conv.append(SystemMessage(BuildSystemPrompt(local.Root(), cfg.Tools)))
	}
	conv.append(UserMessage(cfg.Task))

	agent := NewAgent(model, transport, local, Config{MaxSteps: cfg.MaxSteps})
	return agent.Run(ctx, conv)
}
