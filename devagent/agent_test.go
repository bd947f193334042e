package devagent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/lathelabs/lathe/llmclient"
)

// scriptedModel returns canned responses in order. Calls past the end
// of the script get a filler response that never completes the task.
type scriptedModel struct {
	responses []*llmclient.GenerateResponse
	err       error
	requests  []llmclient.GenerateRequest
}

func (m *scriptedModel) Generate(ctx context.Context, req llmclient.GenerateRequest) (*llmclient.GenerateResponse, error) {
	m.requests = append(m.requests, req)
	if m.err != nil {
		return nil, m.err
	}
	if len(m.requests) > len(m.responses) {
		return textResponse("Still working on it."), nil
	}
	return m.responses[len(m.requests)-1], nil
}

func textResponse(content string) *llmclient.GenerateResponse {
	data, err := json.Marshal(content)
	if err != nil {
		panic(err)
	}
	return &llmclient.GenerateResponse{ID: "resp_test", Content: data, FinishReason: "stop"}
}

func toolCallResponse(content string, calls ...llmclient.ToolCall) *llmclient.GenerateResponse {
	resp := textResponse(content)
	resp.ToolCalls = calls
	resp.FinishReason = "tool_calls"
	return resp
}

func seedConversation(t *testing.T) *Conversation {
	t.Helper()
	conv := NewConversation()
	err := conv.Append(
		SystemMessage("You are a developer agent."),
		UserMessage("Fix the failing test."),
	)
	if err != nil {
		t.Fatalf("seeding conversation: %v", err)
	}
	return conv
}

func assistantMessages(conv *Conversation) []Message {
	var out []Message
	for _, msg := range conv.Messages() {
		if msg.Role == RoleAssistant {
			out = append(out, msg)
		}
	}
	return out
}

func TestRunCompletesWhenModelDeclaresDone(t *testing.T) {
	model := &scriptedModel{responses: []*llmclient.GenerateResponse{
		textResponse("Let me inspect the repository."),
		textResponse("I found the bug and fixed it."),
		textResponse("All checks pass. Task completed."),
	}}
	agent := NewAgent(model, nil, nil, Config{MaxSteps: 10})

	result := agent.Run(context.Background(), seedConversation(t))

	if !result.Success {
		t.Errorf("Success = false, error = %q", result.Error)
	}
	if result.Steps != 3 {
		t.Errorf("Steps = %d, want 3", result.Steps)
	}
	if result.Error != "" {
		t.Errorf("Error = %q, want empty", result.Error)
	}
	if len(model.requests) != 3 {
		t.Errorf("model called %d times, want 3", len(model.requests))
	}
}

func TestRunExhaustsStepBudget(t *testing.T) {
	model := &scriptedModel{} // never completes
	agent := NewAgent(model, nil, nil, Config{MaxSteps: 10})

	result := agent.Run(context.Background(), seedConversation(t))

	if result.Success {
		t.Error("Success = true for a run that never completed")
	}
	if result.Steps != 10 {
		t.Errorf("Steps = %d, want 10", result.Steps)
	}
	if result.Error != "Reached maximum steps (10) without completion" {
		t.Errorf("Error = %q", result.Error)
	}
	if result.Transcript == nil || result.Transcript.Len() == 0 {
		t.Error("exhausted run lost its transcript")
	}
}

func TestRunMatchesCompletionCaseInsensitively(t *testing.T) {
	model := &scriptedModel{responses: []*llmclient.GenerateResponse{
		textResponse("Everything is merged. TASK COMPLETED!"),
	}}
	agent := NewAgent(model, nil, nil, Config{MaxSteps: 5})

	result := agent.Run(context.Background(), seedConversation(t))
	if !result.Success || result.Steps != 1 {
		t.Errorf("Success = %v, Steps = %d", result.Success, result.Steps)
	}
}

func TestRunAcceptsAlternatePhrasings(t *testing.T) {
	phrasings := []string{
		"I have completed the task.",
		"The task is complete.",
		"I have finished.",
		"Task finished.",
		"I believe I completed the task you gave me.",
	}
	for _, phrasing := range phrasings {
		t.Run(phrasing, func(t *testing.T) {
			model := &scriptedModel{responses: []*llmclient.GenerateResponse{textResponse(phrasing)}}
			agent := NewAgent(model, nil, nil, Config{MaxSteps: 3})
			result := agent.Run(context.Background(), seedConversation(t))
			if !result.Success {
				t.Errorf("phrase %q not recognized", phrasing)
			}
		})
	}
}

func TestRunIgnoresCompletionPhraseInToolResults(t *testing.T) {
	remote := &fakeTransport{
		specs:   []llmclient.ToolSpec{remoteSpec("git_log")},
		results: map[string]string{"git_log": "commit message: Task completed"},
	}
	model := &scriptedModel{responses: []*llmclient.GenerateResponse{
		toolCallResponse("Checking history.", llmclient.ToolCall{
			ID:        "call_1",
			Name:      "git_log",
			Arguments: []byte(`{}`),
		}),
	}}
	agent := NewAgent(model, remote, nil, Config{MaxSteps: 2})

	result := agent.Run(context.Background(), seedConversation(t))

	if result.Success {
		t.Error("tool output echoing the phrase completed the run")
	}
	if result.Steps != 2 {
		t.Errorf("Steps = %d, want 2", result.Steps)
	}
}

func TestRunDispatchesToolCallsInOrder(t *testing.T) {
	remote := &fakeTransport{
		specs: []llmclient.ToolSpec{remoteSpec("git_status"), remoteSpec("git_diff")},
		results: map[string]string{
			"git_status": "on branch main",
			"git_diff":   "no changes",
		},
	}
	model := &scriptedModel{responses: []*llmclient.GenerateResponse{
		toolCallResponse("Inspecting.",
			llmclient.ToolCall{ID: "call_1", Name: "git_status", Arguments: []byte(`{}`)},
			llmclient.ToolCall{ID: "call_2", Name: "git_diff", Arguments: []byte(`{}`)},
		),
		textResponse("Task completed."),
	}}
	agent := NewAgent(model, remote, nil, Config{MaxSteps: 5})

	result := agent.Run(context.Background(), seedConversation(t))
	if !result.Success || result.Steps != 2 {
		t.Fatalf("Success = %v, Steps = %d, Error = %q", result.Success, result.Steps, result.Error)
	}
	if len(remote.calls) != 2 || remote.calls[0] != "git_status" || remote.calls[1] != "git_diff" {
		t.Errorf("calls = %v", remote.calls)
	}

	msgs := result.Transcript.Messages()
	// system, user, assistant, tool result x2, assistant.
	if len(msgs) != 6 {
		t.Fatalf("transcript has %d messages: %+v", len(msgs), msgs)
	}
	if msgs[3].Role != RoleTool || msgs[3].ToolCallID != "call_1" || msgs[3].Name != "git_status" {
		t.Errorf("first tool result = %+v", msgs[3])
	}
	if !strings.Contains(msgs[3].Content, "on branch main") {
		t.Errorf("tool result content = %q", msgs[3].Content)
	}
	if msgs[4].ToolCallID != "call_2" {
		t.Errorf("second tool result = %+v", msgs[4])
	}
}

func TestRunIsolatesFailingToolCalls(t *testing.T) {
	remote := &fakeTransport{
		specs:   []llmclient.ToolSpec{remoteSpec("git_status")},
		results: map[string]string{"git_status": "clean"},
	}
	model := &scriptedModel{responses: []*llmclient.GenerateResponse{
		toolCallResponse("Trying two tools.",
			llmclient.ToolCall{ID: "call_1", Name: "no_such_tool", Arguments: []byte(`{}`)},
			llmclient.ToolCall{ID: "call_2", Name: "git_status", Arguments: []byte(`{}`)},
		),
		textResponse("Task completed."),
	}}
	agent := NewAgent(model, remote, nil, Config{MaxSteps: 5})

	result := agent.Run(context.Background(), seedConversation(t))
	if !result.Success {
		t.Fatalf("failing call aborted the run: %q", result.Error)
	}

	msgs := result.Transcript.Messages()
	errMsg := msgs[3]
	if errMsg.Role != RoleTool || errMsg.ToolCallID != "call_1" {
		t.Fatalf("error result = %+v", errMsg)
	}
	if !strings.Contains(errMsg.Content, "Error executing tool no_such_tool (call call_1)") {
		t.Errorf("error content = %q", errMsg.Content)
	}
	if !strings.Contains(msgs[4].Content, "clean") {
		t.Errorf("second call did not run: %q", msgs[4].Content)
	}
}

func TestRunContainsToolHandlerPanics(t *testing.T) {
	remote := &fakeTransport{
		specs:   []llmclient.ToolSpec{remoteSpec("git_status")},
		panicOn: "git_status",
	}
	model := &scriptedModel{responses: []*llmclient.GenerateResponse{
		toolCallResponse("Calling.", llmclient.ToolCall{ID: "call_1", Name: "git_status", Arguments: []byte(`{}`)}),
		textResponse("Task completed."),
	}}
	agent := NewAgent(model, remote, nil, Config{MaxSteps: 5})

	result := agent.Run(context.Background(), seedConversation(t))
	if !result.Success {
		t.Fatalf("panicking handler aborted the run: %q", result.Error)
	}
	msgs := result.Transcript.Messages()
	if !strings.Contains(msgs[3].Content, "tool handler panicked") {
		t.Errorf("panic not surfaced as a tool result: %q", msgs[3].Content)
	}
}

func TestRunFallsBackToToolNameWhenCallIDMissing(t *testing.T) {
	remote := &fakeTransport{
		specs:   []llmclient.ToolSpec{remoteSpec("git_status")},
		results: map[string]string{"git_status": "clean"},
	}
	model := &scriptedModel{responses: []*llmclient.GenerateResponse{
		toolCallResponse("Calling.", llmclient.ToolCall{Name: "git_status", Arguments: []byte(`{}`)}),
		textResponse("Task completed."),
	}}
	agent := NewAgent(model, remote, nil, Config{MaxSteps: 5})

	result := agent.Run(context.Background(), seedConversation(t))
	if msgs := result.Transcript.Messages(); msgs[3].ToolCallID != "git_status" {
		t.Errorf("ToolCallID = %q, want the tool name", msgs[3].ToolCallID)
	}
}

func TestRunFailsWhenGenerationFails(t *testing.T) {
	model := &scriptedModel{err: fmt.Errorf("model unavailable")}
	agent := NewAgent(model, nil, nil, Config{MaxSteps: 5})

	result := agent.Run(context.Background(), seedConversation(t))
	if result.Success {
		t.Error("Success = true after a generation failure")
	}
	if result.Steps != 1 {
		t.Errorf("Steps = %d, want 1", result.Steps)
	}
	if !strings.Contains(result.Error, "model unavailable") {
		t.Errorf("Error = %q", result.Error)
	}
	if result.Transcript.Len() != 2 {
		t.Errorf("transcript has %d messages, want the seeded 2", result.Transcript.Len())
	}
}

func TestRunFailsWhenCatalogFails(t *testing.T) {
	remote := &fakeTransport{listErr: fmt.Errorf("connection refused")}
	model := &scriptedModel{}
	agent := NewAgent(model, remote, nil, Config{MaxSteps: 5})

	result := agent.Run(context.Background(), seedConversation(t))
	if result.Success {
		t.Error("Success = true with no tool catalog")
	}
	if !strings.Contains(result.Error, "connection refused") {
		t.Errorf("Error = %q", result.Error)
	}
	if len(model.requests) != 0 {
		t.Errorf("model was called %d times before the catalog failure", len(model.requests))
	}
}

func TestRunOffersMergedCatalogToModel(t *testing.T) {
	remote := &fakeTransport{specs: []llmclient.ToolSpec{remoteSpec("git_status")}}
	local := newTestExecutor(t, LocalToolConfig{})
	model := &scriptedModel{responses: []*llmclient.GenerateResponse{textResponse("Task completed.")}}
	agent := NewAgent(model, remote, local, Config{MaxSteps: 3})

	result := agent.Run(context.Background(), seedConversation(t))
	if !result.Success {
		t.Fatalf("run failed: %q", result.Error)
	}

	tools := model.requests[0].Tools
	if len(tools) != 7 {
		t.Fatalf("model offered %d tools, want 7", len(tools))
	}
	if tools[0].Name != "git_status" {
		t.Errorf("remote tool not first: %q", tools[0].Name)
	}
}

func TestRunCachesCatalogAcrossSteps(t *testing.T) {
	listCount := 0
	remote := &countingTransport{fakeTransport: fakeTransport{specs: []llmclient.ToolSpec{remoteSpec("git_status")}}, listCount: &listCount}
	model := &scriptedModel{responses: []*llmclient.GenerateResponse{
		textResponse("step one"),
		textResponse("step two"),
		textResponse("Task completed."),
	}}
	agent := NewAgent(model, remote, nil, Config{MaxSteps: 5})

	if result := agent.Run(context.Background(), seedConversation(t)); !result.Success {
		t.Fatalf("run failed: %q", result.Error)
	}
	if listCount != 1 {
		t.Errorf("catalog fetched %d times, want 1", listCount)
	}
}

type countingTransport struct {
	fakeTransport
	listCount *int
}

func (c *countingTransport) ListTools(ctx context.Context) ([]llmclient.ToolSpec, error) {
	*c.listCount++
	return c.fakeTransport.ListTools(ctx)
}

func TestTaskCompleted(t *testing.T) {
	tests := []struct {
		name string
		msgs []Message
		want bool
	}{
		{"empty", nil, false},
		{"no assistant messages", []Message{UserMessage("task completed")}, false},
		{
			"latest assistant declares done",
			[]Message{AssistantMessage("Task completed.")},
			true,
		},
		{
			"tool results after the assistant are skipped",
			[]Message{
				AssistantMessage("Task completed."),
				ToolResultMessage("output", "call_1", "git_status"),
			},
			true,
		},
		{
			"phrase only in a tool result",
			[]Message{
				AssistantMessage("still going"),
				ToolResultMessage("Task completed", "call_1", "git_status"),
			},
			false,
		},
		{
			"phrase in an earlier assistant message does not count",
			[]Message{
				AssistantMessage("Task completed."),
				UserMessage("actually, one more thing"),
				AssistantMessage("working on it"),
			},
			false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := taskCompleted(tt.msgs); got != tt.want {
				t.Errorf("taskCompleted() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRunTaskFailsOnMalformedAddress(t *testing.T) {
	tests := []struct {
		name    string
		address string
	}{
		{"wrong scheme", "http://localhost:8080"},
		{"git server without repository path", "stdio://python3:-m:mcp_server_git:--repository"},
		{"empty executable", "stdio://"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := RunTask(context.Background(), TaskConfig{
				Task:          "fix the bug",
				Workspace:     t.TempDir(),
				ServerAddress: tt.address,
				Model:         llmclient.Config{APIKey: "test-key"},
			})
			if result.Success {
				t.Error("Success = true with a malformed address")
			}
			if result.Error == "" {
				t.Error("Error is empty")
			}
			if result.Steps != 0 {
				t.Errorf("Steps = %d, want 0", result.Steps)
			}
			// Failing before the loop means nothing was generated and
			// nothing was seeded.
			if result.Transcript.Len() != 0 {
				t.Errorf("transcript has %d messages, want 0", result.Transcript.Len())
			}
		})
	}
}

func TestRunTaskFailsOnInvalidModelConfig(t *testing.T) {
	result := RunTask(context.Background(), TaskConfig{
		Task:      "fix the bug",
		Workspace: t.TempDir(),
		Model:     llmclient.Config{Backend: "anthropic", APIKey: "k"},
	})
	if result.Success || result.Error == "" {
		t.Errorf("Success = %v, Error = %q", result.Success, result.Error)
	}
}
