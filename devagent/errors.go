package devagent

import "fmt"

// AgentError is the base error type for the package. Typed errors
// embed it so callers can branch with errors.As while the underlying
// cause stays reachable through the unwrap chain.
type AgentError struct {
	Message string
	Cause   error
}

func (e *AgentError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AgentError) Unwrap() error { return e.Cause }

// ValidationError indicates malformed structured input: a message map
// missing required fields, an invalid role, or unusable persisted
// conversation data.
type ValidationError struct {
	AgentError
}

// NewValidationError builds a ValidationError with a formatted message.
func NewValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{AgentError{Message: fmt.Sprintf(format, args...)}}
}

// PathEscapeError indicates a tool argument tried to reach outside the
// workspace root. Nothing is read or written when it is raised.
type PathEscapeError struct {
	AgentError
	Path string
}

// NewPathEscapeError builds a PathEscapeError for the offending path.
func NewPathEscapeError(path string) *PathEscapeError {
	return &PathEscapeError{
		AgentError: AgentError{Message: fmt.Sprintf("path %q escapes the workspace root", path)},
		Path:       path,
	}
}

// ToolExecutionError indicates a tool call could not run at all:
// unknown tool name, missing required arguments, or a handler failure
// that is not itself reported as tool output.
type ToolExecutionError struct {
	AgentError
	ToolName string
}

// NewToolExecutionError builds a ToolExecutionError for the named tool.
func NewToolExecutionError(toolName, format string, args ...any) *ToolExecutionError {
	return &ToolExecutionError{
		AgentError: AgentError{Message: fmt.Sprintf(format, args...)},
		ToolName:   toolName,
	}
}

// BudgetExhaustedError indicates the loop ran out of steps before the
// model declared completion.
type BudgetExhaustedError struct {
	AgentError
	Steps int
}

// NewBudgetExhaustedError reports exhaustion after steps iterations.
func NewBudgetExhaustedError(steps int) *BudgetExhaustedError {
	return &BudgetExhaustedError{
		AgentError: AgentError{Message: fmt.Sprintf("Reached maximum steps (%d) without completion", steps)},
		Steps:      steps,
	}
}

// UnhandledFailureError wraps anything unexpected that crossed the run
// boundary, including recovered panics.
type UnhandledFailureError struct {
	AgentError
}

// NewUnhandledFailureError wraps cause with a formatted message.
func NewUnhandledFailureError(cause error, format string, args ...any) *UnhandledFailureError {
	return &UnhandledFailureError{AgentError{Message: fmt.Sprintf(format, args...), Cause: cause}}
}

// maxDiagnosticChars caps error text carried in a run result so one
// pathological tool output cannot bloat the response.
const maxDiagnosticChars = 1000

func truncateDiagnostic(s string) string {
	if len(s) <= maxDiagnosticChars {
		return s
	}
	return s[:maxDiagnosticChars] + "..."
}
