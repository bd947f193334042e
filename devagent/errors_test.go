package devagent

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestErrorTypesMatchWithErrorsAs(t *testing.T) {
	cause := fmt.Errorf("root cause")
	tests := []struct {
		name  string
		err   error
		check func(error) bool
	}{
		{
			"validation",
			NewValidationError("bad %s", "input"),
			func(err error) bool { var e *ValidationError; return errors.As(err, &e) },
		},
		{
			"path escape",
			NewPathEscapeError("../x"),
			func(err error) bool { var e *PathEscapeError; return errors.As(err, &e) },
		},
		{
			"tool execution",
			NewToolExecutionError("git_status", "broke"),
			func(err error) bool { var e *ToolExecutionError; return errors.As(err, &e) },
		},
		{
			"budget exhausted",
			NewBudgetExhaustedError(10),
			func(err error) bool { var e *BudgetExhaustedError; return errors.As(err, &e) },
		},
		{
			"unhandled failure",
			NewUnhandledFailureError(cause, "run aborted"),
			func(err error) bool { var e *UnhandledFailureError; return errors.As(err, &e) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !tt.check(tt.err) {
				t.Errorf("errors.As failed for %v", tt.err)
			}
		})
	}
}

func TestUnhandledFailureUnwrapsCause(t *testing.T) {
	cause := fmt.Errorf("root cause")
	err := NewUnhandledFailureError(cause, "run aborted")
	if !errors.Is(err, cause) {
		t.Errorf("cause not reachable through %v", err)
	}
	if got := err.Error(); got != "run aborted: root cause" {
		t.Errorf("Error() = %q", got)
	}
}

func TestBudgetExhaustedMessage(t *testing.T) {
	err := NewBudgetExhaustedError(10)
	if err.Error() != "Reached maximum steps (10) without completion" {
		t.Errorf("Error() = %q", err.Error())
	}
	if err.Steps != 10 {
		t.Errorf("Steps = %d", err.Steps)
	}
}

func TestPathEscapeErrorCarriesPath(t *testing.T) {
	err := NewPathEscapeError("../../outside.txt")
	if err.Path != "../../outside.txt" {
		t.Errorf("Path = %q", err.Path)
	}
	if !strings.Contains(err.Error(), "escapes the workspace root") {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestTruncateDiagnostic(t *testing.T) {
	long := strings.Repeat("e", maxDiagnosticChars+500)
	got := truncateDiagnostic(long)
	if len(got) != maxDiagnosticChars+3 {
		t.Errorf("len = %d, want %d", len(got), maxDiagnosticChars+3)
	}
	if !strings.HasSuffix(got, "...") {
		t.Errorf("missing ellipsis")
	}
	if short := truncateDiagnostic("fine"); short != "fine" {
		t.Errorf("short diagnostic modified: %q", short)
	}
}
