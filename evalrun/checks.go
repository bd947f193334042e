package evalrun

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"syscall"
	"time"

	shellwords "github.com/mattn/go-shellwords"
)

// Default commands the workspace is scored with. Static checking
// falls back to gofmt when the primary command is unusable.
const (
	DefaultCompileCommand = "go build ./..."
	DefaultTestCommand    = "go test ./..."
	DefaultStaticCommand  = "go vet ./..."
	DefaultStaticFallback = "gofmt -l ."

	defaultCompileTimeout = 60 * time.Second
	defaultTestTimeout    = 5 * time.Minute
	defaultStaticTimeout  = 2 * time.Minute

	// noteLimit caps command output carried into result notes.
	noteLimit = 500
)

// CheckConfig adjusts the scoring commands. Zero values select the
// defaults above.
type CheckConfig struct {
	CompileCommand string
	TestCommand    string
	StaticCommand  string
	StaticFallback string

	// Test-file validation commands; see validate.go.
	FileLintCommand  string
	FileLintFallback string
	ListTestsCommand string
	ExecTestsCommand string

	CompileTimeout  time.Duration
	TestTimeout     time.Duration
	StaticTimeout   time.Duration
	ValidateTimeout time.Duration
}

func (c CheckConfig) withDefaults() CheckConfig {
	if c.CompileCommand == "" {
		c.CompileCommand = DefaultCompileCommand
	}
	if c.TestCommand == "" {
		c.TestCommand = DefaultTestCommand
	}
	if c.StaticCommand == "" {
		c.StaticCommand = DefaultStaticCommand
	}
	if c.StaticFallback == "" {
		c.StaticFallback = DefaultStaticFallback
	}
	if c.FileLintCommand == "" {
		c.FileLintCommand = DefaultFileLintCommand
	}
	if c.FileLintFallback == "" {
		c.FileLintFallback = DefaultFileLintFallback
	}
	if c.ListTestsCommand == "" {
		c.ListTestsCommand = DefaultListTestsCommand
	}
	if c.ExecTestsCommand == "" {
		c.ExecTestsCommand = DefaultExecTestsCommand
	}
	if c.CompileTimeout <= 0 {
		c.CompileTimeout = defaultCompileTimeout
	}
	if c.TestTimeout <= 0 {
		c.TestTimeout = defaultTestTimeout
	}
	if c.StaticTimeout <= 0 {
		c.StaticTimeout = defaultStaticTimeout
	}
	if c.ValidateTimeout <= 0 {
		c.ValidateTimeout = defaultValidateTimeout
	}
	return c
}

// Checker scores a workspace after an agent run with subprocess
// checks. Each check reports pass/fail plus notes for the summary.
type Checker struct {
	cfg CheckConfig
}

// NewChecker builds a checker with cfg's commands, filling defaults.
func NewChecker(cfg CheckConfig) *Checker {
	return &Checker{cfg: cfg.withDefaults()}
}

// Compile reports whether the workspace builds.
func (c *Checker) Compile(ctx context.Context, repoRoot string) (bool, string) {
	ok, output := c.runCheck(ctx, repoRoot, c.cfg.CompileCommand, c.cfg.CompileTimeout)
	if ok {
		return true, ""
	}
	return false, fmt.Sprintf("Compile check failed. output: %s", clipNote(output))
}

// Tests reports whether the workspace test suite passes.
func (c *Checker) Tests(ctx context.Context, repoRoot string) (bool, string) {
	ok, output := c.runCheck(ctx, repoRoot, c.cfg.TestCommand, c.cfg.TestTimeout)
	if ok {
		return true, ""
	}
	return false, fmt.Sprintf("Tests failed. output: %s", clipNote(output))
}

// Static reports whether static checks pass. The primary command is
// tried first; on failure the fallback runs, and passes only when it
// exits cleanly with no findings on stdout.
func (c *Checker) Static(ctx context.Context, repoRoot string) (bool, string) {
	ok, output := c.runCheck(ctx, repoRoot, c.cfg.StaticCommand, c.cfg.StaticTimeout)
	if ok {
		return true, fmt.Sprintf("Static checks passed (%s)", commandName(c.cfg.StaticCommand))
	}

	fbOK, fbOutput := c.runCheck(ctx, repoRoot, c.cfg.StaticFallback, c.cfg.StaticTimeout)
	if fbOK && strings.TrimSpace(fbOutput) == "" {
		return true, fmt.Sprintf("Static checks passed (%s)", commandName(c.cfg.StaticFallback))
	}

	notes := fbOutput
	if strings.TrimSpace(notes) == "" {
		notes = output
	}
	return false, fmt.Sprintf("Static checks failed. output: %s", clipNote(notes))
}

// DiffSummary summarizes uncommitted changes in the workspace. It
// returns "" when the workspace is not a git repository or git is
// unavailable.
func (c *Checker) DiffSummary(ctx context.Context, repoRoot string) string {
	ok, status := c.runCheck(ctx, repoRoot, "git status --porcelain", 10*time.Second)
	if !ok {
		return ""
	}
	status = strings.TrimSpace(status)
	if status == "" {
		return "No changes detected"
	}
	fileCount := len(strings.Split(status, "\n"))

	ok, stat := c.runCheck(ctx, repoRoot, "git diff --stat", 30*time.Second)
	if ok && strings.TrimSpace(stat) != "" {
		lines := strings.Split(strings.TrimSpace(stat), "\n")
		return fmt.Sprintf("Changed %d file(s). %s", fileCount, lines[len(lines)-1])
	}
	return fmt.Sprintf("Changed %d file(s)", fileCount)
}

// runCheck runs one scoring command in dir with stdout and stderr
// interleaved, killing the whole process group on timeout. Any
// failure to even start the command reads as a failed check with the
// reason in the output.
func (c *Checker) runCheck(ctx context.Context, dir, command string, timeout time.Duration) (bool, string) {
	argv, err := shellwords.Parse(command)
	if err != nil || len(argv) == 0 {
		return false, fmt.Sprintf("invalid command %q: %v", command, err)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = dir
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	runErr := cmd.Run()
	if ctx.Err() == context.DeadlineExceeded {
		if cmd.Process != nil {
			_ = syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
		}
		return false, fmt.Sprintf("command timed out after %s", timeout)
	}
	if runErr != nil {
		if _, isExit := runErr.(*exec.ExitError); !isExit {
			return false, fmt.Sprintf("running %s: %v", argv[0], runErr)
		}
		return false, output.String()
	}
	return true, output.String()
}

func commandName(command string) string {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return command
	}
	return fields[0]
}

func clipNote(s string) string {
	return clipTo(strings.TrimSpace(s), noteLimit)
}

func clipTo(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit]
}
