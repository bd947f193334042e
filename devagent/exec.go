package devagent

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"syscall"
	"time"
)

// execResult holds the outcome of one workspace command.
type execResult struct {
	Output   string
	ExitCode int
	TimedOut bool
	Duration time.Duration
}

// runCommand executes argv in dir with stdout and stderr interleaved
// into one stream. The whole process group is killed when the timeout
// elapses so test runners cannot leave stray children behind; partial
// output captured before the kill is preserved.
func runCommand(ctx context.Context, dir string, argv []string, timeout time.Duration) (*execResult, error) {
	if len(argv) == 0 {
		return nil, fmt.Errorf("empty command")
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = dir
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	start := time.Now()
	err := cmd.Run()
	duration := time.Since(start)

	result := &execResult{Output: output.String(), Duration: duration}
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			result.TimedOut = true
			result.ExitCode = -1
			if cmd.Process != nil {
				_ = syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
			}
		} else if exitErr, ok := err.(*exec.ExitError); ok {
			result.ExitCode = exitErr.ExitCode()
		} else {
			return nil, fmt.Errorf("running %s: %w", argv[0], err)
		}
	}
	return result, nil
}
