package evalrun

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Agent-written test files are validated three ways: the file lints
// cleanly, its tests are discoverable, and they execute without
// crashing. Each command runs with the file's package directory (or
// the file itself for the formatter fallback) appended as the final
// argument.
const (
	DefaultFileLintCommand  = "go vet"
	DefaultFileLintFallback = "gofmt -l"
	DefaultListTestsCommand = "go test -list .*"
	DefaultExecTestsCommand = "go test -v -run .*"

	defaultValidateTimeout = 60 * time.Second

	validateNoteLimit = 200
)

// ValidateTestFile scores a test file the agent wrote. Failing tests
// do not fail validation; only lint findings, an empty test set, or a
// crash do. Notes carry the per-criterion outcomes joined with " | ".
func (c *Checker) ValidateTestFile(ctx context.Context, repoRoot, testFile string) (bool, string) {
	if _, err := os.Stat(filepath.Join(repoRoot, testFile)); err != nil {
		return false, fmt.Sprintf("Test file not found: %s", testFile)
	}
	pkgDir := "./" + filepath.ToSlash(filepath.Dir(testFile))

	var notes []string

	lintOK, lintNote := c.validateLint(ctx, repoRoot, testFile, pkgDir)
	notes = append(notes, "Lint: "+lintNote)

	collectOK, collectNote := c.validateCollection(ctx, repoRoot, pkgDir)
	notes = append(notes, "Collection: "+collectNote)

	execOK := false
	if collectOK {
		var execNote string
		execOK, execNote = c.validateExecution(ctx, repoRoot, pkgDir)
		notes = append(notes, "Execution: "+execNote)
	}

	return lintOK && collectOK && execOK, strings.Join(notes, " | ")
}

func (c *Checker) validateLint(ctx context.Context, repoRoot, testFile, pkgDir string) (bool, string) {
	ok, output := c.runCheck(ctx, repoRoot, c.cfg.FileLintCommand+" "+pkgDir, c.cfg.ValidateTimeout)
	if ok {
		return true, fmt.Sprintf("Linting passed (%s)", commandName(c.cfg.FileLintCommand))
	}

	fbOK, fbOutput := c.runCheck(ctx, repoRoot, c.cfg.FileLintFallback+" "+testFile, c.cfg.ValidateTimeout)
	if fbOK && strings.TrimSpace(fbOutput) == "" {
		return true, fmt.Sprintf("Linting passed (%s)", commandName(c.cfg.FileLintFallback))
	}

	msg := strings.TrimSpace(output)
	if msg == "" {
		msg = strings.TrimSpace(fbOutput)
	}
	return false, "Linting failed: " + clipTo(msg, validateNoteLimit)
}

func (c *Checker) validateCollection(ctx context.Context, repoRoot, pkgDir string) (bool, string) {
	ok, output := c.runCheck(ctx, repoRoot, c.cfg.ListTestsCommand+" "+pkgDir, c.cfg.ValidateTimeout)
	if !ok {
		return false, "Test collection failed: " + clipTo(output, validateNoteLimit)
	}
	count := countListedTests(output)
	if count == 0 {
		return false, "No tests collected"
	}
	return true, fmt.Sprintf("Collected %d test(s)", count)
}

func (c *Checker) validateExecution(ctx context.Context, repoRoot, pkgDir string) (bool, string) {
	ok, output := c.runCheck(ctx, repoRoot, c.cfg.ExecTestsCommand+" "+pkgDir, c.cfg.ValidateTimeout)

	if strings.Contains(output, "[build failed]") || strings.Contains(output, "setup failed") {
		return false, "Test execution crashed: " + clipTo(output, validateNoteLimit)
	}

	passed := strings.Count(output, "--- PASS:")
	failed := strings.Count(output, "--- FAIL:")
	total := passed + failed
	if total == 0 {
		if !ok {
			return false, "Test execution crashed: " + clipTo(output, validateNoteLimit)
		}
		return false, "No tests executed"
	}
	return true, fmt.Sprintf("Executed %d test(s): %d passed, %d failed", total, passed, failed)
}

// countListedTests counts test identifiers in `go test -list` output,
// skipping the trailing ok/FAIL summary lines.
func countListedTests(output string) int {
	count := 0
	for _, line := range strings.Split(output, "\n") {
		name := strings.TrimSpace(line)
		for _, prefix := range []string{"Test", "Benchmark", "Fuzz", "Example"} {
			if strings.HasPrefix(name, prefix) {
				count++
				break
			}
		}
	}
	return count
}
