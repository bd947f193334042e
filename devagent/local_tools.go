package devagent

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	shellwords "github.com/mattn/go-shellwords"

	"github.com/lathelabs/lathe/llmclient"
	"github.com/lathelabs/lathe/mcpclient"
)

// Defaults for the workspace check commands.
const (
	DefaultTestCommand = "go test ./..."
	DefaultLintCommand = "go vet ./..."

	defaultTestTimeout = 5 * time.Minute
	defaultLintTimeout = 2 * time.Minute
)

// LocalToolConfig adjusts the built-in workspace tools. Zero values
// select the defaults above.
type LocalToolConfig struct {
	TestCommand string
	LintCommand string
	TestTimeout time.Duration
	LintTimeout time.Duration
}

// LocalExecutor runs the built-in workspace tools. Every path argument
// is resolved against the workspace root and must stay inside it.
//
// Tool-level failures (missing files, unappliable patches, failing
// commands) come back as text blocks so the model can read and react
// to them. Only violations that must abort the call return an error:
// unknown tools, missing required arguments, and path escapes.
type LocalExecutor struct {
	root string
	cfg  LocalToolConfig
}

// NewLocalExecutor builds an executor rooted at root. The root is made
// absolute and symlink-resolved once so containment checks compare
// canonical paths.
func NewLocalExecutor(root string, cfg LocalToolConfig) (*LocalExecutor, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving workspace root: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	}

	if cfg.TestCommand == "" {
		cfg.TestCommand = DefaultTestCommand
	}
	if cfg.LintCommand == "" {
		cfg.LintCommand = DefaultLintCommand
	}
	if cfg.TestTimeout <= 0 {
		cfg.TestTimeout = defaultTestTimeout
	}
	if cfg.LintTimeout <= 0 {
		cfg.LintTimeout = defaultLintTimeout
	}

	return &LocalExecutor{root: abs, cfg: cfg}, nil
}

// Root returns the canonical workspace root.
func (e *LocalExecutor) Root() string { return e.root }

// Specs returns the tool specs for the built-in workspace tools.
func (e *LocalExecutor) Specs() []llmclient.ToolSpec {
	return []llmclient.ToolSpec{
		{
			Name:        "list_files",
			Description: "List the files and directories at a path inside the workspace (non-recursive).",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"path": map[string]any{
						"type":        "string",
						"description": "Directory to list, relative to the workspace root. Default: \".\".",
					},
				},
			},
		},
		{
			Name:        "read_file",
			Description: "Read a text file from the workspace and return its full content.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"path": map[string]any{
						"type":        "string",
						"description": "File path relative to the workspace root.",
					},
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "write_file",
			Description: "Write content to a file in the workspace. Refuses to replace an existing file unless overwrite is true.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"path": map[string]any{
						"type":        "string",
						"description": "File path relative to the workspace root.",
					},
					"content": map[string]any{
						"type":        "string",
						"description": "Full file content to write.",
					},
					"overwrite": map[string]any{
						"type":        "boolean",
						"description": "Replace the file if it already exists. Default: false.",
					},
				},
				"required": []string{"path", "content"},
			},
		},
		{
			Name:        "apply_unified_diff",
			Description: "Apply a unified diff to a single file in the workspace. The diff must carry '---'/'+++' headers and '@@' hunks.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"path": map[string]any{
						"type":        "string",
						"description": "File path relative to the workspace root.",
					},
					"diff": map[string]any{
						"type":        "string",
						"description": "The unified diff to apply.",
					},
					"strict": map[string]any{
						"type":        "boolean",
						"description": "Require hunks to match at their stated line numbers. Default: true.",
					},
				},
				"required": []string{"path", "diff"},
			},
		},
		{
			Name:        "run_tests",
			Description: fmt.Sprintf("Run the project test suite (%s) and return its combined output.", e.cfg.TestCommand),
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"subdir": map[string]any{
						"type":        "string",
						"description": "Run in this subdirectory instead of the workspace root.",
					},
				},
			},
		},
		{
			Name:        "run_linter",
			Description: fmt.Sprintf("Run the project linter (%s) and return its combined output.", e.cfg.LintCommand),
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"target": map[string]any{
						"type":        "string",
						"description": "Package or path to lint instead of the whole workspace.",
					},
				},
			},
		},
	}
}

// Call runs one workspace tool by name.
func (e *LocalExecutor) Call(ctx context.Context, name string, args map[string]any) ([]mcpclient.ContentBlock, error) {
	if args == nil {
		args = map[string]any{}
	}
	switch name {
	case "list_files":
		return e.listFiles(args)
	case "read_file":
		return e.readFile(args)
	case "write_file":
		return e.writeFile(args)
	case "apply_unified_diff":
		return e.applyDiff(args)
	case "run_tests":
		return e.runTests(ctx, args)
	case "run_linter":
		return e.runLinter(ctx, args)
	default:
		return nil, NewToolExecutionError(name, "unknown local tool %q", name)
	}
}

func (e *LocalExecutor) listFiles(args map[string]any) ([]mcpclient.ContentBlock, error) {
	path := stringArg(args, "path", ".")
	resolved, err := e.resolvePath(path)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(resolved)
	if err != nil {
		return textBlocks(fmt.Sprintf("[list_files] Cannot list directory '%s': %v", path, err)), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "[list_files] Contents of '%s':", path)
	count := 0
	for _, entry := range entries {
		if entry.Name() == ".git" {
			continue
		}
		kind := "file"
		if entry.IsDir() {
			kind = "directory"
		}
		fmt.Fprintf(&b, "\n%s: %s", kind, entry.Name())
		count++
	}
	if count == 0 {
		return textBlocks(fmt.Sprintf("[list_files] Directory '%s' is empty", path)), nil
	}
	return textBlocks(b.String()), nil
}

func (e *LocalExecutor) readFile(args map[string]any) ([]mcpclient.ContentBlock, error) {
	path, err := requiredStringArg("read_file", args, "path")
	if err != nil {
		return nil, err
	}
	resolved, err := e.resolvePath(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(resolved)
	if err != nil {
		if os.IsNotExist(err) {
			return textBlocks(fmt.Sprintf("[read_file] File not found: %s", path)), nil
		}
		return textBlocks(fmt.Sprintf("[read_file] Cannot read %s: %v", path, err)), nil
	}
	return textBlocks(string(data)), nil
}

func (e *LocalExecutor) writeFile(args map[string]any) ([]mcpclient.ContentBlock, error) {
	path, err := requiredStringArg("write_file", args, "path")
	if err != nil {
		return nil, err
	}
	content, ok := args["content"].(string)
	if !ok {
		return nil, NewToolExecutionError("write_file", "write_file requires a string \"content\" argument")
	}
	overwrite := boolArg(args, "overwrite", false)

	resolved, err := e.resolvePath(path)
	if err != nil {
		return nil, err
	}

	if _, statErr := os.Stat(resolved); statErr == nil && !overwrite {
		return textBlocks(fmt.Sprintf("[write_file] File already exists: %s (set overwrite=true to replace it)", path)), nil
	}

	if err := os.MkdirAll(filepath.Dir(resolved), 0755); err != nil {
		return textBlocks(fmt.Sprintf("[write_file] Cannot create parent directory for %s: %v", path, err)), nil
	}
	if err := os.WriteFile(resolved, []byte(content), 0644); err != nil {
		return textBlocks(fmt.Sprintf("[write_file] Cannot write %s: %v", path, err)), nil
	}
	return textBlocks(fmt.Sprintf("[write_file] Wrote %d bytes to %s", len(content), path)), nil
}

func (e *LocalExecutor) applyDiff(args map[string]any) ([]mcpclient.ContentBlock, error) {
	path, err := requiredStringArg("apply_unified_diff", args, "path")
	if err != nil {
		return nil, err
	}
	diff, err := requiredStringArg("apply_unified_diff", args, "diff")
	if err != nil {
		return nil, err
	}
	strict := boolArg(args, "strict", true)

	resolved, err := e.resolvePath(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(resolved)
	if err != nil {
		if os.IsNotExist(err) {
			return textBlocks(fmt.Sprintf("[apply_unified_diff] File not found: %s", path)), nil
		}
		return textBlocks(fmt.Sprintf("[apply_unified_diff] Cannot read %s: %v", path, err)), nil
	}

	hunks, err := parseUnifiedDiff(diff)
	if err != nil {
		return textBlocks(fmt.Sprintf("[apply_unified_diff] Failed to apply patch to %s: %v", path, err)), nil
	}
	updated, err := applyUnifiedDiff(string(data), hunks, strict)
	if err != nil {
		return textBlocks(fmt.Sprintf("[apply_unified_diff] Failed to apply patch to %s: %v", path, err)), nil
	}

	if err := os.WriteFile(resolved, []byte(updated), 0644); err != nil {
		return textBlocks(fmt.Sprintf("[apply_unified_diff] Cannot write %s: %v", path, err)), nil
	}
	return textBlocks(fmt.Sprintf("[apply_unified_diff] Patch applied successfully to %s", path)), nil
}

func (e *LocalExecutor) runTests(ctx context.Context, args map[string]any) ([]mcpclient.ContentBlock, error) {
	dir := e.root
	if subdir := stringArg(args, "subdir", ""); subdir != "" {
		resolved, err := e.resolvePath(subdir)
		if err != nil {
			return nil, err
		}
		dir = resolved
	}

	argv, failed := e.splitCommand("run_tests", e.cfg.TestCommand)
	if failed != nil {
		return failed, nil
	}
	return e.runCheck(ctx, "run_tests", dir, argv, e.cfg.TestTimeout)
}

func (e *LocalExecutor) runLinter(ctx context.Context, args map[string]any) ([]mcpclient.ContentBlock, error) {
	argv, failed := e.splitCommand("run_linter", e.cfg.LintCommand)
	if failed != nil {
		return failed, nil
	}

	if target := stringArg(args, "target", ""); target != "" {
		// Package patterns like ./... are command arguments, but a
		// plain path component must still be confined to the root.
		pathLike := strings.TrimSuffix(target, "/...")
		if pathLike != "" && pathLike != "." {
			if _, err := e.resolvePath(pathLike); err != nil {
				return nil, err
			}
		}
		argv = append(argv, target)
	}
	return e.runCheck(ctx, "run_linter", e.root, argv, e.cfg.LintTimeout)
}

func (e *LocalExecutor) splitCommand(toolName, command string) ([]string, []mcpclient.ContentBlock) {
	argv, err := shellwords.Parse(command)
	if err != nil {
		return nil, textBlocks(fmt.Sprintf("[%s] Invalid command %q: %v", toolName, command, err))
	}
	if len(argv) == 0 {
		return nil, textBlocks(fmt.Sprintf("[%s] Empty command", toolName))
	}
	return argv, nil
}

func (e *LocalExecutor) runCheck(ctx context.Context, toolName, dir string, argv []string, timeout time.Duration) ([]mcpclient.ContentBlock, error) {
	command := strings.Join(argv, " ")
	result, err := runCommand(ctx, dir, argv, timeout)
	if err != nil {
		return textBlocks(fmt.Sprintf("[%s] Failed to run %q: %v", toolName, command, err)), nil
	}

	output := TruncateOutput(result.Output, MaxToolOutputChars)
	var status string
	switch {
	case result.TimedOut:
		status = fmt.Sprintf("[%s] Command %q timed out after %s", toolName, command, timeout)
	case result.ExitCode != 0:
		status = fmt.Sprintf("[%s] Command %q exited with status %d", toolName, command, result.ExitCode)
	default:
		status = fmt.Sprintf("[%s] Command %q succeeded", toolName, command)
	}

	if strings.TrimSpace(output) == "" {
		return textBlocks(status), nil
	}
	return textBlocks(status + "\n" + output), nil
}

// resolvePath confines a path argument to the workspace root. The
// path is joined, cleaned and compared against the root, then checked
// again after resolving symlinks on its existing portion so a link
// cannot point the write outside. Absolute arguments are allowed only
// when they already live under the root.
func (e *LocalExecutor) resolvePath(rel string) (string, error) {
	var joined string
	if filepath.IsAbs(rel) {
		joined = filepath.Clean(rel)
	} else {
		joined = filepath.Join(e.root, rel)
	}
	if !within(e.root, joined) {
		return "", NewPathEscapeError(rel)
	}

	resolved, err := resolveExisting(joined)
	if err == nil && !within(e.root, resolved) {
		return "", NewPathEscapeError(rel)
	}
	return joined, nil
}

func within(root, path string) bool {
	if path == root {
		return true
	}
	return strings.HasPrefix(path, root+string(filepath.Separator))
}

// resolveExisting resolves symlinks on the longest existing prefix of
// path and rejoins the rest, so paths that do not exist yet can still
// be checked for containment.
func resolveExisting(path string) (string, error) {
	remainder := ""
	current := path
	for {
		resolved, err := filepath.EvalSymlinks(current)
		if err == nil {
			return filepath.Join(resolved, remainder), nil
		}
		if !os.IsNotExist(err) {
			return "", err
		}
		parent := filepath.Dir(current)
		if parent == current {
			return "", err
		}
		remainder = filepath.Join(filepath.Base(current), remainder)
		current = parent
	}
}

func textBlocks(text string) []mcpclient.ContentBlock {
	return []mcpclient.ContentBlock{mcpclient.TextBlock(text)}
}

func stringArg(args map[string]any, key, fallback string) string {
	if v, ok := args[key].(string); ok && v != "" {
		return v
	}
	return fallback
}

func requiredStringArg(toolName string, args map[string]any, key string) (string, error) {
	v, ok := args[key].(string)
	if !ok || v == "" {
		return "", NewToolExecutionError(toolName, "%s requires a %q argument", toolName, key)
	}
	return v, nil
}

func boolArg(args map[string]any, key string, fallback bool) bool {
	if v, ok := args[key].(bool); ok {
		return v
	}
	return fallback
}
