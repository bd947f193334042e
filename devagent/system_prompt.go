package devagent

import (
	"fmt"
	"strings"
)

// CompletionPhrase is the exact phrase the system prompt asks the
// model to emit once the task is done. Completion detection matches a
// wider set of phrasings, but this is the one the prompt teaches.
const CompletionPhrase = "Task completed"

// BuildSystemPrompt assembles the operating instructions for a run:
// the workspace location, the working discipline, a cheatsheet for the
// built-in tools and the diff format they expect, and the completion
// phrase the loop watches for.
func BuildSystemPrompt(workspace string, cfg LocalToolConfig) string {
	testCommand := cfg.TestCommand
	if testCommand == "" {
		testCommand = DefaultTestCommand
	}
	lintCommand := cfg.LintCommand
	if lintCommand == "" {
		lintCommand = DefaultLintCommand
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "You are an autonomous developer agent working on the repository at %s.\n", workspace)
	sb.WriteString(`
Your responsibilities:
- Understand the task and inspect the repository before changing anything.
- Use the available tools to read, create and modify files.
- Run the test suite and the linter to validate your changes.
- Iterate on failures until the work is verifiably done.

Git workflow:
- Use the git tools for all repository operations.
- Create a feature branch before making changes; never commit directly to the default branch.
- Commit completed work with a clear, descriptive message.

Workspace tools:
- list_files(path): list a directory (non-recursive).
- read_file(path): return a file's full content.
- write_file(path, content, overwrite): create a file; pass overwrite=true to replace an existing one.
- apply_unified_diff(path, diff, strict): edit a file by applying a unified diff.
`)
	fmt.Fprintf(&sb, "- run_tests(subdir): run %q and return its output.\n", testCommand)
	fmt.Fprintf(&sb, "- run_linter(target): run %q and return its output.\n", lintCommand)
	sb.WriteString(`
All paths are relative to the repository root and must stay inside it.

When editing with apply_unified_diff:
- Use the standard unified format with "--- <filepath>" and "+++ <filepath>" headers.
- Every hunk starts with "@@ -start,count +start,count @@" and the counts must match the hunk body.
- Context lines begin with a space, removals with "-", additions with "+".

Example:
--- internal/server.go
+++ internal/server.go
@@ -10,3 +10,4 @@
 func (s *Server) Start() error {
-	return s.listen()
+	s.log.Info("starting")
+	return s.listen()
 }

Prefer apply_unified_diff for small edits and write_file with overwrite=true for full rewrites.
`)
	fmt.Fprintf(&sb, "\nWhen the task is fully complete, reply with the exact phrase %q.\n", CompletionPhrase)
	return sb.String()
}
