package evalrun

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTasksFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tasks.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing tasks file: %v", err)
	}
	return path
}

func TestLoadTasks(t *testing.T) {
	path := writeTasksFile(t, `
- id: task-001
  description: Fix the off-by-one in the pager
  repo_root: /repos/pager
  git_mcp_url: stdio://python3:-m:mcp_server_git:--repository:/repos/pager
  test_file: src/pager_test.go
  expect:
    - file: src/pager.go
      must_contain:
        - "i <= last"
      must_not_contain:
        - "i < last"
      min_occurrences: 1
- id: task-002
  description: Add a health endpoint
  repo_root: /repos/svc
  git_mcp_url: stdio://uvx:mcp-server-git
`)

	tasks, err := LoadTasks(path)
	if err != nil {
		t.Fatalf("LoadTasks() error: %v", err)
	}
	if len(tasks) != 2 {
		t.Fatalf("got %d tasks, want 2", len(tasks))
	}

	first := tasks[0]
	if first.ID != "task-001" || first.RepoRoot != "/repos/pager" {
		t.Errorf("first task = %+v", first)
	}
	if first.TestFile != "src/pager_test.go" {
		t.Errorf("test_file = %q, want src/pager_test.go", first.TestFile)
	}
	if len(first.Expect) != 1 {
		t.Fatalf("got %d expectations, want 1", len(first.Expect))
	}
	expect := first.Expect[0]
	if expect.File != "src/pager.go" || expect.MinOccurrences != 1 {
		t.Errorf("expectation = %+v", expect)
	}
	if len(expect.MustContain) != 1 || expect.MustContain[0] != "i <= last" {
		t.Errorf("must_contain = %v", expect.MustContain)
	}

	if len(tasks[1].Expect) != 0 {
		t.Errorf("second task gained expectations: %+v", tasks[1].Expect)
	}
	if tasks[1].TestFile != "" {
		t.Errorf("second task gained a test file: %q", tasks[1].TestFile)
	}
}

func TestLoadTasksMissingFile(t *testing.T) {
	_, err := LoadTasks(filepath.Join(t.TempDir(), "absent.yaml"))
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("got %v, want fs.ErrNotExist", err)
	}
}

func TestLoadTasksRejectsNonListRoot(t *testing.T) {
	path := writeTasksFile(t, "tasks:\n  - id: task-001\n")
	_, err := LoadTasks(path)
	if err == nil {
		t.Fatal("LoadTasks() accepted a map root")
	}
	if !strings.Contains(err.Error(), "list of tasks") {
		t.Errorf("error = %q", err)
	}
}

func TestLoadTasksValidatesRequiredFields(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		missing string
	}{
		{
			"missing id",
			"- description: d\n  repo_root: /r\n  git_mcp_url: stdio://x\n",
			"'id'",
		},
		{
			"missing description",
			"- id: t1\n  repo_root: /r\n  git_mcp_url: stdio://x\n",
			"'description'",
		},
		{
			"missing repo_root",
			"- id: t1\n  description: d\n  git_mcp_url: stdio://x\n",
			"'repo_root'",
		},
		{
			"missing git_mcp_url",
			"- id: t1\n  description: d\n  repo_root: /r\n",
			"'git_mcp_url'",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadTasks(writeTasksFile(t, tt.yaml))
			if err == nil {
				t.Fatal("LoadTasks() accepted an incomplete task")
			}
			if !strings.Contains(err.Error(), tt.missing) {
				t.Errorf("error %q does not name %s", err, tt.missing)
			}
		})
	}
}
