package evalrun

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Task is one evaluation case: a work description pointed at a
// prepared repository, plus optional content expectations used to
// verify the fix beyond the test suite.
type Task struct {
	ID          string        `yaml:"id"`
	Description string        `yaml:"description"`
	RepoRoot    string        `yaml:"repo_root"`
	GitMCPURL   string        `yaml:"git_mcp_url"`
	Expect      []Expectation `yaml:"expect,omitempty"`

	// TestFile optionally names a test file (relative to RepoRoot) the
	// agent was asked to write; when set, the file is validated for
	// quality after the run.
	TestFile string `yaml:"test_file,omitempty"`
}

// Expectation describes what a solved task must look like in one file.
// MustNotContain patterns prove the old bug is gone; MustContain
// patterns, counted across the file, prove the fix landed at least
// MinOccurrences times.
type Expectation struct {
	File           string   `yaml:"file"`
	MustContain    []string `yaml:"must_contain,omitempty"`
	MustNotContain []string `yaml:"must_not_contain,omitempty"`
	MinOccurrences int      `yaml:"min_occurrences,omitempty"`
}

// LoadTasks reads an evaluation task list. The YAML root must be a
// list and every task must carry an id, a description, a repository
// root and a tool-server address.
func LoadTasks(path string) ([]Task, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading tasks file: %w", err)
	}

	var tasks []Task
	if err := yaml.Unmarshal(data, &tasks); err != nil {
		return nil, fmt.Errorf("tasks file must contain a list of tasks: %w", err)
	}

	for i, task := range tasks {
		switch {
		case task.ID == "":
			return nil, fmt.Errorf("task %d is missing 'id'", i)
		case task.Description == "":
			return nil, fmt.Errorf("task %q is missing 'description'", task.ID)
		case task.RepoRoot == "":
			return nil, fmt.Errorf("task %q is missing 'repo_root'", task.ID)
		case task.GitMCPURL == "":
			return nil, fmt.Errorf("task %q is missing 'git_mcp_url'", task.ID)
		}
	}
	return tasks, nil
}
