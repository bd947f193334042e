package evalrun

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// newValidateFixture prepares a workspace holding one test file and a
// checker whose validation commands are scripted.
func newValidateFixture(t *testing.T, cfg CheckConfig) (*Checker, string, string) {
	t.Helper()
	root := t.TempDir()
	rel := filepath.Join("pkg", "thing_test.go")
	if err := os.MkdirAll(filepath.Join(root, "pkg"), 0755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(filepath.Join(root, rel), []byte("package pkg\n"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return NewChecker(cfg), root, rel
}

func TestValidateTestFile(t *testing.T) {
	checker, root, rel := newValidateFixture(t, CheckConfig{
		FileLintCommand:  "true",
		ListTestsCommand: "echo TestAlpha",
		ExecTestsCommand: "echo --- PASS: TestAlpha",
	})

	ok, notes := checker.ValidateTestFile(context.Background(), root, rel)
	if !ok {
		t.Fatalf("validation failed: %s", notes)
	}
	for _, want := range []string{
		"Lint: Linting passed (true)",
		"Collection: Collected 1 test(s)",
		"Execution: Executed 1 test(s): 1 passed, 0 failed",
	} {
		if !strings.Contains(notes, want) {
			t.Errorf("notes missing %q:\n%s", want, notes)
		}
	}
	if got := strings.Count(notes, " | "); got != 2 {
		t.Errorf("notes joined %d times, want 2: %s", got, notes)
	}
}

func TestValidateTestFileMissing(t *testing.T) {
	checker, root, _ := newValidateFixture(t, CheckConfig{})

	ok, notes := checker.ValidateTestFile(context.Background(), root, "pkg/absent_test.go")
	if ok {
		t.Fatal("validation passed for a missing file")
	}
	if !strings.Contains(notes, "Test file not found: pkg/absent_test.go") {
		t.Errorf("notes = %q", notes)
	}
}

func TestValidateTestFileLintFallback(t *testing.T) {
	checker, root, rel := newValidateFixture(t, CheckConfig{
		FileLintCommand:  "false",
		FileLintFallback: "true",
		ListTestsCommand: "echo TestAlpha",
		ExecTestsCommand: "echo --- PASS: TestAlpha",
	})

	ok, notes := checker.ValidateTestFile(context.Background(), root, rel)
	if !ok {
		t.Fatalf("validation failed: %s", notes)
	}
	if !strings.Contains(notes, "Linting passed (true)") {
		t.Errorf("notes = %q", notes)
	}
}

func TestValidateTestFileLintFindings(t *testing.T) {
	checker, root, rel := newValidateFixture(t, CheckConfig{
		FileLintCommand:  `sh -c "echo vet-finding; exit 1"`,
		FileLintFallback: "echo unformatted.go",
		ListTestsCommand: "echo TestAlpha",
		ExecTestsCommand: "echo --- PASS: TestAlpha",
	})

	ok, notes := checker.ValidateTestFile(context.Background(), root, rel)
	if ok {
		t.Fatal("validation passed despite lint findings")
	}
	if !strings.Contains(notes, "Linting failed: vet-finding") {
		t.Errorf("notes = %q", notes)
	}
}

func TestValidateTestFileNoTestsCollected(t *testing.T) {
	checker, root, rel := newValidateFixture(t, CheckConfig{
		FileLintCommand:  "true",
		ListTestsCommand: "echo ok",
		ExecTestsCommand: "echo --- PASS: TestAlpha",
	})

	ok, notes := checker.ValidateTestFile(context.Background(), root, rel)
	if ok {
		t.Fatal("validation passed with no tests collected")
	}
	if !strings.Contains(notes, "No tests collected") {
		t.Errorf("notes = %q", notes)
	}
	if strings.Contains(notes, "Execution:") {
		t.Errorf("execution ran despite failed collection: %q", notes)
	}
}

func TestValidateTestFileToleratesFailingTests(t *testing.T) {
	checker, root, rel := newValidateFixture(t, CheckConfig{
		FileLintCommand:  "true",
		ListTestsCommand: "echo TestA TestB",
		ExecTestsCommand: `sh -c "echo '--- PASS: TestA'; echo '--- FAIL: TestB'; exit 1"`,
	})

	ok, notes := checker.ValidateTestFile(context.Background(), root, rel)
	if !ok {
		t.Fatalf("failing tests should not fail validation: %s", notes)
	}
	if !strings.Contains(notes, "Executed 2 test(s): 1 passed, 1 failed") {
		t.Errorf("notes = %q", notes)
	}
}

func TestValidateTestFileBuildCrash(t *testing.T) {
	checker, root, rel := newValidateFixture(t, CheckConfig{
		FileLintCommand:  "true",
		ListTestsCommand: "echo TestAlpha",
		ExecTestsCommand: `sh -c "echo 'FAIL\tpkg [build failed]'; exit 1"`,
	})

	ok, notes := checker.ValidateTestFile(context.Background(), root, rel)
	if ok {
		t.Fatal("validation passed despite a build failure")
	}
	if !strings.Contains(notes, "Test execution crashed") {
		t.Errorf("notes = %q", notes)
	}
}

func TestCountListedTests(t *testing.T) {
	tests := []struct {
		name   string
		output string
		want   int
	}{
		{
			name:   "tests and benchmarks",
			output: "TestFoo\nTestBar\nBenchmarkBaz\nok\texample.com/pkg\t0.010s\n",
			want:   3,
		},
		{
			name:   "no test files",
			output: "?\texample.com/pkg\t[no test files]\n",
			want:   0,
		},
		{
			name:   "empty",
			output: "",
			want:   0,
		},
		{
			name:   "fuzz and example",
			output: "FuzzParse\nExampleRun\n",
			want:   2,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := countListedTests(tt.output); got != tt.want {
				t.Errorf("countListedTests() = %d, want %d", got, tt.want)
			}
		})
	}
}
