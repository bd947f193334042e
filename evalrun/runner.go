package evalrun

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/lathelabs/lathe/devagent"
	"github.com/lathelabs/lathe/llmclient"
)

// TaskRunner runs one agent task. The default is devagent.RunTask;
// tests substitute scripted runners.
type TaskRunner func(ctx context.Context, cfg devagent.TaskConfig) *devagent.Result

// Options configures an evaluation sweep.
type Options struct {
	// TasksFile is the YAML task list.
	TasksFile string

	// OutputDir receives one transcript per task, <task_id>.json.
	OutputDir string

	// SummaryPath receives the JSON summary, with a sibling .csv.
	// Empty means <OutputDir>/eval_summary.json.
	SummaryPath string

	// MaxSteps caps each agent run. Zero means devagent.DefaultMaxSteps.
	MaxSteps int

	// Model configures the generation backend for every task.
	Model llmclient.Config

	// Tools adjusts the workspace tools offered to the agent.
	Tools devagent.LocalToolConfig

	// Checks adjusts the scoring commands.
	Checks CheckConfig
}

// Harness evaluates a task list end to end: run the agent, persist
// the transcript, score the workspace, summarize.
type Harness struct {
	opts    Options
	run     TaskRunner
	checker *Checker
}

// NewHarness builds a harness over devagent.RunTask.
func NewHarness(opts Options) *Harness {
	if opts.MaxSteps <= 0 {
		opts.MaxSteps = devagent.DefaultMaxSteps
	}
	if opts.SummaryPath == "" {
		opts.SummaryPath = filepath.Join(opts.OutputDir, "eval_summary.json")
	}
	return &Harness{
		opts:    opts,
		run:     devagent.RunTask,
		checker: NewChecker(opts.Checks),
	}
}

// Run evaluates every task in the list and writes the JSON and CSV
// summaries. It returns the results even when writing a summary
// fails.
func (h *Harness) Run(ctx context.Context) ([]Result, error) {
	tasks, err := LoadTasks(h.opts.TasksFile)
	if err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(tasks))
	for _, task := range tasks {
		slog.Info("eval.task_start", "task_id", task.ID)
		result := h.EvaluateTask(ctx, task)
		slog.Info("eval.task_done",
			"task_id", task.ID,
			"compile", result.SuccessCompile,
			"tests", result.SuccessTests,
			"static", result.SuccessStatic,
			"steps", result.Steps)
		results = append(results, result)
	}

	if err := WriteJSON(results, h.opts.SummaryPath); err != nil {
		return results, fmt.Errorf("writing summary: %w", err)
	}
	csvPath := strings.TrimSuffix(h.opts.SummaryPath, filepath.Ext(h.opts.SummaryPath)) + ".csv"
	if err := WriteCSV(results, csvPath); err != nil {
		return results, fmt.Errorf("writing summary: %w", err)
	}
	slog.Info("eval.complete", "tasks", len(results), "summary", h.opts.SummaryPath)
	return results, nil
}

// EvaluateTask runs one task and scores its workspace. Behaviour
// success starts from test success and is tightened by the task's
// content expectations when it declares any.
func (h *Harness) EvaluateTask(ctx context.Context, task Task) Result {
	runResult := h.run(ctx, devagent.TaskConfig{
		Task:          task.Description,
		Workspace:     task.RepoRoot,
		ServerAddress: task.GitMCPURL,
		MaxSteps:      h.opts.MaxSteps,
		Tools:         h.opts.Tools,
		Model:         h.opts.Model,
	})

	chatPath := ""
	saveNote := ""
	if runResult.Transcript != nil {
		chatPath = filepath.Join(h.opts.OutputDir, task.ID+".json")
		if err := runResult.Transcript.Save(chatPath); err != nil {
			saveNote = fmt.Sprintf("Saving transcript failed: %v", err)
			chatPath = ""
		}
	}

	compileOK, compileNotes := h.checker.Compile(ctx, task.RepoRoot)
	testsOK, testNotes := h.checker.Tests(ctx, task.RepoRoot)
	staticOK, staticNotes := h.checker.Static(ctx, task.RepoRoot)

	behaviourOK := testsOK
	patternNotes := ""
	if len(task.Expect) > 0 {
		patternOK, note := CheckContent(task.RepoRoot, task.Expect)
		behaviourOK = behaviourOK && patternOK
		if !patternOK {
			patternNotes = note
		}
	}

	validateNote := ""
	if task.TestFile != "" {
		validOK, note := h.checker.ValidateTestFile(ctx, task.RepoRoot, task.TestFile)
		status := "passed"
		if !validOK {
			status = "failed"
		}
		validateNote = fmt.Sprintf("Test validation %s: %s", status, note)
	}

	var notes []string
	if summary := h.checker.DiffSummary(ctx, task.RepoRoot); summary != "" {
		notes = append(notes, summary)
	}
	if !compileOK && compileNotes != "" {
		notes = append(notes, "Compile: "+compileNotes)
	}
	if !testsOK && testNotes != "" {
		notes = append(notes, "Tests: "+testNotes)
	}
	if !staticOK && staticNotes != "" {
		notes = append(notes, "Static: "+staticNotes)
	}
	if patternNotes != "" {
		notes = append(notes, "Behaviour: "+patternNotes)
	}
	if validateNote != "" {
		notes = append(notes, validateNote)
	}
	if runResult.Error != "" {
		notes = append(notes, "Agent error: "+runResult.Error)
	}
	if saveNote != "" {
		notes = append(notes, saveNote)
	}

	return Result{
		TaskID:           task.ID,
		SuccessCompile:   compileOK,
		SuccessTests:     testsOK,
		SuccessBehaviour: behaviourOK,
		SuccessStatic:    staticOK,
		Steps:            runResult.Steps,
		Notes:            strings.Join(notes, " | "),
		ChatPath:         chatPath,
	}
}
