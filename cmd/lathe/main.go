package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/lathelabs/lathe/devagent"
	"github.com/lathelabs/lathe/evalrun"
	"github.com/lathelabs/lathe/llmclient"
	"github.com/lathelabs/lathe/taskapi"
)

var rootCmd = &cobra.Command{
	Use:   "lathe",
	Short: "lathe - autonomous development agent",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogging(verboseFlag)
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a single task against a repository",
	RunE:  runRun,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the task API over HTTP",
	RunE:  runServe,
}

var evalCmd = &cobra.Command{
	Use:   "eval",
	Short: "Run an evaluation suite and score each workspace",
	RunE:  runEval,
}

var (
	verboseFlag bool

	taskFlag       string
	repoFlag       string
	addressFlag    string
	maxStepsFlag   int
	modelFlag      string
	baseURLFlag    string
	rpmFlag        int
	transcriptFlag string

	listenFlag string

	tasksFileFlag string
	outputDirFlag string
	summaryFlag   string
	evalStepsFlag int
)

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Enable debug logging")

	runCmd.Flags().StringVarP(&taskFlag, "task", "t", "", "Task description handed to the model")
	runCmd.Flags().StringVarP(&repoFlag, "repo", "r", "", "Path to the repository to work on")
	runCmd.Flags().StringVarP(&addressFlag, "address", "a", "", "stdio:// address of the git tool server")
	runCmd.Flags().IntVar(&maxStepsFlag, "max-steps", devagent.DefaultMaxSteps, "Maximum loop steps before giving up")
	runCmd.Flags().StringVar(&modelFlag, "model", "", "Model name (overrides LLM_MODEL_NAME)")
	runCmd.Flags().StringVar(&baseURLFlag, "base-url", "", "Endpoint override for the model backend")
	runCmd.Flags().IntVar(&rpmFlag, "rpm", 0, "Requests per minute (overrides LLM_REQUESTS_PER_MINUTE)")
	runCmd.Flags().StringVar(&transcriptFlag, "transcript", "", "Write the final conversation to this path as JSON")
	_ = runCmd.MarkFlagRequired("task")
	_ = runCmd.MarkFlagRequired("repo")
	_ = runCmd.MarkFlagRequired("address")

	serveCmd.Flags().StringVar(&listenFlag, "listen", ":8000", "Address to listen on")

	evalCmd.Flags().StringVar(&tasksFileFlag, "tasks", "", "YAML file listing evaluation tasks")
	evalCmd.Flags().StringVar(&outputDirFlag, "output-dir", "eval_results", "Directory for transcripts and summaries")
	evalCmd.Flags().StringVar(&summaryFlag, "summary", "", "Summary JSON path (defaults to <output-dir>/eval_summary.json)")
	evalCmd.Flags().IntVar(&evalStepsFlag, "max-steps", devagent.DefaultMaxSteps, "Maximum loop steps per task")
	_ = evalCmd.MarkFlagRequired("tasks")

	rootCmd.AddCommand(runCmd, serveCmd, evalCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runRun(cmd *cobra.Command, args []string) error {
	model, err := modelConfigFromEnv()
	if err != nil {
		return err
	}
	if modelFlag != "" {
		model.Model = modelFlag
	}
	if baseURLFlag != "" {
		model.BaseURL = baseURLFlag
	}
	if rpmFlag > 0 {
		model.RequestsPerMinute = rpmFlag
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result := devagent.RunTask(ctx, devagent.TaskConfig{
		Task:          taskFlag,
		Workspace:     repoFlag,
		ServerAddress: addressFlag,
		MaxSteps:      maxStepsFlag,
		Model:         model,
	})

	writeRunResult(os.Stdout, result)
	if transcriptFlag != "" && result.Transcript != nil {
		if err := result.Transcript.Save(transcriptFlag); err != nil {
			return fmt.Errorf("saving transcript: %w", err)
		}
		fmt.Printf("Transcript saved to %s\n", transcriptFlag)
	}
	if !result.Success {
		os.Exit(1)
	}
	return nil
}

// writeRunResult prints the outcome of one run, ending with the
// model's final reply when there is one.
func writeRunResult(w io.Writer, result *devagent.Result) {
	fmt.Fprintf(w, "Success: %v\n", result.Success)
	fmt.Fprintf(w, "Steps: %d\n", result.Steps)
	if result.Error != "" {
		fmt.Fprintf(w, "Error: %s\n", result.Error)
	}
	if result.Transcript == nil {
		return
	}
	msgs := result.Transcript.Messages()
	if len(msgs) > 0 && msgs[len(msgs)-1].Role == devagent.RoleAssistant {
		fmt.Fprintf(w, "\n%s\n", msgs[len(msgs)-1].Content)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	model, err := modelConfigFromEnv()
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	taskapi.NewHandler(taskapi.Options{Model: model}).RegisterRoutes(mux)
	srv := &http.Server{Addr: listenFlag, Handler: mux}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		slog.Info("api.listening", "addr", listenFlag)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("serving: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func runEval(cmd *cobra.Command, args []string) error {
	model, err := modelConfigFromEnv()
	if err != nil {
		return err
	}
	summaryPath := summaryFlag
	if summaryPath == "" {
		summaryPath = filepath.Join(outputDirFlag, "eval_summary.json")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	harness := evalrun.NewHarness(evalrun.Options{
		TasksFile:   tasksFileFlag,
		OutputDir:   outputDirFlag,
		SummaryPath: summaryPath,
		MaxSteps:    evalStepsFlag,
		Model:       model,
	})
	results, err := harness.Run(ctx)
	if err != nil {
		return err
	}

	writeEvalTable(os.Stdout, results)
	fmt.Printf("\nSummary written to %s\n", summaryPath)
	return nil
}

func writeEvalTable(w io.Writer, results []evalrun.Result) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TASK\tCOMPILE\tTESTS\tBEHAVIOUR\tSTATIC\tSTEPS")
	for _, res := range results {
		fmt.Fprintf(tw, "%s\t%v\t%v\t%v\t%v\t%d\n",
			res.TaskID, res.SuccessCompile, res.SuccessTests, res.SuccessBehaviour, res.SuccessStatic, res.Steps)
	}
	tw.Flush()
}

// setupLogging routes slog to stderr so command output stays clean on
// stdout.
func setupLogging(verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

// modelConfigFromEnv resolves the provider settings from the process
// environment. This is the only place the environment is read; every
// package below takes explicit configuration.
func modelConfigFromEnv() (llmclient.Config, error) {
	backend := llmclient.Backend(envOr("LLM_BACKEND_NAME", string(llmclient.BackendOpenAI)))

	keyVar := "OPENAI_API_KEY"
	if backend == llmclient.BackendGemini {
		keyVar = "GOOGLE_API_KEY"
	}

	rpm := llmclient.DefaultRequestsPerMinute
	if raw := os.Getenv("LLM_REQUESTS_PER_MINUTE"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			return llmclient.Config{}, fmt.Errorf("invalid LLM_REQUESTS_PER_MINUTE %q: %w", raw, err)
		}
		rpm = parsed
	}

	return llmclient.Config{
		Backend:           backend,
		Model:             os.Getenv("LLM_MODEL_NAME"),
		APIKey:            os.Getenv(keyVar),
		RequestsPerMinute: rpm,
	}, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
