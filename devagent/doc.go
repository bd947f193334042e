// Package devagent implements an autonomous coding agent loop.
//
// It pairs a chat model with two tool surfaces: a git tool server
// reached over the Model Context Protocol, and a set of built-in
// workspace tools confined to one repository root. The loop feeds the
// model the transcript and the merged tool catalog, executes whatever
// calls come back, folds the rendered results into the transcript, and
// repeats until the model declares completion or the step budget runs
// out.
//
// # Architecture
//
//   - Conversation: append-only transcript with synchronous observers;
//     serializable to JSON and reloadable mid-task.
//   - ToolRegistry: the remote catalog and the local tools resolved
//     into one dispatch table, remote winning name collisions.
//   - LocalExecutor: list/read/write/patch/test/lint tools whose path
//     arguments cannot leave the workspace root.
//   - Agent: the generate-dispatch loop with its step budget and
//     completion detection.
//
// # Quick Start
//
//	result := devagent.RunTask(ctx, devagent.TaskConfig{
//	    Task:          "Fix the failing TestParse case",
//	    Workspace:     "/srv/repos/widget",
//	    ServerAddress: "stdio://python:-m:mcp_server_git:--repository:/srv/repos/widget",
//	    Model:         llmclient.Config{APIKey: key},
//	})
//	if !result.Success {
//	    log.Printf("failed after %d steps: %s", result.Steps, result.Error)
//	}
//
// RunTask never returns an error. Configuration mistakes, transport
// failures and mid-run faults all fold into the Result alongside the
// transcript gathered so far, so callers always have something to
// inspect or persist.
package devagent
