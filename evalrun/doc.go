// Package evalrun evaluates agent performance over a list of repair
// tasks. For each task it runs the agent against a prepared
// repository, saves the conversation transcript, then scores the
// workspace with subprocess checks: does it build, do the tests pass,
// do static checks pass, and, when the task declares content
// expectations, does the fix actually appear in the named files.
// Results land in JSON and CSV summaries with one row per task.
package evalrun
