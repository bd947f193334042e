// Package taskapi exposes the development agent over HTTP. One
// endpoint accepts a task description plus a workspace and a git MCP
// server address, runs the agent to completion, and returns the
// outcome together with the full transcript. Callers can resume a
// previous run by sending its transcript back as conversation
// history.
package taskapi
