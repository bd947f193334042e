// Package mcpclient connects the agent to stdio tool servers speaking
// the Model Context Protocol.
//
// Servers are addressed with a compact colon-separated form:
//
//	stdio://python:-m:mcp_server_git:--repository:/path/to/repo
//
// The first segment after the scheme is the executable, the rest are
// its arguments. Because repository paths can themselves contain
// colons, addresses matching the git server's fixed argument prefix
// get their tail rejoined into a single path segment.
//
// A Client keeps one server session alive across a whole run: the
// process is spawned and the protocol handshake performed on the first
// call, then every subsequent catalog fetch or tool call reuses the
// session until Close tears it down.
//
// All failures surface as *TransportError. The type carries every
// underlying cause, so a session that fails in multiple ways at once
// still reports each of them.
package mcpclient
