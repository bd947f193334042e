package mcpclient

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os/exec"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/lathelabs/lathe/llmclient"
)

const (
	clientName    = "lathe"
	clientVersion = "0.1.0"
)

// Options configures a Client.
type Options struct {
	// AllowedTools restricts the advertised capability list to the
	// named tools. Nil means every tool the server offers.
	AllowedTools []string

	// DefaultRepoPath is injected as the repo_path argument of any
	// call that omits it. Git tool servers require it on every call
	// even though the server was already started against a repository.
	DefaultRepoPath string
}

// Client owns one stdio tool-server session. The server process is
// spawned on first use and kept alive until Close, so consecutive
// calls in a run share a single handshake. A Client is safe for
// concurrent use.
type Client struct {
	raw     string
	addr    Address
	opts    Options
	allowed map[string]struct{}

	mu      sync.Mutex
	session *mcp.ClientSession
}

// New parses the server address and prepares a client. The server is
// not contacted yet; an invalid address fails here so callers learn
// about configuration mistakes before doing any other work.
func New(rawAddr string, opts Options) (*Client, error) {
	addr, err := ParseAddress(rawAddr)
	if err != nil {
		return nil, err
	}

	c := &Client{raw: rawAddr, addr: addr, opts: opts}
	if opts.AllowedTools != nil {
		c.allowed = make(map[string]struct{}, len(opts.AllowedTools))
		for _, name := range opts.AllowedTools {
			c.allowed[name] = struct{}{}
		}
	}
	return c, nil
}

// ensureSession spawns the server and completes the initialize
// handshake once, returning the cached session afterwards.
func (c *Client) ensureSession(ctx context.Context) (*mcp.ClientSession, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session != nil {
		return c.session, nil
	}

	// Plain exec.Command: the process must outlive the connect call,
	// and the session owns its shutdown.
	cmd := exec.Command(c.addr.Command, c.addr.Args...)
	transport := &mcp.CommandTransport{Command: cmd}
	client := mcp.NewClient(&mcp.Implementation{Name: clientName, Version: clientVersion}, nil)

	session, err := client.Connect(ctx, transport, nil)
	if err != nil {
		return nil, NewTransportError(fmt.Sprintf("connecting to tool server %q", c.raw), err)
	}
	if session.InitializeResult() == nil {
		_ = session.Close()
		return nil, NewTransportError(fmt.Sprintf("tool server %q did not complete initialization", c.raw))
	}

	slog.Debug("mcp.connected", "command", c.addr.Command, "args", len(c.addr.Args))
	c.session = session
	return session, nil
}

// ListTools fetches the server's tool catalog as provider-neutral
// specs, filtered by the allow-list when one is configured.
func (c *Client) ListTools(ctx context.Context) ([]llmclient.ToolSpec, error) {
	session, err := c.ensureSession(ctx)
	if err != nil {
		return nil, err
	}

	var specs []llmclient.ToolSpec
	for tool, err := range session.Tools(ctx, nil) {
		if err != nil {
			return nil, NewTransportError(fmt.Sprintf("listing tools from %q", c.raw), err)
		}
		if !c.toolAllowed(tool.Name) {
			continue
		}
		specs = append(specs, llmclient.ToolSpec{
			Name:        tool.Name,
			Description: tool.Description,
			Parameters:  schemaToMap(tool.InputSchema),
		})
	}

	slog.Debug("mcp.tools_listed", "count", len(specs))
	return specs, nil
}

// CallTool invokes one tool and decodes its content. The default
// repository path is injected when the arguments omit repo_path.
// Server-side tool errors still come back as content blocks; only
// transport-level failures return an error.
func (c *Client) CallTool(ctx context.Context, name string, args map[string]any) ([]ContentBlock, error) {
	session, err := c.ensureSession(ctx)
	if err != nil {
		return nil, err
	}

	callArgs := make(map[string]any, len(args)+1)
	for k, v := range args {
		callArgs[k] = v
	}
	if c.opts.DefaultRepoPath != "" {
		if _, ok := callArgs["repo_path"]; !ok {
			callArgs["repo_path"] = c.opts.DefaultRepoPath
		}
	}

	res, err := session.CallTool(ctx, &mcp.CallToolParams{Name: name, Arguments: callArgs})
	if err != nil {
		return nil, NewTransportError(fmt.Sprintf("calling tool %q", name), err)
	}
	if res == nil {
		return nil, NewTransportError(fmt.Sprintf("tool %q returned no result", name))
	}
	return decodeContent(res.Content), nil
}

// Close shuts down the session and the server process. Safe to call
// multiple times and before any connection was made.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session == nil {
		return nil
	}
	session := c.session
	c.session = nil
	if err := session.Close(); err != nil {
		return NewTransportError(fmt.Sprintf("closing tool server %q", c.raw), err)
	}
	return nil
}

func (c *Client) toolAllowed(name string) bool {
	if c.allowed == nil {
		return true
	}
	_, ok := c.allowed[name]
	return ok
}

// schemaToMap flattens whatever schema representation the SDK hands
// back into the plain map the model gateway expects.
func schemaToMap(schema any) map[string]any {
	fallback := map[string]any{"type": "object"}
	if schema == nil {
		return fallback
	}
	data, err := json.Marshal(schema)
	if err != nil {
		return fallback
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil || m == nil {
		return fallback
	}
	return m
}
