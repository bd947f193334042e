package devagent

import (
	"context"
	"log/slog"
	"time"

	"github.com/lathelabs/lathe/llmclient"
	"github.com/lathelabs/lathe/mcpclient"
)

// ToolTransport is the remote side of the tool registry: the catalog
// and call surface of a tool server. *mcpclient.Client satisfies it;
// tests substitute scripted fakes.
type ToolTransport interface {
	ListTools(ctx context.Context) ([]llmclient.ToolSpec, error)
	CallTool(ctx context.Context, name string, args map[string]any) ([]mcpclient.ContentBlock, error)
	Close() error
}

// ToolOrigin tags where a registered tool executes.
type ToolOrigin int

const (
	OriginRemote ToolOrigin = iota
	OriginLocal
)

func (o ToolOrigin) String() string {
	if o == OriginLocal {
		return "local"
	}
	return "remote"
}

type toolHandler func(ctx context.Context, args map[string]any) ([]mcpclient.ContentBlock, error)

// registeredTool binds a spec to its execution route.
type registeredTool struct {
	spec    llmclient.ToolSpec
	origin  ToolOrigin
	handler toolHandler
}

// ToolRegistry is the union of a remote tool catalog and the built-in
// workspace tools, resolved once per run. After BuildRegistry returns
// the registry is read-only, so lookups need no locking.
type ToolRegistry struct {
	entries map[string]registeredTool
	specs   []llmclient.ToolSpec
}

// BuildRegistry fetches the remote catalog and merges the local tools
// beneath it. On a name collision the remote tool wins: the server is
// the authority for anything it advertises. remote may be nil for a
// registry of workspace tools only.
func BuildRegistry(ctx context.Context, remote ToolTransport, local *LocalExecutor) (*ToolRegistry, error) {
	reg := &ToolRegistry{entries: make(map[string]registeredTool)}

	if remote != nil {
		remoteSpecs, err := remote.ListTools(ctx)
		if err != nil {
			return nil, err
		}
		for _, spec := range remoteSpecs {
			name := spec.Name
			reg.register(registeredTool{
				spec:   spec,
				origin: OriginRemote,
				handler: func(ctx context.Context, args map[string]any) ([]mcpclient.ContentBlock, error) {
					return remote.CallTool(ctx, name, args)
				},
			})
		}
	}

	if local != nil {
		for _, spec := range local.Specs() {
			name := spec.Name
			if _, exists := reg.entries[name]; exists {
				slog.Warn("tools.collision", "tool", name, "kept", "remote")
				continue
			}
			reg.register(registeredTool{
				spec:   spec,
				origin: OriginLocal,
				handler: func(ctx context.Context, args map[string]any) ([]mcpclient.ContentBlock, error) {
					return local.Call(ctx, name, args)
				},
			})
		}
	}

	slog.Debug("tools.registry_built", "tools", len(reg.entries))
	return reg, nil
}

func (r *ToolRegistry) register(entry registeredTool) {
	if _, exists := r.entries[entry.spec.Name]; exists {
		return
	}
	r.entries[entry.spec.Name] = entry
	r.specs = append(r.specs, entry.spec)
}

// Specs returns the merged catalog in registration order, remote tools
// first.
func (r *ToolRegistry) Specs() []llmclient.ToolSpec {
	out := make([]llmclient.ToolSpec, len(r.specs))
	copy(out, r.specs)
	return out
}

// Count returns the number of registered tools.
func (r *ToolRegistry) Count() int { return len(r.entries) }

// Origin reports where the named tool executes.
func (r *ToolRegistry) Origin(name string) (ToolOrigin, bool) {
	entry, ok := r.entries[name]
	return entry.origin, ok
}

// Dispatch resolves one tool call against the registry and runs it.
// An unknown tool name is a ToolExecutionError; everything else is
// whatever the handler produced.
func (r *ToolRegistry) Dispatch(ctx context.Context, call llmclient.ToolCall) ([]mcpclient.ContentBlock, error) {
	entry, ok := r.entries[call.Name]
	if !ok {
		return nil, NewToolExecutionError(call.Name, "unknown tool %q", call.Name)
	}

	start := time.Now()
	blocks, err := entry.handler(ctx, call.ParsedArguments())
	slog.Debug("tools.dispatch",
		"tool", call.Name,
		"origin", entry.origin.String(),
		"duration_ms", time.Since(start).Milliseconds(),
		"failed", err != nil)
	return blocks, err
}
