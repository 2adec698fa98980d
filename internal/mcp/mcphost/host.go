// Package mcphost provides a concrete implementation of the [mcp.Host]
// interface.
//
// It connects to MCP servers via stdio, streamable-HTTP, or SSE transports
// using the official MCP Go SDK (github.com/modelcontextprotocol/go-sdk) and
// maintains a concurrent-safe in-memory tool registry populated at connect
// time.
//
// Typical usage:
//
//	h := mcphost.New()
//	err := h.Connect(ctx, descriptors)
//	defer h.Close()
//
//	tools := h.Tools()
//	result, err := h.ExecuteTool(ctx, "fetch_url", `{"url":"https://example.com"}`)
package mcphost

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"golang.org/x/sync/errgroup"

	"github.com/pcancela/agentic-tasks-template/internal/mcp"
	"github.com/pcancela/agentic-tasks-template/pkg/provider/llm"
)

// toolEntry holds the metadata for a single discovered tool.
type toolEntry struct {
	def        llm.ToolDefinition
	serverName string
}

// serverConn holds a live session with an external MCP server.
type serverConn struct {
	session *mcpsdk.ClientSession
}

// Host is a concrete implementation of [mcp.Host].
//
// The zero value is NOT usable; create instances with [New]. A Host is
// intended to live for the duration of a single assistant query.
type Host struct {
	mu      sync.RWMutex
	tools   map[string]toolEntry  // key: tool name
	servers map[string]serverConn // key: server name

	// client is reused across all server connections. The official SDK allows
	// a single Client to manage multiple sessions concurrently.
	client *mcpsdk.Client
}

// Compile-time check: Host must implement mcp.Host.
var _ mcp.Host = (*Host)(nil)

// New creates and returns a ready-to-use Host.
func New() *Host {
	client := mcpsdk.NewClient(
		&mcpsdk.Implementation{Name: "agentic-tasks-host", Version: "1.0.0"},
		nil,
	)
	return &Host{
		tools:   make(map[string]toolEntry),
		servers: make(map[string]serverConn),
		client:  client,
	}
}

// Connect establishes a session with every server described in configs and
// imports their tool catalogues. Sessions are opened concurrently; the first
// failure cancels the remaining attempts, closes the sessions already opened,
// and is returned to the caller.
//
// When two servers expose a tool with the same name, the entry registered
// last wins; connection order is not deterministic, so server authors should
// keep tool names distinct.
func (h *Host) Connect(ctx context.Context, configs []mcp.ServerConfig) error {
	g, gctx := errgroup.WithContext(ctx)

	for _, cfg := range configs {
		g.Go(func() error {
			return h.connectOne(gctx, cfg)
		})
	}

	if err := g.Wait(); err != nil {
		_ = h.Close()
		return err
	}
	return nil
}

// connectOne opens a session with a single server and registers its tools.
func (h *Host) connectOne(ctx context.Context, cfg mcp.ServerConfig) error {
	if cfg.Name == "" {
		return fmt.Errorf("mcp host: server config must have a non-empty name")
	}

	transport, err := buildTransport(ctx, cfg)
	if err != nil {
		return err
	}

	session, err := h.client.Connect(ctx, transport, nil)
	if err != nil {
		return fmt.Errorf("mcp host: failed to connect to server %q: %w", cfg.Name, err)
	}

	// Discover tools using the iterator.
	var discoveredTools []mcpsdk.Tool
	for tool, err := range session.Tools(ctx, nil) {
		if err != nil {
			_ = session.Close()
			return fmt.Errorf("mcp host: failed to list tools for server %q: %w", cfg.Name, err)
		}
		discoveredTools = append(discoveredTools, *tool)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.servers[cfg.Name] = serverConn{session: session}
	for _, mcpTool := range discoveredTools {
		h.tools[mcpTool.Name] = toolEntry{
			def: llm.ToolDefinition{
				Name:        mcpTool.Name,
				Description: mcpTool.Description,
				Parameters:  schemaToMap(mcpTool.InputSchema),
			},
			serverName: cfg.Name,
		}
	}
	return nil
}

// buildTransport creates the SDK transport matching the descriptor variant.
func buildTransport(ctx context.Context, cfg mcp.ServerConfig) (mcpsdk.Transport, error) {
	switch cfg.Transport {
	case mcp.TransportStdio:
		if cfg.Command == "" {
			return nil, fmt.Errorf("mcp host: stdio server %q requires a non-empty Command", cfg.Name)
		}
		cmd := exec.CommandContext(ctx, cfg.Command, cfg.Args...)
		// Inherit the process environment plus any configured extras.
		cmd.Env = os.Environ()
		for k, v := range cfg.Env {
			cmd.Env = append(cmd.Env, k+"="+v)
		}
		return &mcpsdk.CommandTransport{Command: cmd}, nil

	case mcp.TransportStreamableHTTP:
		if cfg.URL == "" {
			return nil, fmt.Errorf("mcp host: streamable-http server %q requires a non-empty URL", cfg.Name)
		}
		return &mcpsdk.StreamableClientTransport{
			Endpoint:   cfg.URL,
			HTTPClient: headerClient(cfg.Headers),
		}, nil

	case mcp.TransportSSE:
		if cfg.URL == "" {
			return nil, fmt.Errorf("mcp host: sse server %q requires a non-empty URL", cfg.Name)
		}
		return &mcpsdk.SSEClientTransport{
			Endpoint:   cfg.URL,
			HTTPClient: headerClient(cfg.Headers),
		}, nil

	default:
		return nil, fmt.Errorf("mcp host: unknown transport %q for server %q", cfg.Transport, cfg.Name)
	}
}

// headerClient returns an http.Client that injects the given headers into
// every request, or nil when no headers are configured (letting the SDK use
// its default client).
func headerClient(headers map[string]string) *http.Client {
	if len(headers) == 0 {
		return nil
	}
	return &http.Client{
		Transport: &headerRoundTripper{headers: headers},
	}
}

// headerRoundTripper sets fixed headers on every outgoing request.
type headerRoundTripper struct {
	headers map[string]string
}

func (t *headerRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	for k, v := range t.headers {
		req.Header.Set(k, v)
	}
	return http.DefaultTransport.RoundTrip(req)
}

// Tools returns the definitions of all tools discovered at Connect time.
func (h *Host) Tools() []llm.ToolDefinition {
	h.mu.RLock()
	defer h.mu.RUnlock()

	defs := make([]llm.ToolDefinition, 0, len(h.tools))
	for _, e := range h.tools {
		defs = append(defs, e.def)
	}
	return defs
}

// ExecuteTool calls the named tool with JSON-encoded args and returns the
// result.
//
// A non-nil *ToolResult is returned on success even when
// [mcp.ToolResult.IsError] is true (application-level error). A Go error is
// returned only on transport or protocol failure.
func (h *Host) ExecuteTool(ctx context.Context, name string, args string) (*mcp.ToolResult, error) {
	h.mu.RLock()
	entry, ok := h.tools[name]
	var conn serverConn
	var connOK bool
	if ok {
		conn, connOK = h.servers[entry.serverName]
	}
	h.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("mcp host: tool %q not found", name)
	}
	if !connOK {
		return nil, fmt.Errorf("mcp host: server %q not found for tool %q", entry.serverName, name)
	}

	// Decode args into a map for the SDK.
	var argsMap map[string]any
	if args != "" && args != "{}" {
		if err := json.Unmarshal([]byte(args), &argsMap); err != nil {
			return nil, fmt.Errorf("mcp host: invalid args JSON for tool %q: %w", name, err)
		}
	}

	start := time.Now()
	callResult, err := conn.session.CallTool(ctx, &mcpsdk.CallToolParams{
		Name:      name,
		Arguments: argsMap,
	})
	if err != nil {
		return nil, fmt.Errorf("mcp host: call to tool %q failed: %w", name, err)
	}

	// Concatenate all text content from the result.
	var sb strings.Builder
	for _, c := range callResult.Content {
		if tc, ok := c.(*mcpsdk.TextContent); ok {
			sb.WriteString(tc.Text)
		}
	}

	return &mcp.ToolResult{
		Content:    sb.String(),
		IsError:    callResult.IsError,
		DurationMs: time.Since(start).Milliseconds(),
	}, nil
}

// Close shuts down all server connections and releases associated resources.
// Close is safe to call multiple times; after it returns the Host must not be
// used again.
func (h *Host) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	var firstErr error
	for name, conn := range h.servers {
		if err := conn.session.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("mcp host: error closing server %q: %w", name, err)
		}
		delete(h.servers, name)
	}

	// Clear the tool registry.
	h.tools = make(map[string]toolEntry)

	return firstErr
}

// schemaToMap converts any schema value to a map[string]any.
func schemaToMap(schema any) map[string]any {
	if schema == nil {
		return map[string]any{"type": "object"}
	}
	if m, ok := schema.(map[string]any); ok {
		return m
	}
	data, err := json.Marshal(schema)
	if err != nil {
		return map[string]any{"type": "object"}
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return map[string]any{"type": "object"}
	}
	return m
}
