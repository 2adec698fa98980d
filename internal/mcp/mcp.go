// Package mcp defines the interface for a Model Context Protocol (MCP) host.
//
// The MCP host manages connections to one or more MCP tool servers, maintains
// a catalogue of the tools they expose, and executes tool calls on behalf of
// the assistant agent.
//
// Lifecycle:
//
//  1. Call [Host.Connect] with the server descriptors resolved from the
//     configuration registry.
//  2. Use [Host.Tools] to enumerate the discovered tools.
//  3. Use [Host.ExecuteTool] to run tools on behalf of the agent.
//  4. Call [Host.Close] to release all connections.
//
// A host is scoped to a single assistant query: connections are opened at
// request start and released on every exit path. All methods must be safe for
// concurrent use.
package mcp

import (
	"context"

	"github.com/pcancela/agentic-tasks-template/pkg/provider/llm"
)

// Transport specifies the connection mechanism for an MCP server.
type Transport string

const (
	// TransportStdio spawns a subprocess and communicates over stdin/stdout.
	TransportStdio Transport = "stdio"

	// TransportStreamableHTTP communicates via streamable HTTP JSON-RPC.
	TransportStreamableHTTP Transport = "streamable-http"

	// TransportSSE communicates via HTTP Server-Sent Events (streaming).
	TransportSSE Transport = "sse"
)

// IsValid reports whether t is a recognised transport.
func (t Transport) IsValid() bool {
	switch t {
	case TransportStdio, TransportStreamableHTTP, TransportSSE:
		return true
	}
	return false
}

// ServerConfig describes how to connect to a single MCP server. Exactly one
// variant is meaningful per descriptor: Command/Args/Env for stdio servers,
// URL/Headers for the remote transports.
type ServerConfig struct {
	// Name is the human-readable identifier for this server, unique within a
	// single [Host]. Used in log messages and errors.
	Name string

	// Transport specifies the connection mechanism.
	Transport Transport

	// Command is the executable path used when Transport is
	// [TransportStdio]. Ignored for the remote transports.
	Command string

	// Args are the command-line arguments passed to Command.
	Args []string

	// Env holds additional environment variables injected into the server
	// process when Transport is [TransportStdio]. May be nil.
	Env map[string]string

	// URL is the endpoint address used when Transport is
	// [TransportStreamableHTTP] or [TransportSSE]. Ignored for stdio.
	URL string

	// Headers are additional HTTP headers sent with every request to a
	// remote server (e.g. Authorization). May be nil.
	Headers map[string]string
}

// ToolResult holds the outcome of a single tool execution.
type ToolResult struct {
	// Content is the tool's textual output, typically a JSON string or
	// human-readable text ready for insertion into an LLM context window.
	Content string

	// IsError indicates that the tool returned an application-level error (as
	// opposed to a transport or protocol failure returned via the Go error
	// return value). When IsError is true, Content contains the error message.
	IsError bool

	// DurationMs is the wall-clock time in milliseconds from when the request
	// was dispatched until the full response was received.
	DurationMs int64
}

// Host manages connections to MCP servers and routes tool calls.
//
// Implementations must be safe for concurrent use.
type Host interface {
	// Connect establishes a session with every server described in configs
	// and imports their tool catalogues. On any failure it closes the
	// sessions already opened and returns the error; a host that failed to
	// connect must not be used further.
	Connect(ctx context.Context, configs []ServerConfig) error

	// Tools returns the definitions of all tools discovered at Connect time,
	// ready to be offered to an LLM.
	Tools() []llm.ToolDefinition

	// ExecuteTool calls the named tool with JSON-encoded args and returns the
	// result. name must exactly match a [llm.ToolDefinition.Name] returned by
	// [Host.Tools].
	//
	// args must be a valid JSON object string conforming to the tool's
	// Parameters schema. An empty object ("{}") is valid for parameter-less
	// tools.
	//
	// A non-nil *ToolResult is returned on success even when
	// [ToolResult.IsError] is true (application-level error). A Go error is
	// returned only on transport or protocol failure.
	ExecuteTool(ctx context.Context, name string, args string) (*ToolResult, error)

	// Close shuts down all server connections and releases associated
	// resources. After Close returns the Host must not be used again.
	Close() error
}
