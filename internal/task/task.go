// Package task defines the output of one assistant task run and the
// heuristics used to judge whether that output reflects genuine
// tool-derived data rather than a refusal or an error narrative.
package task

import "time"

// ToolInvocation records a single tool call made while producing a result.
type ToolInvocation struct {
	// Tool is the name of the invoked tool.
	Tool string

	// Arguments is the JSON-encoded arguments string sent to the tool.
	Arguments string

	// Output is the tool's textual response.
	Output string

	// IsError indicates the tool returned an application-level error.
	IsError bool

	// Duration is the wall-clock time the invocation took.
	Duration time.Duration
}

// Execution holds the metadata collected while a result was produced.
type Execution struct {
	// ToolCalls is the ordered sequence of tool invocations.
	ToolCalls []ToolInvocation
}

// Result is the output of running one task against one agent.
//
// Execution is nil when no execution metadata is available (e.g. the result
// was reconstructed from text alone); validators must handle both variants
// explicitly rather than probing for optional fields.
type Result struct {
	// Raw is the textual payload produced by the agent.
	Raw string

	// Execution is the optional execution metadata. Nil means "unknown", not
	// "no tools were called".
	Execution *Execution
}
