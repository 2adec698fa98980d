// Package agent runs one task against one LLM-backed agent.
//
// A [Runner] owns the completion loop: it offers the MCP host's tools to the
// model, executes the tool calls the model requests, feeds the results back
// into the conversation, and returns the final answer together with a trace
// of every tool invocation.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/pcancela/agentic-tasks-template/internal/mcp"
	"github.com/pcancela/agentic-tasks-template/internal/task"
	"github.com/pcancela/agentic-tasks-template/pkg/provider/llm"
)

// defaultMaxToolRounds caps how many completion rounds may request tool calls
// before the run is cut off.
const defaultMaxToolRounds = 5

// Definition describes the agent's persona: who it is, what it is for, and
// the background woven into its system prompt.
type Definition struct {
	Role      string
	Goal      string
	Backstory string
}

// DefaultDefinition is the website/API fetcher persona used when the caller
// does not provide one.
func DefaultDefinition() Definition {
	return Definition{
		Role:      "Website Fetcher Agent",
		Goal:      "Fetch data from websites or APIs.",
		Backstory: "A specialized AI agent that leverages available MCP tools for fetching data from any website or API.",
	}
}

// taskTemplate is the task description interpolated with the caller's query.
// %s is replaced by the query.
const taskTemplate = `Process the following query and choose which tool should be called: %s

Call the most appropriate tool and provide a detailed and comprehensive answer that resulted from the analysis of fetched data from a website or API.
If the answer is not a result from the analysis of fetched data from a website or API, return to the query caller claiming that you do not know the answer.`

// Config holds all dependencies needed to create a [Runner].
type Config struct {
	// LLM is the completion backend. Must not be nil.
	LLM llm.Provider

	// Host is the MCP host whose tools are offered to the model. Must not be
	// nil; a host with no connected servers simply offers no tools.
	Host mcp.Host

	// Definition is the agent persona. Zero value means [DefaultDefinition].
	Definition Definition

	// MaxToolRounds caps tool-calling rounds. Zero means the default of 5.
	MaxToolRounds int

	// Temperature is passed through to every completion request.
	Temperature float64
}

// Runner executes one task per call to [Runner.Run]. It holds no per-run
// state and is safe for concurrent use.
type Runner struct {
	llm           llm.Provider
	host          mcp.Host
	def           Definition
	maxToolRounds int
	temperature   float64
}

// NewRunner creates a Runner from the given configuration.
//
// Errors are prefixed with "agent: ".
func NewRunner(cfg Config) (*Runner, error) {
	if cfg.LLM == nil {
		return nil, errors.New("agent: LLM must not be nil")
	}
	if cfg.Host == nil {
		return nil, errors.New("agent: Host must not be nil")
	}
	def := cfg.Definition
	if def == (Definition{}) {
		def = DefaultDefinition()
	}
	rounds := cfg.MaxToolRounds
	if rounds <= 0 {
		rounds = defaultMaxToolRounds
	}
	return &Runner{
		llm:           cfg.LLM,
		host:          cfg.Host,
		def:           def,
		maxToolRounds: rounds,
		temperature:   cfg.Temperature,
	}, nil
}

// Run executes the task for query and returns the result with its execution
// trace. LLM and tool-transport errors propagate to the caller unwrapped in
// meaning; there is no retry.
func (r *Runner) Run(ctx context.Context, query string) (*task.Result, error) {
	tools := r.host.Tools()
	exec := &task.Execution{}

	messages := []llm.Message{{
		Role:    "user",
		Content: fmt.Sprintf(taskTemplate, query),
	}}

	for round := 0; ; round++ {
		resp, err := r.llm.Complete(ctx, llm.CompletionRequest{
			SystemPrompt: r.systemPrompt(),
			Messages:     messages,
			Tools:        tools,
			Temperature:  r.temperature,
		})
		if err != nil {
			return nil, fmt.Errorf("agent: completion: %w", err)
		}
		if resp == nil {
			return nil, errors.New("agent: provider returned no response")
		}

		if len(resp.ToolCalls) == 0 {
			return &task.Result{Raw: resp.Content, Execution: exec}, nil
		}

		if round >= r.maxToolRounds {
			slog.Warn("tool round limit reached, returning last content",
				"rounds", round,
				"pending_tool_calls", len(resp.ToolCalls),
			)
			return &task.Result{Raw: resp.Content, Execution: exec}, nil
		}

		messages = append(messages, llm.Message{
			Role:      "assistant",
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})

		for _, tc := range resp.ToolCalls {
			start := time.Now()
			result, err := r.host.ExecuteTool(ctx, tc.Name, tc.Arguments)
			if err != nil {
				return nil, fmt.Errorf("agent: tool %q: %w", tc.Name, err)
			}

			exec.ToolCalls = append(exec.ToolCalls, task.ToolInvocation{
				Tool:      tc.Name,
				Arguments: tc.Arguments,
				Output:    result.Content,
				IsError:   result.IsError,
				Duration:  time.Since(start),
			})

			slog.Debug("tool executed",
				"tool", tc.Name,
				"is_error", result.IsError,
				"duration_ms", result.DurationMs,
			)

			messages = append(messages, llm.Message{
				Role:       "tool",
				Content:    result.Content,
				ToolCallID: tc.ID,
			})
		}
	}
}

// systemPrompt renders the persona into a single system instruction.
func (r *Runner) systemPrompt() string {
	var sb strings.Builder
	sb.WriteString("You are ")
	sb.WriteString(r.def.Role)
	sb.WriteString(". Your goal: ")
	sb.WriteString(r.def.Goal)
	if r.def.Backstory != "" {
		sb.WriteString("\n\n")
		sb.WriteString(r.def.Backstory)
	}
	return sb.String()
}
