// Package orchestrator ties the configuration registry, MCP host, and agent
// runner together into a single query pipeline.
//
// Every call to [Orchestrator.Run] is fully scoped to that one query: a fresh
// MCP host is created, connections to every resolvable registry server are
// established, one agent processes one task, and all connections are closed
// before the call returns. Nothing is shared between queries.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/pcancela/agentic-tasks-template/internal/agent"
	"github.com/pcancela/agentic-tasks-template/internal/config"
	"github.com/pcancela/agentic-tasks-template/internal/mcp"
	"github.com/pcancela/agentic-tasks-template/internal/mcp/mcphost"
	"github.com/pcancela/agentic-tasks-template/internal/observe"
	"github.com/pcancela/agentic-tasks-template/internal/task"
	"github.com/pcancela/agentic-tasks-template/pkg/provider/llm"
)

// HostFactory produces a fresh [mcp.Host] for one query. The default factory
// returns [mcphost.New]; tests inject mocks here.
type HostFactory func() mcp.Host

// Config holds all dependencies needed to create an [Orchestrator].
type Config struct {
	// Registry resolves configured MCP servers. Must not be nil.
	Registry *config.Registry

	// LLM is the completion backend handed to the agent. Must not be nil.
	LLM llm.Provider

	// ProviderName labels LLM metrics with the backend in use
	// ("ollama", "openai", ...). Empty means "unknown".
	ProviderName string

	// Agent is the persona definition. Zero value means the default persona.
	Agent agent.Definition

	// MaxToolRounds caps the agent's tool-calling rounds. Zero means default.
	MaxToolRounds int

	// Temperature is passed through to every completion request.
	Temperature float64

	// NewHost overrides how per-query MCP hosts are created. Nil means
	// [mcphost.New].
	NewHost HostFactory

	// Metrics receives pipeline instrumentation. Nil means
	// [observe.DefaultMetrics].
	Metrics *observe.Metrics
}

// Orchestrator processes natural-language queries. It is safe for concurrent
// use; all per-query state lives inside [Orchestrator.Run].
type Orchestrator struct {
	registry      *config.Registry
	llm           llm.Provider
	agentDef      agent.Definition
	maxToolRounds int
	temperature   float64
	newHost       HostFactory
	metrics       *observe.Metrics
}

// New creates an Orchestrator from the given configuration.
//
// Errors are prefixed with "orchestrator: ".
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Registry == nil {
		return nil, errors.New("orchestrator: Registry must not be nil")
	}
	if cfg.LLM == nil {
		return nil, errors.New("orchestrator: LLM must not be nil")
	}
	newHost := cfg.NewHost
	if newHost == nil {
		newHost = func() mcp.Host { return mcphost.New() }
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}
	providerName := cfg.ProviderName
	if providerName == "" {
		providerName = "unknown"
	}
	return &Orchestrator{
		registry: cfg.Registry,
		llm: &instrumentedProvider{
			Provider: cfg.LLM,
			metrics:  metrics,
			name:     providerName,
		},
		agentDef:      cfg.Agent,
		maxToolRounds: cfg.MaxToolRounds,
		temperature:   cfg.Temperature,
		newHost:       newHost,
		metrics:       metrics,
	}, nil
}

// instrumentedProvider decorates an [llm.Provider] with inference latency and
// error metrics. Streaming calls pass through unmeasured.
type instrumentedProvider struct {
	llm.Provider
	metrics *observe.Metrics
	name    string
}

func (p *instrumentedProvider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	start := time.Now()
	resp, err := p.Provider.Complete(ctx, req)
	p.metrics.LLMDuration.Record(ctx, time.Since(start).Seconds(),
		metric.WithAttributes(observe.Attr("provider", p.name)),
	)
	if err != nil {
		p.metrics.RecordProviderError(ctx, p.name, "completion")
	}
	return resp, err
}

// Run processes a single query end to end and returns the task result.
//
// Registry entries that fail to resolve were already skipped at load time;
// a server that resolves but cannot be connected fails the whole query.
// Connections never outlive the call.
func (o *Orchestrator) Run(ctx context.Context, query string) (*task.Result, error) {
	start := time.Now()

	ctx, span := observe.StartSpan(ctx, "orchestrator.run",
		trace.WithSpanKind(trace.SpanKindInternal),
	)
	defer span.End()

	o.metrics.ActiveQueries.Add(ctx, 1)
	defer o.metrics.ActiveQueries.Add(ctx, -1)

	log := observe.Logger(ctx)

	configs := o.registry.ResolveAll()
	log.Info("connecting MCP servers", slog.Int("servers", len(configs)))

	host := o.newHost()
	if err := host.Connect(ctx, configs); err != nil {
		o.metrics.RecordQuery(ctx, "error")
		return nil, fmt.Errorf("orchestrator: connect MCP servers: %w", err)
	}
	defer func() {
		if err := host.Close(); err != nil {
			log.Warn("closing MCP connections", slog.String("error", err.Error()))
		}
	}()

	runner, err := agent.NewRunner(agent.Config{
		LLM:           o.llm,
		Host:          host,
		Definition:    o.agentDef,
		MaxToolRounds: o.maxToolRounds,
		Temperature:   o.temperature,
	})
	if err != nil {
		o.metrics.RecordQuery(ctx, "error")
		return nil, fmt.Errorf("orchestrator: %w", err)
	}

	result, err := runner.Run(ctx, query)
	if err != nil {
		o.metrics.RecordQuery(ctx, "error")
		return nil, fmt.Errorf("orchestrator: run task: %w", err)
	}

	o.inspect(ctx, log, result)

	o.metrics.RecordQuery(ctx, "ok")
	o.metrics.QueryDuration.Record(ctx, time.Since(start).Seconds())
	return result, nil
}

// inspect evaluates the task output and records the verdict. Validation is
// observational: an empty or error-laden answer is still returned to the
// caller, it is just flagged in logs and metrics.
func (o *Orchestrator) inspect(ctx context.Context, log *slog.Logger, result *task.Result) {
	report := result.Describe()

	outcome := "empty"
	if report.HasMeaningfulData {
		outcome = "meaningful"
	}
	o.metrics.RecordValidationOutcome(ctx, outcome)

	log.Info("task output validated",
		slog.Bool("meaningful", report.HasMeaningfulData),
		slog.Bool("has_tool_calls", report.HasToolCalls),
		slog.Int("output_length", report.OutputLength),
		slog.Int("tool_call_count", report.ToolCallCount),
		slog.Any("tools_used", report.ToolsUsed),
	)

	if result.Execution != nil {
		for _, call := range result.Execution.ToolCalls {
			status := "ok"
			if call.IsError {
				status = "error"
			}
			o.metrics.RecordToolCall(ctx, call.Tool, status)
			o.metrics.ToolExecutionDuration.Record(ctx, call.Duration.Seconds())
		}
	}
}
