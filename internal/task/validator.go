package task

import (
	"strings"
	"unicode/utf8"
)

// DefaultMinLength is the minimum trimmed length a result must have before it
// can be considered meaningful. Answers synthesised from real tool data are
// rarely shorter.
const DefaultMinLength = 50

// previewLength caps the output preview included in a [Report].
const previewLength = 200

// noDataIndicators are substrings whose presence marks a result as a
// non-answer: leaked reasoning, refusals, and error narratives. Matching is
// done on the trimmed, lowercased text. Each entry is a distinct phrase;
// review the list as a whole when adding entries.
var noDataIndicators = []string{
	"thought:",
	"i do not know",
	"i don't know",
	"no data",
	"failed to fetch",
	"error",
	"unable to",
	"could not",
	"cannot",
	"timeout",
	"not available",
}

// HasMeaningfulData reports whether the result reflects genuine tool-derived
// data. It fails closed: a nil result or empty text is never meaningful.
//
// The judgment is made in order: non-empty text, no refusal/error indicator,
// minimum length, and — when execution metadata is available — at least one
// recorded tool invocation. The metadata check replaces the content-based
// "assume meaningful" default, so a long clean answer produced without any
// tool call is still rejected.
func (r *Result) HasMeaningfulData() bool {
	if r == nil || r.Raw == "" {
		return false
	}

	content := strings.ToLower(strings.TrimSpace(r.Raw))

	for _, indicator := range noDataIndicators {
		if strings.Contains(content, indicator) {
			return false
		}
	}

	if utf8.RuneCountInString(content) < DefaultMinLength {
		return false
	}

	if r.Execution != nil {
		return len(r.Execution.ToolCalls) > 0
	}

	return true
}

// HasSuccessfulToolCalls reports whether execution metadata is present and
// records at least one tool invocation. No per-call success distinction is
// made; an invocation that returned an application-level error still counts.
func (r *Result) HasSuccessfulToolCalls() bool {
	return r != nil && r.Execution != nil && len(r.Execution.ToolCalls) > 0
}

// ContainsKeywords reports whether the raw text contains at least one of the
// given keywords, case-insensitively. An empty result never matches.
func (r *Result) ContainsKeywords(keywords []string) bool {
	if r == nil || r.Raw == "" {
		return false
	}
	content := strings.ToLower(r.Raw)
	for _, kw := range keywords {
		if strings.Contains(content, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

// containsAllKeywords reports whether every keyword appears in the raw text,
// case-insensitively.
func (r *Result) containsAllKeywords(keywords []string) bool {
	if r == nil || r.Raw == "" {
		return false
	}
	content := strings.ToLower(r.Raw)
	for _, kw := range keywords {
		if !strings.Contains(content, strings.ToLower(kw)) {
			return false
		}
	}
	return true
}

// meetsMinLength reports whether the trimmed text is at least min characters.
// Length is counted in runes so multi-byte text is not penalized.
func (r *Result) meetsMinLength(min int) bool {
	if r == nil {
		return false
	}
	return utf8.RuneCountInString(strings.TrimSpace(r.Raw)) >= min
}

// hasNoErrorIndicators reports whether the trimmed, lowercased text is free
// of every entry in the refusal/error denylist.
func (r *Result) hasNoErrorIndicators() bool {
	if r == nil {
		return false
	}
	content := strings.ToLower(strings.TrimSpace(r.Raw))
	for _, indicator := range noDataIndicators {
		if strings.Contains(content, indicator) {
			return false
		}
	}
	return true
}

// Report is a diagnostic snapshot of a result, suitable for structured
// logging. It aggregates every individual check so operators can see which
// heuristic a rejected answer failed.
type Report struct {
	HasRawOutput      bool     `json:"has_raw_output"`
	OutputLength      int      `json:"output_length"`
	OutputPreview     string   `json:"output_preview"`
	HasExecution      bool     `json:"has_execution"`
	HasMeaningfulData bool     `json:"has_meaningful_data"`
	HasToolCalls      bool     `json:"has_tool_calls"`
	MeetsMinLength    bool     `json:"meets_min_length"`
	NoErrorIndicators bool     `json:"no_error_indicators"`
	ToolCallCount     int      `json:"tool_call_count"`
	ToolsUsed         []string `json:"tools_used,omitempty"`
}

// Describe builds a [Report] for the result. A nil result yields the zero
// report.
func (r *Result) Describe() Report {
	if r == nil {
		return Report{}
	}

	rep := Report{
		HasRawOutput:      r.Raw != "",
		OutputLength:      utf8.RuneCountInString(r.Raw),
		OutputPreview:     preview(r.Raw),
		HasExecution:      r.Execution != nil,
		HasMeaningfulData: r.HasMeaningfulData(),
		HasToolCalls:      r.HasSuccessfulToolCalls(),
		MeetsMinLength:    r.meetsMinLength(DefaultMinLength),
		NoErrorIndicators: r.hasNoErrorIndicators(),
	}

	if r.Execution != nil {
		rep.ToolCallCount = len(r.Execution.ToolCalls)
		rep.ToolsUsed = distinctTools(r.Execution.ToolCalls)
	}

	return rep
}

// preview returns the first previewLength characters of s, ellipsis-suffixed
// when truncated. Truncation happens on rune boundaries so the preview stays
// valid UTF-8.
func preview(s string) string {
	if utf8.RuneCountInString(s) <= previewLength {
		return s
	}
	return string([]rune(s)[:previewLength]) + "..."
}

// distinctTools returns the distinct tool names in invocation order.
func distinctTools(calls []ToolInvocation) []string {
	seen := make(map[string]bool, len(calls))
	var names []string
	for _, c := range calls {
		if !seen[c.Tool] {
			seen[c.Tool] = true
			names = append(names, c.Tool)
		}
	}
	return names
}

// Options declares the conditions evaluated by a validator built with
// [NewValidator]. Zero-valued fields are unspecified and skipped.
type Options struct {
	// MinLength is the minimum trimmed text length. Zero means no length
	// condition.
	MinLength int

	// RequiredKeywords must ALL be present (case-insensitive substring
	// match). For at-least-one semantics use [Result.ContainsKeywords]
	// directly.
	RequiredKeywords []string

	// ForbiddenKeywords must all be absent; the presence of any one fails
	// the predicate.
	ForbiddenKeywords []string

	// RequireToolCalls, when true, fails the predicate unless execution
	// metadata records at least one tool invocation.
	RequireToolCalls bool
}

// NewValidator builds a predicate over task results from the declarative
// option set. Conditions are evaluated in the order they are declared in
// [Options] and short-circuit on the first failure; an empty Options passes
// every result.
func NewValidator(opts Options) func(*Result) bool {
	return func(r *Result) bool {
		if opts.MinLength > 0 && !r.meetsMinLength(opts.MinLength) {
			return false
		}
		if len(opts.RequiredKeywords) > 0 && !r.containsAllKeywords(opts.RequiredKeywords) {
			return false
		}
		if len(opts.ForbiddenKeywords) > 0 && r.ContainsKeywords(opts.ForbiddenKeywords) {
			return false
		}
		if opts.RequireToolCalls && !r.HasSuccessfulToolCalls() {
			return false
		}
		return true
	}
}
