// Package triage implements the agentic exploitability triage over
// high-confidence findings. The agent runs a bounded tool-calling loop: the
// model requests workspace lookups one at a time until it delivers a
// verdict or the iteration budget runs out.
package triage

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/bkyoung/secscan/internal/adapter/llm"
	"github.com/bkyoung/secscan/internal/domain"
	usecasetriage "github.com/bkyoung/secscan/internal/usecase/triage"
)

// AgentConfig configures the triage agent.
type AgentConfig struct {
	// MaxIterations bounds model calls per finding. Tool rounds and repair
	// rounds both consume iterations, so a looping agent always terminates.
	MaxIterations int

	// Concurrency bounds parallel finding investigations.
	Concurrency int

	// MaxParseRetries bounds consecutive repair rounds for malformed
	// actions before the finding is marked inconclusive.
	MaxParseRetries int

	// ToolTimeout bounds a single tool execution. Zero means no timeout.
	ToolTimeout time.Duration

	// MaxTokens caps each model response.
	MaxTokens int
}

// DefaultAgentConfig returns sensible defaults.
func DefaultAgentConfig() AgentConfig {
	return AgentConfig{
		MaxIterations:   10,
		Concurrency:     4,
		MaxParseRetries: 2,
		ToolTimeout:     30 * time.Second,
		MaxTokens:       4096,
	}
}

// Agent implements the triage.Triager port with an LLM-backed tool loop.
type Agent struct {
	generator llm.Generator
	tools     []Tool
	toolMap   map[string]Tool
	config    AgentConfig
}

// NewAgent creates a triage agent over the given workspace.
func NewAgent(generator llm.Generator, workspace usecasetriage.Workspace, config AgentConfig) *Agent {
	tools := NewToolRegistry(workspace)
	toolMap := make(map[string]Tool, len(tools))
	for _, t := range tools {
		toolMap[t.Name()] = t
	}
	return &Agent{
		generator: generator,
		tools:     tools,
		toolMap:   toolMap,
		config:    config,
	}
}

// action is the tagged payload the agent responds with each round.
type action struct {
	Action string         `json:"action"`
	Tool   string         `json:"tool"`
	Params map[string]any `json:"params"`
	Result *verdict       `json:"result"`
}

// verdict is the final_result payload.
type verdict struct {
	Exploitable bool     `json:"exploitable"`
	Confidence  int      `json:"confidence"`
	Explanation string   `json:"explanation"`
	TracePath   []string `json:"trace_path"`
}

// Triage investigates one finding. The loop always terminates within
// MaxIterations model calls; when the budget runs out without a verdict the
// result is inconclusive, never an error.
func (a *Agent) Triage(ctx context.Context, finding domain.Finding) (domain.TriageResult, error) {
	systemPrompt := TriagePrompt(a.tools)
	userPrompt := FindingPrompt(finding)

	var trace []domain.ToolInvocation
	parseFailures := 0

	for i := 0; i < a.config.MaxIterations; i++ {
		if err := ctx.Err(); err != nil {
			return domain.TriageResult{}, err
		}

		resp, err := a.generator.Generate(ctx, llm.GenerateRequest{
			System:    systemPrompt,
			Prompt:    userPrompt,
			MaxTokens: a.config.MaxTokens,
		})
		if err != nil {
			return domain.TriageResult{}, fmt.Errorf("triage %s: %w", finding.ID, err)
		}

		act, parseErr := parseAction(resp.Text)
		if parseErr != nil {
			parseFailures++
			if parseFailures > a.config.MaxParseRetries {
				return inconclusive(trace, fmt.Sprintf("agent output unparsable after %d repair attempts: %v", a.config.MaxParseRetries, parseErr)), nil
			}
			userPrompt = RepairPrompt(finding, trace, resp.Text, parseErr)
			continue
		}
		parseFailures = 0

		switch act.Action {
		case "final_result":
			result := domain.TriageResult{
				Exploitable: act.Result.Exploitable,
				Confidence:  clampConfidence(act.Result.Confidence),
				Explanation: act.Result.Explanation,
				TracePath:   act.Result.TracePath,
				Trace:       trace,
			}
			return result, nil

		case "tool_call":
			output := a.executeTool(ctx, act.Tool, act.Params)
			trace = append(trace, domain.ToolInvocation{
				Tool:   act.Tool,
				Params: act.Params,
				Output: output,
			})
			userPrompt = ConversationPrompt(finding, trace)
		}
	}

	return inconclusive(trace, fmt.Sprintf("no verdict after %d iterations", a.config.MaxIterations)), nil
}

// executeTool runs one tool round. Unknown tools and tool errors are
// recoverable: the error text becomes the tool result so the model can
// correct course.
func (a *Agent) executeTool(ctx context.Context, name string, params map[string]any) string {
	tool, exists := a.toolMap[name]
	if !exists {
		return fmt.Sprintf("Error: unknown tool %q. Available tools: %s", name, strings.Join(a.toolNames(), ", "))
	}

	toolCtx := ctx
	if a.config.ToolTimeout > 0 {
		var cancel context.CancelFunc
		toolCtx, cancel = context.WithTimeout(ctx, a.config.ToolTimeout)
		defer cancel()
	}

	output, err := tool.Execute(toolCtx, params)
	if err != nil {
		return fmt.Sprintf("Error: %v", err)
	}
	return output
}

// TriageBatch investigates findings under the concurrency bound and returns
// results in input order. Provider failures on one finding yield an
// inconclusive result for it; only cancellation aborts the batch.
func (a *Agent) TriageBatch(ctx context.Context, findings []domain.Finding) ([]domain.TriageResult, error) {
	if len(findings) == 0 {
		return []domain.TriageResult{}, nil
	}

	results := make([]domain.TriageResult, len(findings))
	sem := make(chan struct{}, a.config.Concurrency)
	var wg sync.WaitGroup

	for i, finding := range findings {
		wg.Add(1)
		go func(idx int, f domain.Finding) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				results[idx] = inconclusive(nil, ctx.Err().Error())
				return
			}

			result, err := a.Triage(ctx, f)
			if err != nil {
				results[idx] = inconclusive(nil, fmt.Sprintf("triage failed: %v", err))
				return
			}
			results[idx] = result
		}(i, finding)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return results, err
	}
	return results, nil
}

func (a *Agent) toolNames() []string {
	names := make([]string, len(a.tools))
	for i, t := range a.tools {
		names[i] = t.Name()
	}
	return names
}

// parseAction decodes the agent's tagged JSON action, tolerating markdown
// fences and surrounding prose.
func parseAction(text string) (action, error) {
	payload := extractJSON(text)
	if payload == "" {
		return action{}, fmt.Errorf("no JSON object in response")
	}

	var act action
	if err := json.Unmarshal([]byte(payload), &act); err != nil {
		return action{}, fmt.Errorf("decode action: %w", err)
	}

	switch act.Action {
	case "tool_call":
		if act.Tool == "" {
			return action{}, fmt.Errorf("tool_call missing tool name")
		}
		return act, nil
	case "final_result":
		if act.Result == nil {
			return action{}, fmt.Errorf("final_result missing result payload")
		}
		if act.Result.Explanation == "" {
			return action{}, fmt.Errorf("final_result missing explanation")
		}
		return act, nil
	case "":
		return action{}, fmt.Errorf("missing action field")
	default:
		return action{}, fmt.Errorf("unknown action %q", act.Action)
	}
}

// fenceRe matches JSON wrapped in markdown code fences.
var fenceRe = regexp.MustCompile("(?s)```(?:json)?\\s*\\n?(.+?)\\n?```")

// extractJSON finds the JSON object in agent output.
func extractJSON(text string) string {
	if m := fenceRe.FindStringSubmatch(text); len(m) >= 2 {
		candidate := strings.TrimSpace(m[1])
		if json.Valid([]byte(candidate)) {
			return candidate
		}
	}

	start := strings.IndexByte(text, '{')
	if start < 0 {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				candidate := text[start : i+1]
				if json.Valid([]byte(candidate)) {
					return candidate
				}
				return ""
			}
		}
	}
	return ""
}

func inconclusive(trace []domain.ToolInvocation, explanation string) domain.TriageResult {
	return domain.TriageResult{
		Inconclusive: true,
		Explanation:  explanation,
		Trace:        trace,
	}
}

func clampConfidence(c int) int {
	if c < domain.MinConfidence {
		return domain.MinConfidence
	}
	if c > domain.MaxConfidence {
		return domain.MaxConfidence
	}
	return c
}

// Compile-time interface check
var _ usecasetriage.Triager = (*Agent)(nil)
