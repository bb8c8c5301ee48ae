package triage

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/bkyoung/secscan/internal/domain"
)

// TriagePrompt generates the system prompt for the triage agent.
func TriagePrompt(tools []Tool) string {
	var sb strings.Builder

	sb.WriteString(`You are a security triage agent. A scanner has reported a potential
vulnerability; your task is to determine whether it is actually exploitable
by an attacker, by investigating the codebase.

## Your Goal
Decide whether the finding is:
1. Exploitable: attacker-controlled input can actually reach the flaw and cause harm (exploitable = true)
2. Not exploitable: the code is unreachable, the input is sanitized upstream, or the report misreads the code (exploitable = false)

## Confidence Scoring
Score your verdict 1-10:

- **9-10**: Definitive. You traced the full path from input to flaw, or proved it cannot be reached.
- **6-8**: Strong evidence either way, with minor unknowns.
- **3-5**: Plausible but depends on runtime behavior you could not confirm.
- **1-2**: Mostly guesswork; insufficient evidence.

## Available Tools
`)

	for _, tool := range tools {
		fmt.Fprintf(&sb, "- %s\n", tool.Description())
	}

	sb.WriteString(`
## Response Format
Every response must be a single JSON object with an "action" field.

To invoke a tool:

` + "```json" + `
{
  "action": "tool_call",
  "tool": "read_file",
  "params": {"path": "api/handler.go", "start_line": 40, "end_line": 80}
}
` + "```" + `

To deliver your verdict:

` + "```json" + `
{
  "action": "final_result",
  "result": {
    "exploitable": true,
    "confidence": 8,
    "explanation": "The id parameter flows from the request into the SQL string at handler.go:52 with no sanitization. The route is registered without authentication middleware.",
    "trace_path": ["api/routes.go:14", "api/handler.go:48", "api/handler.go:52"]
  }
}
` + "```" + `

## Important Notes
- Always inspect the reported code before rendering a verdict.
- Do NOT assume the scanner is right; verify the claim yourself.
- trace_path lists the file:line steps from input to the flaw, when you found one.
- One action per response, nothing outside the JSON object.`)

	return sb.String()
}

// FindingPrompt renders the initial prompt describing the finding under
// investigation.
func FindingPrompt(finding domain.Finding) string {
	var sb strings.Builder

	writeFinding(&sb, finding)
	sb.WriteString("\nBegin your investigation.")

	return sb.String()
}

// ConversationPrompt rebuilds the full investigation context for a follow-up
// round: the finding under investigation plus the transcript of every tool
// invocation so far. Each Generate call is stateless, so the whole
// conversation has to travel in the prompt.
func ConversationPrompt(finding domain.Finding, trace []domain.ToolInvocation) string {
	var sb strings.Builder

	writeFinding(&sb, finding)
	writeTranscript(&sb, trace)
	sb.WriteString("\nContinue your investigation or deliver your verdict.")

	return sb.String()
}

// RepairPrompt asks the agent to restate an unparsable action. It carries the
// same finding and transcript context as ConversationPrompt so the repaired
// action stays grounded.
func RepairPrompt(finding domain.Finding, trace []domain.ToolInvocation, previous string, parseErr error) string {
	var sb strings.Builder

	writeFinding(&sb, finding)
	writeTranscript(&sb, trace)
	sb.WriteString("\nYour previous response was not a valid action.\n\n")
	fmt.Fprintf(&sb, "Problem: %v\n\n", parseErr)
	sb.WriteString("Previous response:\n")
	sb.WriteString(previous)
	sb.WriteString("\n\nRespond again with a single JSON object: either {\"action\": \"tool_call\", ...} or {\"action\": \"final_result\", ...}.")
	return sb.String()
}

func writeFinding(sb *strings.Builder, finding domain.Finding) {
	sb.WriteString("Investigate the following reported finding:\n\n")
	fmt.Fprintf(sb, "Category: %s\n", finding.Category)
	fmt.Fprintf(sb, "Location: %s lines %d-%d\n", finding.File, finding.LineStart, finding.LineEnd)
	fmt.Fprintf(sb, "Scanner confidence: %d/10\n", finding.Confidence)
	fmt.Fprintf(sb, "Description: %s\n", finding.Description)
	if finding.Excerpt != "" {
		fmt.Fprintf(sb, "\nReported code:\n%s\n", finding.Excerpt)
	}
}

func writeTranscript(sb *strings.Builder, trace []domain.ToolInvocation) {
	if len(trace) == 0 {
		return
	}
	sb.WriteString("\nInvestigation so far:\n")
	for i, inv := range trace {
		fmt.Fprintf(sb, "\n[%d] Result of %s with params %s:\n%s\n", i+1, inv.Tool, formatParams(inv.Params), inv.Output)
	}
}

func formatParams(params map[string]any) string {
	if len(params) == 0 {
		return "{}"
	}
	encoded, err := json.Marshal(params)
	if err != nil {
		return "{}"
	}
	return string(encoded)
}
