package triage

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/bkyoung/secscan/internal/adapter/discovery"
	"github.com/bkyoung/secscan/internal/adapter/symbols"
	usecasetriage "github.com/bkyoung/secscan/internal/usecase/triage"
)

// MaxToolOutputLength bounds tool output fed back into the model. Large
// files and broad searches get truncated, not rejected.
const MaxToolOutputLength = 50000

// maxSymbolSearchFiles bounds workspace-wide symbol searches.
const maxSymbolSearchFiles = 200

// Tool is one capability the triage agent can invoke. Parameters arrive as
// the decoded tool_params object from the agent's JSON action.
type Tool interface {
	// Name returns the tool identifier used in prompts and traces.
	Name() string

	// Description returns the usage text rendered into the system prompt.
	Description() string

	// Execute runs the tool. Returned errors are recoverable: the text is
	// fed back to the model as the tool result.
	Execute(ctx context.Context, params map[string]any) (string, error)
}

// NewToolRegistry creates the triage tool set over a workspace.
func NewToolRegistry(workspace usecasetriage.Workspace) []Tool {
	return []Tool{
		&SearchTextTool{workspace: workspace},
		&ReadFileTool{workspace: workspace},
		&CodeContextTool{workspace: workspace},
		&FindDefinitionTool{workspace: workspace},
		&FindUsagesTool{workspace: workspace},
	}
}

func paramString(params map[string]any, key string) string {
	if v, ok := params[key].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

func paramInt(params map[string]any, key string) int {
	switch v := params[key].(type) {
	case float64: // JSON numbers decode to float64
		return int(v)
	case int:
		return v
	}
	return 0
}

// validatePath checks that a path is safe: relative, inside the workspace,
// and not a hidden file like .env or anything under .git.
func validatePath(filePath string) error {
	if strings.HasPrefix(filePath, "/") {
		return fmt.Errorf("absolute paths not allowed: %s", filePath)
	}
	cleaned := path.Clean(filePath)
	if strings.HasPrefix(cleaned, "..") {
		return fmt.Errorf("path traversal not allowed: %s", filePath)
	}
	for _, part := range strings.Split(cleaned, "/") {
		if strings.HasPrefix(part, ".") && part != "." {
			return fmt.Errorf("hidden files not allowed: %s", filePath)
		}
	}
	return nil
}

// SearchTextTool searches the workspace for a regex pattern.
type SearchTextTool struct {
	workspace usecasetriage.Workspace
}

func (t *SearchTextTool) Name() string { return "search_text" }

func (t *SearchTextTool) Description() string {
	return `search_text: search the codebase for a regex pattern. Params: {"pattern": "<regex>", "path": "<optional file to restrict the search to>"}`
}

func (t *SearchTextTool) Execute(ctx context.Context, params map[string]any) (string, error) {
	pattern := paramString(params, "pattern")
	if pattern == "" {
		return "", fmt.Errorf("search_text requires a pattern parameter")
	}

	var paths []string
	if p := paramString(params, "path"); p != "" {
		if err := validatePath(p); err != nil {
			return "", err
		}
		paths = append(paths, p)
	}

	matches, err := t.workspace.Grep(pattern, paths...)
	if err != nil {
		return "", fmt.Errorf("search %q: %w", pattern, err)
	}
	if len(matches) == 0 {
		return "No matches found", nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d matches:\n", len(matches))
	for _, m := range matches {
		fmt.Fprintf(&sb, "%s:%d: %s\n", m.File, m.Line, m.Content)
	}
	return truncateOutput(sb.String()), nil
}

// ReadFileTool reads a file, optionally restricted to a line range.
type ReadFileTool struct {
	workspace usecasetriage.Workspace
}

func (t *ReadFileTool) Name() string { return "read_file" }

func (t *ReadFileTool) Description() string {
	return `read_file: read a file's contents with line numbers. Params: {"path": "<file path>", "start_line": <optional>, "end_line": <optional>}`
}

func (t *ReadFileTool) Execute(ctx context.Context, params map[string]any) (string, error) {
	filePath := paramString(params, "path")
	if filePath == "" {
		return "", fmt.Errorf("read_file requires a path parameter")
	}
	if err := validatePath(filePath); err != nil {
		return "", err
	}

	content, err := t.workspace.ReadFile(filePath)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", filePath, err)
	}

	lines := strings.Split(strings.TrimSuffix(string(content), "\n"), "\n")
	start := paramInt(params, "start_line")
	end := paramInt(params, "end_line")
	if start < 1 {
		start = 1
	}
	if end < start || end > len(lines) {
		end = len(lines)
	}
	if start > len(lines) {
		return "", fmt.Errorf("start_line %d past end of file (%d lines)", start, len(lines))
	}

	var sb strings.Builder
	for i := start; i <= end; i++ {
		fmt.Fprintf(&sb, "%5d | %s\n", i, lines[i-1])
	}
	return truncateOutput(sb.String()), nil
}

// CodeContextTool shows the code surrounding a location, using the symbol
// parser to widen to the enclosing definition when the language supports it.
type CodeContextTool struct {
	workspace usecasetriage.Workspace
}

func (t *CodeContextTool) Name() string { return "code_context" }

func (t *CodeContextTool) Description() string {
	return `code_context: show the code around a location, expanded to the enclosing function when possible. Params: {"path": "<file path>", "line": <line number>}`
}

func (t *CodeContextTool) Execute(ctx context.Context, params map[string]any) (string, error) {
	filePath := paramString(params, "path")
	line := paramInt(params, "line")
	if filePath == "" || line < 1 {
		return "", fmt.Errorf("code_context requires path and line parameters")
	}
	if err := validatePath(filePath); err != nil {
		return "", err
	}

	content, err := t.workspace.ReadFile(filePath)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", filePath, err)
	}
	lines := strings.Split(strings.TrimSuffix(string(content), "\n"), "\n")
	if line > len(lines) {
		return "", fmt.Errorf("line %d past end of file (%d lines)", line, len(lines))
	}

	start, end := line-15, line+15

	// Widen the window to the enclosing definition when the parser knows
	// the language.
	if lang := discovery.DetectLanguage(filePath); symbols.Supported(lang) {
		if parser, perr := symbols.ForLanguage(lang); perr == nil {
			if defs, derr := parser.Definitions(filePath, string(content)); derr == nil {
				for _, d := range defs {
					if d.StartLine <= line && line <= d.EndLine {
						start, end = d.StartLine, d.EndLine
						break
					}
				}
			}
		}
	}

	if start < 1 {
		start = 1
	}
	if end > len(lines) {
		end = len(lines)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s lines %d-%d:\n", filePath, start, end)
	for i := start; i <= end; i++ {
		marker := "  "
		if i == line {
			marker = "> "
		}
		fmt.Fprintf(&sb, "%s%5d | %s\n", marker, i, lines[i-1])
	}
	return truncateOutput(sb.String()), nil
}

// FindDefinitionTool locates where a symbol is defined.
type FindDefinitionTool struct {
	workspace usecasetriage.Workspace
}

func (t *FindDefinitionTool) Name() string { return "find_definition" }

func (t *FindDefinitionTool) Description() string {
	return `find_definition: locate where a symbol is defined. Params: {"symbol": "<name>", "path": "<optional file to restrict the search to>"}`
}

func (t *FindDefinitionTool) Execute(ctx context.Context, params map[string]any) (string, error) {
	symbolName := paramString(params, "symbol")
	if symbolName == "" {
		return "", fmt.Errorf("find_definition requires a symbol parameter")
	}

	files, err := symbolSearchFiles(t.workspace, params)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	found := 0
	for _, filePath := range files {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		lang := discovery.DetectLanguage(filePath)
		if !symbols.Supported(lang) {
			continue
		}
		parser, err := symbols.ForLanguage(lang)
		if err != nil {
			continue
		}
		content, err := t.workspace.ReadFile(filePath)
		if err != nil {
			continue
		}
		defs, err := parser.FindDefinition(filePath, string(content), symbolName)
		if err != nil {
			continue
		}
		for _, d := range defs {
			found++
			fmt.Fprintf(&sb, "%s:%d-%d: %s\n", d.Path, d.StartLine, d.EndLine, d.Name)
		}
	}

	if found == 0 {
		return fmt.Sprintf("No definition of %q found", symbolName), nil
	}
	return truncateOutput(fmt.Sprintf("Found %d definitions:\n%s", found, sb.String())), nil
}

// FindUsagesTool locates references to a symbol.
type FindUsagesTool struct {
	workspace usecasetriage.Workspace
}

func (t *FindUsagesTool) Name() string { return "find_usages" }

func (t *FindUsagesTool) Description() string {
	return `find_usages: locate references to a symbol, excluding its definition. Params: {"symbol": "<name>", "path": "<optional file to restrict the search to>"}`
}

func (t *FindUsagesTool) Execute(ctx context.Context, params map[string]any) (string, error) {
	symbolName := paramString(params, "symbol")
	if symbolName == "" {
		return "", fmt.Errorf("find_usages requires a symbol parameter")
	}

	files, err := symbolSearchFiles(t.workspace, params)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	found := 0
	for _, filePath := range files {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		lang := discovery.DetectLanguage(filePath)
		if !symbols.Supported(lang) {
			continue
		}
		parser, err := symbols.ForLanguage(lang)
		if err != nil {
			continue
		}
		content, err := t.workspace.ReadFile(filePath)
		if err != nil {
			continue
		}
		usages, err := parser.FindUsages(filePath, string(content), symbolName)
		if err != nil {
			continue
		}
		for _, u := range usages {
			found++
			fmt.Fprintf(&sb, "%s:%d:\n%s\n", u.Path, u.Line, u.Context)
		}
	}

	if found == 0 {
		return fmt.Sprintf("No usages of %q found", symbolName), nil
	}
	return truncateOutput(fmt.Sprintf("Found %d usages:\n%s", found, sb.String())), nil
}

// symbolSearchFiles resolves the file set for a symbol search: the given
// path when provided, otherwise a bounded slice of the workspace.
func symbolSearchFiles(workspace usecasetriage.Workspace, params map[string]any) ([]string, error) {
	if p := paramString(params, "path"); p != "" {
		if err := validatePath(p); err != nil {
			return nil, err
		}
		if !workspace.FileExists(p) {
			return nil, fmt.Errorf("no such file: %s", p)
		}
		return []string{p}, nil
	}

	files, err := workspace.ListFiles()
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	if len(files) > maxSymbolSearchFiles {
		files = files[:maxSymbolSearchFiles]
	}
	return files, nil
}

// truncateOutput truncates output that exceeds MaxToolOutputLength.
func truncateOutput(s string) string {
	if len(s) <= MaxToolOutputLength {
		return s
	}
	return s[:MaxToolOutputLength] + "\n... [output truncated]"
}
