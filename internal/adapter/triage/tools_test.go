package triage

import (
	"context"
	"strings"
	"testing"
)

func toolWorkspace() *memWorkspace {
	return &memWorkspace{files: map[string]string{
		"api/handler.go": `package api

func Handle(id string) string {
	return buildQuery(id)
}

func buildQuery(id string) string {
	return "SELECT * FROM users WHERE id = " + id
}
`,
		"api/routes.go": "package api\n\nfunc routes() {\n\t_ = Handle\n}\n",
	}}
}

func params(pairs ...any) map[string]any {
	m := make(map[string]any)
	for i := 0; i+1 < len(pairs); i += 2 {
		m[pairs[i].(string)] = pairs[i+1]
	}
	return m
}

func TestSearchTextTool(t *testing.T) {
	tool := &SearchTextTool{workspace: toolWorkspace()}

	out, err := tool.Execute(context.Background(), params("pattern", "SELECT"))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.Contains(out, "api/handler.go:8") {
		t.Errorf("match location missing: %q", out)
	}
}

func TestSearchTextToolNoMatches(t *testing.T) {
	tool := &SearchTextTool{workspace: toolWorkspace()}
	out, err := tool.Execute(context.Background(), params("pattern", "DROP TABLE"))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if out != "No matches found" {
		t.Errorf("out = %q", out)
	}
}

func TestSearchTextToolMissingPattern(t *testing.T) {
	tool := &SearchTextTool{workspace: toolWorkspace()}
	if _, err := tool.Execute(context.Background(), params()); err == nil {
		t.Fatal("expected error for missing pattern")
	}
}

func TestReadFileToolRange(t *testing.T) {
	tool := &ReadFileTool{workspace: toolWorkspace()}

	out, err := tool.Execute(context.Background(), params("path", "api/handler.go", "start_line", float64(7), "end_line", float64(9)))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.Contains(out, "7 | func buildQuery") {
		t.Errorf("numbered range missing: %q", out)
	}
	if strings.Contains(out, "package api") {
		t.Errorf("lines outside range leaked: %q", out)
	}
}

func TestReadFileToolBlocksTraversal(t *testing.T) {
	tool := &ReadFileTool{workspace: toolWorkspace()}

	for _, path := range []string{"/etc/passwd", "../secrets", ".git/config", ".env"} {
		if _, err := tool.Execute(context.Background(), params("path", path)); err == nil {
			t.Errorf("expected rejection for %q", path)
		}
	}
}

func TestCodeContextToolMarksLine(t *testing.T) {
	tool := &CodeContextTool{workspace: toolWorkspace()}

	out, err := tool.Execute(context.Background(), params("path", "api/handler.go", "line", float64(8)))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.Contains(out, ">     8 |") {
		t.Errorf("target line not marked: %q", out)
	}
}

func TestFindDefinitionToolScoped(t *testing.T) {
	tool := &FindDefinitionTool{workspace: toolWorkspace()}

	out, err := tool.Execute(context.Background(), params("symbol", "buildQuery", "path", "api/handler.go"))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.Contains(out, "api/handler.go:7-9") {
		t.Errorf("definition location missing: %q", out)
	}
}

func TestFindUsagesToolAcrossWorkspace(t *testing.T) {
	tool := &FindUsagesTool{workspace: toolWorkspace()}

	out, err := tool.Execute(context.Background(), params("symbol", "Handle"))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.Contains(out, "api/routes.go:4") {
		t.Errorf("usage location missing: %q", out)
	}
}

func TestFindDefinitionToolNotFound(t *testing.T) {
	tool := &FindDefinitionTool{workspace: toolWorkspace()}
	out, err := tool.Execute(context.Background(), params("symbol", "NoSuchSymbol"))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.Contains(out, "No definition") {
		t.Errorf("out = %q", out)
	}
}

func TestTruncateOutput(t *testing.T) {
	long := strings.Repeat("x", MaxToolOutputLength+100)
	out := truncateOutput(long)
	if len(out) >= len(long) {
		t.Error("output not truncated")
	}
	if !strings.HasSuffix(out, "[output truncated]") {
		t.Error("truncation marker missing")
	}

	short := "short"
	if truncateOutput(short) != short {
		t.Error("short output modified")
	}
}

func TestValidatePath(t *testing.T) {
	cases := []struct {
		path string
		ok   bool
	}{
		{"src/main.go", true},
		{"main.go", true},
		{"/etc/passwd", false},
		{"../outside", false},
		{"a/../../b", false},
		{".env", false},
		{".git/config", false},
		{"src/.hidden/file", false},
	}
	for _, tc := range cases {
		err := validatePath(tc.path)
		if tc.ok && err != nil {
			t.Errorf("validatePath(%q) = %v, want nil", tc.path, err)
		}
		if !tc.ok && err == nil {
			t.Errorf("validatePath(%q) = nil, want error", tc.path)
		}
	}
}
