// Package symbols provides tree-sitter backed symbol lookup for the triage
// tools. Each supported language supplies a grammar plus two queries: one
// capturing definitions, one capturing identifier references.
package symbols

import (
	"fmt"
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

// Symbol is a named definition found in a file.
type Symbol struct {
	Name      string
	Path      string
	StartLine int
	EndLine   int
}

// Usage is a reference to a symbol at a specific line, with surrounding
// source for context.
type Usage struct {
	Path    string
	Line    int
	Context string
}

// Parser wraps a tree-sitter grammar with the queries needed for symbol
// lookup. Parsers are not safe for concurrent use; the registry hands out
// one per call site.
type Parser struct {
	name       string
	parser     *sitter.Parser
	language   *sitter.Language
	defsQuery  string
	usageQuery string
}

func newParser(name string, lang *sitter.Language, defsQuery, usageQuery string) (*Parser, error) {
	parser := sitter.NewParser()
	if err := parser.SetLanguage(lang); err != nil {
		return nil, fmt.Errorf("set %s language: %w", name, err)
	}
	return &Parser{
		name:       name,
		parser:     parser,
		language:   lang,
		defsQuery:  defsQuery,
		usageQuery: usageQuery,
	}, nil
}

// Language returns the language tag this parser handles.
func (p *Parser) Language() string { return p.name }

// Definitions returns the named definitions in a file. Matching is purely
// syntactic; an unparsable file yields an error, not a partial result.
func (p *Parser) Definitions(path, content string) ([]Symbol, error) {
	src := []byte(content)
	tree := p.parser.Parse(src, nil)
	if tree == nil {
		return nil, fmt.Errorf("parse %s: tree-sitter returned nil", path)
	}
	defer tree.Close()

	q, err := sitter.NewQuery(p.language, p.defsQuery)
	if err != nil {
		return nil, fmt.Errorf("definitions query: %w", err)
	}
	defer q.Close()

	captureNames := q.CaptureNames()
	qc := sitter.NewQueryCursor()
	matches := qc.Matches(q, tree.RootNode(), src)

	var symbols []Symbol
	for {
		m := matches.Next()
		if m == nil {
			break
		}

		var name string
		var decl *sitter.Node
		for _, c := range m.Captures {
			node := c.Node
			switch captureNames[c.Index] {
			case "name":
				name = strings.TrimSpace(node.Utf8Text(src))
			case "def":
				decl = &node
			}
		}
		if name == "" || decl == nil {
			continue
		}

		symbols = append(symbols, Symbol{
			Name:      name,
			Path:      path,
			StartLine: int(decl.StartPosition().Row) + 1,
			EndLine:   int(decl.EndPosition().Row) + 1,
		})
	}
	return symbols, nil
}

// FindDefinition returns the definitions of a specific symbol in a file.
func (p *Parser) FindDefinition(path, content, symbolName string) ([]Symbol, error) {
	all, err := p.Definitions(path, content)
	if err != nil {
		return nil, err
	}
	var out []Symbol
	for _, s := range all {
		if s.Name == symbolName {
			out = append(out, s)
		}
	}
	return out, nil
}

// FindUsages returns references to a symbol, excluding its definitions.
// One usage per line; repeated references on a line collapse.
func (p *Parser) FindUsages(path, content, symbolName string) ([]Usage, error) {
	src := []byte(content)
	tree := p.parser.Parse(src, nil)
	if tree == nil {
		return nil, fmt.Errorf("parse %s: tree-sitter returned nil", path)
	}
	defer tree.Close()

	defs, err := p.FindDefinition(path, content, symbolName)
	if err != nil {
		return nil, err
	}
	defLines := make(map[int]bool, len(defs))
	for _, d := range defs {
		defLines[d.StartLine] = true
	}

	q, queryErr := sitter.NewQuery(p.language, p.usageQuery)
	if queryErr != nil {
		return nil, fmt.Errorf("usage query: %w", queryErr)
	}
	defer q.Close()

	qc := sitter.NewQueryCursor()
	matches := qc.Matches(q, tree.RootNode(), src)

	lines := strings.Split(content, "\n")
	seen := make(map[int]bool)
	var usages []Usage

	for {
		m := matches.Next()
		if m == nil {
			break
		}
		for _, c := range m.Captures {
			node := c.Node
			if strings.TrimSpace(node.Utf8Text(src)) != symbolName {
				continue
			}
			line := int(node.StartPosition().Row) + 1
			if seen[line] || defLines[line] {
				continue
			}
			seen[line] = true
			usages = append(usages, Usage{
				Path:    path,
				Line:    line,
				Context: lineContext(lines, line),
			})
		}
	}
	return usages, nil
}

// lineContext renders a numbered window of three lines either side of the
// target, with the target marked.
func lineContext(lines []string, target int) string {
	start := target - 3
	if start < 1 {
		start = 1
	}
	end := target + 3
	if end > len(lines) {
		end = len(lines)
	}

	var b strings.Builder
	for i := start; i <= end; i++ {
		marker := "  "
		if i == target {
			marker = "> "
		}
		fmt.Fprintf(&b, "%s%d: %s\n", marker, i, lines[i-1])
	}
	return b.String()
}
