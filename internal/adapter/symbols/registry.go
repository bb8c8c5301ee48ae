package symbols

import (
	"fmt"

	sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_c "github.com/tree-sitter/tree-sitter-c/bindings/go"
	tree_sitter_go "github.com/tree-sitter/tree-sitter-go/bindings/go"
	tree_sitter_java "github.com/tree-sitter/tree-sitter-java/bindings/go"
	tree_sitter_python "github.com/tree-sitter/tree-sitter-python/bindings/go"
	tree_sitter_typescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"
)

type languageSpec struct {
	language   func() *sitter.Language
	defsQuery  string
	usageQuery string
}

// specs holds the grammar and queries per language tag. Definition queries
// capture the enclosing declaration as @def and its identifier as @name.
var specs = map[string]languageSpec{
	"go": {
		language: func() *sitter.Language { return sitter.NewLanguage(tree_sitter_go.Language()) },
		defsQuery: `
		(function_declaration name: (identifier) @name) @def
		(method_declaration name: (field_identifier) @name) @def
		(type_declaration (type_spec name: (type_identifier) @name)) @def
		(const_declaration (const_spec name: (identifier) @name)) @def
		(var_declaration (var_spec name: (identifier) @name)) @def
		`,
		usageQuery: `
		(identifier) @id
		(field_identifier) @id
		(type_identifier) @id
		`,
	},
	"python": {
		language: func() *sitter.Language { return sitter.NewLanguage(tree_sitter_python.Language()) },
		defsQuery: `
		(function_definition name: (identifier) @name) @def
		(class_definition name: (identifier) @name) @def
		`,
		usageQuery: `
		(identifier) @id
		`,
	},
	"java": {
		language: func() *sitter.Language { return sitter.NewLanguage(tree_sitter_java.Language()) },
		defsQuery: `
		(method_declaration name: (identifier) @name) @def
		(class_declaration name: (identifier) @name) @def
		(interface_declaration name: (identifier) @name) @def
		(constructor_declaration name: (identifier) @name) @def
		(field_declaration declarator: (variable_declarator name: (identifier) @name)) @def
		`,
		usageQuery: `
		(identifier) @id
		(type_identifier) @id
		`,
	},
	"typescript": {
		language: func() *sitter.Language { return sitter.NewLanguage(tree_sitter_typescript.LanguageTypescript()) },
		defsQuery: `
		(function_declaration name: (identifier) @name) @def
		(class_declaration name: (type_identifier) @name) @def
		(interface_declaration name: (type_identifier) @name) @def
		(method_definition name: (property_identifier) @name) @def
		(lexical_declaration (variable_declarator name: (identifier) @name)) @def
		(variable_declaration (variable_declarator name: (identifier) @name)) @def
		`,
		usageQuery: `
		(identifier) @id
		(property_identifier) @id
		(type_identifier) @id
		`,
	},
	"c": {
		language: func() *sitter.Language { return sitter.NewLanguage(tree_sitter_c.Language()) },
		defsQuery: `
		(function_definition declarator: (function_declarator declarator: (identifier) @name)) @def
		(declaration declarator: (function_declarator declarator: (identifier) @name)) @def
		(struct_specifier name: (type_identifier) @name) @def
		`,
		usageQuery: `
		(identifier) @id
		(type_identifier) @id
		(field_identifier) @id
		`,
	},
}

// Supported reports whether symbol lookup is available for a language tag.
func Supported(language string) bool {
	_, ok := specs[language]
	return ok
}

// ForLanguage constructs a parser for the given language tag. Parsers are
// cheap to build; callers that need concurrency build one each.
func ForLanguage(language string) (*Parser, error) {
	spec, ok := specs[language]
	if !ok {
		return nil, fmt.Errorf("no symbol support for language %q", language)
	}
	return newParser(language, spec.language(), spec.defsQuery, spec.usageQuery)
}
