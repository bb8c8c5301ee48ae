package domain

import "strings"

// Controlled vocabulary of vulnerability categories. The scan prompt asks the
// model to pick from this set; anything else is normalized to CategoryOther.
const (
	CategoryInjection       = "injection"
	CategoryAuth            = "auth"
	CategoryCrypto          = "crypto"
	CategoryPathTraversal   = "path-traversal"
	CategoryXSS             = "xss"
	CategorySecrets         = "secrets"
	CategoryDeserialization = "deserialization"
	CategoryOther           = "other"
)

var knownCategories = map[string]bool{
	CategoryInjection:       true,
	CategoryAuth:            true,
	CategoryCrypto:          true,
	CategoryPathTraversal:   true,
	CategoryXSS:             true,
	CategorySecrets:         true,
	CategoryDeserialization: true,
	CategoryOther:           true,
}

// Categories returns the vocabulary in a stable order for prompt rendering.
func Categories() []string {
	return []string{
		CategoryInjection,
		CategoryAuth,
		CategoryCrypto,
		CategoryPathTraversal,
		CategoryXSS,
		CategorySecrets,
		CategoryDeserialization,
		CategoryOther,
	}
}

// NormalizeCategory maps free-form model output onto the controlled
// vocabulary, falling back to CategoryOther. Matching ignores case and
// surrounding whitespace.
func NormalizeCategory(category string) string {
	normalized := strings.ToLower(strings.TrimSpace(category))
	if knownCategories[normalized] {
		return normalized
	}
	return CategoryOther
}
