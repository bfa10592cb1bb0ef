package parser

import (
	"path/filepath"
	"strings"

	"github.com/codescry/codescry/internal/types"
)

// ParseResult is the output contract of a parsing engine for one file.
type ParseResult struct {
	Elements []*types.Element
	Imports  []string
	Exports  []string
	Errors   []error
}

// Engine turns raw file content into indexable elements. Implementations
// are injected into the walker and watcher; the built-in engine (NewEngine)
// is a pattern-based approximation that keeps the binary self-contained.
type Engine interface {
	// CanParse reports whether the engine recognizes the file's language.
	CanParse(path string) bool

	// Parse extracts the elements, imports and exports of one file.
	// Individual malformed declarations are reported in ParseResult.Errors;
	// a non-nil error means the whole file could not be processed.
	Parse(path string, content []byte) (*ParseResult, error)
}

// LanguageForPath maps a file extension to its language name, or "" when
// the extension is not recognized.
func LanguageForPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".go":
		return "go"
	case ".js", ".jsx", ".mjs":
		return "javascript"
	case ".ts", ".tsx":
		return "typescript"
	case ".py":
		return "python"
	case ".rs":
		return "rust"
	case ".java":
		return "java"
	case ".c", ".h":
		return "c"
	case ".cpp", ".cc", ".hpp", ".hh":
		return "cpp"
	default:
		return ""
	}
}
