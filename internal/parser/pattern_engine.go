package parser

import (
	"bufio"
	"bytes"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/codescry/codescry/internal/types"
)

// Declaration patterns are compiled once and shared across engine instances.
var (
	globalLanguageSpecs     map[string]*languageSpec
	globalLanguageSpecsOnce sync.Once
)

// declPattern matches one kind of declaration on a single line.
type declPattern struct {
	kind  types.ElementKind
	re    *regexp.Regexp
	name  int // capture group holding the element name
	param int // capture group holding the raw parameter list, 0 if none
}

// languageSpec bundles the per-language patterns.
type languageSpec struct {
	name     string
	decls    []declPattern
	importRe []*regexp.Regexp // first capture group is the import path
	exportRe []*regexp.Regexp // first capture group is the exported name
}

func languageSpecs() map[string]*languageSpec {
	globalLanguageSpecsOnce.Do(func() {
		goSpec := &languageSpec{
			name: "go",
			decls: []declPattern{
				{types.KindMethod, regexp.MustCompile(`^func\s+\([^)]+\)\s+(\w+)\s*\(([^)]*)\)`), 1, 2},
				{types.KindFunction, regexp.MustCompile(`^func\s+(\w+)\s*\(([^)]*)\)`), 1, 2},
				{types.KindStruct, regexp.MustCompile(`^type\s+(\w+)\s+struct\b`), 1, 0},
				{types.KindInterface, regexp.MustCompile(`^type\s+(\w+)\s+interface\b`), 1, 0},
				{types.KindType, regexp.MustCompile(`^type\s+(\w+)\s+`), 1, 0},
				{types.KindConstant, regexp.MustCompile(`^const\s+(\w+)`), 1, 0},
				{types.KindVariable, regexp.MustCompile(`^var\s+(\w+)`), 1, 0},
			},
			importRe: []*regexp.Regexp{
				regexp.MustCompile(`^import\s+(?:\w+\s+)?"([^"]+)"`),
				regexp.MustCompile(`^\s+(?:\w+\s+)?"([^"]+)"$`), // inside import ( ... )
			},
		}

		jsSpec := &languageSpec{
			name: "javascript",
			decls: []declPattern{
				{types.KindClass, regexp.MustCompile(`^(?:export\s+)?(?:default\s+)?(?:abstract\s+)?class\s+(\w+)`), 1, 0},
				{types.KindInterface, regexp.MustCompile(`^(?:export\s+)?interface\s+(\w+)`), 1, 0},
				{types.KindEnum, regexp.MustCompile(`^(?:export\s+)?(?:const\s+)?enum\s+(\w+)`), 1, 0},
				{types.KindType, regexp.MustCompile(`^(?:export\s+)?type\s+(\w+)\s*=`), 1, 0},
				{types.KindFunction, regexp.MustCompile(`^(?:export\s+)?(?:default\s+)?(?:async\s+)?function\s*\*?\s*(\w+)\s*\(([^)]*)\)`), 1, 2},
				{types.KindFunction, regexp.MustCompile(`^(?:export\s+)?const\s+(\w+)\s*=\s*(?:async\s+)?\(([^)]*)\)\s*=>`), 1, 2},
				{types.KindConstant, regexp.MustCompile(`^(?:export\s+)?const\s+(\w+)\s*=`), 1, 0},
				{types.KindVariable, regexp.MustCompile(`^(?:export\s+)?(?:let|var)\s+(\w+)`), 1, 0},
			},
			importRe: []*regexp.Regexp{
				regexp.MustCompile(`^import\s+.*?from\s+['"]([^'"]+)['"]`),
				regexp.MustCompile(`^import\s+['"]([^'"]+)['"]`),
				regexp.MustCompile(`require\(\s*['"]([^'"]+)['"]\s*\)`),
			},
			exportRe: []*regexp.Regexp{
				regexp.MustCompile(`^export\s+(?:default\s+)?(?:abstract\s+)?(?:class|interface|enum|function|const|let|var|type)\s*\*?\s*(\w+)`),
			},
		}

		pySpec := &languageSpec{
			name: "python",
			decls: []declPattern{
				{types.KindClass, regexp.MustCompile(`^class\s+(\w+)`), 1, 0},
				{types.KindFunction, regexp.MustCompile(`^(?:async\s+)?def\s+(\w+)\s*\(([^)]*)\)`), 1, 2},
				{types.KindMethod, regexp.MustCompile(`^\s+(?:async\s+)?def\s+(\w+)\s*\(([^)]*)\)`), 1, 2},
				{types.KindConstant, regexp.MustCompile(`^([A-Z][A-Z0-9_]*)\s*=[^=]`), 1, 0},
				{types.KindVariable, regexp.MustCompile(`^(\w+)\s*(?::[^=]+)?=[^=]`), 1, 0},
			},
			importRe: []*regexp.Regexp{
				regexp.MustCompile(`^from\s+(\S+)\s+import\b`),
				regexp.MustCompile(`^import\s+(\S+)`),
			},
		}

		rsSpec := &languageSpec{
			name: "rust",
			decls: []declPattern{
				{types.KindStruct, regexp.MustCompile(`^(?:pub\s+)?struct\s+(\w+)`), 1, 0},
				{types.KindInterface, regexp.MustCompile(`^(?:pub\s+)?trait\s+(\w+)`), 1, 0},
				{types.KindEnum, regexp.MustCompile(`^(?:pub\s+)?enum\s+(\w+)`), 1, 0},
				{types.KindFunction, regexp.MustCompile(`^\s*(?:pub\s+)?(?:async\s+)?fn\s+(\w+)\s*(?:<[^>]*>)?\s*\(([^)]*)\)`), 1, 2},
				{types.KindConstant, regexp.MustCompile(`^(?:pub\s+)?(?:const|static)\s+(\w+)`), 1, 0},
				{types.KindType, regexp.MustCompile(`^(?:pub\s+)?type\s+(\w+)`), 1, 0},
			},
			importRe: []*regexp.Regexp{
				regexp.MustCompile(`^use\s+([^;]+);`),
			},
		}

		javaSpec := &languageSpec{
			name: "java",
			decls: []declPattern{
				{types.KindClass, regexp.MustCompile(`^(?:public\s+|private\s+|protected\s+)?(?:abstract\s+|final\s+)?class\s+(\w+)`), 1, 0},
				{types.KindInterface, regexp.MustCompile(`^(?:public\s+)?interface\s+(\w+)`), 1, 0},
				{types.KindEnum, regexp.MustCompile(`^(?:public\s+)?enum\s+(\w+)`), 1, 0},
				{types.KindMethod, regexp.MustCompile(`^\s+(?:public|private|protected)\s+(?:static\s+)?(?:final\s+)?[\w<>\[\]]+\s+(\w+)\s*\(([^)]*)\)`), 1, 2},
			},
			importRe: []*regexp.Regexp{
				regexp.MustCompile(`^import\s+(?:static\s+)?([\w.]+);`),
			},
		}

		cSpec := &languageSpec{
			name: "c",
			decls: []declPattern{
				{types.KindStruct, regexp.MustCompile(`^(?:typedef\s+)?struct\s+(\w+)`), 1, 0},
				{types.KindEnum, regexp.MustCompile(`^(?:typedef\s+)?enum\s+(\w+)`), 1, 0},
				{types.KindFunction, regexp.MustCompile(`^[\w*]+\s+\**(\w+)\s*\(([^)]*)\)\s*\{?\s*$`), 1, 2},
			},
			importRe: []*regexp.Regexp{
				regexp.MustCompile(`^#include\s+[<"]([^>"]+)[>"]`),
			},
		}

		cppSpec := &languageSpec{
			name: "cpp",
			decls: []declPattern{
				{types.KindClass, regexp.MustCompile(`^class\s+(\w+)`), 1, 0},
				{types.KindStruct, regexp.MustCompile(`^(?:typedef\s+)?struct\s+(\w+)`), 1, 0},
				{types.KindEnum, regexp.MustCompile(`^enum\s+(?:class\s+)?(\w+)`), 1, 0},
				{types.KindFunction, regexp.MustCompile(`^[\w:<>&*]+\s+\**(\w+)\s*\(([^)]*)\)\s*(?:const\s*)?\{?\s*$`), 1, 2},
			},
			importRe: []*regexp.Regexp{
				regexp.MustCompile(`^#include\s+[<"]([^>"]+)[>"]`),
			},
		}

		globalLanguageSpecs = map[string]*languageSpec{
			".go":   goSpec,
			".js":   jsSpec,
			".jsx":  jsSpec,
			".mjs":  jsSpec,
			".ts":   jsSpec,
			".tsx":  jsSpec,
			".py":   pySpec,
			".rs":   rsSpec,
			".java": javaSpec,
			".c":    cSpec,
			".h":    cSpec,
			".cpp":  cppSpec,
			".cc":   cppSpec,
			".hpp":  cppSpec,
			".hh":   cppSpec,
		}
	})
	return globalLanguageSpecs
}

// PatternEngine is the built-in line/pattern based parsing engine. It trades
// syntactic precision for zero external tooling: declarations are matched
// per line, spans cover the declaration line only.
type PatternEngine struct {
	specs map[string]*languageSpec
}

// NewEngine creates the built-in pattern engine.
func NewEngine() *PatternEngine {
	return &PatternEngine{specs: languageSpecs()}
}

// CanParse reports whether the file extension maps to a known language.
func (pe *PatternEngine) CanParse(path string) bool {
	_, ok := pe.specs[strings.ToLower(extOf(path))]
	return ok
}

// Parse scans content line by line and emits one element per matched
// declaration, plus the file's import and export lists.
func (pe *PatternEngine) Parse(path string, content []byte) (*ParseResult, error) {
	spec, ok := pe.specs[strings.ToLower(extOf(path))]
	if !ok {
		return nil, &unsupportedError{path: path}
	}

	result := &ParseResult{}
	now := time.Now()

	// Shared specs cover several extensions (.ts reuses the js patterns),
	// so the element language comes from the path, not the spec.
	lang := LanguageForPath(path)
	if lang == "" {
		lang = spec.name
	}

	scanner := bufio.NewScanner(bytes.NewReader(content))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Text()
		trimmed := strings.TrimRight(line, " \t")
		if trimmed == "" {
			continue
		}

		for _, re := range spec.importRe {
			if m := re.FindStringSubmatch(trimmed); m != nil {
				result.Imports = append(result.Imports, strings.TrimSpace(m[1]))
				break
			}
		}
		for _, re := range spec.exportRe {
			if m := re.FindStringSubmatch(trimmed); m != nil {
				result.Exports = append(result.Exports, m[1])
				break
			}
		}

		for _, dp := range spec.decls {
			m := dp.re.FindStringSubmatch(trimmed)
			if m == nil {
				continue
			}
			name := m[dp.name]
			if name == "" {
				continue
			}
			elem := &types.Element{
				ID:       types.NewElementID(path, dp.kind, name, lineNum),
				Path:     path,
				Name:     name,
				Kind:     dp.kind,
				Language: lang,
				Span: types.Span{
					StartLine: lineNum,
					StartCol:  1,
					EndLine:   lineNum,
					EndCol:    len(line),
				},
				ModTime: now,
			}
			if dp.param > 0 && dp.param < len(m) {
				elem.Parameters = splitParams(m[dp.param])
			}
			result.Elements = append(result.Elements, elem)
			break // first matching pattern wins for a line
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

// splitParams splits a raw parameter list, dropping empties.
func splitParams(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func extOf(path string) string {
	if i := strings.LastIndexByte(path, '.'); i >= 0 {
		return path[i:]
	}
	return ""
}

// unsupportedError reports a file outside the engine's language set.
type unsupportedError struct {
	path string
}

func (e *unsupportedError) Error() string {
	return "unsupported language: " + e.path
}
