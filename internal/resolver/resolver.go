package resolver

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/codescry/codescry/internal/config"
	"github.com/codescry/codescry/internal/debug"
	cserr "github.com/codescry/codescry/internal/errors"
)

// Default size of the per-resolver memoization cache. Import graphs repeat
// the same (file, import) pairs heavily, so a modest cache covers most of
// the working set.
const defaultCacheSize = 4096

// Result describes the outcome of resolving one import specifier.
type Result struct {
	OriginalPath  string `json:"original_path"`
	ResolvedPath  string `json:"resolved_path,omitempty"`
	Strategy      string `json:"strategy"`
	Exists        bool   `json:"exists"`
	FailureReason string `json:"failure_reason,omitempty"`
}

// Context carries everything a strategy needs to resolve an import.
// Files is the index's current file set keyed by project-root-relative
// slash paths, so strategies never touch the filesystem.
type Context struct {
	CurrentFile string
	ProjectRoot string
	Files       map[string]bool
	Extensions  []string
	Aliases     map[string]string
	Framework   config.Framework
}

// Strategy resolves one class of import specifier. Strategies are tried in
// ascending Priority order; the first one that both claims the specifier
// and produces an existing file wins. CanResolve takes the Context because
// applicability can depend on configuration (alias prefixes) as well as the
// specifier's shape.
type Strategy interface {
	Name() string
	Priority() int
	CanResolve(ctx *Context, importPath string) bool
	Apply(ctx *Context, importPath string) (string, bool)
}

type cacheKey struct {
	dir        string
	importPath string
}

// Resolver runs an ordered strategy chain with result memoization.
type Resolver struct {
	cfg        config.Resolver
	strategies []Strategy
	cache      *lru.Cache[cacheKey, Result]
}

// NewResolver builds the standard chain: relative, alias, absolute,
// framework. Unclaimed or unresolved specifiers fall through to the
// external classification.
func NewResolver(cfg config.Resolver) (*Resolver, error) {
	cache, err := lru.New[cacheKey, Result](defaultCacheSize)
	if err != nil {
		return nil, fmt.Errorf("create resolver cache: %w", err)
	}
	r := &Resolver{
		cfg:   cfg,
		cache: cache,
		strategies: []Strategy{
			&relativeStrategy{},
			&aliasStrategy{},
			&absoluteStrategy{},
			&frameworkStrategy{},
		},
	}
	sort.SliceStable(r.strategies, func(i, j int) bool {
		return r.strategies[i].Priority() < r.strategies[j].Priority()
	})
	return r, nil
}

// Resolve maps an import specifier found in currentFile to a project file.
// currentFile is project-root relative. Results are memoized per
// (directory, specifier) pair; the cache must be invalidated when the file
// set changes.
func (r *Resolver) Resolve(ctx *Context, importPath string) (Result, error) {
	if strings.TrimSpace(importPath) == "" {
		return Result{}, cserr.NewValidationError("import_path", importPath, "must not be empty")
	}
	if ctx == nil {
		return Result{}, cserr.NewValidationError("context", "", "must not be nil")
	}

	key := cacheKey{dir: slashDir(ctx.CurrentFile), importPath: importPath}
	if cached, ok := r.cache.Get(key); ok {
		return cached, nil
	}

	res := r.resolve(ctx, importPath)
	r.cache.Add(key, res)
	return res, nil
}

// Invalidate drops all memoized results. Called after any index mutation
// that can change resolution outcomes.
func (r *Resolver) Invalidate() {
	r.cache.Purge()
}

func (r *Resolver) resolve(ctx *Context, importPath string) Result {
	for _, s := range r.strategies {
		if !s.CanResolve(ctx, importPath) {
			continue
		}
		resolved, ok := s.Apply(ctx, importPath)
		if !ok {
			continue
		}
		if err := validateResolvedPath(resolved); err != nil {
			debug.LogResolve("%s rejected %q: %v\n", s.Name(), resolved, err)
			continue
		}
		debug.LogResolve("%s: %q -> %q\n", s.Name(), importPath, resolved)
		return Result{
			OriginalPath: importPath,
			ResolvedPath: resolved,
			Strategy:     s.Name(),
			Exists:       true,
		}
	}

	// Bare specifiers that no strategy produced a file for are external
	// packages, not failures.
	if isBareSpecifier(importPath) {
		return Result{
			OriginalPath: importPath,
			Strategy:     "external",
			Exists:       false,
		}
	}

	return Result{
		OriginalPath:  importPath,
		Strategy:      "none",
		Exists:        false,
		FailureReason: "no strategy resolved the path to an indexed file",
	}
}

// isBareSpecifier reports whether the import names a package rather than a
// path inside the project.
func isBareSpecifier(importPath string) bool {
	return !strings.HasPrefix(importPath, ".") &&
		!strings.HasPrefix(importPath, "/") &&
		!strings.HasPrefix(importPath, "@/") &&
		!strings.HasPrefix(importPath, "~/")
}

// slashDir returns the slash-form directory of a project-relative path.
func slashDir(p string) string {
	d := filepath.ToSlash(filepath.Dir(filepath.FromSlash(p)))
	if d == "." {
		return ""
	}
	return d
}

// validateResolvedPath rejects any candidate that escapes the project
// root. Paths are root-relative, so any leading ".." is an escape.
func validateResolvedPath(p string) error {
	clean := filepath.ToSlash(filepath.Clean(filepath.FromSlash(p)))
	if clean == ".." || strings.HasPrefix(clean, "../") || filepath.IsAbs(clean) {
		return cserr.NewValidationError("resolved_path", p, "escapes project root")
	}
	return nil
}

// probe checks candidate paths against the indexed file set, trying the
// path as given, then with each configured extension, then as a directory
// via the framework index files.
func probe(ctx *Context, candidate string) (string, bool) {
	candidate = filepath.ToSlash(filepath.Clean(filepath.FromSlash(candidate)))
	if candidate == "." {
		candidate = ""
	}
	if ctx.Files[candidate] {
		return candidate, true
	}
	for _, ext := range ctx.Extensions {
		withExt := candidate + ext
		if ctx.Files[withExt] {
			return withExt, true
		}
	}
	for _, idx := range ctx.Framework.IndexFiles {
		inDir := candidate + "/" + idx
		if ctx.Files[inDir] {
			return inDir, true
		}
	}
	return "", false
}
