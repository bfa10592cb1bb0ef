package resolver

import (
	"path"
	"strings"
)

// relativeStrategy resolves "./x" and "../x" against the importing file's
// directory. Highest priority: relative specifiers are unambiguous.
type relativeStrategy struct{}

func (s *relativeStrategy) Name() string  { return "relative" }
func (s *relativeStrategy) Priority() int { return 10 }

func (s *relativeStrategy) CanResolve(_ *Context, importPath string) bool {
	return strings.HasPrefix(importPath, "./") || strings.HasPrefix(importPath, "../") ||
		importPath == "." || importPath == ".."
}

func (s *relativeStrategy) Apply(ctx *Context, importPath string) (string, bool) {
	joined := path.Join(slashDir(ctx.CurrentFile), importPath)
	if strings.HasPrefix(joined, "../") || joined == ".." {
		// Escapes the root; never probe outside the index.
		return "", false
	}
	return probe(ctx, joined)
}

// aliasStrategy expands configured prefix aliases such as "@" -> "src"
// before probing.
type aliasStrategy struct{}

func (s *aliasStrategy) Name() string  { return "alias" }
func (s *aliasStrategy) Priority() int { return 20 }

func (s *aliasStrategy) CanResolve(ctx *Context, importPath string) bool {
	return s.match(ctx, importPath) != ""
}

// match returns the longest configured alias prefixing importPath, so
// "@app/x" is not shadowed by "@".
func (s *aliasStrategy) match(ctx *Context, importPath string) string {
	best := ""
	for alias := range ctx.Aliases {
		if alias == "" {
			continue
		}
		if importPath == alias || strings.HasPrefix(importPath, alias+"/") {
			if len(alias) > len(best) {
				best = alias
			}
		}
	}
	return best
}

func (s *aliasStrategy) Apply(ctx *Context, importPath string) (string, bool) {
	best := s.match(ctx, importPath)
	if best == "" {
		return "", false
	}
	rest := strings.TrimPrefix(importPath, best)
	rest = strings.TrimPrefix(rest, "/")
	return probe(ctx, path.Join(ctx.Aliases[best], rest))
}

// absoluteStrategy treats "/x" as project-root relative, the common
// convention in web build tooling.
type absoluteStrategy struct{}

func (s *absoluteStrategy) Name() string  { return "absolute" }
func (s *absoluteStrategy) Priority() int { return 30 }

func (s *absoluteStrategy) CanResolve(_ *Context, importPath string) bool {
	return strings.HasPrefix(importPath, "/")
}

func (s *absoluteStrategy) Apply(ctx *Context, importPath string) (string, bool) {
	return probe(ctx, strings.TrimPrefix(importPath, "/"))
}

// frameworkStrategy probes bare specifiers against the configured
// convention directories, so "components/Button" can find
// "src/components/Button.tsx" without an alias.
type frameworkStrategy struct{}

func (s *frameworkStrategy) Name() string  { return "framework" }
func (s *frameworkStrategy) Priority() int { return 40 }

func (s *frameworkStrategy) CanResolve(_ *Context, importPath string) bool {
	return isBareSpecifier(importPath)
}

func (s *frameworkStrategy) Apply(ctx *Context, importPath string) (string, bool) {
	if resolved, ok := probe(ctx, importPath); ok {
		return resolved, true
	}
	for _, dir := range ctx.Framework.ConventionDirs {
		if resolved, ok := probe(ctx, path.Join(dir, importPath)); ok {
			return resolved, true
		}
	}
	return "", false
}
