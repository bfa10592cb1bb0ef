package registry

import (
	"path/filepath"
	"sort"

	cserr "github.com/codescry/codescry/internal/errors"
	"github.com/codescry/codescry/internal/resolver"
	"github.com/codescry/codescry/internal/types"
)

// ImportEdge is one resolved import edge of a project's import graph.
type ImportEdge struct {
	From   string          `json:"from"`
	Result resolver.Result `json:"result"`
}

// FileImports resolves every import recorded for one file. file is
// project-root relative.
func (r *Registry) FileImports(id, file string) ([]resolver.Result, error) {
	p, err := r.GetProject(id)
	if err != nil {
		return nil, err
	}

	abs := file
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(p.Root, filepath.FromSlash(file))
	}
	elems := p.Index.FileElements(abs)
	if len(elems) == 0 {
		return nil, cserr.NewNotFoundError("file", file)
	}
	return resolveImportsOf(p, elems[0], relFileSet(p))
}

// ImportGraph resolves the imports of every indexed file and returns the
// project's full edge list, ordered by importing file.
func (r *Registry) ImportGraph(id string) ([]ImportEdge, error) {
	p, err := r.GetProject(id)
	if err != nil {
		return nil, err
	}

	files := relFileSet(p)
	var edges []ImportEdge
	for _, abs := range p.Index.Files() {
		elems := p.Index.FileElements(abs)
		if len(elems) == 0 {
			continue
		}
		results, err := resolveImportsOf(p, elems[0], files)
		if err != nil {
			return nil, err
		}
		rel, relErr := filepath.Rel(p.Root, abs)
		if relErr != nil {
			rel = abs
		}
		from := filepath.ToSlash(rel)
		for _, res := range results {
			edges = append(edges, ImportEdge{From: from, Result: res})
		}
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].From != edges[j].From {
			return edges[i].From < edges[j].From
		}
		return edges[i].Result.OriginalPath < edges[j].Result.OriginalPath
	})
	return edges, nil
}

// Importers returns the project files whose imports resolve to file, sorted.
// file is project-root relative.
func (r *Registry) Importers(id, file string) ([]string, error) {
	p, err := r.GetProject(id)
	if err != nil {
		return nil, err
	}
	edges, err := r.ImportGraph(id)
	if err != nil {
		return nil, err
	}

	target := file
	if !filepath.IsAbs(target) {
		target = filepath.Join(p.Root, filepath.FromSlash(file))
	}
	target = filepath.Clean(target)
	seen := make(map[string]bool)
	var importers []string
	for _, e := range edges {
		if !e.Result.Exists || e.Result.ResolvedPath != target {
			continue
		}
		if !seen[e.From] {
			seen[e.From] = true
			importers = append(importers, e.From)
		}
	}
	sort.Strings(importers)
	return importers, nil
}

// resolveImportsOf resolves the import list recorded on a file node.
func resolveImportsOf(p *Project, fileElem *types.Element, files map[string]bool) ([]resolver.Result, error) {
	if len(fileElem.Imports) == 0 {
		return nil, nil
	}

	rel, err := filepath.Rel(p.Root, fileElem.Path)
	if err != nil {
		rel = fileElem.Path
	}
	rctx := resolveContext(p, filepath.ToSlash(rel), files)

	results := make([]resolver.Result, 0, len(fileElem.Imports))
	for _, imp := range fileElem.Imports {
		res, err := p.Resolver.Resolve(rctx, imp)
		if err != nil {
			return nil, err
		}
		results = append(results, absolutize(p, res))
	}
	return results, nil
}
