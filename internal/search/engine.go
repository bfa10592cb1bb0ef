package search

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/hbollon/go-edlib"

	"github.com/codescry/codescry/internal/config"
	"github.com/codescry/codescry/internal/debug"
	cserr "github.com/codescry/codescry/internal/errors"
	"github.com/codescry/codescry/internal/index"
	"github.com/codescry/codescry/internal/types"
)

// Base scores fixed by the ranking contract. Boosts on top of them come
// from configuration.
const (
	ScoreExact     = 100.0
	ScorePrefix    = 75.0
	ScoreContains  = 50.0
	tiePriorityMax = 3
)

// Options controls one query. Zero values fall back to engine defaults.
type Options struct {
	Kinds         []types.ElementKind // filter: element kinds, empty = all
	Languages     []string            // filter: languages, empty = all
	PathPattern   string              // filter: doublestar glob over element paths
	ExactMatch    bool                // only exact name matches
	CaseSensitive bool                // default is case-insensitive
	SubProjects   []string            // cross-project: ids to include, empty = all siblings
	ExcludeSub    []string            // cross-project: ids to exclude
	CrossProject  bool                // fan out over sibling sub-projects
	PriorityKind  types.ElementKind   // extra boost for this kind
	FuzzyThresh   float64             // 0 = engine default
	MaxResults    int                 // 0 = engine default; capped at the hard ceiling
}

// Result is one ranked search hit.
type Result struct {
	Element *types.Element `json:"element"`
	Score   float64        `json:"score"`
	Project string         `json:"project,omitempty"`
}

// Engine executes queries against project indexes. It holds only
// configuration; all state lives in the indexes, so one engine instance
// serves concurrent searches.
type Engine struct {
	cfg config.Search
}

// NewEngine creates a search engine with the given ranking defaults.
func NewEngine(cfg config.Search) *Engine {
	return &Engine{cfg: cfg}
}

// Search runs one query against a single project index and returns ranked,
// filtered, capped results.
func (e *Engine) Search(query string, idx *index.ProjectIndex, opts Options) ([]Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, cserr.NewValidationError("query", query, "must not be empty")
	}

	results := e.collect(query, idx, "", opts)
	e.rank(results)
	return e.cap(results, opts), nil
}

// SearchMany runs the identical pipeline independently per included
// sub-project, merges all candidates, then applies the single global
// sort and cap.
func (e *Engine) SearchMany(query string, indexes map[string]*index.ProjectIndex, opts Options) ([]Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, cserr.NewValidationError("query", query, "must not be empty")
	}

	var merged []Result
	for id, idx := range indexes {
		if !opts.includesSubProject(id) {
			continue
		}
		merged = append(merged, e.collect(query, idx, id, opts)...)
	}
	e.rank(merged)
	return e.cap(merged, opts), nil
}

// includesSubProject applies the include/exclude lists to a sub-project id.
func (o Options) includesSubProject(id string) bool {
	for _, ex := range o.ExcludeSub {
		if ex == id {
			return false
		}
	}
	if len(o.SubProjects) == 0 {
		return true
	}
	for _, in := range o.SubProjects {
		if in == id {
			return true
		}
	}
	return false
}

// collect scores every candidate element of one index. Filters run before
// scoring; elements that fail a filter never enter the ranked set.
func (e *Engine) collect(query string, idx *index.ProjectIndex, project string, opts Options) []Result {
	threshold := opts.FuzzyThresh
	if threshold <= 0 {
		threshold = e.cfg.FuzzyThreshold
	}
	if threshold <= 0 {
		// An unconfigured threshold must never turn every element into a
		// fuzzy hit.
		threshold = types.DefaultFuzzyThreshold
	}

	queryCmp := query
	if !opts.CaseSensitive {
		queryCmp = strings.ToLower(query)
	}

	var results []Result
	for _, elem := range idx.Snapshot() {
		if !e.passesFilters(elem, opts) {
			continue
		}

		name := elem.Name
		if !opts.CaseSensitive {
			name = strings.ToLower(name)
		}

		base, ok := e.baseScore(queryCmp, name, threshold, opts.ExactMatch)
		if !ok {
			continue
		}

		results = append(results, Result{
			Element: elem,
			Score:   base + e.boost(elem, opts),
			Project: project,
		})
	}
	debug.LogSearch("query %q: %d candidates in %q\n", query, len(results), project)
	return results
}

// passesFilters applies the kind, language and path-pattern filters.
// Directory nodes are structural and never returned.
func (e *Engine) passesFilters(elem *types.Element, opts Options) bool {
	if elem.Kind == types.KindDirectory {
		return false
	}
	if len(opts.Kinds) > 0 {
		found := false
		for _, k := range opts.Kinds {
			if elem.Kind == k {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if len(opts.Languages) > 0 {
		found := false
		for _, l := range opts.Languages {
			if strings.EqualFold(elem.Language, l) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if opts.PathPattern != "" {
		p := filepath.ToSlash(elem.Path)
		if matched, _ := doublestar.Match(opts.PathPattern, p); !matched {
			// Also try the basename so short patterns like "*.go" work.
			if matched, _ := doublestar.Match(opts.PathPattern, filepath.Base(p)); !matched {
				return false
			}
		}
	}
	return true
}

// baseScore computes the match tier for a candidate name, or reports that
// the candidate is excluded.
func (e *Engine) baseScore(query, name string, threshold float64, exactOnly bool) (float64, bool) {
	if name == query {
		return ScoreExact, true
	}
	if exactOnly {
		return 0, false
	}
	if strings.HasPrefix(name, query) {
		return ScorePrefix, true
	}
	if strings.Contains(name, query) {
		return ScoreContains, true
	}
	if similarity(query, name) >= threshold {
		return ScoreContains, true
	}
	return 0, false
}

// similarity is the fuzzy leg of scoring: Jaro-Winkler over the candidate
// name, 0 on degenerate inputs.
func similarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	score, err := edlib.StringsSimilarity(a, b, edlib.JaroWinkler)
	if err != nil {
		return 0
	}
	return float64(score)
}

// boost adds the kind boosts on top of the base score. Boosts are additive.
func (e *Engine) boost(elem *types.Element, opts Options) float64 {
	total := 0.0
	switch {
	case isClassLike(elem.Kind):
		total += e.cfg.ClassBoost
	case isFunctionLike(elem.Kind):
		total += e.cfg.FunctionBoost
	}
	if opts.PriorityKind != "" && elem.Kind == opts.PriorityKind {
		total += e.cfg.PriorityBoost
	}
	return total
}

func isClassLike(k types.ElementKind) bool {
	switch k {
	case types.KindClass, types.KindInterface, types.KindStruct:
		return true
	}
	return false
}

func isFunctionLike(k types.ElementKind) bool {
	switch k {
	case types.KindFunction, types.KindMethod:
		return true
	}
	return false
}

// tiePriority orders kinds for deterministic tie-breaking: class-like above
// function-like above everything else.
func tiePriority(k types.ElementKind) int {
	switch {
	case isClassLike(k):
		return tiePriorityMax
	case isFunctionLike(k):
		return tiePriorityMax - 1
	default:
		return 0
	}
}

// rank sorts descending by score, breaking ties by kind priority and then
// by path so result order is deterministic.
func (e *Engine) rank(results []Result) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		pi, pj := tiePriority(results[i].Element.Kind), tiePriority(results[j].Element.Kind)
		if pi != pj {
			return pi > pj
		}
		if results[i].Element.Path != results[j].Element.Path {
			return results[i].Element.Path < results[j].Element.Path
		}
		return results[i].Element.Name < results[j].Element.Name
	})
}

// cap truncates results to the effective maximum, never above the ceiling.
func (e *Engine) cap(results []Result, opts Options) []Result {
	max := opts.MaxResults
	if max <= 0 {
		max = e.cfg.MaxResults
	}
	if max <= 0 {
		max = types.DefaultMaxResults
	}
	if max > types.MaxResultsCeiling {
		max = types.MaxResultsCeiling
	}
	if len(results) > max {
		results = results[:max]
	}
	return results
}
