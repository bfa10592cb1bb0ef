package search

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codescry/codescry/internal/config"
	cserr "github.com/codescry/codescry/internal/errors"
	"github.com/codescry/codescry/internal/index"
	"github.com/codescry/codescry/internal/types"
)

func testSearchConfig() config.Search {
	return config.Search{
		MaxResults:     types.DefaultMaxResults,
		FuzzyThreshold: types.DefaultFuzzyThreshold,
		ClassBoost:     config.DefaultClassBoost,
		FunctionBoost:  config.DefaultFunctionBoost,
		PriorityBoost:  config.DefaultPriorityBoost,
	}
}

// buildIndex assembles a small index. Each entry is path:kind:name.
func buildIndex(t *testing.T, root string, entries map[string][]*types.Element) *index.ProjectIndex {
	t.Helper()
	idx := index.NewProjectIndex(root)
	for rel, elems := range entries {
		path := filepath.Join(root, filepath.FromSlash(rel))
		for _, e := range elems {
			e.Path = path
			e.ID = types.NewElementID(path, e.Kind, e.Name, e.Span.StartLine)
		}
		idx.PutFile(path, time.Now(), 1, "go", elems, nil, nil)
	}
	return idx
}

func elem(kind types.ElementKind, name string, line int) *types.Element {
	return &types.Element{Name: name, Kind: kind, Language: "go", Span: types.Span{StartLine: line}}
}

func TestSearch_EmptyQueryRejected(t *testing.T) {
	engine := NewEngine(testSearchConfig())
	idx := index.NewProjectIndex("/proj")

	_, err := engine.Search("", idx, Options{})
	assert.True(t, cserr.IsValidation(err))

	_, err = engine.Search("   ", idx, Options{})
	assert.True(t, cserr.IsValidation(err))

	_, err = engine.SearchMany("", nil, Options{})
	assert.True(t, cserr.IsValidation(err))
}

func TestSearch_ScoreTiers(t *testing.T) {
	idx := buildIndex(t, "/proj", map[string][]*types.Element{
		"a.go": {
			elem(types.KindVariable, "foo", 1),    // exact: 100
			elem(types.KindVariable, "foobar", 2), // prefix: 75
			elem(types.KindVariable, "myfoo", 3),  // substring: 50
		},
	})
	engine := NewEngine(testSearchConfig())

	results, err := engine.Search("foo", idx, Options{})
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, "foo", results[0].Element.Name)
	assert.Equal(t, ScoreExact, results[0].Score)
	assert.Equal(t, "foobar", results[1].Element.Name)
	assert.Equal(t, ScorePrefix, results[1].Score)
	assert.Equal(t, "myfoo", results[2].Element.Name)
	assert.Equal(t, ScoreContains, results[2].Score)
}

func TestSearch_FuzzyAboveThreshold(t *testing.T) {
	idx := buildIndex(t, "/proj", map[string][]*types.Element{
		"a.go": {
			elem(types.KindVariable, "handlre", 1), // transposition, not a substring
			elem(types.KindVariable, "zzz", 2),     // unrelated, excluded
		},
	})
	engine := NewEngine(testSearchConfig())

	results, err := engine.Search("handler", idx, Options{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "handlre", results[0].Element.Name)
	assert.Equal(t, ScoreContains, results[0].Score, "fuzzy hits score at the substring tier")
}

func TestSearch_ZeroThresholdFallsBackToDefault(t *testing.T) {
	idx := buildIndex(t, "/proj", map[string][]*types.Element{
		"a.go": {
			elem(types.KindVariable, "handlre", 1),
			elem(types.KindVariable, "zzz", 2),
		},
	})
	// Neither the options nor the config carry a threshold; the default
	// must still gate fuzzy matching instead of admitting everything.
	engine := NewEngine(config.Search{MaxResults: types.DefaultMaxResults})

	results, err := engine.Search("handler", idx, Options{})
	require.NoError(t, err)
	require.Len(t, results, 1, "unrelated names stay excluded with an unset threshold")
	assert.Equal(t, "handlre", results[0].Element.Name)
}

func TestSearch_BoostsAreAdditive(t *testing.T) {
	idx := buildIndex(t, "/proj", map[string][]*types.Element{
		"a.go": {
			elem(types.KindClass, "Parser", 1),
			elem(types.KindFunction, "Parser", 2),
			elem(types.KindVariable, "Parser", 3),
		},
	})
	cfg := testSearchConfig()
	engine := NewEngine(cfg)

	results, err := engine.Search("Parser", idx, Options{CaseSensitive: true})
	require.NoError(t, err)
	require.Len(t, results, 3)

	byKind := map[types.ElementKind]float64{}
	for _, r := range results {
		byKind[r.Element.Kind] = r.Score
	}
	assert.Equal(t, ScoreExact+cfg.ClassBoost, byKind[types.KindClass])
	assert.Equal(t, ScoreExact+cfg.FunctionBoost, byKind[types.KindFunction])
	assert.Equal(t, ScoreExact, byKind[types.KindVariable])

	// A priority kind stacks on top of the kind boost.
	results, err = engine.Search("Parser", idx, Options{CaseSensitive: true, PriorityKind: types.KindFunction})
	require.NoError(t, err)
	for _, r := range results {
		if r.Element.Kind == types.KindFunction {
			assert.Equal(t, ScoreExact+cfg.FunctionBoost+cfg.PriorityBoost, r.Score)
		}
	}
}

func TestSearch_TieBreaks(t *testing.T) {
	idx := buildIndex(t, "/proj", map[string][]*types.Element{
		"b.go": {elem(types.KindVariable, "cfg", 1)},
		"a.go": {elem(types.KindVariable, "cfg", 1)},
	})
	engine := NewEngine(testSearchConfig())

	results, err := engine.Search("cfg", idx, Options{})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.True(t, results[0].Element.Path < results[1].Element.Path,
		"equal scores and kinds break ties by path")
}

func TestSearch_ExactMatchOption(t *testing.T) {
	idx := buildIndex(t, "/proj", map[string][]*types.Element{
		"a.go": {
			elem(types.KindVariable, "foo", 1),
			elem(types.KindVariable, "foobar", 2),
		},
	})
	engine := NewEngine(testSearchConfig())

	results, err := engine.Search("foo", idx, Options{ExactMatch: true})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "foo", results[0].Element.Name)
}

func TestSearch_CaseSensitivity(t *testing.T) {
	idx := buildIndex(t, "/proj", map[string][]*types.Element{
		"a.go": {elem(types.KindVariable, "HandleRequest", 1)},
	})
	engine := NewEngine(testSearchConfig())

	// Default is case-insensitive.
	results, err := engine.Search("handlerequest", idx, Options{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, ScoreExact, results[0].Score)

	results, err = engine.Search("handlerequest", idx, Options{CaseSensitive: true, ExactMatch: true})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearch_Filters(t *testing.T) {
	idx := buildIndex(t, "/proj", map[string][]*types.Element{
		"src/model.go":   {elem(types.KindStruct, "User", 1)},
		"src/service.go": {elem(types.KindFunction, "User", 1)},
	})
	engine := NewEngine(testSearchConfig())

	results, err := engine.Search("User", idx, Options{Kinds: []types.ElementKind{types.KindStruct}})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, types.KindStruct, results[0].Element.Kind)

	results, err = engine.Search("User", idx, Options{Languages: []string{"python"}})
	require.NoError(t, err)
	assert.Empty(t, results)

	results, err = engine.Search("User", idx, Options{PathPattern: "**/model.go"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, types.KindStruct, results[0].Element.Kind)
}

func TestSearch_MaxResultsAndCeiling(t *testing.T) {
	elems := make([]*types.Element, 0, 150)
	for i := 0; i < 150; i++ {
		elems = append(elems, elem(types.KindVariable, "itemvar", i+1))
	}
	idx := buildIndex(t, "/proj", map[string][]*types.Element{"a.go": elems})
	engine := NewEngine(testSearchConfig())

	results, err := engine.Search("itemvar", idx, Options{MaxResults: 5})
	require.NoError(t, err)
	assert.Len(t, results, 5)

	// Zero falls back to the configured default.
	results, err = engine.Search("itemvar", idx, Options{})
	require.NoError(t, err)
	assert.Len(t, results, types.DefaultMaxResults)

	// Requests above the ceiling are clamped.
	results, err = engine.Search("itemvar", idx, Options{MaxResults: 1000})
	require.NoError(t, err)
	assert.Len(t, results, types.MaxResultsCeiling)
}

func TestSearchMany_MergesAndRanksGlobally(t *testing.T) {
	backend := buildIndex(t, "/backend", map[string][]*types.Element{
		"svc.go": {elem(types.KindFunction, "connect", 1)},
	})
	frontend := buildIndex(t, "/frontend", map[string][]*types.Element{
		"api.go": {elem(types.KindClass, "connect", 1)},
	})
	engine := NewEngine(testSearchConfig())

	results, err := engine.SearchMany("connect", map[string]*index.ProjectIndex{
		"backend":  backend,
		"frontend": frontend,
	}, Options{})
	require.NoError(t, err)
	require.Len(t, results, 2)

	// The class boost puts the frontend hit first in the global order.
	assert.Equal(t, "frontend", results[0].Project)
	assert.Equal(t, "backend", results[1].Project)
}

func TestSearchMany_SubProjectSelection(t *testing.T) {
	a := buildIndex(t, "/a", map[string][]*types.Element{"x.go": {elem(types.KindVariable, "shared", 1)}})
	b := buildIndex(t, "/b", map[string][]*types.Element{"y.go": {elem(types.KindVariable, "shared", 1)}})
	indexes := map[string]*index.ProjectIndex{"a": a, "b": b}
	engine := NewEngine(testSearchConfig())

	results, err := engine.SearchMany("shared", indexes, Options{SubProjects: []string{"a"}})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a", results[0].Project)

	results, err = engine.SearchMany("shared", indexes, Options{ExcludeSub: []string{"a"}})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "b", results[0].Project)
}

func TestSearch_DirectoriesNeverReturned(t *testing.T) {
	idx := buildIndex(t, "/proj", map[string][]*types.Element{
		"sub/thing.go": {elem(types.KindVariable, "thing", 1)},
	})
	engine := NewEngine(testSearchConfig())

	// "sub" directory node and "thing.go" file node both exist; only file
	// and code elements are eligible.
	results, err := engine.Search("sub", idx, Options{})
	require.NoError(t, err)
	for _, r := range results {
		assert.NotEqual(t, types.KindDirectory, r.Element.Kind)
	}
}
