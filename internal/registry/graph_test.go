package registry

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cserr "github.com/codescry/codescry/internal/errors"
	"github.com/codescry/codescry/internal/resolver"
)

func newGraphProject(t *testing.T, reg *Registry) string {
	t.Helper()
	root := newProjectDir(t, map[string]string{
		"src/main.ts": "import { u } from './util';\nimport React from 'react';\n",
		"src/api.ts":  "import { u } from './util';\n",
		"src/util.ts": "export const u = 1;\n",
	})
	_, err := reg.CreateProject(context.Background(), "web", root)
	require.NoError(t, err)
	return root
}

func TestFileImports(t *testing.T) {
	reg := newTestRegistry(5)
	defer reg.Close()
	root := newGraphProject(t, reg)

	results, err := reg.FileImports("web", "src/main.ts")
	require.NoError(t, err)
	require.Len(t, results, 2)

	byOrigin := make(map[string]resolver.Result)
	for _, res := range results {
		byOrigin[res.OriginalPath] = res
	}
	assert.Equal(t, "relative", byOrigin["./util"].Strategy)
	assert.Equal(t, filepath.Join(root, "src", "util.ts"), byOrigin["./util"].ResolvedPath)
	assert.Equal(t, "external", byOrigin["react"].Strategy)

	results, err = reg.FileImports("web", "src/util.ts")
	require.NoError(t, err)
	assert.Empty(t, results, "util.ts imports nothing")
}

func TestFileImports_UnknownFile(t *testing.T) {
	reg := newTestRegistry(5)
	defer reg.Close()
	newGraphProject(t, reg)

	_, err := reg.FileImports("web", "src/missing.ts")
	assert.True(t, cserr.IsNotFound(err))

	_, err = reg.FileImports("ghost", "src/main.ts")
	assert.True(t, cserr.IsNotFound(err))
}

func TestImportGraph(t *testing.T) {
	reg := newTestRegistry(5)
	defer reg.Close()
	root := newGraphProject(t, reg)

	edges, err := reg.ImportGraph("web")
	require.NoError(t, err)
	require.Len(t, edges, 3)

	// Edges come back ordered by importing file, then specifier.
	assert.Equal(t, "src/api.ts", edges[0].From)
	assert.Equal(t, "./util", edges[0].Result.OriginalPath)
	assert.Equal(t, filepath.Join(root, "src", "util.ts"), edges[0].Result.ResolvedPath)

	assert.Equal(t, "src/main.ts", edges[1].From)
	assert.Equal(t, "./util", edges[1].Result.OriginalPath)

	assert.Equal(t, "src/main.ts", edges[2].From)
	assert.Equal(t, "react", edges[2].Result.OriginalPath)
	assert.False(t, edges[2].Result.Exists)
}

func TestImporters(t *testing.T) {
	reg := newTestRegistry(5)
	defer reg.Close()
	newGraphProject(t, reg)

	importers, err := reg.Importers("web", "src/util.ts")
	require.NoError(t, err)
	assert.Equal(t, []string{"src/api.ts", "src/main.ts"}, importers)

	importers, err = reg.Importers("web", "src/main.ts")
	require.NoError(t, err)
	assert.Empty(t, importers)
}
