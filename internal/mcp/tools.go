package mcp

import (
	"context"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/codescry/codescry/internal/search"
	"github.com/codescry/codescry/internal/types"
)

func (s *Server) registerTools() {
	s.srv.AddTool(&mcp.Tool{
		Name:        "create_project",
		Description: "Index a project root and register it for querying. Re-creating an existing project id is an error.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"project_id": {Type: "string", Description: "Unique identifier for the project"},
				"root":       {Type: "string", Description: "Absolute path to the project root directory"},
			},
			Required: []string{"project_id", "root"},
		},
	}, s.handleCreateProject)

	s.srv.AddTool(&mcp.Tool{
		Name:        "destroy_project",
		Description: "Stop watching and unregister a project, releasing its index.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"project_id": {Type: "string", Description: "Identifier of the project to remove"},
			},
			Required: []string{"project_id"},
		},
	}, s.handleDestroyProject)

	s.srv.AddTool(&mcp.Tool{
		Name:        "search",
		Description: "Search indexed code elements by name. Supports kind/language/path filters and cross-project queries.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"query":          {Type: "string", Description: "Name or name fragment to search for"},
				"project_id":     {Type: "string", Description: "Project to search; omit with cross_project to search all"},
				"kinds":          {Type: "array", Items: &jsonschema.Schema{Type: "string"}, Description: "Element kinds to include, e.g. class, function"},
				"languages":      {Type: "array", Items: &jsonschema.Schema{Type: "string"}, Description: "Languages to include, e.g. go, typescript"},
				"path_pattern":   {Type: "string", Description: "Glob over element paths, e.g. src/**/*.ts"},
				"exact_match":    {Type: "boolean", Description: "Only return exact name matches"},
				"case_sensitive": {Type: "boolean", Description: "Match case-sensitively (default false)"},
				"cross_project":  {Type: "boolean", Description: "Search every registered project"},
				"max_results":    {Type: "integer", Description: "Result cap, bounded by the server ceiling"},
			},
			Required: []string{"query"},
		},
	}, s.handleSearch)

	s.srv.AddTool(&mcp.Tool{
		Name:        "resolve_import",
		Description: "Resolve an import specifier found in a project file to the indexed file it refers to.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"project_id":   {Type: "string", Description: "Project containing the importing file"},
				"current_file": {Type: "string", Description: "Path of the file containing the import"},
				"import_path":  {Type: "string", Description: "The import specifier to resolve"},
			},
			Required: []string{"project_id", "current_file", "import_path"},
		},
	}, s.handleResolveImport)

	s.srv.AddTool(&mcp.Tool{
		Name:        "import_graph",
		Description: "Show a project's resolved import edges, or the imports and importers of a single file.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"project_id": {Type: "string", Description: "Project to inspect"},
				"file":       {Type: "string", Description: "Root-relative file path; omit for the whole graph"},
			},
			Required: []string{"project_id"},
		},
	}, s.handleImportGraph)

	s.srv.AddTool(&mcp.Tool{
		Name:        "project_stats",
		Description: "Report file, element, language and memory statistics for one project or the whole registry.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"project_id": {Type: "string", Description: "Project to report on; omit for all projects"},
			},
		},
	}, s.handleProjectStats)
}

type createProjectArgs struct {
	ProjectID string `json:"project_id"`
	Root      string `json:"root"`
}

func (s *Server) handleCreateProject(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args createProjectArgs
	if err := decodeArgs(req, &args); err != nil {
		return errorResult(err), nil
	}
	p, err := s.reg.CreateProject(ctx, args.ProjectID, args.Root)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(map[string]any{
		"project_id":    p.ID,
		"root":          p.Root,
		"files_indexed": p.WalkStats.FilesIndexed,
		"files_skipped": p.WalkStats.FilesSkipped,
		"files_failed":  p.WalkStats.FilesFailed,
		"element_count": p.WalkStats.ElementCount,
		"languages":     p.WalkStats.Languages,
		"duration":      p.WalkStats.Duration.String(),
		"watching":      p.Watcher != nil,
	})
}

type destroyProjectArgs struct {
	ProjectID string `json:"project_id"`
}

func (s *Server) handleDestroyProject(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args destroyProjectArgs
	if err := decodeArgs(req, &args); err != nil {
		return errorResult(err), nil
	}
	if err := s.reg.DestroyProject(args.ProjectID); err != nil {
		return errorResult(err), nil
	}
	return textResult(fmt.Sprintf("project %q destroyed", args.ProjectID)), nil
}

type searchArgs struct {
	Query         string   `json:"query"`
	ProjectID     string   `json:"project_id"`
	Kinds         []string `json:"kinds"`
	Languages     []string `json:"languages"`
	PathPattern   string   `json:"path_pattern"`
	ExactMatch    bool     `json:"exact_match"`
	CaseSensitive bool     `json:"case_sensitive"`
	CrossProject  bool     `json:"cross_project"`
	MaxResults    int      `json:"max_results"`
}

func (s *Server) handleSearch(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args searchArgs
	if err := decodeArgs(req, &args); err != nil {
		return errorResult(err), nil
	}

	opts := search.Options{
		Languages:     args.Languages,
		PathPattern:   args.PathPattern,
		ExactMatch:    args.ExactMatch,
		CaseSensitive: args.CaseSensitive,
		CrossProject:  args.CrossProject,
		MaxResults:    args.MaxResults,
	}
	for _, k := range args.Kinds {
		kind := types.ElementKind(k)
		if !kind.Valid() {
			return errorResult(fmt.Errorf("unknown element kind %q", k)), nil
		}
		opts.Kinds = append(opts.Kinds, kind)
	}

	var (
		results []search.Result
		err     error
	)
	if args.CrossProject || args.ProjectID == "" {
		results, err = s.reg.SearchAll(args.Query, opts)
	} else {
		results, err = s.reg.Search(args.ProjectID, args.Query, opts)
	}
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(map[string]any{
		"query":   args.Query,
		"count":   len(results),
		"results": results,
	})
}

type resolveImportArgs struct {
	ProjectID   string `json:"project_id"`
	CurrentFile string `json:"current_file"`
	ImportPath  string `json:"import_path"`
}

func (s *Server) handleResolveImport(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args resolveImportArgs
	if err := decodeArgs(req, &args); err != nil {
		return errorResult(err), nil
	}
	res, err := s.reg.ResolveImport(args.ProjectID, args.CurrentFile, args.ImportPath)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(res)
}

type importGraphArgs struct {
	ProjectID string `json:"project_id"`
	File      string `json:"file"`
}

func (s *Server) handleImportGraph(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args importGraphArgs
	if err := decodeArgs(req, &args); err != nil {
		return errorResult(err), nil
	}
	if args.File != "" {
		imports, err := s.reg.FileImports(args.ProjectID, args.File)
		if err != nil {
			return errorResult(err), nil
		}
		importers, err := s.reg.Importers(args.ProjectID, args.File)
		if err != nil {
			return errorResult(err), nil
		}
		return jsonResult(map[string]any{
			"file":      args.File,
			"imports":   imports,
			"importers": importers,
		})
	}
	edges, err := s.reg.ImportGraph(args.ProjectID)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(map[string]any{
		"edge_count": len(edges),
		"edges":      edges,
	})
}

type projectStatsArgs struct {
	ProjectID string `json:"project_id"`
}

func (s *Server) handleProjectStats(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args projectStatsArgs
	// Arguments are optional for this tool.
	if len(req.Params.Arguments) > 0 {
		if err := decodeArgs(req, &args); err != nil {
			return errorResult(err), nil
		}
	}
	if args.ProjectID != "" {
		ps, err := s.reg.ProjectStats(args.ProjectID)
		if err != nil {
			return errorResult(err), nil
		}
		return jsonResult(ps)
	}
	return jsonResult(s.reg.Stats())
}
