package config

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/codescry/codescry/internal/types"
)

// Default search scoring constants. Base scores are fixed by the ranking
// contract; boosts are configurable per project.
const (
	DefaultClassBoost    = 10.0
	DefaultFunctionBoost = 5.0
	DefaultPriorityBoost = 15.0
)

// Config is the full configuration tree for one registry instance.
type Config struct {
	Version  int
	Project  Project
	Index    Index
	Registry Registry
	Search   Search
	Resolver Resolver
}

// Project identifies the default codebase root.
type Project struct {
	Root string
	Name string
}

// Index controls traversal, filtering and watching for project indexes.
type Index struct {
	Languages        []string // empty = all recognized languages
	MaxDepth         int
	IgnoreDirs       []string
	Include          []string // doublestar globs; empty = everything
	Exclude          []string // doublestar globs
	MaxFileSize      int64
	MaxLineCount     int
	MaxLineLength    int
	RespectGitignore bool
	WatchMode        bool
	WatchDebounceMs  int
	Workers          int // parallel walker workers; 0 = NumCPU
}

// Registry bounds the set of resident projects. Count is the primary
// eviction trigger; the memory estimate is the secondary safeguard.
type Registry struct {
	MaxProjects int
	MaxMemoryMB int
}

// Search holds ranking defaults applied when options leave them unset.
type Search struct {
	MaxResults     int
	FuzzyThreshold float64
	ClassBoost     float64
	FunctionBoost  float64
	PriorityBoost  float64
}

// Resolver configures the import resolution strategy chain.
type Resolver struct {
	Extensions []string          // tried in order for extensionless imports
	Aliases    map[string]string // alias prefix -> directory relative to root
	Framework  Framework
}

// Framework holds convention-based resolution settings.
type Framework struct {
	IndexFiles     []string // implicit entry files tried inside a directory
	ConventionDirs []string // directories searched from the project root
}

// Default returns the built-in configuration rooted at the current working
// directory.
func Default() *Config {
	cwd, err := os.Getwd()
	if err != nil {
		cwd = "."
	}
	return defaultWithRoot(cwd)
}

func defaultWithRoot(root string) *Config {
	return &Config{
		Version: 1,
		Project: Project{
			Root: root,
		},
		Index: Index{
			Languages: nil,
			MaxDepth:  types.DefaultMaxDepth,
			IgnoreDirs: []string{
				".git",
				"node_modules",
				"vendor",
				"dist",
				"build",
				"target",
				"__pycache__",
			},
			Include:          []string{},
			Exclude:          []string{"**/*.min.js", "**/*.min.css", "**/*.log"},
			MaxFileSize:      types.DefaultMaxFileSize,
			MaxLineCount:     types.DefaultMaxLineCount,
			MaxLineLength:    types.DefaultMaxLineLength,
			RespectGitignore: true,
			WatchMode:        true,
			WatchDebounceMs:  types.DefaultDebounceMs,
			Workers:          runtime.NumCPU(),
		},
		Registry: Registry{
			MaxProjects: types.DefaultMaxProjects,
			MaxMemoryMB: types.DefaultMaxMemoryMB,
		},
		Search: Search{
			MaxResults:     types.DefaultMaxResults,
			FuzzyThreshold: types.DefaultFuzzyThreshold,
			ClassBoost:     DefaultClassBoost,
			FunctionBoost:  DefaultFunctionBoost,
			PriorityBoost:  DefaultPriorityBoost,
		},
		Resolver: Resolver{
			Extensions: []string{".ts", ".tsx", ".js", ".jsx", ".go", ".py", ".rs", ".java"},
			Aliases:    map[string]string{},
			Framework: Framework{
				IndexFiles:     []string{"index.ts", "index.tsx", "index.js", "index.jsx", "mod.rs", "__init__.py"},
				ConventionDirs: []string{"src", "lib", "app"},
			},
		},
	}
}

// Load reads project configuration from rootDir. A .codescry.kdl file takes
// precedence; codescry.toml is accepted as an alternative. With neither
// present the built-in defaults rooted at rootDir are returned.
func Load(rootDir string) (*Config, error) {
	if rootDir == "" {
		rootDir = "."
	}
	absRoot, err := filepath.Abs(rootDir)
	if err != nil {
		absRoot = rootDir
	}

	if cfg, err := LoadKDL(absRoot); err != nil {
		return nil, err
	} else if cfg != nil {
		return cfg, nil
	}

	if cfg, err := LoadTOML(absRoot); err != nil {
		return nil, err
	} else if cfg != nil {
		return cfg, nil
	}

	return defaultWithRoot(absRoot), nil
}

// resolveRoot makes cfg.Project.Root absolute, resolving relative paths
// against the directory that held the config file.
func resolveRoot(cfg *Config, configDir string) {
	if cfg.Project.Root == "" {
		cfg.Project.Root = configDir
		return
	}
	if !filepath.IsAbs(cfg.Project.Root) {
		cfg.Project.Root = filepath.Join(configDir, cfg.Project.Root)
	}
	cfg.Project.Root = filepath.Clean(cfg.Project.Root)
}
