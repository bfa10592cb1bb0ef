package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

// tomlFile mirrors the on-disk codescry.toml shape. Pointer fields
// distinguish "unset" from zero values so the file only overrides what it
// names.
type tomlFile struct {
	Project struct {
		Root string `toml:"root"`
		Name string `toml:"name"`
	} `toml:"project"`
	Index struct {
		Languages        []string `toml:"languages"`
		MaxDepth         *int     `toml:"max_depth"`
		IgnoreDirs       []string `toml:"ignore_dirs"`
		Include          []string `toml:"include"`
		Exclude          []string `toml:"exclude"`
		MaxFileSize      *int64   `toml:"max_file_size"`
		MaxLineCount     *int     `toml:"max_line_count"`
		MaxLineLength    *int     `toml:"max_line_length"`
		RespectGitignore *bool    `toml:"respect_gitignore"`
		WatchMode        *bool    `toml:"watch_mode"`
		WatchDebounceMs  *int     `toml:"watch_debounce_ms"`
		Workers          *int     `toml:"workers"`
	} `toml:"index"`
	Registry struct {
		MaxProjects *int `toml:"max_projects"`
		MaxMemoryMB *int `toml:"max_memory_mb"`
	} `toml:"registry"`
	Search struct {
		MaxResults     *int     `toml:"max_results"`
		FuzzyThreshold *float64 `toml:"fuzzy_threshold"`
		ClassBoost     *float64 `toml:"class_boost"`
		FunctionBoost  *float64 `toml:"function_boost"`
		PriorityBoost  *float64 `toml:"priority_boost"`
	} `toml:"search"`
	Resolver struct {
		Extensions     []string          `toml:"extensions"`
		Aliases        map[string]string `toml:"aliases"`
		IndexFiles     []string          `toml:"index_files"`
		ConventionDirs []string          `toml:"convention_dirs"`
	} `toml:"resolver"`
}

// LoadTOML attempts to load configuration from a codescry.toml file in
// projectRoot. Returns (nil, nil) when no file exists.
func LoadTOML(projectRoot string) (*Config, error) {
	tomlPath := filepath.Join(projectRoot, "codescry.toml")

	content, err := os.ReadFile(tomlPath)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read codescry.toml: %w", err)
	}

	var file tomlFile
	if err := toml.Unmarshal(content, &file); err != nil {
		return nil, fmt.Errorf("failed to parse codescry.toml: %w", err)
	}

	cfg := defaultWithRoot(projectRoot)
	applyTOML(cfg, &file)
	resolveRoot(cfg, projectRoot)
	return cfg, nil
}

func applyTOML(cfg *Config, f *tomlFile) {
	if f.Project.Root != "" {
		cfg.Project.Root = f.Project.Root
	}
	if f.Project.Name != "" {
		cfg.Project.Name = f.Project.Name
	}

	if f.Index.Languages != nil {
		cfg.Index.Languages = f.Index.Languages
	}
	if f.Index.MaxDepth != nil {
		cfg.Index.MaxDepth = *f.Index.MaxDepth
	}
	if f.Index.IgnoreDirs != nil {
		cfg.Index.IgnoreDirs = f.Index.IgnoreDirs
	}
	if f.Index.Include != nil {
		cfg.Index.Include = f.Index.Include
	}
	if f.Index.Exclude != nil {
		cfg.Index.Exclude = f.Index.Exclude
	}
	if f.Index.MaxFileSize != nil {
		cfg.Index.MaxFileSize = *f.Index.MaxFileSize
	}
	if f.Index.MaxLineCount != nil {
		cfg.Index.MaxLineCount = *f.Index.MaxLineCount
	}
	if f.Index.MaxLineLength != nil {
		cfg.Index.MaxLineLength = *f.Index.MaxLineLength
	}
	if f.Index.RespectGitignore != nil {
		cfg.Index.RespectGitignore = *f.Index.RespectGitignore
	}
	if f.Index.WatchMode != nil {
		cfg.Index.WatchMode = *f.Index.WatchMode
	}
	if f.Index.WatchDebounceMs != nil {
		cfg.Index.WatchDebounceMs = *f.Index.WatchDebounceMs
	}
	if f.Index.Workers != nil {
		cfg.Index.Workers = *f.Index.Workers
	}

	if f.Registry.MaxProjects != nil {
		cfg.Registry.MaxProjects = *f.Registry.MaxProjects
	}
	if f.Registry.MaxMemoryMB != nil {
		cfg.Registry.MaxMemoryMB = *f.Registry.MaxMemoryMB
	}

	if f.Search.MaxResults != nil {
		cfg.Search.MaxResults = *f.Search.MaxResults
	}
	if f.Search.FuzzyThreshold != nil {
		cfg.Search.FuzzyThreshold = *f.Search.FuzzyThreshold
	}
	if f.Search.ClassBoost != nil {
		cfg.Search.ClassBoost = *f.Search.ClassBoost
	}
	if f.Search.FunctionBoost != nil {
		cfg.Search.FunctionBoost = *f.Search.FunctionBoost
	}
	if f.Search.PriorityBoost != nil {
		cfg.Search.PriorityBoost = *f.Search.PriorityBoost
	}

	if f.Resolver.Extensions != nil {
		cfg.Resolver.Extensions = f.Resolver.Extensions
	}
	if f.Resolver.Aliases != nil {
		cfg.Resolver.Aliases = f.Resolver.Aliases
	}
	if f.Resolver.IndexFiles != nil {
		cfg.Resolver.Framework.IndexFiles = f.Resolver.IndexFiles
	}
	if f.Resolver.ConventionDirs != nil {
		cfg.Resolver.Framework.ConventionDirs = f.Resolver.ConventionDirs
	}
}
