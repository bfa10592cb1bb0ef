package config

import (
	"fmt"
	"os"
)

// Validate checks the configuration for values that would break indexing.
// It is called once at startup; component constructors may assume a valid
// config afterwards.
func (c *Config) Validate() error {
	if c.Project.Root == "" {
		return fmt.Errorf("project root must not be empty")
	}
	if info, err := os.Stat(c.Project.Root); err != nil {
		return fmt.Errorf("project root %q is not accessible: %w", c.Project.Root, err)
	} else if !info.IsDir() {
		return fmt.Errorf("project root %q is not a directory", c.Project.Root)
	}

	if c.Index.MaxDepth <= 0 {
		return fmt.Errorf("index.max_depth must be positive, got %d", c.Index.MaxDepth)
	}
	if c.Index.MaxFileSize <= 0 {
		return fmt.Errorf("index.max_file_size must be positive, got %d", c.Index.MaxFileSize)
	}
	if c.Index.MaxLineCount <= 0 {
		return fmt.Errorf("index.max_line_count must be positive, got %d", c.Index.MaxLineCount)
	}
	if c.Index.MaxLineLength <= 0 {
		return fmt.Errorf("index.max_line_length must be positive, got %d", c.Index.MaxLineLength)
	}
	if c.Index.WatchDebounceMs < 0 {
		return fmt.Errorf("index.watch_debounce_ms must not be negative, got %d", c.Index.WatchDebounceMs)
	}
	if c.Index.Workers < 0 {
		return fmt.Errorf("index.workers must not be negative, got %d", c.Index.Workers)
	}

	if c.Registry.MaxProjects <= 0 {
		return fmt.Errorf("registry.max_projects must be positive, got %d", c.Registry.MaxProjects)
	}
	if c.Registry.MaxMemoryMB <= 0 {
		return fmt.Errorf("registry.max_memory_mb must be positive, got %d", c.Registry.MaxMemoryMB)
	}

	if c.Search.MaxResults <= 0 {
		return fmt.Errorf("search.max_results must be positive, got %d", c.Search.MaxResults)
	}
	if c.Search.FuzzyThreshold < 0 || c.Search.FuzzyThreshold > 1 {
		return fmt.Errorf("search.fuzzy_threshold must be between 0 and 1, got %v", c.Search.FuzzyThreshold)
	}

	for alias, dir := range c.Resolver.Aliases {
		if alias == "" || dir == "" {
			return fmt.Errorf("resolver alias mappings must not be empty (alias %q -> %q)", alias, dir)
		}
	}

	return nil
}
