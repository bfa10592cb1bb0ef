package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	kdl "github.com/sblinch/kdl-go"
	"github.com/sblinch/kdl-go/document"
)

// LoadKDL attempts to load configuration from a .codescry.kdl file in
// projectRoot. Returns (nil, nil) when no file exists.
func LoadKDL(projectRoot string) (*Config, error) {
	kdlPath := filepath.Join(projectRoot, ".codescry.kdl")

	if _, err := os.Stat(kdlPath); os.IsNotExist(err) {
		return nil, nil
	}

	content, err := os.ReadFile(kdlPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read .codescry.kdl: %w", err)
	}

	cfg, err := parseKDL(string(content), projectRoot)
	if err != nil {
		return nil, err
	}
	resolveRoot(cfg, projectRoot)
	return cfg, nil
}

// parseKDL overlays the nodes of a KDL document onto the defaults.
func parseKDL(content, projectRoot string) (*Config, error) {
	cfg := defaultWithRoot(projectRoot)

	doc, err := kdl.Parse(strings.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse KDL config: %w", err)
	}

	for _, n := range doc.Nodes {
		switch nodeName(n) {
		case "project":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "root":
					if s, ok := firstStringArg(cn); ok {
						cfg.Project.Root = s
					}
				case "name":
					if s, ok := firstStringArg(cn); ok {
						cfg.Project.Name = s
					}
				}
			}
		case "index":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "languages":
					cfg.Index.Languages = collectStringArgs(cn)
				case "max_depth":
					if v, ok := firstIntArg(cn); ok {
						cfg.Index.MaxDepth = v
					}
				case "ignore_dirs":
					cfg.Index.IgnoreDirs = collectStringArgs(cn)
				case "max_file_size":
					if v, ok := firstIntArg(cn); ok {
						cfg.Index.MaxFileSize = int64(v)
					}
				case "max_line_count":
					if v, ok := firstIntArg(cn); ok {
						cfg.Index.MaxLineCount = v
					}
				case "max_line_length":
					if v, ok := firstIntArg(cn); ok {
						cfg.Index.MaxLineLength = v
					}
				case "respect_gitignore":
					if b, ok := firstBoolArg(cn); ok {
						cfg.Index.RespectGitignore = b
					}
				case "watch_mode":
					if b, ok := firstBoolArg(cn); ok {
						cfg.Index.WatchMode = b
					}
				case "watch_debounce_ms":
					if v, ok := firstIntArg(cn); ok {
						cfg.Index.WatchDebounceMs = v
					}
				case "workers":
					if v, ok := firstIntArg(cn); ok {
						cfg.Index.Workers = v
					}
				}
			}
		case "registry":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "max_projects":
					if v, ok := firstIntArg(cn); ok {
						cfg.Registry.MaxProjects = v
					}
				case "max_memory_mb":
					if v, ok := firstIntArg(cn); ok {
						cfg.Registry.MaxMemoryMB = v
					}
				}
			}
		case "search":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "max_results":
					if v, ok := firstIntArg(cn); ok {
						cfg.Search.MaxResults = v
					}
				case "fuzzy_threshold":
					if v, ok := firstFloatArg(cn); ok {
						cfg.Search.FuzzyThreshold = v
					}
				case "class_boost":
					if v, ok := firstFloatArg(cn); ok {
						cfg.Search.ClassBoost = v
					}
				case "function_boost":
					if v, ok := firstFloatArg(cn); ok {
						cfg.Search.FunctionBoost = v
					}
				case "priority_boost":
					if v, ok := firstFloatArg(cn); ok {
						cfg.Search.PriorityBoost = v
					}
				}
			}
		case "resolver":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "extensions":
					cfg.Resolver.Extensions = collectStringArgs(cn)
				case "alias":
					// alias "@" "src"
					args := collectStringArgs(cn)
					if len(args) == 2 {
						if cfg.Resolver.Aliases == nil {
							cfg.Resolver.Aliases = map[string]string{}
						}
						cfg.Resolver.Aliases[args[0]] = args[1]
					}
				case "index_files":
					cfg.Resolver.Framework.IndexFiles = collectStringArgs(cn)
				case "convention_dirs":
					cfg.Resolver.Framework.ConventionDirs = collectStringArgs(cn)
				}
			}
		case "include":
			cfg.Index.Include = append(cfg.Index.Include, collectStringArgs(n)...)
		case "exclude":
			cfg.Index.Exclude = collectStringArgs(n)
		}
	}

	return cfg, nil
}

// Helper functions leveraging the kdl-go document model.
func nodeName(n *document.Node) string {
	if n == nil || n.Name == nil {
		return ""
	}
	return n.Name.NodeNameString()
}

func firstIntArg(n *document.Node) (int, bool) {
	if len(n.Arguments) == 0 {
		return 0, false
	}
	switch v := n.Arguments[0].Value.(type) {
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

func firstFloatArg(n *document.Node) (float64, bool) {
	if len(n.Arguments) == 0 {
		return 0, false
	}
	switch v := n.Arguments[0].Value.(type) {
	case float64:
		return v, true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}

func firstStringArg(n *document.Node) (string, bool) {
	if len(n.Arguments) == 0 {
		return "", false
	}
	if s, ok := n.Arguments[0].Value.(string); ok {
		return s, true
	}
	return "", false
}

func firstBoolArg(n *document.Node) (bool, bool) {
	if len(n.Arguments) == 0 {
		return false, false
	}
	if b, ok := n.Arguments[0].Value.(bool); ok {
		return b, true
	}
	return false, false
}

func collectStringArgs(n *document.Node) []string {
	out := make([]string, 0, len(n.Arguments))
	for _, a := range n.Arguments {
		if s, ok := a.Value.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
