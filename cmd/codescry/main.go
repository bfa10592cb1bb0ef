package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/codescry/codescry/internal/config"
	"github.com/codescry/codescry/internal/debug"
	"github.com/codescry/codescry/internal/index"
	"github.com/codescry/codescry/internal/mcp"
	"github.com/codescry/codescry/internal/parser"
	"github.com/codescry/codescry/internal/registry"
	"github.com/codescry/codescry/internal/search"
	"github.com/codescry/codescry/internal/types"
	"github.com/codescry/codescry/internal/version"
)

// loadConfigWithOverrides loads configuration for the selected root and
// applies CLI flag overrides on top of it.
func loadConfigWithOverrides(c *cli.Context) (*config.Config, error) {
	root := c.String("root")
	if root == "" {
		root = "."
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve root path %q: %w", root, err)
	}

	cfg, err := config.Load(absRoot)
	if err != nil {
		return nil, fmt.Errorf("load config from %s: %w", absRoot, err)
	}

	if includeFlags := c.StringSlice("include"); len(includeFlags) > 0 {
		cfg.Index.Include = includeFlags
	}
	if excludeFlags := c.StringSlice("exclude"); len(excludeFlags) > 0 {
		cfg.Index.Exclude = append(cfg.Index.Exclude, excludeFlags...)
	}
	if langs := c.StringSlice("language"); len(langs) > 0 {
		cfg.Index.Languages = langs
	}
	if c.IsSet("workers") {
		cfg.Index.Workers = c.Int("workers")
	}
	return cfg, cfg.Validate()
}

func main() {
	app := &cli.App{
		Name:                   "codescry",
		Usage:                  "Live structural code index for multi-project codebases",
		Version:                version.Info(),
		UseShortOptionHandling: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "root",
				Aliases: []string{"r"},
				Usage:   "Project root directory (overrides config)",
			},
			&cli.StringSliceFlag{
				Name:  "include",
				Usage: "Index only files matching glob patterns (e.g. --include 'src/**/*.ts')",
			},
			&cli.StringSliceFlag{
				Name:  "exclude",
				Usage: "Exclude files matching glob patterns (e.g. --exclude '**/generated/**')",
			},
			&cli.StringSliceFlag{
				Name:  "language",
				Usage: "Index only these languages (e.g. --language go --language typescript)",
			},
			&cli.IntFlag{
				Name:  "workers",
				Usage: "Parallel file workers during indexing",
			},
		},
		Commands: []*cli.Command{
			{
				Name:    "index",
				Aliases: []string{"i"},
				Usage:   "Index the project and report what was found",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "json", Aliases: []string{"j"}, Usage: "Output as JSON"},
				},
				Action: indexCommand,
			},
			{
				Name:      "search",
				Aliases:   []string{"s"},
				Usage:     "Search indexed code elements by name",
				ArgsUsage: "<query>",
				Flags: []cli.Flag{
					&cli.StringSliceFlag{Name: "kind", Aliases: []string{"k"}, Usage: "Element kinds to include (class, function, ...)"},
					&cli.StringFlag{Name: "path", Aliases: []string{"p"}, Usage: "Glob over element paths (e.g. 'src/**/*.ts')"},
					&cli.BoolFlag{Name: "exact", Aliases: []string{"e"}, Usage: "Only exact name matches"},
					&cli.BoolFlag{Name: "case-sensitive", Aliases: []string{"C"}, Usage: "Match case-sensitively"},
					&cli.IntFlag{Name: "max-results", Aliases: []string{"n"}, Usage: "Result cap", Value: types.DefaultMaxResults},
					&cli.BoolFlag{Name: "json", Aliases: []string{"j"}, Usage: "Output as JSON"},
				},
				Action: searchCommand,
			},
			{
				Name:    "watch",
				Aliases: []string{"w"},
				Usage:   "Index the project and keep the index live until interrupted",
				Action:  watchCommand,
			},
			{
				Name:   "serve",
				Usage:  "Serve the index registry over MCP stdio",
				Action: serveCommand,
			},
			{
				Name:   "status",
				Usage:  "Show what would be indexed and the effective configuration",
				Action: statusCommand,
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() > 0 {
				return searchCommand(c)
			}
			return cli.ShowAppHelp(c)
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

func indexCommand(c *cli.Context) error {
	cfg, err := loadConfigWithOverrides(c)
	if err != nil {
		return err
	}

	walker := index.NewWalker(cfg, parser.NewEngine())
	idx, stats, err := walker.Walk(c.Context, cfg.Project.Root)
	if err != nil {
		return err
	}

	if c.Bool("json") {
		return printJSON(map[string]any{
			"root":  cfg.Project.Root,
			"walk":  stats,
			"index": idx.Stats(),
		})
	}

	fmt.Printf("Indexed %s in %s\n", cfg.Project.Root, stats.Duration.Round(time.Millisecond))
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "files indexed:\t%d\n", stats.FilesIndexed)
	fmt.Fprintf(w, "files skipped:\t%d\n", stats.FilesSkipped)
	fmt.Fprintf(w, "files failed:\t%d\n", stats.FilesFailed)
	fmt.Fprintf(w, "elements:\t%d\n", stats.ElementCount)
	fmt.Fprintf(w, "memory (est):\t%.1f MB\n", float64(idx.EstimatedMemory())/(1024*1024))
	for _, lang := range sortedKeys(stats.Languages) {
		fmt.Fprintf(w, "  %s:\t%d files\n", lang, stats.Languages[lang])
	}
	return w.Flush()
}

func searchCommand(c *cli.Context) error {
	if c.NArg() < 1 {
		return errors.New("usage: codescry search <query>")
	}
	query := c.Args().First()

	cfg, err := loadConfigWithOverrides(c)
	if err != nil {
		return err
	}

	walker := index.NewWalker(cfg, parser.NewEngine())
	idx, _, err := walker.Walk(c.Context, cfg.Project.Root)
	if err != nil {
		return err
	}

	opts := search.Options{
		PathPattern:   c.String("path"),
		ExactMatch:    c.Bool("exact"),
		CaseSensitive: c.Bool("case-sensitive"),
		MaxResults:    c.Int("max-results"),
	}
	for _, k := range c.StringSlice("kind") {
		kind := types.ElementKind(k)
		if !kind.Valid() {
			return fmt.Errorf("unknown element kind %q", k)
		}
		opts.Kinds = append(opts.Kinds, kind)
	}

	results, err := search.NewEngine(cfg.Search).Search(query, idx, opts)
	if err != nil {
		return err
	}

	if c.Bool("json") {
		return printJSON(results)
	}
	if len(results) == 0 {
		fmt.Printf("no results for %q\n", query)
		return nil
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	for _, r := range results {
		fmt.Fprintf(w, "%.0f\t%s\t%s\t%s:%d\n",
			r.Score, r.Element.Kind, r.Element.Name, r.Element.Path, r.Element.Span.StartLine)
	}
	return w.Flush()
}

func watchCommand(c *cli.Context) error {
	cfg, err := loadConfigWithOverrides(c)
	if err != nil {
		return err
	}

	engine := parser.NewEngine()
	walker := index.NewWalker(cfg, engine)
	idx, stats, err := walker.Walk(c.Context, cfg.Project.Root)
	if err != nil {
		return err
	}
	fmt.Printf("Indexed %d files in %s, watching %s\n",
		stats.FilesIndexed, stats.Duration.Round(time.Millisecond), cfg.Project.Root)

	w := index.NewWatcher(filepath.Base(cfg.Project.Root), cfg, engine, idx)
	w.SetErrorCallback(func(err error) {
		fmt.Fprintf(os.Stderr, "watch error: %v\n", err)
	})
	w.SetBatchCallback(func(applied int) {
		s := idx.Stats()
		fmt.Printf("applied %d change(s): %d files, %d elements\n", applied, s.FileCount, s.ElementCount)
	})
	if err := w.Start(); err != nil {
		return err
	}
	defer w.Stop()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	fmt.Printf("received %v, shutting down\n", sig)
	return nil
}

func serveCommand(c *cli.Context) error {
	cfg, err := loadConfigWithOverrides(c)
	if err != nil {
		return err
	}

	if _, err := debug.InitLogFile(); err == nil {
		defer debug.CloseLogFile()
	}

	reg := registry.NewRegistry(cfg.Registry, cfg.Search)
	defer reg.Close()

	// Pre-register the current root so the first query works immediately.
	if _, err := reg.CreateProject(c.Context, "default", cfg.Project.Root); err != nil {
		return fmt.Errorf("index %s: %w", cfg.Project.Root, err)
	}

	server := mcp.NewServer(reg)

	ctx, cancel := context.WithCancel(c.Context)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() { errChan <- server.Run(ctx) }()

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		debug.Printf("received signal %v, shutting down\n", sig)
		cancel()
		select {
		case <-errChan:
		case <-time.After(2 * time.Second):
		}
		return nil
	}
}

func statusCommand(c *cli.Context) error {
	cfg, err := loadConfigWithOverrides(c)
	if err != nil {
		return err
	}

	fmt.Printf("codescry %s\n", version.FullInfo())
	fmt.Printf("root: %s\n", cfg.Project.Root)

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "languages:\t%v\n", orAll(cfg.Index.Languages))
	fmt.Fprintf(w, "include:\t%v\n", orAll(cfg.Index.Include))
	fmt.Fprintf(w, "exclude:\t%v\n", orNone(cfg.Index.Exclude))
	fmt.Fprintf(w, "ignore dirs:\t%v\n", cfg.Index.IgnoreDirs)
	fmt.Fprintf(w, "respect gitignore:\t%t\n", cfg.Index.RespectGitignore)
	fmt.Fprintf(w, "watch mode:\t%t (debounce %dms)\n", cfg.Index.WatchMode, cfg.Index.WatchDebounceMs)
	fmt.Fprintf(w, "max projects:\t%d\n", cfg.Registry.MaxProjects)
	fmt.Fprintf(w, "max memory:\t%d MB\n", cfg.Registry.MaxMemoryMB)
	fmt.Fprintf(w, "max results:\t%d\n", cfg.Search.MaxResults)
	fmt.Fprintf(w, "fuzzy threshold:\t%.2f\n", cfg.Search.FuzzyThreshold)
	return w.Flush()
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func orAll(vals []string) any {
	if len(vals) == 0 {
		return "(all)"
	}
	return vals
}

func orNone(vals []string) any {
	if len(vals) == 0 {
		return "(none)"
	}
	return vals
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
