package index

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	ignore "github.com/sabhiram/go-gitignore"

	"github.com/codescry/codescry/internal/config"
	"github.com/codescry/codescry/internal/debug"
	cserr "github.com/codescry/codescry/internal/errors"
	"github.com/codescry/codescry/internal/parser"
	"github.com/codescry/codescry/internal/types"
	"golang.org/x/sync/errgroup"
)

// WalkStats aggregates the outcome of one initial traversal.
type WalkStats struct {
	FilesIndexed    int               `json:"files_indexed"`
	FilesSkipped    int               `json:"files_skipped"`
	FilesFailed     int               `json:"files_failed"`
	ElementCount    int               `json:"element_count"`
	Languages       map[string]int    `json:"languages"`
	SkipReasons     map[string]string `json:"skip_reasons,omitempty"`
	EstimatedMemory int64             `json:"estimated_memory"`
	Duration        time.Duration     `json:"duration"`
}

// Walker builds the initial ProjectIndex for a directory tree. Per-file
// failures are recorded and never abort the walk.
type Walker struct {
	cfg     *config.Config
	engine  parser.Engine
	ignorer *ignore.GitIgnore // nil when gitignore handling is off or absent
}

// NewWalker creates a walker bound to a config and parsing engine. The
// project root's .gitignore is loaded here so callers that only use the
// filter methods, like the watcher, apply the same rules as a full Walk.
func NewWalker(cfg *config.Config, engine parser.Engine) *Walker {
	w := &Walker{cfg: cfg, engine: engine}
	w.loadIgnorer(cfg.Project.Root)
	return w
}

// loadIgnorer compiles root's .gitignore when gitignore handling is on.
// A missing or unreadable file leaves any previously loaded rules in place.
func (w *Walker) loadIgnorer(root string) {
	if !w.cfg.Index.RespectGitignore || root == "" {
		return
	}
	if gi, err := ignore.CompileIgnoreFile(filepath.Join(root, ".gitignore")); err == nil {
		w.ignorer = gi
	}
}

// Walk traverses root, parses every candidate file with a bounded worker
// pool, and returns the assembled index plus traversal statistics. The
// returned error is non-nil only when the root itself cannot be walked.
func (w *Walker) Walk(ctx context.Context, root string) (*ProjectIndex, *WalkStats, error) {
	root = filepath.Clean(root)
	start := time.Now()

	stats := &WalkStats{
		Languages:   make(map[string]int),
		SkipReasons: make(map[string]string),
	}

	w.loadIgnorer(root)

	candidates, err := w.collectCandidates(root, stats)
	if err != nil {
		return nil, nil, cserr.NewFileError("walk", root, err)
	}

	idx := NewProjectIndex(root)

	workers := w.cfg.Index.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	var statsMu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for _, path := range candidates {
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			result, skipReason, err := w.processFile(path)
			statsMu.Lock()
			defer statsMu.Unlock()
			switch {
			case err != nil:
				stats.FilesFailed++
				stats.SkipReasons[path] = err.Error()
				debug.LogIndexing("walk: %s failed: %v\n", path, err)
			case skipReason != "":
				stats.FilesSkipped++
				stats.SkipReasons[path] = skipReason
			default:
				idx.PutFile(path, result.modTime, result.hash, result.language,
					result.parsed.Elements, result.parsed.Imports, result.parsed.Exports)
				stats.FilesIndexed++
				stats.Languages[result.language]++
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	s := idx.Stats()
	stats.ElementCount = s.ElementCount
	stats.EstimatedMemory = s.EstimatedMemory
	stats.Duration = time.Since(start)

	debug.LogIndexing("walk: %s indexed %d files (%d elements, %d skipped, %d failed) in %v\n",
		root, stats.FilesIndexed, stats.ElementCount, stats.FilesSkipped, stats.FilesFailed, stats.Duration)
	return idx, stats, nil
}

// collectCandidates gathers the file paths that pass directory-level and
// name-level filters. Traversal errors on individual entries are skipped.
func (w *Walker) collectCandidates(root string, stats *WalkStats) ([]string, error) {
	var candidates []string

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			return nil // skip unreadable entries, keep walking
		}

		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return nil
		}

		if d.IsDir() {
			if path == root {
				return nil
			}
			if strings.Count(rel, string(filepath.Separator))+1 >= w.cfg.Index.MaxDepth {
				return filepath.SkipDir
			}
			if w.shouldIgnoreDir(d.Name(), rel) {
				return filepath.SkipDir
			}
			return nil
		}

		if !w.ShouldIndex(path, rel) {
			return nil
		}
		candidates = append(candidates, path)
		return nil
	})
	return candidates, err
}

// shouldIgnoreDir applies the ignore-directory list, exclude globs and
// gitignore rules to a directory.
func (w *Walker) shouldIgnoreDir(name, rel string) bool {
	for _, ignored := range w.cfg.Index.IgnoreDirs {
		if name == ignored {
			return true
		}
	}
	relSlash := filepath.ToSlash(rel)
	for _, pattern := range w.cfg.Index.Exclude {
		if matched, _ := doublestar.Match(pattern, relSlash+"/"); matched {
			return true
		}
		if matched, _ := doublestar.Match(pattern, relSlash); matched {
			return true
		}
	}
	if w.ignorer != nil && w.ignorer.MatchesPath(relSlash+"/") {
		return true
	}
	return false
}

// ShouldIndex reports whether a file passes the language filter, the
// include/exclude globs and gitignore rules. rel is the path relative to
// the project root.
func (w *Walker) ShouldIndex(path, rel string) bool {
	lang := parser.LanguageForPath(path)
	if lang == "" {
		return false
	}
	if len(w.cfg.Index.Languages) > 0 && !containsString(w.cfg.Index.Languages, lang) {
		return false
	}
	if w.engine != nil && !w.engine.CanParse(path) {
		return false
	}

	relSlash := filepath.ToSlash(rel)
	if len(w.cfg.Index.Include) > 0 {
		included := false
		for _, pattern := range w.cfg.Index.Include {
			if matched, _ := doublestar.Match(pattern, relSlash); matched {
				included = true
				break
			}
		}
		if !included {
			return false
		}
	}
	for _, pattern := range w.cfg.Index.Exclude {
		if matched, _ := doublestar.Match(pattern, relSlash); matched {
			return false
		}
	}
	if w.ignorer != nil && w.ignorer.MatchesPath(relSlash) {
		return false
	}
	return true
}

// fileResult carries one successfully processed file back to the collector.
type fileResult struct {
	parsed   *parser.ParseResult
	language string
	modTime  time.Time
	hash     uint64
}

// processFile applies the per-file limits and invokes the engine. A
// non-empty skip reason means the file was excluded deliberately; an error
// means it failed.
func (w *Walker) processFile(path string) (*fileResult, string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, "", cserr.NewFileError("stat", path, err)
	}
	if info.Size() > w.cfg.Index.MaxFileSize {
		return nil, fmt.Sprintf("file size %d exceeds limit %d", info.Size(), w.cfg.Index.MaxFileSize), nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, "", cserr.NewFileError("read", path, err)
	}

	if reason := CheckLineLimits(content, w.cfg.Index.MaxLineCount, w.cfg.Index.MaxLineLength); reason != "" {
		return nil, reason, nil
	}

	parsed, err := w.engine.Parse(path, content)
	if err != nil {
		return nil, "", cserr.NewParseError(path, 0, 0, err)
	}

	return &fileResult{
		parsed:   parsed,
		language: parser.LanguageForPath(path),
		modTime:  info.ModTime(),
		hash:     types.HashContent(content),
	}, "", nil
}

// CheckLineLimits scans content once and returns a skip reason when the
// line count or any single line length exceeds its limit.
func CheckLineLimits(content []byte, maxLines, maxLineLen int) string {
	lines := 0
	lineStart := 0
	for i := 0; i <= len(content); i++ {
		if i == len(content) || content[i] == '\n' {
			if i > lineStart && i-lineStart > maxLineLen {
				return fmt.Sprintf("line %d length %d exceeds limit %d", lines+1, i-lineStart, maxLineLen)
			}
			if i < len(content) {
				lines++
				if lines > maxLines {
					return fmt.Sprintf("line count exceeds limit %d", maxLines)
				}
			}
			lineStart = i + 1
		}
	}
	return ""
}

func containsString(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}
