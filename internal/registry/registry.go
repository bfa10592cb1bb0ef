package registry

import (
	"container/list"
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/codescry/codescry/internal/config"
	"github.com/codescry/codescry/internal/debug"
	cserr "github.com/codescry/codescry/internal/errors"
	"github.com/codescry/codescry/internal/index"
	"github.com/codescry/codescry/internal/parser"
	"github.com/codescry/codescry/internal/resolver"
	"github.com/codescry/codescry/internal/search"
	"github.com/codescry/codescry/internal/types"
)

// Project is one registered, indexed project root.
type Project struct {
	ID        string
	Root      string
	Config    *config.Config
	Index     *index.ProjectIndex
	Watcher   *index.Watcher
	Resolver  *resolver.Resolver
	WalkStats *index.WalkStats
	CreatedAt time.Time

	element *list.Element // recency position, owned by the registry
}

// ProjectStats is a point-in-time snapshot of one project.
type ProjectStats struct {
	ID           string           `json:"id"`
	Root         string           `json:"root"`
	FileCount    int              `json:"file_count"`
	ElementCount int              `json:"element_count"`
	Languages    map[string]int   `json:"languages"`
	MemoryBytes  int64            `json:"memory_bytes"`
	Watching     bool             `json:"watching"`
	WatchStats   index.WatchStats `json:"watch_stats"`
	CreatedAt    time.Time        `json:"created_at"`
}

// Stats aggregates the whole registry.
type Stats struct {
	ProjectCount int            `json:"project_count"`
	MaxProjects  int            `json:"max_projects"`
	MemoryBytes  int64          `json:"memory_bytes"`
	MaxMemoryMB  int            `json:"max_memory_mb"`
	Projects     []ProjectStats `json:"projects"`
}

// Registry holds up to maxProjects live project indexes and evicts the
// least-recently-used ones when either the count or the memory budget is
// exceeded. One mutex guards the map, the recency list and eviction so the
// two can never disagree.
type Registry struct {
	mu          sync.Mutex
	projects    map[string]*Project
	recency     *list.List // front = most recently used
	maxProjects int
	maxMemory   int64 // bytes, 0 = unlimited
	engine      parser.Engine
	searcher    *search.Engine
}

// Option tweaks registry construction.
type Option func(*Registry)

// WithEngine overrides the parsing engine used for new projects.
func WithEngine(e parser.Engine) Option {
	return func(r *Registry) { r.engine = e }
}

// NewRegistry creates a registry with the given capacity limits.
func NewRegistry(cfg config.Registry, searchCfg config.Search, opts ...Option) *Registry {
	maxProjects := cfg.MaxProjects
	if maxProjects <= 0 {
		maxProjects = types.DefaultMaxProjects
	}
	r := &Registry{
		projects:    make(map[string]*Project),
		recency:     list.New(),
		maxProjects: maxProjects,
		maxMemory:   int64(cfg.MaxMemoryMB) * 1024 * 1024,
		engine:      parser.NewEngine(),
		searcher:    search.NewEngine(searchCfg),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// CreateProject indexes rootDir and registers it under id. The walk runs
// outside the registry lock so other projects stay queryable. If the
// project config enables watch mode the watcher is started before the
// project becomes visible.
func (r *Registry) CreateProject(ctx context.Context, id, rootDir string) (*Project, error) {
	if id == "" {
		return nil, cserr.NewValidationError("id", id, "must not be empty")
	}

	r.mu.Lock()
	if _, ok := r.projects[id]; ok {
		r.mu.Unlock()
		return nil, cserr.NewAlreadyExistsError("project", id)
	}
	r.mu.Unlock()

	cfg, err := config.Load(rootDir)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	walker := index.NewWalker(cfg, r.engine)
	idx, walkStats, err := walker.Walk(ctx, cfg.Project.Root)
	if err != nil {
		return nil, err
	}

	res, err := resolver.NewResolver(cfg.Resolver)
	if err != nil {
		return nil, err
	}

	p := &Project{
		ID:        id,
		Root:      cfg.Project.Root,
		Config:    cfg,
		Index:     idx,
		Resolver:  res,
		WalkStats: walkStats,
		CreatedAt: time.Now(),
	}

	if cfg.Index.WatchMode {
		w := index.NewWatcher(id, cfg, r.engine, idx)
		w.SetBatchCallback(func(int) { res.Invalidate() })
		if err := w.Start(); err != nil {
			return nil, err
		}
		p.Watcher = w
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	// Re-check: a concurrent create for the same id may have won the race
	// while we were walking.
	if _, ok := r.projects[id]; ok {
		if p.Watcher != nil {
			p.Watcher.Stop()
		}
		return nil, cserr.NewAlreadyExistsError("project", id)
	}
	p.element = r.recency.PushFront(p)
	r.projects[id] = p
	r.evictLocked()
	debug.LogIndexing("registered project %q (%d files)\n", id, walkStats.FilesIndexed)
	return p, nil
}

// GetProject returns the project and refreshes its recency.
func (r *Registry) GetProject(id string) (*Project, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.projects[id]
	if !ok {
		return nil, cserr.NewNotFoundError("project", id)
	}
	r.recency.MoveToFront(p.element)
	return p, nil
}

// DestroyProject stops the project's watcher and then removes it. Stopping
// first guarantees no batch is applied to an unregistered index; holding
// the lock across the stop keeps a concurrent create of the same id from
// interleaving with the teardown.
func (r *Registry) DestroyProject(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.projects[id]
	if !ok {
		return cserr.NewNotFoundError("project", id)
	}
	if p.Watcher != nil {
		p.Watcher.Stop()
	}
	delete(r.projects, id)
	r.recency.Remove(p.element)
	return nil
}

// ProjectIDs lists registered ids, most recently used first.
func (r *Registry) ProjectIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, r.recency.Len())
	for e := r.recency.Front(); e != nil; e = e.Next() {
		ids = append(ids, e.Value.(*Project).ID)
	}
	return ids
}

// Search runs a query against one project, refreshing its recency.
func (r *Registry) Search(id, query string, opts search.Options) ([]search.Result, error) {
	p, err := r.GetProject(id)
	if err != nil {
		return nil, err
	}
	return r.searcher.Search(query, p.Index, opts)
}

// SearchAll fans a query out over every registered project and returns the
// globally ranked result set.
func (r *Registry) SearchAll(query string, opts search.Options) ([]search.Result, error) {
	r.mu.Lock()
	indexes := make(map[string]*index.ProjectIndex, len(r.projects))
	for id, p := range r.projects {
		indexes[id] = p.Index
	}
	r.mu.Unlock()
	return r.searcher.SearchMany(query, indexes, opts)
}

// ResolveImport resolves an import specifier in the context of one
// project file.
func (r *Registry) ResolveImport(id, currentFile, importPath string) (resolver.Result, error) {
	p, err := r.GetProject(id)
	if err != nil {
		return resolver.Result{}, err
	}
	rel := currentFile
	if filepath.IsAbs(rel) {
		if v, err := filepath.Rel(p.Root, rel); err == nil {
			rel = v
		}
	}
	rctx := resolveContext(p, filepath.ToSlash(rel), relFileSet(p))
	res, err := p.Resolver.Resolve(rctx, importPath)
	if err != nil {
		return resolver.Result{}, err
	}
	return absolutize(p, res), nil
}

// absolutize rewrites a resolver hit's root-relative path to a normalized
// absolute one. The resolver itself stays root-relative so its memoization
// cache never has to care about where the project is mounted.
func absolutize(p *Project, res resolver.Result) resolver.Result {
	if res.Exists {
		res.ResolvedPath = filepath.Join(p.Root, filepath.FromSlash(res.ResolvedPath))
	}
	return res
}

// relFileSet converts the index's absolute file paths into the root-relative
// slash form the resolver works in.
func relFileSet(p *Project) map[string]bool {
	files := make(map[string]bool)
	for abs := range p.Index.FileSet() {
		if v, err := filepath.Rel(p.Root, abs); err == nil {
			files[filepath.ToSlash(v)] = true
		}
	}
	return files
}

func resolveContext(p *Project, currentFile string, files map[string]bool) *resolver.Context {
	return &resolver.Context{
		CurrentFile: currentFile,
		ProjectRoot: p.Root,
		Files:       files,
		Extensions:  p.Config.Resolver.Extensions,
		Aliases:     p.Config.Resolver.Aliases,
		Framework:   p.Config.Resolver.Framework,
	}
}

// ProjectStats snapshots one project.
func (r *Registry) ProjectStats(id string) (ProjectStats, error) {
	p, err := r.GetProject(id)
	if err != nil {
		return ProjectStats{}, err
	}
	return projectStats(p), nil
}

// Stats snapshots the whole registry, most recently used projects first.
func (r *Registry) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := Stats{
		ProjectCount: len(r.projects),
		MaxProjects:  r.maxProjects,
		MaxMemoryMB:  int(r.maxMemory / (1024 * 1024)),
	}
	for e := r.recency.Front(); e != nil; e = e.Next() {
		ps := projectStats(e.Value.(*Project))
		s.MemoryBytes += ps.MemoryBytes
		s.Projects = append(s.Projects, ps)
	}
	return s
}

// Close destroys every project. Used on shutdown.
func (r *Registry) Close() {
	r.mu.Lock()
	projects := make([]*Project, 0, len(r.projects))
	for _, p := range r.projects {
		projects = append(projects, p)
	}
	r.projects = make(map[string]*Project)
	r.recency.Init()
	r.mu.Unlock()

	for _, p := range projects {
		if p.Watcher != nil {
			p.Watcher.Stop()
		}
	}
}

func projectStats(p *Project) ProjectStats {
	is := p.Index.Stats()
	ps := ProjectStats{
		ID:           p.ID,
		Root:         p.Root,
		FileCount:    is.FileCount,
		ElementCount: is.ElementCount,
		Languages:    is.Languages,
		MemoryBytes:  is.EstimatedMemory,
		CreatedAt:    p.CreatedAt,
	}
	if p.Watcher != nil {
		ps.Watching = p.Watcher.State() != index.StateStopped
		ps.WatchStats = p.Watcher.Stats()
	}
	return ps
}

// evictLocked enforces the count limit first, then the memory budget,
// removing least-recently-used projects from the back of the list. A
// project whose watcher is mid-apply is skipped this round; the next
// mutation retries. Callers hold r.mu.
func (r *Registry) evictLocked() {
	var stopped []*index.Watcher

	overCount := func() bool { return len(r.projects) > r.maxProjects }
	overMemory := func() bool {
		if r.maxMemory <= 0 {
			return false
		}
		var total int64
		for _, p := range r.projects {
			total += p.Index.EstimatedMemory()
		}
		return total > r.maxMemory
	}

	for overCount() || overMemory() {
		victim := r.oldestEvictableLocked()
		if victim == nil {
			break
		}
		delete(r.projects, victim.ID)
		r.recency.Remove(victim.element)
		if victim.Watcher != nil {
			stopped = append(stopped, victim.Watcher)
		}
		debug.LogIndexing("evicted project %q\n", victim.ID)
	}

	// Watcher.Stop waits for in-flight work, so run it off the lock.
	if len(stopped) > 0 {
		go func() {
			for _, w := range stopped {
				w.Stop()
			}
		}()
	}
}

func (r *Registry) oldestEvictableLocked() *Project {
	for e := r.recency.Back(); e != nil; e = e.Prev() {
		p := e.Value.(*Project)
		if p.Watcher != nil && p.Watcher.Busy() {
			continue
		}
		return p
	}
	return nil
}
