package index

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/codescry/codescry/internal/config"
	"github.com/codescry/codescry/internal/debug"
	cserr "github.com/codescry/codescry/internal/errors"
	"github.com/codescry/codescry/internal/parser"
	"github.com/codescry/codescry/internal/types"
)

// State is the watcher's debounce state machine position.
type State int

const (
	// StateIdle: no events pending, watch handles open.
	StateIdle State = iota
	// StatePending: events queued, debounce timer running.
	StatePending
	// StateFlushing: the queued batch is being applied to the index.
	StateFlushing
	// StateStopped: watch handles released; terminal until Start is called.
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePending:
		return "pending"
	case StateFlushing:
		return "flushing"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// WatchStats counts watcher activity since the last Start.
type WatchStats struct {
	EventsQueued   int64     `json:"events_queued"`
	BatchesApplied int64     `json:"batches_applied"`
	FilesUpdated   int64     `json:"files_updated"`
	FilesRemoved   int64     `json:"files_removed"`
	Errors         int64     `json:"errors"`
	LastEventTime  time.Time `json:"last_event_time"`
}

// Watcher observes filesystem changes for one project and applies minimal,
// debounced updates to its index. Multiple events for the same path within a
// debounce window coalesce into the latest event type.
type Watcher struct {
	projectID string
	cfg       *config.Config
	engine    parser.Engine
	idx       *ProjectIndex
	walker    *Walker // reused for its filtering rules
	debounce  time.Duration

	mu       sync.Mutex
	fsw      *fsnotify.Watcher
	pending  map[string]types.FileChangeEvent
	timer    *time.Timer
	state    State
	applying bool // true for the whole of applyBatch, even if new events arrive
	wg       sync.WaitGroup
	done     chan struct{}

	// onError receives watch-layer failures; watching continues.
	onError func(error)
	// onBatch is invoked after each applied batch, mainly for tests.
	onBatch func(applied int)

	statsMu sync.RWMutex
	stats   WatchStats
}

// NewWatcher creates a stopped watcher bound to one project index.
func NewWatcher(projectID string, cfg *config.Config, engine parser.Engine, idx *ProjectIndex) *Watcher {
	debounce := time.Duration(cfg.Index.WatchDebounceMs) * time.Millisecond
	if debounce <= 0 {
		debounce = types.DefaultDebounceMs * time.Millisecond
	}
	return &Watcher{
		projectID: projectID,
		cfg:       cfg,
		engine:    engine,
		idx:       idx,
		walker:    NewWalker(cfg, engine),
		debounce:  debounce,
		pending:   make(map[string]types.FileChangeEvent),
		state:     StateStopped,
	}
}

// SetErrorCallback registers the receiver for watch-layer errors.
func (w *Watcher) SetErrorCallback(fn func(error)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onError = fn
}

// SetBatchCallback registers a callback invoked after each applied batch.
func (w *Watcher) SetBatchCallback(fn func(applied int)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onBatch = fn
}

// Start opens the OS watch handles and begins observing. Starting an
// already-started watcher is a no-op.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state != StateStopped {
		return nil
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return cserr.NewWatchError("", err)
	}

	if err := w.addWatchesLocked(fsw, w.idx.Root()); err != nil {
		fsw.Close()
		return err
	}

	w.fsw = fsw
	w.done = make(chan struct{})
	w.state = StateIdle
	w.statsMu.Lock()
	w.stats = WatchStats{}
	w.statsMu.Unlock()

	w.wg.Add(1)
	go w.processEvents(fsw, w.done)

	debug.LogIndexing("watcher[%s]: started on %s\n", w.projectID, w.idx.Root())
	return nil
}

// Stop cancels any pending debounce timer, releases the OS watch handles and
// moves the state machine to stopped. Safe to call more than once.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if w.state == StateStopped {
		w.mu.Unlock()
		return
	}
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	w.pending = make(map[string]types.FileChangeEvent)
	w.state = StateStopped
	close(w.done)
	fsw := w.fsw
	w.fsw = nil
	w.mu.Unlock()

	if fsw != nil {
		fsw.Close()
	}
	w.wg.Wait()
	debug.LogIndexing("watcher[%s]: stopped\n", w.projectID)
}

// State returns the current state machine position.
func (w *Watcher) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Running reports whether the watcher is observing (any non-stopped state).
func (w *Watcher) Running() bool {
	return w.State() != StateStopped
}

// Busy reports whether a batch is mid-application; the registry refuses to
// evict a project while its watcher is busy.
func (w *Watcher) Busy() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.applying
}

// Stats returns a copy of the activity counters.
func (w *Watcher) Stats() WatchStats {
	w.statsMu.RLock()
	defer w.statsMu.RUnlock()
	return w.stats
}

// addWatchesLocked registers watch handles for root and every non-ignored
// subdirectory. Per-directory failures are reported and skipped.
func (w *Watcher) addWatchesLocked(fsw *fsnotify.Watcher, root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // keep walking
		}
		if !info.IsDir() {
			return nil
		}
		if path != root {
			rel, relErr := filepath.Rel(root, path)
			if relErr == nil && w.walker.shouldIgnoreDir(info.Name(), rel) {
				return filepath.SkipDir
			}
		}
		if err := fsw.Add(path); err != nil {
			w.reportError(cserr.NewWatchError(path, err))
		}
		return nil
	})
}

// processEvents drains the fsnotify channels until the watcher stops.
func (w *Watcher) processEvents(fsw *fsnotify.Watcher, done chan struct{}) {
	defer w.wg.Done()

	for {
		select {
		case <-done:
			return

		case event, ok := <-fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(fsw, event)

		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.countError()
			w.reportError(cserr.NewWatchError("", err))
		}
	}
}

// handleEvent classifies one raw fsnotify event and queues it.
func (w *Watcher) handleEvent(fsw *fsnotify.Watcher, event fsnotify.Event) {
	path := event.Name

	var changeType types.ChangeType
	switch {
	case event.Op&fsnotify.Create != 0:
		changeType = types.ChangeCreated
	case event.Op&fsnotify.Write != 0:
		changeType = types.ChangeModified
	case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		changeType = types.ChangeDeleted
	default:
		return
	}

	if changeType != types.ChangeDeleted {
		info, err := os.Stat(path)
		if err != nil {
			// Raced with a delete; treat as removal if we index the path.
			if w.idx.HasFile(path) {
				w.queueEvent(types.FileChangeEvent{Type: types.ChangeDeleted, Path: path, Timestamp: time.Now()})
			}
			return
		}
		if info.IsDir() {
			// Watch newly created directories so files inside produce events.
			if changeType == types.ChangeCreated {
				rel, relErr := filepath.Rel(w.idx.Root(), path)
				if relErr == nil && !w.walker.shouldIgnoreDir(info.Name(), rel) {
					if err := fsw.Add(path); err != nil {
						w.reportError(cserr.NewWatchError(path, err))
					}
				}
			}
			return
		}
	}

	rel, err := filepath.Rel(w.idx.Root(), path)
	if err != nil {
		return
	}
	if changeType == types.ChangeDeleted {
		// Only removals of paths we actually indexed matter.
		if !w.idx.HasFile(path) {
			return
		}
	} else if !w.walker.ShouldIndex(path, rel) {
		return
	}

	w.queueEvent(types.FileChangeEvent{Type: changeType, Path: path, Timestamp: time.Now()})
}

// queueEvent appends an event to the pending queue, coalescing by path, and
// resets the debounce timer. The batch never flushes while events keep
// arriving inside the window.
func (w *Watcher) queueEvent(ev types.FileChangeEvent) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state == StateStopped {
		return
	}

	w.pending[ev.Path] = ev // last write wins
	w.state = StatePending

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.flush)

	w.statsMu.Lock()
	w.stats.EventsQueued++
	w.stats.LastEventTime = ev.Timestamp
	w.statsMu.Unlock()

	debug.LogIndexing("watcher[%s]: queued %s %s (%d pending)\n", w.projectID, ev.Type, ev.Path, len(w.pending))
}

// flush drains the pending queue as a single batch and applies it. At most
// one batch is ever mid-application: a window that expires while an earlier
// batch is still applying reschedules itself instead of starting a second
// concurrent application.
func (w *Watcher) flush() {
	w.mu.Lock()
	if w.state != StatePending {
		w.mu.Unlock()
		return
	}
	if w.applying {
		w.timer = time.AfterFunc(w.debounce, w.flush)
		w.mu.Unlock()
		return
	}
	batch := w.pending
	w.pending = make(map[string]types.FileChangeEvent)
	w.timer = nil
	w.state = StateFlushing
	w.applying = true
	w.mu.Unlock()

	applied := w.applyBatch(batch)

	w.mu.Lock()
	w.applying = false
	if w.state == StateFlushing {
		// Events may have been queued while we flushed.
		if len(w.pending) > 0 {
			w.state = StatePending
		} else {
			w.state = StateIdle
		}
	}
	onBatch := w.onBatch
	w.mu.Unlock()

	w.statsMu.Lock()
	w.stats.BatchesApplied++
	w.statsMu.Unlock()

	if onBatch != nil {
		onBatch(applied)
	}
}

// applyBatch applies one coalesced batch: removals first, then updates.
// Per-file failures are counted and reported; the rest of the batch is
// still applied.
func (w *Watcher) applyBatch(batch map[string]types.FileChangeEvent) int {
	applied := 0
	for path, ev := range batch {
		switch ev.Type {
		case types.ChangeDeleted:
			if w.idx.RemoveFile(path) {
				applied++
				w.statsMu.Lock()
				w.stats.FilesRemoved++
				w.statsMu.Unlock()
				debug.LogIndexing("watcher[%s]: removed %s\n", w.projectID, path)
			}
		}
	}
	for path, ev := range batch {
		if ev.Type == types.ChangeDeleted {
			continue
		}
		if w.updateFile(path) {
			applied++
			w.statsMu.Lock()
			w.stats.FilesUpdated++
			w.statsMu.Unlock()
		}
	}
	return applied
}

// updateFile re-parses one created or modified file and splices its
// elements into the index. Unchanged content (same hash) is skipped.
func (w *Watcher) updateFile(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		// Deleted between flush and apply.
		return w.idx.RemoveFile(path)
	}
	if info.Size() > w.cfg.Index.MaxFileSize {
		debug.LogIndexing("watcher[%s]: skipping oversized file %s\n", w.projectID, path)
		return false
	}

	content, err := os.ReadFile(path)
	if err != nil {
		w.countError()
		w.reportError(cserr.NewFileError("read", path, err))
		return false
	}

	if reason := CheckLineLimits(content, w.cfg.Index.MaxLineCount, w.cfg.Index.MaxLineLength); reason != "" {
		debug.LogIndexing("watcher[%s]: skipping %s: %s\n", w.projectID, path, reason)
		return false
	}

	hash := types.HashContent(content)
	if prev, ok := w.idx.Hash(path); ok && prev == hash {
		return false
	}

	parsed, err := w.engine.Parse(path, content)
	if err != nil {
		w.countError()
		w.reportError(cserr.NewParseError(path, 0, 0, err))
		return false
	}

	w.idx.PutFile(path, info.ModTime(), hash, parser.LanguageForPath(path),
		parsed.Elements, parsed.Imports, parsed.Exports)
	debug.LogIndexing("watcher[%s]: updated %s (%d elements)\n", w.projectID, path, len(parsed.Elements))
	return true
}

func (w *Watcher) reportError(err error) {
	w.mu.Lock()
	fn := w.onError
	w.mu.Unlock()
	if fn != nil {
		fn(err)
	}
}

func (w *Watcher) countError() {
	w.statsMu.Lock()
	w.stats.Errors++
	w.statsMu.Unlock()
}
