package index

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codescry/codescry/internal/parser"
	"github.com/codescry/codescry/internal/types"
)

// startWatcher walks root, starts a watcher with a short debounce and
// returns it together with a channel that receives each applied batch size.
func startWatcher(t *testing.T, root string) (*Watcher, *ProjectIndex, chan int) {
	t.Helper()

	cfg := testConfig(root)
	cfg.Index.WatchDebounceMs = 50

	engine := parser.NewEngine()
	idx, _, err := NewWalker(cfg, engine).Walk(context.Background(), root)
	require.NoError(t, err)

	w := NewWatcher("test", cfg, engine, idx)
	batches := make(chan int, 16)
	w.SetBatchCallback(func(applied int) { batches <- applied })
	require.NoError(t, w.Start())
	t.Cleanup(w.Stop)
	return w, idx, batches
}

func waitForBatch(t *testing.T, batches chan int) int {
	t.Helper()
	select {
	case n := <-batches:
		return n
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for a watcher batch")
		return 0
	}
}

func TestWatcher_StartsStopped(t *testing.T) {
	cfg := testConfig(t.TempDir())
	w := NewWatcher("test", cfg, parser.NewEngine(), NewProjectIndex(cfg.Project.Root))
	assert.Equal(t, StateStopped, w.State())
	assert.False(t, w.Running())
	// Stopping a stopped watcher is a no-op.
	w.Stop()
	assert.Equal(t, StateStopped, w.State())
}

func TestWatcher_IndexesCreatedFile(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "seed.go", "package seed\n")
	w, idx, batches := startWatcher(t, root)
	assert.Equal(t, StateIdle, w.State())

	path := writeFile(t, root, "fresh.go", "package seed\n\nfunc Fresh() {}\n")
	applied := waitForBatch(t, batches)

	assert.Equal(t, 1, applied)
	assert.True(t, idx.HasFile(path))

	found := false
	for _, e := range idx.FileElements(path) {
		if e.Kind == types.KindFunction && e.Name == "Fresh" {
			found = true
		}
	}
	assert.True(t, found, "new function must be searchable after the batch")

	stats := w.Stats()
	assert.Equal(t, int64(1), stats.BatchesApplied)
	assert.Equal(t, int64(1), stats.FilesUpdated)
}

func TestWatcher_CoalescesRapidChanges(t *testing.T) {
	root := t.TempDir()
	path := writeFile(t, root, "hot.go", "package hot\n")
	w, idx, batches := startWatcher(t, root)

	// Two writes inside one debounce window must land as a single batch
	// holding only the final content.
	require.NoError(t, os.WriteFile(path, []byte("package hot\n\nfunc Draft() {}\n"), 0644))
	time.Sleep(10 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("package hot\n\nfunc Final() {}\n"), 0644))

	applied := waitForBatch(t, batches)
	assert.Equal(t, 1, applied, "both writes coalesce into one update")

	var names []string
	for _, e := range idx.FileElements(path) {
		if e.Kind == types.KindFunction {
			names = append(names, e.Name)
		}
	}
	assert.Equal(t, []string{"Final"}, names)
	assert.GreaterOrEqual(t, w.Stats().EventsQueued, int64(2))
	assert.Equal(t, int64(1), w.Stats().BatchesApplied)
}

func TestWatcher_UnchangedContentSkipsReparse(t *testing.T) {
	root := t.TempDir()
	content := "package same\n"
	path := writeFile(t, root, "same.go", content)
	w, _, batches := startWatcher(t, root)

	// Rewrite identical bytes; the hash short-circuit must skip the file.
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	applied := waitForBatch(t, batches)

	assert.Equal(t, 0, applied)
	assert.Equal(t, int64(0), w.Stats().FilesUpdated)
}

func TestWatcher_RemovesDeletedFile(t *testing.T) {
	root := t.TempDir()
	path := writeFile(t, root, "doomed.go", "package doomed\n\nfunc Gone() {}\n")
	w, idx, batches := startWatcher(t, root)
	require.True(t, idx.HasFile(path))

	require.NoError(t, os.Remove(path))
	applied := waitForBatch(t, batches)

	assert.Equal(t, 1, applied)
	assert.False(t, idx.HasFile(path))
	assert.Equal(t, int64(1), w.Stats().FilesRemoved)

	// No element of the deleted file may survive.
	for _, e := range idx.Snapshot() {
		assert.NotEqual(t, path, e.Path)
	}
}

func TestWatcher_IgnoresFilteredFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "seed.go", "package seed\n")
	w, idx, batches := startWatcher(t, root)

	notes := writeFile(t, root, "notes.txt", "not code\n")
	code := writeFile(t, root, "code.go", "package seed\n")

	applied := waitForBatch(t, batches)
	assert.Equal(t, 1, applied, "only the recognized file produces an update")
	assert.True(t, idx.HasFile(code))
	assert.False(t, idx.HasFile(notes))
	_ = w
}

func TestWatcher_RespectsGitignore(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, ".gitignore", "gen.go\n")
	writeFile(t, root, "seed.go", "package seed\n")
	w, idx, batches := startWatcher(t, root)

	// A gitignored file created while watching must be filtered exactly
	// like it would be on the initial walk.
	gen := writeFile(t, root, "gen.go", "package seed\n")
	code := writeFile(t, root, "code.go", "package seed\n")

	applied := waitForBatch(t, batches)
	assert.Equal(t, 1, applied)
	assert.True(t, idx.HasFile(code))
	assert.False(t, idx.HasFile(gen), "gitignored files never enter the index")
	_ = w
}

func TestWatcher_FlushDefersWhileApplying(t *testing.T) {
	root := t.TempDir()
	path := writeFile(t, root, "seed.go", "package seed\n")

	cfg := testConfig(root)
	cfg.Index.WatchDebounceMs = 20

	engine := parser.NewEngine()
	idx, _, err := NewWalker(cfg, engine).Walk(context.Background(), root)
	require.NoError(t, err)
	w := NewWatcher("test", cfg, engine, idx)

	// An event window can expire while an earlier batch is still applying.
	// The expiring flush must reschedule itself, never start a second
	// concurrent application.
	w.mu.Lock()
	w.state = StatePending
	w.applying = true
	w.pending[path] = types.FileChangeEvent{Type: types.ChangeModified, Path: path, Timestamp: time.Now()}
	w.mu.Unlock()

	w.flush()

	w.mu.Lock()
	assert.Equal(t, StatePending, w.state, "the deferred window stays pending")
	assert.Len(t, w.pending, 1, "the deferred batch keeps its events")
	require.NotNil(t, w.timer, "the flush reschedules itself")
	w.timer.Stop()
	w.timer = nil
	w.applying = false
	w.state = StateStopped
	w.mu.Unlock()

	assert.Equal(t, int64(0), w.Stats().BatchesApplied, "nothing was applied by the deferred flush")
}

func TestWatcher_WatchesNewDirectories(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "seed.go", "package seed\n")
	_, idx, batches := startWatcher(t, root)

	// Creating the directory and a file inside it must both be picked up.
	path := writeFile(t, root, "sub/inner.go", "package sub\n")

	deadline := time.After(5 * time.Second)
	for !idx.HasFile(path) {
		select {
		case <-batches:
		case <-deadline:
			t.Fatal("file in new directory was never indexed")
		}
	}
	assert.True(t, idx.HasFile(path))
}

func TestWatcher_StopDiscardsPending(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "seed.go", "package seed\n")

	cfg := testConfig(root)
	cfg.Index.WatchDebounceMs = 500 // wide window so the batch stays pending

	engine := parser.NewEngine()
	idx, _, err := NewWalker(cfg, engine).Walk(context.Background(), root)
	require.NoError(t, err)

	w := NewWatcher("test", cfg, engine, idx)
	require.NoError(t, w.Start())

	path := writeFile(t, root, "late.go", "package seed\n")

	// Give the event time to reach the queue, then stop inside the window.
	require.Eventually(t, func() bool {
		return w.Stats().EventsQueued > 0 || w.State() == StatePending
	}, 3*time.Second, 10*time.Millisecond)

	w.Stop()
	assert.Equal(t, StateStopped, w.State())
	assert.False(t, idx.HasFile(path), "pending events are discarded on stop")

	// Restart picks the watcher back up from the stopped state.
	require.NoError(t, w.Start())
	assert.True(t, w.Running())
	w.Stop()
}

func TestWatcher_StartTwiceIsNoop(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "seed.go", "package seed\n")
	w, _, _ := startWatcher(t, root)
	require.NoError(t, w.Start())
	assert.Equal(t, StateIdle, w.State())
}
