package index

import (
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/codescry/codescry/internal/types"
)

// ProjectIndex holds the element tree for one project. The tree is rooted
// at the project's directory node; elements live in a flat ID map and refer
// to their parent by ID, so the structure carries no cyclic pointers.
//
// All mutations take the write lock and replace whole files at a time, so a
// concurrent reader sees either the pre-update or the post-update state.
type ProjectIndex struct {
	mu sync.RWMutex

	root   string
	rootID types.ElementID

	elements  map[types.ElementID]*types.Element
	byFile    map[string][]types.ElementID // file path -> that file's element IDs, file node first
	hashes    map[string]uint64            // file path -> content hash
	languages map[string]int
	memory    int64
}

// NewProjectIndex creates an empty index rooted at the given directory.
func NewProjectIndex(root string) *ProjectIndex {
	root = filepath.Clean(root)
	rootElem := &types.Element{
		ID:      types.NewElementID(root, types.KindDirectory, filepath.Base(root), 0),
		Path:    root,
		Name:    filepath.Base(root),
		Kind:    types.KindDirectory,
		ModTime: time.Now(),
	}
	idx := &ProjectIndex{
		root:      root,
		rootID:    rootElem.ID,
		elements:  map[types.ElementID]*types.Element{rootElem.ID: rootElem},
		byFile:    make(map[string][]types.ElementID),
		hashes:    make(map[string]uint64),
		languages: make(map[string]int),
	}
	idx.memory = rootElem.EstimatedSize()
	return idx
}

// Root returns the project root directory.
func (idx *ProjectIndex) Root() string {
	return idx.root
}

// RootElement returns the directory node the tree is rooted at.
func (idx *ProjectIndex) RootElement() *types.Element {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.elements[idx.rootID]
}

// PutFile inserts or replaces all elements of one file: the file node, its
// parsed children, and any directory nodes needed to connect it to the root.
// Existing elements of the same path are discarded first.
func (idx *ProjectIndex) PutFile(path string, modTime time.Time, hash uint64, language string, elems []*types.Element, imports, exports []string) {
	path = filepath.Clean(path)

	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.removeFileLocked(path)

	parentID := idx.ensureDirChainLocked(filepath.Dir(path))

	fileElem := &types.Element{
		ID:       types.NewElementID(path, types.KindFile, filepath.Base(path), 0),
		Path:     path,
		Name:     filepath.Base(path),
		Kind:     types.KindFile,
		Language: language,
		ModTime:  modTime,
		ParentID: parentID,
		Imports:  imports,
		Exports:  exports,
	}

	ids := make([]types.ElementID, 0, len(elems)+1)
	ids = append(ids, fileElem.ID)

	for _, e := range elems {
		e.ParentID = fileElem.ID
		if e.Language == "" {
			e.Language = language
		}
		fileElem.Children = append(fileElem.Children, e.ID)
		idx.elements[e.ID] = e
		idx.memory += e.EstimatedSize()
		ids = append(ids, e.ID)
	}

	idx.elements[fileElem.ID] = fileElem
	idx.memory += fileElem.EstimatedSize()

	parent := idx.elements[parentID]
	parent.Children = append(parent.Children, fileElem.ID)

	idx.byFile[path] = ids
	idx.hashes[path] = hash
	if language != "" {
		idx.languages[language]++
	}
}

// RemoveFile discards the file node and every element belonging to path.
// Directory nodes left without children are pruned up to the root.
func (idx *ProjectIndex) RemoveFile(path string) bool {
	path = filepath.Clean(path)
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return idx.removeFileLocked(path)
}

func (idx *ProjectIndex) removeFileLocked(path string) bool {
	ids, ok := idx.byFile[path]
	if !ok {
		return false
	}

	fileID := ids[0]
	if fileElem := idx.elements[fileID]; fileElem != nil {
		if fileElem.Language != "" {
			idx.languages[fileElem.Language]--
			if idx.languages[fileElem.Language] <= 0 {
				delete(idx.languages, fileElem.Language)
			}
		}
		idx.detachChildLocked(fileElem.ParentID, fileID)
		idx.pruneDirsLocked(fileElem.ParentID)
	}

	for _, id := range ids {
		if e, ok := idx.elements[id]; ok {
			idx.memory -= e.EstimatedSize()
			delete(idx.elements, id)
		}
	}
	delete(idx.byFile, path)
	delete(idx.hashes, path)
	return true
}

// ensureDirChainLocked creates directory nodes from the root down to dir and
// returns the ID of the node for dir.
func (idx *ProjectIndex) ensureDirChainLocked(dir string) types.ElementID {
	dir = filepath.Clean(dir)
	if dir == idx.root || !strings.HasPrefix(dir, idx.root) {
		return idx.rootID
	}

	parentID := idx.ensureDirChainLocked(filepath.Dir(dir))

	id := types.NewElementID(dir, types.KindDirectory, filepath.Base(dir), 0)
	if _, ok := idx.elements[id]; ok {
		return id
	}

	elem := &types.Element{
		ID:       id,
		Path:     dir,
		Name:     filepath.Base(dir),
		Kind:     types.KindDirectory,
		ModTime:  time.Now(),
		ParentID: parentID,
	}
	idx.elements[id] = elem
	idx.memory += elem.EstimatedSize()

	parent := idx.elements[parentID]
	parent.Children = append(parent.Children, id)
	return id
}

func (idx *ProjectIndex) detachChildLocked(parentID, childID types.ElementID) {
	parent, ok := idx.elements[parentID]
	if !ok {
		return
	}
	for i, id := range parent.Children {
		if id == childID {
			parent.Children = append(parent.Children[:i], parent.Children[i+1:]...)
			return
		}
	}
}

// pruneDirsLocked removes empty directory nodes walking up toward the root.
func (idx *ProjectIndex) pruneDirsLocked(dirID types.ElementID) {
	for dirID != idx.rootID {
		dir, ok := idx.elements[dirID]
		if !ok || dir.Kind != types.KindDirectory || len(dir.Children) > 0 {
			return
		}
		idx.detachChildLocked(dir.ParentID, dirID)
		idx.memory -= dir.EstimatedSize()
		delete(idx.elements, dirID)
		dirID = dir.ParentID
	}
}

// Hash returns the recorded content hash for path.
func (idx *ProjectIndex) Hash(path string) (uint64, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	h, ok := idx.hashes[filepath.Clean(path)]
	return h, ok
}

// HasFile reports whether path is indexed.
func (idx *ProjectIndex) HasFile(path string) bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	_, ok := idx.byFile[filepath.Clean(path)]
	return ok
}

// Files returns the indexed file paths in sorted order.
func (idx *ProjectIndex) Files() []string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	files := make([]string, 0, len(idx.byFile))
	for path := range idx.byFile {
		files = append(files, path)
	}
	sort.Strings(files)
	return files
}

// FileSet returns the indexed paths as a set for membership checks.
func (idx *ProjectIndex) FileSet() map[string]bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	set := make(map[string]bool, len(idx.byFile))
	for path := range idx.byFile {
		set[path] = true
	}
	return set
}

// Element looks up one element by ID.
func (idx *ProjectIndex) Element(id types.ElementID) (*types.Element, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	e, ok := idx.elements[id]
	return e, ok
}

// Parent resolves an element's non-owning parent back-reference.
func (idx *ProjectIndex) Parent(e *types.Element) (*types.Element, bool) {
	if e == nil || e.ParentID == 0 {
		return nil, false
	}
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	p, ok := idx.elements[e.ParentID]
	return p, ok
}

// FileElements returns the elements of one file, file node first.
func (idx *ProjectIndex) FileElements(path string) []*types.Element {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	ids, ok := idx.byFile[filepath.Clean(path)]
	if !ok {
		return nil
	}
	out := make([]*types.Element, 0, len(ids))
	for _, id := range ids {
		if e, ok := idx.elements[id]; ok {
			out = append(out, e)
		}
	}
	return out
}

// Snapshot returns all elements under one read lock. Elements are replaced
// wholesale on update, never mutated in place, so the returned pointers stay
// consistent even while the index keeps changing.
func (idx *ProjectIndex) Snapshot() []*types.Element {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	out := make([]*types.Element, 0, len(idx.elements))
	for _, e := range idx.elements {
		out = append(out, e)
	}
	return out
}

// Stats describes the current index contents.
type Stats struct {
	FileCount       int            `json:"file_count"`
	ElementCount    int            `json:"element_count"`
	Languages       map[string]int `json:"languages"`
	EstimatedMemory int64          `json:"estimated_memory"`
}

// Stats returns the current size statistics.
func (idx *ProjectIndex) Stats() Stats {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	langs := make(map[string]int, len(idx.languages))
	for k, v := range idx.languages {
		langs[k] = v
	}
	return Stats{
		FileCount:       len(idx.byFile),
		ElementCount:    len(idx.elements),
		Languages:       langs,
		EstimatedMemory: idx.memory,
	}
}

// EstimatedMemory returns the rough in-memory footprint in bytes.
func (idx *ProjectIndex) EstimatedMemory() int64 {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.memory
}
