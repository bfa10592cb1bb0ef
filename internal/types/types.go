package types

import (
	"time"

	"github.com/cespare/xxhash/v2"
)

// Default resource limits applied when configuration leaves them unset.
const (
	DefaultMaxFileSize    = 10 * 1024 * 1024 // 10MB per file
	DefaultMaxLineCount   = 50000            // lines per file
	DefaultMaxLineLength  = 10000            // bytes per line
	DefaultMaxDepth       = 32               // directory traversal depth
	DefaultMaxProjects    = 10               // resident projects before eviction
	DefaultMaxMemoryMB    = 500              // estimated memory budget
	DefaultDebounceMs     = 300              // watcher debounce window
	DefaultMaxResults     = 20               // search result cap
	MaxResultsCeiling     = 100              // hard ceiling regardless of options
	DefaultFuzzyThreshold = 0.7              // minimum similarity for fuzzy hits
)

// ElementID identifies one element within a project index.
// IDs are content-derived (xxhash of path, kind, name and start line) so
// re-parsing an unchanged file reproduces the same IDs.
type ElementID uint64

// ElementKind classifies an indexed code construct.
type ElementKind string

const (
	KindFile      ElementKind = "file"
	KindDirectory ElementKind = "directory"
	KindClass     ElementKind = "class"
	KindInterface ElementKind = "interface"
	KindStruct    ElementKind = "struct"
	KindFunction  ElementKind = "function"
	KindMethod    ElementKind = "method"
	KindVariable  ElementKind = "variable"
	KindConstant  ElementKind = "constant"
	KindEnum      ElementKind = "enum"
	KindType      ElementKind = "type"
	KindImport    ElementKind = "import"
	KindExport    ElementKind = "export"
)

// Valid reports whether k is one of the recognized element kinds.
func (k ElementKind) Valid() bool {
	switch k {
	case KindFile, KindDirectory, KindClass, KindInterface, KindStruct,
		KindFunction, KindMethod, KindVariable, KindConstant, KindEnum,
		KindType, KindImport, KindExport:
		return true
	}
	return false
}

// Span is a source range in 1-based line/column coordinates.
type Span struct {
	StartLine int `json:"start_line"`
	StartCol  int `json:"start_col"`
	EndLine   int `json:"end_line"`
	EndCol    int `json:"end_col"`
}

// Element is one node of a project's element tree: a file, directory, or a
// code construct inside a file. Children are owned and ordered; the parent
// link is a non-owning back-reference resolved through the index's flat ID
// map, so the tree carries no cyclic pointers.
type Element struct {
	ID         ElementID         `json:"id"`
	Path       string            `json:"path"`
	Name       string            `json:"name"`
	Kind       ElementKind       `json:"kind"`
	Language   string            `json:"language,omitempty"`
	Span       Span              `json:"span"`
	Parameters []string          `json:"parameters,omitempty"`
	ReturnType string            `json:"return_type,omitempty"`
	Imports    []string          `json:"imports,omitempty"`
	Exports    []string          `json:"exports,omitempty"`
	Children   []ElementID       `json:"children,omitempty"`
	ParentID   ElementID         `json:"parent_id,omitempty"`
	ModTime    time.Time         `json:"mod_time,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// NewElementID derives a stable ID from an element's identity fields.
func NewElementID(path string, kind ElementKind, name string, startLine int) ElementID {
	h := xxhash.New()
	_, _ = h.WriteString(path)
	_, _ = h.Write([]byte{0})
	_, _ = h.WriteString(string(kind))
	_, _ = h.Write([]byte{0})
	_, _ = h.WriteString(name)
	_, _ = h.Write([]byte{0, byte(startLine), byte(startLine >> 8), byte(startLine >> 16), byte(startLine >> 24)})
	return ElementID(h.Sum64())
}

// EstimatedSize returns a rough per-element memory footprint in bytes,
// used for the registry's memory-pressure eviction safeguard.
func (e *Element) EstimatedSize() int64 {
	size := int64(200) // struct overhead, span, timestamps
	size += int64(len(e.Path) + len(e.Name) + len(e.Language) + len(e.ReturnType))
	for _, p := range e.Parameters {
		size += int64(len(p) + 16)
	}
	for _, s := range e.Imports {
		size += int64(len(s) + 16)
	}
	for _, s := range e.Exports {
		size += int64(len(s) + 16)
	}
	size += int64(len(e.Children) * 8)
	for k, v := range e.Metadata {
		size += int64(len(k) + len(v) + 32)
	}
	return size
}

// ChangeType classifies a filesystem change event.
type ChangeType string

const (
	ChangeCreated  ChangeType = "created"
	ChangeModified ChangeType = "modified"
	ChangeDeleted  ChangeType = "deleted"
)

// FileChangeEvent is one observed filesystem change. Events are produced by
// the OS notification layer and discarded once applied to an index.
type FileChangeEvent struct {
	Type      ChangeType
	Path      string
	Timestamp time.Time
}

// HashContent returns the xxhash digest of file content, used to skip
// re-parsing files whose bytes have not changed.
func HashContent(content []byte) uint64 {
	return xxhash.Sum64(content)
}
