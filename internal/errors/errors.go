package errors

import (
	"errors"
	"fmt"
	"os"
	"time"
)

// ErrorType tags the failure categories surfaced by the index engine.
type ErrorType string

const (
	// Identity and argument errors; these propagate to the caller.
	ErrorTypeValidation    ErrorType = "validation"
	ErrorTypeNotFound      ErrorType = "not_found"
	ErrorTypeAlreadyExists ErrorType = "already_exists"

	// Per-file errors; recovered locally and aggregated into statistics.
	ErrorTypeFile  ErrorType = "file"
	ErrorTypeParse ErrorType = "parse"

	// OS watch-layer errors; delivered through the watcher error callback.
	ErrorTypeWatch ErrorType = "watch"
)

// ValidationError rejects an empty or malformed identifier, query or option.
type ValidationError struct {
	Field  string
	Value  string
	Reason string
}

// NewValidationError creates a validation error for a named input field.
func NewValidationError(field, value, reason string) *ValidationError {
	return &ValidationError{Field: field, Value: value, Reason: reason}
}

func (e *ValidationError) Error() string {
	if e.Value != "" {
		return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NotFoundError reports an unknown project or sub-project id.
type NotFoundError struct {
	Kind string
	ID   string
}

// NewNotFoundError creates a not-found error for an entity kind and id.
func NewNotFoundError(kind, id string) *NotFoundError {
	return &NotFoundError{Kind: kind, ID: id}
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

// AlreadyExistsError reports a duplicate project id on create.
type AlreadyExistsError struct {
	Kind string
	ID   string
}

// NewAlreadyExistsError creates an already-exists error for an entity.
func NewAlreadyExistsError(kind, id string) *AlreadyExistsError {
	return &AlreadyExistsError{Kind: kind, ID: id}
}

func (e *AlreadyExistsError) Error() string {
	return fmt.Sprintf("%s %q already exists", e.Kind, e.ID)
}

// FileError represents a per-file filesystem failure (stat, read,
// permission). Walks and incremental updates record these and continue.
type FileError struct {
	Type       ErrorType
	Path       string
	Operation  string
	Underlying error
	Timestamp  time.Time
}

// NewFileError creates a file error with the failing operation attached.
func NewFileError(op, path string, err error) *FileError {
	return &FileError{
		Type:       ErrorTypeFile,
		Path:       path,
		Operation:  op,
		Underlying: err,
		Timestamp:  time.Now(),
	}
}

func (e *FileError) Error() string {
	return fmt.Sprintf("file %s failed for %s: %v", e.Operation, e.Path, e.Underlying)
}

// Unwrap returns the underlying error for errors.Is/As
func (e *FileError) Unwrap() error {
	return e.Underlying
}

// IsPermission reports whether the underlying failure was a permission error.
func (e *FileError) IsPermission() bool {
	return errors.Is(e.Underlying, os.ErrPermission)
}

// ParseError represents a parsing failure for one file. Like FileError it is
// recovered locally: the file is excluded and the operation continues.
type ParseError struct {
	Type       ErrorType
	Path       string
	Line       int
	Column     int
	Underlying error
	Timestamp  time.Time
}

// NewParseError creates a parse error anchored at a source position.
func NewParseError(path string, line, column int, err error) *ParseError {
	return &ParseError{
		Type:       ErrorTypeParse,
		Path:       path,
		Line:       line,
		Column:     column,
		Underlying: err,
		Timestamp:  time.Now(),
	}
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("parse error at %s:%d:%d: %v", e.Path, e.Line, e.Column, e.Underlying)
	}
	return fmt.Sprintf("parse error in %s: %v", e.Path, e.Underlying)
}

// Unwrap returns the underlying error
func (e *ParseError) Unwrap() error {
	return e.Underlying
}

// WatchError represents an OS-level watch failure. It is reported through
// the watcher's error callback; watching other paths continues.
type WatchError struct {
	Type       ErrorType
	Path       string
	Underlying error
	Timestamp  time.Time
}

// NewWatchError creates a watch-layer error for a path (may be empty when
// the failure is not path-specific).
func NewWatchError(path string, err error) *WatchError {
	return &WatchError{
		Type:       ErrorTypeWatch,
		Path:       path,
		Underlying: err,
		Timestamp:  time.Now(),
	}
}

func (e *WatchError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("watch failure for %s: %v", e.Path, e.Underlying)
	}
	return fmt.Sprintf("watch failure: %v", e.Underlying)
}

// Unwrap returns the underlying error
func (e *WatchError) Unwrap() error {
	return e.Underlying
}

// MultiError aggregates per-file failures for batch reporting.
type MultiError struct {
	Errors []error
}

// NewMultiError creates a multi-error, dropping nil entries.
func NewMultiError(errs []error) *MultiError {
	filtered := make([]error, 0, len(errs))
	for _, err := range errs {
		if err != nil {
			filtered = append(filtered, err)
		}
	}
	return &MultiError{Errors: filtered}
}

func (e *MultiError) Error() string {
	if len(e.Errors) == 0 {
		return "no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("%d errors: %v", len(e.Errors), e.Errors)
}

// Unwrap returns all aggregated errors
func (e *MultiError) Unwrap() []error {
	return e.Errors
}

// IsNotFound reports whether err is (or wraps) a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsAlreadyExists reports whether err is (or wraps) an AlreadyExistsError.
func IsAlreadyExists(err error) bool {
	var ae *AlreadyExistsError
	return errors.As(err, &ae)
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
