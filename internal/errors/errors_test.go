package errors

import (
	stderrors "errors"
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidationError_Message(t *testing.T) {
	err := NewValidationError("query", "", "must not be empty")
	assert.Equal(t, "invalid query: must not be empty", err.Error())

	err = NewValidationError("project_id", "my proj", "contains whitespace")
	assert.Contains(t, err.Error(), `"my proj"`)
	assert.True(t, IsValidation(err))
}

func TestNotFoundAndAlreadyExists(t *testing.T) {
	nf := NewNotFoundError("project", "backend")
	assert.Equal(t, `project "backend" not found`, nf.Error())
	assert.True(t, IsNotFound(nf))
	assert.False(t, IsAlreadyExists(nf))

	ae := NewAlreadyExistsError("project", "backend")
	assert.Equal(t, `project "backend" already exists`, ae.Error())
	assert.True(t, IsAlreadyExists(ae))
	assert.False(t, IsNotFound(ae))
}

func TestHelpers_SeeThroughWrapping(t *testing.T) {
	wrapped := fmt.Errorf("create project: %w", NewAlreadyExistsError("project", "x"))
	assert.True(t, IsAlreadyExists(wrapped))

	wrapped = fmt.Errorf("lookup: %w", NewNotFoundError("project", "x"))
	assert.True(t, IsNotFound(wrapped))
}

func TestFileError_Unwrap(t *testing.T) {
	underlying := os.ErrPermission
	err := NewFileError("read", "/tmp/secret.go", underlying)

	assert.True(t, stderrors.Is(err, os.ErrPermission))
	assert.True(t, err.IsPermission())
	assert.Contains(t, err.Error(), "read")
	assert.Contains(t, err.Error(), "/tmp/secret.go")
	assert.False(t, err.Timestamp.IsZero())
}

func TestParseError_Message(t *testing.T) {
	err := NewParseError("src/app.ts", 12, 4, stderrors.New("unterminated string"))
	assert.Contains(t, err.Error(), "src/app.ts:12:4")

	noPos := NewParseError("src/app.ts", 0, 0, stderrors.New("binary content"))
	assert.Contains(t, noPos.Error(), "parse error in src/app.ts")
}

func TestWatchError_Message(t *testing.T) {
	err := NewWatchError("src", stderrors.New("too many open files"))
	assert.Contains(t, err.Error(), "watch failure for src")

	global := NewWatchError("", stderrors.New("watcher closed"))
	assert.Equal(t, "watch failure: watcher closed", global.Error())
}

func TestMultiError(t *testing.T) {
	empty := NewMultiError([]error{nil, nil})
	assert.Equal(t, "no errors", empty.Error())
	assert.Empty(t, empty.Errors)

	single := NewMultiError([]error{stderrors.New("one")})
	assert.Equal(t, "one", single.Error())

	multi := NewMultiError([]error{
		NewFileError("stat", "a.go", os.ErrNotExist),
		stderrors.New("two"),
	})
	assert.Contains(t, multi.Error(), "2 errors")
	assert.True(t, stderrors.Is(multi, os.ErrNotExist))
}
