package debug

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Build flag for debug mode - can be overridden at build time
// go build -ldflags "-X github.com/codescry/codescry/internal/debug.EnableDebug=true"
var EnableDebug = "false"

// StdioServerMode tracks if we're serving a protocol over stdio (set by main).
// Debug output is suppressed entirely in that mode to keep the stream clean.
var StdioServerMode = false

// debugOutput is the writer for debug output (defaults to nil, meaning no output)
var debugOutput io.Writer

// debugFile holds the open file handle if debug output goes to a file
var debugFile *os.File

// debugMutex protects access to debug output
var debugMutex sync.Mutex

// SetStdioServerMode suppresses all debug output to stdio.
func SetStdioServerMode(enabled bool) {
	StdioServerMode = enabled
}

// SetOutput sets a custom writer for debug output.
// Pass nil to disable debug output entirely.
func SetOutput(w io.Writer) {
	debugMutex.Lock()
	defer debugMutex.Unlock()
	debugOutput = w
}

// InitLogFile initializes debug logging to a timestamped file under the OS
// temp directory. Call CloseLogFile when done.
func InitLogFile() (string, error) {
	debugMutex.Lock()
	defer debugMutex.Unlock()

	logDir := filepath.Join(os.TempDir(), "codescry-debug-logs")
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create debug log directory: %w", err)
	}

	timestamp := time.Now().Format("2006-01-02T150405")
	logPath := filepath.Join(logDir, fmt.Sprintf("debug-%s.log", timestamp))

	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return "", fmt.Errorf("failed to create debug log file: %w", err)
	}

	debugFile = file
	debugOutput = file
	return logPath, nil
}

// CloseLogFile closes the debug log file if one is open.
func CloseLogFile() error {
	debugMutex.Lock()
	defer debugMutex.Unlock()

	if debugFile != nil {
		err := debugFile.Close()
		debugFile = nil
		debugOutput = nil
		return err
	}
	return nil
}

// Enabled returns true if debug mode is on and we're not serving over stdio.
func Enabled() bool {
	if StdioServerMode {
		return false
	}
	if EnableDebug == "true" {
		return true
	}
	if os.Getenv("CODESCRY_DEBUG") == "1" || os.Getenv("CODESCRY_DEBUG") == "true" {
		return true
	}
	return false
}

func writer() io.Writer {
	debugMutex.Lock()
	defer debugMutex.Unlock()
	return debugOutput
}

// Printf prints debug information when debug mode is enabled and a writer is
// configured.
func Printf(format string, args ...interface{}) {
	if !Enabled() {
		return
	}
	w := writer()
	if w == nil {
		return
	}
	fmt.Fprintf(w, "[DEBUG] "+format, args...)
}

// LogIndexing logs indexing and watcher pipeline activity.
func LogIndexing(format string, args ...interface{}) {
	Printf("[indexing] "+format, args...)
}

// LogSearch logs search engine activity.
func LogSearch(format string, args ...interface{}) {
	Printf("[search] "+format, args...)
}

// LogResolve logs import resolution activity.
func LogResolve(format string, args ...interface{}) {
	Printf("[resolve] "+format, args...)
}
