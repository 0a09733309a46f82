// Package debug provides opt-in file logging. Disabled it costs a
// mutex check per call; enabled it appends timestamped lines to the
// log file and flushes immediately so the file can be tailed live.
package debug

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

var (
	mu      sync.Mutex
	logFile *os.File
)

// Enable starts logging to the given file, creating it (and its
// directory) as needed. Already enabled is a no-op.
func Enable(path string) error {
	mu.Lock()
	defer mu.Unlock()

	if logFile != nil {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}
	logFile = f

	// Not via Log: the mutex is already held.
	fmt.Fprintf(f, "[%s] === session started %s ===\n",
		time.Now().Format("15:04:05.000"), time.Now().Format(time.RFC3339))
	f.Sync()
	return nil
}

// Disable stops logging and closes the file.
func Disable() {
	mu.Lock()
	defer mu.Unlock()

	if logFile != nil {
		logFile.Close()
		logFile = nil
	}
}

// Log writes one formatted line when logging is enabled.
func Log(format string, args ...any) {
	mu.Lock()
	defer mu.Unlock()

	if logFile == nil {
		return
	}
	fmt.Fprintf(logFile, "[%s] %s\n", time.Now().Format("15:04:05.000"), fmt.Sprintf(format, args...))
	logFile.Sync()
}

// Error logs an error with its component and what was being attempted.
func Error(component string, err error, context string) {
	Log("[%s] ERROR: %s - %v", component, context, err)
}
