package logging

import (
	"fmt"
	"os"
	"path/filepath"
)

// DefaultLogDir returns the log directory: $FUZZIDX_LOG_DIR, or
// ~/.fuzzidx/logs/. Falls back to the temp directory without a home.
func DefaultLogDir() string {
	if dir := os.Getenv("FUZZIDX_LOG_DIR"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".fuzzidx", "logs")
	}
	return filepath.Join(home, ".fuzzidx", "logs")
}

// DefaultLogPath returns the default server log path.
func DefaultLogPath() string {
	return filepath.Join(DefaultLogDir(), "server.log")
}

// FindLogFile returns explicit when it exists, otherwise the default log
// path when that exists.
func FindLogFile(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err == nil {
			return explicit, nil
		}
		return "", fmt.Errorf("log file not found: %s", explicit)
	}

	path := DefaultLogPath()
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}

	return "", fmt.Errorf("no log file found at %s\nRun 'fuzzidx serve' or any command with --debug first", path)
}
