package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Logger records one command-tagged line per invocation in
// <home>/logs/scout.log so a coordinator can reconstruct which commands
// touched which sessions. Logging is best-effort: a nil Logger is safe
// to use and never fails the operation being logged.
type Logger struct {
	file *os.File
}

// New creates (or reuses) the log file inside logDir.
func New(logDir string) (*Logger, error) {
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, fmt.Errorf("logging: ensure log dir: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(logDir, "scout.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("logging: open log file: %w", err)
	}
	return &Logger{file: f}, nil
}

// Event writes "<timestamp> <command>: <detail>" on one line. The detail
// is whitespace-flattened so a multi-line argument cannot break the
// one-line-per-command format.
func (l *Logger) Event(command, format string, args ...any) {
	if l == nil || l.file == nil {
		return
	}
	detail := strings.Join(strings.Fields(fmt.Sprintf(format, args...)), " ")
	fmt.Fprintf(l.file, "%s %s: %s\n", time.Now().UTC().Format(time.RFC3339), command, detail)
}

// Close releases the file handle. Safe on a nil Logger.
func (l *Logger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}
	return l.file.Close()
}
