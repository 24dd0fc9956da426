// Package logger provides the structured logger shared by all components.
package logger

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// LoggingConfig selects level, format and destination of log output.
type LoggingConfig struct {
	Level  string
	Format string
	Output string
}

// Logger is a logrus entry pre-populated with a component field.
type Logger struct {
	*logrus.Entry
}

// New builds a logger from cfg. Unknown levels fall back to info, unknown
// formats to text and unusable outputs to stdout.
func New(cfg LoggingConfig) *Logger {
	base := logrus.New()

	level, err := logrus.ParseLevel(strings.TrimSpace(cfg.Level))
	if err != nil {
		level = logrus.InfoLevel
	}
	base.SetLevel(level)

	switch strings.ToLower(strings.TrimSpace(cfg.Format)) {
	case "json":
		base.SetFormatter(&logrus.JSONFormatter{})
	default:
		base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	base.SetOutput(openOutput(cfg.Output))
	return &Logger{Entry: logrus.NewEntry(base)}
}

// NewDefault returns an info-level text logger writing to stdout, tagged with
// the given component name.
func NewDefault(component string) *Logger {
	return New(LoggingConfig{Level: "info", Format: "text", Output: "stdout"}).Named(component)
}

// Discard returns a logger that drops everything. Used by tests.
func Discard() *Logger {
	return New(LoggingConfig{Output: "discard"})
}

// Named returns a child logger carrying the component field.
func (l *Logger) Named(component string) *Logger {
	if component == "" {
		return l
	}
	return &Logger{Entry: l.Entry.WithField("component", component)}
}

func openOutput(output string) io.Writer {
	switch strings.ToLower(strings.TrimSpace(output)) {
	case "", "stdout":
		return os.Stdout
	case "stderr":
		return os.Stderr
	case "discard":
		return io.Discard
	}

	files.mu.Lock()
	defer files.mu.Unlock()
	path := filepath.Clean(output)
	if f, ok := files.open[path]; ok {
		return f
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return os.Stdout
	}
	files.open[path] = f
	return f
}

// Log files are opened once per path and shared by every logger writing to
// them.
var files = struct {
	mu   sync.Mutex
	open map[string]*os.File
}{open: map[string]*os.File{}}

// CloseFiles closes every log file opened by New. Loggers writing to them
// must not be used afterwards.
func CloseFiles() error {
	files.mu.Lock()
	defer files.mu.Unlock()
	var first error
	for path, f := range files.open {
		if err := f.Close(); err != nil && first == nil {
			first = err
		}
		delete(files.open, path)
	}
	return first
}
